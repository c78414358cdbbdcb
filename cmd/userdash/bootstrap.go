package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/internal/api"
	"github.com/charlesng35/userdash/internal/apiclient"
	"github.com/charlesng35/userdash/internal/app"
	"github.com/charlesng35/userdash/internal/app/maintenance"
	"github.com/charlesng35/userdash/internal/auth"
	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/pkg/logger"
)

// runtimeStack bundles the long-lived components shared by every command.
type runtimeStack struct {
	Config   *app.Config
	Sessions *auth.Manager
	Client   *apiclient.Client
	Cache    *cache.Cache
	Cleaner  *maintenance.Cleaner
	Status   *api.Server

	log *zap.Logger
}

// bootstrapRuntime loads configuration, restores the saved session and wires
// the API client into the query cache.
func bootstrapRuntime(configPath string) (*runtimeStack, error) {
	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := app.ConfigureLogging(cfg.Log); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	stack := &runtimeStack{
		Config: cfg,
		log:    logger.WithModule("bootstrap"),
	}

	stack.Sessions = auth.NewManager(auth.NewFileStore(cfg.Session.Path))
	if err := stack.Sessions.Restore(); err != nil {
		stack.log.Warn("ignoring unreadable session", zap.String("path", cfg.Session.Path), zap.Error(err))
	}

	stack.Client, err = apiclient.New(cfg.API.ClientConfig(),
		apiclient.WithCredentials(stack.Sessions),
		apiclient.WithUnauthorizedHandler(stack.Sessions.Expire),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise api client: %w", err)
	}

	stack.Cache, err = cache.New(stack.Client, cfg.Cache.CacheOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise query cache: %w", err)
	}

	return stack, nil
}

// startBackground launches cache maintenance and, when enabled, the status
// server. Only long-running commands need them.
func (s *runtimeStack) startBackground(deps api.Dependencies) error {
	s.Cleaner = maintenance.NewCleaner(s.Cache, s.Sessions,
		maintenance.WithPruneSchedule(s.Config.Cache.PruneSchedule),
	)
	if err := s.Cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}

	if !s.Config.Monitoring.Enabled {
		return nil
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := api.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("build status router: %w", err)
	}
	s.Status, err = api.Start(s.Config.Monitoring.Address, router)
	if err != nil {
		return fmt.Errorf("start status server: %w", err)
	}
	return nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}

	var errs error

	if s.Status != nil {
		errs = multierr.Append(errs, s.Status.Shutdown(ctx))
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Cache != nil {
		s.Cache.Close()
	}

	_ = logger.Sync() // best effort
	return errs
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
