package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/pkg/logger"
)

const (
	defaultPruneSpec   = "@every 1m"
	defaultSessionSpec = "@every 1m"
)

// Pruner drops cache entries nobody has read within the retention window.
type Pruner interface {
	Prune() int
}

// SessionPurger signs out sessions whose token has expired.
type SessionPurger interface {
	PurgeExpired() (bool, error)
}

// Cleaner coordinates background housekeeping for a running dashboard: pruning
// idle query cache entries and dropping expired sessions.
type Cleaner struct {
	cache    Pruner
	sessions SessionPurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	pruneSchedule   string
	sessionSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used in log output.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithPruneSchedule overrides the cron expression for cache pruning.
func WithPruneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pruneSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron expression for session expiry checks.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding job being skipped.
func NewCleaner(cache Pruner, sessions SessionPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cache:           cache,
		sessions:        sessions,
		now:             time.Now,
		pruneSchedule:   defaultPruneSpec,
		sessionSchedule: defaultSessionSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.cache != nil || cleaner.sessions != nil

	return cleaner
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.pruneSchedule, c.pruneCache); err != nil {
			return err
		}
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.purgeSession(); err != nil {
				c.log.Warn("session purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured jobs sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.cache != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.pruneCache()
	}

	if c.sessions != nil {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if _, err := c.purgeSession(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) pruneCache() {
	if removed := c.cache.Prune(); removed > 0 {
		c.log.Debug("pruned idle cache entries", zap.Int("removed", removed), zap.Time("at", c.now()))
	}
}

func (c *Cleaner) purgeSession() (bool, error) {
	purged, err := c.sessions.PurgeExpired()
	if purged {
		c.log.Info("expired session removed", zap.Time("at", c.now()))
	}
	return purged, err
}
