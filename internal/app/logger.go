package app

import (
	"strings"

	"github.com/charlesng35/userdash/pkg/logger"
)

// ConfigureLogging initialises the global logger from the log section, defaulting to warn.
func ConfigureLogging(cfg LogConfig) error {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "warn"
	}
	return logger.Init(level, logger.Options{Development: cfg.Development})
}
