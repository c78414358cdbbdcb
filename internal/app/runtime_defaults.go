package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const sessionFileName = "session.json"

// ApplyRuntimeDefaults fills settings that depend on the host, such as the
// session file location. It returns the keys it populated so callers can log
// them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	path := strings.TrimSpace(cfg.Session.Path)
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve session directory: %w", err)
		}
		cfg.Session.Path = filepath.Join(dir, "userdash", sessionFileName)
		generated["session.path"] = true
	} else {
		cfg.Session.Path = expandHome(path)
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	return generated, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
