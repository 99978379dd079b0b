package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"taskflow/domain"
)

type cliConfig struct {
	APIURL        string         `yaml:"api_url"`
	Token         string         `yaml:"token"`
	Timeout       string         `yaml:"timeout"`
	StorageConn   string         `yaml:"storage_connection_string"`
	SettingsTable string         `yaml:"settings_table"`
	EventsQueue   string         `yaml:"events_queue"`
	Defaults      domain.Filters `yaml:"defaults"`
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		APIURL:        "http://localhost:8000",
		Timeout:       "15s",
		SettingsTable: "DashboardSettings",
		Defaults:      domain.DefaultSettings().Filters(1),
	}
}

// configPath picks the config file: the flag, then $TASKCTL_CONFIG, then the
// user config directory.
func configPath(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if p := getenv("TASKCTL_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "taskctl", "config.yaml")
}

// loadCLIConfig layers defaults, the YAML file, environment and flags in
// increasing precedence. A missing file is not an error unless it was named
// explicitly.
func loadCLIConfig(path string, explicit bool, getenv func(string) string) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return cfg, err
		}
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.APIURL, getenv("API_URL"))
	override(&cfg.Token, getenv("API_TOKEN"))
	override(&cfg.Timeout, getenv("REQUEST_TIMEOUT"))
	override(&cfg.StorageConn, getenv("STORAGE_CONNECTION_STRING"))
	override(&cfg.SettingsTable, getenv("SETTINGS_TABLE"))
	override(&cfg.EventsQueue, getenv("TASK_EVENTS_QUEUE"))

	override(&cfg.APIURL, globalAPIURL)
	override(&cfg.Token, globalToken)
	override(&cfg.Timeout, globalTimeout)

	if _, err := cfg.timeout(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c cliConfig) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	return d, nil
}

func currentConfig() (cliConfig, error) {
	return loadCLIConfig(configPath(globalConfigPath, os.Getenv), globalConfigPath != "", os.Getenv)
}
