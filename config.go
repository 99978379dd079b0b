package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type config struct {
	Debug          bool
	Port           string
	APIURL         string
	APIToken       string
	UserID         string
	RequestTimeout time.Duration

	Redis          *redis.Options
	CacheTTL       time.Duration
	IdempotencyTTL time.Duration
	EventsChannel  string
	StorageConn    string
	SettingsTable  string
	EventsQueue    string
	AuthDomain     string
	AuthAudience   string
	LocalAuthKey   string
	JWKSCacheTTL   time.Duration
}

// loadConfig reads the daemon settings through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		Port:          envString(getenv, "PORT", "8080"),
		APIURL:        envString(getenv, "API_URL", "http://localhost:8000"),
		APIToken:      getenv("API_TOKEN"),
		UserID:        envString(getenv, "DASHBOARD_USER", "dashboard"),
		EventsChannel: envString(getenv, "TASK_EVENTS_CHANNEL", "task-events"),
		StorageConn:   getenv("STORAGE_CONNECTION_STRING"),
		SettingsTable: envString(getenv, "SETTINGS_TABLE", "DashboardSettings"),
		EventsQueue:   getenv("TASK_EVENTS_QUEUE"),
		AuthDomain:    getenv("AUTH0_DOMAIN"),
		AuthAudience:  getenv("AUTH0_AUDIENCE"),
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}

	var err error
	if cfg.RequestTimeout, err = envDuration(getenv, "REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = envDuration(getenv, "CACHE_TTL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyTTL, err = envDuration(getenv, "IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.JWKSCacheTTL, err = envDuration(getenv, "JWKS_CACHE_TTL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if conn := getenv("REDIS_CONNECTION_STRING"); conn != "" {
		cfg.Redis = parseRedisOptions(conn)
	}

	switch mode := strings.ToLower(getenv("LOCAL_AUTH_MODE")); mode {
	case "":
		if cfg.AuthDomain == "" || cfg.AuthAudience == "" {
			return cfg, errors.New("missing Auth0 config: set AUTH0_DOMAIN and AUTH0_AUDIENCE or LOCAL_AUTH_MODE=hs256")
		}
	case "hs256":
		cfg.LocalAuthKey = getenv("LOCAL_AUTH_SHARED_SECRET")
		if cfg.LocalAuthKey == "" {
			return cfg, errors.New("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
	default:
		return cfg, fmt.Errorf("unsupported LOCAL_AUTH_MODE value %q", mode)
	}
	return cfg, nil
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// parseRedisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" form.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
