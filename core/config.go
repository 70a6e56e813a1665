package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds runtime settings for the client.
type Config struct {
	APIURL         string        // base URL of the catalog API
	Origin         string        // Origin header; also scopes the Redis session key
	SessionBackend string        // file, redis or memory
	SessionFile    string        // sealed session file for the file backend
	SessionKey     string        // secret the session file keys are derived from
	RedisURL       string        // redis://host:port/db for the redis backend
	LogDir         string        // directory to write client logs
	PollInterval   time.Duration // session re-validation interval of a mounted screen
	RequestTimeout time.Duration // per-request HTTP timeout
}

// Load populates Config from environment variables with sane defaults.
func Load() Config {
	apiURL := firstNonEmpty(os.Getenv("API_URL"), "http://localhost:3000")
	return Config{
		APIURL:         apiURL,
		Origin:         firstNonEmpty(os.Getenv("API_ORIGIN"), apiURL),
		SessionBackend: firstNonEmpty(os.Getenv("SESSION_BACKEND"), BackendFile),
		SessionFile:    firstNonEmpty(os.Getenv("SESSION_FILE"), defaultSessionFile()),
		SessionKey:     firstNonEmpty(os.Getenv("SESSION_KEY"), "change-this-session-key"),
		RedisURL:       firstNonEmpty(os.Getenv("REDIS_URL"), "redis://localhost:6379/0"),
		LogDir:         firstNonEmpty(os.Getenv("LOG_DIR"), filepath.Join(os.TempDir(), "kakariko")),
		PollInterval:   time.Duration(intFromEnv("POLL_INTERVAL_SEC", int(DefaultPollInterval/time.Second))) * time.Second,
		RequestTimeout: time.Duration(intFromEnv("REQUEST_TIMEOUT_SEC", 15)) * time.Second,
	}
}

// fileConfig mirrors Config in the YAML file; unset keys keep the current value.
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	Origin         string `yaml:"origin"`
	SessionBackend string `yaml:"session_backend"`
	SessionFile    string `yaml:"session_file"`
	SessionKey     string `yaml:"session_key"`
	RedisURL       string `yaml:"redis_url"`
	LogDir         string `yaml:"log_dir"`
	PollInterval   string `yaml:"poll_interval"`
	RequestTimeout string `yaml:"request_timeout"`
}

// LoadFile overlays the YAML file at path on base. A missing file is not an
// error.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := base
	cfg.APIURL = firstNonEmpty(fc.APIURL, cfg.APIURL)
	cfg.Origin = firstNonEmpty(fc.Origin, cfg.Origin)
	cfg.SessionBackend = firstNonEmpty(fc.SessionBackend, cfg.SessionBackend)
	cfg.SessionFile = firstNonEmpty(fc.SessionFile, cfg.SessionFile)
	cfg.SessionKey = firstNonEmpty(fc.SessionKey, cfg.SessionKey)
	cfg.RedisURL = firstNonEmpty(fc.RedisURL, cfg.RedisURL)
	cfg.LogDir = firstNonEmpty(fc.LogDir, cfg.LogDir)
	if fc.PollInterval != "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return base, fmt.Errorf("poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return base, fmt.Errorf("request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return cfg, nil
}

// OpenPersister builds the session persister selected by cfg. The returned
// closer releases backend connections and is never nil.
func OpenPersister(cfg Config) (Persister, io.Closer, error) {
	switch strings.ToLower(cfg.SessionBackend) {
	case BackendMemory:
		return nil, nopCloser{}, nil
	case BackendRedis:
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisPersister(client, cfg.Origin), client, nil
	case BackendFile, "":
		p, err := NewFilePersister(cfg.SessionFile, cfg.SessionKey)
		if err != nil {
			return nil, nil, err
		}
		return p, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "kakariko", SessionStorageKey)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// intFromEnv reads an int from env var name, falling back to defaultVal when empty or invalid.
func intFromEnv(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
