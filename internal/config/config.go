// Package config loads the Bookyo platform outputs document.
//
// The document is a JSON file generated alongside the managed backend:
// API endpoint and key, auth endpoint and client id, storage bucket
// coordinates, plus local paths and tuning knobs for the client core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// APIConfig holds the GraphQL data API coordinates.
type APIConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
	Realtime string `json:"realtimeEndpoint,omitempty"`
}

// AuthConfig holds the managed auth service coordinates.
type AuthConfig struct {
	Endpoint string `json:"endpoint"`
	ClientID string `json:"clientId"`
}

// StorageConfig holds the object storage bucket coordinates.
type StorageConfig struct {
	Endpoint       string `json:"endpoint"`
	Bucket         string `json:"bucket"`
	Region         string `json:"region"`
	AccessKey      string `json:"accessKey"`
	SecretKey      string `json:"secretKey"`
	ForcePathStyle bool   `json:"forcePathStyle,omitempty"`
}

// ConnectivityConfig tunes the network reachability probes.
type ConnectivityConfig struct {
	ProbeAddrs          []string `json:"probeAddrs,omitempty"`
	PollIntervalSeconds int      `json:"pollIntervalSeconds,omitempty"`
	DialTimeoutSeconds  int      `json:"dialTimeoutSeconds,omitempty"`
}

// WorkerConfig tunes the background retry scheduler.
type WorkerConfig struct {
	InitialBackoffSeconds int `json:"initialBackoffSeconds,omitempty"`
}

// Config is the full outputs document.
type Config struct {
	API          APIConfig          `json:"api"`
	Auth         AuthConfig         `json:"auth"`
	Storage      StorageConfig      `json:"storage"`
	DataDir      string             `json:"dataDir,omitempty"`
	CacheDir     string             `json:"cacheDir,omitempty"`
	Connectivity ConnectivityConfig `json:"connectivity,omitempty"`
	Worker       WorkerConfig       `json:"worker,omitempty"`
}

// Load reads and validates a config file. BOOKYO_* environment
// variables override the document, then defaults fill everything
// optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides document values from the environment. Secrets are
// the main use: deployments keep them out of the outputs file.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOOKYO_API_ENDPOINT"); v != "" {
		c.API.Endpoint = v
	}
	if v := os.Getenv("BOOKYO_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("BOOKYO_AUTH_ENDPOINT"); v != "" {
		c.Auth.Endpoint = v
	}
	if v := os.Getenv("BOOKYO_STORAGE_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("BOOKYO_STORAGE_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("BOOKYO_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("BOOKYO_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDir("bookyo")
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir("bookyo")
	}
	if len(c.Connectivity.ProbeAddrs) == 0 {
		c.Connectivity.ProbeAddrs = []string{"1.1.1.1:443", "8.8.8.8:443"}
	}
	if c.Connectivity.PollIntervalSeconds <= 0 {
		c.Connectivity.PollIntervalSeconds = 5
	}
	if c.Connectivity.DialTimeoutSeconds <= 0 {
		c.Connectivity.DialTimeoutSeconds = 3
	}
	if c.Worker.InitialBackoffSeconds <= 0 {
		c.Worker.InitialBackoffSeconds = 15
	}
}

func (c *Config) validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("config: api.endpoint is required")
	}
	if c.Auth.Endpoint == "" {
		return fmt.Errorf("config: auth.endpoint is required")
	}
	if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
		return fmt.Errorf("config: storage.endpoint and storage.bucket are required")
	}
	return nil
}

// PollInterval returns the connectivity poll interval as a duration.
func (c *ConnectivityConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// DialTimeout returns the probe dial timeout as a duration.
func (c *ConnectivityConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay as a duration.
func (c *WorkerConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffSeconds) * time.Second
}

func defaultDir(app string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + app
	}
	return dir + string(os.PathSeparator) + app
}

func defaultCacheDir(app string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "." + app + "-cache"
	}
	return dir + string(os.PathSeparator) + app
}
