package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/splitpdf/internal/apperr"
)

type Config struct {
	// Splitting
	Profile    string
	Profiles   Profiles
	OutputDir  string
	CheckEvery int
	MaxNameLen int
	Bookmarks  bool

	// Logging
	LogLevel string
	LogFile  string

	// Split service
	Port           string
	APIKey         string
	WorkDir        string
	WorkerCount    int
	MaxQueueSize   int
	MaxUploadBytes int64
	JobTTL         time.Duration

	profilesErr error
}

const (
	DefaultProfile    = "chatgpt"
	DefaultCheckEvery = 5
	DefaultMaxNameLen = 200
)

func Load() Config {
	cfg := Config{
		Profile:    envOr("SPLITPDF_PROFILE", DefaultProfile),
		Profiles:   DefaultProfiles(),
		OutputDir:  envOr("SPLITPDF_OUTPUT_DIR", "."),
		CheckEvery: envInt("SPLITPDF_CHECK_EVERY", DefaultCheckEvery),
		MaxNameLen: envInt("SPLITPDF_MAX_NAME_LEN", DefaultMaxNameLen),
		Bookmarks:  envBool("SPLITPDF_BOOKMARKS", true),

		LogLevel: envOr("SPLITPDF_LOG_LEVEL", "info"),
		LogFile:  os.Getenv("SPLITPDF_LOG_FILE"),

		Port:           envOr("PORT", "8091"),
		APIKey:         os.Getenv("SPLITPDF_API_KEY"),
		WorkDir:        envOr("SPLITPDF_WORK_DIR", filepath.Join(os.TempDir(), "splitpdf")),
		WorkerCount:    envInt("WORKER_COUNT", 2),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 50),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 512<<20),
		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = DefaultCheckEvery
	}
	if cfg.MaxNameLen <= 0 {
		cfg.MaxNameLen = DefaultMaxNameLen
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 512 << 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	// Broken overrides are kept so Validate can report them.
	if v := os.Getenv("SPLITPDF_PROFILES"); v != "" {
		extra, err := ParseProfiles(v)
		if err != nil {
			cfg.Profiles = nil
			cfg.profilesErr = err
		} else {
			cfg.Profiles = cfg.Profiles.Merge(extra)
		}
	}

	return cfg
}

// Validate checks the settings every split needs.
func (c Config) Validate() error {
	if c.profilesErr != nil {
		return c.profilesErr
	}
	if _, err := c.Profiles.Budget(c.Profile); err != nil {
		return err
	}
	if c.CheckEvery <= 0 {
		return apperr.Config("check cadence must be positive, got %d", c.CheckEvery)
	}
	if c.MaxNameLen <= 0 {
		return apperr.Config("max name length must be positive, got %d", c.MaxNameLen)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return apperr.Config("output directory is required")
	}
	return nil
}

// ValidateServer checks the settings of the split service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return apperr.Config("SPLITPDF_API_KEY is required")
	}
	if c.WorkDir == "" {
		return apperr.Config("SPLITPDF_WORK_DIR is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// String is used in startup logs; the API key is never printed.
func (c Config) String() string {
	return fmt.Sprintf("profile=%s output=%s check_every=%d bookmarks=%t", c.Profile, c.OutputDir, c.CheckEvery, c.Bookmarks)
}
