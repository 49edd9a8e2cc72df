package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Unknown policies decide how undecided positions are rendered in reports.
const (
	UnknownKeep     = "keep"
	UnknownNotNull  = "not-null"
	UnknownNullable = "nullable"
)

type Config struct {
	Project struct {
		Root   string   `yaml:"root" toml:"root"`
		Ignore []string `yaml:"ignore" toml:"ignore"`
	} `yaml:"project" toml:"project"`
	Storage struct {
		DB string `yaml:"db" toml:"db"`
	} `yaml:"storage" toml:"storage"`
	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`
	Debug struct {
		Enabled      bool `yaml:"enabled" toml:"enabled"`
		PrintSteps   bool `yaml:"print_steps" toml:"print_steps"`
		StrictShapes bool `yaml:"strict_shapes" toml:"strict_shapes"`
	} `yaml:"debug" toml:"debug"`
	Inference struct {
		Unknown string `yaml:"unknown" toml:"unknown"` // keep | not-null | nullable
		Workers int    `yaml:"workers" toml:"workers"`
		// Libraries are extra descriptor tables merged over the built-in one.
		Libraries []string `yaml:"libraries" toml:"libraries"`
	} `yaml:"inference" toml:"inference"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Storage.DB = ".nullinfer/nullinfer.db"
	cfg.Log.Level = "info"
	cfg.Inference.Unknown = UnknownKeep
	cfg.Inference.Workers = 4
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML or TOML config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	case strings.EqualFold(filepath.Ext(path), ".toml"):
		if err := toml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if db := os.Getenv("NULLINFER_DB"); db != "" {
		cfg.Storage.DB = db
	}
	if level := os.Getenv("NULLINFER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if debug := os.Getenv("NULLINFER_DEBUG"); debug != "" {
		on, err := strconv.ParseBool(debug)
		if err != nil {
			return nil, fmt.Errorf("invalid NULLINFER_DEBUG: %w", err)
		}
		cfg.Debug.Enabled = on
	}
	if workers := os.Getenv("NULLINFER_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid NULLINFER_WORKERS: %w", err)
		}
		cfg.Inference.Workers = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot honor.
func (c *Config) Validate() error {
	switch c.Inference.Unknown {
	case UnknownKeep, UnknownNotNull, UnknownNullable:
	case "":
		c.Inference.Unknown = UnknownKeep
	default:
		return fmt.Errorf("invalid inference.unknown %q", c.Inference.Unknown)
	}
	if c.Inference.Workers < 1 {
		c.Inference.Workers = 1
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Logger builds the process logger for the configured level.
func (c *Config) Logger() *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
