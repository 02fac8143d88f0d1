// Package config loads logsplit settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"jenkinslog/logsplit/internal/graph"
	"jenkinslog/logsplit/internal/workflow"
)

// FileName is the config file looked up from the working directory upwards.
const FileName = ".logsplit.yaml"

// Config holds all logsplit settings.
type Config struct {
	// Output directory for split logs
	Target string `yaml:"target"`

	// Number of output files written concurrently
	Jobs int `yaml:"jobs"`

	// debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// Optional SQLite run catalog
	Catalog string `yaml:"catalog"`

	// Key paths inside workflow records
	Fields workflow.FieldPaths `yaml:"fields"`

	// Step kinds opening stages and parallel branches
	Kinds KindsConfig `yaml:"kinds"`
}

// KindsConfig names the stage and parallel step kinds.
type KindsConfig struct {
	Stage    string `yaml:"stage"`
	Parallel string `yaml:"parallel"`
}

// Graph converts to the classifier's representation.
func (k KindsConfig) Graph() graph.Kinds {
	return graph.Kinds{Stage: k.Stage, Parallel: k.Parallel}
}

// Default returns the built-in configuration.
func Default() Config {
	kinds := graph.DefaultKinds()
	target, err := os.Getwd()
	if err != nil {
		target = "."
	}
	return Config{
		Target:   target,
		Jobs:     1,
		LogLevel: "info",
		Fields:   workflow.DefaultFieldPaths(),
		Kinds:    KindsConfig{Stage: kinds.Stage, Parallel: kinds.Parallel},
	}
}

// Load builds the configuration. Priority: env vars > file > defaults. path
// names the file explicitly; when empty LOGSPLIT_CONFIG is used, then the
// first .logsplit.yaml found walking up from the working directory. A missing
// discovered file is not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("LOGSPLIT_CONFIG"); env != "" {
			path = env
			explicit = true
		} else {
			path = Discover()
		}
	}

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Discover walks up from the working directory looking for FileName.
func Discover() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	// yaml leaves fields absent from the file untouched
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv("LOGSPLIT_TARGET"); v != "" {
		c.Target = v
	}
	if v := os.Getenv("LOGSPLIT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGSPLIT_JOBS: %w", err)
		}
		c.Jobs = n
	}
	if v := os.Getenv("LOGSPLIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOGSPLIT_CATALOG"); v != "" {
		c.Catalog = v
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Fields.StepKind == "" || c.Fields.ParentID == "" {
		return fmt.Errorf("fields.step_kind and fields.parent_id must be set")
	}
	if c.Kinds.Stage == "" || c.Kinds.Parallel == "" {
		return fmt.Errorf("kinds.stage and kinds.parallel must be set")
	}
	return nil
}
