package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jenkinslog/logsplit/internal/buildlog"
	"jenkinslog/logsplit/internal/config"
	"jenkinslog/logsplit/internal/db"
	"jenkinslog/logsplit/internal/graph"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "logsplit",
	Short: "Split Jenkins pipeline console logs by stage and parallel branch",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		zc := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to .logsplit.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// DiscoverRun finds the run location using priority: arg > env > walk-up
func DiscoverRun(args []string) (string, error) {
	// 1. Positional argument
	if len(args) > 0 && args[0] != "" {
		if _, err := os.Stat(args[0]); err != nil {
			return "", fmt.Errorf("run not found: %s", args[0])
		}
		return args[0], nil
	}

	// 2. Environment variable
	if envPath := os.Getenv("LOGSPLIT_RUN"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("run not found at LOGSPLIT_RUN: %s", envPath)
		}
		return envPath, nil
	}

	// 3. Walk up from CWD to a build directory
	dir, err := os.Getwd()
	if err == nil {
		for {
			if _, err := os.Stat(filepath.Join(dir, "log-index")); err == nil {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	return "", fmt.Errorf("no run given (pass a build directory or .zip, set LOGSPLIT_RUN, or run from a build directory)")
}

// pipeline is a located, loaded and classified run
type pipeline struct {
	run    *buildlog.Run
	loaded *buildlog.Loaded
	index  *graph.ShadowIndex
}

func (p *pipeline) Close() error {
	return p.run.Close()
}

// openPipeline discovers the run, loads it and builds its shadow index
func openPipeline(args []string) (*pipeline, error) {
	location, err := DiscoverRun(args)
	if err != nil {
		return nil, err
	}

	run, err := buildlog.Open(location)
	if err != nil {
		return nil, err
	}
	logger.Debug("located run",
		zap.String("location", location),
		zap.Int("records", len(run.Records)),
		zap.String("log", run.LogPath))

	loaded, err := run.Load(cfg.Fields, cfg.Kinds.Graph(), logger)
	if err != nil {
		run.Close()
		return nil, err
	}

	idx, err := graph.Classify(loaded.Registry, loaded.Tree, logger)
	if err != nil {
		run.Close()
		return nil, fmt.Errorf("classifying nodes: %w", err)
	}
	return &pipeline{run: run, loaded: loaded, index: idx}, nil
}

// OpenCatalog opens the run catalog, flag value first, then config. flag names
// the command's catalog flag for the error message.
func OpenCatalog(path, flag string) (*db.DB, error) {
	if path == "" {
		path = cfg.Catalog
	}
	if path == "" {
		return nil, fmt.Errorf("no catalog given (use --%s, set LOGSPLIT_CATALOG, or set catalog in %s)", flag, config.FileName)
	}
	return db.OpenDB(path)
}
