// Package main is the entry point for the meshterm model viewer.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/config"
	"github.com/sfenley/meshterm/internal/logger"
	"github.com/sfenley/meshterm/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// File-only logging: stdout carries frames and stderr shares the tty.
	fileCfg := logger.DefaultFileConfig(cfg.Logging.LogFile)
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, false); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== meshterm ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if cfg.Model.Path == "" {
		fmt.Fprintln(os.Stderr, "Usage: meshterm [flags] <model.gltf|model.glb>")
		os.Exit(1)
	}

	v, err := viewer.New(cfg)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
