// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
)

// logSettings resolves CLI flags over environment variables. The bool
// reports whether anything was set explicitly.
func logSettings(cliLevel, cliFile, cliFormat string) (config.LoggerConfig, bool) {
	pick := func(flag, env string) string {
		if flag != "" {
			return flag
		}
		return os.Getenv(env)
	}
	cfg := config.LoggerConfig{
		Level:  pick(cliLevel, LogLevelEnvVar),
		File:   pick(cliFile, LogFileEnvVar),
		Format: pick(cliFormat, LogFormatEnvVar),
	}
	explicit := cfg != config.LoggerConfig{}
	cfg.SetDefaults()
	return cfg, explicit
}

// initLoggerFromCLI initializes the logger from CLI flags and environment variables.
// Priority: CLI flags > env vars > defaults
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	cfg, _ := logSettings(cliLevel, cliFile, cliFormat)
	return initLogger(cfg)
}

// applyConfigLogger re-initializes the logger from the config file's logger
// section when neither flags nor environment chose one.
func applyConfigLogger(cli *CLI, cfg *config.Config) (func(), error) {
	if _, explicit := logSettings(cli.LogLevel, cli.LogFile, cli.LogFormat); explicit {
		return nil, nil
	}
	return initLogger(cfg.Logger)
}

func initLogger(cfg config.LoggerConfig) (func(), error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var (
		output  io.Writer = os.Stderr
		cleanup func()
	)
	if cfg.File != "" {
		file, closeFn, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = file, closeFn
	}

	logger.Init(level, output, cfg.Format)
	return cleanup, nil
}
