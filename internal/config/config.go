// Copyright 2026 The tinyOS Authors.
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

// Package config binds the kernel's tunable constants to env vars and an
// optional YAML file via spf13/viper, grounded on gcsfuse's cmd/root.go
// (viper defaults + config file unmarshal). No per-setting command-line
// flags are bound.
// Defaults match the constants spec.md §6 calls out to preserve.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the kernel's tunable surface. Every field defaults to the
// value spec.md names; a host program may override any of them from a
// YAML file (cmd/tinyosctl's --config flag names one) or environment
// variables (TINYOS_*).
type Config struct {
	MaxProc        int `mapstructure:"max_proc"`
	MaxFileID      int `mapstructure:"max_file_id"`
	MaxPort        int `mapstructure:"max_port"`
	PipeBufferSize int `mapstructure:"pipe_buffer_size"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
}

// Defaults returns the spec-mandated constants (spec.md §6: "Constants to
// preserve: PIPE_BUFFER_SIZE = 8200, MAX_PROC, MAX_FILEID, MAX_PORT").
func Defaults() Config {
	return Config{
		MaxProc:        128,
		MaxFileID:      16,
		MaxPort:        1024,
		PipeBufferSize: 8200,
		LogLevel:       "INFO",
		LogFormat:      "text",
	}
}

// Load reads defaults, then an optional YAML file at path (if non-empty),
// then TINYOS_-prefixed environment variables, in that order of
// increasing precedence — the same layering gcsfuse's root.go applies
// with viper.SetDefault / SetConfigFile / AutomaticEnv.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TINYOS")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("max_proc", d.MaxProc)
	v.SetDefault("max_file_id", d.MaxFileID)
	v.SetDefault("max_port", d.MaxPort)
	v.SetDefault("pipe_buffer_size", d.PipeBufferSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
