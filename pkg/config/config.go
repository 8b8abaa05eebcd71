// Copyright (c) 2025, The Snail Authors.  All rights reserved.
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

// Package config loads agent configuration from YAML files and SNAIL_*
// environment overrides. Resolution order, highest first: environment,
// config file, built-in defaults.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/snailops/snail/pkg/defaults"
	snailerrors "github.com/snailops/snail/pkg/errors"
)

// DefaultPaths are searched in order when no explicit config path is given.
func DefaultPaths() []string {
	paths := []string{"/etc/snail/config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "snail", "config.yaml"))
	}
	return append(paths, "snail-config.yaml")
}

// Upload configures report delivery. Timeout is in seconds, matching the
// on-disk config format.
type Upload struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Enabled bool   `yaml:"enabled"`
	Timeout int    `yaml:"timeout" validate:"gt=0"`
	Retries uint64 `yaml:"retries" validate:"lte=20"`
}

// TimeoutDuration returns the per-attempt upload timeout.
func (u Upload) TimeoutDuration() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}

// Auth configures upload authentication.
type Auth struct {
	APIKey   string `yaml:"api_key"`
	CertPath string `yaml:"cert_path" validate:"omitempty,file"`
	KeyPath  string `yaml:"key_path" validate:"omitempty,file"`
	CAPath   string `yaml:"ca_path" validate:"omitempty,file"`
}

// Collection configures the collector run. Timeout is in seconds.
type Collection struct {
	EnabledCollectors  []string `yaml:"enabled_collectors"`
	DisabledCollectors []string `yaml:"disabled_collectors"`
	Timeout            int      `yaml:"timeout" validate:"gt=0"`
	Concurrency        int      `yaml:"concurrency" validate:"gte=0,lte=64"`
}

// TimeoutDuration returns the wall-clock bound for a full collection run.
func (c Collection) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Output configures local report handling.
type Output struct {
	Dir       string `yaml:"dir" validate:"required"`
	KeepLocal bool   `yaml:"keep_local"`
	Compress  bool   `yaml:"compress"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// Privacy configures redaction and anonymization.
type Privacy struct {
	AnonymizeHostnames bool `yaml:"anonymize_hostnames"`
	RedactPasswords    bool `yaml:"redact_passwords"`

	// ExcludePaths drops matching top-level fact keys from every report
	// category ('*substr*' for substring match, otherwise exact).
	ExcludePaths []string `yaml:"exclude_paths"`
}

// Config is the resolved agent configuration.
type Config struct {
	Upload     Upload     `yaml:"upload"`
	Auth       Auth       `yaml:"auth"`
	Collection Collection `yaml:"collection"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
	Privacy    Privacy    `yaml:"privacy"`

	// Source is the config file the values came from, empty when running
	// on defaults only.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Upload: Upload{
			Enabled: true,
			Timeout: int(defaults.UploadTimeout / time.Second),
			Retries: defaults.UploadRetries,
		},
		Collection: Collection{
			Timeout: int(defaults.RunTimeout / time.Second),
		},
		Output: Output{
			Dir:      "/var/lib/snail",
			Compress: true,
		},
		Logging: Logging{
			Level: "info",
		},
		Privacy: Privacy{
			RedactPasswords: true,
		},
	}
}

// Load resolves configuration. An empty path searches the default
// locations; a missing file at an explicit path is an error, a missing
// default file is not.
func Load(path string) (*Config, error) {
	// A .env file in the working directory feeds the SNAIL_* overrides,
	// matching how the agent runs under systemd EnvironmentFile.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env file")
	}

	cfg := Default()

	explicit := path != ""
	candidates := []string{path}
	if !explicit {
		candidates = DefaultPaths()
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		b, err := os.ReadFile(candidate)
		if err != nil {
			if explicit {
				return nil, snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
					"failed to read config file", err)
			}
			continue
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, snailerrors.WrapWithContext(snailerrors.ErrCodeConfigInvalid,
				"failed to parse config file", err, map[string]any{"path": candidate})
		}
		cfg.Source = candidate
		break
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides maps SNAIL_* variables onto config fields.
func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			switch strings.ToLower(v) {
			case "true", "1", "yes":
				*dst = true
			default:
				*dst = false
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	setString("SNAIL_UPLOAD_URL", &c.Upload.URL)
	setBool("SNAIL_UPLOAD_ENABLED", &c.Upload.Enabled)
	setInt("SNAIL_UPLOAD_TIMEOUT", &c.Upload.Timeout)
	setString("SNAIL_API_KEY", &c.Auth.APIKey)
	setString("SNAIL_AUTH_CERT", &c.Auth.CertPath)
	setString("SNAIL_AUTH_KEY", &c.Auth.KeyPath)
	setString("SNAIL_AUTH_CA", &c.Auth.CAPath)
	setString("SNAIL_OUTPUT_DIR", &c.Output.Dir)
	setString("SNAIL_LOG_LEVEL", &c.Logging.Level)
	setString("SNAIL_LOG_FILE", &c.Logging.File)
}

// Validate checks structural invariants beyond what parsing enforces.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
			"invalid configuration", err)
	}

	// Client certs come in pairs.
	if (c.Auth.CertPath == "") != (c.Auth.KeyPath == "") {
		return snailerrors.New(snailerrors.ErrCodeConfigInvalid,
			"auth cert_path and key_path must both be set for mutual TLS")
	}
	// An empty upload url is fine until an upload is actually attempted;
	// the defaults must resolve cleanly on a host with no config file.
	return nil
}

// Save writes the configuration back to path, creating parent directories.
// Used to persist a server-issued API key.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
			"failed to create config directory", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to serialize config", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
			"failed to write config file", err)
	}
	return nil
}

// Redacted returns a copy safe for status output, with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.APIKey != "" {
		out.Auth.APIKey = "***"
	}
	return &out
}
