// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the settings of the cnvview binary.  Settings are
// read by viper from a YAML file, CNVVIEW_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "CNVVIEW"

// SourceConfig selects where sample files are read from.
type SourceConfig struct {
	// a local directory, or a gs://bucket/prefix location
	Data string `mapstructure:"data"`

	// for GCS: "public", "default" (application default credentials) or
	// "bearer" (forward the client's bearer token)
	Credentials string `mapstructure:"credentials"`

	// if set, restricts GCS reads to these buckets
	Buckets []string `mapstructure:"buckets"`
}

// ServerConfig is used by the serve command.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	HTTPSCert string `mapstructure:"https-cert"`
	HTTPSKey  string `mapstructure:"https-key"`

	// the maximum number of views open at the same time
	MaxViews int `mapstructure:"max-views"`

	// anonymous usage tracking through Google Analytics
	TrackUsage bool   `mapstructure:"track-usage"`
	PropertyID string `mapstructure:"property-id"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the root-level settings struct.
type Config struct {
	Source SourceConfig `mapstructure:"source"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// SetDefaults registers the default settings with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.data", ".")
	v.SetDefault("source.credentials", "public")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max-views", 256)
	v.SetDefault("server.property-id", "UA-103022118-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with the defaults registered and the
// environment bound.  If file is not empty it is read as the settings
// file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading settings file %s: %w", file, err)
		}
	}
	return v, nil
}

// Load decodes the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	switch c.Source.Credentials {
	case "public", "default", "bearer":
	default:
		return fmt.Errorf("unknown credentials %q", c.Source.Credentials)
	}
	if (c.Server.HTTPSCert == "") != (c.Server.HTTPSKey == "") {
		return errors.New("both https-cert and https-key are required for HTTPS")
	}
	if c.Source.Credentials == "bearer" && c.Server.HTTPSCert == "" {
		return errors.New("forwarding bearer tokens requires HTTPS")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// IsGCS reports whether the data location refers to a GCS bucket.
func (c SourceConfig) IsGCS() bool {
	return strings.HasPrefix(c.Data, "gs://")
}
