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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/googlegenomics/cnvview/api"
	"github.com/googlegenomics/cnvview/internal/config"
	"github.com/googlegenomics/cnvview/internal/logging"
	"github.com/googlegenomics/cnvview/sources"
	"github.com/googlegenomics/cnvview/sources/file"
	"github.com/googlegenomics/cnvview/sources/gcs"
)

var (
	settings = viper.New()
	log      = logrus.StandardLogger()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "cnvview",
	Short:         "View copy-number variation calls of embryo samples",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		v, err := config.New(path)
		if err != nil {
			return err
		}
		for key, flag := range boundFlags {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		settings = v
		return logging.Setup(log, os.Stderr, v.GetString("log.level"), v.GetString("log.format"))
	},
}

// boundFlags maps settings keys to the flags that override them.
var boundFlags = map[string]string{
	"source.data":        "data",
	"source.credentials": "credentials",
	"source.buckets":     "buckets",
	"log.level":          "log-level",
	"log.format":         "log-format",
	"server.port":        "port",
	"server.https-cert":  "https-cert",
	"server.https-key":   "https-key",
	"server.max-views":   "max-views",
	"server.track-usage": "track-usage",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "settings file (YAML)")
	flags.StringP("data", "d", ".", "directory or gs://bucket/prefix holding the sample files")
	flags.String("credentials", "public", `GCS credentials: "public", "default" or "bearer"`)
	flags.StringSlice("buckets", nil, "if set, restricts reads to these buckets")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", `log format: "text" or "json"`)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadConfig decodes the settings of the running command.
func loadConfig() (config.Config, error) {
	return config.Load(settings)
}

// newSourceFunc returns the function building the source of each request.
// A nil request is passed by commands that run outside of the server.
func newSourceFunc(ctx context.Context, c config.SourceConfig) (api.NewSourceFunc, error) {
	if !c.IsGCS() {
		source := file.New(c.Data)
		return func(*http.Request) (sources.Source, error) { return source, nil }, nil
	}

	bucket, prefix, err := gcs.ParseLocation(c.Data)
	if err != nil {
		return nil, err
	}
	if c.Credentials == "bearer" {
		return func(req *http.Request) (sources.Source, error) {
			if req == nil {
				return nil, errors.New("bearer credentials are only available to the server")
			}
			client, err := gcs.NewClientFromBearerToken(req)
			if err != nil {
				return nil, err
			}
			return gcs.New(client, bucket, prefix), nil
		}, nil
	}

	var (
		once   sync.Once
		source sources.Source
		srcErr error
	)
	return func(*http.Request) (sources.Source, error) {
		once.Do(func() {
			var client gcs.Client
			if c.Credentials == "default" {
				client, srcErr = gcs.NewDefaultClient(ctx)
			} else {
				client, srcErr = gcs.NewPublicClient(ctx)
			}
			if srcErr == nil {
				source = gcs.New(client, bucket, prefix)
			}
		})
		if srcErr != nil {
			return nil, fmt.Errorf("creating GCS source: %w", srcErr)
		}
		return source, nil
	}, nil
}
