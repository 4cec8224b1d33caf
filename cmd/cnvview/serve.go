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
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/googlegenomics/cnvview/analytics"
	"github.com/googlegenomics/cnvview/api"
)

// serveCmd runs the view service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the CNV view API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.IntP("port", "p", 8080, "HTTP service port")
	flags.String("https-cert", "", "HTTPS certificate file")
	flags.String("https-key", "", "HTTPS key file")
	flags.Int("max-views", 256, "maximum number of open views")

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the server is
	// logged to Google via Google Analytics.
	//
	// This information helps Google determine how well the software is
	// performing and where improvements should be made.  No user identifying
	// information is ever sent to Google.
	flags.Bool("track-usage", false, "anonymous usage tracking")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newSource, err := newSourceFunc(ctx, c.Source)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	opts := []api.Option{api.WithLogger(log), api.WithMaxViews(c.Server.MaxViews)}
	if c.Server.TrackUsage {
		log.Info("Enabling anonymous usage tracking")

		client := analytics.NewClient(c.Server.PropertyID, "")
		track := func(hits []analytics.Hit) {
			if err := client.Send(context.Background(), hits); err != nil {
				log.WithError(err).Warnf("Failed to send %d hits to analytics", len(hits))
			}
		}
		router.Use(analytics.Middleware(track))
		opts = append(opts, api.WithTracker(func(hits []analytics.Hit) { go track(hits) }))
	}

	server := api.NewServer(newSource, opts...)
	defer server.Close()
	if len(c.Source.Buckets) > 0 {
		server.Whitelist(c.Source.Buckets)
	}
	server.Export(router)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Server.Port),
		Handler: router,
	}
	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"address": httpServer.Addr, "data": c.Source.Data}).Info("serving")
		if c.Server.HTTPSCert != "" {
			errc <- httpServer.ListenAndServeTLS(c.Server.HTTPSCert, c.Server.HTTPSKey)
		} else {
			errc <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server returned an error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs every request once it has been handled.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
