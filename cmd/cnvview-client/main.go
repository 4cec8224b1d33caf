// Copyright 2017 Google Inc.
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

// This binary renders charts through a CNV view server, authenticating with
// Google application default credentials.
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

var (
	server     = flag.String("server", "http://localhost:8080", "view server URL")
	sample     = flag.String("s", "", "sample identifier")
	algorithm  = flag.String("a", "baseline", "calling algorithm")
	chromosome = flag.String("c", "", "chromosome, empty for all chromosomes")
	format     = flag.String("f", "png", "image format")
	boxplot    = flag.Bool("boxplot", false, "fetch the box plot instead of the chart")
	output     = flag.String("o", "", "output filename")
	anonymous  = flag.Bool("anonymous", false, "do not send credentials")
	timeout    = flag.Duration("timeout", 2*time.Minute, "how long to wait for the chart")
)

func main() {
	flag.Parse()
	if *sample == "" {
		log.Fatalf("You must specify a sample with -s.")
	}

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()

		w = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}

	httpClient := http.DefaultClient
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		httpClient = c
	}
	if !*anonymous {
		var err error
		httpClient, err = google.DefaultClient(ctx, scope)
		if err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
	}

	c := &client{base: strings.TrimSuffix(*server, "/"), http: httpClient}
	id, err := c.createView(ctx)
	if err != nil {
		log.Fatalf("Failed to create view: %v", err)
	}
	defer c.deleteView(context.Background(), id)

	generation, err := c.submit(ctx, id, *sample, *algorithm, *chromosome)
	if err != nil {
		log.Fatalf("Failed to submit load request: %v", err)
	}
	log.Printf("Loading %s/%s as generation %d of view %s", *sample, *algorithm, generation, id)

	if err := c.wait(ctx, id, generation, time.Second); err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	kind := "plot"
	if *boxplot {
		kind = "boxplot"
	}
	n, err := c.fetchImage(ctx, id, kind, *format, w)
	if err != nil {
		log.Fatalf("Failed to fetch image: %v", err)
	}
	log.Printf("Wrote %s", humanSize(n))
}

// client talks to the view API.
type client struct {
	base string
	http *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body interface{}, want int) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	if resp.StatusCode != want {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

func (c *client) decode(ctx context.Context, method, path string, body interface{}, want int, v interface{}) error {
	resp, err := c.do(ctx, method, path, body, want)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}
	return nil
}

func (c *client) createView(ctx context.Context) (string, error) {
	var v struct {
		ID string `json:"id"`
	}
	if err := c.decode(ctx, "POST", "/views", nil, http.StatusCreated, &v); err != nil {
		return "", err
	}
	return v.ID, nil
}

func (c *client) deleteView(ctx context.Context, id string) {
	resp, err := c.do(ctx, "DELETE", "/views/"+id, nil, http.StatusNoContent)
	if err != nil {
		log.Printf("Failed to delete view %s: %v", id, err)
		return
	}
	resp.Body.Close()
}

func (c *client) submit(ctx context.Context, id, sample, algorithm, chromosome string) (uint64, error) {
	body := map[string]string{
		"sample":     sample,
		"algorithm":  algorithm,
		"chromosome": chromosome,
	}
	var v struct {
		Generation uint64 `json:"generation"`
	}
	if err := c.decode(ctx, "POST", "/views/"+id+"/requests", body, http.StatusAccepted, &v); err != nil {
		return 0, err
	}
	return v.Generation, nil
}

type generationStatus struct {
	Generation uint64 `json:"generation"`
	State      string `json:"state"`
	Error      string `json:"error"`
}

// wait polls the view until generation has been published or has failed.
func (c *client) wait(ctx context.Context, id string, generation uint64, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var v struct {
			History []generationStatus `json:"history"`
		}
		if err := c.decode(ctx, "GET", "/views/"+id, nil, http.StatusOK, &v); err != nil {
			return err
		}
		for _, status := range v.History {
			if status.Generation != generation {
				continue
			}
			switch status.State {
			case "published":
				return nil
			case "failed":
				return errors.New(status.Error)
			case "superseded":
				return fmt.Errorf("generation %d was superseded", generation)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *client) fetchImage(ctx context.Context, id, kind, format string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/views/%s/%s/%s", id, kind, format), nil, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copying image: %v", err)
	}
	return n, nil
}

func humanSize(n int64) string {
	kb := n / 1024
	mb := kb / 1024
	if mb > 1 {
		return fmt.Sprintf("%d MB", mb)
	}
	if kb > 1 {
		return fmt.Sprintf("%d KB", kb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized, http.StatusTooManyRequests:
		v := make(map[string]string)
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return fmt.Errorf("%s: parsing response body: %v", resp.Status, err)
		}
		if message, ok := v["message"]; ok {
			return fmt.Errorf("%s: %v", v["error"], message)
		}
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
