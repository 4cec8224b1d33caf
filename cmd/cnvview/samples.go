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
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/googlegenomics/cnvview/sources"
)

// samplesCmd lists the samples found in the data location.
var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the samples and their algorithms",
	Args:  cobra.NoArgs,
	RunE:  runSamples,
}

func init() {
	samplesCmd.Flags().Bool("json", false, "print the catalog as JSON")
	samplesCmd.Flags().String("sample", "", "only print the algorithms with results for this sample")
	rootCmd.AddCommand(samplesCmd)
}

func runSamples(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	newSource, err := newSourceFunc(ctx, c.Source)
	if err != nil {
		return err
	}
	source, err := newSource(nil)
	if err != nil {
		return err
	}
	if sample, _ := cmd.Flags().GetString("sample"); sample != "" {
		algorithms, err := sampleAlgorithms(ctx, source, sample)
		if err != nil {
			return fmt.Errorf("listing %s: %w", c.Source.Data, err)
		}
		for _, algorithm := range algorithms {
			fmt.Println(algorithm)
		}
		return nil
	}

	samples, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("listing %s: %w", c.Source.Data, err)
	}
	log.Debugf("found %d samples", len(samples))

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(samples)
	}
	return printSamples(samples)
}

func printSamples(samples []sources.Sample) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tFLOWCELL\tCYCLE\tEMBRYO\tALGORITHMS")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Flowcell, s.Cycle, s.Embryo, strings.Join(s.Algorithms, ","))
	}
	return w.Flush()
}

// sampleAlgorithms returns the algorithms that have results for sample.
// Sources that can probe a single sample are asked directly; the others
// are listed in full.
func sampleAlgorithms(ctx context.Context, source sources.Source, sample string) ([]string, error) {
	if s, ok := source.(interface{ Algorithms(string) []string }); ok {
		return s.Algorithms(sample), nil
	}
	samples, err := source.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if s.ID == sample {
			return s.Algorithms, nil
		}
	}
	return nil, nil
}
