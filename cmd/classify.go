// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meowsense/internal/audio"
	"meowsense/internal/classify"
	applog "meowsense/internal/log"
)

type fileResult struct {
	File string `json:"file"`
	classify.Result
}

func newClassifyCmd(a *app) *cobra.Command {
	var (
		asJSON      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Classify WAV or MP3 files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			c, closeModel, err := a.newClassifier()
			if err != nil {
				return err
			}
			defer closeModel()

			results := make([]fileResult, len(files))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i, path := range files {
				g.Go(func() error {
					sig, err := decodeFile(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					res, err := c.Classify(ctx, sig)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					res.ID = uuid.NewString()
					results[i] = fileResult{File: path, Result: res}
					applog.Debugf("Classified %s as %s (%d%%)", path, res.Label, res.Confidence)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, r := range results {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			for _, r := range results {
				fmt.Fprintln(out, renderResult(r.File, r.Result, c.Labels()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON result per line")
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", runtime.NumCPU(), "Files classified in parallel")
	return cmd
}

func decodeFile(path string) (audio.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Signal{}, err
	}
	defer f.Close()
	return audio.Decode(f)
}
