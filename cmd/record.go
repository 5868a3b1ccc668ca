// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meowsense/internal/audio"
	applog "meowsense/internal/log"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		savePath string
		device   int
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a clip from the microphone and classify it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("device") {
				a.cfg.Capture.InputDevice = device
			}
			if cmd.Flags().Changed("duration") {
				a.cfg.Capture.Duration = duration
			}

			c, closeModel, err := a.newClassifier()
			if err != nil {
				return err
			}
			defer closeModel()

			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			rec, err := audio.NewRecorder(a.cfg.CaptureOptions())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("Listening for %s... (Ctrl+C to stop early)", a.cfg.Capture.Duration)))

			sig, err := rec.Record(cmd.Context())
			if err != nil {
				return err
			}

			if savePath != "" {
				if err := audio.SaveWAV(savePath, sig); err != nil {
					return fmt.Errorf("failed to save recording: %w", err)
				}
				applog.Infof("Recording saved to %s", savePath)
			}

			// A cancelled recording is still classified.
			ctx := cmd.Context()
			if errors.Is(ctx.Err(), context.Canceled) {
				ctx = context.WithoutCancel(ctx)
			}
			res, err := c.Classify(ctx, sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderResult("Microphone", res, c.Labels()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&savePath, "save", "o", "", "Also write the clip to this WAV file")
	cmd.Flags().IntVarP(&device, "device", "d", audio.DefaultDevice,
		"Input device ID. Use 'devices' to see available devices.")
	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "Clip length")
	return cmd
}
