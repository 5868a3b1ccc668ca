// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"

	"meowsense/internal/audio"
)

func newDevicesCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}
