// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"meowsense/internal/observe"
	"meowsense/internal/server"
	"meowsense/internal/transport"
	"meowsense/internal/transport/udp"
	applog "meowsense/internal/log"
	"meowsense/pkg/build"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classifier over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Address = addr
			}
			ctx := cmd.Context()

			info := build.Get()
			shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceName:    info.Name,
				ServiceVersion: info.Version,
			})
			if err != nil {
				return fmt.Errorf("failed to initialise telemetry: %w", err)
			}
			defer func() {
				if err := shutdown(context.WithoutCancel(ctx)); err != nil {
					applog.Warnf("Telemetry shutdown: %v", err)
				}
			}()

			c, closeModel, err := a.newClassifier()
			if err != nil {
				return err
			}
			defer closeModel()

			publishers, ws, err := a.transports()
			if err != nil {
				return err
			}
			defer publishers.Close()

			opts := server.Options{
				MaxUploadBytes:  a.cfg.Server.MaxUploadBytes,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
				Publisher:       publishers,
			}
			if ws != nil {
				opts.WebSocket = ws
			}
			return server.New(c, opts).ListenAndServe(ctx, a.cfg.Server.Address)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.address)")
	return cmd
}

// transports builds the configured result publishers.
func (a *app) transports() (transport.Fanout, *transport.WebSocketTransport, error) {
	var (
		fan transport.Fanout
		ws  *transport.WebSocketTransport
	)
	tc := a.cfg.Transport

	if tc.Log {
		fan = append(fan, transport.NewLoggingTransport())
	}
	if tc.WebSocketEnabled {
		ws = transport.NewWebSocketTransport()
		fan = append(fan, ws)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			fan.Close()
			return nil, nil, err
		}
		pub, err := udp.NewResultPublisher(sender)
		if err != nil {
			sender.Close()
			fan.Close()
			return nil, nil, err
		}
		fan = append(fan, pub)
	}
	return fan, ws, nil
}
