// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meowsense/cmd"
	applog "meowsense/internal/log"
	"meowsense/pkg/build"
)

func main() {
	// Development builds run without ldflags; keep the dev defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info incomplete: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
