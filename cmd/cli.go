// SPDX-License-Identifier: MIT

// Package cmd implements the command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"meowsense/internal/classify"
	"meowsense/internal/config"
	"meowsense/internal/inference"
	applog "meowsense/internal/log"
	"meowsense/pkg/build"
)

// model is an inference adapter that owns native resources.
type model interface {
	inference.Adapter
	Close() error
}

// openModel loads the classifier model. Tests replace it.
var openModel = func(cfg inference.ONNXConfig) (model, error) {
	a, err := inference.NewONNXAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	modelPath  string
	logLevel   string
	verbose    bool

	cfg *config.Config
}

// Execute runs the CLI with args until it finishes or ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	buildInfo := build.Get()
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "f", "",
		"Path to a YAML config file (default: ./config.yaml when present)")
	flags.StringVarP(&a.modelPath, "model", "m", "",
		"Path to the ONNX model, overrides model.path")
	flags.StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	flags.BoolVarP(&a.verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")

	rootCmd.AddCommand(
		newClassifyCmd(a),
		newRecordCmd(a),
		newServeCmd(a),
		newDevicesCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads configuration and applies the persistent flags on top.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("model") {
		cfg.Model.Path = a.modelPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}

	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	if a.verbose {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	a.cfg = cfg
	return nil
}

// newClassifier opens the model and builds the pipeline. The returned
// function releases the model.
func (a *app) newClassifier() (*classify.Classifier, func() error, error) {
	labels, err := a.cfg.LabelTable()
	if err != nil {
		return nil, nil, err
	}
	m, err := openModel(a.cfg.ONNXOptions())
	if err != nil {
		return nil, nil, err
	}
	c, err := classify.New(a.cfg.PipelineOptions(), m, labels)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return c, m.Close, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.Get())
			return err
		},
	}
}
