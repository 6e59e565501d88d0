// Package cli implements the pdfstamp command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/digitorus/pdfstamp/config"
	"github.com/digitorus/pdfstamp/internal/logging"
	"github.com/spf13/cobra"
)

// cfg and logger are set before any subcommand runs.
var (
	cfg    config.Config
	logger *slog.Logger
)

var osExit = os.Exit

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

// NewRootCmd returns the pdfstamp command tree.
func NewRootCmd() *cobra.Command {
	var o rootOptions
	root := &cobra.Command{
		Use:           "pdfstamp",
		Short:         "Place signature stamps on PDF documents",
		Long:          `Render PDF pages, locate signature fields and composite signer images onto them as incremental updates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "Config file (TOML); defaults are used when empty")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&o.logFormat, "log-format", "", "Override the log format (text, json)")

	root.AddCommand(
		newVersionCmd(),
		newInfoCmd(),
		newRenderCmd(),
		newLocateCmd(),
		newStampCmd(),
		newRunCmd(),
	)
	return root
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	c := config.Default()
	if o.configFile != "" {
		var err error
		if c, err = config.Load(o.configFile); err != nil {
			return err
		}
	}
	if o.logLevel != "" {
		c.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		c.Log.Format = o.logFormat
	}

	l, err := logging.New(c.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// Main runs the command line and exits non-zero on failure.
func Main() {
	if err := Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}
