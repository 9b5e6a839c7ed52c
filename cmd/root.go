/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pharmatrace",
	Short: "Pharmaceutical container hierarchy and traceability engine",
	Long: `pharmatrace tracks cases packed into packages and packages into shipments,
each labelled with an SSCC. It imports supplier consignments, records every
pack, unpack and repack, and rebuilds the journey of any container.`,
	SilenceUsage: true,
}

// Execute runs the command line. Until a command loads its config, log lines
// go to stderr at PT_LOG_LEVEL in PT_LOG_FORMAT.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := logging.New(rootCmd.ErrOrStderr(), os.Getenv("PT_LOG_FORMAT"), os.Getenv("PT_LOG_LEVEL"))
	ctx = logging.WithAttrs(logging.WithLogger(ctx, logger), slog.String("app", "pharmatrace"))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command failed", slog.Any("err", errs.Loggable(err)))
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default config.yaml in ./configs or .)")
	flags.Uint64("actor-id", 1, "user id recorded on packs, unpacks, repacks and imports")
	flags.String("actor-type", "manufacturer", "actor type recorded with the actor id")
}
