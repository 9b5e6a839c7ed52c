/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the hierarchy, trace and consignment tables",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := deps.App.Config.Database

		if err := deps.App.InitSchema(ctx); err != nil {
			return errs.Wrapf(err, "initialize %s schema", cfg.Driver)
		}
		if err := deps.App.Ping(ctx); err != nil {
			return err
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Driver)
		return errs.Wrap(err, "write init-db output")
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
