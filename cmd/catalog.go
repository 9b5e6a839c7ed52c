package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Product catalog commands",
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert products from a TOML seed file",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path, _ := cmd.Flags().GetString("file")
		count, err := catalog.SeedFromFile(ctx, deps.Catalog, path)
		if err != nil {
			return err
		}
		logging.Info(ctx, "catalog seeded", slog.String("file", path), slog.Int("products", count))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products from %s\n", count, path); err != nil {
			return errs.Wrap(err, "write output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSeedCmd)

	catalogSeedCmd.Flags().String("file", "", "TOML seed file")
	_ = catalogSeedCmd.MarkFlagRequired("file")
}
