package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/usecase/consignment"
)

var consignmentCmd = &cobra.Command{
	Use:   "consignment",
	Short: "Consignment commands",
}

var consignmentSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the import message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema, err := consignment.PayloadSchema()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(schema)); err != nil {
			return errs.Wrap(err, "write schema")
		}
		return nil
	},
}

var consignmentShowCmd = &cobra.Command{
	Use:   "show <consignment-id>",
	Short: "Show an imported consignment with its batches",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		record, err := deps.Consignments.Get(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		return printJSON(cmd, record)
	}),
}

func init() {
	rootCmd.AddCommand(consignmentCmd)
	consignmentCmd.AddCommand(consignmentSchemaCmd, consignmentShowCmd)
}
