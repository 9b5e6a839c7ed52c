package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
)

var journeyCmd = &cobra.Command{
	Use:   "journey",
	Short: "Show the trace events of an SSCC or the flow of a consignment",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		code, _ := cmd.Flags().GetString("sscc")
		consignmentID, _ := cmd.Flags().GetString("consignment")

		switch {
		case strings.TrimSpace(code) != "":
			view, err := deps.Journey.Journey(ctx, code)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		case strings.TrimSpace(consignmentID) != "":
			graph, err := deps.Journey.ConsignmentFlow(ctx, consignmentID)
			if err != nil {
				return err
			}
			return printJSON(cmd, graph)
		default:
			return errors.New("one of --sscc or --consignment is required")
		}
	}),
}

func init() {
	rootCmd.AddCommand(journeyCmd)

	journeyCmd.Flags().String("sscc", "", "SSCC or SSCC URI")
	journeyCmd.Flags().String("consignment", "", "Consignment id")
	journeyCmd.MarkFlagsMutuallyExclusive("sscc", "consignment")
}
