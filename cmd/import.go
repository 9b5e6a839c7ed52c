package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/usecase/consignment"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one consignment JSON file",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return errors.New("--file is required")
		}

		var r io.Reader = cmd.InOrStdin()
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return errs.Wrapf(err, "open %s", path)
			}
			defer f.Close()
			r = f
		}

		payload, err := consignment.DecodePayload(r)
		if err != nil {
			return err
		}

		ownerID := deps.App.Config.Import.OwnerID
		if cmd.Flags().Changed("actor-id") {
			ownerID, _ = cmd.Flags().GetUint64("actor-id")
		}
		record, err := deps.Consignments.Import(ctx, consignment.ImportInput{OwnerID: ownerID, Payload: payload})
		if err != nil {
			return err
		}
		return printJSON(cmd, record)
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("file", "", "Consignment JSON file, - for stdin")
}
