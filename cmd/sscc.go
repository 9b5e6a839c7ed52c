package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

var ssccCmd = &cobra.Command{
	Use:   "sscc",
	Short: "SSCC identifier commands",
}

var ssccGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an SSCC no container holds yet",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		generated, err := deps.Identifiers.Generate(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, generated)
	}),
}

var ssccValidateCmd = &cobra.Command{
	Use:   "validate <sscc>",
	Short: "Check an SSCC's length and check digit",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		code := cmd.Flags().Arg(0)
		if !deps.Identifiers.Validate(code) {
			return errs.Kind(errs.ErrValidation, fmt.Errorf("invalid sscc %q", code))
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s valid\n", code); err != nil {
			return errs.Wrap(err, "write output")
		}
		return nil
	}),
}

var ssccEPCCmd = &cobra.Command{
	Use:   "epc <sscc>",
	Short: "Render the EPC URI of an SSCC",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		code := cmd.Flags().Arg(0)
		if code == "" {
			return errors.New("sscc is required")
		}
		uri, err := deps.Identifiers.EPCURI(code)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), uri); err != nil {
			return errs.Wrap(err, "write output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(ssccCmd)
	ssccCmd.AddCommand(ssccGenerateCmd, ssccValidateCmd, ssccEPCCmd)
}
