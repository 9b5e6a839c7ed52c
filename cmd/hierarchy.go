package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/hierarchy"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack loose cases into a new package",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawCases, _ := cmd.Flags().GetStringSlice("cases")
		caseIDs, err := parseIDs(rawCases)
		if err != nil {
			return err
		}
		shipmentID, _ := cmd.Flags().GetUint64("shipment")
		label, _ := cmd.Flags().GetString("label")
		notes, _ := cmd.Flags().GetString("notes")
		size, _ := cmd.Flags().GetString("size")

		result, err := deps.Hierarchy.Pack(ctx, hierarchy.PackInput{
			Actor:      actorFromFlags(cmd),
			CaseIDs:    caseIDs,
			ShipmentID: shipmentID,
			Label:      label,
			Notes:      notes,
			Size:       size,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Release every case of a package",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		packageID, _ := cmd.Flags().GetUint64("package")
		notes, _ := cmd.Flags().GetString("notes")
		cases, err := deps.Hierarchy.Unpack(ctx, hierarchy.UnpackInput{
			Actor:     actorFromFlags(cmd),
			PackageID: packageID,
			Notes:     notes,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"package_id": packageID, "released": cases})
	}),
}

var unpackAllCmd = &cobra.Command{
	Use:   "unpack-all",
	Short: "Unpack several packages, skipping the ones that fail",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawPackages, _ := cmd.Flags().GetStringSlice("packages")
		packageIDs, err := parseIDs(rawPackages)
		if err != nil {
			return err
		}
		result, err := deps.Hierarchy.UnpackAll(ctx, hierarchy.UnpackAllInput{
			Actor:      actorFromFlags(cmd),
			PackageIDs: packageIDs,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var repackCmd = &cobra.Command{
	Use:   "repack",
	Short: "Move a package's cases into a fresh package",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		packageID, _ := cmd.Flags().GetUint64("package")
		shipmentID, _ := cmd.Flags().GetUint64("shipment")
		notes, _ := cmd.Flags().GetString("notes")
		result, err := deps.Hierarchy.Repack(ctx, hierarchy.RepackInput{
			Actor:      actorFromFlags(cmd),
			PackageID:  packageID,
			ShipmentID: shipmentID,
			Notes:      notes,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List pack and unpack audit records, newest first",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		code, _ := cmd.Flags().GetString("sscc")
		limit, _ := cmd.Flags().GetInt("limit")
		if strings.TrimSpace(code) != "" {
			items, err := deps.Hierarchy.HistoryBySSCC(ctx, code, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		}

		filter := ports.HistoryFilter{Limit: limit}
		if cmd.Flags().Changed("actor") {
			actorID, _ := cmd.Flags().GetUint64("actor")
			filter.ActorID = &actorID
		}
		rawKind, _ := cmd.Flags().GetString("operation")
		kind, err := domain.NormalizeOperationKind(rawKind)
		if err != nil {
			return err
		}
		filter.Kind = kind

		items, err := deps.Hierarchy.History(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd, items)
	}),
}

var shipmentCmd = &cobra.Command{
	Use:   "shipment",
	Short: "Shipment commands",
}

var shipmentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a shipment with a fresh or given SSCC",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		label, _ := cmd.Flags().GetString("label")
		customer, _ := cmd.Flags().GetString("customer")
		carrier, _ := cmd.Flags().GetString("carrier")
		pickup, _ := cmd.Flags().GetString("pickup")
		destination, _ := cmd.Flags().GetString("destination")
		code, _ := cmd.Flags().GetString("sscc")

		shipment, err := deps.Hierarchy.CreateShipment(ctx, hierarchy.CreateShipmentInput{
			Actor:              actorFromFlags(cmd),
			Label:              label,
			Customer:           customer,
			Carrier:            carrier,
			PickupLocation:     pickup,
			DestinationAddress: destination,
			SSCC:               code,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, shipment)
	}),
}

var shipmentDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Mark a shipment and its packages as dispatched",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		shipmentID, _ := cmd.Flags().GetUint64("id")
		shipment, err := deps.Hierarchy.DispatchShipment(ctx, actorFromFlags(cmd), shipmentID)
		if err != nil {
			return err
		}
		return printJSON(cmd, shipment)
	}),
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Case commands",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a loose case",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		label, _ := cmd.Flags().GetString("label")
		if strings.TrimSpace(label) == "" {
			return errors.New("--label is required")
		}
		code, _ := cmd.Flags().GetString("sscc")
		generate, _ := cmd.Flags().GetBool("generate-sscc")

		c, err := deps.Hierarchy.CreateCase(ctx, hierarchy.CreateCaseInput{
			Actor:        actorFromFlags(cmd),
			Label:        label,
			SSCC:         code,
			GenerateSSCC: generate,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, c)
	}),
}

var caseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a case with its batch allocations",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		caseID, _ := cmd.Flags().GetUint64("id")
		view, err := deps.Hierarchy.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}),
}

var packageShowCmd = &cobra.Command{
	Use:   "package",
	Short: "Show a package with its cases",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		packageID, _ := cmd.Flags().GetUint64("id")
		view, err := deps.Hierarchy.GetPackage(ctx, packageID)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}),
}

func init() {
	rootCmd.AddCommand(packCmd, unpackCmd, unpackAllCmd, repackCmd, historyCmd, shipmentCmd, caseCmd, packageShowCmd)
	shipmentCmd.AddCommand(shipmentCreateCmd, shipmentDispatchCmd)
	caseCmd.AddCommand(caseCreateCmd, caseShowCmd)

	packCmd.Flags().StringSlice("cases", nil, "Case ids to pack, e.g. 1,2,3")
	packCmd.Flags().Uint64("shipment", 0, "Target shipment id")
	packCmd.Flags().String("label", "", "Package label")
	packCmd.Flags().String("notes", "", "Audit notes")
	packCmd.Flags().String("size", "", "Size class: lite or large")
	_ = packCmd.MarkFlagRequired("cases")
	_ = packCmd.MarkFlagRequired("shipment")

	unpackCmd.Flags().Uint64("package", 0, "Package id")
	unpackCmd.Flags().String("notes", "", "Audit notes")
	_ = unpackCmd.MarkFlagRequired("package")

	unpackAllCmd.Flags().StringSlice("packages", nil, "Package ids, e.g. 4,5")
	_ = unpackAllCmd.MarkFlagRequired("packages")

	repackCmd.Flags().Uint64("package", 0, "Package id to repack")
	repackCmd.Flags().Uint64("shipment", 0, "Target shipment id")
	repackCmd.Flags().String("notes", "", "Audit notes")
	_ = repackCmd.MarkFlagRequired("package")
	_ = repackCmd.MarkFlagRequired("shipment")

	historyCmd.Flags().String("sscc", "", "Only records naming this SSCC")
	historyCmd.Flags().Uint64("actor", 0, "Only records by this actor id")
	historyCmd.Flags().String("operation", "", "Only this operation: PACK, PACK_LITE, PACK_LARGE, UNPACK, UNPACK_ALL")
	historyCmd.Flags().Int("limit", hierarchy.DefaultHistoryLimit, "Maximum records")

	shipmentCreateCmd.Flags().String("label", "", "Shipment label")
	shipmentCreateCmd.Flags().String("customer", "", "Customer name")
	shipmentCreateCmd.Flags().String("carrier", "", "Carrier name")
	shipmentCreateCmd.Flags().String("pickup", "", "Pickup location")
	shipmentCreateCmd.Flags().String("destination", "", "Destination address")
	shipmentCreateCmd.Flags().String("sscc", "", "Use this SSCC instead of generating one")

	shipmentDispatchCmd.Flags().Uint64("id", 0, "Shipment id")
	_ = shipmentDispatchCmd.MarkFlagRequired("id")

	caseCreateCmd.Flags().String("label", "", "Case label, unique per owner")
	caseCreateCmd.Flags().String("sscc", "", "Case SSCC")
	caseCreateCmd.Flags().Bool("generate-sscc", false, "Generate an SSCC for the case")

	caseShowCmd.Flags().Uint64("id", 0, "Case id")
	_ = caseShowCmd.MarkFlagRequired("id")

	packageShowCmd.Flags().Uint64("id", 0, "Package id")
	_ = packageShowCmd.MarkFlagRequired("id")
}
