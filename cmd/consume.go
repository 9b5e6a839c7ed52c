package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/infrastructure/dropbox"
	"pharmatrace/internal/infrastructure/messaging"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Import consignments from a queue or a drop directory",
}

var consumeNATSCmd = &cobra.Command{
	Use:   "nats",
	Short: "Consume consignments from a NATS subject",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := deps.App.Config

		conn, err := messaging.DialNATS(ctx, cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer conn.Close()

		handler := messaging.NewImportHandler(deps.Consignments, cfg.Import.OwnerID)
		return messaging.NewNATSConsumer(conn, cfg.NATS.Subject, cfg.NATS.Queue, handler).Run(ctx)
	}),
}

var consumeAMQPCmd = &cobra.Command{
	Use:   "amqp",
	Short: "Consume consignments from an AMQP queue",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := deps.App.Config

		conn, ch, err := messaging.DialAMQP(cfg.AMQP.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer ch.Close()

		handler := messaging.NewImportHandler(deps.Consignments, cfg.Import.OwnerID)
		return messaging.NewAMQPConsumer(ch, cfg.AMQP.Queue, handler).Run(ctx)
	}),
}

var consumeDropboxCmd = &cobra.Command{
	Use:   "dropbox",
	Short: "Import consignment files written into a directory",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := deps.App.Config

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Dropbox.Dir
		}
		handler := messaging.NewImportHandler(deps.Consignments, cfg.Import.OwnerID)
		return dropbox.NewWatcher(dir, handler).Run(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(consumeCmd)
	consumeCmd.AddCommand(consumeNATSCmd, consumeAMQPCmd, consumeDropboxCmd)

	consumeDropboxCmd.Flags().String("dir", "", "Directory to watch, defaults to dropbox.dir")
}
