package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"pharmatrace/internal/bootstrap"
	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/consignment"
	"pharmatrace/internal/usecase/hierarchy"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/journey"
)

const lifecycleTimeout = 10 * time.Second

// appDeps is what a command may use once the container has started.
type appDeps struct {
	fx.In

	App          *bootstrap.App
	Hierarchy    *hierarchy.Service
	Consignments *consignment.Service
	Journey      *journey.Service
	Identifiers  *identifier.Service
	Catalog      ports.ProductStore
}

// withApp builds the fx container for one command run: config, database,
// repositories and services. The database closes when run returns.
func withApp(run func(cmd *cobra.Command, deps *appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if cfgFile != "" {
			ctx = logging.WithAttrs(ctx, slog.String("config_file", cfgFile))
		}

		var deps appDeps
		app := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(
				func() context.Context { return ctx },
				fx.Annotate(func() string { return cfgFile }, fx.ResultTags(`name:"configFile"`)),
			),
			fx.Invoke(func(d appDeps) { deps = d }),
		)

		startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
		defer cancel()
		if err := app.Start(startCtx); err != nil {
			return errs.Wrap(err, "start application")
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycleTimeout)
			defer cancel()
			if err := app.Stop(stopCtx); err != nil {
				logging.Warn(ctx, "stop application", slog.Any("err", errs.Loggable(err)))
			}
		}()

		cmd.SetContext(logging.WithLogger(ctx, deps.App.Logger))
		return run(cmd, &deps)
	}
}
