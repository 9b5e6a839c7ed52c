package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"pharmatrace/internal/bootstrap/config"
	"pharmatrace/internal/bootstrap/database"
	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/domain/sscc"
	"pharmatrace/internal/errs"
	cacheinfra "pharmatrace/internal/infrastructure/cache"
	"pharmatrace/internal/infrastructure/catalog"
	gormrepo "pharmatrace/internal/infrastructure/persistence/gormdb/repository"
	gormuow "pharmatrace/internal/infrastructure/persistence/gormdb/uow"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/consignment"
	"pharmatrace/internal/usecase/hierarchy"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/journey"
	"pharmatrace/internal/usecase/tracelog"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewContainerRepository,
			fx.As(new(ports.ContainerRepository), new(ports.ContainerReader), new(ports.ContainerWriter)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewHierarchyChangeRepository,
			fx.As(new(ports.HierarchyChangeRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewTraceEventRepository,
			fx.As(new(ports.TraceEventRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewConsignmentRepository,
			fx.As(new(ports.ConsignmentRepository)),
		),
	),
	fx.Provide(gormrepo.NewProductRepository),
	fx.Provide(
		fx.Annotate(
			gormuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewGormCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideCatalog,
			fx.As(new(ports.ProductStore), new(ports.ProductCatalog)),
		),
	),
	fx.Provide(provideCodec),
	fx.Provide(identifier.NewService),
	fx.Provide(provideEmitter),
	fx.Provide(provideHierarchy),
	fx.Provide(provideConsignment),
	fx.Provide(journey.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level).
		With(slog.String("app", cfg.App.Name), slog.String("env", cfg.App.Env))
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB, logger *slog.Logger) *App {
	return &App{
		Config: cfg,
		DB:     db,
		Logger: logger,
	}
}

func provideCatalog(store *gormrepo.ProductRepository, cache ports.Cache, cfg config.Config) *catalog.CachedCatalog {
	return catalog.NewCachedCatalog(store, cache, cfg.Catalog.CacheTTL)
}

func provideCodec(cfg config.Config) (*sscc.Codec, error) {
	codec, err := sscc.NewCodec(cfg.GS1.CompanyPrefix, cfg.GS1.ExtensionDigit)
	if err != nil {
		return nil, errs.Wrap(err, "build sscc codec")
	}
	if cfg.GS1.MaxAttempts > 0 {
		codec.MaxAttempts = cfg.GS1.MaxAttempts
	}
	if cfg.GS1.FallbackPrefixLength > 0 {
		codec.FallbackPrefixLength = cfg.GS1.FallbackPrefixLength
	}
	return codec, nil
}

func provideEmitter(events ports.TraceEventRepository, containers ports.ContainerWriter, cfg config.Config, logger *slog.Logger) *tracelog.Emitter {
	return tracelog.NewEmitter(events, containers, tracelog.RetryPolicy{
		MaxTries:        cfg.Emission.MaxTries,
		InitialInterval: cfg.Emission.InitialInterval,
		MaxInterval:     cfg.Emission.MaxInterval,
	}, logger)
}

type hierarchyParams struct {
	fx.In

	Containers ports.ContainerRepository
	Changes    ports.HierarchyChangeRepository
	UOW        ports.UnitOfWork
	IDs        *identifier.Service
	Emitter    *tracelog.Emitter
	Config     config.Config
	Logger     *slog.Logger
}

func provideHierarchy(p hierarchyParams) *hierarchy.Service {
	return hierarchy.NewService(p.Containers, p.Changes, p.UOW, p.IDs, p.Emitter,
		hierarchy.Config{PackRetries: p.Config.Hierarchy.PackRetries}, p.Logger)
}

type consignmentParams struct {
	fx.In

	Containers   ports.ContainerRepository
	Consignments ports.ConsignmentRepository
	Catalog      ports.ProductCatalog
	UOW          ports.UnitOfWork
	IDs          *identifier.Service
	Emitter      *tracelog.Emitter
	Config       config.Config
	Logger       *slog.Logger
}

func provideConsignment(p consignmentParams) *consignment.Service {
	return consignment.NewService(p.Containers, p.Consignments, p.Catalog, p.UOW, p.IDs, p.Emitter,
		consignment.Config{LabelAttempts: p.Config.Import.LabelAttempts}, p.Logger)
}
