package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	GS1       GS1Config       `mapstructure:"gs1"`
	Emission  EmissionConfig  `mapstructure:"emission"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy"`
	Import    ImportConfig    `mapstructure:"import"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	NATS      NATSConfig      `mapstructure:"nats"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Dropbox   DropboxConfig   `mapstructure:"dropbox"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// MaxOpenConns caps the postgres pool. sqlite always uses one connection.
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type GS1Config struct {
	CompanyPrefix        string `mapstructure:"company_prefix"`
	ExtensionDigit       int    `mapstructure:"extension_digit"`
	FallbackPrefixLength int    `mapstructure:"fallback_prefix_length"`
	MaxAttempts          int    `mapstructure:"max_attempts"`
}

type EmissionConfig struct {
	MaxTries        uint          `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type HierarchyConfig struct {
	PackRetries int `mapstructure:"pack_retries"`
}

type ImportConfig struct {
	LabelAttempts int `mapstructure:"label_attempts"`
	// OwnerID owns consignments arriving through queues and the drop directory.
	OwnerID uint64 `mapstructure:"owner_id"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type DropboxConfig struct {
	Dir string `mapstructure:"dir"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("gs1_compliant", cfg.GS1.CompanyPrefix != ""),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.New("database.max_open_conns must not be negative")
	}
	if c.GS1.ExtensionDigit < 0 || c.GS1.ExtensionDigit > 9 {
		return errors.New("gs1.extension_digit must be a single digit")
	}
	if c.GS1.FallbackPrefixLength < 6 || c.GS1.FallbackPrefixLength > 12 {
		return errors.New("gs1.fallback_prefix_length must be between 6 and 12")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pharmatrace")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".pharmatrace/trace.sqlite")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("gs1.company_prefix", "")
	v.SetDefault("gs1.extension_digit", 0)
	v.SetDefault("gs1.fallback_prefix_length", 8)
	v.SetDefault("gs1.max_attempts", 100)
	v.SetDefault("emission.max_tries", 5)
	v.SetDefault("emission.initial_interval", 200*time.Millisecond)
	v.SetDefault("emission.max_interval", 5*time.Second)
	v.SetDefault("hierarchy.pack_retries", 3)
	v.SetDefault("import.label_attempts", 10)
	v.SetDefault("import.owner_id", 1)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "consignments.import")
	v.SetDefault("nats.queue", "pharmatrace")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.queue", "consignments.import")
	v.SetDefault("dropbox.dir", "")
	v.SetDefault("catalog.cache_ttl", 10*time.Minute)
}
