package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/config"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/logging"
	"horse.fit/translator/internal/metrics"
	"horse.fit/translator/internal/report"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
	"horse.fit/translator/internal/updates"
)

// runtime holds every service a command may need, wired from one config.
type runtime struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *db.Pool
	schemas  *schema.Registry
	metrics  *metrics.Metrics
	entities *translation.EntityTranslator
	jobs     *batch.Manager
	updates  *updates.Service
	tracker  *updates.Tracker
	report   *report.Service
}

func loadEnvironment(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	envFile := ""
	if envLoader != nil {
		loaded, err := envLoader.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		envFile = loaded
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	if envFile != "" {
		logger.Debug().Str("env_file", envFile).Msg("environment loaded")
	}
	return cfg, logger, nil
}

func openRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*runtime, error) {
	schemas, err := schema.LoadDir(cfg.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("load content type schemas: %w", err)
	}
	providers, err := translation.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure translation providers: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	m := metrics.New()
	resolver := schema.NewResolver(schemas, schema.Options{
		FieldTypes:         cfg.TranslatedFieldTypeList(),
		TranslateRelations: cfg.TranslateRelations,
		RegenerateUIDs:     cfg.RegenerateUIDs,
	})
	entities := translation.NewEntityTranslator(providers, m)
	translator := batch.NewTranslator(resolver, entities, pool)

	jobs, err := batch.NewManager(batch.JobDeps{
		Jobs:       pool,
		Content:    pool,
		Schemas:    schemas,
		Translator: translator,
		Metrics:    m,
		Logger:     logger,
		Interval:   cfg.BatchInterval,
	})
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Debug().
		Str("default_provider", providers.DefaultProvider()).
		Strs("providers", providers.ProviderNames()).
		Int("content_types", len(schemas.List())).
		Msg("runtime initialized")

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		schemas:  schemas,
		metrics:  m,
		entities: entities,
		jobs:     jobs,
		updates:  updates.NewService(pool, schemas, translator, m, logging.Component(logger, "batch_update")),
		tracker:  updates.NewTracker(pool, schemas, cfg.IgnoredUpdatedContentTypeList(), logging.Component(logger, "update_tracker")),
		report:   report.NewService(pool, schemas, cfg.LocaleList()),
	}, nil
}

func (r *runtime) Close() {
	if r == nil || r.pool == nil {
		return
	}
	_ = r.pool.Close()
}

// setup loads config and opens the runtime in one step for read-style commands.
func setup(ctx context.Context, envLoader *cli.EnvLoader) (*runtime, error) {
	cfg, logger, err := loadEnvironment(envLoader)
	if err != nil {
		return nil, err
	}
	return openRuntime(ctx, cfg, logger)
}
