package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/catalog"
	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/pipeline"
	"github.com/labelsense/labelsense/internal/retrieval"
	"github.com/labelsense/labelsense/internal/store"
	anthropicpkg "github.com/labelsense/labelsense/pkg/anthropic"
	"github.com/labelsense/labelsense/pkg/chroma"
)

// appEnv holds the initialized store, catalog, and pipeline needed by the
// analyze/serve commands.
type appEnv struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initEnv sets up the store, loads the reference catalog, and wires the
// evidence retriever and oracle client into the pipeline. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (LABELSENSE_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cat := catalog.Load(cfg.Catalog.Dir)
	zap.L().Info("reference catalog loaded",
		zap.String("dir", cfg.Catalog.Dir),
		zap.Int("additives", cat.Size(model.CategoryAdditives)),
		zap.Int("allergens", cat.Size(model.CategoryAllergens)),
	)

	index := chroma.NewClient(cfg.Chroma.BaseURL, cfg.Chroma.Collection)
	retriever := retrieval.New(index, cat)
	oracle := anthropicpkg.NewClient(cfg.Anthropic.Key)

	return &appEnv{
		Store:    st,
		Catalog:  cat,
		Pipeline: pipeline.New(oracle, retriever, cfg.Anthropic, cfg.Analysis),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "labelsense.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
