package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/rank"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
	"github.com/sells-group/localrank/pkg/serpapi"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "localrank.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initProvider() (rank.Provider, error) {
	depth := cfg.Serp.SearchDepth

	switch cfg.Serp.Provider {
	case "dataforseo":
		client := dataforseo.NewClient(
			cfg.Serp.DataForSeo.Login,
			cfg.Serp.DataForSeo.Password,
			dataforseo.WithBaseURL(cfg.Serp.DataForSeo.BaseURL),
		)
		return rank.NewDataForSeoProvider(client, depth), nil
	case "serpapi":
		client := serpapi.NewClient(
			cfg.Serp.SerpApi.Key,
			serpapi.WithBaseURL(cfg.Serp.SerpApi.BaseURL),
		)
		return rank.NewSerpApiProvider(client, depth), nil
	default:
		return nil, eris.Errorf("unsupported serp provider: %s", cfg.Serp.Provider)
	}
}
