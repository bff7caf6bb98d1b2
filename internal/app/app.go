// Package app wires the application: database pool, migrations, Genkit,
// stores and the search client.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/travo-ai/travo/db"
	"github.com/travo-ai/travo/internal/auth"
	"github.com/travo-ai/travo/internal/config"
	"github.com/travo-ai/travo/internal/genai"
	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/store"
	"github.com/travo-ai/travo/internal/websearch"
)

// App holds the initialized components. Call Close to release them.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Model    *genai.Client
	Messages *store.Store
	Users    *auth.Users
	Search   *websearch.Client
	Tokens   *auth.TokenManager

	dbCleanup func()
}

// Setup creates and initializes the application.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Model = genai.New(g, cfg.FullModelName(), logger)
	a.Messages = store.New(pool, logger)
	a.Users = auth.NewUsers(pool, logger)

	a.Search = websearch.New(websearch.Options{
		APIKey:     cfg.SerpAPIKey,
		FetchPages: cfg.FetchPages,
		ScrapeTopN: cfg.ScrapeTopN,
	}, logger)

	lifetime, err := cfg.TokenLifetime()
	if err != nil {
		return nil, err
	}
	a.Tokens = auth.NewTokenManager(cfg.JWTSecret, lifetime)

	return a, nil
}

// Close releases held resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.ConnString(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// GEMINI_API_KEY env var is read by the plugin itself.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithDefaultModel(cfg.FullModelName()),
	)
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	logger.Info("initialized Genkit", "model", cfg.ModelName)
	return g, nil
}
