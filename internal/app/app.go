// Package app wires configuration into the BrewBook services shared by the
// API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"brewbook/internal/api"
	"brewbook/internal/config"
	"brewbook/internal/drinkcache"
	"brewbook/internal/extract"
	"brewbook/internal/fetcher"
	"brewbook/internal/llm"
	"brewbook/internal/metrics"
	"brewbook/internal/rag"
	"brewbook/internal/robots"
	"brewbook/internal/scraper"
	"brewbook/internal/storage"
)

// App holds the constructed services. Services whose backing store or model
// endpoint is not configured are left nil.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	DB      *sqlx.DB
	Recipes *storage.Repository
	Index   storage.VectorIndex

	Scraper    *scraper.Orchestrator
	Importer   *scraper.Importer
	Searcher   *rag.Searcher
	Pipeline   *rag.Pipeline
	Images     *rag.ImageService
	Remixer    *rag.Remixer
	DrinkOfDay *rag.DrinkOfDay

	closers []func() error
}

// New builds every service the configuration allows.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	if cfg.DB.DSN != "" {
		db, err := storage.Open(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.Recipes = storage.NewRepository(db)
		a.closers = append(a.closers, db.Close)
	} else {
		logger.Warn("database not configured; recipe storage disabled")
	}

	if cfg.VectorDB.Provider == "pgvector" && a.DB == nil {
		logger.Warn("pgvector index needs the database; semantic search disabled")
	} else {
		index, err := storage.NewVectorIndex(cfg.VectorDB, a.DB, logger)
		if err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		a.Index = index
	}

	if err := a.buildScraper(); err != nil {
		return err
	}

	text, err := llm.NewAnthropicGenerator(cfg.LLM)
	if err := optional(err); err != nil {
		return fmt.Errorf("text generator: %w", err)
	}
	embedder, err := llm.NewOpenAIEmbedder(cfg.Embedding)
	if err := optional(err); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	imageGen, err := llm.NewOpenAIImageGenerator(cfg.Image)
	if err := optional(err); err != nil {
		return fmt.Errorf("image generator: %w", err)
	}

	if a.Recipes == nil {
		return nil
	}

	var indexer rag.Indexer
	var similar rag.SimilarFinder
	if embedder != nil && a.Index != nil {
		a.Searcher = rag.NewSearcher(embedder, a.Index, a.Recipes, logger)
		indexer, similar = a.Searcher, a.Searcher
	} else {
		logger.Warn("embedding endpoint or vector index missing; semantic search disabled")
	}
	a.Importer = scraper.NewImporter(a.Recipes, indexer, logger)

	if text != nil {
		a.Pipeline = rag.NewPipeline(a.Recipes, a.Recipes, similar, text, rag.PipelineOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Observer:    a.Metrics,
			Logger:      logger,
		})
		a.Remixer = rag.NewRemixer(a.Pipeline, a.Recipes, indexer, logger)

		cache, err := a.drinkCache(ctx)
		if err != nil {
			return err
		}
		a.DrinkOfDay = rag.NewDrinkOfDay(cache, a.Recipes, indexer, text, a.Metrics, logger)
	} else {
		logger.Warn("llm api key missing; generation disabled")
	}

	if imageGen != nil {
		opts := rag.ImageOptions{DefaultStyle: cfg.Image.DefaultStyle, Observer: a.Metrics, Logger: logger}
		store, err := storage.NewMediaStore(ctx, cfg.Media)
		if err != nil {
			return fmt.Errorf("media store: %w", err)
		}
		if store != nil {
			opts.Archiver = storage.NewArchiver(store, nil, cfg.Media, logger)
		}
		a.Images = rag.NewImageService(a.Recipes, imageGen, opts)
	}
	return nil
}

func (a *App) buildScraper() error {
	cfg, logger := a.Config, a.Logger
	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.OptionsFromConfig(cfg.Scrape))
	if err != nil {
		return fmt.Errorf("http fetcher: %w", err)
	}
	var f fetcher.Fetcher = httpFetcher
	if cfg.Rendering.Enabled {
		renderer := fetcher.NewChromedpRenderer(
			fetcher.RenderOptionsFromConfig(cfg.Rendering, cfg.Scrape.UserAgent, cfg.Scrape.MaxBodyBytes), logger)
		f = fetcher.NewComposite(httpFetcher, renderer, logger)
	}

	opts := scraper.Options{
		EnforceDisallow: cfg.Robots.EnforceDisallow,
		BatchDelay:      cfg.Scrape.BatchDelay.Duration,
		RenderSocial:    cfg.Rendering.Enabled,
		Limiter:         scraper.NewDomainLimiter(cfg.Scrape.RateLimitPerDomain),
		Observer:        a.Metrics,
		Logger:          logger,
	}
	if a.Recipes != nil {
		opts.Sources = a.Recipes
	}
	checker := robots.NewChecker(cfg.Robots, nil, logger)
	a.Scraper = scraper.New(checker, f, extract.New(cfg.Preprocess), opts)
	return nil
}

func (a *App) drinkCache(ctx context.Context) (rag.DrinkCache, error) {
	cfg := a.Config.Cache
	if cfg.RedisAddr == "" {
		return drinkcache.NewMemory(cfg.DrinkOfDayTTL.Duration), nil
	}
	cache, err := drinkcache.NewRedis(cfg)
	if err != nil {
		return nil, fmt.Errorf("drink cache: %w", err)
	}
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("drink cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

// optional treats a missing API key as an absent client.
func optional(err error) error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return nil
	}
	return err
}

// APIDependencies exposes the built services to the HTTP layer. Absent
// services stay nil interfaces so their routes answer 503.
func (a *App) APIDependencies() api.Dependencies {
	deps := api.Dependencies{
		Metrics:  a.Metrics.Handler(),
		Observer: a.Metrics,
	}
	if a.Scraper != nil {
		deps.Scraper = a.Scraper
	}
	if a.Importer != nil {
		deps.Importer = a.Importer
	}
	if a.Pipeline != nil {
		deps.Generator = a.Pipeline
	}
	if a.Images != nil {
		deps.Images = a.Images
	}
	if a.Searcher != nil {
		deps.Searcher = a.Searcher
	}
	if a.Remixer != nil {
		deps.Remixer = a.Remixer
	}
	if a.DrinkOfDay != nil {
		deps.DrinkOfDay = a.DrinkOfDay
	}
	if a.Recipes != nil {
		deps.Recipes = a.Recipes
		deps.Saved = a.Recipes
	}
	return deps
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
