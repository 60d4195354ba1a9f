// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dynamic"
	"github.com/law-makers/pricecrawl/internal/engine/static"
	"github.com/law-makers/pricecrawl/internal/pipeline"
	"github.com/law-makers/pricecrawl/internal/proxy"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
	"github.com/law-makers/pricecrawl/internal/retailer"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/law-makers/pricecrawl/internal/store"
	"github.com/law-makers/pricecrawl/internal/utils/headers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command and closed when the command returns.
// The renderer is started lazily so commands that only read the database
// never launch a browser.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Store       store.Store
	RateLimiter *ratelimit.DomainLimiter

	rendererMu sync.Mutex
	renderer   engine.Renderer
	startTime  time.Time
}

// storeRetry governs connecting to the database at startup
var storeRetry = retry.Config{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Multiplier:     2.0,
}

// SetupLogging configures the global zerolog logger from cfg
func SetupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// New creates an Application: logging, rate limiter and an open store.
// If any step fails, an error is returned and no resources are left open.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogging(cfg)
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Str("config", cfg.String()).
		Msg("Logger initialized")

	var st store.Store
	err := retry.WithRetry(ctx, storeRetry, func() error {
		var err error
		st, err = store.Open(ctx, cfg.DSN(), store.Options{
			Location: cfg.Location(),
			MaxConns: cfg.MaxConcurrent + 1,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug().
		Str("backend", st.Backend()).
		Str("source", cfg.DSNSource).
		Msg("Store opened")

	return &Application{
		Config:      cfg,
		Logger:      &logger,
		Store:       st,
		RateLimiter: ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		startTime:   time.Now(),
	}, nil
}

// Renderer lazily starts the configured rendering engine. The dynamic engine
// keeps one tab per worker plus one for the listing page.
func (a *Application) Renderer(ctx context.Context) (engine.Renderer, error) {
	a.rendererMu.Lock()
	defer a.rendererMu.Unlock()

	if a.renderer != nil {
		return a.renderer, nil
	}

	cfg := a.Config
	switch cfg.Engine {
	case config.EngineStatic:
		var pool *proxy.ProxyPool
		if len(cfg.Proxies) > 0 {
			pool = proxy.NewProxyPool(cfg.Proxies)
		}
		a.renderer = static.New(static.Options{
			UserAgent:  cfg.UserAgent,
			NavTimeout: cfg.NavTimeout,
			Limiter:    a.RateLimiter,
			Proxies:    pool,
			Headers:    headers.ParseHeaders(cfg.Headers),
		})
	default:
		var px string
		if len(cfg.Proxies) == 1 {
			px = cfg.Proxies[0]
		}
		r, err := dynamic.New(ctx, dynamic.Options{
			Pages:      cfg.MaxConcurrent + 1,
			Headless:   cfg.Headless,
			UserAgent:  cfg.UserAgent,
			Proxy:      px,
			ChromePath: cfg.ChromePath,
			NavTimeout: cfg.NavTimeout,
			Limiter:    a.RateLimiter,
			Headers:    headers.ParseHeaders(cfg.Headers),
		})
		if err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		a.renderer = r
	}

	a.Logger.Info().Str("engine", a.renderer.Name()).Msg("Renderer ready")
	return a.renderer, nil
}

// Retailer resolves the configured retailer with the run overrides applied
func (a *Application) Retailer() (*retailer.Profile, error) {
	cfg := a.Config
	return retailer.Resolve(cfg.Retailer, retailer.Overrides{
		Categories:    cfg.Categories,
		Selectors:     cfg.Selectors,
		ProductMarker: cfg.ProductMarker,
		DenyList:      cfg.DenyList,
		LinkFilter:    cfg.LinkFilter,
	})
}

// Orchestrator migrates the store, starts the renderer and wires a crawl of
// the configured retailer.
func (a *Application) Orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	profile, err := a.Retailer()
	if err != nil {
		return nil, err
	}
	if err := a.Store.Migrate(ctx); err != nil {
		return nil, err
	}
	r, err := a.Renderer(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.Config
	return pipeline.NewOrchestrator(r, profile, a.Store, pipeline.Options{
		MaxPages:      cfg.MaxPages,
		Delay:         cfg.Delay,
		MaxConcurrent: cfg.MaxConcurrent,
		RetryBudget:   cfg.RetryBudget,
		MaxBackoff:    cfg.MaxBackoff,
	}), nil
}

// Close gracefully shuts down the application and all its resources.
// Errors are logged; every resource gets its turn.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	var firstErr error
	a.rendererMu.Lock()
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing renderer")
			firstErr = err
		}
		a.renderer = nil
	}
	a.rendererMu.Unlock()

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing store")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return firstErr
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
