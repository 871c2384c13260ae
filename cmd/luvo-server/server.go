package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/config"
	"github.com/luvo/luvo/internal/domain/ehr"
	"github.com/luvo/luvo/internal/domain/waitlist"
	"github.com/luvo/luvo/internal/domain/whoop"
	"github.com/luvo/luvo/internal/platform/auth"
	"github.com/luvo/luvo/internal/platform/blobstore"
	"github.com/luvo/luvo/internal/platform/cache"
	"github.com/luvo/luvo/internal/platform/db"
	"github.com/luvo/luvo/internal/platform/diagnostics"
	"github.com/luvo/luvo/internal/platform/events"
	"github.com/luvo/luvo/internal/platform/middleware"
	"github.com/luvo/luvo/internal/web"
)

const version = "0.1.0"

// waitlistBodyLimit caps the signup JSON body.
const waitlistBodyLimit = "4K"

// deps are the external resources chosen by configuration. Nil pool means the
// waitlist lives in memory.
type deps struct {
	pool      *pgxpool.Pool
	cache     cache.Store
	publisher events.Publisher
	source    blobstore.Source
	states    *auth.StateSigner
	closers   []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, waitlist signups are kept in memory")
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.cache = rc
		d.closers = append(d.closers, func() { _ = rc.Close() })
		logger.Info().Msg("connected to redis")
	} else {
		mem := cache.NewMemory()
		mem.StartCleanup(ctx, time.Minute)
		d.cache = mem
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.WaitlistTopic, logger)
		d.publisher = pub
		d.closers = append(d.closers, func() { _ = pub.Close() })
	} else {
		d.publisher = events.Noop{}
	}

	source, err := newFHIRSource(cfg)
	if err != nil {
		d.close()
		return nil, err
	}
	d.source = source

	key, generated, err := auth.ResolveSigningKey(cfg.StateSigningKey)
	if err != nil {
		d.close()
		return nil, err
	}
	if generated {
		logger.Warn().Msg("STATE_SIGNING_KEY not set, using a random key; pending logins break on restart")
	}
	d.states = auth.NewStateSigner(key)

	return d, nil
}

func newFHIRSource(cfg *config.Config) (blobstore.Source, error) {
	if !cfg.UseObjectStore() {
		return blobstore.NewDir(cfg.FHIRDataDir), nil
	}
	bucket, err := blobstore.NewBucket(blobstore.BucketConfig{
		Endpoint:  cfg.FHIRS3Endpoint,
		Bucket:    cfg.FHIRS3Bucket,
		Prefix:    cfg.FHIRS3Prefix,
		AccessKey: cfg.FHIRS3AccessKey,
		SecretKey: cfg.FHIRS3SecretKey,
		Secure:    cfg.FHIRS3Secure,
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func newServer(ctx context.Context, cfg *config.Config, d *deps, logger zerolog.Logger) (*echo.Echo, error) {
	tmpl, err := web.LoadTemplates()
	if err != nil {
		return nil, err
	}
	pages := web.NewPages(tmpl, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = tmpl
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, pages.SystemFailure)
	e.IPExtractor, err = middleware.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	api := e.Group("/api")

	// Whoop
	oauth := whoop.NewOAuth(whoop.OAuthConfig{
		ClientID:     cfg.WhoopClientID,
		ClientSecret: cfg.WhoopClientSecret,
		RedirectURI:  cfg.WhoopRedirectURI,
		AuthURL:      cfg.WhoopAuthURL,
		TokenURL:     cfg.WhoopTokenURL,
	}, nil)
	whoopSvc := whoop.NewService(whoop.NewClient(cfg.WhoopAPIBase, nil), d.cache, cfg.WhoopCacheTTL, logger)
	whoopHandler := whoop.NewHandler(oauth, d.states, whoopSvc, pages, whoop.HandlerConfig{
		PostLoginRedirect: cfg.WhoopPostLoginRedirect,
		SecureCookies:     cfg.IsProduction(),
	}, logger)
	whoopHandler.RegisterRoutes(api.Group("/whoop"))

	// EHR
	ehrHandler := ehr.NewHandler(ehr.NewService(d.source, logger))
	ehrHandler.RegisterRoutes(api)

	// Waitlist
	var repo waitlist.Repository = waitlist.NewMemoryRepo()
	if d.pool != nil {
		repo = waitlist.NewRepo(d.pool)
	}
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.NewRateLimiter(rateLimitCfg)
	limiter.StartCleanup(ctx, time.Minute)
	waitlistHandler := waitlist.NewHandler(waitlist.NewService(repo, d.publisher, logger))
	waitlistHandler.RegisterRoutes(api, limiter.Middleware(), middleware.BodyLimit(waitlistBodyLimit))

	// Diagnostics
	if cfg.DebugEnabled() {
		diagnostics.NewHandler(map[string]string{
			"WHOOP_CLIENT_ID":     cfg.WhoopClientID,
			"WHOOP_REDIRECT_URI":  cfg.WhoopRedirectURI,
			"WHOOP_CLIENT_SECRET": cfg.WhoopClientSecret,
		}).RegisterRoutes(api)
	}

	// Pages
	web.NewHandler(pages, whoopSvc, cfg.IsProduction()).RegisterRoutes(e)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}

	return e, nil
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	e, err := newServer(ctx, cfg, d, logger)
	if err != nil {
		return err
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
