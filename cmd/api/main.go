package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/mydiary/mall-server/internal/http/handlers"
	"github.com/mydiary/mall-server/internal/http/middleware"
	"github.com/mydiary/mall-server/internal/platform/auth"
	"github.com/mydiary/mall-server/internal/platform/crypto"
	"github.com/mydiary/mall-server/internal/platform/mailer"
	"github.com/mydiary/mall-server/internal/platform/session"
	"github.com/mydiary/mall-server/internal/repo/postgres"
	"github.com/mydiary/mall-server/internal/service"
	"github.com/mydiary/mall-server/internal/sweeper"
	"github.com/mydiary/mall-server/pkg/config"
	"github.com/mydiary/mall-server/pkg/database"
	"github.com/mydiary/mall-server/pkg/events"
	"github.com/mydiary/mall-server/pkg/logger"
	mw "github.com/mydiary/mall-server/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	cipher, err := crypto.NewFieldCipher([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		return err
	}
	hasher, err := auth.NewPasswords(cfg.Security.PasswordHasher, cfg.Security.SaltRounds)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Email.Timezone)
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Sessions and rate-limit counters live in Redis when it is configured.
	rateRepo := postgres.NewRateLimitRepo(pool)
	var (
		sessions session.Store      = session.NewMemoryStore()
		counter  middleware.Counter = rateRepo
	)
	if cfg.Redis.URL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb)
		counter = middleware.NewRedisCounter(rdb)
	} else {
		logger.Warn("REDIS_URL not set; sessions are kept in process memory")
	}

	users := postgres.NewUserRepo(pool, cipher)
	resetTokens := postgres.NewResetTokenRepo(pool)
	cart := postgres.NewCartRepo(pool)
	issuer := auth.NewIssuer(cfg.Auth.VerificationTTL, cfg.Auth.ResetTTL)
	notifier := mailer.NewNotifier(mailer.New(cfg.Email), cfg.Email.FrontendURL, loc)

	authSvc := service.NewAuthService(users, sessions, hasher, issuer, notifier, publisher, cfg.Auth.SessionTTL)
	h := handlers.New(
		authSvc,
		service.NewPasswordService(users, resetTokens, sessions, hasher, issuer,
			auth.NewGrants(cfg.Security.JWTSecret, cfg.Auth.ResetGrantTTL), notifier, publisher),
		service.NewCatalogService(postgres.NewCategoryRepo(pool), postgres.NewItemRepo(pool)),
		service.NewCartService(cart),
		service.NewOrderService(postgres.NewOrderRepo(pool), publisher),
		middleware.Cookies{Name: cfg.Auth.SessionCookie, TTL: cfg.Auth.SessionTTL, Secure: cfg.IsProduction()},
	)

	limiter := middleware.NewRateLimiter(counter, middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		SkipFunc: middleware.SkipHealth,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("mall-api"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.Email.FrontendURL))
	r.Use(mw.Health)
	r.Use(limiter.Middleware())
	r.Mount("/", h.Routes())

	sw := sweeper.New(users, resetTokens, sessions, publisher, cfg.Sweeper, map[string]sweeper.Cleaner{
		"rate_limits":       rateRepo,
		"order_idempotency": postgres.NewIdempotencyRepo(pool),
	})
	// Accounts that expired while the server was down are removed before serving.
	sw.SweepUnverified(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting mall API", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sw.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down mall API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
