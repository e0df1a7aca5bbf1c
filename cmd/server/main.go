// Command server wires high-level dependencies and runs the auth core.
// Business logic lives in the internal service packages; main only builds the
// object graph and manages the process lifecycle.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"regdesk/internal/admin"
	"regdesk/internal/audit"
	auditMetrics "regdesk/internal/audit/metrics"
	"regdesk/internal/csrf"
	"regdesk/internal/otp"
	otpMetrics "regdesk/internal/otp/metrics"
	"regdesk/internal/platform/config"
	"regdesk/internal/platform/database"
	"regdesk/internal/platform/logger"
	platformRedis "regdesk/internal/platform/redis"
	"regdesk/internal/platform/tracer"
	"regdesk/internal/ratelimit"
	ratelimitMetrics "regdesk/internal/ratelimit/metrics"
	"regdesk/internal/session"
	sessionMetrics "regdesk/internal/session/metrics"
	sessionstore "regdesk/internal/session/store"
	httptransport "regdesk/internal/transport/http"
	"regdesk/internal/transport/http/shared"
	"regdesk/internal/workers/cleanup"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing regdesk auth core",
		"addr", cfg.Addr,
		"redis", cfg.RedisURL != "",
		"postgres", cfg.DatabaseURL != "",
	)

	// Backing stores. Each concern falls back to in-memory when its backend
	// is not configured, so the binary runs standalone in development.
	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	trc := tracer.Tracer(tracer.NewNoop())
	if os.Getenv("OTEL_ENABLED") == "true" {
		trc = tracer.NewOTel()
	}

	var sessStore session.Store
	switch {
	case redisClient != nil:
		sessStore = sessionstore.NewRedisStore(redisClient.Client)
	case pool != nil:
		sessStore = sessionstore.NewPostgresStore(pool.DB())
	default:
		sessStore = sessionstore.NewInMemoryStore()
	}

	var otpStore otp.ChallengeStore
	if redisClient != nil {
		otpStore = otp.NewRedisStore(redisClient.Client)
	} else {
		otpStore = otp.NewInMemoryStore()
	}

	var bucketStore ratelimit.BucketStore
	if redisClient != nil {
		bucketStore = ratelimit.NewRedisStore(redisClient.Client)
	} else {
		bucketStore = ratelimit.NewInMemoryStore()
	}

	var auditStore audit.Store
	if pool != nil {
		auditStore = audit.NewPostgresStore(pool.DB())
	} else {
		auditStore = audit.NewInMemoryStore()
	}

	// Domain services.
	sessions, err := session.NewService(sessStore, session.Config{
		AdminTTL: cfg.AdminSessionTTL,
		UserTTL:  cfg.UserSessionTTL,
	},
		session.WithLogger(log),
		session.WithMetrics(sessionMetrics.New()),
		session.WithTracer(trc),
	)
	if err != nil {
		log.Error("session service init failed", "error", err)
		os.Exit(1)
	}

	otps, err := otp.NewService(otpStore, &otp.LogSender{Logger: log}, otp.Config{
		CodeTTL:     cfg.OTPCodeTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	}, otp.WithLogger(log), otp.WithMetrics(otpMetrics.New()), otp.WithTracer(trc))
	if err != nil {
		log.Error("otp service init failed", "error", err)
		os.Exit(1)
	}

	recorder := audit.NewRecorder(auditStore, log,
		audit.WithRecorderMetrics(auditMetrics.New()))

	adminStore := admin.NewInMemoryStore()
	if err := seedAdmin(adminStore, log); err != nil {
		log.Error("admin seed failed", "error", err)
		os.Exit(1)
	}

	admins, err := admin.NewService(adminStore, sessions, otps, recorder,
		admin.WithLogger(log), admin.WithTracer(trc))
	if err != nil {
		log.Error("admin service init failed", "error", err)
		os.Exit(1)
	}

	csrfManager, err := csrf.NewManager(cfg.CSRFSigningKey, cfg.CSRFTokenTTL)
	if err != nil {
		log.Error("csrf manager init failed", "error", err)
		os.Exit(1)
	}

	limiter, err := ratelimit.NewService(bucketStore,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitMetrics.New()),
	)
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}
	limits := ratelimit.NewMiddleware(limiter, log, shared.WriteError)

	sweeper, err := cleanup.New(sessions, otps, limiter, cleanup.WithLogger(log))
	if err != nil {
		log.Error("cleanup worker init failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(admins, sessions, otps, csrfManager, recorder, log,
		httptransport.WithCookieSecure(cfg.CookieSecure),
		httptransport.WithHealthCheck(healthCheck(pool, redisClient)),
	)
	router := httptransport.NewRouter(handler, limits, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		redisClient.Close() //nolint:errcheck // process exiting
	}
	if pool != nil {
		pool.Close() //nolint:errcheck // process exiting
	}
	log.Info("server stopped")
}

// seedAdmin provisions the bootstrap admin account from the environment.
// Account management beyond this belongs to the surrounding platform.
func seedAdmin(store *admin.InMemoryStore, log *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set; no admin accounts available")
		return nil
	}

	hash, err := admin.HashPassword(password)
	if err != nil {
		return err
	}
	store.Seed(&admin.Admin{
		ID:           "admin-bootstrap",
		Email:        email,
		Name:         "Bootstrap Admin",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	return nil
}

// healthCheck probes configured backends only; absent backends don't degrade
// health.
func healthCheck(pool *database.Pool, redisClient *platformRedis.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pool != nil {
			if err := pool.Health(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
