// Command server runs the verification API. main wires dependencies and the
// server lifecycle; business logic lives in the internal services.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	httpapi "montoit/internal/http"
	"montoit/internal/platform/config"
	"montoit/internal/platform/httpserver"
	"montoit/internal/platform/logger"
	platformmetrics "montoit/internal/platform/metrics"
	"montoit/internal/platform/middleware"
	platformredis "montoit/internal/platform/redis"
	"montoit/internal/profile"
	"montoit/internal/ratelimit"
	"montoit/internal/upload"
	"montoit/internal/verification/document"
	"montoit/internal/verification/face"
	"montoit/internal/verification/handler"
	"montoit/internal/verification/kyc"
	verifmetrics "montoit/internal/verification/metrics"
	"montoit/internal/verification/status"
	"montoit/internal/verification/store"
	"montoit/pkg/platform/audit"
	"montoit/pkg/platform/circuit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	health := map[string]httpapi.HealthCheck{}

	// Stores. Without DATABASE_URL everything runs in memory, which is how
	// local development and CI work.
	var (
		verifications store.Store   = store.NewInMemoryStore()
		profiles      profile.Store = profile.NewInMemoryStore()
		auditStore    audit.Store   = audit.NewInMemoryStore()
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		verifications = store.NewPostgresStore(pool)
		profiles = profile.NewPostgresStore(pool)
		auditStore = audit.NewPostgresStore(pool)
		health["postgres"] = pool.Ping
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
		health["redis"] = redisClient.Health
		log.Info("using redis rate limiter")
	}

	var uploads upload.Gateway = upload.NewInMemoryGateway()
	if cfg.Upload.AccessKeyID != "" {
		uploads, err = upload.NewS3Gateway(cfg.Upload)
		if err != nil {
			return err
		}
		log.Info("using s3 upload gateway", "bucket", cfg.Upload.Bucket)
	} else {
		log.Warn("AWS credentials not set, using in-memory upload gateway")
	}

	trail := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256), audit.WithLogger(log))
	defer trail.Close()

	vmetrics := verifmetrics.New()
	vendor := kyc.NewHTTPClient(cfg.SmileID, log)
	breaker := circuit.New("smile_id")

	kycSvc := kyc.NewService(verifications, profiles, vendor, breaker, vmetrics, log)
	faceSvc := face.NewService(verifications, uploads, face.NewHTTPVerifier(cfg.FaceAPI), vmetrics, log)
	docSvc := document.NewService(verifications, uploads, document.NewHTTPValidator(cfg.DocAPI), vmetrics, log)
	statusSvc := status.NewService(verifications, log)

	h := handler.New(kycSvc, faceSvc, docSvc, statusSvc, limiter, trail, cfg.SmileID.APIKey, log)

	router := httpapi.NewRouter(httpapi.Deps{
		Verification: h,
		Validator:    middleware.NewJWTValidator(cfg.Server.JWTSigningKey),
		Metrics:      platformmetrics.New(),
		Logger:       log,
		Health:       health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting verification server", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
