// Command server runs the dispensary gateway: partner API proxy, patient
// eligibility, orders, jurisdiction gating, and the verification sync worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accessservice "greengate/internal/access/service"
	accessstore "greengate/internal/access/store"
	"greengate/internal/admin"
	"greengate/internal/contact"
	"greengate/internal/notify"
	orderhandler "greengate/internal/order/handler"
	orderservice "greengate/internal/order/service"
	orderstore "greengate/internal/order/store"
	"greengate/internal/partner"
	partnermetrics "greengate/internal/partner/metrics"
	patienthandler "greengate/internal/patient/handler"
	patientservice "greengate/internal/patient/service"
	patientstore "greengate/internal/patient/store"
	"greengate/internal/platform/config"
	"greengate/internal/platform/httpserver"
	"greengate/internal/platform/logger"
	"greengate/internal/platform/metrics"
	"greengate/internal/platform/postgres"
	"greengate/internal/platform/redis"
	ratestore "greengate/internal/ratelimit/store"
	"greengate/internal/region"
	"greengate/internal/shop"
	httptransport "greengate/internal/transport/http"
	"greengate/internal/verification"
	"greengate/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Persistence: Postgres when configured, in-process otherwise. The
	// memory stores keep local development free of infrastructure.
	var (
		patientStore patientservice.RecordStore
		orderStore   orderservice.OrderStore
		roleStore    accessservice.RoleStore
	)
	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		patientStore = patientstore.NewPostgres(pool)
		orderStore = orderstore.NewPostgres(pool)
		roleStore = accessstore.NewPostgres(pool)
		log.Info("using postgres persistence")
	} else {
		patientStore = patientstore.NewInMemory()
		orderStore = orderstore.NewInMemory()
		roleStore = accessstore.NewInMemory()
		log.Warn("no POSTGRES_DSN set, using in-memory persistence")
	}

	// Rate limiting: shared counters via Redis when available.
	health := map[string]httptransport.HealthChecker{}
	var limiter contact.Limiter
	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		limiter = ratestore.NewRedis(redisClient.Client, cfg.ContactRateLimit, cfg.ContactRateWindow)
		health["redis"] = redisClient
		log.Info("using redis rate limiting")
	} else {
		memLimiter := ratestore.NewMemory(cfg.ContactRateLimit, cfg.ContactRateWindow)
		limiter = memLimiter
		go sweepLoop(ctx, memLimiter, cfg.ContactRateWindow)
	}

	proxy := partner.New(cfg.Partner, log, partner.WithMetrics(partnermetrics.New()))
	mailer := notify.New(cfg.Email, log)

	roles := accessservice.New(roleStore, log)
	patients := patientservice.New(patientStore, proxy, roles, log,
		patientservice.WithNotifier(mailer),
		patientservice.WithMetrics(m),
	)
	orders := orderservice.New(orderStore, proxy, patients, log, orderservice.WithMetrics(m))
	contactSvc := contact.New(limiter, mailer, log)
	gate := region.NewGate(!cfg.IsProduction(), cfg.RestrictedRegions)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Verifier: auth.NewVerifier(cfg.JWTSigningKey),
		Public: []httptransport.Registrar{
			shop.New(gate, proxy, patients, log),
			contact.NewHandler(contactSvc, log),
		},
		Authed: []httptransport.Registrar{
			patienthandler.New(patients, log),
			orderhandler.New(orders, log),
			admin.New(patients, proxy, roles, log),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.Addr, router)
	worker := verification.New(patients, cfg.SyncInterval, log, m)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// sweepLoop keeps the in-memory limiter's key space bounded.
func sweepLoop(ctx context.Context, limiter *ratestore.Memory, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
