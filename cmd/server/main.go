package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"coalesce/internal/audit"
	"coalesce/internal/contact"
	contacthandler "coalesce/internal/contact/handler"
	"coalesce/internal/contact/metrics"
	"coalesce/internal/contact/service"
	memorystore "coalesce/internal/contact/store/memory"
	postgresstore "coalesce/internal/contact/store/postgres"
	jwttoken "coalesce/internal/jwt_token"
	"coalesce/internal/platform/config"
	"coalesce/internal/platform/httpserver"
	"coalesce/internal/platform/logger"
	platformredis "coalesce/internal/platform/redis"
	httptransport "coalesce/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthCheck{}

	var store contact.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := postgresstore.New(db)
		store = pg
		checks["store"] = pg.Ping
		log.Info("using postgres contact store")
	} else {
		mem := memorystore.New()
		store = mem
		checks["store"] = mem.Ping
		log.Warn("DATABASE_URL not set, using in-memory contact store")
	}

	var locker service.Locker = service.NewShardedLocker()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = service.NewRedisLocker(redisClient.Client)
		checks["redis"] = redisClient.Health
		log.Info("using redis attribute locks")
	}

	g, ctx := errgroup.WithContext(ctx)

	var auditor audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()

		worker := audit.NewWorker(kafkaPublisher, 1024, log)
		auditor = worker
		g.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit events flowing to kafka", "topic", cfg.AuditTopic)
	}

	contacts, err := service.New(store, locker,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithAuditPublisher(auditor),
		service.WithMaxRetries(cfg.IdentifyMaxRetries),
	)
	if err != nil {
		log.Error("build contact service", "error", err)
		os.Exit(1)
	}

	var handlerOpts []contacthandler.Option
	if cfg.JWTSigningKey != "" {
		validator := jwttoken.NewJWTService(cfg.JWTSigningKey, "coalesce", "coalesce-api")
		handlerOpts = append(handlerOpts, contacthandler.WithJWTValidator(validator))
	}
	handler := contacthandler.New(contacts, log, handlerOpts...)

	router := httptransport.NewRouter(handler, checks)
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting coalesce", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
