package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/bookstore-orders/internal/api"
	"github.com/example/bookstore-orders/internal/auth"
	"github.com/example/bookstore-orders/internal/command"
	"github.com/example/bookstore-orders/internal/config"
	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/idempotency"
	"github.com/example/bookstore-orders/internal/infrastructure/breaker"
	"github.com/example/bookstore-orders/internal/infrastructure/kafka"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	"github.com/example/bookstore-orders/internal/infrastructure/userclient"
	"github.com/example/bookstore-orders/internal/query"
	log "github.com/sirupsen/logrus"
)

const sweepInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load(true)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg.ConfigureLogging()
	logger := log.WithField("component", "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := order.PolicyFor(cfg.ForwardOnlyTransitions)
	breakerSettings := breaker.Settings{
		MinRequests: uint32(cfg.BreakerMinRequests),
		Timeout:     cfg.BreakerOpenTimeout,
	}

	var (
		tx     store.Transactor
		ledger store.Ledger
		users  user.Directory
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores with demo data")
		inv, err := inventory.NewMemoryStore(store.SeedBooks()...)
		if err != nil {
			logger.WithError(err).Fatal("failed to seed inventory")
		}
		memLedger := store.NewMemoryLedger(policy)
		tx, ledger = store.NewMemoryTransactor(inv, memLedger), memLedger
		users = user.NewMemoryDirectory(store.SeedUsers()...)
	} else {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to open database")
		}
		defer db.Close()
		pg := store.NewPostgresStore(db, policy)
		tx, ledger = pg, pg
		users = store.NewPostgresDirectory(db)
		logger.Info("connected to PostgreSQL")
	}

	if cfg.UserServiceURL != "" {
		users = userclient.New(cfg.UserServiceURL, cfg.UserServiceTimeout, breaker.New("user-service", breakerSettings))
		logger.WithField("url", cfg.UserServiceURL).Info("resolving users through the user service")
	}

	var publisher command.EventPublisher
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = kafka.NewGuardedPublisher(producer, breaker.New("kafka", breakerSettings))
		logger.WithFields(log.Fields{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaTopic}).Info("publishing order events")
	} else {
		logger.Info("KAFKA_BROKERS not set, order events are not published")
	}

	var idem idempotency.Store
	if cfg.RedisURL != "" {
		client, err := idempotency.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer client.Close()
		idem = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
		logger.Info("idempotency keys stored in redis")
	} else {
		mem := idempotency.NewMemoryStore(cfg.IdempotencyTTL)
		go sweep(ctx, mem)
		idem = mem
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTTL)
	cmdHandler := command.NewHandler(tx, ledger, users, publisher)
	queryHandler := query.NewHandler(ledger)
	handlers := api.NewHandlers(cmdHandler, queryHandler, users, idem)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, jwtService),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := store.ConnectPostgres(url)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sweep(ctx context.Context, s *idempotency.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.WithFields(log.Fields{"component": "api", "removed": n}).Debug("expired idempotency keys swept")
			}
		}
	}
}
