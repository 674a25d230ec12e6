package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/example/bookstore-orders/internal/config"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/email"
	"github.com/example/bookstore-orders/internal/infrastructure/breaker"
	"github.com/example/bookstore-orders/internal/infrastructure/kafka"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	"github.com/example/bookstore-orders/internal/infrastructure/userclient"
	"github.com/example/bookstore-orders/internal/notification"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(false)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg.ConfigureLogging()
	logger := log.WithField("component", "notifier")

	if !cfg.KafkaEnabled() {
		logger.Fatal("KAFKA_BROKERS environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var users user.Directory
	switch {
	case cfg.UserServiceURL != "":
		users = userclient.New(cfg.UserServiceURL, cfg.UserServiceTimeout, breaker.New("user-service", breaker.Settings{
			MinRequests: uint32(cfg.BreakerMinRequests),
			Timeout:     cfg.BreakerOpenTimeout,
		}))
	case cfg.DatabaseURL != "":
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to PostgreSQL")
		}
		defer db.Close()
		users = store.NewPostgresDirectory(db)
	default:
		logger.Warn("no user source configured, using demo users")
		users = user.NewMemoryDirectory(store.SeedUsers()...)
	}

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	handler := notification.NewHandler(emailSvc, users)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	logger.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
		"group":   cfg.ConsumerGroup,
		"smtp":    cfg.SMTP.Host + ":" + cfg.SMTP.Port,
	}).Info("starting event consumer")

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("consumer stopped")
	}
	logger.Info("shutting down")
}
