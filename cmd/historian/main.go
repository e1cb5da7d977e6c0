// cmd/historian is an asynchronous historian service that pops match actions
// from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/truco/internal/cache"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/jason-s-yu/truco/internal/database"
	"github.com/jason-s-yu/truco/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	level, err := logrus.ParseLevel(config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.NewClient(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	if err := database.ConnectDB(ctx, logger); err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.DB.Close()

	queue := cache.QueueName()
	svc := historian.NewService(
		historian.NewRedisSource(rdb, queue),
		database.NewStore(database.DB),
		historian.ConfigFromEnv(),
		logger,
	)
	logger.WithField("queue", queue).Info("truco-historian starting")
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian stopped with unflushed actions")
		os.Exit(1)
	}
	logger.Info("historian shutdown complete")
}
