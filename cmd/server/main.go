// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/truco/internal/auth"
	"github.com/jason-s-yu/truco/internal/cache"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/jason-s-yu/truco/internal/database"
	"github.com/jason-s-yu/truco/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	level, err := logrus.ParseLevel(config.GetEnv("LOG_LEVEL", "debug"))
	if err != nil {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if err := auth.Init(); err != nil {
		logger.WithError(err).Fatal("failed to initialize signing keys")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := handlers.NewGameServer(logger)

	// Postgres and Redis are optional in development: matches still run,
	// without accounts, history or resumption.
	if err := database.ConnectDB(ctx, logger); err != nil {
		logger.WithError(err).Warn("running without postgres")
	} else {
		defer database.DB.Close()
		store := database.NewStore(database.DB)
		srv.Users = store
		srv.Results = store
		srv.Snapshots = store
	}
	if err := cache.ConnectRedis(ctx); err != nil {
		logger.WithError(err).Warn("running without redis; actions will not reach the historian")
	} else {
		defer cache.Rdb.Close()
		srv.Snapshots = cache.NewSnapshotStore(cache.Rdb, 0)
	}

	production := config.GetEnv("TRUCO_ENV", "development") == "production"
	var origins []string
	if production {
		// allow only origins specified in dotenv file if we are in production mode
		origins = config.GetEnvList("ALLOWED_ORIGINS", nil)
		srv.OriginPatterns = origins
	}

	addr := "localhost:" + config.GetEnv("PORT", "8080")
	if production {
		// bind to all hosts in production mode
		addr = ":" + config.GetEnv("PORT", "8080")
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(logger, srv, origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server exited")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("unclean shutdown")
	}
	srv.WaitRecorded()
}
