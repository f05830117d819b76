// gcs2bq API — постановка загрузок GCS → BigQuery в очередь
// и управление подключениями Google Cloud.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/gcs2bq/internal/api"
	"github.com/shaiso/gcs2bq/internal/config"
	"github.com/shaiso/gcs2bq/internal/mq"
	"github.com/shaiso/gcs2bq/internal/repo"
	"github.com/shaiso/gcs2bq/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg := config.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting gcs2bq-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Миграции схемы
	if cfg.MigrateOnStart {
		if err := repo.Migrate(cfg.DBURL); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.DBURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	apiCfg := api.Config{
		Loads:       repo.NewLoadRepo(pool),
		Connections: repo.NewConnectionRepo(pool),
		Logger:      logger,
	}

	// RabbitMQ опционален: без него Worker'ы подбирают загрузки polling'ом
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger, mq.WithName("gcs2bq-api"))
	if err != nil {
		logger.Warn("RabbitMQ not available, load.ready will not be published", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		apiCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	handler := api.NewHandler(apiCfg)

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
