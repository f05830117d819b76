// gcs2bq Worker — выполняет загрузки GCS → BigQuery.
//
// Worker:
//   - Получает load.ready из RabbitMQ и периодически опрашивает базу
//   - Рендерит шаблоны конфигурации и выполняет загрузку
//   - Повторяет неудачные попытки по RetryPolicy задачи
//   - Публикует load.completed с return_value
//
// Workers масштабируются горизонтально: захват задачи атомарен.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/gcs2bq/internal/config"
	"github.com/shaiso/gcs2bq/internal/gcpauth"
	"github.com/shaiso/gcs2bq/internal/hooks"
	"github.com/shaiso/gcs2bq/internal/mq"
	"github.com/shaiso/gcs2bq/internal/repo"
	"github.com/shaiso/gcs2bq/internal/telemetry"
	"github.com/shaiso/gcs2bq/internal/worker"
)

func main() {
	cfg := config.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting gcs2bq-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MigrateOnStart {
		if err := repo.Migrate(cfg.DBURL); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.DBURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Учётные данные Google Cloud из таблицы connections
	resolver := gcpauth.NewResolver(repo.NewConnectionRepo(pool), logger)
	resolver.SetDefaultProject(cfg.DefaultProject)

	workerCfg := worker.Config{
		Loads:        repo.NewLoadRepo(pool),
		Registry:     worker.DefaultRegistry(hooks.NewGoogle(resolver, logger), logger),
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		Logger:       logger,
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger, mq.WithName("gcs2bq-worker"))
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		workerCfg.Conn = mqConn
		workerCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	w := worker.New(workerCfg)

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.WorkerAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	// Останавливаем worker
	w.Stop()
	logger.Info("gcs2bq-worker stopped")
}
