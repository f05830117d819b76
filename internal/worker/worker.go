package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/mq"
)

// Значения по умолчанию.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// LoadStore — операции с загрузками, которые нужны Worker'у.
// Реализуется repo.LoadRepo.
type LoadStore interface {
	ListQueued(ctx context.Context, limit int) ([]domain.LoadTask, error)
	Claim(ctx context.Context, id uuid.UUID) (*domain.LoadTask, error)
	Update(ctx context.Context, task *domain.LoadTask) error
}

// CompletionPublisher публикует событие о завершённой загрузке.
// Реализуется mq.Publisher.
type CompletionPublisher interface {
	PublishLoadCompleted(ctx context.Context, payload mq.LoadCompletedPayload) error
}

// Worker выполняет загрузки.
//
// Загрузки приходят двумя путями: событие load.ready из RabbitMQ
// (если подключён) и периодический опрос QUEUED загрузок в БД.
// Несколько Worker'ов безопасно делят одну БД: загрузку забирает тот,
// чей LoadStore.Claim переведёт её в RUNNING.
type Worker struct {
	loads     LoadStore
	publisher CompletionPublisher
	conn      *mq.Connection
	registry  *Registry
	consumer  *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger  *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// Config — зависимости и параметры Worker'а.
type Config struct {
	Loads LoadStore

	// Publisher и Conn опциональны: без RabbitMQ остаётся только опрос БД.
	Publisher CompletionPublisher
	Conn      *mq.Connection

	// Registry — executor'ы по типу задачи; nil означает пустой реестр.
	Registry *Registry

	PollInterval time.Duration // по умолчанию 10s
	BatchSize    int           // по умолчанию 50

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = NewRegistry()
	}
	return c
}

// New создаёт Worker. Работа начинается после Start.
func New(cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		loads:        cfg.Loads,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     cfg.Registry,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		logger:       cfg.Logger,
	}
}

// Start запускает опрос БД и, при наличии соединения, consumer loads.ready.
// Не блокирует.
func (w *Worker) Start(ctx context.Context) error {
	if w.loads == nil {
		return ErrNoStore
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"task_types", w.registry.Types(),
		"rabbitmq", w.conn != nil,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue: mq.QueueLoadsReady,
			Tag:   consumerTag(),
			Handlers: map[mq.MessageType]mq.Handler{
				mq.MessageTypeLoadReady: w.handleLoadReady,
			},
			Prefetch: defaultPrefetch,
		})
		w.spawn(func() {
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("load consumer error", "error", err)
			}
		})
	}

	w.spawn(func() { w.pollLoop(ctx) })
	return nil
}

// Stop отменяет контекст Worker'а и ждёт завершения текущих загрузок.
// Прерванная загрузка возвращается в очередь.
func (w *Worker) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	w.logger.Info("stopping worker")

	if w.cancel != nil {
		w.cancel()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped сообщает, вызывался ли Stop.
func (w *Worker) IsStopped() bool {
	return w.stopped.Load()
}

func (w *Worker) spawn(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем загрузки, созданные пока Worker был выключен)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	tasks, err := w.loads.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued loads", "error", err)
		return
	}

	if len(tasks) == 0 {
		return
	}

	w.logger.Debug("poll found queued loads", "count", len(tasks))

	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		err := w.processTask(ctx, tasks[i].ID)
		if err != nil && !errors.Is(err, ErrTaskNotQueued) && !errors.Is(err, ErrTaskNotFound) {
			w.logger.Error("failed to process load from poll",
				"task_id", tasks[i].ID,
				"error", err,
			)
		}
	}
}

// consumerTag — имя подписки в RabbitMQ: хост и pid процесса.
func consumerTag() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("gcs2bq-worker-%s-%d", host, os.Getpid())
}
