package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/repo"
)

// LoadStore — операции с загрузками, нужные API. Реализуется repo.LoadRepo.
type LoadStore interface {
	Create(ctx context.Context, task *domain.LoadTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoadTask, error)
	List(ctx context.Context, filter repo.LoadFilter) ([]domain.LoadTask, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// ConnectionStore — операции с подключениями. Реализуется repo.ConnectionRepo.
type ConnectionStore interface {
	Get(ctx context.Context, id string) (*domain.Connection, error)
	List(ctx context.Context) ([]domain.Connection, error)
	Upsert(ctx context.Context, conn *domain.Connection) error
	Delete(ctx context.Context, id string) error
}

// ReadyPublisher будит Worker'ы после постановки загрузки в очередь.
// Реализуется mq.Publisher.
type ReadyPublisher interface {
	PublishLoadReady(ctx context.Context, taskID uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	loads       LoadStore
	connections ConnectionStore
	publisher   ReadyPublisher
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Loads       LoadStore
	Connections ConnectionStore

	// Publisher опционален: без него Worker'ы находят загрузки через polling.
	Publisher ReadyPublisher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		loads:       cfg.Loads,
		connections: cfg.Connections,
		publisher:   cfg.Publisher,
		logger:      logger,
	}
}
