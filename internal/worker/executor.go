package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// Executor выполняет одну попытку задачи определённого типа.
//
// Возвращаемое значение сохраняется как return_value задачи.
// Retry и смену статусов выполняет Worker.
type Executor interface {
	Execute(ctx context.Context, task *domain.LoadTask) (any, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, task *domain.LoadTask) (any, error)

// Execute вызывает f(ctx, task).
func (f ExecutorFunc) Execute(ctx context.Context, task *domain.LoadTask) (any, error) {
	return f(ctx, task)
}

// Registry — реестр executor'ов по типу задачи. Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register добавляет executor для типа задачи.
// Если executor с таким типом уже есть, он будет перезаписан.
func (r *Registry) Register(taskType string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[taskType] = executor
}

// Get возвращает executor для типа задачи.
func (r *Registry) Get(taskType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return executor, nil
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
