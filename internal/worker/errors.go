package worker

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — task не найден в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotQueued — task не в статусе QUEUED (забран другим Worker'ом или завершён).
	ErrTaskNotQueued = errors.New("task is not in QUEUED status")

	// ErrUnknownTaskType — нет executor'а для данного типа задачи.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrNoStore — Worker создан без хранилища задач.
	ErrNoStore = errors.New("worker requires a load store")
)
