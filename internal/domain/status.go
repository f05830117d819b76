package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED (ручной retry → обратно в QUEUED)
type TaskStatus string

const (
	// TaskStatusQueued — task в очереди, ожидает выполнения.
	TaskStatusQueued TaskStatus = "QUEUED"

	// TaskStatusRunning — task выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusSucceeded — task успешно завершён.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — task завершился с ошибкой (после всех retry).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ParseTaskStatus парсит строку в TaskStatus.
// Возвращает false для неизвестного значения.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed:
		return TaskStatus(s), true
	default:
		return "", false
	}
}
