package domain

// RetryPolicy — политика повторных попыток.
//
// Повторами управляет Worker, сама загрузка не повторяет ничего.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	// 0 означает одну попытку.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty" yaml:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty" yaml:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty"`
}

// Attempts возвращает число попыток с учётом умолчания.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
