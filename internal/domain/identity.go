package domain

// Identity — от чьего имени выполняются вызовы GCS и BigQuery.
type Identity struct {
	// ConnID — подключение (см. Connection).
	ConnID string `json:"conn_id"`

	// DelegateTo — аккаунт для domain-wide delegation.
	DelegateTo string `json:"delegate_to,omitempty"`

	// ImpersonationChain — цепочка сервисных аккаунтов.
	// Последний элемент — целевой аккаунт, остальные — делегаты.
	ImpersonationChain []string `json:"impersonation_chain,omitempty"`

	// Location — регион BigQuery jobs.
	Location string `json:"location,omitempty"`
}

// Identity возвращает идентичность, описанную конфигурацией.
func (c *LoadConfig) Identity() Identity {
	return Identity{
		ConnID:             c.ResolveConnID(),
		DelegateTo:         c.DelegateTo,
		ImpersonationChain: append([]string{}, c.ImpersonationChain...),
		Location:           c.Location,
	}
}
