package gcpauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/gcs2bq/internal/domain"
)

var (
	// ErrConnectionNotFound — подключение с таким ID не найдено.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrDelegationRequiresKey — delegate_to требует JSON-ключ сервисного аккаунта.
	ErrDelegationRequiresKey = errors.New("delegate_to requires a service account keyfile")
)

// ConnectionStore — источник подключений.
//
// Реализации: repo.ConnectionRepo (Postgres) и StaticStore (файл).
type ConnectionStore interface {
	// Get возвращает подключение или ошибку, для которой
	// errors.Is(err, ErrConnectionNotFound) == true.
	Get(ctx context.Context, id string) (*domain.Connection, error)
}

// StaticStore — подключения в памяти, загруженные из файла.
type StaticStore struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
}

// NewStaticStore создаёт хранилище из списка подключений.
func NewStaticStore(conns ...domain.Connection) *StaticStore {
	s := &StaticStore{conns: make(map[string]domain.Connection, len(conns))}
	for _, c := range conns {
		s.conns[c.ID] = c
	}
	return s
}

// connectionsFile — формат файла подключений.
//
//	connections:
//	  - id: google_cloud_default
//	    project: my-project
//	    keyfile_path: /secrets/sa.json
type connectionsFile struct {
	Connections []domain.Connection `yaml:"connections"`
}

// ParseStaticStore разбирает YAML (или JSON) со списком подключений.
func ParseStaticStore(data []byte) (*StaticStore, error) {
	var f connectionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse connections: %w", err)
	}
	for i, c := range f.Connections {
		if c.ID == "" {
			return nil, fmt.Errorf("parse connections: entry %d has no id", i)
		}
	}
	return NewStaticStore(f.Connections...), nil
}

// LoadStaticStore читает файл подключений.
func LoadStaticStore(path string) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStaticStore(data)
}

// Get реализует ConnectionStore.
func (s *StaticStore) Get(_ context.Context, id string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return &c, nil
}

// Put добавляет или заменяет подключение.
func (s *StaticStore) Put(c domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID] = c
}
