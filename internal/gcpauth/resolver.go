package gcpauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// CloudPlatformScope — scope по умолчанию.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Resolved — результат разрешения идентичности.
type Resolved struct {
	// Connection — найденное подключение (пустое для ADC по умолчанию).
	Connection *domain.Connection

	// Project — проект по умолчанию: из подключения или из ключа.
	Project string

	// Options — опции клиентов Google API.
	Options []option.ClientOption
}

// Resolver превращает domain.Identity в опции клиентов Google API.
type Resolver struct {
	store          ConnectionStore
	defaultProject string
	logger         *slog.Logger
}

// NewResolver создаёт Resolver.
func NewResolver(store ConnectionStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// SetDefaultProject задаёт проект для подключений без проекта и без ключа
// (обычно GOOGLE_CLOUD_PROJECT).
func (r *Resolver) SetDefaultProject(project string) {
	r.defaultProject = project
}

// Resolve разрешает идентичность.
//
// Порядок:
//  1. учётные данные подключения (JSON-ключ, путь к ключу или ADC)
//  2. delegate_to — JWT с subject (только с ключом)
//  3. impersonation_chain — последний аккаунт целевой, остальные делегаты
//
// Подключение DefaultConnID, которого нет в хранилище, означает ADC.
func (r *Resolver) Resolve(ctx context.Context, id domain.Identity) (*Resolved, error) {
	conn, err := r.Lookup(ctx, id.ConnID)
	if err != nil {
		return nil, err
	}

	scopes := conn.Scopes
	if len(scopes) == 0 {
		scopes = []string{CloudPlatformScope}
	}

	keyJSON, err := keyfile(conn)
	if err != nil {
		return nil, err
	}

	res := &Resolved{
		Connection: conn,
		Project:    conn.Project,
	}
	if res.Project == "" && keyJSON != nil {
		res.Project = projectFromKey(keyJSON)
	}
	if res.Project == "" {
		res.Project = r.defaultProject
	}

	var base []option.ClientOption
	switch {
	case id.DelegateTo != "":
		if keyJSON == nil {
			return nil, fmt.Errorf("%w: connection %s", ErrDelegationRequiresKey, conn.ID)
		}
		jwtCfg, err := google.JWTConfigFromJSON(keyJSON, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse keyfile: %w", err)
		}
		jwtCfg.Subject = id.DelegateTo
		base = append(base, option.WithTokenSource(jwtCfg.TokenSource(ctx)))

	case keyJSON != nil:
		base = append(base, option.WithCredentialsJSON(keyJSON))
	}

	if len(id.ImpersonationChain) == 0 {
		res.Options = append(base, option.WithScopes(scopes...))
		return res, nil
	}

	target, delegates := SplitChain(id.ImpersonationChain)
	ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
		TargetPrincipal: target,
		Delegates:       delegates,
		Scopes:          scopes,
	}, base...)
	if err != nil {
		return nil, fmt.Errorf("impersonate %s: %w", target, err)
	}

	r.logger.Debug("impersonating service account",
		"conn_id", conn.ID,
		"target", target,
		"delegates", len(delegates),
	)

	res.Options = []option.ClientOption{option.WithTokenSource(ts)}
	return res, nil
}

// Lookup возвращает подключение без построения учётных данных.
// Пустой connID означает DefaultConnID.
func (r *Resolver) Lookup(ctx context.Context, connID string) (*domain.Connection, error) {
	if connID == "" {
		connID = domain.DefaultConnID
	}
	if r.store == nil {
		if connID == domain.DefaultConnID {
			return &domain.Connection{ID: connID}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}

	conn, err := r.store.Get(ctx, connID)
	if err != nil {
		if errors.Is(err, ErrConnectionNotFound) && connID == domain.DefaultConnID {
			r.logger.Debug("default connection not configured, using application default credentials")
			return &domain.Connection{ID: connID}, nil
		}
		return nil, err
	}
	return conn, nil
}

// SplitChain делит цепочку impersonation на целевой аккаунт и делегатов.
func SplitChain(chain []string) (target string, delegates []string) {
	if len(chain) == 0 {
		return "", nil
	}
	return chain[len(chain)-1], append([]string{}, chain[:len(chain)-1]...)
}

func keyfile(conn *domain.Connection) ([]byte, error) {
	if conn.KeyfileJSON != "" {
		return []byte(conn.KeyfileJSON), nil
	}
	if conn.KeyfilePath != "" {
		data, err := os.ReadFile(conn.KeyfilePath)
		if err != nil {
			return nil, fmt.Errorf("read keyfile: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

func projectFromKey(keyJSON []byte) string {
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(keyJSON, &key); err != nil {
		return ""
	}
	return key.ProjectID
}
