package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/gcpauth"
)

const connectionColumns = `
	id, project, keyfile_json, keyfile_path, scopes,
	hmac_access_key, hmac_secret_key, endpoint, created_at, updated_at
`

// ConnectionRepo — репозиторий подключений Google Cloud.
//
// Реализует gcpauth.ConnectionStore, поэтому Worker резолвит
// gcp_conn_id прямо из БД.
type ConnectionRepo struct {
	pool *pgxpool.Pool
}

var _ gcpauth.ConnectionStore = (*ConnectionRepo)(nil)

// NewConnectionRepo создаёт новый ConnectionRepo.
func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

// Get возвращает подключение по ID.
//
// Ошибка для отсутствующего подключения совпадает как с ErrNotFound,
// так и с gcpauth.ErrConnectionNotFound.
func (r *ConnectionRepo) Get(ctx context.Context, id string) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	conn, err := scanConnection(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		return nil, connectionNotFound(id)
	}
	return conn, err
}

// List возвращает все подключения, отсортированные по ID.
func (r *ConnectionRepo) List(ctx context.Context) ([]domain.Connection, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

// Upsert создаёт подключение или полностью заменяет существующее.
func (r *ConnectionRepo) Upsert(ctx context.Context, conn *domain.Connection) error {
	scopes := conn.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	query := `
		INSERT INTO connections (id, project, keyfile_json, keyfile_path, scopes,
		                         hmac_access_key, hmac_secret_key, endpoint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET project = EXCLUDED.project,
		    keyfile_json = EXCLUDED.keyfile_json,
		    keyfile_path = EXCLUDED.keyfile_path,
		    scopes = EXCLUDED.scopes,
		    hmac_access_key = EXCLUDED.hmac_access_key,
		    hmac_secret_key = EXCLUDED.hmac_secret_key,
		    endpoint = EXCLUDED.endpoint,
		    updated_at = now()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		conn.ID,
		conn.Project,
		conn.KeyfileJSON,
		conn.KeyfilePath,
		scopes,
		conn.HMACAccessKey,
		conn.HMACSecretKey,
		conn.Endpoint,
	).Scan(&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// Delete удаляет подключение.
func (r *ConnectionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func connectionNotFound(id string) error {
	return fmt.Errorf("%w: %w: %s", ErrNotFound, gcpauth.ErrConnectionNotFound, id)
}

func scanConnection(row pgx.Row) (*domain.Connection, error) {
	var conn domain.Connection
	err := row.Scan(
		&conn.ID,
		&conn.Project,
		&conn.KeyfileJSON,
		&conn.KeyfilePath,
		&conn.Scopes,
		&conn.HMACAccessKey,
		&conn.HMACSecretKey,
		&conn.Endpoint,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return &conn, nil
}
