// Package hooks собирает клиентов GCS и BigQuery для загрузки.
package hooks

import (
	"context"
	"log/slog"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/gcpauth"
	"github.com/shaiso/gcs2bq/internal/objstore"
	"github.com/shaiso/gcs2bq/internal/transfer"
	"github.com/shaiso/gcs2bq/internal/warehouse"
)

// Google — transfer.HookFactory поверх Google Cloud.
//
// Клиенты создаются на каждый вызов и закрываются загрузкой.
type Google struct {
	resolver *gcpauth.Resolver
	logger   *slog.Logger
}

// NewGoogle создаёт фабрику.
func NewGoogle(resolver *gcpauth.Resolver, logger *slog.Logger) *Google {
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{resolver: resolver, logger: logger}
}

// Warehouse создаёт клиента BigQuery.
func (g *Google) Warehouse(ctx context.Context, id domain.Identity) (transfer.Warehouse, error) {
	res, err := g.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	bq, err := warehouse.New(ctx, warehouse.Config{
		Project:  res.Project,
		Location: id.Location,
		Options:  res.Options,
		Logger:   g.logger.With("conn_id", res.Connection.ID),
	})
	if err != nil {
		return nil, err
	}
	return bq, nil
}

// Storage создаёт клиента GCS.
//
// Подключение с HMAC-ключами читает через S3-совместимый API.
func (g *Google) Storage(ctx context.Context, id domain.Identity) (transfer.Storage, error) {
	conn, err := g.resolver.Lookup(ctx, id.ConnID)
	if err != nil {
		return nil, err
	}

	if conn.UsesHMAC() {
		// HMAC ключ сам определяет принципала, impersonation к нему не применяется
		if len(id.ImpersonationChain) > 0 || id.DelegateTo != "" {
			g.logger.Warn("impersonation is not applied to HMAC storage access",
				"conn_id", conn.ID,
				"impersonation_chain", []string(id.ImpersonationChain),
				"delegate_to", id.DelegateTo,
			)
		}
		st, err := objstore.NewInterop(objstore.InteropConfig{
			Endpoint:  conn.Endpoint,
			AccessKey: conn.HMACAccessKey,
			SecretKey: conn.HMACSecretKey,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	res, err := g.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := objstore.NewGCS(ctx, res.Options...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

var _ transfer.HookFactory = (*Google)(nil)
