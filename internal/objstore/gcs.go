package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/shaiso/gcs2bq/internal/transfer"
)

// GCS — чтение объектов через нативный клиент GCS.
type GCS struct {
	client *storage.Client
}

// NewGCS создаёт клиента GCS.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Download читает объект целиком.
func (g *GCS) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	if bucket == "" || object == "" {
		return nil, ErrInvalidArgument
	}

	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Close закрывает клиента.
func (g *GCS) Close() error {
	return g.client.Close()
}

var _ transfer.Storage = (*GCS)(nil)
