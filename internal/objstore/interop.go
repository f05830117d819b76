package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shaiso/gcs2bq/internal/transfer"
)

// DefaultInteropEndpoint — S3-совместимый endpoint GCS.
const DefaultInteropEndpoint = "https://storage.googleapis.com"

// InteropConfig — настройки доступа к GCS через HMAC-ключи.
type InteropConfig struct {
	// Endpoint — URL endpoint. По умолчанию DefaultInteropEndpoint.
	Endpoint string

	AccessKey string
	SecretKey string

	// Region — регион подписи. GCS принимает "auto".
	Region string
}

// Interop — чтение объектов GCS через S3-совместимый API.
type Interop struct {
	client *minio.Client
}

// NewInterop создаёт клиента.
func NewInterop(cfg InteropConfig) (*Interop, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: hmac access key and secret are required", ErrAccessDenied)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultInteropEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	host := u.Host
	if host == "" {
		host = cfg.Endpoint
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme != "http",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create interop client: %w", err)
	}

	return &Interop{client: client}, nil
}

// Download читает объект целиком.
func (i *Interop) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	if bucket == "" || object == "" {
		return nil, ErrInvalidArgument
	}

	obj, err := i.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyError(err, bucket, object)
	}
	defer obj.Close()

	// GetObject ленивый: ошибки доступа появляются при чтении.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyError(err, bucket, object)
	}
	return data, nil
}

// classifyError переводит ошибки S3 API в ошибки пакета.
func classifyError(err error, bucket, object string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: gs://%s/%s: %v", ErrAccessDenied, bucket, object, err)
	default:
		return err
	}
}

var _ transfer.Storage = (*Interop)(nil)
