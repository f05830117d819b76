// Package objstore читает объекты из Google Cloud Storage.
//
// Две реализации transfer.Storage:
//   - GCS — нативный клиент cloud.google.com/go/storage
//   - Interop — S3-совместимый XML API GCS через minio-go и HMAC-ключи
package objstore

import "errors"

var (
	// ErrObjectNotFound — объект или бакет не существует.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied — нет прав на чтение объекта.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidArgument — пустой бакет или путь.
	ErrInvalidArgument = errors.New("bucket and object are required")
)
