package domain

import "time"

// Connection — именованные учётные данные Google Cloud.
//
// ID совпадает с gcp_conn_id из LoadConfig. Если ключевой файл не задан,
// используются Application Default Credentials.
type Connection struct {
	// ID — идентификатор подключения (например, "google_cloud_default").
	ID string `json:"id" yaml:"id"`

	// Project — проект по умолчанию для таблиц без явного проекта и для jobs.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// KeyfileJSON — содержимое JSON-ключа сервисного аккаунта.
	KeyfileJSON string `json:"keyfile_json,omitempty" yaml:"keyfile_json,omitempty"`

	// KeyfilePath — путь к JSON-ключу на машине воркера.
	KeyfilePath string `json:"keyfile_path,omitempty" yaml:"keyfile_path,omitempty"`

	// Scopes — OAuth scopes. Пусто — cloud-platform.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// --- GCS через S3-совместимый XML API ---

	// HMACAccessKey и HMACSecretKey — HMAC-ключи GCS.
	// Если заданы, файлы читаются через S3-совместимый endpoint.
	HMACAccessKey string `json:"hmac_access_key,omitempty" yaml:"hmac_access_key,omitempty"`
	HMACSecretKey string `json:"hmac_secret_key,omitempty" yaml:"hmac_secret_key,omitempty"`

	// Endpoint — S3-совместимый endpoint. По умолчанию storage.googleapis.com.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// UsesHMAC возвращает true, если для GCS заданы HMAC-ключи.
func (c *Connection) UsesHMAC() bool {
	return c.HMACAccessKey != "" && c.HMACSecretKey != ""
}

// Redacted возвращает копию без секретов (для ответов API).
func (c Connection) Redacted() Connection {
	if c.KeyfileJSON != "" {
		c.KeyfileJSON = "***"
	}
	if c.HMACSecretKey != "" {
		c.HMACSecretKey = "***"
	}
	return c
}
