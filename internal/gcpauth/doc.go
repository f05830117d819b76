// Package gcpauth разрешает подключения Google Cloud в опции клиентов.
//
// Подключение (domain.Connection) хранит ключ сервисного аккаунта или
// HMAC-ключи GCS. Загрузка ссылается на него по gcp_conn_id и может
// дополнительно указать delegate_to и impersonation_chain.
package gcpauth
