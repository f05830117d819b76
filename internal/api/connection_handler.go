package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/repo"
)

// redacted — значение, которым API заменяет секреты в ответах.
const redacted = "***"

// ListConnections возвращает все подключения без секретов.
// GET /api/v1/connections
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ConnectionResponse, len(conns))
	for i, c := range conns {
		result[i] = ConnectionFromDomain(c)
	}

	List(w, result, len(result))
}

// GetConnection возвращает подключение по ID.
// GET /api/v1/connections/{id}
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connections.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "connection not found") {
		return
	}

	Success(w, ConnectionFromDomain(*conn))
}

// PutConnection создаёт или заменяет подключение.
// PUT /api/v1/connections/{id}
//
// Секреты со значением "***" (как в ответах API) сохраняют прежнее значение.
func (h *Handler) PutConnection(w http.ResponseWriter, r *http.Request) {
	var conn domain.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	conn.ID = r.PathValue("id")

	if conn.KeyfileJSON == redacted || conn.HMACSecretKey == redacted {
		existing, err := h.connections.Get(r.Context(), conn.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
		if existing == nil {
			BadRequest(w, "redacted secret for a new connection")
			return
		}
		if conn.KeyfileJSON == redacted {
			conn.KeyfileJSON = existing.KeyfileJSON
		}
		if conn.HMACSecretKey == redacted {
			conn.HMACSecretKey = existing.HMACSecretKey
		}
	}

	if msg := validateConnection(conn); msg != "" {
		BadRequest(w, msg)
		return
	}

	if err := h.connections.Upsert(r.Context(), &conn); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("connection saved", "connection_id", conn.ID, "hmac", conn.UsesHMAC())
	Success(w, ConnectionFromDomain(conn))
}

// DeleteConnection удаляет подключение.
// DELETE /api/v1/connections/{id}
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if HandleRepoError(w, h.logger, h.connections.Delete(r.Context(), id), "connection not found") {
		return
	}

	h.logger.Info("connection deleted", "connection_id", id)
	NoContent(w)
}

func validateConnection(c domain.Connection) string {
	switch {
	case c.ID == "":
		return "connection id is required"
	case c.KeyfileJSON != "" && c.KeyfilePath != "":
		return "keyfile_json and keyfile_path are mutually exclusive"
	case c.KeyfileJSON != "" && !json.Valid([]byte(c.KeyfileJSON)):
		return "keyfile_json is not valid JSON"
	case (c.HMACAccessKey == "") != (c.HMACSecretKey == ""):
		return "hmac_access_key and hmac_secret_key must be set together"
	}
	return ""
}
