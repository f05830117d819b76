package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/repo"
	"github.com/shaiso/gcs2bq/internal/warehouse"
)

// ListLoads возвращает список загрузок.
// GET /api/v1/loads?status=...&limit=...&offset=...
func (h *Handler) ListLoads(w http.ResponseWriter, r *http.Request) {
	filter := repo.LoadFilter{
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := domain.ParseTaskStatus(strings.ToUpper(s))
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	tasks, err := h.loads.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]LoadResponse, len(tasks))
	for i, t := range tasks {
		result[i] = LoadFromDomain(t)
	}

	List(w, result, len(result))
}

// CreateLoad ставит загрузку в очередь.
// POST /api/v1/loads
func (h *Handler) CreateLoad(w http.ResponseWriter, r *http.Request) {
	var req CreateLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if msg := missingRequired(req.Config); msg != "" {
		BadRequest(w, msg)
		return
	}
	if err := warehouse.ValidateLoadConfig(req.Config); err != nil {
		InvalidConfig(w, err.Error())
		return
	}

	task := domain.NewLoadTask(req.Name, req.Config, req.Inputs, req.Retry)
	if req.LogicalDate != nil {
		task.LogicalDate = req.LogicalDate.UTC()
	}

	if err := h.loads.Create(r.Context(), task); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("load queued",
		"task_id", task.ID,
		"name", task.Name,
		"destination", task.Config.DestinationProjectDatasetTable,
	)
	h.publishReady(r, task.ID)

	Created(w, LoadFromDomain(*task))
}

// GetLoad возвращает загрузку по ID.
// GET /api/v1/loads/{id}
func (h *Handler) GetLoad(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid load id")
		return
	}

	task, err := h.loads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "load not found") {
		return
	}

	Success(w, LoadFromDomain(*task))
}

// GetLoadResult возвращает return_value завершённой загрузки.
// GET /api/v1/loads/{id}/result
func (h *Handler) GetLoadResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid load id")
		return
	}

	task, err := h.loads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "load not found") {
		return
	}

	if !task.IsFinished() {
		InvalidState(w, "load is not finished: "+string(task.Status))
		return
	}

	Success(w, LoadResultResponse{
		ID:          task.ID,
		Status:      string(task.Status),
		ReturnValue: task.ReturnValue,
		Error:       task.Error,
	})
}

// RetryLoad возвращает неудачную загрузку в очередь.
// POST /api/v1/loads/{id}/retry
func (h *Handler) RetryLoad(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid load id")
		return
	}

	if err := h.loads.Requeue(r.Context(), id); HandleRepoError(w, h.logger, err, "load not found") {
		return
	}

	task, err := h.loads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "load not found") {
		return
	}

	h.logger.Info("load requeued", "task_id", task.ID)
	h.publishReady(r, task.ID)

	Success(w, LoadFromDomain(*task))
}

// publishReady будит Worker'ы. Ошибка публикации не фатальна: загрузку подберёт polling.
func (h *Handler) publishReady(r *http.Request, id uuid.UUID) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishLoadReady(r.Context(), id); err != nil {
		h.logger.Warn("failed to publish load.ready", "task_id", id, "error", err)
	}
}

// missingRequired возвращает сообщение об отсутствующем обязательном поле.
func missingRequired(cfg domain.LoadConfig) string {
	switch {
	case cfg.Bucket == "":
		return "config.bucket is required"
	case len(cfg.SourceObjects) == 0:
		return "config.source_objects is required"
	case cfg.DestinationProjectDatasetTable == "":
		return "config.destination_project_dataset_table is required"
	}
	return ""
}

// parseIntParam парсит неотрицательный query-параметр с дефолтным значением.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
