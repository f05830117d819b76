package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/repo"
)

// --- Fakes ---

type fakeLoads struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.LoadTask
	order []uuid.UUID
}

func newFakeLoads() *fakeLoads {
	return &fakeLoads{tasks: make(map[uuid.UUID]*domain.LoadTask)}
}

func (f *fakeLoads) Create(_ context.Context, task *domain.LoadTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *task
	f.tasks[task.ID] = &saved
	f.order = append(f.order, task.ID)
	return nil
}

func (f *fakeLoads) GetByID(_ context.Context, id uuid.UUID) (*domain.LoadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (f *fakeLoads) List(_ context.Context, filter repo.LoadFilter) ([]domain.LoadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LoadTask
	for _, id := range f.order {
		t := f.tasks[id]
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeLoads) Requeue(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}
	if t.Status != domain.TaskStatusFailed {
		return fmt.Errorf("%w: load is %s", repo.ErrInvalidState, t.Status)
	}
	t.ResetForRetry()
	t.Attempt = 0
	return nil
}

func (f *fakeLoads) put(t *domain.LoadTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
	f.order = append(f.order, t.ID)
}

type fakeConnections struct {
	conns map[string]domain.Connection
}

func (f *fakeConnections) Get(_ context.Context, id string) (*domain.Connection, error) {
	c, ok := f.conns[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (f *fakeConnections) List(context.Context) ([]domain.Connection, error) {
	var out []domain.Connection
	for _, c := range f.conns {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeConnections) Upsert(_ context.Context, c *domain.Connection) error {
	f.conns[c.ID] = *c
	return nil
}

func (f *fakeConnections) Delete(_ context.Context, id string) error {
	if _, ok := f.conns[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.conns, id)
	return nil
}

type fakePublisher struct {
	ids []uuid.UUID
	err error
}

func (p *fakePublisher) PublishLoadReady(_ context.Context, id uuid.UUID) error {
	p.ids = append(p.ids, id)
	return p.err
}

type testServer struct {
	loads *fakeLoads
	conns *fakeConnections
	pub   *fakePublisher
	mux   *http.ServeMux
}

func newTestServer() *testServer {
	s := &testServer{
		loads: newFakeLoads(),
		conns: &fakeConnections{conns: make(map[string]domain.Connection)},
		pub:   &fakePublisher{},
		mux:   http.NewServeMux(),
	}
	h := NewHandler(Config{
		Loads:       s.loads,
		Connections: s.conns,
		Publisher:   s.pub,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.RegisterRoutes(s.mux)
	return s
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

const validLoad = `{
	"name": "orders",
	"config": {
		"bucket": "landing",
		"source_objects": "orders/{{ .DS }}/*.csv",
		"destination_project_dataset_table": "acme.raw.orders",
		"max_id_key": "id"
	},
	"logical_date": "2024-01-15T00:00:00Z",
	"retry": {"max_attempts": 3, "backoff": "exponential"}
}`

// --- Load Tests ---

func TestCreateLoad(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/api/v1/loads", validLoad)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	load := decodeData[LoadResponse](t, rec)
	if load.Status != string(domain.TaskStatusQueued) {
		t.Errorf("expected QUEUED, got %s", load.Status)
	}
	if load.Type != domain.TaskTypeGCSToBigQuery {
		t.Errorf("unexpected type %s", load.Type)
	}
	if len(load.Config.SourceObjects) != 1 || load.Config.SourceObjects[0] != "orders/{{ .DS }}/*.csv" {
		t.Errorf("source_objects should be stored unrendered, got %v", load.Config.SourceObjects)
	}
	if load.LogicalDate.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("unexpected logical date %v", load.LogicalDate)
	}
	if load.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry %+v", load.Retry)
	}

	if len(s.pub.ids) != 1 || s.pub.ids[0] != load.ID {
		t.Errorf("expected load.ready for %s, got %v", load.ID, s.pub.ids)
	}
}

func TestCreateLoad_MissingField(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/api/v1/loads", `{"config": {"bucket": "b", "source_objects": ["a"]}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "destination_project_dataset_table") {
		t.Errorf("error should name the missing field: %s", rec.Body)
	}
	if len(s.pub.ids) != 0 {
		t.Error("nothing should be published for invalid loads")
	}
}

func TestCreateLoad_InvalidConfig(t *testing.T) {
	s := newTestServer()

	body := `{"config": {
		"bucket": "b",
		"source_objects": ["a.avro"],
		"destination_project_dataset_table": "d.t",
		"source_format": "AVRO",
		"src_fmt_configs": {"fieldDelimiter": ";"}
	}}`
	rec := s.do(http.MethodPost, "/api/v1/loads", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "fieldDelimiter is not a valid src_fmt_configs for type AVRO") {
		t.Errorf("unexpected error body %s", rec.Body)
	}
}

func TestCreateLoad_InvalidBody(t *testing.T) {
	s := newTestServer()
	if rec := s.do(http.MethodPost, "/api/v1/loads", `{"config": {"source_objects": 5}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateLoad_PublishFailureIgnored(t *testing.T) {
	s := newTestServer()
	s.pub.err = errors.New("channel closed")

	if rec := s.do(http.MethodPost, "/api/v1/loads", validLoad); rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestGetLoad(t *testing.T) {
	s := newTestServer()
	task := domain.NewLoadTask("x", domain.LoadConfig{Bucket: "b"}, nil, domain.RetryPolicy{})
	s.loads.put(task)

	rec := s.do(http.MethodGet, "/api/v1/loads/"+task.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeData[LoadResponse](t, rec); got.ID != task.ID {
		t.Errorf("unexpected id %s", got.ID)
	}

	if rec := s.do(http.MethodGet, "/api/v1/loads/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/loads/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListLoads_StatusFilter(t *testing.T) {
	s := newTestServer()
	queued := domain.NewLoadTask("a", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	failed := domain.NewLoadTask("b", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	failed.MarkFailed("boom")
	s.loads.put(queued)
	s.loads.put(failed)

	rec := s.do(http.MethodGet, "/api/v1/loads?status=failed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	loads := decodeData[[]LoadResponse](t, rec)
	if len(loads) != 1 || loads[0].ID != failed.ID {
		t.Errorf("expected only the failed load, got %+v", loads)
	}

	if rec := s.do(http.MethodGet, "/api/v1/loads?status=PAUSED", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestGetLoadResult(t *testing.T) {
	s := newTestServer()

	running := domain.NewLoadTask("a", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	running.MarkRunning()
	s.loads.put(running)

	if rec := s.do(http.MethodGet, "/api/v1/loads/"+running.ID.String()+"/result", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unfinished load, got %d", rec.Code)
	}

	done := domain.NewLoadTask("b", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	done.MarkRunning()
	done.MarkSucceeded(int64(1337))
	s.loads.put(done)

	rec := s.do(http.MethodGet, "/api/v1/loads/"+done.ID.String()+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := decodeData[LoadResultResponse](t, rec)
	if result.ReturnValue != float64(1337) || result.Status != "SUCCEEDED" {
		t.Errorf("unexpected result %+v", result)
	}

	// return_value присутствует даже если он null
	noMax := domain.NewLoadTask("c", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	noMax.MarkRunning()
	noMax.MarkSucceeded(nil)
	s.loads.put(noMax)

	rec = s.do(http.MethodGet, "/api/v1/loads/"+noMax.ID.String()+"/result", "")
	if !strings.Contains(rec.Body.String(), `"return_value":null`) {
		t.Errorf("expected explicit null return_value, got %s", rec.Body)
	}
}

func TestRetryLoad(t *testing.T) {
	s := newTestServer()

	failed := domain.NewLoadTask("a", domain.LoadConfig{}, nil, domain.RetryPolicy{})
	failed.MarkRunning()
	failed.MarkFailed("boom")
	s.loads.put(failed)

	rec := s.do(http.MethodPost, "/api/v1/loads/"+failed.ID.String()+"/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decodeData[LoadResponse](t, rec)
	if got.Status != string(domain.TaskStatusQueued) || got.Attempt != 0 || got.Error != "" {
		t.Errorf("unexpected requeued load %+v", got)
	}
	if len(s.pub.ids) != 1 {
		t.Errorf("expected load.ready after retry, got %d", len(s.pub.ids))
	}

	// Повторный retry — загрузка уже в очереди
	if rec := s.do(http.MethodPost, "/api/v1/loads/"+failed.ID.String()+"/retry", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

// --- Connection Tests ---

func TestPutConnection(t *testing.T) {
	s := newTestServer()

	body := `{"project": "acme", "keyfile_json": "{\"type\":\"service_account\"}"}`
	rec := s.do(http.MethodPut, "/api/v1/connections/warehouse", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	got := decodeData[ConnectionResponse](t, rec)
	if got.ID != "warehouse" || got.Project != "acme" {
		t.Errorf("unexpected connection %+v", got)
	}
	if got.KeyfileJSON != redacted {
		t.Errorf("keyfile should be redacted, got %q", got.KeyfileJSON)
	}
	if s.conns.conns["warehouse"].KeyfileJSON != `{"type":"service_account"}` {
		t.Error("keyfile should be stored as sent")
	}
}

func TestPutConnection_KeepsRedactedSecrets(t *testing.T) {
	s := newTestServer()
	s.conns.conns["hmac"] = domain.Connection{ID: "hmac", HMACAccessKey: "GOOG1", HMACSecretKey: "secret"}

	body := `{"hmac_access_key": "GOOG1", "hmac_secret_key": "***", "endpoint": "https://storage.example.com"}`
	if rec := s.do(http.MethodPut, "/api/v1/connections/hmac", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	saved := s.conns.conns["hmac"]
	if saved.HMACSecretKey != "secret" {
		t.Errorf("secret should be preserved, got %q", saved.HMACSecretKey)
	}
	if saved.Endpoint != "https://storage.example.com" {
		t.Errorf("endpoint should be updated, got %q", saved.Endpoint)
	}
}

func TestPutConnection_Invalid(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"bad keyfile", `{"keyfile_json": "not json"}`},
		{"both keyfiles", `{"keyfile_json": "{}", "keyfile_path": "/k.json"}`},
		{"half hmac", `{"hmac_access_key": "GOOG1"}`},
		{"redacted new", `{"keyfile_json": "***"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(http.MethodPut, "/api/v1/connections/new", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestDeleteConnection(t *testing.T) {
	s := newTestServer()
	s.conns.conns["old"] = domain.Connection{ID: "old"}

	if rec := s.do(http.MethodDelete, "/api/v1/connections/old", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/v1/connections/old", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if !strings.Contains(buf.String(), "status=418") {
		t.Errorf("expected status=418 in log, got %s", buf.String())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	// Идентификатор клиента сохраняется
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" || rec.Header().Get(HeaderRequestID) != "abc" {
		t.Errorf("expected request id abc, got %q / %q", seen, rec.Header().Get(HeaderRequestID))
	}

	// Без заголовка генерируется новый
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected generated uuid, got %q", seen)
	}
}

func TestErrorCode_Status(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeBadRequest:    http.StatusBadRequest,
		ErrCodeNotFound:      http.StatusNotFound,
		ErrCodeInvalidState:  http.StatusUnprocessableEntity,
		ErrCodeInvalidConfig: http.StatusUnprocessableEntity,
		ErrCodeInternalError: http.StatusInternalServerError,
		ErrorCode("UNKNOWN"): http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.Status(); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}
