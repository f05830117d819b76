package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// --- LoadFile Tests ---

const testLoadFile = `
name: orders
logical_date: 2024-01-15
inputs:
  region: eu
config:
  bucket: landing
  source_objects: orders/{{ .DS }}/*.csv
  destination_project_dataset_table: acme.raw.orders
  max_id_key: id
  src_fmt_configs:
    nullMarker: "NA"
retry:
  max_attempts: 3
  backoff: exponential
`

func TestParseLoadFile(t *testing.T) {
	lf, err := ParseLoadFile([]byte(testLoadFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lf.Name != "orders" {
		t.Errorf("unexpected name %s", lf.Name)
	}
	if len(lf.Config.SourceObjects) != 1 || lf.Config.SourceObjects[0] != "orders/{{ .DS }}/*.csv" {
		t.Errorf("unexpected source objects %v", lf.Config.SourceObjects)
	}
	if lf.Config.MaxIDKey != "id" {
		t.Errorf("unexpected max_id_key %s", lf.Config.MaxIDKey)
	}
	if lf.Config.SrcFmtConfigs["nullMarker"] != "NA" {
		t.Errorf("unexpected src_fmt_configs %v", lf.Config.SrcFmtConfigs)
	}
	if lf.Retry.MaxAttempts != 3 || lf.Retry.Backoff != "exponential" {
		t.Errorf("unexpected retry %+v", lf.Retry)
	}
	if lf.Inputs["region"] != "eu" {
		t.Errorf("unexpected inputs %v", lf.Inputs)
	}
}

func TestParseLoadFile_JSON(t *testing.T) {
	data := `{"config": {"bucket": "b", "source_objects": ["a.csv", "b.csv"], "destination_project_dataset_table": "d.t"}}`

	lf, err := ParseLoadFile([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lf.Config.SourceObjects) != 2 {
		t.Errorf("expected 2 objects, got %v", lf.Config.SourceObjects)
	}
}

func TestParseLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "config: [unclosed"},
		{"bad date", "logical_date: yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLoadFile([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile_ApplyAndRequest(t *testing.T) {
	lf, err := ParseLoadFile([]byte(testLoadFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lf.Apply(map[string]any{"region": "us", "table": "orders"}, "2024-02-01")

	req, err := lf.Request()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Inputs["region"] != "us" || req.Inputs["table"] != "orders" {
		t.Errorf("flags should override file inputs, got %v", req.Inputs)
	}
	if req.LogicalDate == nil || !req.LogicalDate.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected logical date %v", req.LogicalDate)
	}
}

func TestLoadFile_Task(t *testing.T) {
	lf := &LoadFile{Name: "x", LogicalDate: "2024-03-09T06:30:00+03:00"}
	lf.Apply(map[string]any{"k": "v"}, "")

	task, err := lf.Task()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != domain.TaskStatusQueued {
		t.Errorf("expected QUEUED, got %s", task.Status)
	}
	if task.LogicalDate.Hour() != 3 || task.LogicalDate.Location() != time.UTC {
		t.Errorf("logical date should be in UTC, got %v", task.LogicalDate)
	}
	if task.Inputs["k"] != "v" {
		t.Errorf("unexpected inputs %v", task.Inputs)
	}
}

func TestParseInputs(t *testing.T) {
	inputs, err := ParseInputs([]string{"a=1", "query=x=y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inputs["a"] != "1" || inputs["query"] != "x=y" {
		t.Errorf("unexpected inputs %v", inputs)
	}

	if inputs, _ := ParseInputs(nil); inputs != nil {
		t.Errorf("expected nil, got %v", inputs)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := ParseInputs([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

// --- Client Tests ---

func TestClient_CreateLoad(t *testing.T) {
	var got CreateLoadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/loads" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "abc", "status": "QUEUED", "config": {"destination_project_dataset_table": "d.t"}}}`))
	}))
	defer srv.Close()

	load, err := NewClient(srv.URL).CreateLoad(CreateLoadRequest{
		Config: domain.LoadConfig{Bucket: "b", SourceObjects: domain.StringOrSlice{"a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if load.ID != "abc" || load.Destination() != "d.t" {
		t.Errorf("unexpected load %+v", load)
	}
	if got.Config.Bucket != "b" {
		t.Errorf("request body not sent, got %+v", got)
	}
}

func TestClient_ListLoads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "FAILED" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data": [{"id": "1"}, {"id": "2"}], "total": 2}`))
	}))
	defer srv.Close()

	loads, err := NewClient(srv.URL).ListLoads(ListLoadsOpts{Status: "FAILED", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loads) != 2 {
		t.Errorf("expected 2 loads, got %d", len(loads))
	}
}

func TestClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": {"code": "INVALID_STATE", "message": "load is not finished: RUNNING"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetLoadResult("abc")
	if err == nil || err.Error() != "INVALID_STATE: load is not finished: RUNNING" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestClient_DeleteConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/connections/warehouse" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).DeleteConnection("warehouse"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// --- Output Tests ---

func TestOutput_Fields(t *testing.T) {
	var buf bytes.Buffer
	out := newOutput(false, &buf, &buf)

	out.Fields([][2]string{{"ID", "abc"}, {"ERROR", ""}, {"STATUS", "SUCCEEDED"}}, nil)

	s := buf.String()
	if !strings.Contains(s, "ID:") || !strings.Contains(s, "SUCCEEDED") {
		t.Errorf("unexpected output %q", s)
	}
	if strings.Contains(s, "ERROR") {
		t.Errorf("empty fields should be skipped: %q", s)
	}
}

func TestOutput_Print(t *testing.T) {
	var data, msg bytes.Buffer
	out := newOutput(false, &data, &msg)

	out.Print([]string{"ID", "STATUS"}, [][]string{{"abc", "QUEUED"}}, nil)
	lines := strings.Split(strings.TrimSpace(data.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, underline and row, got %q", data.String())
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("expected underline, got %q", lines[1])
	}

	// Пустой список — сообщение в stderr
	data.Reset()
	out.Print([]string{"ID"}, nil, nil)
	if data.Len() != 0 || !strings.Contains(msg.String(), "No results.") {
		t.Errorf("unexpected output %q / %q", data.String(), msg.String())
	}

	// JSON режим
	data.Reset()
	newOutput(true, &data, &msg).Print(nil, nil, map[string]string{"id": "abc"})
	if !strings.Contains(data.String(), `"id": "abc"`) {
		t.Errorf("unexpected json %q", data.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"2024-01-15", "2024-01-15"},
		{float64(42), "42"},
		{true, "true"},
	}

	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMergeConnection(t *testing.T) {
	dst := domain.Connection{Project: "file", KeyfilePath: "/a.json"}
	mergeConnection(&dst, domain.Connection{Project: "flag"})

	if dst.Project != "flag" || dst.KeyfilePath != "/a.json" {
		t.Errorf("unexpected merge result %+v", dst)
	}
}
