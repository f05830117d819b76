package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// LoadResponse — загрузка из API.
type LoadResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Attempt     int            `json:"attempt"`
	Config      map[string]any `json:"config"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	LogicalDate string         `json:"logical_date"`
	ReturnValue any            `json:"return_value,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	FinishedAt  string         `json:"finished_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// Destination возвращает целевую таблицу из конфигурации.
func (l LoadResponse) Destination() string {
	s, _ := l.Config["destination_project_dataset_table"].(string)
	return s
}

// LoadResultResponse — результат загрузки из API.
type LoadResultResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReturnValue any    `json:"return_value"`
	Error       string `json:"error,omitempty"`
}

// ConnectionResponse — подключение из API (секреты скрыты).
type ConnectionResponse struct {
	ID            string   `json:"id"`
	Project       string   `json:"project,omitempty"`
	KeyfileJSON   string   `json:"keyfile_json,omitempty"`
	KeyfilePath   string   `json:"keyfile_path,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	HMACAccessKey string   `json:"hmac_access_key,omitempty"`
	Endpoint      string   `json:"endpoint,omitempty"`
	UsesHMAC      bool     `json:"uses_hmac"`
	UpdatedAt     string   `json:"updated_at"`
}

// --- Request types ---

// CreateLoadRequest — постановка загрузки в очередь.
type CreateLoadRequest struct {
	Name        string             `json:"name,omitempty"`
	Config      domain.LoadConfig  `json:"config"`
	Inputs      map[string]any     `json:"inputs,omitempty"`
	LogicalDate *time.Time         `json:"logical_date,omitempty"`
	Retry       domain.RetryPolicy `json:"retry,omitempty"`
}

// ListLoadsOpts — параметры фильтрации загрузок.
type ListLoadsOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для gcs2bq API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Loads ---

// ListLoads возвращает загрузки с фильтрацией.
func (c *Client) ListLoads(opts ListLoadsOpts) ([]LoadResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var loads []LoadResponse
	err := c.list("/api/v1/loads", params, &loads)
	return loads, err
}

// CreateLoad ставит загрузку в очередь.
func (c *Client) CreateLoad(req CreateLoadRequest) (*LoadResponse, error) {
	var load LoadResponse
	err := c.post("/api/v1/loads", req, &load)
	return &load, err
}

// GetLoad возвращает загрузку по ID.
func (c *Client) GetLoad(id string) (*LoadResponse, error) {
	var load LoadResponse
	err := c.get("/api/v1/loads/"+id, &load)
	return &load, err
}

// GetLoadResult возвращает результат завершённой загрузки.
func (c *Client) GetLoadResult(id string) (*LoadResultResponse, error) {
	var result LoadResultResponse
	err := c.get("/api/v1/loads/"+id+"/result", &result)
	return &result, err
}

// RetryLoad возвращает неудачную загрузку в очередь.
func (c *Client) RetryLoad(id string) (*LoadResponse, error) {
	var load LoadResponse
	err := c.post("/api/v1/loads/"+id+"/retry", nil, &load)
	return &load, err
}

// --- Connections ---

// ListConnections возвращает все подключения.
func (c *Client) ListConnections() ([]ConnectionResponse, error) {
	var conns []ConnectionResponse
	err := c.list("/api/v1/connections", nil, &conns)
	return conns, err
}

// GetConnection возвращает подключение по ID.
func (c *Client) GetConnection(id string) (*ConnectionResponse, error) {
	var conn ConnectionResponse
	err := c.get("/api/v1/connections/"+url.PathEscape(id), &conn)
	return &conn, err
}

// PutConnection создаёт или заменяет подключение.
func (c *Client) PutConnection(id string, conn domain.Connection) (*ConnectionResponse, error) {
	var saved ConnectionResponse
	err := c.put("/api/v1/connections/"+url.PathEscape(id), conn, &saved)
	return &saved, err
}

// DeleteConnection удаляет подключение.
func (c *Client) DeleteConnection(id string) error {
	return c.delete("/api/v1/connections/" + url.PathEscape(id))
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
