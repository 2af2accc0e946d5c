package hakari

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MetricsPath is the base path of the metrics API.
const MetricsPath = "/preview/evaluations/metrics/"

// Config holds the settings needed to construct a Client. Every transport
// parameter is explicit; there is no package-level default client.
type Config struct {
	// BaseURL is the root URL of the Hakari server (e.g. "http://localhost:8080").
	BaseURL string
	// Token is sent as a bearer token on every authenticated call.
	Token string
	// ProjectID scopes every metric call.
	ProjectID string
	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client
	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Hakari metrics API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	projectID string
	client    *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL, Token, or ProjectID is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hakari: BaseURL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("hakari: Token is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("hakari: ProjectID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		projectID: cfg.ProjectID,
		client:    httpClient,
	}, nil
}

// ProjectID returns the project every call is scoped to.
func (c *Client) ProjectID() string { return c.projectID }

// ---------------------------------------------------------------------------
// Metric records
// ---------------------------------------------------------------------------

// CreateMetrics stores a batch of records in one call.
func (c *Client) CreateMetrics(ctx context.Context, metrics []CreateMetric) ([]Metric, error) {
	var resp metricsBody
	if err := c.post(ctx, c.metricsURL("", nil), map[string]any{"metrics": metrics}, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// ListMetrics returns the records matching opts. Nil opts lists the
// project's first page.
func (c *Client) ListMetrics(ctx context.Context, opts *ListOptions) ([]Metric, error) {
	params := url.Values{}
	if opts != nil {
		if len(opts.RunIDs) > 0 {
			params["run_ids"] = opts.RunIDs
		}
		if opts.RunLevel {
			params.Set("run_level", "true")
		} else if len(opts.ScenarioIDs) > 0 {
			params["scenario_ids"] = opts.ScenarioIDs
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp metricsBody
	if err := c.get(ctx, c.metricsURL("", params), &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// LookupMetric returns the stored record for (runID, scenarioID), or nil
// when none exists. A nil scenarioID looks up the run-level record.
// Identifiers the server would not accept are rejected before any request,
// and a returned record always carries exactly the requested identity.
func (c *Client) LookupMetric(ctx context.Context, runID string, scenarioID *string) (*Metric, error) {
	if err := ValidateIdentifier("run_id", runID); err != nil {
		return nil, err
	}
	opts := &ListOptions{RunIDs: []string{runID}, Limit: 1}
	if scenarioID == nil {
		opts.RunLevel = true
	} else {
		if err := ValidateIdentifier("scenario_id", *scenarioID); err != nil {
			return nil, err
		}
		opts.ScenarioIDs = []string{*scenarioID}
	}
	metrics, err := c.ListMetrics(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, nil
	}
	m := &metrics[0]
	if m.RunID != runID || !sameScenario(m.ScenarioID, scenarioID) {
		return nil, fmt.Errorf("hakari: lookup (%s, %s) returned record for (%s, %s)",
			runID, scenarioLabel(scenarioID), m.RunID, scenarioLabel(m.ScenarioID))
	}
	return m, nil
}

// ValidateIdentifier reports whether id is usable as a run or scenario
// identifier: 1-255 bytes, no control characters, no commas, and no
// leading or trailing whitespace. The server enforces the same rule.
func ValidateIdentifier(name, id string) error {
	if id == "" {
		return fmt.Errorf("hakari: %s is required", name)
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("hakari: %s must be at most %d characters", name, maxIdentifierLen)
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("hakari: %s %q must not start or end with whitespace", name, id)
	}
	if strings.ContainsRune(id, ',') {
		return fmt.Errorf("hakari: %s %q must not contain a comma", name, id)
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x20 || c == 0x7f {
			return fmt.Errorf("hakari: %s contains a control character at position %d", name, i)
		}
	}
	return nil
}

const maxIdentifierLen = 255

func sameScenario(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func scenarioLabel(id *string) string {
	if id == nil {
		return "run-level"
	}
	return *id
}

// UpdateMetric applies one update. It performs no merge; the caller
// supplies the final data.
func (c *Client) UpdateMetric(ctx context.Context, update MetricUpdate) (*Metric, error) {
	var resp metricBody
	if err := c.patch(ctx, c.metricsURL(update.ID.String(), nil), map[string]any{"metric": update}, &resp); err != nil {
		return nil, err
	}
	return &resp.Metric, nil
}

// UpdateMetrics applies a batch of updates in one call.
func (c *Client) UpdateMetrics(ctx context.Context, updates []MetricUpdate) ([]Metric, error) {
	var resp metricsBody
	if err := c.patch(ctx, c.metricsURL("", nil), map[string]any{"metrics": updates}, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// GetMetric fetches one record by ID.
func (c *Client) GetMetric(ctx context.Context, id uuid.UUID) (*Metric, error) {
	var resp metricBody
	if err := c.get(ctx, c.metricsURL(id.String(), nil), &resp); err != nil {
		return nil, err
	}
	return &resp.Metric, nil
}

// ---------------------------------------------------------------------------
// Aggregation and health
// ---------------------------------------------------------------------------

// RunStats returns the server-side aggregation of every scenario record of
// a run.
func (c *Client) RunStats(ctx context.Context, runID string) (*RunStats, error) {
	params := url.Values{}
	params.Set("project_id", c.projectID)
	path := "/preview/evaluations/runs/" + url.PathEscape(runID) + "/stats?" + params.Encode()
	var resp RunStats
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Aggregate asks the server to aggregate entries without storing them.
func (c *Client) Aggregate(ctx context.Context, entries []EntityData) (map[string]BasicStats, error) {
	var resp aggregateBody
	if err := c.post(ctx, c.metricsURL("aggregate", nil), map[string]any{"entries": entries}, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// Health checks the server's health status. This endpoint does not require
// authentication.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("hakari: create request: %w", err)
	}
	var resp HealthResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

// metricsURL builds a path under MetricsPath with project_id always set.
func (c *Client) metricsURL(suffix string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("project_id", c.projectID)
	path := MetricsPath
	if suffix != "" {
		path += url.PathEscape(suffix)
	}
	return path + "?" + params.Encode()
}

// apiEnvelope unwraps the server's {"data": ...} envelope used by
// non-metric endpoints.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	return c.withBody(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) patch(ctx context.Context, path string, body any, dest any) error {
	return c.withBody(ctx, http.MethodPatch, path, body, dest)
}

func (c *Client) withBody(ctx context.Context, method, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hakari: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("hakari: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("hakari: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.send(req, dest)
}

func (c *Client) send(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hakari: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("hakari: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("hakari: decode response: %w", err)
	}
	if envelope.Data == nil {
		// Metric endpoints answer without the envelope.
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(resp *http.Response, body []byte) *Error {
	apiErr := &Error{StatusCode: resp.StatusCode, Status: resp.Status}
	if apiErr.Status == "" {
		apiErr.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
