package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const httpParamsSchema = `{"type":"object","properties":{"url":{"type":"string"},"method":{"type":"string","description":"defaults to GET"}},"required":["url"]}`

// HTTPProbeTool issues a read-only HTTP request against a subject's
// endpoints, for agents that need to poll a health/status URL directly
// rather than shelling out to curl. It never mutates state, so it is
// always available even under observe safety mode.
type HTTPProbeTool struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProbeTool(timeout time.Duration) *HTTPProbeTool {
	return &HTTPProbeTool{client: &http.Client{Timeout: timeout}, timeout: timeout}
}

func (t *HTTPProbeTool) Schema() Schema {
	return Schema{
		Name:             "http_probe",
		Description:      "Issue a read-only HTTP request (GET or HEAD) and return the response body.",
		Mutating:         false,
		RequiresApproval: false,
		ParametersSchema: json.RawMessage(httpParamsSchema),
	}
}

func (t *HTTPProbeTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return Result{Content: "url parameter is required", IsError: true}, nil
	}
	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodHead {
		return Result{Content: fmt.Sprintf("method %q is not read-only", method), IsError: true}, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxShellOutputBytes))
	if err != nil {
		return Result{Content: err.Error(), IsError: true}, nil
	}

	content := fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, string(body))
	return Result{Content: content, IsError: resp.StatusCode >= 400}, nil
}
