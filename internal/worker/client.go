package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// Client talks to internal/server's task-checkout and task-completion
// endpoints on behalf of a worker process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a worker API client with connection pooling, the way
// the teacher's worker client is constructed.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Checkout claims the oldest pending DispatchTask for executorType. Returns
// nil with no error when no work is available (HTTP 204).
func (c *Client) Checkout(ctx context.Context, executorType model.ExecutorType) (*model.DispatchTask, error) {
	path := fmt.Sprintf("/api/v1/tasks/checkout?executor_type=%s", executorType)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var task model.DispatchTask
	if err := decodeResponseData(resp, &task); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return &task, nil
}

// Result is what a worker reports back once a task reaches a terminal
// state.
type Result struct {
	State    model.TaskState `json:"state"`
	ExitCode *int            `json:"exit_code,omitempty"`
	Stdout   string          `json:"stdout,omitempty"`
	Stderr   string          `json:"stderr,omitempty"`
}

// ReportComplete sends a task's terminal result to the server.
func (c *Client) ReportComplete(ctx context.Context, taskID string, result Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	resp, err := c.doRequest(ctx, http.MethodPut, "/api/v1/tasks/"+taskID+"/complete", body)
	if err != nil {
		return fmt.Errorf("report complete: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}
	return resp, nil
}

// decodeResponseData extracts the data field from the planner's standard
// Response envelope.
func decodeResponseData(resp *http.Response, dest any) error {
	var envelope model.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	data, err := json.Marshal(envelope.Data)
	if err != nil {
		return fmt.Errorf("remarshal data: %w", err)
	}
	return json.Unmarshal(data, dest)
}
