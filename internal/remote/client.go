// Package remote wraps the external text-generation service's object-store
// API. Every artifact the service materializes is a named object that the
// session creates and later releases.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Return types accepted by the return_data endpoint.
const (
	ReturnRawText    = "raw_text"
	ReturnPrettyText = "pretty_text"
)

// TransportError is a network, status, or decode failure on a remote call.
// It wraps the underlying cause; the failed call is still present in the
// audit log.
type TransportError struct {
	Endpoint string
	Method   string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote call %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config holds the remote service location and the fixed credentials
// attached to every request.
type Config struct {
	BaseURL     string
	BearerToken string
	AppID       string
	UsageKey    string
}

// Client communicates with the remote service over HTTP. It never retries;
// failures are normalized into *TransportError and recorded in the audit log
// before propagating.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *CallLog
}

// New creates a Client. If log is nil, a fresh CallLog with the default cap
// is used.
func New(cfg Config, log *CallLog) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = NewCallLog(0)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Log returns the audit log this client records into.
func (c *Client) Log() *CallLog { return c.log }

// call performs one JSON request/response exchange. Every call, success or
// failure, appends exactly one audit entry before this function returns.
func (c *Client) call(ctx context.Context, method, endpoint string, payload, out any) error {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshalling request for %s: %w", endpoint, err)
		}
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("X-Generated-App-ID", c.cfg.AppID)
	req.Header.Set("X-Usage-Key", c.cfg.UsageKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, method, reqBody, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return &TransportError{Endpoint: endpoint, Method: method, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(endpoint, method, reqBody, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return &TransportError{Endpoint: endpoint, Method: method, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.record(endpoint, method, reqBody, string(respBody))

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Endpoint: endpoint, Method: method, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &TransportError{Endpoint: endpoint, Method: method, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}

func (c *Client) record(endpoint, method string, reqBody []byte, respBody string) {
	c.log.Record(endpoint, method, string(reqBody), respBody)
}

// CreateAgent provisions a conversational agent identity and returns its id.
func (c *Client) CreateAgent(ctx context.Context, instructions, name string) (string, error) {
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	err := c.call(ctx, http.MethodPost, "/create-agent", map[string]any{
		"instructions": instructions,
		"agent_name":   name,
	}, &resp)
	return resp.AgentID, err
}

// Chat sends one message to an established agent and returns its reply.
func (c *Client) Chat(ctx context.Context, agentID, message string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	err := c.call(ctx, http.MethodPost, "/chat", map[string]any{
		"agent_id": agentID,
		"message":  message,
	}, &resp)
	return resp.Response, err
}

// InputData stores text rows as a named server-side input object.
func (c *Client) InputData(ctx context.Context, objectName string, rows []string) error {
	return c.call(ctx, http.MethodPost, "/input_data", map[string]any{
		"created_object_name": objectName,
		"data_type":           "strings",
		"input_data":          rows,
	}, nil)
}

// PromptInput names a stored input object and how it feeds a prompt.
type PromptInput struct {
	ObjectName string `json:"input_object_name"`
	Mode       string `json:"mode"`
}

// ApplyPrompt runs a prompt over stored inputs, materializing the named
// output objects server-side.
func (c *Client) ApplyPrompt(ctx context.Context, objectNames []string, prompt string, inputs []PromptInput) error {
	return c.call(ctx, http.MethodPost, "/apply_prompt", map[string]any{
		"created_object_names": objectNames,
		"prompt_string":        prompt,
		"inputs":               inputs,
	}, nil)
}

// ReturnData retrieves the materialized value of a named object.
// returnType is one of ReturnRawText or ReturnPrettyText.
func (c *Client) ReturnData(ctx context.Context, objectName, returnType string) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	err := c.call(ctx, http.MethodPost, "/return_data", map[string]any{
		"object_name": objectName,
		"return_type": returnType,
	}, &resp)
	return resp.Value, err
}

// RapidResearch starts a long-running research task whose result lands in
// the named object.
func (c *Client) RapidResearch(ctx context.Context, objectName, goal string) error {
	return c.call(ctx, http.MethodPost, "/rapid_research", map[string]any{
		"created_object_name": objectName,
		"goal":                goal,
	}, nil)
}

// DeleteObject releases one server-side object.
func (c *Client) DeleteObject(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodDelete, "/objects/"+name, nil, nil)
}
