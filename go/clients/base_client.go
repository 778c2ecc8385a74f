package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BaseClient is a small JSON-over-HTTP client shared by the external API clients.
type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// APIError is returned for non-2xx responses. Code and Msg are filled when
// the body is a twirp-style {"code","msg"} error.
type APIError struct {
	StatusCode int
	Code       string
	Msg        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API returned status code: %d, %s: %s", e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// IsErrorCode reports whether err is an APIError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// MakeRequest sends body to endpoint and returns the response body. extra
// headers are applied after the client defaults.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader, extra map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(responseBody)}
		var twirpErr struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(responseBody, &twirpErr) == nil {
			apiErr.Code, apiErr.Msg = twirpErr.Code, twirpErr.Msg
		}
		return nil, apiErr
	}
	return responseBody, nil
}

// PostJSON marshals in, posts it and decodes the reply into out when out is non-nil.
func (c *BaseClient) PostJSON(ctx context.Context, endpoint string, in, out any, extra map[string]string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if extra == nil {
		extra = make(map[string]string, 1)
	}
	extra["Content-Type"] = "application/json"

	data, err := c.MakeRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload), extra)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
