package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kelsos/genjobs/internal/logger"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

// HTTPError is returned for any non-2xx response. Body holds the raw
// provider payload so callers can surface it.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// APIClient handles JSON communication with a bearer-authenticated provider
type APIClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewAPIClient creates a new API client. An empty apiKey sends no
// Authorization header.
func NewAPIClient(apiKey string, timeout time.Duration) *APIClient {
	return &APIClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *APIClient) WithHTTPClient(hc *http.Client) *APIClient {
	c.httpClient = hc
	return c
}

// HTTPClient exposes the underlying client so downloads share its timeout.
func (c *APIClient) HTTPClient() *http.Client {
	return c.httpClient
}

// Get makes a GET request to the specified URL
func (c *APIClient) Get(ctx context.Context, url string, result interface{}) error {
	return c.request(ctx, http.MethodGet, url, nil, result)
}

// Post makes a POST request to the specified URL
func (c *APIClient) Post(ctx context.Context, url string, body interface{}, result interface{}) error {
	return c.request(ctx, http.MethodPost, url, body, result)
}

// request is the core HTTP request method
func (c *APIClient) request(ctx context.Context, method, url string, body interface{}, result interface{}) error {
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, url)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Request to %s failed after %v: %v", url, time.Since(start), err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Request to %s completed in %v with status %d", url, time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Error("%s: HTTP error %d: %s", url, resp.StatusCode, string(bodyBytes))
		return &HTTPError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			logger.Error("%s: Error decoding response: %v", url, err)
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}
