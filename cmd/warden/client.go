package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// APIClient talks to a running supervisor's control API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8780/api"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ServiceURL returns the backend service URL advertised by the supervisor.
func (c *APIClient) ServiceURL() (string, error) {
	resp, err := c.client.Get(c.baseURL + "/service/url")
	if err != nil {
		return "", fmt.Errorf("supervisor not reachable at %s - start it first with 'warden run': %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", fmt.Errorf("service not ready")
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Status returns the supervisor's view of the backend service.
func (c *APIClient) Status() (map[string]any, error) {
	resp, err := c.client.Get(c.baseURL + "/service/status")
	if err != nil {
		return nil, fmt.Errorf("supervisor not reachable at %s - start it first with 'warden run': %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop asks the supervisor to run its shutdown sequence.
func (c *APIClient) Stop() error {
	resp, err := c.client.Post(c.baseURL+"/service/stop", "application/json", nil)
	if err != nil {
		return fmt.Errorf("supervisor not reachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("API error: %s", errorResp.Error)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
