package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inamate/inkboard/internal/artifact"
)

// Client talks to the project artifact API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the API rooted at baseURL. token is sent
// as a bearer token when non-empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	var out []artifact.Artifact
	if err := c.do(ctx, http.MethodGet, c.artifactsPath(projectID), nil, &out); err != nil {
		return nil, persistenceError("list artifacts", err)
	}
	return out, nil
}

func (c *Client) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	var out artifact.Artifact
	if err := c.do(ctx, http.MethodPost, c.artifactsPath(projectID), a, &out); err != nil {
		return nil, persistenceError("save artifact", err)
	}
	return &out, nil
}

func (c *Client) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	path := c.artifactsPath(projectID) + "/" + url.PathEscape(artifactID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return persistenceError("delete artifact", err)
	}
	return nil
}

func (c *Client) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	path := "/api/projects/" + url.PathEscape(projectID) + "/events"
	if err := c.do(ctx, http.MethodPost, path, ev, nil); err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func (c *Client) artifactsPath(projectID string) string {
	return "/api/projects/" + url.PathEscape(projectID) + "/artifacts"
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api status %d", e.Status)
}

func isStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
