// Package todoist is a small REST client for the task service. Only the five
// endpoints the pipeline needs are implemented: list projects, list labels,
// list sections for a project, create a label, and create a task.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.todoist.com/rest/v2"

// Project is one remote project reference. Identity is the ID; the name is
// display-only and not guaranteed unique.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Label is one remote label reference.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Section is one remote section reference within a project.
type Section struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// Task is the created-task response.
type Task struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// TaskRequest is the task-creation payload. Optional fields are omitted when
// empty; labels are sent by name, never by ID.
type TaskRequest struct {
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	SectionID   string   `json:"section_id,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	DueString   string   `json:"due_string,omitempty"`
	Priority    int      `json:"priority,omitempty"`
}

// APIError is a non-success response from the task service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("todoist: HTTP %d: %s", e.Status, body)
}

// Client calls the task service REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client. An empty baseURL means the public API endpoint.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	return out, c.get(ctx, "/projects", &out)
}

// Labels lists all personal labels.
func (c *Client) Labels(ctx context.Context) ([]Label, error) {
	var out []Label
	return out, c.get(ctx, "/labels", &out)
}

// Sections lists the sections of one project.
func (c *Client) Sections(ctx context.Context, projectID string) ([]Section, error) {
	var out []Section
	return out, c.get(ctx, "/sections?project_id="+url.QueryEscape(projectID), &out)
}

// CreateLabel creates a label by name.
func (c *Client) CreateLabel(ctx context.Context, name string) (Label, error) {
	var out Label
	return out, c.post(ctx, "/labels", map[string]string{"name": name}, &out)
}

// CreateTask submits a new task.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (Task, error) {
	var out Task
	return out, c.post(ctx, "/tasks", req, &out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("todoist: create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("todoist: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("todoist: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("todoist: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("todoist: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("todoist: unmarshal response: %w", err)
	}
	return nil
}
