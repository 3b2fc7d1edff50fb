// Package client is a typed Go client for the planboard HTTP API.
package client

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

	"github.com/sirupsen/logrus"
)

const maxResponseSize = 4 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for the API mounted at baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session, _ = NewSession(nil)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
		log:        discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": resp.Header.Get("X-Request-ID"),
	}).Debug("API request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(status int, raw []byte) error {
	var body struct {
		Error  string       `json:"error"`
		Errors []FieldError `json:"errors"`
	}
	_ = json.Unmarshal(raw, &body)

	if status == http.StatusBadRequest && len(body.Errors) > 0 {
		return &ValidationError{Fields: body.Errors}
	}

	if status == http.StatusUnauthorized {
		if err := c.session.Clear(); err != nil {
			c.log.WithError(err).Warn("Failed to clear session")
		}
	}

	return &APIError{StatusCode: status, Message: body.Error}
}

type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (c *Client) startSession(resp authResponse) (*User, error) {
	if err := c.session.Init(resp.Token, resp.User); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &resp); err != nil {
		return nil, err
	}
	return c.startSession(resp)
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return c.startSession(resp)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	c.session.SetUser(resp.User)
	return resp.User, nil
}

// Restore resolves a stored token to its user. An invalid token clears the session.
func (c *Client) Restore(ctx context.Context) (*User, error) {
	if !c.session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return c.Me(ctx)
}

// Logout revokes the token on the server and always clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if c.session.Authenticated() {
		err = c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
		if errors.Is(err, ErrUnauthenticated) {
			err = nil
		}
	}
	if clearErr := c.session.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/auth/me", in, &resp); err != nil {
		return nil, err
	}
	c.session.SetUser(resp.User)
	return resp.User, nil
}

// DeleteAccount removes the signed-in user and the projects it owns, then
// clears the local session.
func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	body := struct {
		Password string `json:"password"`
	}{password}
	if err := c.do(ctx, http.MethodDelete, "/auth/me", body, nil); err != nil {
		return err
	}
	return c.session.Clear()
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodPost, "/projects", in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodPut, "/projects/"+url.PathEscape(id), in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/tasks/project/"+url.PathEscape(projectID), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, in TaskUpdate) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), in.body(), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// AllTasks lists the tasks of every accessible project, project by project.
func (c *Client) AllTasks(ctx context.Context) ([]Task, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	var all []Task
	for _, p := range projects {
		tasks, err := c.ListTasks(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("tasks of project %s: %w", p.ID, err)
		}
		all = append(all, tasks...)
	}
	return all, nil
}
