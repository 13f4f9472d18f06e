// Package gateway wraps all HTTP calls to the exam platform backend. It is
// the single boundary object between the client and the network: every
// response is either decoded into a model type or classified as ErrNotFound,
// ErrUnauthorized, or an *api.Error the caller can inspect for
// retryability.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/api"
	"github.com/stemsi/exstem-client/internal/model"
)

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	// onUnauthorized is invoked once per 401 so the auth context can force
	// a logout. Set via SetUnauthorizedHook after construction to break the
	// auth→gateway→auth cycle.
	onUnauthorized func()
}

// New creates a gateway client. tokens may be nil for unauthenticated use.
func New(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout, tokens, log),
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// SetUnauthorizedHook registers the global 401 handler.
func (c *Client) SetUnauthorizedHook(fn func()) { c.onUnauthorized = fn }

// ─── Auth endpoints ─────────────────────────────────────────────────────

// Login exchanges credentials for a token and user payload.
// The auth endpoints return their payload unwrapped.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	var out model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/login", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	var out model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/register", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the current user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the server-side token. Local state is cleared by the
// auth context regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", struct{}{}, true, nil)
}

// ─── Exam endpoints ─────────────────────────────────────────────────────

// ListExams returns the exams available to the current user.
func (c *Client) ListExams(ctx context.Context) ([]model.Exam, error) {
	var out []model.Exam
	if err := c.do(ctx, http.MethodGet, "/exams", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchExam returns one exam with its questions and choices.
func (c *Client) FetchExam(ctx context.Context, examID int64) (*model.Exam, error) {
	var out model.Exam
	path := fmt.Sprintf("/exams/%d", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartAttempt creates (or resumes) an attempt for the exam.
func (c *Client) StartAttempt(ctx context.Context, examID int64) (*model.StartExamResult, error) {
	var out model.StartExamResult
	path := fmt.Sprintf("/exams/%d/start", examID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveAnswer persists a single answer as an idempotent per-question upsert.
// The response body is never read back into local state.
func (c *Client) SaveAnswer(ctx context.Context, attemptID int64, answer model.Answer) error {
	path := fmt.Sprintf("/attempts/%d/answer", attemptID)
	return c.do(ctx, http.MethodPost, path, answer, true, nil)
}

// FetchAttempt returns an attempt with any previously recorded answers.
// Used to resume a session after a reload.
func (c *Client) FetchAttempt(ctx context.Context, attemptID int64) (*model.Attempt, error) {
	var out model.Attempt
	path := fmt.Sprintf("/attempts/%d", attemptID)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAttempt sends the full answer set and finalizes the attempt. The
// returned attempt may still carry a nil score (grading is asynchronous).
func (c *Client) SubmitAttempt(ctx context.Context, attemptID int64, answers []model.Answer) (*model.Attempt, error) {
	var out model.Attempt
	path := fmt.Sprintf("/attempts/%d/submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, model.SubmitRequest{Answers: answers}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchResults returns the current user's attempts.
func (c *Client) FetchResults(ctx context.Context) ([]model.Attempt, error) {
	var out []model.Attempt
	if err := c.do(ctx, http.MethodGet, "/results", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchExamResults returns all attempts for one exam (admin only).
func (c *Client) FetchExamResults(ctx context.Context, examID int64) ([]model.Attempt, error) {
	var out []model.Attempt
	path := fmt.Sprintf("/exams/%d/results", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Request plumbing ───────────────────────────────────────────────────

// do performs one request. wrapped selects whether the response payload
// arrives inside the { data, message, errors } envelope. dst may be nil
// when the body is ignored.
func (c *Client) do(ctx context.Context, method, path string, body any, wrapped bool, dst any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classify(resp.StatusCode, raw)
	}

	if dst == nil {
		return nil
	}
	if !wrapped {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var env api.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.DecodeData(dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// classify converts a non-2xx response into the client error taxonomy.
func (c *Client) classify(status int, raw []byte) error {
	var env api.Envelope
	_ = json.Unmarshal(raw, &env) // Best effort; body may not be an envelope.

	switch status {
	case http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}

	return &api.Error{Status: status, Message: env.Message, Fields: env.Errors}
}
