// Package examclient is the student side of an exam: an API client, an
// Attempt that runs the countdown and autosaver, and a line-based console.
package examclient

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

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code response.ErrCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to the /api/v1 REST surface with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer token, e.g. one read from a saved session.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var res model.LoginResponse
	body := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

func (c *Client) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	var res struct {
		Exam model.Exam `json:"exam"`
	}
	if err := c.do(ctx, http.MethodGet, "/exams/"+examID.String(), nil, &res); err != nil {
		return nil, err
	}
	return &res.Exam, nil
}

// ListQuestions returns the questions in the order this student sees them.
func (c *Client) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, error) {
	var res struct {
		Questions []model.QuestionForStudent `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/questions/exam/"+examID.String(), nil, &res); err != nil {
		return nil, err
	}
	return res.Questions, nil
}

// GetMySubmission returns nil without error when no attempt exists yet.
func (c *Client) GetMySubmission(ctx context.Context, examID uuid.UUID) (*model.SubmissionView, error) {
	var res struct {
		Submission model.SubmissionView `json:"submission"`
	}
	err := c.do(ctx, http.MethodGet, "/studentAnswers/"+examID.String(), nil, &res)
	if IsCode(err, response.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res.Submission, nil
}

func (c *Client) Autosave(ctx context.Context, examID uuid.UUID, answers []model.SubmittedAnswer, seq int64) error {
	body := model.AutosaveRequest{Answers: answers, Seq: seq}
	return c.do(ctx, http.MethodPost, "/studentAnswers/"+examID.String()+"/autosave", body, nil)
}

func (c *Client) Submit(ctx context.Context, examID uuid.UUID, answers []model.SubmittedAnswer) (*model.SubmitResponse, error) {
	var res model.SubmitResponse
	body := model.SubmitRequest{Answers: answers}
	if err := c.do(ctx, http.MethodPost, "/studentAnswers/"+examID.String()+"/submit", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
