// Package client talks to the skillcert HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// APIError is any non-2xx response. errors.Is matches ErrNotFound, ErrUnauthorized
// and ErrForbidden by status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	session *Session
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(session *Session, opts ...Option) *Client {
	c := &Client{
		session: session,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session { return c.session }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base := strings.TrimRight(c.session.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	return req, nil
}

// do sends req and decodes the envelope's data into out, which may be nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// Login exchanges credentials for a token and stores it on the session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.sendJSON(ctx, http.MethodPost, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.session.Token = out.Token
	c.session.UserID = out.User.ID
	c.session.Role = out.User.Role
	return &out, nil
}

func (c *Client) ListTests(ctx context.Context) ([]Test, error) {
	var out []Test
	if err := c.sendJSON(ctx, http.MethodGet, "/api/tests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTest(ctx context.Context, testID uint) (*Test, error) {
	var out Test
	if err := c.sendJSON(ctx, http.MethodGet, fmt.Sprintf("/api/tests/%d", testID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// File is one multipart part. Open is called once while the request streams.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

func FileFromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func FileFromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

type PracticalFiles struct {
	Files     []File
	Recording *File
}

type SubmitRequest struct {
	Answers   []Answer
	Practical map[uint]PracticalFiles
}

// SubmitTest streams answers and practical uploads as multipart/form-data.
func (c *Client) SubmitTest(ctx context.Context, testID uint, in SubmitRequest) (*Submission, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeSubmitForm(mw, in))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/tests/%d/submit", testID), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Submission
	if err := c.do(req, &out); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &out, nil
}

func writeSubmitForm(mw *multipart.Writer, in SubmitRequest) error {
	answers := in.Answers
	if answers == nil {
		answers = []Answer{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	if err := mw.WriteField("answers", string(data)); err != nil {
		return err
	}

	for qid, p := range in.Practical {
		for _, f := range p.Files {
			if err := writePart(mw, fmt.Sprintf("files_%d", qid), f); err != nil {
				return err
			}
		}
		if p.Recording != nil {
			if err := writePart(mw, fmt.Sprintf("recording_%d", qid), *p.Recording); err != nil {
				return err
			}
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, field string, f File) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// PendingEvaluations lists the review queue. An empty status lists everything.
func (c *Client) PendingEvaluations(ctx context.Context, status string) ([]SubmissionSummary, error) {
	path := "/api/tests/pending-evaluation"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []SubmissionSummary
	if err := c.sendJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEvaluation(ctx context.Context, submissionID string) (*EvaluationDetail, error) {
	var out EvaluationDetail
	if err := c.sendJSON(ctx, http.MethodGet, "/api/tests/evaluation/"+url.PathEscape(submissionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveEvaluation(ctx context.Context, submissionID string, in EvaluationUpdate) (*Submission, error) {
	var out Submission
	if err := c.sendJSON(ctx, http.MethodPost, "/api/tests/evaluation/"+url.PathEscape(submissionID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, userID uint) (*UserProfile, error) {
	var out UserProfile
	if err := c.sendJSON(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", userID), nil, &out); err != nil {
		return nil, err
	}
	if out.Certifications == nil {
		out.Certifications = []Certification{}
	}
	return &out, nil
}

// RegisterSeller asks the server to flip the user to seller. A gate refusal is an
// *APIError with status 403 whose Message explains why.
func (c *Client) RegisterSeller(ctx context.Context, userID uint) (*SellerResult, error) {
	var out SellerResult
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/seller", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchEvaluations follows the server-sent status stream until ctx ends or the
// server closes it. Keep-alive pings are dropped.
func (c *Client) WatchEvaluations(ctx context.Context) (<-chan StatusEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tests/evaluation/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives any request timeout
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var env envelope
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, resp.Body, out)
	}()
	return out, nil
}

func readEvents(ctx context.Context, r io.Reader, out chan<- StatusEvent) {
	scanner := bufio.NewScanner(r)
	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "status" && data.Len() > 0 {
				var ev StatusEvent
				if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
