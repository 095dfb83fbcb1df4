package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(&Session{BaseURL: srv.URL + "/", Token: "tok"})
}

func TestLoginStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret123" {
			writeEnvelope(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "success", map[string]any{
			"token": "new-token",
			"user":  map[string]any{"id": 9, "name": "Ana", "role": "admin"},
		})
	})
	c := newTestClient(t, mux)

	_, err := c.Login(context.Background(), "a@example.com", "nope")
	require.ErrorIs(t, err, ErrUnauthorized)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	res, err := c.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "new-token", res.Token)
	assert.Equal(t, "new-token", c.Session().Token)
	assert.Equal(t, uint(9), c.Session().UserID)
	assert.Equal(t, "admin", c.Session().Role)
}

func TestGetUserEmptyCertifications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if r.PathValue("id") == "404" {
			writeEnvelope(w, http.StatusNotFound, "user not found", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "success", map[string]any{"_id": 1, "name": "u1", "certifications": nil})
	})
	c := newTestClient(t, mux)

	profile, err := c.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, profile.Certifications)
	assert.Empty(t, profile.Certifications)

	_, err = c.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingEvaluationsQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/pending-evaluation", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "success", []map[string]any{
			{"_id": "s1", "skill": "go", "evaluationStatus": r.URL.Query().Get("status")},
		})
	})
	c := newTestClient(t, mux)

	rows, err := c.PendingEvaluations(context.Background(), StatusInProgress)
	require.NoError(t, err)
	want := []SubmissionSummary{{ID: "s1", Skill: "go", EvaluationStatus: StatusInProgress}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveEvaluationBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/evaluation/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body EvaluationUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s1", r.PathValue("id"))
		assert.Equal(t, StatusCompleted, body.EvaluationStatus)
		assert.Equal(t, 80.0, body.PracticalScores["3"])
		if body.PracticalScores["3"] > 100 {
			writeEnvelope(w, http.StatusBadRequest, "score must be between 0 and 100", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "success", map[string]any{"_id": "s1", "evaluationStatus": "completed"})
	})
	c := newTestClient(t, mux)

	sub, err := c.SaveEvaluation(context.Background(), "s1", EvaluationUpdate{
		PracticalScores:  map[string]float64{"3": 80},
		EvaluationStatus: StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, sub.EvaluationStatus)
}

func TestSubmitTestMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var answers []Answer
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("answers")), &answers))
		assert.Equal(t, []Answer{{QuestionID: 1, Answer: "4"}}, answers)

		fh := r.MultipartForm.File["files_2"]
		require.Len(t, fh, 1)
		assert.Equal(t, "main.go", fh[0].Filename)

		rec := r.MultipartForm.File["recording_2"]
		require.Len(t, rec, 1)
		f, err := rec[0].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "webm-bytes", string(data))

		writeEnvelope(w, http.StatusCreated, "created", map[string]any{"_id": "sub-1", "evaluationStatus": "pending"})
	})
	c := newTestClient(t, mux)

	recording := FileFromBytes("screen.webm", []byte("webm-bytes"))
	sub, err := c.SubmitTest(context.Background(), 7, SubmitRequest{
		Answers: []Answer{{QuestionID: 1, Answer: "4"}},
		Practical: map[uint]PracticalFiles{
			2: {Files: []File{FileFromBytes("main.go", []byte("package main"))}, Recording: &recording},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
}

func TestSubmitTestMissingFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			return
		}
		writeEnvelope(w, http.StatusBadRequest, "invalid multipart form", nil)
	})
	c := newTestClient(t, mux)

	_, err := c.SubmitTest(context.Background(), 7, SubmitRequest{
		Practical: map[uint]PracticalFiles{2: {Files: []File{FileFromPath(filepath.Join(t.TempDir(), "missing.go"))}}},
	})
	assert.Error(t, err)
}

func TestWatchEvaluations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/evaluation/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:ping\ndata:1\n\n")
		fmt.Fprint(w, `event:status`+"\n"+`data:{"submissionId":"s1","evaluationStatus":"in_progress"}`+"\n\n")
		w.(http.Flusher).Flush()
	})
	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := c.WatchEvaluations(ctx)
	require.NoError(t, err)

	var got []StatusEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SubmissionID)
	assert.Equal(t, StatusInProgress, got[0].EvaluationStatus)
}

func TestAPIErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &APIError{Status: http.StatusForbidden, Message: "Forbidden"})
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, strings.Contains(err.Error(), "403"))
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	_, err := LoadSession(path)
	assert.ErrorIs(t, err, ErrNoSession)

	s := &Session{BaseURL: "http://localhost:8080", Token: "abc", UserID: 3, Role: "freelancer"}
	require.NoError(t, s.Save(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"auth_token": "abc"`)

	loaded, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))
	_, err = LoadSession(path)
	assert.ErrorIs(t, err, ErrNoSession)
}
