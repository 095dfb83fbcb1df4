package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillcert_backend/pkg/client"
)

func reply(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"code": code, "message": http.StatusText(code), "data": data})
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	serverURL, listStatus, evalOverall, loginPassword = "", "", "", ""
	evalScores, evalFeedback, takeAnswers, takeFiles = nil, nil, nil, nil
	evalShowOnly, takeRecord = false, 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func fakeServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			reply(w, http.StatusUnauthorized, nil)
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"token": "tok", "user": map[string]any{"id": 5, "name": "Una", "role": "freelancer"},
		})
	})
	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"_id": 5, "certifications": []any{}})
	})
	mux.HandleFunc("GET /api/tests/pending-evaluation", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]any{
			{"_id": "s1", "learnerName": "Una", "skill": "go", "score": 60, "evaluationStatus": "pending"},
		})
	})
	mux.HandleFunc("GET /api/tests/evaluation/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s1" {
			reply(w, http.StatusNotFound, nil)
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"submission": map[string]any{
				"_id": "s1", "evaluationStatus": "pending",
				"practicalSubmissions": []map[string]any{{"questionId": 3, "status": "pending"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginThenStartEarning(t *testing.T) {
	srv := fakeServer(t)
	sessionPath = filepath.Join(t.TempDir(), "session.json")

	_, err := execute(t, "", "start-earning")
	assert.ErrorIs(t, err, client.ErrNoSession)

	_, err = execute(t, "wrong\n", "login", "una@example.com", "--server", srv.URL)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	out, err := execute(t, "secret\n", "login", "una@example.com", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Una")

	saved, err := client.LoadSession(sessionPath)
	require.NoError(t, err)
	assert.Equal(t, "tok", saved.Token)
	assert.Equal(t, uint(5), saved.UserID)

	out, err = execute(t, "", "start-earning")
	require.NoError(t, err)
	assert.Equal(t, "Please complete a skill assessment before you start selling on our platform.\n", out)
}

func TestSubmissionsAndEvaluate(t *testing.T) {
	srv := fakeServer(t)
	sessionPath = filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, (&client.Session{BaseURL: srv.URL, Token: "tok", Role: "admin"}).Save(sessionPath))

	out, err := execute(t, "", "submissions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Evaluate")

	_, err = execute(t, "", "evaluate", "s1", "--score", "3=140")
	assert.ErrorContains(t, err, "between 0 and 100")

	_, err = execute(t, "", "evaluate", "nope", "--score", "3=80")
	assert.ErrorContains(t, err, "submission nope not found")

	_, err = execute(t, "", "evaluate", "s1", "--score", "x=80")
	assert.ErrorContains(t, err, "bad question id")
}

func TestParsePair(t *testing.T) {
	id, v, err := parsePair("12=a=b")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Equal(t, "a=b", v)

	_, _, err = parsePair("12")
	assert.Error(t, err)
}

func TestWaitForEnter(t *testing.T) {
	assert.NoError(t, waitForEnter(strings.NewReader("\n")))
	assert.Error(t, waitForEnter(strings.NewReader("")))
	assert.Error(t, waitForEnter(strings.NewReader("no newline")))
}
