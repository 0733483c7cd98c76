package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/pitlane/pkg/archive"
	"github.com/go-go-golems/pitlane/pkg/catalog"
	"github.com/go-go-golems/pitlane/pkg/interview"
	"github.com/go-go-golems/pitlane/pkg/session"
)

func newTestServer(t *testing.T) (*httptest.Server, string, *Hub) {
	t.Helper()
	dir := t.TempDir()
	hub := NewHub()
	eng := interview.New(catalog.Default(), session.NewMemoryStore(), nil,
		archive.NewMarkdownStore(dir),
		interview.WithNotifier(hub),
		interview.WithRand(func(n int) int { return 0 }))
	router, err := NewRouter(eng, hub)
	require.NoError(t, err)
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, dir, hub
}

func postJSON(t *testing.T, url string, body, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	if out != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestFullOfflineInterviewOverHTTP(t *testing.T) {
	srv, dir, _ := newTestServer(t)

	var start struct {
		SessionID   string `json:"session_id"`
		Question    string `json:"question"`
		Stage       int    `json:"stage"`
		TotalStages int    `json:"total_stages"`
	}
	res := postJSON(t, srv.URL+"/start", map[string]string{}, &start)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, start.SessionID)
	require.Equal(t, 0, start.Stage)
	require.NotEmpty(t, start.Question)

	question := start.Question
	var turn interview.TurnResult
	for i := 0; i < start.TotalStages; i++ {
		res = postJSON(t, srv.URL+"/answer", map[string]string{
			"session_id": start.SessionID,
			"answer":     "My name is Alex",
			"question":   question,
		}, &turn)
		require.Equal(t, http.StatusOK, res.StatusCode)
		question = turn.Question
	}
	require.True(t, turn.Done)
	require.NotEmpty(t, turn.Recap)
	require.Empty(t, turn.SaveError)
	require.NotEmpty(t, turn.ArchiveRef)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "interview_Alex_"))
	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(content), "My name is Alex")

	// answering a finished interview conflicts
	res = postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": start.SessionID,
		"answer":     "one more",
	}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestAnswerValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res := postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": "s1", "answer": "   ",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": "never-started", "answer": "hello",
	}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err := http.Get(srv.URL + "/answer")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestFinishAndSaveRoutes(t *testing.T) {
	srv, dir, _ := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	postJSON(t, srv.URL+"/start", map[string]string{}, &start)
	postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": start.SessionID, "answer": "solid race", "question": start.Question,
	}, nil)

	var save interview.SaveResult
	res := postJSON(t, srv.URL+"/save", map[string]string{
		"session_id": start.SessionID, "name": "Taylor",
	}, &save)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, save.Saved)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), "Taylor")

	var fin interview.TurnResult
	res = postJSON(t, srv.URL+"/finish", map[string]string{"session_id": start.SessionID}, &fin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, fin.Done)

	res = postJSON(t, srv.URL+"/finish", map[string]string{"session_id": start.SessionID}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestResetDropsSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
	}
	postJSON(t, srv.URL+"/start", map[string]string{}, &start)
	res := postJSON(t, srv.URL+"/reset", map[string]string{"session_id": start.SessionID}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": start.SessionID, "answer": "hello",
	}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSessionCookieMintedWhenAbsent(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res := postJSON(t, srv.URL+"/start", map[string]string{}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var sid string
	for _, c := range res.Cookies() {
		if c.Name == sessionCookie {
			sid = c.Value
		}
	}
	require.NotEmpty(t, sid)
}

func TestIndexServed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	require.Equal(t, http.StatusOK, res.StatusCode)
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Pit Lane Pal")
}
