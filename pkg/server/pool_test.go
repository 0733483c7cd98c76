package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/pitlane/pkg/session"
)

func dialWS(t *testing.T, httpURL, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForObserver blocks until the hub has registered the dialed connection;
// the upgrade handshake completes on the client before the server attaches.
func waitForObserver(t *testing.T, hub *Hub, sessionID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ObserverCount(sessionID) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestObserverReceivesTurnEvents(t *testing.T) {
	srv, _, hub := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	postJSON(t, srv.URL+"/start", map[string]string{}, &start)

	conn := dialWS(t, srv.URL, start.SessionID)
	waitForObserver(t, hub, start.SessionID)
	postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": start.SessionID, "answer": "went well", "question": start.Question,
	}, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Event    string `json:"event"`
		Stage    int    `json:"stage"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, "turn", event.Event)
	require.Equal(t, 0, event.Stage)
	require.Equal(t, "went well", event.Answer)
}

func TestObserverReceivesCompletionEvent(t *testing.T) {
	srv, _, hub := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	postJSON(t, srv.URL+"/start", map[string]string{}, &start)
	conn := dialWS(t, srv.URL, start.SessionID)
	waitForObserver(t, hub, start.SessionID)

	postJSON(t, srv.URL+"/answer", map[string]string{
		"session_id": start.SessionID, "answer": "quick one", "question": start.Question,
	}, nil)
	postJSON(t, srv.URL+"/finish", map[string]string{"session_id": start.SessionID}, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var sawComplete bool
	for i := 0; i < 3 && !sawComplete; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var event struct {
			Event string `json:"event"`
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(data, &event))
		if event.Event == "complete" {
			sawComplete = true
			require.NotEmpty(t, event.Title)
		}
	}
	require.True(t, sawComplete)
}

func TestHubBookkeeping(t *testing.T) {
	hub := NewHub()
	require.Equal(t, 0, hub.ObserverCount("s1"))

	// broadcasting into a session without observers is a no-op
	hub.TurnRecorded("s1", session.Turn{Question: "q", Answer: "a"}, 0)
	hub.InterviewCompleted("s1", "t")
	require.Equal(t, 0, hub.ObserverCount("s1"))
	hub.Close()
}
