package server

import (
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/pitlane/pkg/interview"
)

//go:embed static/*
var staticFS embed.FS

const sessionCookie = "pitlane_sid"

// Router exposes the interview engine over HTTP plus a websocket observer
// endpoint. Handlers are attached to an internal mux; use Handler to mount.
type Router struct {
	engine *interview.Engine
	hub    *Hub
	mux    *http.ServeMux
}

// NewRouter wires the engine and observer hub into an HTTP mux.
func NewRouter(eng *interview.Engine, hub *Hub) (*Router, error) {
	if eng == nil {
		return nil, errors.New("engine is nil")
	}
	if hub == nil {
		hub = NewHub()
	}
	r := &Router{
		engine: eng,
		hub:    hub,
		mux:    http.NewServeMux(),
	}
	r.registerHandlers()
	return r, nil
}

// Handler returns the mux with every route attached.
func (r *Router) Handler() http.Handler { return r.mux }

// Hub returns the observer hub, usable as the engine's notifier.
func (r *Router) Hub() *Hub { return r.hub }

func (r *Router) registerHandlers() {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.mux.Handle("/", http.FileServer(http.FS(sub)))
	r.mux.HandleFunc("/start", r.handleStart)
	r.mux.HandleFunc("/answer", r.handleAnswer)
	r.mux.HandleFunc("/finish", r.handleFinish)
	r.mux.HandleFunc("/save", r.handleSave)
	r.mux.HandleFunc("/reset", r.handleReset)
	r.mux.HandleFunc("/ws", r.handleWS)
}

// sessionID resolves the interview session for a request: an explicit
// session_id in the body wins, then the session cookie; otherwise a fresh id
// is minted and set as a cookie.
func (r *Router) sessionID(w http.ResponseWriter, req *http.Request, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	if c, err := req.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody tolerates empty bodies so buttons can POST without a payload.
func decodeBody(req *http.Request, v any) error {
	err := json.NewDecoder(req.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func interviewStatus(err error) (int, string) {
	switch {
	case errors.Is(err, interview.ErrNoSession):
		return http.StatusNotFound, "no such interview session"
	case errors.Is(err, interview.ErrInterviewComplete):
		return http.StatusConflict, "interview already complete"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(req, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	id := r.sessionID(w, req, body.SessionID)
	res, err := r.engine.Start(req.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("component", "server").Str("session_id", id).Msg("start failed")
		http.Error(w, "start failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"session_id":   id,
		"ack":          res.Ack,
		"question":     res.Question,
		"stage":        res.Stage,
		"total_stages": res.TotalStages,
		"done":         false,
	})
}

func (r *Router) handleAnswer(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
		Answer    string `json:"answer"`
		Question  string `json:"question"`
	}
	if err := decodeBody(req, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Answer) == "" {
		http.Error(w, "missing answer", http.StatusBadRequest)
		return
	}
	id := r.sessionID(w, req, body.SessionID)
	res, err := r.engine.Answer(req.Context(), id, body.Answer, body.Question)
	if err != nil {
		status, msg := interviewStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("component", "server").Str("session_id", id).Msg("answer failed")
		}
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, res)
}

func (r *Router) handleFinish(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(req, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	id := r.sessionID(w, req, body.SessionID)
	res, err := r.engine.Finish(req.Context(), id)
	if err != nil {
		status, msg := interviewStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("component", "server").Str("session_id", id).Msg("finish failed")
		}
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, res)
}

func (r *Router) handleSave(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
		Name      string `json:"name"`
	}
	if err := decodeBody(req, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	id := r.sessionID(w, req, body.SessionID)
	res, err := r.engine.Save(req.Context(), id, body.Name)
	if err != nil {
		status, msg := interviewStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("component", "server").Str("session_id", id).Msg("save failed")
		}
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, res)
}

func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(req, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	id := r.sessionID(w, req, body.SessionID)
	r.engine.Reset(id)
	writeJSON(w, map[string]any{"reset": true, "session_id": id})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS attaches a read-only observer to a session. Inbound frames are
// drained and discarded; the connection only carries engine events out.
func (r *Router) handleWS(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimSpace(req.URL.Query().Get("session_id"))
	if id == "" {
		if c, err := req.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "server").Msg("ws upgrade failed")
		return
	}
	r.hub.Attach(id, conn)
	go func() {
		defer r.hub.Detach(id, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
