// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/scenario"
	"github.com/sc420/pygame-rl/engine/trajectory"
	"github.com/sc420/pygame-rl/service/internal/auth"
	"github.com/sc420/pygame-rl/service/internal/cache"
	"github.com/sc420/pygame-rl/service/internal/database"
	"github.com/sc420/pygame-rl/service/internal/session"
	"github.com/sirupsen/logrus"
)

// Server exposes sessions over HTTP and websockets.
type Server struct {
	mgr  *session.Manager
	auth *auth.Issuer
	log  *logrus.Logger

	// State kept after a session leaves this process.
	loadSnapshot     func(ctx context.Context, id uuid.UUID) (engine.Snapshot, bool, error)
	episodeSummaries func(ctx context.Context, id uuid.UUID) ([]trajectory.Summary, error)
}

// New returns a Server backed by mgr.
func New(mgr *session.Manager, issuer *auth.Issuer, log *logrus.Logger) *Server {
	return &Server{
		mgr:              mgr,
		auth:             issuer,
		log:              log,
		loadSnapshot:     cache.LoadSnapshot,
		episodeSummaries: database.EpisodeSummaries,
	}
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /scenarios", s.handleScenarios)
	mux.HandleFunc("POST /sessions", s.handleCreate)
	mux.HandleFunc("GET /sessions/{id}", s.handleInfo)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /sessions/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /sessions/{id}/episodes", s.handleEpisodes)
	mux.HandleFunc("GET /sessions/{id}/ws", s.handleWS)
	return mux
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

type createRequest struct {
	Scenario string  `json:"scenario"`
	Seed     *uint64 `json:"seed,omitempty"`
}

type createResponse struct {
	Token string `json:"token"`
	session.Info
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.mgr.Len()})
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenario.BuiltinNames()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	sess, err := s.mgr.Create(req.Scenario, req.Seed)
	switch {
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, scenario.ErrUnknown):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := s.auth.Issue(sess.ID)
	if err != nil {
		_ = s.mgr.Close(sess.ID)
		s.log.WithError(err).Error("Failed issuing session token.")
		writeError(w, http.StatusInternalServerError, errors.New("could not issue token"))
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Token: token, Info: sess.Info()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	sess, status, err := s.authorized(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, status, err := s.authorized(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	if err := s.mgr.Close(sess.ID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSnapshot returns the live state of the session, or the last cached
// snapshot when the session is not held by this process.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, status, err := s.authorizedID(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	if sess, err := s.mgr.Get(id); err == nil {
		writeJSON(w, http.StatusOK, sess.Snapshot())
		return
	}
	snap, ok, err := s.loadSnapshot(r.Context(), id)
	switch {
	case errors.Is(err, cache.ErrNoClient):
		writeError(w, http.StatusNotFound, session.ErrNotFound)
	case err != nil:
		s.log.WithError(err).WithField("session", id).Error("Failed loading snapshot.")
		writeError(w, http.StatusInternalServerError, errors.New("could not load snapshot"))
	case !ok:
		writeError(w, http.StatusNotFound, session.ErrNotFound)
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleEpisodes lists the stored summaries of the session's finished
// episodes. The session need not be live.
func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	id, status, err := s.authorizedID(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	sums, err := s.episodeSummaries(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNoPool):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.log.WithError(err).WithField("session", id).Error("Failed loading episode summaries.")
		writeError(w, http.StatusInternalServerError, errors.New("could not load episodes"))
		return
	}
	if sums == nil {
		sums = []trajectory.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodes": sums})
}

// authorizedID parses the session id in the path and checks the token
// carried by the request against it.
func (s *Server) authorizedID(r *http.Request) (uuid.UUID, int, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, http.StatusBadRequest, fmt.Errorf("bad session id: %w", err)
	}
	if err := s.auth.Authorize(requestToken(r), id); err != nil {
		return uuid.Nil, http.StatusUnauthorized, err
	}
	return id, http.StatusOK, nil
}

// authorized resolves the live session named in the path once the token
// checks out.
func (s *Server) authorized(r *http.Request) (*session.Session, int, error) {
	id, status, err := s.authorizedID(r)
	if err != nil {
		return nil, status, err
	}
	sess, err := s.mgr.Get(id)
	if err != nil {
		return nil, http.StatusNotFound, err
	}
	return sess, http.StatusOK, nil
}

// requestToken reads a bearer token from the Authorization header or the
// token query parameter. Browsers cannot set headers on websocket upgrades.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ---------------------------------------------------------------------------
// Websocket
// ---------------------------------------------------------------------------

// ClientMessage is a request from a trainer.
type ClientMessage struct {
	Type    string   `json:"type"` // reset or step
	Actions []string `json:"actions,omitempty"`
}

// ServerMessage is a reply to a ClientMessage.
type ServerMessage struct {
	Type        string              `json:"type"` // observation or error
	Observation *engine.Observation `json:"observation,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, status, err := s.authorized(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket accept failed.")
		return
	}
	defer conn.CloseNow()
	logger := s.log.WithField("session", sess.ID)
	logger.Info("Trainer connected.")

	ctx := r.Context()
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if code := websocket.CloseStatus(err); code == websocket.StatusNormalClosure || code == websocket.StatusGoingAway {
				logger.Info("Trainer disconnected.")
			} else {
				logger.WithError(err).Warn("Websocket read failed.")
			}
			return
		}
		reply := s.dispatch(sess, msg)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			logger.WithError(err).Warn("Websocket write failed.")
			return
		}
	}
}

// dispatch runs one client request against the session.
func (s *Server) dispatch(sess *session.Session, msg ClientMessage) ServerMessage {
	var (
		obs engine.Observation
		err error
	)
	switch msg.Type {
	case "reset":
		obs, err = sess.Reset()
	case "step":
		var actions []engine.Action
		actions, err = parseActions(msg.Actions)
		if err == nil {
			obs, err = sess.Step(actions)
		}
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err != nil {
		return ServerMessage{Type: "error", Error: err.Error()}
	}
	return ServerMessage{Type: "observation", Observation: &obs}
}

func parseActions(names []string) ([]engine.Action, error) {
	out := make([]engine.Action, len(names))
	for i, name := range names {
		a, err := engine.ParseAction(name)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}
