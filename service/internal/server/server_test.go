// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/trajectory"
	"github.com/sc420/pygame-rl/service/internal/auth"
	"github.com/sc420/pygame-rl/service/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, max int, opts ...func(*Server)) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	mgr := session.NewManager(max, "", log)
	srv := New(mgr, issuer, log)
	for _, opt := range opts {
		opt(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func createSession(t *testing.T, ts *httptest.Server, body string) (*http.Response, createResponseBody) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/sessions", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out createResponseBody
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

type createResponseBody struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	Scenario   string `json:"scenario"`
	Controlled []int  `json:"controlled"`
	Agents     []struct {
		ID    int    `json:"id"`
		Group string `json:"group"`
	} `json:"agents"`
}

func wsURL(ts *httptest.Server, id, token string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + id + "/ws?token=" + token
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t, 4)
	resp, out := createSession(t, ts, `{"scenario":"soccer","seed":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "soccer", out.Scenario)
	assert.Equal(t, []int{0}, out.Controlled)
	require.Len(t, out.Agents, 4)
	assert.Equal(t, "team_a", out.Agents[0].Group)

	resp, _ = createSession(t, ts, `{"scenario":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = createSession(t, ts, `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLimit(t *testing.T) {
	ts := newTestServer(t, 1)
	resp, _ := createSession(t, ts, `{"scenario":"soccer"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = createSession(t, ts, `{"scenario":"soccer"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebsocketResetStep(t *testing.T) {
	ts := newTestServer(t, 4)
	_, out := createSession(t, ts, `{"scenario":"predator_prey","seed":1}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, out.ID, out.Token), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var reply ServerMessage
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "step", Actions: []string{"east"}}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "error", reply.Type, "step before reset")

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "reset"}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	require.Equal(t, "observation", reply.Type)
	require.NotNil(t, reply.Observation)
	assert.Nil(t, reply.Observation.Prior)
	assert.Equal(t, 0, reply.Observation.Next.TimeStep)

	reply = ServerMessage{}
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "step", Actions: []string{"east"}}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	require.Equal(t, "observation", reply.Type, reply.Error)
	require.NotNil(t, reply.Observation.Prior)
	assert.Equal(t, 1, reply.Observation.Next.TimeStep)
	require.Len(t, reply.Observation.Actions, len(reply.Observation.Next.Agents))
	assert.Equal(t, engine.ActionEast, reply.Observation.Actions[0])

	reply = ServerMessage{}
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "step", Actions: []string{"jump"}}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "jump")

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "dance"}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "error", reply.Type)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	ts := newTestServer(t, 4)
	_, a := createSession(t, ts, `{"scenario":"soccer"}`)
	_, b := createSession(t, ts, `{"scenario":"soccer"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, wsURL(ts, a.ID, b.Token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, wsURL(ts, "not-a-uuid", a.Token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, 4)
	_, out := createSession(t, ts, `{"scenario":"soccer"}`)

	del := func(token string) int {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+out.ID, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusUnauthorized, del(""))
	assert.Equal(t, http.StatusNoContent, del(out.Token))
	assert.Equal(t, http.StatusNotFound, del(out.Token))
}

func TestHealthAndScenarios(t *testing.T) {
	ts := newTestServer(t, 4)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/scenarios")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Scenarios []string `json:"scenarios"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"predator_prey", "soccer", "soccer_legacy"}, body.Scenarios)
}

func authGet(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSnapshotLiveAndCached(t *testing.T) {
	var cached engine.Snapshot
	var asked uuid.UUID
	ts := newTestServer(t, 4, func(s *Server) {
		s.loadSnapshot = func(_ context.Context, id uuid.UUID) (engine.Snapshot, bool, error) {
			asked = id
			return cached, cached.Agents != nil, nil
		}
	})
	_, out := createSession(t, ts, `{"scenario":"soccer","seed":2}`)
	url := ts.URL + "/sessions/" + out.ID + "/snapshot"

	resp := authGet(t, url, out.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var live engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
	assert.Len(t, live.Agents, 4)
	assert.Equal(t, uuid.Nil, asked, "live session read from the cache")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+out.ID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	resp = authGet(t, url, out.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, out.ID, asked.String())

	cached = live.Clone()
	cached.TimeStep = 7
	resp = authGet(t, url, out.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 7, got.TimeStep)

	resp = authGet(t, url, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSnapshotWithoutCache(t *testing.T) {
	ts := newTestServer(t, 4)
	_, out := createSession(t, ts, `{"scenario":"soccer"}`)
	url := ts.URL + "/sessions/" + out.ID + "/snapshot"
	require.Equal(t, http.StatusOK, authGet(t, url, out.Token).StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+out.ID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()

	assert.Equal(t, http.StatusNotFound, authGet(t, url, out.Token).StatusCode)
}

func TestEpisodes(t *testing.T) {
	ts := newTestServer(t, 4)
	_, out := createSession(t, ts, `{"scenario":"soccer"}`)
	resp := authGet(t, ts.URL+"/sessions/"+out.ID+"/episodes", out.Token)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no database")

	stored := []trajectory.Summary{{Scenario: "soccer", Length: 12, TotalReward: 1, Terminal: true, Winner: "team_a"}}
	var asked uuid.UUID
	ts = newTestServer(t, 4, func(s *Server) {
		s.episodeSummaries = func(_ context.Context, id uuid.UUID) ([]trajectory.Summary, error) {
			asked = id
			return stored, nil
		}
	})
	_, out = createSession(t, ts, `{"scenario":"soccer"}`)
	url := ts.URL + "/sessions/" + out.ID + "/episodes"
	resp = authGet(t, url, out.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Episodes []trajectory.Summary `json:"episodes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Episodes, 1)
	assert.Equal(t, 12, body.Episodes[0].Length)
	assert.Equal(t, "team_a", body.Episodes[0].Winner)
	assert.Equal(t, out.ID, asked.String())

	resp = authGet(t, url, "bogus")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = authGet(t, ts.URL+"/sessions/not-a-uuid/episodes", out.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
