package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/session"
	"worldcore/snapshot"
	"worldcore/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	events, err := eventlog.Open(t.TempDir())
	require.NoError(t, err)
	store, err := snapshot.NewStore(t.TempDir(), 5)
	require.NoError(t, err)
	return world.New(world.Config{WorldID: "test"}, entity.NewRegistry(), events, store, nil)
}

func TestStatusEndpointReportsTickAndEntities(t *testing.T) {
	w := newTestWorld(t)
	w.SimulateTick(0.05)
	sessions := session.NewManager(10, nil)

	r := mux.NewRouter()
	Setup(r, w, sessions, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, uint64(1), body.TickID)
}

func TestPlayersEndpointListsOnlyAuthenticated(t *testing.T) {
	w := newTestWorld(t)
	sessions := session.NewManager(10, nil)
	s := sessions.Connect("127.0.0.1")
	sessions.BeginAuthenticating(s.SessionID)
	_, _, ok := sessions.Authenticate(s.SessionID, session.ProtocolVersion, "Scoot", "")
	require.True(t, ok)

	r := mux.NewRouter()
	Setup(r, w, sessions, nil)

	req := httptest.NewRequest(http.MethodGet, "/players", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []playerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	require.Equal(t, "Scoot", body[0].Name)
}
