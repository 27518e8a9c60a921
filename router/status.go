// Package router wires the read-only operator HTTP surface: a /status
// summary and a /players roster, for monitoring dashboards and health
// checks. It never accepts mutating requests — world mutation only ever
// happens through submitted events (see package admin for the operator
// command path).
//
// A mux.Router is wired with subrouters and a plain health-check handler
// writing a small JSON body by hand, retargeted to a single read-only
// status surface with no mutating HTTP endpoints.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"worldcore/session"
	"worldcore/transport"
	"worldcore/world"
)

// Setup registers the status routes on r.
func Setup(r *mux.Router, w *world.World, sessions *session.Manager, dispatcher *transport.Dispatcher) {
	h := &handler{world: w, sessions: sessions, dispatcher: dispatcher}
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/players", h.players).Methods(http.MethodGet)
}

type handler struct {
	world      *world.World
	sessions   *session.Manager
	dispatcher *transport.Dispatcher
}

type statusResponse struct {
	TickID       uint64  `json:"tickId"`
	StateVersion uint64  `json:"stateVersion"`
	Entities     int     `json:"entities"`
	Players      int     `json:"players"`
	Peers        int     `json:"peers"`
	WorldHours   float64 `json:"worldHours"`
	DayCount     uint64  `json:"dayCount"`
	GameSpeed    float64 `json:"gameSpeed"`
	Weather      string  `json:"weather"`
	PVPEnabled   bool    `json:"pvpEnabled"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		TickID:       h.world.CurrentTick(),
		StateVersion: h.world.StateVersion(),
		Entities:     h.world.Registry.Count(),
		Players:      h.sessions.AuthenticatedCount(),
		WorldHours:   h.world.WorldHours(),
		DayCount:     h.world.DayCount(),
		GameSpeed:    h.world.GameSpeed(),
		Weather:      h.world.Weather(),
		PVPEnabled:   h.world.PVPEnabled(),
	}
	if h.dispatcher != nil {
		resp.Peers = h.dispatcher.PeerCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

type playerInfo struct {
	PlayerID uint32 `json:"playerId"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Admin    bool   `json:"admin"`
	PingMs   int    `json:"pingMs"`
}

func (h *handler) players(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.All()
	out := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		if s.State() != session.Authenticated {
			continue
		}
		out = append(out, playerInfo{
			PlayerID: s.PlayerID,
			Name:     s.PlayerName,
			State:    s.State().String(),
			Admin:    s.Admin,
			PingMs:   s.PingMs,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
