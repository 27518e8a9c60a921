package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"worldcore/config"
	"worldcore/logging"
)

// Reject reasons surfaced via HandshakeReject, §7.
const (
	RejectVersionMismatch = "version-mismatch"
	RejectBadPassword     = "bad-password"
	RejectCapacityFull    = "capacity-full"
	RejectAlreadyAuth     = "already-authenticated"
)

// ProtocolVersion is the wire protocol version this server speaks; a
// handshake carrying any other value is rejected.
const ProtocolVersion = 1

// Manager owns every live session and the monotonic player-id allocator.
// One RWMutex guards both maps, matching the registry's
// mutex-guarded-map idiom; session churn is low-frequency enough (one
// connect/disconnect per player, not per tick) that a single lock is not a
// contention concern.
type Manager struct {
	mu           sync.RWMutex
	bySessionID  map[string]*Session
	byPlayerID   map[uint32]*Session
	nextPlayerID uint32
	maxPlayers   int
	log          *logging.Logger
}

// NewManager constructs a session manager capped at maxPlayers
// concurrently Authenticated sessions.
func NewManager(maxPlayers int, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		bySessionID: make(map[string]*Session),
		byPlayerID:  make(map[uint32]*Session),
		maxPlayers:  maxPlayers,
		log:         log,
	}
}

// Connect registers a new peer in the Connected state and returns its
// server-local session-id.
func (m *Manager) Connect(ip string) *Session {
	s := newSession(uuid.NewString(), ip)
	m.mu.Lock()
	m.bySessionID[s.SessionID] = s
	m.mu.Unlock()
	m.log.Info("session connected", map[string]interface{}{"sessionId": s.SessionID, "ip": ip})
	return s
}

// BeginAuthenticating transitions Connected -> Authenticating on receipt of
// a Handshake message, ahead of validating its contents.
func (m *Manager) BeginAuthenticating(sessionID string) *Session {
	m.mu.RLock()
	s := m.bySessionID[sessionID]
	m.mu.RUnlock()
	if s == nil || s.State() != Connected {
		return nil
	}
	s.setState(Authenticating)
	return s
}

// Authenticate validates a handshake's protocol version, password and
// server capacity, and on success assigns a player-id and transitions to
// Authenticated. On failure it transitions to Kicked and returns the
// reject reason; the caller sends HandshakeReject before dropping the
// connection.
func (m *Manager) Authenticate(sessionID string, protocolVersion uint8, playerName, password string) (*Session, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.bySessionID[sessionID]
	if s == nil {
		return nil, "session not found", false
	}
	if s.State() == Authenticated {
		return s, RejectAlreadyAuth, false
	}
	if protocolVersion != ProtocolVersion {
		s.setState(Kicked)
		return s, RejectVersionMismatch, false
	}
	if !config.CheckPassword(password) {
		s.setState(Kicked)
		return s, RejectBadPassword, false
	}
	if m.countAuthenticatedLocked() >= m.maxPlayers {
		s.setState(Kicked)
		return s, RejectCapacityFull, false
	}

	m.nextPlayerID++
	s.PlayerID = m.nextPlayerID
	s.PlayerName = playerName
	s.Admin = config.IsAdminName(playerName)
	s.setState(Authenticated)
	m.byPlayerID[s.PlayerID] = s

	m.log.Info("session authenticated", map[string]interface{}{
		"sessionId": sessionID, "playerId": s.PlayerID, "playerName": playerName, "admin": s.Admin,
	})
	return s, "", true
}

func (m *Manager) countAuthenticatedLocked() int {
	n := 0
	for _, s := range m.byPlayerID {
		if s.State() == Authenticated {
			n++
		}
	}
	return n
}

// Heartbeat records the tick at which a heartbeat was last received.
func (m *Manager) Heartbeat(sessionID string, tick uint64) bool {
	m.mu.RLock()
	s := m.bySessionID[sessionID]
	m.mu.RUnlock()
	if s == nil || s.State() != Authenticated {
		return false
	}
	s.mu.Lock()
	s.LastHeartbeatTick = tick
	s.mu.Unlock()
	return true
}

// CheckHeartbeatTimeouts scans every Authenticated session and transitions
// any whose last heartbeat is older than timeoutTicks to Disconnected,
// returning the sessions that timed out this call (§4.4, §8 S4).
func (m *Manager) CheckHeartbeatTimeouts(currentTick, timeoutTicks uint64) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var timedOut []*Session
	for _, s := range m.byPlayerID {
		if s.State() != Authenticated {
			continue
		}
		s.mu.RLock()
		last := s.LastHeartbeatTick
		s.mu.RUnlock()
		if currentTick > last+timeoutTicks {
			s.setState(Disconnected)
			timedOut = append(timedOut, s)
			m.log.Info("session heartbeat timeout", map[string]interface{}{
				"sessionId": s.SessionID, "playerId": s.PlayerID, "currentTick": currentTick, "lastHeartbeat": last,
			})
		}
	}
	return timedOut
}

// CheckHandshakeTimeouts drops any session still in Connected/Authenticating
// after authTimeout has elapsed since connect, per §4.4 / §5.
func (m *Manager) CheckHandshakeTimeouts(authTimeout time.Duration) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped []*Session
	now := time.Now()
	for id, s := range m.bySessionID {
		st := s.State()
		if st != Connected && st != Authenticating {
			continue
		}
		if now.Sub(s.ConnectedAt) > authTimeout {
			s.setState(Kicked)
			dropped = append(dropped, s)
			delete(m.bySessionID, id)
		}
	}
	return dropped
}

// Kick transitions an Authenticated session to Kicked (admin ban/kick
// command, or overload disconnect per §4.5/§4.9).
func (m *Manager) Kick(sessionID, reason string) error {
	m.mu.RLock()
	s := m.bySessionID[sessionID]
	m.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("session: %q not found", sessionID)
	}
	s.setState(Kicked)
	m.log.Info("session kicked", map[string]interface{}{"sessionId": sessionID, "reason": reason})
	return nil
}

// Disconnect transitions to Disconnected (clean close or transport error).
func (m *Manager) Disconnect(sessionID string) {
	m.mu.RLock()
	s := m.bySessionID[sessionID]
	m.mu.RUnlock()
	if s != nil {
		s.setState(Disconnected)
	}
}

// Remove forgets a session entirely once its disconnect has been fully
// processed (owned entities cleaned up, peers notified).
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.bySessionID[sessionID]; ok {
		delete(m.byPlayerID, s.PlayerID)
		delete(m.bySessionID, sessionID)
	}
}

// Get returns the session for sessionID, or nil.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySessionID[sessionID]
}

// ByPlayerID returns the session owned by playerID, or nil.
func (m *Manager) ByPlayerID(playerID uint32) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPlayerID[playerID]
}

// All returns every live session, ordered by session-id (the dispatcher's
// tie-break rule for broadcast ordering, §4.7).
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.bySessionID))
	for _, s := range m.bySessionID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// AuthenticatedCount returns the number of currently Authenticated sessions.
func (m *Manager) AuthenticatedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countAuthenticatedLocked()
}

// SetAdmin sets the out-of-band admin bit directly; never reachable from
// the network handshake path (§4.4).
func (m *Manager) SetAdmin(playerID uint32, admin bool) bool {
	m.mu.RLock()
	s := m.byPlayerID[playerID]
	m.mu.RUnlock()
	if s == nil {
		return false
	}
	s.mu.Lock()
	s.Admin = admin
	s.mu.Unlock()
	return true
}
