package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldcore/codec"
	"worldcore/entity"
	"worldcore/session"
)

func TestRouteRejectsAdminChannelFromNonAdmin(t *testing.T) {
	sessions := session.NewManager(10, nil)
	reg := entity.NewRegistry()
	r := New(nil, sessions, reg, nil)

	s := sessions.Connect("127.0.0.1")
	sessions.BeginAuthenticating(s.SessionID)
	authed, _, ok := sessions.Authenticate(s.SessionID, session.ProtocolVersion, "Lowly", "")
	require.True(t, ok)

	err := r.Route(authed.PlayerID, codec.ClientChatMessage{Channel: codec.ChatAdmin, Text: "let me in"})
	assert.Error(t, err)
}

func TestRecipientsFactionFiltersByEntityFaction(t *testing.T) {
	sessions := session.NewManager(10, nil)
	reg := entity.NewRegistry()
	r := New(nil, sessions, reg, nil)

	a := sessions.Connect("10.0.0.1")
	sessions.BeginAuthenticating(a.SessionID)
	a, _, ok := sessions.Authenticate(a.SessionID, session.ProtocolVersion, "Alice", "")
	require.True(t, ok)
	b := sessions.Connect("10.0.0.2")
	sessions.BeginAuthenticating(b.SessionID)
	b, _, ok = sessions.Authenticate(b.SessionID, session.ProtocolVersion, "Bob", "")
	require.True(t, ok)

	entA := &entity.Entity{NetID: reg.Allocate(), Owner: a.PlayerID, Faction: 1, Active: true}
	entB := &entity.Entity{NetID: reg.Allocate(), Owner: b.PlayerID, Faction: 2, Active: true}
	require.NoError(t, reg.Register(entA))
	require.NoError(t, reg.Register(entB))
	a.AddOwnedEntity(entA.NetID)
	b.AddOwnedEntity(entB.NetID)

	out := r.recipients(a, codec.ChatFaction)
	assert.Len(t, out, 1)
	assert.Equal(t, a.SessionID, out[0].SessionID)
}
