package server

import (
	"worldcore/codec"
	"worldcore/config"
	"worldcore/eventlog"
	"worldcore/memory"
	"worldcore/session"
	"worldcore/transport"
)

// handleFrame is the transport dispatcher's OnFrame callback: it decodes
// the body for msgType and routes to the matching per-message handler.
// Any session not yet Authenticated may only send C2S_Handshake (§4.3);
// everything else is silently dropped until the handshake completes.
func (h *Hub) handleFrame(sessionID string, msgType codec.MsgType, body []byte) {
	s := h.Sessions.Get(sessionID)
	if s == nil {
		return
	}
	if s.State() != session.Authenticated && msgType != codec.TypeC2SHandshake {
		return
	}

	switch msgType {
	case codec.TypeC2SHandshake:
		h.handleHandshake(s, body)
	case codec.TypeC2SHeartbeat:
		h.handleHeartbeat(s)
	case codec.TypeC2SEntitySpawnReq:
		h.handleSpawnReq(s, body)
	case codec.TypeC2SPositionUpdate:
		h.handlePositionUpdate(s, body)
	case codec.TypeC2SAttackIntent:
		h.handleAttack(s, body)
	case codec.TypeC2SEquipmentUpdate:
		h.handleEquipment(s, body)
	case codec.TypeC2SChatMessage:
		h.handleChat(s, body)
	}
}

// handleHandshake completes §4.3's auth handshake: validate protocol
// version and password, assign a player id, and ack or reject.
func (h *Hub) handleHandshake(s *session.Session, body []byte) {
	h.Sessions.BeginAuthenticating(s.SessionID)
	hs, err := codec.DecodeHandshake(body)
	if err != nil {
		h.Dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CHandshakeReject,
			codec.EncodeHandshakeReject(codec.HandshakeReject{Reason: "malformed handshake"}))
		h.Dispatcher.Close(s.SessionID)
		return
	}

	authed, reason, ok := h.Sessions.Authenticate(s.SessionID, hs.ProtocolVersion, hs.PlayerName, hs.Password)
	if !ok {
		h.Dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CHandshakeReject,
			codec.EncodeHandshakeReject(codec.HandshakeReject{Reason: reason}))
		h.Dispatcher.Close(s.SessionID)
		return
	}

	h.Dispatcher.Send(authed.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CHandshakeAck,
		codec.EncodeHandshakeAck(codec.HandshakeAck{
			PlayerID:       authed.PlayerID,
			CurrentPlayers: uint16(h.Sessions.AuthenticatedCount()),
			MaxPlayers:     uint16(config.GetMaxPlayers()),
			TimeOfDayHours: float32(h.World.WorldHours()),
		}))

	joined := codec.EncodePlayerJoined(codec.PlayerJoined{PlayerID: authed.PlayerID, PlayerName: authed.PlayerName})
	for _, other := range h.Sessions.All() {
		if other.State() == session.Authenticated {
			h.Dispatcher.Send(other.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CPlayerJoined, joined)
		}
	}
}

func (h *Hub) handleHeartbeat(s *session.Session) {
	h.Sessions.Heartbeat(s.SessionID, h.Clock.Current())
}

// handleSpawnReq allocates a server-authoritative id for a client-proposed
// entity and submits it as an EntitySpawned event, per §4.3's "the server,
// not the client, is the source of truth for entity ids" rule. The client
// is responsible for reconciling its local placeholder id once the
// matching S2C_EntitySpawn for this id reaches it.
func (h *Hub) handleSpawnReq(s *session.Session, body []byte) {
	req, err := codec.DecodeEntitySpawn(body)
	if err != nil {
		return
	}
	data := memory.GetEventData()
	data["type"] = float64(req.Type)
	data["templateName"] = req.TemplateName
	data["x"] = float64(req.Position.X)
	data["y"] = float64(req.Position.Y)
	data["z"] = float64(req.Position.Z)
	h.World.Submit(&eventlog.Event{
		Type:           eventlog.EntitySpawned,
		SourcePlayerID: s.PlayerID,
		Data:           data,
	})
}

// handlePositionUpdate submits an EntityMoved event for the session's own
// entity. §8 property 8: a session may only move entities it owns; the
// event is rejected downstream by world.ownerCheck if not, but we also
// short-circuit here to avoid spending an event slot on an obvious abuse.
func (h *Hub) handlePositionUpdate(s *session.Session, body []byte) {
	upd, err := codec.DecodeClientPositionUpdate(body)
	if err != nil {
		return
	}
	if !s.Owns(upd.EntityID) {
		return
	}
	data := memory.GetEventData()
	data["x"] = float64(upd.Position.X)
	data["y"] = float64(upd.Position.Y)
	data["z"] = float64(upd.Position.Z)
	data["rot"] = float64(upd.RotCompressed)
	h.World.Submit(&eventlog.Event{
		Type:           eventlog.EntityMoved,
		EntityID:       upd.EntityID,
		SourcePlayerID: s.PlayerID,
		Data:           data,
	})
}

func (h *Hub) handleAttack(s *session.Session, body []byte) {
	intent, err := codec.DecodeAttackIntent(body)
	if err != nil {
		return
	}
	if !s.Owns(intent.AttackerID) {
		return
	}
	data := memory.GetEventData()
	data["amount"] = float64(intent.Damage)
	h.World.Submit(&eventlog.Event{
		Type:           eventlog.DamageDealt,
		EntityID:       intent.AttackerID,
		TargetEntityID: intent.TargetID,
		SourcePlayerID: s.PlayerID,
		Data:           data,
	})
}

func (h *Hub) handleEquipment(s *session.Session, body []byte) {
	upd, err := codec.DecodeEquipmentUpdate(body)
	if err != nil {
		return
	}
	if !s.Owns(upd.EntityID) {
		return
	}
	evtType := eventlog.ItemEquipped
	if upd.Item == "" {
		evtType = eventlog.ItemUnequipped
	}
	data := memory.GetEventData()
	data["item"] = upd.Item
	data["slot"] = upd.Slot
	h.World.Submit(&eventlog.Event{
		Type:           evtType,
		EntityID:       upd.EntityID,
		SourcePlayerID: s.PlayerID,
		Data:           data,
	})
}

func (h *Hub) handleChat(s *session.Session, body []byte) {
	msg, err := codec.DecodeClientChatMessage(body)
	if err != nil {
		return
	}
	h.Chat.Route(s.PlayerID, msg)
}

// handleDisconnect is the transport dispatcher's OnDisconnect callback:
// despawn every entity the session owned, tell the rest of the world it
// left, and drop its session and AOI state.
func (h *Hub) handleDisconnect(sessionID string, err error) {
	s := h.Sessions.Get(sessionID)
	if s == nil {
		return
	}
	h.despawnOwned(s)
	h.World.Submit(&eventlog.Event{Type: eventlog.PlayerDisconnected, SourcePlayerID: s.PlayerID})

	left := codec.EncodePlayerLeft(codec.PlayerLeft{PlayerID: s.PlayerID, Reason: "disconnected"})
	for _, other := range h.Sessions.All() {
		if other.SessionID != sessionID && other.State() == session.Authenticated {
			h.Dispatcher.Send(other.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CPlayerLeft, left)
		}
	}

	h.Interest.Forget(sessionID)
	h.Sessions.Remove(sessionID)
}
