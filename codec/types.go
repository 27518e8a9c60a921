// Package codec implements the binary wire protocol (§4.6, §6): packet
// framing, per-message encode/decode, and the compression policies
// (quaternion, delta-position, velocity, animation state) that keep the
// high-frequency position-update path small over a lossy transport.
//
// A type-dispatch idiom (a JSON `type` switch) is generalized here from
// JSON envelopes to a fixed binary header plus type-specific binary
// bodies, since the wire protocol is binary and little-endian rather
// than JSON-over-text.
package codec

// MsgType is the wire message type byte, §6. Numeric values beyond
// C2S_Handshake (0x01) are assigned in the order §6 lists the message
// families; they are part of this server's own contract.
type MsgType uint8

const (
	TypeC2SHandshake MsgType = iota + 1
	TypeS2CHandshakeAck
	TypeS2CHandshakeReject
	TypeC2SHeartbeat
	TypeS2CPlayerJoined
	TypeS2CPlayerLeft

	TypeC2SEntitySpawnReq
	TypeS2CEntitySpawn
	TypeS2CEntityDespawn

	TypeC2SPositionUpdate
	TypeS2CPositionUpdate
	TypeS2CPositionBatch
	TypeS2CMoveCommand

	TypeC2SAttackIntent
	TypeS2CCombatHit
	TypeS2CCombatDeath

	TypeS2CWorldSnapshot
	TypeS2CTimeSync
	TypeS2CBuildPlaced

	TypeS2CHealthUpdate
	TypeC2SEquipmentUpdate
	TypeS2CEquipmentUpdate

	TypeC2SChatMessage
	TypeS2CChatMessage
	TypeS2CSystemMessage
)

func (t MsgType) String() string {
	switch t {
	case TypeC2SHandshake:
		return "C2S_Handshake"
	case TypeS2CHandshakeAck:
		return "S2C_HandshakeAck"
	case TypeS2CHandshakeReject:
		return "S2C_HandshakeReject"
	case TypeC2SHeartbeat:
		return "C2S_Heartbeat"
	case TypeS2CPlayerJoined:
		return "S2C_PlayerJoined"
	case TypeS2CPlayerLeft:
		return "S2C_PlayerLeft"
	case TypeC2SEntitySpawnReq:
		return "C2S_EntitySpawnReq"
	case TypeS2CEntitySpawn:
		return "S2C_EntitySpawn"
	case TypeS2CEntityDespawn:
		return "S2C_EntityDespawn"
	case TypeC2SPositionUpdate:
		return "C2S_PositionUpdate"
	case TypeS2CPositionUpdate:
		return "S2C_PositionUpdate"
	case TypeS2CPositionBatch:
		return "S2C_PositionBatch"
	case TypeS2CMoveCommand:
		return "S2C_MoveCommand"
	case TypeC2SAttackIntent:
		return "C2S_AttackIntent"
	case TypeS2CCombatHit:
		return "S2C_CombatHit"
	case TypeS2CCombatDeath:
		return "S2C_CombatDeath"
	case TypeS2CWorldSnapshot:
		return "S2C_WorldSnapshot"
	case TypeS2CTimeSync:
		return "S2C_TimeSync"
	case TypeS2CBuildPlaced:
		return "S2C_BuildPlaced"
	case TypeS2CHealthUpdate:
		return "S2C_HealthUpdate"
	case TypeC2SEquipmentUpdate:
		return "C2S_EquipmentUpdate"
	case TypeS2CEquipmentUpdate:
		return "S2C_EquipmentUpdate"
	case TypeC2SChatMessage:
		return "C2S_ChatMessage"
	case TypeS2CChatMessage:
		return "S2C_ChatMessage"
	case TypeS2CSystemMessage:
		return "S2C_SystemMessage"
	default:
		return "Unknown"
	}
}
