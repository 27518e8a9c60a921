// Package eventlog implements the ordered, durable log of world-mutating
// events described in the entity/world event model: an in-memory window
// for fast range/replay queries and an append-only JSON-lines file for
// post-mortem replay.
//
// A monotonic sequence counter keys an operations map, with a periodic
// cleanup pass that trims against the slowest live consumer's watermark.
// The on-disk append format follows logging/logger.go's own
// log-file-append code path.
package eventlog

import "time"

// Type is the world event variant tag, §6.
type Type string

const (
	EntitySpawned             Type = "EntitySpawned"
	EntityDied                Type = "EntityDied"
	EntityRemoved             Type = "EntityRemoved"
	EntityMoved               Type = "EntityMoved"
	EntityTeleported          Type = "EntityTeleported"
	CombatAction               Type = "CombatAction"
	DamageDealt               Type = "DamageDealt"
	HealingApplied            Type = "HealingApplied"
	StatusEffectApplied       Type = "StatusEffectApplied"
	StatusEffectRemoved       Type = "StatusEffectRemoved"
	InventoryChanged          Type = "InventoryChanged"
	ItemDropped               Type = "ItemDropped"
	ItemPickedUp              Type = "ItemPickedUp"
	ItemEquipped              Type = "ItemEquipped"
	ItemUnequipped            Type = "ItemUnequipped"
	InteractionStarted        Type = "InteractionStarted"
	InteractionCompleted      Type = "InteractionCompleted"
	FactionRelationChanged    Type = "FactionRelationChanged"
	FactionMemberJoined       Type = "FactionMemberJoined"
	FactionMemberLeft         Type = "FactionMemberLeft"
	TimeAdvanced              Type = "TimeAdvanced"
	ZoneChanged               Type = "ZoneChanged"
	BuildingPlaced            Type = "BuildingPlaced"
	BuildingDestroyed         Type = "BuildingDestroyed"
	PlayerConnected           Type = "PlayerConnected"
	PlayerDisconnected        Type = "PlayerDisconnected"
	PlayerControlTransferred  Type = "PlayerControlTransferred"
)

// Rejection reasons an event's application can fail with, §7.
const (
	RejectUnknownType      = "unknown-type"
	RejectMissingEntity    = "missing-entity"
	RejectInvalidPayload   = "invalid-payload"
	RejectPermissionDenied = "permission-denied"
)

// Event is a discrete world mutation, logged and applied in order.
type Event struct {
	EventID        uint64                 `json:"eventId"`
	Type           Type                   `json:"type"`
	TickID         uint64                 `json:"tickId"`
	EntityID       uint32                 `json:"entityId"`
	TargetEntityID uint32                 `json:"targetEntityId,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	SourcePlayerID uint32                 `json:"sourcePlayerId"`
	SubmittedAt    time.Time              `json:"submittedAt"`
	ProcessedAt    time.Time              `json:"processedAt,omitzero"`
	WasApplied     bool                   `json:"wasApplied"`
	RejectionReason string                `json:"rejectionReason,omitempty"`
}
