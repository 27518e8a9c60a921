package codec

import "worldcore/entity"

// DespawnReason is the S2C_EntityDespawn reason code, §4.7.
type DespawnReason uint8

const (
	DespawnOutOfRange DespawnReason = iota
	DespawnRemoved
	DespawnDied
)

// Handshake is C2S_Handshake's body: protocol version, player name and an
// optional password (empty when the server requires none).
type Handshake struct {
	ProtocolVersion uint8
	PlayerName      string
	Password        string
}

func EncodeHandshake(m Handshake) []byte {
	w := newWriter(32)
	w.u8(m.ProtocolVersion)
	w.str16(m.PlayerName)
	w.str16(m.Password)
	return w.buf
}

func DecodeHandshake(body []byte) (Handshake, error) {
	r := newReader(body)
	var m Handshake
	var err error
	if m.ProtocolVersion, err = r.u8(); err != nil {
		return m, err
	}
	if m.PlayerName, err = r.str16(); err != nil {
		return m, err
	}
	if m.Password, err = r.str16(); err != nil {
		return m, err
	}
	return m, nil
}

// HandshakeAck is S2C_HandshakeAck's body.
type HandshakeAck struct {
	PlayerID       uint32
	CurrentPlayers uint16
	MaxPlayers     uint16
	TimeOfDayHours float32
}

func EncodeHandshakeAck(m HandshakeAck) []byte {
	w := newWriter(12)
	w.u32(m.PlayerID)
	w.u16(m.CurrentPlayers)
	w.u16(m.MaxPlayers)
	w.f32(m.TimeOfDayHours)
	return w.buf
}

func DecodeHandshakeAck(body []byte) (HandshakeAck, error) {
	r := newReader(body)
	var m HandshakeAck
	var err error
	if m.PlayerID, err = r.u32(); err != nil {
		return m, err
	}
	if m.CurrentPlayers, err = r.u16(); err != nil {
		return m, err
	}
	if m.MaxPlayers, err = r.u16(); err != nil {
		return m, err
	}
	if m.TimeOfDayHours, err = r.f32(); err != nil {
		return m, err
	}
	return m, nil
}

// HandshakeReject is S2C_HandshakeReject's body: a reason code string, §7.
type HandshakeReject struct{ Reason string }

func EncodeHandshakeReject(m HandshakeReject) []byte {
	w := newWriter(16)
	w.str16(m.Reason)
	return w.buf
}

func DecodeHandshakeReject(body []byte) (HandshakeReject, error) {
	r := newReader(body)
	reason, err := r.str16()
	return HandshakeReject{Reason: reason}, err
}

// PlayerJoined / PlayerLeft are the roster-change broadcasts.
type PlayerJoined struct {
	PlayerID   uint32
	PlayerName string
}

func EncodePlayerJoined(m PlayerJoined) []byte {
	w := newWriter(16)
	w.u32(m.PlayerID)
	w.str16(m.PlayerName)
	return w.buf
}

func DecodePlayerJoined(body []byte) (PlayerJoined, error) {
	r := newReader(body)
	var m PlayerJoined
	var err error
	if m.PlayerID, err = r.u32(); err != nil {
		return m, err
	}
	m.PlayerName, err = r.str16()
	return m, err
}

type PlayerLeft struct {
	PlayerID uint32
	Reason   string
}

func EncodePlayerLeft(m PlayerLeft) []byte {
	w := newWriter(16)
	w.u32(m.PlayerID)
	w.str16(m.Reason)
	return w.buf
}

func DecodePlayerLeft(body []byte) (PlayerLeft, error) {
	r := newReader(body)
	var m PlayerLeft
	var err error
	if m.PlayerID, err = r.u32(); err != nil {
		return m, err
	}
	m.Reason, err = r.str16()
	return m, err
}

// EntitySpawn is the shared C2S_EntitySpawnReq / S2C_EntitySpawn body, §6.
type EntitySpawn struct {
	EntityID      uint32
	Type          uint8
	Owner         uint32
	TemplateID    uint32
	Position      entity.Vec3
	RotCompressed uint32
	Faction       uint32
	TemplateName  string
}

func EncodeEntitySpawn(m EntitySpawn) []byte {
	w := newWriter(32 + len(m.TemplateName))
	w.u32(m.EntityID)
	w.u8(m.Type)
	w.u32(m.Owner)
	w.u32(m.TemplateID)
	w.f32(m.Position.X)
	w.f32(m.Position.Y)
	w.f32(m.Position.Z)
	w.u32(m.RotCompressed)
	w.u32(m.Faction)
	w.str16(m.TemplateName)
	return w.buf
}

func DecodeEntitySpawn(body []byte) (EntitySpawn, error) {
	r := newReader(body)
	var m EntitySpawn
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Type, err = r.u8(); err != nil {
		return m, err
	}
	if m.Owner, err = r.u32(); err != nil {
		return m, err
	}
	if m.TemplateID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Position.X, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Y, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Z, err = r.f32(); err != nil {
		return m, err
	}
	if m.RotCompressed, err = r.u32(); err != nil {
		return m, err
	}
	if m.Faction, err = r.u32(); err != nil {
		return m, err
	}
	m.TemplateName, err = r.str16()
	return m, err
}

// EntityDespawn is S2C_EntityDespawn's body.
type EntityDespawn struct {
	EntityID uint32
	Reason   DespawnReason
}

func EncodeEntityDespawn(m EntityDespawn) []byte {
	w := newWriter(5)
	w.u32(m.EntityID)
	w.u8(uint8(m.Reason))
	return w.buf
}

func DecodeEntityDespawn(body []byte) (EntityDespawn, error) {
	r := newReader(body)
	var m EntityDespawn
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	reason, err := r.u8()
	if err != nil {
		return m, err
	}
	if reason > uint8(DespawnDied) {
		return m, ErrInvalidEnum
	}
	m.Reason = DespawnReason(reason)
	return m, nil
}

// ClientPositionUpdate is C2S_PositionUpdate: a client reporting its own
// authoritatively-owned entity's new transform, always sent absolute since
// the client always knows its own exact position.
type ClientPositionUpdate struct {
	EntityID      uint32
	Position      entity.Vec3
	RotCompressed uint32
	VelocityEnc   [3]int8
}

func EncodeClientPositionUpdate(m ClientPositionUpdate) []byte {
	w := newWriter(23)
	w.u32(m.EntityID)
	w.f32(m.Position.X)
	w.f32(m.Position.Y)
	w.f32(m.Position.Z)
	w.u32(m.RotCompressed)
	w.i8(m.VelocityEnc[0])
	w.i8(m.VelocityEnc[1])
	w.i8(m.VelocityEnc[2])
	return w.buf
}

func DecodeClientPositionUpdate(body []byte) (ClientPositionUpdate, error) {
	r := newReader(body)
	var m ClientPositionUpdate
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Position.X, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Y, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Z, err = r.f32(); err != nil {
		return m, err
	}
	if m.RotCompressed, err = r.u32(); err != nil {
		return m, err
	}
	for i := range m.VelocityEnc {
		if m.VelocityEnc[i], err = r.i8(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// ServerPositionUpdate is S2C_PositionUpdate for a single entity: absolute
// on first AOI entry, delta-encoded thereafter within the same AOI
// session, per §4.6.
type ServerPositionUpdate struct {
	EntityID      uint32
	Absolute      bool
	Position      entity.Vec3 // valid when Absolute
	Delta         [3]uint16   // valid when !Absolute
	RotCompressed uint32
	AnimState     uint8
	MoveSpeedEnc  uint8
}

func EncodeServerPositionUpdate(m ServerPositionUpdate) []byte {
	w := newWriter(18)
	w.u32(m.EntityID)
	if m.Absolute {
		w.u8(1)
		w.f32(m.Position.X)
		w.f32(m.Position.Y)
		w.f32(m.Position.Z)
	} else {
		w.u8(0)
		w.u16(m.Delta[0])
		w.u16(m.Delta[1])
		w.u16(m.Delta[2])
	}
	w.u32(m.RotCompressed)
	w.u8(m.AnimState)
	w.u8(m.MoveSpeedEnc)
	return w.buf
}

func DecodeServerPositionUpdate(body []byte) (ServerPositionUpdate, error) {
	r := newReader(body)
	var m ServerPositionUpdate
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	flag, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Absolute = flag != 0
	if m.Absolute {
		if m.Position.X, err = r.f32(); err != nil {
			return m, err
		}
		if m.Position.Y, err = r.f32(); err != nil {
			return m, err
		}
		if m.Position.Z, err = r.f32(); err != nil {
			return m, err
		}
	} else {
		for i := range m.Delta {
			if m.Delta[i], err = r.u16(); err != nil {
				return m, err
			}
		}
	}
	if m.RotCompressed, err = r.u32(); err != nil {
		return m, err
	}
	if m.AnimState, err = r.u8(); err != nil {
		return m, err
	}
	m.MoveSpeedEnc, err = r.u8()
	return m, err
}

// CharacterPosition is one record in a S2C position batch, §6.
type CharacterPosition struct {
	EntityID      uint32
	Position      entity.Vec3
	RotCompressed uint32
	AnimState     uint8
	MoveSpeedEnc  uint8
	Flags         uint8
}

const characterPositionSize = 4 + 12 + 4 + 1 + 1 + 1 // 23 bytes

func (m CharacterPosition) encodeInto(w *byteWriter) {
	w.u32(m.EntityID)
	w.f32(m.Position.X)
	w.f32(m.Position.Y)
	w.f32(m.Position.Z)
	w.u32(m.RotCompressed)
	w.u8(m.AnimState)
	w.u8(m.MoveSpeedEnc)
	w.u8(m.Flags)
}

func decodeCharacterPosition(r *byteReader) (CharacterPosition, error) {
	var m CharacterPosition
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Position.X, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Y, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Z, err = r.f32(); err != nil {
		return m, err
	}
	if m.RotCompressed, err = r.u32(); err != nil {
		return m, err
	}
	if m.AnimState, err = r.u8(); err != nil {
		return m, err
	}
	if m.MoveSpeedEnc, err = r.u8(); err != nil {
		return m, err
	}
	m.Flags, err = r.u8()
	return m, err
}

// MaxBatchEntries is the §4.6 cap: "a single packet carries up to 255
// entity positions".
const MaxBatchEntries = 255

// EncodePositionBatch frames a u8 count followed by count fixed-size
// CharacterPosition records. Callers must not pass more than
// MaxBatchEntries; the interest manager's batching loop enforces this by
// construction (see interest.Manager.Compute).
func EncodePositionBatch(records []CharacterPosition) []byte {
	if len(records) > MaxBatchEntries {
		records = records[:MaxBatchEntries]
	}
	w := newWriter(1 + len(records)*characterPositionSize)
	w.u8(uint8(len(records)))
	for _, rec := range records {
		rec.encodeInto(w)
	}
	return w.buf
}

func DecodePositionBatch(body []byte) ([]CharacterPosition, error) {
	r := newReader(body)
	count, err := r.u8()
	if err != nil {
		return nil, err
	}
	out := make([]CharacterPosition, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := decodeCharacterPosition(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MoveCommand is S2C_MoveCommand: an authoritative move order for an
// entity the receiving client does not directly control (e.g. a follower
// NPC), distinct from the position-update broadcast of observed state.
type MoveCommand struct {
	EntityID  uint32
	TargetPos entity.Vec3
	Speed     float32
}

func EncodeMoveCommand(m MoveCommand) []byte {
	w := newWriter(16)
	w.u32(m.EntityID)
	w.f32(m.TargetPos.X)
	w.f32(m.TargetPos.Y)
	w.f32(m.TargetPos.Z)
	w.f32(m.Speed)
	return w.buf
}

func DecodeMoveCommand(body []byte) (MoveCommand, error) {
	r := newReader(body)
	var m MoveCommand
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.TargetPos.X, err = r.f32(); err != nil {
		return m, err
	}
	if m.TargetPos.Y, err = r.f32(); err != nil {
		return m, err
	}
	if m.TargetPos.Z, err = r.f32(); err != nil {
		return m, err
	}
	m.Speed, err = r.f32()
	return m, err
}

// AttackIntent is C2S_AttackIntent.
type AttackIntent struct {
	AttackerID uint32
	TargetID   uint32
	Damage     float32
}

func EncodeAttackIntent(m AttackIntent) []byte {
	w := newWriter(12)
	w.u32(m.AttackerID)
	w.u32(m.TargetID)
	w.f32(m.Damage)
	return w.buf
}

func DecodeAttackIntent(body []byte) (AttackIntent, error) {
	r := newReader(body)
	var m AttackIntent
	var err error
	if m.AttackerID, err = r.u32(); err != nil {
		return m, err
	}
	if m.TargetID, err = r.u32(); err != nil {
		return m, err
	}
	m.Damage, err = r.f32()
	return m, err
}

// CombatHit is S2C_CombatHit.
type CombatHit struct {
	AttackerID uint32
	TargetID   uint32
	Damage     float32
	NewHealth  float32
}

func EncodeCombatHit(m CombatHit) []byte {
	w := newWriter(16)
	w.u32(m.AttackerID)
	w.u32(m.TargetID)
	w.f32(m.Damage)
	w.f32(m.NewHealth)
	return w.buf
}

func DecodeCombatHit(body []byte) (CombatHit, error) {
	r := newReader(body)
	var m CombatHit
	var err error
	if m.AttackerID, err = r.u32(); err != nil {
		return m, err
	}
	if m.TargetID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Damage, err = r.f32(); err != nil {
		return m, err
	}
	m.NewHealth, err = r.f32()
	return m, err
}

// CombatDeath is S2C_CombatDeath.
type CombatDeath struct {
	EntityID uint32
	KillerID uint32
}

func EncodeCombatDeath(m CombatDeath) []byte {
	w := newWriter(8)
	w.u32(m.EntityID)
	w.u32(m.KillerID)
	return w.buf
}

func DecodeCombatDeath(body []byte) (CombatDeath, error) {
	r := newReader(body)
	var m CombatDeath
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	m.KillerID, err = r.u32()
	return m, err
}

// WorldSnapshotMsg is S2C_WorldSnapshot: the snapshot package's own JSON
// encoding carried as an opaque payload, since the full snapshot shape
// (per-entity images, faction relations, zones, economy) is already a
// stable JSON contract via snapshot.Snapshot and does not need a second,
// parallel fixed-field wire encoding.
type WorldSnapshotMsg struct{ Payload []byte }

func EncodeWorldSnapshot(m WorldSnapshotMsg) []byte {
	w := newWriter(4 + len(m.Payload))
	w.u32(uint32(len(m.Payload)))
	w.bytes(m.Payload)
	return w.buf
}

func DecodeWorldSnapshot(body []byte) (WorldSnapshotMsg, error) {
	r := newReader(body)
	n, err := r.u32()
	if err != nil {
		return WorldSnapshotMsg{}, err
	}
	payload, err := r.bytes(int(n))
	if err != nil {
		return WorldSnapshotMsg{}, err
	}
	return WorldSnapshotMsg{Payload: append([]byte(nil), payload...)}, nil
}

// TimeSync is S2C_TimeSync.
type TimeSync struct {
	WorldTimeHours float32
	GameSpeed      float32
}

func EncodeTimeSync(m TimeSync) []byte {
	w := newWriter(8)
	w.f32(m.WorldTimeHours)
	w.f32(m.GameSpeed)
	return w.buf
}

func DecodeTimeSync(body []byte) (TimeSync, error) {
	r := newReader(body)
	var m TimeSync
	var err error
	if m.WorldTimeHours, err = r.f32(); err != nil {
		return m, err
	}
	m.GameSpeed, err = r.f32()
	return m, err
}

// BuildPlaced is S2C_BuildPlaced.
type BuildPlaced struct {
	EntityID      uint32
	Owner         uint32
	Position      entity.Vec3
	RotCompressed uint32
	TemplateID    uint32
}

func EncodeBuildPlaced(m BuildPlaced) []byte {
	w := newWriter(28)
	w.u32(m.EntityID)
	w.u32(m.Owner)
	w.f32(m.Position.X)
	w.f32(m.Position.Y)
	w.f32(m.Position.Z)
	w.u32(m.RotCompressed)
	w.u32(m.TemplateID)
	return w.buf
}

func DecodeBuildPlaced(body []byte) (BuildPlaced, error) {
	r := newReader(body)
	var m BuildPlaced
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Owner, err = r.u32(); err != nil {
		return m, err
	}
	if m.Position.X, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Y, err = r.f32(); err != nil {
		return m, err
	}
	if m.Position.Z, err = r.f32(); err != nil {
		return m, err
	}
	if m.RotCompressed, err = r.u32(); err != nil {
		return m, err
	}
	m.TemplateID, err = r.u32()
	return m, err
}

// HealthUpdate is S2C_HealthUpdate.
type HealthUpdate struct {
	EntityID uint32
	Current  float32
	Max      float32
}

func EncodeHealthUpdate(m HealthUpdate) []byte {
	w := newWriter(12)
	w.u32(m.EntityID)
	w.f32(m.Current)
	w.f32(m.Max)
	return w.buf
}

func DecodeHealthUpdate(body []byte) (HealthUpdate, error) {
	r := newReader(body)
	var m HealthUpdate
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Current, err = r.f32(); err != nil {
		return m, err
	}
	m.Max, err = r.f32()
	return m, err
}

// EquipmentUpdate is shared by C2S_EquipmentUpdate (request) and
// S2C_EquipmentUpdate (broadcast confirmation).
type EquipmentUpdate struct {
	EntityID uint32
	Slot     string
	Item     string // empty string means "unequip"
}

func EncodeEquipmentUpdate(m EquipmentUpdate) []byte {
	w := newWriter(16 + len(m.Slot) + len(m.Item))
	w.u32(m.EntityID)
	w.str16(m.Slot)
	w.str16(m.Item)
	return w.buf
}

func DecodeEquipmentUpdate(body []byte) (EquipmentUpdate, error) {
	r := newReader(body)
	var m EquipmentUpdate
	var err error
	if m.EntityID, err = r.u32(); err != nil {
		return m, err
	}
	if m.Slot, err = r.str16(); err != nil {
		return m, err
	}
	m.Item, err = r.str16()
	return m, err
}

// ChatChannel enumerates the chat router's channels.
type ChatChannel uint8

const (
	ChatSay ChatChannel = iota
	ChatFaction
	ChatGlobal
	ChatAdmin
)

// ClientChatMessage is C2S_ChatMessage.
type ClientChatMessage struct {
	Channel ChatChannel
	Text    string
}

func EncodeClientChatMessage(m ClientChatMessage) []byte {
	w := newWriter(8 + len(m.Text))
	w.u8(uint8(m.Channel))
	w.str16(m.Text)
	return w.buf
}

func DecodeClientChatMessage(body []byte) (ClientChatMessage, error) {
	r := newReader(body)
	var m ClientChatMessage
	ch, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Channel = ChatChannel(ch)
	m.Text, err = r.str16()
	return m, err
}

// ServerChatMessage is S2C_ChatMessage.
type ServerChatMessage struct {
	PlayerID uint32
	Channel  ChatChannel
	Text     string
}

func EncodeServerChatMessage(m ServerChatMessage) []byte {
	w := newWriter(12 + len(m.Text))
	w.u32(m.PlayerID)
	w.u8(uint8(m.Channel))
	w.str16(m.Text)
	return w.buf
}

func DecodeServerChatMessage(body []byte) (ServerChatMessage, error) {
	r := newReader(body)
	var m ServerChatMessage
	var err error
	if m.PlayerID, err = r.u32(); err != nil {
		return m, err
	}
	ch, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Channel = ChatChannel(ch)
	m.Text, err = r.str16()
	return m, err
}

// SystemMessage is S2C_SystemMessage: server-originated notices (overload
// warnings, shutdown notices, admin broadcasts).
type SystemMessage struct {
	Severity uint8
	Text     string
}

func EncodeSystemMessage(m SystemMessage) []byte {
	w := newWriter(8 + len(m.Text))
	w.u8(m.Severity)
	w.str16(m.Text)
	return w.buf
}

func DecodeSystemMessage(body []byte) (SystemMessage, error) {
	r := newReader(body)
	var m SystemMessage
	sev, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Severity = sev
	m.Text, err = r.str16()
	return m, err
}
