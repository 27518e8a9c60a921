// Package server wires the core subsystems (world, entity registry,
// session manager, transport dispatcher, interest manager, admin
// interpreter, chat router) into one running instance and drives the
// tick-synchronized broadcast phase's data flow:
// clients -> transport -> codec -> session manager -> event log -> world
// simulator -> interest manager -> codec -> transport -> clients.
//
// Hub is a central struct owning every collaborator, a Run method that
// starts the background goroutines, and a ServeWS upgrade handler
// registered directly on the HTTP mux. Hub delegates all world-state
// ownership to package world and only orchestrates wiring and the
// per-tick broadcast fan-out.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"worldcore/admin"
	"worldcore/chat"
	"worldcore/codec"
	"worldcore/config"
	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/interest"
	"worldcore/logging"
	"worldcore/session"
	"worldcore/snapshot"
	"worldcore/tick"
	"worldcore/transport"
	"worldcore/world"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns every long-lived collaborator and the goroutines that drive
// them: the tick clock, the heartbeat/auth-timeout sweep, and the
// WebSocket accept path.
type Hub struct {
	log *logging.Logger

	Registry   *entity.Registry
	Events     *eventlog.Log
	Snaps      *snapshot.Store
	World      *world.World
	Sessions   *session.Manager
	Dispatcher *transport.Dispatcher
	Interest   *interest.Manager
	Admin      *admin.Interpreter
	Chat       *chat.Router
	Clock      *tick.Clock

	heartbeatTimeoutTicks uint64
	authTimeout           time.Duration
}

// NewHub constructs a Hub from the process-wide config.Global, opening the
// event log and snapshot store at config.GetSavePath().
func NewHub(log *logging.Logger) (*Hub, error) {
	if log == nil {
		log = logging.Default()
	}

	reg := entity.NewRegistry()
	events, err := eventlog.Open(config.GetSavePath())
	if err != nil {
		return nil, err
	}
	snaps, err := snapshot.NewStore(config.GetSavePath(), config.GetMaxSnapshots())
	if err != nil {
		return nil, err
	}

	w := world.New(world.Config{
		WorldID:                config.GetServerName(),
		RealSecondsPerGameHour: 60,
		GameSpeed:              config.GetGameSpeed(),
		SnapshotIntervalTicks:  config.GetSnapshotIntervalTicks(),
		PosChangeThreshold:     config.GetPosChangeThreshold(),
		PVPEnabled:             config.GetPVPEnabled(),
	}, reg, events, snaps, log)

	if def, err := config.LoadWorldDefinition(config.GetWorldFile()); err != nil {
		log.Warn("world file load failed", map[string]interface{}{"error": err.Error(), "path": config.GetWorldFile()})
	} else if def != nil {
		for _, z := range def.Zones {
			w.RegisterZone(z.Name, entity.Vec3{X: float32(z.X), Y: float32(z.Y), Z: float32(z.Z)}, z.Radius, z.NPCTemplate, z.MaxPopulation, z.SpawnIntervalTicks)
		}
	}

	sessions := session.NewManager(config.GetMaxPlayers(), log)
	dispatcher := transport.NewDispatcher(0, log)
	interestMgr := interest.NewManager(config.GetZoneSize(), config.GetPosChangeThreshold())
	adminInterp := admin.New(w, sessions, config.GetZoneSize())
	chatRouter := chat.New(dispatcher, sessions, reg, log)
	clock := tick.New(float64(config.GetTickRate()), log)

	h := &Hub{
		log:                   log,
		Registry:              reg,
		Events:                events,
		Snaps:                 snaps,
		World:                 w,
		Sessions:              sessions,
		Dispatcher:            dispatcher,
		Interest:              interestMgr,
		Admin:                 adminInterp,
		Chat:                  chatRouter,
		Clock:                 clock,
		heartbeatTimeoutTicks: uint64(config.GetHeartbeatTimeoutSeconds() * config.GetTickRate()),
		authTimeout:           time.Duration(config.GetAuthTimeoutSeconds()) * time.Second,
	}
	dispatcher.OnFrame = h.handleFrame
	dispatcher.OnDisconnect = h.handleDisconnect
	return h, nil
}

// Run starts the tick clock and the maintenance sweep; it returns
// immediately, leaving both running in background goroutines until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	go h.Clock.Run(ctx, h.onTick)
	go h.maintenanceLoop(ctx)
}

// Close closes the event log file on graceful shutdown (§7's fatal-error
// path: "flush log, exit"); the snapshot store holds no open files.
func (h *Hub) Close() error {
	return h.Events.Close()
}

// ServeWS upgrades an incoming HTTP request to a WebSocket and hands the
// connection to the transport dispatcher under a freshly Connected
// session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	ip := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		ip = session.RemoteIP(addr)
	}
	s := h.Sessions.Connect(ip)
	h.Dispatcher.Serve(s.SessionID, conn)
}

// onTick is the tick clock's callback: advance the simulator one step,
// reconcile newly-spawned entity ownership into their owning sessions,
// then run the broadcast phase (§4.1 steps 1-10).
func (h *Hub) onTick(tickID uint64, dt time.Duration) {
	result := h.World.SimulateTick(dt.Seconds())
	if !result.Success {
		return
	}
	h.reconcileOwnership()
	h.broadcastCombatAndItems(tickID)
	h.broadcastPhase()
}

// reconcileOwnership adds any entity the simulator just applied a spawn
// for to its owning session's locally-owned set, so that session's own
// position becomes a valid AOI observer origin and its disconnect path
// knows to despawn it (§4.3, §4.4).
func (h *Hub) reconcileOwnership() {
	for _, e := range h.Registry.All() {
		if e.Owner == 0 {
			continue
		}
		s := h.Sessions.ByPlayerID(e.Owner)
		if s == nil {
			continue
		}
		owned := false
		for _, id := range s.OwnedEntities() {
			if id == e.NetID {
				owned = true
				break
			}
		}
		if !owned {
			s.AddOwnedEntity(e.NetID)
		}
	}
}

// maintenanceLoop polls heartbeat and handshake timeouts once a second,
// well below the 5s/10s thresholds §4.4 specifies, and tears down any
// session it finds expired.
func (h *Hub) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, s := range h.Sessions.CheckHeartbeatTimeouts(h.Clock.Current(), h.heartbeatTimeoutTicks) {
				h.despawnOwned(s)
				h.Dispatcher.Close(s.SessionID)
			}
			for _, s := range h.Sessions.CheckHandshakeTimeouts(h.authTimeout) {
				h.Dispatcher.Close(s.SessionID)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) observerPosition(s *session.Session) entity.Vec3 {
	for _, id := range s.OwnedEntities() {
		if e := h.Registry.Get(id); e != nil {
			return e.Position
		}
	}
	return entity.Vec3{}
}

// broadcastPhase runs every authenticated session's AOI pass and sends the
// resulting spawn/despawn/position-batch packets, in session-id order per
// §4.7's tie-break rule (session.Manager.All already returns that order).
func (h *Hub) broadcastPhase() {
	entities := h.Registry.All()
	for _, s := range h.Sessions.All() {
		if s.State() != session.Authenticated {
			continue
		}
		if h.Dispatcher.CheckOverloaded(s.SessionID) {
			h.Chat.SystemMessage(s.SessionID, 2, "connection overloaded, disconnecting")
			h.despawnOwned(s)
			h.Dispatcher.Close(s.SessionID)
			continue
		}

		update := h.Interest.Compute(s.SessionID, h.observerPosition(s), entities)
		for _, e := range update.Spawns {
			body := codec.EncodeEntitySpawn(codec.EntitySpawn{
				EntityID:      e.NetID,
				Type:          uint8(e.Type),
				Owner:         e.Owner,
				TemplateID:    e.TemplateID,
				Position:      e.Position,
				RotCompressed: codec.CompressQuat(e.Rotation),
				Faction:       e.Faction,
				TemplateName:  e.TemplateName,
			})
			h.Dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CEntitySpawn, body)
		}
		for _, id := range update.Despawns {
			reason := codec.DespawnOutOfRange
			if e := h.Registry.Get(id); e == nil {
				reason = codec.DespawnRemoved
			}
			body := codec.EncodeEntityDespawn(codec.EntityDespawn{EntityID: id, Reason: reason})
			h.Dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, codec.TypeS2CEntityDespawn, body)
		}
		if len(update.Batch) > 0 {
			h.Dispatcher.Send(s.SessionID, transport.ChannelUnreliable, codec.TypeS2CPositionBatch, codec.EncodePositionBatch(update.Batch))
		}
		h.Interest.Release(update)
	}
}

// broadcastCombatAndItems inspects the events the simulator applied on
// tickID and emits the explicit S2C_CombatHit/S2C_CombatDeath/
// S2C_EquipmentUpdate/S2C_HealthUpdate broadcasts those event types
// trigger, to every session within the player-character sync radius of the
// affected entity.
// These are distinct from the AOI spawn/despawn/position pipeline since
// they carry semantic payloads (damage amount, slot name) the position
// batch format has no room for.
func (h *Hub) broadcastCombatAndItems(tickID uint64) {
	for _, e := range h.Events.EventsInRange(tickID, tickID) {
		if !e.WasApplied {
			continue
		}
		switch e.Type {
		case eventlog.DamageDealt:
			h.broadcastDamage(e)
		case eventlog.HealingApplied:
			h.broadcastHealth(e.EntityID)
		case eventlog.ItemEquipped, eventlog.ItemUnequipped:
			h.broadcastEquipment(e)
		}
	}
}

func (h *Hub) broadcastDamage(e *eventlog.Event) {
	target := h.Registry.Get(e.TargetEntityID)
	if target == nil {
		return
	}
	amount, _ := e.Data["amount"].(float64)
	hit := codec.EncodeCombatHit(codec.CombatHit{
		AttackerID: e.EntityID,
		TargetID:   e.TargetEntityID,
		Damage:     float32(amount),
		NewHealth:  target.Health.Current,
	})
	h.broadcastNear(target.Position, entity.TypePlayerCharacter.SyncRadius(), codec.TypeS2CCombatHit, hit)
	if target.MarkedForRemoval {
		death := codec.EncodeCombatDeath(codec.CombatDeath{EntityID: e.TargetEntityID, KillerID: e.EntityID})
		h.broadcastNear(target.Position, entity.TypePlayerCharacter.SyncRadius(), codec.TypeS2CCombatDeath, death)
	}
}

func (h *Hub) broadcastHealth(entityID uint32) {
	target := h.Registry.Get(entityID)
	if target == nil {
		return
	}
	body := codec.EncodeHealthUpdate(codec.HealthUpdate{EntityID: entityID, Current: target.Health.Current, Max: target.Health.Max})
	h.broadcastNear(target.Position, entity.TypePlayerCharacter.SyncRadius(), codec.TypeS2CHealthUpdate, body)
}

func (h *Hub) broadcastEquipment(e *eventlog.Event) {
	target := h.Registry.Get(e.EntityID)
	if target == nil {
		return
	}
	item, _ := e.Data["item"].(string)
	slot, _ := e.Data["slot"].(string)
	body := codec.EncodeEquipmentUpdate(codec.EquipmentUpdate{EntityID: e.EntityID, Slot: slot, Item: item})
	h.broadcastNear(target.Position, entity.TypePlayerCharacter.SyncRadius(), codec.TypeS2CEquipmentUpdate, body)
}

func (h *Hub) broadcastNear(pos entity.Vec3, radius float64, msgType codec.MsgType, body []byte) {
	radiusSq := radius * radius
	for _, s := range h.Sessions.All() {
		if s.State() != session.Authenticated {
			continue
		}
		if h.observerPosition(s).Sub(pos).LengthSq() <= radiusSq {
			h.Dispatcher.Send(s.SessionID, transport.ChannelReliableOrdered, msgType, body)
		}
	}
}

// despawnOwned submits an EntityRemoved event for every entity s owns, on
// disconnect or heartbeat timeout (§4.4, §8 scenario S4).
func (h *Hub) despawnOwned(s *session.Session) {
	for _, id := range s.OwnedEntities() {
		h.World.Submit(&eventlog.Event{Type: eventlog.EntityRemoved, EntityID: id, SourcePlayerID: s.PlayerID})
	}
}
