// Package admin implements the operator command interpreter (§4.9): a
// whitespace-split dispatch table where every world-mutating command
// submits an event rather than writing state directly, so admin actions
// remain replayable like any other change.
//
// Each command validates a request and then mutates state, collapsed
// here into a single table keyed by command name, where the mutation is
// eventlog.Event submission through world.World.Submit.
package admin

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/session"
	"worldcore/world"
)

// Result is the synchronous acknowledgement returned to the issuing
// console, mirroring §6 scenario S6's {success, tick-id} reply shape.
type Result struct {
	Success bool
	Message string
	TickID  uint64
}

func ok(msg string, tick uint64) Result { return Result{Success: true, Message: msg, TickID: tick} }
func fail(msg string) Result            { return Result{Success: false, Message: msg} }

// Interpreter owns the dispatch table and the collaborators a command may
// act on. World-mutating commands (teleport, heal, kill, settime,
// setspeed, pause, unpause, setweather, nextday, spawnitem, spawnnpc)
// submit events. The remaining commands (list, stats, info, help, debug,
// clear, kick, ban, setadmin) act on the session manager or only read
// state; kick and ban also submit a PlayerDisconnected event.
type Interpreter struct {
	w        *world.World
	sessions *session.Manager
	zoneSize float64
}

// New constructs an interpreter. zoneSize feeds the teleport command's
// synthesized zone tag (see cmdTeleport).
func New(w *world.World, sessions *session.Manager, zoneSize float64) *Interpreter {
	if zoneSize <= 0 {
		zoneSize = 200
	}
	return &Interpreter{w: w, sessions: sessions, zoneSize: zoneSize}
}

type handlerFunc func(i *Interpreter, executor uint32, args []string) Result

var dispatch = map[string]handlerFunc{
	"teleport":   (*Interpreter).cmdTeleport,
	"heal":       (*Interpreter).cmdHeal,
	"kill":       (*Interpreter).cmdKill,
	"settime":    (*Interpreter).cmdSetTime,
	"setspeed":   (*Interpreter).cmdSetSpeed,
	"pause":      (*Interpreter).cmdPause,
	"unpause":    (*Interpreter).cmdUnpause,
	"setweather": (*Interpreter).cmdSetWeather,
	"nextday":    (*Interpreter).cmdNextDay,
	"spawnitem":  (*Interpreter).cmdSpawnItem,
	"spawnnpc":   (*Interpreter).cmdSpawnNPC,
	"list":       (*Interpreter).cmdList,
	"stats":      (*Interpreter).cmdStats,
	"info":       (*Interpreter).cmdInfo,
	"help":       (*Interpreter).cmdHelp,
	"debug":      (*Interpreter).cmdDebug,
	"clear":      (*Interpreter).cmdClear,
	"kick":       (*Interpreter).cmdKick,
	"ban":        (*Interpreter).cmdBan,
	"setadmin":   (*Interpreter).cmdSetAdmin,
}

// Execute parses and runs one command line on behalf of executorPlayerID,
// rejecting non-admins outright (§4.9, §8 property 9).
func (i *Interpreter) Execute(executorPlayerID uint32, line string) Result {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fail("empty command")
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	executor := i.sessions.ByPlayerID(executorPlayerID)
	if executor == nil || !executor.Admin {
		return fail(eventlog.RejectPermissionDenied)
	}

	h, found := dispatch[name]
	if !found {
		return fail(fmt.Sprintf("unknown command %q", name))
	}
	return h(i, executorPlayerID, args)
}

// ExecuteAsOperator runs one command line with implicit operator trust,
// bypassing the session/Admin-bit lookup Execute enforces for in-band
// chat-originated commands. Intended for the local console (§6's Operator
// CLI), which has no session of its own to carry an Admin bit.
func (i *Interpreter) ExecuteAsOperator(line string) Result {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fail("empty command")
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	h, found := dispatch[name]
	if !found {
		return fail(fmt.Sprintf("unknown command %q", name))
	}
	return h(i, 0, args)
}

// resolveEntity accepts either a raw net-id or a player-id (falling back
// to that player's first owned entity) and returns the target entity.
func (i *Interpreter) resolveEntity(token string) *entity.Entity {
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return nil
	}
	id := uint32(n)
	if e := i.w.Registry.Get(id); e != nil {
		return e
	}
	owned := i.w.Registry.OwnedBy(id)
	if len(owned) == 0 {
		return nil
	}
	return i.w.Registry.Get(owned[0])
}

func parseFloat(s string) (float64, bool) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err == nil
}

func (i *Interpreter) cmdTeleport(executor uint32, args []string) Result {
	if len(args) != 4 {
		return fail("usage: teleport <target> <x> <y> <z>")
	}
	target := i.resolveEntity(args[0])
	if target == nil {
		return fail(eventlog.RejectMissingEntity)
	}
	x, xok := parseFloat(args[1])
	y, yok := parseFloat(args[2])
	z, zok := parseFloat(args[3])
	if !xok || !yok || !zok {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type:     eventlog.EntityTeleported,
		EntityID: target.NetID,
		Data:     map[string]interface{}{"x": x, "y": y, "z": z},
	})
	// §4.9's teleport scenario also relocates the entity's zone tag; the
	// zone name is derived the same way the interest manager buckets
	// positions, so a teleport across a zone boundary is reflected
	// immediately rather than waiting for the next zone-subsystem tick.
	zoneName := fmt.Sprintf("zone_%d_%d", int(math.Floor(x/i.zoneSize)), int(math.Floor(z/i.zoneSize)))
	i.w.Submit(&eventlog.Event{
		Type:     eventlog.ZoneChanged,
		EntityID: target.NetID,
		Data:     map[string]interface{}{"zone": zoneName},
	})
	return ok(fmt.Sprintf("teleported %s to (%.2f, %.2f, %.2f)", entity.Label(target.Type, target.NetID), x, y, z), tick)
}

func (i *Interpreter) cmdHeal(executor uint32, args []string) Result {
	if len(args) != 2 {
		return fail("usage: heal <target> <amount>")
	}
	target := i.resolveEntity(args[0])
	if target == nil {
		return fail(eventlog.RejectMissingEntity)
	}
	amount, ok2 := parseFloat(args[1])
	if !ok2 {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type:     eventlog.HealingApplied,
		EntityID: target.NetID,
		Data:     map[string]interface{}{"amount": amount},
	})
	return ok(fmt.Sprintf("healed %s for %.1f", entity.Label(target.Type, target.NetID), amount), tick)
}

func (i *Interpreter) cmdKill(executor uint32, args []string) Result {
	if len(args) != 1 {
		return fail("usage: kill <target>")
	}
	target := i.resolveEntity(args[0])
	if target == nil {
		return fail(eventlog.RejectMissingEntity)
	}
	// A lethal DamageDealt with no source entity bypasses the pvp-disabled
	// rejection in World.applyDamage (the source lookup resolves to nil),
	// matching an admin kill's server-authoritative origin.
	tick := i.w.Submit(&eventlog.Event{
		Type:           eventlog.DamageDealt,
		TargetEntityID: target.NetID,
		Data:           map[string]interface{}{"amount": float64(target.Health.Max + 100)},
	})
	return ok(fmt.Sprintf("killed %s", entity.Label(target.Type, target.NetID)), tick)
}

func (i *Interpreter) cmdSetTime(executor uint32, args []string) Result {
	if len(args) != 1 {
		return fail("usage: settime <hours 0-24>")
	}
	hours, ok2 := parseFloat(args[0])
	if !ok2 || hours < 0 || hours > 24 {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.TimeAdvanced,
		Data: map[string]interface{}{"setHours": hours},
	})
	return ok(fmt.Sprintf("time set to %.2fh", hours), tick)
}

func (i *Interpreter) cmdSetSpeed(executor uint32, args []string) Result {
	if len(args) != 1 {
		return fail("usage: setspeed <game-speed multiplier>")
	}
	speed, ok2 := parseFloat(args[0])
	if !ok2 || speed <= 0 {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.TimeAdvanced,
		Data: map[string]interface{}{"setGameSpeed": speed},
	})
	return ok(fmt.Sprintf("game speed set to %.2fx", speed), tick)
}

func (i *Interpreter) cmdPause(executor uint32, args []string) Result {
	tick := i.w.Submit(&eventlog.Event{Type: eventlog.TimeAdvanced, Data: map[string]interface{}{"pause": true}})
	return ok("simulation paused", tick)
}

func (i *Interpreter) cmdUnpause(executor uint32, args []string) Result {
	tick := i.w.Submit(&eventlog.Event{Type: eventlog.TimeAdvanced, Data: map[string]interface{}{"pause": false}})
	return ok("simulation unpaused", tick)
}

func (i *Interpreter) cmdSetWeather(executor uint32, args []string) Result {
	if len(args) != 1 {
		return fail("usage: setweather <name>")
	}
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.TimeAdvanced,
		Data: map[string]interface{}{"weather": args[0]},
	})
	return ok(fmt.Sprintf("weather set to %s", args[0]), tick)
}

func (i *Interpreter) cmdNextDay(executor uint32, args []string) Result {
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.TimeAdvanced,
		Data: map[string]interface{}{"advanceDays": float64(1)},
	})
	return ok("advanced to next day", tick)
}

func (i *Interpreter) cmdSpawnItem(executor uint32, args []string) Result {
	if len(args) != 4 {
		return fail("usage: spawnitem <template> <x> <y> <z>")
	}
	x, xok := parseFloat(args[1])
	y, yok := parseFloat(args[2])
	z, zok := parseFloat(args[3])
	if !xok || !yok || !zok {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.EntitySpawned,
		Data: map[string]interface{}{"type": float64(entity.TypeItem), "templateName": args[0], "x": x, "y": y, "z": z},
	})
	return ok(fmt.Sprintf("spawned item %s", args[0]), tick)
}

func (i *Interpreter) cmdSpawnNPC(executor uint32, args []string) Result {
	if len(args) != 4 {
		return fail("usage: spawnnpc <template> <x> <y> <z>")
	}
	x, xok := parseFloat(args[1])
	y, yok := parseFloat(args[2])
	z, zok := parseFloat(args[3])
	if !xok || !yok || !zok {
		return fail(eventlog.RejectInvalidPayload)
	}
	tick := i.w.Submit(&eventlog.Event{
		Type: eventlog.EntitySpawned,
		Data: map[string]interface{}{"type": float64(entity.TypeNPC), "templateName": args[0], "x": x, "y": y, "z": z},
	})
	return ok(fmt.Sprintf("spawned npc %s", args[0]), tick)
}

// cmdList, cmdStats, cmdInfo, cmdHelp, cmdDebug and cmdClear are
// read-only/console-local: they report state or toggle operator tooling
// and have no entity or world-content representation to event-source.

func (i *Interpreter) cmdList(executor uint32, args []string) Result {
	sessions := i.sessions.All()
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.State() == session.Authenticated {
			names = append(names, fmt.Sprintf("%s(#%d)", s.PlayerName, s.PlayerID))
		}
	}
	return ok(strings.Join(names, ", "), i.w.CurrentTick())
}

func (i *Interpreter) cmdStats(executor uint32, args []string) Result {
	msg := fmt.Sprintf("tick=%d entities=%d players=%d worldHours=%.2f day=%d gameSpeed=%.2f weather=%q",
		i.w.CurrentTick(), i.w.Registry.Count(), i.sessions.AuthenticatedCount(),
		i.w.WorldHours(), i.w.DayCount(), i.w.GameSpeed(), i.w.Weather())
	return ok(msg, i.w.CurrentTick())
}

func (i *Interpreter) cmdInfo(executor uint32, args []string) Result {
	if len(args) != 1 {
		return fail("usage: info <target>")
	}
	target := i.resolveEntity(args[0])
	if target == nil {
		return fail(eventlog.RejectMissingEntity)
	}
	msg := fmt.Sprintf("%s owner=%d pos=(%.2f,%.2f,%.2f) health=%.1f/%.1f faction=%d zone=%q",
		entity.Label(target.Type, target.NetID), target.Owner,
		target.Position.X, target.Position.Y, target.Position.Z,
		target.Health.Current, target.Health.Max, target.Faction, target.Zone)
	return ok(msg, i.w.CurrentTick())
}

func (i *Interpreter) cmdHelp(executor uint32, args []string) Result {
	names := make([]string, 0, len(dispatch))
	for name := range dispatch {
		names = append(names, name)
	}
	sort.Strings(names)
	return ok(strings.Join(names, ", "), i.w.CurrentTick())
}

func (i *Interpreter) cmdDebug(executor uint32, args []string) Result {
	return ok("debug toggling is console-local; no server-side state changed", i.w.CurrentTick())
}

func (i *Interpreter) cmdClear(executor uint32, args []string) Result {
	return ok("", i.w.CurrentTick())
}

func (i *Interpreter) cmdKick(executor uint32, args []string) Result {
	if len(args) < 1 {
		return fail("usage: kick <target> [reason]")
	}
	target, reason := i.targetSession(args)
	if target == nil {
		return fail("player not found")
	}
	if err := i.sessions.Kick(target.SessionID, reason); err != nil {
		return fail(err.Error())
	}
	i.w.Submit(&eventlog.Event{Type: eventlog.PlayerDisconnected, SourcePlayerID: target.PlayerID, Data: map[string]interface{}{"reason": reason}})
	return ok(fmt.Sprintf("kicked %s", target.PlayerName), i.w.CurrentTick())
}

func (i *Interpreter) cmdBan(executor uint32, args []string) Result {
	// No persistent ban list exists in the data model (it would need an
	// external collaborator, like faction-relation persistence); a ban is
	// therefore enforced as an immediate kick only, for this session.
	res := i.cmdKick(executor, args)
	if res.Success {
		res.Message = "banned (session-only, no persistent ban list): " + res.Message
	}
	return res
}

func (i *Interpreter) cmdSetAdmin(executor uint32, args []string) Result {
	if len(args) != 2 {
		return fail("usage: setadmin <playerId> <true|false>")
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fail(eventlog.RejectInvalidPayload)
	}
	admin, err := strconv.ParseBool(args[1])
	if err != nil {
		return fail(eventlog.RejectInvalidPayload)
	}
	if !i.sessions.SetAdmin(uint32(n), admin) {
		return fail("player not found")
	}
	return ok(fmt.Sprintf("player %d admin=%v", n, admin), i.w.CurrentTick())
}

// targetSession resolves the first argument to a session by player-id and
// returns the remaining arguments joined as the reason.
func (i *Interpreter) targetSession(args []string) (*session.Session, string) {
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, ""
	}
	s := i.sessions.ByPlayerID(uint32(n))
	reason := strings.Join(args[1:], " ")
	if reason == "" {
		reason = "admin action"
	}
	return s, reason
}
