package admin

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/session"
	"worldcore/snapshot"
	"worldcore/world"
)

func itoa(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

func newTestInterpreter(t *testing.T) (*Interpreter, *world.World, *session.Manager) {
	t.Helper()
	events, err := eventlog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })
	snaps, err := snapshot.NewStore(t.TempDir(), 10)
	require.NoError(t, err)

	w := world.New(world.Config{WorldID: "test", PVPEnabled: true}, entity.NewRegistry(), events, snaps, nil)
	sessions := session.NewManager(10, nil)
	return New(w, sessions, 200), w, sessions
}

func adminSession(t *testing.T, sessions *session.Manager) *session.Session {
	t.Helper()
	s := sessions.Connect("127.0.0.1")
	authed, _, ok := sessions.Authenticate(s.SessionID, session.ProtocolVersion, "Op", "")
	require.True(t, ok)
	sessions.SetAdmin(authed.PlayerID, true)
	return authed
}

func TestExecuteRejectsNonAdmin(t *testing.T) {
	interp, _, sessions := newTestInterpreter(t)
	s := sessions.Connect("127.0.0.1")
	authed, _, ok := sessions.Authenticate(s.SessionID, session.ProtocolVersion, "Regular", "")
	require.True(t, ok)

	result := interp.Execute(authed.PlayerID, "stats")
	require.False(t, result.Success)
	require.Equal(t, eventlog.RejectPermissionDenied, result.Message)
}

func TestExecuteUnknownCommand(t *testing.T) {
	interp, _, sessions := newTestInterpreter(t)
	admin := adminSession(t, sessions)

	result := interp.Execute(admin.PlayerID, "frobnicate")
	require.False(t, result.Success)
}

func TestSpawnNPCThenTeleport(t *testing.T) {
	interp, w, sessions := newTestInterpreter(t)
	admin := adminSession(t, sessions)

	result := interp.Execute(admin.PlayerID, "spawnnpc bandit 1 0 1")
	require.True(t, result.Success)
	w.SimulateTick(1.0 / 20)

	var id uint32
	for _, e := range w.Registry.All() {
		id = e.NetID
	}
	require.NotZero(t, id)

	result = interp.Execute(admin.PlayerID, "teleport "+itoa(id)+" 5 0 5")
	require.True(t, result.Success)
	w.SimulateTick(1.0 / 20)

	ent := w.Registry.Get(id)
	require.Equal(t, entity.Vec3{X: 5, Y: 0, Z: 5}, ent.Position)
}

func TestKillRemovesEntity(t *testing.T) {
	interp, w, sessions := newTestInterpreter(t)
	admin := adminSession(t, sessions)

	interp.Execute(admin.PlayerID, "spawnnpc bandit 0 0 0")
	w.SimulateTick(1.0 / 20)
	var id uint32
	for _, e := range w.Registry.All() {
		id = e.NetID
	}

	result := interp.Execute(admin.PlayerID, "kill "+itoa(id))
	require.True(t, result.Success)
	w.SimulateTick(1.0 / 20)
	require.Nil(t, w.Registry.Get(id), "kill must remove the entity after the simulator cleans it up")
}

func TestExecuteAsOperatorBypassesAdminCheck(t *testing.T) {
	interp, _, _ := newTestInterpreter(t)
	result := interp.ExecuteAsOperator("settime 12")
	require.True(t, result.Success)
}

func TestSetAdminPromotesPlayer(t *testing.T) {
	interp, _, sessions := newTestInterpreter(t)
	admin := adminSession(t, sessions)

	target := sessions.Connect("127.0.0.2")
	authedTarget, _, ok := sessions.Authenticate(target.SessionID, session.ProtocolVersion, "Target", "")
	require.True(t, ok)
	require.False(t, authedTarget.Admin)

	result := interp.Execute(admin.PlayerID, "setadmin "+itoa(authedTarget.PlayerID)+" true")
	require.True(t, result.Success)
	require.True(t, authedTarget.Admin)
}
