package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsArePopulated(t *testing.T) {
	cfg := defaults()
	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, 20, cfg.Server.TickRate)
	require.Equal(t, int64(600), cfg.World.SnapshotIntervalTicks)
	require.Equal(t, 10, cfg.World.MaxSnapshots)
	require.Empty(t, cfg.Server.PasswordHash)
}

func TestSetPasswordHashesAndVerifies(t *testing.T) {
	cfg := defaults()
	setPassword(cfg, "hunter2")
	require.NotEmpty(t, cfg.Server.PasswordHash)

	Global = cfg
	defer func() { Global = nil }()

	require.True(t, RequiresPassword())
	require.True(t, CheckPassword("hunter2"))
	require.False(t, CheckPassword("wrong"))
}

func TestCheckPasswordWithoutConfigAllows(t *testing.T) {
	Global = nil
	require.False(t, RequiresPassword())
	require.True(t, CheckPassword("anything"))
}

func TestIsAdminNameCaseInsensitive(t *testing.T) {
	cfg := defaults()
	cfg.Session.AdminNames = []string{"Overseer"}
	Global = cfg
	defer func() { Global = nil }()

	require.True(t, IsAdminName("overseer"))
	require.False(t, IsAdminName("bandit"))
}

func TestLoadWorldDefinitionBlankPathIsNotAnError(t *testing.T) {
	def, err := LoadWorldDefinition("")
	require.NoError(t, err)
	require.Nil(t, def)
}

func TestLoadWorldDefinitionParsesZones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	contents := `
zones:
  - name: squin_outskirts
    x: 100
    y: 0
    z: -50
    radius: 75
    npc_template: 3
    max_population: 6
    spawn_interval_ticks: 200
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	def, err := LoadWorldDefinition(path)
	require.NoError(t, err)
	require.Len(t, def.Zones, 1)
	require.Equal(t, "squin_outskirts", def.Zones[0].Name)
	require.Equal(t, uint32(3), def.Zones[0].NPCTemplate)
	require.Equal(t, 6, def.Zones[0].MaxPopulation)
	require.Equal(t, uint64(200), def.Zones[0].SpawnIntervalTicks)
}

func TestLoadWorldDefinitionMissingFileErrors(t *testing.T) {
	_, err := LoadWorldDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
