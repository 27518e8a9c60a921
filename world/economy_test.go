package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEconomyAdvanceDriftsPriceDeterministically(t *testing.T) {
	a := newEconomyState()
	a.SetBasePrice("iron_ore", 10)
	a.Advance(1.0)
	a.Advance(1.0)

	b := newEconomyState()
	b.SetBasePrice("iron_ore", 10)
	b.Advance(1.0)
	b.Advance(1.0)

	require.Equal(t, a.Snapshot(), b.Snapshot(), "identical inputs must drift identically for replay determinism")
}

func TestEconomyAdvanceNeverDropsBelowFloor(t *testing.T) {
	e := newEconomyState()
	e.SetBasePrice("scrap", economyMinPrice)
	for i := 0; i < 1000; i++ {
		e.Advance(1.0)
	}
	require.GreaterOrEqual(t, e.Snapshot()["scrap"], economyMinPrice)
}

func TestEconomyRestoreReplacesPriceTable(t *testing.T) {
	e := newEconomyState()
	e.Restore(map[string]float64{"gold": 42.5})
	require.Equal(t, 42.5, e.Snapshot()["gold"])
}
