package clientsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldcore/entity"
)

func TestInterpolatesBetweenBracketingSamples(t *testing.T) {
	b := New(100, 50)
	base := time.Unix(1000, 0)

	b.Record(1, 1, entity.Vec3{X: 0}, entity.Quat{W: 1}, entity.Vec3{}, base)
	b.Record(1, 2, entity.Vec3{X: 10}, entity.Quat{W: 1}, entity.Vec3{}, base.Add(200*time.Millisecond))

	// display time = now - 100ms; now = base+200ms -> display = base+100ms,
	// exactly halfway between the two samples.
	res, ok := b.Sample(1, base.Add(200*time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 5.0, float64(res.Position.X), 0.01)
	assert.False(t, res.Stale)
}

func TestExtrapolatesWithinWindow(t *testing.T) {
	b := New(100, 50)
	base := time.Unix(2000, 0)
	b.Record(2, 1, entity.Vec3{X: 0}, entity.Quat{W: 1}, entity.Vec3{X: 10}, base)

	// now such that display time is 30ms past the only sample: within the
	// 50ms extrapolation window.
	now := base.Add(100*time.Millisecond + 30*time.Millisecond)
	res, ok := b.Sample(2, now)
	require.True(t, ok)
	assert.InDelta(t, 0.3, float64(res.Position.X), 0.01)
	assert.False(t, res.Stale)
}

func TestGoesStaleBeyondExtrapolationWindow(t *testing.T) {
	b := New(100, 50)
	base := time.Unix(3000, 0)
	b.Record(3, 1, entity.Vec3{X: 0}, entity.Quat{W: 1}, entity.Vec3{X: 10}, base)

	now := base.Add(100*time.Millisecond + 500*time.Millisecond)
	res, ok := b.Sample(3, now)
	require.True(t, ok)
	assert.True(t, res.Stale)
	assert.Equal(t, float32(0), res.Position.X)
}

func TestUnderrunClampsToOldest(t *testing.T) {
	b := New(100, 50)
	base := time.Unix(4000, 0)
	b.Record(4, 1, entity.Vec3{X: 7}, entity.Quat{W: 1}, entity.Vec3{}, base)

	// display time is before the only sample was received.
	res, ok := b.Sample(4, base.Add(10*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, float32(7), res.Position.X)
	assert.False(t, res.Stale)
}

func TestRemapPreservesHistoryUnderNewID(t *testing.T) {
	b := New(100, 50)
	base := time.Unix(5000, 0)
	b.Record(100, 1, entity.Vec3{X: 1}, entity.Quat{W: 1}, entity.Vec3{}, base)

	b.Remap(100, 200)

	_, ok := b.Sample(100, base)
	assert.False(t, ok)
	res, ok := b.Sample(200, base.Add(200*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, float32(1), res.Position.X)
}

func TestSlerpHalfwayIsNormalized(t *testing.T) {
	a := entity.Quat{W: 1}
	bq := entity.Quat{X: 1}
	out := slerp(a, bq, 0.5)
	n := float64(out.X*out.X + out.Y*out.Y + out.Z*out.Z + out.W*out.W)
	assert.InDelta(t, 1.0, n, 0.001)
}
