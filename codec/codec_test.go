package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldcore/entity"
)

func normalize(q entity.Quat) entity.Quat {
	n := math.Sqrt(float64(q.X)*float64(q.X) + float64(q.Y)*float64(q.Y) + float64(q.Z)*float64(q.Z) + float64(q.W)*float64(q.W))
	return entity.Quat{X: q.X / float32(n), Y: q.Y / float32(n), Z: q.Z / float32(n), W: q.W / float32(n)}
}

// TestQuatRoundTrip checks §8 property 6: decompress(compress(q)) is
// within 2^-10 of q per component, for a spread of unit quaternions.
func TestQuatRoundTrip(t *testing.T) {
	cases := []entity.Quat{
		{X: 0, Y: 0, Z: 0, W: 1},
		{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
		{X: 0.7071, Y: 0, Z: 0, W: 0.7071},
		{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9274},
		{X: -0.6, Y: 0.2, Z: -0.1, W: 0.77},
	}
	const tolerance = 1.0 / 1024 // 2^-10 per component

	for _, q := range cases {
		q = normalize(q)
		packed := CompressQuat(q)
		out := DecompressQuat(packed)

		// q and -q are the same rotation; compare against whichever sign
		// the encoder settled on.
		dist := func(a, b entity.Quat) float64 {
			return math.Max(math.Max(math.Abs(float64(a.X-b.X)), math.Abs(float64(a.Y-b.Y))), math.Max(math.Abs(float64(a.Z-b.Z)), math.Abs(float64(a.W-b.W))))
		}
		neg := entity.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
		best := dist(q, out)
		if d := dist(neg, out); d < best {
			best = d
		}
		assert.LessOrEqual(t, best, tolerance, "quaternion %+v roundtripped to %+v", q, out)
	}
}

// TestDeltaPositionRoundTrip checks §8 property 7.
func TestDeltaPositionRoundTrip(t *testing.T) {
	prev := entity.Vec3{X: 100.25, Y: -50.5, Z: 0}
	cur := entity.Vec3{X: 100.35, Y: -50.4, Z: 1.125}

	delta := EncodeDeltaPosition(prev, cur)
	got := DecodeDeltaPosition(prev, delta)

	assert.InDelta(t, float64(cur.X), float64(got.X), 0.01)
	assert.InDelta(t, float64(cur.Y), float64(got.Y), 0.01)
	assert.InDelta(t, float64(cur.Z), float64(got.Z), 0.01)
}

func TestHalfFloatRoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1, -1, 0.5, 123.456, -0.001, 65504} {
		h := EncodeHalf(f)
		back := DecodeHalf(h)
		assert.InDelta(t, float64(f), float64(back), math.Abs(float64(f))*0.01+0.01)
	}
}

func TestVelocityClampsAtEncode(t *testing.T) {
	enc := EncodeVelocity(entity.Vec3{X: 1000, Y: -1000, Z: 0})
	assert.Equal(t, int8(127), enc[0])
	assert.Equal(t, int8(-127), enc[1])
}

func TestFrameRoundTrip(t *testing.T) {
	body := EncodeHandshake(Handshake{ProtocolVersion: 1, PlayerName: "Beak Thing", Password: "hunter2"})
	packet := Frame(TypeC2SHandshake, body)

	typ, gotBody, err := ParseFrame(packet)
	require.NoError(t, err)
	assert.Equal(t, TypeC2SHandshake, typ)

	decoded, err := DecodeHandshake(gotBody)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), decoded.ProtocolVersion)
	assert.Equal(t, "Beak Thing", decoded.PlayerName)
	assert.Equal(t, "hunter2", decoded.Password)
}

func TestParseFrameRejectsBadMagic(t *testing.T) {
	packet := Frame(TypeC2SHeartbeat, nil)
	packet[0] = 0xff
	_, _, err := ParseFrame(packet)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseFrameRejectsShortRead(t *testing.T) {
	_, _, err := ParseFrame([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestParseFrameRejectsLengthMismatch(t *testing.T) {
	packet := Frame(TypeC2SHeartbeat, []byte{1, 2, 3, 4})
	_, _, err := ParseFrame(packet[:len(packet)-1])
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPositionBatchRoundTrip(t *testing.T) {
	records := []CharacterPosition{
		{EntityID: 1, Position: entity.Vec3{X: 1, Y: 2, Z: 3}, AnimState: 2, MoveSpeedEnc: 100, Flags: 1},
		{EntityID: 2, Position: entity.Vec3{X: -4, Y: 5, Z: -6}, AnimState: 0, MoveSpeedEnc: 0, Flags: 0},
	}
	body := EncodePositionBatch(records)
	out, err := DecodePositionBatch(body)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, records[0].EntityID, out[0].EntityID)
	assert.Equal(t, records[1].Position, out[1].Position)
}

func TestEntitySpawnRoundTrip(t *testing.T) {
	m := EntitySpawn{
		EntityID: 1007, Type: 0, Owner: 42, TemplateID: 3,
		Position: entity.Vec3{X: 1, Y: 2, Z: 3}, RotCompressed: 0xdeadbeef,
		Faction: 1, TemplateName: "skeleton",
	}
	body := EncodeEntitySpawn(m)
	out, err := DecodeEntitySpawn(body)
	require.NoError(t, err)
	assert.Equal(t, m, out)
}
