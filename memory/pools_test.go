package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPacketBufferIsZeroLength(t *testing.T) {
	buf := GetPacketBuffer()
	require.Len(t, buf, 0)
	buf = append(buf, 1, 2, 3)
	PutPacketBuffer(buf)

	reused := GetPacketBuffer()
	require.Len(t, reused, 0)
}

func TestPutPacketBufferDropsOversizedBuffers(t *testing.T) {
	huge := make([]byte, 0, 16384)
	PutPacketBuffer(huge) // must not panic; oversized buffers are simply discarded
}

func TestGetPositionBatchIsZeroLength(t *testing.T) {
	batch := GetPositionBatch()
	require.Len(t, batch, 0)
	PutPositionBatch(batch)
}

func TestGetEventDataClearsPriorContents(t *testing.T) {
	m := GetEventData()
	m["x"] = 1.0
	m["y"] = 2.0
	PutEventData(m)

	reused := GetEventData()
	require.Empty(t, reused, "a map returned to the pool must come back clean on the next Get")
}

func TestPutEventDataDropsOversizedMaps(t *testing.T) {
	m := make(map[string]interface{}, 64)
	for i := 0; i < 40; i++ {
		m[string(rune('a'+i%26))+string(rune(i))] = i
	}
	PutEventData(m) // must not panic; oversized maps are simply discarded
}

func TestGetEntitySliceIsZeroLength(t *testing.T) {
	s := GetEntitySlice()
	require.Len(t, s, 0)
	s = append(s, 1, 2, 3)
	PutEntitySlice(s)

	reused := GetEntitySlice()
	require.Len(t, reused, 0)
}
