// Package memory provides sync.Pool-backed reuse for the allocations that
// happen once per tick per peer on the broadcast hot path: packet byte
// buffers, position-batch slices and event payload maps.
package memory

import (
	"sync"

	"worldcore/codec"
)

var (
	// PacketBufferPool holds byte buffers sized for a typical encoded packet,
	// reused by the transport dispatcher's per-peer send path.
	PacketBufferPool = sync.Pool{
		New: func() interface{} { return make([]byte, 0, 512) },
	}

	// PositionBatchPool holds scratch slices for the per-tick position
	// batch built by the interest manager before handing it to the codec.
	PositionBatchPool = sync.Pool{
		New: func() interface{} { return make([]codec.CharacterPosition, 0, 255) },
	}

	// EventDataPool holds the open map[string]any used for event payload
	// bags while an event is being built or read back from the log.
	EventDataPool = sync.Pool{
		New: func() interface{} { return make(map[string]interface{}, 8) },
	}

	// EntitySlicePool holds scratch slices for AOI candidate lists.
	EntitySlicePool = sync.Pool{
		New: func() interface{} { return make([]uint32, 0, 64) },
	}
)

// GetPacketBuffer returns a zero-length, reusable byte buffer.
func GetPacketBuffer() []byte {
	return PacketBufferPool.Get().([]byte)[:0]
}

// PutPacketBuffer returns a buffer to the pool unless it has grown
// unreasonably large, in which case it is left for the GC.
func PutPacketBuffer(buf []byte) {
	if cap(buf) > 8192 {
		return
	}
	PacketBufferPool.Put(buf) //nolint:staticcheck // slice header reused intentionally
}

func GetPositionBatch() []codec.CharacterPosition {
	return PositionBatchPool.Get().([]codec.CharacterPosition)[:0]
}

func PutPositionBatch(s []codec.CharacterPosition) {
	if cap(s) > 1024 {
		return
	}
	PositionBatchPool.Put(s)
}

func GetEventData() map[string]interface{} {
	m := EventDataPool.Get().(map[string]interface{})
	for k := range m {
		delete(m, k)
	}
	return m
}

func PutEventData(m map[string]interface{}) {
	if len(m) > 32 {
		return
	}
	EventDataPool.Put(m)
}

func GetEntitySlice() []uint32 {
	return EntitySlicePool.Get().([]uint32)[:0]
}

func PutEntitySlice(s []uint32) {
	if cap(s) > 4096 {
		return
	}
	EntitySlicePool.Put(s)
}
