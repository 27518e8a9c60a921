package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic identifies a worldcore packet; Version is the current framing
// version. Both are validated on every decode per §4.6/§7.
const (
	Magic         uint16 = 0x4B57 // "KW"
	FrameVersion  uint8  = 1
	HeaderSize    int    = 6 // magic(2) + version(1) + type(1) + length(2)
	MaxFrameBytes int    = 1 << 16
)

// Codec errors, §7. These are recoverable: the caller drops the one
// packet and keeps the connection, escalating to a kick only after N
// offences in a rolling window (enforced by the transport dispatcher).
var (
	ErrShortRead     = errors.New("codec: short read")
	ErrBadMagic      = errors.New("codec: bad magic")
	ErrBadVersion    = errors.New("codec: unsupported version")
	ErrLengthMismatch = errors.New("codec: length mismatch")
	ErrUnknownType   = errors.New("codec: unknown message type")
	ErrInvalidEnum   = errors.New("codec: invalid enum value")
)

// Frame prepends the §4.6 header to body and returns the full packet.
func Frame(t MsgType, body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(out[0:2], Magic)
	out[2] = FrameVersion
	out[3] = byte(t)
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(body)))
	copy(out[HeaderSize:], body)
	return out
}

// ParseFrame validates the header and returns the message type and body
// slice (a view into data, not a copy). Short reads, bad magic/version and
// a declared length that doesn't match the buffer all return codec errors
// per §7 rather than panicking.
func ParseFrame(data []byte) (MsgType, []byte, error) {
	if len(data) < HeaderSize {
		return 0, nil, ErrShortRead
	}
	if binary.LittleEndian.Uint16(data[0:2]) != Magic {
		return 0, nil, ErrBadMagic
	}
	if data[2] != FrameVersion {
		return 0, nil, ErrBadVersion
	}
	t := MsgType(data[3])
	length := int(binary.LittleEndian.Uint16(data[4:6]))
	if len(data)-HeaderSize != length {
		return 0, nil, fmt.Errorf("%w: declared %d, have %d", ErrLengthMismatch, length, len(data)-HeaderSize)
	}
	return t, data[HeaderSize:], nil
}

// byteWriter is a minimal append-only binary writer, avoiding a bytes.Buffer
// allocation for the common case of a handful of fixed-width fields.
type byteWriter struct{ buf []byte }

func newWriter(sizeHint int) *byteWriter { return &byteWriter{buf: make([]byte, 0, sizeHint)} }

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) i8(v int8)    { w.buf = append(w.buf, byte(v)) }
func (w *byteWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *byteWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *byteWriter) str16(s string) {
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// byteReader is the mirror reader, tracking an offset and returning
// ErrShortRead instead of panicking on underrun.
type byteReader struct {
	buf []byte
	off int
}

func newReader(b []byte) *byteReader { return &byteReader{buf: b} }

func (r *byteReader) need(n int) error {
	if len(r.buf)-r.off < n {
		return ErrShortRead
	}
	return nil
}

func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *byteReader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *byteReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *byteReader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *byteReader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
