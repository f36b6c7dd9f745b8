package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 4
)

var (
	ErrUnframed = errors.New("nscache: value is not framed")
	ErrCorrupt  = errors.New("nscache: corrupt frame")
	magic4      = [...]byte{'N', 'S', 'C', 'V'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Framed reports whether b starts with the frame magic.
// It says nothing about the validity of the rest of the frame.
func Framed(b []byte) bool { return hasMagic(b) }

// Encode wraps a codec payload.
//
//	magic(4) | ver(1) | vlen(u32 be) | payload(vlen)
func Encode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode returns the payload of a frame produced by Encode. The returned slice
// aliases b.
//
// ErrUnframed means b was written by something else (a raw string, an INCRBY
// counter) and should be handed back as-is. ErrCorrupt means b carries our
// magic but the header or length is wrong.
func Decode(b []byte) ([]byte, error) {
	if !hasMagic(b) {
		return nil, ErrUnframed
	}
	if len(b) < hdrLen || b[4] != version {
		return nil, ErrCorrupt
	}

	off := 5
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no trailing bytes
		return nil, ErrCorrupt
	}

	return b[off : off+vlen], nil
}
