// Package wire frames cache records stored in the shared byte store.
//
// Two record kinds exist. A value record carries the serialized payload and
// an optional logical expiry (unix seconds, UTC; 0 means the record has no
// embedded expiry and lives by the store TTL alone). An absent record is a
// tagged marker meaning "confirmed absent upstream" - a distinct kind rather
// than an empty payload, so it can never collide with a value type whose
// valid serialized form is empty.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindValue  byte = 1
	kindAbsent byte = 2
)

var (
	ErrCorrupt = errors.New("surge: corrupt cache record")
	magic4     = [...]byte{'S', 'R', 'G', 'E'}
)

const valueHeader = 4 + 1 + 1 + 8 + 4

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Value: magic(4) | ver(1) | kind(1=value) | expireAt(i64 be, unix sec) | vlen(u32 be) | payload(vlen)
func EncodeValue(expireAt int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(valueHeader + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindValue)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expireAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeValue(b []byte) (expireAt int64, payload []byte, err error) {
	if len(b) < valueHeader || !hasMagic(b) || b[4] != version || b[5] != kindValue {
		return 0, nil, ErrCorrupt
	}

	off := 6

	expireAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || off+vlen != len(b) { // exact length; trailing bytes are corruption
		return 0, nil, ErrCorrupt
	}

	return expireAt, b[off : off+vlen], nil
}

// Absent: magic(4) | ver(1) | kind(2=absent)
func EncodeAbsent() []byte {
	return []byte{magic4[0], magic4[1], magic4[2], magic4[3], version, kindAbsent}
}

func IsAbsent(b []byte) bool {
	return len(b) == 6 && hasMagic(b) && b[4] == version && b[5] == kindAbsent
}
