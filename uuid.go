package bluing

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// A UUID is a Bluetooth UUID of 16, 32 or 128 bits. It is stored in the
// little-endian order used by ATT and advertising data, and is comparable,
// so it can key a map. Two UUIDs of different widths are Equal when they
// expand to the same 128-bit value.
type UUID struct {
	b [16]byte
	n uint8
}

// baseUUID is 00000000-0000-1000-8000-00805F9B34FB, little-endian.
var baseUUID = [16]byte{
	0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80,
	0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// UUID16 converts a uint16 (such as 0x1800) to a UUID.
func UUID16(i uint16) UUID {
	var u UUID
	binary.LittleEndian.PutUint16(u.b[:], i)
	u.n = 2
	return u
}

// UUID32 converts a uint32 to a UUID.
func UUID32(i uint32) UUID {
	var u UUID
	binary.LittleEndian.PutUint32(u.b[:], i)
	u.n = 4
	return u
}

// UUIDFromLittleEndian builds a UUID from 2, 4 or 16 wire bytes.
func UUIDFromLittleEndian(b []byte) (UUID, error) {
	var u UUID
	if err := lenErr(len(b)); err != nil {
		return u, err
	}
	copy(u.b[:], b)
	u.n = uint8(len(b))
	return u, nil
}

// UUIDFromBigEndian builds a UUID from 2, 4 or 16 big-endian bytes, the
// order used inside SDP data elements.
func UUIDFromBigEndian(b []byte) (UUID, error) {
	return UUIDFromLittleEndian(reverse(b))
}

// ParseUUID parses "1105", "0000110b", "0000110500001000800000805f9b34fb"
// or the dashed 36-character form.
func ParseUUID(s string) (UUID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	switch len(s) {
	case 4, 8:
		b, err := hex.DecodeString(s)
		if err != nil {
			return UUID{}, err
		}
		return UUIDFromBigEndian(b)
	}
	g, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUIDFromBigEndian(g[:])
}

// MustParseUUID parses a standard-format UUID string,
// like ParseUUID, but panics in case of error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// lenErr returns an error if n is an invalid UUID length.
func lenErr(n int) error {
	switch n {
	case 2, 4, 16:
		return nil
	}
	return fmt.Errorf("UUIDs must have length 2, 4 or 16, got %d", n)
}

// Len returns the length of the UUID, in bytes.
func (u UUID) Len() int { return int(u.n) }

// IsZero reports whether u was never set.
func (u UUID) IsZero() bool { return u.n == 0 }

// Bytes returns the little-endian wire bytes.
func (u UUID) Bytes() []byte {
	b := make([]byte, u.n)
	copy(b, u.b[:u.n])
	return b
}

// BigEndian returns the bytes most significant first.
func (u UUID) BigEndian() []byte { return reverse(u.b[:u.n]) }

// Expand returns the 128-bit form of u.
func (u UUID) Expand() UUID {
	if u.n == 16 || u.n == 0 {
		return u
	}
	e := UUID{b: baseUUID, n: 16}
	copy(e.b[12:], u.b[:u.n])
	return e
}

// Short returns the 16-bit alias of u when u is a 16-bit UUID, or a 32/128-bit
// UUID within the Bluetooth base range whose value fits in 16 bits.
func (u UUID) Short() (uint16, bool) {
	switch u.n {
	case 2:
		return binary.LittleEndian.Uint16(u.b[:]), true
	case 4:
		v := binary.LittleEndian.Uint32(u.b[:])
		return uint16(v), v <= 0xFFFF
	case 16:
		if !bytes.Equal(u.b[:12], baseUUID[:12]) || u.b[14] != 0 || u.b[15] != 0 {
			return 0, false
		}
		return binary.LittleEndian.Uint16(u.b[12:]), true
	}
	return 0, false
}

// Equal returns a boolean reporting whether v represent the same UUID as u.
func (u UUID) Equal(v UUID) bool { return u.Expand() == v.Expand() }

// String hex-encodes a UUID, most significant byte first.
func (u UUID) String() string {
	switch u.n {
	case 0:
		return ""
	case 16:
		var g uuid.UUID
		copy(g[:], u.BigEndian())
		return g.String()
	}
	return hex.EncodeToString(u.BigEndian())
}

// Contains returns a boolean reporting whether u is in the slice s.
func Contains(s []UUID, u UUID) bool {
	for _, a := range s {
		if a.Equal(u) {
			return true
		}
	}
	return false
}

// reverse returns a reversed copy of u.
func reverse(u []byte) []byte {
	// Special-case 16 bit UUIDS for speed.
	l := len(u)
	if l == 2 {
		return []byte{u[1], u[0]}
	}
	b := make([]byte, l)
	for i := 0; i < l; i++ {
		b[i] = u[l-i-1]
	}
	return b
}
