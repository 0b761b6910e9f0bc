package bluing

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BDAddr is a 48-bit Bluetooth device address in display order:
// BDAddr[0] is the most significant byte, the first octet of "AA:BB:CC:DD:EE:FF".
// HCI and L2CAP carry addresses least significant byte first; use
// AddrFromLittleEndian and LittleEndian to cross that boundary.
type BDAddr [6]byte

// ParseBDAddr parses "AA:BB:CC:DD:EE:FF", "AA-BB-CC-DD-EE-FF" or "AABBCCDDEEFF".
func ParseBDAddr(s string) (BDAddr, error) {
	var a BDAddr
	t := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(t) != 12 {
		return a, errors.Wrapf(ErrInvalid, "BD_ADDR %q", s)
	}
	b, err := hex.DecodeString(t)
	if err != nil {
		return a, errors.Wrapf(ErrInvalid, "BD_ADDR %q: %v", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseBDAddr is like ParseBDAddr but panics on error.
func MustParseBDAddr(s string) BDAddr {
	a, err := ParseBDAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFromLittleEndian converts a wire-order (LSB first) address.
func AddrFromLittleEndian(b []byte) BDAddr {
	var a BDAddr
	for i := 0; i < 6 && i < len(b); i++ {
		a[5-i] = b[i]
	}
	return a
}

// LittleEndian returns the address in wire order.
func (a BDAddr) LittleEndian() [6]byte {
	var b [6]byte
	for i := range a {
		b[5-i] = a[i]
	}
	return b
}

func (a BDAddr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// OUI returns the upper 24 bits of the address.
func (a BDAddr) OUI() uint32 {
	return uint32(a[0])<<16 | uint32(a[1])<<8 | uint32(a[2])
}

// IsZero reports whether a is 00:00:00:00:00:00.
func (a BDAddr) IsZero() bool { return a == BDAddr{} }

// AddrType distinguishes LE public and random device addresses.
type AddrType uint8

const (
	AddrPublic AddrType = 0x00
	AddrRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrPublic:
		return "public"
	case AddrRandom:
		return "random"
	}
	return fmt.Sprintf("addr-type(0x%02X)", uint8(t))
}

// ParseAddrType accepts "public" or "random".
func ParseAddrType(s string) (AddrType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "":
		return AddrPublic, nil
	case "random":
		return AddrRandom, nil
	}
	return 0, errors.Wrapf(ErrInvalid, "address type %q", s)
}

// RandomKind is the sub-type of a random device address, taken from its two
// most significant bits.
type RandomKind uint8

const (
	RandomNonResolvable RandomKind = 0x0
	RandomResolvable    RandomKind = 0x1
	RandomReserved      RandomKind = 0x2
	RandomStatic        RandomKind = 0x3
)

var randomKindName = [...]string{
	RandomNonResolvable: "non-resolvable private",
	RandomResolvable:    "resolvable private",
	RandomReserved:      "reserved",
	RandomStatic:        "static",
}

func (k RandomKind) String() string { return randomKindName[k&0x3] }

// RandomKind is only meaningful when the address was advertised as random.
func (a BDAddr) RandomKind() RandomKind { return RandomKind(a[0] >> 6) }
