package sdp

import (
	"encoding/binary"

	"github.com/XC-/bluing"
)

// Encode serializes e, choosing the smallest length field for variable-size
// elements.
func Encode(e Element) []byte {
	return appendElement(nil, e)
}

// EncodeAll concatenates the encodings of es.
func EncodeAll(es ...Element) []byte {
	var b []byte
	for _, e := range es {
		b = appendElement(b, e)
	}
	return b
}

func sizeIndex(width int) uint8 {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 4
}

func appendElement(b []byte, e Element) []byte {
	d := byte(e.Kind) << 3
	switch e.Kind {
	case KindNil:
		return append(b, d)
	case KindBool:
		return append(b, d, byte(e.u))
	case KindUint, KindInt:
		b = append(b, d|sizeIndex(e.Width))
		if e.Width == 16 {
			return append(b, e.Big...)
		}
		v := e.u
		if e.Kind == KindInt {
			v = uint64(e.i)
		}
		for i := e.Width - 1; i >= 0; i-- {
			b = append(b, byte(v>>(8*uint(i))))
		}
		return b
	case KindUUID:
		return append(append(b, d|sizeIndex(e.uuid.Len())), e.uuid.BigEndian()...)
	case KindText, KindURL:
		return append(appendLength(b, d, len(e.data)), e.data...)
	case KindSequence, KindAlternative:
		var body []byte
		for _, c := range e.Items {
			body = appendElement(body, c)
		}
		return append(appendLength(b, d, len(body)), body...)
	}
	return b
}

func appendLength(b []byte, d byte, n int) []byte {
	switch {
	case n <= 0xFF:
		return append(b, d|5, byte(n))
	case n <= 0xFFFF:
		b = append(b, d|6, 0, 0)
		binary.BigEndian.PutUint16(b[len(b)-2:], uint16(n))
		return b
	}
	b = append(b, d|7, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(b[len(b)-4:], uint32(n))
	return b
}

// UUIDList builds the Sequence of UUIDs used as a ServiceSearchPattern.
func UUIDList(uu ...bluing.UUID) Element {
	items := make([]Element, len(uu))
	for i, u := range uu {
		items[i] = UUID(u)
	}
	return Seq(items...)
}

// AttributeRange is an inclusive range of attribute IDs.
type AttributeRange struct {
	Start, End uint16
}

// AllAttributes requests every attribute of a record.
var AllAttributes = []AttributeRange{{0x0000, 0xFFFF}}

// AttributeIDList builds the AttributeIDList parameter. Single-ID ranges are
// sent as 16-bit IDs.
func AttributeIDList(ranges ...AttributeRange) Element {
	items := make([]Element, len(ranges))
	for i, r := range ranges {
		if r.Start == r.End {
			items[i] = Uint16(r.Start)
		} else {
			items[i] = Uint32(uint32(r.Start)<<16 | uint32(r.End))
		}
	}
	return Seq(items...)
}
