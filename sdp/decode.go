package sdp

import (
	"encoding/binary"

	"github.com/XC-/bluing"
)

// DefaultMaxDepth bounds container nesting when Decoder.MaxDepth is zero.
const DefaultMaxDepth = 16

// Decoder decodes SDP data elements. The zero value is ready to use.
type Decoder struct {
	// Names labels UUIDs of decoded records. The zero value falls back to
	// bluing.DefaultUUIDNames.
	Names bluing.UUIDNames
	// MaxDepth is the deepest container nesting accepted.
	MaxDepth int
}

func (d *Decoder) maxDepth() int {
	if d == nil || d.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return d.MaxDepth
}

func (d *Decoder) names() bluing.UUIDNames {
	if d == nil || d.Names.Len() == 0 {
		return bluing.DefaultUUIDNames()
	}
	return d.Names
}

// DecodeElement decodes the data element at the start of b and returns it with
// the number of bytes it occupies. The error is non-nil only when the
// element's own header or extent is unusable. A container whose header is
// sound absorbs failures of its contents into Element.Err.
func (d *Decoder) DecodeElement(b []byte) (Element, int, error) {
	return d.decode(b, 0, 0)
}

// header reads a descriptor byte and its length field. It returns the kind,
// the header length and the data length.
func header(b []byte, base int) (Kind, int, int, error) {
	if len(b) < 1 {
		return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "missing element descriptor")
	}
	k, idx := Kind(b[0]>>3), b[0]&0x07
	if k > KindURL {
		return 0, 0, 0, bluing.NewDecodeError(bluing.Invalid, base, "reserved type descriptor %d", k)
	}
	var hl, dl int
	switch {
	case idx <= 4:
		hl, dl = 1, 1<<idx
		if k == KindNil {
			dl = 0
		}
	case idx == 5:
		if len(b) < 2 {
			return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "missing 8-bit length")
		}
		hl, dl = 2, int(b[1])
	case idx == 6:
		if len(b) < 3 {
			return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "missing 16-bit length")
		}
		hl, dl = 3, int(binary.BigEndian.Uint16(b[1:]))
	default:
		if len(b) < 5 {
			return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "missing 32-bit length")
		}
		l := binary.BigEndian.Uint32(b[1:])
		if uint64(l) > uint64(len(b)) {
			return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "element of %d bytes, have %d", l, len(b)-5)
		}
		hl, dl = 5, int(l)
	}
	if !validSize(k, idx) {
		return 0, 0, 0, bluing.NewDecodeError(bluing.Invalid, base, "size index %d not allowed for %s", idx, k)
	}
	if len(b)-hl < dl {
		return 0, 0, 0, bluing.NewDecodeError(bluing.Truncated, base, "%s of %d bytes, have %d", k, dl, len(b)-hl)
	}
	return k, hl, dl, nil
}

func validSize(k Kind, idx uint8) bool {
	switch k {
	case KindNil, KindBool:
		return idx == 0
	case KindUint, KindInt:
		return idx <= 4
	case KindUUID:
		return idx == 1 || idx == 2 || idx == 4
	}
	// Text, URL, Sequence, Alternative
	return idx >= 5
}

func (d *Decoder) decode(b []byte, base, depth int) (Element, int, error) {
	k, hl, dl, err := header(b, base)
	if err != nil {
		return Element{}, 0, err
	}
	data := b[hl : hl+dl]
	e := Element{Kind: k}
	switch k {
	case KindUint, KindInt:
		e.Width = dl
		if dl == 16 {
			e.Big = append([]byte(nil), data...)
			break
		}
		var v uint64
		for _, c := range data {
			v = v<<8 | uint64(c)
		}
		if k == KindUint {
			e.u = v
		} else {
			// Sign-extend from the element width.
			shift := uint(64 - 8*dl)
			e.i = int64(v<<shift) >> shift
		}
	case KindUUID:
		e.Width = dl
		e.uuid, _ = bluing.UUIDFromBigEndian(data)
	case KindText, KindURL:
		e.data = append([]byte(nil), data...)
	case KindBool:
		e.Width = 1
		if data[0] != 0 {
			e.u = 1
		}
	case KindSequence, KindAlternative:
		if depth >= d.maxDepth() {
			return Element{}, 0, bluing.NewDecodeError(bluing.TooDeep, base, "nesting exceeds %d", d.maxDepth())
		}
		e.Items, e.Err = d.children(data, base+hl, depth+1)
	}
	return e, hl + dl, nil
}

// children decodes the contents of a container. On failure it returns the
// items that preceded the bad one.
func (d *Decoder) children(b []byte, base, depth int) ([]Element, error) {
	var items []Element
	for off := 0; off < len(b); {
		c, n, err := d.decode(b[off:], base+off, depth)
		if err != nil {
			if de, ok := err.(*bluing.DecodeError); ok && de.Kind == bluing.Truncated {
				// The container holds all its bytes, so the child crosses its end.
				de.Kind = bluing.LengthMismatch
			}
			return items, err
		}
		items = append(items, c)
		off += n
	}
	return items, nil
}
