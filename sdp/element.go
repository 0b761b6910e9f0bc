package sdp

import (
	"fmt"
	"strings"

	"github.com/XC-/bluing"
)

// Kind is the type descriptor of a data element. The values are the wire
// type descriptors.
type Kind uint8

const (
	KindNil         Kind = 0
	KindUint        Kind = 1
	KindInt         Kind = 2
	KindUUID        Kind = 3
	KindText        Kind = 4
	KindBool        Kind = 5
	KindSequence    Kind = 6
	KindAlternative Kind = 7
	KindURL         Kind = 8
)

var kindName = [...]string{
	KindNil:         "nil",
	KindUint:        "uint",
	KindInt:         "int",
	KindUUID:        "uuid",
	KindText:        "text",
	KindBool:        "bool",
	KindSequence:    "seq",
	KindAlternative: "alt",
	KindURL:         "url",
}

func (k Kind) String() string {
	if int(k) < len(kindName) {
		return kindName[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Element is one SDP data element. Kind selects which fields are meaningful:
// Uint and Int carry their byte Width and value (Big holds 16-byte integers,
// most significant byte first), UUID its UUID, Text and URL their raw bytes,
// Sequence and Alternative their Items.
//
// Err is set on a container whose contents could not all be decoded; Items
// then holds the children that preceded the failure.
type Element struct {
	Kind  Kind
	Width int
	Big   []byte
	Items []Element
	Err   error

	u    uint64
	i    int64
	uuid bluing.UUID
	data []byte
}

func Nil() Element { return Element{Kind: KindNil} }

func Uint8(v uint8) Element   { return Element{Kind: KindUint, Width: 1, u: uint64(v)} }
func Uint16(v uint16) Element { return Element{Kind: KindUint, Width: 2, u: uint64(v)} }
func Uint32(v uint32) Element { return Element{Kind: KindUint, Width: 4, u: uint64(v)} }
func Uint64(v uint64) Element { return Element{Kind: KindUint, Width: 8, u: v} }

func Int8(v int8) Element   { return Element{Kind: KindInt, Width: 1, i: int64(v)} }
func Int16(v int16) Element { return Element{Kind: KindInt, Width: 2, i: int64(v)} }
func Int32(v int32) Element { return Element{Kind: KindInt, Width: 4, i: int64(v)} }
func Int64(v int64) Element { return Element{Kind: KindInt, Width: 8, i: v} }

// Uint128 and Int128 take the value most significant byte first.
func Uint128(b [16]byte) Element {
	return Element{Kind: KindUint, Width: 16, Big: append([]byte(nil), b[:]...)}
}

func Int128(b [16]byte) Element {
	return Element{Kind: KindInt, Width: 16, Big: append([]byte(nil), b[:]...)}
}

func UUID(u bluing.UUID) Element { return Element{Kind: KindUUID, Width: u.Len(), uuid: u} }
func UUID16(v uint16) Element    { return UUID(bluing.UUID16(v)) }

func Text(s string) Element { return Element{Kind: KindText, data: append([]byte(nil), s...)} }
func URL(s string) Element  { return Element{Kind: KindURL, data: append([]byte(nil), s...)} }

func Bool(v bool) Element {
	e := Element{Kind: KindBool, Width: 1}
	if v {
		e.u = 1
	}
	return e
}

func Seq(items ...Element) Element { return Element{Kind: KindSequence, Items: items} }
func Alt(items ...Element) Element { return Element{Kind: KindAlternative, Items: items} }

// Uint returns the value of an unsigned integer of up to 8 bytes.
func (e Element) Uint() (uint64, bool) {
	if e.Kind != KindUint || e.Width > 8 {
		return 0, false
	}
	return e.u, true
}

// Int returns the value of a signed integer of up to 8 bytes.
func (e Element) Int() (int64, bool) {
	if e.Kind != KindInt || e.Width > 8 {
		return 0, false
	}
	return e.i, true
}

func (e Element) UUID() (bluing.UUID, bool) {
	if e.Kind != KindUUID {
		return bluing.UUID{}, false
	}
	return e.uuid, true
}

// Text returns the bytes of a Text or URL element as a string. SDP text
// carries no declared encoding; the bytes are passed through.
func (e Element) Text() (string, bool) {
	if e.Kind != KindText && e.Kind != KindURL {
		return "", false
	}
	return string(e.data), true
}

func (e Element) Bool() (bool, bool) {
	if e.Kind != KindBool {
		return false, false
	}
	return e.u != 0, true
}

// Children returns the items of a Sequence or Alternative, nil otherwise.
func (e Element) Children() []Element {
	if e.Kind != KindSequence && e.Kind != KindAlternative {
		return nil
	}
	return e.Items
}

// Errors returns every decode error attached to e or its descendants.
func (e Element) Errors() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, c := range e.Items {
		errs = append(errs, c.Errors()...)
	}
	return errs
}

func (e Element) String() string { return e.Format(bluing.UUIDNames{}) }

// Format renders e on one line, naming UUIDs found in names.
func (e Element) Format(names bluing.UUIDNames) string {
	var sb strings.Builder
	e.format(&sb, names)
	return sb.String()
}

func (e Element) format(sb *strings.Builder, names bluing.UUIDNames) {
	switch e.Kind {
	case KindNil:
		sb.WriteString("nil")
	case KindUint:
		if e.Width == 16 {
			fmt.Fprintf(sb, "uint128(0x%X)", e.Big)
		} else {
			fmt.Fprintf(sb, "uint%d(0x%0*X)", e.Width*8, e.Width*2, e.u)
		}
	case KindInt:
		if e.Width == 16 {
			fmt.Fprintf(sb, "int128(0x%X)", e.Big)
		} else {
			fmt.Fprintf(sb, "int%d(%d)", e.Width*8, e.i)
		}
	case KindUUID:
		sb.WriteString("uuid(")
		sb.WriteString(names.Describe(e.uuid))
		sb.WriteString(")")
	case KindText:
		fmt.Fprintf(sb, "text(%q)", e.data)
	case KindURL:
		fmt.Fprintf(sb, "url(%q)", e.data)
	case KindBool:
		fmt.Fprintf(sb, "bool(%t)", e.u != 0)
	case KindSequence, KindAlternative:
		sb.WriteString(e.Kind.String())
		sb.WriteString("[")
		for i, c := range e.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			c.format(sb, names)
		}
		if e.Err != nil {
			sb.WriteString(" !")
			sb.WriteString(e.Err.Error())
		}
		sb.WriteString("]")
	default:
		sb.WriteString(e.Kind.String())
	}
}
