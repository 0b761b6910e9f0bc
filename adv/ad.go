package adv

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
)

// Field is one AD structure. Data excludes the length and type bytes.
type Field struct {
	Type Type
	Data []byte
}

// ParseAD splits advertising or extended inquiry response data into its AD
// structures, in order. A zero length byte ends the significant part; the
// zero padding after it is ignored. A structure overrunning the buffer yields
// a LengthMismatch DecodeError together with the fields parsed before it.
func ParseAD(b []byte) ([]Field, error) {
	var fields []Field
	off := 0
	for len(b) > 0 {
		l := int(b[0])
		if l == 0 {
			break
		}
		if len(b) < 1+l {
			return fields, bluing.NewDecodeError(bluing.LengthMismatch, off, "AD length %d, have %d", l, len(b)-1)
		}
		d := make([]byte, l-1)
		copy(d, b[2:1+l])
		fields = append(fields, Field{Type: Type(b[1]), Data: d})
		b = b[1+l:]
		off += 1 + l
	}
	return fields, nil
}

// ServiceData is the payload of a Service Data AD structure.
type ServiceData struct {
	UUID bluing.UUID
	Data []byte
}

func uuidList(u []bluing.UUID, d []byte, w int) ([]bluing.UUID, error) {
	if len(d)%w != 0 {
		return u, bluing.NewDecodeError(bluing.LengthMismatch, 0, "%d bytes is not a list of %d-byte UUIDs", len(d), w)
	}
	for len(d) > 0 {
		id, _ := bluing.UUIDFromLittleEndian(d[:w])
		u = append(u, id)
		d = d[w:]
	}
	return u, nil
}

func serviceData(d []byte, w int) (ServiceData, error) {
	if len(d) < w {
		return ServiceData{}, bluing.NewDecodeError(bluing.Truncated, 0, "service data shorter than its %d-byte UUID", w)
	}
	id, _ := bluing.UUIDFromLittleEndian(d[:w])
	return ServiceData{UUID: id, Data: append([]byte(nil), d[w:]...)}, nil
}

// decodeField checks that a field's payload has the shape its type calls for.
// Unknown types always pass.
func decodeField(f Field) error {
	var err error
	switch f.Type {
	case TypeFlags, TypeTxPower, TypeLERole:
		if len(f.Data) != 1 {
			err = bluing.NewDecodeError(bluing.LengthMismatch, 0, "want 1 byte, have %d", len(f.Data))
		}
	case TypeSomeUUID16, TypeAllUUID16, TypeServiceSol16:
		_, err = uuidList(nil, f.Data, 2)
	case TypeSomeUUID32, TypeAllUUID32, TypeServiceSol32:
		_, err = uuidList(nil, f.Data, 4)
	case TypeSomeUUID128, TypeAllUUID128, TypeServiceSol128:
		_, err = uuidList(nil, f.Data, 16)
	case TypeServiceData16:
		_, err = serviceData(f.Data, 2)
	case TypeServiceData32:
		_, err = serviceData(f.Data, 4)
	case TypeServiceData128:
		_, err = serviceData(f.Data, 16)
	case TypeAppearance, TypeAdvInterval:
		if len(f.Data) != 2 {
			err = bluing.NewDecodeError(bluing.LengthMismatch, 0, "want 2 bytes, have %d", len(f.Data))
		}
	case TypeClassOfDevice:
		if len(f.Data) != 3 {
			err = bluing.NewDecodeError(bluing.LengthMismatch, 0, "want 3 bytes, have %d", len(f.Data))
		}
	case TypeManufacturerData:
		if len(f.Data) < 2 {
			err = bluing.NewDecodeError(bluing.Truncated, 0, "manufacturer data without company identifier")
		}
	}
	return errors.Wrap(err, f.Type.String())
}

// Fields is an ordered list of AD structures with typed accessors. Each
// accessor decodes on demand and skips malformed structures; Errors lists
// them.
type Fields []Field

// First returns the data of the first field of type t.
func (fs Fields) First(t Type) ([]byte, bool) {
	for _, f := range fs {
		if f.Type == t {
			return f.Data, true
		}
	}
	return nil, false
}

// Flags returns the Flags field.
func (fs Fields) Flags() (Flags, bool) {
	d, ok := fs.First(TypeFlags)
	if !ok || len(d) != 1 {
		return 0, false
	}
	return Flags(d[0]), true
}

// LocalName returns the complete local name, or the shortened one when the
// complete name is absent.
func (fs Fields) LocalName() (string, bool) {
	if d, ok := fs.First(TypeCompleteName); ok {
		return string(d), true
	}
	if d, ok := fs.First(TypeShortName); ok {
		return string(d), true
	}
	return "", false
}

// TxPower returns the advertised transmit power level in dBm.
func (fs Fields) TxPower() (int8, bool) {
	d, ok := fs.First(TypeTxPower)
	if !ok || len(d) != 1 {
		return 0, false
	}
	return int8(d[0]), true
}

// Services returns the advertised service class UUIDs from the complete and
// incomplete lists of every width, in field order.
func (fs Fields) Services() []bluing.UUID {
	return fs.uuids(map[Type]int{
		TypeSomeUUID16: 2, TypeAllUUID16: 2,
		TypeSomeUUID32: 4, TypeAllUUID32: 4,
		TypeSomeUUID128: 16, TypeAllUUID128: 16,
	})
}

// Solicited returns the service solicitation UUIDs.
func (fs Fields) Solicited() []bluing.UUID {
	return fs.uuids(map[Type]int{TypeServiceSol16: 2, TypeServiceSol32: 4, TypeServiceSol128: 16})
}

func (fs Fields) uuids(width map[Type]int) []bluing.UUID {
	var u []bluing.UUID
	for _, f := range fs {
		w, ok := width[f.Type]
		if !ok {
			continue
		}
		if l, err := uuidList(u, f.Data, w); err == nil {
			u = l
		}
	}
	return u
}

// ServiceData returns every well-formed Service Data field.
func (fs Fields) ServiceData() []ServiceData {
	var s []ServiceData
	for _, f := range fs {
		var w int
		switch f.Type {
		case TypeServiceData16:
			w = 2
		case TypeServiceData32:
			w = 4
		case TypeServiceData128:
			w = 16
		default:
			continue
		}
		if sd, err := serviceData(f.Data, w); err == nil {
			s = append(s, sd)
		}
	}
	return s
}

// ManufacturerData returns the company identifier and payload of the first
// Manufacturer Specific Data field.
func (fs Fields) ManufacturerData() (company uint16, data []byte, ok bool) {
	d, ok := fs.First(TypeManufacturerData)
	if !ok || len(d) < 2 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(d), d[2:], true
}

// Appearance returns the GAP appearance value.
func (fs Fields) Appearance() (uint16, bool) {
	d, ok := fs.First(TypeAppearance)
	if !ok || len(d) != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(d), true
}

// ClassOfDevice returns the 24-bit class of device carried in EIR or OOB data.
func (fs Fields) ClassOfDevice() (uint32, bool) {
	d, ok := fs.First(TypeClassOfDevice)
	if !ok || len(d) != 3 {
		return 0, false
	}
	return uint32(d[0]) | uint32(d[1])<<8 | uint32(d[2])<<16, true
}

// Errors returns one error per malformed field. A malformed field never
// hides the well-formed ones.
func (fs Fields) Errors() []error {
	var errs []error
	for _, f := range fs {
		if err := decodeField(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
