package adv

import "errors"

// ErrEIRPacketTooLong is the error returned when an AdvertisingPacket
// or ScanResponsePacket is too long.
var ErrEIRPacketTooLong = errors.New("max packet length is 31")

// Packet crafts advertising, scan response or extended inquiry response
// payloads. Tests use it to synthesize what peers send.
type Packet struct {
	b   []byte
	max int
}

// NewPacket returns an empty advertising packet limited to 31 bytes.
func NewPacket() *Packet { return &Packet{max: MaxEIRPacketLength} }

// NewEIRPacket returns an empty extended inquiry response limited to 240 bytes.
func NewEIRPacket() *Packet { return &Packet{max: MaxExtendedInquiryLength} }

// Bytes returns the packet so far.
func (p *Packet) Bytes() []byte { return p.b }

// Len returns the packet length.
func (p *Packet) Len() int { return len(p.b) }

// AppendField appends an AD structure, or returns ErrEIRPacketTooLong when
// it would not fit.
func (p *Packet) AppendField(typ Type, data []byte) error {
	// A field consists of len, typ, data.
	// Len is 1 byte for typ plus len(data).
	if len(p.b)+2+len(data) > p.max {
		return ErrEIRPacketTooLong
	}
	p.b = append(p.b, byte(len(data)+1), byte(typ))
	p.b = append(p.b, data...)
	return nil
}

// AppendFlags appends a Flags field.
func (p *Packet) AppendFlags(f Flags) error {
	return p.AppendField(TypeFlags, []byte{byte(f)})
}

// AppendName appends the name, truncated to a Shortened Local Name when the
// complete one does not fit.
func (p *Packet) AppendName(name string) *Packet {
	typ := TypeCompleteName
	if room := p.max - len(p.b) - 2; len(name) > room {
		if room <= 0 {
			return p
		}
		name = name[:room]
		typ = TypeShortName
	}
	_ = p.AppendField(typ, []byte(name))
	return p
}

// AppendManufacturerData appends company and data if they fit.
func (p *Packet) AppendManufacturerData(company uint16, data []byte) bool {
	d := append([]byte{uint8(company), uint8(company >> 8)}, data...)
	return p.AppendField(TypeManufacturerData, d) == nil
}
