package hci

import (
	"bytes"
	"fmt"

	"github.com/XC-/bluing"
)

// EventCode identifies an HCI event.
type EventCode uint8

const (
	EvtInquiryComplete                    EventCode = 0x01
	EvtInquiryResult                      EventCode = 0x02
	EvtConnectionComplete                 EventCode = 0x03
	EvtConnectionRequest                  EventCode = 0x04
	EvtDisconnectionComplete              EventCode = 0x05
	EvtAuthenticationComplete             EventCode = 0x06
	EvtRemoteNameReqComplete              EventCode = 0x07
	EvtEncryptionChange                   EventCode = 0x08
	EvtReadRemoteFeaturesComplete         EventCode = 0x0B
	EvtReadRemoteVersionComplete          EventCode = 0x0C
	EvtCommandComplete                    EventCode = 0x0E
	EvtCommandStatus                      EventCode = 0x0F
	EvtHardwareError                      EventCode = 0x10
	EvtRoleChange                         EventCode = 0x12
	EvtNumberOfCompletedPkts              EventCode = 0x13
	EvtMaxSlotsChange                     EventCode = 0x1B
	EvtInquiryResultWithRSSI              EventCode = 0x22
	EvtReadRemoteExtendedFeaturesComplete EventCode = 0x23
	EvtExtendedInquiryResult              EventCode = 0x2F
	EvtLEMeta                             EventCode = 0x3E
)

var eventName = map[EventCode]string{
	EvtInquiryComplete:                    "Inquiry Complete",
	EvtInquiryResult:                      "Inquiry Result",
	EvtConnectionComplete:                 "Connection Complete",
	EvtConnectionRequest:                  "Connection Request",
	EvtDisconnectionComplete:              "Disconnection Complete",
	EvtAuthenticationComplete:             "Authentication Complete",
	EvtRemoteNameReqComplete:              "Remote Name Request Complete",
	EvtEncryptionChange:                   "Encryption Change",
	EvtReadRemoteFeaturesComplete:         "Read Remote Supported Features Complete",
	EvtReadRemoteVersionComplete:          "Read Remote Version Information Complete",
	EvtCommandComplete:                    "Command Complete",
	EvtCommandStatus:                      "Command Status",
	EvtHardwareError:                      "Hardware Error",
	EvtRoleChange:                         "Role Change",
	EvtNumberOfCompletedPkts:              "Number Of Completed Packets",
	EvtMaxSlotsChange:                     "Max Slots Change",
	EvtInquiryResultWithRSSI:              "Inquiry Result with RSSI",
	EvtReadRemoteExtendedFeaturesComplete: "Read Remote Extended Features Complete",
	EvtExtendedInquiryResult:              "Extended Inquiry Result",
	EvtLEMeta:                             "LE Meta",
}

func (e EventCode) String() string {
	if n, ok := eventName[e]; ok {
		return n
	}
	return fmt.Sprintf("event(0x%02X)", uint8(e))
}

// LEEventCode is the subevent code of an LE Meta event.
type LEEventCode uint8

const (
	LEConnectionComplete         LEEventCode = 0x01
	LEAdvertisingReport          LEEventCode = 0x02
	LEConnectionUpdateComplete   LEEventCode = 0x03
	LEReadRemoteFeaturesComplete LEEventCode = 0x04
	LELTKRequest                 LEEventCode = 0x05
	LERemoteConnParameterRequest LEEventCode = 0x06
	LEEnhancedConnectionComplete LEEventCode = 0x0A
	LEExtendedAdvertisingReport  LEEventCode = 0x0D
)

var leEventName = map[LEEventCode]string{
	LEConnectionComplete:         "LE Connection Complete",
	LEAdvertisingReport:          "LE Advertising Report",
	LEConnectionUpdateComplete:   "LE Connection Update Complete",
	LEReadRemoteFeaturesComplete: "LE Read Remote Features Complete",
	LELTKRequest:                 "LE LTK Request",
	LERemoteConnParameterRequest: "LE Remote Connection Parameter Request",
	LEEnhancedConnectionComplete: "LE Enhanced Connection Complete",
	LEExtendedAdvertisingReport:  "LE Extended Advertising Report",
}

func (e LEEventCode) String() string {
	if n, ok := leEventName[e]; ok {
		return n
	}
	return fmt.Sprintf("le-subevent(0x%02X)", uint8(e))
}

// Event is a decoded HCI event. The set of implementations is closed;
// consumers switch on the concrete type.
type Event interface {
	Code() EventCode
	event()
}

// InquiryMode tells which of the three inquiry result events produced an
// InquiryResult.
type InquiryMode uint8

const (
	InquiryStandard InquiryMode = iota
	InquiryWithRSSI
	InquiryExtended
)

// InquiryResponse is one device reported by an inquiry result event.
type InquiryResponse struct {
	Addr                   bluing.BDAddr
	PageScanRepetitionMode uint8
	ClassOfDevice          uint32
	ClockOffset            uint16
	RSSI                   int8
	HasRSSI                bool
	EIR                    []byte
}

type InquiryComplete struct{ Status Status }

type InquiryResult struct {
	Mode      InquiryMode
	Responses []InquiryResponse
}

type RemoteNameRequestComplete struct {
	Status Status
	Addr   bluing.BDAddr
	Name   string
}

type ConnectionComplete struct {
	Status           Status
	ConnectionHandle uint16
	Addr             bluing.BDAddr
	LinkType         uint8
	Encryption       bool
}

type DisconnectionComplete struct {
	Status           Status
	ConnectionHandle uint16
	Reason           uint8
}

type ReadRemoteFeaturesComplete struct {
	Status           Status
	ConnectionHandle uint16
	Features         [8]byte
}

type ReadRemoteExtendedFeaturesComplete struct {
	Status           Status
	ConnectionHandle uint16
	Page             uint8
	MaxPage          uint8
	Features         [8]byte
}

type CommandComplete struct {
	NumHCICommandPackets uint8
	CommandOpcode        Opcode
	ReturnParameters     []byte
}

type CommandStatus struct {
	Status               Status
	NumHCICommandPackets uint8
	CommandOpcode        Opcode
}

// AdvReport is one report of an LE Advertising Report event.
type AdvReport struct {
	EventType AdvEventType
	AddrType  bluing.AddrType
	Addr      bluing.BDAddr
	Data      []byte
	RSSI      int8
}

type LEAdvertisingReportEvent struct{ Reports []AdvReport }

type LEConnectionCompleteEvent struct {
	Status              Status
	ConnectionHandle    uint16
	Role                uint8
	PeerAddressType     bluing.AddrType
	PeerAddress         bluing.BDAddr
	ConnInterval        uint16
	ConnLatency         uint16
	SupervisionTimeout  uint16
	MasterClockAccuracy uint8
}

type LEReadRemoteFeaturesCompleteEvent struct {
	Status           Status
	ConnectionHandle uint16
	Features         [8]byte
}

// Unknown carries any event this package does not decode.
type Unknown struct {
	EventCode EventCode
	Subevent  LEEventCode // LE Meta only
	Params    []byte
}

func (InquiryComplete) Code() EventCode { return EvtInquiryComplete }
func (e InquiryResult) Code() EventCode {
	switch e.Mode {
	case InquiryWithRSSI:
		return EvtInquiryResultWithRSSI
	case InquiryExtended:
		return EvtExtendedInquiryResult
	}
	return EvtInquiryResult
}
func (RemoteNameRequestComplete) Code() EventCode         { return EvtRemoteNameReqComplete }
func (ConnectionComplete) Code() EventCode                { return EvtConnectionComplete }
func (DisconnectionComplete) Code() EventCode             { return EvtDisconnectionComplete }
func (ReadRemoteFeaturesComplete) Code() EventCode        { return EvtReadRemoteFeaturesComplete }
func (CommandComplete) Code() EventCode                   { return EvtCommandComplete }
func (CommandStatus) Code() EventCode                     { return EvtCommandStatus }
func (LEAdvertisingReportEvent) Code() EventCode          { return EvtLEMeta }
func (LEConnectionCompleteEvent) Code() EventCode         { return EvtLEMeta }
func (LEReadRemoteFeaturesCompleteEvent) Code() EventCode { return EvtLEMeta }
func (e Unknown) Code() EventCode                         { return e.EventCode }

func (ReadRemoteExtendedFeaturesComplete) Code() EventCode {
	return EvtReadRemoteExtendedFeaturesComplete
}

func (InquiryComplete) event()                    {}
func (InquiryResult) event()                      {}
func (RemoteNameRequestComplete) event()          {}
func (ConnectionComplete) event()                 {}
func (DisconnectionComplete) event()              {}
func (ReadRemoteFeaturesComplete) event()         {}
func (ReadRemoteExtendedFeaturesComplete) event() {}
func (CommandComplete) event()                    {}
func (CommandStatus) event()                      {}
func (LEAdvertisingReportEvent) event()           {}
func (LEConnectionCompleteEvent) event()          {}
func (LEReadRemoteFeaturesCompleteEvent) event()  {}
func (Unknown) event()                            {}

// ParseEvent decodes an event packet starting at the event code, without the
// H4 packet type byte. Events it does not know become Unknown.
func ParseEvent(b []byte) (Event, error) {
	if len(b) < 2 {
		return nil, bluing.NewDecodeError(bluing.Truncated, 0, "malformed event header")
	}
	code, plen := EventCode(b[0]), int(b[1])
	if len(b) != 2+plen {
		return nil, bluing.NewDecodeError(bluing.LengthMismatch, 1, "%s: plen %d, have %d", code, plen, len(b)-2)
	}
	c := bluing.NewCursor(b[2:])
	c.Base = 2

	switch code {
	case EvtInquiryComplete:
		s, err := c.U8()
		return InquiryComplete{Status: Status(s)}, err
	case EvtInquiryResult:
		return parseInquiryResult(c, InquiryStandard)
	case EvtInquiryResultWithRSSI:
		return parseInquiryResult(c, InquiryWithRSSI)
	case EvtExtendedInquiryResult:
		return parseInquiryResult(c, InquiryExtended)
	case EvtRemoteNameReqComplete:
		return parseRemoteName(c)
	case EvtConnectionComplete:
		return parseConnectionComplete(c)
	case EvtDisconnectionComplete:
		var e DisconnectionComplete
		err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), u8(&e.Reason))
		return e, err
	case EvtReadRemoteFeaturesComplete:
		var e ReadRemoteFeaturesComplete
		err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), arr8(&e.Features))
		return e, err
	case EvtReadRemoteExtendedFeaturesComplete:
		var e ReadRemoteExtendedFeaturesComplete
		err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), u8(&e.Page), u8(&e.MaxPage), arr8(&e.Features))
		return e, err
	case EvtCommandComplete:
		var e CommandComplete
		var op uint16
		if err := readAll(c, u8(&e.NumHCICommandPackets), u16(&op)); err != nil {
			return nil, err
		}
		e.CommandOpcode = Opcode(op)
		e.ReturnParameters = append([]byte(nil), c.Rest()...)
		return e, nil
	case EvtCommandStatus:
		var e CommandStatus
		var op uint16
		err := readAll(c, u8s(&e.Status), u8(&e.NumHCICommandPackets), u16(&op))
		e.CommandOpcode = Opcode(op)
		return e, err
	case EvtLEMeta:
		return parseLEMeta(c)
	}
	return Unknown{EventCode: code, Params: append([]byte(nil), b[2:]...)}, nil
}

func parseInquiryResult(c *bluing.Cursor, mode InquiryMode) (Event, error) {
	n, err := c.U8()
	if err != nil {
		return nil, err
	}
	e := InquiryResult{Mode: mode, Responses: make([]InquiryResponse, 0, n)}
	for i := 0; i < int(n); i++ {
		var r InquiryResponse
		var addr []byte
		var cod []byte
		var rsvd uint8
		steps := []func(*bluing.Cursor) error{
			bytesN(&addr, 6),
			u8(&r.PageScanRepetitionMode),
			u8(&rsvd),
		}
		if mode == InquiryStandard {
			// Page_Scan_Period_Mode, reserved since 1.2
			steps = append(steps, u8(&rsvd))
		}
		steps = append(steps, bytesN(&cod, 3), u16(&r.ClockOffset))
		if mode != InquiryStandard {
			steps = append(steps, i8(&r.RSSI))
		}
		if err := readAll(c, steps...); err != nil {
			return e, err
		}
		r.Addr = bluing.AddrFromLittleEndian(addr)
		r.ClassOfDevice = uint32(cod[0]) | uint32(cod[1])<<8 | uint32(cod[2])<<16
		r.HasRSSI = mode != InquiryStandard
		if mode == InquiryExtended {
			r.EIR = append([]byte(nil), c.Rest()...)
			_ = c.Skip(c.Remaining())
		}
		e.Responses = append(e.Responses, r)
	}
	return e, nil
}

func parseRemoteName(c *bluing.Cursor) (Event, error) {
	var e RemoteNameRequestComplete
	var addr []byte
	if err := readAll(c, u8s(&e.Status), bytesN(&addr, 6)); err != nil {
		return nil, err
	}
	e.Addr = bluing.AddrFromLittleEndian(addr)
	name := c.Rest()
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	e.Name = string(name)
	return e, nil
}

func parseConnectionComplete(c *bluing.Cursor) (Event, error) {
	var e ConnectionComplete
	var addr []byte
	var enc uint8
	err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), bytesN(&addr, 6), u8(&e.LinkType), u8(&enc))
	if err != nil {
		return nil, err
	}
	e.Addr = bluing.AddrFromLittleEndian(addr)
	e.Encryption = enc != 0
	return e, nil
}

func parseLEMeta(c *bluing.Cursor) (Event, error) {
	sub, err := c.U8()
	if err != nil {
		return nil, err
	}
	switch LEEventCode(sub) {
	case LEConnectionComplete:
		var e LEConnectionCompleteEvent
		var addr []byte
		var typ uint8
		err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), u8(&e.Role), u8(&typ), bytesN(&addr, 6),
			u16(&e.ConnInterval), u16(&e.ConnLatency), u16(&e.SupervisionTimeout), u8(&e.MasterClockAccuracy))
		if err != nil {
			return nil, err
		}
		e.PeerAddressType = bluing.AddrType(typ)
		e.PeerAddress = bluing.AddrFromLittleEndian(addr)
		return e, nil
	case LEAdvertisingReport:
		return parseAdvReports(c)
	case LEReadRemoteFeaturesComplete:
		var e LEReadRemoteFeaturesCompleteEvent
		err := readAll(c, u8s(&e.Status), u16(&e.ConnectionHandle), arr8(&e.Features))
		return e, err
	}
	return Unknown{EventCode: EvtLEMeta, Subevent: LEEventCode(sub), Params: append([]byte(nil), c.Rest()...)}, nil
}

// parseAdvReports reads the reports one after another, the layout BlueZ and
// shipping controllers use.
func parseAdvReports(c *bluing.Cursor) (Event, error) {
	n, err := c.U8()
	if err != nil {
		return nil, err
	}
	e := LEAdvertisingReportEvent{Reports: make([]AdvReport, 0, n)}
	for i := 0; i < int(n); i++ {
		var r AdvReport
		var et, typ, l uint8
		var addr, data []byte
		if err := readAll(c, u8(&et), u8(&typ), bytesN(&addr, 6), u8(&l)); err != nil {
			return e, err
		}
		if err := readAll(c, bytesN(&data, int(l)), i8(&r.RSSI)); err != nil {
			return e, err
		}
		r.EventType = AdvEventType(et)
		r.AddrType = bluing.AddrType(typ)
		r.Addr = bluing.AddrFromLittleEndian(addr)
		r.Data = append([]byte(nil), data...)
		e.Reports = append(e.Reports, r)
	}
	return e, nil
}

func readAll(c *bluing.Cursor, steps ...func(*bluing.Cursor) error) error {
	for _, s := range steps {
		if err := s(c); err != nil {
			return err
		}
	}
	return nil
}

func u8(v *uint8) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) (err error) { *v, err = c.U8(); return }
}

func u8s(v *Status) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) error {
		b, err := c.U8()
		*v = Status(b)
		return err
	}
}

func i8(v *int8) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) error {
		b, err := c.U8()
		*v = int8(b)
		return err
	}
}

func u16(v *uint16) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) (err error) { *v, err = c.U16LE(); return }
}

func bytesN(v *[]byte, n int) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) (err error) { *v, err = c.Bytes(n); return }
}

func arr8(v *[8]byte) func(*bluing.Cursor) error {
	return func(c *bluing.Cursor) error {
		b, err := c.Bytes(8)
		if err == nil {
			copy(v[:], b)
		}
		return err
	}
}
