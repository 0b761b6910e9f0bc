package hci

import (
	"encoding/binary"
	"fmt"

	"github.com/XC-/bluing"
)

// Command is the parameter block of an HCI command.
type Command interface {
	Opcode() Opcode
	Marshal() []byte
}

// MarshalPacket frames c as an H4 command packet:
// type, opcode (LE), parameter length, parameters.
func MarshalPacket(c Command) []byte {
	p := c.Marshal()
	op := c.Opcode()
	b := make([]byte, 4, 4+len(p))
	b[0] = byte(TypCommandPkt)
	b[1], b[2] = byte(op), byte(op>>8)
	b[3] = byte(len(p))
	return append(b, p...)
}

const (
	linkCtl     = 0x01
	linkPolicy  = 0x02
	hostCtl     = 0x03
	infoParam   = 0x04
	statusParam = 0x05
	leCtl       = 0x08
	vendorCmd   = 0x3F
)

// Opcode packs the 6-bit OGF and the 10-bit OCF.
type Opcode uint16

func (op Opcode) OGF() uint8  { return uint8((uint16(op) & 0xFC00) >> 10) }
func (op Opcode) OCF() uint16 { return uint16(op) & 0x03FF }

func (op Opcode) String() string {
	if n, ok := opName[op]; ok {
		return n
	}
	return fmt.Sprintf("opcode(0x%02X|0x%04X)", op.OGF(), op.OCF())
}

const (
	OpInquiry               = Opcode(linkCtl<<10 | 0x0001)
	OpInquiryCancel         = Opcode(linkCtl<<10 | 0x0002)
	OpPeriodicInquiry       = Opcode(linkCtl<<10 | 0x0003)
	OpExitPeriodicInquiry   = Opcode(linkCtl<<10 | 0x0004)
	OpCreateConn            = Opcode(linkCtl<<10 | 0x0005)
	OpDisconnect            = Opcode(linkCtl<<10 | 0x0006)
	OpCreateConnCancel      = Opcode(linkCtl<<10 | 0x0008)
	OpRemoteNameReq         = Opcode(linkCtl<<10 | 0x0019)
	OpRemoteNameReqCancel   = Opcode(linkCtl<<10 | 0x001A)
	OpReadRemoteFeatures    = Opcode(linkCtl<<10 | 0x001B)
	OpReadRemoteExtFeatures = Opcode(linkCtl<<10 | 0x001C)
	OpReadRemoteVersion     = Opcode(linkCtl<<10 | 0x001D)

	OpSetEventMask      = Opcode(hostCtl<<10 | 0x0001)
	OpReset             = Opcode(hostCtl<<10 | 0x0003)
	OpSetEventFilter    = Opcode(hostCtl<<10 | 0x0005)
	OpReadScanEnable    = Opcode(hostCtl<<10 | 0x0019)
	OpWriteScanEnable   = Opcode(hostCtl<<10 | 0x001A)
	OpWriteInquiryMode  = Opcode(hostCtl<<10 | 0x0045)
	OpWriteLEHostSupp   = Opcode(hostCtl<<10 | 0x006D)
	OpReadLocalVersion  = Opcode(infoParam<<10 | 0x0001)
	OpReadLocalFeatures = Opcode(infoParam<<10 | 0x0003)
	OpReadBDAddr        = Opcode(infoParam<<10 | 0x0009)
	OpReadRSSI          = Opcode(statusParam<<10 | 0x0005)

	OpLESetEventMask         = Opcode(leCtl<<10 | 0x0001)
	OpLESetAdvertiseEnable   = Opcode(leCtl<<10 | 0x000a)
	OpLESetScanParameters    = Opcode(leCtl<<10 | 0x000b)
	OpLESetScanEnable        = Opcode(leCtl<<10 | 0x000c)
	OpLECreateConn           = Opcode(leCtl<<10 | 0x000d)
	OpLECreateConnCancel     = Opcode(leCtl<<10 | 0x000e)
	OpLEReadRemoteFeatures   = Opcode(leCtl<<10 | 0x0016)
	OpLEReadSupportedStates  = Opcode(leCtl<<10 | 0x001c)
	OpLEReadLocalSuppFeature = Opcode(leCtl<<10 | 0x0003)
)

var opName = map[Opcode]string{
	OpInquiry:               "Inquiry",
	OpInquiryCancel:         "Inquiry Cancel",
	OpPeriodicInquiry:       "Periodic Inquiry Mode",
	OpExitPeriodicInquiry:   "Exit Periodic Inquiry Mode",
	OpCreateConn:            "Create Connection",
	OpDisconnect:            "Disconnect",
	OpCreateConnCancel:      "Create Connection Cancel",
	OpRemoteNameReq:         "Remote Name Request",
	OpRemoteNameReqCancel:   "Remote Name Request Cancel",
	OpReadRemoteFeatures:    "Read Remote Supported Features",
	OpReadRemoteExtFeatures: "Read Remote Extended Features",
	OpReadRemoteVersion:     "Read Remote Version Information",

	OpSetEventMask:      "Set Event Mask",
	OpReset:             "Reset",
	OpSetEventFilter:    "Set Event Filter",
	OpReadScanEnable:    "Read Scan Enable",
	OpWriteScanEnable:   "Write Scan Enable",
	OpWriteInquiryMode:  "Write Inquiry Mode",
	OpWriteLEHostSupp:   "Write LE Host Supported",
	OpReadLocalVersion:  "Read Local Version Information",
	OpReadLocalFeatures: "Read Local Supported Features",
	OpReadBDAddr:        "Read BD_ADDR",
	OpReadRSSI:          "Read RSSI",

	OpLESetEventMask:         "LE Set Event Mask",
	OpLESetAdvertiseEnable:   "LE Set Advertising Enable",
	OpLESetScanParameters:    "LE Set Scan Parameters",
	OpLESetScanEnable:        "LE Set Scan Enable",
	OpLECreateConn:           "LE Create Connection",
	OpLECreateConnCancel:     "LE Create Connection Cancel",
	OpLEReadRemoteFeatures:   "LE Read Remote Features",
	OpLEReadSupportedStates:  "LE Read Supported States",
	OpLEReadLocalSuppFeature: "LE Read Local Supported Features",
}

type order struct{ binary.ByteOrder }

var o = order{binary.LittleEndian}

func (o order) PutMAC(b []byte, a bluing.BDAddr) {
	m := a.LittleEndian()
	copy(b, m[:])
}

func (o order) PutUint24(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Link Control Commands

// Inquiry (0x0001)
type Inquiry struct {
	LAP          uint32 // 24 bits; GIAC unless set
	Length       uint8  // units of 1.28 s, 0x01-0x30
	NumResponses uint8  // 0 = unlimited
}

func (c Inquiry) Opcode() Opcode { return OpInquiry }
func (c Inquiry) Marshal() []byte {
	b := make([]byte, 5)
	lap := c.LAP
	if lap == 0 {
		lap = GIAC
	}
	o.PutUint24(b, lap)
	b[3], b[4] = c.Length, c.NumResponses
	return b
}

// Inquiry Cancel (0x0002)
type InquiryCancel struct{}

func (c InquiryCancel) Opcode() Opcode  { return OpInquiryCancel }
func (c InquiryCancel) Marshal() []byte { return nil }

// Exit Periodic Inquiry Mode (0x0004)
type ExitPeriodicInquiry struct{}

func (c ExitPeriodicInquiry) Opcode() Opcode  { return OpExitPeriodicInquiry }
func (c ExitPeriodicInquiry) Marshal() []byte { return nil }

// Create Connection (0x0005)
type CreateConnection struct {
	Addr                   bluing.BDAddr
	PacketType             uint16
	PageScanRepetitionMode uint8
	ClockOffset            uint16
	AllowRoleSwitch        bool
}

func (c CreateConnection) Opcode() Opcode { return OpCreateConn }
func (c CreateConnection) Marshal() []byte {
	b := make([]byte, 13)
	o.PutMAC(b[0:], c.Addr)
	pt := c.PacketType
	if pt == 0 {
		pt = DefaultACLPacketTypes
	}
	o.PutUint16(b[6:], pt)
	b[8] = c.PageScanRepetitionMode
	b[9] = 0 // reserved
	o.PutUint16(b[10:], c.ClockOffset)
	b[12] = boolByte(c.AllowRoleSwitch)
	return b
}

// Disconnect (0x0006)
type Disconnect struct {
	ConnectionHandle uint16
	Reason           uint8
}

func (c Disconnect) Opcode() Opcode { return OpDisconnect }
func (c Disconnect) Marshal() []byte {
	return []byte{byte(c.ConnectionHandle), byte(c.ConnectionHandle >> 8), c.Reason}
}

// Create Connection Cancel (0x0008)
type CreateConnectionCancel struct{ Addr bluing.BDAddr }

func (c CreateConnectionCancel) Opcode() Opcode { return OpCreateConnCancel }
func (c CreateConnectionCancel) Marshal() []byte {
	b := make([]byte, 6)
	o.PutMAC(b, c.Addr)
	return b
}

// Remote Name Request (0x0019)
type RemoteNameRequest struct {
	Addr                   bluing.BDAddr
	PageScanRepetitionMode uint8
	ClockOffset            uint16
}

func (c RemoteNameRequest) Opcode() Opcode { return OpRemoteNameReq }
func (c RemoteNameRequest) Marshal() []byte {
	b := make([]byte, 10)
	o.PutMAC(b[0:], c.Addr)
	b[6] = c.PageScanRepetitionMode
	b[7] = 0 // reserved
	o.PutUint16(b[8:], c.ClockOffset)
	return b
}

// Remote Name Request Cancel (0x001A)
type RemoteNameRequestCancel struct{ Addr bluing.BDAddr }

func (c RemoteNameRequestCancel) Opcode() Opcode { return OpRemoteNameReqCancel }
func (c RemoteNameRequestCancel) Marshal() []byte {
	b := make([]byte, 6)
	o.PutMAC(b, c.Addr)
	return b
}

// Read Remote Supported Features (0x001B)
type ReadRemoteSupportedFeatures struct{ ConnectionHandle uint16 }

func (c ReadRemoteSupportedFeatures) Opcode() Opcode { return OpReadRemoteFeatures }
func (c ReadRemoteSupportedFeatures) Marshal() []byte {
	return []byte{byte(c.ConnectionHandle), byte(c.ConnectionHandle >> 8)}
}

// Read Remote Extended Features (0x001C)
type ReadRemoteExtendedFeatures struct {
	ConnectionHandle uint16
	Page             uint8
}

func (c ReadRemoteExtendedFeatures) Opcode() Opcode { return OpReadRemoteExtFeatures }
func (c ReadRemoteExtendedFeatures) Marshal() []byte {
	return []byte{byte(c.ConnectionHandle), byte(c.ConnectionHandle >> 8), c.Page}
}

// Host Control Commands

// Set Event Mask (0x0001)
type SetEventMask struct{ EventMask uint64 }

func (c SetEventMask) Opcode() Opcode { return OpSetEventMask }
func (c SetEventMask) Marshal() []byte {
	b := make([]byte, 8)
	o.PutUint64(b, c.EventMask)
	return b
}

// Reset (0x0003)
type Reset struct{}

func (c Reset) Opcode() Opcode  { return OpReset }
func (c Reset) Marshal() []byte { return nil }

// Set Event Filter (0x0005). Only filter type 0x00, clear all filters, is
// supported; it takes no further parameters.
type SetEventFilter struct{ FilterType uint8 }

func (c SetEventFilter) Opcode() Opcode  { return OpSetEventFilter }
func (c SetEventFilter) Marshal() []byte { return []byte{c.FilterType} }

// Write Scan Enable (0x001A)
type WriteScanEnable struct{ ScanEnable uint8 }

func (c WriteScanEnable) Opcode() Opcode  { return OpWriteScanEnable }
func (c WriteScanEnable) Marshal() []byte { return []byte{c.ScanEnable} }

// Write Inquiry Mode (0x0045): 0 standard, 1 with RSSI, 2 with RSSI or EIR.
type WriteInquiryMode struct{ InquiryMode uint8 }

func (c WriteInquiryMode) Opcode() Opcode  { return OpWriteInquiryMode }
func (c WriteInquiryMode) Marshal() []byte { return []byte{c.InquiryMode} }

// Read BD_ADDR (0x0009)
type ReadBDAddr struct{}

func (c ReadBDAddr) Opcode() Opcode  { return OpReadBDAddr }
func (c ReadBDAddr) Marshal() []byte { return nil }

// LE Controller Commands

// LE Set Event Mask (0x0001)
type LESetEventMask struct{ LEEventMask uint64 }

func (c LESetEventMask) Opcode() Opcode { return OpLESetEventMask }
func (c LESetEventMask) Marshal() []byte {
	b := make([]byte, 8)
	o.PutUint64(b, c.LEEventMask)
	return b
}

// LE Set Scan Parameters (0x000B)
type LESetScanParameters struct {
	LEScanType           uint8
	LEScanInterval       uint16
	LEScanWindow         uint16
	OwnAddressType       uint8
	ScanningFilterPolicy uint8
}

func (c LESetScanParameters) Opcode() Opcode { return OpLESetScanParameters }
func (c LESetScanParameters) Marshal() []byte {
	b := make([]byte, 7)
	b[0] = c.LEScanType
	o.PutUint16(b[1:], c.LEScanInterval)
	o.PutUint16(b[3:], c.LEScanWindow)
	b[5] = c.OwnAddressType
	b[6] = c.ScanningFilterPolicy
	return b
}

// LE Set Advertising Enable (0x000A)
type LESetAdvertiseEnable struct{ AdvertisingEnable bool }

func (c LESetAdvertiseEnable) Opcode() Opcode  { return OpLESetAdvertiseEnable }
func (c LESetAdvertiseEnable) Marshal() []byte { return []byte{boolByte(c.AdvertisingEnable)} }

// LE Set Scan Enable (0x000C)
type LESetScanEnable struct {
	LEScanEnable     bool
	FilterDuplicates bool
}

func (c LESetScanEnable) Opcode() Opcode { return OpLESetScanEnable }
func (c LESetScanEnable) Marshal() []byte {
	return []byte{boolByte(c.LEScanEnable), boolByte(c.FilterDuplicates)}
}

// LE Create Connection (0x000D)
type LECreateConnection struct {
	LEScanInterval        uint16
	LEScanWindow          uint16
	InitiatorFilterPolicy uint8
	PeerAddressType       bluing.AddrType
	PeerAddress           bluing.BDAddr
	OwnAddressType        uint8
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

// NewLECreateConnection fills the timing parameters BlueZ uses for a
// central-initiated connection.
func NewLECreateConnection(addr bluing.BDAddr, typ bluing.AddrType) LECreateConnection {
	return LECreateConnection{
		LEScanInterval:     0x0060,
		LEScanWindow:       0x0060,
		PeerAddressType:    typ,
		PeerAddress:        addr,
		ConnIntervalMin:    0x0018,
		ConnIntervalMax:    0x0028,
		ConnLatency:        0,
		SupervisionTimeout: 0x002a,
	}
}

func (c LECreateConnection) Opcode() Opcode { return OpLECreateConn }
func (c LECreateConnection) Marshal() []byte {
	b := make([]byte, 25)
	o.PutUint16(b[0:], c.LEScanInterval)
	o.PutUint16(b[2:], c.LEScanWindow)
	b[4] = c.InitiatorFilterPolicy
	b[5] = uint8(c.PeerAddressType)
	o.PutMAC(b[6:], c.PeerAddress)
	b[12] = c.OwnAddressType
	o.PutUint16(b[13:], c.ConnIntervalMin)
	o.PutUint16(b[15:], c.ConnIntervalMax)
	o.PutUint16(b[17:], c.ConnLatency)
	o.PutUint16(b[19:], c.SupervisionTimeout)
	o.PutUint16(b[21:], c.MinimumCELength)
	o.PutUint16(b[23:], c.MaximumCELength)
	return b
}

// LE Create Connection Cancel (0x000E)
type LECreateConnectionCancel struct{}

func (c LECreateConnectionCancel) Opcode() Opcode  { return OpLECreateConnCancel }
func (c LECreateConnectionCancel) Marshal() []byte { return nil }

// LE Read Remote Features (0x0016)
type LEReadRemoteFeatures struct{ ConnectionHandle uint16 }

func (c LEReadRemoteFeatures) Opcode() Opcode { return OpLEReadRemoteFeatures }
func (c LEReadRemoteFeatures) Marshal() []byte {
	return []byte{byte(c.ConnectionHandle), byte(c.ConnectionHandle >> 8)}
}
