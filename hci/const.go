package hci

// PacketType is the H4 indicator byte preceding every HCI packet on the
// socket.
type PacketType uint8

// HCI Packet types
const (
	TypCommandPkt PacketType = 0x01
	TypACLDataPkt PacketType = 0x02
	TypSCODataPkt PacketType = 0x03
	TypEventPkt   PacketType = 0x04
	TypVendorPkt  PacketType = 0xFF
)

// AdvEventType is the event type of an LE advertising report.
type AdvEventType uint8

// Event Type
const (
	AdvInd        AdvEventType = 0x00 // Connectable undirected advertising (ADV_IND).
	AdvDirectInd  AdvEventType = 0x01 // Connectable directed advertising (ADV_DIRECT_IND)
	AdvScanInd    AdvEventType = 0x02 // Scannable undirected advertising (ADV_SCAN_IND)
	AdvNonconnInd AdvEventType = 0x03 // Non connectable undirected advertising (ADV_NONCONN_IND)
	ScanRsp       AdvEventType = 0x04 // Scan Response (SCAN_RSP)
)

var advEventName = map[AdvEventType]string{
	AdvInd:        "ADV_IND",
	AdvDirectInd:  "ADV_DIRECT_IND",
	AdvScanInd:    "ADV_SCAN_IND",
	AdvNonconnInd: "ADV_NONCONN_IND",
	ScanRsp:       "SCAN_RSP",
}

func (t AdvEventType) String() string {
	if n, ok := advEventName[t]; ok {
		return n
	}
	return "reserved"
}

// Connectable reports whether a peer advertising with t accepts connections.
func (t AdvEventType) Connectable() bool { return t == AdvInd || t == AdvDirectInd }

// Scan types for LE Set Scan Parameters.
const (
	ScanPassive uint8 = 0x00
	ScanActive  uint8 = 0x01
)

// GIAC is the General Inquiry Access Code LAP.
const GIAC uint32 = 0x9E8B33

// MaxInquiryLength is the longest inquiry the controller accepts, in units of
// 1.28 s.
const MaxInquiryLength = 0x30

// Link types in Connection Complete.
const (
	LinkSCO  uint8 = 0x00
	LinkACL  uint8 = 0x01
	LinkESCO uint8 = 0x02
)

// Packet types allowed on a new ACL link: DM1 DH1 DM3 DH3 DM5 DH5.
const DefaultACLPacketTypes uint16 = 0xCC18
