package sniff

import (
	"fmt"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
)

// AdvertisingAccessAddress is the access address of every advertising
// channel PDU.
const AdvertisingAccessAddress = 0x8E89BED6

// PDUType is the type of an advertising channel PDU [Vol 6, Part B, 2.3].
type PDUType uint8

const (
	AdvInd        PDUType = 0x0
	AdvDirectInd  PDUType = 0x1
	AdvNonconnInd PDUType = 0x2
	ScanReq       PDUType = 0x3
	ScanRsp       PDUType = 0x4
	ConnectInd    PDUType = 0x5
	AdvScanInd    PDUType = 0x6
)

var pduTypeName = map[PDUType]string{
	AdvInd:        "ADV_IND",
	AdvDirectInd:  "ADV_DIRECT_IND",
	AdvNonconnInd: "ADV_NONCONN_IND",
	ScanReq:       "SCAN_REQ",
	ScanRsp:       "SCAN_RSP",
	ConnectInd:    "CONNECT_IND",
	AdvScanInd:    "ADV_SCAN_IND",
}

func (t PDUType) String() string {
	if n, ok := pduTypeName[t]; ok {
		return n
	}
	return fmt.Sprintf("pdu(0x%X)", uint8(t))
}

// LLData is the link layer data of a CONNECT_IND.
type LLData struct {
	AccessAddress uint32
	CRCInit       uint32
	WinSize       uint8
	WinOffset     uint16
	Interval      uint16
	Latency       uint16
	Timeout       uint16
	ChannelMap    [5]byte
	Hop           uint8
	SCA           uint8
}

// AdvPDU is a decoded advertising channel PDU.
type AdvPDU struct {
	Type   PDUType
	ChSel  bool
	TxAdd  bluing.AddrType
	RxAdd  bluing.AddrType
	Length int

	// AdvA is the advertiser. Peer is TargetA, ScanA or InitA depending on
	// Type.
	AdvA bluing.BDAddr
	Peer bluing.BDAddr

	AdvData   []byte
	Fields    adv.Fields
	FieldsErr error

	LL *LLData
}

func addrType(set bool) bluing.AddrType {
	if set {
		return bluing.AddrRandom
	}
	return bluing.AddrPublic
}

func readAddr(c *bluing.Cursor) (bluing.BDAddr, error) {
	b, err := c.Bytes(6)
	if err != nil {
		return bluing.BDAddr{}, err
	}
	return bluing.AddrFromLittleEndian(b), nil
}

// ParseAdvPDU decodes an advertising channel PDU starting at its header.
// Bytes past the header's length, such as a trailing CRC, are ignored. AD
// structure problems are kept in FieldsErr and do not fail the PDU.
func ParseAdvPDU(b []byte) (*AdvPDU, error) {
	if len(b) < 2 {
		return nil, bluing.NewDecodeError(bluing.Truncated, 0, "advertising PDU header of %d bytes", len(b))
	}
	p := &AdvPDU{
		Type:   PDUType(b[0] & 0x0F),
		ChSel:  b[0]&0x20 != 0,
		TxAdd:  addrType(b[0]&0x40 != 0),
		RxAdd:  addrType(b[0]&0x80 != 0),
		Length: int(b[1]),
	}
	if len(b)-2 < p.Length {
		return nil, bluing.NewDecodeError(bluing.LengthMismatch, 1, "payload length %d, have %d", p.Length, len(b)-2)
	}
	c := bluing.NewCursor(b[2 : 2+p.Length])
	c.Base = 2
	var err error
	switch p.Type {
	case AdvInd, AdvNonconnInd, AdvScanInd, ScanRsp:
		if p.AdvA, err = readAddr(c); err != nil {
			return nil, err
		}
		p.AdvData = append([]byte(nil), c.Rest()...)
		p.Fields, p.FieldsErr = adv.ParseAD(p.AdvData)
	case AdvDirectInd:
		if p.AdvA, err = readAddr(c); err != nil {
			return nil, err
		}
		if p.Peer, err = readAddr(c); err != nil {
			return nil, err
		}
	case ScanReq:
		if p.Peer, err = readAddr(c); err != nil {
			return nil, err
		}
		if p.AdvA, err = readAddr(c); err != nil {
			return nil, err
		}
	case ConnectInd:
		if p.Peer, err = readAddr(c); err != nil {
			return nil, err
		}
		if p.AdvA, err = readAddr(c); err != nil {
			return nil, err
		}
		if p.LL, err = parseLLData(c); err != nil {
			return nil, err
		}
	default:
		return p, bluing.NewDecodeError(bluing.Invalid, 0, "advertising PDU type 0x%X", uint8(p.Type))
	}
	return p, nil
}

func parseLLData(c *bluing.Cursor) (*LLData, error) {
	if c.Remaining() < 22 {
		return nil, bluing.NewDecodeError(bluing.Truncated, c.Base+c.Offset(), "LLData of %d bytes, want 22", c.Remaining())
	}
	ll := &LLData{}
	ll.AccessAddress, _ = c.U32LE()
	crc, _ := c.Bytes(3)
	ll.CRCInit = uint32(crc[0]) | uint32(crc[1])<<8 | uint32(crc[2])<<16
	ll.WinSize, _ = c.U8()
	ll.WinOffset, _ = c.U16LE()
	ll.Interval, _ = c.U16LE()
	ll.Latency, _ = c.U16LE()
	ll.Timeout, _ = c.U16LE()
	chm, _ := c.Bytes(5)
	copy(ll.ChannelMap[:], chm)
	hs, _ := c.U8()
	ll.Hop, ll.SCA = hs&0x1F, hs>>5
	return ll, nil
}
