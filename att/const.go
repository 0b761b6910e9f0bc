// Package att is a client for the Attribute Protocol.
package att

// CID is the L2CAP fixed channel of ATT on LE links.
const CID = 0x0004

// DefaultMTU is the ATT_MTU before any exchange.
const DefaultMTU = 23

// MaxMTU is the largest ATT_MTU offered; attribute values are at most 512
// bytes.
const MaxMTU = 517

// MaxAttributeLength bounds long reads.
const MaxAttributeLength = 512

// ATT opcodes.
const (
	OpError           = 0x01
	OpMtuReq          = 0x02
	OpMtuResp         = 0x03
	OpFindInfoReq     = 0x04
	OpFindInfoResp    = 0x05
	OpFindByTypeReq   = 0x06
	OpFindByTypeResp  = 0x07
	OpReadByTypeReq   = 0x08
	OpReadByTypeResp  = 0x09
	OpReadReq         = 0x0a
	OpReadResp        = 0x0b
	OpReadBlobReq     = 0x0c
	OpReadBlobResp    = 0x0d
	OpReadMultiReq    = 0x0e
	OpReadMultiResp   = 0x0f
	OpReadByGroupReq  = 0x10
	OpReadByGroupResp = 0x11
	OpWriteReq        = 0x12
	OpWriteResp       = 0x13
	OpHandleNotify    = 0x1b
	OpHandleInd       = 0x1d
)

// respFor maps request opcodes to their response opcodes.
var respFor = map[byte]byte{
	OpMtuReq:         OpMtuResp,
	OpFindInfoReq:    OpFindInfoResp,
	OpFindByTypeReq:  OpFindByTypeResp,
	OpReadByTypeReq:  OpReadByTypeResp,
	OpReadReq:        OpReadResp,
	OpReadBlobReq:    OpReadBlobResp,
	OpReadMultiReq:   OpReadMultiResp,
	OpReadByGroupReq: OpReadByGroupResp,
	OpWriteReq:       OpWriteResp,
}

// FindInformation response formats.
const (
	FormatUUID16  = 0x01
	FormatUUID128 = 0x02
)
