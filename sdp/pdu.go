package sdp

import (
	"encoding/binary"
	"fmt"

	"github.com/XC-/bluing"
)

// PSM is the L2CAP protocol/service multiplexer of SDP.
const PSM = 0x0001

// PDU IDs.
const (
	PDUErrorResponse                  = 0x01
	PDUServiceSearchRequest           = 0x02
	PDUServiceSearchResponse          = 0x03
	PDUServiceAttributeRequest        = 0x04
	PDUServiceAttributeResponse       = 0x05
	PDUServiceSearchAttributeRequest  = 0x06
	PDUServiceSearchAttributeResponse = 0x07
)

// MaxContinuationLength is the longest continuation state a server may send.
const MaxContinuationLength = 16

// ErrorCode is the parameter of an SDP_ErrorResponse.
type ErrorCode uint16

const (
	ErrUnsupportedVersion  ErrorCode = 0x0001
	ErrInvalidRecordHandle ErrorCode = 0x0002
	ErrInvalidSyntax       ErrorCode = 0x0003
	ErrInvalidPDUSize      ErrorCode = 0x0004
	ErrInvalidContinuation ErrorCode = 0x0005
	ErrInsufficientRes     ErrorCode = 0x0006
)

var errorCodeName = map[ErrorCode]string{
	ErrUnsupportedVersion:  "Invalid/unsupported SDP version",
	ErrInvalidRecordHandle: "Invalid Service Record Handle",
	ErrInvalidSyntax:       "Invalid request syntax",
	ErrInvalidPDUSize:      "Invalid PDU Size",
	ErrInvalidContinuation: "Invalid Continuation State",
	ErrInsufficientRes:     "Insufficient Resources to satisfy Request",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeName[c]; ok {
		return n
	}
	return fmt.Sprintf("error code 0x%04X", uint16(c))
}

// Err converts an error response into an error that unwraps to
// bluing.ErrTransportRejected.
func (c ErrorCode) Err() error {
	return &bluing.RejectedError{Op: "sdp", Code: uint8(c), Reason: c.String()}
}

// pdu is the common header framing of every SDP PDU.
type pdu struct {
	ID     uint8
	TID    uint16
	Params []byte
}

func (p pdu) marshal() []byte {
	b := make([]byte, 5, 5+len(p.Params))
	b[0] = p.ID
	binary.BigEndian.PutUint16(b[1:], p.TID)
	binary.BigEndian.PutUint16(b[3:], uint16(len(p.Params)))
	return append(b, p.Params...)
}

func parsePDU(b []byte) (pdu, error) {
	c := bluing.NewCursor(b)
	id, err := c.U8()
	if err != nil {
		return pdu{}, err
	}
	tid, err := c.U16BE()
	if err != nil {
		return pdu{}, err
	}
	l, err := c.U16BE()
	if err != nil {
		return pdu{}, err
	}
	if int(l) != c.Remaining() {
		return pdu{}, bluing.NewDecodeError(bluing.LengthMismatch, 3, "parameter length %d, have %d", l, c.Remaining())
	}
	return pdu{ID: id, TID: tid, Params: c.Rest()}, nil
}

// ServiceSearchAttributeRequest is SDP_ServiceSearchAttributeRequest.
type ServiceSearchAttributeRequest struct {
	Pattern      []bluing.UUID
	MaxBytes     uint16
	Attributes   []AttributeRange
	Continuation []byte
}

func (r ServiceSearchAttributeRequest) params() []byte {
	b := Encode(UUIDList(r.Pattern...))
	b = binary.BigEndian.AppendUint16(b, r.MaxBytes)
	b = append(b, Encode(AttributeIDList(r.Attributes...))...)
	b = append(b, byte(len(r.Continuation)))
	return append(b, r.Continuation...)
}

// ServiceSearchAttributeResponse is one fragment of
// SDP_ServiceSearchAttributeResponse.
type ServiceSearchAttributeResponse struct {
	AttributeLists []byte
	Continuation   []byte
}

func parseSearchAttributeResponse(b []byte) (ServiceSearchAttributeResponse, error) {
	c := bluing.NewCursor(b)
	c.Base = 5
	n, err := c.U16BE()
	if err != nil {
		return ServiceSearchAttributeResponse{}, err
	}
	lists, err := c.Bytes(int(n))
	if err != nil {
		return ServiceSearchAttributeResponse{}, err
	}
	cont, err := continuation(c)
	if err != nil {
		return ServiceSearchAttributeResponse{}, err
	}
	return ServiceSearchAttributeResponse{AttributeLists: lists, Continuation: cont}, nil
}

func continuation(c *bluing.Cursor) ([]byte, error) {
	n, err := c.U8()
	if err != nil {
		return nil, err
	}
	if n > MaxContinuationLength {
		return nil, bluing.NewDecodeError(bluing.Invalid, c.Base+c.Offset()-1, "continuation state of %d bytes", n)
	}
	cont, err := c.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	if c.Remaining() != 0 {
		return nil, bluing.NewDecodeError(bluing.LengthMismatch, c.Base+c.Offset(), "%d bytes after continuation state", c.Remaining())
	}
	return append([]byte(nil), cont...), nil
}

// ServiceSearchRequest is SDP_ServiceSearchRequest.
type ServiceSearchRequest struct {
	Pattern      []bluing.UUID
	MaxRecords   uint16
	Continuation []byte
}

func (r ServiceSearchRequest) params() []byte {
	b := Encode(UUIDList(r.Pattern...))
	b = binary.BigEndian.AppendUint16(b, r.MaxRecords)
	b = append(b, byte(len(r.Continuation)))
	return append(b, r.Continuation...)
}

// ServiceSearchResponse is one fragment of SDP_ServiceSearchResponse.
type ServiceSearchResponse struct {
	Total        uint16
	Handles      []uint32
	Continuation []byte
}

func parseSearchResponse(b []byte) (ServiceSearchResponse, error) {
	c := bluing.NewCursor(b)
	c.Base = 5
	var r ServiceSearchResponse
	var err error
	if r.Total, err = c.U16BE(); err != nil {
		return r, err
	}
	n, err := c.U16BE()
	if err != nil {
		return r, err
	}
	for i := 0; i < int(n); i++ {
		h, err := c.U32BE()
		if err != nil {
			return r, err
		}
		r.Handles = append(r.Handles, h)
	}
	r.Continuation, err = continuation(c)
	return r, err
}

func parseErrorResponse(b []byte) error {
	c := bluing.NewCursor(b)
	c.Base = 5
	code, err := c.U16BE()
	if err != nil {
		return err
	}
	return ErrorCode(code).Err()
}
