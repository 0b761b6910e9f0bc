package att

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
)

// ErrorCode is the status of an Error Response [Vol 3, Part F, 3.4.1.1].
type ErrorCode uint8

const (
	ErrInvalidHandle     ErrorCode = 0x01
	ErrReadNotPerm       ErrorCode = 0x02
	ErrWriteNotPerm      ErrorCode = 0x03
	ErrInvalidPDU        ErrorCode = 0x04
	ErrAuthentication    ErrorCode = 0x05
	ErrReqNotSupp        ErrorCode = 0x06
	ErrInvalidOffset     ErrorCode = 0x07
	ErrAuthorization     ErrorCode = 0x08
	ErrPrepQueueFull     ErrorCode = 0x09
	ErrAttrNotFound      ErrorCode = 0x0a
	ErrAttrNotLong       ErrorCode = 0x0b
	ErrInsuffEncrKeySize ErrorCode = 0x0c
	ErrInvalAttrValueLen ErrorCode = 0x0d
	ErrUnlikely          ErrorCode = 0x0e
	ErrInsuffEnc         ErrorCode = 0x0f
	ErrUnsuppGrpType     ErrorCode = 0x10
	ErrInsuffResources   ErrorCode = 0x11
)

var errName = map[ErrorCode]string{
	ErrInvalidHandle:     "invalid handle",
	ErrReadNotPerm:       "read not permitted",
	ErrWriteNotPerm:      "write not permitted",
	ErrInvalidPDU:        "invalid PDU",
	ErrAuthentication:    "insufficient authentication",
	ErrReqNotSupp:        "request not supported",
	ErrInvalidOffset:     "invalid offset",
	ErrAuthorization:     "insufficient authorization",
	ErrPrepQueueFull:     "prepare queue full",
	ErrAttrNotFound:      "attribute not found",
	ErrAttrNotLong:       "attribute not long",
	ErrInsuffEncrKeySize: "insufficient encryption key size",
	ErrInvalAttrValueLen: "invalid attribute value length",
	ErrUnlikely:          "unlikely error",
	ErrInsuffEnc:         "insufficient encryption",
	ErrUnsuppGrpType:     "unsupported group type",
	ErrInsuffResources:   "insufficient resources",
}

func (c ErrorCode) String() string {
	if n, ok := errName[c]; ok {
		return n
	}
	switch {
	case c >= 0x80 && c <= 0x9F:
		return "application error"
	case c >= 0xE0:
		return "profile or service error"
	}
	return "reserved error code"
}

// Error is an Error Response from the server. It unwraps to
// bluing.ErrTransportRejected.
type Error struct {
	Opcode uint8
	Handle uint16
	Code   ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("att: opcode 0x%02x handle 0x%04x: %s (0x%02x)", e.Opcode, e.Handle, e.Code, uint8(e.Code))
}

func (e *Error) Unwrap() error { return bluing.ErrTransportRejected }

// Marshal encodes e as an Error Response PDU.
func (e *Error) Marshal() []byte {
	// little-endian encoding for handle
	return []byte{OpError, e.Opcode, byte(e.Handle), byte(e.Handle >> 8), byte(e.Code)}
}

// Code returns the ATT error code carried by err, if any.
func Code(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is an Attribute Not Found response, which
// ends a discovery range.
func IsNotFound(err error) bool {
	c, ok := Code(err)
	return ok && c == ErrAttrNotFound
}
