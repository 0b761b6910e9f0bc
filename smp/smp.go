// Package smp decodes Security Manager pairing capabilities and probes the
// pairing features of a remote device.
package smp

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
)

var logger = log.WithField("pkg", "smp")

// L2CAP fixed channels carrying SMP.
const (
	CIDLE    = 0x0006
	CIDBREDR = 0x0007
)

// SMP command codes.
const (
	CodePairingRequest  = 0x01
	CodePairingResponse = 0x02
	CodePairingFailed   = 0x05
)

type IOCapability uint8

const (
	DisplayOnly     IOCapability = 0x00
	DisplayYesNo    IOCapability = 0x01
	KeyboardOnly    IOCapability = 0x02
	NoInputNoOutput IOCapability = 0x03
	KeyboardDisplay IOCapability = 0x04
)

var ioCapName = map[IOCapability]string{
	DisplayOnly:     "DisplayOnly",
	DisplayYesNo:    "DisplayYesNo",
	KeyboardOnly:    "KeyboardOnly",
	NoInputNoOutput: "NoInputNoOutput",
	KeyboardDisplay: "KeyboardDisplay",
}

func (c IOCapability) String() string {
	if n, ok := ioCapName[c]; ok {
		return n
	}
	return fmt.Sprintf("reserved(0x%02X)", uint8(c))
}

// OOBFlag tells whether out-of-band authentication data is present.
type OOBFlag uint8

const (
	OOBNotPresent OOBFlag = 0x00
	OOBPresent    OOBFlag = 0x01
)

func (f OOBFlag) String() string {
	switch f {
	case OOBNotPresent:
		return "OOB Authentication data not present"
	case OOBPresent:
		return "OOB Authentication data from remote device present"
	}
	return fmt.Sprintf("reserved(0x%02X)", uint8(f))
}

// AuthReq is the authentication requirements bitfield.
type AuthReq uint8

const (
	AuthBonding  AuthReq = 0x01
	AuthMITM     AuthReq = 0x04
	AuthSC       AuthReq = 0x08
	AuthKeypress AuthReq = 0x10
	AuthCT2      AuthReq = 0x20
)

// Bonding returns the two Bonding_Flags bits.
func (a AuthReq) Bonding() uint8 { return uint8(a) & 0x03 }
func (a AuthReq) MITM() bool     { return a&AuthMITM != 0 }
func (a AuthReq) SC() bool       { return a&AuthSC != 0 }
func (a AuthReq) Keypress() bool { return a&AuthKeypress != 0 }
func (a AuthReq) CT2() bool      { return a&AuthCT2 != 0 }

// Names lists the requirements set in a, with RFU bits by position.
func (a AuthReq) Names() []string {
	var s []string
	switch a.Bonding() {
	case 0x00:
		s = append(s, "No Bonding")
	case 0x01:
		s = append(s, "Bonding")
	default:
		s = append(s, fmt.Sprintf("reserved bonding flags 0b%02b", a.Bonding()))
	}
	for _, f := range []struct {
		bit  AuthReq
		name string
	}{{AuthMITM, "MITM"}, {AuthSC, "SC"}, {AuthKeypress, "Keypress"}, {AuthCT2, "CT2"}, {0x40, "RFU bit 6"}, {0x80, "RFU bit 7"}} {
		if a&f.bit != 0 {
			s = append(s, f.name)
		}
	}
	return s
}

func (a AuthReq) String() string { return strings.Join(a.Names(), "|") }

// KeyDist is an initiator or responder key distribution bitfield.
type KeyDist uint8

const (
	KeyEnc     KeyDist = 0x01
	KeyID      KeyDist = 0x02
	KeySign    KeyDist = 0x04
	KeyLink    KeyDist = 0x08
	keyDistAll KeyDist = KeyEnc | KeyID | KeySign | KeyLink
)

func (k KeyDist) Names() []string {
	var s []string
	for i, n := range []string{"EncKey", "IdKey", "SignKey", "LinkKey"} {
		if k&(1<<uint(i)) != 0 {
			s = append(s, n)
		}
	}
	for i := 4; i < 8; i++ {
		if k&(1<<uint(i)) != 0 {
			s = append(s, fmt.Sprintf("RFU bit %d", i))
		}
	}
	return s
}

func (k KeyDist) String() string { return strings.Join(k.Names(), "|") }

// PairingCapability is the body of a Pairing Request or Pairing Response.
// Values outside the assigned ranges are kept as received.
type PairingCapability struct {
	IOCapability     IOCapability
	OOB              OOBFlag
	AuthReq          AuthReq
	MaxEncKeySize    uint8
	InitiatorKeyDist KeyDist
	ResponderKeyDist KeyDist
}

// DefaultRequest asks for everything a peer could offer so its response
// shows the full set of features it supports.
var DefaultRequest = PairingCapability{
	IOCapability:     NoInputNoOutput,
	OOB:              OOBNotPresent,
	AuthReq:          AuthBonding | AuthMITM | AuthSC | AuthCT2,
	MaxEncKeySize:    16,
	InitiatorKeyDist: keyDistAll,
	ResponderKeyDist: keyDistAll,
}

// DecodePairingCapability decodes the 6 bytes following the command code.
func DecodePairingCapability(b []byte) (PairingCapability, error) {
	if len(b) < 6 {
		return PairingCapability{}, bluing.NewDecodeError(bluing.Truncated, len(b), "pairing capability of %d bytes, want 6", len(b))
	}
	if len(b) > 6 {
		return PairingCapability{}, bluing.NewDecodeError(bluing.LengthMismatch, 6, "pairing capability of %d bytes, want 6", len(b))
	}
	return PairingCapability{
		IOCapability:     IOCapability(b[0]),
		OOB:              OOBFlag(b[1]),
		AuthReq:          AuthReq(b[2]),
		MaxEncKeySize:    b[3],
		InitiatorKeyDist: KeyDist(b[4]),
		ResponderKeyDist: KeyDist(b[5]),
	}, nil
}

func (p PairingCapability) Marshal() []byte {
	return []byte{
		byte(p.IOCapability), byte(p.OOB), byte(p.AuthReq),
		p.MaxEncKeySize, byte(p.InitiatorKeyDist), byte(p.ResponderKeyDist),
	}
}

// FailureReason is the parameter of Pairing Failed.
type FailureReason uint8

var failureName = map[FailureReason]string{
	0x01: "Passkey Entry Failed",
	0x02: "OOB Not Available",
	0x03: "Authentication Requirements",
	0x04: "Confirm Value Failed",
	0x05: "Pairing Not Supported",
	0x06: "Encryption Key Size",
	0x07: "Command Not Supported",
	0x08: "Unspecified Reason",
	0x09: "Repeated Attempts",
	0x0A: "Invalid Parameters",
	0x0B: "DHKey Check Failed",
	0x0C: "Numeric Comparison Failed",
	0x0D: "BR/EDR pairing in progress",
	0x0E: "Cross-transport Key Derivation/Generation not allowed",
	0x0F: "Key Rejected",
}

func (r FailureReason) String() string {
	if n, ok := failureName[r]; ok {
		return n
	}
	return fmt.Sprintf("reserved(0x%02X)", uint8(r))
}

// Transport carries one SMP PDU and returns the peer's answer.
type Transport interface {
	Request(ctx context.Context, pdu []byte) ([]byte, error)
}

// Probe sends a Pairing Request built from req and decodes the Pairing
// Response. A Pairing Failed answer is a *bluing.RejectedError carrying the
// reason.
func Probe(ctx context.Context, t Transport, req PairingCapability) (PairingCapability, error) {
	rsp, err := t.Request(ctx, append([]byte{CodePairingRequest}, req.Marshal()...))
	if err != nil {
		return PairingCapability{}, errors.Wrap(err, "pairing request")
	}
	if len(rsp) == 0 {
		return PairingCapability{}, bluing.NewDecodeError(bluing.Truncated, 0, "empty SMP PDU")
	}
	switch rsp[0] {
	case CodePairingResponse:
		p, err := DecodePairingCapability(rsp[1:])
		if err != nil {
			return PairingCapability{}, errors.Wrap(err, "pairing response")
		}
		logger.WithFields(log.Fields{"io": p.IOCapability, "auth": p.AuthReq}).Debug("pairing response")
		return p, nil
	case CodePairingFailed:
		if len(rsp) < 2 {
			return PairingCapability{}, bluing.NewDecodeError(bluing.Truncated, 1, "pairing failed without reason")
		}
		r := FailureReason(rsp[1])
		return PairingCapability{}, &bluing.RejectedError{Op: "pairing", Code: uint8(r), Reason: r.String()}
	}
	return PairingCapability{}, bluing.NewDecodeError(bluing.Invalid, 0, "unexpected SMP code 0x%02X", rsp[0])
}
