package hci

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
)

// Status is a controller error code, returned in Command Complete, Command
// Status and most completion events.
type Status uint8

const (
	StatusSuccess                  Status = 0x00
	StatusUnknownCommand           Status = 0x01
	StatusUnknownConnection        Status = 0x02
	StatusHardwareFailure          Status = 0x03
	StatusPageTimeout              Status = 0x04
	StatusAuthenticationFailure    Status = 0x05
	StatusKeyMissing               Status = 0x06
	StatusMemoryExceeded           Status = 0x07
	StatusConnectionTimeout        Status = 0x08
	StatusConnectionLimit          Status = 0x09
	StatusConnectionExists         Status = 0x0B
	StatusCommandDisallowed        Status = 0x0C
	StatusRejectedLimitedResources Status = 0x0D
	StatusRejectedSecurity         Status = 0x0E
	StatusRejectedBDAddr           Status = 0x0F
	StatusAcceptTimeout            Status = 0x10
	StatusUnsupportedFeature       Status = 0x11
	StatusInvalidParameters        Status = 0x12
	StatusRemoteUserTerminated     Status = 0x13
	StatusRemoteLowResources       Status = 0x14
	StatusRemotePowerOff           Status = 0x15
	StatusLocalHostTerminated      Status = 0x16
	StatusRepeatedAttempts         Status = 0x17
	StatusPairingNotAllowed        Status = 0x18
	StatusUnknownLMPPDU            Status = 0x19
	StatusUnsupportedRemoteFeature Status = 0x1A
	StatusUnspecifiedError         Status = 0x1F
	StatusLMPResponseTimeout       Status = 0x22
	StatusInstantPassed            Status = 0x28
	StatusControllerBusy           Status = 0x3A
	StatusUnacceptableConnParams   Status = 0x3B
	StatusAdvertisingTimeout       Status = 0x3C
	StatusConnFailedToEstablish    Status = 0x3E
)

var statusName = map[Status]string{
	StatusSuccess:                  "Success",
	StatusUnknownCommand:           "Unknown HCI Command",
	StatusUnknownConnection:        "Unknown Connection Identifier",
	StatusHardwareFailure:          "Hardware Failure",
	StatusPageTimeout:              "Page Timeout",
	StatusAuthenticationFailure:    "Authentication Failure",
	StatusKeyMissing:               "PIN or Key Missing",
	StatusMemoryExceeded:           "Memory Capacity Exceeded",
	StatusConnectionTimeout:        "Connection Timeout",
	StatusConnectionLimit:          "Connection Limit Exceeded",
	StatusConnectionExists:         "Connection Already Exists",
	StatusCommandDisallowed:        "Command Disallowed",
	StatusRejectedLimitedResources: "Connection Rejected due to Limited Resources",
	StatusRejectedSecurity:         "Connection Rejected Due To Security Reasons",
	StatusRejectedBDAddr:           "Connection Rejected due to Unacceptable BD_ADDR",
	StatusAcceptTimeout:            "Connection Accept Timeout Exceeded",
	StatusUnsupportedFeature:       "Unsupported Feature or Parameter Value",
	StatusInvalidParameters:        "Invalid HCI Command Parameters",
	StatusRemoteUserTerminated:     "Remote User Terminated Connection",
	StatusRemoteLowResources:       "Remote Device Terminated Connection due to Low Resources",
	StatusRemotePowerOff:           "Remote Device Terminated Connection due to Power Off",
	StatusLocalHostTerminated:      "Connection Terminated By Local Host",
	StatusRepeatedAttempts:         "Repeated Attempts",
	StatusPairingNotAllowed:        "Pairing Not Allowed",
	StatusUnknownLMPPDU:            "Unknown LMP PDU",
	StatusUnsupportedRemoteFeature: "Unsupported Remote Feature",
	StatusUnspecifiedError:         "Unspecified Error",
	StatusLMPResponseTimeout:       "LMP Response Timeout / LL Response Timeout",
	StatusInstantPassed:            "Instant Passed",
	StatusControllerBusy:           "Controller Busy",
	StatusUnacceptableConnParams:   "Unacceptable Connection Parameters",
	StatusAdvertisingTimeout:       "Advertising Timeout",
	StatusConnFailedToEstablish:    "Connection Failed to be Established",
}

func (s Status) String() string {
	if n, ok := statusName[s]; ok {
		return n
	}
	return fmt.Sprintf("status(0x%02X)", uint8(s))
}

func (s Status) timeout() bool {
	switch s {
	case StatusPageTimeout, StatusConnectionTimeout, StatusAcceptTimeout, StatusLMPResponseTimeout:
		return true
	}
	return false
}

// Err converts a non-success status into the error taxonomy: timeouts wrap
// bluing.ErrTransportTimeout, everything else is a *bluing.RejectedError.
func (s Status) Err(op string) error {
	if s == StatusSuccess {
		return nil
	}
	if s.timeout() {
		return errors.Wrapf(bluing.ErrTransportTimeout, "%s: %s (0x%02X)", op, s, uint8(s))
	}
	return &bluing.RejectedError{Op: op, Code: uint8(s), Reason: s.String()}
}

// CheckStatus inspects the first return parameter of a Command Complete.
// A status in accept is treated as success.
func CheckStatus(op Opcode, rp []byte, accept ...Status) error {
	if len(rp) == 0 {
		return bluing.NewDecodeError(bluing.Truncated, 0, "%s: empty return parameters", op)
	}
	s := Status(rp[0])
	if s == StatusSuccess {
		return nil
	}
	for _, a := range accept {
		if s == a {
			return nil
		}
	}
	return s.Err(op.String())
}
