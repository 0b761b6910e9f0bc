package hci

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
)

var logger = log.WithField("pkg", "hci")

// Controller is an already-initialized local controller. One session owns it
// at a time; none of the methods are meant to be called concurrently.
//
// SendCommand returns the return parameters of the matching Command Complete.
// Commands the controller acknowledges with Command Status return nil
// parameters, or the status as an error when it is not success. Completion
// events of such commands arrive through NextEvent.
//
// NextEvent blocks until an event that is not a command acknowledgement
// arrives, or ctx is done, in which case it returns bluing.ErrTransportTimeout
// (deadline) or ctx.Err() (cancellation).
type Controller interface {
	SendCommand(ctx context.Context, c Command) ([]byte, error)
	NextEvent(ctx context.Context) (Event, error)
	SetScanEnable(ctx context.Context, enable, filterDup bool) error
	SetInquiryEnable(ctx context.Context, enable bool, durationUnits uint8) error
	Close() error
}

// Sender is the command half of a Controller.
type Sender interface {
	SendCommand(ctx context.Context, c Command) ([]byte, error)
}

// SendAndCheck sends c and checks the status in the Command Complete.
// Statuses in accept count as success.
func SendAndCheck(ctx context.Context, s Sender, c Command, accept ...Status) error {
	rp, err := s.SendCommand(ctx, c)
	if err != nil {
		return err
	}
	// Command Status acknowledged; nothing more to check.
	if rp == nil {
		return nil
	}
	return CheckStatus(c.Opcode(), rp, accept...)
}

// SetLEScan enables or disables LE scanning. Disabling an idle scanner
// answers Command Disallowed, which is accepted.
func SetLEScan(ctx context.Context, s Sender, enable, filterDup bool) error {
	cmd := LESetScanEnable{LEScanEnable: enable, FilterDuplicates: filterDup}
	if enable {
		return SendAndCheck(ctx, s, cmd)
	}
	return SendAndCheck(ctx, s, cmd, StatusCommandDisallowed)
}

// SetInquiry starts an inquiry of durationUnits x 1.28 s, or cancels the
// running one.
func SetInquiry(ctx context.Context, s Sender, enable bool, durationUnits uint8) error {
	if !enable {
		return SendAndCheck(ctx, s, InquiryCancel{}, StatusCommandDisallowed)
	}
	if durationUnits == 0 || durationUnits > MaxInquiryLength {
		return errors.Wrapf(bluing.ErrInvalid, "inquiry length %d out of range 1..%d", durationUnits, MaxInquiryLength)
	}
	return SendAndCheck(ctx, s, Inquiry{Length: durationUnits})
}

// ContextErr is bluing.ContextErr.
func ContextErr(ctx context.Context) error { return bluing.ContextErr(ctx) }

// WaitFor pulls events until match returns true. Events that do not match
// are dropped; the session owning the controller expects nothing else.
func WaitFor(ctx context.Context, c Controller, match func(Event) bool) (Event, error) {
	for {
		e, err := c.NextEvent(ctx)
		if err != nil {
			return nil, err
		}
		if match(e) {
			return e, nil
		}
		logger.WithField("event", e.Code()).Debug("dropping unrelated event")
	}
}

// DisconnectAndWait tears down an ACL or LE link and waits for the Disconnection
// Complete. Failures are logged; callers run it on every exit path.
func DisconnectAndWait(ctx context.Context, c Controller, handle uint16) {
	err := SendAndCheck(ctx, c, Disconnect{ConnectionHandle: handle, Reason: uint8(StatusRemoteUserTerminated)})
	if err == nil {
		_, err = WaitFor(ctx, c, func(e Event) bool {
			d, ok := e.(DisconnectionComplete)
			return ok && d.ConnectionHandle == handle
		})
	}
	if err != nil {
		logger.WithFields(log.Fields{"handle": handle, "err": err}).Warn("disconnect failed")
	}
}
