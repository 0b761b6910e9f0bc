//go:build linux

// Package linux implements the controller and transports on top of Linux
// Bluetooth sockets.
package linux

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
)

var logger = log.WithField("pkg", "linux")

// eventQueueLen bounds the events buffered for NextEvent. Advertising
// reports beyond it are dropped while nobody reads.
const eventQueueLen = 1024

// HCI is an hci.Controller over an HCI socket.
type HCI struct {
	Dev int

	d io.ReadWriteCloser

	// cmdmu serializes commands; one is outstanding at a time.
	cmdmu   sync.Mutex
	mu      sync.Mutex
	pending map[hci.Opcode]chan hci.Event

	evts chan hci.Event
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open binds an HCI socket to hciN and starts reading from it. With the user
// channel the controller is reset and its event masks are set; with the raw
// channel the kernel has already initialized it.
func Open(ctx context.Context, n int) (*HCI, error) {
	f, user, err := openHCISocket(n)
	if err != nil {
		return nil, err
	}
	h := newHCI(f)
	h.Dev = n
	logger.WithFields(log.Fields{"dev": n, "user": user}).Debug("hci socket open")
	if user {
		if err := h.init(ctx); err != nil {
			h.Close()
			return nil, err
		}
	}
	return h, nil
}

func newHCI(d io.ReadWriteCloser) *HCI {
	h := &HCI{
		d:       d,
		pending: make(map[hci.Opcode]chan hci.Event),
		evts:    make(chan hci.Event, eventQueueLen),
		done:    make(chan struct{}),
	}
	go h.mainLoop()
	return h
}

func (h *HCI) init(ctx context.Context) error {
	seq := []hci.Command{
		hci.Reset{},
		hci.SetEventMask{EventMask: 0x3dbff807fffbffff},
		hci.LESetEventMask{LEEventMask: 0x000000000000001F},
		hci.WriteInquiryMode{InquiryMode: 2},
	}
	for _, c := range seq {
		if err := hci.SendAndCheck(ctx, h, c); err != nil {
			return errors.Wrap(err, "init controller")
		}
	}
	return nil
}

// Prepare stops whatever the controller may still be doing from an earlier
// session: inquiry, periodic inquiry, page/inquiry scan, LE advertising and
// LE scan, and clears the event filters. A controller that was idle answers
// Command Disallowed, which is accepted.
func (h *HCI) Prepare(ctx context.Context) error {
	seq := []hci.Command{
		hci.InquiryCancel{},
		hci.ExitPeriodicInquiry{},
		hci.WriteScanEnable{ScanEnable: 0},
		hci.LESetAdvertiseEnable{},
		hci.LESetScanEnable{},
		hci.SetEventFilter{},
	}
	for _, c := range seq {
		if err := hci.SendAndCheck(ctx, h, c, hci.StatusCommandDisallowed); err != nil {
			return errors.Wrap(err, "prepare controller")
		}
	}
	return nil
}

// Close closes the socket. The read loop exits and blocked calls return
// bluing.ErrResourceUnavailable.
func (h *HCI) Close() error {
	h.closeOnce.Do(func() { h.closeErr = h.d.Close() })
	return h.closeErr
}

// SendCommand writes c and waits for its Command Complete or Command Status.
func (h *HCI) SendCommand(ctx context.Context, c hci.Command) ([]byte, error) {
	h.cmdmu.Lock()
	defer h.cmdmu.Unlock()

	op := c.Opcode()
	ch := make(chan hci.Event, 1)
	h.mu.Lock()
	h.pending[op] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, op)
		h.mu.Unlock()
	}()

	b := hci.MarshalPacket(c)
	logger.Debugf("< HCI Command: %s [ % X ]", op, b)
	if n, err := h.d.Write(b); err != nil {
		return nil, errors.Wrapf(bluing.ErrResourceUnavailable, "%s: %v", op, err)
	} else if n != len(b) {
		return nil, errors.Errorf("%s: short write %d of %d", op, n, len(b))
	}

	select {
	case e := <-ch:
		switch e := e.(type) {
		case hci.CommandComplete:
			return e.ReturnParameters, nil
		case hci.CommandStatus:
			return nil, e.Status.Err(op.String())
		}
		return nil, errors.Errorf("%s: unexpected %s", op, e.Code())
	case <-ctx.Done():
		return nil, errors.Wrap(bluing.ContextErr(ctx), op.String())
	case <-h.done:
		return nil, errors.Wrapf(bluing.ErrResourceUnavailable, "%s: controller closed", op)
	}
}

// NextEvent returns the next event that is not a command acknowledgement.
func (h *HCI) NextEvent(ctx context.Context) (hci.Event, error) {
	select {
	case e := <-h.evts:
		return e, nil
	default:
	}
	select {
	case e := <-h.evts:
		return e, nil
	case <-ctx.Done():
		return nil, bluing.ContextErr(ctx)
	case <-h.done:
		return nil, errors.Wrap(bluing.ErrResourceUnavailable, "controller closed")
	}
}

func (h *HCI) SetScanEnable(ctx context.Context, enable, filterDup bool) error {
	return hci.SetLEScan(ctx, h, enable, filterDup)
}

func (h *HCI) SetInquiryEnable(ctx context.Context, enable bool, durationUnits uint8) error {
	return hci.SetInquiry(ctx, h, enable, durationUnits)
}

func (h *HCI) mainLoop() {
	defer close(h.done)
	b := make([]byte, 4096)
	for {
		n, err := h.d.Read(b)
		if err != nil {
			logger.WithField("err", err).Debug("read loop done")
			return
		}
		if n == 0 {
			return
		}
		h.handlePacket(b[:n])
	}
}

func (h *HCI) handlePacket(b []byte) {
	if hci.PacketType(b[0]) != hci.TypEventPkt {
		logger.Debugf("ignoring packet type 0x%02X [ % X ]", b[0], b)
		return
	}
	e, err := hci.ParseEvent(b[1:])
	if err != nil {
		logger.WithField("err", err).Debugf("> HCI Event [ % X ]", b[1:])
		return
	}
	logger.Debugf("> HCI Event: %s [ % X ]", e.Code(), b[1:])

	var op hci.Opcode
	switch e := e.(type) {
	case hci.CommandComplete:
		op = e.CommandOpcode
	case hci.CommandStatus:
		op = e.CommandOpcode
	default:
		select {
		case h.evts <- e:
		default:
			logger.WithField("event", e.Code()).Warn("event queue full, dropping")
		}
		return
	}
	// Opcode 0 only returns command credits.
	if op == 0 {
		return
	}
	h.mu.Lock()
	ch, ok := h.pending[op]
	delete(h.pending, op)
	h.mu.Unlock()
	if !ok {
		logger.WithField("opcode", op).Debug("no pending command for acknowledgement")
		return
	}
	ch <- e
}
