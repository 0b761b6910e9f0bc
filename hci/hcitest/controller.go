// Package hcitest provides a scripted hci.Controller for tests that must run
// without a radio.
package hcitest

import (
	"context"
	"sync"

	"github.com/XC-/bluing/hci"
)

// Reply is what the fake answers to one command.
type Reply struct {
	// Params are the Command Complete return parameters. Nil means the
	// command is acknowledged with a successful Command Status.
	Params []byte
	// Events are queued after the reply, in order.
	Events []hci.Event
	Err    error
}

// Controller replays scripted replies. It records every command it receives
// and tracks scan/inquiry state so tests can assert it was left disabled.
type Controller struct {
	// Handler scripts the reply to each command. A nil Handler, or a nil
	// result, answers Command Complete with status success.
	Handler func(c hci.Command) *Reply

	mu             sync.Mutex
	sent           []hci.Command
	events         []hci.Event
	notify         chan struct{}
	scanEnabled    bool
	inquiryRunning bool
	closed         bool
}

// New returns a controller that will deliver events, in order, before any
// scripted ones.
func New(events ...hci.Event) *Controller {
	return &Controller{events: events, notify: make(chan struct{}, 1)}
}

// Queue appends events. It is safe to call while a NextEvent is blocked.
func (c *Controller) Queue(events ...hci.Event) {
	c.mu.Lock()
	c.events = append(c.events, events...)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Controller) SendCommand(ctx context.Context, cmd hci.Command) ([]byte, error) {
	c.mu.Lock()
	c.sent = append(c.sent, cmd)
	h := c.Handler
	c.mu.Unlock()

	var r *Reply
	if h != nil {
		r = h(cmd)
	}
	if r == nil {
		r = &Reply{Params: []byte{0x00}}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if len(r.Events) > 0 {
		c.Queue(r.Events...)
	}
	return r.Params, nil
}

func (c *Controller) NextEvent(ctx context.Context) (hci.Event, error) {
	for {
		c.mu.Lock()
		if len(c.events) > 0 {
			e := c.events[0]
			c.events = c.events[1:]
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-ctx.Done():
			return nil, hci.ContextErr(ctx)
		}
	}
}

func (c *Controller) SetScanEnable(ctx context.Context, enable, filterDup bool) error {
	if err := hci.SetLEScan(ctx, c, enable, filterDup); err != nil {
		return err
	}
	c.mu.Lock()
	c.scanEnabled = enable
	c.mu.Unlock()
	return nil
}

func (c *Controller) SetInquiryEnable(ctx context.Context, enable bool, durationUnits uint8) error {
	if err := hci.SetInquiry(ctx, c, enable, durationUnits); err != nil {
		return err
	}
	c.mu.Lock()
	c.inquiryRunning = enable
	c.mu.Unlock()
	return nil
}

func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Sent returns the commands received so far.
func (c *Controller) Sent() []hci.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hci.Command(nil), c.sent...)
}

// SentOpcodes returns the opcodes of the commands received so far.
func (c *Controller) SentOpcodes() []hci.Opcode {
	var ops []hci.Opcode
	for _, cmd := range c.Sent() {
		ops = append(ops, cmd.Opcode())
	}
	return ops
}

// Count returns how many commands with opcode op were received.
func (c *Controller) Count(op hci.Opcode) int {
	n := 0
	for _, o := range c.SentOpcodes() {
		if o == op {
			n++
		}
	}
	return n
}

// ScanEnabled reports whether LE scanning was left on.
func (c *Controller) ScanEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanEnabled
}

// InquiryRunning reports whether an inquiry was left running.
func (c *Controller) InquiryRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inquiryRunning
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
