//go:build linux

package linux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
)

// fakeController answers every command packet written to the HCI side of a
// pipe with the packets reply returns.
func fakeController(t *testing.T, reply func(op hci.Opcode) [][]byte) (*HCI, chan hci.Opcode) {
	a, b := net.Pipe()
	h := newHCI(a)
	ops := make(chan hci.Opcode, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := b.Read(buf)
			if err != nil {
				return
			}
			if n < 4 || hci.PacketType(buf[0]) != hci.TypCommandPkt {
				continue
			}
			op := hci.Opcode(uint16(buf[1]) | uint16(buf[2])<<8)
			ops <- op
			for _, p := range reply(op) {
				if _, err := b.Write(p); err != nil {
					return
				}
			}
		}
	}()
	t.Cleanup(func() {
		h.Close()
		b.Close()
	})
	return h, ops
}

func complete(op hci.Opcode, rp ...byte) []byte {
	return append([]byte{byte(hci.TypEventPkt), byte(hci.EvtCommandComplete), byte(3 + len(rp)), 1, byte(op), byte(op >> 8)}, rp...)
}

func status(op hci.Opcode, s hci.Status) []byte {
	return []byte{byte(hci.TypEventPkt), byte(hci.EvtCommandStatus), 4, byte(s), 1, byte(op), byte(op >> 8)}
}

func TestSendCommand(t *testing.T) {
	h, _ := fakeController(t, func(op hci.Opcode) [][]byte {
		switch op {
		case hci.OpReadBDAddr:
			return [][]byte{complete(op, 0x00, 0xC3, 0x45, 0x4C, 0x99, 0x7A, 0x24)}
		case hci.OpInquiry:
			return [][]byte{
				status(op, hci.StatusSuccess),
				{byte(hci.TypEventPkt), byte(hci.EvtInquiryComplete), 1, 0x00},
			}
		case hci.OpRemoteNameReq:
			return [][]byte{status(op, hci.StatusCommandDisallowed)}
		}
		return [][]byte{complete(op, 0x00)}
	})
	ctx := context.Background()

	rp, err := h.SendCommand(ctx, hci.ReadBDAddr{})
	require.NoError(t, err)
	assert.Equal(t, "24:7A:99:4C:45:C3", bluing.AddrFromLittleEndian(rp[1:]).String())

	require.NoError(t, h.SetInquiryEnable(ctx, true, 4))
	e, err := h.NextEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, hci.InquiryComplete{Status: hci.StatusSuccess}, e)

	_, err = h.SendCommand(ctx, hci.RemoteNameRequest{})
	assert.True(t, bluing.IsRejected(err))
}

func TestPrepareAcceptsDisallowed(t *testing.T) {
	h, ops := fakeController(t, func(op hci.Opcode) [][]byte {
		return [][]byte{complete(op, byte(hci.StatusCommandDisallowed))}
	})
	require.NoError(t, h.Prepare(context.Background()))
	var got []hci.Opcode
	for i := 0; i < 6; i++ {
		got = append(got, <-ops)
	}
	want := []hci.Opcode{
		hci.OpInquiryCancel,
		hci.OpExitPeriodicInquiry,
		hci.OpWriteScanEnable,
		hci.OpLESetAdvertiseEnable,
		hci.OpLESetScanEnable,
		hci.OpSetEventFilter,
	}
	assert.Equal(t, want, got)
}

func TestPrepareFails(t *testing.T) {
	h, _ := fakeController(t, func(op hci.Opcode) [][]byte {
		return [][]byte{complete(op, byte(hci.StatusInvalidParameters))}
	})
	err := h.Prepare(context.Background())
	assert.True(t, bluing.IsRejected(err))
}

func TestCommandTimeout(t *testing.T) {
	h, _ := fakeController(t, func(hci.Opcode) [][]byte { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.SendCommand(ctx, hci.Reset{})
	assert.True(t, bluing.IsTimeout(err))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = h.NextEvent(ctx2)
	assert.True(t, bluing.IsTimeout(err))
}

func TestClosedController(t *testing.T) {
	h, _ := fakeController(t, func(hci.Opcode) [][]byte { return nil })
	require.NoError(t, h.Close())
	_, err := h.NextEvent(context.Background())
	assert.True(t, bluing.IsUnavailable(err))
}

func TestConnRequest(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := newConn(a)
	defer c.Close()
	go func() {
		buf := make([]byte, 64)
		n, err := b.Read(buf)
		if err != nil {
			return
		}
		b.Write(append([]byte{buf[0] + 1}, buf[1:n]...))
		b.Read(buf) // second request stays unanswered
	}()

	rsp, err := c.Request(context.Background(), []byte{0x02, 0x17, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x17, 0x00}, rsp)

	c.Timeout = 20 * time.Millisecond
	_, err = c.Request(context.Background(), []byte{0x10})
	assert.True(t, bluing.IsTimeout(err))
}

func TestConnRequestCanceled(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := newConn(a)
	defer c.Close()
	go func() {
		buf := make([]byte, 64)
		b.Read(buf)
	}()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.Request(ctx, []byte{0x01})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialL2CAPArgs(t *testing.T) {
	_, err := DialL2CAP(context.Background(), bluing.BDAddr{}, bluing.AddrPublic, false, PSMSDP, CIDATT)
	assert.ErrorIs(t, err, bluing.ErrInvalid)
}

func TestSerialBaud(t *testing.T) {
	_, err := OpenSerial("/dev/null", 12345)
	assert.ErrorIs(t, err, bluing.ErrInvalid)
}
