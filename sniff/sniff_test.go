package sniff

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
)

// fakeSniffer plays the device side of the serial protocol on one end of a
// pipe. It records the frames the worker sends.
type fakeSniffer struct {
	conn  net.Conn
	ready bool
	pdus  []Frame
	fail  string
	got   chan Frame
}

func newFakeSniffer(ready bool, pdus ...Frame) (*fakeSniffer, io.ReadWriteCloser) {
	a, b := net.Pipe()
	return &fakeSniffer{conn: b, ready: ready, pdus: pdus, got: make(chan Frame, 8)}, a
}

func (s *fakeSniffer) run() {
	defer s.conn.Close()
	enc := NewEncoder(s.conn)
	dec := NewDecoder(s.conn)
	if !s.ready {
		io.Copy(io.Discard, s.conn)
		return
	}
	if enc.Encode(Frame{Type: FrameReady}) != nil {
		return
	}
	for i := 0; i < 2; i++ {
		var f Frame
		if dec.Decode(&f) != nil {
			return
		}
		s.got <- f
	}
	for _, f := range s.pdus {
		if enc.Encode(f) != nil {
			return
		}
	}
	if s.fail != "" {
		enc.Encode(Frame{Type: FrameError, Msg: s.fail})
	}
	io.Copy(io.Discard, s.conn)
}

func TestWorkerHandshake(t *testing.T) {
	s, port := newFakeSniffer(true,
		Frame{Type: FramePDU, Time: 100, RSSI: -40, Data: []byte{0x02, 0x00}},
		Frame{Type: FramePDU, Time: 250, RSSI: -41, Data: []byte{0x02, 0x00}, Channel: 38},
	)
	go s.run()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &Worker{Name: "ttyACM0", Port: port, Channel: 37, now: func() time.Time { return base }}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Capture)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	c1 := <-out
	c2 := <-out
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, Frame{Type: FrameChannel, Channel: 37}, <-s.got)
	assert.Equal(t, Frame{Type: FrameStart}, <-s.got)
	assert.Equal(t, Capture{Device: "ttyACM0", Channel: 37, Time: 100, RSSI: -40, PDU: []byte{0x02, 0x00}, Received: base}, c1)
	assert.Equal(t, uint8(38), c2.Channel, "a channel reported by the sniffer wins")
}

func TestWorkerNotReady(t *testing.T) {
	s, port := newFakeSniffer(false)
	go s.run()

	w := &Worker{Name: "ttyACM1", Port: port, Channel: 38, ReadyTimeout: 20 * time.Millisecond}
	err := w.Run(context.Background(), make(chan Capture))
	require.Error(t, err)
	assert.True(t, bluing.IsUnavailable(err))
	assert.Contains(t, err.Error(), "channel 38")
}

func TestWorkerErrorFrame(t *testing.T) {
	s, port := newFakeSniffer(true)
	s.fail = "radio fault"
	go s.run()

	w := &Worker{Name: "ttyACM2", Port: port, Channel: 39}
	err := w.Run(context.Background(), make(chan Capture))
	var rej *bluing.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "radio fault", rej.Reason)
	assert.True(t, bluing.IsRejected(err))
}

func TestWorkerDisconnect(t *testing.T) {
	a, b := net.Pipe()
	go func() {
		NewEncoder(b).Encode(Frame{Type: FrameReady})
		dec := NewDecoder(b)
		var f Frame
		dec.Decode(&f)
		dec.Decode(&f)
		b.Close()
	}()
	w := &Worker{Name: "ttyACM0", Port: a, Channel: 37}
	err := w.Run(context.Background(), make(chan Capture))
	assert.True(t, bluing.IsUnavailable(err))
}

func opener(port io.ReadWriteCloser) Opener {
	return func(context.Context) (io.ReadWriteCloser, error) { return port, nil }
}

func TestSession(t *testing.T) {
	var ps []Peripheral
	for _, ch := range []uint8{37, 38, 39} {
		s, port := newFakeSniffer(true, Frame{Type: FramePDU, Data: []byte{ch}})
		go s.run()
		ps = append(ps, Peripheral{Name: "sniffer", Channel: ch, Open: opener(port)})
	}
	sess := &Session{Peripherals: ps}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Capture)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx, out) }()

	seen := make(map[uint8]bool)
	for len(seen) < 3 {
		c := <-out
		seen[c.Channel] = true
		assert.Equal(t, []byte{c.Channel}, c.PDU)
	}
	cancel()
	for range out {
	}
	assert.NoError(t, <-done)
}

func TestSessionUnavailable(t *testing.T) {
	okSniffer, okPort := newFakeSniffer(true)
	go okSniffer.run()
	closed := make(chan struct{})
	a, b := net.Pipe()
	go func() {
		io.Copy(io.Discard, b)
		close(closed)
	}()

	tests := []struct {
		name string
		ps   []Peripheral
		want string
	}{
		{name: "none", want: "no sniffer"},
		{
			name: "open fails",
			ps: []Peripheral{
				{Name: "a", Channel: 37, Open: opener(a)},
				{Name: "b", Channel: 38, Open: func(context.Context) (io.ReadWriteCloser, error) {
					return nil, errors.New("no such device")
				}},
			},
			want: "channel 38",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make(chan Capture)
			err := (&Session{Peripherals: tt.ps}).Run(context.Background(), out)
			assert.True(t, bluing.IsUnavailable(err))
			assert.Contains(t, err.Error(), tt.want)
			_, open := <-out
			assert.False(t, open)
		})
	}
	<-closed

	stuck, stuckPort := newFakeSniffer(false)
	go stuck.run()
	sess := &Session{
		Peripherals: []Peripheral{
			{Name: "ok", Channel: 37, Open: opener(okPort)},
			{Name: "stuck", Channel: 39, Open: opener(stuckPort)},
		},
		ReadyTimeout: 20 * time.Millisecond,
	}
	err := sess.Run(context.Background(), make(chan Capture))
	assert.True(t, bluing.IsUnavailable(err))
	assert.Contains(t, err.Error(), "channel 39")
}

func TestSessionInvalidChannels(t *testing.T) {
	for _, ps := range [][]Peripheral{
		{{Name: "a", Channel: 40}},
		{{Name: "a", Channel: 37}, {Name: "b", Channel: 37}},
	} {
		err := (&Session{Peripherals: ps}).Run(context.Background(), make(chan Capture))
		assert.ErrorIs(t, err, bluing.ErrInvalid)
	}
}

func TestMerge(t *testing.T) {
	base := time.Now()
	in := make(chan Capture)
	out := Merge(context.Background(), in, time.Hour)
	go func() {
		for _, d := range []time.Duration{30, 10, 20, 0} {
			in <- Capture{Time: int64(d), Received: base.Add(d * time.Millisecond)}
		}
		close(in)
	}()
	var got []int64
	for c := range out {
		got = append(got, c.Time)
	}
	assert.Equal(t, []int64{0, 10, 20, 30}, got)
}

func TestMergeReleasesOldCaptures(t *testing.T) {
	base := time.Now()
	in := make(chan Capture)
	out := Merge(context.Background(), in, time.Hour)
	in <- Capture{Time: 1, Received: base}
	in <- Capture{Time: 2, Received: base.Add(2 * time.Hour)}
	c := <-out
	assert.Equal(t, int64(1), c.Time, "held captures go out once the window has passed")
	close(in)
	c = <-out
	assert.Equal(t, int64(2), c.Time)
}

func TestParseAdvPDU(t *testing.T) {
	adva := []byte{0xC3, 0x45, 0x4C, 0x99, 0x7A, 0x24}
	initA := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xC6}

	t.Run("ADV_IND", func(t *testing.T) {
		b := append([]byte{0x40, 9}, adva...)
		b = append(b, 0x02, 0x01, 0x06, 0xAA, 0xBB, 0xCC) // trailing CRC
		p, err := ParseAdvPDU(b)
		require.NoError(t, err)
		assert.Equal(t, AdvInd, p.Type)
		assert.Equal(t, bluing.AddrRandom, p.TxAdd)
		assert.Equal(t, "24:7A:99:4C:45:C3", p.AdvA.String())
		f, ok := p.Fields.Flags()
		require.True(t, ok)
		assert.Equal(t, adv.Flags(0x06), f)
	})

	t.Run("CONNECT_IND", func(t *testing.T) {
		b := append([]byte{0x05, 34}, initA...)
		b = append(b, adva...)
		b = append(b,
			0xAF, 0x9A, 0xA3, 0x50, // access address
			0x55, 0x55, 0x55, // crc init
			0x02, 0x0A, 0x00, 0x24, 0x00, 0x00, 0x00, 0xF4, 0x01,
			0xFF, 0xFF, 0xFF, 0xFF, 0x1F,
			0xA7, // hop 7, sca 5
		)
		p, err := ParseAdvPDU(b)
		require.NoError(t, err)
		assert.Equal(t, ConnectInd, p.Type)
		assert.Equal(t, "C6:05:04:03:02:01", p.Peer.String())
		require.NotNil(t, p.LL)
		assert.Equal(t, uint32(0x50A39AAF), p.LL.AccessAddress)
		assert.Equal(t, uint32(0x555555), p.LL.CRCInit)
		assert.Equal(t, uint16(0x24), p.LL.Interval)
		assert.Equal(t, uint16(500), p.LL.Timeout)
		assert.Equal(t, uint8(7), p.LL.Hop)
		assert.Equal(t, uint8(5), p.LL.SCA)
	})

	tests := []struct {
		name string
		b    []byte
		kind bluing.DecodeKind
	}{
		{"short header", []byte{0x00}, bluing.Truncated},
		{"length past data", []byte{0x00, 10, 1, 2}, bluing.LengthMismatch},
		{"short address", []byte{0x00, 3, 1, 2, 3}, bluing.Truncated},
		{"short LLData", append(append([]byte{0x05, 14}, initA...), append(adva, 0, 0)...), bluing.Truncated},
		{"unknown type", []byte{0x0F, 0}, bluing.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAdvPDU(tt.b)
			var de *bluing.DecodeError
			require.True(t, errors.As(err, &de), "%v", err)
			assert.Equal(t, tt.kind, de.Kind)
		})
	}
}

func TestPDUTypeString(t *testing.T) {
	assert.Equal(t, "SCAN_REQ", ScanReq.String())
	assert.Equal(t, "pdu(0xA)", PDUType(0xA).String())
	assert.Equal(t, "frame(9)", FrameType(9).String())
}
