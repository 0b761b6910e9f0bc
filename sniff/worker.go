package sniff

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
)

var logger = log.WithField("pkg", "sniff")

// DefaultReadyTimeout bounds the wait for a sniffer's ready frame.
const DefaultReadyTimeout = 5 * time.Second

// Capture is one PDU heard by one sniffer.
type Capture struct {
	Device   string
	Channel  uint8
	Time     int64 // sniffer clock, µs
	RSSI     int8
	PDU      []byte
	Received time.Time
}

// Worker owns the serial handle of one sniffer.
type Worker struct {
	Name         string
	Port         io.ReadWriteCloser
	Channel      uint8
	ReadyTimeout time.Duration

	now func() time.Time
}

// Run performs the handshake (wait for ready, select the channel, start) and
// then forwards captured PDUs to out until ctx is done or the port fails.
// It closes the port before returning. A sniffer that never becomes ready
// fails with bluing.ErrResourceUnavailable; ending through ctx is not an
// error.
func (w *Worker) Run(ctx context.Context, out chan<- Capture) error {
	l := logger.WithFields(log.Fields{"device": w.Name, "channel": w.Channel})
	var once sync.Once
	closePort := func() {
		once.Do(func() {
			if err := w.Port.Close(); err != nil {
				l.WithField("err", err).Debug("close failed")
			}
		})
	}
	defer closePort()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-stop:
		}
	}()

	timeout := w.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	var notReady bool
	var mu sync.Mutex
	timer := time.AfterFunc(timeout, func() {
		mu.Lock()
		notReady = true
		mu.Unlock()
		closePort()
	})
	dec := NewDecoder(w.Port)
	enc := NewEncoder(w.Port)

	ready := func(err error) error {
		if ctx.Err() != nil {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if notReady {
			return errors.Wrapf(bluing.ErrResourceUnavailable, "sniffer %s for channel %d not ready after %v", w.Name, w.Channel, timeout)
		}
		return errors.Wrapf(err, "sniffer %s", w.Name)
	}
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			timer.Stop()
			return ready(err)
		}
		if f.Type == FrameReady {
			break
		}
		l.WithField("frame", f.Type).Debug("ignoring frame before ready")
	}
	if !timer.Stop() {
		return ready(io.ErrClosedPipe)
	}

	if err := enc.Encode(Frame{Type: FrameChannel, Channel: w.Channel}); err != nil {
		return ready(err)
	}
	if err := enc.Encode(Frame{Type: FrameStart}); err != nil {
		return ready(err)
	}
	l.Info("sniffer started")

	now := w.now
	if now == nil {
		now = time.Now
	}
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				return errors.Wrapf(bluing.ErrResourceUnavailable, "sniffer %s for channel %d disconnected", w.Name, w.Channel)
			}
			return errors.Wrapf(err, "sniffer %s", w.Name)
		}
		switch f.Type {
		case FramePDU:
			c := Capture{
				Device:   w.Name,
				Channel:  w.Channel,
				Time:     f.Time,
				RSSI:     f.RSSI,
				PDU:      f.Data,
				Received: now(),
			}
			if f.Channel != 0 {
				c.Channel = f.Channel
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return nil
			}
		case FrameError:
			return &bluing.RejectedError{Op: "sniffer " + w.Name, Reason: f.Msg}
		default:
			l.WithField("frame", f.Type).Debug("ignoring frame")
		}
	}
}
