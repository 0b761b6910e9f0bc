package sniff

import (
	"container/heap"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/XC-/bluing"
)

// Opener opens the serial handle of a sniffer.
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// Peripheral is one sniffer and the channel it follows.
type Peripheral struct {
	Name    string
	Channel uint8
	Open    Opener
}

// Session runs one worker per peripheral.
type Session struct {
	Peripherals  []Peripheral
	ReadyTimeout time.Duration
}

// MaxChannel is the highest LE channel index.
const MaxChannel = 39

// Run opens every peripheral and runs their workers until ctx is done or one
// of them fails. A peripheral that cannot be opened or never becomes ready
// fails the whole session with bluing.ErrResourceUnavailable naming its
// channel; partial coverage is never silently accepted. Run closes out when
// it returns.
func (s *Session) Run(ctx context.Context, out chan<- Capture) error {
	defer close(out)
	if len(s.Peripherals) == 0 {
		return errors.Wrap(bluing.ErrResourceUnavailable, "no sniffer configured")
	}
	seen := make(map[uint8]string)
	for _, p := range s.Peripherals {
		if p.Channel > MaxChannel {
			return errors.Wrapf(bluing.ErrInvalid, "sniffer %s: channel %d", p.Name, p.Channel)
		}
		if other, dup := seen[p.Channel]; dup {
			return errors.Wrapf(bluing.ErrInvalid, "sniffers %s and %s both on channel %d", other, p.Name, p.Channel)
		}
		seen[p.Channel] = p.Name
	}

	workers := make([]*Worker, 0, len(s.Peripherals))
	for _, p := range s.Peripherals {
		port, err := p.Open(ctx)
		if err != nil {
			for _, w := range workers {
				w.Port.Close()
			}
			return errors.Wrapf(bluing.ErrResourceUnavailable, "sniffer %s for channel %d: %v", p.Name, p.Channel, err)
		}
		workers = append(workers, &Worker{Name: p.Name, Port: port, Channel: p.Channel, ReadyTimeout: s.ReadyTimeout})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Run(gctx, out) })
	}
	return g.Wait()
}

type captureHeap []Capture

func (h captureHeap) Len() int { return len(h) }
func (h captureHeap) Less(i, j int) bool {
	if !h[i].Received.Equal(h[j].Received) {
		return h[i].Received.Before(h[j].Received)
	}
	return h[i].Time < h[j].Time
}
func (h captureHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *captureHeap) Push(x interface{}) { *h = append(*h, x.(Capture)) }
func (h *captureHeap) Pop() interface{} {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Merge reorders captures from in by receive time. A capture is held until
// one received window later arrives, or until window has passed on the wall
// clock, so stragglers from slower workers still fall in order. Everything
// held is flushed when in is closed. The returned channel is closed when in
// is closed or ctx is done.
func Merge(ctx context.Context, in <-chan Capture, window time.Duration) <-chan Capture {
	out := make(chan Capture)
	go func() {
		defer close(out)
		var h captureHeap
		tick := time.NewTicker(window/2 + time.Millisecond)
		defer tick.Stop()

		emit := func(until time.Time, all bool) bool {
			for h.Len() > 0 && (all || !h[0].Received.After(until)) {
				c := heap.Pop(&h).(Capture)
				select {
				case out <- c:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		for {
			select {
			case c, ok := <-in:
				if !ok {
					emit(time.Time{}, true)
					return
				}
				heap.Push(&h, c)
				if !emit(c.Received.Add(-window), false) {
					return
				}
			case now := <-tick.C:
				if !emit(now.Add(-window), false) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
