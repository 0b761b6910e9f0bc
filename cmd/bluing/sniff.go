//go:build linux

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/linux"
	"github.com/XC-/bluing/sniff"
)

// mergeWindow is how long captures wait for slower sniffers.
const mergeWindow = 50 * time.Millisecond

func cmdSniff(c *cli.Context) error {
	sc := cfg.Sniff
	if len(sc.Devices) == 0 || len(sc.Devices) != len(sc.Channels) {
		return errors.Wrapf(bluing.ErrInvalid, "%d sniffer devices for %d channels", len(sc.Devices), len(sc.Channels))
	}
	sess := &sniff.Session{ReadyTimeout: sc.ReadyTimeout}
	for i, dev := range sc.Devices {
		sess.Peripherals = append(sess.Peripherals, sniff.Peripheral{
			Name:    filepath.Base(dev),
			Channel: sc.Channels[i],
			Open:    linux.SerialOpener(dev, sc.Baud),
		})
	}

	ctx, cancel := signalContext()
	defer cancel()
	if d := c.Duration("timeout"); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	raw := make(chan sniff.Capture, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx, raw) })
	g.Go(func() error {
		for cp := range sniff.Merge(gctx, raw, mergeWindow) {
			printCapture(cp)
		}
		return nil
	})
	return chkErr(g.Wait())
}

func printCapture(cp sniff.Capture) {
	p, err := sniff.ParseAdvPDU(cp.PDU)
	head := fmt.Sprintf("%s ch%d %8dus %4ddBm", cp.Received.Format("15:04:05.000"), cp.Channel, cp.Time, cp.RSSI)
	if p == nil {
		fmt.Printf("%s  [ % X ]  ! %v\n", head, cp.PDU, err)
		return
	}
	fmt.Printf("%s  %-15s %s (%s)", head, p.Type, p.AdvA, p.TxAdd)
	if !p.Peer.IsZero() {
		fmt.Printf(" -> %s (%s)", p.Peer, p.RxAdd)
	}
	if n, ok := p.Fields.LocalName(); ok {
		fmt.Printf("  %q", n)
	}
	if p.LL != nil {
		fmt.Printf("  AA 0x%08X interval %d hop %d", p.LL.AccessAddress, p.LL.Interval, p.LL.Hop)
	}
	if err != nil {
		fmt.Printf("  ! %v", err)
	}
	fmt.Println()
}
