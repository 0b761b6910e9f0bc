package scan

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
	"github.com/XC-/bluing/hci"
)

// Mode selects whether the scanner solicits scan responses.
type Mode uint8

const (
	Passive Mode = 0x00
	Active  Mode = 0x01
)

func (m Mode) String() string {
	if m == Active {
		return "active"
	}
	return "passive"
}

// ParseMode accepts "active" and "passive".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "active", "":
		return Active, nil
	case "passive":
		return Passive, nil
	}
	return 0, errors.Wrapf(bluing.ErrInvalid, "scan mode %q", s)
}

// Options configure one LE scan.
type Options struct {
	Mode Mode
	// Timeout is the scan length; zero scans until ctx is done.
	Timeout          time.Duration
	FilterDuplicates bool
	Sort             SortKey

	// Interval and Window are in 0.625 ms units; zero selects 10 ms.
	Interval uint16
	Window   uint16
}

// LEResult holds the advertisers a scan heard. Partial is set when the
// caller's context ended the scan before Timeout.
type LEResult struct {
	Devices []Device
	Partial bool
}

// LEScanner runs LE scans.
type LEScanner struct {
	C hci.Controller
}

// Scan scans for opt.Timeout, or until ctx is done, and returns the
// advertisers heard, sorted by opt.Sort. Scanning is disabled on every exit
// path. A caller's timeout or cancellation returns the partial result without
// error.
func (s *LEScanner) Scan(ctx context.Context, opt Options) (*LEResult, error) {
	set := NewDeviceSet()
	err := s.scan(ctx, set, opt)
	res := &LEResult{Devices: set.Sorted(opt.Sort)}
	if err != nil {
		if ctx.Err() != nil {
			res.Partial = true
			return res, nil
		}
		return res, err
	}
	return res, nil
}

func (s *LEScanner) scan(ctx context.Context, set *DeviceSet, opt Options) error {
	interval, window := opt.Interval, opt.Window
	if interval == 0 {
		interval = 0x0010
	}
	if window == 0 || window > interval {
		window = interval
	}
	err := hci.SendAndCheck(ctx, s.C, hci.LESetScanParameters{
		LEScanType:     uint8(opt.Mode),
		LEScanInterval: interval,
		LEScanWindow:   window,
	})
	if err != nil {
		return errors.Wrap(err, "set scan parameters")
	}

	defer func() {
		cctx, cancel := cleanupCtx(ctx)
		defer cancel()
		if err := s.C.SetScanEnable(cctx, false, false); err != nil {
			logger.WithField("err", err).Warn("scan disable failed")
		}
	}()
	if err := s.C.SetScanEnable(ctx, true, opt.FilterDuplicates); err != nil {
		return errors.Wrap(err, "enable scan")
	}
	logger.WithFields(log.Fields{"mode": opt.Mode, "timeout": opt.Timeout}).Debug("scan started")

	sctx, cancel := ctx, context.CancelFunc(func() {})
	if opt.Timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, opt.Timeout)
	}
	defer cancel()
	for {
		e, err := s.C.NextEvent(sctx)
		if err != nil {
			if ctx.Err() == nil && sctx.Err() != nil {
				return nil
			}
			return err
		}
		ar, ok := e.(hci.LEAdvertisingReportEvent)
		if !ok {
			continue
		}
		for _, r := range ar.Reports {
			rep := adv.NewReport(r)
			if rep.ParseErr != nil {
				logger.WithFields(log.Fields{"addr": r.Addr, "err": rep.ParseErr}).Debug("malformed advertising data")
			}
			set.Upsert(Device{
				Key:     Key{Addr: r.Addr, AddrType: r.AddrType},
				RSSI:    r.RSSI,
				HasRSSI: r.RSSI != 127,
				Report:  rep,
			})
		}
	}
}
