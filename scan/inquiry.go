package scan

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
	"github.com/XC-/bluing/hci"
)

var logger = log.WithField("pkg", "scan")

// InquiryUnit is the length unit of an inquiry.
const InquiryUnit = 1280 * time.Millisecond

// inquiryGrace is how long past its nominal length an inquiry may run before
// Inquiry Complete is given up on.
const inquiryGrace = 2 * time.Second

// CleanupTimeout bounds the commands that return the controller to idle when
// the caller's context is already done.
const CleanupTimeout = 3 * time.Second

// DefaultNameTimeout bounds one remote name request.
const DefaultNameTimeout = 5 * time.Second

// Inquirer runs BR/EDR inquiries followed by a name resolution pass.
type Inquirer struct {
	C hci.Controller

	// NameTimeout bounds each remote name request; zero means
	// DefaultNameTimeout. Negative skips the name pass.
	NameTimeout time.Duration
	// NameLimiter paces remote name requests; nil sends them back to back.
	NameLimiter *rate.Limiter
}

// InquiryResult holds the devices an inquiry found. Partial is set when the
// caller's context ended the inquiry or the name pass early.
type InquiryResult struct {
	Devices []Device
	Partial bool
}

// cleanupCtx returns ctx, or a fresh bounded context when ctx is done.
func cleanupCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.Background(), CleanupTimeout)
}

// Inquiry inquires for durationUnits x 1.28 s and resolves the names of the
// devices found. Inquiry mode is disabled on every exit path. A caller's
// timeout or cancellation is not an error: the devices found so far are
// returned with Partial set.
func (q *Inquirer) Inquiry(ctx context.Context, durationUnits uint8) (*InquiryResult, error) {
	set := NewDeviceSet()
	res := &InquiryResult{}

	err := q.inquire(ctx, set, durationUnits)
	res.Devices = set.List()
	if err != nil {
		if ctx.Err() != nil {
			res.Partial = true
			return res, nil
		}
		return res, err
	}

	if q.NameTimeout >= 0 {
		res.Partial = !q.resolveNames(ctx, set)
		res.Devices = set.List()
	}
	return res, nil
}

func (q *Inquirer) inquire(ctx context.Context, set *DeviceSet, units uint8) error {
	defer func() {
		cctx, cancel := cleanupCtx(ctx)
		defer cancel()
		if cerr := q.C.SetInquiryEnable(cctx, false, 0); cerr != nil {
			logger.WithField("err", cerr).Warn("inquiry cancel failed")
		}
	}()
	if err := q.C.SetInquiryEnable(ctx, true, units); err != nil {
		return errors.Wrap(err, "start inquiry")
	}
	logger.WithField("units", units).Debug("inquiry started")

	wctx, cancel := context.WithTimeout(ctx, time.Duration(units)*InquiryUnit+inquiryGrace)
	defer cancel()
	for {
		e, err := q.C.NextEvent(wctx)
		if err != nil {
			if ctx.Err() == nil && wctx.Err() != nil {
				logger.Info("inquiry complete not received; ending at window")
				return nil
			}
			return err
		}
		switch e := e.(type) {
		case hci.InquiryResult:
			for _, r := range e.Responses {
				d := Device{
					Key:                    Key{Addr: r.Addr, AddrType: bluing.AddrPublic},
					RSSI:                   r.RSSI,
					HasRSSI:                r.HasRSSI,
					Class:                  ClassOfDevice(r.ClassOfDevice),
					PageScanRepetitionMode: r.PageScanRepetitionMode,
					ClockOffset:            r.ClockOffset,
				}
				if e.Mode == hci.InquiryExtended {
					d.EIR, d.EIRErr = adv.ParseAD(r.EIR)
					if n, ok := d.EIR.LocalName(); ok {
						d.Name = n
					}
				}
				if set.Upsert(d) {
					logger.WithFields(log.Fields{"addr": r.Addr, "rssi": r.RSSI}).Debug("device found")
				}
			}
		case hci.InquiryComplete:
			if e.Status != hci.StatusSuccess {
				return e.Status.Err(hci.OpInquiry.String())
			}
			return nil
		}
	}
}

// resolveNames requests the name of every device in set, one at a time.
// Per-device failures are recorded on the device. It reports false when ctx
// ended the pass.
func (q *Inquirer) resolveNames(ctx context.Context, set *DeviceSet) bool {
	timeout := q.NameTimeout
	if timeout == 0 {
		timeout = DefaultNameTimeout
	}
	for _, d := range set.List() {
		if q.NameLimiter != nil {
			if err := q.NameLimiter.Wait(ctx); err != nil {
				return false
			}
		}
		if ctx.Err() != nil {
			return false
		}
		name, err := q.remoteName(ctx, d, timeout)
		if ctx.Err() != nil {
			return false
		}
		set.update(d.Key, func(e *Device) {
			if err != nil {
				e.NameErr = err
				return
			}
			e.Name, e.NameResolved, e.NameErr = name, true, nil
		})
		if err != nil {
			logger.WithFields(log.Fields{"addr": d.Addr, "err": err}).Debug("name request failed")
		}
	}
	return true
}

func (q *Inquirer) remoteName(ctx context.Context, d Device, timeout time.Duration) (string, error) {
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := hci.SendAndCheck(nctx, q.C, hci.RemoteNameRequest{
		Addr:                   d.Addr,
		PageScanRepetitionMode: d.PageScanRepetitionMode,
		ClockOffset:            d.ClockOffset,
	})
	if err != nil {
		return "", err
	}
	e, err := hci.WaitFor(nctx, q.C, func(e hci.Event) bool {
		r, ok := e.(hci.RemoteNameRequestComplete)
		return ok && r.Addr == d.Addr
	})
	if err != nil {
		cctx, ccancel := cleanupCtx(nctx)
		defer ccancel()
		cerr := hci.SendAndCheck(cctx, q.C, hci.RemoteNameRequestCancel{Addr: d.Addr},
			hci.StatusUnknownConnection, hci.StatusInvalidParameters)
		if cerr != nil {
			logger.WithFields(log.Fields{"addr": d.Addr, "err": cerr}).Warn("name request cancel failed")
		}
		return "", err
	}
	r := e.(hci.RemoteNameRequestComplete)
	if r.Status != hci.StatusSuccess {
		return "", r.Status.Err(hci.OpRemoteNameReq.String())
	}
	return r.Name, nil
}
