package feature

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
)

var logger = log.WithField("pkg", "feature")

// CleanupTimeout bounds the teardown commands sent after the caller's
// context is done.
const CleanupTimeout = 3 * time.Second

// Scanner reads feature pages of remote devices over a controller it owns
// for the duration of each call.
type Scanner struct {
	C       hci.Controller
	Decoder Decoder
}

func cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), CleanupTimeout)
}

// ReadLMP connects to addr over ACL and reads LMP page 0, then pages 1 up to
// the remote's maximum page while page 0 advertises extended features. The
// link is always torn down before returning. Pages read before a failure
// are returned together with the error.
func (s *Scanner) ReadLMP(ctx context.Context, addr bluing.BDAddr) ([]FeatureSet, error) {
	handle, err := s.connectACL(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer func() {
		cctx, cancel := cleanupContext()
		defer cancel()
		hci.DisconnectAndWait(cctx, s.C, handle)
	}()

	if err := hci.SendAndCheck(ctx, s.C, hci.ReadRemoteSupportedFeatures{ConnectionHandle: handle}); err != nil {
		return nil, errors.Wrap(err, "read remote supported features")
	}
	e, err := hci.WaitFor(ctx, s.C, func(e hci.Event) bool {
		f, ok := e.(hci.ReadRemoteFeaturesComplete)
		return ok && f.ConnectionHandle == handle
	})
	if err != nil {
		return nil, errors.Wrap(err, "read remote supported features")
	}
	rf := e.(hci.ReadRemoteFeaturesComplete)
	if err := rf.Status.Err("read remote supported features"); err != nil {
		return nil, err
	}
	page0 := s.Decoder.Decode(LMP, rf.Features, 0)
	pages := []FeatureSet{page0}
	if !HasExtended(page0) {
		return pages, nil
	}

	for page, last := 1, 1; page <= last; page++ {
		if err := hci.SendAndCheck(ctx, s.C, hci.ReadRemoteExtendedFeatures{ConnectionHandle: handle, Page: uint8(page)}); err != nil {
			return pages, errors.Wrapf(err, "read remote extended features page %d", page)
		}
		e, err := hci.WaitFor(ctx, s.C, func(e hci.Event) bool {
			f, ok := e.(hci.ReadRemoteExtendedFeaturesComplete)
			return ok && f.ConnectionHandle == handle
		})
		if err != nil {
			return pages, errors.Wrapf(err, "read remote extended features page %d", page)
		}
		xf := e.(hci.ReadRemoteExtendedFeaturesComplete)
		if err := xf.Status.Err("read remote extended features"); err != nil {
			return pages, err
		}
		pages = append(pages, s.Decoder.Decode(LMP, xf.Features, int(xf.Page)))
		last = min(int(xf.MaxPage), MaxLMPPage)
	}
	return pages, nil
}

func (s *Scanner) connectACL(ctx context.Context, addr bluing.BDAddr) (uint16, error) {
	l := logger.WithField("addr", addr)
	cmd := hci.CreateConnection{Addr: addr, PacketType: hci.DefaultACLPacketTypes, PageScanRepetitionMode: 0x02, AllowRoleSwitch: true}
	if err := hci.SendAndCheck(ctx, s.C, cmd); err != nil {
		return 0, errors.Wrap(err, "create connection")
	}
	e, err := hci.WaitFor(ctx, s.C, func(e hci.Event) bool {
		c, ok := e.(hci.ConnectionComplete)
		return ok && c.Addr == addr
	})
	if err != nil {
		cctx, cancel := cleanupContext()
		defer cancel()
		if cerr := hci.SendAndCheck(cctx, s.C, hci.CreateConnectionCancel{Addr: addr}, hci.StatusUnknownConnection, hci.StatusCommandDisallowed); cerr != nil {
			l.WithError(cerr).Warn("create connection cancel failed")
		}
		return 0, errors.Wrap(err, "create connection")
	}
	cc := e.(hci.ConnectionComplete)
	if err := cc.Status.Err("create connection"); err != nil {
		return 0, err
	}
	l.WithField("handle", cc.ConnectionHandle).Debug("ACL link up")
	return cc.ConnectionHandle, nil
}

// ReadLL connects to addr over LE and reads its LL feature page.
func (s *Scanner) ReadLL(ctx context.Context, addr bluing.BDAddr, typ bluing.AddrType) (FeatureSet, error) {
	l := logger.WithField("addr", addr)
	if err := hci.SendAndCheck(ctx, s.C, hci.NewLECreateConnection(addr, typ)); err != nil {
		return FeatureSet{}, errors.Wrap(err, "le create connection")
	}
	e, err := hci.WaitFor(ctx, s.C, func(e hci.Event) bool {
		c, ok := e.(hci.LEConnectionCompleteEvent)
		return ok && (c.PeerAddress == addr || c.Status != hci.StatusSuccess)
	})
	if err != nil {
		cctx, cancel := cleanupContext()
		defer cancel()
		if cerr := hci.SendAndCheck(cctx, s.C, hci.LECreateConnectionCancel{}, hci.StatusCommandDisallowed); cerr != nil {
			l.WithError(cerr).Warn("le create connection cancel failed")
		}
		return FeatureSet{}, errors.Wrap(err, "le create connection")
	}
	cc := e.(hci.LEConnectionCompleteEvent)
	if err := cc.Status.Err("le create connection"); err != nil {
		return FeatureSet{}, err
	}
	handle := cc.ConnectionHandle
	defer func() {
		cctx, cancel := cleanupContext()
		defer cancel()
		hci.DisconnectAndWait(cctx, s.C, handle)
	}()

	if err := hci.SendAndCheck(ctx, s.C, hci.LEReadRemoteFeatures{ConnectionHandle: handle}); err != nil {
		return FeatureSet{}, errors.Wrap(err, "le read remote features")
	}
	e, err = hci.WaitFor(ctx, s.C, func(e hci.Event) bool {
		f, ok := e.(hci.LEReadRemoteFeaturesCompleteEvent)
		return ok && f.ConnectionHandle == handle
	})
	if err != nil {
		return FeatureSet{}, errors.Wrap(err, "le read remote features")
	}
	rf := e.(hci.LEReadRemoteFeaturesCompleteEvent)
	if err := rf.Status.Err("le read remote features"); err != nil {
		return FeatureSet{}, err
	}
	return s.Decoder.Decode(LL, rf.Features, 0), nil
}
