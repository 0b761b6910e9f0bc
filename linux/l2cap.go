//go:build linux

package linux

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/XC-/bluing"
)

// Well-known L2CAP PSMs and fixed channels.
const (
	PSMSDP uint16 = 0x0001

	CIDATT uint16 = 0x0004
	CIDSMP uint16 = 0x0006
)

// Address types of struct sockaddr_l2.
const (
	bdaddrBREDR    = 0x00
	bdaddrLEPublic = 0x01
	bdaddrLERandom = 0x02
)

// DefaultRequestTimeout bounds one request when ctx carries no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Conn is a connected L2CAP SEQPACKET socket. Each read returns one PDU, so
// it carries the request/response exchanges of SDP, ATT and SMP directly.
type Conn struct {
	// Timeout bounds a request when ctx has no deadline.
	Timeout time.Duration

	f   io.ReadWriteCloser
	dl  deadliner
	mu  sync.Mutex
	buf []byte
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// DialL2CAP connects to psm (BR/EDR) or to the fixed channel cid (LE) of
// addr. Exactly one of psm and cid is non-zero. The connect is bounded by
// ctx's deadline.
func DialL2CAP(ctx context.Context, addr bluing.BDAddr, typ bluing.AddrType, le bool, psm, cid uint16) (*Conn, error) {
	if (psm == 0) == (cid == 0) {
		return nil, errors.Wrap(bluing.ErrInvalid, "exactly one of psm and cid")
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, errors.Wrap(bluing.ErrResourceUnavailable, err.Error())
	}
	fail := func(err error) (*Conn, error) {
		unix.Close(fd)
		return nil, err
	}

	sa := &unix.SockaddrL2{PSM: psm, CID: cid, Addr: addr.LittleEndian(), AddrType: bdaddrBREDR}
	if le {
		sa.AddrType = bdaddrLEPublic
		if typ == bluing.AddrRandom {
			sa.AddrType = bdaddrLERandom
		}
		// LE fixed channels need the local side bound to an LE address type.
		if err := unix.Bind(fd, &unix.SockaddrL2{CID: cid, AddrType: bdaddrLEPublic}); err != nil {
			return fail(errors.Wrapf(bluing.ErrResourceUnavailable, "bind: %v", err))
		}
	}
	if d, ok := ctx.Deadline(); ok {
		tv := unix.NsecToTimeval(time.Until(d).Nanoseconds())
		if tv.Sec <= 0 && tv.Usec <= 0 {
			return fail(bluing.ContextErr(ctx))
		}
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
			return fail(errors.Wrap(err, "set connect timeout"))
		}
	}

	l := logger.WithFields(log.Fields{"addr": addr, "psm": psm, "cid": cid})
	l.Debug("connecting")
	if err := unix.Connect(fd, sa); err != nil {
		switch err {
		case unix.EAGAIN, unix.EINPROGRESS, unix.ETIMEDOUT, unix.EHOSTDOWN:
			return fail(errors.Wrapf(bluing.ErrTransportTimeout, "connect %s: %v", addr, err))
		case unix.ECONNREFUSED, unix.EACCES, unix.EPERM:
			return fail(&bluing.RejectedError{Op: "connect " + addr.String(), Reason: err.Error()})
		}
		return fail(errors.Wrapf(bluing.ErrResourceUnavailable, "connect %s: %v", addr, err))
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail(errors.Wrap(err, "set non-blocking"))
	}
	f := os.NewFile(uintptr(fd), "l2cap")
	return newConn(f), nil
}

func newConn(f io.ReadWriteCloser) *Conn {
	c := &Conn{f: f, buf: make([]byte, 1024)}
	c.dl, _ = f.(deadliner)
	return c
}

// Request writes pdu and returns the next PDU from the peer.
func (c *Conn) Request(ctx context.Context, pdu []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, bluing.ContextErr(ctx)
	}
	if _, err := c.f.Write(pdu); err != nil {
		return nil, errors.Wrapf(bluing.ErrResourceUnavailable, "write: %v", err)
	}

	if c.dl != nil {
		d, ok := ctx.Deadline()
		if !ok {
			t := c.Timeout
			if t <= 0 {
				t = DefaultRequestTimeout
			}
			d = time.Now().Add(t)
		}
		c.dl.SetReadDeadline(d)
		stop := context.AfterFunc(ctx, func() { c.dl.SetReadDeadline(time.Now()) })
		defer stop()
	}

	n, err := c.f.Read(c.buf)
	switch {
	case err == nil:
		return append([]byte(nil), c.buf[:n]...), nil
	case ctx.Err() != nil:
		return nil, bluing.ContextErr(ctx)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, errors.Wrap(bluing.ErrTransportTimeout, "waiting for response")
	case err == io.EOF:
		return nil, errors.Wrap(bluing.ErrResourceUnavailable, "peer disconnected")
	}
	return nil, errors.Wrap(err, "read")
}

func (c *Conn) Close() error { return c.f.Close() }
