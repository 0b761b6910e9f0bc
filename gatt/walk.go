package gatt

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/att"
)

var logger = log.WithField("pkg", "gatt")

// Status tells what happened to a node's value.
type Status int

const (
	NotRead Status = iota
	Read
	ReadNotPermitted
	ReadFailed
)

func (s Status) String() string {
	switch s {
	case Read:
		return "read"
	case ReadNotPermitted:
		return "read not permitted"
	case ReadFailed:
		return "read failed"
	}
	return "not read"
}

// A Service is a primary service and the characteristics found in its range.
// Err is set when characteristic discovery stopped early.
type Service struct {
	Index     int
	Handle    uint16
	EndHandle uint16
	UUID      bluing.UUID
	Name      string

	Characteristics []*Characteristic
	Err             error
}

// A Characteristic is a characteristic declaration with its value and
// descriptors. Err holds the failure of the value read, or of descriptor
// discovery when the value was read.
type Characteristic struct {
	Index       int
	Handle      uint16
	ValueHandle uint16
	EndHandle   uint16
	UUID        bluing.UUID
	Name        string
	Properties  Property

	Value  []byte
	Status Status
	Err    error

	Descriptors []*Descriptor
}

type Descriptor struct {
	Index  int
	Handle uint16
	UUID   bluing.UUID
	Name   string

	Value  []byte
	Status Status
	Err    error
}

// A Walker discovers every service, characteristic and descriptor of one
// connection and reads every value it may. Requests are issued one at a time.
type Walker struct {
	Client *att.Client
	Names  bluing.UUIDNames

	// RequestTimeout bounds each request; zero leaves only the walk's context.
	RequestTimeout time.Duration
}

func (w *Walker) name(u bluing.UUID) string {
	if w.Names.Len() == 0 {
		return bluing.DefaultUUIDNames().Name(u)
	}
	return w.Names.Name(u)
}

func (w *Walker) reqCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.RequestTimeout)
}

// DiscoverAll walks the whole hierarchy. Only a failure of service discovery
// fails the walk; other failures are attached to the node they concern. When
// ctx is done the walk stops issuing requests and returns what it has along
// with the context error.
func (w *Walker) DiscoverAll(ctx context.Context) ([]*Service, error) {
	svcs, err := w.discoverServices(ctx)
	if err != nil {
		return svcs, err
	}
	for _, s := range svcs {
		if ctx.Err() != nil {
			return svcs, bluing.ContextErr(ctx)
		}
		if err := w.discoverCharacteristics(ctx, s); err != nil {
			s.Err = err
			logger.WithFields(log.Fields{"service": s.UUID, "err": err}).Info("characteristic discovery failed")
		}
		for _, c := range s.Characteristics {
			if ctx.Err() != nil {
				return svcs, bluing.ContextErr(ctx)
			}
			w.walkCharacteristic(ctx, c)
		}
	}
	return svcs, nil
}

func (w *Walker) discoverServices(ctx context.Context) ([]*Service, error) {
	var svcs []*Service
	r := handleRange{0x0001, 0xFFFF}
	for !r.empty() {
		if ctx.Err() != nil {
			return svcs, bluing.ContextErr(ctx)
		}
		rctx, cancel := w.reqCtx(ctx)
		gd, err := w.Client.ReadByGroupType(rctx, r.start, r.end, PrimaryServiceUUID)
		cancel()
		if att.IsNotFound(err) {
			break
		}
		if err != nil {
			return svcs, errors.Wrap(err, "discover services")
		}
		for _, g := range gd {
			s := &Service{Index: len(svcs), Handle: g.Handle, EndHandle: g.EndHandle}
			u, err := bluing.UUIDFromLittleEndian(g.Value)
			if err != nil {
				s.Err = errors.Wrapf(err, "service 0x%04x uuid", g.Handle)
			} else {
				s.UUID, s.Name = u, w.name(u)
			}
			svcs = append(svcs, s)
		}
		if !r.advance(gd[len(gd)-1].EndHandle) {
			break
		}
	}
	return svcs, nil
}

// decodeDeclaration decodes a characteristic declaration value:
// properties, value handle and a 16 or 128-bit type.
func decodeDeclaration(c *Characteristic, v []byte) error {
	if len(v) != 5 && len(v) != 19 {
		return bluing.NewDecodeError(bluing.LengthMismatch, 0, "characteristic declaration of %d bytes", len(v))
	}
	c.Properties = Property(v[0])
	c.ValueHandle = binary.LittleEndian.Uint16(v[1:])
	u, err := bluing.UUIDFromLittleEndian(v[3:])
	if err != nil {
		return err
	}
	c.UUID = u
	return nil
}

func (w *Walker) discoverCharacteristics(ctx context.Context, s *Service) error {
	r := handleRange{s.Handle, s.EndHandle}
	for !r.empty() {
		if ctx.Err() != nil {
			return bluing.ContextErr(ctx)
		}
		rctx, cancel := w.reqCtx(ctx)
		hv, err := w.Client.ReadByType(rctx, r.start, r.end, CharacteristicUUID)
		cancel()
		if att.IsNotFound(err) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "discover characteristics of 0x%04x", s.Handle)
		}
		last := r.start
		for _, e := range hv {
			c := &Characteristic{Index: len(s.Characteristics), Handle: e.Handle, EndHandle: s.EndHandle}
			if err := decodeDeclaration(c, e.Value); err != nil {
				c.Err = errors.Wrapf(err, "declaration 0x%04x", e.Handle)
			} else {
				c.Name = w.name(c.UUID)
			}
			if n := len(s.Characteristics); n > 0 && c.Handle > s.Characteristics[n-1].Handle {
				s.Characteristics[n-1].EndHandle = c.Handle - 1
			}
			s.Characteristics = append(s.Characteristics, c)
			if e.Handle > last {
				last = e.Handle
			}
			if c.ValueHandle > last && c.ValueHandle <= s.EndHandle {
				last = c.ValueHandle
			}
		}
		if !r.advance(last) {
			break
		}
	}
	return nil
}

func (w *Walker) walkCharacteristic(ctx context.Context, c *Characteristic) {
	if c.Err != nil {
		return
	}
	if c.Properties&CharRead == 0 {
		c.Status = ReadNotPermitted
	} else {
		c.Value, c.Status, c.Err = w.read(ctx, c.ValueHandle)
	}
	if err := w.discoverDescriptors(ctx, c); err != nil {
		logger.WithFields(log.Fields{"handle": c.Handle, "err": err}).Info("descriptor discovery failed")
		if c.Err == nil {
			c.Err = err
		}
	}
	for _, d := range c.Descriptors {
		if ctx.Err() != nil {
			return
		}
		d.Value, d.Status, d.Err = w.read(ctx, d.Handle)
	}
}

func (w *Walker) discoverDescriptors(ctx context.Context, c *Characteristic) error {
	if c.ValueHandle >= c.EndHandle {
		return nil
	}
	r := handleRange{c.ValueHandle + 1, c.EndHandle}
	for !r.empty() {
		if ctx.Err() != nil {
			return bluing.ContextErr(ctx)
		}
		rctx, cancel := w.reqCtx(ctx)
		hu, err := w.Client.FindInformation(rctx, r.start, r.end)
		cancel()
		if att.IsNotFound(err) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "discover descriptors of 0x%04x", c.Handle)
		}
		for _, e := range hu {
			c.Descriptors = append(c.Descriptors, &Descriptor{
				Index:  len(c.Descriptors),
				Handle: e.Handle,
				UUID:   e.UUID,
				Name:   w.name(e.UUID),
			})
		}
		if !r.advance(hu[len(hu)-1].Handle) {
			break
		}
	}
	return nil
}

func (w *Walker) read(ctx context.Context, h uint16) ([]byte, Status, error) {
	rctx, cancel := w.reqCtx(ctx)
	defer cancel()
	v, err := w.Client.ReadLong(rctx, h)
	if err != nil {
		logger.WithFields(log.Fields{"handle": h, "err": err}).Debug("read failed")
		return v, ReadFailed, errors.Wrapf(err, "read 0x%04x", h)
	}
	return v, Read, nil
}
