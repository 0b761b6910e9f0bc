package sdp

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
)

var logger = log.WithField("pkg", "sdp")

// maxRounds bounds continuation round trips per transaction.
const maxRounds = 64

// Transport carries one request PDU to the SDP server and returns its
// response PDU. Implementations honor ctx for the deadline.
type Transport interface {
	Request(ctx context.Context, pdu []byte) ([]byte, error)
}

// Client queries the SDP server of one peer.
type Client struct {
	T       Transport
	Decoder Decoder
	// MaxBytes is the MaximumAttributeByteCount of each request; zero
	// means 0xFFFF.
	MaxBytes uint16

	mu  sync.Mutex
	tid uint16
}

// Result is the outcome of a service search. Records decoded before a
// failure are kept.
type Result struct {
	Records []ServiceRecord
	Errors  []RecordError
}

func (c *Client) nextTID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tid++
	return c.tid
}

func (c *Client) roundTrip(ctx context.Context, id uint8, params []byte, want uint8) ([]byte, error) {
	tid := c.nextTID()
	rsp, err := c.T.Request(ctx, pdu{ID: id, TID: tid, Params: params}.marshal())
	if err != nil {
		return nil, err
	}
	p, err := parsePDU(rsp)
	if err != nil {
		return nil, err
	}
	if p.TID != tid {
		return nil, bluing.NewDecodeError(bluing.Invalid, 1, "transaction ID 0x%04X, want 0x%04X", p.TID, tid)
	}
	switch p.ID {
	case want:
		return p.Params, nil
	case PDUErrorResponse:
		return nil, parseErrorResponse(p.Params)
	}
	return nil, bluing.NewDecodeError(bluing.Invalid, 0, "PDU ID 0x%02X, want 0x%02X", p.ID, want)
}

// SearchAttributes runs an SDP_ServiceSearchAttributeRequest for the
// records matching every UUID of pattern, following continuation states
// until the server is done, and decodes each record. With no attribute
// ranges all attributes are requested.
func (c *Client) SearchAttributes(ctx context.Context, pattern []bluing.UUID, ranges ...AttributeRange) (*Result, error) {
	if len(pattern) == 0 {
		return nil, errors.Wrap(bluing.ErrInvalid, "empty service search pattern")
	}
	if len(ranges) == 0 {
		ranges = AllAttributes
	}
	req := ServiceSearchAttributeRequest{
		Pattern:    pattern,
		MaxBytes:   c.MaxBytes,
		Attributes: ranges,
	}
	if req.MaxBytes == 0 {
		req.MaxBytes = 0xFFFF
	}
	var lists bytes.Buffer
	for round := 0; ; round++ {
		if round == maxRounds {
			return nil, bluing.NewDecodeError(bluing.Invalid, 0, "no final fragment after %d continuations", maxRounds)
		}
		params, err := c.roundTrip(ctx, PDUServiceSearchAttributeRequest, req.params(), PDUServiceSearchAttributeResponse)
		if err != nil {
			return nil, errors.Wrap(err, "service search attribute")
		}
		rsp, err := parseSearchAttributeResponse(params)
		if err != nil {
			return nil, errors.Wrap(err, "service search attribute response")
		}
		lists.Write(rsp.AttributeLists)
		if len(rsp.Continuation) == 0 {
			break
		}
		logger.WithField("round", round+1).Debug("continuing attribute search")
		req.Continuation = rsp.Continuation
	}
	recs, errs, err := c.Decoder.DecodeRecordList(lists.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "attribute lists")
	}
	for _, e := range errs {
		logger.WithError(e.Err).WithField("record", e.Index).Warn("malformed service record")
	}
	return &Result{Records: recs, Errors: errs}, nil
}

// Search runs an SDP_ServiceSearchRequest and returns the handles of the
// matching records.
func (c *Client) Search(ctx context.Context, pattern []bluing.UUID, maxRecords uint16) ([]uint32, error) {
	if len(pattern) == 0 {
		return nil, errors.Wrap(bluing.ErrInvalid, "empty service search pattern")
	}
	req := ServiceSearchRequest{Pattern: pattern, MaxRecords: maxRecords}
	var handles []uint32
	for round := 0; ; round++ {
		if round == maxRounds {
			return nil, bluing.NewDecodeError(bluing.Invalid, 0, "no final fragment after %d continuations", maxRounds)
		}
		params, err := c.roundTrip(ctx, PDUServiceSearchRequest, req.params(), PDUServiceSearchResponse)
		if err != nil {
			return nil, errors.Wrap(err, "service search")
		}
		rsp, err := parseSearchResponse(params)
		if err != nil {
			return nil, errors.Wrap(err, "service search response")
		}
		handles = append(handles, rsp.Handles...)
		if len(rsp.Continuation) == 0 {
			return handles, nil
		}
		req.Continuation = rsp.Continuation
	}
}

// BrowseAll searches the public browse group, which lists every browsable
// record of a server.
func (c *Client) BrowseAll(ctx context.Context) (*Result, error) {
	return c.SearchAttributes(ctx, []bluing.UUID{bluing.UUID16(PublicBrowseRoot)})
}

// PublicBrowseRoot is the service class of the root browse group.
const PublicBrowseRoot = 0x1002
