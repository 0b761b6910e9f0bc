package att

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
)

var logger = log.WithField("pkg", "att")

// Transport carries one request PDU and returns the matching response PDU.
// ATT allows one outstanding request per bearer; the client never pipelines.
type Transport interface {
	Request(ctx context.Context, pdu []byte) ([]byte, error)
}

// Client issues ATT requests sequentially over T.
type Client struct {
	T Transport

	mu  sync.Mutex
	mtu int
}

// NewClient returns a client using the default ATT_MTU.
func NewClient(t Transport) *Client { return &Client{T: t, mtu: DefaultMTU} }

// MTU returns the current ATT_MTU.
func (c *Client) MTU() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mtu == 0 {
		return DefaultMTU
	}
	return c.mtu
}

func (c *Client) request(ctx context.Context, req []byte) ([]byte, error) {
	rsp, err := c.T.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(rsp) == 0 {
		return nil, bluing.NewDecodeError(bluing.Truncated, 0, "empty ATT PDU")
	}
	if rsp[0] == OpError {
		if len(rsp) != 5 {
			return nil, bluing.NewDecodeError(bluing.LengthMismatch, 0, "error response of %d bytes", len(rsp))
		}
		return nil, &Error{Opcode: rsp[1], Handle: binary.LittleEndian.Uint16(rsp[2:]), Code: ErrorCode(rsp[4])}
	}
	if want := respFor[req[0]]; rsp[0] != want {
		return nil, bluing.NewDecodeError(bluing.Invalid, 0, "opcode 0x%02x, want 0x%02x", rsp[0], want)
	}
	return rsp[1:], nil
}

// ExchangeMTU offers mtu and adopts the smaller of it and the server's.
func (c *Client) ExchangeMTU(ctx context.Context, mtu int) (int, error) {
	if mtu < DefaultMTU || mtu > 0xFFFF {
		return 0, errors.Wrapf(bluing.ErrInvalid, "mtu %d", mtu)
	}
	req := []byte{OpMtuReq, 0, 0}
	binary.LittleEndian.PutUint16(req[1:], uint16(mtu))
	rsp, err := c.request(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(rsp) != 2 {
		return 0, bluing.NewDecodeError(bluing.LengthMismatch, 1, "mtu response of %d bytes", len(rsp))
	}
	srv := int(binary.LittleEndian.Uint16(rsp))
	if srv < mtu {
		mtu = srv
	}
	if mtu < DefaultMTU {
		mtu = DefaultMTU
	}
	c.mu.Lock()
	c.mtu = mtu
	c.mu.Unlock()
	return mtu, nil
}

func rangeReq(op byte, start, end uint16, typ []byte) []byte {
	b := make([]byte, 5, 5+len(typ))
	b[0] = op
	binary.LittleEndian.PutUint16(b[1:], start)
	binary.LittleEndian.PutUint16(b[3:], end)
	return append(b, typ...)
}

// splitList splits an attribute data list whose element length is given by
// its first byte.
func splitList(rsp []byte, min int) ([][]byte, error) {
	if len(rsp) < 1 {
		return nil, bluing.NewDecodeError(bluing.Truncated, 1, "missing element length")
	}
	n := int(rsp[0])
	d := rsp[1:]
	if n < min {
		return nil, bluing.NewDecodeError(bluing.Invalid, 1, "element length %d below %d", n, min)
	}
	if len(d) == 0 || len(d)%n != 0 {
		return nil, bluing.NewDecodeError(bluing.LengthMismatch, 2, "%d bytes is not a list of %d-byte elements", len(d), n)
	}
	var l [][]byte
	for ; len(d) > 0; d = d[n:] {
		l = append(l, d[:n])
	}
	return l, nil
}

// GroupData is one element of a Read By Group Type response.
type GroupData struct {
	Handle    uint16
	EndHandle uint16
	Value     []byte
}

// ReadByGroupType reads the grouping attributes of type typ in [start, end].
func (c *Client) ReadByGroupType(ctx context.Context, start, end uint16, typ bluing.UUID) ([]GroupData, error) {
	rsp, err := c.request(ctx, rangeReq(OpReadByGroupReq, start, end, typ.Bytes()))
	if err != nil {
		return nil, err
	}
	l, err := splitList(rsp, 4)
	if err != nil {
		return nil, err
	}
	gd := make([]GroupData, len(l))
	for i, e := range l {
		gd[i] = GroupData{
			Handle:    binary.LittleEndian.Uint16(e),
			EndHandle: binary.LittleEndian.Uint16(e[2:]),
			Value:     append([]byte(nil), e[4:]...),
		}
	}
	return gd, nil
}

// HandleValue is one element of a Read By Type response.
type HandleValue struct {
	Handle uint16
	Value  []byte
}

// ReadByType reads the attributes of type typ in [start, end].
func (c *Client) ReadByType(ctx context.Context, start, end uint16, typ bluing.UUID) ([]HandleValue, error) {
	rsp, err := c.request(ctx, rangeReq(OpReadByTypeReq, start, end, typ.Bytes()))
	if err != nil {
		return nil, err
	}
	l, err := splitList(rsp, 2)
	if err != nil {
		return nil, err
	}
	hv := make([]HandleValue, len(l))
	for i, e := range l {
		hv[i] = HandleValue{Handle: binary.LittleEndian.Uint16(e), Value: append([]byte(nil), e[2:]...)}
	}
	return hv, nil
}

// HandleUUID is one element of a Find Information response.
type HandleUUID struct {
	Handle uint16
	UUID   bluing.UUID
}

// FindInformation lists the handles and types of the attributes in
// [start, end].
func (c *Client) FindInformation(ctx context.Context, start, end uint16) ([]HandleUUID, error) {
	rsp, err := c.request(ctx, rangeReq(OpFindInfoReq, start, end, nil))
	if err != nil {
		return nil, err
	}
	if len(rsp) < 1 {
		return nil, bluing.NewDecodeError(bluing.Truncated, 1, "missing format")
	}
	var w int
	switch rsp[0] {
	case FormatUUID16:
		w = 2 + 2
	case FormatUUID128:
		w = 2 + 16
	default:
		return nil, bluing.NewDecodeError(bluing.Invalid, 1, "format 0x%02x", rsp[0])
	}
	d := rsp[1:]
	if len(d) == 0 || len(d)%w != 0 {
		return nil, bluing.NewDecodeError(bluing.LengthMismatch, 2, "%d bytes is not a list of %d-byte elements", len(d), w)
	}
	var hu []HandleUUID
	for ; len(d) > 0; d = d[w:] {
		u, _ := bluing.UUIDFromLittleEndian(d[2:w])
		hu = append(hu, HandleUUID{Handle: binary.LittleEndian.Uint16(d), UUID: u})
	}
	return hu, nil
}

// Read reads the value of handle, up to ATT_MTU-1 bytes.
func (c *Client) Read(ctx context.Context, handle uint16) ([]byte, error) {
	req := []byte{OpReadReq, byte(handle), byte(handle >> 8)}
	rsp, err := c.request(ctx, req)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), rsp...), nil
}

// ReadBlob reads the value of handle from offset.
func (c *Client) ReadBlob(ctx context.Context, handle, offset uint16) ([]byte, error) {
	req := []byte{OpReadBlobReq, byte(handle), byte(handle >> 8), byte(offset), byte(offset >> 8)}
	rsp, err := c.request(ctx, req)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), rsp...), nil
}

// ReadLong reads a value that may exceed one PDU, continuing with Read Blob
// while responses are full. It stops at MaxAttributeLength.
func (c *Client) ReadLong(ctx context.Context, handle uint16) ([]byte, error) {
	v, err := c.Read(ctx, handle)
	if err != nil {
		return nil, err
	}
	full := c.MTU() - 1
	for n := len(v); n == full && len(v) < MaxAttributeLength; {
		b, err := c.ReadBlob(ctx, handle, uint16(len(v)))
		if code, ok := Code(err); ok && (code == ErrAttrNotLong || code == ErrInvalidOffset) {
			break
		}
		if err != nil {
			logger.WithFields(log.Fields{"handle": handle, "offset": len(v), "err": err}).Debug("read blob failed")
			return v, err
		}
		v = append(v, b...)
		n = len(b)
	}
	if len(v) > MaxAttributeLength {
		v = v[:MaxAttributeLength]
	}
	return v, nil
}
