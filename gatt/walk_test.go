package gatt

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/att"
)

type attr struct {
	h    uint16
	typ  bluing.UUID
	v    []byte
	end  uint16
	deny att.ErrorCode
}

// server answers discovery and read requests from a flat attribute table.
type server struct {
	attrs []attr
	reads []uint16
	fail  map[byte]att.ErrorCode
}

func u16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

func errRsp(op byte, h uint16, code att.ErrorCode) []byte {
	return (&att.Error{Opcode: op, Handle: h, Code: code}).Marshal()
}

func (s *server) Request(ctx context.Context, pdu []byte) ([]byte, error) {
	if code, ok := s.fail[pdu[0]]; ok {
		return errRsp(pdu[0], 0, code), nil
	}
	switch pdu[0] {
	case att.OpReadByGroupReq, att.OpReadByTypeReq:
		start, end := u16(pdu[1:]), u16(pdu[3:])
		typ, _ := bluing.UUIDFromLittleEndian(pdu[5:])
		var rsp []byte
		for _, a := range s.attrs {
			if a.h < start || a.h > end || !a.typ.Equal(typ) {
				continue
			}
			e := []byte{byte(a.h), byte(a.h >> 8)}
			if pdu[0] == att.OpReadByGroupReq {
				e = append(e, byte(a.end), byte(a.end>>8))
			}
			e = append(e, a.v...)
			if rsp == nil {
				rsp = []byte{pdu[0] + 1, byte(len(e))}
			} else if int(rsp[1]) != len(e) {
				break
			}
			rsp = append(rsp, e...)
		}
		if rsp == nil {
			return errRsp(pdu[0], start, att.ErrAttrNotFound), nil
		}
		return rsp, nil
	case att.OpFindInfoReq:
		start, end := u16(pdu[1:]), u16(pdu[3:])
		var rsp []byte
		for _, a := range s.attrs {
			if a.h < start || a.h > end {
				continue
			}
			if rsp == nil {
				rsp = []byte{att.OpFindInfoResp, att.FormatUUID16}
			}
			rsp = append(rsp, byte(a.h), byte(a.h>>8))
			rsp = append(rsp, a.typ.Bytes()...)
		}
		if rsp == nil {
			return errRsp(pdu[0], start, att.ErrAttrNotFound), nil
		}
		return rsp, nil
	case att.OpReadReq, att.OpReadBlobReq:
		h := u16(pdu[1:])
		s.reads = append(s.reads, h)
		for _, a := range s.attrs {
			if a.h != h {
				continue
			}
			if a.deny != 0 {
				return errRsp(pdu[0], h, a.deny), nil
			}
			v := a.v
			if pdu[0] == att.OpReadBlobReq {
				v = v[u16(pdu[3:]):]
			}
			if len(v) > att.DefaultMTU-1 {
				v = v[:att.DefaultMTU-1]
			}
			return append([]byte{pdu[0] + 1}, v...), nil
		}
		return errRsp(pdu[0], h, att.ErrInvalidHandle), nil
	}
	return errRsp(pdu[0], 0, att.ErrReqNotSupp), nil
}

func decl(p Property, vh uint16, u uint16) []byte {
	return []byte{byte(p), byte(vh), byte(vh >> 8), byte(u), byte(u >> 8)}
}

func heartRateDB() *server {
	return &server{attrs: []attr{
		{h: 1, typ: PrimaryServiceUUID, v: []byte{0x00, 0x18}, end: 6},
		{h: 2, typ: CharacteristicUUID, v: decl(CharRead, 3, 0x2A00)},
		{h: 3, typ: bluing.UUID16(0x2A00), v: []byte("bluing")},
		{h: 4, typ: CharacteristicUUID, v: decl(CharNotify, 5, 0x2A37)},
		{h: 5, typ: bluing.UUID16(0x2A37), v: []byte{0x00, 0x48}},
		{h: 6, typ: ClientCharacteristicConfigUUID, v: []byte{0x01, 0x00}},
		{h: 7, typ: PrimaryServiceUUID, v: []byte{0x0F, 0x18}, end: 9},
		{h: 8, typ: CharacteristicUUID, v: decl(CharRead|CharNotify, 9, 0x2A19)},
		{h: 9, typ: bluing.UUID16(0x2A19), v: []byte{0x64}, deny: att.ErrAuthentication},
	}}
}

func TestDiscoverAll(t *testing.T) {
	srv := heartRateDB()
	w := &Walker{Client: att.NewClient(srv)}
	svcs, err := w.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, svcs, 2)

	gap := svcs[0]
	assert.Equal(t, uint16(6), gap.EndHandle)
	require.Len(t, gap.Characteristics, 2)

	name := gap.Characteristics[0]
	assert.Equal(t, Read, name.Status)
	assert.Equal(t, []byte("bluing"), name.Value)
	assert.Equal(t, uint16(3), name.EndHandle)
	assert.Empty(t, name.Descriptors)

	hr := gap.Characteristics[1]
	assert.Equal(t, ReadNotPermitted, hr.Status)
	assert.Nil(t, hr.Value)
	assert.NoError(t, hr.Err)
	require.Len(t, hr.Descriptors, 1)
	assert.Equal(t, Read, hr.Descriptors[0].Status)
	assert.Equal(t, []byte{0x01, 0x00}, hr.Descriptors[0].Value)

	for _, h := range srv.reads {
		if h == 5 {
			t.Errorf("read issued for handle 5 which lacks the read property")
		}
	}

	batt := svcs[1]
	require.Len(t, batt.Characteristics, 1)
	level := batt.Characteristics[0]
	assert.Equal(t, ReadFailed, level.Status)
	assert.True(t, bluing.IsRejected(level.Err))
	code, ok := att.Code(level.Err)
	assert.True(t, ok)
	assert.Equal(t, att.ErrAuthentication, code)
	assert.Equal(t, 1, batt.Index)
}

func TestDiscoverAllServiceFailure(t *testing.T) {
	srv := heartRateDB()
	srv.fail = map[byte]att.ErrorCode{att.OpReadByGroupReq: att.ErrUnlikely}
	svcs, err := (&Walker{Client: att.NewClient(srv)}).DiscoverAll(context.Background())
	assert.True(t, bluing.IsRejected(err))
	assert.Empty(t, svcs)
}

func TestDiscoverAllCharacteristicFailure(t *testing.T) {
	srv := heartRateDB()
	srv.fail = map[byte]att.ErrorCode{att.OpReadByTypeReq: att.ErrInsuffResources}
	svcs, err := (&Walker{Client: att.NewClient(srv)}).DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, svcs, 2)
	for _, s := range svcs {
		assert.Error(t, s.Err)
		assert.Empty(t, s.Characteristics)
	}
}

func TestDiscoverAllEmptyServer(t *testing.T) {
	svcs, err := (&Walker{Client: att.NewClient(&server{})}).DiscoverAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, svcs)
}

func TestDiscoverAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := heartRateDB()
	n := 0
	tr := transportFunc(func(c context.Context, pdu []byte) ([]byte, error) {
		n++
		if n == 2 {
			cancel()
		}
		return srv.Request(c, pdu)
	})
	svcs, err := (&Walker{Client: att.NewClient(tr)}).DiscoverAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, svcs, 2)
	assert.Equal(t, 2, n)
}

type transportFunc func(ctx context.Context, pdu []byte) ([]byte, error)

func (f transportFunc) Request(ctx context.Context, pdu []byte) ([]byte, error) { return f(ctx, pdu) }

func TestHandleRange(t *testing.T) {
	cases := []struct {
		r    handleRange
		last uint16
		ok   bool
		next uint16
	}{
		{handleRange{1, 0xFFFF}, 5, true, 6},
		{handleRange{1, 0xFFFF}, 0xFFFF, false, 1},
		{handleRange{6, 9}, 9, false, 6},
		{handleRange{6, 9}, 4, false, 6},
	}
	for _, tt := range cases {
		r := tt.r
		ok := r.advance(tt.last)
		if ok != tt.ok || r.start != tt.next {
			t.Errorf("%v.advance(%d): got %v %d want %v %d", tt.r, tt.last, ok, r.start, tt.ok, tt.next)
		}
	}
}

func TestPropertyNames(t *testing.T) {
	assert.Equal(t, "read, notify", (CharRead | CharNotify).String())
	assert.Empty(t, Property(0).Names())
}
