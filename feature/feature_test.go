package feature

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
	"github.com/XC-/bluing/hci/hcitest"
)

func TestDecodePageExhaustive(t *testing.T) {
	all := [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	cases := []struct {
		kind Kind
		page int
	}{
		{LMP, 0}, {LMP, 1}, {LMP, 2}, {LMP, 3}, {LL, 0}, {LL, 1},
	}
	for _, tt := range cases {
		fs := DecodePage(tt.kind, all, tt.page)
		if len(fs.Bits) != 64 {
			t.Fatalf("DecodePage(%v, %d): got %d bits want 64", tt.kind, tt.page, len(fs.Bits))
		}
		if m := fs.Map(); len(m) != 64 {
			t.Errorf("DecodePage(%v, %d): got %d distinct names want 64", tt.kind, tt.page, len(m))
		}
		for i, b := range fs.Bits {
			if b.Index != i || !b.Supported || b.Name == "" {
				t.Errorf("DecodePage(%v, %d) bit %d: got %+v", tt.kind, tt.page, i, b)
			}
			if b.Reserved && b.Name != fmt.Sprintf("reserved/unknown-bit-%d", i) {
				t.Errorf("DecodePage(%v, %d) bit %d: got name %q", tt.kind, tt.page, i, b.Name)
			}
		}
	}
}

func TestDecodePage(t *testing.T) {
	fs := DecodePage(LMP, [8]byte{0x05, 0, 0, 0x01, 0, 0, 0, 0x80}, 0)
	assert.Equal(t, []string{"3 slot packets", "Encryption", "reserved/unknown-bit-24", "Extended features"}, fs.Supported())
	assert.True(t, HasExtended(fs))
	assert.True(t, fs.Bits[24].Reserved)
	assert.False(t, fs.Map()["5 slot packets"])

	ll := DecodePage(LL, [8]byte{0x01, 0x01}, 0)
	assert.Equal(t, []string{"LE Encryption", "LE 2M PHY"}, ll.Supported())
	assert.False(t, HasExtended(ll), "LL pages have no extension bit")

	custom := NewTables(map[Kind][]map[int]string{LMP: {{0: "zero"}}})
	d := Decoder{Tables: &custom}
	assert.Equal(t, []string{"zero"}, d.Decode(LMP, [8]byte{0x01}, 0).Supported())
}

const handle = 0x0040

var target = bluing.MustParseBDAddr("00:1A:7D:DA:71:13")

func lmpController(maxPage uint8, failPage uint8) *hcitest.Controller {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		switch cmd := cmd.(type) {
		case hci.CreateConnection:
			return &hcitest.Reply{Events: []hci.Event{
				hci.ConnectionComplete{ConnectionHandle: handle, Addr: cmd.Addr, LinkType: hci.LinkACL},
			}}
		case hci.ReadRemoteSupportedFeatures:
			return &hcitest.Reply{Events: []hci.Event{
				hci.ReadRemoteFeaturesComplete{ConnectionHandle: handle, Features: [8]byte{0xFF, 0, 0, 0, 0, 0, 0, 0x80}},
			}}
		case hci.ReadRemoteExtendedFeatures:
			ev := hci.ReadRemoteExtendedFeaturesComplete{ConnectionHandle: handle, Page: cmd.Page, MaxPage: maxPage, Features: [8]byte{0x0F}}
			if cmd.Page == failPage {
				ev.Status = hci.StatusUnsupportedRemoteFeature
			}
			return &hcitest.Reply{Events: []hci.Event{ev}}
		case hci.Disconnect:
			return &hcitest.Reply{Events: []hci.Event{hci.DisconnectionComplete{ConnectionHandle: handle}}}
		}
		return nil
	}
	return c
}

func TestReadLMP(t *testing.T) {
	c := lmpController(2, 0xFF)
	s := &Scanner{C: c}
	pages, err := s.ReadLMP(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[1].Page)
	assert.Contains(t, pages[1].Supported(), "Secure Connections (Host Support)")
	assert.Contains(t, pages[2].Supported(), "Synchronization Scan")
	assert.Equal(t, 2, c.Count(hci.OpReadRemoteExtFeatures))
	assert.Equal(t, 1, c.Count(hci.OpDisconnect))
}

func TestReadLMPCapsExtendedPages(t *testing.T) {
	c := lmpController(0xFF, 0xFF)
	pages, err := (&Scanner{C: c}).ReadLMP(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, pages, MaxLMPPage+1)
	assert.Equal(t, MaxLMPPage, pages[MaxLMPPage].Page)
	assert.Len(t, pages[MaxLMPPage].Bits, 64)
	assert.Equal(t, MaxLMPPage, c.Count(hci.OpReadRemoteExtFeatures))
}

func TestReadLMPPartialOnRejection(t *testing.T) {
	c := lmpController(2, 2)
	s := &Scanner{C: c}
	pages, err := s.ReadLMP(context.Background(), target)
	require.Error(t, err)
	assert.True(t, bluing.IsRejected(err))
	assert.Len(t, pages, 2, "pages before the failure are kept")
	assert.Equal(t, 1, c.Count(hci.OpDisconnect), "link is torn down on failure")
}

func TestReadLMPConnectTimeout(t *testing.T) {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		if _, ok := cmd.(hci.CreateConnection); ok {
			return &hcitest.Reply{}
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := (&Scanner{C: c}).ReadLMP(ctx, target)
	require.Error(t, err)
	assert.True(t, bluing.IsTimeout(err), "got %v", err)
	assert.Equal(t, 1, c.Count(hci.OpCreateConnCancel))
	assert.Zero(t, c.Count(hci.OpDisconnect))
}

func TestReadLL(t *testing.T) {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		switch cmd := cmd.(type) {
		case hci.LECreateConnection:
			return &hcitest.Reply{Events: []hci.Event{
				hci.LEConnectionCompleteEvent{ConnectionHandle: handle, PeerAddress: cmd.PeerAddress, PeerAddressType: cmd.PeerAddressType},
			}}
		case hci.LEReadRemoteFeatures:
			return &hcitest.Reply{Events: []hci.Event{
				hci.LEReadRemoteFeaturesCompleteEvent{ConnectionHandle: handle, Features: [8]byte{0x21}},
			}}
		case hci.Disconnect:
			return &hcitest.Reply{Events: []hci.Event{hci.DisconnectionComplete{ConnectionHandle: handle}}}
		}
		return nil
	}
	fs, err := (&Scanner{C: c}).ReadLL(context.Background(), target, bluing.AddrRandom)
	require.NoError(t, err)
	assert.Equal(t, LL, fs.Kind)
	assert.Equal(t, []string{"LE Encryption", "LE Data Packet Length Extension"}, fs.Supported())
	assert.Equal(t, 1, c.Count(hci.OpDisconnect))
}

func TestReadLLConnectRejected(t *testing.T) {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		if _, ok := cmd.(hci.LECreateConnection); ok {
			return &hcitest.Reply{Events: []hci.Event{
				hci.LEConnectionCompleteEvent{Status: hci.StatusConnFailedToEstablish},
			}}
		}
		return nil
	}
	_, err := (&Scanner{C: c}).ReadLL(context.Background(), target, bluing.AddrPublic)
	assert.True(t, bluing.IsRejected(err))
	assert.Zero(t, c.Count(hci.OpLEReadRemoteFeatures))
}
