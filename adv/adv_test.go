package adv

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
)

func TestAppendName(t *testing.T) {
	cases := []struct {
		curr      []byte
		name      string
		wantBytes []byte
		wantLen   int
	}{
		{
			curr:      []byte{},
			name:      "ABCDE",
			wantBytes: []byte{0x06, byte(TypeCompleteName), 'A', 'B', 'C', 'D', 'E'},
			wantLen:   7,
		},
		{
			curr:      []byte("111111111122222222223333"),
			name:      "ABCDE",
			wantBytes: append([]byte("111111111122222222223333"), []byte{0x06, byte(TypeCompleteName), 'A', 'B', 'C', 'D', 'E'}...),
			wantLen:   31,
		},
		{
			curr:      []byte("1111111111222222222233333"),
			name:      "ABCDE",
			wantBytes: append([]byte("1111111111222222222233333"), []byte{0x05, byte(TypeShortName), 'A', 'B', 'C', 'D'}...),
			wantLen:   31,
		},
	}
	for _, tt := range cases {
		p := &Packet{b: append([]byte(nil), tt.curr...), max: MaxEIRPacketLength}
		p.AppendName(tt.name)
		if !bytes.Equal(p.Bytes(), tt.wantBytes) {
			t.Errorf("%q p.AppendName(%q) got %x want %x", tt.curr, tt.name, p.Bytes(), tt.wantBytes)
		}
		if p.Len() != tt.wantLen {
			t.Errorf("%q p.AppendName(%q) got %d want %d", tt.curr, tt.name, p.Len(), tt.wantLen)
		}
	}
}

func TestParseAD(t *testing.T) {
	cases := []struct {
		in      []byte
		types   []Type
		wanterr bool
	}{
		{in: nil},
		{in: []byte{0x02, 0x01, 0x06}, types: []Type{TypeFlags}},
		{in: []byte{0x02, 0x01, 0x06, 0x00, 0x00, 0x00}, types: []Type{TypeFlags}},
		{in: []byte{0x02, 0x01, 0x06, 0x03, 0x03, 0x0f, 0x18}, types: []Type{TypeFlags, TypeAllUUID16}},
		{in: []byte{0x02, 0x01, 0x06, 0x05, 0x09, 'a'}, types: []Type{TypeFlags}, wanterr: true},
		{in: []byte{0x01}, wanterr: true},
		{in: []byte{0x01, 0xFF}, types: []Type{TypeManufacturerData}},
	}
	for _, tt := range cases {
		fields, err := ParseAD(tt.in)
		if tt.wanterr != (err != nil) {
			t.Errorf("ParseAD(% X): got err %v, wanterr %v", tt.in, err, tt.wanterr)
		}
		if tt.wanterr && !bluing.IsDecode(err) {
			t.Errorf("ParseAD(% X): got %v want decode error", tt.in, err)
		}
		var types []Type
		for _, f := range fields {
			types = append(types, f.Type)
		}
		if !reflect.DeepEqual(types, tt.types) {
			t.Errorf("ParseAD(% X): got types %v want %v", tt.in, types, tt.types)
		}
	}
}

func TestReportAccessors(t *testing.T) {
	p := NewPacket()
	require.NoError(t, p.AppendFlags(FlagGeneralDiscoverable|FlagLEOnly))
	require.NoError(t, p.AppendField(TypeTxPower, []byte{0xF8}))
	require.NoError(t, p.AppendField(TypeAllUUID16, []byte{0x0f, 0x18, 0x0a, 0x18}))
	require.True(t, p.AppendManufacturerData(0x027D, []byte{0x01, 0x02}))
	require.NoError(t, p.AppendField(TypeShortName, []byte("HW")))

	r := NewReport(hci.AdvReport{
		EventType: hci.AdvInd,
		AddrType:  bluing.AddrRandom,
		Addr:      bluing.MustParseBDAddr("C0:11:22:33:44:55"),
		Data:      p.Bytes(),
		RSSI:      -70,
	})

	assert.True(t, r.Connectable)
	f, ok := r.Flags()
	assert.True(t, ok)
	assert.Equal(t, []string{"LE General Discoverable Mode", "BR/EDR Not Supported"}, f.Names())
	tx, ok := r.TxPower()
	assert.True(t, ok)
	assert.Equal(t, int8(-8), tx)
	assert.Equal(t, []bluing.UUID{bluing.UUID16(0x180f), bluing.UUID16(0x180a)}, r.Services())
	company, data, ok := r.ManufacturerData()
	assert.True(t, ok)
	assert.Equal(t, uint16(0x027D), company)
	assert.Equal(t, []byte{0x01, 0x02}, data)
	name, _ := r.LocalName()
	assert.Equal(t, "HW", name)
	assert.Empty(t, r.FieldErrors())

	rsp := NewReport(hci.AdvReport{
		EventType: hci.ScanRsp,
		AddrType:  bluing.AddrRandom,
		Addr:      r.Addr,
		Data:      []byte{0x08, byte(TypeCompleteName), 'H', 'W', ' ', 'B', 'a', 'n', 'd'},
		RSSI:      -65,
	})
	r.Merge(rsp)
	name, _ = r.LocalName()
	assert.Equal(t, "HW Band", name, "complete name is preferred")
	assert.Equal(t, int8(-65), r.RSSI)
	assert.True(t, r.ScanResponse)
}

func TestReportFieldErrorsIsolated(t *testing.T) {
	data := []byte{
		0x03, byte(TypeAllUUID16), 0x0f, 0x18,
		0x03, byte(TypeTxPower), 0x01, 0x02, // wrong length
		0x02, byte(TypeAllUUID128), 0xAA, // not a 16-byte list
		0x04, byte(TypeCompleteName), 'a', 'b', 'c',
	}
	r := NewReport(hci.AdvReport{EventType: hci.AdvNonconnInd, Data: data})
	require.NoError(t, r.ParseErr)
	assert.Len(t, r.FieldErrors(), 2)
	_, ok := r.TxPower()
	assert.False(t, ok)
	assert.Equal(t, []bluing.UUID{bluing.UUID16(0x180f)}, r.Services())
	name, ok := r.LocalName()
	assert.True(t, ok)
	assert.Equal(t, "abc", name)
	assert.False(t, r.Connectable)
}

func TestServiceData(t *testing.T) {
	fs := Fields{
		{Type: TypeServiceData16, Data: []byte{0xaa, 0xfe, 0x10, 0x00}},
		{Type: TypeServiceData16, Data: []byte{0xaa}},
	}
	sd := fs.ServiceData()
	require.Len(t, sd, 1)
	assert.True(t, sd[0].UUID.Equal(bluing.UUID16(0xfeaa)))
	assert.Equal(t, []byte{0x10, 0x00}, sd[0].Data)
	assert.Len(t, fs.Errors(), 1)
}
