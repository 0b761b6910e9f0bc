package hci

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
)

func TestOpcode(t *testing.T) {
	cases := []struct {
		op   Opcode
		ogf  uint8
		ocf  uint16
		name string
	}{
		{OpInquiry, 0x01, 0x0001, "Inquiry"},
		{OpRemoteNameReq, 0x01, 0x0019, "Remote Name Request"},
		{OpReset, 0x03, 0x0003, "Reset"},
		{OpLESetScanEnable, 0x08, 0x000c, "LE Set Scan Enable"},
		{Opcode(0xFC01), 0x3F, 0x0001, "opcode(0x3F|0x0001)"},
	}
	for _, tt := range cases {
		if tt.op.OGF() != tt.ogf || tt.op.OCF() != tt.ocf {
			t.Errorf("%04x: got ogf %x ocf %x want %x %x", uint16(tt.op), tt.op.OGF(), tt.op.OCF(), tt.ogf, tt.ocf)
		}
		if got := tt.op.String(); got != tt.name {
			t.Errorf("%04x.String(): got %q want %q", uint16(tt.op), got, tt.name)
		}
	}
}

func TestMarshalPacket(t *testing.T) {
	addr := bluing.MustParseBDAddr("24:7A:99:4C:45:C3")
	cases := []struct {
		c    Command
		want []byte
	}{
		{Reset{}, []byte{0x01, 0x03, 0x0c, 0x00}},
		{Inquiry{Length: 8}, []byte{0x01, 0x01, 0x04, 0x05, 0x33, 0x8b, 0x9e, 0x08, 0x00}},
		{LESetScanEnable{LEScanEnable: true, FilterDuplicates: true}, []byte{0x01, 0x0c, 0x20, 0x02, 0x01, 0x01}},
		{
			RemoteNameRequest{Addr: addr, PageScanRepetitionMode: 0x01, ClockOffset: 0x1234},
			[]byte{0x01, 0x19, 0x04, 0x0a, 0xc3, 0x45, 0x4c, 0x99, 0x7a, 0x24, 0x01, 0x00, 0x34, 0x12},
		},
		{SetEventFilter{}, []byte{0x01, 0x05, 0x0c, 0x01, 0x00}},
		{LESetAdvertiseEnable{}, []byte{0x01, 0x0a, 0x20, 0x01, 0x00}},
		{Disconnect{ConnectionHandle: 0x0040, Reason: 0x13}, []byte{0x01, 0x06, 0x04, 0x03, 0x40, 0x00, 0x13}},
		{ReadRemoteExtendedFeatures{ConnectionHandle: 0x0001, Page: 2}, []byte{0x01, 0x1c, 0x04, 0x03, 0x01, 0x00, 0x02}},
	}
	for _, tt := range cases {
		if got := MarshalPacket(tt.c); !bytes.Equal(got, tt.want) {
			t.Errorf("MarshalPacket(%s): got [% X] want [% X]", tt.c.Opcode(), got, tt.want)
		}
	}
	if n := len(NewLECreateConnection(addr, bluing.AddrRandom).Marshal()); n != 25 {
		t.Errorf("LE Create Connection: got %d bytes want 25", n)
	}
}

func TestParseEvent(t *testing.T) {
	addrLE := []byte{0xc3, 0x45, 0x4c, 0x99, 0x7a, 0x24}
	addr := bluing.MustParseBDAddr("24:7A:99:4C:45:C3")

	t.Run("command complete", func(t *testing.T) {
		e, err := ParseEvent([]byte{0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00})
		if err != nil {
			t.Fatal(err)
		}
		cc, ok := e.(CommandComplete)
		if !ok || cc.CommandOpcode != OpReset || !bytes.Equal(cc.ReturnParameters, []byte{0x00}) {
			t.Errorf("got %#v", e)
		}
	})

	t.Run("command status", func(t *testing.T) {
		e, err := ParseEvent([]byte{0x0f, 0x04, 0x0c, 0x01, 0x01, 0x04})
		if err != nil {
			t.Fatal(err)
		}
		cs, ok := e.(CommandStatus)
		if !ok || cs.Status != StatusCommandDisallowed || cs.CommandOpcode != OpInquiry {
			t.Errorf("got %#v", e)
		}
	})

	t.Run("inquiry result with rssi", func(t *testing.T) {
		b := []byte{0x22, 15, 0x01}
		b = append(b, addrLE...)
		b = append(b, 0x01, 0x00, 0x0c, 0x02, 0x5a, 0x34, 0x12, 0xc4)
		e, err := ParseEvent(b)
		if err != nil {
			t.Fatal(err)
		}
		ir := e.(InquiryResult)
		if len(ir.Responses) != 1 {
			t.Fatalf("got %d responses", len(ir.Responses))
		}
		r := ir.Responses[0]
		if r.Addr != addr || r.ClassOfDevice != 0x5a020c || r.ClockOffset != 0x1234 || r.RSSI != -60 || !r.HasRSSI {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("standard inquiry result", func(t *testing.T) {
		b := []byte{0x02, 15, 0x01}
		b = append(b, addrLE...)
		b = append(b, 0x01, 0x00, 0x00, 0x0c, 0x02, 0x5a, 0x34, 0x12)
		e, err := ParseEvent(b)
		if err != nil {
			t.Fatal(err)
		}
		r := e.(InquiryResult).Responses[0]
		if r.Addr != addr || r.HasRSSI || r.ClassOfDevice != 0x5a020c {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("remote name", func(t *testing.T) {
		b := []byte{0x07, 0, 0x00}
		b = append(b, addrLE...)
		name := make([]byte, 248)
		copy(name, "HUAWEI P30")
		b = append(b, name...)
		b[1] = byte(len(b) - 2)
		e, err := ParseEvent(b)
		if err != nil {
			t.Fatal(err)
		}
		rn := e.(RemoteNameRequestComplete)
		if rn.Addr != addr || rn.Name != "HUAWEI P30" {
			t.Errorf("got %+v", rn)
		}
	})

	t.Run("le advertising report", func(t *testing.T) {
		b := []byte{0x3e, 0, 0x02, 0x01, 0x00, 0x01}
		b = append(b, addrLE...)
		b = append(b, 0x03, 0x02, 0x01, 0x06, 0xb0)
		b[1] = byte(len(b) - 2)
		e, err := ParseEvent(b)
		if err != nil {
			t.Fatal(err)
		}
		ar := e.(LEAdvertisingReportEvent)
		if len(ar.Reports) != 1 {
			t.Fatalf("got %d reports", len(ar.Reports))
		}
		r := ar.Reports[0]
		if r.Addr != addr || r.AddrType != bluing.AddrRandom || r.RSSI != -80 || !bytes.Equal(r.Data, []byte{0x02, 0x01, 0x06}) {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		e, err := ParseEvent([]byte{0x10, 0x01, 0x05})
		if err != nil {
			t.Fatal(err)
		}
		if u, ok := e.(Unknown); !ok || u.EventCode != EvtHardwareError {
			t.Errorf("got %#v", e)
		}
	})
}

func TestParseEventMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x0e},
		{0x0e, 0x05, 0x01},
		{0x05, 0x02, 0x00, 0x40},
		{0x3e, 0x03, 0x02, 0x01, 0x00},
		{0x3e, 0x0c, 0x02, 0x01, 0x00, 0x00, 1, 2, 3, 4, 5, 6, 0x1f, 0x02},
	}
	for _, b := range cases {
		_, err := ParseEvent(b)
		if err == nil {
			t.Errorf("ParseEvent(% X): expected error", b)
			continue
		}
		if !bluing.IsDecode(err) {
			t.Errorf("ParseEvent(% X): got %v want decode error", b, err)
		}
	}
}

func TestStatusErr(t *testing.T) {
	if err := StatusSuccess.Err("x"); err != nil {
		t.Errorf("success: got %v", err)
	}
	if err := StatusPageTimeout.Err("Remote Name Request"); !bluing.IsTimeout(err) {
		t.Errorf("page timeout: got %v want timeout", err)
	}
	err := StatusCommandDisallowed.Err("Inquiry")
	var re *bluing.RejectedError
	if !errors.As(err, &re) || re.Code != 0x0c {
		t.Errorf("command disallowed: got %v", err)
	}
	if err := CheckStatus(OpInquiryCancel, []byte{0x0c}, StatusCommandDisallowed); err != nil {
		t.Errorf("accepted status: got %v", err)
	}
}
