package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
	"github.com/XC-/bluing/hci"
	"github.com/XC-/bluing/hci/hcitest"
)

var (
	addrA = bluing.MustParseBDAddr("24:7A:99:4C:45:C3")
	addrB = bluing.MustParseBDAddr("00:1A:7D:DA:71:13")
)

func TestUpsert(t *testing.T) {
	s := NewDeviceSet()
	k := Key{Addr: addrA, AddrType: bluing.AddrPublic}
	assert.True(t, s.Upsert(Device{Key: k, RSSI: -70, HasRSSI: true, Class: 0x5A020C}))
	assert.False(t, s.Upsert(Device{Key: k, RSSI: -50, HasRSSI: true}))
	assert.True(t, s.Upsert(Device{Key: Key{Addr: addrA, AddrType: bluing.AddrRandom}, RSSI: -90, HasRSSI: true}))

	l := s.List()
	require.Len(t, l, 2)
	assert.Equal(t, int8(-50), l[0].RSSI)
	assert.Equal(t, 2, l[0].Seen)
	assert.Equal(t, ClassOfDevice(0x5A020C), l[0].Class, "a repeat sighting keeps earlier data")
	assert.Equal(t, bluing.AddrRandom, l[1].AddrType)
}

func TestSorted(t *testing.T) {
	s := NewDeviceSet()
	s.Upsert(Device{Key: Key{Addr: addrA}, RSSI: -80, HasRSSI: true})
	s.Upsert(Device{Key: Key{Addr: addrB}})
	s.Upsert(Device{Key: Key{Addr: bluing.MustParseBDAddr("11:22:33:44:55:66")}, RSSI: -30, HasRSSI: true})

	var got []int8
	for _, d := range s.Sorted(SortByRSSI) {
		got = append(got, d.RSSI)
	}
	assert.Equal(t, []int8{-30, -80, 0}, got)
	assert.Equal(t, addrA, s.Sorted(SortNone)[0].Addr)

	_, err := ParseSortKey("name")
	assert.ErrorIs(t, err, bluing.ErrInvalid)
}

func TestClassOfDevice(t *testing.T) {
	c := ClassOfDevice(0x5A020C)
	assert.Equal(t, "Phone", c.MajorName())
	assert.Equal(t, "Smartphone", c.MinorName())
	assert.Equal(t, []string{"Networking", "Capturing", "Object Transfer", "Telephony"}, c.ServiceClasses())
	assert.Equal(t, "reserved bit 15", ClassOfDevice(1 << 15).ServiceClasses()[0])
}

func advReport(a bluing.BDAddr, typ hci.AdvEventType, rssi int8, data []byte) hci.AdvReport {
	return hci.AdvReport{EventType: typ, AddrType: bluing.AddrRandom, Addr: a, RSSI: rssi, Data: data}
}

func TestLEScan(t *testing.T) {
	name := adv.NewPacket().AppendName("tag").Bytes()
	c := hcitest.New(
		hci.LEAdvertisingReportEvent{Reports: []hci.AdvReport{
			advReport(addrA, hci.AdvInd, -70, []byte{0x02, 0x01, 0x06}),
			advReport(addrB, hci.AdvNonconnInd, -40, nil),
		}},
		hci.DisconnectionComplete{},
		hci.LEAdvertisingReportEvent{Reports: []hci.AdvReport{
			advReport(addrA, hci.AdvInd, -60, []byte{0x02, 0x01, 0x06}),
			advReport(addrA, hci.ScanRsp, -61, name),
		}},
	)
	s := &LEScanner{C: c}
	res, err := s.Scan(context.Background(), Options{Mode: Active, Timeout: 50 * time.Millisecond, Sort: SortByRSSI})
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.Len(t, res.Devices, 2)
	assert.Equal(t, addrB, res.Devices[0].Addr)

	a := res.Devices[1]
	assert.Equal(t, 3, a.Seen)
	require.NotNil(t, a.Report)
	n, ok := a.Report.LocalName()
	assert.True(t, ok)
	assert.Equal(t, "tag", n)
	assert.True(t, a.Report.ScanResponse)

	assert.False(t, c.ScanEnabled())
	assert.Equal(t, hci.OpLESetScanParameters, c.SentOpcodes()[0])
	params := c.Sent()[0].(hci.LESetScanParameters)
	assert.Equal(t, uint8(Active), params.LEScanType)
}

func TestLEScanResponseFirst(t *testing.T) {
	name := adv.NewPacket().AppendName("tag").Bytes()
	c := hcitest.New(
		hci.LEAdvertisingReportEvent{Reports: []hci.AdvReport{
			advReport(addrA, hci.ScanRsp, -61, name),
		}},
		hci.LEAdvertisingReportEvent{Reports: []hci.AdvReport{
			advReport(addrA, hci.AdvInd, -58, []byte{0x02, 0x01, 0x06, 0x04, 0xFF, 0x4C, 0x00, 0x01}),
		}},
	)
	res, err := (&LEScanner{C: c}).Scan(context.Background(), Options{Mode: Active, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, res.Devices, 1)

	r := res.Devices[0].Report
	require.NotNil(t, r)
	assert.Equal(t, hci.AdvInd, r.EventType)
	assert.True(t, r.Connectable)
	assert.True(t, r.ScanResponse)
	assert.Equal(t, int8(-58), r.RSSI)
	f, ok := r.Flags()
	assert.True(t, ok)
	assert.Equal(t, adv.Flags(0x06), f)
	company, data, ok := r.ManufacturerData()
	assert.True(t, ok)
	assert.Equal(t, uint16(0x004C), company)
	assert.Equal(t, []byte{0x01}, data)
	n, ok := r.LocalName()
	assert.True(t, ok)
	assert.Equal(t, "tag", n)
	assert.Len(t, r.Fields, 3)
}

func TestLEScanCanceled(t *testing.T) {
	c := hcitest.New(hci.LEAdvertisingReportEvent{Reports: []hci.AdvReport{
		advReport(addrA, hci.AdvInd, -70, nil),
	}})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := (&LEScanner{C: c}).Scan(ctx, Options{Mode: Passive})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Len(t, res.Devices, 1)
	assert.False(t, c.ScanEnabled(), "scanning disabled after the caller's deadline")
}

func TestLEScanEnableRejected(t *testing.T) {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		if e, ok := cmd.(hci.LESetScanEnable); ok && e.LEScanEnable {
			return &hcitest.Reply{Params: []byte{byte(hci.StatusCommandDisallowed)}}
		}
		return nil
	}
	res, err := (&LEScanner{C: c}).Scan(context.Background(), Options{Timeout: time.Second})
	assert.True(t, bluing.IsRejected(err))
	assert.Empty(t, res.Devices)
	assert.Equal(t, 2, c.Count(hci.OpLESetScanEnable), "disable still sent")
	assert.False(t, c.ScanEnabled())
}

func TestInquiryNoEvents(t *testing.T) {
	c := hcitest.New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := (&Inquirer{C: c}).Inquiry(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, res.Devices)
	assert.Empty(t, res.Devices)
	assert.True(t, res.Partial)
	assert.False(t, c.InquiryRunning())
	assert.Equal(t, 1, c.Count(hci.OpInquiryCancel))
}

func TestInquiryCompleteWithoutDevices(t *testing.T) {
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		if cmd.Opcode() == hci.OpInquiry {
			return &hcitest.Reply{Events: []hci.Event{hci.InquiryComplete{}}}
		}
		return nil
	}
	res, err := (&Inquirer{C: c}).Inquiry(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, res.Devices)
	assert.False(t, res.Partial)
	assert.Equal(t, 0, c.Count(hci.OpRemoteNameReq))
}

func TestInquiryNames(t *testing.T) {
	eir := adv.NewEIRPacket().AppendName("eir-name").Bytes()
	c := hcitest.New()
	c.Handler = func(cmd hci.Command) *hcitest.Reply {
		switch cmd := cmd.(type) {
		case hci.Inquiry:
			return &hcitest.Reply{Events: []hci.Event{
				hci.InquiryResult{Mode: hci.InquiryExtended, Responses: []hci.InquiryResponse{
					{Addr: addrA, ClassOfDevice: 0x5A020C, RSSI: -70, HasRSSI: true, EIR: eir},
				}},
				hci.InquiryResult{Mode: hci.InquiryWithRSSI, Responses: []hci.InquiryResponse{
					{Addr: addrA, RSSI: -55, HasRSSI: true},
					{Addr: addrB, RSSI: -80, HasRSSI: true},
				}},
				hci.InquiryComplete{},
			}}
		case hci.RemoteNameRequest:
			if cmd.Addr == addrA {
				return &hcitest.Reply{Events: []hci.Event{
					hci.RemoteNameRequestComplete{Addr: addrA, Name: "phone"},
				}}
			}
			return &hcitest.Reply{}
		}
		return nil
	}
	q := &Inquirer{C: c, NameTimeout: 30 * time.Millisecond}
	res, err := q.Inquiry(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.Len(t, res.Devices, 2)

	a, b := res.Devices[0], res.Devices[1]
	assert.Equal(t, addrA, a.Addr)
	assert.Equal(t, int8(-55), a.RSSI)
	assert.Equal(t, "phone", a.Name)
	assert.True(t, a.NameResolved)
	assert.Equal(t, "Smartphone", a.Class.MinorName())
	assert.NotEmpty(t, a.EIR)

	assert.False(t, b.NameResolved)
	assert.True(t, bluing.IsTimeout(b.NameErr))
	assert.Equal(t, 1, c.Count(hci.OpRemoteNameReqCancel))
	assert.False(t, c.InquiryRunning())
}
