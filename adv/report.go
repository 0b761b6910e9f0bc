package adv

import (
	"github.com/XC-/bluing"
	"github.com/XC-/bluing/hci"
)

// Report is one LE advertising report: the advertiser, how it was heard,
// and its AD structures. Field accessors decode lazily.
type Report struct {
	Addr        bluing.BDAddr
	AddrType    bluing.AddrType
	RSSI        int8
	EventType   hci.AdvEventType
	Connectable bool

	// Raw is the advertising data followed by the merged scan response.
	Raw    []byte
	Fields Fields
	// ParseErr is set when the AD stream overran its buffer; Fields then
	// holds what preceded the bad structure.
	ParseErr error
	// ScanResponse is true once a SCAN_RSP has been merged.
	ScanResponse bool
}

// NewReport builds a Report from a controller advertising report.
func NewReport(r hci.AdvReport) *Report {
	fields, err := ParseAD(r.Data)
	return &Report{
		Addr:         r.Addr,
		AddrType:     r.AddrType,
		RSSI:         r.RSSI,
		EventType:    r.EventType,
		Connectable:  r.EventType.Connectable(),
		Raw:          append([]byte(nil), r.Data...),
		Fields:       fields,
		ParseErr:     err,
		ScanResponse: r.EventType == hci.ScanRsp,
	}
}

// Merge appends the fields of a scan response for the same advertiser and
// refreshes the RSSI.
func (r *Report) Merge(rsp *Report) {
	r.Raw = append(r.Raw, rsp.Raw...)
	r.Fields = append(r.Fields, rsp.Fields...)
	if r.ParseErr == nil {
		r.ParseErr = rsp.ParseErr
	}
	r.RSSI = rsp.RSSI
	r.ScanResponse = true
}

func (r *Report) Flags() (Flags, bool)          { return r.Fields.Flags() }
func (r *Report) LocalName() (string, bool)     { return r.Fields.LocalName() }
func (r *Report) TxPower() (int8, bool)         { return r.Fields.TxPower() }
func (r *Report) Services() []bluing.UUID       { return r.Fields.Services() }
func (r *Report) ServiceData() []ServiceData    { return r.Fields.ServiceData() }
func (r *Report) Appearance() (uint16, bool)    { return r.Fields.Appearance() }
func (r *Report) ClassOfDevice() (uint32, bool) { return r.Fields.ClassOfDevice() }

func (r *Report) ManufacturerData() (uint16, []byte, bool) { return r.Fields.ManufacturerData() }

// FieldErrors lists decode problems of individual fields, starting with the
// stream overrun if any. They never invalidate the report.
func (r *Report) FieldErrors() []error {
	var errs []error
	if r.ParseErr != nil {
		errs = append(errs, r.ParseErr)
	}
	return append(errs, r.Fields.Errors()...)
}
