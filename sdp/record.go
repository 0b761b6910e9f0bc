package sdp

import (
	"fmt"

	"github.com/XC-/bluing"
)

// Universal attribute IDs.
const (
	AttrServiceRecordHandle            uint16 = 0x0000
	AttrServiceClassIDList             uint16 = 0x0001
	AttrServiceRecordState             uint16 = 0x0002
	AttrServiceID                      uint16 = 0x0003
	AttrProtocolDescriptorList         uint16 = 0x0004
	AttrBrowseGroupList                uint16 = 0x0005
	AttrLanguageBaseAttributeIDList    uint16 = 0x0006
	AttrServiceInfoTimeToLive          uint16 = 0x0007
	AttrServiceAvailability            uint16 = 0x0008
	AttrBluetoothProfileDescriptorList uint16 = 0x0009
	AttrDocumentationURL               uint16 = 0x000A
	AttrClientExecutableURL            uint16 = 0x000B
	AttrIconURL                        uint16 = 0x000C
	AttrAdditionalProtocolDescriptors  uint16 = 0x000D

	// Offsets from the primary language base, 0x0100.
	AttrServiceName        uint16 = 0x0100
	AttrServiceDescription uint16 = 0x0101
	AttrProviderName       uint16 = 0x0102

	AttrGoepL2capPsm       uint16 = 0x0200
	AttrSupportedFeatures  uint16 = 0x0311
	AttrSupportedFormats   uint16 = 0x0303
	AttrSupportedDataStore uint16 = 0x0301
)

var attrName = map[uint16]string{
	AttrServiceRecordHandle:            "ServiceRecordHandle",
	AttrServiceClassIDList:             "ServiceClassIDList",
	AttrServiceRecordState:             "ServiceRecordState",
	AttrServiceID:                      "ServiceID",
	AttrProtocolDescriptorList:         "ProtocolDescriptorList",
	AttrBrowseGroupList:                "BrowseGroupList",
	AttrLanguageBaseAttributeIDList:    "LanguageBaseAttributeIDList",
	AttrServiceInfoTimeToLive:          "ServiceInfoTimeToLive",
	AttrServiceAvailability:            "ServiceAvailability",
	AttrBluetoothProfileDescriptorList: "BluetoothProfileDescriptorList",
	AttrDocumentationURL:               "DocumentationURL",
	AttrClientExecutableURL:            "ClientExecutableURL",
	AttrIconURL:                        "IconURL",
	AttrAdditionalProtocolDescriptors:  "AdditionalProtocolDescriptorLists",
	AttrServiceName:                    "ServiceName",
	AttrServiceDescription:             "ServiceDescription",
	AttrProviderName:                   "ProviderName",
	AttrGoepL2capPsm:                   "GoepL2capPsm",
	AttrSupportedDataStore:             "SupportedDataStoresList",
	AttrSupportedFormats:               "SupportedFormatsList",
	AttrSupportedFeatures:              "SupportedFeatures",
}

// AttributeName returns the name of a universal attribute ID, or its hex form.
func AttributeName(id uint16) string {
	if n, ok := attrName[id]; ok {
		return n
	}
	return fmt.Sprintf("0x%04X", id)
}

// Attribute is one (ID, value) pair of a service record.
type Attribute struct {
	ID    uint16
	Value Element
}

// ServiceRecord is a decoded service record. Attributes keep wire order.
type ServiceRecord struct {
	Attributes []Attribute
	// Err is set when the record was cut short; Attributes holds what
	// preceded the failure.
	Err error

	names bluing.UUIDNames
}

// DecodeServiceRecord decodes a record: a Sequence of alternating 16-bit
// attribute IDs and values spanning all of b.
func (d *Decoder) DecodeServiceRecord(b []byte) (ServiceRecord, error) {
	e, n, err := d.decode(b, 0, 0)
	if err != nil {
		return ServiceRecord{}, err
	}
	if n != len(b) {
		return ServiceRecord{}, bluing.NewDecodeError(bluing.LengthMismatch, n, "%d trailing bytes after record", len(b)-n)
	}
	return d.record(e, 0)
}

func (d *Decoder) record(e Element, base int) (ServiceRecord, error) {
	r := ServiceRecord{names: d.names()}
	if e.Kind != KindSequence {
		return r, bluing.NewDecodeError(bluing.Invalid, base, "record is %s, want seq", e.Kind)
	}
	items := e.Items
	for len(items) >= 2 {
		id, ok := items[0].Uint()
		if !ok || items[0].Width != 2 {
			r.Err = bluing.NewDecodeError(bluing.Invalid, base, "attribute ID is %s", items[0])
			return r, r.Err
		}
		r.Attributes = append(r.Attributes, Attribute{ID: uint16(id), Value: items[1]})
		items = items[2:]
	}
	switch {
	case e.Err != nil:
		r.Err = e.Err
	case len(items) == 1:
		r.Err = bluing.NewDecodeError(bluing.Invalid, base, "attribute ID without value")
	}
	return r, r.Err
}

// RecordError attaches a decode failure to the index of the record it hit.
type RecordError struct {
	Index int
	Err   error
}

func (e RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }

// DecodeRecordList decodes an AttributeLists parameter: a Sequence of
// records. A malformed record is reported in the returned RecordErrors and
// the remaining records are still decoded. The error is non-nil only when
// the outer Sequence itself is unusable.
func (d *Decoder) DecodeRecordList(b []byte) ([]ServiceRecord, []RecordError, error) {
	k, hl, dl, err := header(b, 0)
	if err != nil {
		return nil, nil, err
	}
	if k != KindSequence {
		return nil, nil, bluing.NewDecodeError(bluing.Invalid, 0, "attribute lists is %s, want seq", k)
	}
	if hl+dl != len(b) {
		return nil, nil, bluing.NewDecodeError(bluing.LengthMismatch, hl+dl, "%d trailing bytes after attribute lists", len(b)-hl-dl)
	}
	var (
		recs []ServiceRecord
		errs []RecordError
	)
	body := b[hl:]
	for off, i := 0, 0; off < len(body); i++ {
		e, n, err := d.decode(body[off:], hl+off, 1)
		if err != nil {
			// Without a usable header the next record cannot be found.
			errs = append(errs, RecordError{Index: i, Err: err})
			break
		}
		r, err := d.record(e, hl+off)
		if err != nil {
			errs = append(errs, RecordError{Index: i, Err: err})
		}
		recs = append(recs, r)
		off += n
	}
	return recs, errs, nil
}

// Get returns the value of attribute id.
func (r ServiceRecord) Get(id uint16) (Element, bool) {
	for _, a := range r.Attributes {
		if a.ID == id {
			return a.Value, true
		}
	}
	return Element{}, false
}

// Handle returns the ServiceRecordHandle.
func (r ServiceRecord) Handle() (uint32, bool) {
	e, ok := r.Get(AttrServiceRecordHandle)
	if !ok {
		return 0, false
	}
	v, ok := e.Uint()
	return uint32(v), ok
}

// ServiceClasses returns the UUIDs of the ServiceClassIDList.
func (r ServiceRecord) ServiceClasses() []bluing.UUID {
	e, ok := r.Get(AttrServiceClassIDList)
	if !ok {
		return nil
	}
	var uu []bluing.UUID
	for _, c := range e.Children() {
		if u, ok := c.UUID(); ok {
			uu = append(uu, u)
		}
	}
	return uu
}

// ServiceClassNames returns the display form of each service class.
func (r ServiceRecord) ServiceClassNames() []string {
	var s []string
	for _, u := range r.ServiceClasses() {
		s = append(s, r.names.Describe(u))
	}
	return s
}

// ProtocolDescriptor is one protocol layer of a ProtocolDescriptorList: the
// protocol UUID followed by its parameters.
type ProtocolDescriptor struct {
	Protocol bluing.UUID
	Params   []Element
}

// ProtocolDescriptors returns the protocol stack of the primary
// ProtocolDescriptorList. When the list is an Alternative, the first
// alternative is used.
func (r ServiceRecord) ProtocolDescriptors() []ProtocolDescriptor {
	e, ok := r.Get(AttrProtocolDescriptorList)
	if !ok {
		return nil
	}
	if e.Kind == KindAlternative && len(e.Items) > 0 {
		e = e.Items[0]
	}
	return protocolStack(e)
}

// AdditionalProtocolDescriptors returns each stack of the
// AdditionalProtocolDescriptorLists attribute.
func (r ServiceRecord) AdditionalProtocolDescriptors() [][]ProtocolDescriptor {
	e, ok := r.Get(AttrAdditionalProtocolDescriptors)
	if !ok {
		return nil
	}
	var stacks [][]ProtocolDescriptor
	for _, c := range e.Children() {
		stacks = append(stacks, protocolStack(c))
	}
	return stacks
}

func protocolStack(e Element) []ProtocolDescriptor {
	var pds []ProtocolDescriptor
	for _, layer := range e.Children() {
		items := layer.Children()
		if len(items) == 0 {
			continue
		}
		u, ok := items[0].UUID()
		if !ok {
			continue
		}
		pds = append(pds, ProtocolDescriptor{Protocol: u, Params: items[1:]})
	}
	return pds
}

func (r ServiceRecord) protocolParam(proto uint16) (uint64, bool) {
	for _, pd := range r.ProtocolDescriptors() {
		if s, ok := pd.Protocol.Short(); !ok || s != proto || len(pd.Params) == 0 {
			continue
		}
		return pd.Params[0].Uint()
	}
	return 0, false
}

// RFCOMMChannel returns the server channel of the RFCOMM layer.
func (r ServiceRecord) RFCOMMChannel() (uint8, bool) {
	v, ok := r.protocolParam(0x0003)
	return uint8(v), ok
}

// L2CAPPSM returns the PSM of the L2CAP layer.
func (r ServiceRecord) L2CAPPSM() (uint16, bool) {
	v, ok := r.protocolParam(0x0100)
	return uint16(v), ok
}

// Profile is one entry of the BluetoothProfileDescriptorList.
type Profile struct {
	UUID    bluing.UUID
	Version uint16
}

func (p Profile) String() string {
	return fmt.Sprintf("%s v%d.%d", p.UUID, p.Version>>8, p.Version&0xFF)
}

// Profiles returns the BluetoothProfileDescriptorList.
func (r ServiceRecord) Profiles() []Profile {
	e, ok := r.Get(AttrBluetoothProfileDescriptorList)
	if !ok {
		return nil
	}
	var ps []Profile
	for _, c := range e.Children() {
		items := c.Children()
		if len(items) < 2 {
			continue
		}
		u, ok := items[0].UUID()
		if !ok {
			continue
		}
		v, _ := items[1].Uint()
		ps = append(ps, Profile{UUID: u, Version: uint16(v)})
	}
	return ps
}

// ServiceName returns the ServiceName in the primary language.
func (r ServiceRecord) ServiceName() (string, bool) {
	e, ok := r.Get(AttrServiceName)
	if !ok {
		return "", false
	}
	return e.Text()
}

// Errors lists the decode failures attached to the record and its values.
func (r ServiceRecord) Errors() []error {
	var errs []error
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, a := range r.Attributes {
		errs = append(errs, a.Value.Errors()...)
	}
	return errs
}

// Describe renders every attribute as "Name: value", one per line.
func (r ServiceRecord) Describe() []string {
	lines := make([]string, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		lines = append(lines, fmt.Sprintf("%s: %s", AttributeName(a.ID), a.Value.Format(r.names)))
	}
	return lines
}
