// Package scan runs BR/EDR inquiries and LE scans over an hci.Controller and
// collects what they hear into per-session device sets.
package scan

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
	"github.com/XC-/bluing/hci"
)

// Key identifies a device within one session. BR/EDR devices always carry
// the public address type.
type Key struct {
	Addr     bluing.BDAddr
	AddrType bluing.AddrType
}

func (k Key) String() string { return k.Addr.String() + " (" + k.AddrType.String() + ")" }

// Device is what a session learned about one remote device.
type Device struct {
	Key

	RSSI      int8
	HasRSSI   bool
	FirstSeen time.Time
	LastSeen  time.Time
	Seen      int

	// BR/EDR inquiry
	Class                  ClassOfDevice
	PageScanRepetitionMode uint8
	ClockOffset            uint16
	EIR                    adv.Fields
	EIRErr                 error
	Name                   string
	NameResolved           bool
	NameErr                error

	// LE scan
	Report *adv.Report
}

// DeviceSet is the devices of one session in first-seen order. Upsert is
// atomic with respect to key equality.
type DeviceSet struct {
	mu   sync.Mutex
	idx  map[Key]int
	list []*Device

	now func() time.Time
}

func NewDeviceSet() *DeviceSet {
	return &DeviceSet{idx: make(map[Key]int), now: time.Now}
}

// Upsert adds d, or refreshes the entry with the same key: RSSI and
// last-seen are updated and new data is merged, never duplicated. It reports
// whether d was new.
func (s *DeviceSet) Upsert(d Device) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	i, ok := s.idx[d.Key]
	if !ok {
		nd := d
		nd.FirstSeen, nd.LastSeen, nd.Seen = now, now, 1
		s.idx[d.Key] = len(s.list)
		s.list = append(s.list, &nd)
		return true
	}
	e := s.list[i]
	e.LastSeen = now
	e.Seen++
	if d.HasRSSI {
		e.RSSI, e.HasRSSI = d.RSSI, true
	}
	if d.Class != 0 {
		e.Class = d.Class
	}
	if d.EIR != nil {
		e.EIR, e.EIRErr = d.EIR, d.EIRErr
	}
	if d.Name != "" && !e.NameResolved {
		e.Name = d.Name
	}
	switch {
	case d.Report == nil:
	case e.Report == nil:
		e.Report = d.Report
	case d.Report.ScanResponse && !e.Report.ScanResponse:
		e.Report.Merge(d.Report)
	case e.Report.EventType == hci.ScanRsp && d.Report.EventType != hci.ScanRsp:
		// The scan response came first; the advertisement leads.
		rssi := d.Report.RSSI
		d.Report.Merge(e.Report)
		d.Report.RSSI = rssi
		e.Report = d.Report
	default:
		e.Report.RSSI = d.Report.RSSI
	}
	return false
}

// update applies f to the device with key k, if present.
func (s *DeviceSet) update(k Key, f func(*Device)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.idx[k]; ok {
		f(s.list[i])
	}
}

func (s *DeviceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// List returns copies of the devices in first-seen order. The result is
// never nil.
func (s *DeviceSet) List() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := make([]Device, len(s.list))
	for i, d := range s.list {
		l[i] = *d
	}
	return l
}

// Sorted returns List ordered by by; a nil key keeps discovery order.
func (s *DeviceSet) Sorted(by SortKey) []Device {
	l := s.List()
	if by != nil {
		sort.SliceStable(l, func(i, j int) bool { return by(l[i], l[j]) })
	}
	return l
}

// SortKey reports whether a sorts before b.
type SortKey func(a, b Device) bool

var (
	// SortByRSSI puts the strongest signal first; devices without RSSI go last.
	SortByRSSI SortKey = func(a, b Device) bool {
		if a.HasRSSI != b.HasRSSI {
			return a.HasRSSI
		}
		return a.RSSI > b.RSSI
	}
	// SortNone keeps discovery order.
	SortNone SortKey
)

// ParseSortKey accepts "rssi" and "none".
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(s) {
	case "rssi":
		return SortByRSSI, nil
	case "none", "":
		return SortNone, nil
	}
	return nil, errors.Wrapf(bluing.ErrInvalid, "sort key %q", s)
}
