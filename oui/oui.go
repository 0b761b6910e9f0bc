// Package oui holds the table of organizationally unique identifiers used to
// complete partial device addresses.
package oui

import (
	_ "embed"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/XC-/bluing"
)

// Entry maps a 24-bit prefix to the organization it is assigned to.
type Entry struct {
	Organization string
	Prefix       uint32
}

// String renders the prefix in address form, "24:7A:99".
func (e Entry) String() string {
	return fmt.Sprintf("%02X:%02X:%02X", byte(e.Prefix>>16), byte(e.Prefix>>8), byte(e.Prefix))
}

// Table is a read-only list of entries. It is safe for concurrent use once
// built.
type Table struct {
	entries  []Entry
	byPrefix map[uint32]int
}

// NewTable builds a table. A prefix listed twice keeps its first entry.
func NewTable(entries []Entry) *Table {
	t := &Table{byPrefix: make(map[uint32]int, len(entries))}
	for _, e := range entries {
		e.Prefix &= 0xFFFFFF
		if _, dup := t.byPrefix[e.Prefix]; dup {
			continue
		}
		t.byPrefix[e.Prefix] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t
}

func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the entries in load order.
func (t *Table) Entries() []Entry { return append([]Entry(nil), t.entries...) }

// Lookup returns the entry for a 24-bit prefix.
func (t *Table) Lookup(prefix uint32) (Entry, bool) {
	i, ok := t.byPrefix[prefix&0xFFFFFF]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Vendor returns the organization of the address's prefix, or "".
func (t *Table) Vendor(a bluing.BDAddr) string {
	e, _ := t.Lookup(a.OUI())
	return e.Organization
}

// Match returns the entries whose organization matches name under p, in
// load order. An empty name matches nothing.
func (t *Table) Match(name string, p Policy) []Entry {
	q := normalize(name)
	if q == "" {
		return nil
	}
	var m []Entry
	for _, e := range t.entries {
		if p.match(normalize(e.Organization), q) {
			m = append(m, e)
		}
	}
	return m
}

// ParsePrefix accepts "24:7A:99", "24-7A-99" and "247A99".
func ParsePrefix(s string) (uint32, error) {
	h := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if len(h) != 6 {
		return 0, errors.Wrapf(bluing.ErrInvalid, "oui prefix %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return 0, errors.Wrapf(bluing.ErrInvalid, "oui prefix %q", s)
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

type yamlEntry struct {
	Organization string   `yaml:"organization"`
	Prefixes     []string `yaml:"prefixes"`
}

// LoadYAML reads a list of {organization, prefixes} documents.
func LoadYAML(r io.Reader) (*Table, error) {
	var ye []yamlEntry
	if err := yaml.NewDecoder(r).Decode(&ye); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "oui yaml")
	}
	var entries []Entry
	for _, y := range ye {
		for _, s := range y.Prefixes {
			p, err := ParsePrefix(s)
			if err != nil {
				return nil, errors.Wrapf(err, "organization %q", y.Organization)
			}
			entries = append(entries, Entry{Organization: y.Organization, Prefix: p})
		}
	}
	return NewTable(entries), nil
}

// LoadCSV reads the IEEE registry export (oui.csv): Registry, Assignment,
// Organization Name, Organization Address. Rows that are not MA-L
// assignments are skipped.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var entries []Entry
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "oui csv line %d", line)
		}
		if len(rec) < 3 || strings.EqualFold(rec[0], "Registry") {
			continue
		}
		if reg := strings.TrimSpace(rec[0]); reg != "" && !strings.EqualFold(reg, "MA-L") {
			continue
		}
		p, err := ParsePrefix(rec[1])
		if err != nil {
			return nil, errors.Wrapf(err, "oui csv line %d", line)
		}
		entries = append(entries, Entry{Organization: strings.TrimSpace(rec[2]), Prefix: p})
	}
	return NewTable(entries), nil
}

// LoadFile reads path as CSV when it ends in .csv and as YAML otherwise.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(bluing.ErrResourceUnavailable, err.Error())
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return LoadCSV(f)
	}
	return LoadYAML(f)
}

//go:embed data/oui.yaml
var bundled string

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the bundled table, parsed once.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := LoadYAML(strings.NewReader(bundled))
		if err != nil {
			panic("oui: bundled data: " + err.Error())
		}
		defaultTable = t
	})
	return defaultTable
}
