// Package feature decodes LMP and LL feature pages and reads them from remote
// devices.
package feature

import "fmt"

// Kind selects the feature namespace of a page.
type Kind uint8

const (
	LMP Kind = iota
	LL
)

func (k Kind) String() string {
	if k == LL {
		return "LL"
	}
	return "LMP"
}

// ExtendedFeaturesBit is the LMP page 0 bit advertising extended pages.
const ExtendedFeaturesBit = 63

// Bit is one of the 64 positions of a page.
type Bit struct {
	Index     int
	Name      string
	Supported bool
	// Reserved is true when the position has no assigned name.
	Reserved bool
}

// FeatureSet is one decoded feature page. Bits always holds 64 entries in
// index order.
type FeatureSet struct {
	Kind Kind
	Page int
	Raw  [8]byte
	Bits []Bit
}

// Decoder names bits using Tables. The zero value uses DefaultTables.
type Decoder struct {
	Tables *Tables
}

// Decode decodes page of kind k. Bit N is bit N%8 of byte N/8. Positions
// without a name are reported as "reserved/unknown-bit-N".
func (d Decoder) Decode(k Kind, b [8]byte, page int) FeatureSet {
	t := defaultTables
	if d.Tables != nil {
		t = *d.Tables
	}
	fs := FeatureSet{Kind: k, Page: page, Raw: b, Bits: make([]Bit, 64)}
	for i := range fs.Bits {
		bit := Bit{Index: i, Supported: b[i/8]&(1<<uint(i%8)) != 0}
		if bit.Name = t.name(k, page, i); bit.Name == "" {
			bit.Name = fmt.Sprintf("reserved/unknown-bit-%d", i)
			bit.Reserved = true
		}
		fs.Bits[i] = bit
	}
	return fs
}

// DecodePage decodes a page with the built-in tables.
func DecodePage(k Kind, b [8]byte, page int) FeatureSet {
	return Decoder{}.Decode(k, b, page)
}

// Has reports whether bit i is set.
func (fs FeatureSet) Has(i int) bool {
	if i < 0 || i >= 64 {
		return false
	}
	return fs.Raw[i/8]&(1<<uint(i%8)) != 0
}

// Map returns every bit name with its support flag.
func (fs FeatureSet) Map() map[string]bool {
	m := make(map[string]bool, len(fs.Bits))
	for _, b := range fs.Bits {
		m[b.Name] = b.Supported
	}
	return m
}

// Supported returns the names of the set bits, in index order.
func (fs FeatureSet) Supported() []string {
	var s []string
	for _, b := range fs.Bits {
		if b.Supported {
			s = append(s, b.Name)
		}
	}
	return s
}

func (fs FeatureSet) String() string {
	return fmt.Sprintf("%s page %d: % X", fs.Kind, fs.Page, fs.Raw)
}

// HasExtended reports whether an LMP page 0 advertises extended feature
// pages.
func HasExtended(fs FeatureSet) bool {
	return fs.Kind == LMP && fs.Page == 0 && fs.Has(ExtendedFeaturesBit)
}
