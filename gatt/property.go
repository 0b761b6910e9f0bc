package gatt

import "strings"

// Property is the properties field of a characteristic declaration.
type Property uint8

// Do not re-order the bit flags below;
// they follow the Core characteristic property bit order.

// Characteristic property flags.
const (
	CharBroadcast   Property = 1 << iota // may be broadcast
	CharRead                             // may be read
	CharWriteNR                          // may be written to, with no reply
	CharWrite                            // may be written to, with a reply
	CharNotify                           // supports notifications
	CharIndicate                         // supports indications
	CharSignedWrite                      // supports signed writes
	CharExtended                         // has extended properties
)

var propName = []string{
	"broadcast", "read", "write without response", "write",
	"notify", "indicate", "authenticated signed writes", "extended properties",
}

// Names lists the set flags in bit order.
func (p Property) Names() []string {
	var s []string
	for i, n := range propName {
		if p&(1<<uint(i)) != 0 {
			s = append(s, n)
		}
	}
	return s
}

func (p Property) String() string { return strings.Join(p.Names(), ", ") }
