// Package gatt walks the attribute hierarchy of a remote GATT server.
package gatt

import "github.com/XC-/bluing"

// Attribute types used by discovery.
var (
	PrimaryServiceUUID   = bluing.UUID16(0x2800)
	SecondaryServiceUUID = bluing.UUID16(0x2801)
	IncludeUUID          = bluing.UUID16(0x2802)
	CharacteristicUUID   = bluing.UUID16(0x2803)

	ClientCharacteristicConfigUUID = bluing.UUID16(0x2902)
	ServerCharacteristicConfigUUID = bluing.UUID16(0x2903)
)
