package adv

import "fmt"

// MaxEIRPacketLength is the maximum allowed AdvertisingPacket
// and ScanResponsePacket length.
const MaxEIRPacketLength = 31

// MaxExtendedInquiryLength is the size of a BR/EDR extended inquiry response.
const MaxExtendedInquiryLength = 240

// Type is an AD structure type.
type Type uint8

// advertising data field types
const (
	TypeFlags             Type = 0x01 // Flags
	TypeSomeUUID16        Type = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	TypeAllUUID16         Type = 0x03 // Complete List of 16-bit Service Class UUIDs
	TypeSomeUUID32        Type = 0x04 // Incomplete List of 32-bit Service Class UUIDs
	TypeAllUUID32         Type = 0x05 // Complete List of 32-bit Service Class UUIDs
	TypeSomeUUID128       Type = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	TypeAllUUID128        Type = 0x07 // Complete List of 128-bit Service Class UUIDs
	TypeShortName         Type = 0x08 // Shortened Local Name
	TypeCompleteName      Type = 0x09 // Complete Local Name
	TypeTxPower           Type = 0x0A // Tx Power Level
	TypeClassOfDevice     Type = 0x0D // Class of Device
	TypeSimplePairingC192 Type = 0x0E // Simple Pairing Hash C-192
	TypeSimplePairingR192 Type = 0x0F // Simple Pairing Randomizer R-192
	TypeSecManagerTK      Type = 0x10 // Security Manager TK Value
	TypeSecManagerOOB     Type = 0x11 // Security Manager Out of Band Flags
	TypeSlaveConnInt      Type = 0x12 // Slave Connection Interval Range
	TypeServiceSol16      Type = 0x14 // List of 16-bit Service Solicitation UUIDs
	TypeServiceSol128     Type = 0x15 // List of 128-bit Service Solicitation UUIDs
	TypeServiceData16     Type = 0x16 // Service Data - 16-bit UUID
	TypePubTargetAddr     Type = 0x17 // Public Target Address
	TypeRandTargetAddr    Type = 0x18 // Random Target Address
	TypeAppearance        Type = 0x19 // Appearance
	TypeAdvInterval       Type = 0x1A // Advertising Interval
	TypeLEDeviceAddr      Type = 0x1B // LE Bluetooth Device Address
	TypeLERole            Type = 0x1C // LE Role
	TypeServiceSol32      Type = 0x1F // List of 32-bit Service Solicitation UUIDs
	TypeServiceData32     Type = 0x20 // Service Data - 32-bit UUID
	TypeServiceData128    Type = 0x21 // Service Data - 128-bit UUID
	TypeLESecConfirm      Type = 0x22 // LE Secure Connections Confirmation Value
	TypeLESecRandom       Type = 0x23 // LE Secure Connections Random Value
	TypeURI               Type = 0x24 // URI
	TypeManufacturerData  Type = 0xFF // Manufacturer Specific Data
)

var typeName = map[Type]string{
	TypeFlags:             "Flags",
	TypeSomeUUID16:        "Incomplete List of 16-bit Service Class UUIDs",
	TypeAllUUID16:         "Complete List of 16-bit Service Class UUIDs",
	TypeSomeUUID32:        "Incomplete List of 32-bit Service Class UUIDs",
	TypeAllUUID32:         "Complete List of 32-bit Service Class UUIDs",
	TypeSomeUUID128:       "Incomplete List of 128-bit Service Class UUIDs",
	TypeAllUUID128:        "Complete List of 128-bit Service Class UUIDs",
	TypeShortName:         "Shortened Local Name",
	TypeCompleteName:      "Complete Local Name",
	TypeTxPower:           "Tx Power Level",
	TypeClassOfDevice:     "Class of Device",
	TypeSimplePairingC192: "Simple Pairing Hash C-192",
	TypeSimplePairingR192: "Simple Pairing Randomizer R-192",
	TypeSecManagerTK:      "Security Manager TK Value",
	TypeSecManagerOOB:     "Security Manager Out of Band Flags",
	TypeSlaveConnInt:      "Peripheral Connection Interval Range",
	TypeServiceSol16:      "List of 16-bit Service Solicitation UUIDs",
	TypeServiceSol128:     "List of 128-bit Service Solicitation UUIDs",
	TypeServiceData16:     "Service Data - 16-bit UUID",
	TypePubTargetAddr:     "Public Target Address",
	TypeRandTargetAddr:    "Random Target Address",
	TypeAppearance:        "Appearance",
	TypeAdvInterval:       "Advertising Interval",
	TypeLEDeviceAddr:      "LE Bluetooth Device Address",
	TypeLERole:            "LE Role",
	TypeServiceSol32:      "List of 32-bit Service Solicitation UUIDs",
	TypeServiceData32:     "Service Data - 32-bit UUID",
	TypeServiceData128:    "Service Data - 128-bit UUID",
	TypeLESecConfirm:      "LE Secure Connections Confirmation Value",
	TypeLESecRandom:       "LE Secure Connections Random Value",
	TypeURI:               "URI",
	TypeManufacturerData:  "Manufacturer Specific Data",
}

func (t Type) String() string {
	if n, ok := typeName[t]; ok {
		return n
	}
	return fmt.Sprintf("AD type 0x%02X", uint8(t))
}

// Flags is the value of a Flags AD structure.
type Flags uint8

// flag bits
const (
	FlagLimitedDiscoverable Flags = 1 << iota // LE Limited Discoverable Mode
	FlagGeneralDiscoverable                   // LE General Discoverable Mode
	FlagLEOnly                                // BR/EDR Not Supported. Bit 37 of LMP Feature Mask Definitions (Page 0)
	FlagBothController                        // Simultaneous LE and BR/EDR to Same Device Capable (Controller).
	FlagBothHost                              // Simultaneous LE and BR/EDR to Same Device Capable (Host).
)

var flagName = []string{
	"LE Limited Discoverable Mode",
	"LE General Discoverable Mode",
	"BR/EDR Not Supported",
	"Simultaneous LE and BR/EDR (Controller)",
	"Simultaneous LE and BR/EDR (Host)",
}

// Names lists the set bits; reserved bits render as "reserved bit N".
func (f Flags) Names() []string {
	var s []string
	for i := 0; i < 8; i++ {
		if f&(1<<uint(i)) == 0 {
			continue
		}
		if i < len(flagName) {
			s = append(s, flagName[i])
		} else {
			s = append(s, fmt.Sprintf("reserved bit %d", i))
		}
	}
	return s
}
