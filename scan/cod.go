package scan

import "fmt"

// ClassOfDevice is the 24-bit Class of Device field of BR/EDR inquiry
// responses [Assigned Numbers, 2.8].
type ClassOfDevice uint32

var serviceClassName = map[uint]string{
	13: "Limited Discoverable Mode",
	14: "LE audio",
	16: "Positioning",
	17: "Networking",
	18: "Rendering",
	19: "Capturing",
	20: "Object Transfer",
	21: "Audio",
	22: "Telephony",
	23: "Information",
}

var majorClassName = map[uint8]string{
	0x00: "Miscellaneous",
	0x01: "Computer",
	0x02: "Phone",
	0x03: "LAN/Network Access point",
	0x04: "Audio/Video",
	0x05: "Peripheral",
	0x06: "Imaging",
	0x07: "Wearable",
	0x08: "Toy",
	0x09: "Health",
	0x1F: "Uncategorized",
}

var minorClassName = map[uint8]map[uint8]string{
	0x01: {
		0x00: "Uncategorized", 0x01: "Desktop workstation", 0x02: "Server-class computer",
		0x03: "Laptop", 0x04: "Handheld PC/PDA", 0x05: "Palm-size PC/PDA",
		0x06: "Wearable computer", 0x07: "Tablet",
	},
	0x02: {
		0x00: "Uncategorized", 0x01: "Cellular", 0x02: "Cordless", 0x03: "Smartphone",
		0x04: "Wired modem or voice gateway", 0x05: "Common ISDN access",
	},
	0x04: {
		0x00: "Uncategorized", 0x01: "Wearable Headset Device", 0x02: "Hands-free Device",
		0x04: "Microphone", 0x05: "Loudspeaker", 0x06: "Headphones", 0x07: "Portable Audio",
		0x08: "Car audio", 0x09: "Set-top box", 0x0A: "HiFi Audio Device", 0x0B: "VCR",
		0x0C: "Video Camera", 0x0D: "Camcorder", 0x0E: "Video Monitor",
		0x0F: "Video Display and Loudspeaker", 0x10: "Video Conferencing", 0x12: "Gaming/Toy",
	},
	0x07: {
		0x01: "Wristwatch", 0x02: "Pager", 0x03: "Jacket", 0x04: "Helmet", 0x05: "Glasses",
	},
}

// FormatType is the two least significant bits; only format 0 is assigned.
func (c ClassOfDevice) FormatType() uint8 { return uint8(c & 0x3) }

func (c ClassOfDevice) Major() uint8 { return uint8(c>>8) & 0x1F }
func (c ClassOfDevice) Minor() uint8 { return uint8(c>>2) & 0x3F }

// ServiceClasses names the major service class bits set in c. Reserved bits
// are named by position.
func (c ClassOfDevice) ServiceClasses() []string {
	var s []string
	for bit := uint(13); bit < 24; bit++ {
		if c&(1<<bit) == 0 {
			continue
		}
		if n, ok := serviceClassName[bit]; ok {
			s = append(s, n)
		} else {
			s = append(s, fmt.Sprintf("reserved bit %d", bit))
		}
	}
	return s
}

func (c ClassOfDevice) MajorName() string {
	if n, ok := majorClassName[c.Major()]; ok {
		return n
	}
	return fmt.Sprintf("reserved(0x%02X)", c.Major())
}

func (c ClassOfDevice) MinorName() string {
	if n, ok := minorClassName[c.Major()][c.Minor()]; ok {
		return n
	}
	return fmt.Sprintf("minor(0x%02X)", c.Minor())
}

func (c ClassOfDevice) String() string {
	return fmt.Sprintf("0x%06X %s/%s", uint32(c), c.MajorName(), c.MinorName())
}
