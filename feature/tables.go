package feature

// LMP feature page 0, Core Vol 2 Part C 3.3.
var lmpPage0 = map[int]string{
	0:  "3 slot packets",
	1:  "5 slot packets",
	2:  "Encryption",
	3:  "Slot offset",
	4:  "Timing accuracy",
	5:  "Role switch",
	6:  "Hold mode",
	7:  "Sniff mode",
	8:  "Previously used",
	9:  "Power control requests",
	10: "Channel quality driven data rate (CQDDR)",
	11: "SCO link",
	12: "HV2 packets",
	13: "HV3 packets",
	14: "u-law log synchronous data",
	15: "A-law log synchronous data",
	16: "CVSD synchronous data",
	17: "Paging parameter negotiation",
	18: "Power control",
	19: "Transparent synchronous data",
	20: "Flow control lag (least significant bit)",
	21: "Flow control lag (middle bit)",
	22: "Flow control lag (most significant bit)",
	23: "Broadcast Encryption",
	25: "Enhanced Data Rate ACL 2 Mb/s mode",
	26: "Enhanced Data Rate ACL 3 Mb/s mode",
	27: "Enhanced inquiry scan",
	28: "Interlaced inquiry scan",
	29: "Interlaced page scan",
	30: "RSSI with inquiry results",
	31: "Extended SCO link (EV3 packets)",
	32: "EV4 packets",
	33: "EV5 packets",
	35: "AFH capable slave",
	36: "AFH classification slave",
	37: "BR/EDR Not Supported",
	38: "LE Supported (Controller)",
	39: "3-slot Enhanced Data Rate ACL packets",
	40: "5-slot Enhanced Data Rate ACL packets",
	41: "Sniff subrating",
	42: "Pause encryption",
	43: "AFH capable master",
	44: "AFH classification master",
	45: "Enhanced Data Rate eSCO 2 Mb/s mode",
	46: "Enhanced Data Rate eSCO 3 Mb/s mode",
	47: "3-slot Enhanced Data Rate eSCO packets",
	48: "Extended Inquiry Response",
	49: "Simultaneous LE and BR/EDR to Same Device Capable (Controller)",
	51: "Secure Simple Pairing (Controller Support)",
	52: "Encapsulated PDU",
	53: "Erroneous Data Reporting",
	54: "Non-flushable Packet Boundary Flag",
	56: "HCI_Link_Supervision_Timeout_Changed event",
	57: "Variable Inquiry TX Power Level",
	58: "Enhanced Power Control",
	63: "Extended features",
}

// LMP feature page 1 carries host support bits.
var lmpPage1 = map[int]string{
	0: "Secure Simple Pairing (Host Support)",
	1: "LE Supported (Host)",
	2: "Simultaneous LE and BR/EDR to Same Device Capable (Host)",
	3: "Secure Connections (Host Support)",
}

var lmpPage2 = map[int]string{
	0:  "Connectionless Slave Broadcast - Master Operation",
	1:  "Connectionless Slave Broadcast - Slave Operation",
	2:  "Synchronization Train",
	3:  "Synchronization Scan",
	4:  "HCI_Inquiry_Response_Notification event",
	5:  "Generalized interlaced scan",
	6:  "Coarse Clock Adjustment",
	8:  "Secure Connections (Controller Support)",
	9:  "Ping",
	10: "Slot Availability Mask",
	11: "Train nudging",
}

// LL feature set, Core Vol 6 Part B 4.6.
var llPage0 = map[int]string{
	0:  "LE Encryption",
	1:  "Connection Parameters Request Procedure",
	2:  "Extended Reject Indication",
	3:  "Slave-initiated Features Exchange",
	4:  "LE Ping",
	5:  "LE Data Packet Length Extension",
	6:  "LL Privacy",
	7:  "Extended Scanner Filter Policies",
	8:  "LE 2M PHY",
	9:  "Stable Modulation Index - Transmitter",
	10: "Stable Modulation Index - Receiver",
	11: "LE Coded PHY",
	12: "LE Extended Advertising",
	13: "LE Periodic Advertising",
	14: "Channel Selection Algorithm #2",
	15: "LE Power Class 1",
	16: "Minimum Number of Used Channels Procedure",
	17: "Connection CTE Request",
	18: "Connection CTE Response",
	19: "Connectionless CTE Transmitter",
	20: "Connectionless CTE Receiver",
	21: "Antenna Switching During CTE Transmission (AoD)",
	22: "Antenna Switching During CTE Reception (AoA)",
	23: "Receiving Constant Tone Extensions",
	24: "Periodic Advertising Sync Transfer - Sender",
	25: "Periodic Advertising Sync Transfer - Recipient",
	26: "Sleep Clock Accuracy Updates",
	27: "Remote Public Key Validation",
	28: "Connected Isochronous Stream - Master",
	29: "Connected Isochronous Stream - Slave",
	30: "Isochronous Broadcaster",
	31: "Synchronized Receiver",
	32: "Isochronous Channels (Host Support)",
	33: "LE Power Control Request",
	34: "LE Power Change Indication",
	35: "LE Path Loss Monitoring",
}

// MaxLMPPage is the last LMP feature page read from a remote device: the
// base page and three extended pages.
const MaxLMPPage = 3

// Tables maps (kind, page) to bit names. A Tables is read-only once built.
type Tables struct {
	pages map[Kind][]map[int]string
}

// NewTables builds tables from per-kind page lists; page i of kind k is
// pages[k][i]. The maps are not copied and must not be modified afterwards.
func NewTables(pages map[Kind][]map[int]string) Tables {
	return Tables{pages: pages}
}

var defaultTables = NewTables(map[Kind][]map[int]string{
	LMP: {lmpPage0, lmpPage1, lmpPage2},
	LL:  {llPage0},
})

// DefaultTables returns the built-in LMP pages 0 to 2 and the LL page.
func DefaultTables() Tables { return defaultTables }

// name returns the name of bit i, or "" when the table has none.
func (t Tables) name(k Kind, page, i int) string {
	ps := t.pages[k]
	if page < 0 || page >= len(ps) {
		return ""
	}
	return ps[page][i]
}
