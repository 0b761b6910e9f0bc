package bluing

import "sync"

// UUIDNames maps 16-bit assigned numbers to display names. A UUIDNames is
// never modified after construction and is safe to share.
type UUIDNames struct {
	m map[uint16]string
}

// NewUUIDNames copies m into a new read-only table.
func NewUUIDNames(m map[uint16]string) UUIDNames {
	c := make(map[uint16]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return UUIDNames{m: c}
}

// Name returns the assigned name of u, or "" when u is not a known
// 16-bit assigned number.
func (n UUIDNames) Name(u UUID) string {
	s, ok := u.Short()
	if !ok {
		return ""
	}
	return n.m[s]
}

// Describe returns "name (uuid)", or just the uuid when the name is unknown.
func (n UUIDNames) Describe(u UUID) string {
	if name := n.Name(u); name != "" {
		return name + " (" + u.String() + ")"
	}
	return u.String()
}

// Len returns the number of entries.
func (n UUIDNames) Len() int { return len(n.m) }

var (
	defaultNames     UUIDNames
	defaultNamesOnce sync.Once
)

// DefaultUUIDNames returns the built-in table of protocol, SDP service class
// and GATT assigned numbers.
func DefaultUUIDNames() UUIDNames {
	defaultNamesOnce.Do(func() { defaultNames = NewUUIDNames(knownUUID) })
	return defaultNames
}

var knownUUID = map[uint16]string{
	// Protocols
	0x0001: "SDP",
	0x0002: "UDP",
	0x0003: "RFCOMM",
	0x0004: "TCP",
	0x0005: "TCS-BIN",
	0x0006: "TCS-AT",
	0x0007: "ATT",
	0x0008: "OBEX",
	0x0009: "IP",
	0x000A: "FTP",
	0x000C: "HTTP",
	0x000E: "WSP",
	0x000F: "BNEP",
	0x0010: "UPNP",
	0x0011: "HIDP",
	0x0012: "HardcopyControlChannel",
	0x0014: "HardcopyDataChannel",
	0x0016: "HardcopyNotification",
	0x0017: "AVCTP",
	0x0019: "AVDTP",
	0x001B: "CMTP",
	0x001E: "MCAPControlChannel",
	0x001F: "MCAPDataChannel",
	0x0100: "L2CAP",

	// SDP service classes
	0x1000: "ServiceDiscoveryServerServiceClassID",
	0x1001: "BrowseGroupDescriptorServiceClassID",
	0x1002: "PublicBrowseRoot",
	0x1101: "SerialPort",
	0x1102: "LANAccessUsingPPP",
	0x1103: "DialupNetworking",
	0x1104: "IrMCSync",
	0x1105: "OBEXObjectPush",
	0x1106: "OBEXFileTransfer",
	0x1107: "IrMCSyncCommand",
	0x1108: "Headset",
	0x1109: "CordlessTelephony",
	0x110A: "AudioSource",
	0x110B: "AudioSink",
	0x110C: "A/V_RemoteControlTarget",
	0x110D: "AdvancedAudioDistribution",
	0x110E: "A/V_RemoteControl",
	0x110F: "A/V_RemoteControlController",
	0x1110: "Intercom",
	0x1111: "Fax",
	0x1112: "Headset - Audio Gateway (AG)",
	0x1113: "WAP",
	0x1114: "WAP_CLIENT",
	0x1115: "PANU",
	0x1116: "NAP",
	0x1117: "GN",
	0x1118: "DirectPrinting",
	0x1119: "ReferencePrinting",
	0x111A: "Basic Imaging Profile",
	0x111B: "ImagingResponder",
	0x111C: "ImagingAutomaticArchive",
	0x111D: "ImagingReferencedObjects",
	0x111E: "Handsfree",
	0x111F: "HandsfreeAudioGateway",
	0x1120: "DirectPrintingReferenceObjectsService",
	0x1121: "ReflectedUI",
	0x1122: "BasicPrinting",
	0x1123: "PrintingStatus",
	0x1124: "HumanInterfaceDeviceService",
	0x1125: "HardcopyCableReplacement",
	0x1126: "HCR_Print",
	0x1127: "HCR_Scan",
	0x1128: "Common_ISDN_Access",
	0x112D: "SIM_Access",
	0x112E: "Phonebook Access - PCE",
	0x112F: "Phonebook Access - PSE",
	0x1130: "Phonebook Access",
	0x1131: "Headset - HS",
	0x1132: "Message Access Server",
	0x1133: "Message Notification Server",
	0x1134: "Message Access Profile",
	0x1135: "GNSS",
	0x1136: "GNSS_Server",
	0x1200: "PnPInformation",
	0x1201: "GenericNetworking",
	0x1202: "GenericFileTransfer",
	0x1203: "GenericAudio",
	0x1204: "GenericTelephony",
	0x1205: "UPNP_Service",
	0x1206: "UPNP_IP_Service",
	0x1300: "ESDP_UPNP_IP_PAN",
	0x1301: "ESDP_UPNP_IP_LAP",
	0x1302: "ESDP_UPNP_L2CAP",
	0x1303: "VideoSource",
	0x1304: "VideoSink",
	0x1305: "VideoDistribution",
	0x1400: "HDP",
	0x1401: "HDP Source",
	0x1402: "HDP Sink",

	// GATT services
	0x1800: "Generic Access",
	0x1801: "Generic Attribute",
	0x1802: "Immediate Alert",
	0x1803: "Link Loss",
	0x1804: "Tx Power",
	0x1805: "Current Time Service",
	0x1806: "Reference Time Update Service",
	0x1807: "Next DST Change Service",
	0x1808: "Glucose",
	0x1809: "Health Thermometer",
	0x180A: "Device Information",
	0x180D: "Heart Rate",
	0x180E: "Phone Alert Status Service",
	0x180F: "Battery Service",
	0x1810: "Blood Pressure",
	0x1811: "Alert Notification Service",
	0x1812: "Human Interface Device",
	0x1813: "Scan Parameters",
	0x1814: "Running Speed and Cadence",
	0x1816: "Cycling Speed and Cadence",
	0x1818: "Cycling Power",
	0x1819: "Location and Navigation",
	0x181C: "User Data",
	0x181D: "Weight Scale",

	// GATT declarations and descriptors
	0x2800: "Primary Service",
	0x2801: "Secondary Service",
	0x2802: "Include",
	0x2803: "Characteristic",
	0x2900: "Characteristic Extended Properties",
	0x2901: "Characteristic User Description",
	0x2902: "Client Characteristic Configuration",
	0x2903: "Server Characteristic Configuration",
	0x2904: "Characteristic Presentation Format",
	0x2905: "Characteristic Aggregate Format",
	0x2906: "Valid Range",
	0x2908: "Report Reference",

	// GATT characteristics
	0x2A00: "Device Name",
	0x2A01: "Appearance",
	0x2A02: "Peripheral Privacy Flag",
	0x2A03: "Reconnection Address",
	0x2A04: "Peripheral Preferred Connection Parameters",
	0x2A05: "Service Changed",
	0x2A06: "Alert Level",
	0x2A07: "Tx Power Level",
	0x2A19: "Battery Level",
	0x2A23: "System ID",
	0x2A24: "Model Number String",
	0x2A25: "Serial Number String",
	0x2A26: "Firmware Revision String",
	0x2A27: "Hardware Revision String",
	0x2A28: "Software Revision String",
	0x2A29: "Manufacturer Name String",
	0x2A2A: "IEEE 11073-20601 Regulatory Certification Data List",
	0x2A37: "Heart Rate Measurement",
	0x2A38: "Body Sensor Location",
	0x2A4A: "HID Information",
	0x2A4B: "Report Map",
	0x2A4C: "HID Control Point",
	0x2A4D: "Report",
	0x2A4E: "Protocol Mode",
	0x2A50: "PnP ID",
	0x2AA6: "Central Address Resolution",
	0x2AC9: "Resolvable Private Address Only",
	0x2B29: "Client Supported Features",
	0x2B2A: "Database Hash",
	0x2B3A: "Server Supported Features",
}
