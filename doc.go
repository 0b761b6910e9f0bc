// Package bluing holds the shared vocabulary of the bluing Bluetooth
// reconnaissance toolkit: device addresses, UUIDs and their assigned names,
// a bounds-checked binary cursor, and the error taxonomy every engine
// reports with.
//
// The engines live in subpackages:
//
//	sdp      Service Discovery Protocol data elements and records
//	feature  LMP and LL feature pages
//	smp      pairing capabilities
//	adv      LE advertising data
//	att      attribute protocol client
//	gatt     GATT hierarchy walker
//	hci      controller commands, events and the Controller capability
//	scan     BR/EDR inquiry and LE scanning
//	oui      organization prefix table
//	infer    BD_ADDR inference from partial captures
//	sniff    advertising sniffers on auxiliary serial peripherals
//	linux    Linux HCI and L2CAP sockets
//	store    SQLite persistence of results
//	config   YAML configuration
//
// # Errors
//
// Decoders never panic on remote-controlled bytes. Malformed input yields a
// *DecodeError (Truncated, LengthMismatch, TooDeep, Invalid) attached to the
// element that failed. Transport problems are ErrTransportTimeout,
// ErrTransportRejected (usually as a *RejectedError with the status code)
// and ErrResourceUnavailable. An empty result is a success: "nothing found"
// is never reported as an error.
//
// # Setup
//
// Engines driving the local controller need exclusive access to it. On
// Linux, bring the device down before opening it with the user channel:
//
//	sudo hciconfig hci0 down
//
// and run as root, or grant the capability:
//
//	sudo setcap 'CAP_NET_ADMIN,CAP_NET_RAW=+ep' <executable>
package bluing
