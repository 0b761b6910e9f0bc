//go:build linux

package linux

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/XC-/bluing"
)

const (
	solHCI    = 0 // SOL_HCI
	hciFilter = 2 // HCI_FILTER
)

// openHCISocket binds an HCI socket to device n. It prefers the user channel
// (kernel 3.14+), which gives exclusive access but requires the device to be
// down; on EINVAL or EBUSY it falls back to the raw channel with an event
// filter passing every event.
//
// The returned file is non-blocking so Close unblocks a pending Read.
func openHCISocket(n int) (f *os.File, user bool, err error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, false, errors.Wrap(bluing.ErrResourceUnavailable, err.Error())
	}
	user = true
	sa := unix.SockaddrHCI{Dev: uint16(n), Channel: unix.HCI_CHANNEL_USER}
	if err = unix.Bind(fd, &sa); err == unix.EINVAL || err == unix.EBUSY {
		user = false
		sa = unix.SockaddrHCI{Dev: uint16(n), Channel: unix.HCI_CHANNEL_RAW}
		if err = unix.Bind(fd, &sa); err == nil {
			err = setEventFilter(fd)
		}
	}
	if err == nil {
		err = unix.SetNonblock(fd, true)
	}
	if err != nil {
		unix.Close(fd)
		return nil, false, errors.Wrapf(bluing.ErrResourceUnavailable, "hci%d: %v", n, err)
	}
	return os.NewFile(uintptr(fd), "hci"), user, nil
}

// setEventFilter installs a struct hci_filter accepting every event packet
// and nothing else.
func setEventFilter(fd int) error {
	var flt [16]byte
	flt[0] = 1 << 4 // type_mask: HCI_EVENT_PKT
	for i := 4; i < 12; i++ {
		flt[i] = 0xFF // event_mask
	}
	return unix.SetsockoptString(fd, solHCI, hciFilter, string(flt[:]))
}
