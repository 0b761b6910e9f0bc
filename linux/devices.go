//go:build linux

package linux

import (
	"bytes"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/XC-/bluing"
)

const (
	ioctlSize     = uintptr(4)
	hciMaxDevices = 16
	typHCI        = 72 // 'H'
)

var (
	hciGetDeviceList = ioR(typHCI, 210, ioctlSize) // HCIGETDEVLIST
	hciGetDeviceInfo = ioR(typHCI, 211, ioctlSize) // HCIGETDEVINFO
)

func ioR(t, nr, size uintptr) uintptr {
	return (2 << 30) | (t << 8) | nr | (size << 16)
}

func ioctl(fd, op, arg uintptr) error {
	if _, _, ep := unix.Syscall(unix.SYS_IOCTL, fd, op, arg); ep != 0 {
		return ep
	}
	return nil
}

type devRequest struct {
	id  uint16
	opt uint32
}

type devListRequest struct {
	devNum     uint16
	devRequest [hciMaxDevices]devRequest
}

type hciDevInfo struct {
	id         uint16
	name       [8]byte
	bdaddr     [6]byte
	flags      uint32
	devType    uint8
	features   [8]uint8
	pktType    uint32
	linkPolicy uint32
	linkMode   uint32
	aclMtu     uint16
	aclPkts    uint16
	scoMtu     uint16
	scoPkts    uint16
	stats      [10]uint32
}

// HCI device flags.
const (
	flagUp      = 1 << 0
	flagRunning = 1 << 4
)

// DeviceInfo describes one local controller.
type DeviceInfo struct {
	ID      int
	Name    string
	Addr    bluing.BDAddr
	Up      bool
	Running bool
}

// Devices lists the local HCI controllers.
func Devices() ([]DeviceInfo, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(bluing.ErrResourceUnavailable, err.Error())
	}
	defer unix.Close(fd)

	req := devListRequest{devNum: hciMaxDevices}
	if err := ioctl(uintptr(fd), hciGetDeviceList, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, errors.Wrap(err, "HCIGETDEVLIST")
	}
	dd := []DeviceInfo{}
	for i := 0; i < int(req.devNum); i++ {
		di := hciDevInfo{id: req.devRequest[i].id}
		if err := ioctl(uintptr(fd), hciGetDeviceInfo, uintptr(unsafe.Pointer(&di))); err != nil {
			return dd, errors.Wrapf(err, "HCIGETDEVINFO hci%d", di.id)
		}
		dd = append(dd, DeviceInfo{
			ID:      int(di.id),
			Name:    string(bytes.TrimRight(di.name[:], "\x00")),
			Addr:    bluing.AddrFromLittleEndian(di.bdaddr[:]),
			Up:      di.flags&flagUp != 0,
			Running: di.flags&flagRunning != 0,
		})
	}
	return dd, nil
}
