// Package sniff drives serial advertising-channel sniffers, one worker per
// peripheral, and merges their captures into one time-ordered stream.
package sniff

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// FrameType tags the frames exchanged with a sniffer.
type FrameType uint8

const (
	// FrameReady is sent by the sniffer once it can take commands.
	FrameReady FrameType = iota + 1
	// FrameChannel selects the channel to follow.
	FrameChannel
	// FrameStart starts capturing.
	FrameStart
	// FramePDU carries one captured PDU.
	FramePDU
	// FrameError reports a sniffer failure.
	FrameError
)

var frameTypeName = map[FrameType]string{
	FrameReady:   "ready",
	FrameChannel: "channel",
	FrameStart:   "start",
	FramePDU:     "pdu",
	FrameError:   "error",
}

func (t FrameType) String() string {
	if n, ok := frameTypeName[t]; ok {
		return n
	}
	return fmt.Sprintf("frame(%d)", uint8(t))
}

// Frame is one CBOR item on the serial stream. CBOR items are
// self-delimiting so frames need no extra length prefix.
type Frame struct {
	Type    FrameType `cbor:"1,keyasint"`
	Channel uint8     `cbor:"2,keyasint,omitempty"`
	Time    int64     `cbor:"3,keyasint,omitempty"` // µs since the sniffer started
	RSSI    int8      `cbor:"4,keyasint,omitempty"`
	Data    []byte    `cbor:"5,keyasint,omitempty"`
	Msg     string    `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("sniff: CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyQuiet,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: 256,
		MaxMapPairs:      16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("sniff: CBOR decoder mode: %v", err))
	}
}

// NewEncoder returns a frame encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a frame decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }

// MarshalFrame encodes one frame.
func MarshalFrame(f Frame) ([]byte, error) { return encMode.Marshal(f) }
