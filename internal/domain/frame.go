package domain

import (
	"fmt"
	"strings"
	"time"
)

// Identifier limits for standard (11-bit) and extended (29-bit) frames.
const (
	MaxStandardID uint32 = 0x7FF
	MaxExtendedID uint32 = 0x1FFFFFFF
)

// Payload limits for classic CAN and CAN FD frames.
const (
	MaxClassicPayload = 8
	MaxFDPayload      = 64
)

// Estimated bits on the wire per frame, header plus a fixed stuffing and
// overhead allowance. These are approximations used for bus-load estimation,
// not a bit-exact encoding of frame length.
const (
	classicFrameBits = 47 + 64
	fdFrameBits      = 128 + 64
)

// Direction indicates whether a frame was received from or transmitted to
// the bus.
type Direction int

const (
	RX Direction = iota
	TX
)

// String returns "RX" or "TX".
func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// Frame is a single CAN or CAN-FD message. A frame is immutable once
// constructed; the pipeline copies it by value.
type Frame struct {
	// ID is the arbitration identifier, 11-bit or 29-bit.
	ID uint32

	// Extended is true for 29-bit identifiers.
	Extended bool

	// FD is true for CAN FD frames (payload up to 64 bytes).
	FD bool

	// Data is the payload, 0-8 bytes classic or 0-64 bytes FD.
	Data []byte

	// Time is when the frame was observed (receive path) or constructed
	// (transmit path).
	Time time.Time

	// Direction is RX for frames read off the bus, TX for frames sent by us.
	Direction Direction
}

// NewFrame constructs a validated frame with the given mode limits applied.
// The payload is copied.
func NewFrame(id uint32, data []byte, extended, fd bool, dir Direction) (Frame, error) {
	f := Frame{
		ID:        id,
		Extended:  extended,
		FD:        fd,
		Data:      append([]byte(nil), data...),
		Time:      time.Now(),
		Direction: dir,
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks the identifier and payload against the frame's mode limits.
func (f Frame) Validate() error {
	maxID := MaxStandardID
	if f.Extended {
		maxID = MaxExtendedID
	}
	if f.ID > maxID {
		return fmt.Errorf("%w: 0x%X exceeds 0x%X", ErrInvalidID, f.ID, maxID)
	}
	maxLen := MaxClassicPayload
	if f.FD {
		maxLen = MaxFDPayload
	}
	if len(f.Data) > maxLen {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(f.Data), maxLen)
	}
	return nil
}

// WireBits returns the estimated number of bits this frame occupies on the
// bus, distinguishing classic CAN from CAN FD framing overhead.
func (f Frame) WireBits() int {
	if f.FD {
		return fdFrameBits
	}
	return classicFrameBits
}

// IDString formats the identifier as uppercase hex without a 0x prefix,
// the conventional notation in CAN tooling.
func (f Frame) IDString() string {
	return fmt.Sprintf("%X", f.ID)
}

// DataString formats the payload as space-separated uppercase hex bytes.
func (f Frame) DataString() string {
	var b strings.Builder
	for i, v := range f.Data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
