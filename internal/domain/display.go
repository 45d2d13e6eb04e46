package domain

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// DisplayMode selects how a payload is rendered at the display boundary.
type DisplayMode int

const (
	// ModeBinary renders each byte as 8 binary digits.
	ModeBinary DisplayMode = iota

	// ModeDecimal8 renders each byte as an unsigned decimal.
	ModeDecimal8

	// ModeDecimal16 renders byte pairs as 16-bit unsigned decimals.
	ModeDecimal16

	// ModeDecoded renders signal values from a decoder, when available.
	ModeDecoded
)

// String returns the mode name used in configuration and logs.
func (m DisplayMode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeDecimal8:
		return "dec8"
	case ModeDecimal16:
		return "dec16"
	case ModeDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// Next cycles to the following display mode, wrapping after ModeDecoded.
func (m DisplayMode) Next() DisplayMode {
	switch m {
	case ModeBinary:
		return ModeDecimal8
	case ModeDecimal8:
		return ModeDecimal16
	case ModeDecimal16:
		return ModeDecoded
	default:
		return ModeBinary
	}
}

// DecodeErrorText is the sentinel rendered when a decoder fails for a frame.
const DecodeErrorText = "decode error"

// noDecoderText is rendered in ModeDecoded when no decoder is configured.
const noDecoderText = "no decoder"

// FormatPayload renders data according to mode. bigEndian applies to
// ModeDecimal16 only. decoded is the signal map from a Decoder, or nil when
// decoding is unavailable; decodeErr marks a failed decode attempt.
func FormatPayload(mode DisplayMode, data []byte, bigEndian bool, decoded map[string]float64, decodeErr bool) string {
	switch mode {
	case ModeBinary:
		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = fmt.Sprintf("%08b", b)
		}
		return strings.Join(parts, " ")

	case ModeDecimal8:
		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = fmt.Sprintf("%d", b)
		}
		return strings.Join(parts, " ")

	case ModeDecimal16:
		if len(data)%2 != 0 {
			return "N/A (odd bytes)"
		}
		parts := make([]string, 0, len(data)/2)
		for i := 0; i < len(data); i += 2 {
			var v uint16
			if bigEndian {
				v = binary.BigEndian.Uint16(data[i : i+2])
			} else {
				v = binary.LittleEndian.Uint16(data[i : i+2])
			}
			parts = append(parts, fmt.Sprintf("%d", v))
		}
		return strings.Join(parts, " ")

	case ModeDecoded:
		if decodeErr {
			return DecodeErrorText
		}
		if decoded == nil {
			return noDecoderText
		}
		names := make([]string, 0, len(decoded))
		for k := range decoded {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, k := range names {
			parts[i] = fmt.Sprintf("%s: %g", k, decoded[k])
		}
		return strings.Join(parts, ", ")

	default:
		return ""
	}
}
