package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFilter parses a comma separated list of hexadecimal identifiers,
// with or without a 0x prefix. Empty elements are skipped; an empty
// expression yields an empty set, which admits all traffic.
func ParseFilter(expr string) ([]uint32, error) {
	parts := strings.Split(expr, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(strings.ToLower(p), "0x")
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a hexadecimal identifier", ErrInvalidFilter, p)
		}
		if v > uint64(MaxExtendedID) {
			return nil, fmt.Errorf("%w: %q exceeds the 29 bit identifier space", ErrInvalidFilter, p)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
