package postgres

import (
	"fmt"

	"github.com/holiman/uint256"
)

// decode parses a decimal TEXT column into a uint256. All fixed-point
// magnitudes are stored as base-10 strings so no precision is lost in the
// round trip.
func decode(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse numeric %q: %w", s, err)
	}
	return v, nil
}

// encodeVec renders a uint256 vector as decimal strings for a TEXT[] column.
func encodeVec(vec []*uint256.Int) []string {
	out := make([]string, len(vec))
	for i, v := range vec {
		out[i] = v.Dec()
	}
	return out
}

// decodeVec parses a TEXT[] column back into a uint256 vector.
func decodeVec(ss []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		v, err := decode(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
