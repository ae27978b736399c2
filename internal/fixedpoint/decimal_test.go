package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // raw scaled decimal
		err  bool
	}{
		{"integer", "123", "123000000000000000000", false},
		{"fraction", "1.5", "1500000000000000000", false},
		{"bare fraction", ".5", "500000000000000000", false},
		{"zero", "0", "0", false},
		{"full precision", "0.000000000000000001", "1", false},
		{"excess precision truncates", "0.0000000000000000019", "1", false},
		{"whitespace", " 42 ", "42000000000000000000", false},
		{"empty", "", "", true},
		{"negative", "-1", "", true},
		{"plus sign", "+1", "", true},
		{"double dot", "1.2.3", "", true},
		{"garbage", "abc", "", true},
		{"lone dot", ".", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimal(tt.in)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidDecimal)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"69.31", "69.31"},
		{"0.5", "0.5"},
		{"1000.000000000000000001", "1000.000000000000000001"},
	}

	for _, tt := range tests {
		got := ToDecimal(MustFromDecimal(tt.in))
		require.Equal(t, tt.want, got)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "2.718281828459045235", "69.314718055994530941", "123456789.000000001"} {
		v := MustFromDecimal(s)
		back, err := FromDecimal(ToDecimal(v))
		require.NoError(t, err)
		require.Equal(t, v.Dec(), back.Dec())
	}
}
