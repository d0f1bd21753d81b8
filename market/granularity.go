package market

import (
	"fmt"
	"strings"
)

// Granularity is the fixed width of an aggregation window. The set is closed;
// widths come from the table below and nowhere else.
type Granularity int

const (
	M1 Granularity = iota + 1
	M5
	M30
	H1
	H5
	D1
	D10
)

var granularitySeconds = map[Granularity]int64{
	M1:  60,
	M5:  300,
	M30: 1800,
	H1:  3600,
	H5:  18000,
	D1:  86400,
	D10: 864000,
}

var granularityNames = map[Granularity]string{
	M1:  "M1",
	M5:  "M5",
	M30: "M30",
	H1:  "H1",
	H5:  "H5",
	D1:  "D1",
	D10: "D10",
}

// Granularities returns the supported set in ascending width.
func Granularities() []Granularity {
	return []Granularity{M1, M5, M30, H1, H5, D1, D10}
}

// Seconds returns the window width. It is 0 for values outside the set.
func (g Granularity) Seconds() int64 {
	return granularitySeconds[g]
}

func (g Granularity) Valid() bool {
	_, ok := granularitySeconds[g]
	return ok
}

func (g Granularity) String() string {
	if name, ok := granularityNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// ParseGranularity maps a short name such as "M5" or "d1" to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for g, n := range granularityNames {
		if n == name {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, s)
}

// MarshalText and UnmarshalText let configs carry granularities by name.
func (g Granularity) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedGranularity, int(g))
	}
	return []byte(g.String()), nil
}

func (g *Granularity) UnmarshalText(b []byte) error {
	parsed, err := ParseGranularity(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
