package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGranularitySeconds(t *testing.T) {
	t.Parallel()

	want := map[Granularity]int64{
		M1: 60, M5: 300, M30: 1800, H1: 3600, H5: 18000, D1: 86400, D10: 864000,
	}
	for g, sec := range want {
		assert.Equal(t, sec, g.Seconds(), g.String())
		assert.True(t, g.Valid())
	}
	assert.Len(t, Granularities(), len(want))
	assert.Zero(t, Granularity(0).Seconds())
	assert.False(t, Granularity(99).Valid())
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{in: "M1", want: M1},
		{in: "m5", want: M5},
		{in: " M30 ", want: M30},
		{in: "H1", want: H1},
		{in: "H5", want: H5},
		{in: "D1", want: D1},
		{in: "D10", want: D10},
		{in: "M15", wantErr: true},
		{in: "", wantErr: true},
		{in: "1m", wantErr: true},
	}

	for _, tt := range tests {
		g, err := ParseGranularity(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedGranularity, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, g)
	}
}

func TestGranularityYAML(t *testing.T) {
	t.Parallel()

	var doc struct {
		G Granularity `yaml:"g"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("g: h5\n"), &doc))
	assert.Equal(t, H5, doc.G)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "g: H5\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("g: W1\n"), &doc))
}
