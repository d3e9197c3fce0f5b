package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeries(t *testing.T) {
	var buf bytes.Buffer
	times := []float64{0, 1, 2}
	series := [][]float64{{0, 1, 0}, {1, 1, 1}}
	require.NoError(t, TimeSeries(&buf, times, series, []string{"x<0>", "x1"}, 200, 100))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Equal(t, 2, strings.Count(out, "<path"))
	assert.Contains(t, out, "x&lt;0&gt;")
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
}

func TestTimeSeriesErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, TimeSeries(&buf, []float64{0}, [][]float64{{0}}, nil, 10, 10))
	assert.Error(t, TimeSeries(&buf, []float64{0, 1}, nil, nil, 10, 10))
	assert.Error(t, TimeSeries(&buf, []float64{0, 1}, [][]float64{{0}}, nil, 10, 10))
	assert.Zero(t, buf.Len())
}

func TestPhase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Phase(&buf, []float64{1, 0, -1, 0}, []float64{0, -1, 0, 1}, 100, 100))
	assert.Equal(t, 1, strings.Count(buf.String(), "<path"))
	assert.Error(t, Phase(&buf, []float64{1}, []float64{0, 1}, 100, 100))
}
