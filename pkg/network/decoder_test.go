package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// triangleNetwork is a minimal, exactly-consistent 2D network: two fixed
// stations and one unknown, with one redundant angle over the two
// distances (dof=1). Approximate coordinates for C already match the
// "true" geometry the observations were computed from, so the solver
// should converge in a single iteration with near-zero residuals.
const triangleNetwork = `
.UNITS M
.2D
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
A C A B 295.592124
.END
`

func parseTriangle(t *testing.T) *ParsedNetwork {
	t.Helper()
	dec := NewDecoder(strings.NewReader(triangleNetwork))
	return dec.Run()
}

func TestDecoderParsesTriangleNetwork(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)

	assert.Equal(3, pn.Stations.Len())
	assert.Len(pn.Observations, 3)

	a, _ := pn.Stations.Get("A")
	assert.True(a.FixedX && a.FixedY)
	c, _ := pn.Stations.Get("C")
	assert.False(c.FixedX || c.FixedY)
}

// TestObservationIDsAreDenseFromZero checks the density invariant: ids run
// 0..n-1 in emission order, with no gaps even across records that emit
// more than one observation.
func TestObservationIDsAreDenseFromZero(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)

	for i, obs := range pn.Observations {
		assert.Equal(i, obs.ID)
	}
}

func TestAdjustConvergesOnConsistentTriangle(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)

	result := Adjust(pn, DefaultAdjustOptions())

	assert.True(result.Success)
	assert.True(result.Converged)
	assert.Equal(2, result.NumParams) // C.X, C.Y
	assert.Equal(1, result.Dof)       // 3 observation equations - 2 params

	c, _ := pn.Stations.Get("C")
	assert.InDelta(500.0, c.X, 1e-3)
	assert.InDelta(800.0, c.Y, 1e-3)
}

func TestParameterCountMatchesUnknownComponents(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	result := Adjust(pn, DefaultAdjustOptions())

	a, _ := pn.Stations.Get("A")
	b, _ := pn.Stations.Get("B")
	c, _ := pn.Stations.Get("C")
	assert.Equal(-1, a.IndexX)
	assert.Equal(-1, b.IndexY)
	assert.True(c.IndexX >= 0 && c.IndexY >= 0)
	assert.Equal(result.NumParams, 2)
}

func TestRunStatisticsOnConsistentTriangleHasTinyResiduals(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)

	assert.Less(stats.SEUW, 1.0)
	for _, obs := range pn.Observations {
		assert.InDelta(0, obs.Residual, 1e-3)
	}
}

// TestUnconnectedHeightIsAutoDropped exercises the 3D auto-drop rule: a
// station with no leveling/zenith/slope-distance observation touching it
// gets FixedH forced before indexing.
func TestUnconnectedHeightIsAutoDropped(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
.3D
.DELTA ON
C A 0 0 0 *
C B 1000 0 0 *
C C 500 800 10
D A C 943.3981
D B C 943.3981
A C A B 295.592124
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	result := Adjust(pn, DefaultAdjustOptions())
	c, _ := pn.Stations.Get("C")
	assert.True(result.Success)
	assert.True(c.FixedH, "C's height is untouched by any Lev/Zenith/slope-Dist observation and should be auto-fixed")
}
