package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChiSquarePValueMonotone(t *testing.T) {
	assert := assert.New(t)

	p1 := ChiSquarePValue(5, 10)
	p2 := ChiSquarePValue(15, 10)
	p3 := ChiSquarePValue(30, 10)
	assert.True(p1 > p2)
	assert.True(p2 > p3)
}

func TestChiSquareQuantileRoundTrip(t *testing.T) {
	assert := assert.New(t)

	dof := 10
	lower := ChiSquareQuantile(0.025, dof)
	upper := ChiSquareQuantile(0.975, dof)

	assert.InDelta(0.975, ChiSquarePValue(lower, dof), 0.01)
	assert.InDelta(0.025, ChiSquarePValue(upper, dof), 0.01)
}

func TestChiSquareQuantileEdges(t *testing.T) {
	assert := assert.New(t)

	assert.True(math.IsInf(ChiSquareQuantile(1, 5), 1))
	assert.Equal(0.0, ChiSquareQuantile(0, 5))
}

func TestGammlnKnownValue(t *testing.T) {
	assert := assert.New(t)
	// Gamma(5) = 4! = 24
	assert.InDelta(24.0, math.Exp(Gammln(5)), 1e-6)
}
