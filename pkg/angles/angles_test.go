package angles

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDmsRoundTrip(t *testing.T) {
	assert := assert.New(t)

	rad, err := DmsToRad("045.3030")
	assert.NoError(err)
	assert.Equal("045-30-30.0", RadToDmsStr(rad))
}

func TestRadToDmsWrap(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("350-00-00.0", RadToDmsStr(-10*DegToRad))
	assert.Equal("010-00-00.0", RadToDmsStr(370*DegToRad))
}

func TestDmsNegative(t *testing.T) {
	assert := assert.New(t)

	rad, err := DmsToRad("-045.3030")
	assert.NoError(err)
	assert.InDelta(-45.508333, rad*RadToDeg, 1e-4)
}

func TestWrapToPiRange(t *testing.T) {
	assert := assert.New(t)

	for _, x := range []float64{-10, -3.5, 0, 1, 3.14159, 7.0, 100.0} {
		w := WrapToPi(x)
		assert.True(w > -math.Pi-1e-9 && w <= math.Pi+1e-9, "wrapToPi(%v)=%v out of range", x, w)
	}
}

func TestWrapTo2PiRange(t *testing.T) {
	assert := assert.New(t)

	for _, x := range []float64{-10, -3.5, 0, 1, 3.14159, 7.0, 100.0} {
		w := WrapTo2Pi(x)
		assert.True(w >= 0 && w < 2*math.Pi+1e-9, "wrapTo2Pi(%v)=%v out of range", x, w)
	}
}
