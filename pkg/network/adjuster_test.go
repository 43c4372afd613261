package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignParameterIndicesOrdersByInsertion(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	result := &AdjustmentResult{}

	n := assignParameterIndices(pn, result)
	assert.Equal(2, n)

	a, _ := pn.Stations.Get("A")
	b, _ := pn.Stations.Get("B")
	c, _ := pn.Stations.Get("C")
	assert.Equal(-1, a.IndexX)
	assert.Equal(-1, b.IndexX)
	assert.Equal(0, c.IndexX)
	assert.Equal(1, c.IndexY)
}

func TestCollectControlConstraintsOneRowPerComponent(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	assignParameterIndices(pn, &AdjustmentResult{})

	c, _ := pn.Stations.Get("C")
	c.ConstraintX = &Constraint{Value: 500, Sigma: 0.01}

	constraints := collectControlConstraints(pn.Stations)
	assert.Len(constraints, 1)
	assert.Equal("E", constraints[0].Component)
	assert.Equal(c.IndexX, constraints[0].ParamIndex)
}

func TestSelectActiveObservationsExcludesSideshotsAndExcludeSet(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
SS A C 943.3981 AZ=212.001938
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	active := selectActiveObservations(pn, DefaultAdjustOptions())
	for _, obs := range active {
		assert.False(obs.Sideshot)
	}

	opts := AdjustOptions{Exclude: map[int]bool{0: true}}
	active = selectActiveObservations(pn, opts)
	for _, obs := range active {
		assert.NotEqual(0, obs.ID)
	}
}

func TestAdjustReportsZeroDofWhenExactlyDetermined(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	result := Adjust(pn, DefaultAdjustOptions())
	assert.True(result.Success)
	assert.Equal(0, result.Dof)
}
