package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stationsFor(pairs map[string][2]float64) *StationMap {
	sm := NewStationMap()
	for id, xy := range pairs {
		st := sm.GetOrCreate(id)
		st.X, st.Y = xy[0], xy[1]
		st.IndexX, st.IndexY, st.IndexH = -1, -1, -1
	}
	return sm
}

func TestBuildDistRowHorizontalJacobian(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{"A": {0, 0}, "B": {300, 400}})
	a, _ := sm.Get("A")
	b, _ := sm.Get("B")
	a.IndexX, a.IndexY = -1, -1 // A fixed
	b.IndexX, b.IndexY = 0, 1

	state := NewParseState()
	obs := &Observation{Kind: KindDist, Detail: &DistDetail{From: "A", To: "B", Value: 500, Mode: DistHoriz}}

	rows := buildDistRow(obs, sm, state, 2)
	assert.False(rows.Skip)
	assert.Len(rows.Rows, 1)

	row := rows.Rows[0]
	assert.InDelta(500, row.Calc, 1e-9)
	assert.InDelta(0, row.L, 1e-9) // obs matches calc exactly

	// dCalc/dB.X = dx/d = 300/500 = 0.6, dCalc/dB.Y = dy/d = 400/500 = 0.8
	assert.InDelta(0.6, row.A[0], 1e-9)
	assert.InDelta(0.8, row.A[1], 1e-9)
}

func TestBuildAngleRowMisclosureWraps(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{
		"C": {500, 800}, "A": {0, 0}, "B": {1000, 0},
	})
	c, _ := sm.Get("C")
	c.IndexX, c.IndexY = 0, 1

	obs := &Observation{Kind: KindAngle, Detail: &AngleDetail{At: "C", From: "A", To: "B", Value: angleToken(t)}}
	rows := buildAngleRow(obs, sm, 2)
	assert.False(rows.Skip)
	assert.InDelta(0, rows.Rows[0].L, 1e-3, "misclosure should be ~0 for an observation matching the geometry")
}

// angleToken returns the angle value used in the triangle fixture (295.99...
// degrees in radians), duplicated here rather than imported from the
// decoder test so this file stays a self-contained unit test of rows.go.
func angleToken(t *testing.T) float64 {
	t.Helper()
	return 295.989233583833 * math.Pi / 180
}

func TestBuildGpsRowsUsesInverseCovarianceBlock(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{"A": {0, 0}, "B": {10, 20}})
	b, _ := sm.Get("B")
	b.IndexX, b.IndexY = 0, 1

	obs := &Observation{Kind: KindGps, Detail: &GpsDetail{
		From: "A", To: "B", DE: 10, DN: 20,
		SigmaE: 0.01, SigmaN: 0.03, Rho: 0.25, HasRho: true,
	}}

	rows := buildGpsRows(obs, sm, 2)
	assert.False(rows.Skip)
	assert.Len(rows.Rows, 2)
	assert.NotNil(rows.WeightBlock)

	wb := *rows.WeightBlock
	// off-diagonal weight entries must be nonzero since rho != 0
	assert.NotEqual(0.0, wb[0][1])
	assert.Equal(wb[0][1], wb[1][0], "weight block must be symmetric")
}

func TestBuildGpsRowsInvertsCovarianceBlockCorrectly(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{"A": {0, 0}, "B": {10, 20}})
	b, _ := sm.Get("B")
	b.IndexX, b.IndexY = 0, 1

	obs := &Observation{Kind: KindGps, Detail: &GpsDetail{
		From: "A", To: "B", DE: 10, DN: 20,
		SigmaE: 0.01, SigmaN: 0.03, Rho: 0.25, HasRho: true,
	}}

	rows := buildGpsRows(obs, sm, 2)
	assert.False(rows.Skip)
	wb := *rows.WeightBlock
	assert.InDelta(10666.6667, wb[0][0], 1e-2)
	assert.InDelta(-888.8889, wb[0][1], 1e-2)
	assert.InDelta(1185.1852, wb[1][1], 1e-2)
}

func TestBuildGpsRowsClampsExtremeCorrelation(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{"A": {0, 0}, "B": {10, 20}})
	b, _ := sm.Get("B")
	b.IndexX, b.IndexY = 0, 1

	obs := &Observation{Kind: KindGps, Detail: &GpsDetail{
		From: "A", To: "B", DE: 10, DN: 20,
		SigmaE: 0.02, SigmaN: 0.02, Rho: 1.0, HasRho: true,
	}}

	rows := buildGpsRows(obs, sm, 2)
	assert.False(rows.Skip)
	wb := *rows.WeightBlock
	// rho is clamped to 0.999, not 1.0, so the block must stay finite and
	// symmetric rather than blowing up from an exactly-singular covariance.
	assert.False(math.IsInf(wb[0][0], 0))
	assert.Equal(wb[0][1], wb[1][0])
}

func TestBuildZenithRowAppliesCurvatureCorrection(t *testing.T) {
	assert := assert.New(t)

	sm := stationsFor(map[string][2]float64{"A": {0, 0}, "B": {1000, 0}})
	a, _ := sm.Get("A")
	b, _ := sm.Get("B")
	a.H, b.H = 0, 0
	b.IndexX, b.IndexY, b.IndexH = -1, -1, 0
	a.IndexH = -1

	state := NewParseState()
	state.VerticalReduction = VerticalReductionNone
	zen := math.Acos(0) // 90 degrees, flat line of sight
	obs := &Observation{Kind: KindZenith, Detail: &ZenithDetail{From: "A", To: "B", Value: zen}}
	flat := buildZenithRow(obs, sm, state, 1)
	assert.False(flat.Skip)

	state.VerticalReduction = VerticalReductionCurvRef
	state.RefractionK = 0.13
	curved := buildZenithRow(obs, sm, state, 1)
	assert.NotEqual(flat.Rows[0].Calc, curved.Rows[0].Calc, "curvature+refraction correction should shift the predicted zenith")
}
