package network

import (
	"math"

	"geonet/pkg/angles"
)

// RowEquation is one scalar observation equation: A is the row of the
// design matrix (length numParams, ∂calc/∂param, zero for fixed/unindexed
// parameters), L is the misclosure (obs-calc, wrapped for angular kinds),
// and Calc is the value the observation equation predicted this iteration.
type RowEquation struct {
	A    []float64
	L    float64
	Calc float64
}

// ObsRows is the shared row-building result: the adjuster uses Rows/Weight
// to assemble N and u; statistics.go re-runs the same builder to recompute
// residuals, redundancy, and local tests (design note S9: solver and
// statistics share one row-building implementation).
type ObsRows struct {
	Rows        []RowEquation
	Weight      []float64       // per-row diagonal weight; unused where WeightBlock is set
	WeightBlock *[2][2]float64  // 2x2 weight block for a correlated GPS pair
	Skip        bool            // true if a referenced station is unknown (or a zenith's stations coincide)
}

func azimuthAndDist(fromX, fromY, toX, toY float64) (az, dx, dy, d float64) {
	dx = toX - fromX
	dy = toY - fromY
	d = math.Hypot(dx, dy)
	az = angles.WrapTo2Pi(math.Atan2(dx, dy))
	return
}

// buildObservationRows builds the design-matrix row(s), misclosure(s), and
// weight for one observation, per spec.md S4.5's per-kind assembly rules.
// numParams sizes every allocated A row.
func buildObservationRows(obs *Observation, stations *StationMap, dirSetsByID map[string]*DirectionSet, state *ParseState, numParams int) *ObsRows {
	switch obs.Kind {
	case KindDist:
		return buildDistRow(obs, stations, state, numParams)
	case KindAngle:
		return buildAngleRow(obs, stations, numParams)
	case KindDirection:
		return buildDirectionRow(obs, stations, dirSetsByID, numParams)
	case KindDir:
		return buildDirRow(obs, stations, numParams)
	case KindBearing:
		return buildBearingRow(obs, stations, numParams)
	case KindZenith:
		return buildZenithRow(obs, stations, state, numParams)
	case KindGps:
		return buildGpsRows(obs, stations, numParams)
	case KindLev:
		return buildLevRow(obs, stations, numParams)
	}
	return &ObsRows{Skip: true}
}

func mapScaleFor(state *ParseState, mode DistMode) float64 {
	if state.MapMode == MapOff {
		return 1.0
	}
	if state.CoordMode == CoordMode2D {
		return state.MapScale
	}
	if mode == DistHoriz {
		return state.MapScale
	}
	return 1.0
}

func buildDistRow(obs *Observation, stations *StationMap, state *ParseState, numParams int) *ObsRows {
	d := obs.asDist()
	from, ok1 := stations.Get(d.From)
	to, ok2 := stations.Get(d.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	dx := to.X - from.X
	dy := to.Y - from.Y
	horiz := math.Hypot(dx, dy)

	row := make([]float64, numParams)

	if d.Mode == DistHoriz {
		scale := mapScaleFor(state, d.Mode)
		calc := horiz * scale
		if horiz > 0 {
			ex, ey := scale*dx/horiz, scale*dy/horiz
			setCol(row, to.IndexX, ex)
			setCol(row, to.IndexY, ey)
			setCol(row, from.IndexX, -ex)
			setCol(row, from.IndexY, -ey)
		}
		return &ObsRows{
			Rows:   []RowEquation{{A: row, L: d.Value - calc, Calc: calc}},
			Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
		}
	}

	hi, ht := 0.0, 0.0
	if d.HI != nil {
		hi = *d.HI
	}
	if d.HT != nil {
		ht = *d.HT
	}
	deltaH := (to.H + ht) - (from.H + hi)
	calc := math.Hypot(horiz, deltaH)
	if calc > 0 {
		setCol(row, to.IndexX, dx/calc)
		setCol(row, to.IndexY, dy/calc)
		setCol(row, from.IndexX, -dx/calc)
		setCol(row, from.IndexY, -dy/calc)
		setCol(row, to.IndexH, deltaH/calc)
		setCol(row, from.IndexH, -deltaH/calc)
	}
	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: d.Value - calc, Calc: calc}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildAngleRow(obs *Observation, stations *StationMap, numParams int) *ObsRows {
	a := obs.asAngle()
	at, ok1 := stations.Get(a.At)
	from, ok2 := stations.Get(a.From)
	to, ok3 := stations.Get(a.To)
	if !ok1 || !ok2 || !ok3 {
		return &ObsRows{Skip: true}
	}

	azTo, _, _, dTo := azimuthAndDist(at.X, at.Y, to.X, to.Y)
	azFrom, _, _, dFrom := azimuthAndDist(at.X, at.Y, from.X, from.Y)
	calc := angles.WrapTo2Pi(azTo - azFrom)
	misclosure := angles.WrapToPi(a.Value - calc)

	row := make([]float64, numParams)
	if dTo > 0 {
		cTo, sTo := math.Cos(azTo)/dTo, math.Sin(azTo)/dTo
		setCol(row, to.IndexX, cTo)
		setCol(row, to.IndexY, -sTo)
		addCol(row, at.IndexX, -cTo)
		addCol(row, at.IndexY, sTo)
	}
	if dFrom > 0 {
		cFrom, sFrom := math.Cos(azFrom)/dFrom, math.Sin(azFrom)/dFrom
		setCol(row, from.IndexX, -cFrom)
		setCol(row, from.IndexY, sFrom)
		addCol(row, at.IndexX, cFrom)
		addCol(row, at.IndexY, -sFrom)
	}

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: misclosure, Calc: calc}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildDirectionRow(obs *Observation, stations *StationMap, dirSetsByID map[string]*DirectionSet, numParams int) *ObsRows {
	d := obs.asDirection()
	at, ok1 := stations.Get(d.At)
	to, ok2 := stations.Get(d.To)
	set, ok3 := dirSetsByID[d.SetID]
	if !ok1 || !ok2 || !ok3 {
		return &ObsRows{Skip: true}
	}

	az, _, _, dist := azimuthAndDist(at.X, at.Y, to.X, to.Y)
	calc := angles.WrapTo2Pi(set.Orientation + az)
	misclosure := angles.WrapToPi(d.Value - calc)

	row := make([]float64, numParams)
	if dist > 0 {
		c, s := math.Cos(az)/dist, math.Sin(az)/dist
		setCol(row, to.IndexX, c)
		setCol(row, to.IndexY, -s)
		addCol(row, at.IndexX, -c)
		addCol(row, at.IndexY, s)
	}
	if set.ParamIndex >= 0 && set.ParamIndex < numParams {
		addCol(row, set.ParamIndex, 1)
	}

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: misclosure, Calc: calc}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildDirRow(obs *Observation, stations *StationMap, numParams int) *ObsRows {
	d := obs.asDir()
	from, ok1 := stations.Get(d.From)
	to, ok2 := stations.Get(d.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	az, _, _, dist := azimuthAndDist(from.X, from.Y, to.X, to.Y)

	effObs := d.Value
	if d.Flip180 {
		alt := angles.WrapTo2Pi(d.Value + math.Pi)
		if math.Abs(angles.WrapToPi(alt-az)) < math.Abs(angles.WrapToPi(d.Value-az)) {
			effObs = alt
		}
	}
	misclosure := angles.WrapToPi(effObs - az)

	row := make([]float64, numParams)
	if dist > 0 {
		c, s := math.Cos(az)/dist, math.Sin(az)/dist
		setCol(row, to.IndexX, c)
		setCol(row, to.IndexY, -s)
		addCol(row, from.IndexX, -c)
		addCol(row, from.IndexY, s)
	}

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: misclosure, Calc: az}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildBearingRow(obs *Observation, stations *StationMap, numParams int) *ObsRows {
	b := obs.asBearing()
	from, ok1 := stations.Get(b.From)
	to, ok2 := stations.Get(b.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	az, _, _, dist := azimuthAndDist(from.X, from.Y, to.X, to.Y)
	misclosure := angles.WrapToPi(b.Value - az)

	row := make([]float64, numParams)
	if dist > 0 {
		c, s := math.Cos(az)/dist, math.Sin(az)/dist
		setCol(row, to.IndexX, c)
		setCol(row, to.IndexY, -s)
		addCol(row, from.IndexX, -c)
		addCol(row, from.IndexY, s)
	}

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: misclosure, Calc: az}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildZenithRow(obs *Observation, stations *StationMap, state *ParseState, numParams int) *ObsRows {
	z := obs.asZenith()
	from, ok1 := stations.Get(z.From)
	to, ok2 := stations.Get(z.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	hi, ht := 0.0, 0.0
	if z.HI != nil {
		hi = *z.HI
	}
	if z.HT != nil {
		ht = *z.HT
	}
	dx := to.X - from.X
	dy := to.Y - from.Y
	horiz := math.Hypot(dx, dy)
	deltaH := (to.H + ht) - (from.H + hi)
	dist := math.Hypot(horiz, deltaH)
	if dist == 0 || horiz == 0 {
		return &ObsRows{Skip: true}
	}

	calc := math.Acos(clamp(deltaH/dist, -1, 1))
	if state.VerticalReduction == VerticalReductionCurvRef {
		calc += zenithCurvRefCorrection(state.RefractionK, horiz)
	}
	misclosure := z.Value - calc

	row := make([]float64, numParams)
	dzdx := deltaH * dx / (dist * dist * horiz)
	dzdy := deltaH * dy / (dist * dist * horiz)
	dzdh := -horiz / (dist * dist)

	if state.VerticalReduction == VerticalReductionCurvRef {
		dcdhoriz := (1 - state.RefractionK) / (2 * EarthRadius)
		dzdx += dcdhoriz * dx / horiz
		dzdy += dcdhoriz * dy / horiz
	}

	setCol(row, to.IndexX, dzdx)
	setCol(row, to.IndexY, dzdy)
	setCol(row, from.IndexX, -dzdx)
	setCol(row, from.IndexY, -dzdy)
	setCol(row, to.IndexH, dzdh)
	setCol(row, from.IndexH, -dzdh)

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: misclosure, Calc: calc}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func buildGpsRows(obs *Observation, stations *StationMap, numParams int) *ObsRows {
	g := obs.asGps()
	from, ok1 := stations.Get(g.From)
	to, ok2 := stations.Get(g.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	calcE := to.X - from.X
	calcN := to.Y - from.Y

	rowE := make([]float64, numParams)
	setCol(rowE, to.IndexX, 1)
	setCol(rowE, from.IndexX, -1)

	rowN := make([]float64, numParams)
	setCol(rowN, to.IndexY, 1)
	setCol(rowN, from.IndexY, -1)

	sigmaE, sigmaN, rho := g.SigmaE, g.SigmaN, g.Rho
	if !g.HasRho {
		rho = 0
	}
	if rho > 0.999 {
		rho = 0.999
	}
	if rho < -0.999 {
		rho = -0.999
	}

	cEE := sigmaE * sigmaE
	cNN := sigmaN * sigmaN
	cEN := rho * sigmaE * sigmaN
	det := cEE*cNN - cEN*cEN

	var block [2][2]float64
	if math.Abs(det) < 1e-30 {
		block = [2][2]float64{{1 / cEE, 0}, {0, 1 / cNN}}
	} else {
		block = [2][2]float64{
			{cNN / det, -cEN / det},
			{-cEN / det, cEE / det},
		}
	}

	return &ObsRows{
		Rows: []RowEquation{
			{A: rowE, L: g.DE - calcE, Calc: calcE},
			{A: rowN, L: g.DN - calcN, Calc: calcN},
		},
		WeightBlock: &block,
	}
}

func buildLevRow(obs *Observation, stations *StationMap, numParams int) *ObsRows {
	l := obs.asLev()
	from, ok1 := stations.Get(l.From)
	to, ok2 := stations.Get(l.To)
	if !ok1 || !ok2 {
		return &ObsRows{Skip: true}
	}
	calc := to.H - from.H
	row := make([]float64, numParams)
	setCol(row, to.IndexH, 1)
	setCol(row, from.IndexH, -1)

	return &ObsRows{
		Rows:   []RowEquation{{A: row, L: l.DeltaH - calc, Calc: calc}},
		Weight: []float64{1 / (obs.StdDev * obs.StdDev)},
	}
}

func setCol(row []float64, idx int, v float64) {
	if idx >= 0 && idx < len(row) {
		row[idx] = v
	}
}

func addCol(row []float64, idx int, v float64) {
	if idx >= 0 && idx < len(row) {
		row[idx] += v
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
