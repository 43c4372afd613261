package network

import (
	"fmt"
	"math"

	"geonet/pkg/angles"
	"geonet/pkg/linalg"
)

// defaultConvergenceThreshold and defaultMaxIterations are the Adjust
// defaults when an AdjustOptions field is left zero.
const (
	defaultConvergenceThreshold = 1e-4
	defaultMaxIterations        = 20
	conditionWarnThreshold      = 1e12
)

// AdjustOptions controls one Adjust run. Zero value selects the documented
// defaults.
type AdjustOptions struct {
	MaxIterations int
	Threshold     float64
	Exclude       map[int]bool // observation ids to exclude from the solve
}

// DefaultAdjustOptions returns the documented default options.
func DefaultAdjustOptions() AdjustOptions {
	return AdjustOptions{MaxIterations: defaultMaxIterations, Threshold: defaultConvergenceThreshold}
}

func (o AdjustOptions) resolve() AdjustOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.Threshold <= 0 {
		o.Threshold = defaultConvergenceThreshold
	}
	return o
}

// controlConstraint is a weighted row tying one indexed parameter to a
// target value, contributed by a Station's ConstraintX/Y/H.
type controlConstraint struct {
	ParamIndex int
	StationID  string
	Component  string // "E", "N", or "H"
	Target     float64
	Sigma      float64
}

// AdjustmentResult is the outcome of one Adjust run: spec.md S6.2's
// AdjustmentResult value. Statistics fields (SEUW, chi-square, per-station
// covariance, diagnostics) are populated by Statistics, not Adjust.
type AdjustmentResult struct {
	Success    bool
	Converged  bool
	Iterations int

	Network *ParsedNetwork

	NumParams   int
	Dof         int
	Condition   float64
	ConditionBad bool

	ControlConstraints []controlConstraint

	// Ninv is the inverse normal matrix (the cofactor matrix Q), nil if the
	// solve never ran or N was singular.
	Ninv *linalg.Matrix

	Logs []string
}

func (r *AdjustmentResult) log(format string, args ...interface{}) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Adjust runs the Gauss-Newton solver to convergence or maxIterations, per
// spec.md S4.5.
func Adjust(pn *ParsedNetwork, opts AdjustOptions) *AdjustmentResult {
	opts = opts.resolve()
	result := &AdjustmentResult{Network: pn}

	dirSetsByID := make(map[string]*DirectionSet, len(pn.DirectionSets))
	for _, s := range pn.DirectionSets {
		dirSetsByID[s.ID] = s
	}

	if pn.State.CoordMode == CoordMode3D {
		autoDropUnconnectedHeights(pn, result)
	}

	numParams := assignParameterIndices(pn, result)
	result.NumParams = numParams

	active := selectActiveObservations(pn, opts)
	constraints := collectControlConstraints(pn.Stations)
	result.ControlConstraints = constraints

	numObsEquations := 0
	for _, obs := range active {
		if obs.Kind == KindGps {
			numObsEquations += 2
		} else {
			numObsEquations++
		}
	}
	result.Dof = numObsEquations + len(constraints) - numParams

	if numParams == 0 {
		result.log("no unknown parameters, nothing to solve")
		result.Success = true
		return result
	}
	if result.Dof < 0 {
		result.log("negative redundancy: %d observation equations, %d parameters", numObsEquations, numParams)
		result.Success = true
		return result
	}

	threshold := opts.Threshold
	for iter := 0; iter < opts.MaxIterations; iter++ {
		n := linalg.Zeros(numParams, numParams)
		u := make([]float64, numParams)

		for _, obs := range active {
			rows := buildObservationRows(obs, pn.Stations, dirSetsByID, pn.State, numParams)
			if rows.Skip {
				result.log("observation %d (%s): station not yet known, skipped this iteration", obs.ID, obs.Kind)
				continue
			}
			accumulateRows(n, u, rows)
		}
		for _, c := range constraints {
			w := 1 / (c.Sigma * c.Sigma)
			n.Add(c.ParamIndex, c.ParamIndex, w)
			u[c.ParamIndex] += w * (c.Target - constraintCurrentValue(pn.Stations, c))
		}

		result.Condition = conditionEstimate(n)
		if result.Condition > conditionWarnThreshold && !result.ConditionBad {
			result.ConditionBad = true
			result.log("ill-conditioned normal matrix, condition estimate %.3g", result.Condition)
		}

		ninv, err := linalg.Inv(n)
		if err != nil {
			result.log("Matrix Inversion Failed")
			result.Iterations = iter
			result.Success = true
			result.Converged = false
			return result
		}
		result.Ninv = ninv

		uCol := linalg.Zeros(numParams, 1)
		for i, v := range u {
			uCol.Set(i, 0, v)
		}
		corr := linalg.Multiply(ninv, uCol)

		maxAbs := applyCorrections(pn, corr)
		result.Iterations = iter + 1

		if maxAbs < threshold {
			result.Converged = true
			result.Success = true
			return result
		}
	}

	result.log("did not converge within %d iterations", opts.MaxIterations)
	result.Success = true
	result.Converged = false
	return result
}

// autoDropUnconnectedHeights fixes the H component (index=-1, excluded from
// the solve) of any unknown station that no vertical-capable observation
// (Lev, Zenith, or slope Dist) touches, per spec.md S4.5's auto-drop rule.
func autoDropUnconnectedHeights(pn *ParsedNetwork, result *AdjustmentResult) {
	touched := make(map[string]bool)
	for _, obs := range pn.Observations {
		switch obs.Kind {
		case KindLev:
			l := obs.asLev()
			touched[l.From] = true
			touched[l.To] = true
		case KindZenith:
			z := obs.asZenith()
			touched[z.From] = true
			touched[z.To] = true
		case KindDist:
			d := obs.asDist()
			if d.Mode == DistSlope {
				touched[d.From] = true
				touched[d.To] = true
			}
		}
	}
	for _, id := range pn.Stations.IDs() {
		st, _ := pn.Stations.Get(id)
		if st.Fixed(pn.State.CoordMode) || st.FixedH {
			continue
		}
		if !touched[id] {
			st.FixedH = true
			result.log("station %s: no vertical observation, H auto-fixed", id)
		}
	}
}

// assignParameterIndices builds the parameter vector: per-station {E,N,H}
// for unknown components in station insertion order, then one orientation
// parameter per direction set in first-seen order.
func assignParameterIndices(pn *ParsedNetwork, result *AdjustmentResult) int {
	idx := 0
	for _, id := range pn.Stations.IDs() {
		st, _ := pn.Stations.Get(id)
		if st.FixedX {
			st.IndexX = -1
		} else {
			st.IndexX = idx
			idx++
		}
		if st.FixedY {
			st.IndexY = -1
		} else {
			st.IndexY = idx
			idx++
		}
		if pn.State.CoordMode == CoordMode2D {
			st.IndexH = -1
			continue
		}
		if st.FixedH {
			st.IndexH = -1
		} else {
			st.IndexH = idx
			idx++
		}
	}
	for _, set := range pn.DirectionSets {
		set.ParamIndex = idx
		idx++
	}
	_ = result
	return idx
}

// selectActiveObservations excludes caller-excluded ids, sideshots, and (in
// 2D) Lev/Zenith observations.
func selectActiveObservations(pn *ParsedNetwork, opts AdjustOptions) []*Observation {
	out := make([]*Observation, 0, len(pn.Observations))
	for _, obs := range pn.Observations {
		if opts.Exclude != nil && opts.Exclude[obs.ID] {
			continue
		}
		if obs.Sideshot {
			continue
		}
		if pn.State.CoordMode == CoordMode2D && (obs.Kind == KindLev || obs.Kind == KindZenith) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// collectControlConstraints emits one row per indexed (non-fixed) station
// component that carries a weighted control constraint.
func collectControlConstraints(stations *StationMap) []controlConstraint {
	var out []controlConstraint
	for _, id := range stations.IDs() {
		st, _ := stations.Get(id)
		if st.ConstraintX != nil && st.IndexX >= 0 {
			out = append(out, controlConstraint{ParamIndex: st.IndexX, StationID: id, Component: "E", Target: st.ConstraintX.Value, Sigma: st.ConstraintX.Sigma})
		}
		if st.ConstraintY != nil && st.IndexY >= 0 {
			out = append(out, controlConstraint{ParamIndex: st.IndexY, StationID: id, Component: "N", Target: st.ConstraintY.Value, Sigma: st.ConstraintY.Sigma})
		}
		if st.ConstraintH != nil && st.IndexH >= 0 {
			out = append(out, controlConstraint{ParamIndex: st.IndexH, StationID: id, Component: "H", Target: st.ConstraintH.Value, Sigma: st.ConstraintH.Sigma})
		}
	}
	return out
}

func constraintCurrentValue(stations *StationMap, c controlConstraint) float64 {
	st, ok := stations.Get(c.StationID)
	if !ok {
		return 0
	}
	switch c.Component {
	case "E":
		return st.X
	case "N":
		return st.Y
	default:
		return st.H
	}
}

// accumulateRows folds one observation's rows into the normal equations:
// N += Aᵀ·P·A, u += Aᵀ·P·L, using a 2x2 weight block for a correlated GPS
// pair or a diagonal weight otherwise.
func accumulateRows(n *linalg.Matrix, u []float64, rows *ObsRows) {
	if rows.WeightBlock != nil && len(rows.Rows) == 2 {
		a0, a1 := rows.Rows[0].A, rows.Rows[1].A
		l0, l1 := rows.Rows[0].L, rows.Rows[1].L
		w := rows.WeightBlock
		for p := 0; p < n.Rows; p++ {
			a0p, a1p := a0[p], a1[p]
			if a0p == 0 && a1p == 0 {
				continue
			}
			wp0 := a0p*w[0][0] + a1p*w[1][0]
			wp1 := a0p*w[0][1] + a1p*w[1][1]
			u[p] += wp0*l0 + wp1*l1
			for q := 0; q < n.Cols; q++ {
				n.Add(p, q, wp0*a0[q]+wp1*a1[q])
			}
		}
		return
	}
	for k, row := range rows.Rows {
		w := rows.Weight[k]
		a := row.A
		for p := 0; p < n.Rows; p++ {
			ap := a[p]
			if ap == 0 {
				continue
			}
			u[p] += ap * w * row.L
			wap := ap * w
			for q := 0; q < n.Cols; q++ {
				if a[q] == 0 {
					continue
				}
				n.Add(p, q, wap*a[q])
			}
		}
	}
}

// conditionEstimate returns (max row l1 norm)*(max col l1 norm), the cheap
// condition proxy spec.md S4.5 calls for.
func conditionEstimate(n *linalg.Matrix) float64 {
	maxRow := 0.0
	for i := 0; i < n.Rows; i++ {
		sum := 0.0
		for j := 0; j < n.Cols; j++ {
			sum += math.Abs(n.At(i, j))
		}
		if sum > maxRow {
			maxRow = sum
		}
	}
	maxCol := 0.0
	for j := 0; j < n.Cols; j++ {
		sum := 0.0
		for i := 0; i < n.Rows; i++ {
			sum += math.Abs(n.At(i, j))
		}
		if sum > maxCol {
			maxCol = sum
		}
	}
	return maxRow * maxCol
}

// applyCorrections adds each indexed parameter's correction to the current
// station coordinates and direction-set orientations, returning the maximum
// absolute correction applied.
func applyCorrections(pn *ParsedNetwork, corr *linalg.Matrix) float64 {
	maxAbs := 0.0
	track := func(idx int) float64 {
		if idx < 0 {
			return 0
		}
		v := corr.At(idx, 0)
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
		return v
	}
	for _, id := range pn.Stations.IDs() {
		st, _ := pn.Stations.Get(id)
		st.X += track(st.IndexX)
		st.Y += track(st.IndexY)
		st.H += track(st.IndexH)
	}
	for _, set := range pn.DirectionSets {
		set.Orientation = angles.WrapTo2Pi(set.Orientation + track(set.ParamIndex))
	}
	return maxAbs
}
