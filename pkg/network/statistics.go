package network

import (
	"math"
	"sort"

	"geonet/pkg/angles"
	"geonet/pkg/linalg"
	"geonet/pkg/stats"
)

// localTestCritical is the 99.9% two-sided normal critical value used for
// data snooping (spec.md GLOSSARY).
const localTestCritical = 3.29

// ChiSquareTest is the global variance-factor test reported in Statistics.
type ChiSquareTest struct {
	T              float64
	Dof            int
	P              float64
	Pass95         bool
	VarianceFactor float64
	LowerBound     float64 // varianceFactor interval lower bound
	UpperBound     float64
}

// TypeSummary aggregates residual behavior for one observation Kind.
type TypeSummary struct {
	Kind      Kind
	Count     int
	RMS       float64
	MaxAbs    float64
	MaxStdRes float64
	Over3     int // |stdRes| > 3
	Over4     int // |stdRes| > 4
}

// RelativePrecisionEntry is the propagated precision between two unknown
// stations.
type RelativePrecisionEntry struct {
	From, To             string
	SemiMajor, SemiMinor float64
	Theta                float64 // degrees
	SigmaDist, SigmaAz   float64
}

// DirectionSetDiagnostic summarizes one reduced direction set.
type DirectionSetDiagnostic struct {
	SetID          string
	Occupy         string
	RawCount       int
	ReducedCount   int
	Face1Count     int
	Face2Count     int
	PairedTargets  int
	OrientationDeg float64
	ResidualMeanArcsec float64
	ResidualRMSArcsec  float64
	ResidualMaxArcsec  float64
	OrientationSEArcsec float64
}

// DirectionTargetDiagnostic summarizes one (setId, occupy, to) reduced
// direction.
type DirectionTargetDiagnostic struct {
	SetID         string
	Occupy        string
	To            string
	RawCount      int
	Face1Count    int
	Face2Count    int
	RawSpreadArcsec float64
	ReducedSigmaArcsec float64
	ResidualArcsec float64
	StdRes        float64
	LocalPass     bool
	MDBArcsec     float64
	SuspectScore  float64
}

// SetupDiagnostic summarizes the observations taken from one setup station.
type SetupDiagnostic struct {
	Station    string
	CountByKind map[Kind]int
	RMSAbsT    float64
	MaxAbsT    float64
	LocalFails int
	WorstObsID int
}

// TraverseDiagnostic reports the closure of one TB..TE chain.
type TraverseDiagnostic struct {
	SessionID      string
	MisclosureMag  float64
	TotalDistance  float64
	ClosureRatio   float64
}

// SideshotResult is the post-adjust coordinate (when resolvable) and
// propagated uncertainty of one sideshot.
type SideshotResult struct {
	From, To string
	E, N, H  float64
	SE, SN, SH float64
	Note     string
}

// Statistics is the post-solution diagnostics pass, run after Adjust
// (successful, singular, or not-converged) completes. It mutates every
// Observation's Calc/Residual/StdRes/Redundancy/LocalTest/MDB fields and
// every unknown Station's SE/SN/SH/ellipse fields, and returns the
// aggregate/diagnostic views.
type Statistics struct {
	SEUW      float64
	ChiSquare *ChiSquareTest

	TypeSummaries []*TypeSummary

	RelativePrecision []RelativePrecisionEntry

	DirectionSets  []DirectionSetDiagnostic
	DirectionTargets []DirectionTargetDiagnostic
	Setups         []SetupDiagnostic
	Traverses      []TraverseDiagnostic
	Sideshots      []SideshotResult
}

// RunStatistics executes the statistics pass against result (produced by Adjust) and
// its network.
func RunStatistics(result *AdjustmentResult) *Statistics {
	pn := result.Network
	dirSetsByID := make(map[string]*DirectionSet, len(pn.DirectionSets))
	for _, s := range pn.DirectionSets {
		dirSetsByID[s.ID] = s
	}

	st := &Statistics{}

	vtpv := recomputeResidualsAndVtpv(pn, dirSetsByID, result)

	dof := result.Dof
	if dof > 0 {
		st.SEUW = math.Sqrt(vtpv / float64(dof))
	}

	if dof > 0 {
		st.ChiSquare = buildChiSquareTest(vtpv, dof)
	}

	if result.Ninv != nil && st.SEUW > 0 {
		runLocalTests(pn, dirSetsByID, result, st.SEUW)
		populateStationCovariances(pn, result, st.SEUW)
		st.RelativePrecision = relativePrecision(pn, result, st.SEUW)
	}

	st.TypeSummaries = typeSummaries(pn.Observations)
	st.DirectionSets = directionSetDiagnostics(pn.DirectionSets)
	st.DirectionTargets = directionTargetDiagnostics(pn.DirectionSets)
	st.Setups = setupDiagnostics(pn.Observations)
	st.Traverses = traverseDiagnostics(pn)
	st.Sideshots = sideshotResults(pn)

	return st
}

// recomputeResidualsAndVtpv re-runs the shared row builder at the final
// station/orientation values, setting Calc/Residual/StdRes on every active
// observation and returning the accumulated vᵀPv.
func recomputeResidualsAndVtpv(pn *ParsedNetwork, dirSetsByID map[string]*DirectionSet, result *AdjustmentResult) float64 {
	vtpv := 0.0
	for _, obs := range pn.Observations {
		if obs.Sideshot {
			continue
		}
		if pn.State.CoordMode == CoordMode2D && (obs.Kind == KindLev || obs.Kind == KindZenith) {
			continue
		}
		rows := buildObservationRows(obs, pn.Stations, dirSetsByID, pn.State, result.NumParams)
		if rows.Skip {
			continue
		}
		if rows.WeightBlock != nil && len(rows.Rows) == 2 {
			v0, v1 := rows.Rows[0].L, rows.Rows[1].L
			w := rows.WeightBlock
			quad := v0*(v0*w[0][0]+v1*w[1][0]) + v1*(v0*w[0][1]+v1*w[1][1])
			vtpv += quad
			obs.Calc = rows.Rows[0].Calc
			obs.Residual = v0
			obs.StdRes = math.Sqrt(math.Abs(quad))
			continue
		}
		row := rows.Rows[0]
		w := rows.Weight[0]
		vtpv += w * row.L * row.L
		obs.Calc = row.Calc
		obs.Residual = row.L
		obs.StdRes = row.L * math.Sqrt(w)
	}
	return vtpv
}

func buildChiSquareTest(t float64, dof int) *ChiSquareTest {
	const alpha = 0.05
	lower := stats.ChiSquareQuantile(alpha/2, dof)
	upper := stats.ChiSquareQuantile(1-alpha/2, dof)
	p := stats.ChiSquarePValue(t, dof)
	return &ChiSquareTest{
		T: t, Dof: dof, P: p,
		Pass95:         t >= lower && t <= upper,
		VarianceFactor: t / float64(dof),
		LowerBound:     lower / float64(dof),
		UpperBound:     upper / float64(dof),
	}
}

// runLocalTests computes the data-snooping t, redundancy number, pass flag,
// and MDB for every active observation, per spec.md S4.6.
func runLocalTests(pn *ParsedNetwork, dirSetsByID map[string]*DirectionSet, result *AdjustmentResult, seuw float64) {
	n := result.NumParams
	for _, obs := range pn.Observations {
		if obs.Sideshot {
			continue
		}
		if pn.State.CoordMode == CoordMode2D && (obs.Kind == KindLev || obs.Kind == KindZenith) {
			continue
		}
		rows := buildObservationRows(obs, pn.Stations, dirSetsByID, pn.State, n)
		if rows.Skip {
			continue
		}
		if rows.WeightBlock != nil && len(rows.Rows) == 2 {
			runGpsLocalTest(obs, rows, result.Ninv, seuw)
			continue
		}
		row := rows.Rows[0]
		qll := 1 / rows.Weight[0]
		anInv := rowTimesNinv(row.A, result.Ninv)
		leverage := dot(anInv, row.A)
		qvv := qll - leverage
		if qvv <= 0 {
			continue
		}
		t := row.L / (seuw * math.Sqrt(qvv))
		r := qvv / qll
		mdb := 0.0
		if r > 0 {
			mdb = localTestCritical * seuw * math.Sqrt(qll) / math.Sqrt(r)
		}
		obs.Redundancy = r
		obs.MDB = mdb
		obs.LocalTest = &LocalTest{T: t, R: r, Pass: math.Abs(t) <= localTestCritical, MDB: mdb}
	}
}

func runGpsLocalTest(obs *Observation, rows *ObsRows, ninv *linalg.Matrix, seuw float64) {
	w := rows.WeightBlock
	det := w[0][0]*w[1][1] - w[0][1]*w[1][0]
	if math.Abs(det) < 1e-30 {
		return
	}
	// qll = W^-1
	qllDet := det
	qll00 := w[1][1] / qllDet
	qll11 := w[0][0] / qllDet
	qll01 := -w[0][1] / qllDet

	a0, a1 := rowTimesNinv(rows.Rows[0].A, ninv), rowTimesNinv(rows.Rows[1].A, ninv)
	qvv00 := qll00 - dot(a0, rows.Rows[0].A)
	qvv11 := qll11 - dot(a1, rows.Rows[1].A)
	qvv01 := qll01 - dot(a0, rows.Rows[1].A)

	if qvv00 <= 0 || qvv11 <= 0 {
		return
	}
	t0 := rows.Rows[0].L / (seuw * math.Sqrt(qvv00))
	t1 := rows.Rows[1].L / (seuw * math.Sqrt(qvv11))
	r0 := qvv00 / qll00
	r1 := qvv11 / qll11
	_ = qvv01

	// report the row (E or N) with the larger |t|
	t, r, qll := t0, r0, qll00
	if math.Abs(t1) > math.Abs(t0) {
		t, r, qll = t1, r1, qll11
	}
	mdb := 0.0
	if r > 0 {
		mdb = localTestCritical * seuw * math.Sqrt(qll) / math.Sqrt(r)
	}
	obs.Redundancy = r
	obs.MDB = mdb
	obs.LocalTest = &LocalTest{T: t, R: r, Pass: math.Abs(t) <= localTestCritical, MDB: mdb}
}

func rowTimesNinv(a []float64, ninv *linalg.Matrix) []float64 {
	out := make([]float64, len(a))
	for j := 0; j < ninv.Cols; j++ {
		sum := 0.0
		for k, ak := range a {
			if ak == 0 {
				continue
			}
			sum += ak * ninv.At(k, j)
		}
		out[j] = sum
	}
	return out
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// populateStationCovariances fills SE/SN/SH and the error ellipse for every
// unknown station from σ0²·Q at that station's parameter indices.
func populateStationCovariances(pn *ParsedNetwork, result *AdjustmentResult, seuw float64) {
	sigma0Sq := seuw * seuw
	q := result.Ninv
	for _, id := range pn.Stations.IDs() {
		s, _ := pn.Stations.Get(id)
		var sE2, sN2, sxy float64
		if s.IndexX >= 0 {
			sE2 = sigma0Sq * q.At(s.IndexX, s.IndexX)
		}
		if s.IndexY >= 0 {
			sN2 = sigma0Sq * q.At(s.IndexY, s.IndexY)
		}
		if s.IndexX >= 0 && s.IndexY >= 0 {
			sxy = sigma0Sq * q.At(s.IndexX, s.IndexY)
		}
		s.SE = math.Sqrt(math.Abs(sE2))
		s.SN = math.Sqrt(math.Abs(sN2))
		if s.IndexH >= 0 {
			s.SH = math.Sqrt(math.Abs(sigma0Sq * q.At(s.IndexH, s.IndexH)))
		}
		term1 := (sE2 + sN2) / 2
		term2 := math.Sqrt(math.Pow((sE2-sN2)/2, 2) + sxy*sxy)
		s.SemiMajor = math.Sqrt(math.Abs(term1 + term2))
		s.SemiMinor = math.Sqrt(math.Abs(term1 - term2))
		s.Theta = 0.5 * math.Atan2(2*sxy, sE2-sN2) * angles.RadToDeg
	}
}

func qAt(q *linalg.Matrix, i, j int) float64 {
	if i < 0 || j < 0 {
		return 0
	}
	return q.At(i, j)
}

// relativePrecision computes the propagated ellipse and σ-distance/σ-azimuth
// for each unordered pair of unknown stations.
func relativePrecision(pn *ParsedNetwork, result *AdjustmentResult, seuw float64) []RelativePrecisionEntry {
	q := result.Ninv
	sigma0Sq := seuw * seuw
	ids := pn.Stations.IDs()

	var out []RelativePrecisionEntry
	for i := 0; i < len(ids); i++ {
		a, _ := pn.Stations.Get(ids[i])
		if a.IndexX < 0 && a.IndexY < 0 {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			b, _ := pn.Stations.Get(ids[j])
			if b.IndexX < 0 && b.IndexY < 0 {
				continue
			}
			qEE := sigma0Sq * (qAt(q, a.IndexX, a.IndexX) + qAt(q, b.IndexX, b.IndexX) - 2*qAt(q, a.IndexX, b.IndexX))
			qNN := sigma0Sq * (qAt(q, a.IndexY, a.IndexY) + qAt(q, b.IndexY, b.IndexY) - 2*qAt(q, a.IndexY, b.IndexY))
			qEN := sigma0Sq * (qAt(q, a.IndexX, a.IndexY) + qAt(q, b.IndexX, b.IndexY) - qAt(q, a.IndexX, b.IndexY) - qAt(q, a.IndexY, b.IndexX))

			term1 := (qEE + qNN) / 2
			term2 := math.Sqrt(math.Pow((qEE-qNN)/2, 2) + qEN*qEN)
			major := math.Sqrt(math.Abs(term1 + term2))
			minor := math.Sqrt(math.Abs(term1 - term2))
			theta := 0.5 * math.Atan2(2*qEN, qEE-qNN) * angles.RadToDeg

			dE := b.X - a.X
			dN := b.Y - a.Y
			dist := math.Hypot(dE, dN)
			var sigmaDist, sigmaAz float64
			if dist > 0 {
				pdE, pdN := dE/dist, dN/dist
				sigmaDist = math.Sqrt(math.Abs(pdE*pdE*qEE + 2*pdE*pdN*qEN + pdN*pdN*qNN))
				adE, adN := dN/(dist*dist), -dE/(dist*dist)
				sigmaAz = math.Sqrt(math.Abs(adE*adE*qEE + 2*adE*adN*qEN + adN*adN*qNN))
			}

			out = append(out, RelativePrecisionEntry{
				From: a.ID, To: b.ID,
				SemiMajor: major, SemiMinor: minor, Theta: theta,
				SigmaDist: sigmaDist, SigmaAz: sigmaAz,
			})
		}
	}
	return out
}

func typeSummaries(observations []*Observation) []*TypeSummary {
	byKind := make(map[Kind]*TypeSummary)
	order := make([]Kind, 0, 8)
	for _, obs := range observations {
		if obs.Sideshot {
			continue
		}
		ts, ok := byKind[obs.Kind]
		if !ok {
			ts = &TypeSummary{Kind: obs.Kind}
			byKind[obs.Kind] = ts
			order = append(order, obs.Kind)
		}
		ts.Count++
		ts.RMS += obs.Residual * obs.Residual
		if math.Abs(obs.Residual) > ts.MaxAbs {
			ts.MaxAbs = math.Abs(obs.Residual)
		}
		if math.Abs(obs.StdRes) > ts.MaxStdRes {
			ts.MaxStdRes = math.Abs(obs.StdRes)
		}
		if math.Abs(obs.StdRes) > 3 {
			ts.Over3++
		}
		if math.Abs(obs.StdRes) > 4 {
			ts.Over4++
		}
	}
	out := make([]*TypeSummary, 0, len(order))
	for _, k := range order {
		ts := byKind[k]
		if ts.Count > 0 {
			ts.RMS = math.Sqrt(ts.RMS / float64(ts.Count))
		}
		out = append(out, ts)
	}
	return out
}

func directionSetDiagnostics(sets []*DirectionSet) []DirectionSetDiagnostic {
	out := make([]DirectionSetDiagnostic, 0, len(sets))
	for _, s := range sets {
		d := DirectionSetDiagnostic{
			SetID: s.ID, Occupy: s.Occupy,
			RawCount:       len(s.raw),
			ReducedCount:   len(s.Directions),
			OrientationDeg: angles.WrapTo2Pi(s.Orientation) * angles.RadToDeg,
		}
		var sumArcsec, sumSqArcsec, maxArcsec float64
		for _, dirObs := range s.Directions {
			detail := dirObs.asDirection()
			d.Face1Count += detail.Face1Count
			d.Face2Count += detail.Face2Count
			if detail.Face1Count > 0 && detail.Face2Count > 0 {
				d.PairedTargets++
			}
			arcsec := dirObs.Residual * angles.RadToDeg * 3600
			sumArcsec += arcsec
			sumSqArcsec += arcsec * arcsec
			if math.Abs(arcsec) > maxArcsec {
				maxArcsec = math.Abs(arcsec)
			}
		}
		if d.ReducedCount > 0 {
			d.ResidualMeanArcsec = sumArcsec / float64(d.ReducedCount)
			d.ResidualRMSArcsec = math.Sqrt(sumSqArcsec / float64(d.ReducedCount))
			d.OrientationSEArcsec = d.ResidualRMSArcsec / math.Sqrt(float64(d.ReducedCount))
		}
		d.ResidualMaxArcsec = maxArcsec
		out = append(out, d)
	}
	return out
}

func directionTargetDiagnostics(sets []*DirectionSet) []DirectionTargetDiagnostic {
	var out []DirectionTargetDiagnostic
	for _, s := range sets {
		for _, dirObs := range s.Directions {
			detail := dirObs.asDirection()
			unbalanced := detail.Face1Count > 0 && detail.Face2Count == 0 || detail.Face1Count == 0 && detail.Face2Count > 0
			localFail := dirObs.LocalTest != nil && !dirObs.LocalTest.Pass
			t := 0.0
			if dirObs.LocalTest != nil {
				t = dirObs.LocalTest.T
			}
			spreadArcsec := detail.RawSpread * angles.RadToDeg * 3600
			score := 0.0
			if localFail {
				score += 100
			}
			score += 10 * math.Abs(t)
			score += math.Min(spreadArcsec/2, 50)
			if unbalanced {
				score += 8
			}
			if detail.RawCount < 2 {
				score += 4
			}
			out = append(out, DirectionTargetDiagnostic{
				SetID: s.ID, Occupy: s.Occupy, To: detail.To,
				RawCount: detail.RawCount, Face1Count: detail.Face1Count, Face2Count: detail.Face2Count,
				RawSpreadArcsec:    spreadArcsec,
				ReducedSigmaArcsec: detail.ReducedSigma * angles.RadToDeg * 3600,
				ResidualArcsec:     dirObs.Residual * angles.RadToDeg * 3600,
				StdRes:             dirObs.StdRes,
				LocalPass:          dirObs.LocalTest == nil || dirObs.LocalTest.Pass,
				MDBArcsec:          dirObs.MDB * angles.RadToDeg * 3600,
				SuspectScore:       score,
			})
		}
	}
	return out
}

func setupStation(obs *Observation) string {
	refs := obs.stationRefs()
	if len(refs) == 0 {
		return ""
	}
	return refs[0]
}

func setupDiagnostics(observations []*Observation) []SetupDiagnostic {
	byStation := make(map[string]*SetupDiagnostic)
	var order []string
	for _, obs := range observations {
		if obs.Sideshot {
			continue
		}
		station := setupStation(obs)
		if station == "" {
			continue
		}
		d, ok := byStation[station]
		if !ok {
			d = &SetupDiagnostic{Station: station, CountByKind: make(map[Kind]int), WorstObsID: -1}
			byStation[station] = d
			order = append(order, station)
		}
		d.CountByKind[obs.Kind]++
		if obs.LocalTest == nil {
			continue
		}
		at := math.Abs(obs.LocalTest.T)
		if at > d.MaxAbsT {
			d.MaxAbsT = at
			d.WorstObsID = obs.ID
		}
		if !obs.LocalTest.Pass {
			d.LocalFails++
		}
	}
	sort.Strings(order)
	out := make([]SetupDiagnostic, 0, len(order))
	for _, id := range order {
		d := byStation[id]
		n := 0
		sumSq := 0.0
		for _, obs := range observations {
			if setupStation(obs) != id || obs.LocalTest == nil {
				continue
			}
			n++
			sumSq += obs.LocalTest.T * obs.LocalTest.T
		}
		if n > 0 {
			d.RMSAbsT = math.Sqrt(sumSq / float64(n))
		}
		out = append(out, *d)
	}
	return out
}

func traverseDiagnostics(pn *ParsedNetwork) []TraverseDiagnostic {
	obsByID := make(map[int]*Observation, len(pn.Observations))
	for _, o := range pn.Observations {
		obsByID[o.ID] = o
	}
	out := make([]TraverseDiagnostic, 0, len(pn.TraverseSessions))
	for _, sess := range pn.TraverseSessions {
		var mE, mN, totalDist float64
		for _, leg := range sess.Legs {
			distObs, ok := obsByID[leg.DistObsID]
			if !ok {
				continue
			}
			from, ok1 := pn.Stations.Get(leg.From)
			to, ok2 := pn.Stations.Get(leg.To)
			if !ok1 || !ok2 {
				continue
			}
			az := angles.WrapTo2Pi(math.Atan2(to.X-from.X, to.Y-from.Y))
			mE += distObs.Residual * math.Sin(az)
			mN += distObs.Residual * math.Cos(az)
			totalDist += distObs.asDist().Value
		}
		mag := math.Hypot(mE, mN)
		ratio := 0.0
		if mag > 0 {
			ratio = totalDist / mag
		}
		out = append(out, TraverseDiagnostic{
			SessionID: sess.ID, MisclosureMag: mag, TotalDistance: totalDist, ClosureRatio: ratio,
		})
	}
	return out
}

// sideshotResults propagates each sideshot's target coordinate and
// uncertainty, per spec.md S4.6's azimuth-resolution priority.
func sideshotResults(pn *ParsedNetwork) []SideshotResult {
	var out []SideshotResult
	for _, obs := range pn.Observations {
		if !obs.Sideshot || obs.Kind != KindDist {
			continue
		}
		d := obs.asDist()
		spec := obs.SideshotSpec
		from, ok := pn.Stations.Get(d.From)
		if !ok {
			continue
		}

		horiz := d.Value
		deltaH := 0.0
		haveVert := false
		if spec != nil && spec.Vertical != nil {
			if spec.Vertical.IsDeltaH {
				deltaH = spec.Vertical.Value
				haveVert = true
			} else {
				zen := spec.Vertical.Value
				deltaH = d.Value * math.Cos(zen)
				horiz = d.Value * math.Sin(zen)
				haveVert = true
			}
		}

		var az float64
		haveAz := false
		switch {
		case spec != nil && spec.ExplicitAz != nil:
			az = *spec.ExplicitAz
			haveAz = true
		case spec != nil && spec.SetupHz != nil && spec.SetupBacksight != "":
			if bs, ok := pn.Stations.Get(spec.SetupBacksight); ok {
				backAz := angles.WrapTo2Pi(math.Atan2(bs.X-from.X, bs.Y-from.Y))
				az = angles.WrapTo2Pi(backAz + *spec.SetupHz)
				haveAz = true
			}
		default:
			if to, ok := pn.Stations.Get(d.To); ok {
				az = angles.WrapTo2Pi(math.Atan2(to.X-from.X, to.Y-from.Y))
				haveAz = true
			}
		}

		if !haveAz {
			out = append(out, SideshotResult{
				From: d.From, To: d.To,
				Note: "no azimuth available (need explicit AZ, backsight+HZ, or approximate coordinates)",
			})
			continue
		}

		e := from.X + horiz*math.Sin(az)
		n := from.Y + horiz*math.Cos(az)
		h := from.H
		if haveVert {
			h += deltaH
		}

		sigmaE := math.Hypot(from.SE, obs.StdDev)
		sigmaN := math.Hypot(from.SN, obs.StdDev)
		sigmaH := from.SH

		out = append(out, SideshotResult{
			From: d.From, To: d.To,
			E: e, N: n, H: h,
			SE: sigmaE, SN: sigmaN, SH: sigmaH,
		})
	}
	return out
}
