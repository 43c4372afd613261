package network

import (
	"math"
	"strings"

	"geonet/pkg/angles"
)

// leadingInstCode consumes an optional leading instrument-code token if it
// names a known instrument and there is still room for the record's
// mandatory fields, returning the (possibly unchanged) instrument and the
// next index to read from.
func (dec *Decoder) leadingInstCode(tokens []string, minRemaining int) (*Instrument, int) {
	if len(tokens) > minRemaining {
		if inst, ok := dec.instruments[strings.ToUpper(tokens[0])]; ok {
			dec.state.CurrentInstrument = inst.Code
			return inst, 1
		}
	}
	return dec.currentInstrument(), 0
}

// handleDist parses a D record: `[instCode] <from> <to> <dist> [sigma] [hi/ht]`.
func (dec *Decoder) handleDist(tokens []string) {
	inst, idx := dec.leadingInstCode(tokens, 3)
	from, to, idx, ok := consumeFromTo(tokens, idx)
	if !ok {
		dec.log("D: missing from/to")
		return
	}
	if idx >= len(tokens) {
		dec.log("D %s-%s: missing distance", from, to)
		return
	}
	distRaw, ok := parseFloatTok(tokens[idx])
	if !ok {
		dec.log("D %s-%s: invalid distance %q", from, to, tokens[idx])
		return
	}
	idx++
	dist := distRaw * dec.state.unitScale()

	var hi, ht *float64
	sigmaTok := ""
	for _, t := range tokens[idx:] {
		if h1, h2, ok := splitHiHt(t); ok {
			hi, ht = &h1, &h2
		} else if sigmaTok == "" {
			sigmaTok = t
		}
	}

	mode := DistSlope
	if dec.state.DeltaMode == DeltaHoriz || dec.state.CoordMode == CoordMode2D {
		mode = DistHoriz
	}

	sigma, source := resolveSigma(sigmaTok, func() float64 {
		s := resolveDistSigma(inst, dist, dec.state.EdmMode)
		term := centeringForDist(inst)
		return applyCenteringScalar(s, SigmaDefault, term, dec.state.ApplyCentering, dec.state.AddCenteringToExplicit)
	})
	if source == SigmaExplicit {
		term := centeringForDist(inst)
		sigma = applyCenteringScalar(sigma, source, term, dec.state.ApplyCentering, dec.state.AddCenteringToExplicit)
	}

	instCode := ""
	if inst != nil {
		instCode = inst.Code
	}
	dec.addObservation(&Observation{
		Kind:        KindDist,
		InstCode:    instCode,
		StdDev:      sigma,
		SigmaSource: source,
		Detail:      &DistDetail{From: from, To: to, Value: dist, Mode: mode, HI: hi, HT: ht},
	})
}

// classifyAngleOrDir decides whether an A-record is an angle or an azimuth
// observation, per spec.md S4.4's auto rule: DIR only if the predicted
// azimuth residual is within 3 deg and beats the predicted angle residual
// by at least 0.5 deg.
func (dec *Decoder) classifyAngleOrDir(at, from, to string, obs float64) (isDir bool, ambiguous bool) {
	if dec.state.AngleMode == AngleModeAngle {
		return false, false
	}
	if dec.state.AngleMode == AngleModeDir {
		return true, false
	}

	atSt, ok1 := dec.stations.Get(at)
	fromSt, ok2 := dec.stations.Get(from)
	toSt, ok3 := dec.stations.Get(to)
	if !ok1 || !ok2 || !ok3 {
		return false, false
	}

	azTo := angles.WrapTo2Pi(math.Atan2(toSt.X-atSt.X, toSt.Y-atSt.Y))
	azFrom := angles.WrapTo2Pi(math.Atan2(fromSt.X-atSt.X, fromSt.Y-atSt.Y))
	angleCalc := angles.WrapTo2Pi(azTo - azFrom)

	rAngle := math.Abs(angles.WrapToPi(obs - angleCalc))
	rDir := math.Abs(angles.WrapToPi(obs - azTo))

	const threeDeg = 3 * angles.DegToRad
	const halfDeg = 0.5 * angles.DegToRad

	isDir = rDir <= threeDeg && (rAngle-rDir) >= halfDeg
	ambiguous = rDir <= threeDeg && math.Abs(rAngle-rDir) < halfDeg
	return isDir, ambiguous
}

// handleAngleRecord parses an A record: `[instCode] <at> <from> <to> <ang> [sigma]`.
func (dec *Decoder) handleAngleRecord(tokens []string) {
	inst, idx := dec.leadingInstCode(tokens, 4)
	if idx+3 >= len(tokens) {
		dec.log("A: too few fields")
		return
	}
	at, from, to := tokens[idx], tokens[idx+1], tokens[idx+2]
	idx += 3

	obsRad, err := angles.DmsToRad(tokens[idx])
	if err != nil {
		dec.log("A %s %s %s: invalid angle %q: %v", at, from, to, tokens[idx], err)
		return
	}
	idx++
	obs := angles.WrapTo2Pi(obsRad)

	sigmaTok := ""
	if idx < len(tokens) {
		sigmaTok = tokens[idx]
	}

	isFace2 := obs >= math.Pi
	isDir, ambiguous := dec.classifyAngleOrDir(at, from, to, obs)
	if ambiguous {
		dec.log("A %s %s %s: ambiguous angle/azimuth classification", at, from, to)
	}

	sigma, source := resolveSigma(sigmaTok, func() float64 {
		s := resolveAngleSigma(inst, isFace2)
		term := dec.angleCenteringTerm(inst, at, from, to)
		return applyCenteringScalar(s, SigmaDefault, term, dec.state.ApplyCentering, dec.state.AddCenteringToExplicit)
	})

	instCode := ""
	if inst != nil {
		instCode = inst.Code
	}

	if isDir {
		dec.addObservation(&Observation{
			Kind:        KindDir,
			InstCode:    instCode,
			StdDev:      sigma,
			SigmaSource: source,
			Detail:      &DirDetail{From: at, To: to, Value: obs, Flip180: true},
		})
		return
	}

	dec.addObservation(&Observation{
		Kind:        KindAngle,
		InstCode:    instCode,
		StdDev:      sigma,
		SigmaSource: source,
		Detail:      &AngleDetail{At: at, From: from, To: to, Value: obs},
	})
}

// angleCenteringTerm combines the centering contribution of both legs of an
// angle (at-from and at-to) in quadrature, using current approximate
// coordinates to estimate each leg's length. Returns 0 if either leg's
// length cannot yet be estimated.
func (dec *Decoder) angleCenteringTerm(inst *Instrument, at, from, to string) float64 {
	atSt, ok1 := dec.stations.Get(at)
	fromSt, ok2 := dec.stations.Get(from)
	toSt, ok3 := dec.stations.Get(to)
	if !ok1 || !ok2 || !ok3 {
		return 0
	}
	d1 := math.Hypot(fromSt.X-atSt.X, fromSt.Y-atSt.Y)
	d2 := math.Hypot(toSt.X-atSt.X, toSt.Y-atSt.Y)
	c1 := centeringForAngleRad(inst, d1)
	c2 := centeringForAngleRad(inst, d2)
	return math.Sqrt(c1*c1 + c2*c2)
}

// zenithCurvRefCorrection returns (1-k)*horiz/(2R), the curvature+refraction
// correction added to a geometric zenith angle when verticalReduction is
// CurvRef.
func zenithCurvRefCorrection(k, horiz float64) float64 {
	return (1 - k) * horiz / (2 * EarthRadius)
}

// handleVertical parses a V record: `<from> <to> <value> [sigma]`, a zenith
// angle or a delta-height depending on DeltaMode.
func (dec *Decoder) handleVertical(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("V: missing from/to")
		return
	}
	if idx >= len(tokens) {
		dec.log("V %s-%s: missing value", from, to)
		return
	}
	valTok := tokens[idx]
	idx++
	sigmaTok := ""
	if idx < len(tokens) {
		sigmaTok = tokens[idx]
	}

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	if dec.state.DeltaMode == DeltaHoriz {
		dh, ok := parseFloatTok(valTok)
		if !ok {
			dec.log("V %s-%s: invalid delta-height %q", from, to, valTok)
			return
		}
		dh *= dec.state.unitScale()
		sigma, source := resolveSigma(sigmaTok, func() float64 { return defaultDeltaHSigma })
		dec.addObservation(&Observation{
			Kind: KindLev, InstCode: instCode, StdDev: sigma, SigmaSource: source,
			Detail: &LevDetail{From: from, To: to, DeltaH: dh, LengthKm: 0},
		})
		return
	}

	zenRad, err := angles.DmsToRad(valTok)
	if err != nil {
		dec.log("V %s-%s: invalid zenith %q: %v", from, to, valTok, err)
		return
	}
	zen := math.Mod(zenRad, math.Pi)
	if zen < 0 {
		zen += math.Pi
	}
	sigma, source := resolveSigma(sigmaTok, func() float64 { return resolveAngleSigma(inst, false) })
	dec.addObservation(&Observation{
		Kind: KindZenith, InstCode: instCode, StdDev: sigma, SigmaSource: source,
		Detail: &ZenithDetail{From: from, To: to, Value: zen},
	})
}

// defaultDeltaHSigma is used for a V-record delta-height when no sigma is
// given; S6 documents no instrument-derived default for this form.
const defaultDeltaHSigma = 0.005

// handleDV parses a DV record: `<from> <to> <dist> <vert> [sigma_dist sigma_vert] [hi/ht]`.
func (dec *Decoder) handleDV(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("DV: missing from/to")
		return
	}
	if idx+1 >= len(tokens) {
		dec.log("DV %s-%s: missing dist/vert", from, to)
		return
	}
	distRaw, ok1 := parseFloatTok(tokens[idx])
	vertTok := tokens[idx+1]
	idx += 2
	if !ok1 {
		dec.log("DV %s-%s: invalid distance", from, to)
		return
	}
	dist := distRaw * dec.state.unitScale()

	var hi, ht *float64
	var sigmaDistTok, sigmaVertTok string
	rest := tokens[idx:]
	for _, t := range rest {
		if h1, h2, ok := splitHiHt(t); ok {
			hi, ht = &h1, &h2
		} else if sigmaDistTok == "" {
			sigmaDistTok = t
		} else if sigmaVertTok == "" {
			sigmaVertTok = t
		}
	}

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	mode := DistSlope
	if dec.state.DeltaMode == DeltaHoriz || dec.state.CoordMode == CoordMode2D {
		mode = DistHoriz
	}
	sigmaD, sourceD := resolveSigma(sigmaDistTok, func() float64 { return resolveDistSigma(inst, dist, dec.state.EdmMode) })
	dec.addObservation(&Observation{
		Kind: KindDist, InstCode: instCode, StdDev: sigmaD, SigmaSource: sourceD,
		Detail: &DistDetail{From: from, To: to, Value: dist, Mode: mode, HI: hi, HT: ht},
	})

	if dec.state.DeltaMode == DeltaHoriz {
		dh, ok := parseFloatTok(vertTok)
		if !ok {
			dec.log("DV %s-%s: invalid delta-height %q", from, to, vertTok)
			return
		}
		dh *= dec.state.unitScale()
		sigmaV, sourceV := resolveSigma(sigmaVertTok, func() float64 { return defaultDeltaHSigma })
		dec.addObservation(&Observation{
			Kind: KindLev, InstCode: instCode, StdDev: sigmaV, SigmaSource: sourceV,
			Detail: &LevDetail{From: from, To: to, DeltaH: dh},
		})
		return
	}

	zenRad, err := angles.DmsToRad(vertTok)
	if err != nil {
		dec.log("DV %s-%s: invalid zenith %q: %v", from, to, vertTok, err)
		return
	}
	zen := math.Mod(zenRad, math.Pi)
	if zen < 0 {
		zen += math.Pi
	}
	sigmaV, sourceV := resolveSigma(sigmaVertTok, func() float64 { return resolveAngleSigma(inst, false) })
	dec.addObservation(&Observation{
		Kind: KindZenith, InstCode: instCode, StdDev: sigmaV, SigmaSource: sourceV,
		Detail: &ZenithDetail{From: from, To: to, Value: zen, HI: hi, HT: ht},
	})
}

// handleBearing parses a B record: `<from> <to> <bearing> [sigma]`.
func (dec *Decoder) handleBearing(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("B: missing from/to")
		return
	}
	if idx >= len(tokens) {
		dec.log("B %s-%s: missing bearing", from, to)
		return
	}
	brg, err := angles.DmsToRad(tokens[idx])
	if err != nil {
		dec.log("B %s-%s: invalid bearing %q: %v", from, to, tokens[idx], err)
		return
	}
	idx++
	sigmaTok := ""
	if idx < len(tokens) {
		sigmaTok = tokens[idx]
	}
	inst := dec.currentInstrument()
	sigma, source := resolveSigma(sigmaTok, func() float64 { return resolveAngleSigma(inst, false) })
	dec.addObservation(&Observation{
		Kind: KindBearing, InstCode: dec.state.CurrentInstrument, StdDev: sigma, SigmaSource: source,
		Detail: &BearingDetail{From: from, To: to, Value: angles.WrapTo2Pi(brg)},
	})
}

// handleBM parses a BM record: `<from> <to> <bearing> <dist> [<vert>] [sigmas]`.
// This combines the bearing, distance, and an optional vertical component
// into three independent observations sharing the same from/to. Sigma
// tokens are not read: every observation takes its default sigma.
func (dec *Decoder) handleBM(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("BM: missing from/to")
		return
	}
	if idx+1 >= len(tokens) {
		dec.log("BM %s-%s: missing bearing/distance", from, to)
		return
	}
	brg, err := angles.DmsToRad(tokens[idx])
	if err != nil {
		dec.log("BM %s-%s: invalid bearing %q: %v", from, to, tokens[idx], err)
		return
	}
	distRaw, ok1 := parseFloatTok(tokens[idx+1])
	if !ok1 {
		dec.log("BM %s-%s: invalid distance", from, to)
		return
	}
	idx += 2
	dist := distRaw * dec.state.unitScale()

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	sigmaB, sourceB := resolveSigma("", func() float64 { return resolveAngleSigma(inst, false) })
	dec.addObservation(&Observation{
		Kind: KindBearing, InstCode: instCode, StdDev: sigmaB, SigmaSource: sourceB,
		Detail: &BearingDetail{From: from, To: to, Value: angles.WrapTo2Pi(brg)},
	})

	mode := DistSlope
	if dec.state.CoordMode == CoordMode2D {
		mode = DistHoriz
	}
	sigmaD, sourceD := resolveSigma("", func() float64 { return resolveDistSigma(inst, dist, dec.state.EdmMode) })
	dec.addObservation(&Observation{
		Kind: KindDist, InstCode: instCode, StdDev: sigmaD, SigmaSource: sourceD,
		Detail: &DistDetail{From: from, To: to, Value: dist, Mode: mode},
	})

	if idx < len(tokens) && dec.state.CoordMode == CoordMode3D {
		if dec.state.DeltaMode == DeltaHoriz {
			if dh, ok := parseFloatTok(tokens[idx]); ok {
				dh *= dec.state.unitScale()
				dec.addObservation(&Observation{
					Kind: KindLev, InstCode: instCode, StdDev: defaultDeltaHSigma, SigmaSource: SigmaDefault,
					Detail: &LevDetail{From: from, To: to, DeltaH: dh},
				})
			}
		} else if zenRad, err := angles.DmsToRad(tokens[idx]); err == nil {
			zen := math.Mod(zenRad, math.Pi)
			if zen < 0 {
				zen += math.Pi
			}
			dec.addObservation(&Observation{
				Kind: KindZenith, InstCode: instCode, StdDev: resolveAngleSigma(inst, false), SigmaSource: SigmaDefault,
				Detail: &ZenithDetail{From: from, To: to, Value: zen},
			})
		}
	}
}

// handleM parses an M record: `<at-from-to> <ang> <dist> [<vert>] [sigmas]`,
// a compact angle+distance(+vertical) shot sharing a single at-from-to
// triple token (e.g. "A-B-C"). Sigma tokens are not read: every
// observation takes its default sigma.
func (dec *Decoder) handleM(tokens []string) {
	if len(tokens) < 3 {
		dec.log("M: too few fields")
		return
	}
	parts := strings.Split(tokens[0], "-")
	if len(parts) != 3 {
		dec.log("M: expected at-from-to triple, got %q", tokens[0])
		return
	}
	at, from, to := parts[0], parts[1], parts[2]

	ang, err := angles.DmsToRad(tokens[1])
	if err != nil {
		dec.log("M %s: invalid angle %q: %v", tokens[0], tokens[1], err)
		return
	}
	distRaw, ok := parseFloatTok(tokens[2])
	if !ok {
		dec.log("M %s: invalid distance %q", tokens[0], tokens[2])
		return
	}
	dist := distRaw * dec.state.unitScale()

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	dec.addObservation(&Observation{
		Kind: KindAngle, InstCode: instCode, StdDev: resolveAngleSigma(inst, angles.WrapTo2Pi(ang) >= math.Pi), SigmaSource: SigmaDefault,
		Detail: &AngleDetail{At: at, From: from, To: to, Value: angles.WrapTo2Pi(ang)},
	})

	mode := DistSlope
	if dec.state.CoordMode == CoordMode2D {
		mode = DistHoriz
	}
	dec.addObservation(&Observation{
		Kind: KindDist, InstCode: instCode, StdDev: resolveDistSigma(inst, dist, dec.state.EdmMode), SigmaSource: SigmaDefault,
		Detail: &DistDetail{From: at, To: to, Value: dist, Mode: mode},
	})

	if len(tokens) > 3 && dec.state.CoordMode == CoordMode3D {
		if dec.state.DeltaMode == DeltaHoriz {
			if dh, ok := parseFloatTok(tokens[3]); ok {
				dh *= dec.state.unitScale()
				dec.addObservation(&Observation{
					Kind: KindLev, InstCode: instCode, StdDev: defaultDeltaHSigma, SigmaSource: SigmaDefault,
					Detail: &LevDetail{From: at, To: to, DeltaH: dh},
				})
			}
		} else if zenRad, err := angles.DmsToRad(tokens[3]); err == nil {
			zen := math.Mod(zenRad, math.Pi)
			if zen < 0 {
				zen += math.Pi
			}
			dec.addObservation(&Observation{
				Kind: KindZenith, InstCode: instCode, StdDev: resolveAngleSigma(inst, false), SigmaSource: SigmaDefault,
				Detail: &ZenithDetail{From: at, To: to, Value: zen},
			})
		}
	}
}
