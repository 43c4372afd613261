package network

import "math"

// handleGps parses a G record: `<from> <to> <dE> <dN> [sigmaE sigmaN [rho]]`.
// An absent sigma pair falls back to the current instrument's GpsStdXY for
// both components, uncorrelated.
func (dec *Decoder) handleGps(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("G: missing from/to")
		return
	}
	if idx+1 >= len(tokens) {
		dec.log("G %s-%s: missing dE/dN", from, to)
		return
	}
	dE, ok1 := parseFloatTok(tokens[idx])
	dN, ok2 := parseFloatTok(tokens[idx+1])
	if !ok1 || !ok2 {
		dec.log("G %s-%s: invalid dE/dN", from, to)
		return
	}
	idx += 2
	dE *= dec.state.unitScale()
	dN *= dec.state.unitScale()

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	sigmaE, sigmaN, rho, hasRho := resolveGpsSigma(inst, 0), resolveGpsSigma(inst, 0), 0.0, false
	if idx < len(tokens) {
		if v, ok := parseFloatTok(tokens[idx]); ok {
			sigmaE = resolveGpsSigma(inst, v)
			idx++
		}
	}
	if idx < len(tokens) {
		if v, ok := parseFloatTok(tokens[idx]); ok {
			sigmaN = resolveGpsSigma(inst, v)
			idx++
		}
	}
	if idx < len(tokens) {
		if v, ok := parseFloatTok(tokens[idx]); ok {
			rho = v
			hasRho = true
		}
	}

	dec.addObservation(&Observation{
		Kind:        KindGps,
		InstCode:    instCode,
		StdDev:      math.Hypot(sigmaE, sigmaN),
		SigmaSource: SigmaDefault,
		Detail: &GpsDetail{
			From: from, To: to, DE: dE, DN: dN,
			SigmaE: sigmaE, SigmaN: sigmaN, Rho: rho, HasRho: hasRho,
		},
	})
}

// handleLev parses an L record: `<from> <to> <deltaH> <lengthKm> [sigma]`.
func (dec *Decoder) handleLev(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("L: missing from/to")
		return
	}
	if idx+1 >= len(tokens) {
		dec.log("L %s-%s: missing deltaH/length", from, to)
		return
	}
	dh, ok1 := parseFloatTok(tokens[idx])
	lengthKm, ok2 := parseFloatTok(tokens[idx+1])
	if !ok1 || !ok2 {
		dec.log("L %s-%s: invalid deltaH/length", from, to)
		return
	}
	idx += 2
	dh *= dec.state.unitScale()

	sigmaTok := ""
	if idx < len(tokens) {
		sigmaTok = tokens[idx]
	}

	inst := dec.currentInstrument()
	sigma, source := resolveSigma(sigmaTok, func() float64 { return resolveLevSigma(inst, lengthKm, dec.state.LevWeight) })

	dec.addObservation(&Observation{
		Kind:        KindLev,
		InstCode:    dec.state.CurrentInstrument,
		StdDev:      sigma,
		SigmaSource: source,
		Detail:      &LevDetail{From: from, To: to, DeltaH: dh, LengthKm: lengthKm},
	})
}
