package network

import (
	"math"

	"geonet/pkg/angles"
)

// sigmaToken classifies a raw sigma token per spec.md S6's conventions:
// missing/"&"/"?" => default, a number => explicit, "!" => fixed, "*" =>
// float.
func sigmaToken(tok string) (SigmaSource, float64, bool) {
	switch tok {
	case "", "&", "?":
		return SigmaDefault, 0, true
	case "!":
		return SigmaFixed, sigmaFixedValue, true
	case "*":
		return SigmaFloat, sigmaFloatValue, true
	}
	return SigmaDefault, 0, false
}

// resolveDistSigma derives the default sigma (m) for a distance of length
// distM using the instrument's EDM constant/ppm per the active EdmMode.
func resolveDistSigma(inst *Instrument, distM float64, mode EdmMode) float64 {
	if inst == nil {
		return defaultDistSigma
	}
	ppmTerm := inst.EdmPPM * distM * 1e-6
	switch mode {
	case EdmPropagated:
		return math.Sqrt(inst.EdmConst*inst.EdmConst + ppmTerm*ppmTerm)
	default: // EdmAdditive
		return math.Abs(inst.EdmConst) + math.Abs(ppmTerm)
	}
}

// resolveAngleSigma derives the default angular sigma (radians) for an
// angle or direction shot. isFace2 doubles the weight (multiplies sigma by
// 1/sqrt(2) ~= 0.707) for A-records whose raw value encodes a face-2
// reading (obs >= pi).
func resolveAngleSigma(inst *Instrument, isFace2 bool) float64 {
	sec := defaultAngleSigma
	if inst != nil && inst.HzPrecisionSec > 0 {
		sec = inst.HzPrecisionSec
	}
	rad := sec * angles.SecToRad
	if isFace2 {
		rad *= 0.707
	}
	return rad
}

// resolveGpsSigma combines a provided sigma (m) with the instrument's GPS
// std in quadrature.
func resolveGpsSigma(inst *Instrument, provided float64) float64 {
	instStd := 0.0
	if inst != nil {
		instStd = inst.GpsStdXY
	}
	return math.Sqrt(provided*provided + instStd*instStd)
}

// resolveLevSigma derives the leveling sigma (m) over a run length lengthKm
// using the instrument's mm/km figure, combined with the parse state's
// default leveling weight in quadrature. Both terms scale linearly with
// lengthKm, not its square root.
func resolveLevSigma(inst *Instrument, lengthKm float64, defaultMmPerKm float64) float64 {
	instMmPerKm := 0.0
	if inst != nil {
		instMmPerKm = inst.LevStdMmPerKm
	}
	a := instMmPerKm * math.Abs(lengthKm) / 1000.0
	b := defaultMmPerKm * math.Abs(lengthKm) / 1000.0
	return math.Sqrt(a*a + b*b)
}

// centeringForDist returns the quadrature-combined centering uncertainty
// (m) to add, as an absolute distance term, for a distance observation.
func centeringForDist(inst *Instrument) float64 {
	if inst == nil {
		return 0
	}
	return math.Sqrt(inst.InstCentering*inst.InstCentering + inst.TgtCentering*inst.TgtCentering)
}

// centeringForAngleRad converts a centering uncertainty (m) over a leg
// distance distM into an angular contribution (radians), for combination
// in quadrature with the angle's base sigma.
func centeringForAngleRad(inst *Instrument, distM float64) float64 {
	if inst == nil || distM <= 0 {
		return 0
	}
	center := centeringForDist(inst)
	return center / distM
}

// resolveSigma interprets a raw sigma token per S6's conventions, falling
// back to defaultFn() for a missing/"&"/"?" token or an unparsable one.
func resolveSigma(tok string, defaultFn func() float64) (float64, SigmaSource) {
	source, val, matched := sigmaToken(tok)
	if matched {
		if source == SigmaDefault {
			return defaultFn(), SigmaDefault
		}
		return val, source
	}
	if v, ok := parseFloatTok(tok); ok {
		return v, SigmaExplicit
	}
	return defaultFn(), SigmaDefault
}

// applyCenteringScalar inflates sigma by the centering contribution in
// quadrature, honoring the addCenteringToExplicit gate: explicit sigmas are
// only inflated when addExplicit is true; fixed/float sigmas are never
// inflated.
func applyCenteringScalar(sigma float64, source SigmaSource, centeringTerm float64, applyCentering, addExplicit bool) float64 {
	if !applyCentering || centeringTerm == 0 {
		return sigma
	}
	if source == SigmaFixed || source == SigmaFloat {
		return sigma
	}
	if source == SigmaExplicit && !addExplicit {
		return sigma
	}
	return math.Sqrt(sigma*sigma + centeringTerm*centeringTerm)
}
