package network

import (
	"math"
	"strings"

	"geonet/pkg/angles"
)

// handleSideshot parses an SS record: `<from> <to> <dist> [vert] [AZ=<az>|HZ=<hz>|@<backsight>] [sigma]`.
// Sideshots are excluded from the normal equations but retained, tagged
// Sideshot, for the post-adjust sideshot report (spec.md S4.7).
func (dec *Decoder) handleSideshot(tokens []string) {
	from, to, idx, ok := consumeFromTo(tokens, 0)
	if !ok {
		dec.log("SS: missing from/to")
		return
	}
	if idx >= len(tokens) {
		dec.log("SS %s-%s: missing distance", from, to)
		return
	}
	distRaw, ok := parseFloatTok(tokens[idx])
	if !ok {
		dec.log("SS %s-%s: invalid distance %q", from, to, tokens[idx])
		return
	}
	idx++
	dist := distRaw * dec.state.unitScale()

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument

	spec := &SideshotSpec{}

	var vertTok string
	haveVert := false
	rest := tokens[idx:]
	remaining := make([]string, 0, len(rest))
	for _, t := range rest {
		switch {
		case strings.HasPrefix(strings.ToUpper(t), "AZ="):
			if az, err := angles.DmsToRad(t[3:]); err == nil {
				v := angles.WrapTo2Pi(az)
				spec.ExplicitAz = &v
			} else {
				dec.log("SS %s-%s: invalid AZ= %q: %v", from, to, t, err)
			}
		case strings.HasPrefix(strings.ToUpper(t), "HZ="):
			if hz, err := angles.DmsToRad(t[3:]); err == nil {
				v := angles.WrapTo2Pi(hz)
				spec.SetupHz = &v
			} else {
				dec.log("SS %s-%s: invalid HZ= %q: %v", from, to, t, err)
			}
		case strings.HasPrefix(t, "@"):
			spec.SetupBacksight = t[1:]
		case !haveVert && dec.state.CoordMode == CoordMode3D && looksNumericOrDms(t):
			vertTok = t
			haveVert = true
		default:
			remaining = append(remaining, t)
		}
	}

	if haveVert {
		if dec.state.DeltaMode == DeltaHoriz {
			if dh, ok := parseFloatTok(vertTok); ok {
				spec.Vertical = &ZenithOrDeltaH{IsDeltaH: true, Value: dh * dec.state.unitScale()}
			}
		} else if zenRad, err := angles.DmsToRad(vertTok); err == nil {
			zen := math.Mod(zenRad, math.Pi)
			if zen < 0 {
				zen += math.Pi
			}
			spec.Vertical = &ZenithOrDeltaH{IsDeltaH: false, Value: zen}
		}
	}

	sigmaTok := ""
	if len(remaining) > 0 {
		sigmaTok = remaining[0]
	}
	sigma, source := resolveSigma(sigmaTok, func() float64 { return resolveDistSigma(inst, dist, dec.state.EdmMode) })

	if spec.ExplicitAz == nil && spec.SetupHz == nil && spec.SetupBacksight == "" {
		if _, ok := dec.stations.Get(to); !ok {
			dec.log("SS %s-%s: %s", from, to, "no azimuth available (need explicit AZ, backsight+HZ, or approximate coordinates)")
		}
	}

	dec.addObservation(&Observation{
		Kind:        KindDist,
		InstCode:    instCode,
		StdDev:      sigma,
		SigmaSource: source,
		Detail:      &DistDetail{From: from, To: to, Value: dist, Mode: sideshotDistMode(dec.state)},
		Sideshot:    true,
		SideshotSpec: spec,
	})
}

func sideshotDistMode(state *ParseState) DistMode {
	if state.DeltaMode == DeltaHoriz || state.CoordMode == CoordMode2D {
		return DistHoriz
	}
	return DistSlope
}

// looksNumericOrDms reports whether tok could be a vertical-component value:
// a plain number (delta-height) or a DMS angle (zenith).
func looksNumericOrDms(tok string) bool {
	if looksNumeric(tok) {
		return true
	}
	_, err := angles.DmsToRad(tok)
	return err == nil
}
