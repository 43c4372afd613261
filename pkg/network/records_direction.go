package network

import (
	"fmt"
	"math"

	"geonet/pkg/angles"
)

// handleDB opens a direction set: `[instCode] <occupy> <backsight>`. If a
// set is already open, it is flushed first with a diagnostic (mirrors the
// Idle/Open state machine of design note S9).
func (dec *Decoder) handleDB(tokens []string) {
	inst, idx := dec.leadingInstCode(tokens, 2)
	if idx+1 >= len(tokens) {
		dec.log("DB: too few fields")
		return
	}
	occupy, backsight := tokens[idx], tokens[idx+1]

	if dec.openDirSet != nil {
		dec.log("DB: direction set %s still open, flushed without DE", dec.openDirSet.ID)
		dec.flushDirectionSet("DB reopened without DE")
	}

	dec.dirSetCounters[occupy]++
	setID := fmt.Sprintf("%s#%d", occupy, dec.dirSetCounters[occupy])

	instCode := ""
	if inst != nil {
		instCode = inst.Code
	}
	dec.openDirSet = &DirectionSet{ID: setID, Occupy: occupy, Backsight: backsight, InstCode: instCode, Open: true}
}

// handleDN appends a raw direction shot: `<to> <ang> [sigma]`. withDist also
// reads a distance and vertical component for a DM record:
// `<to> <ang> <dist> <vert> [sigmas]`.
func (dec *Decoder) handleDN(tokens []string, withDist bool) {
	if dec.openDirSet == nil {
		dec.log("DN/DM without an open DB, skipped")
		return
	}
	if len(tokens) < 2 {
		dec.log("DN: too few fields")
		return
	}
	to := tokens[0]
	ang, err := angles.DmsToRad(tokens[1])
	if err != nil {
		dec.log("DN %s: invalid angle %q: %v", to, tokens[1], err)
		return
	}
	obs := angles.WrapTo2Pi(ang)
	inst := dec.instruments[dec.openDirSet.InstCode]

	idx := 2
	if withDist {
		if idx+1 >= len(tokens) {
			dec.log("DM %s: missing dist/vert", to)
			return
		}
		distRaw, ok := parseFloatTok(tokens[idx])
		if !ok {
			dec.log("DM %s: invalid distance", to)
			return
		}
		vertTok := tokens[idx+1]
		idx += 2

		dist := distRaw * dec.state.unitScale()
		mode := DistSlope
		if dec.state.DeltaMode == DeltaHoriz || dec.state.CoordMode == CoordMode2D {
			mode = DistHoriz
		}
		dec.addObservation(&Observation{
			Kind: KindDist, InstCode: dec.openDirSet.InstCode,
			StdDev: resolveDistSigma(inst, dist, dec.state.EdmMode), SigmaSource: SigmaDefault,
			Detail: &DistDetail{From: dec.openDirSet.Occupy, To: to, Value: dist, Mode: mode},
		})

		if dec.state.DeltaMode == DeltaHoriz {
			if dh, ok := parseFloatTok(vertTok); ok {
				dh *= dec.state.unitScale()
				dec.addObservation(&Observation{
					Kind: KindLev, InstCode: dec.openDirSet.InstCode, StdDev: defaultDeltaHSigma, SigmaSource: SigmaDefault,
					Detail: &LevDetail{From: dec.openDirSet.Occupy, To: to, DeltaH: dh},
				})
			}
		} else if zenRad, err := angles.DmsToRad(vertTok); err == nil {
			zen := math.Mod(zenRad, math.Pi)
			if zen < 0 {
				zen += math.Pi
			}
			dec.addObservation(&Observation{
				Kind: KindZenith, InstCode: dec.openDirSet.InstCode, StdDev: resolveAngleSigma(inst, false), SigmaSource: SigmaDefault,
				Detail: &ZenithDetail{From: dec.openDirSet.Occupy, To: to, Value: zen},
			})
		}
	}

	sigmaTok := ""
	if idx < len(tokens) {
		sigmaTok = tokens[idx]
	}
	isFace2 := obs >= math.Pi
	sigma, source := resolveSigma(sigmaTok, func() float64 { return resolveAngleSigma(inst, isFace2) })

	dec.openDirSet.raw = append(dec.openDirSet.raw, rawDirShot{
		To: to, Value: obs, StdDev: sigma, SigmaSource: source, SourceLine: dec.lineNum, InstCode: dec.openDirSet.InstCode,
	})
}

// flushDirectionSet reduces the open set's raw shots into one Direction
// observation per distinct target and closes the set. Mixed-face targets
// are rejected (logged, skipped) when Normalize is off.
func (dec *Decoder) flushDirectionSet(reason string) {
	set := dec.openDirSet
	if set == nil {
		return
	}
	dec.openDirSet = nil
	set.Open = false

	order := make([]string, 0)
	byTarget := make(map[string][]rawDirShot)
	for _, shot := range set.raw {
		if _, ok := byTarget[shot.To]; !ok {
			order = append(order, shot.To)
		}
		byTarget[shot.To] = append(byTarget[shot.To], shot)
	}

	for _, target := range order {
		shots := byTarget[target]

		face1, face2 := 0, 0
		minV, maxV := math.Inf(1), math.Inf(-1)
		var sumW, sumWSin, sumWCos float64
		var f1Sin, f1Cos, f1W float64
		var f2Sin, f2Cos, f2W float64

		for _, s := range shots {
			v := s.Value
			if v >= math.Pi {
				v -= math.Pi
				face2++
			} else {
				face1++
			}
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			w := 1.0
			if s.StdDev > 0 {
				w = 1.0 / (s.StdDev * s.StdDev)
			}
			sumW += w
			sumWSin += w * math.Sin(v)
			sumWCos += w * math.Cos(v)
			if s.Value >= math.Pi {
				f2W += w
				f2Sin += w * math.Sin(v)
				f2Cos += w * math.Cos(v)
			} else {
				f1W += w
				f1Sin += w * math.Sin(v)
				f1Cos += w * math.Cos(v)
			}
		}

		if face1 > 0 && face2 > 0 && !dec.state.Normalize {
			dec.log("direction set %s target %s: mixed faces rejected (normalize off)", set.ID, target)
			continue
		}

		mean := angles.WrapTo2Pi(math.Atan2(sumWSin, sumWCos))
		reducedSigma := 1.0
		if sumW > 0 {
			reducedSigma = 1.0 / math.Sqrt(sumW)
		}

		facePairDelta := 0.0
		if face1 > 0 && face2 > 0 {
			m1 := math.Atan2(f1Sin, f1Cos)
			m2 := math.Atan2(f2Sin, f2Cos)
			facePairDelta = math.Abs(angles.WrapToPi(m1 - m2))
		}

		instCode := shots[0].InstCode
		dec.addObservation(&Observation{
			Kind:        KindDirection,
			InstCode:    instCode,
			StdDev:      reducedSigma,
			SigmaSource: SigmaDefault,
			Detail: &DirectionDetail{
				SetID: set.ID, At: set.Occupy, To: target, Value: mean,
				RawCount: len(shots), Face1Count: face1, Face2Count: face2,
				RawSpread: maxV - minV, FacePairDelta: facePairDelta, ReducedSigma: reducedSigma,
			},
		})
		set.Directions = append(set.Directions, dec.observations[len(dec.observations)-1])
	}

	dec.dirSets = append(dec.dirSets, set)
	dec.dirSetsByID[set.ID] = set
	_ = reason
}
