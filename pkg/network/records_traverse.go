package network

import (
	"fmt"
	"math"

	"geonet/pkg/angles"
)

// handleTB opens a traverse session: `<occupy> <backsight>`. A previously
// open session is flushed first (closed without an explicit TE).
func (dec *Decoder) handleTB(tokens []string) {
	if len(tokens) < 2 {
		dec.log("TB: too few fields")
		return
	}
	if dec.trav != nil {
		dec.flushTraverse()
	}
	dec.traverseCounter++
	session := &TraverseSession{
		ID:       fmt.Sprintf("TRAV#%d", dec.traverseCounter),
		Occupies: []string{tokens[0]},
	}
	dec.trav = &traverseState{session: session, occupy: tokens[0], backsight: tokens[1]}
}

// handleTraverseLeg parses a T or TE record: `<foresight> <angle> <dist> [vert] [sigmas]`.
// An angle (at=occupy, from=backsight, to=foresight) and a distance
// (from=occupy, to=foresight) are always emitted; an optional vertical
// component follows the distance, per the active DeltaMode. Sigma tokens
// are not read: every observation takes its default sigma. isTE closes the
// session after this leg is emitted.
func (dec *Decoder) handleTraverseLeg(tokens []string, isTE bool) {
	if dec.trav == nil {
		dec.log("T/TE without an open TB, skipped")
		return
	}
	if len(tokens) < 3 {
		dec.log("T/TE: too few fields")
		return
	}
	to := tokens[0]
	angRad, err := angles.DmsToRad(tokens[1])
	if err != nil {
		dec.log("T/TE %s: invalid angle %q: %v", to, tokens[1], err)
		return
	}
	distRaw, ok := parseFloatTok(tokens[2])
	if !ok {
		dec.log("T/TE %s: invalid distance %q", to, tokens[2])
		return
	}
	idx := 3
	dist := distRaw * dec.state.unitScale()

	inst := dec.currentInstrument()
	instCode := dec.state.CurrentInstrument
	occupy, backsight := dec.trav.occupy, dec.trav.backsight
	travID := dec.trav.session.ID

	leg := TraverseLeg{AngleObsID: -1, DistObsID: -1, VertObsID: -1, From: occupy, To: to}

	dec.addObservation(&Observation{
		Kind: KindAngle, InstCode: instCode, StdDev: resolveAngleSigma(inst, false), SigmaSource: SigmaDefault,
		Detail:     &AngleDetail{At: occupy, From: backsight, To: to, Value: angles.WrapTo2Pi(angRad)},
		TraverseID: travID,
	})
	leg.AngleObsID = dec.observations[len(dec.observations)-1].ID

	mode := DistSlope
	if dec.state.DeltaMode == DeltaHoriz || dec.state.CoordMode == CoordMode2D {
		mode = DistHoriz
	}
	dec.addObservation(&Observation{
		Kind: KindDist, InstCode: instCode, StdDev: resolveDistSigma(inst, dist, dec.state.EdmMode), SigmaSource: SigmaDefault,
		Detail:     &DistDetail{From: occupy, To: to, Value: dist, Mode: mode},
		TraverseID: travID,
	})
	leg.DistObsID = dec.observations[len(dec.observations)-1].ID

	if idx < len(tokens) && dec.state.CoordMode == CoordMode3D {
		if dec.state.DeltaMode == DeltaHoriz {
			if dh, ok := parseFloatTok(tokens[idx]); ok {
				dh *= dec.state.unitScale()
				dec.addObservation(&Observation{
					Kind: KindLev, InstCode: instCode, StdDev: defaultDeltaHSigma, SigmaSource: SigmaDefault,
					Detail:     &LevDetail{From: occupy, To: to, DeltaH: dh},
					TraverseID: travID,
				})
				leg.VertObsID = dec.observations[len(dec.observations)-1].ID
			}
		} else if zenRad, err := angles.DmsToRad(tokens[idx]); err == nil {
			zen := math.Mod(zenRad, math.Pi)
			if zen < 0 {
				zen += math.Pi
			}
			dec.addObservation(&Observation{
				Kind: KindZenith, InstCode: instCode, StdDev: resolveAngleSigma(inst, false), SigmaSource: SigmaDefault,
				Detail:     &ZenithDetail{From: occupy, To: to, Value: zen},
				TraverseID: travID,
			})
			leg.VertObsID = dec.observations[len(dec.observations)-1].ID
		}
	}

	dec.trav.session.Legs = append(dec.trav.session.Legs, leg)
	dec.trav.session.Occupies = append(dec.trav.session.Occupies, to)

	prevOccupy := dec.trav.occupy
	dec.trav.backsight = prevOccupy
	dec.trav.occupy = to

	if isTE {
		dec.flushTraverse()
	}
}

// flushTraverse closes the open traverse session, if any, recording it on
// the decoder's session list.
func (dec *Decoder) flushTraverse() {
	if dec.trav == nil {
		return
	}
	dec.traverseSessions = append(dec.traverseSessions, dec.trav.session)
	dec.trav = nil
}
