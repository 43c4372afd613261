package network

import "math"

// handleCoord parses a C/CH/EH record: `<id> <a> <b> [<h>] [sigmas] [fixity]`.
// Token order of a,b follows ParseState.Order. Remaining tokens are
// consumed left to right against the component order E,N,(H): a "!"
// fixes the next component, a number installs a weighted constraint at
// the station's current value with that sigma, and a lone trailing "*"
// (with no more positional tokens to assign) fixes every component -
// the legacy whole-station fixity marker.
func (dec *Decoder) handleCoord(tokens []string, withHeight bool) {
	if len(tokens) < 3 {
		dec.log("C: too few fields")
		return
	}
	id := tokens[0]
	a, ok1 := parseFloatTok(tokens[1])
	b, ok2 := parseFloatTok(tokens[2])
	if !ok1 || !ok2 {
		dec.log("C %s: invalid coordinate fields", id)
		return
	}
	scale := dec.state.unitScale()

	st := dec.stations.GetOrCreate(id)
	if dec.state.Order == OrderEN {
		st.X = a * scale
		st.Y = b * scale
	} else {
		st.Y = a * scale
		st.X = b * scale
	}

	idx := 3
	haveH := withHeight || dec.state.CoordMode == CoordMode3D
	if haveH && idx < len(tokens) && looksNumeric(tokens[idx]) {
		h, _ := parseFloatTok(tokens[idx])
		st.H = h * scale
		idx++
	}

	dec.applyFixityAndConstraints(st, tokens[idx:], haveH)
}

// applyFixityAndConstraints consumes the trailing fixity/sigma tokens of a
// C/CH/EH record against components in the order E,N,(H).
func (dec *Decoder) applyFixityAndConstraints(st *Station, tokens []string, haveH bool) {
	components := []string{"E", "N"}
	if haveH {
		components = append(components, "H")
	}

	if len(tokens) == 1 && tokens[0] == "*" {
		st.FixedX, st.FixedY = true, true
		if haveH {
			st.FixedH = true
		}
		return
	}

	ci := 0
	for _, t := range tokens {
		if ci >= len(components) {
			break
		}
		comp := components[ci]
		switch {
		case t == "!":
			dec.fixComponent(st, comp)
			ci++
		case looksNumeric(t):
			v, _ := parseFloatTok(t)
			if v > 0 {
				dec.constrainComponent(st, comp, v)
			}
			ci++
		default:
			ci++
		}
	}
}

func (dec *Decoder) fixComponent(st *Station, comp string) {
	switch comp {
	case "E":
		st.FixedX = true
	case "N":
		st.FixedY = true
	case "H":
		st.FixedH = true
	}
}

func (dec *Decoder) constrainComponent(st *Station, comp string, sigma float64) {
	switch comp {
	case "E":
		st.ConstraintX = &Constraint{Value: st.X, Sigma: sigma}
	case "N":
		st.ConstraintY = &Constraint{Value: st.Y, Sigma: sigma}
	case "H":
		st.ConstraintH = &Constraint{Value: st.H, Sigma: sigma}
	}
}

// handleLatLon parses a P/PH record: geodetic lat/lon, projected about the
// first P encountered via a flat equirectangular projection (spec.md S6):
// N = R*dLat, E = R*cos(lat0)*dLon.
func (dec *Decoder) handleLatLon(tokens []string, withHeight bool) {
	if len(tokens) < 3 {
		dec.log("P: too few fields")
		return
	}
	id := tokens[0]
	latDeg, ok1 := parseFloatTok(tokens[1])
	lonDeg, ok2 := parseFloatTok(tokens[2])
	if !ok1 || !ok2 {
		dec.log("P %s: invalid lat/lon fields", id)
		return
	}
	if !dec.state.WestNegLon {
		lonDeg = -lonDeg
	}

	if !dec.state.OriginSet {
		dec.state.OriginLat = latDeg
		dec.state.OriginLon = lonDeg
		dec.state.OriginSet = true
	}

	latRad := dec.state.OriginLat * (math.Pi / 180)
	dLat := (latDeg - dec.state.OriginLat) * (math.Pi / 180)
	dLon := (lonDeg - dec.state.OriginLon) * (math.Pi / 180)

	st := dec.stations.GetOrCreate(id)
	st.Y = EarthRadius * dLat
	st.X = EarthRadius * math.Cos(latRad) * dLon

	idx := 3
	haveH := withHeight || dec.state.CoordMode == CoordMode3D
	if haveH && idx < len(tokens) && looksNumeric(tokens[idx]) {
		h, _ := parseFloatTok(tokens[idx])
		st.H = h * dec.state.unitScale()
		idx++
	}

	dec.applyFixityAndConstraints(st, tokens[idx:], haveH)
}

// handleElevation parses an E record: `<id> <h> [sigma] [!|*]`.
func (dec *Decoder) handleElevation(tokens []string) {
	if len(tokens) < 2 {
		dec.log("E: too few fields")
		return
	}
	id := tokens[0]
	h, ok := parseFloatTok(tokens[1])
	if !ok {
		dec.log("E %s: invalid height", id)
		return
	}
	st := dec.stations.GetOrCreate(id)
	st.H = h * dec.state.unitScale()

	for _, t := range tokens[2:] {
		switch {
		case t == "!" || t == "*":
			st.FixedH = true
		case looksNumeric(t):
			v, _ := parseFloatTok(t)
			if v > 0 {
				st.ConstraintH = &Constraint{Value: st.H, Sigma: v}
			}
		}
	}
}
