package network

import "strings"

// handleDirective applies a `.`-prefixed option to the live ParseState.
// Unknown directives and malformed arguments are logged and ignored - the
// parser never aborts on a bad directive (spec.md S7).
func (dec *Decoder) handleDirective(code string, args []string) {
	arg := ""
	if len(args) > 0 {
		arg = strings.ToUpper(args[0])
	}

	switch code {
	case ".UNITS":
		switch arg {
		case "M":
			dec.state.UnitsFeet = false
		case "FT", "US":
			dec.state.UnitsFeet = true
		default:
			dec.log(".UNITS: unrecognized unit %q", arg)
		}
	case ".COORD":
		dec.setCoordMode(arg)
	case ".2D":
		dec.setCoordMode("2D")
	case ".3D":
		dec.setCoordMode("3D")
	case ".ORDER":
		switch arg {
		case "NE":
			dec.state.Order = OrderNE
		case "EN":
			dec.state.Order = OrderEN
		default:
			dec.log(".ORDER: unrecognized order %q", arg)
		}
	case ".DELTA":
		switch arg {
		case "ON":
			dec.state.DeltaMode = DeltaHoriz
		case "OFF":
			dec.state.DeltaMode = DeltaSlope
		default:
			dec.log(".DELTA: unrecognized value %q", arg)
		}
	case ".MAPMODE":
		switch arg {
		case "OFF":
			dec.state.MapMode = MapOff
		case "ON":
			dec.state.MapMode = MapOn
		case "ANGLECALC":
			dec.state.MapMode = MapAngleCalc
		default:
			dec.log(".MAPMODE: unrecognized value %q", arg)
		}
	case ".MAPSCALE":
		if v, ok := parseFloatTok(arg); ok {
			dec.state.MapScale = v
		} else {
			dec.log(".MAPSCALE: invalid factor %q", arg)
		}
	case ".LWEIGHT":
		if v, ok := parseFloatTok(arg); ok {
			dec.state.LevWeight = v
		} else {
			dec.log(".LWEIGHT: invalid value %q", arg)
		}
	case ".NORMALIZE":
		dec.state.Normalize = arg == "ON"
	case ".LONSIGN":
		switch arg {
		case "WESTPOS", "W+":
			dec.state.WestNegLon = false
		case "WESTNEG", "W-":
			dec.state.WestNegLon = true
		default:
			dec.log(".LONSIGN: unrecognized value %q", arg)
		}
	case ".EDM":
		switch arg {
		case "ADDITIVE":
			dec.state.EdmMode = EdmAdditive
		case "PROPAGATED":
			dec.state.EdmMode = EdmPropagated
		default:
			dec.log(".EDM: unrecognized value %q", arg)
		}
	case ".CENTERING":
		dec.state.ApplyCentering = arg == "ON"
	case ".ADDC":
		dec.state.AddCenteringToExplicit = arg == "ON"
	case ".CURVREF":
		switch arg {
		case "ON":
			dec.state.VerticalReduction = VerticalReductionCurvRef
		case "OFF":
			dec.state.VerticalReduction = VerticalReductionNone
		default:
			if v, ok := parseFloatTok(arg); ok {
				dec.state.VerticalReduction = VerticalReductionCurvRef
				dec.state.RefractionK = v
			} else {
				dec.log(".CURVREF: unrecognized value %q", arg)
			}
		}
	case ".REFRACTION":
		if v, ok := parseFloatTok(arg); ok {
			dec.state.RefractionK = v
		} else {
			dec.log(".REFRACTION: invalid value %q", arg)
		}
	case ".VRED":
		switch arg {
		case "NONE":
			dec.state.VerticalReduction = VerticalReductionNone
		case "CURVREF":
			dec.state.VerticalReduction = VerticalReductionCurvRef
		default:
			dec.log(".VRED: unrecognized value %q", arg)
		}
	case ".AMODE":
		switch arg {
		case "ANGLE":
			dec.state.AngleMode = AngleModeAngle
		case "DIR":
			dec.state.AngleMode = AngleModeDir
		case "AUTO":
			dec.state.AngleMode = AngleModeAuto
		default:
			dec.log(".AMODE: unrecognized value %q", arg)
		}
	case ".I", ".TS":
		if len(args) > 0 {
			dec.setCurrentInstrument(args[0])
		}
	case ".END":
		dec.ended = true
	default:
		dec.log("unknown directive %q, skipped", code)
	}
}

func (dec *Decoder) setCoordMode(arg string) {
	switch arg {
	case "2D":
		dec.state.CoordMode = CoordMode2D
	case "3D":
		dec.state.CoordMode = CoordMode3D
	default:
		dec.log(".COORD: unrecognized mode %q", arg)
	}
}

func (dec *Decoder) setCurrentInstrument(code string) {
	code = strings.ToUpper(code)
	if _, ok := dec.instruments[code]; !ok {
		dec.log("instrument %q not yet defined", code)
	}
	dec.state.CurrentInstrument = code
}
