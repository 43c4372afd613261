package network

import "strings"

// handleInstrument parses an I record. The modern form carries 8 numeric
// fields (const, ppm, hz, va, instCentr, tgtCentr, gps, lev) after an
// optional hyphenated description; a legacy 5-field form (ppm, const, hz,
// gps, lev) is also recognized (spec.md S4.4's documented heuristic - see
// SPEC_FULL.md S10 for the decided field order).
func (dec *Decoder) handleInstrument(tokens []string) {
	if len(tokens) < 2 {
		dec.log("I: too few fields")
		return
	}
	code := strings.ToUpper(tokens[0])
	idx := 1

	desc := ""
	if !looksNumeric(tokens[idx]) {
		desc = tokens[idx]
		idx++
	}

	nums := make([]float64, 0, 8)
	for _, t := range tokens[idx:] {
		v, ok := parseFloatTok(t)
		if !ok {
			dec.log("I %s: non-numeric field %q, skipped", code, t)
			continue
		}
		nums = append(nums, v)
	}

	inst := &Instrument{Code: code, Desc: desc}

	switch len(nums) {
	case 8:
		inst.EdmConst = nums[0]
		inst.EdmPPM = nums[1]
		inst.HzPrecisionSec = nums[2]
		inst.VaPrecisionSec = nums[3]
		inst.InstCentering = nums[4]
		inst.TgtCentering = nums[5]
		inst.GpsStdXY = nums[6]
		inst.LevStdMmPerKm = nums[7]
	case 5:
		inst.Legacy = true
		inst.EdmPPM = nums[0]
		inst.EdmConst = nums[1]
		inst.HzPrecisionSec = nums[2]
		inst.VaPrecisionSec = nums[2]
		inst.GpsStdXY = nums[3]
		inst.LevStdMmPerKm = nums[4]
		dec.log("I %s: legacy 5-field form, field order assumed ppm,const,ang,gps,lev", code)
	default:
		dec.log("I %s: expected 8 (or legacy 5) numeric fields, got %d", code, len(nums))
		return
	}

	dec.instruments[code] = inst
	dec.state.CurrentInstrument = code
}
