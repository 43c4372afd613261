// Package angles converts between radians, decimal degrees, and the
// DDD.MMSSsss token form used throughout the input format, and wraps
// angles into the ranges the adjuster and statistics routines expect.
package angles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Conversion constants.
const (
	RadToDeg = 180.0 / math.Pi
	DegToRad = math.Pi / 180.0
	SecToRad = DegToRad / 3600.0
)

// DmsToRad parses a DDD.MMSSsss token (sign preserved) as
// degrees.minutes-seconds and returns the value in radians.
//
// The fractional part is read as MMSSsss: the first two digits are
// minutes, the next two are whole seconds, and anything remaining is the
// decimal fraction of a second.
func DmsToRad(token string) (float64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("angles: empty DMS token")
	}

	neg := false
	t := token
	if strings.HasPrefix(t, "-") {
		neg = true
		t = t[1:]
	} else if strings.HasPrefix(t, "+") {
		t = t[1:]
	}

	intPart := t
	fracPart := ""
	if i := strings.IndexByte(t, '.'); i >= 0 {
		intPart = t[:i]
		fracPart = t[i+1:]
	}

	deg, err := strconv.ParseFloat(intPart, 64)
	if err != nil {
		return 0, fmt.Errorf("angles: parse degrees in %q: %w", token, err)
	}

	var minutes, seconds float64
	if len(fracPart) > 0 {
		mm := fracPart
		if len(mm) > 2 {
			mm = fracPart[:2]
		}
		m, err := strconv.ParseFloat(mm, 64)
		if err != nil {
			return 0, fmt.Errorf("angles: parse minutes in %q: %w", token, err)
		}
		minutes = m

		if len(fracPart) > 2 {
			rest := fracPart[2:] // whole seconds digits, then fractional seconds digits
			whole, frac := rest, ""
			if len(rest) > 2 {
				whole, frac = rest[:2], rest[2:]
			}
			w, err := strconv.ParseFloat(whole, 64)
			if err != nil {
				return 0, fmt.Errorf("angles: parse seconds in %q: %w", token, err)
			}
			seconds = w
			if frac != "" {
				f, err := strconv.ParseFloat("0."+frac, 64)
				if err != nil {
					return 0, fmt.Errorf("angles: parse seconds in %q: %w", token, err)
				}
				seconds += f
			}
		}
	}

	dec := deg + minutes/60.0 + seconds/3600.0
	if neg {
		dec = -dec
	}
	return dec * DegToRad, nil
}

// RadToDmsStr wraps rad into [0,360) degrees and formats it as
// "DDD-MM-SS.s" with zero-padded minutes and seconds.
func RadToDmsStr(rad float64) string {
	deg := WrapTo2Pi(rad) * RadToDeg
	if deg >= 360 {
		deg -= 360
	}

	d := int(deg)
	remMin := (deg - float64(d)) * 60
	m := int(remMin)
	s := (remMin - float64(m)) * 60

	// guard against rounding pushing seconds to 60.0
	if s >= 59.95 {
		s = 0
		m++
		if m >= 60 {
			m = 0
			d++
			if d >= 360 {
				d = 0
			}
		}
	}

	return fmt.Sprintf("%03d-%02d-%04.1f", d, m, s)
}

// WrapToPi wraps rad into (-pi, pi].
func WrapToPi(rad float64) float64 {
	r := math.Mod(rad+math.Pi, 2*math.Pi)
	if r <= 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}

// WrapTo2Pi wraps rad into [0, 2*pi).
func WrapTo2Pi(rad float64) float64 {
	r := math.Mod(rad, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}
