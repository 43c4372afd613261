package network

import (
	"strconv"
	"strings"
)

// parseFloatTok parses a plain decimal token.
func parseFloatTok(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// splitFromTo splits an "A-B" token into its two station ids. Station ids
// themselves never contain '-', per the input grammar (S6: "from-to pairs
// may be given as A-B").
func splitFromTo(tok string) (from, to string, ok bool) {
	i := strings.IndexByte(tok, '-')
	if i <= 0 || i == len(tok)-1 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

// splitHiHt splits a "1.5/1.6" token into instrument/target heights.
func splitHiHt(tok string) (hi, ht float64, ok bool) {
	i := strings.IndexByte(tok, '/')
	if i <= 0 || i == len(tok)-1 {
		return 0, 0, false
	}
	h1, ok1 := parseFloatTok(tok[:i])
	h2, ok2 := parseFloatTok(tok[i+1:])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return h1, h2, true
}

// consumeFromTo reads a from/to station pair starting at tokens[idx]: either
// a single "A-B" token, or two separate tokens, per S6's token conventions.
func consumeFromTo(tokens []string, idx int) (from, to string, next int, ok bool) {
	if idx >= len(tokens) {
		return "", "", idx, false
	}
	if f, t, split := splitFromTo(tokens[idx]); split {
		return f, t, idx + 1, true
	}
	if idx+1 < len(tokens) {
		return tokens[idx], tokens[idx+1], idx + 2, true
	}
	return "", "", idx, false
}

// isSigmaMarker reports whether tok is one of the non-numeric sigma marker
// tokens ("&", "?", "!", "*").
func isSigmaMarker(tok string) bool {
	switch tok {
	case "&", "?", "!", "*":
		return true
	}
	return false
}

// looksNumeric reports whether tok parses as a float, used to decide
// whether a trailing optional token is present.
func looksNumeric(tok string) bool {
	_, ok := parseFloatTok(tok)
	return ok
}
