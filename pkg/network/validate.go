package network

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// ValidateNetwork checks structural invariants on a parsed network using
// struct tags on Instrument/Station/Observation (`validate:"..."`) via
// go-playground/validator, then checks station references. Every violation found is appended to pn.Logs rather than returned,
// matching the parser's own log-and-continue style: a malformed network
// still degrades to a descriptive result instead of aborting. Callers
// that need a pass/fail signal should inspect pn.Logs (or a severity
// scan over it) after calling ValidateNetwork.
func ValidateNetwork(pn *ParsedNetwork) {
	if validate == nil {
		validate = validator.New()
	}

	for code, inst := range pn.Instruments {
		if err := validate.Struct(inst); err != nil {
			pn.Logs = append(pn.Logs, fmt.Sprintf("validate: instrument %s: %v", code, err))
		}
	}

	for _, id := range pn.Stations.IDs() {
		st, _ := pn.Stations.Get(id)
		if err := validate.Struct(st); err != nil {
			pn.Logs = append(pn.Logs, fmt.Sprintf("validate: station %s: %v", id, err))
		}
	}

	for _, obs := range pn.Observations {
		if err := validate.Struct(obs); err != nil {
			pn.Logs = append(pn.Logs, fmt.Sprintf("validate: observation #%d (line %d): %v", obs.ID, obs.SourceLine, err))
		}
	}

	validateReferences(pn)
}

// validateReferences checks that every station id an observation or
// direction set refers to was actually declared, catching typos the
// struct-tag pass can't see (spec.md S7: unknown station references are
// reported, not silently dropped). Every violation is appended to
// pn.Logs; the scan does not stop at the first one.
func validateReferences(pn *ParsedNetwork) {
	for _, obs := range pn.Observations {
		for _, id := range obs.stationRefs() {
			if id == "" {
				continue
			}
			if _, ok := pn.Stations.Get(id); !ok {
				pn.Logs = append(pn.Logs, fmt.Sprintf("validate: observation #%d (line %d): unknown station %q", obs.ID, obs.SourceLine, id))
			}
		}
	}
	for _, ds := range pn.DirectionSets {
		if _, ok := pn.Stations.Get(ds.Occupy); !ok {
			pn.Logs = append(pn.Logs, fmt.Sprintf("validate: direction set %s: unknown occupy station %q", ds.ID, ds.Occupy))
		}
	}
}
