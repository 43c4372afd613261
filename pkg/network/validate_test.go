package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNetworkAcceptsWellFormedTriangle(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	before := len(pn.Logs)
	ValidateNetwork(pn)
	assert.Len(pn.Logs, before, "a well-formed network should add no validation log entries")
}

func TestValidateNetworkRejectsNonPositiveStdDev(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	pn.Observations[0].StdDev = 0

	ValidateNetwork(pn)
	assert.True(logsContain(pn.Logs, "validate:"))
}

func TestValidateNetworkRejectsUnknownStationReference(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
D A Z 500
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	ValidateNetwork(pn)
	assert.True(logsContain(pn.Logs, "Z"))
}

func TestValidateNetworkRejectsUnknownDirectionSetOccupy(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	pn.DirectionSets = append(pn.DirectionSets, &DirectionSet{ID: "ghost#1", Occupy: "NOPE"})

	ValidateNetwork(pn)
	assert.True(logsContain(pn.Logs, "NOPE"))
}

func TestValidateNetworkAccumulatesEveryViolation(t *testing.T) {
	assert := assert.New(t)
	pn := parseTriangle(t)
	pn.Observations[0].StdDev = 0
	pn.DirectionSets = append(pn.DirectionSets, &DirectionSet{ID: "ghost#1", Occupy: "NOPE"})

	ValidateNetwork(pn)
	assert.True(logsContain(pn.Logs, "validate:"), "struct-tag violation should be logged")
	assert.True(logsContain(pn.Logs, "NOPE"), "reference violation should also be logged, not just the first failure")
}

func logsContain(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
