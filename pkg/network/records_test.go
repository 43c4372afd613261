package network

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectionSetReducesFacesToOneDirectionPerTarget(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0
C C 500 800
DB A B
DN B 010.0000
DN C 045.0000
DN B 190.0000
DN C 225.0000
DE
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	assert.Len(pn.DirectionSets, 1)
	set := pn.DirectionSets[0]
	assert.Equal("A", set.Occupy)
	assert.Len(set.Directions, 2)

	var dirB, dirC *Observation
	for _, d := range set.Directions {
		dd := d.asDirection()
		if dd.To == "B" {
			dirB = d
		} else if dd.To == "C" {
			dirC = d
		}
	}
	assert.NotNil(dirB)
	assert.NotNil(dirC)

	// Backsight B was shot at 10deg (face 1) and 190deg (face 2, rewrapped
	// to 10deg): the reduced mean should land near 10deg.
	dB := dirB.asDirection()
	assert.Equal(2, dB.RawCount)
	assert.Equal(1, dB.Face1Count)
	assert.Equal(1, dB.Face2Count)
	assert.InDelta(10*math.Pi/180, dB.Value, 1e-6)
}

func TestDirectionSetReopenedFlushesPrevious(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0
C C 500 800
C D 200 200
DB A B
DN B 000.0000
DB C D
DN D 000.0000
DE
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	assert.Len(pn.DirectionSets, 2)
	assert.Equal("A", pn.DirectionSets[0].Occupy)
	assert.Equal("C", pn.DirectionSets[1].Occupy)
	assert.NotEmpty(pn.Logs)
}

func TestTraverseLegsRecordAngleDistVertical(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
TB A B
TE C 090.0000 943.3981
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	assert.Len(pn.TraverseSessions, 1)
	sess := pn.TraverseSessions[0]
	assert.Len(sess.Legs, 1)
	leg := sess.Legs[0]
	assert.Equal("A", leg.From)
	assert.Equal("C", leg.To)

	angleObs := pn.Observations[leg.AngleObsID]
	assert.Equal(KindAngle, angleObs.Kind)
	distObs := pn.Observations[leg.DistObsID]
	assert.Equal(KindDist, distObs.Kind)
	for _, obs := range pn.Observations {
		if obs.TraverseID == sess.ID {
			assert.True(obs.ID == leg.AngleObsID || obs.ID == leg.DistObsID || obs.ID == leg.VertObsID)
		}
	}
}

func TestSideshotWithExplicitAzimuthSetsSpec(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
SS A B 1000 AZ=090.0000
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	assert.Len(pn.Observations, 1)
	obs := pn.Observations[0]
	assert.True(obs.Sideshot)
	assert.NotNil(obs.SideshotSpec.ExplicitAz)
	assert.InDelta(math.Pi/2, *obs.SideshotSpec.ExplicitAz, 1e-6)
}

func TestSideshotWithoutAzimuthSourceLogsWarning(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
SS A X 1000
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	found := false
	for _, l := range pn.Logs {
		if strings.Contains(l, "no azimuth available") {
			found = true
		}
	}
	assert.True(found)
}

func TestSideshotToDeclaredStationDoesNotLogWarning(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 500
SS A B 1118
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	for _, l := range pn.Logs {
		assert.NotContains(l, "no azimuth available",
			"to station B has approximate coordinates, so sideshotResults can resolve azimuth from them")
	}
}

func TestGpsRecordDefaultsToUncorrelatedSigma(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
I GT1 0 0 5 5 0 0 0.01 0.002
C A 0 0 *
C B 0 0
G A B 10 20
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	assert.Len(pn.Observations, 1)
	obs := pn.Observations[0]
	assert.Equal(KindGps, obs.Kind)
	g := obs.asGps()
	assert.False(g.HasRho)
	assert.InDelta(10, g.DE, 1e-9)
	assert.InDelta(20, g.DN, 1e-9)
}

func TestGpsRecordParsesExplicitCorrelation(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 0 0
G A B 10 20 0.01 0.03 0.25
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	g := pn.Observations[0].asGps()
	assert.True(g.HasRho)
	assert.InDelta(0.01, g.SigmaE, 1e-9)
	assert.InDelta(0.03, g.SigmaN, 1e-9)
	assert.InDelta(0.25, g.Rho, 1e-9)
}

func TestLevRecordResolvesLengthDependentSigma(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
.LWEIGHT 2.0
C A 0 0 *
C B 0 0
L A B 0.5 1.0
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	obs := pn.Observations[0]
	assert.Equal(KindLev, obs.Kind)
	l := obs.asLev()
	assert.InDelta(0.5, l.DeltaH, 1e-9)
	assert.InDelta(1.0, l.LengthKm, 1e-9)
	// sigma = lweight(mm/km) * lengthKm, converted to meters
	assert.InDelta(0.002, obs.StdDev, 1e-6)
}

func TestLevRecordSigmaScalesLinearlyWithLength(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
.LWEIGHT 2.0
C A 0 0 *
C B 0 0
L A B 0.5 4.0
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()

	obs := pn.Observations[0]
	l := obs.asLev()
	assert.InDelta(4.0, l.LengthKm, 1e-9)
	// linear in length: 2.0mm/km * 4km = 8mm = 0.008m (sqrt(4)=2 would instead give 0.004m)
	assert.InDelta(0.008, obs.StdDev, 1e-6)
}
