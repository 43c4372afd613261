package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fourSidedNetwork adds a fourth station D and two more legs on top of the
// triangle fixture, giving redundancy (dof=1: 5 observations, 4 unknowns) for a
// chi-square test and station covariance to be meaningful.
const fourSidedNetwork = `
.UNITS M
.2D
C A 0 0 *
C B 1000 0 *
C C 500 800
C D 1000 800
D A C 943.3981
D B C 943.3981
D B D 800.0000
D C D 500.0000
A C A B 295.592124
.END
`

func TestRunStatisticsPopulatesChiSquare(t *testing.T) {
	assert := assert.New(t)
	dec := NewDecoder(strings.NewReader(fourSidedNetwork))
	pn := dec.Run()

	result := Adjust(pn, DefaultAdjustOptions())
	assert.True(result.Success)

	stats := RunStatistics(result)
	assert.NotNil(stats.ChiSquare)
	assert.GreaterOrEqual(stats.ChiSquare.Dof, 1)
}

func TestRunStatisticsPopulatesStationCovariance(t *testing.T) {
	assert := assert.New(t)
	dec := NewDecoder(strings.NewReader(fourSidedNetwork))
	pn := dec.Run()

	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)
	assert.NotEmpty(stats.TypeSummaries)

	c, _ := pn.Stations.Get("C")
	assert.GreaterOrEqual(c.SE, 0.0)
	assert.GreaterOrEqual(c.SN, 0.0)
}

func TestRelativePrecisionIsSymmetricUnorderedPair(t *testing.T) {
	assert := assert.New(t)
	dec := NewDecoder(strings.NewReader(fourSidedNetwork))
	pn := dec.Run()

	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)

	seen := map[[2]string]bool{}
	for _, rp := range stats.RelativePrecision {
		key := [2]string{rp.From, rp.To}
		rev := [2]string{rp.To, rp.From}
		assert.False(seen[rev], "pair %v should only be reported once", key)
		seen[key] = true
	}
}

func TestTypeSummariesSkipSideshots(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
A C A B 295.592124
SS A C 943.3981 AZ=212.001938
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()
	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)

	total := 0
	for _, s := range stats.TypeSummaries {
		total += s.Count
	}
	assert.Equal(3, total, "the sideshot distance must not appear in any type summary")
}

func TestSideshotResultsResolveExplicitAzimuth(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
A C A B 295.592124
SS A X 943.3981 AZ=212.001938
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()
	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)

	assert.Len(stats.Sideshots, 1)
	ss := stats.Sideshots[0]
	assert.Equal("X", ss.To)
	assert.Empty(ss.Note)
}

func TestSideshotResultsNoteWhenNoAzimuth(t *testing.T) {
	assert := assert.New(t)
	const text = `
.UNITS M
C A 0 0 *
C B 1000 0 *
C C 500 800
D A C 943.3981
D B C 943.3981
A C A B 295.592124
SS A X 943.3981
.END
`
	dec := NewDecoder(strings.NewReader(text))
	pn := dec.Run()
	result := Adjust(pn, DefaultAdjustOptions())
	stats := RunStatistics(result)

	assert.Len(stats.Sideshots, 1)
	assert.Contains(stats.Sideshots[0].Note, "no azimuth available")
}
