// Package network implements the geodetic network adjustment engine: the
// text parser, the Gauss-Newton solver, and the post-solution statistics
// and diagnostics pass.
package network

import "fmt"

// Instrument carries the measurement precision of a total station/GNSS/level
// setup, identified by a short code. Immutable after parsing; referenced by
// observations by code.
type Instrument struct {
	Code string `validate:"required"`
	Desc string

	EdmConst       float64 // EDM constant, m
	EdmPPM         float64 // EDM ppm
	HzPrecisionSec float64 `validate:"gte=0"` // horizontal angular precision, arcsec
	VaPrecisionSec float64 `validate:"gte=0"` // vertical angular precision, arcsec
	InstCentering  float64 `validate:"gte=0"` // instrument centering uncertainty, m
	TgtCentering   float64 `validate:"gte=0"` // target centering uncertainty, m
	GpsStdXY       float64 `validate:"gte=0"` // GPS horizontal sigma, m
	LevStdMmPerKm  float64 `validate:"gte=0"` // leveling sigma, mm/km

	// Legacy tracks whether this instrument was declared via the 5-field
	// legacy I record, whose field order is a documented heuristic.
	Legacy bool
}

// defaultDistSigma is used when no instrument is available to derive one.
const defaultDistSigma = 0.005

// defaultAngleSigma is used when no instrument is available to derive one.
const defaultAngleSigma = 5.0 // arcsec

// Constraint is an optional weighted control constraint tying a station
// component to a target value with a standard deviation.
type Constraint struct {
	Value float64
	Sigma float64
}

// Station is a network point identified by a string id. Coordinates are
// planar (X=East, Y=North) plus orthometric height H. Fixity is tracked
// independently per component. Covariance-derived fields (SE, SN, SH, the
// error ellipse) are populated by the statistics pass, not the parser.
type Station struct {
	ID string `validate:"required"`

	X, Y, H float64

	FixedX, FixedY, FixedH bool

	ConstraintX, ConstraintY, ConstraintH *Constraint

	// Parameter indices assigned by the adjuster for the unknown
	// components of this station; -1 if the component is fixed (or, in
	// 2D mode, for H always).
	IndexX, IndexY, IndexH int

	// Populated by the statistics pass.
	SE, SN, SH               float64
	SemiMajor, SemiMinor     float64
	Theta                    float64 // ellipse orientation, degrees
}

// Fixed reports whether every relevant component of the station is fixed,
// per the invariant fixed == (fixedX && fixedY && (2D || fixedH)).
func (s *Station) Fixed(coordMode CoordMode) bool {
	if coordMode == CoordMode2D {
		return s.FixedX && s.FixedY
	}
	return s.FixedX && s.FixedY && s.FixedH
}

// StationMap is an insertion-ordered collection of stations: insertion
// order drives parameter indexing (spec.md S5's ordering guarantee), so a
// plain map is not sufficient.
type StationMap struct {
	order []string
	byID  map[string]*Station
}

// NewStationMap returns an empty, insertion-ordered station collection.
func NewStationMap() *StationMap {
	return &StationMap{byID: make(map[string]*Station)}
}

// Get returns the station with the given id, if any.
func (m *StationMap) Get(id string) (*Station, bool) {
	s, ok := m.byID[id]
	return s, ok
}

// GetOrCreate returns the station with the given id, creating it (with zero
// coordinates, unfixed) at the end of the insertion order if it does not
// already exist.
func (m *StationMap) GetOrCreate(id string) *Station {
	if s, ok := m.byID[id]; ok {
		return s
	}
	s := &Station{ID: id, IndexX: -1, IndexY: -1, IndexH: -1}
	m.byID[id] = s
	m.order = append(m.order, id)
	return s
}

// IDs returns station ids in insertion order.
func (m *StationMap) IDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of stations.
func (m *StationMap) Len() int { return len(m.order) }

// String implements fmt.Stringer for debugging/log messages.
func (s *Station) String() string {
	return fmt.Sprintf("Station{%s E=%.4f N=%.4f H=%.4f}", s.ID, s.X, s.Y, s.H)
}

// CoordMode selects whether the network carries height unknowns.
type CoordMode int

const (
	CoordMode2D CoordMode = iota
	CoordMode3D
)

// CoordOrder selects the token order of coordinate pairs in C/P records.
type CoordOrder int

const (
	OrderEN CoordOrder = iota
	OrderNE
)

// DeltaMode selects whether a vertical record encodes a zenith angle or a
// direct height difference.
type DeltaMode int

const (
	DeltaSlope DeltaMode = iota // zenith angle, reduced via slope distance
	DeltaHoriz                  // direct delta-height
)

// MapMode controls whether horizontal distances are scaled for a map
// projection.
type MapMode int

const (
	MapOff MapMode = iota
	MapOn
	MapAngleCalc
)

// VerticalReduction controls whether zenith angles are corrected for
// curvature and refraction.
type VerticalReduction int

const (
	VerticalReductionNone VerticalReduction = iota
	VerticalReductionCurvRef
)

// AngleMode controls how an A-record is classified.
type AngleMode int

const (
	AngleModeAuto AngleMode = iota
	AngleModeAngle
	AngleModeDir
)

// EdmMode controls how EDM constant and ppm combine into a default sigma.
type EdmMode int

const (
	EdmAdditive EdmMode = iota
	EdmPropagated
)

// EarthRadius is the mean earth radius (m) used for the equirectangular
// projection of lat/lon control points and for curvature/refraction.
const EarthRadius = 6378137.0

// ParseState holds every option a `.`-directive can change, plus the
// running context (current instrument, traverse/direction-set machinery,
// projection origin) the parser threads through each record handler. It
// is a single owned value - no globals (design note S9).
type ParseState struct {
	UnitsFeet   bool // distances in the input are feet (.UNITS ft|us)
	CoordMode   CoordMode
	Order       CoordOrder
	DeltaMode   DeltaMode
	MapMode     MapMode
	MapScale    float64
	LevWeight   float64 // default leveling sigma, mm/km, from .LWEIGHT
	Normalize   bool
	WestNegLon  bool // true: west longitudes are negative (default)
	EdmMode     EdmMode
	ApplyCentering         bool
	AddCenteringToExplicit bool
	VerticalReduction VerticalReduction
	RefractionK       float64
	AngleMode         AngleMode

	CurrentInstrument string

	OriginLat, OriginLon float64
	OriginSet            bool
}

// NewParseState returns a ParseState with the documented defaults.
func NewParseState() *ParseState {
	return &ParseState{
		MapScale:   1.0,
		LevWeight:  2.0,
		Normalize:  true,
		WestNegLon: true,
		RefractionK: 0.13,
	}
}

// unitScale returns the factor to multiply a raw input distance token by to
// get meters.
func (ps *ParseState) unitScale() float64 {
	if ps.UnitsFeet {
		return 0.3048
	}
	return 1.0
}
