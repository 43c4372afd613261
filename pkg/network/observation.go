package network

// Kind tags the variant an Observation carries. Assembly (rows.go) and
// statistics.go switch exhaustively on Kind rather than using reflection
// (design note S9).
type Kind int

const (
	KindDist Kind = iota
	KindAngle
	KindDirection
	KindDir // azimuth
	KindBearing
	KindZenith
	KindGps
	KindLev
)

func (k Kind) String() string {
	switch k {
	case KindDist:
		return "Dist"
	case KindAngle:
		return "Angle"
	case KindDirection:
		return "Direction"
	case KindDir:
		return "Dir"
	case KindBearing:
		return "Bearing"
	case KindZenith:
		return "Zenith"
	case KindGps:
		return "Gps"
	case KindLev:
		return "Lev"
	default:
		return "Unknown"
	}
}

// SigmaSource records how an observation's standard deviation was
// resolved.
type SigmaSource int

const (
	SigmaDefault SigmaSource = iota
	SigmaExplicit
	SigmaFixed // σ≈10^-9, from a "!" token
	SigmaFloat // σ≈10^9, from a "*" token
)

const (
	sigmaFixedValue = 1e-9
	sigmaFloatValue = 1e9
)

// DistMode selects whether a distance observation is slope or horizontal.
type DistMode int

const (
	DistSlope DistMode = iota
	DistHoriz
)

// DistDetail is the payload for KindDist.
type DistDetail struct {
	From, To string
	Value    float64 // observed distance, m
	Mode     DistMode
	HI, HT   *float64 // instrument/target height, m
}

// AngleDetail is the payload for KindAngle.
type AngleDetail struct {
	At, From, To string
	Value        float64 // radians, [0,2pi)
}

// DirectionDetail is the payload for KindDirection: a reduced direction
// observation belonging to a direction set.
type DirectionDetail struct {
	SetID string
	At    string
	To    string
	Value float64 // reduced circle reading, radians, [0,2pi)

	RawCount      int
	Face1Count    int
	Face2Count    int
	RawSpread     float64 // radians, max-min of rewrapped raw shots
	FacePairDelta float64 // radians, |face1 mean - face2 mean| when paired
	ReducedSigma  float64
}

// DirDetail is the payload for KindDir (azimuth observation: an "A-record"
// classified as azimuth, parsed with Flip180 set).
type DirDetail struct {
	From, To string
	Value    float64
	Flip180  bool
}

// BearingDetail is the payload for KindBearing.
type BearingDetail struct {
	From, To string
	Value    float64
}

// ZenithDetail is the payload for KindZenith.
type ZenithDetail struct {
	From, To string
	Value    float64 // radians, [0,pi]
	HI, HT   *float64
}

// GpsDetail is the payload for KindGps.
type GpsDetail struct {
	From, To string
	DE, DN   float64
	SigmaE   float64
	SigmaN   float64
	Rho      float64 // correlation, (-0.999,0.999); 0 if uncorrelated
	HasRho   bool
}

// LevDetail is the payload for KindLev.
type LevDetail struct {
	From, To string
	DeltaH   float64
	LengthKm float64
}

// LocalTest holds the data-snooping outcome for one observation row.
type LocalTest struct {
	T    float64
	R    float64 // redundancy number for this row
	Pass bool
	MDB  float64
}

// Observation is the tagged variant over every supported observation type.
// Detail holds exactly one of *DistDetail, *AngleDetail, *DirectionDetail,
// *DirDetail, *BearingDetail, *ZenithDetail, *GpsDetail, *LevDetail, chosen
// by Kind; accessors below do the single corresponding type assertion.
type Observation struct {
	ID         int `validate:"gte=0"`
	Kind       Kind
	SourceLine int `validate:"gt=0"`
	InstCode   string

	StdDev      float64 `validate:"gt=0"`
	SigmaSource SigmaSource

	Detail interface{}

	// Populated by the adjuster/statistics shared row builder.
	Calc       float64
	Residual   float64
	StdRes     float64
	Redundancy float64
	MDB        float64
	LocalTest  *LocalTest

	// Sideshot observations are excluded from the normal equations but
	// retained for the post-adjust sideshot report.
	Sideshot     bool
	SideshotSpec *SideshotSpec

	// TraverseID is set for Angle/Dist/Zenith/Lev observations emitted by
	// a T/TE traverse leg, empty otherwise.
	TraverseID string
}

// SideshotSpec carries the extra azimuth-resolution inputs an "SS" record
// may supply.
type SideshotSpec struct {
	ExplicitAz    *float64
	SetupBacksight string
	SetupHz        *float64
	Vertical       *ZenithOrDeltaH
}

// ZenithOrDeltaH holds either a zenith angle or a direct delta-height for a
// sideshot vertical component, chosen consistently with the active
// DeltaMode at parse time.
type ZenithOrDeltaH struct {
	IsDeltaH bool
	Value    float64 // radians if zenith, meters if delta-height
}

func (o *Observation) asDist() *DistDetail           { return o.Detail.(*DistDetail) }
func (o *Observation) asAngle() *AngleDetail         { return o.Detail.(*AngleDetail) }
func (o *Observation) asDirection() *DirectionDetail { return o.Detail.(*DirectionDetail) }
func (o *Observation) asDir() *DirDetail             { return o.Detail.(*DirDetail) }
func (o *Observation) asBearing() *BearingDetail     { return o.Detail.(*BearingDetail) }
func (o *Observation) asZenith() *ZenithDetail       { return o.Detail.(*ZenithDetail) }
func (o *Observation) asGps() *GpsDetail             { return o.Detail.(*GpsDetail) }
func (o *Observation) asLev() *LevDetail             { return o.Detail.(*LevDetail) }

// stationRefs returns every station id the observation refers to, in the
// order At/From/To (Angle), At/To (Direction), or From/To (other kinds).
func (o *Observation) stationRefs() (refs []string) {
	switch o.Kind {
	case KindDist:
		d := o.asDist()
		refs = []string{d.From, d.To}
	case KindAngle:
		a := o.asAngle()
		refs = []string{a.At, a.From, a.To}
	case KindDirection:
		d := o.asDirection()
		refs = []string{d.At, d.To}
	case KindDir:
		d := o.asDir()
		refs = []string{d.From, d.To}
	case KindBearing:
		b := o.asBearing()
		refs = []string{b.From, b.To}
	case KindZenith:
		z := o.asZenith()
		refs = []string{z.From, z.To}
	case KindGps:
		g := o.asGps()
		refs = []string{g.From, g.To}
	case KindLev:
		l := o.asLev()
		refs = []string{l.From, l.To}
	}
	return refs
}

// DirectionSet owns one occupy station and its reduced directions, and
// contributes exactly one orientation unknown to the parameter vector. It
// is modeled as a small state machine {Idle, Open} driven by DB/DN/DM/DE
// and EOF (design note S9); the raw-shot accumulation fields are only
// meaningful while Open is true.
type DirectionSet struct {
	ID        string
	Occupy    string
	Backsight string
	InstCode  string
	Open      bool

	raw []rawDirShot

	// Directions holds the finalized, reduced direction Observations after
	// flushDirectionSet runs (one per distinct target).
	Directions []*Observation

	// Orientation is the current value of this set's orientation unknown
	// (radians, wrapped to [0,2pi)), updated by the adjuster each
	// iteration.
	Orientation float64
	// ParamIndex is the column in the parameter vector assigned to this
	// set's orientation, set once during parameter indexing.
	ParamIndex int
}

type rawDirShot struct {
	To          string
	Value       float64 // as read, before face-2 rewrap
	StdDev      float64
	SigmaSource SigmaSource
	SourceLine  int
	InstCode    string
}
