package network

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsedNetwork is everything the Parser produces: the instrument library,
// the station map, the observation list, parse-state options, and any
// direction sets that were opened during the parse (spec.md S2's data-flow
// contract: "input text -> Parser -> {Stations, Observations, ParseState,
// InstrumentLibrary}").
type ParsedNetwork struct {
	Instruments map[string]*Instrument
	Stations    *StationMap
	Observations []*Observation
	DirectionSets []*DirectionSet
	TraverseSessions []*TraverseSession
	State       *ParseState
	Logs        []string
}

// TraverseSession groups the angle/distance/vertical observations emitted
// by one TB..TE chain, for the traverse closure diagnostic.
type TraverseSession struct {
	ID    string
	Occupies []string // station visited at each leg, in order, starting with the TB occupy
	Legs  []TraverseLeg
}

// TraverseLeg references the observations emitted for one T/TE record.
type TraverseLeg struct {
	AngleObsID int
	DistObsID  int // -1 if none
	VertObsID  int // -1 if none
	From, To   string
}

// Decoder reads and decodes a network description from an input stream,
// mirroring the bufio.Scanner-driven record decoders this engine's parser
// technique is grounded on: a line counter, a tokenized current line, and a
// switch on the upper-cased record code.
type Decoder struct {
	sc      *bufio.Scanner
	lineNum int
	raw     string // current line, comments stripped, untrimmed otherwise

	state       *ParseState
	instruments map[string]*Instrument
	stations    *StationMap

	observations []*Observation
	nextObsID    int

	dirSets        []*DirectionSet
	dirSetsByID    map[string]*DirectionSet
	openDirSet     *DirectionSet
	dirSetCounters map[string]int // per-occupy counter for auto setId generation

	trav            *traverseState
	traverseSessions []*TraverseSession
	traverseCounter int

	ended bool
	logs  []string
}

type traverseState struct {
	session   *TraverseSession
	occupy    string
	backsight string
}

// NewDecoder returns a Decoder reading from r, with a fresh default
// ParseState.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		sc:             bufio.NewScanner(r),
		state:          NewParseState(),
		instruments:    make(map[string]*Instrument),
		stations:       NewStationMap(),
		dirSetsByID:    make(map[string]*DirectionSet),
		dirSetCounters: make(map[string]int),
	}
}

// Run reads the entire stream and returns the parsed network. Parser errors
// never propagate as a Go error (spec.md S7): malformed records are logged
// and skipped, and parsing continues to EOF or an .END directive.
func (dec *Decoder) Run() *ParsedNetwork {
	for !dec.ended && dec.readLine() {
		dec.dispatch(dec.raw)
	}
	dec.flushDirectionSet("end of input")
	dec.flushTraverse()

	return &ParsedNetwork{
		Instruments:      dec.instruments,
		Stations:         dec.stations,
		Observations:     dec.observations,
		DirectionSets:    dec.dirSets,
		TraverseSessions: dec.traverseSessions,
		State:            dec.state,
		Logs:             dec.logs,
	}
}

func (dec *Decoder) readLine() bool {
	if !dec.sc.Scan() {
		return false
	}
	dec.lineNum++
	dec.raw = stripComment(dec.sc.Text())
	return true
}

// stripComment removes trailing "# ..." comments and whole-line "'..."
// comments.
func stripComment(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "'") {
		return ""
	}
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func (dec *Decoder) log(format string, args ...interface{}) {
	msg := "line " + strconv.Itoa(dec.lineNum) + ": " + fmt.Sprintf(format, args...)
	dec.logs = append(dec.logs, msg)
}

func (dec *Decoder) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	code := fields[0]
	rest := fields[1:]

	if strings.HasPrefix(code, ".") {
		dec.handleDirective(strings.ToUpper(code), rest)
		return
	}

	switch strings.ToUpper(code) {
	case "I":
		dec.handleInstrument(rest)
	case "C":
		dec.handleCoord(rest, false)
	case "CH":
		dec.handleCoord(rest, true)
	case "P":
		dec.handleLatLon(rest, false)
	case "PH":
		dec.handleLatLon(rest, true)
	case "EH":
		dec.handleCoord(rest, true)
	case "E":
		dec.handleElevation(rest)
	case "D":
		dec.handleDist(rest)
	case "A":
		dec.handleAngleRecord(rest)
	case "V":
		dec.handleVertical(rest)
	case "DV":
		dec.handleDV(rest)
	case "BM":
		dec.handleBM(rest)
	case "M":
		dec.handleM(rest)
	case "B":
		dec.handleBearing(rest)
	case "TB":
		dec.handleTB(rest)
	case "T":
		dec.handleTraverseLeg(rest, false)
	case "TE":
		dec.handleTraverseLeg(rest, true)
	case "DB":
		dec.handleDB(rest)
	case "DN":
		dec.handleDN(rest, false)
	case "DM":
		dec.handleDN(rest, true)
	case "DE":
		dec.flushDirectionSet("DE")
	case "SS":
		dec.handleSideshot(rest)
	case "G":
		dec.handleGps(rest)
	case "L":
		dec.handleLev(rest)
	default:
		dec.log("unknown record code %q, skipped", code)
	}
}

func (dec *Decoder) nextID() int {
	id := dec.nextObsID
	dec.nextObsID++
	return id
}

func (dec *Decoder) addObservation(o *Observation) {
	o.ID = dec.nextID()
	o.SourceLine = dec.lineNum
	dec.observations = append(dec.observations, o)
}

// currentInstrument returns the instrument for the parse state's active
// selection, or nil if none is selected/known.
func (dec *Decoder) currentInstrument() *Instrument {
	if dec.state.CurrentInstrument == "" {
		return nil
	}
	return dec.instruments[dec.state.CurrentInstrument]
}

// instrumentOrCurrent resolves an optional leading instrument code token: if
// present and known, it both selects and returns that instrument; otherwise
// falls back to the currently selected instrument.
func (dec *Decoder) instrumentOrCurrent(code string) (*Instrument, string) {
	if code == "" {
		return dec.currentInstrument(), dec.state.CurrentInstrument
	}
	if inst, ok := dec.instruments[strings.ToUpper(code)]; ok {
		dec.state.CurrentInstrument = inst.Code
		return inst, inst.Code
	}
	return dec.currentInstrument(), dec.state.CurrentInstrument
}
