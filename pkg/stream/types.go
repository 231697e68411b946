// Package stream merges per-part event lists into a grid, one measure at a
// time.
package stream

import (
	"fmt"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

var (
	// ErrNoParts is returned for a score without parts.
	ErrNoParts = fmt.Errorf("score has no parts: %w", diag.ErrInvalidInput)
	// ErrMeasureCountMismatch is returned when parts disagree on how many
	// measures the score has.
	ErrMeasureCountMismatch = fmt.Errorf("measure count mismatch across parts: %w", diag.ErrInvalidInput)
)

// AllStaves addresses every staff of a part, for key and time signatures.
const AllStaves = -1

// Address locates a voice.
type Address struct {
	Part  int
	Staff int
	Voice int
}

func (a Address) String() string { return fmt.Sprintf("%d/%d/%d", a.Part, a.Staff, a.Voice) }

// Event is one timed occurrence with its attachments.
type Event struct {
	Address
	Start    rational.Rat
	Duration rational.Rat
	Payload  token.Token
	// Lyrics holds one token per verse; nil entries are allowed.
	Lyrics   []token.Token
	Harmony  token.Token
	Dynamics token.Token
}

// IsZeroDuration reports events that occupy no time: clefs, signatures,
// tempo marks and grace notes.
func (e Event) IsZeroDuration() bool { return !e.Duration.IsPositive() }

func (e Event) isGrace() bool {
	n, ok := e.Payload.(token.Note)
	return ok && n.Grace
}

// Measure is one part's events for one bar.
type Measure struct {
	Number     int
	Start      rational.Rat
	Duration   rational.Rat
	TimeSigDur rational.Rat
	Style      token.BarStyle
	Events     []Event
}

// Part is a source part: its staff count and measures.
type Part struct {
	ID       string
	Name     string
	Staves   int
	Measures []Measure
}

// Score is the whole input of a conversion.
type Score struct {
	Title    string
	Composer string
	Parts    []Part
}

// MeasureCount returns the number of measures of the first part.
func (s *Score) MeasureCount() int {
	if len(s.Parts) == 0 {
		return 0
	}
	return len(s.Parts[0].Measures)
}
