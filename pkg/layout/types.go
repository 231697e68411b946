// Package layout positions grid content on systems: horizontal alignment
// columns with duration-proportional spacing, justification to a target
// width, system breaking and vertical staff stacking.
package layout

import (
	"github.com/pkg/errors"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
)

// AlignmentType orders alignments sharing a time. Lower values come first.
type AlignmentType int

const (
	MeasureStart AlignmentType = iota
	ScoreDefClef
	ScoreDefKeySig
	ScoreDefMeterSig
	LeftBarline
	Clef
	KeySig
	MeterSig
	GraceNote
	Default
	RightBarline
	MeasureEnd
)

var alignmentNames = [...]string{
	MeasureStart:     "measure-start",
	ScoreDefClef:     "scoredef-clef",
	ScoreDefKeySig:   "scoredef-keysig",
	ScoreDefMeterSig: "scoredef-metersig",
	LeftBarline:      "left-barline",
	Clef:             "clef",
	KeySig:           "keysig",
	MeterSig:         "metersig",
	GraceNote:        "grace-note",
	Default:          "default",
	RightBarline:     "right-barline",
	MeasureEnd:       "measure-end",
}

func (t AlignmentType) String() string {
	if t < 0 || int(t) >= len(alignmentNames) {
		return "unknown"
	}
	return alignmentNames[t]
}

// MarshalText encodes the type by name.
func (t AlignmentType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a name written by MarshalText.
func (t *AlignmentType) UnmarshalText(b []byte) error {
	for i, name := range alignmentNames {
		if name == string(b) {
			*t = AlignmentType(i)
			return nil
		}
	}
	return errors.Wrapf(diag.ErrInvalidInput, "alignment type %q", b)
}

// IsBarline reports types whose neighbouring gaps may be held by justification.
func (t AlignmentType) IsBarline() bool {
	return t == LeftBarline || t == RightBarline
}

// Object is one graphic anchored at an alignment. SpanTo is the last staff
// of a cross-staff object, or -1.
type Object struct {
	Staff    int
	SpanTo   int
	Width    float64
	Duration rational.Rat
}

// IsCrossStaff reports objects spanning more than one staff.
func (o Object) IsCrossStaff() bool { return o.SpanTo > o.Staff }

// Alignment is the column of every object sharing a time and type.
type Alignment struct {
	Time     rational.Rat  `json:"time"`
	Type     AlignmentType `json:"type"`
	X        float64       `json:"x"`
	MinWidth float64       `json:"min_width"`

	objects []Object
}

// Add anchors an object at the alignment.
func (a *Alignment) Add(o Object) { a.objects = append(a.objects, o) }

// Objects returns the anchored objects.
func (a *Alignment) Objects() []Object { return a.objects }

// MeasureContent is the input of one measure: its alignments in order and
// the vertical overflow of every staff.
type MeasureContent struct {
	Index     int
	Start     rational.Rat
	Columns   []*Alignment
	Above     []float64
	Below     []float64
	staffSize int
}

// NewMeasureContent returns empty content for a measure over staves staves.
func NewMeasureContent(index, staves int, start rational.Rat) *MeasureContent {
	return &MeasureContent{
		Index:     index,
		Start:     start,
		Above:     make([]float64, staves),
		Below:     make([]float64, staves),
		staffSize: staves,
	}
}

// Column returns the alignment for (time, type), creating it in order.
func (c *MeasureContent) Column(t rational.Rat, typ AlignmentType) *Alignment {
	i := 0
	for i < len(c.Columns) {
		col := c.Columns[i]
		cmp := col.Time.Cmp(t)
		if cmp == 0 && col.Type == typ {
			return col
		}
		if cmp > 0 || (cmp == 0 && col.Type > typ) {
			break
		}
		i++
	}
	a := &Alignment{Time: t, Type: typ}
	c.Columns = append(c.Columns, nil)
	copy(c.Columns[i+1:], c.Columns[i:])
	c.Columns[i] = a
	return a
}

// Raise records vertical overflow of a staff.
func (c *MeasureContent) Raise(staff int, above, below float64) {
	if staff < 0 || staff >= len(c.Above) {
		return
	}
	c.Above[staff] = max(c.Above[staff], above)
	c.Below[staff] = max(c.Below[staff], below)
}

// MeasureAligner is a laid out measure.
type MeasureAligner struct {
	Index    int          `json:"index"`
	X        float64      `json:"x"`
	Width    float64      `json:"width"`
	Columns  []*Alignment `json:"columns"`
	minWidth float64
	content  *MeasureContent
}

// StaffAlignment is the vertical placement of one staff in a system.
type StaffAlignment struct {
	Index         int     `json:"index"`
	Y             float64 `json:"y"`
	OverflowAbove float64 `json:"overflow_above"`
	OverflowBelow float64 `json:"overflow_below"`
}

// System is one line of measures.
type System struct {
	Y        float64           `json:"y"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
	Ratio    float64           `json:"ratio"`
	Staves   []StaffAlignment  `json:"staves"`
	Measures []*MeasureAligner `json:"measures"`
}

// MinWidth is the unjustified width of the system.
func (s *System) MinWidth() float64 {
	w := 0.0
	for _, m := range s.Measures {
		w += m.minWidth
	}
	return w
}

// Layout is the positioned score.
type Layout struct {
	Systems []*System `json:"systems"`
}
