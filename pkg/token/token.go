// Package token defines the typed symbols stored in grid voice slots.
//
// Tokens carry musical meaning as fields. Their String method renders the
// Humdrum form and is only called when a grid is linearized.
package token

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Token is one cell of output.
type Token interface {
	String() string
	// IsNull reports whether the token is a placeholder.
	IsNull() bool
}

// Category selects which placeholder fills an empty cell on a line.
type Category int

const (
	CategoryData Category = iota
	CategoryMeasure
	CategoryInterpretation
	CategoryComment
)

// Null is a placeholder token of a category.
type Null Category

// Placeholder values for each category.
const (
	DataNull    = Null(CategoryData)
	BarNull     = Null(CategoryMeasure)
	InterpNull  = Null(CategoryInterpretation)
	CommentNull = Null(CategoryComment)
)

func (n Null) String() string {
	switch Category(n) {
	case CategoryMeasure:
		return "="
	case CategoryInterpretation:
		return "*"
	case CategoryComment:
		return "!"
	}
	return "."
}

func (Null) IsNull() bool { return true }

// Interp is a free-form interpretation such as "*staff1" or "*-".
type Interp string

// Terminator closes a spine.
const Terminator = Interp("*-")

func (i Interp) String() string { return string(i) }
func (Interp) IsNull() bool     { return false }

// Exclusive is an exclusive interpretation such as "**kern".
type Exclusive string

// Exclusive interpretations emitted by the grid.
const (
	Kern  = Exclusive("kern")
	Recip = Exclusive("recip")
	Lyric = Exclusive("text")
	Harm  = Exclusive("mxhm")
	Dynam = Exclusive("dynam")
)

func (e Exclusive) String() string { return "**" + string(e) }
func (Exclusive) IsNull() bool     { return false }

// Text is a literal data token used by side channels.
type Text string

func (t Text) String() string { return escapeData(string(t)) }
func (t Text) IsNull() bool   { return t == "" }

// Clef is a clef change. Sign is one of G, F, C, X (percussion); Octave
// counts octave transposition (-1 for a tenor G clef).
type Clef struct {
	Sign   byte
	Line   int
	Octave int
}

func (c Clef) String() string {
	var b strings.Builder
	b.WriteString("*clef")
	b.WriteByte(c.Sign)
	mark := "^"
	if c.Octave < 0 {
		mark = "v"
	}
	for i := 0; i < absInt(c.Octave); i++ {
		b.WriteString(mark)
	}
	if c.Sign != 'X' && c.Line > 0 {
		b.WriteString(strconv.Itoa(c.Line))
	}
	return b.String()
}

func (Clef) IsNull() bool { return false }

// KeySig is a key signature given as a position on the circle of fifths:
// positive for sharps, negative for flats.
type KeySig struct {
	Fifths int
}

func (k KeySig) String() string {
	const sharps = "fcgdaeb"
	const flats = "beadgcf"
	var b strings.Builder
	b.WriteString("*k[")
	switch {
	case k.Fifths > 0:
		for i := 0; i < k.Fifths && i < 7; i++ {
			b.WriteByte(sharps[i])
			b.WriteByte('#')
		}
	case k.Fifths < 0:
		for i := 0; i < -k.Fifths && i < 7; i++ {
			b.WriteByte(flats[i])
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (KeySig) IsNull() bool { return false }

// TimeSig is a meter change.
type TimeSig struct {
	Beats    int
	BeatType int
}

func (t TimeSig) String() string { return fmt.Sprintf("*M%d/%d", t.Beats, t.BeatType) }
func (TimeSig) IsNull() bool     { return false }

// Tempo is a metronome marking in quarter notes per minute.
type Tempo struct {
	BPM float64
}

func (t Tempo) String() string {
	if t.BPM == math.Trunc(t.BPM) {
		return "*MM" + strconv.Itoa(int(t.BPM))
	}
	return "*MM" + strconv.FormatFloat(t.BPM, 'f', -1, 64)
}

func (Tempo) IsNull() bool { return false }

// ManipOp is the kind of a spine manipulator.
type ManipOp int

const (
	Split ManipOp = iota
	Merge
)

// Manip announces a change in the number of subspines. N is the number
// of spines a split produces and is only meaningful for Split.
type Manip struct {
	Op ManipOp
	N  int
}

func (m Manip) String() string {
	if m.Op == Merge {
		return "*v"
	}
	if m.N > 2 {
		return "*^" + strconv.Itoa(m.N)
	}
	return "*^"
}

func (Manip) IsNull() bool { return false }

// Outputs is how many spines the manipulator leaves behind for one input
// spine. Merges are counted per group by the caller.
func (m Manip) Outputs() int {
	if m.Op == Merge {
		return 1
	}
	if m.N > 2 {
		return m.N
	}
	return 2
}

func escapeData(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.HasPrefix(s, "!") || strings.HasPrefix(s, "*") {
		return `\` + s
	}
	return s
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
