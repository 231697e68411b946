package token

import (
	"strconv"
	"strings"

	"github.com/james-see/scoregrid/pkg/rational"
)

// Pitch is a spelled pitch. Octave 4 contains middle C.
type Pitch struct {
	Step        byte // 'A'..'G'
	Alter       int  // semitones, +1 sharp, -1 flat
	Octave      int
	ShowNatural bool
}

// Kern renders the pitch name: c for C4, cc for C5, C for C3, CC for C2.
func (p Pitch) Kern() string {
	letter := strings.ToLower(string(p.Step))
	var name string
	if p.Octave >= 4 {
		name = strings.Repeat(letter, p.Octave-3)
	} else {
		name = strings.Repeat(strings.ToUpper(letter), 4-p.Octave)
	}
	switch {
	case p.Alter > 0:
		name += strings.Repeat("#", p.Alter)
	case p.Alter < 0:
		name += strings.Repeat("-", -p.Alter)
	case p.ShowNatural:
		name += "n"
	}
	return name
}

// Tie marks a note's tie role.
type Tie int

const (
	TieNone Tie = iota
	TieStart
	TieContinue
	TieStop
)

// Note is a note, chord or rest. A Note without pitches is a rest.
type Note struct {
	Duration  rational.Rat
	Pitches   []Pitch
	Grace     bool
	Invisible bool
	Tie       Tie
	SlurStart int
	SlurStop  int
	Fermata   bool
	Staccato  bool
	Accent    bool
}

// Rest returns a rest of duration d.
func Rest(d rational.Rat) Note { return Note{Duration: d} }

// IsRest reports whether the note has no pitches.
func (n Note) IsRest() bool { return len(n.Pitches) == 0 }

func (Note) IsNull() bool { return false }

func (n Note) String() string {
	recip := n.Duration.Recip()
	if recip == "g" {
		recip = ""
	}
	if n.IsRest() {
		s := recip + "r"
		if n.Fermata {
			s += ";"
		}
		if n.Invisible {
			s += "yy"
		}
		return s
	}

	parts := make([]string, len(n.Pitches))
	for i, p := range n.Pitches {
		var b strings.Builder
		if i == 0 {
			b.WriteString(strings.Repeat("(", n.SlurStart))
		}
		if n.Tie == TieStart {
			b.WriteByte('[')
		}
		b.WriteString(recip)
		b.WriteString(p.Kern())
		if n.Grace {
			b.WriteByte('q')
		}
		if n.Fermata {
			b.WriteByte(';')
		}
		if n.Staccato {
			b.WriteByte('\'')
		}
		if n.Accent {
			b.WriteByte('^')
		}
		switch n.Tie {
		case TieContinue:
			b.WriteByte('_')
		case TieStop:
			b.WriteByte(']')
		}
		if n.Invisible {
			b.WriteString("yy")
		}
		if i == 0 {
			b.WriteString(strings.Repeat(")", n.SlurStop))
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}

// Syllabic is the position of a lyric syllable within its word.
type Syllabic int

const (
	Single Syllabic = iota
	Begin
	Middle
	End
)

// Syllable is one lyric syllable of a verse.
type Syllable struct {
	Text     string
	Syllabic Syllabic
}

func (s Syllable) String() string {
	text := escapeData(s.Text)
	switch s.Syllabic {
	case Begin:
		return text + "-"
	case Middle:
		return "-" + text + "-"
	case End:
		return "-" + text
	}
	return text
}

func (s Syllable) IsNull() bool { return strings.TrimSpace(s.Text) == "" }

// Harmony is a chord symbol such as "C# minor".
type Harmony struct {
	Root  byte
	Alter int
	Kind  string
	Bass  byte
}

func (h Harmony) String() string {
	var b strings.Builder
	b.WriteByte(h.Root)
	switch {
	case h.Alter > 0:
		b.WriteString(strings.Repeat("#", h.Alter))
	case h.Alter < 0:
		b.WriteString(strings.Repeat("-", -h.Alter))
	}
	if h.Kind != "" {
		b.WriteByte(' ')
		b.WriteString(strings.Join(strings.Fields(h.Kind), " "))
	}
	if h.Bass != 0 {
		b.WriteByte('/')
		b.WriteByte(h.Bass)
	}
	return b.String()
}

func (h Harmony) IsNull() bool { return h.Root == 0 }

// BarStyle is the visual style of a barline.
type BarStyle int

const (
	BarPlain BarStyle = iota
	BarDouble
	BarFinal
	BarRepeatBackward
	BarRepeatForward
	BarRepeatBoth
)

var barSuffix = map[BarStyle]string{
	BarPlain:          "",
	BarDouble:         "||",
	BarFinal:          "=",
	BarRepeatBackward: ":|!",
	BarRepeatForward:  "!|:",
	BarRepeatBoth:     ":|!|:",
}

// String returns the style name.
func (s BarStyle) String() string {
	switch s {
	case BarDouble:
		return "double"
	case BarFinal:
		return "final"
	case BarRepeatBackward:
		return "repeat-backward"
	case BarRepeatForward:
		return "repeat-forward"
	case BarRepeatBoth:
		return "repeat-both"
	}
	return "plain"
}

// Barline is a measure line. Number 0 omits the bar number.
type Barline struct {
	Style  BarStyle
	Number int
}

func (b Barline) String() string {
	s := "="
	if b.Number > 0 && b.Style != BarFinal {
		s += strconv.Itoa(b.Number)
	}
	return s + barSuffix[b.Style]
}

func (Barline) IsNull() bool { return false }
