package token

import (
	"testing"

	"github.com/james-see/scoregrid/pkg/rational"
)

func TestStringForms(t *testing.T) {
	c4 := Pitch{Step: 'C', Octave: 4}
	tests := []struct {
		name string
		tok  Token
		want string
	}{
		{"data null", DataNull, "."},
		{"bar null", BarNull, "="},
		{"interp null", InterpNull, "*"},
		{"treble clef", Clef{Sign: 'G', Line: 2}, "*clefG2"},
		{"tenor clef", Clef{Sign: 'G', Line: 2, Octave: -1}, "*clefGv2"},
		{"bass clef", Clef{Sign: 'F', Line: 4}, "*clefF4"},
		{"percussion", Clef{Sign: 'X'}, "*clefX"},
		{"two sharps", KeySig{Fifths: 2}, "*k[f#c#]"},
		{"three flats", KeySig{Fifths: -3}, "*k[b-e-a-]"},
		{"c major", KeySig{}, "*k[]"},
		{"meter", TimeSig{Beats: 6, BeatType: 8}, "*M6/8"},
		{"tempo", Tempo{BPM: 96}, "*MM96"},
		{"split", Manip{Op: Split}, "*^"},
		{"three-way split", Manip{Op: Split, N: 3}, "*^3"},
		{"merge", Manip{Op: Merge}, "*v"},
		{"whole note", Note{Duration: rational.One, Pitches: []Pitch{c4}}, "1c"},
		{"dotted quarter", Note{Duration: rational.New(3, 8), Pitches: []Pitch{{Step: 'F', Alter: 1, Octave: 5}}}, "4.ff#"},
		{"low flat", Note{Duration: rational.New(1, 8), Pitches: []Pitch{{Step: 'B', Alter: -1, Octave: 2}}}, "8BB-"},
		{"chord", Note{Duration: rational.New(1, 4), Pitches: []Pitch{c4, {Step: 'E', Octave: 4}}}, "4c 4e"},
		{"tie start with slur", Note{Duration: rational.New(1, 2), Pitches: []Pitch{c4}, Tie: TieStart, SlurStart: 1}, "([2c"},
		{"tie end", Note{Duration: rational.New(1, 2), Pitches: []Pitch{c4}, Tie: TieStop, SlurStop: 1}, "2c])"},
		{"grace", Note{Duration: rational.New(1, 8), Pitches: []Pitch{c4}, Grace: true}, "8cq"},
		{"invisible rest", Note{Duration: rational.New(3, 4), Invisible: true}, "2.ryy"},
		{"rest", Rest(rational.New(1, 4)), "4r"},
		{"barline", Barline{Number: 3}, "=3"},
		{"final", Barline{Style: BarFinal, Number: 9}, "=="},
		{"repeat", Barline{Style: BarRepeatBackward, Number: 4}, "=4:|!"},
		{"exclusive", Kern, "**kern"},
		{"syllable begin", Syllable{Text: "lo", Syllabic: Begin}, "lo-"},
		{"syllable middle", Syllable{Text: "re", Syllabic: Middle}, "-re-"},
		{"syllable end", Syllable{Text: "m", Syllabic: End}, "-m"},
		{"escaped text", Text("*star"), `\*star`},
		{"harmony", Harmony{Root: 'C', Alter: 1, Kind: "minor  seventh"}, "C# minor seventh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	if !DataNull.IsNull() || !InterpNull.IsNull() {
		t.Error("Null.IsNull() = false")
	}
	if (Clef{Sign: 'G', Line: 2}).IsNull() {
		t.Error("Clef.IsNull() = true")
	}
	if !Text("").IsNull() || Text("p").IsNull() {
		t.Error("Text.IsNull() mismatch")
	}
}

func TestManipOutputs(t *testing.T) {
	tests := []struct {
		m    Manip
		want int
	}{
		{Manip{Op: Split}, 2},
		{Manip{Op: Split, N: 4}, 4},
		{Manip{Op: Merge}, 1},
	}
	for _, tt := range tests {
		if got := tt.m.Outputs(); got != tt.want {
			t.Errorf("%v.Outputs() = %d, want %d", tt.m, got, tt.want)
		}
	}
}
