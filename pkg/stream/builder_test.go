package stream

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

var (
	quarter = rational.New(1, 4)
	half    = rational.New(1, 2)
	whole   = rational.One
)

func note(p, s, v int, step byte, start, dur rational.Rat) Event {
	return Event{
		Address:  Address{Part: p, Staff: s, Voice: v},
		Start:    start,
		Duration: dur,
		Payload:  token.Note{Duration: dur, Pitches: []token.Pitch{{Step: step, Octave: 4}}},
	}
}

func attr(p, s int, start rational.Rat, tok token.Token) Event {
	return Event{Address: Address{Part: p, Staff: s}, Start: start, Payload: tok}
}

func grace(p int, step byte, start rational.Rat) Event {
	e := note(p, 0, 0, step, start, rational.Zero)
	n := e.Payload.(token.Note)
	n.Duration = rational.New(1, 8)
	n.Grace = true
	e.Payload = n
	return e
}

func single(start, dur rational.Rat, events ...Event) Measure {
	return Measure{Start: start, Duration: dur, TimeSigDur: dur, Events: events}
}

func lines(t *testing.T, score *Score) []string {
	t.Helper()
	g, err := NewBuilder(grid.Options{}).Build(score)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var out []string
	for _, l := range g.Lines() {
		out = append(out, strings.Join(l, "\t"))
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		score *Score
		want  []string
	}{
		{
			name: "parts merged by start time",
			score: &Score{Parts: []Part{
				{Staves: 1, Measures: []Measure{single(rational.Zero, half,
					note(0, 0, 0, 'C', rational.Zero, quarter),
					note(0, 0, 0, 'D', quarter, quarter))}},
				{Staves: 1, Measures: []Measure{single(rational.Zero, half,
					note(1, 0, 0, 'E', rational.Zero, half))}},
			}},
			want: []string{"**kern\t**kern", "2e\t4c", ".\t4d", "==\t==", "*-\t*-"},
		},
		{
			name: "silent part gets an invisible rest",
			score: &Score{Parts: []Part{
				{Staves: 1, Measures: []Measure{single(rational.Zero, whole,
					note(0, 0, 0, 'C', rational.Zero, whole))}},
				{Staves: 1, Measures: []Measure{single(rational.Zero, whole)}},
			}},
			want: []string{"**kern\t**kern", "1ryy\t1c", "==\t==", "*-\t*-"},
		},
		{
			name: "attributes ordered clef key time",
			score: &Score{Parts: []Part{{Staves: 1, Measures: []Measure{single(rational.Zero, whole,
				attr(0, AllStaves, rational.Zero, token.TimeSig{Beats: 4, BeatType: 4}),
				attr(0, AllStaves, rational.Zero, token.KeySig{Fifths: 1}),
				attr(0, 0, rational.Zero, token.Clef{Sign: 'G', Line: 2}),
				note(0, 0, 0, 'C', rational.Zero, whole))}}}},
			want: []string{"**kern", "*clefG2", "*k[f#]", "*M4/4", "1c", "==", "*-"},
		},
		{
			name: "repeated clef dropped",
			score: &Score{Parts: []Part{{Staves: 1, Measures: []Measure{
				single(rational.Zero, whole,
					attr(0, 0, rational.Zero, token.Clef{Sign: 'G', Line: 2}),
					note(0, 0, 0, 'C', rational.Zero, whole)),
				single(whole, whole,
					attr(0, 0, whole, token.Clef{Sign: 'G', Line: 2}),
					note(0, 0, 0, 'D', whole, whole)),
			}}}},
			want: []string{"**kern", "*clefG2", "1c", "=2", "1d", "==", "*-"},
		},
		{
			name: "grace notes on their own lines",
			score: &Score{Parts: []Part{{Staves: 1, Measures: []Measure{single(rational.Zero, whole,
				grace(0, 'C', rational.Zero),
				grace(0, 'D', rational.Zero),
				note(0, 0, 0, 'E', rational.Zero, whole))}}}},
			want: []string{"**kern", "8cq", "8dq", "1e", "==", "*-"},
		},
		{
			name: "simultaneous notes in one voice form a chord",
			score: &Score{Parts: []Part{{Staves: 1, Measures: []Measure{single(rational.Zero, whole,
				note(0, 0, 0, 'C', rational.Zero, whole),
				note(0, 0, 0, 'E', rational.Zero, whole))}}}},
			want: []string{"**kern", "1c 1e", "==", "*-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lines(t, tt.score)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lines() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestBuildSideColumns(t *testing.T) {
	e := note(0, 0, 0, 'C', rational.Zero, whole)
	e.Lyrics = []token.Token{token.Syllable{Text: "la"}}
	e.Harmony = token.Harmony{Root: 'C'}
	score := &Score{Parts: []Part{{Staves: 1, Measures: []Measure{single(rational.Zero, whole, e)}}}}

	want := []string{"**kern\t**text\t**mxhm", "1c\tla\tC", "==\t==\t==", "*-\t*-\t*-"}
	if got := lines(t, score); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		score *Score
		want  error
	}{
		{"no parts", &Score{}, ErrNoParts},
		{
			name: "measure counts differ",
			score: &Score{Parts: []Part{
				{Staves: 1, Measures: []Measure{single(rational.Zero, whole), single(whole, whole)}},
				{Staves: 1, Measures: []Measure{single(rational.Zero, whole)}},
			}},
			want: ErrMeasureCountMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(grid.Options{}).Build(tt.score)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
			if diag.Classify(err) != diag.CodeInput {
				t.Errorf("Classify() = %v, want %v", diag.Classify(err), diag.CodeInput)
			}
		})
	}
}

func TestBuildSkipsOutOfRangeStaff(t *testing.T) {
	logger, hook := test.NewNullLogger()
	score := &Score{Parts: []Part{{Staves: 1, Measures: []Measure{single(rational.Zero, whole,
		note(0, 0, 0, 'C', rational.Zero, whole),
		note(0, 3, 0, 'D', rational.Zero, whole))}}}}

	g, err := NewBuilder(grid.Options{Logger: logger}).Build(score)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := g.String(); got != "**kern\n1c\n==\n*-\n" {
		t.Errorf("String() = %q", got)
	}
	var errs int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("error entries = %d, want 1", errs)
	}
}

func TestGroup(t *testing.T) {
	events := []Event{
		note(0, 0, 0, 'D', quarter, quarter),
		attr(0, 0, rational.Zero, token.Clef{Sign: 'G', Line: 2}),
		note(0, 0, 0, 'C', rational.Zero, quarter),
		grace(0, 'B', quarter),
	}
	groups := Group(events)
	if len(groups) != 2 {
		t.Fatalf("len(Group()) = %d, want 2", len(groups))
	}
	if !groups[0].Start.IsZero() || len(groups[0].Zero) != 1 || len(groups[0].NonZero) != 1 {
		t.Errorf("groups[0] = %+v", groups[0])
	}
	if !groups[1].Start.Equal(quarter) || len(groups[1].Zero) != 1 || len(groups[1].NonZero) != 1 {
		t.Errorf("groups[1] = %+v", groups[1])
	}
}

func TestWithDummyRests(t *testing.T) {
	m := single(rational.Zero, whole, note(0, 1, 1, 'C', rational.Zero, whole))
	got := withDummyRests(2, 2, m)

	// staff 0 voice 0 and staff 1 voice 0 are silent
	if len(got) != 3 {
		t.Fatalf("len(withDummyRests()) = %d, want 3", len(got))
	}
	for _, e := range got[1:] {
		n, ok := e.Payload.(token.Note)
		if !ok || !n.Invisible || !n.IsRest() || e.Voice != 0 || e.Part != 2 {
			t.Errorf("dummy = %+v", e)
		}
	}
	if len(m.Events) != 1 {
		t.Errorf("source events modified: %d", len(m.Events))
	}
}
