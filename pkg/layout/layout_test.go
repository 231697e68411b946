package layout

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func engine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestDurationSpace(t *testing.T) {
	whole := DurationSpace(rational.One, rational.One, 0.25, 0.6, 10)
	half := DurationSpace(rational.New(1, 2), rational.One, 0.25, 0.6, 10)
	sixteenth := DurationSpace(rational.New(1, 16), rational.One, 0.25, 0.6, 10)
	if !(whole > half && half > sixteenth && sixteenth > 0) {
		t.Errorf("DurationSpace() = %v, %v, %v, want decreasing positive values", whole, half, sixteenth)
	}
	// the ratio between doublings is 2^nonLinear
	if got, want := whole/half, math.Pow(2, 0.6); !near(got, want) {
		t.Errorf("whole/half = %v, want %v", got, want)
	}
	if got := DurationSpace(rational.Zero, rational.One, 0.25, 0.6, 10); got != 0 {
		t.Errorf("DurationSpace(0) = %v, want 0", got)
	}
	breve := DurationSpace(rational.Int(2), rational.Int(2), 0.25, 0.6, 10)
	if !near(breve, whole) {
		t.Errorf("DurationSpace(2, longest 2) = %v, want %v", breve, whole)
	}
}

func TestJustify(t *testing.T) {
	tests := []struct {
		name      string
		pos       []float64
		held      []bool
		target    float64
		want      []float64
		wantRatio float64
	}{
		{
			name:      "uniform",
			pos:       []float64{0, 10, 30, 60},
			target:    120,
			want:      []float64{0, 20, 60, 120},
			wantRatio: 2,
		},
		{
			name:      "held barline gap",
			pos:       []float64{0, 10, 30, 60},
			held:      []bool{false, true, false, false},
			target:    110,
			want:      []float64{0, 10, 50, 110},
			wantRatio: 2,
		},
		{
			name:      "compression",
			pos:       []float64{0, 50, 100},
			target:    80,
			want:      []float64{0, 40, 80},
			wantRatio: 0.8,
		},
		{
			name:      "held gaps overshoot",
			pos:       []float64{0, 50, 60},
			held:      []bool{false, true, false},
			target:    30,
			want:      []float64{0, 25, 30},
			wantRatio: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := append([]float64(nil), tt.pos...)
			ratio := Justify(pos, tt.held, tt.target)
			if !near(ratio, tt.wantRatio) {
				t.Errorf("Justify() ratio = %v, want %v", ratio, tt.wantRatio)
			}
			for i := range pos {
				if !near(pos[i], tt.want[i]) {
					t.Errorf("Justify() = %v, want %v", pos, tt.want)
					break
				}
			}
			if pos[len(pos)-1] != tt.target {
				t.Errorf("last position = %v, want exactly %v", pos[len(pos)-1], tt.target)
			}
		})
	}
}

func TestStackStaves(t *testing.T) {
	got := StackStaves([]float64{0, 30, 0}, []float64{50, 10, 0}, 80, 60)
	want := []float64{0, 160, 300}
	for i, s := range got {
		if !near(s.Y, want[i]) {
			t.Errorf("StackStaves()[%d].Y = %v, want %v", i, s.Y, want[i])
		}
	}
}

func TestAlignMeasure(t *testing.T) {
	e := engine(t, DefaultOptions())
	c := NewMeasureContent(0, 2, rational.Zero)
	long := c.Column(rational.Zero, Default)
	long.Add(Object{Staff: 0, SpanTo: -1, Width: 12, Duration: rational.New(1, 4)})
	long.Add(Object{Staff: 1, SpanTo: -1, Width: 12, Duration: rational.One})
	short := c.Column(rational.New(1, 4), Default)
	short.Add(Object{Staff: 0, SpanTo: -1, Width: 12, Duration: rational.New(1, 16)})
	c.Column(rational.One, MeasureEnd)

	m := e.alignMeasure(c, rational.One)
	types := make([]AlignmentType, len(m.Columns))
	for i, col := range m.Columns {
		types[i] = col.Type
	}
	if want := []AlignmentType{MeasureStart, Default, Default, MeasureEnd}; !reflect.DeepEqual(types, want) {
		t.Fatalf("column types = %v, want %v", types, want)
	}

	wantLong := 12 + e.durationSpace(rational.One, rational.One) + e.opts.ColumnMargin
	if !near(long.MinWidth, wantLong) {
		t.Errorf("MinWidth = %v, want %v", long.MinWidth, wantLong)
	}
	if long.MinWidth <= short.MinWidth {
		t.Errorf("whole-note column %v is not wider than sixteenth column %v", long.MinWidth, short.MinWidth)
	}
	if !near(m.Width, long.MinWidth+short.MinWidth) {
		t.Errorf("Width = %v, want %v", m.Width, long.MinWidth+short.MinWidth)
	}
}

func TestCrossStaffSecondPass(t *testing.T) {
	opts := DefaultOptions()
	opts.ColumnMargin = 0
	e := engine(t, opts)

	tests := []struct {
		name  string
		cross float64
		want  float64
	}{
		{"staff constraint wins", 8, 20},
		{"cross-staff object wins", 30, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMeasureContent(0, 2, rational.Zero)
			col := c.Column(rational.Zero, Clef)
			col.Add(Object{Staff: 0, SpanTo: -1, Width: 5})
			col.Add(Object{Staff: 1, SpanTo: -1, Width: 20})
			col.Add(Object{Staff: 0, SpanTo: 1, Width: tt.cross})
			e.alignMeasure(c, rational.One)
			if !near(col.MinWidth, tt.want) {
				t.Errorf("MinWidth = %v, want %v", col.MinWidth, tt.want)
			}
		})
	}
}

func wholeNotes(measures int) *grid.Grid {
	g := grid.New([]int{1}, grid.Options{})
	for i := 0; i < measures; i++ {
		start := rational.Int(int64(i))
		m := g.AddMeasure(start, rational.One, rational.One)
		n := token.Note{Duration: rational.One, Pitches: []token.Pitch{{Step: 'C', Octave: 4}}}
		m.AddSlice(grid.Notes, start).Staff(0, 0).SetToken(0, n, n.Duration)
	}
	return g
}

func TestFromGrid(t *testing.T) {
	g := grid.New([]int{1}, grid.Options{})
	m := g.AddMeasure(rational.Zero, rational.One, rational.One)
	m.AddSlice(grid.Clefs, rational.Zero).Staff(0, 0).SetToken(0, token.Clef{Sign: 'G', Line: 2}, rational.Zero)
	high := token.Note{Duration: rational.One, Pitches: []token.Pitch{{Step: 'C', Octave: 6}}}
	m.AddSlice(grid.Notes, rational.Zero).Staff(0, 0).SetToken(0, high, high.Duration)

	contents := FromGrid(g, DefaultMetrics, 5)
	if len(contents) != 1 {
		t.Fatalf("len(FromGrid()) = %d, want 1", len(contents))
	}
	var types []AlignmentType
	for _, col := range contents[0].Columns {
		types = append(types, col.Type)
	}
	want := []AlignmentType{MeasureStart, ScoreDefClef, Default, RightBarline, MeasureEnd}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("column types = %v, want %v", types, want)
	}
	// c''' sits four steps above the top line of a treble staff
	if got := contents[0].Above[0]; !near(got, 20) {
		t.Errorf("Above[0] = %v, want 20", got)
	}
}

func TestLayoutBreaksAndJustifies(t *testing.T) {
	opts := DefaultOptions()
	opts.SystemWidth = 1e6
	probe, err := engine(t, opts).Layout(context.Background(), wholeNotes(3))
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	natural := probe.Systems[0].Measures[0].Width
	lastNatural := probe.Systems[0].Measures[2].Width
	if !near(probe.Systems[0].Ratio, 1) {
		t.Errorf("lone last system ratio = %v, want 1", probe.Systems[0].Ratio)
	}

	opts.SystemWidth = 2.5 * natural
	l, err := engine(t, opts).Layout(context.Background(), wholeNotes(3))
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if len(l.Systems) != 2 {
		t.Fatalf("len(Systems) = %d, want 2", len(l.Systems))
	}
	first := l.Systems[0]
	if len(first.Measures) != 2 || !near(first.Ratio, 1.25) {
		t.Errorf("first system = %d measures at ratio %v, want 2 at 1.25", len(first.Measures), first.Ratio)
	}
	lastMeasure := first.Measures[len(first.Measures)-1]
	if end := lastMeasure.X + lastMeasure.Width; !near(end, opts.SystemWidth) {
		t.Errorf("last column x = %v, want %v", end, opts.SystemWidth)
	}
	if last := l.Systems[1]; !near(last.Ratio, 1.25) || !near(last.Width, 1.25*lastNatural) {
		t.Errorf("last system ratio %v width %v, want 1.25 and %v", last.Ratio, last.Width, 1.25*lastNatural)
	}
	if l.Systems[1].Y <= l.Systems[0].Y+l.Systems[0].Height {
		t.Errorf("systems overlap: %v then %v", l.Systems[0].Y, l.Systems[1].Y)
	}
}

func TestLayoutCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine(t, DefaultOptions()).Layout(ctx, wholeNotes(2))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Layout() error = %v, want %v", err, context.Canceled)
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	opts.SystemWidth = 0
	if _, err := NewEngine(opts); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("NewEngine() error = %v, want %v", err, ErrInvalidOptions)
	}
}
