package stream

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// Builder turns a Score into a Grid.
type Builder struct {
	opts grid.Options
	log  logrus.FieldLogger
}

// NewBuilder returns a builder creating grids with opts.
func NewBuilder(opts grid.Options) *Builder {
	return &Builder{opts: opts, log: diag.For(opts.Logger, "stream")}
}

// Build merges every measure of the score into a new grid and removes
// redundant clef changes. The grid is not finalized.
func (b *Builder) Build(score *Score) (*grid.Grid, error) {
	if score == nil || len(score.Parts) == 0 {
		return nil, ErrNoParts
	}
	count := len(score.Parts[0].Measures)
	for p, part := range score.Parts {
		if len(part.Measures) != count {
			return nil, errors.Wrapf(ErrMeasureCountMismatch,
				"part %d has %d measures, part 0 has %d", p, len(part.Measures), count)
		}
	}

	shape := make([]int, len(score.Parts))
	for p, part := range score.Parts {
		shape[p] = max(part.Staves, 1)
	}
	g := grid.New(shape, b.opts)
	b.setSideCounts(g, score, shape)

	prevTimeSig := rational.Zero
	for m := 0; m < count; m++ {
		prevTimeSig = b.insertMeasure(g, score, shape, m, prevTimeSig)
	}
	g.RemoveRedundantClefChanges()
	b.log.WithField("measures", count).Debug("grid built")
	return g, nil
}

// setSideCounts scans the score for lyric verses, dynamics and harmony.
func (b *Builder) setSideCounts(g *grid.Grid, score *Score, shape []int) {
	for p, part := range score.Parts {
		for _, m := range part.Measures {
			for _, e := range m.Events {
				if e.Staff < 0 || e.Staff >= shape[p] {
					continue
				}
				for v := len(e.Lyrics) - 1; v >= 0; v-- {
					if e.Lyrics[v] != nil {
						g.SetVerseCount(p, e.Staff, v+1)
						break
					}
				}
				if e.Harmony != nil {
					g.SetHarmonyCount(p, 1)
				}
				if e.Dynamics != nil {
					g.SetDynamicsCount(p, e.Staff, 1)
				}
			}
		}
	}
}

type partGroup struct {
	part int
	SimultaneousEvents
}

// insertMeasure merges measure m of every part. Measure metadata comes from
// the first part; a missing time signature duration is inherited.
func (b *Builder) insertMeasure(g *grid.Grid, score *Score, shape []int, m int, prevTimeSig rational.Rat) rational.Rat {
	meta := score.Parts[0].Measures[m]
	tsd := meta.TimeSigDur
	if !tsd.IsPositive() {
		tsd = prevTimeSig
	}
	if !tsd.IsPositive() {
		tsd = meta.Duration
	}

	gm := g.AddMeasure(meta.Start, meta.Duration, tsd)
	gm.Style = meta.Style
	gm.Number = meta.Number

	groups := make([][]SimultaneousEvents, len(score.Parts))
	for p, part := range score.Parts {
		groups[p] = Group(withDummyRests(p, shape[p], part.Measures[m]))
	}

	cursor := make([]int, len(groups))
	for {
		now := rational.Inf()
		for p := range groups {
			if cursor[p] < len(groups[p]) {
				now = rational.Min(now, groups[p][cursor[p]].Start)
			}
		}
		if now.IsInfinite() {
			break
		}

		var current []partGroup
		for p := range groups {
			if cursor[p] < len(groups[p]) && groups[p][cursor[p]].Start.Equal(now) {
				current = append(current, partGroup{part: p, SimultaneousEvents: groups[p][cursor[p]]})
				cursor[p]++
			}
		}
		b.convertNowEvents(gm, shape, now, current)
	}
	return tsd
}

type zeroGroups struct {
	graceBefore []Event
	clefs       []Event
	keys        []Event
	times       []Event
	tempos      []Event
	graceAfter  []Event
}

func (b *Builder) splitZero(current []partGroup) zeroGroups {
	var z zeroGroups
	for _, pg := range current {
		attributes := false
		for _, e := range pg.Zero {
			switch e.Payload.(type) {
			case token.Clef:
				z.clefs = append(z.clefs, e)
				attributes = true
			case token.KeySig:
				z.keys = append(z.keys, e)
				attributes = true
			case token.TimeSig:
				z.times = append(z.times, e)
				attributes = true
			case token.Tempo:
				z.tempos = append(z.tempos, e)
			default:
				switch {
				case e.isGrace() && attributes:
					z.graceAfter = append(z.graceAfter, e)
				case e.isGrace():
					z.graceBefore = append(z.graceBefore, e)
				default:
					b.log.WithField("at", e.Start).Warnf("dropping zero-duration %T in %v", e.Payload, e.Address)
				}
			}
		}
	}
	return z
}

// convertNowEvents appends the slices of one instant: grace notes before
// attributes, clefs, keys, times, tempos, grace notes after attributes,
// then one data slice for the sounding events.
func (b *Builder) convertNowEvents(gm *grid.Measure, shape []int, now rational.Rat, current []partGroup) {
	z := b.splitZero(current)

	b.addGraceLines(gm, shape, now, z.graceBefore)
	b.addAttributes(gm, shape, now, grid.Clefs, z.clefs)
	b.addAttributes(gm, shape, now, grid.KeySigs, z.keys)
	b.addAttributes(gm, shape, now, grid.TimeSigs, z.times)
	b.addAttributes(gm, shape, now, grid.Tempos, z.tempos)
	b.addGraceLines(gm, shape, now, z.graceAfter)

	var sounding []Event
	for _, pg := range current {
		sounding = append(sounding, pg.NonZero...)
	}
	if len(sounding) == 0 {
		return
	}
	s := gm.AddSlice(grid.Notes, now)
	for _, e := range sounding {
		b.addEvent(s, shape, e)
	}
}

func (b *Builder) valid(shape []int, e Event) bool {
	if e.Part < 0 || e.Part >= len(shape) || e.Staff >= shape[e.Part] || e.Staff < AllStaves || e.Voice < 0 {
		diag.Malformed(b.log, "event %v at %v is outside the score", e.Address, e.Start)
		return false
	}
	return true
}

// addAttributes creates one slice for a clef, key, time or tempo group. An
// event addressed to AllStaves applies to every staff of its part; staves
// without a change get a placeholder.
func (b *Builder) addAttributes(gm *grid.Measure, shape []int, now rational.Rat, typ grid.SliceType, events []Event) {
	if len(events) == 0 {
		return
	}
	s := gm.AddSlice(typ, now)
	for _, e := range events {
		if !b.valid(shape, e) {
			continue
		}
		if e.Staff == AllStaves {
			for st := 0; st < shape[e.Part]; st++ {
				s.Staff(e.Part, st).SetToken(0, e.Payload, rational.Zero)
			}
			continue
		}
		s.Staff(e.Part, e.Staff).SetToken(0, e.Payload, rational.Zero)
	}
	fillEmpties(s, shape)
}

// addGraceLines lays out grace notes on their own lines, each voice's run
// aligned so its last grace note sits just before the main note.
func (b *Builder) addGraceLines(gm *grid.Measure, shape []int, now rational.Rat, events []Event) {
	if len(events) == 0 {
		return
	}
	runs := make(map[Address][]Event)
	var order []Address
	longest := 0
	for _, e := range events {
		if !b.valid(shape, e) || e.Staff == AllStaves {
			continue
		}
		if _, ok := runs[e.Address]; !ok {
			order = append(order, e.Address)
		}
		runs[e.Address] = append(runs[e.Address], e)
		longest = max(longest, len(runs[e.Address]))
	}

	slices := make([]*grid.Slice, longest)
	for i := range slices {
		slices[i] = gm.AddSlice(grid.GraceNotes, now)
	}
	for _, a := range order {
		run := runs[a]
		offset := longest - len(run)
		for i, e := range run {
			slices[offset+i].Staff(a.Part, a.Staff).SetToken(a.Voice, e.Payload, rational.Zero)
		}
	}
	for _, s := range slices {
		fillEmpties(s, shape)
	}
}

// addEvent places a sounding event and its side-channel tokens. A second
// note in an occupied voice joins it as a chord.
func (b *Builder) addEvent(s *grid.Slice, shape []int, e Event) {
	if !b.valid(shape, e) || e.Staff == AllStaves {
		return
	}
	staff := s.Staff(e.Part, e.Staff)
	if cell := staff.Voice(e.Voice); !cell.IsNull() {
		if merged, ok := chord(cell.Token, e.Payload); ok {
			cell.Token = merged
		} else {
			b.log.WithField("at", e.Start).Warnf("replacing %q in %v with %q", cell.Token, e.Address, e.Payload)
			staff.SetToken(e.Voice, e.Payload, e.Duration)
		}
	} else {
		staff.SetToken(e.Voice, e.Payload, e.Duration)
	}

	for v, tok := range e.Lyrics {
		if tok != nil {
			staff.SetVerse(v, tok)
		}
	}
	if e.Dynamics != nil {
		staff.Dynamics = e.Dynamics
	}
	if e.Harmony != nil {
		s.Parts[e.Part].Harmony = e.Harmony
	}
}

func chord(a, b token.Token) (token.Token, bool) {
	na, ok1 := a.(token.Note)
	nb, ok2 := b.(token.Note)
	if !ok1 || !ok2 || na.IsRest() || nb.IsRest() || na.Invisible || nb.Invisible {
		return nil, false
	}
	na.Pitches = append(append([]token.Pitch(nil), na.Pitches...), nb.Pitches...)
	return na, true
}

// fillEmpties gives every staff without a token a placeholder.
func fillEmpties(s *grid.Slice, shape []int) {
	for p := range shape {
		for st := 0; st < shape[p]; st++ {
			staff := s.Staff(p, st)
			if len(staff.Voices) == 0 {
				staff.SetToken(0, s.Type.Null(), rational.Zero)
			}
		}
	}
}
