package converter

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/stream"
	"github.com/james-see/scoregrid/pkg/token"
)

// MIDIReader reads Standard MIDI Files. Every track holding notes becomes
// a single-staff part.
type MIDIReader struct {
	log logrus.FieldLogger
}

// NewMIDIReader returns a reader logging to log.
func NewMIDIReader(log logrus.FieldLogger) *MIDIReader {
	return &MIDIReader{log: diag.For(log, "midi")}
}

func (r *MIDIReader) Name() string { return "Standard MIDI File" }

type midiNote struct {
	start, end int64
	key        uint8
}

type midiTrack struct {
	name  string
	notes []midiNote
}

type meterChange struct {
	tick     int64
	beats    int
	beatType int
}

type timedMeta struct {
	tick  int64
	value float64
}

// midiFile is everything read from an SMF, in ticks.
type midiFile struct {
	resolution int64
	tracks     []midiTrack
	meters     []meterChange
	tempos     []timedMeta
	fifths     int
	hasKey     bool
	end        int64
}

// Read parses data and splits its notes into measures, voices and ties.
func (r *MIDIReader) Read(data []byte) (*stream.Score, error) {
	f, err := r.parse(data)
	if err != nil {
		return nil, err
	}

	bars := f.barlines()
	score := &stream.Score{}
	for _, t := range f.tracks {
		if len(t.notes) == 0 {
			if score.Title == "" && t.name != "" {
				score.Title = t.name
			}
			continue
		}
		score.Parts = append(score.Parts, f.part(len(score.Parts), t, bars))
	}
	if len(score.Parts) == 0 {
		return nil, errors.Wrap(diag.ErrInvalidInput, "MIDI file has no notes")
	}
	r.log.WithField("parts", len(score.Parts)).WithField("measures", len(bars)-1).Debug("MIDI file read")
	return score, nil
}

func (r *MIDIReader) parse(data []byte) (*midiFile, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(diag.ErrInvalidInput, "parsing MIDI: %v", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.Wrap(diag.ErrUnsupported, "SMPTE time format")
	}

	f := &midiFile{resolution: int64(mt.Resolution())}
	for _, track := range s.Tracks {
		var t midiTrack
		open := make(map[[2]uint8][]int64)
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message
			f.end = max(f.end, tick)

			if len(msg) >= 2 && msg[0] == 0xFF {
				f.meta(&t, tick, msg[1], metaData(msg))
				continue
			}
			if len(msg) < 3 {
				continue
			}
			status, key, velocity := msg[0], msg[1], msg[2]
			id := [2]uint8{status & 0x0F, key}
			switch {
			case status&0xF0 == 0x90 && velocity > 0:
				open[id] = append(open[id], tick)
			case status&0xF0 == 0x80, status&0xF0 == 0x90:
				starts := open[id]
				if len(starts) == 0 {
					r.log.WithField("tick", tick).Debugf("note off for %d without note on", key)
					continue
				}
				start := starts[0]
				open[id] = starts[1:]
				if tick > start {
					t.notes = append(t.notes, midiNote{start: start, end: tick, key: key})
				}
			}
		}
		for id, starts := range open {
			for _, start := range starts {
				if tick > start {
					t.notes = append(t.notes, midiNote{start: start, end: tick, key: id[1]})
				}
			}
		}
		f.tracks = append(f.tracks, t)
	}
	sort.SliceStable(f.meters, func(i, j int) bool { return f.meters[i].tick < f.meters[j].tick })
	sort.SliceStable(f.tempos, func(i, j int) bool { return f.tempos[i].tick < f.tempos[j].tick })
	return f, nil
}

// metaData returns the payload of a meta message, after its
// variable-length size.
func metaData(msg []byte) []byte {
	i, size := 2, 0
	for ; i < len(msg); i++ {
		size = size<<7 | int(msg[i]&0x7F)
		if msg[i]&0x80 == 0 {
			i++
			break
		}
	}
	if i+size > len(msg) {
		return msg[min(i, len(msg)):]
	}
	return msg[i : i+size]
}

func (f *midiFile) meta(t *midiTrack, tick int64, typ byte, data []byte) {
	switch typ {
	case 0x03:
		t.name = string(data)
	case 0x51:
		if len(data) >= 3 {
			us := int64(data[0])<<16 | int64(data[1])<<8 | int64(data[2])
			if us > 0 {
				f.tempos = append(f.tempos, timedMeta{tick: tick, value: 60000000.0 / float64(us)})
			}
		}
	case 0x58:
		if len(data) >= 2 && data[0] > 0 && data[1] < 8 {
			f.meters = append(f.meters, meterChange{tick: tick, beats: int(data[0]), beatType: 1 << data[1]})
		}
	case 0x59:
		if len(data) >= 1 && !f.hasKey {
			f.fifths, f.hasKey = int(int8(data[0])), true
		}
	}
}

func (f *midiFile) whole(tick int64) rational.Rat { return rational.New(tick, 4*f.resolution) }

// meterAt returns the meter in force at tick, 4/4 by default.
func (f *midiFile) meterAt(tick int64) meterChange {
	m := meterChange{beats: 4, beatType: 4}
	for _, c := range f.meters {
		if c.tick > tick {
			break
		}
		m = c
	}
	return m
}

// barlines returns the tick of every barline, starting at 0 and ending at
// or after the last event.
func (f *midiFile) barlines() []int64 {
	bars := []int64{0}
	for tick := int64(0); tick < f.end || len(bars) < 2; {
		m := f.meterAt(tick)
		length := int64(m.beats) * 4 * f.resolution / int64(m.beatType)
		if length <= 0 {
			length = 4 * f.resolution
		}
		next := tick + length
		for _, c := range f.meters {
			if c.tick > tick && c.tick < next {
				next = c.tick
				break
			}
		}
		bars = append(bars, next)
		tick = next
	}
	return bars
}

type chordGroup struct {
	start, end int64
	keys       []uint8
}

// voices groups notes with equal onset and release into chords and gives
// each chord the lowest voice free at its onset.
func voices(notes []midiNote) [][]chordGroup {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].start != notes[j].start {
			return notes[i].start < notes[j].start
		}
		if notes[i].end != notes[j].end {
			return notes[i].end > notes[j].end
		}
		return notes[i].key < notes[j].key
	})
	var chords []chordGroup
	for _, n := range notes {
		if k := len(chords); k > 0 && chords[k-1].start == n.start && chords[k-1].end == n.end {
			chords[k-1].keys = append(chords[k-1].keys, n.key)
			continue
		}
		chords = append(chords, chordGroup{start: n.start, end: n.end, keys: []uint8{n.key}})
	}

	var out [][]chordGroup
	var free []int64
	for _, c := range chords {
		v := 0
		for v < len(free) && free[v] > c.start {
			v++
		}
		if v == len(free) {
			out = append(out, nil)
			free = append(free, 0)
		}
		out[v] = append(out[v], c)
		free[v] = c.end
	}
	return out
}

func (f *midiFile) part(index int, t midiTrack, bars []int64) stream.Part {
	part := stream.Part{Name: t.name, Staves: 1, Measures: make([]stream.Measure, len(bars)-1)}
	for i := range part.Measures {
		m := f.meterAt(bars[i])
		part.Measures[i] = stream.Measure{
			Number:     i + 1,
			Start:      f.whole(bars[i]),
			Duration:   f.whole(bars[i+1] - bars[i]),
			TimeSigDur: rational.New(int64(m.beats), int64(m.beatType)),
		}
	}
	at := func(m int, e stream.Event) {
		e.Part = index
		part.Measures[m].Events = append(part.Measures[m].Events, e)
	}

	at(0, stream.Event{Start: rational.Zero, Payload: clefFor(t.notes)})
	if f.hasKey {
		at(0, stream.Event{Address: stream.Address{Staff: stream.AllStaves}, Payload: token.KeySig{Fifths: f.fifths}})
	}
	for i := range part.Measures {
		m := f.meterAt(bars[i])
		if i == 0 || f.meterAt(bars[i-1]) != m {
			at(i, stream.Event{
				Address: stream.Address{Staff: stream.AllStaves},
				Start:   part.Measures[i].Start,
				Payload: token.TimeSig{Beats: m.beats, BeatType: m.beatType},
			})
		}
	}
	if index == 0 {
		for _, tm := range f.tempos {
			m := measureOf(bars, tm.tick)
			at(m, stream.Event{Address: stream.Address{Staff: stream.AllStaves}, Start: f.whole(tm.tick), Payload: token.Tempo{BPM: tm.value}})
		}
	}

	for v, chords := range voices(t.notes) {
		for m := 0; m+1 < len(bars); m++ {
			lo, hi := bars[m], bars[m+1]
			cursor, used := lo, false
			for _, ch := range chords {
				if ch.end <= lo || ch.start >= hi {
					continue
				}
				from, to := max(ch.start, lo), min(ch.end, hi)
				if from > cursor {
					at(m, f.rest(v, cursor, from))
				}
				at(m, f.segment(v, ch, from, to))
				cursor, used = to, true
			}
			switch {
			case used && cursor < hi:
				at(m, f.rest(v, cursor, hi))
			case !used && v == 0:
				at(m, f.rest(v, lo, hi))
			}
		}
	}
	return part
}

func (f *midiFile) rest(voice int, from, to int64) stream.Event {
	d := f.whole(to - from)
	return stream.Event{
		Address:  stream.Address{Voice: voice},
		Start:    f.whole(from),
		Duration: d,
		Payload:  token.Rest(d),
	}
}

// segment is the part of ch sounding between from and to, tied to the
// rest of the chord when it was split at a barline.
func (f *midiFile) segment(voice int, ch chordGroup, from, to int64) stream.Event {
	d := f.whole(to - from)
	n := token.Note{Duration: d}
	for _, k := range ch.keys {
		n.Pitches = append(n.Pitches, f.spell(k))
	}
	before, after := from > ch.start, to < ch.end
	switch {
	case before && after:
		n.Tie = token.TieContinue
	case after:
		n.Tie = token.TieStart
	case before:
		n.Tie = token.TieStop
	}
	return stream.Event{Address: stream.Address{Voice: voice}, Start: f.whole(from), Duration: d, Payload: n}
}

var (
	sharpSpelling = [12]struct {
		step  byte
		alter int
	}{{'C', 0}, {'C', 1}, {'D', 0}, {'D', 1}, {'E', 0}, {'F', 0}, {'F', 1}, {'G', 0}, {'G', 1}, {'A', 0}, {'A', 1}, {'B', 0}}
	flatSpelling = [12]struct {
		step  byte
		alter int
	}{{'C', 0}, {'D', -1}, {'D', 0}, {'E', -1}, {'E', 0}, {'F', 0}, {'G', -1}, {'G', 0}, {'A', -1}, {'A', 0}, {'B', -1}, {'B', 0}}
)

// spell names a MIDI key with sharps, or with flats under a flat key.
func (f *midiFile) spell(key uint8) token.Pitch {
	s := sharpSpelling[key%12]
	if f.hasKey && f.fifths < 0 {
		s = flatSpelling[key%12]
	}
	return token.Pitch{Step: s.step, Alter: s.alter, Octave: int(key)/12 - 1}
}

// clefFor picks a bass clef for tracks mostly below middle C.
func clefFor(notes []midiNote) token.Clef {
	keys := make([]int, len(notes))
	for i, n := range notes {
		keys[i] = int(n.key)
	}
	sort.Ints(keys)
	if len(keys) > 0 && keys[len(keys)/2] < 60 {
		return token.Clef{Sign: 'F', Line: 4}
	}
	return token.Clef{Sign: 'G', Line: 2}
}

func measureOf(bars []int64, tick int64) int {
	m := sort.Search(len(bars), func(i int) bool { return bars[i] > tick }) - 1
	return max(0, min(m, len(bars)-2))
}
