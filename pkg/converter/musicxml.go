package converter

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/stream"
	"github.com/james-see/scoregrid/pkg/token"
)

type mxlDoc struct {
	XMLName        xml.Name `xml:"score-partwise"`
	WorkTitle      string   `xml:"work>work-title"`
	MovementTitle  string   `xml:"movement-title"`
	Identification struct {
		Creators []mxlCreator `xml:"creator"`
	} `xml:"identification"`
	PartList []mxlScorePart `xml:"part-list>score-part"`
	Parts    []mxlPart      `xml:"part"`
}

type mxlCreator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type mxlScorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type mxlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []mxlMeasure `xml:"measure"`
}

// mxlMeasure keeps the children of a measure in document order, which
// carries the time cursor.
type mxlMeasure struct {
	Number string
	Items  []interface{}
}

func (m *mxlMeasure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "number" {
			m.Number = attr.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			var item interface{}
			switch t.Name.Local {
			case "attributes":
				item = &mxlAttributes{}
			case "note":
				item = &mxlNote{}
			case "backup":
				item = &mxlBackup{}
			case "forward":
				item = &mxlForward{}
			case "direction":
				item = &mxlDirection{}
			case "harmony":
				item = &mxlHarmony{}
			case "barline":
				item = &mxlBarline{}
			case "sound":
				item = &mxlSound{}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := d.DecodeElement(item, &t); err != nil {
				return err
			}
			m.Items = append(m.Items, item)
		}
	}
}

type mxlAttributes struct {
	Divisions int       `xml:"divisions"`
	Key       *mxlKey   `xml:"key"`
	Time      *mxlTime  `xml:"time"`
	Staves    int       `xml:"staves"`
	Clefs     []mxlClef `xml:"clef"`
}

type mxlKey struct {
	Fifths int `xml:"fifths"`
}

type mxlTime struct {
	Beats    string `xml:"beats"`
	BeatType int    `xml:"beat-type"`
}

type mxlClef struct {
	Number       int    `xml:"number,attr"`
	Sign         string `xml:"sign"`
	Line         int    `xml:"line"`
	OctaveChange int    `xml:"clef-octave-change"`
}

type mxlNote struct {
	PrintObject string         `xml:"print-object,attr"`
	Grace       *struct{}      `xml:"grace"`
	Chord       *struct{}      `xml:"chord"`
	Pitch       *mxlPitch      `xml:"pitch"`
	Rest        *struct{}      `xml:"rest"`
	Duration    int            `xml:"duration"`
	Ties        []mxlTie       `xml:"tie"`
	Voice       string         `xml:"voice"`
	Type        string         `xml:"type"`
	Dots        []struct{}     `xml:"dot"`
	Staff       int            `xml:"staff"`
	Notations   []mxlNotations `xml:"notations"`
	Lyrics      []mxlLyric     `xml:"lyric"`
}

type mxlPitch struct {
	Step   string  `xml:"step"`
	Alter  float64 `xml:"alter"`
	Octave int     `xml:"octave"`
}

type mxlTie struct {
	Type string `xml:"type,attr"`
}

type mxlNotations struct {
	Tied          []mxlTie  `xml:"tied"`
	Slurs         []mxlTie  `xml:"slur"`
	Fermata       *struct{} `xml:"fermata"`
	Articulations struct {
		Staccato *struct{} `xml:"staccato"`
		Accent   *struct{} `xml:"accent"`
	} `xml:"articulations"`
}

type mxlLyric struct {
	Number   string `xml:"number,attr"`
	Syllabic string `xml:"syllabic"`
	Text     string `xml:"text"`
}

type mxlBackup struct {
	Duration int `xml:"duration"`
}

type mxlForward struct {
	Duration int `xml:"duration"`
}

type mxlDirection struct {
	Types []struct {
		Dynamics *struct {
			Marks []struct {
				XMLName xml.Name
			} `xml:",any"`
		} `xml:"dynamics"`
	} `xml:"direction-type"`
	Sound *mxlSound `xml:"sound"`
	Staff int       `xml:"staff"`
}

type mxlHarmony struct {
	Root struct {
		Step  string  `xml:"root-step"`
		Alter float64 `xml:"root-alter"`
	} `xml:"root"`
	Kind struct {
		Text  string `xml:"text,attr"`
		Value string `xml:",chardata"`
	} `xml:"kind"`
	Bass struct {
		Step string `xml:"bass-step"`
	} `xml:"bass"`
}

type mxlBarline struct {
	Location string `xml:"location,attr"`
	Style    string `xml:"bar-style"`
	Repeat   *struct {
		Direction string `xml:"direction,attr"`
	} `xml:"repeat"`
}

type mxlSound struct {
	Tempo float64 `xml:"tempo,attr"`
}

// MusicXMLReader reads partwise MusicXML.
type MusicXMLReader struct {
	log logrus.FieldLogger
}

// NewMusicXMLReader returns a reader logging to log.
func NewMusicXMLReader(log logrus.FieldLogger) *MusicXMLReader {
	return &MusicXMLReader{log: diag.For(log, "musicxml")}
}

func (r *MusicXMLReader) Name() string { return "MusicXML" }

// Read decodes a partwise document into a score.
func (r *MusicXMLReader) Read(data []byte) (*stream.Score, error) {
	var doc mxlDoc
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(diag.ErrInvalidInput, "parsing MusicXML: %v", err)
	}

	score := &stream.Score{Title: doc.WorkTitle}
	if score.Title == "" {
		score.Title = doc.MovementTitle
	}
	for _, c := range doc.Identification.Creators {
		if c.Type == "composer" {
			score.Composer = strings.TrimSpace(c.Name)
		}
	}

	names := make(map[string]string)
	for _, sp := range doc.PartList {
		names[sp.ID] = strings.TrimSpace(sp.Name)
	}
	for p, mp := range doc.Parts {
		part := r.readPart(p, mp)
		part.Name = names[mp.ID]
		score.Parts = append(score.Parts, part)
	}
	return score, nil
}

// partState is the running context of one part.
type partState struct {
	part      int
	divisions int
	timeSig   rational.Rat
	voices    map[[2]int]map[string]int
	harmony   token.Token
	dynamics  map[int]token.Token
}

func (s *partState) dur(div int) rational.Rat {
	return rational.New(int64(div), int64(4*s.divisions))
}

// voice maps a MusicXML voice label on a staff to an index, in order of
// first appearance.
func (s *partState) voice(staff int, label string) int {
	key := [2]int{s.part, staff}
	if s.voices[key] == nil {
		s.voices[key] = make(map[string]int)
	}
	m := s.voices[key]
	if v, ok := m[label]; ok {
		return v
	}
	m[label] = len(m)
	return m[label]
}

func (r *MusicXMLReader) readPart(p int, mp mxlPart) stream.Part {
	part := stream.Part{ID: mp.ID, Staves: 1}
	for _, m := range mp.Measures {
		for _, it := range m.Items {
			if a, ok := it.(*mxlAttributes); ok && a.Staves > part.Staves {
				part.Staves = a.Staves
			}
		}
	}

	st := &partState{
		part:      p,
		divisions: 1,
		voices:    make(map[[2]int]map[string]int),
		dynamics:  make(map[int]token.Token),
	}
	start := rational.Zero
	for _, mm := range mp.Measures {
		m, leftRepeat := r.readMeasure(st, mm, start)
		if mm.Number != "" && m.Number == 0 {
			r.log.WithField("measure", mm.Number).Debug("non-numeric measure number")
		}
		if leftRepeat {
			// a left repeat belongs to the barline closing the previous measure
			if len(part.Measures) == 0 {
				r.log.Warn("dropping forward repeat at the start of the part")
			} else if prev := &part.Measures[len(part.Measures)-1]; prev.Style == token.BarRepeatBackward {
				prev.Style = token.BarRepeatBoth
			} else {
				prev.Style = token.BarRepeatForward
			}
		}
		part.Measures = append(part.Measures, m)
		start = start.Add(m.Duration)
	}
	return part
}

func (r *MusicXMLReader) readMeasure(st *partState, mm mxlMeasure, start rational.Rat) (m stream.Measure, leftRepeat bool) {
	m.Start = start
	m.Number, _ = strconv.Atoi(mm.Number)

	cursor, furthest := 0, 0
	lastStart := 0
	at := func(div int) rational.Rat { return start.Add(st.dur(div)) }
	add := func(e stream.Event) {
		e.Part = st.part
		m.Events = append(m.Events, e)
	}

	for _, it := range mm.Items {
		switch x := it.(type) {
		case *mxlAttributes:
			if x.Divisions > 0 {
				st.divisions = x.Divisions
			}
			for _, c := range x.Clefs {
				staff := max(c.Number, 1) - 1
				add(stream.Event{Address: stream.Address{Staff: staff}, Start: at(cursor), Payload: clefToken(c)})
			}
			if x.Key != nil {
				add(stream.Event{Address: stream.Address{Staff: stream.AllStaves}, Start: at(cursor), Payload: token.KeySig{Fifths: x.Key.Fifths}})
			}
			if x.Time != nil {
				beats := sumBeats(x.Time.Beats)
				if beats > 0 && x.Time.BeatType > 0 {
					st.timeSig = rational.New(int64(beats), int64(x.Time.BeatType))
					add(stream.Event{
						Address: stream.Address{Staff: stream.AllStaves},
						Start:   at(cursor),
						Payload: token.TimeSig{Beats: beats, BeatType: x.Time.BeatType},
					})
				}
			}

		case *mxlNote:
			if x.Chord == nil {
				lastStart = cursor
			}
			e := r.noteEvent(st, x, at(lastStart))
			add(e)
			if x.Chord == nil && x.Grace == nil {
				cursor += x.Duration
				furthest = max(furthest, cursor)
			}

		case *mxlBackup:
			cursor = max(cursor-x.Duration, 0)
		case *mxlForward:
			cursor += x.Duration
			furthest = max(furthest, cursor)

		case *mxlDirection:
			staff := max(x.Staff, 1) - 1
			for _, t := range x.Types {
				if t.Dynamics == nil {
					continue
				}
				var marks []string
				for _, mk := range t.Dynamics.Marks {
					marks = append(marks, mk.XMLName.Local)
				}
				if len(marks) > 0 {
					st.dynamics[staff] = token.Text(strings.Join(marks, ""))
				}
			}
			if x.Sound != nil && x.Sound.Tempo > 0 {
				add(stream.Event{Address: stream.Address{Staff: stream.AllStaves}, Start: at(cursor), Payload: token.Tempo{BPM: x.Sound.Tempo}})
			}

		case *mxlSound:
			if x.Tempo > 0 {
				add(stream.Event{Address: stream.Address{Staff: stream.AllStaves}, Start: at(cursor), Payload: token.Tempo{BPM: x.Tempo}})
			}

		case *mxlHarmony:
			if h, ok := harmonyToken(x); ok {
				st.harmony = h
			}

		case *mxlBarline:
			if x.Location == "left" {
				leftRepeat = leftRepeat || (x.Repeat != nil && x.Repeat.Direction == "forward")
				continue
			}
			m.Style = barStyle(x, m.Style)

		default:
			r.log.Warnf("unsupported measure element %T", it)
		}
	}

	m.Duration = st.dur(furthest)
	if !m.Duration.IsPositive() {
		m.Duration = st.timeSig
	}
	m.TimeSigDur = st.timeSig
	return m, leftRepeat
}

func (r *MusicXMLReader) noteEvent(st *partState, x *mxlNote, start rational.Rat) stream.Event {
	staff := max(x.Staff, 1) - 1
	label := x.Voice
	if label == "" {
		label = "1"
	}
	e := stream.Event{
		Address: stream.Address{Staff: staff, Voice: st.voice(staff, label)},
		Start:   start,
	}

	n := token.Note{Invisible: x.PrintObject == "no"}
	if x.Grace != nil {
		n.Grace = true
		n.Duration = typeDuration(x.Type, len(x.Dots))
	} else {
		e.Duration = st.dur(x.Duration)
		n.Duration = e.Duration
	}
	if x.Pitch != nil && x.Rest == nil {
		n.Pitches = []token.Pitch{{
			Step:   upperStep(x.Pitch.Step),
			Alter:  int(math.Round(x.Pitch.Alter)),
			Octave: x.Pitch.Octave,
		}}
	}

	var tieStart, tieStop bool
	ties := x.Ties
	for _, nt := range x.Notations {
		ties = append(ties, nt.Tied...)
		for _, s := range nt.Slurs {
			switch s.Type {
			case "start":
				n.SlurStart++
			case "stop":
				n.SlurStop++
			}
		}
		n.Fermata = n.Fermata || nt.Fermata != nil
		n.Staccato = n.Staccato || nt.Articulations.Staccato != nil
		n.Accent = n.Accent || nt.Articulations.Accent != nil
	}
	for _, t := range ties {
		tieStart = tieStart || t.Type == "start"
		tieStop = tieStop || t.Type == "stop"
	}
	switch {
	case tieStart && tieStop:
		n.Tie = token.TieContinue
	case tieStart:
		n.Tie = token.TieStart
	case tieStop:
		n.Tie = token.TieStop
	}
	e.Payload = n

	for _, l := range x.Lyrics {
		verse := 0
		if v, err := strconv.Atoi(l.Number); err == nil && v > 0 {
			verse = v - 1
		}
		for len(e.Lyrics) <= verse {
			e.Lyrics = append(e.Lyrics, nil)
		}
		e.Lyrics[verse] = token.Syllable{Text: l.Text, Syllabic: syllabic(l.Syllabic)}
	}

	if x.Chord == nil && x.Grace == nil {
		if st.harmony != nil {
			e.Harmony, st.harmony = st.harmony, nil
		}
		if d := st.dynamics[staff]; d != nil {
			e.Dynamics = d
			delete(st.dynamics, staff)
		}
	}
	return e
}

func clefToken(c mxlClef) token.Clef {
	sign := upperStep(c.Sign)
	if strings.EqualFold(c.Sign, "percussion") {
		sign = 'X'
	}
	return token.Clef{Sign: sign, Line: c.Line, Octave: c.OctaveChange}
}

func upperStep(s string) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return 'C'
	}
	return strings.ToUpper(s)[0]
}

// sumBeats reads composite meters such as "3+2".
func sumBeats(s string) int {
	total := 0
	for _, f := range strings.Split(s, "+") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return 0
		}
		total += n
	}
	return total
}

var noteTypes = map[string]rational.Rat{
	"maxima":  rational.Int(8),
	"long":    rational.Int(4),
	"breve":   rational.Int(2),
	"whole":   rational.One,
	"half":    rational.New(1, 2),
	"quarter": rational.New(1, 4),
	"eighth":  rational.New(1, 8),
	"16th":    rational.New(1, 16),
	"32nd":    rational.New(1, 32),
	"64th":    rational.New(1, 64),
	"128th":   rational.New(1, 128),
	"256th":   rational.New(1, 256),
}

// typeDuration is the notated value of a note type with dots.
func typeDuration(typ string, dots int) rational.Rat {
	d, ok := noteTypes[typ]
	if !ok {
		d = rational.New(1, 8)
	}
	add := d
	for i := 0; i < dots; i++ {
		add = add.DivInt(2)
		d = d.Add(add)
	}
	return d
}

func syllabic(s string) token.Syllabic {
	switch s {
	case "begin":
		return token.Begin
	case "middle":
		return token.Middle
	case "end":
		return token.End
	}
	return token.Single
}

var harmonyKinds = map[string]string{
	"major":              "major",
	"minor":              "minor",
	"augmented":          "augmented",
	"diminished":         "diminished",
	"dominant":           "dominant",
	"major-seventh":      "major seventh",
	"minor-seventh":      "minor seventh",
	"diminished-seventh": "diminished seventh",
	"half-diminished":    "half diminished",
	"suspended-fourth":   "suspended fourth",
}

func harmonyToken(h *mxlHarmony) (token.Token, bool) {
	if h.Root.Step == "" {
		return nil, false
	}
	kind := strings.TrimSpace(h.Kind.Value)
	if k, ok := harmonyKinds[kind]; ok {
		kind = k
	} else {
		kind = strings.ReplaceAll(kind, "-", " ")
	}
	out := token.Harmony{
		Root:  upperStep(h.Root.Step),
		Alter: int(math.Round(h.Root.Alter)),
		Kind:  kind,
	}
	if h.Bass.Step != "" {
		out.Bass = upperStep(h.Bass.Step)
	}
	return out, true
}

// barStyle reads a right barline.
func barStyle(b *mxlBarline, cur token.BarStyle) token.BarStyle {
	if b.Repeat != nil && b.Repeat.Direction == "backward" {
		return token.BarRepeatBackward
	}
	switch b.Style {
	case "light-light":
		return token.BarDouble
	case "light-heavy":
		return token.BarFinal
	}
	return cur
}
