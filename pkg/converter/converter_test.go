package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/layout"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/stream"
	"github.com/james-see/scoregrid/pkg/token"
)

const song = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">
  <work><work-title>Song</work-title></work>
  <identification><creator type="composer">Anon</creator></identification>
  <part-list><score-part id="P1"><part-name>Voice</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <key><fifths>0</fifths></key>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>2</duration><voice>1</voice><type>half</type>
        <lyric number="1"><syllabic>single</syllabic><text>la</text></lyric></note>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>2</duration><voice>1</voice><type>half</type></note>
    </measure>
    <measure number="2">
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice><type>whole</type></note>
      <barline location="right"><bar-style>light-heavy</bar-style></barline>
    </measure>
  </part>
</score-partwise>`

// twoNotes is C4 for a half note, then G4 for a whole note across the
// barline, at 480 ticks per quarter.
func twoNotes(t *testing.T) []byte {
	t.Helper()
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 67, 100))
	tr.Add(1920, midi.NoteOff(0, 67))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"test.xml", FormatMusicXML},
		{"test.musicxml", FormatMusicXML},
		{"test.mid", FormatMIDI},
		{"test.MIDI", FormatMIDI},
		{"test.krn", FormatKern},
		{"test.json", FormatLayout},
		{"test.txt", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := DetectFormat(tt.filename)
			if result != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"MusicXML", []byte("\xEF\xBB\xBF<?xml version=\"1.0\"?>"), FormatMusicXML},
		{"bare score", []byte("  <score-partwise>"), FormatMusicXML},
		{"kern", []byte("**kern\n"), FormatKern},
		{"layout", []byte(`{"systems": []}`), FormatLayout},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"binary", []byte{0x3C, 0x01, 0x3E, 0x02}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormatFromContent(tt.data)
			if result != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// mockReader returns a fixed one-note score.
type mockReader struct{}

func (mockReader) Name() string { return "Mock" }
func (mockReader) Read(data []byte) (*stream.Score, error) {
	d := rational.One
	return &stream.Score{Parts: []stream.Part{{Staves: 1, Measures: []stream.Measure{{
		Duration:   d,
		TimeSigDur: d,
		Events: []stream.Event{{
			Duration: d,
			Payload:  token.Note{Duration: d, Pitches: []token.Pitch{{Step: 'A', Octave: 4}}},
		}},
	}}}}}, nil
}

func TestConverterSetReader(t *testing.T) {
	conv := New(DefaultOptions())
	if _, ok := conv.Reader(FormatMIDI).(*MIDIReader); !ok {
		t.Errorf("Reader(midi) = %T, want *MIDIReader", conv.Reader(FormatMIDI))
	}

	conv.SetReader(FormatMIDI, mockReader{})
	out, err := conv.Convert(context.Background(), nil, FormatMIDI, FormatKern)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if want := "**kern\n1a\n==\n*-\n"; string(out) != want {
		t.Errorf("Convert() = %q, want %q", out, want)
	}
}

func TestMusicXMLToKern(t *testing.T) {
	score, err := NewMusicXMLReader(nil).Read([]byte(song))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if score.Title != "Song" || score.Composer != "Anon" || score.Parts[0].Name != "Voice" {
		t.Errorf("Read() metadata = %q %q %q", score.Title, score.Composer, score.Parts[0].Name)
	}

	got, err := KernLines(score, grid.Options{})
	if err != nil {
		t.Fatalf("KernLines() error = %v", err)
	}
	want := []string{
		"!!!COM: Anon",
		"!!!OTL: Song",
		"**kern\t**text",
		"*clefG2\t*",
		"*k[]\t*",
		"*M4/4\t*",
		"2c\tla",
		"2d\t.",
		"=2\t=2",
		"1e\t.",
		"==\t==",
		"*-\t*-",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KernLines() = %q, want %q", got, want)
	}
	if err := ValidateKern(got); err != nil {
		t.Errorf("ValidateKern() = %v", err)
	}
}

func TestMusicXMLToKernMergesVoicesAtEnd(t *testing.T) {
	doc := `<score-partwise><part-list><score-part id="P1"/></part-list><part id="P1">
<measure number="1"><attributes><divisions>1</divisions><time><beats>4</beats><beat-type>4</beat-type></time></attributes>
<note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note></measure>
<measure number="2">
<note><pitch><step>E</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
<backup><duration>4</duration></backup>
<note><pitch><step>G</step><octave>4</octave></pitch><duration>4</duration><voice>2</voice></note>
</measure></part></score-partwise>`

	conv := New(DefaultOptions())
	score, err := conv.Read([]byte(doc), FormatMusicXML)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	out, err := conv.ToKern(score)
	if err != nil {
		t.Fatalf("ToKern() error = %v", err)
	}

	got := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	want := []string{"**kern", "*M4/4", "1c", "=2", "*^", "1e\t1g", "*v\t*v", "==", "*-"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToKern() = %q, want %q", got, want)
	}
}

func TestMusicXMLRepeats(t *testing.T) {
	doc := `<score-partwise><part-list><score-part id="P1"/></part-list><part id="P1">
<measure number="1"><attributes><divisions>1</divisions><time><beats>1</beats><beat-type>4</beat-type></time></attributes>
<note><rest/><duration>1</duration></note></measure>
<measure number="2"><barline location="left"><repeat direction="forward"/></barline>
<note><rest/><duration>1</duration></note>
<barline location="right"><repeat direction="backward"/></barline></measure>
</part></score-partwise>`
	score, err := NewMusicXMLReader(nil).Read([]byte(doc))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	ms := score.Parts[0].Measures
	if ms[0].Style != token.BarRepeatForward || ms[1].Style != token.BarRepeatBackward {
		t.Errorf("styles = %v %v, want forward then backward", ms[0].Style, ms[1].Style)
	}
}

func TestMusicXMLInvalid(t *testing.T) {
	_, err := NewMusicXMLReader(nil).Read([]byte("<score-partwise><part>"))
	if diag.Classify(err) != diag.CodeInput {
		t.Errorf("Read() error = %v, want input error", err)
	}
}

func TestMIDIToKern(t *testing.T) {
	log, hook := test.NewNullLogger()
	score, err := NewMIDIReader(log).Read(twoNotes(t))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	got, err := KernLines(score, grid.Options{})
	if err != nil {
		t.Fatalf("KernLines() error = %v", err)
	}
	want := []string{"**kern", "*clefG2", "*M4/4", "2c", "[2g", "=2", "2g]", "2r", "==", "*-"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KernLines() = %q, want %q", got, want)
	}
	for _, e := range hook.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			t.Errorf("unexpected log entry %q", e.Message)
		}
	}
}

func TestMIDIInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want diag.Code
	}{
		{"garbage", []byte("not a midi file"), diag.CodeInput},
		{"no notes", func() []byte {
			var tr smf.Track
			tr.Close(0)
			s := smf.New()
			s.TimeFormat = smf.MetricTicks(96)
			_ = s.Add(tr)
			var buf bytes.Buffer
			_, _ = s.WriteTo(&buf)
			return buf.Bytes()
		}(), diag.CodeInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMIDIReader(nil).Read(tt.data)
			if got := diag.Classify(err); got != tt.want {
				t.Errorf("Read() error = %v, code %v, want %v", err, got, tt.want)
			}
		})
	}
}

func TestVoices(t *testing.T) {
	notes := []midiNote{
		{start: 0, end: 4, key: 64},
		{start: 0, end: 4, key: 60},
		{start: 2, end: 6, key: 67},
		{start: 4, end: 6, key: 62},
	}
	got := voices(notes)
	if len(got) != 2 {
		t.Fatalf("voices() = %d voices, want 2", len(got))
	}
	if k := got[0][0].keys; !reflect.DeepEqual(k, []uint8{60, 64}) {
		t.Errorf("first chord = %v, want [60 64]", k)
	}
	if len(got[0]) != 2 || got[0][1].keys[0] != 62 {
		t.Errorf("voice 0 = %+v, want the chord then D", got[0])
	}
	if got[1][0].keys[0] != 67 {
		t.Errorf("voice 1 = %+v, want G", got[1])
	}
}

func TestValidateKern(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		wantErr bool
	}{
		{"plain", []string{"**kern", "4c", "*-"}, false},
		{"split and merge", []string{"**kern", "*^", "4c\t4e", "*v\t*v", "*-"}, false},
		{"comments skipped", []string{"!!!OTL: x", "**kern", "!! note", "4c", "*-"}, false},
		{"field count", []string{"**kern\t**kern", "4c", "*-\t*-"}, true},
		{"lone merge", []string{"**kern\t**kern", "*v\t*", "*-\t*-"}, true},
		{"no terminator", []string{"**kern", "4c"}, true},
		{"after terminator", []string{"**kern", "*-", "4c"}, true},
		{"no header", []string{"4c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKern(tt.lines)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKern() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKern) {
				t.Errorf("ValidateKern() error = %v, want ErrInvalidKern", err)
			}
		})
	}
}

func TestConvertLayout(t *testing.T) {
	conv := New(DefaultOptions())
	out, err := conv.Convert(context.Background(), []byte(song), FormatMusicXML, FormatLayout)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	var l layout.Layout
	if err := json.Unmarshal(out, &l); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(l.Systems) != 1 || len(l.Systems[0].Measures) != 2 {
		t.Errorf("layout = %d systems, want 1 with 2 measures", len(l.Systems))
	}
}

func TestConvertUnsupported(t *testing.T) {
	conv := New(DefaultOptions())
	for _, pair := range [][2]Format{{FormatKern, FormatMIDI}, {FormatMIDI, FormatMusicXML}, {FormatUnknown, FormatKern}} {
		_, err := conv.Convert(context.Background(), nil, pair[0], pair[1])
		if !errors.Is(err, ErrUnsupportedConversion) || diag.Classify(err) != diag.CodeUnsupported {
			t.Errorf("Convert(%s, %s) error = %v, want ErrUnsupportedConversion", pair[0], pair[1], err)
		}
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "song.musicxml")
	out := filepath.Join(dir, "song.krn")
	if err := os.WriteFile(in, []byte(song), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New(DefaultOptions()).ConvertFile(context.Background(), in, out); err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "!!!COM: Anon\n") || !strings.HasSuffix(string(data), "*-\t*-\n") {
		t.Errorf("output = %q", data)
	}

	if err := New(DefaultOptions()).ConvertFile(context.Background(), in, filepath.Join(dir, "song.txt")); !errors.Is(err, ErrUnsupportedConversion) {
		t.Errorf("ConvertFile(.txt) error = %v, want ErrUnsupportedConversion", err)
	}
}

func TestGetSupportedConversions(t *testing.T) {
	conversions := GetSupportedConversions()

	expected := []string{
		"musicxml -> kern",
		"musicxml -> layout",
		"midi -> kern",
		"midi -> layout",
	}
	if !reflect.DeepEqual(conversions, expected) {
		t.Errorf("GetSupportedConversions() = %q, want %q", conversions, expected)
	}
	for _, c := range conversions {
		f := strings.Split(c, " -> ")
		if !supported(Format(f[0]), Format(f[1])) {
			t.Errorf("%q is listed but not supported", c)
		}
	}
}
