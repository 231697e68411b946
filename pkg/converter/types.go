// Package converter reads MusicXML and MIDI scores and writes Humdrum kern
// or layout JSON.
package converter

import (
	"github.com/sirupsen/logrus"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/layout"
	"github.com/james-see/scoregrid/pkg/stream"
)

// Reader turns one input format into an event stream.
type Reader interface {
	Name() string
	Read(data []byte) (*stream.Score, error)
}

// Options configures a Converter.
type Options struct {
	Grid   grid.Options
	Layout layout.Options
	Logger logrus.FieldLogger
}

// DefaultOptions returns plain kern output and the default page geometry.
func DefaultOptions() Options {
	return Options{Layout: layout.DefaultOptions()}
}

// Converter handles format conversions
type Converter struct {
	readers map[Format]Reader
	opts    Options
	log     logrus.FieldLogger
}

// New creates a Converter with the MusicXML and MIDI readers.
func New(opts Options) *Converter {
	if opts.Grid.Logger == nil {
		opts.Grid.Logger = opts.Logger
	}
	if opts.Layout.Logger == nil {
		opts.Layout.Logger = opts.Logger
	}
	return &Converter{
		readers: map[Format]Reader{
			FormatMusicXML: NewMusicXMLReader(opts.Logger),
			FormatMIDI:     NewMIDIReader(opts.Logger),
		},
		opts: opts,
		log:  diag.For(opts.Logger, "converter"),
	}
}

// Reader returns the reader registered for f, or nil.
func (c *Converter) Reader(f Format) Reader {
	return c.readers[f]
}

// SetReader registers r for f, replacing any previous reader.
func (c *Converter) SetReader(f Format, r Reader) {
	c.readers[f] = r
}
