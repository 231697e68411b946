package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/layout"
	"github.com/james-see/scoregrid/pkg/stream"
)

// ErrUnsupportedConversion is returned for a format pair with no path.
var ErrUnsupportedConversion = fmt.Errorf("unsupported conversion: %w", diag.ErrUnsupported)

// Format represents a file format
type Format string

const (
	FormatMusicXML Format = "musicxml"
	FormatMIDI     Format = "midi"
	FormatKern     Format = "kern"
	FormatLayout   Format = "layout"
	FormatUnknown  Format = "unknown"
)

// DetectFormat detects the format of a file from its extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xml", ".musicxml":
		return FormatMusicXML
	case ".mid", ".midi":
		return FormatMIDI
	case ".krn":
		return FormatKern
	case ".json":
		return FormatLayout
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Standard MIDI File header chunk
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	head := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF")))
	switch {
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<score-partwise")):
		return FormatMusicXML
	case bytes.HasPrefix(head, []byte("**")), bytes.HasPrefix(head, []byte("!!!")):
		return FormatKern
	case bytes.HasPrefix(head, []byte("{")):
		return FormatLayout
	}
	return FormatUnknown
}

// Read parses data with the reader registered for f.
func (c *Converter) Read(data []byte, f Format) (*stream.Score, error) {
	r := c.readers[f]
	if r == nil {
		return nil, errors.Wrapf(ErrUnsupportedConversion, "no reader for %s", f)
	}
	score, err := r.Read(data)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", r.Name())
	}
	return score, nil
}

// ToKern renders score as Humdrum text, one line per grid line.
func (c *Converter) ToKern(score *stream.Score) ([]byte, error) {
	lines, err := KernLines(score, c.opts.Grid)
	if err != nil {
		return nil, err
	}
	if err := ValidateKern(lines); err != nil {
		diag.Strange(c.log, "generated kern does not validate: %v", err)
		return nil, errors.Wrapf(diag.ErrInternal, "%v", err)
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// ToLayout computes the page layout of score.
func (c *Converter) ToLayout(ctx context.Context, score *stream.Score) (*layout.Layout, error) {
	g, err := stream.NewBuilder(c.opts.Grid).Build(score)
	if err != nil {
		return nil, errors.Wrap(err, "building grid")
	}
	eng, err := layout.NewEngine(c.opts.Layout)
	if err != nil {
		return nil, err
	}
	return eng.Layout(ctx, g)
}

// Convert converts data from format in to format out.
func (c *Converter) Convert(ctx context.Context, data []byte, in, out Format) ([]byte, error) {
	if !supported(in, out) {
		return nil, errors.Wrapf(ErrUnsupportedConversion, "%s to %s", in, out)
	}
	score, err := c.Read(data, in)
	if err != nil {
		return nil, err
	}

	c.log.WithField("from", in).WithField("to", out).WithField("parts", len(score.Parts)).Debug("converting")
	if out == FormatKern {
		return c.ToKern(score)
	}
	l, err := c.ToLayout(ctx, score)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(l, "", "  ")
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "failed to read input file")
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown || inputFormat == FormatLayout {
		inputFormat = DetectFormatFromContent(data)
	}
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.Wrap(ErrUnsupportedConversion, "cannot determine output format from filename")
	}

	out, err := c.Convert(ctx, data, inputFormat, outputFormat)
	if err != nil {
		return errors.Wrap(err, "conversion failed")
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return errors.Wrap(err, "failed to write output file")
	}
	c.log.WithField("input", inputPath).WithField("output", outputPath).Info("converted")
	return nil
}

func supported(in, out Format) bool {
	return (in == FormatMusicXML || in == FormatMIDI) && (out == FormatKern || out == FormatLayout)
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"musicxml -> kern",
		"musicxml -> layout",
		"midi -> kern",
		"midi -> layout",
	}
}
