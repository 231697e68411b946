package converter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/stream"
)

// ErrInvalidKern is returned by ValidateKern.
var ErrInvalidKern = fmt.Errorf("invalid kern: %w", diag.ErrInvalidInput)

// KernLines builds the grid of score and returns its Humdrum lines, tab
// separated, preceded by composer and title reference records.
func KernLines(score *stream.Score, opts grid.Options) ([]string, error) {
	g, err := stream.NewBuilder(opts).Build(score)
	if err != nil {
		return nil, errors.Wrap(err, "building grid")
	}

	var lines []string
	if score.Composer != "" {
		lines = append(lines, "!!!COM: "+score.Composer)
	}
	if score.Title != "" {
		lines = append(lines, "!!!OTL: "+score.Title)
	}
	for _, l := range g.Lines() {
		lines = append(lines, strings.Join(l, "\t"))
	}
	return lines, nil
}

// ValidateKern checks the spine structure of Humdrum lines: an exclusive
// interpretation opens every spine, each line has one field per open
// spine, manipulators change the count as they declare, and a terminator
// line closes every spine.
func ValidateKern(lines []string) error {
	spines := -1
	for i, line := range lines {
		n := i + 1
		if line == "" || strings.HasPrefix(line, "!!") {
			continue
		}
		if spines == 0 {
			return errors.Wrapf(ErrInvalidKern, "line %d: content after the terminator", n)
		}
		fields := strings.Split(line, "\t")

		if spines < 0 {
			for _, f := range fields {
				if !strings.HasPrefix(f, "**") {
					return errors.Wrapf(ErrInvalidKern, "line %d: %q is not an exclusive interpretation", n, f)
				}
			}
			spines = len(fields)
			continue
		}

		if len(fields) != spines {
			return errors.Wrapf(ErrInvalidKern, "line %d: %d fields, want %d", n, len(fields), spines)
		}
		if !strings.HasPrefix(fields[0], "*") || strings.HasPrefix(fields[0], "**") {
			continue
		}
		next, err := afterManipulators(fields)
		if err != nil {
			return errors.Wrapf(ErrInvalidKern, "line %d: %v", n, err)
		}
		spines = next
	}

	switch {
	case spines < 0:
		return errors.Wrap(ErrInvalidKern, "no exclusive interpretation")
	case spines > 0:
		return errors.Wrap(ErrInvalidKern, "missing terminator")
	}
	return nil
}

// afterManipulators returns the spine count following an interpretation
// line. A run of adjacent merges becomes one spine.
func afterManipulators(fields []string) (int, error) {
	out, terminated := 0, 0
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case !strings.HasPrefix(f, "*"):
			return 0, errors.Errorf("%q on an interpretation line", f)
		case f == "*-":
			terminated++
		case f == "*v":
			j := i
			for j+1 < len(fields) && fields[j+1] == "*v" {
				j++
			}
			if j == i {
				return 0, errors.New("lone merge")
			}
			out++
			i = j
		case f == "*^":
			out += 2
		case strings.HasPrefix(f, "*^"):
			k, err := strconv.Atoi(f[2:])
			if err != nil || k < 2 {
				out++
				continue
			}
			out += k
		default:
			out++
		}
	}
	if terminated > 0 && terminated != len(fields) {
		return 0, errors.New("partial terminator")
	}
	return out, nil
}
