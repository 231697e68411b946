package layout

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/rational"
)

// ErrInvalidOptions is returned for unusable layout settings.
var ErrInvalidOptions = fmt.Errorf("invalid layout options: %w", diag.ErrConfig)

// compressionWarning is the justification ratio under which a system is
// reported as squeezed.
const compressionWarning = 0.8

// Options configures an Engine.
type Options struct {
	SystemWidth      float64
	StaffHeight      float64
	StaffGap         float64
	SystemGap        float64
	SpacingLinear    float64
	SpacingNonLinear float64
	ColumnMargin     float64
	HoldBarlineGaps  bool
	// MinLastJustification is the fill under which the last system keeps
	// the spacing of the systems above instead of stretching.
	MinLastJustification float64
	Workers              int
	Metrics              Metrics
	Logger               logrus.FieldLogger
}

// DefaultOptions returns the stock page geometry.
func DefaultOptions() Options {
	return Options{
		SystemWidth:          2000,
		StaffHeight:          80,
		StaffGap:             120,
		SystemGap:            200,
		SpacingLinear:        0.25,
		SpacingNonLinear:     0.6,
		ColumnMargin:         4,
		MinLastJustification: 0.8,
		Workers:              4,
	}
}

// Validate checks the geometry.
func (o Options) Validate() error {
	switch {
	case o.SystemWidth <= 0:
		return errors.Wrapf(ErrInvalidOptions, "system width %v", o.SystemWidth)
	case o.StaffHeight <= 0:
		return errors.Wrapf(ErrInvalidOptions, "staff height %v", o.StaffHeight)
	case o.StaffGap < 0 || o.SystemGap < 0 || o.ColumnMargin < 0:
		return errors.Wrap(ErrInvalidOptions, "negative gap")
	case o.SpacingLinear <= 0 || o.SpacingNonLinear <= 0 || o.SpacingNonLinear > 1:
		return errors.Wrapf(ErrInvalidOptions, "spacing %v/%v", o.SpacingLinear, o.SpacingNonLinear)
	case o.MinLastJustification <= 0 || o.MinLastJustification > 1:
		return errors.Wrapf(ErrInvalidOptions, "last-system justification %v", o.MinLastJustification)
	}
	return nil
}

// Engine lays out grids.
type Engine struct {
	opts    Options
	metrics Metrics
	log     logrus.FieldLogger
}

// NewEngine validates opts and returns an engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	e := &Engine{opts: opts, metrics: opts.Metrics, log: diag.For(opts.Logger, "layout")}
	if e.metrics == nil {
		e.metrics = FixedMetrics{Unit: e.unit()}
	}
	return e, nil
}

// unit is one staff space.
func (e *Engine) unit() float64 { return e.opts.StaffHeight / 4 }

// Layout positions a grid.
func (e *Engine) Layout(ctx context.Context, g *grid.Grid) (*Layout, error) {
	return e.LayoutContent(ctx, FromGrid(g, e.metrics, e.unit()/2))
}

// LayoutContent aligns every measure on a bounded pool of workers, then
// breaks systems, justifies them and stacks their staves in order.
func (e *Engine) LayoutContent(ctx context.Context, contents []*MeasureContent) (*Layout, error) {
	longest := rational.Zero
	staves := 0
	for _, c := range contents {
		staves = max(staves, c.staffSize)
		for _, col := range c.Columns {
			for _, o := range col.objects {
				longest = rational.Max(longest, o.Duration)
			}
		}
	}

	aligned := make([]*MeasureAligner, len(contents))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.Workers)
	for i, c := range contents {
		i, c := i, c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			aligned[i] = e.alignMeasure(c, longest)
			e.log.WithField("measure", c.Index).Debug("measure aligned")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, "aligning measures")
	}

	systems := e.breakSystems(aligned)
	e.justifyAll(systems)

	y := 0.0
	for i, s := range systems {
		e.stackSystem(s, staves)
		if i > 0 {
			y += e.opts.SystemGap
		}
		if len(s.Staves) > 0 {
			y += s.Staves[0].OverflowAbove
		}
		s.Y = y
		y += s.Height
	}
	return &Layout{Systems: systems}, nil
}

// breakSystems packs measures greedily. A measure wider than a system
// still gets a system of its own.
func (e *Engine) breakSystems(measures []*MeasureAligner) []*System {
	var systems []*System
	var cur *System
	width := 0.0
	for _, m := range measures {
		if cur == nil || (len(cur.Measures) > 0 && width+m.minWidth > e.opts.SystemWidth) {
			cur = &System{}
			systems = append(systems, cur)
			width = 0
		}
		cur.Measures = append(cur.Measures, m)
		width += m.minWidth
	}
	return systems
}

// justifyAll stretches every system to the system width. A last system
// that would stretch past 1/MinLastJustification keeps the tightest ratio
// of the systems above, or its natural width when it is alone.
func (e *Engine) justifyAll(systems []*System) {
	smallest := 0.0
	for i, s := range systems {
		natural := s.MinWidth()
		if natural <= 0 {
			s.Width, s.Ratio = 0, 1
			continue
		}
		width := e.opts.SystemWidth
		if i == len(systems)-1 && width/natural > 1/e.opts.MinLastJustification {
			ratio := 1.0
			if smallest > 0 {
				ratio = min(smallest, width/natural)
			}
			width = natural * ratio
		}

		ratio := e.justifySystem(s, width)
		if ratio < compressionWarning {
			e.log.WithField("system", i).Warnf("justification ratio %.2f squeezes the system", ratio)
		}
		if i < len(systems)-1 && (smallest == 0 || ratio < smallest) {
			smallest = ratio
		}
	}
}
