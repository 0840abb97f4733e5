// Package overlay turns tracked traps into draw commands for the current frame.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/hunteroverlay/extension/internal/palette"
	"github.com/hunteroverlay/extension/internal/projection"
	"github.com/hunteroverlay/extension/pkg/core"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Skip reasons that do not come from the projector.
const (
	skipUnknownState = "unknown_state"
	skipBadTime      = "bad_time"
	skipNoColor      = "no_color"
)

// FrameStats summarises one Render call.
type FrameStats struct {
	Tracked int
	Emitted int
	Skipped map[string]int
}

// Mapper maps a trap snapshot to draw commands. Render must not be called
// concurrently with itself; UpdateConfig may run from any goroutine.
type Mapper struct {
	logger  *slog.Logger
	palette atomic.Pointer[palette.Palette]
	project func(core.WorldPoint, core.View) projection.Result

	emitted metric.Int64Counter
	skipped metric.Int64Counter
}

// New creates a Mapper with no palette; it draws nothing until UpdateConfig is called.
func New(logger *slog.Logger) (*Mapper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mapper{
		logger:  logger,
		project: projection.Project,
	}

	mt := meter()
	var err error

	m.emitted, err = mt.Int64Counter(
		"overlay.commands.emitted",
		metric.WithDescription("Draw commands produced"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	m.skipped, err = mt.Int64Counter(
		"overlay.objects.skipped",
		metric.WithDescription("Tracked traps that produced no draw command"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	return m, nil
}

// UpdateConfig derives a new palette from colors and swaps it in. States whose
// colors do not parse are left undrawn; the error describes them.
func (m *Mapper) UpdateConfig(colors palette.Colors) error {
	p, err := palette.Derive(colors)
	m.palette.Store(&p)
	if err != nil {
		m.logger.Warn("Some overlay colors are invalid", "error", err)
	}
	return err
}

// Palette returns the palette in use, or nil before the first UpdateConfig.
func (m *Mapper) Palette() *palette.Palette {
	return m.palette.Load()
}

// Render returns one command per visible, well-formed trap. traps is not modified.
func (m *Mapper) Render(traps map[core.WorldPoint]core.Trap, view core.View) []core.DrawCommand {
	cmds, _ := m.RenderStats(traps, view)
	return cmds
}

// RenderStats is Render plus a summary of what was skipped and why.
func (m *Mapper) RenderStats(traps map[core.WorldPoint]core.Trap, view core.View) ([]core.DrawCommand, FrameStats) {
	stats := FrameStats{Tracked: len(traps), Skipped: map[string]int{}}

	pal := m.palette.Load()
	if pal == nil {
		if len(traps) > 0 {
			stats.Skipped[skipNoColor] = len(traps)
		}
		m.record(stats)
		return nil, stats
	}

	cmds := make([]core.DrawCommand, 0, len(traps))
	for wp, trap := range traps {
		cmd, reason := m.commandFor(pal, wp, trap, view)
		if cmd == nil {
			stats.Skipped[reason]++
			continue
		}
		cmds = append(cmds, cmd)
	}

	stats.Emitted = len(cmds)
	m.record(stats)
	return cmds, stats
}

func (m *Mapper) commandFor(pal *palette.Palette, wp core.WorldPoint, trap core.Trap, view core.View) (core.DrawCommand, string) {
	switch trap.State {
	case core.StateOpen, core.StateEmpty, core.StateFull:
		timeLeft := trap.TimeRemaining
		if math.IsNaN(timeLeft) {
			m.logger.Debug("Skipping trap with invalid timer", "location", wp.String(), "state", trap.State.String())
			return nil, skipBadTime
		}
		timeLeft = min(max(timeLeft, 0), 1)

		style, ok := pal.Timer(trap.State, palette.TierFor(timeLeft))
		if !ok {
			return nil, skipNoColor
		}
		res := m.project(wp, view)
		if !res.Visible() {
			return nil, res.Reason.String()
		}
		return core.Pie{
			At:          res.Point,
			Fraction:    1 - timeLeft,
			Fill:        style.Fill,
			Border:      style.Border,
			StrokeWidth: palette.StrokeWidth,
		}, ""

	case core.StateTransition:
		style, ok := pal.Transition()
		if !ok {
			return nil, skipNoColor
		}
		res := m.project(wp, view)
		if !res.Visible() {
			return nil, res.Reason.String()
		}
		return core.FullCircle{
			At:          res.Point,
			Fill:        style.Fill,
			Border:      style.Border,
			StrokeWidth: palette.StrokeWidth,
		}, ""

	default:
		m.logger.Debug("Skipping trap with unknown state", "location", wp.String(), "state", trap.State.String())
		return nil, skipUnknownState
	}
}

func (m *Mapper) record(stats FrameStats) {
	ctx := context.Background()
	if stats.Emitted > 0 {
		m.emitted.Add(ctx, int64(stats.Emitted))
	}
	for reason, n := range stats.Skipped {
		m.skipped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
	}
}
