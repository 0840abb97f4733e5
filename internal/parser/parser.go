package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/hunteroverlay/extension/internal/util"
	"github.com/hunteroverlay/extension/pkg/core"
)

// parseIntFromFloat parses a string that may be an integer ("32") or float ("32.00") into int64.
// Host scripting languages often have no integer type, so numbers may arrive as floats.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> core type conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseWorldPoint parses "[x,y,plane]". The brackets are optional.
func (p *Parser) ParseWorldPoint(s string) (core.WorldPoint, error) {
	var wp core.WorldPoint

	s = strings.TrimSpace(util.FixEscapeQuotes(util.TrimQuotes(s)))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return wp, fmt.Errorf("world point %q: want 3 components, got %d", s, len(parts))
	}

	var vals [3]int
	for i, part := range parts {
		v, err := parseIntFromFloat(strings.TrimSpace(part))
		if err != nil {
			return wp, fmt.Errorf("world point component %d: %w", i, err)
		}
		vals[i] = int(v)
	}

	wp = core.WorldPoint{X: vals[0], Y: vals[1], Plane: vals[2]}
	if wp.Plane < 0 || wp.Plane > 3 {
		return wp, fmt.Errorf("world point %s: plane must be 0-3", wp)
	}
	return wp, nil
}

// ParseTrap parses trap data into a core Trap.
// Args: ["[x,y,plane]", state, timeRemaining]
func (p *Parser) ParseTrap(data []string) (core.Trap, error) {
	var result core.Trap

	if len(data) < 3 {
		return result, fmt.Errorf("insufficient data fields: got %d, need 3", len(data))
	}
	data = util.CleanArgs(data)

	// [0] location
	wp, err := p.ParseWorldPoint(data[0])
	if err != nil {
		return result, fmt.Errorf("error parsing location: %w", err)
	}
	result.Location = wp

	// [1] state
	state, err := core.ParseTrapState(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing state: %w", err)
	}
	result.State = state

	// [2] timeRemaining
	left, err := strconv.ParseFloat(strings.TrimSpace(data[2]), 64)
	if err != nil {
		return result, fmt.Errorf("error parsing timeRemaining: %w", err)
	}
	if math.IsNaN(left) || math.IsInf(left, 0) {
		return result, fmt.Errorf("timeRemaining %q is not finite", data[2])
	}
	result.TimeRemaining = left

	p.logger.Debug("Parsed trap", "location", wp.String(), "state", state.String(), "timeRemaining", left)
	return result, nil
}

// ParseView parses the per-frame view JSON sent with a render call.
func (p *Parser) ParseView(s string) (core.View, error) {
	var view core.View

	s = util.FixEscapeQuotes(util.TrimQuotes(s))
	if err := json.Unmarshal([]byte(s), &view); err != nil {
		return view, fmt.Errorf("error unmarshalling view: %w", err)
	}
	if view.Viewport.Width <= 0 || view.Viewport.Height <= 0 {
		return view, fmt.Errorf("viewport %dx%d is empty", view.Viewport.Width, view.Viewport.Height)
	}
	if view.Camera.Zoom <= 0 {
		return view, fmt.Errorf("camera zoom must be positive, got %v", view.Camera.Zoom)
	}
	return view, nil
}
