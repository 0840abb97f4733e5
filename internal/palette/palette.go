// Package palette derives the per-tier overlay colors from the configured base colors.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/hunteroverlay/extension/pkg/core"
	"github.com/lucasb-eyer/go-colorful"
)

// Aging thresholds, as fractions of trap lifetime left.
const (
	TimerLow = 0.25
	TimerMid = 0.5
)

// StrokeWidth is the border width of every overlay pie.
const StrokeWidth = 5

// fillAlphaDivisor scales a border alpha down to its fill alpha.
const fillAlphaDivisor = 2.5

// ErrInvalidHex is returned when a color string cannot be parsed
var ErrInvalidHex = errors.New("invalid hex color")

// Tier is one of the three aging buckets of a timer.
type Tier uint8

const (
	Fresh Tier = iota
	Aged
	Oldest
	numTiers
)

func (t Tier) String() string {
	switch t {
	case Fresh:
		return "fresh"
	case Aged:
		return "aged"
	case Oldest:
		return "oldest"
	}
	return fmt.Sprintf("Tier(%d)", uint8(t))
}

// TierFor selects the tier for the given fraction of lifetime left.
// Both thresholds are inclusive on the lower tier.
func TierFor(timeLeft float64) Tier {
	switch {
	case timeLeft <= TimerLow:
		return Oldest
	case timeLeft <= TimerMid:
		return Aged
	default:
		return Fresh
	}
}

// Style is the fill and border pair of a single draw command.
type Style struct {
	Fill   color.NRGBA
	Border color.NRGBA
}

// TierOverrides optionally replaces derived colors of one state. Empty strings keep
// the derived value.
type TierOverrides struct {
	AgedBorder   string `json:"agedBorder" mapstructure:"agedBorder"`
	AgedFill     string `json:"agedFill" mapstructure:"agedFill"`
	UrgentBorder string `json:"urgentBorder" mapstructure:"urgentBorder"`
	UrgentFill   string `json:"urgentFill" mapstructure:"urgentFill"`
}

// Colors is the user facing color configuration, as hex strings.
type Colors struct {
	Open       string `json:"open" mapstructure:"open"`
	Empty      string `json:"empty" mapstructure:"empty"`
	Full       string `json:"full" mapstructure:"full"`
	Transition string `json:"transition" mapstructure:"transition"`
	// Urgent is the shared border color of the oldest tier. When empty the state's
	// own base color is kept.
	Urgent string `json:"urgent" mapstructure:"urgent"`

	OpenTiers  TierOverrides `json:"openTiers" mapstructure:"openTiers"`
	EmptyTiers TierOverrides `json:"emptyTiers" mapstructure:"emptyTiers"`
	FullTiers  TierOverrides `json:"fullTiers" mapstructure:"fullTiers"`
}

// Palette is the immutable result of Derive. The zero value draws nothing.
type Palette struct {
	tiers      [core.NumStates][numTiers]Style
	set        [core.NumStates]bool
	transition Style
	hasTrans   bool
}

// Timer returns the style for a pie state at the given tier. ok is false when the
// state has no usable base color.
func (p *Palette) Timer(state core.TrapState, tier Tier) (style Style, ok bool) {
	if p == nil || int(state) >= core.NumStates || tier >= numTiers || !p.set[state] {
		return Style{}, false
	}
	return p.tiers[state][tier], true
}

// Transition returns the style of a trap that is mid-animation.
func (p *Palette) Transition() (style Style, ok bool) {
	if p == nil || !p.hasTrans {
		return Style{}, false
	}
	return p.transition, true
}

// Derive computes every tier color from c. It is a pure function: equal inputs give
// equal palettes. Invalid or empty base colors leave that state undrawn and are
// reported in the returned error, which is informational only.
func Derive(c Colors) (Palette, error) {
	var (
		p    Palette
		errs []error
	)

	urgent, err := ParseHex(c.Urgent)
	if err != nil {
		errs = append(errs, fmt.Errorf("urgent: %w", err))
	}

	timers := []struct {
		state     core.TrapState
		base      string
		overrides TierOverrides
	}{
		{core.StateOpen, c.Open, c.OpenTiers},
		{core.StateEmpty, c.Empty, c.EmptyTiers},
		{core.StateFull, c.Full, c.FullTiers},
	}

	for _, t := range timers {
		base, err := ParseHex(t.base)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.state, err))
			continue
		}
		if base == nil {
			continue
		}
		tiers, err := deriveTimer(*base, urgent, t.overrides)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s tiers: %w", t.state, err))
		}
		p.tiers[t.state] = tiers
		p.set[t.state] = true
	}

	trans, err := ParseHex(c.Transition)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", core.StateTransition, err))
	} else if trans != nil {
		p.transition = Style{Fill: Fade(*trans), Border: *trans}
		p.hasTrans = true
	}

	return p, errors.Join(errs...)
}

func deriveTimer(base color.NRGBA, urgent *color.NRGBA, o TierOverrides) ([numTiers]Style, error) {
	var (
		tiers [numTiers]Style
		errs  []error
	)

	// pick returns the override when it parses, otherwise the fallback
	pick := func(name, hex string, fallback color.NRGBA) color.NRGBA {
		c, err := ParseHex(hex)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return fallback
		}
		if c == nil {
			return fallback
		}
		return *c
	}

	tiers[Fresh] = Style{Fill: Fade(base), Border: base}

	agedBorder := pick("agedBorder", o.AgedBorder, Darken(base))
	tiers[Aged] = Style{
		Fill:   pick("agedFill", o.AgedFill, Fade(agedBorder)),
		Border: agedBorder,
	}

	oldestDefault := base
	if urgent != nil {
		oldestDefault = *urgent
	}
	oldestBorder := pick("urgentBorder", o.UrgentBorder, oldestDefault)
	tiers[Oldest] = Style{
		Fill:   pick("urgentFill", o.UrgentFill, Fade(oldestBorder)),
		Border: oldestBorder,
	}

	return tiers, errors.Join(errs...)
}

// ParseHex parses "#RRGGBB", "RRGGBB", "#AARRGGBB" or "AARRGGBB". An empty string
// yields a nil color and no error.
func ParseHex(s string) (*color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return nil, nil
	}

	alpha := uint8(0xff)
	switch len(s) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(s[:2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
		}
		alpha = uint8(a)
		s = s[2:]
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	c, err := colorful.Hex("#" + s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	r, g, b := c.RGB255()
	return &color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// Hex formats c as "#RRGGBBAA".
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Fade returns c with its alpha divided by 2.5, the fill of a border color.
func Fade(c color.NRGBA) color.NRGBA {
	c.A = uint8(float64(c.A) / fillAlphaDivisor)
	return c
}

// Darken blends c halfway toward black in Lab space, keeping its alpha.
func Darken(c color.NRGBA) color.NRGBA {
	src := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	r, g, b := src.BlendLab(colorful.Color{}, 0.5).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}
