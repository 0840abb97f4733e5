package wire

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hunteroverlay/extension/internal/palette"
	"github.com/hunteroverlay/extension/pkg/core"
)

// Shape constants matching the draw protocol.
const (
	ShapePie        = "pie"
	ShapeFullCircle = "full_circle"
)

// DrawMessage is one draw command as sent to the host renderer. Colors are
// #rrggbbaa strings.
type DrawMessage struct {
	Shape    string  `json:"shape"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Progress float64 `json:"progress"`
	Fill     string  `json:"fill"`
	Border   string  `json:"border"`
	Stroke   float64 `json:"stroke"`
}

// Frame is the :RENDER: reply.
type Frame struct {
	Number   int           `json:"frame"`
	Commands []DrawMessage `json:"commands"`
}

// FromCommand converts a draw command into its wire form.
func FromCommand(cmd core.DrawCommand) (DrawMessage, error) {
	switch c := cmd.(type) {
	case core.Pie:
		return message(ShapePie, c.At, c.Fraction, c.Fill, c.Border, c.StrokeWidth), nil
	case core.FullCircle:
		return message(ShapeFullCircle, c.At, 1, c.Fill, c.Border, c.StrokeWidth), nil
	default:
		return DrawMessage{}, fmt.Errorf("unsupported draw command %T", cmd)
	}
}

// FromCommands converts a frame's draw commands, preserving order. It
// always returns a non-nil slice so the frame encodes as [] when empty.
func FromCommands(cmds []core.DrawCommand) ([]DrawMessage, error) {
	out := make([]DrawMessage, 0, len(cmds))
	for _, cmd := range cmds {
		msg, err := FromCommand(cmd)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func message(shape string, at core.ScreenPoint, progress float64, fill, border color.NRGBA, stroke float64) DrawMessage {
	return DrawMessage{
		Shape: shape,
		X:     at.X,
		Y:     at.Y,
		// four decimals is below one degree of arc
		Progress: math.Round(progress*1e4) / 1e4,
		Fill:     palette.Hex(fill),
		Border:   palette.Hex(border),
		Stroke:   stroke,
	}
}
