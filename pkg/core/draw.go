// pkg/core/draw.go
package core

import "image/color"

// DrawCommand is a single overlay primitive handed to a rendering backend.
// The concrete types are Pie and FullCircle.
type DrawCommand interface {
	Point() ScreenPoint
	Progress() float64
	Colors() (fill, border color.NRGBA)
	drawCommand()
}

// Pie is a progress pie centred on a trap.
type Pie struct {
	At ScreenPoint
	// Fraction is the elapsed share of the trap lifetime, in [0,1].
	Fraction    float64
	Fill        color.NRGBA
	Border      color.NRGBA
	StrokeWidth float64
}

func (p Pie) Point() ScreenPoint { return p.At }
func (p Pie) Progress() float64 { return p.Fraction }
func (p Pie) Colors() (fill, border color.NRGBA) { return p.Fill, p.Border }
func (Pie) drawCommand() {}

// FullCircle is a completely filled pie, used while a trap is animating.
type FullCircle struct {
	At          ScreenPoint
	Fill        color.NRGBA
	Border      color.NRGBA
	StrokeWidth float64
}

func (c FullCircle) Point() ScreenPoint { return c.At }
func (FullCircle) Progress() float64 { return 1 }
func (c FullCircle) Colors() (fill, border color.NRGBA) { return c.Fill, c.Border }
func (FullCircle) drawCommand() {}
