// Package projection maps world tiles to canvas pixels for the current view.
package projection

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hunteroverlay/extension/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// NearPlane is the minimum depth, in local units, of a projectable point.
const NearPlane = 50

// Reason tells why a point is or is not visible.
type Reason uint8

const (
	Visible Reason = iota
	OffPlane
	OutsideScene
	BehindCamera
	OutsideViewport
)

func (r Reason) String() string {
	switch r {
	case Visible:
		return "visible"
	case OffPlane:
		return "off_plane"
	case OutsideScene:
		return "outside_scene"
	case BehindCamera:
		return "behind_camera"
	case OutsideViewport:
		return "outside_viewport"
	}
	return "unknown"
}

// Result is either a screen point (Reason == Visible) or a not-visible marker.
type Result struct {
	Point  core.ScreenPoint
	Reason Reason
}

// Visible reports whether the projection produced a usable screen point.
func (r Result) Visible() bool {
	return r.Reason == Visible
}

func notVisible(r Reason) Result {
	return Result{Reason: r}
}

// Project converts world into a canvas point for view. It has no side effects.
func Project(world core.WorldPoint, view core.View) Result {
	if world.Plane != view.Plane {
		return notVisible(OffPlane)
	}

	local, ok := ToLocal(world, view.Scene)
	if !ok {
		return notVisible(OutsideScene)
	}

	height := view.Scene.TileHeight(world.X-view.Scene.BaseX, world.Y-view.Scene.BaseY)
	return LocalToCanvas(local, height, view.Camera, view.Viewport)
}

// ToLocal returns the local coordinate of the centre of a world tile, or false if
// the tile is not part of the loaded scene.
func ToLocal(world core.WorldPoint, scene core.Scene) (core.LocalPoint, bool) {
	size := scene.SceneSize()
	bounds, err := geom.NewEnvelope([]geom.XY{
		{X: float64(scene.BaseX), Y: float64(scene.BaseY)},
		{X: float64(scene.BaseX + size - 1), Y: float64(scene.BaseY + size - 1)},
	})
	if err != nil || !bounds.Contains(geom.XY{X: float64(world.X), Y: float64(world.Y)}) {
		return core.LocalPoint{}, false
	}

	return core.LocalPoint{
		X: (world.X-scene.BaseX)*core.TileSize + core.TileSize/2,
		Y: (world.Y-scene.BaseY)*core.TileSize + core.TileSize/2,
	}, true
}

// LocalToCanvas applies the camera transform to a local point at the given height.
func LocalToCanvas(local core.LocalPoint, height int, cam core.Camera, vp core.Viewport) Result {
	rel := mgl64.Vec3{
		float64(local.X) - cam.X,
		float64(local.Y) - cam.Y,
		float64(height) - cam.Z,
	}

	// yaw around the vertical axis, then pitch; afterwards Y is depth and Z is the
	// screen vertical
	rot := mgl64.Rotate3DX(-cam.Pitch).Mul3(mgl64.Rotate3DZ(-cam.Yaw))
	v := rot.Mul3x1(rel)

	depth := v.Y()
	if depth < NearPlane || math.IsNaN(depth) {
		return notVisible(BehindCamera)
	}

	sx := float64(vp.X) + v.X()*cam.Zoom/depth + float64(vp.Width)/2
	sy := float64(vp.Y) + v.Z()*cam.Zoom/depth + float64(vp.Height)/2
	if math.IsNaN(sx) || math.IsNaN(sy) || math.IsInf(sx, 0) || math.IsInf(sy, 0) {
		return notVisible(BehindCamera)
	}

	sx, sy = math.Round(sx), math.Round(sy)
	if sx < float64(vp.X) || sx >= float64(vp.X+vp.Width) ||
		sy < float64(vp.Y) || sy >= float64(vp.Y+vp.Height) {
		return notVisible(OutsideViewport)
	}
	return Result{Point: core.ScreenPoint{X: int(sx), Y: int(sy)}, Reason: Visible}
}
