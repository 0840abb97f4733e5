// pkg/core/view.go
package core

// Local coordinate constants of the client scene.
const (
	// TileSize is the number of local units per tile edge.
	TileSize = 128
	// DefaultSceneSize is the edge length, in tiles, of the loaded scene.
	DefaultSceneSize = 104
)

// ScreenPoint is a canvas pixel position.
type ScreenPoint struct {
	X int
	Y int
}

// LocalPoint is a position relative to the loaded scene, in local units.
type LocalPoint struct {
	X int
	Y int
}

// Viewport is the canvas rectangle the 3D scene is drawn into.
type Viewport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Camera holds the camera position in local units and its orientation in radians.
type Camera struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Zoom  float64 `json:"zoom"`
}

// Scene describes the region of the world currently loaded by the client.
type Scene struct {
	BaseX int `json:"baseX"`
	BaseY int `json:"baseY"`
	// Size defaults to DefaultSceneSize when zero.
	Size int `json:"size"`
	// Heights holds per-tile heights of the current plane indexed [sceneX][sceneY].
	// Missing entries read as 0.
	Heights [][]int `json:"heights,omitempty"`
}

// View is the per-frame camera and scene state supplied by the host.
type View struct {
	Plane    int      `json:"plane"`
	Camera   Camera   `json:"camera"`
	Scene    Scene    `json:"scene"`
	Viewport Viewport `json:"viewport"`
}

// SceneSize returns the effective scene edge length in tiles.
func (s Scene) SceneSize() int {
	if s.Size <= 0 {
		return DefaultSceneSize
	}
	return s.Size
}

// TileHeight returns the height of the given scene tile, or 0 if unknown.
func (s Scene) TileHeight(sceneX, sceneY int) int {
	if sceneX < 0 || sceneX >= len(s.Heights) {
		return 0
	}
	col := s.Heights[sceneX]
	if sceneY < 0 || sceneY >= len(col) {
		return 0
	}
	return col[sceneY]
}
