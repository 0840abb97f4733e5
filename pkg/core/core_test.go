package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrapState_String(t *testing.T) {
	tests := []struct {
		state TrapState
		want  string
	}{
		{StateUnknown, "UNKNOWN"},
		{StateOpen, "OPEN"},
		{StateEmpty, "EMPTY"},
		{StateFull, "FULL"},
		{StateTransition, "TRANSITION"},
		{TrapState(5), "TrapState(5)"},
		{TrapState(255), "TrapState(255)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestTrapState_Valid(t *testing.T) {
	assert.False(t, StateUnknown.Valid())
	assert.True(t, StateOpen.Valid())
	assert.True(t, StateEmpty.Valid())
	assert.True(t, StateFull.Valid())
	assert.True(t, StateTransition.Valid())
	assert.False(t, TrapState(5).Valid())
}

func TestParseTrapState(t *testing.T) {
	for _, name := range []string{"OPEN", "open", " Full ", "TRANSITION", "empty"} {
		s, err := ParseTrapState(name)
		require.NoError(t, err, name)
		assert.True(t, s.Valid())
	}

	for _, name := range []string{"", "UNKNOWN", "CLOSED"} {
		s, err := ParseTrapState(name)
		assert.Error(t, err, name)
		assert.Equal(t, StateUnknown, s)
	}
}

func TestWorldPoint_String(t *testing.T) {
	assert.Equal(t, "[3200,-4,2]", WorldPoint{X: 3200, Y: -4, Plane: 2}.String())
}

func TestScene_SceneSize(t *testing.T) {
	assert.Equal(t, DefaultSceneSize, Scene{}.SceneSize())
	assert.Equal(t, DefaultSceneSize, Scene{Size: -1}.SceneSize())
	assert.Equal(t, 32, Scene{Size: 32}.SceneSize())
}

func TestScene_TileHeight(t *testing.T) {
	scene := Scene{Heights: [][]int{
		{-240, -250, -260},
		{-100},
		nil,
	}}

	tests := []struct {
		name   string
		x, y   int
		height int
	}{
		{"first tile", 0, 0, -240},
		{"last of full column", 0, 2, -260},
		{"short column", 1, 0, -100},
		{"past short column", 1, 2, 0},
		{"nil column", 2, 0, 0},
		{"past last column", 3, 0, 0},
		{"negative x", -1, 0, 0},
		{"negative y", 0, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.height, scene.TileHeight(tt.x, tt.y))
		})
	}

	assert.Equal(t, 0, Scene{}.TileHeight(0, 0))
}
