package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunteroverlay/extension/internal/cache"
	"github.com/hunteroverlay/extension/internal/config"
	"github.com/hunteroverlay/extension/internal/dispatcher"
	"github.com/hunteroverlay/extension/internal/overlay"
	"github.com/hunteroverlay/extension/internal/palette"
	"github.com/hunteroverlay/extension/internal/parser"
	"github.com/hunteroverlay/extension/pkg/core"
	"github.com/hunteroverlay/extension/pkg/wire"
)

type recorder struct {
	mu     sync.Mutex
	frames []overlay.FrameStats
	err    error
}

func (r *recorder) Record(stats overlay.FrameStats, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, stats)
	return r.err
}

type flusher struct{ calls int }

func (f *flusher) Flush(context.Context) error {
	f.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	t.Cleanup(viper.Reset)

	mapper, err := overlay.New(nil)
	require.NoError(t, err)

	rec := &recorder{}
	s := NewService(Dependencies{
		Mapper:           mapper,
		Traps:            cache.NewTrapCache(),
		Parser:           parser.NewParser(nil),
		Recorder:         rec,
		ExtensionVersion: "1.0.0",
		BuildDate:        "2026-10-01",
		DefaultConfigDir: t.TempDir(),
	})
	return s, rec
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
}

// viewJSON looks north at tile (x, y) of plane 0 from 2000 units back.
func viewJSON(x, y int) string {
	return `{
		"plane": 0,
		"camera": {"x": ` + itoa(x*128+64) + `, "y": ` + itoa(y*128+64-2000) + `, "z": 0, "zoom": 512},
		"viewport": {"width": 1024, "height": 768}
	}`
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func call(command string, args ...string) dispatcher.Call {
	return dispatcher.Call{Command: command, Args: args}
}

func decodeFrame(t *testing.T, result any) wire.Frame {
	t.Helper()
	raw, ok := result.(json.RawMessage)
	require.True(t, ok, "render result should be raw JSON, got %T", result)
	var f wire.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestInit_LoadsConfigAndPalette(t *testing.T) {
	s, _ := newTestService(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{"colors": {"open": "#00FFFF"}}`)

	result, err := s.Init(call(":INIT:", dir))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	assert.Equal(t, "#00FFFF", config.GetColors().Open)
	require.NotNil(t, s.deps.Mapper.Palette())
}

func TestInit_MissingConfigUsesDefaults(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Init(call(":INIT:"))
	require.NoError(t, err)

	assert.NotNil(t, s.deps.Mapper.Palette(), "defaults should still produce a palette")
	assert.Equal(t, "#FFFF00", config.GetColors().Open)
}

func TestVersion(t *testing.T) {
	s, _ := newTestService(t)
	result, err := s.Version(call(":VERSION:"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "2026-10-01"}, result)
}

func TestSetAndRemoveTrap(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.SetTrap(call(":TRAP:SET:", "[10,20,0]", "OPEN", "0.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.deps.Traps.Len())

	removed, err := s.RemoveTrap(call(":TRAP:REMOVE:", "[10,20,0]"))
	require.NoError(t, err)
	assert.Equal(t, true, removed)

	removed, err = s.RemoveTrap(call(":TRAP:REMOVE:", "[10,20,0]"))
	require.NoError(t, err)
	assert.Equal(t, false, removed)
}

func TestSetTrap_BadArgs(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.SetTrap(call(":TRAP:SET:", "[10,20,0]", "SPRUNG", "0.5"))
	require.Error(t, err)
	assert.Equal(t, 0, s.deps.Traps.Len())

	_, err = s.RemoveTrap(call(":TRAP:REMOVE:"))
	assert.Error(t, err)
}

func TestClearTraps(t *testing.T) {
	s, _ := newTestService(t)
	for _, wp := range []string{"[1,1,0]", "[2,2,0]", "[3,3,1]"} {
		_, err := s.SetTrap(call(":TRAP:SET:", wp, "FULL", "1"))
		require.NoError(t, err)
	}

	n, err := s.ClearTraps(call(":TRAP:CLEAR:"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, s.deps.Traps.Len())
}

func TestRender_BeforeInitDrawsNothing(t *testing.T) {
	s, rec := newTestService(t)
	_, err := s.SetTrap(call(":TRAP:SET:", "[10,20,0]", "OPEN", "0.5"))
	require.NoError(t, err)

	result, err := s.Render(call(":RENDER:", viewJSON(10, 20)))
	require.NoError(t, err)

	f := decodeFrame(t, result)
	assert.Equal(t, 1, f.Number)
	assert.Empty(t, f.Commands)
	require.Len(t, rec.frames, 1)
	assert.Equal(t, 1, rec.frames[0].Skipped["no_color"])
}

func TestRender_DrawsTrackedTraps(t *testing.T) {
	s, rec := newTestService(t)
	_, err := s.Init(call(":INIT:"))
	require.NoError(t, err)

	_, err = s.SetTrap(call(":TRAP:SET:", "[10,20,0]", "OPEN", "0.1"))
	require.NoError(t, err)
	_, err = s.SetTrap(call(":TRAP:SET:", "[11,20,0]", "TRANSITION", "0.3"))
	require.NoError(t, err)
	_, err = s.SetTrap(call(":TRAP:SET:", "[10,20,1]", "FULL", "0.3"))
	require.NoError(t, err)

	result, err := s.Render(call(":RENDER:", viewJSON(10, 20)))
	require.NoError(t, err)

	f := decodeFrame(t, result)
	require.Len(t, f.Commands, 2)

	byShape := map[string]wire.DrawMessage{}
	for _, m := range f.Commands {
		byShape[m.Shape] = m
	}
	pie := byShape[wire.ShapePie]
	assert.InDelta(t, 0.9, pie.Progress, 1e-9)
	assert.Equal(t, 5.0, pie.Stroke)
	// oldest tier of an OPEN trap borders in the urgent color
	assert.Equal(t, "#ff0000ff", pie.Border)
	assert.Equal(t, 1.0, byShape[wire.ShapeFullCircle].Progress)

	require.Len(t, rec.frames, 1)
	assert.Equal(t, 3, rec.frames[0].Tracked)
	assert.Equal(t, 2, rec.frames[0].Emitted)
	assert.Equal(t, 1, rec.frames[0].Skipped["off_plane"])
}

func TestRender_FrameCounterAndStatus(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Init(call(":INIT:"))
	require.NoError(t, err)
	_, err = s.SetTrap(call(":TRAP:SET:", "[10,20,0]", "EMPTY", "0.7"))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		result, err := s.Render(call(":RENDER:", viewJSON(10, 20)))
		require.NoError(t, err)
		assert.Equal(t, want, decodeFrame(t, result).Number)
	}

	result, err := s.Status(call(":STATUS:"))
	require.NoError(t, err)
	st := result.(Status)
	assert.Equal(t, 1, st.Tracked)
	assert.Equal(t, 3, st.Frames)
	assert.True(t, st.PaletteLoaded)
	assert.Equal(t, 1, st.LastEmitted)
	assert.Empty(t, st.LastSkipped)
}

func TestRender_RecorderErrorIsNotFatal(t *testing.T) {
	s, rec := newTestService(t)
	rec.err = errors.New("backup writer not available")

	_, err := s.Render(call(":RENDER:", viewJSON(0, 0)))
	assert.NoError(t, err)
}

func TestRender_BadView(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Render(call(":RENDER:", `{"viewport": {}}`))
	assert.Error(t, err)

	_, err = s.Render(call(":RENDER:"))
	assert.Error(t, err)
}

func TestReloadConfig(t *testing.T) {
	s, _ := newTestService(t)
	fl := &flusher{}
	s.SetTelemetry(fl)

	dir := t.TempDir()
	writeConfig(t, dir, `{"colors": {"full": "#112233"}}`)
	_, err := s.Init(call(":INIT:", dir))
	require.NoError(t, err)
	before := s.deps.Mapper.Palette()

	writeConfig(t, dir, `{"colors": {"full": "#445566"}}`)
	_, err = s.ReloadConfig(call(":CONFIG:RELOAD:"))
	require.NoError(t, err)

	assert.Equal(t, "#445566", config.GetColors().Full)
	assert.NotSame(t, before, s.deps.Mapper.Palette())
	assert.Equal(t, 1, fl.calls)

	full, ok := s.deps.Mapper.Palette().Timer(core.StateFull, palette.Fresh)
	require.True(t, ok)
	assert.Equal(t, uint8(0x44), full.Border.R)
}

func TestRegister_AllCommands(t *testing.T) {
	s, _ := newTestService(t)
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	s.Register(d)

	assert.Equal(t, []string{
		":CONFIG:RELOAD:", ":INIT:", ":RENDER:", ":STATUS:",
		":TRAP:CLEAR:", ":TRAP:REMOVE:", ":TRAP:SET:", ":VERSION:",
	}, d.Commands())

	result, err := d.Dispatch(call(":CONFIG:RELOAD:"))
	require.NoError(t, err)
	assert.Equal(t, "queued", result)
}

func TestLogAttrs(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.SetTrap(call(":TRAP:SET:", "[1,1,0]", "OPEN", "1"))
	require.NoError(t, err)

	attrs := s.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "trackedTraps", attrs[0].Key)
	assert.Equal(t, int64(1), attrs[0].Value.Int64())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
