package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/hunteroverlay/extension/internal/cache"
	"github.com/hunteroverlay/extension/internal/config"
	"github.com/hunteroverlay/extension/internal/dispatcher"
	"github.com/hunteroverlay/extension/internal/overlay"
	"github.com/hunteroverlay/extension/internal/palette"
	"github.com/hunteroverlay/extension/internal/parser"
	"github.com/hunteroverlay/extension/pkg/wire"
)

// FrameRecorder receives per-frame statistics, e.g. the InfluxDB writer.
type FrameRecorder interface {
	Record(stats overlay.FrameStats, took time.Duration) error
}

// Flusher pushes buffered telemetry out, e.g. the OTel provider.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger           *slog.Logger
	Mapper           *overlay.Mapper
	Traps            *cache.TrapCache
	Parser           *parser.Parser
	Recorder         FrameRecorder // optional
	Telemetry        Flusher       // optional
	ExtensionVersion string
	BuildDate        string
	// DefaultConfigDir is used when :INIT: carries no directory.
	DefaultConfigDir string
}

// Status is the :STATUS: reply.
type Status struct {
	Tracked       int            `json:"tracked"`
	Frames        int            `json:"frames"`
	PaletteLoaded bool           `json:"paletteLoaded"`
	LastEmitted   int            `json:"lastEmitted"`
	LastSkipped   map[string]int `json:"lastSkipped"`
}

// Service provides handler methods for host calls.
type Service struct {
	deps   Dependencies
	frames cache.SafeCounter

	mu        sync.Mutex
	lastStats overlay.FrameStats
}

func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// SetRecorder replaces the frame recorder; nil disables recording.
func (s *Service) SetRecorder(r FrameRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Recorder = r
}

// SetTelemetry replaces the telemetry flushed after a config reload.
func (s *Service) SetTelemetry(f Flusher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Telemetry = f
}

// Register wires every overlay command into d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", s.Init, dispatcher.Logged())
	d.Register(":VERSION:", s.Version)
	d.Register(":TRAP:SET:", s.SetTrap, dispatcher.Logged())
	d.Register(":TRAP:REMOVE:", s.RemoveTrap, dispatcher.Logged())
	d.Register(":TRAP:CLEAR:", s.ClearTraps, dispatcher.Logged())
	d.Register(":RENDER:", s.Render)
	// Reloading touches the disk, keep it off the host's frame thread.
	d.Register(":CONFIG:RELOAD:", s.ReloadConfig, dispatcher.Buffered(1), dispatcher.Logged())
	d.Register(":STATUS:", s.Status)
}

// Init loads the config file from the directory in args[0] and starts
// watching it for color changes.
func (s *Service) Init(c dispatcher.Call) (any, error) {
	dir := s.deps.DefaultConfigDir
	if len(c.Args) > 0 && c.Args[0] != "" {
		dir = c.Args[0]
	}

	if err := config.Load(dir); err != nil {
		// defaults still give a usable palette
		s.deps.Logger.Warn("Failed to load config, using defaults", "dir", dir, "error", err)
	}
	s.applyColors(config.GetColors())
	config.Watch(s.applyColors)

	return "ok", nil
}

func (s *Service) Version(dispatcher.Call) (any, error) {
	return []string{s.deps.ExtensionVersion, s.deps.BuildDate}, nil
}

// SetTrap stores or replaces a trap. Args: ["[x,y,plane]", state, timeRemaining]
func (s *Service) SetTrap(c dispatcher.Call) (any, error) {
	trap, err := s.deps.Parser.ParseTrap(c.Args)
	if err != nil {
		return nil, err
	}
	s.deps.Traps.Set(trap)
	return "ok", nil
}

// RemoveTrap drops the trap at args[0] and reports whether one was tracked.
func (s *Service) RemoveTrap(c dispatcher.Call) (any, error) {
	if len(c.Args) < 1 {
		return nil, errors.New("insufficient data fields: got 0, need 1")
	}
	wp, err := s.deps.Parser.ParseWorldPoint(c.Args[0])
	if err != nil {
		return nil, err
	}
	return s.deps.Traps.Remove(wp), nil
}

// ClearTraps forgets every trap and returns how many there were.
func (s *Service) ClearTraps(dispatcher.Call) (any, error) {
	n := s.deps.Traps.Len()
	s.deps.Traps.Reset()
	return n, nil
}

// Render draws the current snapshot for the view in args[0] and returns a
// wire.Frame as raw JSON.
func (s *Service) Render(c dispatcher.Call) (any, error) {
	if len(c.Args) < 1 {
		return nil, errors.New("insufficient data fields: got 0, need 1")
	}
	view, err := s.deps.Parser.ParseView(c.Args[0])
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cmds, stats := s.deps.Mapper.RenderStats(s.deps.Traps.Snapshot(), view)
	took := time.Since(start)

	msgs, err := wire.FromCommands(cmds)
	if err != nil {
		return nil, err
	}
	frame := wire.Frame{Number: s.frames.Inc(), Commands: msgs}

	s.mu.Lock()
	s.lastStats = stats
	rec := s.deps.Recorder
	s.mu.Unlock()

	if rec != nil {
		if err := rec.Record(stats, took); err != nil {
			s.deps.Logger.Debug("Frame stats not recorded", "error", err)
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return json.RawMessage(data), nil
}

// ReloadConfig re-reads the config file and swaps in the new palette.
func (s *Service) ReloadConfig(dispatcher.Call) (any, error) {
	if err := config.Reload(); err != nil {
		return nil, err
	}
	s.applyColors(config.GetColors())

	s.mu.Lock()
	tel := s.deps.Telemetry
	s.mu.Unlock()

	if tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Flush(ctx); err != nil {
			s.deps.Logger.Warn("Failed to flush OTel data", "error", err)
		}
	}
	return "ok", nil
}

func (s *Service) Status(dispatcher.Call) (any, error) {
	s.mu.Lock()
	last := s.lastStats
	s.mu.Unlock()

	skipped := map[string]int{}
	maps.Copy(skipped, last.Skipped)

	return Status{
		Tracked:       s.deps.Traps.Len(),
		Frames:        s.frames.Value(),
		PaletteLoaded: s.deps.Mapper.Palette() != nil,
		LastEmitted:   last.Emitted,
		LastSkipped:   skipped,
	}, nil
}

// LogAttrs describes the overlay state for the logging context handler.
func (s *Service) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("trackedTraps", s.deps.Traps.Len()),
		slog.Int("frame", s.frames.Value()),
	}
}

func (s *Service) applyColors(colors palette.Colors) {
	// Invalid colors are logged by the mapper; the valid ones still apply.
	_ = s.deps.Mapper.UpdateConfig(colors)
	s.deps.Logger.Info("Overlay palette updated",
		"open", colors.Open, "empty", colors.Empty, "full", colors.Full, "transition", colors.Transition)
}
