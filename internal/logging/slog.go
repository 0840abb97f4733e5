package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Options selects the outputs of SlogManager.Setup.
type Options struct {
	// File receives text logs when non-nil.
	File io.Writer
	// Level is one of DEBUG, INFO, WARN, ERROR; anything else means INFO.
	Level string
	// Provider enables the OTel bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// GraylogAddress enables GELF over UDP when non-empty.
	GraylogAddress string
	// Context adds dynamic attributes (plane, tracked traps) to every record.
	Context ContextProvider
}

// osStdout is swapped by tests to capture console output
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel and Graylog integration.
// Loggers returned by Logger keep following later Setup calls.
type SlogManager struct {
	logger *slog.Logger
	live   atomic.Pointer[slog.Handler]

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
	gelf        *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. It may be called again once the config
// has been read; the previous Graylog writer is closed.
func (m *SlogManager) Setup(opts Options) error {
	lvl := parseLevel(opts.Level)
	m.logProvider = opts.Provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	// The host owns stdout once a log file is available
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler("trap-overlay", otelslog.WithLoggerProvider(opts.Provider)))
	}

	if m.gelf != nil {
		m.gelf.Close()
		m.gelf = nil
	}
	var gelfErr error
	if opts.GraylogAddress != "" {
		w, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			gelfErr = fmt.Errorf("creating graylog writer: %w", err)
		} else {
			m.gelf = w
			handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		}
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.live.Store(&h)
	if m.logger == nil {
		m.logger = slog.New(&liveHandler{root: &m.live})
	}
	m.logger.Info("Logging initialized", "level", opts.Level, "graylog", m.gelf != nil)
	if gelfErr != nil {
		m.logger.Warn("Graylog output disabled", "error", gelfErr)
	}
	return gelfErr
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases the Graylog connection.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	return err
}

// liveHandler forwards to the handler installed by the latest Setup,
// replaying any WithAttrs/WithGroup calls made on it.
type liveHandler struct {
	root *atomic.Pointer[slog.Handler]
	ops  []func(slog.Handler) slog.Handler
}

func (h *liveHandler) current() slog.Handler {
	cur := *h.root.Load()
	for _, op := range h.ops {
		cur = op(cur)
	}
	return cur
}

func (h *liveHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.root.Load()).Enabled(ctx, level)
}

func (h *liveHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *liveHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *liveHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *liveHandler) with(op func(slog.Handler) slog.Handler) *liveHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &liveHandler{root: h.root, ops: append(ops, op)}
}
