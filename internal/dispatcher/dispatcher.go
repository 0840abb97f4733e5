package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Call is one command received from the host.
type Call struct {
	Command  string
	Args     []string
	Received time.Time
}

// HandlerFunc processes a call and returns a result for the host.
type HandlerFunc func(Call) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of the given
// size. The host gets "queued" back immediately.
func Buffered(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// Blocking makes a buffered handler wait for queue space instead of dropping.
func Blocking() Option {
	return func(o *options) {
		o.blocking = true
	}
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Dispatcher routes host calls to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	calls     metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	buffers map[string]chan Call
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter provider.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Call),
		logger:   logger,
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"overlay.host.queue.size",
		metric.WithDescription("Calls waiting in a buffered handler queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.calls, err = m.Int64Counter(
		"overlay.host.calls",
		metric.WithDescription("Host calls handled, by command and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calls counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"overlay.host.dropped",
		metric.WithDescription("Host calls dropped because a queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command, replacing any previous one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.counted(command, h)

	if o.bufferSize > 0 {
		handler = d.withBuffer(command, o.bufferSize, o.blocking, handler)
	}

	if o.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes a call to its registered handler.
func (d *Dispatcher) Dispatch(c Call) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[c.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, c.Command)
	}
	if c.Received.IsZero() {
		c.Received = time.Now()
	}
	return h(c)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cmds := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		cmds = append(cmds, cmd)
	}
	slices.Sort(cmds)
	return cmds
}

// Close stops accepting buffered calls and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) counted(command string, h HandlerFunc) HandlerFunc {
	return func(c Call) (any, error) {
		result, err := h(c)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		d.calls.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("outcome", outcome),
		))
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Call, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for c := range buffer {
			if _, err := h(c); err != nil {
				d.logger.Error("queued call failed", "command", command, "error", err)
			}
		}
	}()

	return func(c Call) (any, error) {
		// Holding the read lock keeps Close from closing the channel mid-send.
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}

		if blocking {
			buffer <- c
			return "queued", nil
		}

		select {
		case buffer <- c:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(c Call) (any, error) {
		start := time.Now()
		d.logger.Debug("handling call", "command", command, "args", len(c.Args))

		result, err := h(c)

		if err != nil {
			d.logger.Error("call failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("call complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
