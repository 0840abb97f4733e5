// Package hostapi exposes the overlay to a host that loads it as a shared
// library. Every call returns a JSON array: ["ok", <result>] or
// ["error", "<message>"].
package hostapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hunteroverlay/extension/internal/dispatcher"
)

// Dispatcher is the subset of dispatcher.Dispatcher the bridge needs.
type Dispatcher interface {
	HasHandler(command string) bool
	Dispatch(c dispatcher.Call) (any, error)
}

// Bridge routes host calls to a Dispatcher and formats the replies.
type Bridge struct {
	mu         sync.RWMutex
	version    string
	dispatcher Dispatcher
}

var bridge = NewBridge()

func NewBridge() *Bridge {
	return &Bridge{version: "No version set"}
}

// SetVersion sets the version string returned by OverlayVersion.
func SetVersion(version string) { bridge.SetVersion(version) }

// SetDispatcher installs the dispatcher used by OverlayCall.
func SetDispatcher(d Dispatcher) { bridge.SetDispatcher(d) }

func (b *Bridge) SetVersion(version string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version = version
}

func (b *Bridge) Version() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

func (b *Bridge) SetDispatcher(d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

// Call handles one host call. :TIMESTAMP: is answered without a dispatcher.
func (b *Bridge) Call(command string, args []string) string {
	if command == ":TIMESTAMP:" {
		return formatResponse(strconv.FormatInt(time.Now().UTC().UnixNano(), 10), nil)
	}

	b.mu.RLock()
	d := b.dispatcher
	b.mu.RUnlock()

	if d == nil || !d.HasHandler(command) {
		return formatResponse(nil, fmt.Errorf("%s: no handler registered", command))
	}

	result, err := d.Dispatch(dispatcher.Call{
		Command:  command,
		Args:     args,
		Received: time.Now(),
	})
	return formatResponse(result, err)
}

// formatResponse encodes a handler result for the host. A json.RawMessage
// result is embedded as is.
func formatResponse(result any, err error) string {
	if err != nil {
		return mustMarshal([]any{"error", err.Error()})
	}
	data, mErr := json.Marshal([]any{"ok", result})
	if mErr != nil {
		return mustMarshal([]any{"error", "encoding result: " + mErr.Error()})
	}
	return string(data)
}

func mustMarshal(v []any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// only strings reach here
		panic(err)
	}
	return string(data)
}

// fitResponse returns resp if it fits in a host buffer of limit bytes
// including the terminating NUL, otherwise an error reply.
func fitResponse(resp string, limit int) string {
	if len(resp)+1 <= limit {
		return resp
	}
	msg := formatResponse(nil, fmt.Errorf("response of %d bytes exceeds host buffer of %d", len(resp), limit))
	if len(msg)+1 <= limit {
		return msg
	}
	return ""
}
