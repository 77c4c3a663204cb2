package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/session"
)

// ErrQueueFull is returned by Record when plugins are falling behind and the
// event is dropped.
var ErrQueueFull = errors.New("hook queue full")

// queueSize bounds how many transitions may wait for a plugin.
const queueSize = 16

// Binding is the plugin action run for one event kind.
type Binding struct {
	Plugin string
	Action string
	Params json.RawMessage
}

// BindingsFromConfig converts the on_open/on_close configuration.
func BindingsFromConfig(cfg config.HooksConfig) (map[session.EventKind]Binding, error) {
	bindings := make(map[session.EventKind]Binding)
	for kind, action := range map[session.EventKind]*config.HookAction{
		session.EventHandOpen:   cfg.OnOpen,
		session.EventHandClosed: cfg.OnClose,
	} {
		if action == nil {
			continue
		}
		b := Binding{Plugin: action.Plugin, Action: action.Action}
		if len(action.Params) > 0 {
			params, err := json.Marshal(action.Params)
			if err != nil {
				return nil, fmt.Errorf("hook %q params: %w", kind, err)
			}
			b.Params = params
		}
		bindings[kind] = b
	}
	return bindings, nil
}

// Runner executes bound plugins for session events on its own goroutine so
// that a slow plugin never stalls frame processing.
type Runner struct {
	manager  *Manager
	executor *Executor
	bindings map[session.EventKind]Binding

	mu     sync.RWMutex
	queue  chan session.Event
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a Runner. Call Start before Record.
func NewRunner(manager *Manager, executor *Executor, bindings map[session.EventKind]Binding) *Runner {
	return &Runner{
		manager:  manager,
		executor: executor,
		bindings: bindings,
		queue:    make(chan session.Event, queueSize),
	}
}

// Start launches the worker. It exits when ctx is cancelled or Close is called.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-r.queue:
				if !ok {
					return
				}
				resp, err := r.Run(ctx, ev)
				switch {
				case err != nil:
					slog.Warn("hook failed", "event", ev.Kind, "error", err)
				case resp != nil && !resp.Success:
					slog.Warn("hook reported failure", "event", ev.Kind, "error", resp.Error)
				}
			}
		}
	}()
}

// Record queues ev for its bound plugin. Events without a binding are ignored.
func (r *Runner) Record(ev session.Event) error {
	if _, ok := r.bindings[ev.Kind]; !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}

	select {
	case r.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes the binding for ev synchronously. It returns nil, nil when ev
// has no binding.
func (r *Runner) Run(ctx context.Context, ev session.Event) (*Response, error) {
	b, ok := r.bindings[ev.Kind]
	if !ok {
		return nil, nil
	}

	plugin, err := r.manager.resolve(b)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Action:    b.Action,
		Event:     string(ev.Kind),
		Label:     string(ev.Kind.Label()),
		SessionID: ev.SessionID,
		Count:     ev.Count,
		At:        ev.At,
		Params:    b.Params,
	}
	return r.executor.Execute(ctx, plugin, req)
}

// Close stops accepting events and waits for queued ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
