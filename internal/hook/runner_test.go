package hook

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/session"
)

// recordingPlugin appends each request it receives to a file under dir.
func recordingPlugin(t *testing.T, dir string) (*Manager, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	out := filepath.Join(t.TempDir(), "requests.log")
	writePlugin(t, dir, Manifest{Name: "recorder", Executable: "run.sh", Actions: []string{"note"}},
		"#!/bin/sh\ncat >> "+out+"\necho >> "+out+"\necho '{\"success\":true}'\n")

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return manager, out
}

func TestRunner_Run(t *testing.T) {
	manager, out := recordingPlugin(t, t.TempDir())
	runner := NewRunner(manager, NewExecutor(5*time.Second), map[session.EventKind]Binding{
		session.EventHandClosed: {Plugin: "recorder", Action: "note"},
	})

	ev := session.Event{SessionID: "s1", Kind: session.EventHandClosed, Count: 2, At: time.Now()}
	resp, err := runner.Run(context.Background(), ev)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	var req Request
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &req); err != nil {
		t.Fatalf("bad request %q: %v", data, err)
	}
	if req.Action != "note" || req.Label != "Fist Closed" || req.Count != 2 {
		t.Errorf("request = %+v", req)
	}

	// Unbound events do nothing.
	resp, err = runner.Run(context.Background(), session.Event{Kind: session.EventHandOpen})
	if resp != nil || err != nil {
		t.Errorf("unbound Run() = %v, %v; want nil, nil", resp, err)
	}
}

func TestRunner_RunErrors(t *testing.T) {
	manager, _ := recordingPlugin(t, t.TempDir())

	t.Run("unknown plugin", func(t *testing.T) {
		runner := NewRunner(manager, NewExecutor(time.Second), map[session.EventKind]Binding{
			session.EventHandOpen: {Plugin: "missing", Action: "note"},
		})
		_, err := runner.Run(context.Background(), session.Event{Kind: session.EventHandOpen})
		if !errors.Is(err, ErrPluginNotFound) {
			t.Errorf("expected ErrPluginNotFound, got %v", err)
		}
	})

	t.Run("unsupported action", func(t *testing.T) {
		runner := NewRunner(manager, NewExecutor(time.Second), map[session.EventKind]Binding{
			session.EventHandOpen: {Plugin: "recorder", Action: "explode"},
		})
		_, err := runner.Run(context.Background(), session.Event{Kind: session.EventHandOpen})
		if !errors.Is(err, ErrUnsupportedAction) {
			t.Errorf("expected ErrUnsupportedAction, got %v", err)
		}
	})
}

func TestRunner_RecordRunsInBackground(t *testing.T) {
	manager, out := recordingPlugin(t, t.TempDir())
	runner := NewRunner(manager, NewExecutor(5*time.Second), map[session.EventKind]Binding{
		session.EventHandOpen:   {Plugin: "recorder", Action: "note"},
		session.EventHandClosed: {Plugin: "recorder", Action: "note"},
	})

	runner.Start(context.Background())

	for i, kind := range []session.EventKind{session.EventHandOpen, session.EventHandClosed, session.EventHandOpen} {
		if err := runner.Record(session.Event{SessionID: "s", Kind: kind, Count: i + 1, At: time.Now()}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// Close drains the queue before returning.
	runner.Close()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("plugin ran %d times, want 3", len(lines))
	}

	// Records after Close are dropped silently.
	if err := runner.Record(session.Event{Kind: session.EventHandOpen}); err != nil {
		t.Errorf("Record() after Close error = %v", err)
	}
}

func TestRunner_RecordQueueFull(t *testing.T) {
	runner := NewRunner(NewManager(t.TempDir()), NewExecutor(time.Second), map[session.EventKind]Binding{
		session.EventHandOpen: {Plugin: "p", Action: "a"},
	})

	// Without Start nothing drains the queue.
	var err error
	for i := 0; i <= queueSize; i++ {
		err = runner.Record(session.Event{Kind: session.EventHandOpen})
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	if err := runner.Record(session.Event{Kind: session.EventHandClosed}); err != nil {
		t.Errorf("unbound Record() error = %v", err)
	}
	runner.Close()
}

func TestBindingsFromConfig(t *testing.T) {
	bindings, err := BindingsFromConfig(config.HooksConfig{
		OnOpen: &config.HookAction{Plugin: "keyboard", Action: "press", Params: map[string]any{"key": "space"}},
	})
	if err != nil {
		t.Fatalf("BindingsFromConfig() error = %v", err)
	}

	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}
	b := bindings[session.EventHandOpen]
	if b.Plugin != "keyboard" || b.Action != "press" || string(b.Params) != `{"key":"space"}` {
		t.Errorf("binding = %+v", b)
	}
	if _, ok := bindings[session.EventHandClosed]; ok {
		t.Error("on_close was not configured")
	}
}
