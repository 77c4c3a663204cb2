package tray

import (
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		want view
	}{
		{
			name: "empty snapshot",
			snap: session.Snapshot{},
			want: view{
				Title:   "Open 0 | Closed 0",
				Label:   "Gesture: No Hand Detected",
				Fingers: "Fingers raised: 0",
				Counts:  "Hand Open Count: 0  Hand Closed Count: 0",
				Elapsed: "Time Elapsed: 00:00:00",
			},
		},
		{
			name: "open hand mid-session",
			snap: session.Snapshot{
				Label:         gesture.LabelHandOpen,
				FingersRaised: 4,
				OpenCount:     3,
				ClosedCount:   2,
				Elapsed:       time.Hour + 2*time.Minute + 5*time.Second,
			},
			want: view{
				Title:   "Open 3 | Closed 2",
				Label:   "Gesture: Hand Open",
				Fingers: "Fingers raised: 4",
				Counts:  "Hand Open Count: 3  Hand Closed Count: 2",
				Elapsed: "Time Elapsed: 01:02:05",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(tt.snap); got != tt.want {
				t.Errorf("render() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTray_PresentBeforeReady(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Error("tray should start enabled")
	}

	tr.Present(session.Snapshot{Label: gesture.LabelFistClosed, ClosedCount: 1})
	if tr.view.Label != "Gesture: Fist Closed" {
		t.Errorf("view.Label = %q", tr.view.Label)
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()

	opened := false
	tr.OnDashboard(func() { opened = true })
	tr.handleDashboard()
	if !opened {
		t.Error("dashboard callback not called")
	}
}
