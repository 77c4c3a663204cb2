// Package app runs the mudra pipeline: camera frames in, open/closed
// counts and transition events out.
package app

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// ErrTooManyReadFailures is reported by Err when the pipeline stopped because
// the camera kept failing.
var ErrTooManyReadFailures = errors.New("too many consecutive camera read failures")

// Presenter receives a snapshot after every classified frame. Present is
// called on the pipeline goroutine and must not block.
type Presenter interface {
	Present(snap session.Snapshot)
}

// EventSink receives open/closed transition events. Record is called on the
// pipeline goroutine; sinks that talk to slow peers queue the event and
// return.
type EventSink interface {
	Record(ev session.Event) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(session.Snapshot)

func (f PresenterFunc) Present(snap session.Snapshot) { f(snap) }

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(session.Event) error

func (f EventSinkFunc) Record(ev session.Event) error { return f(ev) }

// Config holds the collaborators and settings for an App. Camera and
// Detector are built from Settings when nil.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Frames   *capture.FrameBuffer
	Now      func() time.Time
}

// App owns the camera, the detector and the current session.
type App struct {
	config     Config
	settings   *config.Config
	camera     capture.Camera
	motion     *capture.MotionDetector
	detector   detector.Detector
	classifier *gesture.Classifier
	frames     *capture.FrameBuffer
	presenters []Presenter
	sinks      []EventSink
	session    *session.Session
	enabled    bool
	err        error
	mu         sync.RWMutex
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New creates an App. Detection starts enabled.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	rule, err := gesture.ParseThumbRule(settings.Classifier.ThumbRule)
	if err != nil {
		return nil, err
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &App{
		config:     cfg,
		settings:   settings,
		camera:     cfg.Camera,
		motion:     capture.NewMotionDetector(settings.Pipeline.MotionThreshold),
		classifier: gesture.NewClassifier(rule),
		frames:     cfg.Frames,
		enabled:    true,
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Config{
			DeviceID: settings.Camera.DeviceID,
			Width:    settings.Camera.Width,
			Height:   settings.Camera.Height,
		})
	}

	det := cfg.Detector
	if det == nil {
		det = newDetector(settings.Detector)
	}
	a.detector = detector.WithTimeout(det, settings.Detector.FrameTimeout())

	if cfg.Store != nil {
		a.sinks = append(a.sinks, cfg.Store)
	}

	return a, nil
}

// newDetector prefers MediaPipe and falls back to the mock detector, which
// reports no hands, so the rest of the app still runs.
func newDetector(cfg config.DetectorConfig) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.MaxHands,
		MinConfidence:   cfg.MinDetectionConfidence,
		MinTrackingConf: cfg.MinTrackingConfidence,
	})
	if err != nil {
		slog.Warn("mediapipe not available, using mock detector", "error", err)
		return detector.NewMockDetector()
	}
	slog.Info("using mediapipe hand detection")
	return mp
}

// AddPresenter registers p for per-frame snapshots. Call before Start.
func (a *App) AddPresenter(p Presenter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.presenters = append(a.presenters, p)
}

// AddEventSink registers s for transition events. Call before Start.
func (a *App) AddEventSink(s EventSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled pauses or resumes detection. Frames are not read while paused.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether detection is running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera, begins a new session and launches the pipeline.
// Starting a running App is a no-op. If the pipeline ended on its own, its
// session is finished and a new one begins.
func (a *App) Start() error {
	if a.exited() {
		a.Stop()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.settings.Pipeline.IdleFPS)

	sess := session.New(
		session.WithHistorySize(a.settings.Session.HistorySize),
		session.WithClock(a.config.Now),
	)
	if a.config.Store != nil {
		rec := &store.Session{
			ID:        sess.ID(),
			ThumbRule: string(a.classifier.ThumbRule()),
			StartedAt: sess.StartedAt(),
		}
		if err := a.config.Store.Sessions().Create(rec); err != nil {
			a.camera.Close()
			return err
		}
	}

	a.session = sess
	a.err = nil
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	slog.Info("pipeline started", "session", sess.ID(), "thumb_rule", a.classifier.ThumbRule())
	return nil
}

// exited reports whether a started pipeline has returned without Stop.
func (a *App) exited() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopCh == nil {
		return false
	}
	select {
	case <-a.doneCh:
		return true
	default:
		return false
	}
}

// Stop halts the pipeline, releases the camera and detector, and closes the
// session record. Stopping a stopped App is a no-op.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		slog.Error("closing camera", "error", err)
	}
	a.motion.Close()
	if err := a.detector.Close(); err != nil {
		slog.Error("closing detector", "error", err)
	}

	sess := a.Session()
	if a.config.Store != nil && sess != nil {
		err := a.config.Store.Sessions().Finish(sess.ID(), a.config.Now(), sess.OpenCount(), sess.ClosedCount())
		if err != nil {
			slog.Error("finishing session", "session", sess.ID(), "error", err)
		}
	}

	slog.Info("pipeline stopped", "session", sess.ID())
}

// Done is closed when the pipeline goroutine exits, either through Stop or
// because the camera failed. It is nil before the first Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// Err returns why the pipeline stopped on its own, or nil.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Session returns the current or most recent session, or nil before Start.
func (a *App) Session() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Frames returns the frame buffer fed to stream viewers, or nil.
func (a *App) Frames() *capture.FrameBuffer {
	return a.frames
}

// Classifier returns the classifier in use.
func (a *App) Classifier() *gesture.Classifier {
	return a.classifier
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
