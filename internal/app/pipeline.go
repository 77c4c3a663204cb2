package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

// runPipeline is the frame loop. Each tick it:
//  1. reads a frame
//  2. runs motion detection and adjusts the frame rate
//  3. hands the frame to stream viewers
//  4. detects hands and classifies the first one
//  5. updates the session and fans out the snapshot and any transition
//
// A camera that fails MaxReadFailures times in a row ends the loop.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	cfg := a.settings.Pipeline
	pacer := capture.NewPacer(cfg.IdleFPS, cfg.ActiveFPS, cfg.IdleTimeout())

	ticker := time.NewTicker(pacer.Interval())
	defer ticker.Stop()

	failures := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			failures++
			slog.Warn("reading frame", "error", err, "consecutive", failures)
			if cfg.MaxReadFailures > 0 && failures >= cfg.MaxReadFailures {
				a.fail(errors.Join(ErrTooManyReadFailures, err))
				return
			}
			continue
		}
		failures = 0

		motion := a.motion.Detect(frame)
		if fps, changed := pacer.Observe(motion.Detected, a.config.Now()); changed {
			a.camera.SetFPS(fps)
			ticker.Reset(pacer.Interval())
			slog.Debug("frame rate changed", "fps", fps, "active", pacer.Active(), "change", motion.ChangePercent)
		}

		if a.frames != nil {
			if err := a.frames.PublishMat(frame); err != nil {
				slog.Warn("publishing stream frame", "error", err)
			}
		}

		hands, err := a.Detector().Detect(frame)
		frame.Close()
		if err != nil {
			slog.Warn("detecting hands", "error", err)
			continue
		}

		if _, err := a.observe(hands); err != nil {
			slog.Warn("skipping frame", "error", err)
		}
	}
}

// observe classifies one frame's hands and feeds the result to the session
// and every registered presenter and sink.
func (a *App) observe(hands []detector.HandLandmarks) (gesture.Result, error) {
	result, err := a.classifier.ClassifyHands(hands)
	if err != nil {
		return result, err
	}

	a.mu.RLock()
	sess := a.session
	presenters := a.presenters
	sinks := a.sinks
	a.mu.RUnlock()

	if sess == nil {
		return result, nil
	}

	ev := sess.Observe(result)
	snap := sess.Snapshot()

	for _, p := range presenters {
		p.Present(snap)
	}

	if ev != nil {
		slog.Info("transition", "session", ev.SessionID, "event", ev.Kind, "count", ev.Count)
		a.dispatch(sinks, *ev)
	}

	return result, nil
}

func (a *App) dispatch(sinks []EventSink, ev session.Event) {
	for _, s := range sinks {
		if err := s.Record(ev); err != nil {
			slog.Error("recording event", "event", ev.Kind, "error", err)
		}
	}
}

func (a *App) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
	slog.Error("pipeline stopped", "error", err)
}
