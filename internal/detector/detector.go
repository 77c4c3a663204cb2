package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrDetectTimeout is returned by a timeout-wrapped detector when a single
// frame takes longer than the configured budget.
var ErrDetectTimeout = errors.New("hand detection timed out")

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
	}
}

// timeoutDetector bounds each Detect call. At most one inner call runs at a
// time; busy holds its slot.
type timeoutDetector struct {
	inner   Detector
	timeout time.Duration
	busy    chan struct{}
}

type detectResult struct {
	hands []HandLandmarks
	err   error
}

// WithTimeout wraps d so that a Detect call returns ErrDetectTimeout once
// timeout elapses. A non-positive timeout returns d unchanged.
//
// The underlying call is not interrupted. It runs on a clone of the frame,
// so the caller may close its frame as soon as Detect returns. While a
// timed-out call is still running, later frames fail with ErrDetectTimeout
// at once and are never cloned.
func WithTimeout(d Detector, timeout time.Duration) Detector {
	if timeout <= 0 || d == nil {
		return d
	}
	return &timeoutDetector{
		inner:   d,
		timeout: timeout,
		busy:    make(chan struct{}, 1),
	}
}

func (t *timeoutDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	select {
	case t.busy <- struct{}{}:
	default:
		return nil, fmt.Errorf("%w: previous frame still running", ErrDetectTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	var clone *gocv.Mat
	if frame != nil {
		c := frame.Clone()
		clone = &c
	}

	done := make(chan detectResult, 1)
	go func() {
		defer func() { <-t.busy }()
		if clone != nil {
			defer clone.Close()
		}
		hands, err := t.inner.Detect(clone)
		done <- detectResult{hands: hands, err: err}
	}()

	select {
	case r := <-done:
		return r.hands, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrDetectTimeout, t.timeout)
	}
}

func (t *timeoutDetector) Close() error {
	return t.inner.Close()
}
