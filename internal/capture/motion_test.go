package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	for _, threshold := range []float64{0.5, 1.0, 5.0} {
		md := NewMotionDetector(threshold)
		if got := md.Threshold(); got != threshold {
			t.Errorf("Threshold() = %f, want %f", got, threshold)
		}
		if md.initialized {
			t.Error("detector should not be initialized before the first frame")
		}
		md.Close()
	}
}

func TestMotionDetector_NilAndEmptyFrames(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if got := md.Detect(nil); got.Detected || got.ChangePercent != 0 {
		t.Errorf("Detect(nil) = %+v, want zero Motion", got)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if got := md.Detect(&empty); got.Detected {
		t.Errorf("Detect(empty) = %+v, want no motion", got)
	}
	if md.initialized {
		t.Error("empty frame must not set a baseline")
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	first := md.Detect(&frame1)
	if first.Detected || first.ChangePercent != 0 {
		t.Errorf("first frame = %+v, want baseline only", first)
	}

	second := md.Detect(&frame2)
	if second.Detected {
		t.Errorf("identical frames reported motion, change = %f", second.ChangePercent)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	got := md.Detect(&white)
	if !got.Detected {
		t.Errorf("black to white should detect motion, change = %f", got.ChangePercent)
	}
	if got.ChangePercent < 50.0 {
		t.Errorf("ChangePercent = %f, want > 50", got.ChangePercent)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	if !md.initialized {
		t.Fatal("detector should be initialized after first Detect")
	}

	md.Reset()
	if md.initialized {
		t.Error("detector should not be initialized after Reset")
	}
	if !md.prevGray.Empty() {
		t.Error("baseline should be empty after Reset")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if got := md.Threshold(); got != 5.0 {
		t.Errorf("Threshold() = %f, want 5.0", got)
	}

	md.SetThreshold(-1.0)
	if got := md.Threshold(); got != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", got)
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}

func TestMotionDetector_Detect_AfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	md.Close()

	if got := md.Detect(&frame); got.Detected {
		t.Error("first frame after Close should only set the baseline")
	}
	md.Close()
}
