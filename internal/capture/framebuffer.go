package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent JPEG-encoded frame for stream viewers.
// The pipeline publishes into it so that viewers never read the camera
// themselves.
type FrameBuffer struct {
	mu      sync.Mutex
	data    []byte
	seq     uint64
	ready   chan struct{}
	viewers int
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{ready: make(chan struct{})}
}

// Publish stores a copy of jpeg and wakes every waiting viewer.
func (b *FrameBuffer) Publish(jpeg []byte) {
	data := make([]byte, len(jpeg))
	copy(data, jpeg)

	b.mu.Lock()
	b.data = data
	b.seq++
	close(b.ready)
	b.ready = make(chan struct{})
	b.mu.Unlock()
}

// PublishMat encodes frame as JPEG and publishes it. It does nothing while
// no viewer is watching.
func (b *FrameBuffer) PublishMat(frame *gocv.Mat) error {
	if !b.Watching() || frame == nil || frame.Empty() {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	b.Publish(buf.GetBytes())
	return nil
}

// Next blocks until a frame newer than after is available and returns it
// with its sequence number.
func (b *FrameBuffer) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > after {
			data, seq := b.data, b.seq
			b.mu.Unlock()
			return data, seq, nil
		}
		ready := b.ready
		b.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}

// Watch registers a viewer. Call the returned function when the viewer leaves.
func (b *FrameBuffer) Watch() (release func()) {
	b.mu.Lock()
	b.viewers++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.viewers--
			b.mu.Unlock()
		})
	}
}

// Watching reports whether any viewer is registered.
func (b *FrameBuffer) Watching() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewers > 0
}
