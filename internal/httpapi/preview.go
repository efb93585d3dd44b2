package httpapi

import (
	"context"
	"iter"
	"sync"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// FrameHub broadcasts JPEG-encoded frames to any number of MJPEG listeners,
// adapted from the teacher's broadcastFrames: instead of demuxing ffmpeg's
// own mpjpeg output, it JPEG-encodes frames the capture fan-out already
// produced in-process.
type FrameHub struct {
	mu        sync.Mutex
	lastFrame []byte
	listeners []chan []byte
}

// Publish encodes frame to JPEG and fans it out to current listeners,
// dropping the frame for any listener whose channel is full (the newest
// frame always supersedes a pending one, same as the capture loop itself).
func (h *FrameHub) Publish(frame model.Frame) {
	buf, err := gocv.IMEncode(".jpg", frame.Mat)
	if err != nil {
		return
	}
	defer buf.Close()
	b := append([]byte(nil), buf.GetBytes()...)

	h.mu.Lock()
	h.lastFrame = b
	listeners := make([]chan []byte, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, l := range listeners {
		select {
		case l <- b:
		default:
		}
	}
}

// relay yields the last known frame immediately, then every subsequent
// published frame until ctx is done.
func (h *FrameHub) relay(ctx context.Context) iter.Seq[[]byte] {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	last := h.lastFrame
	h.mu.Unlock()
	return func(yield func([]byte) bool) {
		defer func() {
			h.mu.Lock()
			for i := range h.listeners {
				if h.listeners[i] == ch {
					copy(h.listeners[i:], h.listeners[i+1:])
					h.listeners = h.listeners[:len(h.listeners)-1]
					break
				}
			}
			h.mu.Unlock()
		}()
		if last != nil && ctx.Err() == nil && !yield(last) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-ch:
				if !yield(frame) {
					return
				}
			}
		}
	}
}
