// Package capture is the default capture source (spec.md §6): setup(),
// capture() → Frame?, teardown(). The default implementation opens a
// gocv.VideoCapture against a V4L2 device, an RTMP/HTTP stream URL (for NDI
// or HDMI capture boxes exposing an RTMP surface), or an avfoundation index
// on macOS — the same set of sources the teacher's ffmpeg -f
// v4l2/avfoundation/dshow invocation targets, decoded in-process instead of
// shelled out to ffmpeg so matchers can run OpenCV directly on the result.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// Source is the spec's capture-source contract.
type Source interface {
	Setup() error
	Capture() (model.Frame, bool)
	Teardown() error
}

// Device is the default Source. Addr is either a bare device index ("0"),
// a V4L2 path ("/dev/video0"), or a stream URL ("rtmp://host/live/key",
// "http://host/stream.mjpeg").
type Device struct {
	Addr      string
	Width     int
	Height    int
	FPS       int
	MaxRetries int

	cap *gocv.VideoCapture
}

// New returns a Device with spec.md §6's documented 1920x1080 default
// resolution.
func New(addr string) *Device {
	return &Device{Addr: addr, Width: 1920, Height: 1080, FPS: 30, MaxRetries: 3}
}

// Setup opens the underlying video device or stream.
func (d *Device) Setup() error {
	var vc *gocv.VideoCapture
	var err error
	if idx, convErr := strconv.Atoi(d.Addr); convErr == nil && !strings.Contains(d.Addr, "/") {
		vc, err = gocv.OpenVideoCapture(idx)
	} else if isStreamURL(d.Addr) {
		vc, err = gocv.OpenVideoCapture(d.Addr)
	} else {
		// Device paths (/dev/videoN) and avfoundation indices are opened the
		// same way OpenCV's own FFmpeg/V4L2 backend expects for this OS.
		switch runtime.GOOS {
		case "linux", "darwin":
			vc, err = gocv.OpenVideoCapture(d.Addr)
		default:
			return fmt.Errorf("capture: unsupported platform %s for addr %q", runtime.GOOS, d.Addr)
		}
	}
	if err != nil {
		return fmt.Errorf("capture: open %q: %w", d.Addr, err)
	}
	if d.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(d.Width))
	}
	if d.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(d.Height))
	}
	if d.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(d.FPS))
	}
	d.cap = vc
	slog.Info("capture: opened", "addr", d.Addr, "width", d.Width, "height", d.Height)
	return nil
}

func isStreamURL(addr string) bool {
	for _, prefix := range []string{"rtmp://", "rtmps://", "http://", "https://"} {
		if strings.HasPrefix(addr, prefix) {
			return true
		}
	}
	return false
}

// Capture reads one frame. Per spec.md §6, a transient read failure returns
// (zero, false) rather than an error — the caller's loop continues.
func (d *Device) Capture() (model.Frame, bool) {
	if d.cap == nil {
		return model.Frame{}, false
	}
	mat := gocv.NewMat()
	if ok := d.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return model.Frame{}, false
	}
	return model.Frame{Mat: mat}, true
}

// Teardown releases the underlying capture device.
func (d *Device) Teardown() error {
	if d.cap == nil {
		return nil
	}
	err := d.cap.Close()
	d.cap = nil
	return err
}

// Loop pulls frames from src at roughly the configured rate until stop
// closes, handing each successfully captured frame to onFrame — the
// capture-side half of the producer/consumer split the teacher's
// filterMotion/processMotion pipeline establishes for motion events.
func Loop(src Source, interval time.Duration, stop <-chan struct{}, onFrame func(model.Frame)) error {
	if err := src.Setup(); err != nil {
		return err
	}
	defer func() {
		if err := src.Teardown(); err != nil {
			slog.Warn("capture: teardown", "err", err)
		}
	}()

	consecutiveFailures := 0
	const maxConsecutiveFailures = 50
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			frame, ok := src.Capture()
			if !ok {
				consecutiveFailures++
				if consecutiveFailures >= maxConsecutiveFailures {
					return errors.New("capture: too many consecutive read failures")
				}
				continue
			}
			consecutiveFailures = 0
			onFrame(frame)
		}
	}
}
