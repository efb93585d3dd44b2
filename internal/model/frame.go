// Package model holds the core, language-neutral data types shared across
// the capture-and-publish pipeline: frames, screen keys, match/rule/stage
// enumerations, rates, results, recording metadata and the on-disk asset
// shape.
package model

import (
	"image"

	"gocv.io/x/gocv"
)

// Frame is an immutable capture of one video frame, BGR, 8-bit. It carries no
// timestamp of its own; freshness is implicit in capture order.
//
// Frame wraps a gocv.Mat so matchers can run OpenCV primitives directly
// without a decode round-trip. Callers must not mutate Mat once a Frame has
// been handed off to analyzers.
type Frame struct {
	Mat gocv.Mat
}

// Bounds returns the frame's pixel rectangle.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
}

// Empty reports whether the frame carries no pixel data.
func (f Frame) Empty() bool {
	return f.Mat.Empty()
}

// Close releases the underlying Mat. Frames handed to long-lived state
// (weapon recognition's pending-frame mailbox, the result-frame held across
// the stop sequence) must be cloned with Frame.Clone before storing, since
// the capture loop reuses and closes the frame it produced once consumers
// have observed it.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// Clone returns a deep copy safe to retain beyond the current frame-loop
// iteration.
func (f Frame) Clone() Frame {
	return Frame{Mat: f.Mat.Clone()}
}

// ROI is a pixel rectangle used to crop a frame before matcher evaluation.
// A zero-value ROI means "whole frame".
type ROI struct {
	X, Y, W, H int
}

// Empty reports whether the ROI is unset (whole-frame).
func (r ROI) Empty() bool {
	return r.W == 0 && r.H == 0
}

// Rect converts the ROI to an image.Rectangle clamped to bounds.
func (r ROI) Rect(bounds image.Rectangle) image.Rectangle {
	if r.Empty() {
		return bounds
	}
	rect := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
	return rect.Intersect(bounds)
}

// Crop returns the sub-Mat for the ROI, or the whole frame if empty.
func (f Frame) Crop(r ROI) gocv.Mat {
	rect := r.Rect(f.Bounds())
	if rect.Empty() {
		return f.Mat
	}
	return f.Mat.Region(image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y))
}
