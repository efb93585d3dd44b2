// Package matcher implements the closed set of image matchers (C1):
// composable pass/fail and scoring primitives over a single video frame,
// built on gocv.io/x/gocv so their numeric semantics track OpenCV exactly
// (TM_CCOEFF_NORMED template matching, Canny(50,150) edge
// detection with a 5x5 Gaussian blur, L2 distance transform) as required by
// spec.md's "Numerical parity with OpenCV" design note.
package matcher

import (
	"context"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// Matcher decides pass/fail for a single frame.
type Matcher interface {
	Match(frame model.Frame) bool
}

// Named is implemented by matchers usable inside a MatcherGroup; Name is the
// display name returned by MatchedName.
type Named interface {
	Matcher
	Name() string
}

// Scorer is implemented by matchers that can report a continuous score in
// addition to pass/fail, honoring cooperative cancellation during search
// (TemplateMatcher.Score per spec.md §4.1).
type Scorer interface {
	Score(ctx context.Context, frame model.Frame) (float64, error)
}

// base holds the ROI/mask fields shared by every matcher kind. Mask, when
// non-empty, is a single-channel grayscale mask the same size as the
// post-ROI-crop image; it is applied after the ROI crop per spec.md §4.1.
type base struct {
	roi  model.ROI
	mask gocv.Mat // may be the zero value (Empty() == true): no mask
}

// cropped returns the ROI-cropped view of frame as a grayscale-agnostic Mat.
// Callers must not Close the returned Mat: frame.Crop returns frame.Mat
// itself when the ROI is empty, and a Region view of it otherwise.
func (b base) cropped(frame model.Frame) gocv.Mat {
	return frame.Crop(b.roi)
}

// hasMask reports whether a mask is configured.
func (b base) hasMask() bool {
	return !b.mask.Empty()
}

// maskBoundingBox returns the tight bounding rectangle of nonzero mask
// pixels, used by HSVMatcher to clip when no ROI was given (spec.md §4.1).
// Implemented as a direct byte scan rather than gocv.FindNonZero +
// BoundingRect, since the input is a single-channel 8-bit mask and a linear
// scan is simpler to reason about than marshalling a point vector.
func maskBoundingBox(mask gocv.Mat) (x, y, w, h int, ok bool) {
	if mask.Empty() {
		return 0, 0, 0, 0, false
	}
	rows, cols := mask.Rows(), mask.Cols()
	minX, minY, maxX, maxY := cols, rows, -1, -1
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mask.GetUCharAt(r, c) == 0 {
				continue
			}
			if c < minX {
				minX = c
			}
			if c > maxX {
				maxX = c
			}
			if r < minY {
				minY = r
			}
			if r > maxY {
				maxY = r
			}
		}
	}
	if maxX < 0 {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX - minX + 1, maxY - minY + 1, true
}
