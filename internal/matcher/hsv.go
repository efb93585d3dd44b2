package matcher

import (
	"image"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// HSVBounds is an inclusive (lower, upper) HSV range. Hue is in [0, 180) on
// the OpenCV convention; Saturation and Value are in [0, 255].
type HSVBounds struct {
	LowerH, LowerS, LowerV byte
	UpperH, UpperS, UpperV byte
}

func (b HSVBounds) lower() gocv.Scalar {
	return gocv.NewScalar(float64(b.LowerH), float64(b.LowerS), float64(b.LowerV), 0)
}

func (b HSVBounds) upper() gocv.Scalar {
	return gocv.NewScalar(float64(b.UpperH), float64(b.UpperS), float64(b.UpperV), 0)
}

// subsampleAreaThreshold is the ROI area above which HSV/HSVRatio matchers
// may downsample 2x to bound cost, per spec.md §4.1.
const subsampleAreaThreshold = 60 * 60

// HSVMatcher converts the ROI to HSV, builds a binary in-range mask, counts
// pixels (restricted to the optional mask) and compares the ratio to a
// threshold. If a mask is set with a tight bounding box and no ROI was
// given, it clips to that bbox first.
type HSVMatcher struct {
	base
	bounds    HSVBounds
	threshold float64
}

// NewHSVMatcher constructs an HSVMatcher. roi may be the zero value to use
// the whole frame (subject to mask-bbox clipping); mask may be the zero Mat
// to mean "no mask".
func NewHSVMatcher(roi model.ROI, mask gocv.Mat, bounds HSVBounds, threshold float64) *HSVMatcher {
	return &HSVMatcher{base: base{roi: roi, mask: mask}, bounds: bounds, threshold: threshold}
}

func (m *HSVMatcher) effectiveROI(frame model.Frame) model.ROI {
	if m.roi.Empty() && m.hasMask() {
		if x, y, w, h, ok := maskBoundingBox(m.mask); ok {
			return model.ROI{X: x, Y: y, W: w, H: h}
		}
	}
	return m.roi
}

func (m *HSVMatcher) Match(frame model.Frame) bool {
	roi := m.effectiveROI(frame)
	roiMat := frame.Crop(roi)
	work := roiMat
	scaled := false
	if roiMat.Rows()*roiMat.Cols() >= subsampleAreaThreshold {
		half := gocv.NewMat()
		gocv.Resize(roiMat, &half, image.Point{}, 0.5, 0.5, gocv.InterpolationLinear)
		work = half
		scaled = true
	}
	defer func() {
		if scaled {
			work.Close()
		}
	}()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(work, &hsv, gocv.ColorBGRToHSV)

	inRange := gocv.NewMat()
	defer inRange.Close()
	gocv.InRangeWithScalar(hsv, m.bounds.lower(), m.bounds.upper(), &inRange)

	var total, on int
	if m.hasMask() {
		maskWork := m.mask
		if roi != m.roi {
			// roi is the mask's bounding box: clip the mask the same way so
			// its pixels line up with the cropped frame.
			clipped := m.mask.Region(image.Rect(roi.X, roi.Y, roi.X+roi.W, roi.Y+roi.H))
			defer clipped.Close()
			maskWork = clipped
		}
		if scaled {
			half := gocv.NewMat()
			gocv.Resize(maskWork, &half, image.Point{}, 0.5, 0.5, gocv.InterpolationNearest)
			maskWork = half
			defer half.Close()
		}
		total, on = countMasked(inRange, maskWork)
	} else {
		total = inRange.Rows() * inRange.Cols()
		on = gocv.CountNonZero(inRange)
	}
	if total == 0 {
		return false
	}
	ratio := float64(on) / float64(total)
	return ratio >= m.threshold
}

// countMasked counts how many pixels of in (a 0/255 binary mat) are nonzero
// restricted to the positions where mask is nonzero, and the count of mask
// positions considered.
func countMasked(in, mask gocv.Mat) (total, on int) {
	rows, cols := in.Rows(), in.Cols()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mask.GetUCharAt(r, c) == 0 {
				continue
			}
			total++
			if in.GetUCharAt(r, c) != 0 {
				on++
			}
		}
	}
	return total, on
}
