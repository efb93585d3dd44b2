package matcher

import (
	"image"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// HSVRatioMatcher is an HSVMatcher variant that always evaluates against the
// whole ROI (no mask); 2x subsampling is permitted on the same area
// threshold.
type HSVRatioMatcher struct {
	base
	bounds    HSVBounds
	threshold float64
}

func NewHSVRatioMatcher(roi model.ROI, bounds HSVBounds, threshold float64) *HSVRatioMatcher {
	return &HSVRatioMatcher{base: base{roi: roi}, bounds: bounds, threshold: threshold}
}

func (m *HSVRatioMatcher) Match(frame model.Frame) bool {
	roiMat := m.cropped(frame)
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

	total := inRange.Rows() * inRange.Cols()
	if total == 0 {
		return false
	}
	on := gocv.CountNonZero(inRange)
	return float64(on)/float64(total) >= m.threshold
}
