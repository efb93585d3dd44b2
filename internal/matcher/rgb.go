package matcher

import (
	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// RGBMatcher does exact BGR equality per pixel (restricted to mask if any);
// passes when the match ratio is >= threshold.
type RGBMatcher struct {
	base
	reference gocv.Mat // BGR reference image, same size as ROI
	threshold float64
}

func NewRGBMatcher(roi model.ROI, mask gocv.Mat, reference gocv.Mat, threshold float64) *RGBMatcher {
	return &RGBMatcher{base: base{roi: roi, mask: mask}, reference: reference, threshold: threshold}
}

func (m *RGBMatcher) Match(frame model.Frame) bool {
	roiMat := m.cropped(frame)
	rows, cols := roiMat.Rows(), roiMat.Cols()
	if rows != m.reference.Rows() || cols != m.reference.Cols() {
		return false
	}
	var total, matched int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m.hasMask() && m.mask.GetUCharAt(r, c) == 0 {
				continue
			}
			total++
			a := roiMat.GetVecbAt(r, c)
			b := m.reference.GetVecbAt(r, c)
			if a == b {
				matched++
			}
		}
	}
	if total == 0 {
		return false
	}
	return float64(matched)/float64(total) >= m.threshold
}
