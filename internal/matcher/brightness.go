package matcher

import (
	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// BrightnessMatcher passes when the maximum grayscale value over the mask
// (or whole ROI) lies within [minValue, maxValue]; either bound is optional
// (use -1 to mean "unset").
type BrightnessMatcher struct {
	base
	minValue, maxValue int // -1 means unset
}

func NewBrightnessMatcher(roi model.ROI, mask gocv.Mat, minValue, maxValue int) *BrightnessMatcher {
	return &BrightnessMatcher{base: base{roi: roi, mask: mask}, minValue: minValue, maxValue: maxValue}
}

func (m *BrightnessMatcher) Match(frame model.Frame) bool {
	roiMat := m.cropped(frame)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roiMat, &gray, gocv.ColorBGRToGray)

	maxV := -1
	rows, cols := gray.Rows(), gray.Cols()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m.hasMask() && m.mask.GetUCharAt(r, c) == 0 {
				continue
			}
			v := int(gray.GetUCharAt(r, c))
			if v > maxV {
				maxV = v
			}
		}
	}
	if maxV < 0 {
		return false
	}
	if m.minValue >= 0 && maxV < m.minValue {
		return false
	}
	if m.maxValue >= 0 && maxV > m.maxValue {
		return false
	}
	return true
}
