package matcher

import (
	"math"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// UniformColorMatcher passes when the standard deviation of the Hue channel
// over the mask (or whole ROI, if no mask) is <= hueThreshold.
type UniformColorMatcher struct {
	base
	hueThreshold float64
}

func NewUniformColorMatcher(roi model.ROI, mask gocv.Mat, hueThreshold float64) *UniformColorMatcher {
	return &UniformColorMatcher{base: base{roi: roi, mask: mask}, hueThreshold: hueThreshold}
}

func (m *UniformColorMatcher) Match(frame model.Frame) bool {
	roiMat := m.cropped(frame)
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roiMat, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	hue := channels[0]

	var values []float64
	rows, cols := hue.Rows(), hue.Cols()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m.hasMask() && m.mask.GetUCharAt(r, c) == 0 {
				continue
			}
			values = append(values, float64(hue.GetUCharAt(r, c)))
		}
	}
	if len(values) == 0 {
		return false
	}
	return stddev(values) <= m.hueThreshold
}

func stddev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
