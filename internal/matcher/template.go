package matcher

import (
	"context"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// TemplateMatcher runs normalized-cross-correlation template matching
// (OpenCV's TM_CCOEFF_NORMED) of the grayscale ROI against a grayscale
// template, optionally restricted by mask; passes iff the peak correlation
// is >= threshold.
type TemplateMatcher struct {
	base
	template  gocv.Mat // grayscale
	threshold float64
}

func NewTemplateMatcher(roi model.ROI, mask gocv.Mat, template gocv.Mat, threshold float64) *TemplateMatcher {
	return &TemplateMatcher{base: base{roi: roi, mask: mask}, template: template, threshold: threshold}
}

func (m *TemplateMatcher) Match(frame model.Frame) bool {
	score, err := m.Score(context.Background(), frame)
	if err != nil {
		return false
	}
	return score >= m.threshold
}

// Score returns the peak TM_CCOEFF_NORMED correlation, honoring ctx
// cancellation before the (potentially expensive) search runs.
func (m *TemplateMatcher) Score(ctx context.Context, frame model.Frame) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roiMat := m.cropped(frame)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roiMat, &gray, gocv.ColorBGRToGray)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result := gocv.NewMat()
	defer result.Close()
	if m.hasMask() {
		gocv.MatchTemplateWithMask(gray, m.template, &result, gocv.TmCcoeffNormed, m.mask)
	} else {
		gocv.MatchTemplate(gray, m.template, &result, gocv.TmCcoeffNormed, gocv.NewMat())
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return float64(maxVal), nil
}
