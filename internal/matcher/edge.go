package matcher

import (
	"image"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// cannyLow/cannyHigh and the Gaussian blur kernel are the "numerical parity
// with OpenCV" constants documented in spec.md §9.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// EdgeMatcher Canny-edges the ROI and the template, computes a distance
// transform of the complement of the ROI edges, convolves it with the
// template-edge mask, and passes iff the minimum of the response is <=
// threshold.
type EdgeMatcher struct {
	base
	template  gocv.Mat // grayscale template, edge-detected once at construction
	threshold float64
}

// NewEdgeMatcher builds an EdgeMatcher, running Canny over the (grayscale)
// template up front since it never changes.
func NewEdgeMatcher(roi model.ROI, mask gocv.Mat, templateGray gocv.Mat, threshold float64) *EdgeMatcher {
	blurred := gocv.NewMat()
	gocv.GaussianBlur(templateGray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, cannyLow, cannyHigh)
	blurred.Close()
	return &EdgeMatcher{base: base{roi: roi, mask: mask}, template: edges, threshold: threshold}
}

func (m *EdgeMatcher) Match(frame model.Frame) bool {
	roiMat := m.cropped(frame)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roiMat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, cannyLow, cannyHigh)

	// Complement: distance transform expects nonzero == foreground we keep
	// away from, so invert the ROI edge map first.
	inv := gocv.NewMat()
	defer inv.Close()
	gocv.BitwiseNot(edges, &inv)

	dist := gocv.NewMat()
	defer dist.Close()
	gocv.DistanceTransform(inv, &dist, gocv.NewMat(), gocv.DistL2, gocv.DistanceTransformMaskPrecise)

	result := gocv.NewMat()
	defer result.Close()
	if m.hasMask() {
		gocv.MatchTemplateWithMask(dist, m.template, &result, gocv.TmCcoeffNormed, m.mask)
	} else {
		gocv.MatchTemplate(dist, m.template, &result, gocv.TmCcoeffNormed, gocv.NewMat())
	}
	minVal, _, _, _ := gocv.MinMaxLoc(result)
	return float64(minVal) <= m.threshold
}
