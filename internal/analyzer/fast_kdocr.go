package analyzer

import (
	"context"
	"image"
	"strconv"
	"strings"

	"github.com/nasubidev/splatrecorder/internal/ocr"
	"gocv.io/x/gocv"
)

// FastKDOCR is the optional `_fast` strategy spec.md §9 Open Question 1
// leaves undecided: stack the three preprocessed ROIs vertically and OCR
// once instead of three separate invocations, splitting the result by row.
// It is not wired into any code path: config.FeatureFlags.FastKDOCR exists
// in the settings but nothing reads it, so the battle plugin always uses
// KDOCR. Its semantics beyond "one OCR call split by newline" are an
// assumption, not a documented guarantee.
type FastKDOCR struct {
	Reader ocr.Reader
}

func NewFastKDOCR(reader ocr.Reader) *FastKDOCR {
	return &FastKDOCR{Reader: reader}
}

// Extract stacks the three processed ROIs top to bottom (kill, death,
// special, matching the field order the rest of the package uses) and runs
// a single sparse-text OCR pass, assuming tesseract's newline-per-row
// output lines up one row per source ROI. Falls back to failing the whole
// extraction (ok=false) if the row count after OCR doesn't match.
func (f *FastKDOCR) Extract(ctx context.Context, kill, death, special gocv.Mat) (killN, deathN, specialN int, ok bool) {
	pk := preprocess(kill)
	defer pk.Close()
	pd := preprocess(death)
	defer pd.Close()
	ps := preprocess(special)
	defer ps.Close()

	stacked, err := stackVertically(pk, pd, ps)
	if err != nil {
		return 0, 0, 0, false
	}
	defer stacked.Close()

	text, err := f.Reader.Read(ctx, ocr.Request{Image: stacked, PSM: ocr.PSMSparseText, Whitelist: "0123456789"})
	if err != nil {
		return 0, 0, 0, false
	}
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	if len(lines) != 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, line := range lines {
		m := trailingDigitsRE.FindStringSubmatch(line)
		if m == nil {
			return 0, 0, 0, false
		}
		v, err := strconv.Atoi(strings.TrimLeft(m[1], "0"))
		if err != nil {
			v = 0
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], true
}

// stackVertically lays each Mat into a fresh zero-initialized Mat wide
// enough for the widest input, one below the other. Implemented via direct
// region copy rather than a vconcat helper so every input's width (already
// close after preprocess's fixed padding, but not guaranteed identical) is
// tolerated without a separate border step.
func stackVertically(mats ...gocv.Mat) (gocv.Mat, error) {
	maxW := 0
	totalH := 0
	for _, m := range mats {
		if m.Cols() > maxW {
			maxW = m.Cols()
		}
		totalH += m.Rows()
	}
	out := gocv.NewMatWithSize(totalH, maxW, mats[0].Type())
	y := 0
	for _, m := range mats {
		region := out.Region(image.Rect(0, y, m.Cols(), y+m.Rows()))
		m.CopyTo(&region)
		region.Close()
		y += m.Rows()
	}
	return out, nil
}
