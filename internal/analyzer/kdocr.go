package analyzer

import (
	"context"
	"image"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/nasubidev/splatrecorder/internal/ocr"
	"gocv.io/x/gocv"
)

// kdField distinguishes the two selection policies spec.md §4.2 documents:
// death/special expect a single tall cluster, kill expects one or two
// digits.
type kdField int

const (
	fieldTall kdField = iota
	fieldKill
)

// killConfusionValues are concatenated two-digit values spec.md §4.2 calls
// out as ambiguous enough that a two-cluster split must not be trusted (the
// documented example: clusters individually OCR to "1","1", concatenating
// to 11, when the glyph may really be a single misrecognized character).
var killConfusionValues = map[int]bool{11: true}

var trailingDigitsRE = regexp.MustCompile(`(\d+)\D*$`)

// KDOCR extracts kill/death/special counts from their fixed pixel ROIs
// using the binarize -> erode -> column-cluster pipeline spec.md §4.2
// documents.
type KDOCR struct {
	Reader ocr.Reader
}

func NewKDOCR(reader ocr.Reader) *KDOCR {
	return &KDOCR{Reader: reader}
}

// Extract reads kill, death and special from their respective BGR ROI
// crops. It fails (ok=false) the whole extraction if any of the three
// fields cannot be parsed, per spec.md §4.2.
func (k *KDOCR) Extract(ctx context.Context, kill, death, special gocv.Mat) (killN, deathN, specialN int, ok bool) {
	d, ok := k.extractField(ctx, death, fieldTall)
	if !ok {
		return 0, 0, 0, false
	}
	s, ok := k.extractField(ctx, special, fieldTall)
	if !ok {
		return 0, 0, 0, false
	}
	kl, ok := k.extractField(ctx, kill, fieldKill)
	if !ok {
		return 0, 0, 0, false
	}
	return kl, d, s, true
}

// preprocess runs the documented pipeline: 3x upscale, 50px black padding,
// Otsu binarize, single erode, invert. Caller owns and must Close the
// returned Mat.
func preprocess(roi gocv.Mat) gocv.Mat {
	upscaled := gocv.NewMat()
	gocv.Resize(roi, &upscaled, image.Point{}, 3, 3, gocv.InterpolationLinear)
	defer upscaled.Close()

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(upscaled, &padded, 50, 50, 50, 50, gocv.BorderConstant, color.RGBA{})
	defer padded.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(padded, &gray, gocv.ColorBGRToGray)
	defer gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	defer binary.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	eroded := gocv.NewMat()
	gocv.Erode(binary, &eroded, kernel)
	defer eroded.Close()

	inverted := gocv.NewMat()
	gocv.BitwiseNot(eroded, &inverted)
	return inverted
}

// columnRange is an inclusive-start, exclusive-end span of occupied columns.
type columnRange struct{ Start, End int }

func (r columnRange) width() int { return r.End - r.Start }

// columnClusters scans img (a binary, white-foreground Mat) column by
// column and groups consecutive occupied columns into clusters.
func columnClusters(img gocv.Mat) []columnRange {
	cols := img.Cols()
	rows := img.Rows()
	var clusters []columnRange
	inRun := false
	runStart := 0
	for c := 0; c < cols; c++ {
		occupied := gocv.CountNonZero(img.Region(image.Rect(c, 0, c+1, rows))) > 0
		switch {
		case occupied && !inRun:
			inRun = true
			runStart = c
		case !occupied && inRun:
			inRun = false
			clusters = append(clusters, columnRange{Start: runStart, End: c})
		}
	}
	if inRun {
		clusters = append(clusters, columnRange{Start: runStart, End: cols})
	}
	return clusters
}

// filterNarrowClusters drops clusters whose width is both < 40% of the
// widest cluster's width and < 12px absolute, per spec.md §4.2.
func filterNarrowClusters(clusters []columnRange) []columnRange {
	if len(clusters) == 0 {
		return clusters
	}
	maxWidth := 0
	for _, c := range clusters {
		if w := c.width(); w > maxWidth {
			maxWidth = w
		}
	}
	var kept []columnRange
	for _, c := range clusters {
		w := c.width()
		if w < 12 && float64(w) < 0.4*float64(maxWidth) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func spanningRange(clusters []columnRange) columnRange {
	r := clusters[0]
	for _, c := range clusters[1:] {
		if c.Start < r.Start {
			r.Start = c.Start
		}
		if c.End > r.End {
			r.End = c.End
		}
	}
	return r
}

func cropColumns(img gocv.Mat, r columnRange) gocv.Mat {
	return img.Region(image.Rect(r.Start, 0, r.End, img.Rows()))
}

// extractField runs the shared preprocessing and cluster scan, then applies
// the field-specific selection policy and OCR.
func (k *KDOCR) extractField(ctx context.Context, roi gocv.Mat, kind kdField) (int, bool) {
	processed := preprocess(roi)
	defer processed.Close()

	clusters := filterNarrowClusters(columnClusters(processed))

	switch kind {
	case fieldTall:
		return k.extractTall(ctx, processed, clusters)
	case fieldKill:
		return k.extractKill(ctx, processed, clusters)
	default:
		return 0, false
	}
}

// extractTall implements the death/special policy: a single tall cluster is
// expected; with >=2 valid clusters remaining, OCR the spanning range;
// otherwise OCR the last run.
func (k *KDOCR) extractTall(ctx context.Context, processed gocv.Mat, clusters []columnRange) (int, bool) {
	if len(clusters) == 0 {
		return k.ocrDigits(ctx, processed)
	}
	var target columnRange
	if len(clusters) >= 2 {
		target = spanningRange(clusters)
	} else {
		target = clusters[len(clusters)-1]
	}
	crop := cropColumns(processed, target)
	return k.ocrDigits(ctx, crop)
}

// extractKill implements the kill policy: if exactly two valid clusters
// remain, OCR each separately and concatenate, unless the concatenated
// value is a documented OCR-confusion value (fall back to whole-range OCR).
func (k *KDOCR) extractKill(ctx context.Context, processed gocv.Mat, clusters []columnRange) (int, bool) {
	if len(clusters) == 2 {
		left := cropColumns(processed, clusters[0])
		right := cropColumns(processed, clusters[1])
		ls, lok := k.ocrDigitString(ctx, left)
		rs, rok := k.ocrDigitString(ctx, right)
		if lok && rok {
			concatenated := ls + rs
			if v, err := strconv.Atoi(concatenated); err == nil && v >= 0 && v <= 99 && !killConfusionValues[v] {
				return v, true
			}
		}
	}
	var target columnRange
	if len(clusters) > 0 {
		target = spanningRange(clusters)
		crop := cropColumns(processed, target)
		return k.ocrDigits(ctx, crop)
	}
	return k.ocrDigits(ctx, processed)
}

func (k *KDOCR) ocrDigitString(ctx context.Context, img gocv.Mat) (string, bool) {
	text, err := k.Reader.Read(ctx, ocr.Request{Image: img, PSM: ocr.PSMSingleWord, Whitelist: "0123456789"})
	if err != nil {
		return "", false
	}
	m := trailingDigitsRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ocrDigits OCRs img, extracts the trailing digit run, strips leading
// zeros, and keeps only the last two digits of a result >= 100 (documented
// as an impossible K/D/special value): a 3-digit result loses its leading
// digit.
func (k *KDOCR) ocrDigits(ctx context.Context, img gocv.Mat) (int, bool) {
	digits, ok := k.ocrDigitString(ctx, img)
	if !ok {
		return 0, false
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return 0, true
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if v >= 100 {
		// Leading digit is noise; keep the trailing two.
		s := strconv.Itoa(v)
		v, err = strconv.Atoi(s[len(s)-2:])
		if err != nil {
			return 0, false
		}
	}
	return v, true
}
