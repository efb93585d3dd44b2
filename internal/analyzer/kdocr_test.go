package analyzer

import (
	"context"
	"testing"

	"github.com/nasubidev/splatrecorder/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// stubReader returns canned text per call, in order, ignoring the image —
// exactly the injection seam spec.md §8 scenario S6 calls for ("injecting a
// stub OCR returning fixed strings per (image, whitelist)").
type stubReader struct {
	responses []string
	calls     []ocr.Request
}

func (s *stubReader) Read(ctx context.Context, req ocr.Request) (string, error) {
	s.calls = append(s.calls, req)
	if len(s.responses) == 0 {
		return "", nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func blankROI(w, h int) gocv.Mat {
	return gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
}

// TestExtractKillTwoClustersConcatenate exercises the extractKill policy
// directly against synthetic clusters (bypassing the pixel-driven
// columnClusters scan, which blank test fixtures can't usefully exercise):
// two valid clusters OCR to "1" and "0" and must concatenate to 10, per
// scenario S6.
func TestExtractKillTwoClustersConcatenate(t *testing.T) {
	reader := &stubReader{responses: []string{"1", "0"}}
	k := NewKDOCR(reader)
	processed := blankROI(100, 40)
	defer processed.Close()

	v, ok := k.extractKill(context.Background(), processed, []columnRange{{0, 40}, {50, 90}})
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

// TestExtractKillConfusionPairFallsBack exercises the documented "1","1"
// confusion pair: concatenation would give 11, which is rejected in favor
// of a single whole-range OCR call.
func TestExtractKillConfusionPairFallsBack(t *testing.T) {
	reader := &stubReader{responses: []string{"1", "1", "11"}}
	k := NewKDOCR(reader)
	processed := blankROI(100, 40)
	defer processed.Close()

	v, ok := k.extractKill(context.Background(), processed, []columnRange{{0, 40}, {50, 90}})
	require.True(t, ok)
	assert.Equal(t, 11, v)
	assert.Len(t, reader.calls, 3)
}

func TestOCRDigitsStripsLeadingZerosAndThreeDigitRule(t *testing.T) {
	k := NewKDOCR(&stubReader{})
	img := blankROI(10, 10)
	defer img.Close()

	reader := &stubReader{responses: []string{"007"}}
	k.Reader = reader
	v, ok := k.ocrDigits(context.Background(), img)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	reader2 := &stubReader{responses: []string{"123"}}
	k.Reader = reader2
	v2, ok := k.ocrDigits(context.Background(), img)
	assert.True(t, ok)
	assert.Equal(t, 23, v2)
}

func TestOCRDigitsNoDigitsFails(t *testing.T) {
	k := NewKDOCR(&stubReader{responses: []string{"???"}})
	img := blankROI(10, 10)
	defer img.Close()
	_, ok := k.ocrDigits(context.Background(), img)
	assert.False(t, ok)
}

func TestFilterNarrowClustersDropsNoise(t *testing.T) {
	// max width is 15 (cluster 2); cluster 1 (width 2) is both <12px and
	// <40% of 15, so it's dropped; cluster 3 (width 8) is <12px but >=40%
	// of 15 (6), so it survives.
	clusters := []columnRange{{0, 2}, {10, 25}, {30, 38}}
	kept := filterNarrowClusters(clusters)
	require.Len(t, kept, 2)
	assert.Equal(t, columnRange{10, 25}, kept[0])
	assert.Equal(t, columnRange{30, 38}, kept[1])
}

func TestSpanningRange(t *testing.T) {
	r := spanningRange([]columnRange{{5, 10}, {20, 25}, {1, 3}})
	assert.Equal(t, columnRange{1, 25}, r)
}
