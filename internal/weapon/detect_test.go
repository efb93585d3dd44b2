package weapon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestBGRDistance(t *testing.T) {
	a := bgr{b: 0, g: 0, r: 0}
	b := bgr{b: 3, g: 4, r: 0}
	assert.InDelta(t, 5.0, a.distance(b), 1e-9)
}

func TestMaxPairwiseDistance(t *testing.T) {
	cs := []bgr{{0, 0, 0}, {1, 0, 0}, {10, 0, 0}}
	assert.InDelta(t, 10.0, maxPairwiseDistance(cs), 1e-9)
}

func TestMinCrossDistance(t *testing.T) {
	a := []bgr{{0, 0, 0}, {100, 0, 0}}
	b := []bgr{{1, 0, 0}, {200, 0, 0}}
	assert.InDelta(t, 1.0, minCrossDistance(a, b), 1e-9)
}

func TestShiftedIoUIdenticalMasksIsOne(t *testing.T) {
	m := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer m.Close()
	for y := 2; y < 8; y++ {
		for x := 2; x < 8; x++ {
			m.SetUCharAt(y, x, 255)
		}
	}
	assert.InDelta(t, 1.0, shiftedIoU(m, m, 0, 0), 1e-9)
}

func TestShiftedIoUDisjointIsZero(t *testing.T) {
	region := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer region.Close()
	mask := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer mask.Close()
	region.SetUCharAt(0, 0, 255)
	mask.SetUCharAt(9, 9, 255)
	assert.Equal(t, 0.0, shiftedIoU(region, mask, 0, 0))
}

func TestBestShiftedIoUFindsAlignment(t *testing.T) {
	region := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer region.Close()
	mask := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer mask.Close()
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			region.SetUCharAt(y, x, 255)
		}
	}
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			mask.SetUCharAt(y, x, 255)
		}
	}
	assert.InDelta(t, 1.0, bestShiftedIoU(region, mask, 2), 1e-9)
}

func TestFloodFill4StaysWithinConnectedRegion(t *testing.T) {
	src := gocv.NewMatWithSize(5, 5, gocv.MatTypeCV8UC1)
	defer src.Close()
	// Two disjoint 1-pixel islands; only the one at (1,1) should be filled.
	src.SetUCharAt(1, 1, 255)
	src.SetUCharAt(4, 4, 255)

	dst := gocv.NewMatWithSize(5, 5, gocv.MatTypeCV8UC1)
	defer dst.Close()
	floodFill4(src, dst, 1, 1)

	assert.Equal(t, uint8(255), dst.GetUCharAt(1, 1))
	assert.Equal(t, uint8(0), dst.GetUCharAt(4, 4))
}

func TestTeamColorComponentEmptyWhenSampleNotForeground(t *testing.T) {
	crop := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer crop.Close()
	// All-black crop: HSV threshold bounds starting at H=0,S>=120 won't match.
	component := teamColorComponent(crop, 5, 5, strictHSVBounds)
	defer component.Close()
	assert.True(t, component.Empty())
}
