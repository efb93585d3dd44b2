package weapon

import (
	"image"
	"math"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

var allySlots = [4]model.WeaponSlot{model.SlotAlly1, model.SlotAlly2, model.SlotAlly3, model.SlotAlly4}
var enemySlots = [4]model.WeaponSlot{model.SlotEnemy1, model.SlotEnemy2, model.SlotEnemy3, model.SlotEnemy4}

type bgr struct{ b, g, r float64 }

func sampleBGR(frame model.Frame, x, y int) bgr {
	v := frame.Mat.GetVecbAt(y, x)
	return bgr{b: float64(v[0]), g: float64(v[1]), r: float64(v[2])}
}

func (c bgr) distance(o bgr) float64 {
	db, dg, dr := c.b-o.b, c.g-o.g, c.r-o.r
	return math.Sqrt(db*db + dg*dg + dr*dr)
}

// colorTest implements the first half of detect_weapon_display: sample one
// point per slot, require the max inter-ally distance and max inter-enemy
// distance to be small (same-team jerseys are similar colors) and the min
// cross-team distance to be large (teams are visually distinct).
func colorTest(frame model.Frame, geo Geometry, cfg Config) bool {
	allies := make([]bgr, 4)
	enemies := make([]bgr, 4)
	for i, s := range allySlots {
		x, y := geo[s].SamplePoint()
		allies[i] = sampleBGR(frame, x, y)
	}
	for i, s := range enemySlots {
		x, y := geo[s].SamplePoint()
		enemies[i] = sampleBGR(frame, x, y)
	}

	alliesMax := maxPairwiseDistance(allies)
	enemiesMax := maxPairwiseDistance(enemies)
	teamsMin := minCrossDistance(allies, enemies)

	return alliesMax <= cfg.AllyMaxRGBDistance &&
		enemiesMax <= cfg.EnemyMaxRGBDistance &&
		teamsMin >= cfg.TeamsMinRGBDistance
}

func maxPairwiseDistance(cs []bgr) float64 {
	max := 0.0
	for i := 0; i < len(cs); i++ {
		for j := i + 1; j < len(cs); j++ {
			if d := cs[i].distance(cs[j]); d > max {
				max = d
			}
		}
	}
	return max
}

func minCrossDistance(a, b []bgr) float64 {
	min := math.MaxFloat64
	for _, x := range a {
		for _, y := range b {
			if d := x.distance(y); d < min {
				min = d
			}
		}
	}
	return min
}

// DetectWeaponDisplay implements spec.md §4.3's detect_weapon_display: the
// color test above, then an outline-IoU test per slot against the
// species-model masks. Passes if at least cfg.MinSlotsForIoU slots clear
// cfg.IoUThreshold.
func DetectWeaponDisplay(frame model.Frame, cfg Config) bool {
	if !colorTest(frame, cfg.Geometry, cfg) {
		return false
	}

	passing := 0
	for _, slot := range model.AllSlots {
		geo := cfg.Geometry[slot]
		iou := slotOutlineIoU(frame, geo, cfg)
		if iou >= cfg.IoUThreshold {
			passing++
		}
	}
	return passing >= cfg.MinSlotsForIoU
}

// slotOutlineIoU extracts the team-color connected component containing
// the slot's sample point (strict HSV thresholds first, relaxed on empty
// result), then returns the best IoU against either species mask over an
// integer-pixel alignment search.
func slotOutlineIoU(frame model.Frame, geo SlotGeometry, cfg Config) float64 {
	crop := frame.Crop(geo.Box)
	sampleX, sampleY := geo.Sample.X, geo.Sample.Y

	region := teamColorComponent(crop, sampleX, sampleY, strictHSVBounds)
	if region.Empty() {
		region.Close()
		region = teamColorComponent(crop, sampleX, sampleY, relaxedHSVBounds)
	}
	defer region.Close()
	if region.Empty() {
		return 0
	}

	best := 0.0
	for _, mask := range []gocv.Mat{cfg.Masks.Ika, cfg.Masks.Tako} {
		if mask.Empty() {
			continue
		}
		if iou := bestShiftedIoU(region, mask, cfg.MaxMaskShift); iou > best {
			best = iou
		}
	}
	return best
}

// hsvRange is a local (lower, upper) inclusive HSV bound pair for the
// team-color extraction step, independent of matcher.HSVBounds to avoid a
// needless cross-package dependency for a 6-number tuple.
type hsvRange struct {
	lowerH, lowerS, lowerV byte
	upperH, upperS, upperV byte
}

// strictHSVBounds/relaxedHSVBounds are conservative defaults for "team ink
// color" segmentation; real thresholds are game-version-specific and
// belong in configuration in a fuller build-out, documented as an assumed
// simplification in DESIGN.md.
var strictHSVBounds = hsvRange{0, 120, 120, 179, 255, 255}
var relaxedHSVBounds = hsvRange{0, 60, 60, 179, 255, 255}

// teamColorComponent thresholds crop in HSV by bounds, then flood-fills
// from (sampleX, sampleY) to find the 4-connected component containing the
// sample point. A morphological close is applied first so that
// antialiasing gaps are bridged — a pragmatic stand-in for the spec's
// "optionally merge vertically/horizontally adjacent components" rule.
// Returns an empty Mat if the sample point itself isn't foreground.
func teamColorComponent(crop gocv.Mat, sampleX, sampleY int, bounds hsvRange) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(crop, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lower := gocv.NewScalar(float64(bounds.lowerH), float64(bounds.lowerS), float64(bounds.lowerV), 0)
	upper := gocv.NewScalar(float64(bounds.upperH), float64(bounds.upperS), float64(bounds.upperV), 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, kernel)

	rows, cols := closed.Rows(), closed.Cols()
	if sampleX < 0 || sampleX >= cols || sampleY < 0 || sampleY >= rows {
		return gocv.NewMat()
	}
	if closed.GetUCharAt(sampleY, sampleX) == 0 {
		return gocv.NewMat()
	}

	component := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	floodFill4(closed, component, sampleX, sampleY)
	return component
}

// floodFill4 is an iterative (stack-based) 4-connected flood fill from
// (x, y) over src's nonzero pixels, marking corresponding pixels 255 in
// dst. Implemented manually rather than via gocv.FloodFill to keep the
// output as a clean 0/255 component mask independent of src's fill value.
func floodFill4(src, dst gocv.Mat, x, y int) {
	rows, cols := src.Rows(), src.Cols()
	visited := make([]bool, rows*cols)
	type pt struct{ x, y int }
	stack := []pt{{x, y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.x < 0 || p.x >= cols || p.y < 0 || p.y >= rows {
			continue
		}
		idx := p.y*cols + p.x
		if visited[idx] {
			continue
		}
		visited[idx] = true
		if src.GetUCharAt(p.y, p.x) == 0 {
			continue
		}
		dst.SetUCharAt(p.y, p.x, 255)
		stack = append(stack,
			pt{p.x + 1, p.y}, pt{p.x - 1, p.y},
			pt{p.x, p.y + 1}, pt{p.x, p.y - 1},
		)
	}
}

// bestShiftedIoU searches integer pixel shifts of mask against region in
// [-maxShift, maxShift]^2, returning the maximum intersection-over-union
// found.
func bestShiftedIoU(region, mask gocv.Mat, maxShift int) float64 {
	best := 0.0
	for dy := -maxShift; dy <= maxShift; dy++ {
		for dx := -maxShift; dx <= maxShift; dx++ {
			if iou := shiftedIoU(region, mask, dx, dy); iou > best {
				best = iou
			}
		}
	}
	return best
}

// shiftedIoU computes IoU between region and mask shifted by (dx, dy),
// where mask pixel (mx, my) aligns with region pixel (mx+dx, my+dy).
func shiftedIoU(region, mask gocv.Mat, dx, dy int) float64 {
	rRows, rCols := region.Rows(), region.Cols()
	mRows, mCols := mask.Rows(), mask.Cols()

	var intersection, union int
	seen := make(map[[2]int]bool)

	for my := 0; my < mRows; my++ {
		for mx := 0; mx < mCols; mx++ {
			rx, ry := mx+dx, my+dy
			maskOn := mask.GetUCharAt(my, mx) != 0
			regionOn := rx >= 0 && rx < rCols && ry >= 0 && ry < rRows && region.GetUCharAt(ry, rx) != 0
			if maskOn || regionOn {
				union++
			}
			if maskOn && regionOn {
				intersection++
			}
			if regionOn {
				seen[[2]int{rx, ry}] = true
			}
		}
	}
	// Account for region-foreground pixels outside the mask's footprint
	// (they still count toward the union, not the intersection).
	for ry := 0; ry < rRows; ry++ {
		for rx := 0; rx < rCols; rx++ {
			if region.GetUCharAt(ry, rx) == 0 {
				continue
			}
			if !seen[[2]int{rx, ry}] {
				union++
			}
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
