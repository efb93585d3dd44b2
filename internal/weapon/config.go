// Package weapon implements C3, the weapon-recognition service:
// detect_weapon_display (is the loadout screen actually showing?) and
// recognize_weapons (which weapon is in each slot?), run as an
// at-most-one-in-flight task with latest-frame coalescing per spec.md
// §4.3.
package weapon

import (
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// SlotGeometry is the fixed pixel geometry of one of the 8 weapon-display
// slots: its bounding box (used to crop the recognition query) and a
// sample point (a fixed offset within the box) used for the per-slot color
// test and as the connected-component seed.
type SlotGeometry struct {
	Box    model.ROI
	Sample struct{ X, Y int } // offset relative to Box.X/Box.Y
}

// SamplePoint returns the sample point in full-frame pixel coordinates.
func (g SlotGeometry) SamplePoint() (x, y int) {
	return g.Box.X + g.Sample.X, g.Box.Y + g.Sample.Y
}

// Geometry holds all 8 slots' geometry, keyed by model.WeaponSlot.
type Geometry map[model.WeaponSlot]SlotGeometry

// SpeciesMasks holds the two species-silhouette masks (squid "ika" form,
// octopus "tako" form) used by the outline-IoU test, one grayscale
// single-channel Mat each.
type SpeciesMasks struct {
	Ika, Tako gocv.Mat
}

// WeaponTemplate is one weapon's set of grayscale match templates (a
// weapon may have been captured at multiple sub-variants/kit icons that
// still count as the same weapon for recognition purposes).
type WeaponTemplate struct {
	Name      string
	Templates []gocv.Mat // grayscale
	Threshold float64
}

// Config bundles everything the weapon service needs beyond the current
// frame: slot geometry, species masks for the outline test, and the
// template set for recognition.
type Config struct {
	Geometry Geometry
	Masks    SpeciesMasks
	Weapons  []WeaponTemplate

	// AllyMaxRGBDistance/EnemyMaxRGBDistance/TeamsMinRGBDistance are the
	// color-distance thresholds from spec.md §4.3 (defaults 90, 90, 110).
	AllyMaxRGBDistance  float64
	EnemyMaxRGBDistance float64
	TeamsMinRGBDistance float64

	// IoUThreshold and MinSlotsForIoU gate the outline-IoU test (config.WeaponDetection).
	IoUThreshold   float64
	MinSlotsForIoU int

	// MaxMaskShift bounds the integer-pixel search for species-mask
	// alignment (spec.md §4.3: "align... by integer shift maximizing IoU").
	MaxMaskShift int

	// DetectionWindow is how long after battle start the service keeps
	// trying detect_weapon_display before finalizing (config.WeaponDetection).
	DetectionWindow time.Duration
}

// DefaultThresholds returns the spec-documented default color-distance
// thresholds, leaving Geometry/Masks/Weapons for the caller to fill in.
func DefaultThresholds() Config {
	return Config{
		AllyMaxRGBDistance:  90,
		EnemyMaxRGBDistance: 90,
		TeamsMinRGBDistance: 110,
		MaxMaskShift:        4,
	}
}
