package weapon

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// slotFile is the on-disk description of one weapon-display slot's
// geometry.
type slotFile struct {
	Slot      string `toml:"slot"`
	X         int    `toml:"x"`
	Y         int    `toml:"y"`
	W         int    `toml:"w"`
	H         int    `toml:"h"`
	SampleX   int    `toml:"sample_x"`
	SampleY   int    `toml:"sample_y"`
}

// templateFile is the on-disk description of one weapon's match templates.
type templateFile struct {
	Name      string   `toml:"name"`
	Images    []string `toml:"images"`
	Threshold float64  `toml:"threshold"`
}

// File is the top-level on-disk weapon-recognition configuration: slot
// geometry, species masks, and the weapon template set, mirroring the
// shape matcher.File uses for screen-key matchers.
type File struct {
	Slot     []slotFile     `toml:"slot"`
	Template []templateFile `toml:"template"`

	IkaMask  string `toml:"ika_mask"`
	TakoMask string `toml:"tako_mask"`

	MaxMaskShift int `toml:"max_mask_shift"`
}

// LoadFile parses a weapon-recognition TOML file at path.
func LoadFile(path string) (File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, fmt.Errorf("weapon: load %q: %w", path, err)
	}
	return f, nil
}

// BuildConfig resolves a File's image references relative to assetsDir and
// merges in the detection-window/IoU tunables from config.WeaponDetection,
// producing the Config the Service needs. Any error here is a
// MatcherMisconfig-equivalent hard startup failure.
func BuildConfig(f File, assetsDir string, thresholds Config) (Config, error) {
	cfg := thresholds
	cfg.MaxMaskShift = f.MaxMaskShift
	if cfg.MaxMaskShift == 0 {
		cfg.MaxMaskShift = 3
	}

	cfg.Geometry = Geometry{}
	for _, s := range f.Slot {
		slot := model.WeaponSlot(s.Slot)
		var sg SlotGeometry
		sg.Box = model.ROI{X: s.X, Y: s.Y, W: s.W, H: s.H}
		sg.Sample.X = s.SampleX
		sg.Sample.Y = s.SampleY
		cfg.Geometry[slot] = sg
	}

	ika, err := loadGray(assetsDir, f.IkaMask)
	if err != nil {
		return Config{}, fmt.Errorf("weapon: ika mask: %w", err)
	}
	tako, err := loadGray(assetsDir, f.TakoMask)
	if err != nil {
		return Config{}, fmt.Errorf("weapon: tako mask: %w", err)
	}
	cfg.Masks = SpeciesMasks{Ika: ika, Tako: tako}

	for _, t := range f.Template {
		var mats []gocv.Mat
		for _, img := range t.Images {
			m, err := loadGray(assetsDir, img)
			if err != nil {
				return Config{}, fmt.Errorf("weapon: template %q: %w", t.Name, err)
			}
			mats = append(mats, m)
		}
		cfg.Weapons = append(cfg.Weapons, WeaponTemplate{Name: t.Name, Templates: mats, Threshold: t.Threshold})
	}
	return cfg, nil
}

func loadGray(assetsDir, rel string) (gocv.Mat, error) {
	if rel == "" {
		return gocv.NewMat(), nil
	}
	path := filepath.Join(assetsDir, rel)
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	if m.Empty() {
		return gocv.Mat{}, fmt.Errorf("failed to load image %q", path)
	}
	return m, nil
}
