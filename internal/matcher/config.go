package matcher

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// ROIConfig mirrors model.ROI for TOML decoding.
type ROIConfig struct {
	X, Y, W, H int
}

func (r ROIConfig) toROI() model.ROI { return model.ROI{X: r.X, Y: r.Y, W: r.W, H: r.H} }

// HSVConfig mirrors HSVBounds for TOML decoding.
type HSVConfig struct {
	LowerH, LowerS, LowerV int
	UpperH, UpperS, UpperV int
}

func (h HSVConfig) toBounds() HSVBounds {
	return HSVBounds{
		LowerH: byte(h.LowerH), LowerS: byte(h.LowerS), LowerV: byte(h.LowerV),
		UpperH: byte(h.UpperH), UpperS: byte(h.UpperS), UpperV: byte(h.UpperV),
	}
}

// Config is the tagged-variant on-disk description of a single matcher:
// {hash, hsv, hsv_ratio, rgb, uniform, brightness, template, edge, composite}
// plus optional mask/ROI/threshold/parameters. Immutable after Load, per
// spec.md §3.
type Config struct {
	Key  string    `toml:"key"`
	Kind string    `toml:"kind"`
	ROI  ROIConfig `toml:"roi"`

	Mask      string `toml:"mask"`
	Reference string `toml:"reference"` // hash/rgb reference image
	Template  string `toml:"template"`  // template/edge template image

	Threshold float64 `toml:"threshold"`

	HSV          HSVConfig `toml:"hsv"`
	HueThreshold float64   `toml:"hue_threshold"`
	MinValue     int       `toml:"min_value"` // -1 means unset
	MaxValue     int       `toml:"max_value"`

	// Expression is the MatchExpression source for kind=="composite", e.g.
	// "matcher(battle_start) and not(matcher(loading))".
	Expression string `toml:"expression"`
}

// GroupConfig is the on-disk description of a MatcherGroup.
type GroupConfig struct {
	Name string   `toml:"name"`
	Keys []string `toml:"keys"`
}

// File is the top-level on-disk matcher configuration file.
type File struct {
	Matcher []Config      `toml:"matcher"`
	Group   []GroupConfig `toml:"group"`
}

// LoadFile parses a matcher configuration TOML file at path, mirroring
// weapon.LoadFile's shape.
func LoadFile(path string) (File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, fmt.Errorf("matcher: load %q: %w", path, err)
	}
	return f, nil
}

// imageLoader loads reference/mask/template images relative to assetsDir,
// caching each decoded image by path and color mode.
type imageLoader struct {
	assetsDir string
	cache     map[string]gocv.Mat
}

func newImageLoader(assetsDir string) *imageLoader {
	return &imageLoader{assetsDir: assetsDir, cache: map[string]gocv.Mat{}}
}

func (l *imageLoader) load(rel string, gray bool) (gocv.Mat, error) {
	if rel == "" {
		return gocv.NewMat(), nil
	}
	cacheKey := rel
	if gray {
		cacheKey += "#gray"
	}
	if m, ok := l.cache[cacheKey]; ok {
		return m, nil
	}
	path := filepath.Join(l.assetsDir, rel)
	flags := gocv.IMReadColor
	if gray {
		flags = gocv.IMReadGrayScale
	}
	m := gocv.IMRead(path, flags)
	if m.Empty() {
		return gocv.Mat{}, fmt.Errorf("matcher: failed to load image %q", path)
	}
	l.cache[cacheKey] = m
	return m, nil
}

// BuildRegistry parses a File, resolves image assets relative to assetsDir,
// and returns a frozen Registry. Any error here is a MatcherMisconfig per
// spec.md §7 and should be treated as a hard startup failure by the caller.
func BuildRegistry(f File, assetsDir string) (*Registry, error) {
	reg := NewRegistry()
	loader := newImageLoader(assetsDir)

	// First pass: build leaf matchers (composite matchers reference these by
	// key, so they must exist before composite construction in a second
	// pass).
	for _, c := range f.Matcher {
		if c.Kind == "composite" {
			continue
		}
		m, err := buildLeaf(c, loader)
		if err != nil {
			return nil, fmt.Errorf("matcher: key %q: %w", c.Key, err)
		}
		if err := reg.Add(model.ScreenKey(c.Key), m); err != nil {
			return nil, err
		}
	}

	// Second pass: composite matchers, which may reference any leaf above
	// (forward references across composites are not supported, matching the
	// "purely functional" evaluation the spec describes — composites of
	// composites should be expressed as a single expression instead).
	for _, c := range f.Matcher {
		if c.Kind != "composite" {
			continue
		}
		expr, err := ParseExpression(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("matcher: key %q: %w", c.Key, err)
		}
		cm := NewCompositeMatcher(expr, reg.Match)
		if err := reg.Add(model.ScreenKey(c.Key), cm); err != nil {
			return nil, err
		}
	}

	for _, g := range f.Group {
		keys := make([]model.ScreenKey, len(g.Keys))
		for i, k := range g.Keys {
			keys[i] = model.ScreenKey(k)
		}
		if err := reg.AddGroup(Group{Name: g.Name, Keys: keys}); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	return reg, nil
}

func buildLeaf(c Config, loader *imageLoader) (Matcher, error) {
	roi := c.ROI.toROI()
	mask, err := loader.load(c.Mask, true)
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case "hash":
		ref, err := loader.load(c.Reference, false)
		if err != nil {
			return nil, err
		}
		return &HashMatcher{base: base{roi: roi}, name: c.Key, reference: digest(ref.ToBytes())}, nil
	case "hsv":
		return NewHSVMatcher(roi, mask, c.HSV.toBounds(), c.Threshold), nil
	case "hsv_ratio":
		return NewHSVRatioMatcher(roi, c.HSV.toBounds(), c.Threshold), nil
	case "rgb":
		ref, err := loader.load(c.Reference, false)
		if err != nil {
			return nil, err
		}
		return NewRGBMatcher(roi, mask, ref, c.Threshold), nil
	case "uniform":
		return NewUniformColorMatcher(roi, mask, c.HueThreshold), nil
	case "brightness":
		minV, maxV := c.MinValue, c.MaxValue
		if minV == 0 {
			minV = -1
		}
		if maxV == 0 {
			maxV = -1
		}
		return NewBrightnessMatcher(roi, mask, minV, maxV), nil
	case "template":
		tmpl, err := loader.load(c.Template, true)
		if err != nil {
			return nil, err
		}
		return NewTemplateMatcher(roi, mask, tmpl, c.Threshold), nil
	case "edge":
		tmpl, err := loader.load(c.Template, true)
		if err != nil {
			return nil, err
		}
		return NewEdgeMatcher(roi, mask, tmpl, c.Threshold), nil
	default:
		return nil, fmt.Errorf("unknown matcher kind %q", c.Kind)
	}
}
