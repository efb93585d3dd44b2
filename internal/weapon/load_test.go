package weapon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func writeTestPNG(t *testing.T, dir, name string) {
	t.Helper()
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer m.Close()
	require.True(t, gocv.IMWrite(filepath.Join(dir, name), m))
}

func TestLoadFileParsesSlotsAndTemplates(t *testing.T) {
	dir := t.TempDir()
	toml := `
max_mask_shift = 5
ika_mask = "ika.png"
tako_mask = "tako.png"

[[slot]]
slot = "ally1"
x = 0
y = 0
h = 10
sample_x = 5
sample_y = 5

[[template]]
name = "splattershot"
images = ["splattershot.png"]
threshold = 0.8
`
	path := filepath.Join(dir, "weapons.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Slot, 1)
	require.Equal(t, "ally1", f.Slot[0].Slot)
	require.Len(t, f.Template, 1)
	require.Equal(t, "splattershot", f.Template[0].Name)
	require.Equal(t, 5, f.MaxMaskShift)
}

func TestBuildConfigLoadsImagesRelativeToAssetsDir(t *testing.T) {
	assetsDir := t.TempDir()
	writeTestPNG(t, assetsDir, "ika.png")
	writeTestPNG(t, assetsDir, "tako.png")
	writeTestPNG(t, assetsDir, "splattershot.png")

	f := File{
		MaxMaskShift: 3,
		IkaMask:      "ika.png",
		TakoMask:     "tako.png",
		Slot: []slotFile{
			{Slot: "ally1", X: 0, Y: 0, W: 10, H: 10, SampleX: 5, SampleY: 5},
		},
		Template: []templateFile{
			{Name: "splattershot", Images: []string{"splattershot.png"}, Threshold: 0.8},
		},
	}

	cfg, err := BuildConfig(f, assetsDir, DefaultThresholds())
	require.NoError(t, err)
	require.False(t, cfg.Masks.Ika.Empty())
	require.False(t, cfg.Masks.Tako.Empty())
	require.Len(t, cfg.Weapons, 1)
	require.Equal(t, "splattershot", cfg.Weapons[0].Name)
	require.Len(t, cfg.Geometry, 1)
}

func TestBuildConfigErrorsOnMissingImage(t *testing.T) {
	assetsDir := t.TempDir()
	f := File{IkaMask: "missing.png"}
	_, err := BuildConfig(f, assetsDir, DefaultThresholds())
	require.Error(t, err)
}
