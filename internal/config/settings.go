// Package config loads the daemon's on-disk settings (directories, timeouts,
// external-process addresses, matcher asset locations) from TOML, grounded
// on MiFaceDEV-miface and owlcms-replays which both use
// github.com/BurntSushi/toml for their own settings files. A fsnotify watch
// (reload.go) generalizes the teacher's self-watch-the-binary trick in
// main.go to live config reload.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// WeaponDetection holds the C3 tuning values the spec leaves as "belongs to
// configuration, not the core contract" (Open Question 2).
type WeaponDetection struct {
	// DetectionWindow is how long after battle start the service keeps trying
	// detect_weapon_display before finalizing. Default 20s.
	DetectionWindow time.Duration `toml:"detection_window"`
	// IoUThreshold is the minimum outline-IoU required per slot. Default 0.6.
	IoUThreshold float64 `toml:"iou_threshold"`
	// MinSlotsForIoU is how many of the 8 slots must clear IoUThreshold for
	// detect_weapon_display to report success. Default 5.
	MinSlotsForIoU int `toml:"min_slots_for_iou"`
	// RecognitionTimeout bounds a single recognize_weapons call.
	RecognitionTimeout time.Duration `toml:"recognition_timeout"`
	// FinalizeTimeout bounds the one-shot finalize invocation.
	FinalizeTimeout time.Duration `toml:"finalize_timeout"`
}

// Directories holds the two asset-repository roots (C6).
type Directories struct {
	Recorded string `toml:"recorded_dir"`
	Edited   string `toml:"edited_dir"`
}

// Recorder holds the C5 orchestrator tuning values.
type Recorder struct {
	// AbortWindow bounds how long after battle start a session-abort screen
	// cancels rather than is ignored (spec.md §4.5: "within 60s").
	AbortWindow time.Duration `toml:"abort_window"`
	// MaxDuration force-stops a recording that has run this long without a
	// finish screen (spec.md §4.5: 600s).
	MaxDuration time.Duration `toml:"max_duration"`
	// PowerOffPollInterval is the cadence for the power-off sentinel check.
	PowerOffPollInterval time.Duration `toml:"power_off_poll_interval"`
	// PowerOffConsecutive is how many consecutive positives are required
	// before exiting the capture loop (debounce).
	PowerOffConsecutive int `toml:"power_off_consecutive"`
	// StopGrace is the ~1.5s grace before asking the recorder to stop.
	StopGrace time.Duration `toml:"stop_grace"`
}

// HTTP holds the C8 control-surface bind address.
type HTTP struct {
	Addr string `toml:"addr"`
}

// ROI is the on-disk shape of a model.ROI.
type ROI struct {
	X int `toml:"x"`
	Y int `toml:"y"`
	W int `toml:"w"`
	H int `toml:"h"`
}

// BattleROIs holds the fixed pixel regions battle.Plugin reads K/D/special
// and X Power from (spec.md §4.2). The TriColor secondary set is tried when
// the primary set yields no result.
type BattleROIs struct {
	XPRate     ROI `toml:"xp_rate"`
	Kill       ROI `toml:"kill"`
	Death      ROI `toml:"death"`
	Special    ROI `toml:"special"`
	TriKill    ROI `toml:"tri_kill"`
	TriDeath   ROI `toml:"tri_death"`
	TriSpecial ROI `toml:"tri_special"`
}

// FeatureFlags gates optional strategies the spec leaves undecided (Open
// Question 1).
type FeatureFlags struct {
	FastKDOCR bool `toml:"fast_kd_ocr"`
}

// Settings is the top-level on-disk configuration.
type Settings struct {
	Directories     Directories     `toml:"directories"`
	Recorder        Recorder        `toml:"recorder"`
	WeaponDetection WeaponDetection `toml:"weapon_detection"`
	HTTP            HTTP            `toml:"http"`
	Features        FeatureFlags    `toml:"features"`
	BattleROIs      BattleROIs      `toml:"battle_rois"`

	// MatcherAssetsDir holds the reference images/templates/masks the
	// matcher registry loads at startup (hash references, HSV masks,
	// templates for TemplateMatcher/EdgeMatcher/weapon recognition).
	MatcherAssetsDir string `toml:"matcher_assets_dir"`
	// MatcherConfigPath points at the TOML file describing the
	// MatcherConfig set and groups (§4.1/§3).
	MatcherConfigPath string `toml:"matcher_config_path"`

	// WeaponConfigPath points at the TOML file describing weapon-slot
	// geometry, species masks, and weapon templates (§4.3). Images it
	// references resolve relative to MatcherAssetsDir.
	WeaponConfigPath string `toml:"weapon_config_path"`

	// OCRCommand is the external tesseract binary name/path (§6 OCR engine,
	// out of core scope; see internal/ocr).
	OCRCommand string `toml:"ocr_command"`

	// OBSAddress is the OBS WebSocket RPC endpoint (§6 external recorder).
	OBSAddress  string `toml:"obs_address"`
	OBSPassword string `toml:"obs_password"`

	// CaptureDevice is passed through to the capture-source adapter.
	CaptureDevice string `toml:"capture_device"`

	// Webhook is decoded from the settings file but not read by any
	// component; no events are sent to it.
	Webhook string `toml:"webhook"`
}

// Default returns Settings with the documented defaults for every tunable
// the spec leaves to configuration.
func Default() Settings {
	return Settings{
		Directories: Directories{Recorded: "recorded", Edited: "edited"},
		Recorder: Recorder{
			AbortWindow:          60 * time.Second,
			MaxDuration:          600 * time.Second,
			PowerOffPollInterval: 10 * time.Second,
			PowerOffConsecutive:  6,
			StopGrace:            1500 * time.Millisecond,
		},
		WeaponDetection: WeaponDetection{
			DetectionWindow:    20 * time.Second,
			IoUThreshold:       0.6,
			MinSlotsForIoU:     5,
			RecognitionTimeout: 2 * time.Second,
			FinalizeTimeout:    8 * time.Second,
		},
		HTTP:              HTTP{Addr: ":8383"},
		MatcherAssetsDir:  "assets/matchers",
		MatcherConfigPath: "matchers.toml",
		WeaponConfigPath:  "weapons.toml",
		OCRCommand:        "tesseract",
	}
}

// Load reads and parses a Settings file at path, filling unset fields from
// Default.
func Load(path string) (Settings, error) {
	s := Default()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, fmt.Errorf("config: load %q: %w", path, err)
	}
	return s, nil
}
