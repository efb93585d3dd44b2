package weapon

import (
	"image/color"
	"sort"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// queryPadding is the replicate-border padding applied to each slot's
// cropped query before template scoring (spec.md §4.3: "8-pixel replicate
// padding").
const queryPadding = 8

// RecognizeWeapons runs recognize_weapons over targetSlots (all 8 if nil),
// scoring each slot's padded grayscale query against every configured
// weapon's templates and keeping the top-3 candidates per slot for
// debugging. previous carries forward results for slots not re-evaluated.
func RecognizeWeapons(frame model.Frame, cfg Config, targetSlots []model.WeaponSlot, previous map[model.WeaponSlot]model.WeaponSlotResult) model.WeaponRecognitionResult {
	if targetSlots == nil {
		targetSlots = model.AllSlots[:]
	}
	targets := make(map[model.WeaponSlot]bool, len(targetSlots))
	for _, s := range targetSlots {
		targets[s] = true
	}

	out := model.WeaponRecognitionResult{}
	results := make(map[model.WeaponSlot]model.WeaponSlotResult, 8)
	for k, v := range previous {
		results[k] = v
	}

	for _, slot := range model.AllSlots {
		if targets[slot] {
			results[slot] = recognizeSlot(frame, cfg, slot)
		}
	}

	for i, slot := range model.AllSlots {
		r := results[slot]
		if i < 4 {
			out.Allies[i] = r.PredictedWeapon
		} else {
			out.Enemies[i-4] = r.PredictedWeapon
		}
		out.SlotResults[i] = r
	}
	return out
}

func recognizeSlot(frame model.Frame, cfg Config, slot model.WeaponSlot) model.WeaponSlotResult {
	geo := cfg.Geometry[slot]
	query := paddedGrayQuery(frame.Crop(geo.Box))
	defer query.Close()

	candidates := make([]model.WeaponCandidate, 0, len(cfg.Weapons))
	for _, w := range cfg.Weapons {
		score := maxTemplateScore(query, w.Templates)
		candidates = append(candidates, model.WeaponCandidate{Weapon: w.Name, Score: score, Threshold: w.Threshold})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	top := candidates
	if len(top) > 3 {
		top = top[:3]
	}

	result := model.WeaponSlotResult{SlotID: slot, TopCandidates: top, IsUnmatched: true, PredictedWeapon: model.UnmatchedWeapon}
	if len(candidates) > 0 && candidates[0].Score >= candidates[0].Threshold {
		result.PredictedWeapon = candidates[0].Weapon
		result.IsUnmatched = false
	}
	return result
}

// paddedGrayQuery converts crop to grayscale and adds queryPadding pixels
// of replicated border on every side.
func paddedGrayQuery(crop gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)
	defer gray.Close()

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(gray, &padded, queryPadding, queryPadding, queryPadding, queryPadding, gocv.BorderReplicate, replicateFill)
	return padded
}

// maxTemplateScore runs TM_CCOEFF_NORMED template matching of query against
// every template and returns the maximum peak correlation.
func maxTemplateScore(query gocv.Mat, templates []gocv.Mat) float64 {
	best := -1.0
	for _, tmpl := range templates {
		result := gocv.NewMat()
		gocv.MatchTemplate(query, tmpl, &result, gocv.TmCcoeffNormed, gocv.NewMat())
		_, maxVal, _, _ := gocv.MinMaxLoc(result)
		result.Close()
		if float64(maxVal) > best {
			best = float64(maxVal)
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

var replicateFill = color.RGBA{} // CopyMakeBorder ignores the fill value for BorderReplicate
