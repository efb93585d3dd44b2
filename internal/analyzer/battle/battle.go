// Package battle implements the GameMode=battle analyzer.Plugin: rate
// extraction (X Power via OCR, anarchy rank via matcher group) and session
// result extraction (rule/stage by group, kill/death/special via
// internal/analyzer's K/D/special OCR pipeline), run concurrently per
// spec.md §4.2 with golang.org/x/sync/errgroup — the same concurrency
// primitive maruel-record-videos/main.go uses to join its ffmpeg pipeline
// goroutines.
package battle

import (
	"context"
	"image"
	"strconv"

	"github.com/nasubidev/splatrecorder/internal/analyzer"
	"github.com/nasubidev/splatrecorder/internal/matcher"
	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/nasubidev/splatrecorder/internal/ocr"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

const (
	groupResultMatch = "battle_result_match"
	groupResultRule  = "battle_result_rule"
	groupResultStage = "battle_result_stage"
	groupUdemae      = "udemae_ranks"
)

var keyToMatch = map[model.ScreenKey]model.Match{
	"match_regular":        model.MatchRegular,
	"match_anarchy_open":   model.MatchAnarchyOpen,
	"match_anarchy_series": model.MatchAnarchySeries,
	"match_x":              model.MatchX,
	"match_challenge":      model.MatchChallenge,
	"match_fest_regular":   model.MatchFestRegular,
	"match_fest_challenge": model.MatchFestChallenge,
	"match_fest_tricolor":  model.MatchFestTriColor,
}

var nameToRule = map[string]model.Rule{
	"turf_war":          model.RuleTurfWar,
	"splat_zones":       model.RuleSplatZones,
	"tower_control":     model.RuleTowerControl,
	"rainmaker":         model.RuleRainmaker,
	"clam_blitz":        model.RuleClamBlitz,
	"tricolor_turf_war": model.RuleTriColorTurfWar,
}

var nameToStage = map[string]model.Stage{
	"scorch_gorge":         model.StageScorchGorge,
	"eeltail_alley":        model.StageEeltailAlley,
	"hagglefish":           model.StageHagglefish,
	"undertow_spillway":    model.StageUndertowSpillway,
	"umami_ruins":          model.StageUmamiRuins,
	"mincemeat_metalworks": model.StageMincemeatMetalworks,
	"brinewater_springs":   model.StageBrinewaterSprings,
	"shipshape_cargo_co":   model.StageShipshapeCargoCo,
}

var nameToUdemae = map[string]model.UdemaeRank{
	"C-": model.UdemaeCMinus, "C": model.UdemaeC, "C+": model.UdemaeCPlus,
	"B-": model.UdemaeBMinus, "B": model.UdemaeB, "B+": model.UdemaeBPlus,
	"A-": model.UdemaeAMinus, "A": model.UdemaeA, "A+": model.UdemaeAPlus,
	"S": model.UdemaeS, "S+": model.UdemaeSPlus,
}

// ROIs holds the fixed pixel regions the battle plugin reads from a frame.
// Populated from configuration at startup.
type ROIs struct {
	XPRate model.ROI

	Kill, Death, Special model.ROI
	// TriKill/TriDeath/TriSpecial are the TriColor secondary ROI set, tried
	// when the primary set yields no result (spec.md §4.2).
	TriKill, TriDeath, TriSpecial model.ROI
}

// Plugin implements analyzer.Plugin for GameMode=battle.
type Plugin struct {
	Registry *matcher.Registry
	KDOCR    *analyzer.KDOCR
	Reader   ocr.Reader
	ROIs     ROIs
}

func New(reg *matcher.Registry, reader ocr.Reader, rois ROIs) *Plugin {
	return &Plugin{Registry: reg, KDOCR: analyzer.NewKDOCR(reader), Reader: reader, ROIs: rois}
}

// ExtractRate dispatches by match: Anarchy variants read the udemae_ranks
// group; X reads XP via rotate/upscale/Otsu/OCR.
func (p *Plugin) ExtractRate(ctx context.Context, frame model.Frame, match model.Match) (model.Rate, bool) {
	switch {
	case match.IsAnarchy():
		name := p.Registry.MatchedName(groupUdemae, frame)
		if name == "" {
			return nil, false
		}
		rank, ok := nameToUdemae[name]
		if !ok {
			return nil, false
		}
		return model.Udemae{Rank: rank}, true
	case match == model.MatchX:
		return p.extractXP(ctx, frame)
	default:
		return nil, false
	}
}

func (p *Plugin) extractXP(ctx context.Context, frame model.Frame) (model.Rate, bool) {
	roi := frame.Crop(p.ROIs.XPRate)
	processed := rotateUpscaleBinarizeInvert(roi, -4, 2)
	defer processed.Close()

	text, err := p.Reader.Read(ctx, ocr.Request{Image: processed, PSM: ocr.PSMSingleLine, Whitelist: "0123456789."})
	if err != nil || text == "" {
		return nil, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, false
	}
	xp := model.XP{Value: value}
	if !xp.Valid() {
		return nil, false
	}
	return xp, true
}

// rotateUpscaleBinarizeInvert implements the XP-ROI preprocessing pipeline:
// rotate by angleDeg, upscale by scale, grayscale, Otsu binarize, invert.
func rotateUpscaleBinarizeInvert(roi gocv.Mat, angleDeg, scale float64) gocv.Mat {
	center := image.Pt(roi.Cols()/2, roi.Rows()/2)
	rot := gocv.GetRotationMatrix2D(center, angleDeg, 1.0)
	defer rot.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffine(roi, &rotated, rot, image.Pt(roi.Cols(), roi.Rows()))
	defer rotated.Close()

	upscaled := gocv.NewMat()
	gocv.Resize(rotated, &upscaled, image.Point{}, scale, scale, gocv.InterpolationLinear)
	defer upscaled.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(upscaled, &gray, gocv.ColorBGRToGray)
	defer gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	defer binary.Close()

	inverted := gocv.NewMat()
	gocv.BitwiseNot(binary, &inverted)
	return inverted
}

// ExtractSessionResult composes extract_battle_rule/_stage (group matches)
// with the K/D/special OCR, run concurrently; any missing part fails the
// whole result, per spec.md §4.2. The result's Match is the caller-supplied
// match: the battle_result_match group is not read from the frame.
func (p *Plugin) ExtractSessionResult(ctx context.Context, frame model.Frame, match model.Match) (model.Result, bool) {
	var rule model.Rule
	var stage model.Stage
	var kill, death, special int
	var ruleOK, stageOK, kdOK bool

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		name := p.Registry.MatchedName(groupResultRule, frame)
		rule, ruleOK = nameToRule[name]
		return nil
	})
	eg.Go(func() error {
		name := p.Registry.MatchedName(groupResultStage, frame)
		stage, stageOK = nameToStage[name]
		return nil
	})
	eg.Go(func() error {
		k, d, s, ok := p.extractKillRecord(ctx, frame, match)
		kill, death, special, kdOK = k, d, s, ok
		return nil
	})
	_ = eg.Wait()

	if !ruleOK || !stageOK || !kdOK {
		return nil, false
	}
	result := model.BattleResult{Match: match, Rule: rule, Stage: stage, Kill: kill, Death: death, Special: special}
	if !result.Valid() {
		return nil, false
	}
	return result, true
}

// extractKillRecord tries the primary K/D/special ROI set, falling back to
// the TriColor secondary set on failure when match is TriColor.
func (p *Plugin) extractKillRecord(ctx context.Context, frame model.Frame, match model.Match) (int, int, int, bool) {
	kill := frame.Crop(p.ROIs.Kill)
	death := frame.Crop(p.ROIs.Death)
	special := frame.Crop(p.ROIs.Special)
	if k, d, s, ok := p.KDOCR.Extract(ctx, kill, death, special); ok {
		return k, d, s, true
	}
	if !match.IsTriColor() {
		return 0, 0, 0, false
	}
	tk := frame.Crop(p.ROIs.TriKill)
	td := frame.Crop(p.ROIs.TriDeath)
	ts := frame.Crop(p.ROIs.TriSpecial)
	return p.KDOCR.Extract(ctx, tk, td, ts)
}

// ExtractMatchSelectKey exposes the local key->Match table for registry
// wiring validation. No code in this module calls it; config loading does
// not check group membership against it.
func ExtractMatchSelectKey(key model.ScreenKey) (model.Match, bool) {
	m, ok := keyToMatch[key]
	return m, ok
}
