// Package analyzer implements C2, the per-mode frame analyzer: a dispatcher
// that routes mode-agnostic screen detections to the matcher registry and
// mode-specific extractions (rate, session result) to a plugin keyed by
// GameMode.
package analyzer

import (
	"context"

	"github.com/nasubidev/splatrecorder/internal/matcher"
	"github.com/nasubidev/splatrecorder/internal/model"
)

// Plugin is the mode-specific half of the capability set: the parts of
// extract_rate/extract_session_result whose semantics depend on the game
// mode (and, for rate, the match type). Implementations must never raise on
// parse/inference failure — always return ok=false instead.
type Plugin interface {
	ExtractRate(ctx context.Context, frame model.Frame, match model.Match) (model.Rate, bool)
	ExtractSessionResult(ctx context.Context, frame model.Frame, match model.Match) (model.Result, bool)
}

// Mode-agnostic screen keys, resolved directly against the matcher
// registry. Configuration binds these keys to concrete matchers/groups.
const (
	GroupBattleSelect     = "battle_select"
	GroupBattleJudgements = "battle_judgements"

	KeyMatchingStart  model.ScreenKey = "matching_start"
	KeySessionStart   model.ScreenKey = "session_start"
	KeySessionAbort   model.ScreenKey = "session_abort"
	KeySessionFinish  model.ScreenKey = "session_finish"
	KeySessionJudge   model.ScreenKey = "session_judgement"
	KeySessionResult  model.ScreenKey = "session_result"
	KeyScheduleChange model.ScreenKey = "schedule_change"
	KeyLoadingStart   model.ScreenKey = "loading_start"
	KeyLoadingEnd     model.ScreenKey = "loading_end"
)

// screenKeyToMatch maps battle_select group member keys to the Match value
// they represent. Configuration's group "battle_select" must list exactly
// these keys (any subset, in the order screens should be tried).
var screenKeyToMatch = map[model.ScreenKey]model.Match{
	"match_regular":         model.MatchRegular,
	"match_anarchy_open":    model.MatchAnarchyOpen,
	"match_anarchy_series":  model.MatchAnarchySeries,
	"match_x":               model.MatchX,
	"match_challenge":       model.MatchChallenge,
	"match_fest_regular":    model.MatchFestRegular,
	"match_fest_challenge":  model.MatchFestChallenge,
	"match_fest_tricolor":   model.MatchFestTriColor,
}

// judgementNameToValue maps battle_judgements group member names to
// Judgement values.
var judgementNameToValue = map[string]model.Judgement{
	"WIN":  model.JudgementWin,
	"LOSE": model.JudgementLose,
}

// FrameAnalyzer is the C2 dispatcher: one matcher.Registry shared across
// modes, plus one Plugin per GameMode.
type FrameAnalyzer struct {
	Registry *matcher.Registry
	plugins  map[model.GameMode]Plugin
	cache    *resultCache
}

func NewFrameAnalyzer(reg *matcher.Registry) *FrameAnalyzer {
	return &FrameAnalyzer{Registry: reg, plugins: map[model.GameMode]Plugin{}, cache: newResultCache(8)}
}

// Register binds a Plugin to a GameMode. Must be called before use.
func (a *FrameAnalyzer) Register(mode model.GameMode, p Plugin) {
	a.plugins[mode] = p
}

// ExtractMatchSelect reports the Match shown on a match-select screen, or
// ok=false if none of the configured battle_select group members match.
func (a *FrameAnalyzer) ExtractMatchSelect(frame model.Frame) (model.Match, bool) {
	key, ok := a.Registry.MatchedKey(GroupBattleSelect, frame)
	if !ok {
		return model.MatchUnknown, false
	}
	m, ok := screenKeyToMatch[key]
	return m, ok
}

func (a *FrameAnalyzer) DetectMatchingStart(frame model.Frame) bool {
	return a.Registry.Match(KeyMatchingStart, frame)
}

func (a *FrameAnalyzer) DetectSessionStart(frame model.Frame) bool {
	return a.Registry.Match(KeySessionStart, frame)
}

func (a *FrameAnalyzer) DetectSessionAbort(frame model.Frame) bool {
	return a.Registry.Match(KeySessionAbort, frame)
}

func (a *FrameAnalyzer) DetectSessionFinish(frame model.Frame) bool {
	return a.Registry.Match(KeySessionFinish, frame)
}

func (a *FrameAnalyzer) DetectSessionJudgement(frame model.Frame) bool {
	return a.Registry.Match(KeySessionJudge, frame)
}

func (a *FrameAnalyzer) DetectSessionResult(frame model.Frame) bool {
	return a.Registry.Match(KeySessionResult, frame)
}

func (a *FrameAnalyzer) DetectScheduleChange(frame model.Frame) bool {
	return a.Registry.Match(KeyScheduleChange, frame)
}

// DetectLoadingStart reports the inter-screen loading transition that
// follows judgement, gating the pause that precedes DetectLoadingEnd's
// resume trigger (spec.md §4.5's "if loading screen").
func (a *FrameAnalyzer) DetectLoadingStart(frame model.Frame) bool {
	return a.Registry.Match(KeyLoadingStart, frame)
}

func (a *FrameAnalyzer) DetectLoadingEnd(frame model.Frame) bool {
	return a.Registry.Match(KeyLoadingEnd, frame)
}

// ExtractSessionJudgement returns the matched battle_judgements group
// member's Judgement, if any.
func (a *FrameAnalyzer) ExtractSessionJudgement(frame model.Frame) (model.Judgement, bool) {
	name := a.Registry.MatchedName(GroupBattleJudgements, frame)
	if name == "" {
		return "", false
	}
	j, ok := judgementNameToValue[name]
	return j, ok
}

// ExtractRate dispatches to the plugin registered for mode, memoizing by
// frame fingerprint per spec.md §4.2.
func (a *FrameAnalyzer) ExtractRate(ctx context.Context, frame model.Frame, mode model.GameMode, match model.Match) (model.Rate, bool) {
	fp := Fingerprint(frame)
	if v, ok, found := a.cache.get(fp, "rate"); found {
		if !ok {
			return nil, false
		}
		return v.(model.Rate), true
	}
	p, ok := a.plugins[mode]
	if !ok {
		a.cache.put(fp, "rate", nil, false)
		return nil, false
	}
	rate, ok := p.ExtractRate(ctx, frame, match)
	a.cache.put(fp, "rate", rate, ok)
	return rate, ok
}

// ExtractSessionResult dispatches to the plugin registered for mode,
// memoizing by frame fingerprint per spec.md §4.2.
func (a *FrameAnalyzer) ExtractSessionResult(ctx context.Context, frame model.Frame, mode model.GameMode, match model.Match) (model.Result, bool) {
	fp := Fingerprint(frame)
	if v, ok, found := a.cache.get(fp, "result"); found {
		if !ok {
			return nil, false
		}
		return v.(model.Result), true
	}
	p, ok := a.plugins[mode]
	if !ok {
		a.cache.put(fp, "result", nil, false)
		return nil, false
	}
	result, ok := p.ExtractSessionResult(ctx, frame, match)
	a.cache.put(fp, "result", result, ok)
	return result, ok
}
