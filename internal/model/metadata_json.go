package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// sidecarWire is the on-disk metadata sidecar shape from spec.md §6: rate is
// a flat "<decimal>" | "C-" | ... | null string, and Result fields are
// flattened at the top level.
type sidecarWire struct {
	GameMode  GameMode `json:"game_mode"`
	StartedAt string   `json:"started_at"`
	Rate      *string  `json:"rate"`
	Judgement *string  `json:"judgement"`
	Match     *string  `json:"match"`
	Rule      *string  `json:"rule"`
	Stage     *string  `json:"stage"`
	Kill      *int     `json:"kill"`
	Death     *int     `json:"death"`
	Special   *int     `json:"special"`
	Hazard    *int     `json:"hazard"`
	GoldenEgg *int     `json:"golden_egg"`
	PowerEgg  *int     `json:"power_egg"`
	Rescue    *int     `json:"rescue"`
	Rescued   *int     `json:"rescued"`
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// ToDict serializes the metadata into the sidecar JSON object documented in
// spec.md §6.
func (m RecordingMetadata) ToDict() ([]byte, error) {
	w := sidecarWire{
		GameMode:  m.GameMode,
		StartedAt: m.StartedAt.UTC().Format(time.RFC3339),
	}
	if m.Rate != nil {
		w.Rate = strPtr(RateString(m.Rate))
	}
	if m.Judgement != "" {
		w.Judgement = strPtr(string(m.Judgement))
	}
	switch r := m.Result.(type) {
	case BattleResult:
		w.Match = strPtr(string(r.Match))
		w.Rule = strPtr(string(r.Rule))
		w.Stage = strPtr(string(r.Stage))
		w.Kill = intPtr(r.Kill)
		w.Death = intPtr(r.Death)
		w.Special = intPtr(r.Special)
	case SalmonResult:
		w.Stage = strPtr(string(r.Stage))
		w.Hazard = intPtr(r.Hazard)
		w.GoldenEgg = intPtr(r.GoldenEgg)
		w.PowerEgg = intPtr(r.PowerEgg)
		w.Rescue = intPtr(r.Rescue)
		w.Rescued = intPtr(r.Rescued)
	}
	return json.MarshalIndent(w, "", "  ")
}

// FromDict parses the sidecar JSON object back into a RecordingMetadata.
func FromDict(b []byte) (RecordingMetadata, error) {
	var w sidecarWire
	if err := json.Unmarshal(b, &w); err != nil {
		return RecordingMetadata{}, err
	}
	m := RecordingMetadata{GameMode: w.GameMode}
	if w.StartedAt != "" {
		t, err := time.Parse(time.RFC3339, w.StartedAt)
		if err != nil {
			return RecordingMetadata{}, fmt.Errorf("model: bad started_at: %w", err)
		}
		m.StartedAt = t
	}
	if w.Rate != nil {
		rate, err := ParseRateString(*w.Rate)
		if err != nil {
			return RecordingMetadata{}, err
		}
		m.Rate = rate
	}
	if w.Judgement != nil {
		m.Judgement = Judgement(*w.Judgement)
	}
	switch m.GameMode {
	case GameModeBattle:
		if w.Match != nil {
			m.Result = BattleResult{
				Match:   Match(*w.Match),
				Rule:    Rule(deref(w.Rule)),
				Stage:   Stage(deref(w.Stage)),
				Kill:    derefInt(w.Kill),
				Death:   derefInt(w.Death),
				Special: derefInt(w.Special),
			}
		}
	case GameModeSalmon:
		if w.Stage != nil {
			m.Result = SalmonResult{
				Stage:     Stage(*w.Stage),
				Hazard:    derefInt(w.Hazard),
				GoldenEgg: derefInt(w.GoldenEgg),
				PowerEgg:  derefInt(w.PowerEgg),
				Rescue:    derefInt(w.Rescue),
				Rescued:   derefInt(w.Rescued),
			}
		}
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
