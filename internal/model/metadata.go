package model

import "time"

// WeaponSlot identifies one of the 8 on-screen weapon icons at match start.
type WeaponSlot string

const (
	SlotAlly1  WeaponSlot = "ally_1"
	SlotAlly2  WeaponSlot = "ally_2"
	SlotAlly3  WeaponSlot = "ally_3"
	SlotAlly4  WeaponSlot = "ally_4"
	SlotEnemy1 WeaponSlot = "enemy_1"
	SlotEnemy2 WeaponSlot = "enemy_2"
	SlotEnemy3 WeaponSlot = "enemy_3"
	SlotEnemy4 WeaponSlot = "enemy_4"
)

// AllSlots is the fixed, ordered set of the 8 weapon slots.
var AllSlots = [8]WeaponSlot{
	SlotAlly1, SlotAlly2, SlotAlly3, SlotAlly4,
	SlotEnemy1, SlotEnemy2, SlotEnemy3, SlotEnemy4,
}

// UnmatchedWeapon is the sentinel prediction for a slot that could not be
// classified with confidence.
const UnmatchedWeapon = "不明"

// WeaponCandidate is one ranked candidate for a slot, kept for debugging.
type WeaponCandidate struct {
	Weapon    string  `json:"weapon"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// WeaponSlotResult is the classification outcome for a single slot.
type WeaponSlotResult struct {
	SlotID          WeaponSlot        `json:"slot_id"`
	PredictedWeapon string            `json:"predicted_weapon"`
	IsUnmatched     bool              `json:"is_unmatched"`
	TopCandidates   []WeaponCandidate `json:"top_candidates"`
}

// WeaponRecognitionResult is the full outcome of one recognition pass.
type WeaponRecognitionResult struct {
	Allies            [4]string `json:"allies"`
	Enemies           [4]string `json:"enemies"`
	SlotResults       [8]WeaponSlotResult
	UnmatchedOutputDir string `json:"unmatched_output_dir,omitempty"`
}

// RecordingMetadata is the mutable per-session state owned by the
// auto-recorder until it is frozen and consumed by the asset repository at
// save time. It never loses StartedAt once set, per invariant 1.
type RecordingMetadata struct {
	GameMode  GameMode  `json:"game_mode"`
	StartedAt time.Time `json:"started_at"`
	Rate      Rate      `json:"rate,omitempty"`
	Judgement Judgement `json:"judgement,omitempty"`
	Result    Result    `json:"result,omitempty"`
	Allies    [4]string `json:"allies,omitempty"`
	Enemies   [4]string `json:"enemies,omitempty"`
}

// Clone returns a value copy; Rate/Result are interfaces holding immutable
// value types so a shallow copy is a safe deep copy.
func (m RecordingMetadata) Clone() RecordingMetadata {
	return m
}
