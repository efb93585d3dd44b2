package weapon

import (
	"context"
	"log/slog"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Publisher is the minimal event-bus dependency Service needs: publishing a
// BattleWeaponsDetected event. Satisfied by *bus.EventBus (internal/bus).
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// SessionState is the weapon-recognition state C5 threads through
// Process calls for a single recording session, per spec.md §4.3
// ("battle_started_at, weapon_detection_attempts, weapon_detection_done,
// weapon_last_visible_frame, metadata.{allies,enemies}").
type SessionState struct {
	BattleStartedAt time.Time
	Attempts        int
	Done            bool
	AnyApplied      bool
	Allies          [4]string
	Enemies         [4]string
	previous        map[model.WeaponSlot]model.WeaponSlotResult
}

// NewSessionState starts a fresh session clock for a battle beginning now.
func NewSessionState(startedAt time.Time) *SessionState {
	return &SessionState{BattleStartedAt: startedAt, previous: map[model.WeaponSlot]model.WeaponSlotResult{}}
}

// unmatchedSlots returns the slots with no recorded match yet.
func (s *SessionState) unmatchedSlots() []model.WeaponSlot {
	var out []model.WeaponSlot
	for _, slot := range model.AllSlots {
		r, ok := s.previous[slot]
		if !ok || r.IsUnmatched {
			out = append(out, slot)
		}
	}
	return out
}

func (s *SessionState) allMatched() bool {
	for _, slot := range model.AllSlots {
		r, ok := s.previous[slot]
		if !ok || r.IsUnmatched {
			return false
		}
	}
	return true
}

func (s *SessionState) applyResult(result model.WeaponRecognitionResult) {
	for i, slot := range model.AllSlots {
		r := result.SlotResults[i]
		if r.IsUnmatched {
			continue // partial recognition applies only matched slots
		}
		s.previous[slot] = r
		s.AnyApplied = true
		if i < 4 {
			s.Allies[i] = r.PredictedWeapon
		} else {
			s.Enemies[i-4] = r.PredictedWeapon
		}
	}
}

// Service drives detect_weapon_display/recognize_weapons under the
// at-most-one-in-flight + latest-frame-coalescing scheduling model.
type Service struct {
	Cfg                      Config
	Bus                      Publisher
	RecognitionTimeout       time.Duration
	FinalizeTimeout          time.Duration
	task                     taskRunner
}

func NewService(cfg Config, bus Publisher, recognitionTimeout, finalizeTimeout time.Duration) *Service {
	return &Service{Cfg: cfg, Bus: bus, RecognitionTimeout: recognitionTimeout, FinalizeTimeout: finalizeTimeout}
}

// RequestCancel invalidates any in-flight or pending recognition for the
// current session (testable property 5): its output, on completion, is
// discarded and no event is published for that run.
func (s *Service) RequestCancel() {
	s.task.RequestCancel()
}

// Process is called once per captured frame from the auto-recorder
// orchestrator (C5). Recognition work is spawned as a background
// goroutine; the one-shot finalize after the detection window closes runs
// in the caller and blocks it for up to FinalizeTimeout.
func (s *Service) Process(ctx context.Context, frame model.Frame, st *SessionState) {
	if st.Done {
		return
	}

	if s.task.IsRunning() {
		s.task.Feed(frame)
		return
	}

	windowOpen := time.Since(st.BattleStartedAt) < s.windowDuration()
	if !windowOpen {
		if !st.AnyApplied {
			s.finalize(ctx, frame, st)
		} else {
			st.Done = true
		}
		return
	}

	if !DetectWeaponDisplay(frame, s.Cfg) {
		return
	}
	st.Attempts++
	s.spawnRecognition(ctx, frame.Clone(), st)
}

func (s *Service) windowDuration() time.Duration {
	return s.Cfg.detectionWindowOr(20 * time.Second)
}

// detectionWindowOr is a seam so Config can carry the configured window
// without weapon needing an import on internal/config.
func (c Config) detectionWindowOr(fallback time.Duration) time.Duration {
	if c.DetectionWindow > 0 {
		return c.DetectionWindow
	}
	return fallback
}

func (s *Service) spawnRecognition(ctx context.Context, frame model.Frame, st *SessionState) {
	gen := s.task.Start()
	go func() {
		defer frame.Close()
		taskCtx, cancel := context.WithTimeout(ctx, s.RecognitionTimeout)
		defer cancel()

		result := RecognizeWeapons(frame, s.Cfg, nil, st.previous)
		// A regular recognition timeout drops the task (no apply, no
		// event); a generation mismatch means request_cancel() ran
		// meanwhile and this run's output must not be applied either.
		if taskCtx.Err() == nil && gen == s.task.CurrentGeneration() {
			st.applyResult(result)
			if st.allMatched() {
				s.publishDetected(st, true)
				st.Done = true
			}
		}

		next := s.task.Finish()
		if next != nil {
			s.spawnRecognition(ctx, *next, st)
		}
	}()
}

// finalize runs the one-shot finalize invocation after the detection
// window closes with no result ever applied: target_slots = all slots not
// yet predicted, no unmatched report is written, and a final event is
// always published (even on timeout, per spec.md §4.3).
func (s *Service) finalize(ctx context.Context, frame model.Frame, st *SessionState) {
	st.Done = true
	taskCtx, cancel := context.WithTimeout(ctx, s.FinalizeTimeout)
	defer cancel()

	done := make(chan model.WeaponRecognitionResult, 1)
	go func() {
		done <- RecognizeWeapons(frame, s.Cfg, st.unmatchedSlots(), st.previous)
	}()

	select {
	case result := <-done:
		st.applyResult(result)
	case <-taskCtx.Done():
		slog.Warn("weapon", "op", "finalize", "err", "timed out, defaulting unmatched slots")
		for _, slot := range st.unmatchedSlots() {
			st.previous[slot] = model.WeaponSlotResult{SlotID: slot, PredictedWeapon: model.UnmatchedWeapon, IsUnmatched: true}
		}
	}
	// Fill any slot still missing a prediction with the unmatched sentinel.
	for _, slot := range model.AllSlots {
		if _, ok := st.previous[slot]; !ok {
			st.previous[slot] = model.WeaponSlotResult{SlotID: slot, PredictedWeapon: model.UnmatchedWeapon, IsUnmatched: true}
		}
	}
	for i, slot := range model.AllSlots {
		r := st.previous[slot]
		if i < 4 {
			st.Allies[i] = r.PredictedWeapon
		} else {
			st.Enemies[i-4] = r.PredictedWeapon
		}
	}
	s.publishDetected(st, true)
}

func (s *Service) publishDetected(st *SessionState, isFinal bool) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(model.EventBattleWeaponsDetected, map[string]any{
		"allies":   st.Allies,
		"enemies":  st.Enemies,
		"is_final": isFinal,
	})
}
