package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/nasubidev/splatrecorder/internal/analyzer"
	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/nasubidev/splatrecorder/internal/weapon"
	"golang.org/x/sync/errgroup"
)

// ExternalRecorder is C5's dependency on the out-of-scope screen recorder
// (spec.md §6: "stop() → path?"): Stop returns the path of the file OBS
// just finished producing, since OBS names its own output and C6 only
// learns the path after the fact.
type ExternalRecorder interface {
	Begin(ctx context.Context) error
	Stop(ctx context.Context) (path string, err error)
}

// SubtitleCapture is the optional subtitle-capture collaborator. A nil
// SubtitleCapture on Orchestrator means subtitles are not configured.
type SubtitleCapture interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (srt string, err error)
}

// AssetSaver is C6's save_recording entry point as seen by C5.
type AssetSaver interface {
	SaveRecording(ctx context.Context, videoPath string, meta model.RecordingMetadata, resultFrame *model.Frame, srt string) error
}

// Publisher is the event-bus dependency, shared shape with weapon.Publisher.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// Tuning holds the C5 timing knobs from config.Recorder.
type Tuning struct {
	AbortWindow          time.Duration
	MaxDuration          time.Duration
	StopGrace            time.Duration
	PowerOffPollInterval time.Duration
	PowerOffConsecutive  int
}

// session is the per-recording state C5 threads across Process calls; it is
// nil whenever no match/battle is being tracked.
type session struct {
	match             model.Match
	meta              model.RecordingMetadata
	matchingStartedAt time.Time
	battleStartedAt   time.Time
	finish            bool
	resumeTrigger     func(model.Frame) bool
	weaponState       *weapon.SessionState
}

// Orchestrator is C5: it owns the C4 state machine, dispatches every
// captured frame to C2/C3, drives the external recorder, and hands
// completed sessions to C6.
type Orchestrator struct {
	SM       *StateMachine
	Analyzer *analyzer.FrameAnalyzer
	Weapon   *weapon.Service
	Recorder ExternalRecorder
	Subs     SubtitleCapture
	Assets   AssetSaver
	Bus      Publisher
	Tuning   Tuning

	sess      *session
	lastFrame model.Frame
}

// NewOrchestrator wires a fresh StateMachine and subscribes a listener that
// republishes every transition as recorder.state on Bus.
func NewOrchestrator(an *analyzer.FrameAnalyzer, w *weapon.Service, rec ExternalRecorder, subs SubtitleCapture, assets AssetSaver, bus Publisher, tuning Tuning) *Orchestrator {
	o := &Orchestrator{SM: NewStateMachine(), Analyzer: an, Weapon: w, Recorder: rec, Subs: subs, Assets: assets, Bus: bus, Tuning: tuning}
	o.SM.Subscribe(func(from, to model.RecordState, event model.RecordEvent) error {
		if o.Bus != nil {
			o.Bus.Publish(model.EventRecorderState, map[string]any{"from": from, "to": to, "event": event})
		}
		return nil
	})
	return o
}

// State reports the current recording state, the read-only half of the
// control surface C8 exposes directly without going through the command
// bus.
func (o *Orchestrator) State() model.RecordState { return o.SM.State() }

// Process dispatches a single captured frame per spec.md §4.5's per-state
// rules. Weapon recognition runs in its own goroutine; the stop sequence
// runs inside Process and blocks it until the stop grace, the recorder and
// subtitle stops and the final result extraction have all finished.
func (o *Orchestrator) Process(ctx context.Context, frame model.Frame) {
	o.setLastFrame(frame)
	switch o.SM.State() {
	case model.StateStopped:
		o.processStopped(ctx, frame)
	case model.StateRecording:
		o.processRecording(ctx, frame)
	case model.StatePaused:
		o.processPaused(frame)
	}
}

// setLastFrame retains the most recently processed frame so manual HTTP
// commands (ManualStop) and the power-off-driven shutdown have something to
// pass to the final extract_session_result attempt.
func (o *Orchestrator) setLastFrame(frame model.Frame) {
	if !o.lastFrame.Empty() {
		o.lastFrame.Close()
	}
	o.lastFrame = frame.Clone()
}

// ManualStart begins recording immediately, bypassing match-select/
// matching-start detection — the HTTP control surface's manual override.
func (o *Orchestrator) ManualStart(ctx context.Context) {
	if o.SM.State() != model.StateStopped {
		return
	}
	o.beginRecording(ctx, o.ensureSession())
}

// ManualPause/ManualResume/ManualStop/ManualCancel mirror the recorder
// state machine's events for operator-driven control (C8), independent of
// analyzer detections.
func (o *Orchestrator) ManualPause() { o.SM.Fire(model.EventPause) }
func (o *Orchestrator) ManualResume() {
	o.SM.Fire(model.EventResume)
}

func (o *Orchestrator) ManualStop(ctx context.Context) {
	if o.sess == nil {
		return
	}
	o.stop(ctx, o.lastFrame)
}

func (o *Orchestrator) ManualCancel(ctx context.Context) {
	if o.sess == nil {
		return
	}
	o.abort(ctx)
}

func (o *Orchestrator) ensureSession() *session {
	if o.sess == nil {
		o.sess = &session{}
	}
	return o.sess
}

func (o *Orchestrator) processStopped(ctx context.Context, frame model.Frame) {
	st := o.ensureSession()

	if st.matchingStartedAt.IsZero() {
		if match, ok := o.Analyzer.ExtractMatchSelect(frame); ok {
			st.match = match
			st.meta.GameMode = model.GameModeBattle
			if rate, ok := o.Analyzer.ExtractRate(ctx, frame, model.GameModeBattle, match); ok {
				if model.ShouldUpdateRate(st.meta.Rate, rate) {
					st.meta.Rate = rate
				}
			}
		}
		if o.Analyzer.DetectMatchingStart(frame) {
			st.matchingStartedAt = time.Now()
		}
		return
	}

	if o.Analyzer.DetectScheduleChange(frame) {
		o.resetSession()
		return
	}
	if o.Analyzer.DetectSessionStart(frame) {
		o.beginRecording(ctx, st)
	}
}

func (o *Orchestrator) beginRecording(ctx context.Context, st *session) {
	if err := o.Recorder.Begin(ctx); err != nil {
		slog.Error("recorder", "op", "begin", "err", err)
	}
	if o.Subs != nil {
		if err := o.Subs.Start(ctx); err != nil {
			slog.Error("recorder", "op", "subtitle_start", "err", err)
		}
	}
	st.battleStartedAt = time.Now()
	st.meta.StartedAt = st.battleStartedAt
	st.weaponState = weapon.NewSessionState(st.battleStartedAt)
	o.SM.Fire(model.EventStart)
}

func (o *Orchestrator) processRecording(ctx context.Context, frame model.Frame) {
	st := o.sess
	if st == nil {
		return // defensive: recording without a tracked session is a caller bug elsewhere, not a crash here
	}

	if o.Weapon != nil {
		o.Weapon.Process(ctx, frame, st.weaponState)
	}

	if !st.finish {
		o.processRecordingBeforeFinish(ctx, frame, st)
		return
	}
	o.processRecordingAfterFinish(ctx, frame, st)
}

func (o *Orchestrator) processRecordingBeforeFinish(ctx context.Context, frame model.Frame, st *session) {
	if time.Since(st.battleStartedAt) < o.Tuning.AbortWindow && o.Analyzer.DetectSessionAbort(frame) {
		o.abort(ctx)
		return
	}
	if time.Since(st.battleStartedAt) >= o.Tuning.MaxDuration {
		o.stop(ctx, frame)
		return
	}
	if o.Analyzer.DetectSessionFinish(frame) {
		st.finish = true
		st.resumeTrigger = o.Analyzer.DetectSessionJudgement
		o.SM.Fire(model.EventPause)
	}
}

func (o *Orchestrator) processRecordingAfterFinish(ctx context.Context, frame model.Frame, st *session) {
	if st.meta.Judgement == "" && o.Analyzer.DetectSessionJudgement(frame) {
		if j, ok := o.Analyzer.ExtractSessionJudgement(frame); ok {
			st.meta.Judgement = j
		}
	}
	if o.Analyzer.DetectLoadingStart(frame) {
		st.resumeTrigger = o.Analyzer.DetectLoadingEnd
		o.SM.Fire(model.EventPause)
		return
	}
	if o.Analyzer.DetectSessionResult(frame) {
		o.stop(ctx, frame)
	}
}

func (o *Orchestrator) processPaused(frame model.Frame) {
	st := o.sess
	if st == nil || st.resumeTrigger == nil {
		return
	}
	if st.resumeTrigger(frame) {
		o.SM.Fire(model.EventResume)
	}
}

// stop performs the (a) recorder/subtitle teardown and (b) best-effort final
// extract_session_result, joined, then hands the assembled recording to C6
// and resets session state. Used for both the normal session-result path
// and the 600s timeout-stop path (spec.md §4.5).
func (o *Orchestrator) stop(ctx context.Context, frame model.Frame) {
	st := o.sess
	o.Weapon.RequestCancel()
	resultFrame := frame.Clone()

	var videoPath string
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		select {
		case <-time.After(o.Tuning.StopGrace):
		case <-egctx.Done():
		}
		p, err := o.Recorder.Stop(egctx)
		if err != nil {
			slog.Error("recorder", "op", "stop", "err", err)
		}
		videoPath = p
		return nil
	})
	var srt string
	eg.Go(func() error {
		if o.Subs == nil {
			return nil
		}
		s, err := o.Subs.Stop(egctx)
		if err != nil {
			slog.Error("recorder", "op", "subtitle_stop", "err", err)
		}
		srt = s
		return nil
	})
	resultOK := false
	eg.Go(func() error {
		result, ok := o.Analyzer.ExtractSessionResult(egctx, resultFrame, model.GameModeBattle, st.match)
		if ok {
			st.meta.Result = result
			resultOK = true
		}
		return nil
	})
	eg.Wait() // errgroup here only for parallel join; none of these legs ever return an error

	if st.weaponState != nil {
		st.meta.Allies = st.weaponState.Allies
		st.meta.Enemies = st.weaponState.Enemies
	}

	var resultFramePtr *model.Frame
	if resultOK {
		resultFramePtr = &resultFrame
	} else {
		resultFrame.Close()
	}

	meta := st.meta
	if err := o.Assets.SaveRecording(ctx, videoPath, meta, resultFramePtr, srt); err != nil {
		slog.Error("recorder", "op", "save_recording", "err", err)
	}
	if resultFramePtr != nil {
		resultFramePtr.Close()
	}

	o.sess = nil
	o.SM.Fire(model.EventStop)
}

// abort stops the recorder/subtitle capture without ever handing anything
// to C6: used for schedule-change-while-standby and session-abort-while-
// recording (spec.md §4.5's "cancel").
func (o *Orchestrator) abort(ctx context.Context) {
	if o.Weapon != nil {
		o.Weapon.RequestCancel()
	}
	if _, err := o.Recorder.Stop(ctx); err != nil {
		slog.Error("recorder", "op", "abort_stop", "err", err)
	}
	if o.Subs != nil {
		if _, err := o.Subs.Stop(ctx); err != nil {
			slog.Error("recorder", "op", "abort_subtitle_stop", "err", err)
		}
	}
	o.sess = nil
	o.SM.Fire(model.EventStop)
}

// resetSession discards standby-phase tracking (match-select/matching-start
// seen so far) without touching the recorder, for the schedule-change-
// while-standby cancel path where no recording has begun yet.
func (o *Orchestrator) resetSession() {
	o.sess = nil
}

// PowerOffMatcher is the single matcher the power-off sentinel loop polls
// (spec.md §4.5): true means the console currently appears powered off.
type PowerOffMatcher func(frame model.Frame) bool

// WatchPowerOff polls isPoweredOff at Tuning.PowerOffPollInterval against
// the latest processed frame and returns once it has observed
// Tuning.PowerOffConsecutive consecutive positives, debouncing against
// transient black frames. Returns early if ctx is cancelled first.
func (o *Orchestrator) WatchPowerOff(ctx context.Context, isPoweredOff PowerOffMatcher) {
	consecutive := 0
	ticker := time.NewTicker(o.Tuning.PowerOffPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.lastFrame.Empty() {
				consecutive = 0
				continue
			}
			if isPoweredOff(o.lastFrame) {
				consecutive++
			} else {
				consecutive = 0
			}
			if consecutive >= o.Tuning.PowerOffConsecutive {
				return
			}
		}
	}
}
