package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/nasubidev/splatrecorder/internal/analyzer"
	"github.com/nasubidev/splatrecorder/internal/matcher"
	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/nasubidev/splatrecorder/internal/weapon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type flagMatcher struct{ on *bool }

func (f flagMatcher) Match(model.Frame) bool { return *f.on }

type testFlags struct {
	matchingStart bool
	sessionStart  bool
	sessionAbort  bool
	sessionFinish bool
	sessionJudge  bool
	loadingStart  bool
	loadingEnd    bool
	sessionResult bool
	scheduleChange bool
}

func newTestAnalyzer(f *testFlags) *analyzer.FrameAnalyzer {
	reg := matcher.NewRegistry()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(reg.Add(analyzer.KeyMatchingStart, flagMatcher{&f.matchingStart}))
	must(reg.Add(analyzer.KeySessionStart, flagMatcher{&f.sessionStart}))
	must(reg.Add(analyzer.KeySessionAbort, flagMatcher{&f.sessionAbort}))
	must(reg.Add(analyzer.KeySessionFinish, flagMatcher{&f.sessionFinish}))
	must(reg.Add(analyzer.KeySessionJudge, flagMatcher{&f.sessionJudge}))
	must(reg.Add(analyzer.KeyLoadingStart, flagMatcher{&f.loadingStart}))
	must(reg.Add(analyzer.KeyLoadingEnd, flagMatcher{&f.loadingEnd}))
	must(reg.Add(analyzer.KeySessionResult, flagMatcher{&f.sessionResult}))
	must(reg.Add(analyzer.KeyScheduleChange, flagMatcher{&f.scheduleChange}))
	must(reg.Add("judge_win", matcher.WithName("WIN", flagMatcher{&f.sessionJudge})))
	must(reg.AddGroup(matcher.Group{Name: analyzer.GroupBattleJudgements, Keys: []model.ScreenKey{"judge_win"}}))
	reg.Freeze()

	an := analyzer.NewFrameAnalyzer(reg)
	an.Register(model.GameModeBattle, stubBattlePlugin{})
	return an
}

type stubBattlePlugin struct{}

func (stubBattlePlugin) ExtractRate(context.Context, model.Frame, model.Match) (model.Rate, bool) {
	return nil, false
}
func (stubBattlePlugin) ExtractSessionResult(context.Context, model.Frame, model.Match) (model.Result, bool) {
	return model.BattleResult{Kill: 5, Death: 3, Special: 1}, true
}

type fakeRecorder struct {
	beginCalls, stopCalls int
}

func (f *fakeRecorder) Begin(context.Context) error { f.beginCalls++; return nil }
func (f *fakeRecorder) Stop(context.Context) (string, error) {
	f.stopCalls++
	return "/tmp/fake-recording.mkv", nil
}

type fakeAssetSaver struct {
	saved []model.RecordingMetadata
}

func (f *fakeAssetSaver) SaveRecording(ctx context.Context, videoPath string, meta model.RecordingMetadata, resultFrame *model.Frame, srt string) error {
	f.saved = append(f.saved, meta)
	return nil
}

func blankTestFrame() model.Frame {
	return model.Frame{Mat: gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)}
}

func newTestOrchestrator(f *testFlags, rec *fakeRecorder, assets *fakeAssetSaver) *Orchestrator {
	an := newTestAnalyzer(f)
	w := weapon.NewService(weapon.DefaultThresholds(), nil, time.Second, time.Second)
	return NewOrchestrator(an, w, rec, nil, assets, nil, Tuning{
		AbortWindow: 60 * time.Second,
		MaxDuration: 600 * time.Second,
		StopGrace:   0,
	})
}

func TestStandbyToRecordingTransition(t *testing.T) {
	f := &testFlags{}
	rec := &fakeRecorder{}
	o := newTestOrchestrator(f, rec, &fakeAssetSaver{})
	frame := blankTestFrame()
	defer frame.Close()

	f.matchingStart = true
	o.Process(context.Background(), frame)
	assert.Equal(t, model.StateStopped, o.SM.State())

	f.matchingStart = false
	f.sessionStart = true
	o.Process(context.Background(), frame)

	assert.Equal(t, model.StateRecording, o.SM.State())
	assert.Equal(t, 1, rec.beginCalls)
}

func TestScheduleChangeWhileStandbyResetsWithoutTouchingRecorder(t *testing.T) {
	f := &testFlags{matchingStart: true}
	rec := &fakeRecorder{}
	o := newTestOrchestrator(f, rec, &fakeAssetSaver{})
	frame := blankTestFrame()
	defer frame.Close()
	o.Process(context.Background(), frame)

	f.matchingStart = false
	f.scheduleChange = true
	o.Process(context.Background(), frame)

	assert.Equal(t, model.StateStopped, o.SM.State())
	assert.Equal(t, 0, rec.stopCalls)
	assert.Nil(t, o.sess)
}

func TestFinishJudgementLoadingResultFlow(t *testing.T) {
	f := &testFlags{}
	rec := &fakeRecorder{}
	assets := &fakeAssetSaver{}
	o := newTestOrchestrator(f, rec, assets)
	frame := blankTestFrame()
	defer frame.Close()

	f.matchingStart = true
	o.Process(context.Background(), frame)
	f.matchingStart = false
	f.sessionStart = true
	o.Process(context.Background(), frame)
	require.Equal(t, model.StateRecording, o.SM.State())
	f.sessionStart = false

	f.sessionFinish = true
	o.Process(context.Background(), frame)
	assert.Equal(t, model.StatePaused, o.SM.State())
	f.sessionFinish = false

	f.sessionJudge = true
	o.Process(context.Background(), frame) // resume_trigger fires
	assert.Equal(t, model.StateRecording, o.SM.State())

	o.Process(context.Background(), frame) // judgement extracted now that we're recording again
	assert.Equal(t, model.JudgementWin, o.sess.meta.Judgement)
	f.sessionJudge = false

	f.loadingStart = true
	o.Process(context.Background(), frame)
	assert.Equal(t, model.StatePaused, o.SM.State())
	f.loadingStart = false

	f.loadingEnd = true
	o.Process(context.Background(), frame)
	assert.Equal(t, model.StateRecording, o.SM.State())
	f.loadingEnd = false

	f.sessionResult = true
	o.Process(context.Background(), frame)

	assert.Equal(t, model.StateStopped, o.SM.State())
	assert.Equal(t, 1, rec.stopCalls)
	require.Len(t, assets.saved, 1)
	assert.Equal(t, model.JudgementWin, assets.saved[0].Judgement)
	br, ok := assets.saved[0].Result.(model.BattleResult)
	require.True(t, ok)
	assert.Equal(t, 5, br.Kill)
}

func TestSessionAbortWithinWindowCancelsWithoutSaving(t *testing.T) {
	f := &testFlags{}
	rec := &fakeRecorder{}
	assets := &fakeAssetSaver{}
	o := newTestOrchestrator(f, rec, assets)
	frame := blankTestFrame()
	defer frame.Close()

	f.matchingStart = true
	o.Process(context.Background(), frame)
	f.matchingStart = false
	f.sessionStart = true
	o.Process(context.Background(), frame)
	f.sessionStart = false
	require.Equal(t, model.StateRecording, o.SM.State())

	f.sessionAbort = true
	o.Process(context.Background(), frame)

	assert.Equal(t, model.StateStopped, o.SM.State())
	assert.Empty(t, assets.saved)
	assert.Equal(t, 1, rec.stopCalls)
}

func TestTimeoutStopSavesBestEffort(t *testing.T) {
	f := &testFlags{}
	rec := &fakeRecorder{}
	assets := &fakeAssetSaver{}
	o := newTestOrchestrator(f, rec, assets)
	o.Tuning.MaxDuration = 0 // already "exceeded" on the first recording frame
	frame := blankTestFrame()
	defer frame.Close()

	f.matchingStart = true
	o.Process(context.Background(), frame)
	f.matchingStart = false
	f.sessionStart = true
	o.Process(context.Background(), frame)
	f.sessionStart = false

	o.Process(context.Background(), frame) // battle_started_at is already >= MaxDuration=0 in the past

	assert.Equal(t, model.StateStopped, o.SM.State())
	require.Len(t, assets.saved, 1)
}

func TestManualControlsBypassDetection(t *testing.T) {
	f := &testFlags{}
	rec := &fakeRecorder{}
	assets := &fakeAssetSaver{}
	o := newTestOrchestrator(f, rec, assets)
	frame := blankTestFrame()
	defer frame.Close()
	o.Process(context.Background(), frame) // seed lastFrame

	o.ManualStart(context.Background())
	assert.Equal(t, model.StateRecording, o.SM.State())

	o.ManualPause()
	assert.Equal(t, model.StatePaused, o.SM.State())

	o.ManualResume()
	assert.Equal(t, model.StateRecording, o.SM.State())

	o.ManualCancel(context.Background())
	assert.Equal(t, model.StateStopped, o.SM.State())
	assert.Empty(t, assets.saved)
}

func TestWatchPowerOffDebouncesConsecutivePositives(t *testing.T) {
	f := &testFlags{}
	o := newTestOrchestrator(f, &fakeRecorder{}, &fakeAssetSaver{})
	o.Tuning.PowerOffPollInterval = 2 * time.Millisecond
	o.Tuning.PowerOffConsecutive = 3
	frame := blankTestFrame()
	defer frame.Close()
	o.Process(context.Background(), frame)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		o.WatchPowerOff(ctx, func(model.Frame) bool { return true })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WatchPowerOff did not return after consecutive positives")
	}
}
