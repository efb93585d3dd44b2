package analyzer

import (
	"context"
	"testing"

	"github.com/nasubidev/splatrecorder/internal/matcher"
	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMatcher struct{ result bool }

func (s stubMatcher) Match(model.Frame) bool { return s.result }

type stubPlugin struct {
	rate    model.Rate
	rateOK  bool
	calls   int
	result  model.Result
	resOK   bool
}

func (p *stubPlugin) ExtractRate(ctx context.Context, frame model.Frame, match model.Match) (model.Rate, bool) {
	p.calls++
	return p.rate, p.rateOK
}

func (p *stubPlugin) ExtractSessionResult(ctx context.Context, frame model.Frame, match model.Match) (model.Result, bool) {
	return p.result, p.resOK
}

func newTestRegistry(t *testing.T) *matcher.Registry {
	reg := matcher.NewRegistry()
	require.NoError(t, reg.Add(model.ScreenKey(KeySessionStart), stubMatcher{result: true}))
	reg.Freeze()
	return reg
}

func TestDetectSessionStartDelegatesToRegistry(t *testing.T) {
	a := NewFrameAnalyzer(newTestRegistry(t))
	assert.True(t, a.DetectSessionStart(model.Frame{}))
	assert.False(t, a.DetectSessionAbort(model.Frame{}))
}

func TestExtractRateCachesByFingerprint(t *testing.T) {
	a := NewFrameAnalyzer(matcher.NewRegistry())
	p := &stubPlugin{rate: model.XP{Value: 2000}, rateOK: true}
	a.Register(model.GameModeBattle, p)

	frame := model.Frame{Mat: blankROI(128, 128)}
	defer frame.Mat.Close()

	r1, ok1 := a.ExtractRate(context.Background(), frame, model.GameModeBattle, model.MatchX)
	require.True(t, ok1)
	assert.Equal(t, model.XP{Value: 2000}, r1)
	assert.Equal(t, 1, p.calls)

	r2, ok2 := a.ExtractRate(context.Background(), frame, model.GameModeBattle, model.MatchX)
	require.True(t, ok2)
	assert.Equal(t, model.XP{Value: 2000}, r2)
	assert.Equal(t, 1, p.calls, "second call against the same frame must hit the fingerprint cache")
}

func TestExtractRateUnknownModeFails(t *testing.T) {
	a := NewFrameAnalyzer(matcher.NewRegistry())
	frame := model.Frame{Mat: blankROI(64, 64)}
	defer frame.Mat.Close()
	_, ok := a.ExtractRate(context.Background(), frame, model.GameModeSalmon, model.MatchX)
	assert.False(t, ok)
}
