// Package salmon implements the GameMode=salmon analyzer.Plugin. Per
// spec.md §4.2 ("most methods may be not implemented until the domain is
// filled in; this is explicit and documented"), Salmon Run's rate and
// result extraction are not implemented — there is no K/D/special OCR
// layout, rule/stage vocabulary, or rating scheme defined for it in this
// iteration. Both methods return ok=false unconditionally rather than
// guessing at undocumented pixel layouts.
package salmon

import (
	"context"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Plugin is a not-implemented analyzer.Plugin for GameMode=salmon.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

// ExtractRate is not implemented for Salmon Run.
func (p *Plugin) ExtractRate(ctx context.Context, frame model.Frame, match model.Match) (model.Rate, bool) {
	return nil, false
}

// ExtractSessionResult is not implemented for Salmon Run.
func (p *Plugin) ExtractSessionResult(ctx context.Context, frame model.Frame, match model.Match) (model.Result, bool) {
	return nil, false
}
