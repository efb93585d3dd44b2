package matcher

import "github.com/nasubidev/splatrecorder/internal/model"

// Expression is a tree with leaves matcher(name) and internal nodes not/
// and/or. It evaluates against a lookup function key -> bool. Evaluation is
// purely functional and short-circuits: "and" stops at the first false,
// "or" at the first true.
type Expression interface {
	Eval(lookup func(model.ScreenKey) bool) bool
}

// Leaf references a single matcher by ScreenKey.
type Leaf struct {
	Key model.ScreenKey
}

func (l Leaf) Eval(lookup func(model.ScreenKey) bool) bool { return lookup(l.Key) }

// Not negates its operand.
type Not struct {
	X Expression
}

func (n Not) Eval(lookup func(model.ScreenKey) bool) bool { return !n.X.Eval(lookup) }

// And evaluates its operands left to right, stopping at the first false.
type And struct {
	Xs []Expression
}

func (a And) Eval(lookup func(model.ScreenKey) bool) bool {
	for _, x := range a.Xs {
		if !x.Eval(lookup) {
			return false
		}
	}
	return true
}

// Or evaluates its operands left to right, stopping at the first true.
type Or struct {
	Xs []Expression
}

func (o Or) Eval(lookup func(model.ScreenKey) bool) bool {
	for _, x := range o.Xs {
		if x.Eval(lookup) {
			return true
		}
	}
	return false
}

// CompositeMatcher evaluates an Expression by delegating leaf matcher(name)
// lookups to a registry-provided function.
type CompositeMatcher struct {
	expr   Expression
	lookup func(model.ScreenKey, model.Frame) bool
	frame  model.Frame // unused: Match passes its frame to lookup directly
}

// NewCompositeMatcher builds a CompositeMatcher. lookup resolves a leaf key
// against the current frame (supplied to Match).
func NewCompositeMatcher(expr Expression, lookup func(model.ScreenKey, model.Frame) bool) *CompositeMatcher {
	return &CompositeMatcher{expr: expr, lookup: lookup}
}

func (c *CompositeMatcher) Match(frame model.Frame) bool {
	return c.expr.Eval(func(key model.ScreenKey) bool {
		return c.lookup(key, frame)
	})
}
