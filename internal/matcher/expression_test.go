package matcher

import (
	"testing"

	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpressionAndEval(t *testing.T) {
	lookup := func(k model.ScreenKey) bool {
		return map[model.ScreenKey]bool{"a": true, "b": false, "c": true}[k]
	}

	cases := []struct {
		src  string
		want bool
	}{
		{"matcher(a)", true},
		{"matcher(b)", false},
		{"not(matcher(b))", true},
		{"matcher(a) and matcher(c)", true},
		{"matcher(a) and matcher(b)", false},
		{"matcher(b) or matcher(c)", true},
		{"matcher(b) or matcher(b)", false},
		{"not(matcher(a)) and matcher(b)", false},
		{"(matcher(a) or matcher(b)) and matcher(c)", true},
	}
	for _, tc := range cases {
		expr, err := ParseExpression(tc.src)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, expr.Eval(lookup), tc.src)
	}
}

func TestParseExpressionSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"matcher(a",
		"matcher()",
		"and matcher(a)",
		"matcher(a) and",
		"matcher(a))",
	} {
		_, err := ParseExpression(src)
		assert.Error(t, err, src)
	}
}

func TestCompositeMatcherDelegatesToRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("start", alwaysMatcher{name: "start", result: true}))
	require.NoError(t, reg.Add("loading", alwaysMatcher{name: "loading", result: false}))

	expr, err := ParseExpression("matcher(start) and not(matcher(loading))")
	require.NoError(t, err)
	cm := NewCompositeMatcher(expr, reg.Match)
	assert.True(t, cm.Match(model.Frame{}))
}
