package matcher

import (
	"testing"

	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysMatcher is a trivial Named stub for exercising group ordering without
// depending on real OpenCV pixel data.
type alwaysMatcher struct {
	name   string
	result bool
}

func (a alwaysMatcher) Match(model.Frame) bool { return a.result }
func (a alwaysMatcher) Name() string           { return a.name }

// TestGroupOrderIsLoadBearing exercises testable property 6: when multiple
// group members would match, MatchedName must return the first one in
// configured order, not an arbitrary one.
func TestGroupOrderIsLoadBearing(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("a", alwaysMatcher{name: "A", result: true}))
	require.NoError(t, reg.Add("b", alwaysMatcher{name: "B", result: true}))
	require.NoError(t, reg.AddGroup(Group{Name: "g", Keys: []model.ScreenKey{"a", "b"}}))
	reg.Freeze()

	assert.Equal(t, "A", reg.MatchedName("g", model.Frame{}))

	reg2 := NewRegistry()
	require.NoError(t, reg2.Add("a", alwaysMatcher{name: "A", result: true}))
	require.NoError(t, reg2.Add("b", alwaysMatcher{name: "B", result: true}))
	require.NoError(t, reg2.AddGroup(Group{Name: "g", Keys: []model.ScreenKey{"b", "a"}}))
	reg2.Freeze()

	assert.Equal(t, "B", reg2.MatchedName("g", model.Frame{}))
}

func TestMatchedNameNoneMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("a", alwaysMatcher{name: "A", result: false}))
	require.NoError(t, reg.AddGroup(Group{Name: "g", Keys: []model.ScreenKey{"a"}}))
	reg.Freeze()

	assert.Equal(t, "", reg.MatchedName("g", model.Frame{}))
	assert.Equal(t, "", reg.MatchedName("unknown-group", model.Frame{}))
}

func TestAddAfterFreezeErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Freeze()
	err := reg.Add("x", alwaysMatcher{name: "X"})
	assert.Error(t, err)
}

func TestAddGroupUnknownKeyErrors(t *testing.T) {
	reg := NewRegistry()
	err := reg.AddGroup(Group{Name: "g", Keys: []model.ScreenKey{"missing"}})
	assert.Error(t, err)
}

func TestDuplicateKeyErrors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add("a", alwaysMatcher{name: "A"}))
	err := reg.Add("a", alwaysMatcher{name: "A2"})
	assert.Error(t, err)
}
