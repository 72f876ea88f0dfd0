package engine

import (
	"testing"

	"automationdash/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestSelection_Toggle(t *testing.T) {
	var s Selection
	a := core.Automation{ID: "a"}
	b := core.Automation{ID: "b"}

	assert.Equal(t, "a", s.Toggle(a))
	assert.Equal(t, "a", s.ID())

	assert.Equal(t, "", s.Toggle(a), "toggling the open automation closes it")
	_, ok := s.Current()
	assert.False(t, ok)

	s.Toggle(a)
	assert.Equal(t, "b", s.Toggle(b), "toggling another automation switches to it")
}

func TestSelection_Sync(t *testing.T) {
	var s Selection
	s.Toggle(core.Automation{ID: "a", Name: "old", Status: core.AutomationStatusActive})

	s.Sync([]core.Automation{{ID: "a", Name: "new", Status: core.AutomationStatusPaused}, {ID: "b"}})
	cur, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, "new", cur.Name)
	assert.Equal(t, core.AutomationStatusPaused, cur.Status)

	s.Sync([]core.Automation{{ID: "b"}})
	cur, ok = s.Current()
	assert.True(t, ok, "missing automation keeps the last-known object")
	assert.Equal(t, "new", cur.Name)

	s.Clear()
	s.Sync([]core.Automation{{ID: "a"}})
	_, ok = s.Current()
	assert.False(t, ok, "sync never opens a selection")
}
