package debugmap

import (
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
)

func TestUpdateThenLookup(t *testing.T) {
	m := New()
	v := constant.NewInt(types.I32, 5)

	m.Update("x", v)
	got, ok := m.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, v, got)
}

func TestLookupMissingName(t *testing.T) {
	m := New()
	_, ok := m.Lookup("y")
	assert.False(t, ok)
}

func TestInsertionOrderPreservedAcrossRebind(t *testing.T) {
	m := New()
	a := constant.NewInt(types.I32, 1)
	b := constant.NewInt(types.I32, 2)
	c := constant.NewInt(types.I32, 3)

	m.Update("a", a)
	m.Update("b", b)
	m.Update("a", c) // rebind a; should not move its position

	assert.Equal(t, []string{"a", "b"}, m.Names())
	got, _ := m.Lookup("a")
	assert.Equal(t, c, got)
	assert.Equal(t, 2, m.Len())
}
