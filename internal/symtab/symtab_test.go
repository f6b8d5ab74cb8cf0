package symtab

import (
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
)

func TestSymbolForIsIdempotent(t *testing.T) {
	tab := New()
	v := constant.NewInt(types.I32, 7)

	s1 := tab.SymbolFor(v)
	s2 := tab.SymbolFor(v)

	assert.Equal(t, s1, s2)
	assert.Equal(t, 1, tab.Len())
}

func TestDistinctValuesGetDistinctSymbols(t *testing.T) {
	tab := New()
	a := constant.NewInt(types.I32, 1)
	b := constant.NewInt(types.I32, 1)

	s1 := tab.SymbolFor(a)
	s2 := tab.SymbolFor(b)

	assert.NotEqual(t, s1, s2)
	assert.Equal(t, 2, tab.Len())
}

func TestLookupDoesNotCreate(t *testing.T) {
	tab := New()
	v := constant.NewInt(types.I32, 3)

	_, ok := tab.Lookup(v)
	assert.False(t, ok)
	assert.Equal(t, 0, tab.Len())

	tab.SymbolFor(v)
	sym, ok := tab.Lookup(v)
	assert.True(t, ok)
	assert.Equal(t, "v1", sym.String())
}
