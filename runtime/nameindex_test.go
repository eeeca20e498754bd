package runtime

import (
	"testing"

	"github.com/hazna-vm/hazna/module"
	"github.com/stretchr/testify/assert"
)

func TestNameIndexOrdersByLengthThenBytes(t *testing.T) {
	var idx NameIndex
	a := &module.Module{Id: 1}
	b := &module.Module{Id: 2}
	c := &module.Module{Id: 3}

	idx.Bind([]byte("bb"), b)
	idx.Bind([]byte("a"), a)
	idx.Bind([]byte("ccc"), c)

	var names []string
	for _, e := range idx.entries {
		names = append(names, string(e.name))
	}
	assert.Equal(t, []string{"a", "bb", "ccc"}, names)
}

func TestNameIndexFindAndRebind(t *testing.T) {
	var idx NameIndex
	a := &module.Module{Id: 1}
	b := &module.Module{Id: 2}

	idx.Bind([]byte("x"), a)
	got, ok := idx.Find([]byte("x"))
	assert.True(t, ok)
	assert.Same(t, a, got)

	idx.Bind([]byte("x"), b)
	got, ok = idx.Find([]byte("x"))
	assert.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, idx.Len())
}

func TestNameIndexUnbind(t *testing.T) {
	var idx NameIndex
	a := &module.Module{Id: 1}
	idx.Bind([]byte("x"), a)
	idx.Unbind([]byte("x"))
	_, ok := idx.Find([]byte("x"))
	assert.False(t, ok)
}
