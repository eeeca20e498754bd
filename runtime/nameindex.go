package runtime

import (
	"bytes"
	"sort"

	"github.com/hazna-vm/hazna/module"
)

// nameEntry binds one interned name to the module currently bound to
// it, kept in the order described by nameLess.
type nameEntry struct {
	name []byte
	mod  *module.Module
}

// nameLess orders names by length first, then lexicographically —
// spec.md §4.6's ordered name map. Comparing length first keeps the
// common case (short, distinct-length module names) a cheap integer
// compare before falling back to a byte scan.
func nameLess(a, b []byte) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

// NameIndex is the world's module-bind-name → module lookup table, an
// ordered slice searched by binary search rather than a Go map, so its
// iteration order matches spec.md §4.6's "ordered map" wording exactly
// (a plain map would make that guarantee unobservable but not true).
type NameIndex struct {
	entries []nameEntry
}

func (idx *NameIndex) search(name []byte) (int, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return !nameLess(idx.entries[i].name, name)
	})
	if i < len(idx.entries) && bytes.Equal(idx.entries[i].name, name) {
		return i, true
	}
	return i, false
}

// Find looks up name, returning its bound module.
func (idx *NameIndex) Find(name []byte) (*module.Module, bool) {
	i, ok := idx.search(name)
	if !ok {
		return nil, false
	}
	return idx.entries[i].mod, true
}

// Bind inserts name -> mod, or rebinds an existing name to a different
// module (spec.md §4.6: "if found, replace the pointer; if not found,
// allocate a name cell and insert at the located position").
func (idx *NameIndex) Bind(name []byte, mod *module.Module) {
	i, ok := idx.search(name)
	if ok {
		idx.entries[i].mod = mod
		return
	}
	idx.entries = append(idx.entries, nameEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = nameEntry{name: append([]byte(nil), name...), mod: mod}
}

// Unbind removes name from the index, if present.
func (idx *NameIndex) Unbind(name []byte) {
	i, ok := idx.search(name)
	if !ok {
		return
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
}

// Len reports the number of bound names.
func (idx *NameIndex) Len() int { return len(idx.entries) }
