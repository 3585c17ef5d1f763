// Package arena provides opaque, generational arena keys backing
// PromotionKey and PromotionSlotKey (spec.md §3, §9: "arena + index over
// pointer graphs"). This is the idiomatic Go substitute for the original
// implementation's slotmap -- no generational-arena library exists anywhere
// in the reference corpus.
package arena

import "github.com/google/uuid"

// Key is an opaque handle into an Arena. Two keys compare equal only if
// they were issued by the same Arena instance for the same slot generation.
// Equality across two different Arena instances is never accidental:
// each Arena is tagged with a random instance id at construction.
type Key struct {
	arena      uuid.UUID
	generation uint32
	index      uint32
}

// Arena issues and tracks generational keys for a set of logical slots
// (promotions, or a promotion's mix-and-match slots). It owns no value
// storage itself -- callers index their own slices by Key.Index.
type Arena struct {
	id          uuid.UUID
	generations []uint32
}

// New creates an empty Arena with a fresh random instance id.
func New() *Arena {
	return &Arena{id: uuid.New()}
}

// Insert allocates a new Key for the next free index.
func (a *Arena) Insert() Key {
	idx := uint32(len(a.generations))
	a.generations = append(a.generations, 0)
	return Key{arena: a.id, generation: 0, index: idx}
}

// Contains reports whether key was issued by this Arena and has not been
// invalidated by a subsequent Remove at the same index.
func (a *Arena) Contains(key Key) bool {
	if key.arena != a.id {
		return false
	}
	if int(key.index) >= len(a.generations) {
		return false
	}
	return a.generations[key.index] == key.generation
}

// Remove invalidates key by bumping its slot's generation, so any
// previously-issued Key for that index no longer Contains().
func (a *Arena) Remove(key Key) {
	if !a.Contains(key) {
		return
	}
	a.generations[key.index]++
}

// Index returns the slot index a key refers to, for use indexing a
// caller-owned parallel slice. Valid even if the key has been removed;
// callers should check Contains first if staleness matters.
func (k Key) Index() uint32 {
	return k.index
}

// String renders a compact, arena-qualified representation of the key.
func (k Key) String() string {
	return k.arena.String()[:8] + "/" + itoa(k.index) + "#" + itoa(k.generation)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
