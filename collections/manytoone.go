// Package collections provides the bidirectional maps the lens tables are
// built from.
//
// Maps are populated by a single goroutine and then frozen. A frozen map is
// read-only and may be shared by any number of readers.
package collections

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"
)

// BidirectionalManyToOneRepresentativeMap maps many keys onto one value and
// remembers, for each value, the key that represents the group.
//
// The representative of a value is the key set with SetRepresentative if
// there is one, otherwise the only key, otherwise the smallest key under the
// map's comparison. Insertion order never affects the choice.
type BidirectionalManyToOneRepresentativeMap[K, V comparable] struct {
	forward         map[K]V
	inverse         map[V]*set.Set[K]
	representatives map[V]K
	compare         func(a, b K) int
	frozen          bool
}

// NewBidirectionalManyToOneRepresentativeMap returns an empty map. compare
// orders keys when a representative has to be chosen among several.
func NewBidirectionalManyToOneRepresentativeMap[K, V comparable](compare func(a, b K) int) *BidirectionalManyToOneRepresentativeMap[K, V] {
	return &BidirectionalManyToOneRepresentativeMap[K, V]{
		forward:         make(map[K]V),
		inverse:         make(map[V]*set.Set[K]),
		representatives: make(map[V]K),
		compare:         compare,
	}
}

func (m *BidirectionalManyToOneRepresentativeMap[K, V]) checkMutable(op string) {
	if m.frozen {
		panic(fmt.Sprintf("collections: %s on frozen map", op))
	}
}

// Put maps key to value, replacing any earlier mapping of key.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Put(key K, value V) {
	m.checkMutable("Put")
	if old, ok := m.forward[key]; ok {
		if old == value {
			return
		}
		m.unlink(key, old)
	}
	m.forward[key] = value
	keys, ok := m.inverse[value]
	if !ok {
		keys = set.New[K](1)
		m.inverse[value] = keys
	}
	keys.Insert(key)
}

func (m *BidirectionalManyToOneRepresentativeMap[K, V]) unlink(key K, value V) {
	keys := m.inverse[value]
	keys.Remove(key)
	if keys.Empty() {
		delete(m.inverse, value)
		delete(m.representatives, value)
		return
	}
	if rep, ok := m.representatives[value]; ok && rep == key {
		delete(m.representatives, value)
	}
}

// PutAll maps every key in keys to value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) PutAll(keys []K, value V) {
	for _, k := range keys {
		m.Put(k, value)
	}
}

// SetRepresentative pins key as the representative of value. key must
// already map to value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) SetRepresentative(value V, key K) {
	m.checkMutable("SetRepresentative")
	if got, ok := m.forward[key]; !ok || got != value {
		panic(fmt.Sprintf("collections: representative %v does not map to %v", key, value))
	}
	m.representatives[value] = key
}

// RemoveValue drops value and every key mapping to it. It returns the keys
// that were removed, in sorted order.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) RemoveValue(value V) []K {
	m.checkMutable("RemoveValue")
	keys := m.GetKeys(value)
	for _, k := range keys {
		delete(m.forward, k)
	}
	delete(m.inverse, value)
	delete(m.representatives, value)
	return keys
}

// Freeze makes the map read-only. Freezing twice is harmless.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Freeze() *BidirectionalManyToOneRepresentativeMap[K, V] {
	m.frozen = true
	return m
}

// Frozen reports whether Freeze has been called.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Frozen() bool { return m.frozen }

// Get returns the value key maps to.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.forward[key]
	return v, ok
}

// GetOrDefault returns the value key maps to, or def.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.forward[key]; ok {
		return v
	}
	return def
}

// ContainsKey reports whether key is mapped.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) ContainsKey(key K) bool {
	_, ok := m.forward[key]
	return ok
}

// ContainsValue reports whether some key maps to value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) ContainsValue(value V) bool {
	_, ok := m.inverse[value]
	return ok
}

// GetKeys returns every key mapping to value, sorted.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) GetKeys(value V) []K {
	keys, ok := m.inverse[value]
	if !ok {
		return nil
	}
	out := keys.Slice()
	slices.SortFunc(out, m.compare)
	return out
}

// HasExplicitRepresentativeKey reports whether SetRepresentative was called
// for value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) HasExplicitRepresentativeKey(value V) bool {
	_, ok := m.representatives[value]
	return ok
}

// GetRepresentativeKey returns the representative key of value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) GetRepresentativeKey(value V) (K, bool) {
	if rep, ok := m.representatives[value]; ok {
		return rep, true
	}
	keys, ok := m.inverse[value]
	if !ok {
		var zero K
		return zero, false
	}
	var best K
	first := true
	for k := range keys.Items() {
		if first || m.compare(k, best) < 0 {
			best = k
			first = false
		}
	}
	return best, true
}

// GetRepresentativeKeyOrDefault returns the representative key of value,
// or def when nothing maps to value.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) GetRepresentativeKeyOrDefault(value V, def K) K {
	if k, ok := m.GetRepresentativeKey(value); ok {
		return k
	}
	return def
}

// Size returns the number of keys.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Size() int { return len(m.forward) }

// IsEmpty reports whether the map has no keys.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) IsEmpty() bool { return len(m.forward) == 0 }

// Keys returns every key, sorted.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) Keys() []K {
	out := make([]K, 0, len(m.forward))
	for k := range m.forward {
		out = append(out, k)
	}
	slices.SortFunc(out, m.compare)
	return out
}

// ForEach calls fn for every key/value pair in key order.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) ForEach(fn func(key K, value V)) {
	for _, k := range m.Keys() {
		fn(k, m.forward[k])
	}
}

// ForEachManyToOneMapping calls fn once per value with its sorted keys and
// representative. Values are visited in the order of their representatives.
func (m *BidirectionalManyToOneRepresentativeMap[K, V]) ForEachManyToOneMapping(fn func(keys []K, value V, representative K)) {
	type group struct {
		value V
		rep   K
	}
	groups := make([]group, 0, len(m.inverse))
	for v := range m.inverse {
		rep, _ := m.GetRepresentativeKey(v)
		groups = append(groups, group{v, rep})
	}
	slices.SortFunc(groups, func(a, b group) int { return m.compare(a.rep, b.rep) })
	for _, g := range groups {
		fn(m.GetKeys(g.value), g.value, g.rep)
	}
}
