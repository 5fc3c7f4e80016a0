package collections

import (
	"fmt"
	"slices"
)

// BidirectionalOneToOneMap is a bijection between keys and values.
type BidirectionalOneToOneMap[K, V comparable] struct {
	forward map[K]V
	inverse map[V]K
	compare func(a, b K) int
	frozen  bool
}

// NewBidirectionalOneToOneMap returns an empty map. compare fixes the
// iteration order of ForEach.
func NewBidirectionalOneToOneMap[K, V comparable](compare func(a, b K) int) *BidirectionalOneToOneMap[K, V] {
	return &BidirectionalOneToOneMap[K, V]{
		forward: make(map[K]V),
		inverse: make(map[V]K),
		compare: compare,
	}
}

// Put maps key to value. Earlier mappings of either key or value are
// dropped so the map stays one-to-one.
func (m *BidirectionalOneToOneMap[K, V]) Put(key K, value V) {
	if m.frozen {
		panic("collections: Put on frozen map")
	}
	if old, ok := m.forward[key]; ok {
		delete(m.inverse, old)
	}
	if old, ok := m.inverse[value]; ok {
		delete(m.forward, old)
	}
	m.forward[key] = value
	m.inverse[value] = key
}

// Freeze makes the map read-only.
func (m *BidirectionalOneToOneMap[K, V]) Freeze() *BidirectionalOneToOneMap[K, V] {
	m.frozen = true
	return m
}

func (m *BidirectionalOneToOneMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.forward[key]
	return v, ok
}

func (m *BidirectionalOneToOneMap[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.forward[key]; ok {
		return v
	}
	return def
}

func (m *BidirectionalOneToOneMap[K, V]) GetKey(value V) (K, bool) {
	k, ok := m.inverse[value]
	return k, ok
}

func (m *BidirectionalOneToOneMap[K, V]) GetKeyOrDefault(value V, def K) K {
	if k, ok := m.inverse[value]; ok {
		return k
	}
	return def
}

func (m *BidirectionalOneToOneMap[K, V]) ContainsKey(key K) bool {
	_, ok := m.forward[key]
	return ok
}

func (m *BidirectionalOneToOneMap[K, V]) ContainsValue(value V) bool {
	_, ok := m.inverse[value]
	return ok
}

// Inverse returns a frozen copy with keys and values swapped. valueCompare
// orders the new keys.
func (m *BidirectionalOneToOneMap[K, V]) Inverse(valueCompare func(a, b V) int) *BidirectionalOneToOneMap[V, K] {
	inv := NewBidirectionalOneToOneMap[V, K](valueCompare)
	for k, v := range m.forward {
		inv.forward[v] = k
		inv.inverse[k] = v
	}
	return inv.Freeze()
}

// ForEach calls fn for every pair in key order.
func (m *BidirectionalOneToOneMap[K, V]) ForEach(fn func(key K, value V)) {
	keys := make([]K, 0, len(m.forward))
	for k := range m.forward {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, m.compare)
	for _, k := range keys {
		fn(k, m.forward[k])
	}
}

func (m *BidirectionalOneToOneMap[K, V]) Size() int { return len(m.forward) }

func (m *BidirectionalOneToOneMap[K, V]) IsEmpty() bool { return len(m.forward) == 0 }

func (m *BidirectionalOneToOneMap[K, V]) String() string {
	return fmt.Sprintf("OneToOne(%d)", len(m.forward))
}
