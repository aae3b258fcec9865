package batch

import "iter"

// OrderedMap is a map that remembers insertion order.
// Lookups are O(1); iteration follows the order keys were first set.
// It is not safe for concurrent use.
type OrderedMap[K comparable, V any] struct {
	m    map[K]V
	keys []K
}

// NewOrderedMap creates an empty ordered map.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{m: make(map[K]V)}
}

// Get returns the value for key. The ok result indicates whether it was found.
func (om *OrderedMap[K, V]) Get(key K) (value V, ok bool) {
	value, ok = om.m[key]
	return
}

// Has reports whether key is present.
func (om *OrderedMap[K, V]) Has(key K) bool {
	_, ok := om.m[key]
	return ok
}

// Set stores value under key. A new key is appended to the iteration order;
// an existing key keeps its position.
func (om *OrderedMap[K, V]) Set(key K, value V) {
	if _, exists := om.m[key]; !exists {
		om.keys = append(om.keys, key)
	}
	om.m[key] = value
}

// Delete removes the given keys and returns how many were present.
func (om *OrderedMap[K, V]) Delete(keys ...K) int {
	removed := 0
	for _, key := range keys {
		if _, ok := om.m[key]; ok {
			delete(om.m, key)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	kept := om.keys[:0]
	for _, key := range om.keys {
		if _, ok := om.m[key]; ok {
			kept = append(kept, key)
		}
	}
	clear(om.keys[len(kept):])
	om.keys = kept
	return removed
}

// Len returns the number of entries.
func (om *OrderedMap[K, V]) Len() int {
	return len(om.m)
}

// Keys returns a copy of the keys in insertion order.
func (om *OrderedMap[K, V]) Keys() []K {
	return append([]K(nil), om.keys...)
}

// Values returns the values in insertion order.
func (om *OrderedMap[K, V]) Values() []V {
	values := make([]V, 0, len(om.keys))
	for _, key := range om.keys {
		values = append(values, om.m[key])
	}
	return values
}

// All iterates over entries in insertion order.
func (om *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range om.keys {
			if !yield(key, om.m[key]) {
				return
			}
		}
	}
}
