package models

// OrderedMap is an indexable map whose iteration order equals insertion
// order, used for Context's symbols, positions, and orders collections
// (§3, §9 "Indexable ordered maps"). No ordered-map library appears in the
// retrieved reference corpus, so this is implemented directly: a plain map
// plus an insertion-order slice of keys, giving O(1) lookup and O(1)
// amortized insertion; deletion is O(n), a linear scan of the key slice,
// acceptable at the small per-run cardinalities symbols/positions/orders
// reach.
type OrderedMap[K comparable, V any] struct {
	m    map[K]V
	keys []K
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{m: make(map[K]V)}
}

// Set inserts or updates a key. New keys are appended to the order.
func (o *OrderedMap[K, V]) Set(key K, value V) {
	if _, exists := o.m[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.m[key] = value
}

// Get returns the value for key and whether it was present.
func (o *OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := o.m[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *OrderedMap[K, V]) Delete(key K) {
	if _, exists := o.m[key]; !exists {
		return
	}
	delete(o.m, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. Callers must not mutate the
// returned slice.
func (o *OrderedMap[K, V]) Keys() []K {
	return o.keys
}

// Len returns the number of entries.
func (o *OrderedMap[K, V]) Len() int {
	return len(o.keys)
}

// Values returns the values in insertion order.
func (o *OrderedMap[K, V]) Values() []V {
	vs := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		vs = append(vs, o.m[k])
	}
	return vs
}

// Each iterates entries in insertion order, stopping early if fn returns
// false.
func (o *OrderedMap[K, V]) Each(fn func(K, V) bool) {
	for _, k := range o.keys {
		if !fn(k, o.m[k]) {
			return
		}
	}
}
