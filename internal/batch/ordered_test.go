package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedMap_PreservesInsertionOrder(t *testing.T) {
	om := NewOrderedMap[string, int]()
	om.Set("c", 3)
	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("a", 10) // existing key keeps its position

	assert.Equal(t, []string{"c", "a", "b"}, om.Keys())
	assert.Equal(t, []int{3, 10, 2}, om.Values())
	assert.Equal(t, 3, om.Len())

	v, ok := om.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestOrderedMap_Delete(t *testing.T) {
	om := NewOrderedMap[string, int]()
	for i, k := range []string{"a", "b", "c", "d"} {
		om.Set(k, i)
	}

	removed := om.Delete("b", "missing", "d")

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"a", "c"}, om.Keys())
	assert.False(t, om.Has("b"))

	// Re-adding a deleted key appends it.
	om.Set("b", 5)
	assert.Equal(t, []string{"a", "c", "b"}, om.Keys())
}

func TestOrderedMap_AllStopsEarly(t *testing.T) {
	om := NewOrderedMap[int, string]()
	om.Set(1, "one")
	om.Set(2, "two")
	om.Set(3, "three")

	var seen []int
	for k := range om.All() {
		seen = append(seen, k)
		if k == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, seen)
}
