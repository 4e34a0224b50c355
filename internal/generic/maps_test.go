package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapKeys(t *testing.T) {
	mapA := map[string]bool{"key1": true, "key2": true}
	mapB := map[string]bool{"key2": true, "key3": true}
	keys := MapKeys(mapA, mapB)
	assert.ElementsMatch(t, keys, []string{"key1", "key2", "key3"})
}

func TestMaxValueKey(t *testing.T) {
	key, ok := MaxValueKey(map[string]int{"a": 1, "b": 3, "c": 2})
	assert.True(t, ok)
	assert.Equal(t, "b", key)

	intKey, ok := MaxValueKey(map[int]int{7: 2, 3: 2, 9: 1})
	assert.True(t, ok)
	assert.Equal(t, 3, intKey, "ties resolve to the smallest key")

	_, ok = MaxValueKey(map[int]int{})
	assert.False(t, ok)
}

func TestFilterAndTake(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4, 5, 6}, func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 4, 6}, even)

	assert.Equal(t, []int{2, 4}, Take(even, 2))
	assert.Equal(t, []int{2, 4, 6}, Take(even, 10))
	assert.Empty(t, Take(even, -1))
}
