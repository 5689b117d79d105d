package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyThenNil(t *testing.T) {
	assert.Nil(t, EmptyThenNil(""))
	assert.Nil(t, EmptyThenNil("  "))
	assert.Equal(t, "a", *EmptyThenNil("a"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}

func TestUniqBy(t *testing.T) {
	type item struct {
		key   string
		value int
	}
	res := UniqBy([]item{{"a", 1}, {"b", 2}, {"a", 3}}, func(i item) string { return i.key })
	assert.Equal(t, []item{{"a", 1}, {"b", 2}}, res)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}

