package internal

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUInt64Set(t *testing.T) {
	s := NewUInt64Set()

	s.Add(10)
	s.Add(20)
	s.Add(10) // Add duplicate

	assert.True(t, s.Contains(10))
	assert.True(t, s.Contains(20))
	assert.False(t, s.Contains(30))
	assert.Equal(t, 2, s.Len())

	s.Remove(10)
	assert.False(t, s.Contains(10))
	assert.Equal(t, 1, s.Len())

	s.Add(30)
	elements := s.Elements()
	sort.Slice(elements, func(i, j int) bool { return elements[i] < elements[j] })
	assert.Equal(t, []uint64{20, 30}, elements)
}
