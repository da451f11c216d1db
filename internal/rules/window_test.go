package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowCounts(t *testing.T) {
	w := NewWindow(5)

	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 5, w.Cap())

	w.Push(true)
	w.Push(true)
	w.Push(false)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 2, w.Trues())
	assert.Equal(t, 1, w.Falses())
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)

	w.Push(true)
	w.Push(true)
	w.Push(true)
	assert.Equal(t, 3, w.Trues())

	// Oldest true falls out, false comes in
	w.Push(false)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 2, w.Trues())
	assert.Equal(t, 1, w.Falses())

	w.Push(false)
	w.Push(false)
	assert.Equal(t, 0, w.Trues())
	assert.Equal(t, 3, w.Falses())
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(4)
	w.Push(true)
	w.Push(false)

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0, w.Trues())

	w.Push(true)
	assert.Equal(t, 1, w.Trues())
}

func TestWindowZeroCapacity(t *testing.T) {
	w := NewWindow(0)
	assert.Equal(t, 1, w.Cap())
	w.Push(true)
	assert.Equal(t, 1, w.Trues())
}
