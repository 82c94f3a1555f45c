package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSizer(t *testing.T) {
	s := NewSizer(80, 24)
	assert.Equal(t, 80, s.Width)
	assert.Equal(t, 24, s.Height)
	assert.Equal(t, 16, s.BodyLines(5, 3))
	assert.Equal(t, 1, NewSizer(80, 4).BodyLines(5, 3))
}

func TestDetectSizerFallback(t *testing.T) {
	// -1 is never a terminal
	s := detect(-1)
	assert.Equal(t, DefaultWidth, s.Width)
	assert.Equal(t, DefaultHeight, s.Height)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name              string
		total, focus, rows int
		start, end        int
	}{
		{"empty", 0, 0, 10, 0, 0},
		{"fits", 5, 2, 10, 0, 5},
		{"focus at end", 100, 99, 10, 90, 100},
		{"focus at start", 100, 0, 10, 0, 10},
		{"focus in middle", 100, 50, 10, 41, 51},
		{"focus past end", 100, 500, 10, 90, 100},
		{"negative focus", 100, -3, 10, 0, 10},
		{"no rows", 10, 3, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Window(tt.total, tt.focus, tt.rows)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestColumnsFor(t *testing.T) {
	wide := ColumnsFor(120)
	assert.True(t, wide.Time && wide.Gap && wide.Actors)
	assert.Equal(t, 120-2-13-8-16, wide.Label)

	// 2+13+16 = 31 used without gap
	medium := ColumnsFor(55)
	assert.False(t, medium.Gap)
	assert.True(t, medium.Actors)
	assert.Equal(t, 24, medium.Label)

	narrow := ColumnsFor(30)
	assert.False(t, narrow.Gap)
	assert.False(t, narrow.Actors)
	assert.False(t, narrow.Time)
	assert.Equal(t, 28, narrow.Label)
}
