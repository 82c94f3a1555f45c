package playback

import (
	"testing"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestStepDelay(t *testing.T) {
	at := func(ts int64) *model.TimelineEntry { return &model.TimelineEntry{Timestamp: ts} }

	tests := []struct {
		name  string
		prev  *model.TimelineEntry
		next  *model.TimelineEntry
		speed float64
		want  time.Duration
	}{
		{"real gap", at(1000), at(1100), 1, 100 * time.Millisecond},
		{"long gap clamps", at(100), at(2100), 1, 2000 * time.Millisecond},
		{"very long gap clamps", at(100), at(60100), 1, MaxStepDelay},
		{"tiny gap clamps", at(1000), at(1001), 1, MinStepDelay},
		{"equal timestamps clamp", at(1000), at(1000), 1, MinStepDelay},
		{"faster", at(1000), at(1400), 4, 100 * time.Millisecond},
		{"slower", at(1000), at(1400), 0.25, 1600 * time.Millisecond},
		{"starts at zero", at(0), at(500), 1, 500 * time.Millisecond},
		{"starts at zero clamps", at(0), at(5000), 1, MaxStepDelay},
		{"both zero clamp", at(0), at(0), 1, MinStepDelay},
		{"missing prev", nil, at(1400), 1, 100 * time.Millisecond},
		{"missing next scaled", at(1000), nil, 2, 50 * time.Millisecond},
		{"missing at quarter speed", nil, nil, 0.25, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StepDelay(tt.prev, tt.next, tt.speed))
		})
	}
}

func TestValidateSpeed(t *testing.T) {
	for _, s := range Speeds {
		assert.NoError(t, ValidateSpeed(s))
	}
	for _, s := range []float64{0, -1, 0.75, 3, 8} {
		assert.ErrorIs(t, ValidateSpeed(s), ErrInvalidSpeed)
	}
}

func TestSpeedCycling(t *testing.T) {
	assert.Equal(t, 0.5, NextSpeed(0.25))
	assert.Equal(t, 4.0, NextSpeed(4))
	assert.Equal(t, 0.25, PrevSpeed(0.5))
	assert.Equal(t, 0.25, PrevSpeed(0.25))
	assert.Equal(t, DefaultSpeed, NextSpeed(3))
	assert.Equal(t, DefaultSpeed, PrevSpeed(3))
}
