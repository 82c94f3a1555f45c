package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// Step delay bounds
const (
	MinStepDelay     = 16 * time.Millisecond
	MaxStepDelay     = 2000 * time.Millisecond
	DefaultStepDelay = 100 * time.Millisecond
	DefaultSpeed     = 1.0
)

// ErrInvalidSpeed is returned for speeds outside the supported set
var ErrInvalidSpeed = errors.New("invalid playback speed")

// Speeds lists the supported playback multipliers in ascending order
var Speeds = []float64{0.25, 0.5, 1, 2, 4}

// ValidateSpeed returns ErrInvalidSpeed unless speed is one of Speeds
func ValidateSpeed(speed float64) error {
	for _, s := range Speeds {
		if s == speed {
			return nil
		}
	}
	return fmt.Errorf("%w: %v (allowed: 0.25, 0.5, 1, 2, 4)", ErrInvalidSpeed, speed)
}

// NextSpeed returns the next faster speed, staying at the top
func NextSpeed(speed float64) float64 {
	for i, s := range Speeds {
		if s == speed && i < len(Speeds)-1 {
			return Speeds[i+1]
		}
	}
	return speedOrDefault(speed)
}

// PrevSpeed returns the next slower speed, staying at the bottom
func PrevSpeed(speed float64) float64 {
	for i, s := range Speeds {
		if s == speed && i > 0 {
			return Speeds[i-1]
		}
	}
	return speedOrDefault(speed)
}

func speedOrDefault(speed float64) float64 {
	if ValidateSpeed(speed) != nil {
		return DefaultSpeed
	}
	return speed
}

// StepDelay is the wait after moving from prev to next, scaled by speed and
// clamped into [MinStepDelay, MaxStepDelay]. A nil prev or next uses
// DefaultStepDelay scaled by speed. Zero is a valid timestamp.
func StepDelay(prev, next *model.TimelineEntry, speed float64) time.Duration {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if prev == nil || next == nil {
		return time.Duration(float64(DefaultStepDelay) / speed)
	}

	gap := time.Duration(next.Timestamp-prev.Timestamp) * time.Millisecond
	scaled := time.Duration(float64(gap) / speed)
	if scaled < MinStepDelay {
		return MinStepDelay
	}
	if scaled > MaxStepDelay {
		return MaxStepDelay
	}
	return scaled
}
