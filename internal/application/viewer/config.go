package viewer

import (
	"fmt"
	"strings"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/playback"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/data/stream"
)

// ViewerConfig contains configuration for the live and replay viewers
type ViewerConfig struct {
	// Connection settings, unused when replaying
	Stream stream.Config

	// Timeline settings
	SnapshotInterval int
	Speed            float64
	Filter           timeline.Filter

	// Display settings
	Title         string
	Plain         bool
	Width         int     // plain output width, 0 detects the terminal
	UIRefreshRate float64 // frames per second
}

// Validate fills defaults and checks the configuration
func (c *ViewerConfig) Validate() error {
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = timeline.DefaultSnapshotInterval
	}
	if c.Speed == 0 {
		c.Speed = playback.DefaultSpeed
	}
	if err := playback.ValidateSpeed(c.Speed); err != nil {
		return fmt.Errorf("speed: %w", err)
	}
	if c.Filter.Category != "" && !c.Filter.Category.Valid() {
		return fmt.Errorf("unknown category %q (allowed: %s)", c.Filter.Category, joinValues(model.Categories))
	}
	if c.Filter.Actor != "" && !c.Filter.Actor.Valid() {
		return fmt.Errorf("unknown actor %q (allowed: %s)", c.Filter.Actor, joinValues(model.Actors))
	}
	if c.Title == "" {
		c.Title = "agent timeline"
	}
	if c.UIRefreshRate <= 0 {
		c.UIRefreshRate = 10
	}
	return nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
