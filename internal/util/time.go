package util

import (
	"fmt"
	"sync"
	"time"
)

var (
	zoneMu      sync.RWMutex
	displayZone = time.Local
)

// LoadTimezone resolves a zone name. Empty and "Local" mean the system zone.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w\nValid examples: Local, UTC, America/New_York, Asia/Shanghai, Europe/London", name, err)
	}
	return loc, nil
}

// SetTimezone sets the zone timestamps are displayed in
func SetTimezone(name string) error {
	loc, err := LoadTimezone(name)
	if err != nil {
		return err
	}
	zoneMu.Lock()
	displayZone = loc
	zoneMu.Unlock()
	return nil
}

// Location returns the display zone
func Location() *time.Location {
	zoneMu.RLock()
	defer zoneMu.RUnlock()
	return displayZone
}

// InZone converts t to the display zone
func InZone(t time.Time) time.Time {
	return t.In(Location())
}
