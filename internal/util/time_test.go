package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTimezone(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{"local timezone", "Local", false},
		{"empty defaults to local", "", false},
		{"UTC", "UTC", false},
		{"Asia/Shanghai", "Asia/Shanghai", false},
		{"invalid timezone", "Invalid/Timezone", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadTimezone(tt.timezone)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid timezone")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, loc)
		})
	}
}

func TestSetTimezone(t *testing.T) {
	t.Cleanup(func() { _ = SetTimezone("Local") })

	require.NoError(t, SetTimezone("UTC"))
	assert.Equal(t, time.UTC.String(), Location().String())

	ts := time.Date(2025, 3, 4, 13, 5, 9, 7_000_000, time.UTC)
	assert.Equal(t, "13:05:09.007", FormatTimestamp(ts.UnixMilli()))

	require.NoError(t, SetTimezone("Asia/Shanghai"))
	assert.Equal(t, "21:05:09.007", FormatTimestamp(ts.UnixMilli()))
	assert.Equal(t, 21, InZone(ts).Hour())

	// a failed change keeps the previous zone
	assert.Error(t, SetTimezone("Nowhere/City"))
	assert.Equal(t, "Asia/Shanghai", Location().String())
}

func TestSetTimezoneConcurrent(t *testing.T) {
	t.Cleanup(func() { _ = SetTimezone("Local") })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = SetTimezone("UTC")
		}()
		go func() {
			defer wg.Done()
			_ = FormatTimestamp(0)
		}()
	}
	wg.Wait()
}
