package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/config"
)

func defaultCalendars(t *testing.T) []MarketCalendar {
	t.Helper()
	calendars, err := NewMarketCalendars(nil)
	require.NoError(t, err)
	require.Len(t, calendars, 2)
	return calendars
}

func TestMarketCalendarXetraHours(t *testing.T) {
	calendars := defaultCalendars(t)
	xetra := calendars[0]
	berlin := xetra.Location

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"tuesday midday", time.Date(2025, 8, 19, 12, 0, 0, 0, berlin), true},
		{"tuesday before open", time.Date(2025, 8, 19, 8, 59, 0, 0, berlin), false},
		{"tuesday at open", time.Date(2025, 8, 19, 9, 0, 0, 0, berlin), true},
		{"tuesday at close", time.Date(2025, 8, 19, 17, 30, 0, 0, berlin), false},
		{"tuesday last minute", time.Date(2025, 8, 19, 17, 29, 0, 0, berlin), true},
		{"saturday midday", time.Date(2025, 8, 23, 12, 0, 0, 0, berlin), false},
		{"sunday midday", time.Date(2025, 8, 24, 12, 0, 0, 0, berlin), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, xetra.IsOpen(tt.at))
		})
	}
}

func TestAnyMarketOpenBridgesTimezones(t *testing.T) {
	calendars := defaultCalendars(t)
	berlin := calendars[0].Location

	// 20:00 Berlin on a weekday: XETRA closed, NYSE (14:00 New York) open.
	eveningBerlin := time.Date(2025, 8, 19, 20, 0, 0, 0, berlin)
	assert.False(t, calendars[0].IsOpen(eveningBerlin))
	assert.True(t, calendars[1].IsOpen(eveningBerlin))
	assert.True(t, AnyMarketOpen(calendars, eveningBerlin))

	// 04:00 Berlin: both venues closed.
	nightBerlin := time.Date(2025, 8, 19, 4, 0, 0, 0, berlin)
	assert.False(t, AnyMarketOpen(calendars, nightBerlin))
}

func TestNewMarketCalendarsRejectsBadConfig(t *testing.T) {
	_, err := NewMarketCalendars([]config.Market{
		{Name: "BAD", Timezone: "Mars/Olympus", Open: "09:00", Close: "17:00"},
	})
	assert.Error(t, err)

	_, err = NewMarketCalendars([]config.Market{
		{Name: "BAD", Timezone: "Europe/Berlin", Open: "9am", Close: "17:00"},
	})
	assert.Error(t, err)

	_, err = NewMarketCalendars([]config.Market{
		{Name: "BAD", Timezone: "Europe/Berlin", Open: "17:00", Close: "09:00"},
	})
	assert.Error(t, err)
}
