package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"stock-autopilot/internal/autopilot/config"
)

// MarketCalendar is one venue's weekday trading window in its home timezone.
type MarketCalendar struct {
	Name     string
	Location *time.Location
	OpenMin  int
	CloseMin int
}

// NewMarketCalendars builds calendars from config, falling back to XETRA and
// NYSE when none are configured.
func NewMarketCalendars(markets []config.Market) ([]MarketCalendar, error) {
	if len(markets) == 0 {
		markets = []config.Market{
			{Name: "XETRA", Timezone: "Europe/Berlin", Open: "09:00", Close: "17:30"},
			{Name: "NYSE", Timezone: "America/New_York", Open: "09:30", Close: "16:00"},
		}
	}

	calendars := make([]MarketCalendar, 0, len(markets))
	for _, m := range markets {
		loc, err := time.LoadLocation(m.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q for market %s: %w", m.Timezone, m.Name, err)
		}
		openMin, err := parseClock(m.Open)
		if err != nil {
			return nil, fmt.Errorf("invalid open time for market %s: %w", m.Name, err)
		}
		closeMin, err := parseClock(m.Close)
		if err != nil {
			return nil, fmt.Errorf("invalid close time for market %s: %w", m.Name, err)
		}
		if closeMin <= openMin {
			return nil, fmt.Errorf("market %s closes before it opens", m.Name)
		}
		calendars = append(calendars, MarketCalendar{
			Name:     m.Name,
			Location: loc,
			OpenMin:  openMin,
			CloseMin: closeMin,
		})
	}
	return calendars, nil
}

// IsOpen reports whether the venue trades at the given instant. Weekends are
// closed; exchange holidays are not modelled.
func (c MarketCalendar) IsOpen(now time.Time) bool {
	local := now.In(c.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.OpenMin && minute < c.CloseMin
}

// AnyMarketOpen reports whether at least one configured venue is trading.
func AnyMarketOpen(calendars []MarketCalendar, now time.Time) bool {
	for _, c := range calendars {
		if c.IsOpen(now) {
			return true
		}
	}
	return false
}

// TradesOn reports whether the venue has a session on the given calendar day,
// regardless of the time of day.
func (c MarketCalendar) TradesOn(day time.Time) bool {
	switch day.In(c.Location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// AnyMarketTradesOn reports whether any configured venue has a session that day.
func AnyMarketTradesOn(calendars []MarketCalendar, day time.Time) bool {
	for _, c := range calendars {
		if c.TradesOn(day) {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}
