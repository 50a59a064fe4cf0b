package queue

import (
	"fmt"
	"time"
)

// Bookable grid: 09:00 through 17:30 in half-hour steps.
const (
	firstSlotHour = 9
	lastSlotHour  = 17
	slotMinutes   = 30
)

// buildSlots lays out the daily grid and marks every cell that an existing
// booking already occupies at the exact hour and minute.
func buildSlots(booked []time.Time, loc *time.Location) []Slot {
	taken := make(map[string]bool, len(booked))
	for _, t := range booked {
		t = t.In(loc)
		taken[slotLabel(t.Hour(), t.Minute())] = true
	}

	var slots []Slot
	for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
		for minute := 0; minute < 60; minute += slotMinutes {
			label := slotLabel(hour, minute)
			slots = append(slots, Slot{Time: label, Available: !taken[label]})
		}
	}
	return slots
}

func slotLabel(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// dayBounds returns [start, end) of the calendar day containing t in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
