package rewards

import (
	"fmt"
	"time"

	"time26/models"
)

// DayBounds returns the UTC [start, end) window for a dayId
func DayBounds(dayID string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(models.DayIDLayout, dayID, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid day id %q: %w", dayID, err)
	}
	return start, start.Add(24 * time.Hour), nil
}

// DayID formats t as the UTC calendar day it falls in
func DayID(t time.Time) string {
	return t.UTC().Format(models.DayIDLayout)
}

// PreviousDayID returns the most recent fully elapsed UTC day
func PreviousDayID(now time.Time) string {
	return DayID(now.UTC().AddDate(0, 0, -1))
}
