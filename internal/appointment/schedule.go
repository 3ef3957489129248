package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DonationIntervalDays is the minimum gap between two whole-blood donations.
const DonationIntervalDays = 56

// NextOccurrence returns the first instant strictly after the current day
// that falls on dayOfWeek at startTime in loc. A window on today's weekday
// resolves to the same weekday next week.
func NextOccurrence(now time.Time, dayOfWeek int, startTime string, loc *time.Location) (time.Time, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return time.Time{}, fmt.Errorf("day of week %d out of range", dayOfWeek)
	}
	hour, minute, second, err := parseClock(startTime)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	days := (dayOfWeek - int(local.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}

	y, m, d := local.Date()
	return time.Date(y, m, d+days, hour, minute, second, 0, loc), nil
}

// NextEligibleDate is the first calendar day in loc on which a donor whose
// last donation happened at last may donate again.
func NextEligibleDate(last time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := last.In(loc).Date()
	return time.Date(y, m, d+DonationIntervalDays, 0, 0, 0, 0, loc)
}

// parseClock accepts HH:MM or HH:MM:SS, which is how Postgres renders a time column as text.
func parseClock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid time of day %q", s)
	}

	vals := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil || v < 0 || v > limits[i] {
			return 0, 0, 0, fmt.Errorf("invalid time of day %q", s)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}
