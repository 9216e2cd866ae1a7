package order

import (
	"fmt"
	"time"
)

// DayWindow returns the UTC day [start, end) containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Number formats ORD-YYYYMMDD-NNNNN where NNNNN is the number of orders
// already created that UTC day plus one.
func Number(t time.Time, countToday int) string {
	return fmt.Sprintf("ORD-%s-%05d", t.UTC().Format("20060102"), countToday+1)
}
