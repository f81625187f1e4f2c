package aggregate

import "time"

// Window is the half-open interval [From, To). Buckets and day boundaries
// are computed in Location (UTC when nil).
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Empty is true when the window covers no time at all.
func (w Window) Empty() bool {
	return !w.From.Before(w.To)
}

// DayOf returns the calendar day containing at, in loc.
func DayOf(at time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{From: start, To: start.AddDate(0, 0, 1), Location: loc}
}

// Previous returns the window of the same length that ends where w starts.
// Whole-day windows step back by calendar days so DST shifts stay aligned.
func (w Window) Previous() Window {
	loc := w.loc()
	from, to := w.From.In(loc), w.To.In(loc)
	if isMidnight(from) && isMidnight(to) {
		days := daysBetween(from, to)
		return Window{From: from.AddDate(0, 0, -days), To: from, Location: w.Location}
	}
	d := w.To.Sub(w.From)
	return Window{From: w.From.Add(-d), To: w.From, Location: w.Location}
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func daysBetween(from, to time.Time) int {
	n := 0
	for cur := from; cur.Before(to); cur = cur.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Granularity is the width of a time-series bucket.
type Granularity string

const (
	Hourly Granularity = "hour"
	Daily  Granularity = "day"
)

// Valid reports whether g is a supported bucket width.
func (g Granularity) Valid() bool {
	return g == Hourly || g == Daily
}

// bucketStart truncates t to the start of its bucket in loc.
func bucketStart(t time.Time, g Granularity, loc *time.Location) time.Time {
	t = t.In(loc)
	if g == Hourly {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func bucketNext(t time.Time, g Granularity) time.Time {
	if g == Hourly {
		return t.Add(time.Hour)
	}
	return t.AddDate(0, 0, 1)
}
