package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/kiwari-pos/backoffice/internal/aggregate"
)

const (
	dateLayout       = "2006-01-02"
	defaultRangeDays = 30
	maxRangeDays     = 366
)

// ErrInvalidRange is returned for unparsable or inverted report ranges.
var ErrInvalidRange = errors.New("invalid report range")

// ParseRange turns inclusive YYYY-MM-DD bounds into a half-open window in
// loc. Missing bounds default to the last 30 days up to and including the
// day of now.
func ParseRange(start, end string, now time.Time, loc *time.Location) (aggregate.Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := aggregate.DayOf(now, loc)

	to := today.To
	if end != "" {
		t, err := time.ParseInLocation(dateLayout, end, loc)
		if err != nil {
			return aggregate.Window{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		to = t.AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -defaultRangeDays)
	if start != "" {
		t, err := time.ParseInLocation(dateLayout, start, loc)
		if err != nil {
			return aggregate.Window{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		from = t
	}

	if !from.Before(to) {
		return aggregate.Window{}, fmt.Errorf("%w: start_date is after end_date", ErrInvalidRange)
	}
	if from.AddDate(0, 0, maxRangeDays).Before(to) {
		return aggregate.Window{}, fmt.Errorf("%w: range longer than %d days", ErrInvalidRange, maxRangeDays)
	}
	return aggregate.Window{From: from, To: to, Location: loc}, nil
}
