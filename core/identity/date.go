package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// MaxAge is the oldest accepted age in years.
const MaxAge = 100

const birthDateField = "birth_date"

// Age is an elapsed calendar duration.
type Age struct {
	Years  int
	Months int
	Days   int
}

func (a Age) String() string { return FormatAge(a) }

// CalculateAge returns the calendar time elapsed between birth and now.
// Only the calendar dates count: birth as stored, now in its own location.
// Missing days borrow the length of the month preceding now's month; missing months borrow a year.
func CalculateAge(birth, now time.Time) Age {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()

	years := ny - by
	months := int(nm) - int(bm)
	days := nd - bd

	if days < 0 {
		months--
		// day 0 of now's month is the last day of the month before
		days += time.Date(ny, nm, 0, 0, 0, 0, 0, time.UTC).Day()
		if days < 0 { // birth day past the end of the borrowed month, e.g. Jan 31 -> Mar 1
			days = 0
		}
	}
	if months < 0 {
		years--
		months += 12
	}
	return Age{Years: years, Months: months, Days: days}
}

// FormatAge renders age as "Y years M months D days", leaving out zero parts.
func FormatAge(age Age) string {
	parts := make([]string, 0, 3)
	add := func(n int, unit string) {
		if n == 0 {
			return
		}
		if n != 1 {
			unit += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, unit))
	}
	add(age.Years, "year")
	add(age.Months, "month")
	add(age.Days, "day")
	if len(parts) == 0 {
		return "0 days"
	}
	return strings.Join(parts, " ")
}

// ValidateBirthDate checks that date is present, not after today and gives an age of at most MaxAge years.
func ValidateBirthDate(date null.Time, now time.Time) error {
	if !date.Valid || date.Time.IsZero() {
		return reject(MissingDate, birthDateField)
	}
	if calendarDay(date.Time).After(calendarDay(now)) {
		return reject(FutureDate, birthDateField)
	}
	if CalculateAge(date.Time, now).Years > MaxAge {
		return reject(ImplausibleAge, birthDateField)
	}
	return nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
