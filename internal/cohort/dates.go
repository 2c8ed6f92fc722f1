package cohort

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Day-first layouts are tried before ISO ones; "2/1/2006" also accepts
// zero-padded input.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"2-1-2006 15:04:05",
	"2.1.2006",
	"2/1/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"20060102",
}

// Excel serials outside this range are not treated as dates.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParseDate reads a calendar date, day before month. ISO dates and Excel
// serial numbers are accepted too. The time of day is discarded.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	if isCompactDate(s) {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return truncateDay(t), true
			}
		}
	}
	return time.Time{}, false
}

// isCompactDate reports whether s looks like yyyymmdd, which is never read
// as an Excel serial.
func isCompactDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ReferenceMonth returns the first day of t's month in UTC.
func ReferenceMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns b - a in whole calendar days.
func daysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}

// monthsBetween counts calendar months from a to b, ignoring days.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
