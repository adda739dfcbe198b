// Package dates parses the Polish date strings used by phpBB boards
// into a canonical timestamp. Unrecognized input yields ok=false and
// the caller stores the raw string verbatim instead.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical is the storage format for parsed dates.
const Canonical = "2006-01-02 15:04:05"

// Polish month names as they appear on the boards: genitive full forms
// in running dates plus the three-letter abbreviations of compact
// phpBB headers. Keys are lowercase.
var months = map[string]time.Month{
	"stycznia": time.January, "sty": time.January, "styczeń": time.January,
	"lutego": time.February, "lut": time.February, "luty": time.February,
	"marca": time.March, "mar": time.March, "marzec": time.March,
	"kwietnia": time.April, "kwi": time.April, "kwiecień": time.April,
	"maja": time.May, "maj": time.May,
	"czerwca": time.June, "cze": time.June, "czerwiec": time.June,
	"lipca": time.July, "lip": time.July, "lipiec": time.July,
	"sierpnia": time.August, "sie": time.August, "sierpień": time.August,
	"września": time.September, "wrz": time.September, "wrzesień": time.September,
	"października": time.October, "paź": time.October, "październik": time.October,
	"listopada": time.November, "lis": time.November, "listopad": time.November,
	"grudnia": time.December, "gru": time.December, "grudzień": time.December,
}

var (
	// "12 kwietnia 2008, 21:15" / "12 kwi 2008 21:15"
	dayMonthYear = regexp.MustCompile(`(?i)^(\d{1,2})\s+([\p{L}]+)\s+(\d{4})(?:\s*,)?(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	// "Pn kwi 07, 2008 21:15" (weekday-prefixed phpBB2 header form)
	weekdayMonthDay = regexp.MustCompile(`(?i)^[\p{L}]{1,3}\s+([\p{L}]+)\s+(\d{1,2}),\s*(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	// "dzisiaj, 21:15" / "wczoraj 8:03"
	relative = regexp.MustCompile(`(?i)^(dzisiaj|dziś|wczoraj)(?:\s*,)?(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
)

// ParsePolishDate converts a raw locale date string to a timestamp.
// It never panics; ok is false for anything it does not recognize.
func ParsePolishDate(raw string) (time.Time, bool) {
	return parseAt(raw, time.Now())
}

// parseAt is the testable core: relative terms resolve against now.
func parseAt(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if m := relative.FindStringSubmatch(s); m != nil {
		day := now
		if strings.EqualFold(m[1], "wczoraj") {
			day = now.AddDate(0, 0, -1)
		}
		h, min, sec := clockOrZero(m[2], m[3], m[4])
		return time.Date(day.Year(), day.Month(), day.Day(), h, min, sec, 0, now.Location()), true
	}

	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		month, ok := months[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		day := atoi(m[1])
		year := atoi(m[3])
		if !validDay(day) {
			return time.Time{}, false
		}
		h, min, sec := clockOrZero(m[4], m[5], m[6])
		return time.Date(year, month, day, h, min, sec, 0, time.Local), true
	}

	if m := weekdayMonthDay.FindStringSubmatch(s); m != nil {
		month, ok := months[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		day := atoi(m[2])
		year := atoi(m[3])
		if !validDay(day) {
			return time.Time{}, false
		}
		h, min, sec := clockOrZero(m[4], m[5], m[6])
		return time.Date(year, month, day, h, min, sec, 0, time.Local), true
	}

	return time.Time{}, false
}

// NormalizeOrRaw formats a parsed date canonically, or hands back the
// trimmed raw string so nothing is silently dropped.
func NormalizeOrRaw(raw string) string {
	if ts, ok := ParsePolishDate(raw); ok {
		return ts.Format(Canonical)
	}
	return strings.TrimSpace(raw)
}

func clockOrZero(h, m, s string) (int, int, int) {
	if h == "" {
		return 0, 0, 0
	}
	return atoi(h), atoi(m), atoi(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func validDay(day int) bool {
	return day >= 1 && day <= 31
}
