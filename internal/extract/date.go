package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	// 20-May-18 22:55, tolerant of OCR spacing around the year. Month names
	// may carry accented letters, as in "mär".
	reDayMonTime = regexp.MustCompile(`(?i)\b(\d{1,2})-(\pL{3,9})-?\s*(\d{2,4})[ ,T\-]+(\d{1,2}):(\d{2})(?::(\d{2}))?\b`)
	reISODate    = regexp.MustCompile(`\b(20\d{2}|19\d{2})-(\d{2})-(\d{2})\b`)
	reNumDate    = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`)
	reDayMonYear = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(\pL{3,9})\.?,?\s+(\d{2,4})\b`)
	reBareYear   = regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`)
)

// LocalTime is a wall-clock reading as printed on a receipt. Receipts carry
// no zone, so none is attached and none is ever converted.
type LocalTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// String renders the reading as 2006-01-02T15:04:05 without a zone suffix
func (t LocalTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Time returns the reading as a time.Time in loc
func (t LocalTime) Time(loc *time.Location) time.Time {
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, loc)
}

// valid rejects calendar fields that do not name a real instant, like 31/02
func (t LocalTime) valid() bool {
	if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return false
	}
	return t.Day <= time.Date(t.Year, time.Month(t.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDate finds a date in free text with the default profile's month table
func ParseDate(s string) (LocalTime, bool) {
	return defaultExtractor.m.parseDate(s)
}

// cleanDateText drops zero-width and other format runes, then collapses whitespace
func cleanDateText(s string) string {
	s, _, _ = transform.String(runes.Remove(runes.In(unicode.Cf)), s)
	return NormalizeLine(s)
}

func (m *matchers) monthIndex(name string) int {
	name = strings.ToLower(name)
	for i, abbr := range m.profile.Months {
		if strings.HasPrefix(name, strings.ToLower(abbr)) {
			return i + 1
		}
	}
	return 0
}

func (m *matchers) year(s string) int {
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += m.profile.CenturyBase
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseDate tries the known layouts in priority order and returns the first
// one that yields a real calendar date. A bare year is a last resort and maps
// to January 1 of that year.
func (m *matchers) parseDate(s string) (LocalTime, bool) {
	txt := cleanDateText(s)
	if txt == "" {
		return LocalTime{}, false
	}

	if g := reDayMonTime.FindStringSubmatch(txt); g != nil {
		if mo := m.monthIndex(g[2]); mo > 0 {
			t := LocalTime{Year: m.year(g[3]), Month: mo, Day: atoi(g[1]), Hour: atoi(g[4]), Minute: atoi(g[5]), Second: atoi(g[6])}
			if t.valid() {
				return t, true
			}
		}
	}

	if g := reISODate.FindStringSubmatch(txt); g != nil {
		t := LocalTime{Year: atoi(g[1]), Month: atoi(g[2]), Day: atoi(g[3])}
		if t.valid() {
			return t, true
		}
	}

	if g := reNumDate.FindStringSubmatch(txt); g != nil {
		t := LocalTime{Year: m.year(g[3]), Month: atoi(g[2]), Day: atoi(g[1])}
		if t.valid() {
			return t, true
		}
	}

	if g := reDayMonYear.FindStringSubmatch(txt); g != nil {
		if mo := m.monthIndex(g[2]); mo > 0 {
			t := LocalTime{Year: m.year(g[3]), Month: mo, Day: atoi(g[1])}
			if t.valid() {
				return t, true
			}
		}
	}

	if g := reBareYear.FindStringSubmatch(txt); g != nil {
		return LocalTime{Year: atoi(g[1]), Month: 1, Day: 1}, true
	}

	return LocalTime{}, false
}
