package dialogue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLeadDays = 3
	defaultHour     = 10
)

var (
	clockPattern    = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})[ \t]*(am|pm)?`)
	meridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2})[ \t]*(am|pm)\b`)
	arabicHour      = regexp.MustCompile(`(\d{1,2})[ \t]*(صباحا|صباحاً|صباح|مساءً|مساء|ص|م)(?:$|[^\p{L}])`)
	dayMonthPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
)

// requestedTime resolves the appointment time from free text. Without any
// hint the appointment goes three days out at 10:00 clinic time. The second
// return reports whether the text contained a usable hint.
func requestedTime(vocab Vocabulary, text string, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	lower := strings.ToLower(normalizeDigits(text))

	day := startOfDay(local).AddDate(0, 0, defaultLeadDays)
	hinted := false

	switch {
	case containsAny(lower, vocab.DayAfterTomorrowTerms):
		day = startOfDay(local).AddDate(0, 0, 2)
		hinted = true
	case containsAny(lower, vocab.TomorrowTerms):
		day = startOfDay(local).AddDate(0, 0, 1)
		hinted = true
	default:
		if d, ok := parseDayMonth(lower, local); ok {
			day = d
			hinted = true
		}
	}

	hour, minute := defaultHour, 0
	if h, m, ok := parseClock(lower); ok {
		hour, minute = h, m
		hinted = true
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), hinted
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseDayMonth reads dd/mm, rolling into next year when the date has passed.
func parseDayMonth(text string, local time.Time) (time.Time, bool) {
	m := dayMonthPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	candidate := time.Date(local.Year(), time.Month(month), day, 0, 0, 0, 0, local.Location())
	if candidate.Day() != day {
		return time.Time{}, false
	}
	if candidate.Before(startOfDay(local)) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate, true
}

func parseClock(text string) (int, int, bool) {
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		h = applyMeridiem(h, m[3])
		if h < 24 && mins < 60 {
			return h, mins, true
		}
	}
	if m := meridiemPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			return applyMeridiem(h, m[2]), 0, true
		}
	}
	if m := arabicHour.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			suffix := "am"
			if strings.HasPrefix(m[2], "م") {
				suffix = "pm"
			}
			return applyMeridiem(h, suffix), 0, true
		}
	}
	return 0, 0, false
}

func applyMeridiem(h int, suffix string) int {
	switch strings.ToLower(suffix) {
	case "pm":
		if h < 12 {
			return h + 12
		}
	case "am":
		if h == 12 {
			return 0
		}
	}
	return h
}
