package utils

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrDateUnrecognized means the text holds no date at all
	ErrDateUnrecognized = errors.New("date not recognized")
	// ErrDateInvalid means the text looks like a date that does not exist
	ErrDateInvalid = errors.New("date does not exist")
)

var (
	dateTokenRe = regexp.MustCompile(`\d{1,2}[/.]\d{1,2}[/.]\d{2,4}`)
	timeTokenRe = regexp.MustCompile(`\d{1,2}:\d{2}`)
	backdateRe  = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?`)
	numberRe    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	kcalRe      = regexp.MustCompile(`(?i)(\d+)\s*(?:ккал|kcal)`)
	per100Re    = regexp.MustCompile(`(?i)100\s*(?:г|g|мл|ml)`)
	digitsRe    = regexp.MustCompile(`\d+`)
	trailingRe  = regexp.MustCompile(`(?i)\s*(?:на|в|per)\s*$`)
)

// HasDateOrTimeToken reports whether the message names its own date or time
func HasDateOrTimeToken(text string) bool {
	return dateTokenRe.MatchString(text) || timeTokenRe.MatchString(text)
}

// IsCancelWord reports whether the user asked to abort the current prompt
func IsCancelWord(text string) bool {
	return strings.Contains(strings.ToLower(text), "отмена")
}

// ParseBackdate understands сегодня, вчера, позавчера and dd.mm[.yy[yy]]
// (dots or slashes). The result is midnight of that day in now's location.
func ParseBackdate(input string, now time.Time) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(input))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(text, "позавчера"):
		return today.AddDate(0, 0, -2), nil
	case strings.Contains(text, "вчера"):
		return today.AddDate(0, 0, -1), nil
	case strings.Contains(text, "сегодня"):
		return today, nil
	}

	m := backdateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, ErrDateUnrecognized
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	return buildDate(year, month, day, now.Location())
}

func buildDate(year, month, day int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrDateInvalid
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrDateInvalid
	}
	return t, nil
}

// ExtractNumber returns the first number in text; a comma works as a
// decimal separator
func ExtractNumber(text string) (float64, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseAddCommand splits "/add" arguments into a product name and its kcal
// per 100 g. "Чиабатта 260", "творог 5% 121 ккал" and "кефир на 100г 50"
// are all understood.
func ParseAddCommand(text string) (string, int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, false
	}

	var name string
	var kcal int

	if loc := kcalRe.FindStringSubmatchIndex(text); loc != nil {
		kcal, _ = strconv.Atoi(text[loc[2]:loc[3]])
		name = strings.TrimSpace(text[:loc[0]])
	} else {
		clean := per100Re.ReplaceAllString(text, "")
		nums := digitsRe.FindAllStringIndex(clean, -1)
		if len(nums) == 0 {
			return "", 0, false
		}
		last := nums[len(nums)-1]
		kcal, _ = strconv.Atoi(clean[last[0]:last[1]])
		name = strings.TrimSpace(clean[:last[0]])
		name = strings.TrimSpace(trailingRe.ReplaceAllString(name, ""))
	}

	name = strings.ToLower(name)
	if name == "" {
		return "", 0, false
	}
	return name, kcal, true
}

var syncLayouts = []string{"02.01.06", "02/01/06", "2006-01-02", "02.01.2006"}

// ParseSyncDate reads the optional /sync argument
func ParseSyncDate(arg string, loc *time.Location) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	for _, layout := range syncLayouts {
		if t, err := time.ParseInLocation(layout, arg, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrDateUnrecognized
}

// DayBounds returns [start, end) of the calendar day of t in loc
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
