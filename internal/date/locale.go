package date

import (
	"strings"
	"sync"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

const fallbackLocale = monday.LocaleEnUS

var (
	localeOnce    sync.Once
	localeMatcher language.Matcher
	localeIDs     []monday.Locale
)

// initLocales builds a matcher over every locale monday can translate.
// en_US is registered first so it is the matcher's default.
func initLocales() {
	localeOnce.Do(func() {
		tags := []language.Tag{language.AmericanEnglish}
		localeIDs = []monday.Locale{fallbackLocale}
		for _, l := range monday.ListLocales() {
			if l == fallbackLocale {
				continue
			}
			tag, err := language.Parse(strings.ReplaceAll(string(l), "_", "-"))
			if err != nil {
				continue
			}
			tags = append(tags, tag)
			localeIDs = append(localeIDs, l)
		}
		localeMatcher = language.NewMatcher(tags)
	})
}

// ResolveLocale maps a BCP-47 string ("ko", "de-AT", "default") to the
// closest supported naming locale, falling back to en_US.
func ResolveLocale(s string) monday.Locale {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "default") {
		return fallbackLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return fallbackLocale
	}

	initLocales()
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(localeIDs) {
		return fallbackLocale
	}
	return localeIDs[idx]
}

func monthName(t time.Time, loc monday.Locale) string {
	return monday.Format(t, "January", loc)
}

func monthShortName(t time.Time, loc monday.Locale) string {
	return monday.Format(t, "Jan", loc)
}

func weekdayName(t time.Time, loc monday.Locale) string {
	return monday.Format(t, "Monday", loc)
}

func weekdayShortName(t time.Time, loc monday.Locale) string {
	return monday.Format(t, "Mon", loc)
}

// MonthName is one entry of MonthNames.
type MonthName struct {
	Month      string    `json:"month"`
	MonthShort string    `json:"month_short"`
	MonthIndex int       `json:"month_index"`
	Date       time.Time `json:"date"`
}

// MonthNames lists the twelve months of year with localized names.
func MonthNames(year int, locale string) []MonthName {
	loc := ResolveLocale(locale)
	out := make([]MonthName, 12)
	for i := range out {
		d := time.Date(year, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		out[i] = MonthName{
			Month:      monthName(d, loc),
			MonthShort: monthShortName(d, loc),
			MonthIndex: i,
			Date:       d,
		}
	}
	return out
}

// WeekDayName is one column header of a week row.
type WeekDayName struct {
	Day      string `json:"day"`
	DayShort string `json:"day_short"`
}

// WeekDayNames returns the seven weekday names starting at firstWeekDay
// (1 = Sunday ... 7 = Saturday).
func WeekDayNames(firstWeekDay int, locale string) []WeekDayName {
	loc := ResolveLocale(locale)
	first := normalizeFirstWeekDay(firstWeekDay)

	// 2023-01-01 was a Sunday.
	sunday := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]WeekDayName, 7)
	for i := range out {
		d := sunday.AddDate(0, 0, (first-1+i)%7)
		out[i] = WeekDayName{
			Day:      weekdayName(d, loc),
			DayShort: weekdayShortName(d, loc),
		}
	}
	return out
}
