package sources

import (
	"fmt"
	"sort"
	"strings"
	"time"

	cal "github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/gb"

	"holidaycal/internal/dates"
	"holidaycal/internal/model"
)

var fallbackData = map[model.Country][]model.Holiday{
	model.CountryEnglandWales: {
		{Date: "2025-01-01", Title: "New Year’s Day"},
		{Date: "2025-04-18", Title: "Good Friday"},
		{Date: "2025-04-21", Title: "Easter Monday"},
		{Date: "2025-05-05", Title: "Early May bank holiday"},
		{Date: "2025-05-26", Title: "Spring bank holiday"},
		{Date: "2025-08-25", Title: "Summer bank holiday"},
		{Date: "2025-12-25", Title: "Christmas Day"},
		{Date: "2025-12-26", Title: "Boxing Day"},
		{Date: "2026-01-01", Title: "New Year’s Day"},
		{Date: "2026-04-03", Title: "Good Friday"},
		{Date: "2026-04-06", Title: "Easter Monday"},
		{Date: "2026-05-04", Title: "Early May bank holiday"},
		{Date: "2026-05-25", Title: "Spring bank holiday"},
		{Date: "2026-08-31", Title: "Summer bank holiday"},
		{Date: "2026-12-25", Title: "Christmas Day"},
		{Date: "2026-12-28", Title: "Boxing Day (substitute day)"},
	},
	model.CountryScotland: {
		{Date: "2025-01-01", Title: "New Year’s Day"},
		{Date: "2025-01-02", Title: "2nd January"},
		{Date: "2025-04-18", Title: "Good Friday"},
		{Date: "2025-05-05", Title: "Early May bank holiday"},
		{Date: "2025-05-26", Title: "Spring bank holiday"},
		{Date: "2025-08-04", Title: "Summer bank holiday"},
		{Date: "2025-12-01", Title: "St Andrew’s Day (substitute day)"},
		{Date: "2025-12-25", Title: "Christmas Day"},
		{Date: "2025-12-26", Title: "Boxing Day"},
		{Date: "2026-01-01", Title: "New Year’s Day"},
		{Date: "2026-01-02", Title: "2nd January"},
		{Date: "2026-04-03", Title: "Good Friday"},
		{Date: "2026-05-04", Title: "Early May bank holiday"},
		{Date: "2026-05-25", Title: "Spring bank holiday"},
		{Date: "2026-08-03", Title: "Summer bank holiday"},
		{Date: "2026-11-30", Title: "St Andrew’s Day"},
		{Date: "2026-12-25", Title: "Christmas Day"},
		{Date: "2026-12-28", Title: "Boxing Day (substitute day)"},
	},
	model.CountryNorthernIreland: {
		{Date: "2025-01-01", Title: "New Year’s Day"},
		{Date: "2025-03-17", Title: "St Patrick’s Day"},
		{Date: "2025-04-18", Title: "Good Friday"},
		{Date: "2025-04-21", Title: "Easter Monday"},
		{Date: "2025-05-05", Title: "Early May bank holiday"},
		{Date: "2025-05-26", Title: "Spring bank holiday"},
		{Date: "2025-07-14", Title: "Battle of the Boyne (Orangemen’s Day)"},
		{Date: "2025-08-25", Title: "Summer bank holiday"},
		{Date: "2025-12-25", Title: "Christmas Day"},
		{Date: "2025-12-26", Title: "Boxing Day"},
		{Date: "2026-01-01", Title: "New Year’s Day"},
		{Date: "2026-03-17", Title: "St Patrick’s Day"},
		{Date: "2026-04-03", Title: "Good Friday"},
		{Date: "2026-04-06", Title: "Easter Monday"},
		{Date: "2026-05-04", Title: "Early May bank holiday"},
		{Date: "2026-05-25", Title: "Spring bank holiday"},
		{Date: "2026-07-13", Title: "Battle of the Boyne (Orangemen’s Day) (substitute day)"},
		{Date: "2026-08-31", Title: "Summer bank holiday"},
		{Date: "2026-12-25", Title: "Christmas Day"},
		{Date: "2026-12-28", Title: "Boxing Day (substitute day)"},
	},
}

// Fallback returns a copy of the static table for country. Unknown countries
// get the England & Wales table.
func Fallback(country model.Country) []model.Holiday {
	src, ok := fallbackData[country]
	if !ok {
		src = fallbackData[model.CountryEnglandWales]
	}
	return append([]model.Holiday(nil), src...)
}

// Weekend days move to the following Monday.
var weekendToMonday = []cal.AltDay{
	{Day: time.Saturday, Offset: 2},
	{Day: time.Sunday, Offset: 1},
}

// The day after a weekend-shifted holiday moves past it, as Boxing Day does.
var dayAfterAlt = []cal.AltDay{
	{Day: time.Saturday, Offset: 2},
	{Day: time.Sunday, Offset: 2},
	{Day: time.Monday, Offset: 1},
}

var (
	secondJanuary = &cal.Holiday{
		Name:     "2nd January",
		Type:     cal.ObservanceBank,
		Month:    time.January,
		Day:      2,
		Func:     cal.CalcDayOfMonth,
		Observed: dayAfterAlt,
	}
	stAndrewsDay = &cal.Holiday{
		Name:     "St Andrew’s Day",
		Type:     cal.ObservanceBank,
		Month:    time.November,
		Day:      30,
		Func:     cal.CalcDayOfMonth,
		Observed: weekendToMonday,
	}
	stPatricksDay = &cal.Holiday{
		Name:     "St Patrick’s Day",
		Type:     cal.ObservanceBank,
		Month:    time.March,
		Day:      17,
		Func:     cal.CalcDayOfMonth,
		Observed: weekendToMonday,
	}
	battleOfTheBoyne = &cal.Holiday{
		Name:     "Battle of the Boyne (Orangemen’s Day)",
		Type:     cal.ObservanceBank,
		Month:    time.July,
		Day:      12,
		Func:     cal.CalcDayOfMonth,
		Observed: weekendToMonday,
	}
)

// named renames a gb rule to the gov.uk feed title.
func named(h *cal.Holiday, name string) *cal.Holiday {
	return h.Clone(&cal.Holiday{Name: name})
}

// Bank holiday rules per division. One-off days (VE Day, the coronation,
// the 2022 jubilee) carry their own year bounds.
var (
	rulesEnglandWales = []*cal.Holiday{
		named(gb.NewYear, "New Year’s Day"),
		gb.GoodFriday,
		gb.EasterMonday,
		named(gb.EarlyMay, "Early May bank holiday"),
		gb.VEDay,
		gb.CoronationDay,
		named(gb.SpringHoliday, "Spring bank holiday"),
		named(gb.SpringHoliday2022, "Spring bank holiday"),
		gb.PlatinumJubilee,
		named(gb.SummerHoliday, "Summer bank holiday"),
		gb.ChristmasDay,
		gb.BoxingDay,
	}

	rulesScotland = []*cal.Holiday{
		named(gb.NewYear, "New Year’s Day"),
		secondJanuary,
		gb.GoodFriday,
		named(gb.EarlyMay, "Early May bank holiday"),
		gb.VEDay,
		gb.CoronationDay,
		named(gb.SpringHoliday, "Spring bank holiday"),
		named(gb.SpringHoliday2022, "Spring bank holiday"),
		gb.PlatinumJubilee,
		named(gb.SummerHolidayScotland, "Summer bank holiday"),
		stAndrewsDay,
		gb.ChristmasDay,
		gb.BoxingDay,
	}

	rulesNorthernIreland = []*cal.Holiday{
		named(gb.NewYear, "New Year’s Day"),
		stPatricksDay,
		gb.GoodFriday,
		gb.EasterMonday,
		named(gb.EarlyMay, "Early May bank holiday"),
		gb.VEDay,
		gb.CoronationDay,
		named(gb.SpringHoliday, "Spring bank holiday"),
		named(gb.SpringHoliday2022, "Spring bank holiday"),
		gb.PlatinumJubilee,
		battleOfTheBoyne,
		named(gb.SummerHoliday, "Summer bank holiday"),
		gb.ChristmasDay,
		gb.BoxingDay,
	}
)

func calendarHolidays(country model.Country) []*cal.Holiday {
	switch country {
	case model.CountryScotland:
		return rulesScotland
	case model.CountryNorthernIreland:
		return rulesNorthernIreland
	default:
		return rulesEnglandWales
	}
}

// Computed derives the observed bank holidays of year for country from the
// rickar/cal rules. It only lists days off: a holiday falling on a weekend
// appears on its substitute weekday, titled like the gov.uk feed.
func Computed(country model.Country, year int) []model.Holiday {
	var out []model.Holiday
	for _, h := range calendarHolidays(country) {
		actual, observed := h.Calc(year)
		if observed.IsZero() {
			continue
		}
		date := dates.Format(observed)
		if !strings.HasPrefix(date, fmt.Sprintf("%04d-", year)) {
			continue
		}
		title := h.Name
		if date != dates.Format(actual) {
			title = fmt.Sprintf("%s (substitute day)", h.Name)
		}
		out = append(out, model.Holiday{Date: date, Title: title})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
