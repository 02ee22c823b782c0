package holiday

import (
	"time"

	"holidaycal/internal/dates"
	"holidaycal/internal/model"
)

// ExtendWithWeekends pads a Monday start back to the preceding Saturday and a
// Friday end forward to the following Sunday, so Mon-Fri school breaks read as
// full weeks off. Other ranges, and entries with unparsable dates, are
// returned unchanged.
func ExtendWithWeekends(h model.SchoolHoliday) model.SchoolHoliday {
	out := h

	if d, err := dates.DayOfWeek(h.StartDate); err == nil && d == int(time.Monday) {
		if s, err := dates.AddDays(h.StartDate, -2); err == nil {
			out.StartDate = s
		}
	}
	if d, err := dates.DayOfWeek(h.EndDate); err == nil && d == int(time.Friday) {
		if e, err := dates.AddDays(h.EndDate, 2); err == nil {
			out.EndDate = e
		}
	}
	return out
}

// ExtendAll applies ExtendWithWeekends to every entry, returning a new slice.
func ExtendAll(hs []model.SchoolHoliday) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, len(hs))
	for i, h := range hs {
		out[i] = ExtendWithWeekends(h)
	}
	return out
}
