package holiday

import (
	"holidaycal/internal/dates"
	"holidaycal/internal/model"
)

// LegendCounts are the day totals shown in the calendar legend.
type LegendCounts struct {
	Public       int `json:"public"`
	Standard     int `json:"standard"`
	ManualSchool int `json:"manualSchool"`
	Personal     int `json:"personal"`
}

// Legend counts the days of year per category. Public counts every public
// holiday date in the year. The other counts only consider weekdays that are
// not public holidays: a personal day adds to Personal, and a school day adds
// once, to ManualSchool when only manual school entries cover it, otherwise to
// Standard.
func Legend(year int, public []model.Holiday, school []model.SchoolHoliday) LegendCounts {
	var lc LegendCounts

	for _, d := range dates.DaysOfYear(year) {
		isPublic := findPublic(d, public) != nil
		if isPublic {
			lc.Public++
		}
		if isPublic || dates.IsWeekend(d) {
			continue
		}

		b := collect(d, school)
		if len(b.personal) > 0 {
			lc.Personal++
		}
		switch {
		case len(b.manual) > 0 && len(b.standard) == 0:
			lc.ManualSchool++
		case len(b.standard) > 0:
			lc.Standard++
		}
	}
	return lc
}
