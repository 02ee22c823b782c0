package holiday

import (
	"strconv"
	"strings"

	"holidaycal/internal/dates"
	"holidaycal/internal/filter"
	"holidaycal/internal/model"
)

// FilterToYear keeps entries whose range overlaps year.
func FilterToYear(entries []model.SchoolHoliday, year int) []model.SchoolHoliday {
	yearStart, yearEnd := dates.YearBounds(year)

	out := make([]model.SchoolHoliday, 0, len(entries))
	for _, h := range entries {
		if h.StartDate <= yearEnd && h.EndDate >= yearStart {
			out = append(out, h)
		}
	}
	return out
}

// PublicInYear keeps public holidays dated inside year.
func PublicInYear(public []model.Holiday, year int) []model.Holiday {
	prefix := strconv.Itoa(year)

	out := make([]model.Holiday, 0, len(public))
	for _, h := range public {
		if strings.HasPrefix(h.Date, prefix) {
			out = append(out, h)
		}
	}
	return out
}

// ViewState carries the user's display choices into the pure filter
// functions instead of keeping them as ambient globals.
type ViewState struct {
	Year       int    `json:"year"`
	Query      string `json:"query,omitempty"`
	HideSchool bool   `json:"hideSchool,omitempty"`
}

// Visible applies, in order, the year filter, the hide-school toggle (which
// drops entries typed "school") and the text query. Public holidays are not
// subject to this filtering.
func Visible(entries []model.SchoolHoliday, view ViewState) []model.SchoolHoliday {
	inYear := FilterToYear(entries, view.Year)

	out := make([]model.SchoolHoliday, 0, len(inYear))
	for _, h := range inYear {
		if view.HideSchool && h.Type == model.TypeSchool {
			continue
		}
		if !filter.Matches(filter.Haystack(h), view.Query) {
			continue
		}
		out = append(out, h)
	}
	return out
}
