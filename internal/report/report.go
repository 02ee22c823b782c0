// Package report builds the chronological events list of a year, as shown
// under the calendar and exported as CSV.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"holidaycal/internal/model"
)

// Kind is the list category of an event.
type Kind string

const (
	KindPublic         Kind = "public"
	KindSchoolStandard Kind = "school-standard"
	KindSchoolManual   Kind = "school-manual"
	KindUser           Kind = "user"
)

// Event is one row of the events list. EndDate is empty for public holidays.
type Event struct {
	Date    string `json:"date" csv:"date"`
	EndDate string `json:"endDate,omitempty" csv:"end_date"`
	Title   string `json:"title" csv:"title"`
	Kind    Kind   `json:"kind" csv:"kind"`
}

func kindOf(h model.SchoolHoliday) Kind {
	switch h.Category() {
	case model.CategorySchoolStandard:
		return KindSchoolStandard
	case model.CategorySchoolManual:
		return KindSchoolManual
	default:
		return KindUser
	}
}

// EventsList combines the public holidays dated in year with the school
// entries that start or end in year, sorted by start date. Public holidays
// come first among entries sharing a date.
func EventsList(year int, public []model.Holiday, school []model.SchoolHoliday) []Event {
	prefix := fmt.Sprintf("%04d", year)
	out := make([]Event, 0, len(public)+len(school))

	for _, h := range public {
		if strings.HasPrefix(h.Date, prefix) {
			out = append(out, Event{Date: h.Date, Title: h.Title, Kind: KindPublic})
		}
	}
	for _, h := range school {
		if strings.HasPrefix(h.StartDate, prefix) || strings.HasPrefix(h.EndDate, prefix) {
			out = append(out, Event{Date: h.StartDate, EndDate: h.EndDate, Title: h.Term, Kind: kindOf(h)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// WriteCSV renders events as CSV with a header row.
func WriteCSV(w io.Writer, events []Event) error {
	if events == nil {
		events = []Event{}
	}
	return gocsv.Marshal(&events, w)
}
