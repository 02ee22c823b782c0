package ics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"holidaycal/internal/dates"
	"holidaycal/internal/holiday"
	"holidaycal/internal/model"
)

const productID = "-//UK Holiday Calendar//EN"

// exportRange returns the weekend-extended start and the exclusive end of h,
// as all-day calendar events expect.
func exportRange(h model.SchoolHoliday) (start, exclusiveEnd string, err error) {
	ext := holiday.ExtendWithWeekends(h)
	if err := ext.Validate(); err != nil {
		return "", "", err
	}
	exclusiveEnd, err = dates.AddDays(ext.EndDate, 1)
	if err != nil {
		return "", "", err
	}
	return ext.StartDate, exclusiveEnd, nil
}

func description(h model.SchoolHoliday) string {
	switch h.Category() {
	case model.CategorySchoolManual:
		return "School Event"
	case model.CategoryPersonal:
		return "Personal"
	default:
		return "School Holiday"
	}
}

// ExportCalendar renders hs as an all-day VCALENDAR. Each entry is weekend
// extended and written with an exclusive DTEND. now stamps DTSTAMP.
func ExportCalendar(hs []model.SchoolHoliday, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, h := range hs {
		start, end, err := exportRange(h)
		if err != nil {
			return "", fmt.Errorf("export %q: %w", h.Term, err)
		}
		startT, _ := dates.Parse(start)
		endT, _ := dates.Parse(end)

		uid := h.ID
		if uid == "" {
			uid = model.NewID()
		}

		ev := cal.AddEvent(uid + "@ukholidaycalendar")
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(startT)
		ev.SetAllDayEndAt(endT)
		ev.SetSummary(h.Term)
		ev.SetDescription(description(h))
	}

	return cal.Serialize(), nil
}

// ExportHoliday renders a single entry as a VCALENDAR document.
func ExportHoliday(h model.SchoolHoliday, now time.Time) (string, error) {
	return ExportCalendar([]model.SchoolHoliday{h}, now)
}

// FileName is the suggested download name for an exported entry.
func FileName(h model.SchoolHoliday) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '_'
		}
		return -1
	}, h.Term)
	if name == "" {
		name = "holiday"
	}
	return name + ".ics"
}

// Links holds add-to-calendar deeplinks for one entry.
type Links struct {
	Google    string `json:"google"`
	Outlook   string `json:"outlook"`
	Office365 string `json:"office365"`
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// GoogleLink builds a Google Calendar template link with compact dates.
func GoogleLink(h model.SchoolHoliday) (string, error) {
	start, end, err := exportRange(h)
	if err != nil {
		return "", err
	}
	s, _ := dates.Compact(start)
	e, _ := dates.Compact(end)
	return fmt.Sprintf("https://calendar.google.com/calendar/render?action=TEMPLATE&text=%s&dates=%s/%s&details=%s&srp=true",
		escape(h.Term), s, e, escape(description(h))), nil
}

func composeLink(host string, h model.SchoolHoliday) (string, error) {
	start, end, err := exportRange(h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s/calendar/0/deeplink/compose?path=/calendar/action/compose&rru=addevent&startdt=%s&enddt=%s&subject=%s&body=%s&allday=true",
		host, start, end, escape(h.Term), escape(description(h))), nil
}

// OutlookLink builds an outlook.live.com compose link.
func OutlookLink(h model.SchoolHoliday) (string, error) {
	return composeLink("outlook.live.com", h)
}

// Office365Link builds an outlook.office.com compose link.
func Office365Link(h model.SchoolHoliday) (string, error) {
	return composeLink("outlook.office.com", h)
}

// LinksFor builds all deeplinks for h.
func LinksFor(h model.SchoolHoliday) (Links, error) {
	var l Links
	var err error
	if l.Google, err = GoogleLink(h); err != nil {
		return Links{}, err
	}
	if l.Outlook, err = OutlookLink(h); err != nil {
		return Links{}, err
	}
	if l.Office365, err = Office365Link(h); err != nil {
		return Links{}, err
	}
	return l, nil
}
