package ics

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	ical "github.com/arran4/golang-ical"

	"holidaycal/internal/dates"
	appLog "holidaycal/internal/log"
)

// ParsedEvent is a VEVENT reduced to inclusive calendar dates. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	UID     string
	Summary string

	// StartDate and EndDate are inclusive ISO dates. For all-day events the
	// exclusive DTEND has already been pulled back one day.
	StartDate string
	EndDate   string
	AllDay    bool

	RawRRule   string
	ExDates    []string
	Recurrence string // RECURRENCE-ID date, set on overrides only
}

// IsOverride reports whether the event replaces one recurring instance.
func (e ParsedEvent) IsOverride() bool {
	return e.Recurrence != ""
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
// Dates are taken from the calendar date written in DTSTART/DTEND, in the
// event's own zone; no timezone conversion happens, so an event keeps the
// day it was published on.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return nil, ErrNotCalendar
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Debug("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := dates.FromCompact(dtStart.Value)
	if err != nil {
		return out, err
	}
	out.StartDate = start
	out.AllDay = isDateValue(dtStart)

	end := start
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, err = dates.FromCompact(dtEnd.Value); err != nil {
			return out, err
		}
		if isDateValue(dtEnd) {
			// DTEND of an all-day event is exclusive.
			if end, err = dates.AddDays(end, -1); err != nil {
				return out, err
			}
		}
	} else if dur := ve.GetProperty("DURATION"); dur != nil && out.AllDay {
		if n := durationDays(dur.Value); n > 0 {
			if end, err = dates.AddDays(start, n-1); err != nil {
				return out, err
			}
		}
	}
	if end < start {
		end = start
	}
	out.EndDate = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if d, err := dates.FromCompact(strings.TrimSpace(part)); err == nil {
				out.ExDates = append(out.ExDates, d)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if d, err := dates.FromCompact(p.Value); err == nil {
			out.Recurrence = d
		}
	}

	return out, nil
}

// isDateValue reports whether a DTSTART/DTEND holds a DATE rather than a
// DATE-TIME: VALUE=DATE or no 'T' in the value.
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

var durationRe = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?`)

// durationDays returns the whole days of an ICS DURATION such as P1W or P3D.
func durationDays(v string) int {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0
	}
	weeks, _ := strconv.Atoi(m[1])
	days, _ := strconv.Atoi(m[2])
	return weeks*7 + days
}
