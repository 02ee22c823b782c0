package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"holidaycal/internal/dates"
	appLog "holidaycal/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd are the inclusive ISO dates recurring events are
	// expanded within. Non-recurring events are never range filtered.
	RangeStart string
	RangeEnd   string

	// MaxOccurrencesPerEvent caps a single RRULE. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// WindowForYears builds the expansion window from Jan 1 of from to Dec 31
// of to.
func WindowForYears(from, to int) ExpandConfig {
	start, _ := dates.YearBounds(from)
	_, end := dates.YearBounds(to)
	return ExpandConfig{RangeStart: start, RangeEnd: end}
}

// Occurrence is one concrete, inclusive date range produced by expansion.
type Occurrence struct {
	UID       string
	Summary   string
	StartDate string
	EndDate   string
}

// ExpandResult wraps the list of expanded occurrences and the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences in input
// order. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence within the configured window
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, which replace the instance they name
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !dates.Valid(cfg.RangeStart) || !dates.Valid(cfg.RangeEnd) {
		return result, errors.New("expand: invalid range")
	}
	if cfg.RangeEnd < cfg.RangeStart {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Instances replaced by an override, keyed by UID then date.
	overridden := make(map[string]map[string]bool)
	for _, ev := range events {
		if ev.IsOverride() && ev.UID != "" {
			if overridden[ev.UID] == nil {
				overridden[ev.UID] = make(map[string]bool)
			}
			overridden[ev.UID][ev.Recurrence] = true
		}
	}

	for _, ev := range events {
		if ev.RawRRule == "" || ev.IsOverride() {
			result.Occurrences = append(result.Occurrences, single(ev))
			continue
		}

		occ, hitCap := expandRecurring(ev, overridden[ev.UID], cfg)
		result.Occurrences = append(result.Occurrences, occ...)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func single(ev ParsedEvent) Occurrence {
	return Occurrence{UID: ev.UID, Summary: ev.Summary, StartDate: ev.StartDate, EndDate: ev.EndDate}
}

// midnight parses an ISO date at 00:00 UTC, the anchor rrule works in.
func midnight(date string) (time.Time, error) {
	t, err := dates.Parse(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func expandRecurring(ev ParsedEvent, overridden map[string]bool, cfg ExpandConfig) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)

	start, err := midnight(ev.StartDate)
	if err != nil {
		return out, false
	}
	end, err := midnight(ev.EndDate)
	if err != nil {
		return out, false
	}
	span := int(end.Sub(start).Hours() / 24)

	// Build the rule with DTSTART in the options so weekday defaults derive
	// from the event itself.
	opt, err := rrule.StrToROption(ev.RawRRule)
	var r *rrule.RRule
	if err == nil {
		opt.Dtstart = start
		r, err = rrule.NewRRule(*opt)
	}
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		// Keep the first instance rather than losing the event.
		return []Occurrence{single(ev)}, false
	}

	// Build a set so we can apply EXDATE.
	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		if t, err := midnight(ex); err == nil {
			set.ExDate(t)
		}
	}

	rangeStart, _ := midnight(cfg.RangeStart)
	rangeEnd, _ := midnight(cfg.RangeEnd)

	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, t := range occTimes {
		date := dates.Format(t)
		if overridden[date] {
			continue
		}
		endDate, err := dates.AddDays(date, span)
		if err != nil {
			continue
		}
		out = append(out, Occurrence{UID: ev.UID, Summary: ev.Summary, StartDate: date, EndDate: endDate})
	}

	return out, hitCap
}
