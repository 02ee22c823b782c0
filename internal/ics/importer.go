package ics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "holidaycal/internal/log"
	"holidaycal/internal/model"
)

// ImportResult is the boundary outcome of an import; failures are reported
// here rather than as errors.
type ImportResult struct {
	Success  bool                  `json:"success"`
	Count    int                   `json:"count"`
	Message  string                `json:"message"`
	Holidays []model.SchoolHoliday `json:"holidays"`
}

func failed(err error) ImportResult {
	msg := "failed to import; check the URL"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ImportResult{Success: false, Message: msg, Holidays: []model.SchoolHoliday{}}
}

// Summaries announcing the end of a break are not holidays.
var excludedPhrases = []string{"re-open", "reopen", "school opens"}

// Summaries containing any of these are treated as standard school breaks.
var standardKeywords = []string{"half term", "break", "holiday", "easter", "christmas", "winter", "spring", "summer"}

// Excluded reports whether an event summary should be skipped on import.
func Excluded(summary string) bool {
	s := strings.ToLower(summary)
	for _, p := range excludedPhrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Classify maps an imported summary to its flags: break-like summaries become
// standard school holidays, anything else a manual school event.
func Classify(summary string) (isManual bool, typ model.HolidayType) {
	s := strings.ToLower(summary)
	for _, k := range standardKeywords {
		if strings.Contains(s, k) {
			return false, model.TypeSchool
		}
	}
	return true, model.TypeOtherSchool
}

const untitled = "Untitled event"

// Convert turns occurrences into new entries. An occurrence is skipped when
// excluded, or when an existing entry or an earlier one in this batch has
// the same start and end dates.
func Convert(occ []Occurrence, existing []model.SchoolHoliday) []model.SchoolHoliday {
	type span struct{ start, end string }
	seen := make(map[span]bool, len(existing)+len(occ))
	for _, h := range existing {
		seen[span{h.StartDate, h.EndDate}] = true
	}

	out := make([]model.SchoolHoliday, 0, len(occ))
	for _, o := range occ {
		if Excluded(o.Summary) {
			continue
		}
		key := span{o.StartDate, o.EndDate}
		if seen[key] {
			continue
		}
		seen[key] = true

		term := o.Summary
		if term == "" {
			term = untitled
		}
		isManual, typ := Classify(term)
		out = append(out, model.SchoolHoliday{
			ID:        model.NewID(),
			StartDate: o.StartDate,
			EndDate:   o.EndDate,
			Term:      term,
			IsManual:  isManual,
			Type:      typ,
		})
	}
	return out
}

// ImportBody parses an ICS payload and converts it against existing.
func ImportBody(src Source, body []byte, existing []model.SchoolHoliday, window ExpandConfig) ImportResult {
	events, err := ParseICS(src, body)
	if err != nil {
		return failed(err)
	}

	expanded, err := ExpandOccurrences(events, window)
	if err != nil {
		return failed(err)
	}

	holidays := Convert(expanded.Occurrences, existing)
	appLog.Info("ics import converted", "id", src.ID, "events", len(events), "occurrences", len(expanded.Occurrences), "added", len(holidays))

	return ImportResult{
		Success:  true,
		Count:    len(holidays),
		Message:  fmt.Sprintf("Successfully imported %d events!", len(holidays)),
		Holidays: holidays,
	}
}

// Importer fetches and imports calendars from URLs.
type Importer struct {
	fetcher *Fetcher
}

// NewImporter returns an Importer using f for downloads.
func NewImporter(f *Fetcher) *Importer {
	return &Importer{fetcher: f}
}

// ImportURL fetches rawURL through the proxy chain and imports it. It never
// returns an error; every failure becomes an unsuccessful ImportResult.
func (im *Importer) ImportURL(ctx context.Context, rawURL string, existing []model.SchoolHoliday, window ExpandConfig) ImportResult {
	if strings.TrimSpace(rawURL) == "" {
		return failed(errors.New("calendar URL is empty"))
	}

	src := Source{ID: "import", URL: rawURL}
	res, err := im.fetcher.FetchOne(ctx, src)
	if err != nil {
		appLog.Error("ics import fetch failed", err, "url", redactURL(NormalizeURL(rawURL)))
		return failed(err)
	}
	return ImportBody(res.Source, res.Body, existing, window)
}
