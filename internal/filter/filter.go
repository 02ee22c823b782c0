// Package filter implements the free-text search used to narrow the visible
// school and personal holidays.
//
// The grammar is deliberately flat: a query is an OR of AND-groups, and each
// AND-term is a substring, optionally negated with a leading "not ". There are
// no parentheses; every character is ordinary searchable text.
package filter

import (
	"strings"

	"holidaycal/internal/model"
)

const (
	orSep     = " or "
	andSep    = " and "
	notPrefix = "not "
)

// Matches reports whether haystack satisfies query, case-insensitively.
// An empty query matches everything; an empty haystack matches nothing else.
func Matches(haystack, query string) bool {
	if query == "" {
		return true
	}
	if haystack == "" {
		return false
	}

	text := strings.ToLower(haystack)
	for _, group := range splitNonEmpty(strings.ToLower(query), orSep) {
		if groupMatches(text, group) {
			return true
		}
	}
	return false
}

func groupMatches(text, group string) bool {
	for _, term := range splitNonEmpty(group, andSep) {
		if !termMatches(text, term) {
			return false
		}
	}
	return true
}

func termMatches(text, term string) bool {
	if strings.HasPrefix(term, notPrefix) {
		excluded := strings.TrimSpace(strings.TrimPrefix(term, notPrefix))
		return excluded != "" && !strings.Contains(text, excluded)
	}
	return strings.Contains(text, term)
}

// splitNonEmpty splits on sep, trims every piece and drops empty ones.
func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Haystack is the searchable text of an entry: its term and both dates, so
// queries can match date fragments such as "2026-02".
func Haystack(h model.SchoolHoliday) string {
	return h.Term + " " + h.StartDate + " " + h.EndDate
}
