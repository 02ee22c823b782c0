package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"holidaycal/internal/dates"
)

var (
	ErrTermEmpty      = errors.New("holiday term cannot be empty")
	ErrInvalidRange   = errors.New("holiday end date is before its start date")
	ErrUnknownCountry = errors.New("unknown country")
)

// Country selects the public holiday division and the default school table.
type Country string

const (
	CountryEnglandWales    Country = "england-and-wales"
	CountryScotland        Country = "scotland"
	CountryNorthernIreland Country = "northern-ireland"
)

// Countries lists every supported division in display order.
var Countries = []Country{CountryEnglandWales, CountryScotland, CountryNorthernIreland}

// Valid reports whether c is one of the supported divisions.
func (c Country) Valid() bool {
	switch c {
	case CountryEnglandWales, CountryScotland, CountryNorthernIreland:
		return true
	}
	return false
}

// DisplayName is the human label used in calendar headings.
func (c Country) DisplayName() string {
	switch c {
	case CountryEnglandWales:
		return "England & Wales"
	case CountryScotland:
		return "Scotland"
	case CountryNorthernIreland:
		return "Northern Ireland"
	default:
		return "UK"
	}
}

// Holiday is a single-day public (bank) holiday. Notes and Bunting are passed
// through from the gov.uk feed when present.
type Holiday struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Notes   string `json:"notes,omitempty"`
	Bunting bool   `json:"bunting,omitempty"`
}

// HolidayType tags a SchoolHoliday. The empty value only exists on legacy
// records and is resolved by state.Normalize at load time.
type HolidayType string

const (
	TypeUnset       HolidayType = ""
	TypeSchool      HolidayType = "school"
	TypeOtherSchool HolidayType = "other_school"
	TypeUser        HolidayType = "user"
	TypeEvent       HolidayType = "event"
)

// Category is the per-entry classification derived from IsManual and Type.
type Category string

const (
	CategoryPublic         Category = "public"
	CategorySchoolStandard Category = "school-standard"
	CategorySchoolManual   Category = "school-manual"
	CategoryPersonal       Category = "personal"
)

// SchoolHoliday is an inclusive date range: a standard school break from a
// regional table, an imported school event, or a personal event.
//
// ID is a synthetic identity used for remove/update so that two entries with
// identical fields stay independently addressable. It never takes part in
// duplicate detection.
type SchoolHoliday struct {
	ID        string      `json:"id,omitempty"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Term      string      `json:"term"`
	IsManual  bool        `json:"isManual"`
	Type      HolidayType `json:"type,omitempty"`
}

// NewID returns a fresh synthetic identifier.
func NewID() string {
	return uuid.NewString()
}

// NewSchoolHoliday validates the range and returns an entry with a fresh ID.
func NewSchoolHoliday(start, end, term string, isManual bool, typ HolidayType) (SchoolHoliday, error) {
	h := SchoolHoliday{
		StartDate: strings.TrimSpace(start),
		EndDate:   strings.TrimSpace(end),
		Term:      strings.TrimSpace(term),
		IsManual:  isManual,
		Type:      typ,
	}
	if err := h.Validate(); err != nil {
		return SchoolHoliday{}, err
	}
	h.ID = NewID()
	return h, nil
}

// Validate checks the date formats, the range order and the term.
func (h SchoolHoliday) Validate() error {
	if h.Term == "" {
		return ErrTermEmpty
	}
	if !dates.Valid(h.StartDate) {
		return dates.ErrInvalidDate
	}
	if !dates.Valid(h.EndDate) {
		return dates.ErrInvalidDate
	}
	if h.EndDate < h.StartDate {
		return ErrInvalidRange
	}
	return nil
}

// Category derives the entry's category. A manual entry without a school
// type is personal; this keeps legacy records (no type) personal.
func (h SchoolHoliday) Category() Category {
	if !h.IsManual {
		return CategorySchoolStandard
	}
	switch h.Type {
	case TypeSchool, TypeOtherSchool:
		return CategorySchoolManual
	default:
		return CategoryPersonal
	}
}

// SameTriple reports whether two entries share start, end and term exactly.
func (h SchoolHoliday) SameTriple(o SchoolHoliday) bool {
	return h.StartDate == o.StartDate && h.EndDate == o.EndDate && h.Term == o.Term
}
