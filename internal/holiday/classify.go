// Package holiday is the merge, classification and filtering engine: it
// decides which public, school and personal entries apply to each calendar
// day and keeps the school holiday collection sorted and de-duplicated.
//
// Everything here is a pure function over in-memory slices.
package holiday

import (
	"strings"

	"holidaycal/internal/dates"
	"holidaycal/internal/model"
)

// Display is the resolved colour category of one calendar day.
type Display string

const (
	DisplayNone                   Display = "none"
	DisplayWeekend                Display = "weekend"
	DisplayPersonal               Display = "personal"
	DisplaySchoolStandard         Display = "school-standard"
	DisplaySchoolStandardPersonal Display = "school-standard+personal"
	DisplaySchoolManual           Display = "school-manual"
	DisplaySchoolManualPersonal   Display = "school-manual+personal"
	DisplayPublic                 Display = "public"
	DisplayPublicPersonal         Display = "public+personal"
)

// Combined reports whether d is a split cell with a personal overlay.
func (d Display) Combined() bool {
	return strings.HasSuffix(string(d), "+personal")
}

// Primary returns the base category of a combined display.
func (d Display) Primary() Display {
	return Display(strings.TrimSuffix(string(d), "+personal"))
}

// Tooltip suffixes per entry category.
const (
	suffixPublic   = " (Public Holiday)"
	suffixStandard = " (School Holiday)"
	suffixManual   = " (School Event)"
	suffixPersonal = " (Personal)"
)

// Classification is the outcome of classifying one date.
type Classification struct {
	Date     string  `json:"date"`
	Category Display `json:"category"`

	// Public is the public holiday on this date, if any.
	Public *model.Holiday `json:"public,omitempty"`

	// Contributing holds every school/personal entry covering the date, in
	// collection order.
	Contributing []model.SchoolHoliday `json:"contributing,omitempty"`

	// Labels are the de-duplicated tooltip lines; Tooltip joins them.
	Labels  []string `json:"labels,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
}

// buckets partitions the entries covering one date.
type buckets struct {
	standard []model.SchoolHoliday
	manual   []model.SchoolHoliday
	personal []model.SchoolHoliday
	all      []model.SchoolHoliday
}

func collect(date string, school []model.SchoolHoliday) buckets {
	var b buckets
	for _, h := range school {
		if !dates.InRange(date, h.StartDate, h.EndDate) {
			continue
		}
		b.all = append(b.all, h)
		switch h.Category() {
		case model.CategorySchoolStandard:
			b.standard = append(b.standard, h)
		case model.CategorySchoolManual:
			b.manual = append(b.manual, h)
		default:
			b.personal = append(b.personal, h)
		}
	}
	return b
}

func findPublic(date string, public []model.Holiday) *model.Holiday {
	for i := range public {
		if public[i].Date == date {
			h := public[i]
			return &h
		}
	}
	return nil
}

// ClassifyDate resolves which holidays apply to date and how the day is
// displayed. Precedence is public > manual school > standard school > personal;
// a personal entry never hides, it turns the higher category into a combined
// one. The function is pure and idempotent.
func ClassifyDate(date string, public []model.Holiday, school []model.SchoolHoliday) Classification {
	b := collect(date, school)
	pub := findPublic(date, public)

	c := Classification{
		Date:         date,
		Public:       pub,
		Contributing: b.all,
		Category:     resolve(pub != nil, len(b.manual) > 0, len(b.standard) > 0, len(b.personal) > 0, dates.IsWeekend(date)),
	}
	c.Labels = labels(pub, b.all)
	c.Tooltip = strings.Join(c.Labels, "\n")
	return c
}

func resolve(public, manual, standard, personal, weekend bool) Display {
	var base Display
	switch {
	case public:
		base = DisplayPublic
	case manual:
		base = DisplaySchoolManual
	case standard:
		base = DisplaySchoolStandard
	case personal:
		return DisplayPersonal
	case weekend:
		return DisplayWeekend
	default:
		return DisplayNone
	}
	if personal {
		return base + "+personal"
	}
	return base
}

func labels(pub *model.Holiday, entries []model.SchoolHoliday) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	if pub != nil {
		add(pub.Title + suffixPublic)
	}
	for _, h := range entries {
		switch h.Category() {
		case model.CategorySchoolStandard:
			add(h.Term + suffixStandard)
		case model.CategorySchoolManual:
			add(h.Term + suffixManual)
		default:
			add(h.Term + suffixPersonal)
		}
	}
	return out
}

// ClassifyYear classifies every day of year, in order.
func ClassifyYear(year int, public []model.Holiday, school []model.SchoolHoliday) []Classification {
	days := dates.DaysOfYear(year)
	out := make([]Classification, 0, len(days))
	for _, d := range days {
		out = append(out, ClassifyDate(d, public, school))
	}
	return out
}

// Swatch is the light/dark theme colour of a display category. Combined
// categories render as a diagonal split of the two colours.
type Swatch struct {
	Light string `json:"light"`
	Dark  string `json:"dark"`
}

var personalSwatch = Swatch{Light: "#d8b4fe", Dark: "#581c87"}

var palette = map[Display]Swatch{
	DisplayPublic:         {Light: "#ffcc00", Dark: "#b45309"},
	DisplaySchoolManual:   {Light: "#6ee7b7", Dark: "#064e3b"},
	DisplaySchoolStandard: {Light: "#89d6e8", Dark: "#155e75"},
	DisplayPersonal:       personalSwatch,
	DisplayWeekend:        {Light: "#f8fafc", Dark: "#334155"},
}

// Colours returns the primary swatch and, for combined categories, the
// personal overlay swatch. DisplayNone has no colour.
func (d Display) Colours() (primary Swatch, overlay *Swatch) {
	primary = palette[d.Primary()]
	if d.Combined() {
		o := personalSwatch
		overlay = &o
	}
	return primary, overlay
}
