// Package planner holds the mutable session: the selected year, country and
// postcode, the public holidays of that country and the school holiday
// collection. Every mutation goes through the pure functions of the holiday
// package; the planner only serialises access and coordinates loads.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"holidaycal/internal/holiday"
	"holidaycal/internal/ics"
	appLog "holidaycal/internal/log"
	"holidaycal/internal/metrics"
	"holidaycal/internal/model"
	"holidaycal/internal/report"
	"holidaycal/internal/sources"
	"holidaycal/internal/state"
)

var (
	ErrNotFound  = errors.New("holiday not found")
	ErrDuplicate = errors.New("a holiday with the same dates and term already exists")
	ErrStale     = errors.New("load superseded by a newer one")
)

// PublicSource loads the public holidays of a country covering a year.
type PublicSource interface {
	Load(ctx context.Context, country model.Country, year int) ([]model.Holiday, sources.Origin)
}

// CalendarImporter imports a calendar URL against the existing collection.
type CalendarImporter interface {
	ImportURL(ctx context.Context, rawURL string, existing []model.SchoolHoliday, window ics.ExpandConfig) ics.ImportResult
}

// PostcodeLookup resolves the school holidays of a postcode.
type PostcodeLookup func(ctx context.Context, postcode string) ([]model.SchoolHoliday, sources.Region, error)

// Options configures a Planner.
type Options struct {
	Year     int
	Country  model.Country
	Postcode string

	// YearsBefore / YearsAfter bound RRULE expansion around the selected year.
	YearsBefore int
	YearsAfter  int

	// Lookup defaults to sources.LookupPostcode.
	Lookup PostcodeLookup
	// Now defaults to time.Now.
	Now func() time.Time
}

// Planner is safe for concurrent use.
type Planner struct {
	public   PublicSource
	importer CalendarImporter
	lookup   PostcodeLookup
	now      func() time.Time

	yearsBefore int
	yearsAfter  int

	mu       sync.RWMutex
	year     int
	country  model.Country
	postcode string
	holidays []model.Holiday
	school   []model.SchoolHoliday

	// generation increases on every load that replaces the collection; a
	// default reseed captured under an older generation is discarded.
	generation uint64
}

// New creates a planner. The collection starts empty; call LoadCountry to
// seed it.
func New(public PublicSource, importer CalendarImporter, opts Options) *Planner {
	p := &Planner{
		public:      public,
		importer:    importer,
		lookup:      opts.Lookup,
		now:         opts.Now,
		yearsBefore: opts.YearsBefore,
		yearsAfter:  opts.YearsAfter,
		year:        opts.Year,
		country:     opts.Country,
		postcode:    opts.Postcode,
		school:      []model.SchoolHoliday{},
	}
	if p.lookup == nil {
		p.lookup = sources.LookupPostcode
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.year <= 0 {
		p.year = p.now().Year()
	}
	if !p.country.Valid() {
		p.country = model.CountryEnglandWales
	}
	return p
}

// Snapshot is a copy of the session.
type Snapshot struct {
	Year     int                   `json:"year"`
	Country  model.Country         `json:"country"`
	Postcode string                `json:"postcode"`
	Public   []model.Holiday       `json:"publicHolidays"`
	School   []model.SchoolHoliday `json:"schoolHolidays"`
}

// Snapshot returns a copy of the current session.
func (p *Planner) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Year:     p.year,
		Country:  p.country,
		Postcode: p.postcode,
		Public:   append([]model.Holiday(nil), p.holidays...),
		School:   append([]model.SchoolHoliday{}, p.school...),
	}
}

// setSchoolLocked replaces the collection; p.mu must be held.
func (p *Planner) setSchoolLocked(hs []model.SchoolHoliday) {
	p.school = hs
	metrics.SchoolHolidays.Set(float64(len(hs)))
}

// LoadCountry selects country, reloads its public holidays and reseeds the
// collection with the country's default school table. If a state load or a
// postcode search completes while the public holidays are being fetched,
// the reseed is dropped so it cannot overwrite the newer collection.
func (p *Planner) LoadCountry(ctx context.Context, country model.Country) error {
	if !country.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownCountry, country)
	}

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.country = country
	year := p.year
	p.mu.Unlock()

	public, origin := p.public.Load(ctx, country, year)
	metrics.PublicHolidayLoads.WithLabelValues(string(origin)).Inc()
	defaults := sources.DefaultSchoolHolidays(country)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.country == country {
		p.holidays = public
	}
	if p.generation != gen {
		metrics.StaleReseeds.Inc()
		appLog.Info("planner: discarding stale default reseed", "country", country)
		return ErrStale
	}
	p.setSchoolLocked(defaults)
	appLog.Info("planner: country loaded", "country", country, "origin", origin, "public", len(public), "school", len(defaults))
	return nil
}

// RefreshPublic reloads the public holidays of the current country without
// touching the collection.
func (p *Planner) RefreshPublic(ctx context.Context) {
	p.mu.RLock()
	country, year := p.country, p.year
	p.mu.RUnlock()

	public, origin := p.public.Load(ctx, country, year)
	metrics.PublicHolidayLoads.WithLabelValues(string(origin)).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.country == country {
		p.holidays = public
	}
}

// SetYear changes the selected year and loads public holidays when the
// current list does not cover it.
func (p *Planner) SetYear(ctx context.Context, year int) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("invalid year %d", year)
	}
	p.mu.Lock()
	p.year = year
	covered := len(holiday.PublicInYear(p.holidays, year)) > 0
	p.mu.Unlock()

	if !covered {
		p.RefreshPublic(ctx)
	}
	return nil
}

// SearchPostcode replaces the collection with the school table of postcode.
func (p *Planner) SearchPostcode(ctx context.Context, postcode string) (sources.Region, error) {
	p.mu.RLock()
	gen := p.generation
	p.mu.RUnlock()

	hs, region, err := p.lookup(ctx, postcode)
	if err != nil {
		return "", err
	}
	holiday.Sort(hs)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		return "", ErrStale
	}
	p.generation++
	p.postcode = postcode
	p.setSchoolLocked(hs)
	appLog.Info("planner: postcode search", "postcode", sources.CleanPostcode(postcode), "region", region, "school", len(hs))
	return region, nil
}

// Add validates h and merges it into the collection. An entry with the same
// dates and term is rejected with ErrDuplicate.
func (p *Planner) Add(h model.SchoolHoliday) (model.SchoolHoliday, error) {
	h = state.Normalize(h)
	if err := h.Validate(); err != nil {
		return model.SchoolHoliday{}, err
	}
	h.ID = model.NewID()

	p.mu.Lock()
	defer p.mu.Unlock()

	merged, added := holiday.MergeCount(p.school, []model.SchoolHoliday{h})
	if added == 0 {
		return model.SchoolHoliday{}, ErrDuplicate
	}
	p.setSchoolLocked(merged)
	return h, nil
}

// Update replaces the entry id with next, keeping its id.
func (p *Planner) Update(id string, next model.SchoolHoliday) (model.SchoolHoliday, error) {
	next = state.Normalize(next)
	if err := next.Validate(); err != nil {
		return model.SchoolHoliday{}, err
	}
	next.ID = id

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := holiday.Find(p.school, id); !ok {
		return model.SchoolHoliday{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, h := range p.school {
		if h.ID != id && h.SameTriple(next) {
			return model.SchoolHoliday{}, ErrDuplicate
		}
	}
	p.setSchoolLocked(holiday.Update(p.school, id, next))
	return next, nil
}

// Remove deletes the entry id.
func (p *Planner) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := holiday.Find(p.school, id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.setSchoolLocked(holiday.Remove(p.school, id))
	return nil
}

// Get returns the entry id.
func (p *Planner) Get(id string) (model.SchoolHoliday, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := holiday.Find(p.school, id)
	if !ok {
		return model.SchoolHoliday{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

func (p *Planner) window(year int) ics.ExpandConfig {
	return ics.WindowForYears(year-p.yearsBefore, year+p.yearsAfter)
}

// Import fetches rawURL and merges its events into the collection.
func (p *Planner) Import(ctx context.Context, rawURL string) ics.ImportResult {
	p.mu.RLock()
	existing := append([]model.SchoolHoliday(nil), p.school...)
	window := p.window(p.year)
	p.mu.RUnlock()

	if p.importer == nil {
		return p.record(ics.ImportResult{Message: "calendar import is not configured", Holidays: []model.SchoolHoliday{}})
	}
	return p.mergeImport(p.importer.ImportURL(ctx, rawURL, existing, window))
}

// ImportData imports an ICS payload uploaded directly.
func (p *Planner) ImportData(name string, body []byte) ics.ImportResult {
	p.mu.RLock()
	existing := append([]model.SchoolHoliday(nil), p.school...)
	window := p.window(p.year)
	p.mu.RUnlock()

	return p.mergeImport(ics.ImportBody(ics.Source{ID: name}, body, existing, window))
}

func (p *Planner) mergeImport(res ics.ImportResult) ics.ImportResult {
	if !res.Success {
		return p.record(res)
	}

	p.mu.Lock()
	merged, added := holiday.MergeCount(p.school, res.Holidays)
	p.setSchoolLocked(merged)
	p.mu.Unlock()

	if added != res.Count {
		// The collection changed between fetch and merge.
		res.Count = added
		res.Message = fmt.Sprintf("Successfully imported %d events!", added)
	}
	metrics.ImportedHolidays.Add(float64(added))
	return p.record(res)
}

func (p *Planner) record(res ics.ImportResult) ics.ImportResult {
	result := "failure"
	if res.Success {
		result = "success"
	}
	metrics.Imports.WithLabelValues(result).Inc()
	return res
}

// State returns the persisted form of the session.
func (p *Planner) State() state.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return state.State{
		Year:           p.year,
		Country:        p.country,
		Postcode:       p.postcode,
		SchoolHolidays: append([]model.SchoolHoliday{}, p.school...),
	}
}

// LoadState applies a decoded session document. Only present fields change.
// A loaded document never triggers a default reseed; when its country differs,
// only the public holidays are reloaded.
func (p *Planner) LoadState(ctx context.Context, patch state.Patch) {
	p.mu.Lock()
	p.generation++
	before := p.country
	st := state.State{Year: p.year, Country: p.country, Postcode: p.postcode, SchoolHolidays: p.school}
	patch.Apply(&st)
	p.year, p.country, p.postcode = st.Year, st.Country, st.Postcode
	p.setSchoolLocked(st.SchoolHolidays)
	needPublic := st.Country != before || len(holiday.PublicInYear(p.holidays, st.Year)) == 0
	p.mu.Unlock()

	if needPublic {
		p.RefreshPublic(ctx)
	}
}

// view resolves v against the selected year and returns its public
// holidays, its visible entries and the year.
func (p *Planner) view(v holiday.ViewState) ([]model.Holiday, []model.SchoolHoliday, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v.Year <= 0 {
		v.Year = p.year
	}
	return holiday.PublicInYear(p.holidays, v.Year), holiday.Visible(p.school, v), v.Year
}

// Calendar classifies every day of the view's year.
func (p *Planner) Calendar(v holiday.ViewState) (int, []holiday.Classification) {
	public, school, year := p.view(v)
	return year, holiday.ClassifyYear(year, public, school)
}

// Legend counts the view's year.
func (p *Planner) Legend(v holiday.ViewState) (int, holiday.LegendCounts) {
	public, school, year := p.view(v)
	return year, holiday.Legend(year, public, school)
}

// Events lists the view's year chronologically.
func (p *Planner) Events(v holiday.ViewState) (int, []report.Event) {
	public, school, year := p.view(v)
	return year, report.EventsList(year, public, school)
}

// Holidays returns the visible collection entries of the view.
func (p *Planner) Holidays(v holiday.ViewState) []model.SchoolHoliday {
	_, school, _ := p.view(v)
	return school
}
