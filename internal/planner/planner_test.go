package planner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holidaycal/internal/holiday"
	"holidaycal/internal/ics"
	"holidaycal/internal/model"
	"holidaycal/internal/planner"
	"holidaycal/internal/sources"
	"holidaycal/internal/state"
)

// fakePublic serves a fixed list. When gate is set, the first Load signals
// started and blocks until gate is closed.
type fakePublic struct {
	mu       sync.Mutex
	holidays map[model.Country][]model.Holiday
	calls    int
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakePublic) Load(_ context.Context, country model.Country, _ int) ([]model.Holiday, sources.Origin) {
	f.mu.Lock()
	f.calls++
	gate, started := f.gate, f.started
	f.gate, f.started = nil, nil
	hs := f.holidays[country]
	f.mu.Unlock()

	if gate != nil {
		close(started)
		<-gate
	}
	return append([]model.Holiday(nil), hs...), sources.OriginGovUK
}

func (f *fakePublic) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImporter struct {
	result ics.ImportResult
	url    string
}

func (f *fakeImporter) ImportURL(_ context.Context, rawURL string, _ []model.SchoolHoliday, _ ics.ExpandConfig) ics.ImportResult {
	f.url = rawURL
	return f.result
}

var englandPublic = map[model.Country][]model.Holiday{
	model.CountryEnglandWales: {
		{Date: "2025-01-01", Title: "New Year’s Day"},
		{Date: "2025-05-05", Title: "Early May bank holiday"},
	},
	model.CountryScotland: {
		{Date: "2025-01-02", Title: "2nd January"},
	},
}

func newPlanner(t *testing.T, pub *fakePublic, imp planner.CalendarImporter) *planner.Planner {
	t.Helper()
	return planner.New(pub, imp, planner.Options{
		Year:        2025,
		Country:     model.CountryEnglandWales,
		YearsBefore: 1,
		YearsAfter:  1,
		Now:         func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func entry(start, end, term string) model.SchoolHoliday {
	return model.SchoolHoliday{StartDate: start, EndDate: end, Term: term, IsManual: true, Type: model.TypeUser}
}

func TestLoadCountry_SeedsDefaults(t *testing.T) {
	pub := &fakePublic{holidays: englandPublic}
	p := newPlanner(t, pub, nil)

	require.NoError(t, p.LoadCountry(context.Background(), model.CountryScotland))

	snap := p.Snapshot()
	assert.Equal(t, model.CountryScotland, snap.Country)
	assert.Equal(t, englandPublic[model.CountryScotland], snap.Public)
	assert.Equal(t, withoutIDs(sources.DefaultSchoolHolidays(model.CountryScotland)), withoutIDs(snap.School))
	for _, h := range snap.School {
		assert.NotEmpty(t, h.ID)
	}
}

// withoutIDs blanks the synthetic ids so tables can be compared by value.
func withoutIDs(hs []model.SchoolHoliday) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, len(hs))
	for i, h := range hs {
		h.ID = ""
		out[i] = h
	}
	return out
}

func TestLoadCountry_Unknown(t *testing.T) {
	p := newPlanner(t, &fakePublic{}, nil)
	err := p.LoadCountry(context.Background(), model.Country("wales"))
	assert.ErrorIs(t, err, model.ErrUnknownCountry)
}

func TestLoadCountry_StateLoadWinsOverReseed(t *testing.T) {
	pub := &fakePublic{
		holidays: englandPublic,
		gate:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	started, gate := pub.started, pub.gate
	p := newPlanner(t, pub, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- p.LoadCountry(context.Background(), model.CountryEnglandWales) }()
	<-started

	patch, err := state.Decode([]byte(`{"schoolHolidays":[{"startDate":"2025-03-03","endDate":"2025-03-04","term":"Loaded","isManual":true,"type":"user"}]}`))
	require.NoError(t, err)
	p.LoadState(context.Background(), patch)
	close(gate)

	assert.ErrorIs(t, <-errCh, planner.ErrStale)
	school := p.State().SchoolHolidays
	require.Len(t, school, 1)
	assert.Equal(t, "Loaded", school[0].Term)
	assert.Equal(t, englandPublic[model.CountryEnglandWales], p.Snapshot().Public)
}

func TestLoadCountry_FailedPostcodeSearchKeepsReseed(t *testing.T) {
	pub := &fakePublic{
		holidays: englandPublic,
		gate:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	started, gate := pub.started, pub.gate
	errLookup := errors.New("lookup unavailable")
	p := planner.New(pub, nil, planner.Options{
		Year:    2025,
		Country: model.CountryEnglandWales,
		Lookup: func(context.Context, string) ([]model.SchoolHoliday, sources.Region, error) {
			return nil, "", errLookup
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- p.LoadCountry(context.Background(), model.CountryEnglandWales) }()
	<-started

	_, err := p.SearchPostcode(context.Background(), "M1 1AA")
	assert.ErrorIs(t, err, errLookup)
	close(gate)

	require.NoError(t, <-errCh)
	assert.Equal(t,
		withoutIDs(sources.DefaultSchoolHolidays(model.CountryEnglandWales)),
		withoutIDs(p.State().SchoolHolidays))
}

func TestAddUpdateRemove(t *testing.T) {
	p := newPlanner(t, &fakePublic{}, nil)

	a, err := p.Add(entry("2025-06-02", "2025-06-03", "Dentist"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	_, err = p.Add(entry("2025-06-02", "2025-06-03", "Dentist"))
	assert.ErrorIs(t, err, planner.ErrDuplicate)

	_, err = p.Add(entry("2025-06-05", "2025-06-01", "Backwards"))
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	b, err := p.Add(entry("2025-04-01", "2025-04-01", "Trip"))
	require.NoError(t, err)

	all := p.State().SchoolHolidays
	require.Len(t, all, 2)
	assert.Equal(t, "Trip", all[0].Term, "collection is sorted by start date")

	updated, err := p.Update(b.ID, entry("2025-04-02", "2025-04-02", "Trip moved"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, updated.ID)

	got, err := p.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip moved", got.Term)

	_, err = p.Update(b.ID, entry("2025-06-02", "2025-06-03", "Dentist"))
	assert.ErrorIs(t, err, planner.ErrDuplicate)

	_, err = p.Update("missing", entry("2025-04-02", "2025-04-02", "x"))
	assert.ErrorIs(t, err, planner.ErrNotFound)

	require.NoError(t, p.Remove(a.ID))
	assert.ErrorIs(t, p.Remove(a.ID), planner.ErrNotFound)
	_, err = p.Get(a.ID)
	assert.ErrorIs(t, err, planner.ErrNotFound)
	assert.Len(t, p.State().SchoolHolidays, 1)
}

func TestSearchPostcode(t *testing.T) {
	p := newPlanner(t, &fakePublic{}, nil)

	region, err := p.SearchPostcode(context.Background(), "m1 1aa")
	require.NoError(t, err)
	assert.Equal(t, sources.RegionManchester, region)
	assert.Equal(t, "m1 1aa", p.State().Postcode)
	assert.NotEmpty(t, p.State().SchoolHolidays)

	_, err = p.SearchPostcode(context.Background(), "  ")
	assert.ErrorIs(t, err, sources.ErrEmptyPostcode)
}

func TestSetYear_LoadsWhenUncovered(t *testing.T) {
	pub := &fakePublic{holidays: englandPublic}
	p := newPlanner(t, pub, nil)
	require.NoError(t, p.LoadCountry(context.Background(), model.CountryEnglandWales))
	require.Equal(t, 1, pub.Calls())

	require.NoError(t, p.SetYear(context.Background(), 2025))
	assert.Equal(t, 1, pub.Calls(), "2025 is covered")

	require.NoError(t, p.SetYear(context.Background(), 2026))
	assert.Equal(t, 2, pub.Calls())
	assert.Equal(t, 2026, p.State().Year)

	assert.Error(t, p.SetYear(context.Background(), 0))
}

func TestLoadState_CountryChangeRefreshesPublicOnly(t *testing.T) {
	pub := &fakePublic{holidays: englandPublic}
	p := newPlanner(t, pub, nil)
	require.NoError(t, p.LoadCountry(context.Background(), model.CountryEnglandWales))
	_, err := p.Add(entry("2025-06-02", "2025-06-03", "Dentist"))
	require.NoError(t, err)

	patch, err := state.Decode([]byte(`{"country":"scotland","postcode":"EH1"}`))
	require.NoError(t, err)
	p.LoadState(context.Background(), patch)

	snap := p.Snapshot()
	assert.Equal(t, model.CountryScotland, snap.Country)
	assert.Equal(t, "EH1", snap.Postcode)
	assert.Equal(t, englandPublic[model.CountryScotland], snap.Public)
	assert.Len(t, snap.School, len(sources.DefaultSchoolHolidays(model.CountryEnglandWales))+1,
		"collection kept, no reseed")
}

func TestImport_MergesAndRecounts(t *testing.T) {
	existing := entry("2025-02-17", "2025-02-21", "Half Term")
	imp := &fakeImporter{result: ics.ImportResult{
		Success: true,
		Count:   2,
		Message: "Successfully imported 2 events!",
		Holidays: []model.SchoolHoliday{
			{ID: "x1", StartDate: "2025-02-17", EndDate: "2025-02-21", Term: "Half Term", IsManual: true, Type: model.TypeUser},
			{ID: "x2", StartDate: "2025-03-10", EndDate: "2025-03-10", Term: "INSET day", IsManual: true, Type: model.TypeOtherSchool},
		},
	}}
	p := newPlanner(t, &fakePublic{}, imp)
	_, err := p.Add(existing)
	require.NoError(t, err)

	res := p.Import(context.Background(), "webcal://school.example/cal.ics")
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Successfully imported 1 events!", res.Message)
	assert.Equal(t, "webcal://school.example/cal.ics", imp.url)
	assert.Len(t, p.State().SchoolHolidays, 2)
}

func TestImport_NotConfigured(t *testing.T) {
	p := newPlanner(t, &fakePublic{}, nil)
	res := p.Import(context.Background(), "https://example.com/a.ics")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func icsBody(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//Test//EN"}
	for _, e := range events {
		lines = append(lines, strings.Split(e, "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

const halfTermEvent = "BEGIN:VEVENT\nUID:ht\nSUMMARY:February Half Term\nDTSTART;VALUE=DATE:20250217\nDTEND;VALUE=DATE:20250222\nEND:VEVENT"

func TestImportData(t *testing.T) {
	p := newPlanner(t, &fakePublic{}, nil)

	res := p.ImportData("upload", icsBody(halfTermEvent))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Count)

	school := p.State().SchoolHolidays
	require.Len(t, school, 1)
	assert.Equal(t, "2025-02-17", school[0].StartDate)
	assert.Equal(t, "2025-02-21", school[0].EndDate)
	assert.False(t, school[0].IsManual)
	assert.Equal(t, model.TypeSchool, school[0].Type)

	again := p.ImportData("upload", icsBody(halfTermEvent))
	assert.True(t, again.Success)
	assert.Zero(t, again.Count)

	bad := p.ImportData("upload", []byte("<html></html>"))
	assert.False(t, bad.Success)
}

func TestCalendarAndLegend(t *testing.T) {
	p := newPlanner(t, &fakePublic{holidays: englandPublic}, nil)
	require.NoError(t, p.LoadCountry(context.Background(), model.CountryEnglandWales))
	_, err := p.Add(entry("2025-05-05", "2025-05-06", "Long weekend"))
	require.NoError(t, err)

	year, days := p.Calendar(holiday.ViewState{})
	assert.Equal(t, 2025, year)
	require.Len(t, days, 365)

	byDate := make(map[string]holiday.Classification, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}
	assert.Equal(t, holiday.DisplayPublicPersonal, byDate["2025-05-05"].Category)
	assert.Equal(t, holiday.DisplayPersonal, byDate["2025-05-06"].Category)

	_, counts := p.Legend(holiday.ViewState{})
	assert.Equal(t, 2, counts.Public)
	assert.Equal(t, 1, counts.Personal)

	_, filtered := p.Calendar(holiday.ViewState{Query: "not weekend"})
	for _, d := range filtered {
		if d.Date == "2025-05-06" {
			assert.Equal(t, holiday.DisplayNone, d.Category)
		}
	}

	_, events := p.Events(holiday.ViewState{Year: 2025})
	assert.NotEmpty(t, events)
}

type fakeFetcher struct {
	results []ics.FetchResult
	errs    []error
}

func (f *fakeFetcher) FetchAll(context.Context, []ics.Source) ([]ics.FetchResult, []error) {
	return f.results, f.errs
}

var errUnreachable = errors.New("sub-2: unreachable")

func TestRefresher_Run(t *testing.T) {
	pub := &fakePublic{holidays: englandPublic}
	p := newPlanner(t, pub, nil)

	subs := []ics.Source{{ID: "sub-1", URL: "https://school.example/a.ics"}, {ID: "sub-2", URL: "https://school.example/b.ics"}}
	f := &fakeFetcher{
		results: []ics.FetchResult{{Source: subs[0], Body: icsBody(halfTermEvent)}},
		errs:    []error{errUnreachable},
	}
	r := planner.NewRefresher(p, f, subs)
	ran := 0
	r.AfterRun = func() { ran++ }

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub-2")
	assert.ErrorIs(t, err, errUnreachable)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, pub.Calls())
	assert.Len(t, p.State().SchoolHolidays, 1)

	f.errs = nil
	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, p.State().SchoolHolidays, 1, "second run merges nothing new")
}

func TestRefresher_ScheduleRejectsBadSpec(t *testing.T) {
	r := planner.NewRefresher(newPlanner(t, &fakePublic{}, nil), nil, nil)
	_, err := r.Schedule(context.Background(), "not a cron spec")
	assert.Error(t, err)

	c, err := r.Schedule(context.Background(), "0 */6 * * *")
	require.NoError(t, err)
	c.Stop()
}
