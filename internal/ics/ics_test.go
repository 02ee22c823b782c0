package ics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holidaycal/internal/ics"
	"holidaycal/internal/model"
)

func calendar(events ...string) string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//Test//EN"}
	for _, e := range events {
		lines = append(lines, strings.Split(e, "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n"
}

func vevent(props ...string) string {
	return strings.Join(append(append([]string{"BEGIN:VEVENT"}, props...), "END:VEVENT"), "\n")
}

var window = ics.WindowForYears(2025, 2027)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"webcal://example.com/cal.ics", "https://example.com/cal.ics"},
		{"https://outlook.office365.com/owa/calendar/abc/calendar.html", "https://outlook.office365.com/owa/calendar/abc/calendar.ics"},
		{"https://example.com/page.html", "https://example.com/page.html"},
		{"  https://example.com/a.ics ", "https://example.com/a.ics"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ics.NormalizeURL(tt.in))
	}
}

func TestParseICS(t *testing.T) {
	body := calendar(
		vevent("UID:a", "SUMMARY:Half Term", "DTSTART;VALUE=DATE:20260216", "DTEND;VALUE=DATE:20260221"),
		vevent("UID:b", "SUMMARY:Parents evening", "DTSTART;TZID=Europe/London:20260305T180000", "DTEND;TZID=Europe/London:20260305T200000"),
		vevent("UID:c", "SUMMARY:Single day", "DTSTART;VALUE=DATE:20260310"),
		vevent("UID:d", "SUMMARY:Week off", "DTSTART;VALUE=DATE:20260601", "DURATION:P1W"),
		vevent("UID:e", "SUMMARY:No start"),
	)

	events, err := ics.ParseICS(ics.Source{ID: "t"}, []byte(body))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "2026-02-16", events[0].StartDate)
	assert.Equal(t, "2026-02-20", events[0].EndDate, "exclusive DTEND becomes inclusive")
	assert.True(t, events[0].AllDay)

	assert.Equal(t, "2026-03-05", events[1].StartDate)
	assert.Equal(t, "2026-03-05", events[1].EndDate, "timed end is kept")
	assert.False(t, events[1].AllDay)

	assert.Equal(t, "2026-03-10", events[2].EndDate)
	assert.Equal(t, "2026-06-07", events[3].EndDate)
}

func TestParseICS_NotACalendar(t *testing.T) {
	_, err := ics.ParseICS(ics.Source{}, []byte("<html>blocked</html>"))
	assert.ErrorIs(t, err, ics.ErrNotCalendar)

	_, err = ics.ParseICS(ics.Source{}, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	body := calendar(
		vevent("UID:club", "SUMMARY:Club", "DTSTART;VALUE=DATE:20260105", "DTEND;VALUE=DATE:20260107",
			"RRULE:FREQ=WEEKLY;COUNT=4", "EXDATE;VALUE=DATE:20260112"),
		vevent("UID:club", "SUMMARY:Club moved", "RECURRENCE-ID;VALUE=DATE:20260119",
			"DTSTART;VALUE=DATE:20260120", "DTEND;VALUE=DATE:20260121"),
		vevent("UID:once", "SUMMARY:Once", "DTSTART;VALUE=DATE:20200101", "DTEND;VALUE=DATE:20200102"),
	)

	events, err := ics.ParseICS(ics.Source{}, []byte(body))
	require.NoError(t, err)

	res, err := ics.ExpandOccurrences(events, window)
	require.NoError(t, err)

	var got [][3]string
	for _, o := range res.Occurrences {
		got = append(got, [3]string{o.StartDate, o.EndDate, o.Summary})
	}
	assert.Equal(t, [][3]string{
		{"2026-01-05", "2026-01-06", "Club"},
		{"2026-01-26", "2026-01-27", "Club"},
		{"2026-01-20", "2026-01-20", "Club moved"},
		{"2020-01-01", "2020-01-01", "Once"},
	}, got)
}

func TestExpandOccurrences_WindowAndCap(t *testing.T) {
	events := []ics.ParsedEvent{{UID: "daily", Summary: "Daily", StartDate: "2026-01-01", EndDate: "2026-01-01", RawRRule: "FREQ=DAILY"}}

	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{RangeStart: "2026-03-01", RangeEnd: "2026-03-31", MaxOccurrencesPerEvent: 10})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 10)
	assert.Equal(t, "2026-03-01", res.Occurrences[0].StartDate)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)

	_, err = ics.ExpandOccurrences(events, ics.ExpandConfig{RangeStart: "2026-03-31", RangeEnd: "2026-03-01"})
	assert.Error(t, err)
}

func TestClassifyAndExclude(t *testing.T) {
	manual, typ := ics.Classify("Spring Half Term")
	assert.False(t, manual)
	assert.Equal(t, model.TypeSchool, typ)

	manual, typ = ics.Classify("Sports Day")
	assert.True(t, manual)
	assert.Equal(t, model.TypeOtherSchool, typ)

	assert.True(t, ics.Excluded("School Re-opens"))
	assert.True(t, ics.Excluded("school opens for pupils"))
	assert.True(t, ics.Excluded("Term REOPEN"))
	assert.False(t, ics.Excluded("Open evening"))
}

func TestImportBody(t *testing.T) {
	existing := []model.SchoolHoliday{{ID: "x", StartDate: "2026-02-16", EndDate: "2026-02-20", Term: "Feb", Type: model.TypeSchool}}
	body := calendar(
		vevent("UID:1", "SUMMARY:February Half Term", "DTSTART;VALUE=DATE:20260216", "DTEND;VALUE=DATE:20260221"),
		vevent("UID:2", "SUMMARY:School re-opens", "DTSTART;VALUE=DATE:20260223", "DTEND;VALUE=DATE:20260224"),
		vevent("UID:3", "SUMMARY:INSET day", "DTSTART;VALUE=DATE:20260305", "DTEND;VALUE=DATE:20260306"),
		vevent("UID:4", "SUMMARY:INSET day again", "DTSTART;VALUE=DATE:20260305", "DTEND;VALUE=DATE:20260306"),
		vevent("UID:5", "SUMMARY:Easter holiday", "DTSTART;VALUE=DATE:20260330", "DTEND;VALUE=DATE:20260411"),
	)

	res := ics.ImportBody(ics.Source{ID: "t"}, []byte(body), existing, window)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "Successfully imported 2 events!", res.Message)
	require.Len(t, res.Holidays, 2)

	assert.Equal(t, "INSET day", res.Holidays[0].Term)
	assert.True(t, res.Holidays[0].IsManual)
	assert.Equal(t, model.TypeOtherSchool, res.Holidays[0].Type)

	assert.Equal(t, "Easter holiday", res.Holidays[1].Term)
	assert.False(t, res.Holidays[1].IsManual)
	assert.Equal(t, "2026-04-10", res.Holidays[1].EndDate)
	assert.NotEmpty(t, res.Holidays[1].ID)
}

func TestImportBody_Invalid(t *testing.T) {
	res := ics.ImportBody(ics.Source{}, []byte("nope"), nil, window)
	assert.False(t, res.Success)
	assert.Zero(t, res.Count)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, res.Holidays)
}

func TestFetcher_ProxyChain(t *testing.T) {
	body := calendar(vevent("UID:1", "SUMMARY:Trip", "DTSTART;VALUE=DATE:20260501"))

	var badHits int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&badHits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bad.Close()

	var gotTarget string
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(body))
	}))
	defer good.Close()

	f := ics.NewFetcher(t.TempDir(), ics.WithProxies([]string{
		bad.URL + "/?{url}",
		good.URL + "/raw?url={url}",
	}))

	res, err := f.FetchOne(context.Background(), ics.Source{ID: "s", URL: "webcal://school.example/cal.ics?x=1&y=2"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&badHits))
	assert.Equal(t, "https://school.example/cal.ics?x=1&y=2", gotTarget)
	assert.False(t, res.FromCache)
	assert.Equal(t, body, string(res.Body))
}

func TestFetcher_DirectAndCacheFallback(t *testing.T) {
	body := calendar(vevent("UID:1", "SUMMARY:Trip", "DTSTART;VALUE=DATE:20260501"))

	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := ics.NewFetcher(t.TempDir(), ics.WithProxies(nil), ics.WithHTTPClient(srv.Client()))
	src := ics.Source{ID: "s", URL: srv.URL + "/cal.ics"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	down.Store(true)
	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
}

func TestImporter_AllProxiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := ics.NewFetcher("", ics.WithProxies([]string{srv.URL + "/a?{url}", srv.URL + "/b?{url}"}))
	res := ics.NewImporter(f).ImportURL(context.Background(), "https://school.example/cal.ics", nil, window)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "all proxies failed")

	res = ics.NewImporter(f).ImportURL(context.Background(), "  ", nil, window)
	assert.False(t, res.Success)
}

func TestExportHoliday(t *testing.T) {
	h := model.SchoolHoliday{ID: "abc", StartDate: "2026-02-16", EndDate: "2026-02-20", Term: "February Half Term", Type: model.TypeSchool}
	out, err := ics.ExportHoliday(h, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "20260214", "weekend extended start")
	assert.Contains(t, out, "20260223", "exclusive end after the Sunday")
	assert.Contains(t, out, "SUMMARY:February Half Term")
	assert.Contains(t, out, "abc@ukholidaycalendar")

	// The export reads back through the import parser as the extended range.
	events, err := ics.ParseICS(ics.Source{}, []byte(out))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2026-02-14", events[0].StartDate)
	assert.Equal(t, "2026-02-22", events[0].EndDate)

	_, err = ics.ExportHoliday(model.SchoolHoliday{StartDate: "2026-02-20", EndDate: "2026-02-16", Term: "x"}, time.Now())
	assert.Error(t, err)
}

func TestLinks(t *testing.T) {
	h := model.SchoolHoliday{StartDate: "2026-02-16", EndDate: "2026-02-20", Term: "Half Term & more", Type: model.TypeSchool}
	links, err := ics.LinksFor(h)
	require.NoError(t, err)

	assert.Contains(t, links.Google, "dates=20260214/20260223")
	assert.Contains(t, links.Google, "text=Half%20Term%20%26%20more")
	assert.Contains(t, links.Google, "details=School%20Holiday")
	assert.True(t, strings.HasPrefix(links.Outlook, "https://outlook.live.com/"))
	assert.Contains(t, links.Outlook, "startdt=2026-02-14&enddt=2026-02-23")
	assert.True(t, strings.HasPrefix(links.Office365, "https://outlook.office.com/"))

	assert.Equal(t, "Half_Term__more.ics", ics.FileName(h))
}
