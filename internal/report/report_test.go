package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holidaycal/internal/model"
	"holidaycal/internal/report"
)

func fixtures() ([]model.Holiday, []model.SchoolHoliday) {
	public := []model.Holiday{
		{Date: "2025-12-25", Title: "Christmas Day"},
		{Date: "2026-01-01", Title: "New Year’s Day"},
		{Date: "2026-04-03", Title: "Good Friday"},
	}
	school := []model.SchoolHoliday{
		{StartDate: "2025-12-20", EndDate: "2026-01-04", Term: "Christmas Break", Type: model.TypeSchool},
		{StartDate: "2026-04-03", EndDate: "2026-04-03", Term: "Party", IsManual: true, Type: model.TypeUser},
		{StartDate: "2026-03-05", EndDate: "2026-03-05", Term: "INSET day", IsManual: true, Type: model.TypeOtherSchool},
		{StartDate: "2027-02-01", EndDate: "2027-02-05", Term: "Later", IsManual: true},
	}
	return public, school
}

func TestEventsList(t *testing.T) {
	public, school := fixtures()
	got := report.EventsList(2026, public, school)

	require.Len(t, got, 5)
	assert.Equal(t, report.Event{Date: "2025-12-20", EndDate: "2026-01-04", Title: "Christmas Break", Kind: report.KindSchoolStandard}, got[0])
	assert.Equal(t, "New Year’s Day", got[1].Title)
	assert.Equal(t, report.KindSchoolManual, got[2].Kind)
	assert.Equal(t, report.KindPublic, got[3].Kind, "public first on a shared date")
	assert.Equal(t, report.KindUser, got[4].Kind)
}

func TestWriteCSV(t *testing.T) {
	public, school := fixtures()

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, report.EventsList(2026, public, school)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "date,end_date,title,kind", lines[0])
	assert.Equal(t, "2026-04-03,,Good Friday,public", lines[4])
}
