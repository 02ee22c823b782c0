package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holidaycal/internal/dates"
	"holidaycal/internal/model"
)

func TestNewSchoolHoliday(t *testing.T) {
	t.Run("Success: trims and assigns id", func(t *testing.T) {
		h, err := model.NewSchoolHoliday(" 2026-02-16", "2026-02-20 ", "  Half Term ", true, model.TypeUser)
		require.NoError(t, err)
		assert.Equal(t, "2026-02-16", h.StartDate)
		assert.Equal(t, "2026-02-20", h.EndDate)
		assert.Equal(t, "Half Term", h.Term)
		assert.NotEmpty(t, h.ID)
	})

	t.Run("Error: reversed range", func(t *testing.T) {
		_, err := model.NewSchoolHoliday("2026-02-20", "2026-02-16", "x", true, model.TypeUser)
		assert.ErrorIs(t, err, model.ErrInvalidRange)
	})

	t.Run("Error: bad date", func(t *testing.T) {
		_, err := model.NewSchoolHoliday("2026-02-30", "2026-03-01", "x", true, model.TypeUser)
		assert.ErrorIs(t, err, dates.ErrInvalidDate)
	})

	t.Run("Error: empty term", func(t *testing.T) {
		_, err := model.NewSchoolHoliday("2026-02-16", "2026-02-16", "   ", true, model.TypeUser)
		assert.ErrorIs(t, err, model.ErrTermEmpty)
	})

	t.Run("Ids differ for identical fields", func(t *testing.T) {
		a, _ := model.NewSchoolHoliday("2026-02-16", "2026-02-16", "x", true, model.TypeUser)
		b, _ := model.NewSchoolHoliday("2026-02-16", "2026-02-16", "x", true, model.TypeUser)
		assert.NotEqual(t, a.ID, b.ID)
		assert.True(t, a.SameTriple(b))
	})
}

func TestSchoolHoliday_Category(t *testing.T) {
	tests := []struct {
		name     string
		isManual bool
		typ      model.HolidayType
		want     model.Category
	}{
		{"standard table entry", false, model.TypeSchool, model.CategorySchoolStandard},
		{"standard ignores type", false, model.TypeUser, model.CategorySchoolStandard},
		{"manual school", true, model.TypeSchool, model.CategorySchoolManual},
		{"imported other school", true, model.TypeOtherSchool, model.CategorySchoolManual},
		{"explicit user", true, model.TypeUser, model.CategoryPersonal},
		{"legacy without type stays personal", true, model.TypeUnset, model.CategoryPersonal},
		{"event is personal", true, model.TypeEvent, model.CategoryPersonal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := model.SchoolHoliday{StartDate: "2026-01-01", EndDate: "2026-01-01", Term: "x", IsManual: tt.isManual, Type: tt.typ}
			assert.Equal(t, tt.want, h.Category())
		})
	}
}

func TestCountry(t *testing.T) {
	assert.True(t, model.CountryScotland.Valid())
	assert.False(t, model.Country("wales").Valid())
	assert.Equal(t, "England & Wales", model.CountryEnglandWales.DisplayName())
	assert.Equal(t, "UK", model.Country("").DisplayName())
}
