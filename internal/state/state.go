// Package state reads and writes the flat JSON document used to save and
// restore a planner session: {year, country, postcode, schoolHolidays}.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"holidaycal/internal/holiday"
	appLog "holidaycal/internal/log"
	"holidaycal/internal/model"
)

// State is the persisted session.
type State struct {
	Year           int                   `json:"year"`
	Country        model.Country         `json:"country"`
	Postcode       string                `json:"postcode"`
	SchoolHolidays []model.SchoolHoliday `json:"schoolHolidays"`
}

// Patch holds the recognized fields found in a document. Nil fields were
// absent or had an unusable type and must be left untouched.
type Patch struct {
	Year           *int
	Country        *model.Country
	Postcode       *string
	SchoolHolidays []model.SchoolHoliday
	HasHolidays    bool
}

// Empty reports whether the document carried no recognized field.
func (p Patch) Empty() bool {
	return p.Year == nil && p.Country == nil && p.Postcode == nil && !p.HasHolidays
}

// Apply copies every present field onto s independently.
func (p Patch) Apply(s *State) {
	if p.Year != nil {
		s.Year = *p.Year
	}
	if p.Country != nil {
		s.Country = *p.Country
	}
	if p.Postcode != nil {
		s.Postcode = *p.Postcode
	}
	if p.HasHolidays {
		s.SchoolHolidays = p.SchoolHolidays
	}
}

// Years outside this range cannot be written as four-digit ISO dates.
const (
	MinYear = 1
	MaxYear = 9999
)

// Decode parses a saved document. Malformed JSON fails as a whole, before
// any field is considered. Unknown keys are ignored, and a recognized key
// with the wrong shape is skipped rather than failing the load.
func Decode(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("state: invalid document: %w", err)
	}

	var p Patch

	if v, ok := raw["year"]; ok {
		var year int
		if err := json.Unmarshal(v, &year); err == nil && year >= MinYear && year <= MaxYear {
			p.Year = &year
		} else {
			appLog.Debug("state: ignoring year", "value", string(v))
		}
	}

	if v, ok := raw["country"]; ok {
		var c model.Country
		if err := json.Unmarshal(v, &c); err == nil && c.Valid() {
			p.Country = &c
		} else {
			appLog.Debug("state: ignoring country", "value", string(v))
		}
	}

	if v, ok := raw["postcode"]; ok {
		var pc string
		if err := json.Unmarshal(v, &pc); err == nil {
			p.Postcode = &pc
		}
	}

	if v, ok := raw["schoolHolidays"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err == nil {
			p.SchoolHolidays = decodeHolidays(items)
			p.HasHolidays = true
		} else {
			appLog.Debug("state: ignoring schoolHolidays, not an array")
		}
	}

	return p, nil
}

func decodeHolidays(items []json.RawMessage) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, 0, len(items))
	for i, item := range items {
		var h model.SchoolHoliday
		if err := json.Unmarshal(item, &h); err != nil {
			appLog.Debug("state: skipping malformed holiday", "index", i)
			continue
		}
		if err := h.Validate(); err != nil {
			appLog.Debug("state: skipping invalid holiday", "index", i, "reason", err.Error())
			continue
		}
		out = append(out, h)
	}
	return NormalizeAll(out)
}

// Normalize resolves legacy records once, at ingestion: a manual entry with
// no type is personal, a standard entry with no type is school.
func Normalize(h model.SchoolHoliday) model.SchoolHoliday {
	if h.Type == model.TypeUnset {
		if h.IsManual {
			h.Type = model.TypeUser
		} else {
			h.Type = model.TypeSchool
		}
	}
	return h
}

// NormalizeAll normalizes every entry, gives each a unique ID and sorts the
// result by start date.
func NormalizeAll(hs []model.SchoolHoliday) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, 0, len(hs))
	seen := make(map[string]bool, len(hs))
	for _, h := range hs {
		h = Normalize(h)
		if h.ID == "" || seen[h.ID] {
			h.ID = model.NewID()
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	holiday.Sort(out)
	return out
}

// Read decodes a document from r.
func Read(r io.Reader) (Patch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Patch{}, err
	}
	return Decode(data)
}

// Encode renders s as indented JSON.
func Encode(s State) ([]byte, error) {
	if s.SchoolHolidays == nil {
		s.SchoolHolidays = []model.SchoolHoliday{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// FileName is the suggested download name for a saved session.
func FileName(year int) string {
	return fmt.Sprintf("calendar-config-%d.json", year)
}

// LoadFile reads and decodes the document at path.
func LoadFile(path string) (Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Patch{}, err
	}
	defer f.Close()
	return Read(f)
}

// SaveFile writes s to path atomically via a temp file and rename.
func SaveFile(path string, s State) error {
	if path == "" {
		return errors.New("state path is empty")
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".holidaycal-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
