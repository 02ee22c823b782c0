package holiday

import (
	"sort"

	"holidaycal/internal/model"
)

// Sort orders entries by start date in place. The sort is stable, so entries
// sharing a start date keep their relative order.
func Sort(hs []model.SchoolHoliday) {
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].StartDate < hs[j].StartDate
	})
}

// Merge appends every incoming entry whose (start, end, term) triple is not
// already present in the running set, then sorts by start date. existing is
// never modified.
func Merge(existing, incoming []model.SchoolHoliday) []model.SchoolHoliday {
	out, _ := MergeCount(existing, incoming)
	return out
}

// MergeCount is Merge that also reports how many incoming entries were added.
// Entries without an ID get a fresh one.
func MergeCount(existing, incoming []model.SchoolHoliday) ([]model.SchoolHoliday, int) {
	out := make([]model.SchoolHoliday, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	added := 0
	for _, h := range incoming {
		if containsTriple(out, h) {
			continue
		}
		if h.ID == "" {
			h.ID = model.NewID()
		}
		out = append(out, h)
		added++
	}

	Sort(out)
	return out, added
}

func containsTriple(hs []model.SchoolHoliday, h model.SchoolHoliday) bool {
	for _, e := range hs {
		if e.SameTriple(h) {
			return true
		}
	}
	return false
}

// Remove returns existing without the entry identified by id. Entries with
// identical fields but another id are kept.
func Remove(existing []model.SchoolHoliday, id string) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, 0, len(existing))
	for _, h := range existing {
		if id != "" && h.ID == id {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Find returns the entry identified by id.
func Find(hs []model.SchoolHoliday, id string) (model.SchoolHoliday, bool) {
	for _, h := range hs {
		if id != "" && h.ID == id {
			return h, true
		}
	}
	return model.SchoolHoliday{}, false
}

// Update replaces the entry identified by id with next: the old entry is
// removed and next is merged back in. next keeps id when it carries none.
// If next duplicates another entry's triple it is dropped like any merge.
func Update(existing []model.SchoolHoliday, id string, next model.SchoolHoliday) []model.SchoolHoliday {
	if next.ID == "" {
		next.ID = id
	}
	return Merge(Remove(existing, id), []model.SchoolHoliday{next})
}

// AssignIDs returns a copy of hs where every entry without an ID gets one.
func AssignIDs(hs []model.SchoolHoliday) []model.SchoolHoliday {
	out := make([]model.SchoolHoliday, len(hs))
	for i, h := range hs {
		if h.ID == "" {
			h.ID = model.NewID()
		}
		out[i] = h
	}
	return out
}
