package ticket

import "math"

// PercentTolerance is the slack allowed on an allocation's percentage
// sum before it stops counting as complete. Floating rounding of split
// percentages makes an exact-100 check too strict.
const PercentTolerance = 0.2

// AllocationEntry assigns a percentage of one item's amount to a
// category.
type AllocationEntry struct {
	CategoryID string  `json:"category_id"`
	Percent    float64 `json:"percent"`
}

// Allocation is the ordered set of category shares for one item key.
type Allocation []AllocationEntry

// Total returns the percentage sum of the allocation.
func (a Allocation) Total() float64 {
	var sum float64
	for _, e := range a {
		sum += e.Percent
	}
	return sum
}

// Complete reports whether the allocation fully covers its item.
func (a Allocation) Complete() bool {
	if len(a) == 0 {
		return false
	}
	return math.Abs(a.Total()-100) <= PercentTolerance
}

// Primary returns the entry with the largest share, or a zero entry
// when the allocation is empty.
func (a Allocation) Primary() AllocationEntry {
	var best AllocationEntry
	for _, e := range a {
		if e.Percent > best.Percent {
			best = e
		}
	}
	return best
}

// normalizeAllocation cleans a raw entry list: entries referencing
// unknown categories or carrying non-positive percentages are dropped,
// percentages are clamped to 100, duplicate categories are summed, and
// the result is ordered by category-list position with each share
// rounded to two decimals. An empty result means "no allocation".
func normalizeAllocation(entries []AllocationEntry, categories []*Category) Allocation {
	byID := make(map[string]float64, len(entries))
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, e := range entries {
		if e.CategoryID == "" || !known[e.CategoryID] {
			continue
		}
		pct := e.Percent
		if math.IsNaN(pct) || math.IsInf(pct, 0) || pct <= 0 {
			continue
		}
		if pct > 100 {
			pct = 100
		}
		byID[e.CategoryID] += pct
	}
	var out Allocation
	for _, c := range categories {
		if pct := byID[c.ID]; pct > 0.001 {
			out = append(out, AllocationEntry{CategoryID: c.ID, Percent: round2(pct)})
		}
	}
	return out
}

// rescaleAllocation scales the entries proportionally so they sum to
// 100 again, used after a category deletion leaves a partial split.
func rescaleAllocation(a Allocation) []AllocationEntry {
	total := a.Total()
	if total <= 0 {
		return nil
	}
	out := make([]AllocationEntry, 0, len(a))
	for _, e := range a {
		out = append(out, AllocationEntry{CategoryID: e.CategoryID, Percent: e.Percent / total * 100})
	}
	return out
}
