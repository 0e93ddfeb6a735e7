package ticket

import (
	"math"

	"github.com/abarrero/ticketsplit/internal/parsing"
)

// ReconciliationResult compares the ledger's visible total with the
// expected receipt total. Matches is nil while no expected total is
// known; the expected total is reduced by the hidden-items total
// before comparison, since hidden rows still count against the printed
// receipt total.
type ReconciliationResult struct {
	ExpectedTotal    float64 `json:"expected_total"`
	HasExpected      bool    `json:"has_expected"`
	AdjustedExpected float64 `json:"adjusted_expected"`
	CalculatedTotal  float64 `json:"calculated_total"`
	HiddenTotal      float64 `json:"hidden_total"`
	Matches          *bool   `json:"matches"`
	Remaining        float64 `json:"remaining"`
}

// MissingAmount reports whether the ledger falls short of the expected
// total, which is when appending a manual item is permitted.
func (r *ReconciliationResult) MissingAmount() bool {
	return r.Matches != nil && r.Remaining > 0.005
}

// ExcessAmount reports an overcount: existing rows must be corrected,
// manual additions are not permitted.
func (r *ReconciliationResult) ExcessAmount() bool {
	return r.Matches != nil && r.Remaining < -0.005
}

// Reconcile compares item totals against an expected receipt total.
// Visible items sum into the calculated total, hidden items into the
// hidden total.
func Reconcile(items []*Item, expected float64, hasExpected bool) *ReconciliationResult {
	var calculated, hidden float64
	for _, it := range items {
		if it.Hidden {
			hidden += it.Amount
		} else {
			calculated += it.Amount
		}
	}
	calculated = round2(calculated)
	hidden = round2(hidden)

	res := &ReconciliationResult{
		CalculatedTotal: calculated,
		HiddenTotal:     hidden,
	}
	if !hasExpected || math.IsNaN(expected) {
		return res
	}
	adjusted := round2(expected - hidden)
	matches := parsing.NearlyEqual(adjusted, calculated)
	res.ExpectedTotal = round2(expected)
	res.HasExpected = true
	res.AdjustedExpected = adjusted
	res.Matches = &matches
	res.Remaining = round2(adjusted - calculated)
	return res
}
