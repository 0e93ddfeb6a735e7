package ticket

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/abarrero/ticketsplit/internal/parsing"
)

// ManualOrigIndex sorts manually appended items after every receipt row
// in ticket order.
const ManualOrigIndex = math.MaxInt32

// Item is one ledger row: a parsed receipt line or a manually appended
// correction. Amount is the final charged value, post-discount.
type Item struct {
	Quantity       float64  `json:"quantity"`
	Description    string   `json:"description"`
	UnitPrice      float64  `json:"unit_price"`
	Amount         float64  `json:"amount"`
	BaseAmount     float64  `json:"base_amount,omitempty"`
	DiscountAmount float64  `json:"discount_amount,omitempty"`
	DiscountLabels []string `json:"discount_labels,omitempty"`
	OrigIndex      int      `json:"orig_index"`
	Hidden         bool     `json:"hidden"`
	ManualID       string   `json:"manual_id,omitempty"`
}

// Key identifies an item for allocation purposes. Two rows with the
// same key are interchangeable and share one allocation entry.
type Key struct {
	Quantity    float64 `json:"quantity"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Key returns the item's structural identity.
func (it *Item) Key() Key {
	return Key{
		Quantity:    it.Quantity,
		Description: it.Description,
		UnitPrice:   it.UnitPrice,
		Amount:      it.Amount,
	}
}

// Manual reports whether the item was appended by hand rather than
// parsed from the receipt.
func (it *Item) Manual() bool {
	return it.ManualID != ""
}

// Discounted reports whether a discount has been applied to the item.
func (it *Item) Discounted() bool {
	return it.DiscountAmount > 0.004
}

// EffectiveBase returns the pre-discount amount, deriving it from the
// current amount when it was never recorded.
func (it *Item) EffectiveBase() float64 {
	if it.BaseAmount > 0 {
		return it.BaseAmount
	}
	return round2(it.Amount + it.DiscountAmount)
}

// fromParsed converts a parser item into a ledger row, preserving its
// receipt position for ticket-order sorting and discount metadata.
func fromParsed(p *parsing.Item, origIndex int) *Item {
	return &Item{
		Quantity:       p.Quantity,
		Description:    p.Description,
		UnitPrice:      p.UnitPrice,
		Amount:         p.Amount,
		BaseAmount:     p.BaseAmount,
		DiscountAmount: p.DiscountAmount,
		DiscountLabels: append([]string(nil), p.DiscountLabels...),
		OrigIndex:      origIndex,
	}
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDescription lowercases and strips accents so "PLÁTANO" and
// "platano" group together for price comparison and sorting.
func foldDescription(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(accentStripper, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

func round2(n float64) float64 {
	return math.Round(n*100) / 100
}
