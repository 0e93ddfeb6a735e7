package parsing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultLookback is how many section rows above a discount row are
	// searched for the item the discount belongs to.
	DefaultLookback = 4
	// DefaultGuardRatio rejects a discount larger than this multiple of
	// the target item's current amount.
	DefaultGuardRatio = 1.05
)

var percentToken = regexp.MustCompile(`(\d{1,2}(?:[.,]\d+)?)\s*%`)

// Attacher fuses discount rows with the items they reduce. Receipts
// print a discount either combined on one row with the base price, or
// on its own row shortly after the product it applies to.
type Attacher struct {
	Lookback   int
	GuardRatio float64
}

// NewAttacher returns an Attacher with the default window and guard.
func NewAttacher() *Attacher {
	return &Attacher{Lookback: DefaultLookback, GuardRatio: DefaultGuardRatio}
}

// SupportsDiscounts reports whether the store's receipt format prints
// retroactive discount rows worth attaching.
func SupportsDiscounts(store string) bool {
	return strings.EqualFold(store, StoreLidl)
}

func discountLabel(row string) string {
	if promoLidlPlus.MatchString(row) {
		return "Promo Lidl Plus"
	}
	return "Descuento"
}

// parsePercent extracts a "NN%" token as a fraction-of-hundred value,
// or NaN when the row carries none.
func parsePercent(row string) float64 {
	m := percentToken.FindStringSubmatch(row)
	if m == nil {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || n <= 0 || n > 99 {
		return math.NaN()
	}
	return n
}

// extractDiscountAmount pulls the discount value from a row: the last
// decimal-currency token, forced negative. Rows mentioning a total are
// never discounts. Returns NaN when no usable token exists.
func extractDiscountAmount(row string) float64 {
	if containsTotal.MatchString(row) {
		return math.NaN()
	}
	tok := lastAmountToken(row)
	if tok == "" {
		return math.NaN()
	}
	n := ParseAmount(tok)
	if !isFinite(n) {
		return math.NaN()
	}
	if n > 0 && !strings.Contains(tok, "-") {
		n = -n
	}
	return n
}

// applyTo applies a discount amount to an item in place. The amount is
// forced negative; the application is rejected when it is negligible,
// exceeds the guard ratio of the item's current amount, or would push
// the item meaningfully below zero. On first application the item's
// pre-discount amount is recorded; repeat discounts accumulate.
func (a *Attacher) applyTo(it *Item, discount float64, label string) bool {
	if !isFinite(discount) || math.Abs(discount) < 0.001 {
		return false
	}
	if discount > 0 {
		discount = -discount
	}
	current := it.Amount
	if math.Abs(discount) > math.Abs(current)*a.GuardRatio {
		return false
	}
	next := round2(current + discount)
	if next < -0.01 {
		return false
	}
	base := current
	if it.Discounted() {
		base = it.BaseAmount
		if base == 0 {
			base = current + it.DiscountAmount
		}
	}
	it.BaseAmount = round2(base)
	it.DiscountAmount = round2(it.DiscountAmount + math.Abs(discount))
	if label != "" && !containsLabel(it.DiscountLabels, label) {
		it.DiscountLabels = append(it.DiscountLabels, label)
	}
	it.Amount = next
	if it.Quantity > 0 {
		it.UnitPrice = round2(it.Amount / it.Quantity)
	}
	return true
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// attachRecent walks items from most recent backwards and applies the
// discount to the first item inside the lookback window. Promo rows
// (immediate-only) may only hit the item directly above. When the row
// carries no explicit amount a percentage token is used against the
// candidate's current amount; a guard-breaking explicit amount also
// falls back to the percentage when one is present.
func (a *Attacher) attachRecent(items []*Item, amount float64, lineIndex int, row string, immediateOnly bool) bool {
	if len(items) == 0 {
		return false
	}
	pct := parsePercent(row)
	label := discountLabel(row)
	for k := len(items) - 1; k >= 0; k-- {
		if immediateOnly && k != len(items)-1 {
			break
		}
		it := items[k]
		if !immediateOnly && lineIndex-it.LineIndex > a.Lookback {
			break
		}
		discount := amount
		if !isFinite(discount) && isFinite(pct) {
			discount = -round2(it.Amount * pct / 100)
		}
		if !isFinite(discount) {
			return false
		}
		if discount > 0 {
			discount = -discount
		}
		if math.Abs(discount) > math.Abs(it.Amount)*a.GuardRatio && isFinite(pct) {
			discount = -round2(it.Amount * pct / 100)
		}
		return a.applyTo(it, discount, label)
	}
	return false
}

// fuseCombinedRow handles a single row that carries both the base price
// and the discount ("CAFE 3,49 -0,70"): it emits the item directly with
// the discount already applied. Returns false when the row is not of
// that shape, leaving it for the regular cascade.
func (a *Attacher) fuseCombinedRow(items *[]*Item, row string, lineIndex int) bool {
	if !isDiscountRow(row) || containsTotal.MatchString(row) {
		return false
	}
	prices := strictAmountToken.FindAllString(row, -1)
	if len(prices) < 2 {
		return false
	}
	discountTok := NormalizeAmountToken(prices[len(prices)-1])
	discount := ParseAmount(discountTok)
	if !isFinite(discount) {
		return false
	}
	if discount > 0 && !strings.Contains(discountTok, "-") {
		discount = -discount
	}

	// The largest positive token is the pre-discount base.
	baseTok := ""
	baseVal := math.NaN()
	for _, tok := range prices[:len(prices)-1] {
		if v := ParseAmount(NormalizeAmountToken(tok)); isFinite(v) && v > 0 && (baseTok == "" || v > baseVal) {
			baseTok, baseVal = tok, v
		}
	}
	if baseTok == "" {
		baseTok = prices[0]
		baseVal = ParseAmount(NormalizeAmountToken(baseTok))
	}
	if !isFinite(baseVal) || baseVal <= 0 {
		return false
	}

	pct := parsePercent(row)
	if math.Abs(discount) > baseVal*a.GuardRatio {
		if !isFinite(pct) {
			return false
		}
		discount = -round2(baseVal * pct / 100)
		if math.Abs(discount) > baseVal*a.GuardRatio {
			return false
		}
	}

	cut := strings.Index(row, baseTok)
	if cut == -1 {
		cut = strings.LastIndex(row, baseTok)
	}
	if cut <= 0 {
		return false
	}
	desc := strings.TrimSpace(row[:cut])
	qty := 1.0
	if m := leadQty.FindStringSubmatch(desc); m != nil {
		qty = parseQty(m[1])
		desc = strings.TrimSpace(desc[len(m[0]):])
	}
	if len([]rune(desc)) < 2 || !isFinite(qty) || qty <= 0 {
		return false
	}

	amount := round2(baseVal + discount)
	it := push(items, qty, desc, math.NaN(), amount, lineIndex)
	if it == nil {
		return false
	}
	if math.Abs(discount) > 0.001 {
		it.BaseAmount = round2(baseVal)
		it.DiscountAmount = round2(math.Abs(discount))
		it.DiscountLabels = []string{discountLabel(row)}
	}
	return true
}
