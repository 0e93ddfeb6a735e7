package parsing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Item is one purchased product extracted from the receipt text,
// pre-allocation. LineIndex is the position of the originating row in
// the filtered section, used for retroactive discount attachment.
type Item struct {
	Quantity       float64  `json:"quantity"`
	Description    string   `json:"description"`
	UnitPrice      float64  `json:"unit_price"`
	Amount         float64  `json:"amount"`
	BaseAmount     float64  `json:"base_amount,omitempty"`
	DiscountAmount float64  `json:"discount_amount,omitempty"`
	DiscountLabels []string `json:"discount_labels,omitempty"`
	LineIndex      int      `json:"-"`
}

// Discounted reports whether a discount has been applied to the item.
func (it *Item) Discounted() bool {
	return it.DiscountAmount > 0.004
}

var (
	noiseRow = regexp.MustCompile(`(?i)(\bIVA\b|BASE IMPONIBLE|CUOTA\b|TARJ|MASTERCARD|EFECTIVO|FACTURA|SE ADMITEN DEVOLUCIONES|CAMBIO|ENTREGA|RECIBO|AUTORIZ|IMP\.|DEVOLUCION|DEVOLUCIONES|HORARIO|ATENCION|GRACIAS)`)

	// A weight continuation row: "<qty> kg|g|l x <unit price> ...".
	// Standalone it is noise; it only matters as the second half of a
	// two-line weighted product.
	weightRow      = regexp.MustCompile(`(?i)\b(kg|g|l)\b.*?x\s*-?\d{1,3}(?:\.\d{3})*,\d{2}`)
	weightRowParts = regexp.MustCompile(`(?i)^\s*([\d.,]+)\s*(kg|g|l)\b.*?x\s*(-?\d{1,3}(?:\.\d{3})*,\d{2})`)

	// Two-line weighted product continuation with unit price and line
	// amount: "<qty> kg ... <unit> ... <amount>".
	weightPricesRow = regexp.MustCompile(`(?i)^\s*([\d.,]+)\s*(kg|g|l)\b.*?(\d+,\d{2}).*?(\d+,\d{2})\s*$`)

	qtyDescUnitAmountRow = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+(\d+,\d{2})(?:\s*€)?\s+(\d+,\d{2})(?:\s*€)?.*$`)
	qtyDescAmountRow     = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+(\d+,\d{2})(?:\s*€)?.*$`)
	qtyDescOnlyRow       = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s*$`)
	descAmountRow        = regexp.MustCompile(`(?i)^\s*(.+?)\s+(-?\d{1,3}(?:\.\d{3})*,\d{2})\s*[A-Z]?\s*$`)
	leadQty              = regexp.MustCompile(`^\s*(\d+)\s+`)
	bareAmountRow        = regexp.MustCompile(`^[^a-zA-Z]*-?\d{1,3}(?:\.\d{3})*,\d{1,2}\s*€?\s*$`)
	nonProductHeader     = regexp.MustCompile(`(?i)^(TOTAL|IVA|BASE IMPONIBLE|CUOTA)\b`)
	containsTotal        = regexp.MustCompile(`(?i)total`)
)

// Parser converts a filtered receipt section into line items by running
// an ordered cascade of shape rules over each row, first match wins.
// Discounts is nil when the detected store format does not support
// discount-row fusion.
type Parser struct {
	Discounts *Attacher
}

// parseWeightQty converts a weight-row quantity to kilograms/litres:
// comma decimal separator, grams divided by 1000.
func parseWeightQty(raw, unit string) float64 {
	qty, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return math.NaN()
	}
	if strings.EqualFold(unit, "g") {
		qty /= 1000
	}
	return qty
}

// push validates and appends an item. unit is NaN when the row carried
// no separate unit price; it is then derived from amount and quantity.
// Returns nil when the row must be rejected.
func push(items *[]*Item, quantity float64, desc string, unit, amount float64, lineIndex int) *Item {
	if !isFinite(unit) || unit <= 0 {
		if quantity > 0 {
			unit = amount / quantity
		} else {
			unit = amount
		}
	}
	if !isFinite(quantity) || quantity <= 0 || !isFinite(amount) {
		return nil
	}
	if len([]rune(desc)) < 2 {
		return nil
	}
	it := &Item{
		Quantity:    quantity,
		Description: desc,
		UnitPrice:   round2(unit),
		Amount:      round2(amount),
		LineIndex:   lineIndex,
	}
	*items = append(*items, it)
	return it
}

func isFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// parseQty parses an integer or comma-decimal quantity token.
func parseQty(raw string) float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

// Parse runs the rule cascade over the filtered section and returns the
// ordered item list. Rows matching no rule are skipped; row-level
// failures never abort the remaining lines. Parsing stops at the first
// TOTAL row.
func (p *Parser) Parse(lines []string) []*Item {
	normalized := make([]string, 0, len(lines))
	for _, s := range lines {
		s = NormalizeLine(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}

	var items []*Item
	skip := -1
	for i := 0; i < len(normalized); i++ {
		if i == skip {
			skip = -1
			continue
		}
		row := normalized[i]
		if isTotalLine(row) {
			break
		}
		discountRow := isDiscountRow(row)
		if noiseRow.MatchString(row) && !discountRow {
			continue
		}
		if weightRow.MatchString(row) {
			continue
		}

		if p.Discounts != nil {
			if p.Discounts.fuseCombinedRow(&items, row, i) {
				continue
			}
			if discountRow {
				promo := promoLidlPlus.MatchString(row)
				amount := extractDiscountAmount(row)
				if !isFinite(amount) {
					// Some layouts print the discount amount on
					// its own following line.
					if j, next := nextNonEmpty(normalized, i); j != -1 && bareAmountRow.MatchString(next) {
						amount = extractDiscountAmount(next)
						skip = j
					}
				}
				if p.Discounts.attachRecent(items, amount, i, row, promo) {
					continue
				}
				if promo {
					continue
				}
			}
		}

		// qty description unit-price amount
		if m := qtyDescUnitAmountRow.FindStringSubmatch(row); m != nil {
			push(&items, parseQty(m[1]), m[2], ParseAmount(m[3]), ParseAmount(m[4]), i)
			continue
		}

		// qty description amount
		if m := qtyDescAmountRow.FindStringSubmatch(row); m != nil {
			push(&items, parseQty(m[1]), m[2], math.NaN(), ParseAmount(m[3]), i)
			continue
		}

		// All-letters description row + weight continuation row.
		if lettersOnlyRow.MatchString(row) {
			if j, next := nextNonEmpty(normalized, i); j != -1 {
				if m := weightPricesRow.FindStringSubmatch(next); m != nil {
					push(&items, parseWeightQty(m[1], m[2]), row, ParseAmount(m[3]), ParseAmount(m[4]), i)
					i = j
					continue
				}
			}
		}

		// qty description with no trailing price: fuse with a weight
		// continuation row or a following row whose last token parses
		// as an amount.
		if m := qtyDescOnlyRow.FindStringSubmatch(row); m != nil {
			if j, next := nextNonEmpty(normalized, i); j != -1 {
				if m2 := weightPricesRow.FindStringSubmatch(next); m2 != nil {
					push(&items, parseWeightQty(m2[1], m2[2]), m[2], ParseAmount(m2[3]), ParseAmount(m2[4]), i)
					i = j
					continue
				}
				if tok := lastAmountToken(next); tok != "" {
					push(&items, parseQty(m[1]), m[2], math.NaN(), ParseAmount(tok), i)
					i = j
					continue
				}
			}
		}

		// Bare "description amount [letter suffix]" row, quantity 1.
		if !leadQty.MatchString(row) {
			if m := descAmountRow.FindStringSubmatch(row); m != nil {
				desc := strings.TrimSpace(m[1])
				tok := NormalizeAmountToken(m[2])
				amount := ParseAmount(tok)
				if discountRow && amount > 0 && !strings.Contains(tok, "-") {
					amount = -amount
				}
				if j, next := nextNonEmpty(normalized, i); j != -1 {
					if m2 := weightRowParts.FindStringSubmatch(next); m2 != nil {
						qty := parseWeightQty(m2[1], m2[2])
						if isFinite(qty) && qty > 0 {
							push(&items, qty, desc, ParseAmount(m2[3]), amount, i)
							i = j
							continue
						}
					}
				}
				push(&items, 1, desc, math.NaN(), amount, i)
				continue
			}
		}

		// Fallback: any row with decimal-currency tokens. Last token is
		// the amount, second-to-last (if any) the unit price; the
		// description is the row with the matched tokens stripped.
		if tokens := strictAmountToken.FindAllString(row, -1); len(tokens) > 0 {
			tok := NormalizeAmountToken(tokens[len(tokens)-1])
			amount := ParseAmount(tok)
			if discountRow && amount > 0 && !strings.Contains(tok, "-") {
				amount = -amount
			}
			unit := math.NaN()
			if len(tokens) >= 2 {
				unit = ParseAmount(NormalizeAmountToken(tokens[len(tokens)-2]))
			}
			qty, desc := splitQtyDesc(row, tokens[len(tokens)-1])
			if nonProductHeader.MatchString(desc) {
				continue
			}
			push(&items, qty, desc, unit, amount, i)
			continue
		}
		if tok := lastAmountToken(row); tok != "" {
			amount := ParseAmount(tok)
			if discountRow && amount > 0 && !strings.Contains(tok, "-") {
				amount = -amount
			}
			qty, desc := splitQtyDesc(row, tok)
			if nonProductHeader.MatchString(desc) {
				continue
			}
			push(&items, qty, desc, math.NaN(), amount, i)
			continue
		}
	}
	return items
}

// splitQtyDesc strips an optional leading quantity and the trailing
// amount token from a row, returning the quantity (1 when absent) and
// the remaining description.
func splitQtyDesc(row, amountTok string) (float64, string) {
	qty := 1.0
	start := 0
	if m := leadQty.FindStringSubmatch(row); m != nil {
		qty = parseQty(m[1])
		start = len(m[0])
	}
	cut := strings.LastIndex(row, amountTok)
	var desc string
	if cut >= start {
		desc = strings.TrimSpace(row[start:cut])
	}
	if desc == "" {
		desc = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(row), amountTok))
	}
	return qty, desc
}
