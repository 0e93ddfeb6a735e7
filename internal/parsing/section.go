package parsing

import (
	"regexp"
	"strings"
)

var (
	totalLine        = regexp.MustCompile(`(?i)^TOTAL(\b|\s*[:€]|\s+(\d+|\d{1,3}(\.\d{3})*,\d{2}))`)
	sectionHeader    = regexp.MustCompile(`(?i)^(TOTAL|ENTREGA|IMP\.|IVA|BASE IMPONIBLE|CUOTA)\b`)
	qtyDescPriceRow  = regexp.MustCompile(`^\s*\d+\s+.+\s+\d+,\d{2}(?:\s+\d+,\d{2})?\s*$`)
	lettersOnlyRow   = regexp.MustCompile(`^\D{2,}$`)
	qtyDescRow       = regexp.MustCompile(`^\s*\d+\s+\D+`)
	weightPricesNext = regexp.MustCompile(`(?i)\b(kg|g|l)\b.*\d+,\d{2}.*\d+,\d{2}`)
	amountSuffixRow  = regexp.MustCompile(`(?i)^[A-ZÁÉÍÓÚÑ].*\d{1,3}(?:\.\d{3})*,\d{2}\s*[A-Z]?\s*$`)
	discountMarker   = regexp.MustCompile(`(?i)\bDESC(?:UENTO)?\.?`)
	promoLidlPlus    = regexp.MustCompile(`(?i)\bPROMO\s+LIDL\s+PLUS\b`)
)

// isTotalLine reports whether a line is the receipt's TOTAL marker, the
// exclusive end of the products section.
func isTotalLine(s string) bool {
	return totalLine.MatchString(strings.TrimSpace(s))
}

// isDiscountRow reports whether a line carries a discount marker.
func isDiscountRow(s string) bool {
	return discountMarker.MatchString(s) || promoLidlPlus.MatchString(s)
}

// looksLikeProductRow applies the fixed disjunction of shape tests that
// identifies a plausible first product row. next is the following
// non-blank line, used for two-line weighted products.
func looksLikeProductRow(row, next string) bool {
	if sectionHeader.MatchString(row) {
		return false
	}
	switch {
	case qtyDescPriceRow.MatchString(row):
		return true
	case lettersOnlyRow.MatchString(row) && weightPricesNext.MatchString(next):
		return true
	case qtyDescRow.MatchString(row) && weightPricesNext.MatchString(next):
		return true
	case qtyDescRow.MatchString(row) && lastAmountToken(next) != "":
		return true
	case amountSuffixRow.MatchString(row):
		return true
	case discountMarker.MatchString(row) && strictAmountToken.MatchString(row):
		return true
	}
	return false
}

// FilterSection trims a normalized line sequence to the region believed
// to contain product rows: everything from the first line that looks
// like a product up to (excluding) the first TOTAL marker. When no
// product-shaped line is found the whole pre-TOTAL input is returned so
// the parser can still attempt extraction.
func FilterSection(lines []string) []string {
	normalized := make([]string, len(lines))
	for i, s := range lines {
		normalized[i] = NormalizeLine(strings.TrimSpace(s))
	}

	end := len(normalized)
	for i, s := range normalized {
		if s == "" {
			continue
		}
		if isTotalLine(s) {
			end = i
			break
		}
	}

	start := -1
	for i := 0; i < end; i++ {
		s := normalized[i]
		if s == "" {
			continue
		}
		_, next := nextNonEmpty(normalized, i)
		if looksLikeProductRow(s, next) {
			start = i
			break
		}
	}

	var section []string
	if start >= 0 {
		section = normalized[start:end]
	} else {
		section = normalized[:end]
	}
	out := make([]string, 0, len(section))
	for _, s := range section {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
