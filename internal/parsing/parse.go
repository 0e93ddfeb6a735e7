package parsing

import (
	"math"
	"regexp"
	"sort"
)

const maxTotalSuggestions = 3

var filenameTotal = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*,\d{2})`)

// Word boundaries keep a slice of a longer digit run ("123456,78")
// from surfacing as a candidate total.
var suggestionToken = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})*,\d{2}\b`)

// Result is the full outcome of parsing one receipt's text.
type Result struct {
	Items            []*Item   `json:"items"`
	Store            string    `json:"store,omitempty"`
	Meta             Meta      `json:"meta"`
	ExpectedTotal    float64   `json:"expected_total,omitempty"`
	HasExpectedTotal bool      `json:"has_expected_total"`
	TotalSuggestions []float64 `json:"total_suggestions,omitempty"`
}

// Parse runs the whole pipeline over raw receipt lines: store
// detection, metadata extraction, product-section filtering, the item
// cascade with store-dependent discount fusion, expected total from the
// filename, and fallback total suggestions. A non-empty storeHint that
// names a known store takes precedence over detection.
func Parse(lines []string, filename, storeHint string) *Result {
	store := DetectStore(nil, storeHint)
	if store == "" {
		store = DetectStore(lines, filename)
	}
	res := &Result{
		Store: store,
		Meta:  ExtractMeta(lines, store),
	}

	p := &Parser{}
	if SupportsDiscounts(res.Store) {
		p.Discounts = NewAttacher()
	}
	res.Items = p.Parse(FilterSection(lines))

	if total, ok := ParseFilenameTotal(filename); ok {
		res.ExpectedTotal = total
		res.HasExpectedTotal = true
	}
	res.TotalSuggestions = ExtractTotalSuggestions(lines)
	return res
}

// ParseFilenameTotal reads the receipt total embedded in the file name
// ("Lidl 23,45 2024-03-02.pdf" carries 23.45).
func ParseFilenameTotal(filename string) (float64, bool) {
	m := filenameTotal.FindStringSubmatch(filename)
	if m == nil {
		return 0, false
	}
	n := ParseAmount(m[1])
	if !isFinite(n) || n <= 0 {
		return 0, false
	}
	return round2(n), true
}

// ExtractTotalSuggestions collects the distinct positive
// decimal-currency values found anywhere in the text, largest first,
// capped at three. Used to offer candidates when no expected total is
// known.
func ExtractTotalSuggestions(lines []string) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, line := range lines {
		for _, tok := range suggestionToken.FindAllString(NormalizeLine(line), -1) {
			n := ParseAmount(tok)
			if !isFinite(n) || n <= 0 {
				continue
			}
			n = round2(n)
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	if len(out) > maxTotalSuggestions {
		out = out[:maxTotalSuggestions]
	}
	return out
}

// AmountTolerance is the slack allowed when comparing two monetary
// values, one cent of floating rounding.
const AmountTolerance = 0.01

// NearlyEqual reports whether two monetary values agree within
// AmountTolerance.
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= AmountTolerance
}
