package parsing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	minusVariants    = regexp.MustCompile(`[\x{2212}\x{2013}\x{2014}]`) // −, –, —
	multiplySign     = regexp.MustCompile(`[\x{00D7}]`)                 // ×
	digitLetterDigit = regexp.MustCompile(`(\d)[oO](\d)`)
	decimalMisreadS  = regexp.MustCompile(`,(\d)[sS]\b`)
	decimalMisreadO  = regexp.MustCompile(`,(\d)[oO]\b`)
	currencySpacing  = regexp.MustCompile(`\s*[€\x{0080}]\s*`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)

	// amountToken matches a decimal-currency token: dot as thousands
	// separator, comma as decimal separator, one or two decimal digits.
	amountToken = regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})*,\d{1,2}`)

	// strictAmountToken requires exactly two decimal digits, the shape a
	// printed line amount always has.
	strictAmountToken = regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})*,\d{2}`)
)

// NormalizeLine cleans a single raw text line of common OCR artifacts.
// The rules are applied in a fixed order and the function is idempotent:
// normalizing an already-normalized line is a no-op.
func NormalizeLine(s string) string {
	s = minusVariants.ReplaceAllString(s, "-")
	s = multiplySign.ReplaceAllString(s, "x")
	// OCR reads a zero between digits as the letter o ("1o2" -> "102").
	// The match consumes its trailing digit, so adjacent misreads like
	// "1o2o3" need repeated passes to converge.
	for {
		repaired := digitLetterDigit.ReplaceAllString(s, "${1}0${2}")
		if repaired == s {
			break
		}
		s = repaired
	}
	// A trailing 5 or 0 in the decimal part gets misread as S or O.
	s = decimalMisreadS.ReplaceAllString(s, ",${1}5")
	s = decimalMisreadO.ReplaceAllString(s, ",${1}0")
	s = currencySpacing.ReplaceAllString(s, " €")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeAmountToken repairs a matched amount token so ParseAmount
// accepts it: minus-sign variants become ASCII and a single decimal
// digit is padded to two ("1,5" -> "1,50").
func NormalizeAmountToken(tok string) string {
	tok = minusVariants.ReplaceAllString(tok, "-")
	if len(tok) >= 2 && tok[len(tok)-2] == ',' {
		tok += "0"
	}
	return tok
}

// ParseAmount converts a decimal-currency string (comma decimal
// separator, optional dot thousands separators, optional € sign) to a
// float. It returns NaN when the string does not contain a number.
func ParseAmount(s string) float64 {
	s = minusVariants.ReplaceAllString(s, "-")
	s = strings.NewReplacer(" ", "", "\t", "", "€", "", "", "", ".", "").Replace(s)
	s = strings.Replace(s, ",", ".", 1)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

// FormatAmount renders a number in the receipt convention: comma as
// decimal separator, dot as thousands separator, two decimals.
// ParseAmount(FormatAmount(n)) round-trips any two-decimal value.
func FormatAmount(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "0,00"
	}
	neg := n < 0
	cents := int64(math.Round(math.Abs(n) * 100))
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}

// lastAmountToken returns the normalized last decimal-currency token of
// a line, provided no further digits follow it. Empty when the line
// carries no trailing amount.
func lastAmountToken(s string) string {
	s = NormalizeLine(s)
	matches := amountToken.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return ""
	}
	last := matches[len(matches)-1]
	rest := s[last[1]:]
	// The token is only trusted as the line amount when nothing
	// numeric comes after it.
	for _, r := range rest {
		if r >= '0' && r <= '9' {
			return ""
		}
	}
	return NormalizeAmountToken(s[last[0]:last[1]])
}

// round2 rounds to two decimals, the resolution of every derived
// monetary field.
func round2(n float64) float64 {
	return math.Round(n*100) / 100
}

// nextNonEmpty returns the index and text of the first non-blank line
// after position i, or (-1, "") when none remains.
func nextNonEmpty(lines []string, i int) (int, string) {
	for j := i + 1; j < len(lines); j++ {
		if s := strings.TrimSpace(lines[j]); s != "" {
			return j, s
		}
	}
	return -1, ""
}
