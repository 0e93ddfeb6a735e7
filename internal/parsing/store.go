package parsing

import (
	"regexp"
	"strings"
)

// Store identifiers. The token controls whether discount-row fusion is
// attempted: retailers print discounts differently and fusing them on
// an unrecognized layout is worse than not fusing at all.
const (
	StoreLidl      = "Lidl"
	StoreMercadona = "Mercadona"
)

var knownStores = []string{StoreLidl, StoreMercadona}

var (
	dateToken = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)
	timeToken = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
)

// Meta holds incidental receipt metadata surfaced alongside the items.
type Meta struct {
	Store string `json:"store,omitempty"`
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
}

// DetectStore classifies which retailer format produced the text by
// keyword match over the lines and the filename. Empty when unknown.
func DetectStore(lines []string, filename string) string {
	txt := strings.ToUpper(strings.Join(lines, "\n") + "\n" + filename)
	for _, store := range knownStores {
		if strings.Contains(txt, strings.ToUpper(store)) {
			return store
		}
	}
	return ""
}

// ExtractMeta pulls the purchase date and time out of the raw text.
func ExtractMeta(lines []string, store string) Meta {
	txt := strings.Join(lines, "\n")
	meta := Meta{Store: store}
	if m := dateToken.FindStringSubmatch(txt); m != nil {
		meta.Date = m[1]
	}
	if m := timeToken.FindStringSubmatch(txt); m != nil {
		meta.Time = m[1]
	}
	return meta
}
