package ticket

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is one spending bucket items get allocated to. Locked
// categories are seed categories: they may be renamed but not treated
// specially otherwise. NoSplit categories cannot take part in
// percentage splits but may hold a direct 100% allocation. Masked
// categories export their total only, without the item list.
type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Locked  bool   `json:"locked,omitempty"`
	NoSplit bool   `json:"no_split,omitempty"`
	Masked  bool   `json:"masked,omitempty"`
}

// MinCategories is the lower bound enforced on deletion: a ledger with
// fewer than two categories cannot express a split.
const MinCategories = 2

var (
	colorHex      = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	slugJunk      = regexp.MustCompile(`[^a-z0-9-]`)
	maxSlugLength = 40
)

// DefaultCategories returns the seed category list used when no
// persisted list exists or the stored blob is unreadable.
func DefaultCategories() []*Category {
	return []*Category{
		{ID: "alberto", Name: "Alberto", Color: "#dc3545", Locked: true},
		{ID: "kike", Name: "Kike", Color: "#0d6efd", Locked: true},
		{ID: "comun", Name: "Común", Color: "#ffc107", Locked: true, NoSplit: true},
	}
}

// Slugify derives a category id from its display name: lowercase,
// accents stripped, whitespace to hyphens, everything else dropped,
// capped at 40 characters.
func Slugify(name string) string {
	s := foldDescription(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = slugJunk.ReplaceAllString(s, "")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	return s
}

// uniqueID disambiguates a proposed id against existing categories by
// appending -2, -3, ... The category being renamed (self, may be nil)
// is excluded from the collision check.
func uniqueID(proposed string, categories []*Category, self *Category) string {
	taken := func(id string) bool {
		for _, c := range categories {
			if c != self && c.ID == id {
				return true
			}
		}
		return false
	}
	if !taken(proposed) {
		return proposed
	}
	for k := 2; ; k++ {
		candidate := fmt.Sprintf("%s-%d", proposed, k)
		if !taken(candidate) {
			return candidate
		}
	}
}

// validateCategory checks the user-editable fields.
func validateCategory(name, color string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("category name is required")
	}
	if !colorHex.MatchString(color) {
		return fmt.Errorf("invalid category color %q", color)
	}
	return nil
}
