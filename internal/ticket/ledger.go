package ticket

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/abarrero/ticketsplit/internal/parsing"
)

// SortMode controls the order items are listed in.
type SortMode string

const (
	// SortAlpha orders by folded description, then amount.
	SortAlpha SortMode = "alpha"
	// SortTicket orders by receipt position, manual items last.
	SortTicket SortMode = "ticket"
)

// PriceRole compares items sharing a description: within such a group
// the cheapest row is "low", the priciest "high", the rest "mid"; when
// every amount agrees the rows are "eq". Singleton groups carry no
// role.
type PriceRole string

const (
	RoleLow   PriceRole = "low"
	RoleHigh  PriceRole = "high"
	RoleMid   PriceRole = "mid"
	RoleEqual PriceRole = "eq"
)

// Ledger owns the mutable state of one loaded receipt: its items,
// manual additions, the category list, and the allocation map. All
// mutators expect the caller to serialize access; the Service wraps a
// Ledger in a mutex.
type Ledger struct {
	categories     []*Category
	activeCategory string

	items  []*Item
	manual []*Item

	allocations map[Key]Allocation

	filename       string
	store          string
	meta           parsing.Meta
	fileTotal      float64
	hasFileTotal   bool
	manualTotal    float64
	hasManualTotal bool
	suggestions    []float64
	sortMode       SortMode
}

// NewLedger creates an empty ledger over a category list. An unknown
// or empty active id falls back to the first category.
func NewLedger(categories []*Category, activeID string) *Ledger {
	l := &Ledger{
		categories:  categories,
		allocations: make(map[Key]Allocation),
		sortMode:    SortAlpha,
	}
	if len(l.categories) == 0 {
		l.categories = DefaultCategories()
	}
	l.activeCategory = l.categories[0].ID
	for _, c := range l.categories {
		if c.ID == activeID {
			l.activeCategory = activeID
			break
		}
	}
	return l
}

// Load replaces the ledger's document state with a freshly parsed
// receipt. Allocations and manual items belong to the previous
// document and are discarded; categories persist.
func (l *Ledger) Load(res *parsing.Result, filename string) {
	l.items = make([]*Item, 0, len(res.Items))
	for i, p := range res.Items {
		l.items = append(l.items, fromParsed(p, i))
	}
	l.manual = nil
	l.allocations = make(map[Key]Allocation)
	l.filename = filename
	l.store = res.Store
	l.meta = res.Meta
	l.fileTotal = res.ExpectedTotal
	l.hasFileTotal = res.HasExpectedTotal
	l.manualTotal = 0
	l.hasManualTotal = false
	l.suggestions = append([]float64(nil), res.TotalSuggestions...)
}

// Items returns every ledger row, receipt items first, manual items
// after, in their stable order.
func (l *Ledger) Items() []*Item {
	out := make([]*Item, 0, len(l.items)+len(l.manual))
	out = append(out, l.items...)
	out = append(out, l.manual...)
	return out
}

// SortedItems returns the rows in the ledger's current sort order.
func (l *Ledger) SortedItems() []*Item {
	out := l.Items()
	if l.sortMode == SortTicket {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].OrigIndex != out[j].OrigIndex {
				return out[i].OrigIndex < out[j].OrigIndex
			}
			return foldDescription(out[i].Description) < foldDescription(out[j].Description)
		})
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := foldDescription(out[i].Description), foldDescription(out[j].Description)
		if di != dj {
			return di < dj
		}
		return out[i].Amount < out[j].Amount
	})
	return out
}

// SortBy switches the listing order.
func (l *Ledger) SortBy(mode SortMode) error {
	if mode != SortAlpha && mode != SortTicket {
		return fmt.Errorf("unknown sort mode %q", mode)
	}
	l.sortMode = mode
	return nil
}

func (l *Ledger) SortMode() SortMode      { return l.sortMode }
func (l *Ledger) Store() string           { return l.store }
func (l *Ledger) Meta() parsing.Meta      { return l.meta }
func (l *Ledger) Filename() string        { return l.filename }
func (l *Ledger) Suggestions() []float64  { return append([]float64(nil), l.suggestions...) }
func (l *Ledger) Categories() []*Category { return l.categories }
func (l *Ledger) ActiveCategory() string  { return l.activeCategory }

// expected returns the total to reconcile against: a total parsed from
// the filename always wins over a manually entered one.
func (l *Ledger) expected() (float64, bool) {
	if l.hasFileTotal {
		return l.fileTotal, true
	}
	if l.hasManualTotal {
		return l.manualTotal, true
	}
	return 0, false
}

// SetManualTotal records a user-entered expected total, used when the
// filename carries none.
func (l *Ledger) SetManualTotal(total float64) error {
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return fmt.Errorf("manual total must be a positive amount")
	}
	l.manualTotal = round2(total)
	l.hasManualTotal = true
	return nil
}

// Reconcile compares the ledger against the expected total.
func (l *Ledger) Reconcile() *ReconciliationResult {
	expected, ok := l.expected()
	return Reconcile(l.Items(), expected, ok)
}

// itemByKey finds a row by structural identity. With duplicate rows the
// first wins; duplicates are interchangeable by construction.
func (l *Ledger) itemByKey(key Key) *Item {
	for _, it := range l.Items() {
		if it.Key() == key {
			return it
		}
	}
	return nil
}

func (l *Ledger) categoryByID(id string) *Category {
	for _, c := range l.categories {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// SetActiveCategory selects the category the assignment toggle uses.
func (l *Ledger) SetActiveCategory(id string) error {
	if l.categoryByID(id) == nil {
		return fmt.Errorf("unknown category %q", id)
	}
	l.activeCategory = id
	return nil
}

// Toggle assigns 100% of an item to the active category, or clears the
// allocation when the item is already solely assigned to it. Hidden
// items cannot be assigned.
func (l *Ledger) Toggle(key Key) error {
	it := l.itemByKey(key)
	if it == nil {
		return fmt.Errorf("no item for key")
	}
	if it.Hidden {
		return fmt.Errorf("hidden items cannot be assigned")
	}
	prev := l.allocations[key]
	singleActive := len(prev) == 1 &&
		prev[0].CategoryID == l.activeCategory &&
		math.Abs(prev[0].Percent-100) <= PercentTolerance
	if singleActive {
		delete(l.allocations, key)
		return nil
	}
	l.setAllocation(key, []AllocationEntry{{CategoryID: l.activeCategory, Percent: 100}})
	return nil
}

// setAllocation normalizes and stores an entry list, dropping the key
// entirely when nothing survives normalization.
func (l *Ledger) setAllocation(key Key, entries []AllocationEntry) {
	clean := normalizeAllocation(entries, l.categories)
	if len(clean) == 0 {
		delete(l.allocations, key)
		return
	}
	l.allocations[key] = clean
}

// SetSplit stores a percentage split for an item. Entries referencing
// no-split categories are rejected; an existing direct allocation to a
// no-split category is preserved alongside the new split. A cleaned
// sum near zero clears the split; anything else must land within the
// completeness tolerance of 100.
func (l *Ledger) SetSplit(key Key, entries []AllocationEntry) error {
	if l.itemByKey(key) == nil {
		return fmt.Errorf("no item for key")
	}
	for _, e := range entries {
		if c := l.categoryByID(e.CategoryID); c != nil && c.NoSplit {
			return fmt.Errorf("category %q does not take part in splits", c.Name)
		}
	}
	var locked Allocation
	for _, e := range l.allocations[key] {
		if c := l.categoryByID(e.CategoryID); c != nil && c.NoSplit {
			locked = append(locked, e)
		}
	}
	clean := normalizeAllocation(entries, l.categories)
	total := clean.Total()
	switch {
	case total <= PercentTolerance:
		l.setAllocation(key, locked)
	case math.Abs(total-100) > PercentTolerance:
		return fmt.Errorf("split percentages sum to %.2f, expected 100", total)
	default:
		l.setAllocation(key, append(clean, locked...))
	}
	return nil
}

// ClearAllocation removes an item's allocation entirely.
func (l *Ledger) ClearAllocation(key Key) {
	delete(l.allocations, key)
}

// Allocations returns the stored allocation for a key, nil when none.
func (l *Ledger) Allocations(key Key) Allocation {
	return l.allocations[key]
}

// IsComplete reports whether the item's allocation sums to 100.
func (l *Ledger) IsComplete(key Key) bool {
	return l.allocations[key].Complete()
}

// AllComplete reports whether every visible item carries a complete
// allocation; this gates export.
func (l *Ledger) AllComplete() bool {
	items := l.Items()
	any := false
	for _, it := range items {
		if it.Hidden {
			continue
		}
		any = true
		if !l.allocations[it.Key()].Complete() {
			return false
		}
	}
	return any
}

// AddCategory appends a new category and makes it active.
func (l *Ledger) AddCategory(name, color string, noSplit, masked bool) (*Category, error) {
	if err := validateCategory(name, color); err != nil {
		return nil, err
	}
	base := Slugify(name)
	if base == "" {
		return nil, fmt.Errorf("category name %q produces an empty id", name)
	}
	c := &Category{
		ID:      uniqueID(base, l.categories, nil),
		Name:    strings.TrimSpace(name),
		Color:   color,
		NoSplit: noSplit,
		Masked:  masked,
	}
	l.categories = append(l.categories, c)
	l.activeCategory = c.ID
	return c, nil
}

// UpdateCategory edits a category in place. Renaming re-derives the id
// from the new name and propagates the change to every allocation
// referencing the old id. Locked categories may be renamed too.
func (l *Ledger) UpdateCategory(id, name, color string, noSplit, masked bool) (*Category, error) {
	c := l.categoryByID(id)
	if c == nil {
		return nil, fmt.Errorf("unknown category %q", id)
	}
	if err := validateCategory(name, color); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(name)
	c.Color = color
	c.NoSplit = noSplit
	c.Masked = masked

	proposed := Slugify(c.Name)
	if proposed == "" {
		proposed = c.ID
	}
	if proposed != c.ID {
		next := uniqueID(proposed, l.categories, c)
		if next != c.ID {
			old := c.ID
			c.ID = next
			l.replaceCategoryID(old, next)
			if l.activeCategory == old {
				l.activeCategory = next
			}
		}
	}
	return c, nil
}

// DeleteCategory removes a category, its allocations rescaled away. At
// least two categories must remain.
func (l *Ledger) DeleteCategory(id string) error {
	c := l.categoryByID(id)
	if c == nil {
		return fmt.Errorf("unknown category %q", id)
	}
	if len(l.categories) <= MinCategories {
		return fmt.Errorf("at least %d categories must exist", MinCategories)
	}
	l.removeCategoryID(id)
	next := make([]*Category, 0, len(l.categories)-1)
	for _, existing := range l.categories {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	l.categories = next
	if l.activeCategory == id {
		l.activeCategory = l.categories[0].ID
	}
	return nil
}

// replaceCategoryID rewrites allocation entries after a rename.
func (l *Ledger) replaceCategoryID(oldID, newID string) {
	for key, list := range l.allocations {
		changed := false
		next := make([]AllocationEntry, len(list))
		for i, e := range list {
			if e.CategoryID == oldID {
				e.CategoryID = newID
				changed = true
			}
			next[i] = e
		}
		if changed {
			l.setAllocation(key, next)
		}
	}
}

// removeCategoryID drops a category from every allocation, rescaling
// the remainder proportionally back to 100, or clearing the key when
// nothing remains.
func (l *Ledger) removeCategoryID(id string) {
	for key, list := range l.allocations {
		var kept Allocation
		for _, e := range list {
			if e.CategoryID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(list) {
			continue
		}
		if scaled := rescaleAllocation(kept); scaled != nil {
			l.setAllocation(key, scaled)
		} else {
			delete(l.allocations, key)
		}
	}
}

// AddManualItem appends a hand-entered correction row. It is only
// permitted while the ledger falls short of the expected total, and
// the amount may not exceed the outstanding difference. An optional
// category id assigns the new row 100% immediately.
func (l *Ledger) AddManualItem(id, description string, amount float64, categoryID string) (*Item, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("manual item needs a description")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, fmt.Errorf("manual item needs a positive amount")
	}
	rec := l.Reconcile()
	if !rec.MissingAmount() {
		return nil, fmt.Errorf("nothing is missing against the expected total")
	}
	if amount-rec.Remaining > 0.005 {
		return nil, fmt.Errorf("amount %.2f exceeds the outstanding %.2f", amount, rec.Remaining)
	}
	it := &Item{
		Quantity:    1,
		Description: description,
		UnitPrice:   round2(amount),
		Amount:      round2(amount),
		OrigIndex:   ManualOrigIndex,
		ManualID:    id,
	}
	l.manual = append(l.manual, it)
	if categoryID != "" {
		l.setAllocation(it.Key(), []AllocationEntry{{CategoryID: categoryID, Percent: 100}})
	}
	return it, nil
}

// RemoveManualItem deletes a manual row and its allocation.
func (l *Ledger) RemoveManualItem(manualID string) error {
	for i, it := range l.manual {
		if it.ManualID == manualID {
			delete(l.allocations, it.Key())
			l.manual = append(l.manual[:i], l.manual[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no manual item %q", manualID)
}

// EditItem updates a row's description and amount. The structural key
// changes with the edit, so any allocation moves to the new key; a
// discounted row keeps its discount and re-derives the base amount.
func (l *Ledger) EditItem(key Key, description string, amount float64) (*Item, error) {
	it := l.itemByKey(key)
	if it == nil {
		return nil, fmt.Errorf("no item for key")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("invalid amount")
	}
	it.Description = description
	it.Amount = round2(amount)
	if it.Discounted() {
		it.BaseAmount = round2(it.Amount + it.DiscountAmount)
	}
	if it.Quantity > 0 {
		it.UnitPrice = round2(it.Amount / it.Quantity)
	}
	newKey := it.Key()
	if newKey != key {
		if prev := l.allocations[key]; len(prev) > 0 {
			l.setAllocation(newKey, prev)
		}
		delete(l.allocations, key)
	}
	return it, nil
}

// Hide excludes a row from the shared ledger. Its amount still counts
// against the printed receipt total, so reconciliation subtracts it
// from the expected value. Hiding clears the row's allocation.
func (l *Ledger) Hide(key Key) error {
	it := l.itemByKey(key)
	if it == nil {
		return fmt.Errorf("no item for key")
	}
	it.Hidden = true
	delete(l.allocations, key)
	return nil
}

// Unhide returns a hidden row to the ledger.
func (l *Ledger) Unhide(key Key) error {
	it := l.itemByKey(key)
	if it == nil {
		return fmt.Errorf("no item for key")
	}
	it.Hidden = false
	return nil
}

// PriceRoles groups visible items by folded description and tags each
// row's amount relative to its group.
func (l *Ledger) PriceRoles() map[Key]PriceRole {
	groups := make(map[string][]*Item)
	for _, it := range l.Items() {
		if it.Hidden {
			continue
		}
		d := foldDescription(it.Description)
		groups[d] = append(groups[d], it)
	}
	roles := make(map[Key]PriceRole)
	for _, arr := range groups {
		if len(arr) <= 1 {
			continue
		}
		min, max := math.Inf(1), math.Inf(-1)
		for _, it := range arr {
			if it.Amount < min {
				min = it.Amount
			}
			if it.Amount > max {
				max = it.Amount
			}
		}
		if math.Abs(max-min) < 0.001 {
			for _, it := range arr {
				roles[it.Key()] = RoleEqual
			}
			continue
		}
		for _, it := range arr {
			switch {
			case math.Abs(it.Amount-min) < 0.001:
				roles[it.Key()] = RoleLow
			case math.Abs(it.Amount-max) < 0.001:
				roles[it.Key()] = RoleHigh
			default:
				roles[it.Key()] = RoleMid
			}
		}
	}
	return roles
}

// CategoryTotal summarizes one category's allocated share of the
// ledger.
type CategoryTotal struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Count      int     `json:"count"`
	Total      float64 `json:"total"`
}

// Summary computes each category's item count and allocated total.
func (l *Ledger) Summary() []CategoryTotal {
	totals := make([]CategoryTotal, len(l.categories))
	index := make(map[string]int, len(l.categories))
	for i, c := range l.categories {
		totals[i] = CategoryTotal{CategoryID: c.ID, Name: c.Name, Color: c.Color}
		index[c.ID] = i
	}
	for key, allocs := range l.allocations {
		it := l.itemByKey(key)
		if it == nil || it.Hidden {
			continue
		}
		for _, a := range allocs {
			i, ok := index[a.CategoryID]
			if !ok {
				continue
			}
			totals[i].Count++
			totals[i].Total += it.Amount * a.Percent / 100
		}
	}
	for i := range totals {
		totals[i].Total = round2(totals[i].Total)
	}
	return totals
}

// ExportRow is one line of a per-category export card. Percent is only
// meaningful when the row is a partial share of a split item.
type ExportRow struct {
	Quantity    float64 `json:"quantity"`
	Description string  `json:"description"`
	Percent     float64 `json:"percent"`
	Amount      float64 `json:"amount"`
}

// ExportCard is one category's share of the ledger, ready for
// rendering. Masked cards carry the total and item count only.
type ExportCard struct {
	CategoryID string      `json:"category_id"`
	Name       string      `json:"name"`
	Color      string      `json:"color"`
	Masked     bool        `json:"masked"`
	Count      int         `json:"count"`
	Total      float64     `json:"total"`
	Rows       []ExportRow `json:"rows,omitempty"`
}

// Export builds per-category cards from the allocation map. Every
// visible item must carry a complete allocation first.
func (l *Ledger) Export() ([]ExportCard, error) {
	if !l.AllComplete() {
		return nil, fmt.Errorf("every item needs a complete allocation before export")
	}
	byCat := make(map[string][]ExportRow, len(l.categories))
	for _, it := range l.SortedItems() {
		if it.Hidden {
			continue
		}
		for _, a := range l.allocations[it.Key()] {
			share := round2(it.Amount * a.Percent / 100)
			if share <= 0 {
				continue
			}
			byCat[a.CategoryID] = append(byCat[a.CategoryID], ExportRow{
				Quantity:    it.Quantity,
				Description: it.Description,
				Percent:     a.Percent,
				Amount:      share,
			})
		}
	}
	var cards []ExportCard
	for _, c := range l.categories {
		rows := byCat[c.ID]
		if len(rows) == 0 {
			continue
		}
		var total float64
		for _, r := range rows {
			total += r.Amount
		}
		card := ExportCard{
			CategoryID: c.ID,
			Name:       c.Name,
			Color:      c.Color,
			Masked:     c.Masked,
			Count:      len(rows),
			Total:      round2(total),
		}
		if !c.Masked {
			card.Rows = rows
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no allocated items to export")
	}
	return cards, nil
}
