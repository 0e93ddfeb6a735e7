package ticket

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abarrero/ticketsplit/internal/parsing"
	"github.com/abarrero/ticketsplit/internal/scanning"
)

// IDGenerator generates unique IDs for manual items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service owns the current ticket ledger and coordinates extraction,
// parsing and category persistence. All methods are safe for concurrent
// use; the ledger itself is single-writer behind the service mutex.
type Service struct {
	mu          sync.Mutex
	extractor   scanning.Extractor
	store       CategoryStore
	ledger      *Ledger
	idGenerator IDGenerator
	timeSource  TimeSource
	processedAt time.Time
}

// NewService creates a new Service with default ID generator and time source.
// Categories are loaded from the store; a missing or corrupt category set
// falls back to defaults inside the store.
func NewService(extractor scanning.Extractor, store CategoryStore) (*Service, error) {
	return NewServiceWithDeps(extractor, store, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(extractor scanning.Extractor, store CategoryStore, idGen IDGenerator, timeSrc TimeSource) (*Service, error) {
	categories, activeID, err := store.LoadCategories()
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	return &Service{
		extractor:   extractor,
		store:       store,
		ledger:      NewLedger(categories, activeID),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}, nil
}

// ProcessDocument extracts text from an uploaded receipt, parses it and
// replaces the current ledger contents with the result.
func (s *Service) ProcessDocument(filename string, data []byte, contentType string) (*Snapshot, error) {
	doc, err := s.extractor.Extract(data, contentType)
	if err != nil {
		slog.Error("Failed to extract document text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("extracting document: %w", err)
	}

	result := parsing.Parse(doc.Lines(), filename, "")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Load(result, filename)
	s.processedAt = s.timeSource.Now()

	slog.Info("Processed document",
		"filename", filename,
		"store", result.Store,
		"items", len(result.Items),
		"ocr", doc.OCR,
		"pages", len(doc.Pages),
	)

	return s.snapshotLocked(), nil
}

// ItemView is the per-item payload served to the UI.
type ItemView struct {
	Key            Key               `json:"key"`
	Quantity       float64           `json:"quantity"`
	Description    string            `json:"description"`
	UnitPrice      float64           `json:"unit_price"`
	Amount         float64           `json:"amount"`
	BaseAmount     float64           `json:"base_amount,omitempty"`
	DiscountAmount float64           `json:"discount_amount,omitempty"`
	DiscountLabels []string          `json:"discount_labels,omitempty"`
	Discounted     bool              `json:"discounted"`
	Hidden         bool              `json:"hidden"`
	Manual         bool              `json:"manual"`
	ManualID       string            `json:"manual_id,omitempty"`
	PriceRole       PriceRole         `json:"price_role,omitempty"`
	Allocation      []AllocationEntry `json:"allocation,omitempty"`
	PrimaryCategory string            `json:"primary_category,omitempty"`
	Complete        bool              `json:"complete"`
}

// Snapshot is the full ledger state served to the UI.
type Snapshot struct {
	Filename       string                `json:"filename"`
	Store          string                `json:"store"`
	Meta           parsing.Meta          `json:"meta"`
	ProcessedAt    time.Time             `json:"processed_at"`
	Items          []ItemView            `json:"items"`
	Categories     []*Category           `json:"categories"`
	ActiveCategory string                `json:"active_category"`
	SortMode       SortMode              `json:"sort_mode"`
	Reconciliation *ReconciliationResult `json:"reconciliation"`
	Suggestions    []float64             `json:"suggestions,omitempty"`
	Summary        []CategoryTotal       `json:"summary"`
	AllComplete    bool                  `json:"all_complete"`
}

// Snapshot returns the current ledger state.
func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() *Snapshot {
	roles := s.ledger.PriceRoles()

	var items []ItemView
	for _, it := range s.ledger.SortedItems() {
		key := it.Key()
		alloc := s.ledger.Allocations(key)
		var base float64
		if it.Discounted() {
			base = it.EffectiveBase()
		}
		items = append(items, ItemView{
			Key:             key,
			Quantity:        it.Quantity,
			Description:     it.Description,
			UnitPrice:       it.UnitPrice,
			Amount:          it.Amount,
			BaseAmount:      base,
			DiscountAmount:  it.DiscountAmount,
			DiscountLabels:  it.DiscountLabels,
			Discounted:      it.Discounted(),
			Hidden:          it.Hidden,
			Manual:          it.Manual(),
			ManualID:        it.ManualID,
			PriceRole:       roles[key],
			Allocation:      alloc,
			PrimaryCategory: alloc.Primary().CategoryID,
			Complete:        alloc.Complete(),
		})
	}

	return &Snapshot{
		Filename:       s.ledger.Filename(),
		Store:          s.ledger.Store(),
		Meta:           s.ledger.Meta(),
		ProcessedAt:    s.processedAt,
		Items:          items,
		Categories:     s.ledger.Categories(),
		ActiveCategory: s.ledger.ActiveCategory(),
		SortMode:       s.ledger.SortMode(),
		Reconciliation: s.ledger.Reconcile(),
		Suggestions:    s.ledger.Suggestions(),
		Summary:        s.ledger.Summary(),
		AllComplete:    s.ledger.AllComplete(),
	}
}

// Toggle cycles the active category on an item.
func (s *Service) Toggle(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Toggle(key)
}

// SetSplit replaces an item's percentage split.
func (s *Service) SetSplit(key Key, entries []AllocationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SetSplit(key, entries)
}

// ClearAllocation removes an item's allocation.
func (s *Service) ClearAllocation(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.ClearAllocation(key)
}

// Hide hides an item and drops its allocation.
func (s *Service) Hide(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Hide(key)
}

// Unhide restores a hidden item.
func (s *Service) Unhide(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Unhide(key)
}

// EditItem updates an item's description and amount.
func (s *Service) EditItem(key Key, description string, amount float64) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.EditItem(key, description, amount)
}

// AddManualItem adds a correction line covering part of a missing amount.
func (s *Service) AddManualItem(description string, amount float64, categoryID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AddManualItem(s.idGenerator.Generate(), description, amount, categoryID)
}

// RemoveManualItem deletes a manual correction line.
func (s *Service) RemoveManualItem(manualID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.RemoveManualItem(manualID)
}

// SetManualTotal sets the user-entered expected total.
func (s *Service) SetManualTotal(total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SetManualTotal(total)
}

// SortBy switches the item sort mode.
func (s *Service) SortBy(mode SortMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SortBy(mode)
}

// SetActiveCategory changes which category Toggle assigns.
func (s *Service) SetActiveCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.SetActiveCategory(id); err != nil {
		return err
	}
	return s.saveCategoriesLocked()
}

// AddCategory creates a category and makes it active.
func (s *Service) AddCategory(name, color string, noSplit, masked bool) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.ledger.AddCategory(name, color, noSplit, masked)
	if err != nil {
		return nil, err
	}
	if err := s.saveCategoriesLocked(); err != nil {
		return nil, err
	}
	return cat, nil
}

// UpdateCategory renames or restyles a category. Renames propagate to
// every allocation holding the old id.
func (s *Service) UpdateCategory(id, name, color string, noSplit, masked bool) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.ledger.UpdateCategory(id, name, color, noSplit, masked)
	if err != nil {
		return nil, err
	}
	if err := s.saveCategoriesLocked(); err != nil {
		return nil, err
	}
	return cat, nil
}

// DeleteCategory removes a category and rescales allocations that used it.
func (s *Service) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.DeleteCategory(id); err != nil {
		return err
	}
	return s.saveCategoriesLocked()
}

func (s *Service) saveCategoriesLocked() error {
	if err := s.store.SaveCategories(s.ledger.Categories(), s.ledger.ActiveCategory()); err != nil {
		return fmt.Errorf("saving categories: %w", err)
	}
	return nil
}

// Export builds the per-category share cards. Every visible item must be
// allocation-complete; when the totals do not reconcile the caller has to
// pass confirm to export anyway.
func (s *Service) Export(confirm bool) ([]ExportCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ledger.Reconcile()
	if rec.HasExpected && rec.Matches != nil && !*rec.Matches && !confirm {
		return nil, fmt.Errorf("ticket total does not match the expected amount, confirm to export anyway")
	}

	return s.ledger.Export()
}

// Close releases the extractor and the category store.
func (s *Service) Close() error {
	if err := s.extractor.Close(); err != nil {
		slog.Warn("Failed to close extractor", "error", err)
	}
	return s.store.Close()
}
