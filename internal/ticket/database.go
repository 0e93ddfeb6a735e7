package ticket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	categoryBucket = "categories"
	categoryKey    = "list"
	activeKey      = "active"
)

// CategoryStore persists the category list across documents. The list
// is an opaque blob plus the active category id; a missing or corrupt
// blob falls back to the seed categories.
type CategoryStore interface {
	// LoadCategories returns the persisted categories and active id.
	LoadCategories() ([]*Category, string, error)

	// SaveCategories persists the categories and active id.
	SaveCategories(categories []*Category, activeID string) error

	// Close closes the underlying database.
	Close() error
}

// BoltStore implements CategoryStore on BoltDB.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if needed) the category database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(categoryBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// LoadCategories reads the persisted list. An unreadable blob is not an
// error: the seed categories are returned instead so a bad write never
// locks the user out.
func (b *BoltStore) LoadCategories() ([]*Category, string, error) {
	var categories []*Category
	var active string
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucket))
		if data := bucket.Get([]byte(categoryKey)); data != nil {
			if err := json.Unmarshal(data, &categories); err != nil {
				slog.Warn("Persisted categories unreadable, using defaults", "error", err)
				categories = nil
			}
		}
		if data := bucket.Get([]byte(activeKey)); data != nil {
			active = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("loading categories: %w", err)
	}
	if len(categories) < MinCategories {
		categories = DefaultCategories()
		active = categories[0].ID
	}
	return categories, active, nil
}

// SaveCategories persists the list and active id in one transaction.
func (b *BoltStore) SaveCategories(categories []*Category, activeID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(categoryBucket))
		data, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("marshaling categories: %w", err)
		}
		if err := bucket.Put([]byte(categoryKey), data); err != nil {
			return err
		}
		return bucket.Put([]byte(activeKey), []byte(activeID))
	})
}

// Close closes the database connection.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
