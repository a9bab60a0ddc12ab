package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps carts in the cart_records table (Postgres or SQLite).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("gorm handle required")
	}
	return &GormStore{db: db}, nil
}

// WithTx scopes the store to the provided transaction.
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	if tx == nil {
		return s
	}
	return &GormStore{db: tx}
}

func (s *GormStore) Load(ctx context.Context, identity string) ([]Item, error) {
	var record models.CartRecord
	err := s.db.WithContext(ctx).
		Where("identity = ?", identity).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	items := make([]Item, 0, len(record.Items))
	for _, it := range record.Items {
		items = append(items, Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items, nil
}

// Save upserts the whole cart for identity.
func (s *GormStore) Save(ctx context.Context, identity string, items []Item) error {
	record := models.CartRecord{
		Identity:  identity,
		Items:     make([]models.CartRecordItem, 0, len(items)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, it := range items {
		record.Items = append(record.Items, models.CartRecordItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
		}).
		Create(&record).Error
}

func (s *GormStore) Delete(ctx context.Context, identity string) error {
	return s.db.WithContext(ctx).
		Where("identity = ?", identity).
		Delete(&models.CartRecord{}).Error
}
