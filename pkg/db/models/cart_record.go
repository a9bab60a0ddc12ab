package models

import "time"

// CartRecord is the persisted cart for one identity.
type CartRecord struct {
	Identity  string           `gorm:"column:identity;primaryKey"`
	Items     []CartRecordItem `gorm:"column:items;type:jsonb;not null;serializer:json"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type CartRecordItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (CartRecord) TableName() string {
	return "cart_records"
}
