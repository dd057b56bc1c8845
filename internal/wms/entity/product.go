package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品主数据
type Product struct {
	ItemID          string          `json:"item_id" gorm:"primaryKey;size:64"`
	Description     string          `json:"description" gorm:"size:255"`
	UnitsPerPallet  int             `json:"units_per_pallet" gorm:"not null"`
	PalletPositions decimal.Decimal `json:"pallet_positions" gorm:"type:decimal(10,2);not null;default:1"`
	Active          bool            `json:"active" gorm:"not null"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Location 库位
type Location struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Zone      string    `json:"zone" gorm:"size:50"`
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Location) TableName() string {
	return "locations"
}
