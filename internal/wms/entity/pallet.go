package entity

import "time"

// PalletStatus 托盘状态
type PalletStatus string

const (
	PalletReceived PalletStatus = "Received"
	PalletStored   PalletStatus = "Stored"
	PalletLoaded   PalletStatus = "Loaded"
	PalletShipped  PalletStatus = "Shipped"
	PalletWriteOff PalletStatus = "WriteOff"
)

// Pallet 托盘，库存的最小单位。只创建一次，之后只修改状态/库位/出库单
type Pallet struct {
	ID               string       `json:"id" gorm:"primaryKey;size:36"`
	ItemID           string       `json:"item_id" gorm:"size:64;not null;index"`
	Qty              int          `json:"qty" gorm:"not null"`
	Status           PalletStatus `json:"status" gorm:"size:20;not null;index"`
	ReceivingOrderID *string      `json:"receiving_order_id" gorm:"size:36;index"`
	ShippingOrderID  *string      `json:"shipping_order_id" gorm:"size:36;index"`
	LocationID       *string      `json:"location_id" gorm:"size:36"`
	ManifestID       *string      `json:"manifest_id" gorm:"size:36;index"`
	IsCrossDock      bool         `json:"is_cross_dock" gorm:"not null;default:false"`
	CreatedAt        time.Time    `json:"created_at" gorm:"index"`
	ShippedAt        *time.Time   `json:"shipped_at" gorm:"index"`
}

func (Pallet) TableName() string {
	return "pallets"
}

// AssignedTo reports whether the pallet is reserved for the given shipping order.
func (p *Pallet) AssignedTo(shippingOrderID string) bool {
	return p.ShippingOrderID != nil && *p.ShippingOrderID == shippingOrderID
}

// FromReceiving reports whether the pallet was tallied on the given receiving order.
func (p *Pallet) FromReceiving(receivingOrderID string) bool {
	return p.ReceivingOrderID != nil && *p.ReceivingOrderID == receivingOrderID
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
