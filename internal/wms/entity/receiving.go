package entity

import "time"

// ReceivingStatus 入库单状态
type ReceivingStatus string

const (
	ReceivingPending   ReceivingStatus = "Pending"
	ReceivingUnloading ReceivingStatus = "Unloading"
	ReceivingStaged    ReceivingStatus = "Staged"
	ReceivingReceived  ReceivingStatus = "Received"
)

// Rank orders statuses along the forward-only lifecycle. Staged and Received
// are alternative terminal states and share a rank.
func (s ReceivingStatus) Rank() int {
	switch s {
	case ReceivingPending:
		return 0
	case ReceivingUnloading:
		return 1
	case ReceivingStaged, ReceivingReceived:
		return 2
	}
	return -1
}

func (s ReceivingStatus) Valid() bool { return s.Rank() >= 0 }

// ReceivingOrder 入库单（一个入库集装箱/车次）
type ReceivingOrder struct {
	ID           string          `json:"id" gorm:"primaryKey;size:36"`
	ContainerNum string          `json:"container_num" gorm:"size:50"`
	SealNum      string          `json:"seal_num" gorm:"size:50"`
	Status       ReceivingStatus `json:"status" gorm:"size:20;not null;default:Pending;index"`
	CreatedBy    string          `json:"created_by" gorm:"size:64"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Lines []ReceivingOrderLine `json:"lines,omitempty" gorm:"foreignKey:ReceivingOrderID"`
}

func (ReceivingOrder) TableName() string {
	return "receiving_orders"
}

// ReceivingOrderLine 入库单行，创建后不可修改
type ReceivingOrderLine struct {
	ID               string `json:"id" gorm:"primaryKey;size:36"`
	ReceivingOrderID string `json:"receiving_order_id" gorm:"size:36;not null;index"`
	ItemID           string `json:"item_id" gorm:"size:64;not null;index"`
	ExpectedQty      int    `json:"expected_qty" gorm:"not null"`
}

func (ReceivingOrderLine) TableName() string {
	return "receiving_order_lines"
}
