package entity

import "time"

// ShipmentType 出库方式
type ShipmentType string

const (
	ShipmentHandDelivery     ShipmentType = "Hand_Delivery"
	ShipmentContainerLoading ShipmentType = "Container_Loading"
)

func (t ShipmentType) Valid() bool {
	return t == ShipmentHandDelivery || t == ShipmentContainerLoading
}

// ShippingStatus 出库单状态
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "Pending"
	ShippingPicking   ShippingStatus = "Picking"
	ShippingLoading   ShippingStatus = "Loading"
	ShippingCompleted ShippingStatus = "Completed"
	ShippingShipped   ShippingStatus = "Shipped"
)

func (s ShippingStatus) Rank() int {
	switch s {
	case ShippingPending:
		return 0
	case ShippingPicking:
		return 1
	case ShippingLoading:
		return 2
	case ShippingCompleted:
		return 3
	case ShippingShipped:
		return 4
	}
	return -1
}

func (s ShippingStatus) Valid() bool { return s.Rank() >= 0 }

// ShippingOrder 出库单
type ShippingOrder struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	OrderRef      string         `json:"order_ref" gorm:"size:100;not null;index"`
	ShipmentType  ShipmentType   `json:"shipment_type" gorm:"size:30;not null"`
	SealNum       string         `json:"seal_num" gorm:"size:50"`
	Status        ShippingStatus `json:"status" gorm:"size:20;not null;default:Pending;index"`
	ManifestID    *string        `json:"manifest_id" gorm:"size:36;index"`
	SignedFormRef string         `json:"signed_form_ref" gorm:"size:500"`
	CreatedBy     string         `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ShippedAt     *time.Time     `json:"shipped_at"`

	Lines []ShippingOrderLine `json:"lines,omitempty" gorm:"foreignKey:ShippingOrderID"`
}

func (ShippingOrder) TableName() string {
	return "shipping_orders"
}

// LineFor returns the order's line for itemID, if any.
func (o *ShippingOrder) LineFor(itemID string) (ShippingOrderLine, bool) {
	for _, l := range o.Lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return ShippingOrderLine{}, false
}

// ShippingOrderLine 出库单行，创建后不可修改
type ShippingOrderLine struct {
	ID              string `json:"id" gorm:"primaryKey;size:36"`
	ShippingOrderID string `json:"shipping_order_id" gorm:"size:36;not null;index"`
	ItemID          string `json:"item_id" gorm:"size:64;not null;index"`
	RequestedQty    int    `json:"requested_qty" gorm:"not null"`
}

func (ShippingOrderLine) TableName() string {
	return "shipping_order_lines"
}

// ManifestType 装运单类型
type ManifestType string

const (
	ManifestHand      ManifestType = "Hand"
	ManifestContainer ManifestType = "Container"
)

// ManifestStatus 装运单状态
type ManifestStatus string

const (
	ManifestOpen      ManifestStatus = "Open"
	ManifestClosed    ManifestStatus = "Closed"
	ManifestCancelled ManifestStatus = "Cancelled"
)

// Manifest 装运单（一次送货或一个出库集装箱）
type Manifest struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36"`
	Type         ManifestType   `json:"type" gorm:"size:20;not null"`
	ContainerNum *string        `json:"container_num" gorm:"size:50"`
	SealNum      string         `json:"seal_num" gorm:"size:50"`
	Status       ManifestStatus `json:"status" gorm:"size:20;not null;default:Open;index"`
	CreatedAt    time.Time      `json:"created_at"`
	ClosedAt     *time.Time     `json:"closed_at"`
}

func (Manifest) TableName() string {
	return "manifests"
}

// ManifestTypeFor maps a shipment type to the manifest type that carries it.
func ManifestTypeFor(t ShipmentType) ManifestType {
	if t == ShipmentHandDelivery {
		return ManifestHand
	}
	return ManifestContainer
}
