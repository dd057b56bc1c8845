package entity

import "gorm.io/gorm"

// Tables lists every WMS table in dependency order (children first), the
// order used by catalog reset.
var Tables = []string{
	"pallets",
	"manifests",
	"shipping_order_lines",
	"shipping_orders",
	"receiving_order_lines",
	"receiving_orders",
	"products",
}

// AutoMigrate 自动迁移所有WMS表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 主数据
		&Product{},
		&Location{},

		// 入库
		&ReceivingOrder{},
		&ReceivingOrderLine{},

		// 出库
		&ShippingOrder{},
		&ShippingOrderLine{},
		&Manifest{},

		// 托盘
		&Pallet{},
	)
}
