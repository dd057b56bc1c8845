// Package ledger computes expected, confirmed and remaining quantities from
// order lines and pallet records. Every function here is pure.
package ledger

import "github.com/bitfantasy/nimo-wms/internal/wms/entity"

// ExpectedPalletCount is ceil(expectedQty / unitsPerPallet). A non-positive
// pallet capacity yields zero.
func ExpectedPalletCount(expectedQty, unitsPerPallet int) int {
	if unitsPerPallet <= 0 || expectedQty <= 0 {
		return 0
	}
	return (expectedQty + unitsPerPallet - 1) / unitsPerPallet
}

// LineCapacity is the most a receiving line may ever confirm: the expected
// pallet count filled to capacity.
func LineCapacity(expectedQty, unitsPerPallet int) int {
	return ExpectedPalletCount(expectedQty, unitsPerPallet) * unitsPerPallet
}

// Tally is the tally state of one receiving line.
type Tally struct {
	ExpectedPallets int `json:"expected_pallets"`
	Capacity        int `json:"capacity"`
	ConfirmedCount  int `json:"confirmed_count"`
	ConfirmedQty    int `json:"confirmed_qty"`
	CrossDockCount  int `json:"cross_dock_count"`
	CrossDockQty    int `json:"cross_dock_qty"`
	NormalCount     int `json:"normal_count"`
	NormalQty       int `json:"normal_qty"`
}

// RemainingCapacity is how many more units the line accepts.
func (t Tally) RemainingCapacity() int {
	if r := t.Capacity - t.ConfirmedQty; r > 0 {
		return r
	}
	return 0
}

// Accepts reports whether one more pallet of qty keeps the line within capacity.
func (t Tally) Accepts(qty int) bool {
	return qty > 0 && t.ConfirmedQty+qty <= t.Capacity
}

// TallyLine counts the pallets tallied against line. Cross-dock pallets are
// part of the confirmed totals but reported separately so the normal tally
// view can leave them out.
func TallyLine(line entity.ReceivingOrderLine, unitsPerPallet int, pallets []entity.Pallet) Tally {
	t := Tally{
		ExpectedPallets: ExpectedPalletCount(line.ExpectedQty, unitsPerPallet),
		Capacity:        LineCapacity(line.ExpectedQty, unitsPerPallet),
	}
	for i := range pallets {
		p := &pallets[i]
		if p.ItemID != line.ItemID || !p.FromReceiving(line.ReceivingOrderID) {
			continue
		}
		t.ConfirmedCount++
		t.ConfirmedQty += p.Qty
		if p.IsCrossDock {
			t.CrossDockCount++
			t.CrossDockQty += p.Qty
		} else {
			t.NormalCount++
			t.NormalQty += p.Qty
		}
	}
	return t
}

// ConfirmedCount counts every pallet tallied on a receiving order.
func ConfirmedCount(receivingOrderID string, pallets []entity.Pallet) int {
	n := 0
	for i := range pallets {
		if pallets[i].FromReceiving(receivingOrderID) {
			n++
		}
	}
	return n
}

// AssignedQty sums pallets of itemID reserved for the shipping order.
func AssignedQty(shippingOrderID, itemID string, pallets []entity.Pallet) int {
	total := 0
	for i := range pallets {
		p := &pallets[i]
		if p.ItemID == itemID && p.AssignedTo(shippingOrderID) {
			total += p.Qty
		}
	}
	return total
}

// RemainingQtyFor is requested minus assigned for itemID on order. It is 0
// when the order has no line for the item and never negative.
func RemainingQtyFor(order *entity.ShippingOrder, itemID string, pallets []entity.Pallet) int {
	line, ok := order.LineFor(itemID)
	if !ok {
		return 0
	}
	if r := line.RequestedQty - AssignedQty(order.ID, itemID, pallets); r > 0 {
		return r
	}
	return 0
}

// ClampAllocation splits a tallied quantity into the part a demand of
// remaining units can absorb and the excess left over.
func ClampAllocation(tallied, remaining int) (allocated, excess int) {
	if tallied <= 0 {
		return 0, 0
	}
	if remaining <= 0 {
		return 0, tallied
	}
	if tallied <= remaining {
		return tallied, 0
	}
	return remaining, tallied - remaining
}
