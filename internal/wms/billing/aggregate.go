// Package billing rolls the pallet ledger into pallet-position metrics for a
// date range. It reads records and never writes them.
package billing

import (
	"errors"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/shopspring/decimal"
)

// DateLayout is the day format used for range bounds and delivery dates.
const DateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("invalid billing range")

// Range is an inclusive span of whole UTC days.
type Range struct {
	From time.Time // start of the first day
	To   time.Time // last instant of the final day
}

// NewRange truncates both bounds to their UTC day.
func NewRange(from, to time.Time) (Range, error) {
	f := day(from)
	t := day(to)
	if t.Before(f) {
		return Range{}, ErrInvalidRange
	}
	return Range{From: f, To: t.Add(24*time.Hour - time.Nanosecond)}, nil
}

// ParseRange parses two DateLayout days.
func ParseRange(from, to string) (Range, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return Range{}, errors.Join(ErrInvalidRange, err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return Range{}, errors.Join(ErrInvalidRange, err)
	}
	return NewRange(f, t)
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Summary holds the five pallet-position totals.
type Summary struct {
	Storage          decimal.Decimal `json:"storage_pallet_positions"`
	StandardInbound  decimal.Decimal `json:"standard_inbound_pallet_positions"`
	CrossDock        decimal.Decimal `json:"cross_dock_pallet_positions"`
	StandardOutbound decimal.Decimal `json:"standard_outbound_pallet_positions"`
	HandDelivery     decimal.Decimal `json:"hand_delivery_pallet_positions"`
}

// DetailRow is one hand delivery shipped in range.
type DetailRow struct {
	DeliveryDate    time.Time       `json:"delivery_date"`
	ShippingOrderID string          `json:"shipping_order_id"`
	OrderRef        string          `json:"order_ref"`
	PalletPositions decimal.Decimal `json:"total_pallet_positions"`
	Notes           string          `json:"notes"`
}

// Report 计费报表
type Report struct {
	From    time.Time   `json:"from"`
	To      time.Time   `json:"to"`
	Summary Summary     `json:"summary"`
	Details []DetailRow `json:"details"`
}

// Input is the ledger slice the aggregator reads.
type Input struct {
	Pallets  []entity.Pallet
	Products map[string]entity.Product
	Orders   map[string]entity.ShippingOrder
	// Notes are keyed by shipping order id.
	Notes map[string]string
}

// Aggregate computes the report for r. Pallets whose item is missing from
// the catalog weigh nothing.
func Aggregate(r Range, in Input) Report {
	rep := Report{
		From: r.From,
		To:   day(r.To),
		Summary: Summary{
			Storage:          decimal.Zero,
			StandardInbound:  decimal.Zero,
			CrossDock:        decimal.Zero,
			StandardOutbound: decimal.Zero,
			HandDelivery:     decimal.Zero,
		},
		Details: []DetailRow{},
	}
	rows := map[string]*DetailRow{}

	for i := range in.Pallets {
		p := &in.Pallets[i]
		w := in.Products[p.ItemID].PalletPositions

		if p.Status == entity.PalletStored && !p.CreatedAt.After(r.To) {
			rep.Summary.Storage = rep.Summary.Storage.Add(w)
		}
		if r.Contains(p.CreatedAt) {
			if p.IsCrossDock {
				rep.Summary.CrossDock = rep.Summary.CrossDock.Add(w)
			} else {
				rep.Summary.StandardInbound = rep.Summary.StandardInbound.Add(w)
			}
		}
		if p.ShippedAt == nil || !r.Contains(*p.ShippedAt) || p.ShippingOrderID == nil {
			continue
		}
		order, ok := in.Orders[*p.ShippingOrderID]
		if !ok {
			continue
		}
		switch order.ShipmentType {
		case entity.ShipmentHandDelivery:
			rep.Summary.HandDelivery = rep.Summary.HandDelivery.Add(w)
			row, ok := rows[order.ID]
			if !ok {
				row = &DetailRow{
					ShippingOrderID: order.ID,
					OrderRef:        order.OrderRef,
					PalletPositions: decimal.Zero,
					Notes:           in.Notes[order.ID],
				}
				rows[order.ID] = row
			}
			row.PalletPositions = row.PalletPositions.Add(w)
			if d := day(*p.ShippedAt); d.After(row.DeliveryDate) {
				row.DeliveryDate = d
			}
		case entity.ShipmentContainerLoading:
			if !p.IsCrossDock {
				rep.Summary.StandardOutbound = rep.Summary.StandardOutbound.Add(w)
			}
		}
	}

	for _, row := range rows {
		rep.Details = append(rep.Details, *row)
	}
	sort.Slice(rep.Details, func(i, j int) bool {
		a, b := rep.Details[i], rep.Details[j]
		if !a.DeliveryDate.Equal(b.DeliveryDate) {
			return a.DeliveryDate.Before(b.DeliveryDate)
		}
		if a.OrderRef != b.OrderRef {
			return a.OrderRef < b.OrderRef
		}
		return a.ShippingOrderID < b.ShippingOrderID
	})
	return rep
}

// DetailTotal sums the detail rows.
func (r Report) DetailTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.Details {
		total = total.Add(row.PalletPositions)
	}
	return total
}
