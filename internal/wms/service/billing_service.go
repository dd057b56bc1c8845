package service

import (
	"context"
	"errors"
	"io"

	"github.com/bitfantasy/nimo-wms/internal/wms/billing"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// BillingService 计费报表
type BillingService struct {
	*engine
}

// Report aggregates pallet positions for the inclusive day range from..to
// (2006-01-02). notes are keyed by shipping order id.
func (s *BillingService) Report(ctx context.Context, from, to string, notes map[string]string) (*billing.Report, error) {
	rng, err := billing.ParseRange(from, to)
	if err != nil {
		return nil, validationf("billing range %s..%s: %v", from, to, err)
	}

	in := billing.Input{
		Products: map[string]entity.Product{},
		Orders:   map[string]entity.ShippingOrder{},
		Notes:    notes,
	}
	err = s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		end := rng.To
		pallets, err := st.ListPallets(ctx, repository.PalletFilter{CreatedTo: &end})
		if err != nil {
			return err
		}
		products, err := st.ListProducts(ctx, false)
		if err != nil {
			return err
		}
		for _, p := range products {
			in.Products[p.ItemID] = p
		}
		for _, p := range pallets {
			if p.ShippedAt == nil || p.ShippingOrderID == nil || !rng.Contains(*p.ShippedAt) {
				continue
			}
			id := *p.ShippingOrderID
			if _, ok := in.Orders[id]; ok {
				continue
			}
			o, err := st.GetShippingOrder(ctx, id, false)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					s.logger.Warn("Shipped pallet references missing order", zap.String("pallet_id", p.ID), zap.String("shipping_order_id", id))
					continue
				}
				return err
			}
			in.Orders[id] = *o
		}
		in.Pallets = pallets
		return nil
	})
	if err != nil {
		return nil, err
	}
	rep := billing.Aggregate(rng, in)
	return &rep, nil
}

// ExportCSV writes the report as CSV.
func (s *BillingService) ExportCSV(ctx context.Context, w io.Writer, from, to string, notes map[string]string) error {
	rep, err := s.Report(ctx, from, to, notes)
	if err != nil {
		return err
	}
	return billing.WriteCSV(w, *rep)
}

// ExportXLSX writes the report as an xlsx workbook.
func (s *BillingService) ExportXLSX(ctx context.Context, w io.Writer, from, to string, notes map[string]string) error {
	rep, err := s.Report(ctx, from, to, notes)
	if err != nil {
		return err
	}
	f, err := billing.BuildXLSX(*rep)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}
