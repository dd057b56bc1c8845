package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// InventoryService 库存：上架、报废、库位
type InventoryService struct {
	*engine
}

// CreateLocationRequest 创建库位请求
type CreateLocationRequest struct {
	Code string `json:"code" binding:"required"`
	Zone string `json:"zone"`
}

// PutAway 上架。越库托盘不上架
func (s *InventoryService) PutAway(ctx context.Context, palletID, locationID string) (*entity.Pallet, error) {
	var pallet *entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		p, err := tx.GetPallet(ctx, palletID, true)
		if err != nil {
			return notFound("pallet", palletID, err)
		}
		if p.IsCrossDock {
			return invalidStatef("cross-dock pallet %s ships from the dock", palletID)
		}
		loc, err := tx.GetLocation(ctx, locationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("unknown location %s", locationID)
			}
			return err
		}
		if !loc.Active {
			return validationf("location %s is inactive", loc.Code)
		}
		next, err := s.pallets.Next(p.Status, ActionPutAway)
		if err != nil {
			return transitionErr(err)
		}
		from := p.Status
		p.Status = next
		p.LocationID = entity.StrPtr(loc.ID)
		if err := tx.UpdatePallet(ctx, p, from); err != nil {
			return err
		}
		pallet = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Pallet put away", zap.String("pallet_id", palletID), zap.String("location_id", locationID))
	s.publisher.Publish(EventPalletUpdate, palletEvent(pallet, "stored"))
	return pallet, nil
}

// WriteOff 报废托盘
func (s *InventoryService) WriteOff(ctx context.Context, palletID, reason string) (*entity.Pallet, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationf("a write-off reason is required")
	}
	var pallet *entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		p, err := tx.GetPallet(ctx, palletID, true)
		if err != nil {
			return notFound("pallet", palletID, err)
		}
		if p.ShippingOrderID != nil {
			return invalidStatef("pallet %s is reserved for shipping order %s", palletID, *p.ShippingOrderID)
		}
		next, err := s.pallets.Next(p.Status, ActionWriteOff)
		if err != nil {
			return transitionErr(err)
		}
		from := p.Status
		p.Status = next
		if err := tx.UpdatePallet(ctx, p, from); err != nil {
			return err
		}
		pallet = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("Pallet written off", zap.String("pallet_id", palletID), zap.String("item_id", pallet.ItemID), zap.Int("qty", pallet.Qty), zap.String("reason", reason))
	s.publisher.Publish(EventPalletUpdate, palletEvent(pallet, "write_off"))
	return pallet, nil
}

// CreateLocation 创建库位
func (s *InventoryService) CreateLocation(ctx context.Context, req *CreateLocationRequest) (*entity.Location, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, validationf("code is required")
	}
	loc := &entity.Location{
		ID:        newID(),
		Code:      code,
		Zone:      strings.TrimSpace(req.Zone),
		Active:    true,
		CreatedAt: s.timestamp(),
	}
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.CreateLocation(ctx, loc)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, validationf("location code %s already exists", code)
		}
		return nil, fmt.Errorf("create location: %w", err)
	}
	return loc, nil
}

// ListLocations 库位列表
func (s *InventoryService) ListLocations(ctx context.Context) ([]entity.Location, error) {
	var out []entity.Location
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		out, err = st.ListLocations(ctx)
		return err
	})
	if out == nil {
		out = []entity.Location{}
	}
	return out, err
}

// ListPallets 托盘查询
func (s *InventoryService) ListPallets(ctx context.Context, filter repository.PalletFilter) ([]entity.Pallet, error) {
	var out []entity.Pallet
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		out, err = st.ListPallets(ctx, filter)
		return err
	})
	if out == nil {
		out = []entity.Pallet{}
	}
	return out, err
}
