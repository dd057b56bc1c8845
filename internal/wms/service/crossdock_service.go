package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-wms/internal/shared/lock"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/ledger"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// CrossDockService 越库分配：理货时直接分配给最早的待发出库单
type CrossDockService struct {
	*engine
	receiving *ReceivingService
	locker    lock.Locker
	retries   int
}

// ShipNowRequest 越库请求
type ShipNowRequest struct {
	LineID        string `json:"line_id"`
	Qty           int    `json:"qty" binding:"required,gt=0"`
	ExpectedCount *int   `json:"expected_count"`
}

// ShipNowResult holds the reserved pallet and the excess pallet, if any.
type ShipNowResult struct {
	CrossDock      *entity.Pallet `json:"cross_dock"`
	Excess         *entity.Pallet `json:"excess,omitempty"`
	ShippingOrder  string         `json:"shipping_order_id"`
	OrderRef       string         `json:"order_ref"`
	AllocatedQty   int            `json:"allocated_qty"`
	ExcessQty      int            `json:"excess_qty"`
	RemainingAfter int            `json:"remaining_after"`
}

// DemandCandidate 可越库的出库需求
type DemandCandidate struct {
	ShippingOrderID string                `json:"shipping_order_id"`
	OrderRef        string                `json:"order_ref"`
	Status          entity.ShippingStatus `json:"status"`
	RequestedQty    int                   `json:"requested_qty"`
	RemainingQty    int                   `json:"remaining_qty"`
}

var demandStatuses = []entity.ShippingStatus{entity.ShippingPending, entity.ShippingPicking}

func lockKey(itemID string) string {
	return "crossdock:" + itemID
}

// openDemand lists FIFO-ordered orders that still need itemID.
func openDemand(ctx context.Context, st repository.Store, itemID string, forUpdate bool) ([]DemandCandidate, error) {
	orders, err := st.ListDemand(ctx, itemID, demandStatuses, forUpdate)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	assigned, err := st.ListPallets(ctx, repository.PalletFilter{ItemID: itemID, ShippingOrderIDs: ids})
	if err != nil {
		return nil, err
	}
	var out []DemandCandidate
	for i := range orders {
		o := &orders[i]
		remaining := ledger.RemainingQtyFor(o, itemID, assigned)
		if remaining <= 0 {
			continue
		}
		line, _ := o.LineFor(itemID)
		out = append(out, DemandCandidate{
			ShippingOrderID: o.ID,
			OrderRef:        o.OrderRef,
			Status:          o.Status,
			RequestedQty:    line.RequestedQty,
			RemainingQty:    remaining,
		})
	}
	return out, nil
}

// PreviewDemand 查看某物料的越库候选，按先进先出排序
func (s *CrossDockService) PreviewDemand(ctx context.Context, itemID string) ([]DemandCandidate, error) {
	var out []DemandCandidate
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		out, err = openDemand(ctx, st, itemID, false)
		return err
	})
	if out == nil {
		out = []DemandCandidate{}
	}
	return out, err
}

// ShipNow tallies qty on the line and reserves it for the earliest shipping
// order that still needs the item. Whatever that order cannot absorb is
// confirmed as a normal pallet in the same transaction.
func (s *CrossDockService) ShipNow(ctx context.Context, req *ShipNowRequest) (*ShipNowResult, error) {
	var itemID string
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		line, err := st.GetReceivingLine(ctx, req.LineID, false)
		if err != nil {
			return notFound("receiving line", req.LineID, err)
		}
		itemID = line.ItemID
		return nil
	})
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lockKey(itemID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, fmt.Errorf("%w: item %s is being allocated: %v", ErrConcurrencyConflict, itemID, err)
		}
		return nil, err
	}
	defer release()

	var result *ShipNowResult
	for attempt := 1; ; attempt++ {
		result, err = s.allocate(ctx, req)
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, errStaleView) || attempt >= s.retries {
			break
		}
		s.logger.Warn("Cross-dock allocation conflict, retrying",
			zap.String("item_id", itemID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cross-dock allocated",
		zap.String("item_id", itemID),
		zap.String("shipping_order_id", result.ShippingOrder),
		zap.Int("allocated", result.AllocatedQty),
		zap.Int("excess", result.ExcessQty),
	)
	s.publisher.Publish(EventPalletUpdate, palletEvent(result.CrossDock, "cross_dock"))
	if result.Excess != nil {
		s.publisher.Publish(EventPalletUpdate, palletEvent(result.Excess, "confirmed"))
	}
	return result, nil
}

func (s *CrossDockService) allocate(ctx context.Context, req *ShipNowRequest) (*ShipNowResult, error) {
	var result *ShipNowResult
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		tc, err := s.receiving.lockLine(ctx, tx, req.LineID, req.ExpectedCount)
		if err != nil {
			return err
		}

		candidates, err := openDemand(ctx, tx, tc.line.ItemID, true)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return fmt.Errorf("%w: no open shipping order needs %s", ErrNoEligibleDemand, tc.line.ItemID)
		}
		if err := tc.checkPalletQty(req.Qty); err != nil {
			return err
		}
		chosen := candidates[0]

		allocated, excess := ledger.ClampAllocation(req.Qty, chosen.RemainingQty)
		cross, err := s.receiving.newPallet(ctx, tx, tc, allocated, chosen.ShippingOrderID)
		if err != nil {
			return err
		}
		result = &ShipNowResult{
			CrossDock:      cross,
			ShippingOrder:  chosen.ShippingOrderID,
			OrderRef:       chosen.OrderRef,
			AllocatedQty:   allocated,
			ExcessQty:      excess,
			RemainingAfter: chosen.RemainingQty - allocated,
		}
		if excess > 0 {
			result.Excess, err = s.receiving.newPallet(ctx, tx, tc, excess, "")
			if err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}
