package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/ledger"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// ReceivingService 入库理货
type ReceivingService struct {
	*engine
}

// ReceivingLineInput 入库单行
type ReceivingLineInput struct {
	ItemID      string `json:"item_id" binding:"required"`
	ExpectedQty int    `json:"expected_qty" binding:"required,gt=0"`
}

// CreateReceivingOrderRequest 创建入库单请求
type CreateReceivingOrderRequest struct {
	ContainerNum string               `json:"container_num" binding:"required"`
	SealNum      string               `json:"seal_num"`
	Lines        []ReceivingLineInput `json:"lines" binding:"required,min=1,dive"`
}

// TallyRequest confirms one physical pallet on a receiving line.
// ExpectedCount, when set, is the confirmed pallet count the caller last saw.
type TallyRequest struct {
	LineID        string `json:"line_id"`
	Qty           int    `json:"qty" binding:"required,gt=0"`
	ExpectedCount *int   `json:"expected_count"`
}

// ReceivingLineView 入库单行及理货进度
type ReceivingLineView struct {
	entity.ReceivingOrderLine
	Description    string          `json:"description"`
	UnitsPerPallet int             `json:"units_per_pallet"`
	Tally          ledger.Tally    `json:"tally"`
	Pallets        []entity.Pallet `json:"pallets"`
}

// ReceivingOrderView 入库单详情
type ReceivingOrderView struct {
	entity.ReceivingOrder
	Lines          []ReceivingLineView `json:"lines"`
	ConfirmedCount int                 `json:"confirmed_count"`
	Actions        []Action            `json:"actions"`
}

// Create 创建入库单
func (s *ReceivingService) Create(ctx context.Context, req *CreateReceivingOrderRequest, userID string) (*entity.ReceivingOrder, error) {
	if strings.TrimSpace(req.ContainerNum) == "" {
		return nil, validationf("container_num is required")
	}
	if len(req.Lines) == 0 {
		return nil, validationf("at least one line is required")
	}
	seen := make(map[string]bool, len(req.Lines))
	for _, l := range req.Lines {
		if l.ExpectedQty <= 0 {
			return nil, validationf("expected_qty for %s must be positive", l.ItemID)
		}
		if seen[l.ItemID] {
			return nil, validationf("item %s appears on more than one line", l.ItemID)
		}
		seen[l.ItemID] = true
	}

	order := &entity.ReceivingOrder{
		ID:           newID(),
		ContainerNum: strings.TrimSpace(req.ContainerNum),
		SealNum:      strings.TrimSpace(req.SealNum),
		Status:       entity.ReceivingPending,
		CreatedBy:    userID,
		CreatedAt:    s.timestamp(),
	}
	for _, l := range req.Lines {
		order.Lines = append(order.Lines, entity.ReceivingOrderLine{
			ID:               newID(),
			ReceivingOrderID: order.ID,
			ItemID:           l.ItemID,
			ExpectedQty:      l.ExpectedQty,
		})
	}

	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		for _, l := range order.Lines {
			p, err := tx.GetProduct(ctx, l.ItemID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return validationf("unknown item %s", l.ItemID)
				}
				return err
			}
			if !p.Active {
				return validationf("item %s is inactive", l.ItemID)
			}
		}
		return tx.CreateReceivingOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("create receiving order: %w", err)
	}
	s.logger.Info("Receiving order created", zap.String("order_id", order.ID), zap.String("container_num", order.ContainerNum), zap.Int("lines", len(order.Lines)))
	s.publisher.Publish(EventOrderUpdate, orderEvent("receiving", order.ID, string(order.Status)))
	return order, nil
}

// Get 入库单详情，含每行理货进度
func (s *ReceivingService) Get(ctx context.Context, id string) (*ReceivingOrderView, error) {
	var view *ReceivingOrderView
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		order, err := st.GetReceivingOrder(ctx, id)
		if err != nil {
			return notFound("receiving order", id, err)
		}
		pallets, err := st.ListPallets(ctx, repository.PalletFilter{ReceivingOrderID: id})
		if err != nil {
			return err
		}
		view = &ReceivingOrderView{
			ReceivingOrder: *order,
			ConfirmedCount: ledger.ConfirmedCount(id, pallets),
			Actions:        s.receiving.Actions(order.Status),
		}
		view.ReceivingOrder.Lines = nil
		for _, line := range order.Lines {
			lv := ReceivingLineView{ReceivingOrderLine: line, Pallets: []entity.Pallet{}}
			if p, err := st.GetProduct(ctx, line.ItemID); err == nil {
				lv.Description = p.Description
				lv.UnitsPerPallet = p.UnitsPerPallet
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			lv.Tally = ledger.TallyLine(line, lv.UnitsPerPallet, pallets)
			for _, p := range pallets {
				if p.ItemID == line.ItemID && !p.IsCrossDock {
					lv.Pallets = append(lv.Pallets, p)
				}
			}
			view.Lines = append(view.Lines, lv)
		}
		return nil
	})
	return view, err
}

// List 入库单列表
func (s *ReceivingService) List(ctx context.Context, statuses []string, page, size int) ([]entity.ReceivingOrder, int64, error) {
	var items []entity.ReceivingOrder
	var total int64
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		items, total, err = st.ListReceivingOrders(ctx, repository.OrderFilter{Statuses: statuses, Page: page, Size: size})
		return err
	})
	return items, total, err
}

// SelectForUnloading 开始卸货。已在卸货中时不写库也不报错
func (s *ReceivingService) SelectForUnloading(ctx context.Context, id string) (*entity.ReceivingOrder, error) {
	var order *entity.ReceivingOrder
	wrote := false
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		wrote = false
		var err error
		order, err = tx.GetReceivingOrder(ctx, id)
		if err != nil {
			return notFound("receiving order", id, err)
		}
		if order.Status == entity.ReceivingUnloading {
			return nil
		}
		to, err := s.receiving.Next(order.Status, ActionSelectForUnloading)
		if err != nil {
			return transitionErr(err)
		}
		if err := tx.UpdateReceivingStatus(ctx, id, order.Status, to, s.timestamp()); err != nil {
			return err
		}
		order.Status = to
		wrote = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if wrote {
		s.logger.Info("Receiving order unloading", zap.String("order_id", id))
		s.publisher.Publish(EventOrderUpdate, orderEvent("receiving", id, string(order.Status)))
	}
	return order, nil
}

// tallyContext is a receiving line locked for tallying.
type tallyContext struct {
	order   *entity.ReceivingOrder
	line    *entity.ReceivingOrderLine
	product *entity.Product
	tally   ledger.Tally
}

// lockLine locks the line, checks the order accepts tally actions and the
// caller's view of the confirmed count.
func (s *ReceivingService) lockLine(ctx context.Context, tx repository.Store, lineID string, expectedCount *int) (*tallyContext, error) {
	line, err := tx.GetReceivingLine(ctx, lineID, true)
	if err != nil {
		return nil, notFound("receiving line", lineID, err)
	}
	order, err := tx.GetReceivingOrder(ctx, line.ReceivingOrderID)
	if err != nil {
		return nil, notFound("receiving order", line.ReceivingOrderID, err)
	}
	if _, err := s.receiving.Next(order.Status, ActionTally); err != nil {
		return nil, transitionErr(err)
	}
	product, err := tx.GetProduct(ctx, line.ItemID)
	if err != nil {
		return nil, notFound("product", line.ItemID, err)
	}
	pallets, err := tx.ListPallets(ctx, repository.PalletFilter{ReceivingOrderID: order.ID, ItemID: line.ItemID})
	if err != nil {
		return nil, err
	}
	tc := &tallyContext{
		order:   order,
		line:    line,
		product: product,
		tally:   ledger.TallyLine(*line, product.UnitsPerPallet, pallets),
	}
	if expectedCount != nil && *expectedCount != tc.tally.ConfirmedCount {
		return nil, fmt.Errorf("%w: %w: line %s has %d pallets, caller saw %d",
			ErrConcurrencyConflict, errStaleView, lineID, tc.tally.ConfirmedCount, *expectedCount)
	}
	return tc, nil
}

// checkPalletQty validates one physical pallet of qty against the line.
func (tc *tallyContext) checkPalletQty(qty int) error {
	if qty <= 0 {
		return validationf("pallet quantity must be positive, got %d", qty)
	}
	if qty > tc.product.UnitsPerPallet {
		return validationf("pallet quantity %d exceeds %d units per pallet for %s", qty, tc.product.UnitsPerPallet, tc.product.ItemID)
	}
	if !tc.tally.Accepts(qty) {
		return validationf("line %s would exceed its capacity of %d units (%d confirmed)", tc.line.ID, tc.tally.Capacity, tc.tally.ConfirmedQty)
	}
	return nil
}

// newPallet creates a pallet for the locked line and records it in the tally.
func (s *ReceivingService) newPallet(ctx context.Context, tx repository.Store, tc *tallyContext, qty int, shippingOrderID string) (*entity.Pallet, error) {
	p := &entity.Pallet{
		ID:               newID(),
		ItemID:           tc.line.ItemID,
		Qty:              qty,
		Status:           entity.PalletReceived,
		ReceivingOrderID: entity.StrPtr(tc.order.ID),
		ShippingOrderID:  entity.StrPtr(shippingOrderID),
		IsCrossDock:      shippingOrderID != "",
		CreatedAt:        s.timestamp(),
	}
	if err := tx.CreatePallet(ctx, p); err != nil {
		return nil, err
	}
	tc.tally.ConfirmedCount++
	tc.tally.ConfirmedQty += qty
	return p, nil
}

// ConfirmPallet 确认一个托盘。不会自动关闭行
func (s *ReceivingService) ConfirmPallet(ctx context.Context, req *TallyRequest) (*entity.Pallet, error) {
	var pallet *entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		tc, err := s.lockLine(ctx, tx, req.LineID, req.ExpectedCount)
		if err != nil {
			return err
		}
		if err := tc.checkPalletQty(req.Qty); err != nil {
			return err
		}
		pallet, err = s.newPallet(ctx, tx, tc, req.Qty, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Pallet confirmed",
		zap.String("pallet_id", pallet.ID),
		zap.String("line_id", req.LineID),
		zap.String("item_id", pallet.ItemID),
		zap.Int("qty", pallet.Qty),
	)
	s.publisher.Publish(EventPalletUpdate, palletEvent(pallet, "confirmed"))
	return pallet, nil
}

// UndoPallet 撤销一个托盘，仅限卸货中且托盘未被移动
func (s *ReceivingService) UndoPallet(ctx context.Context, palletID string, expectedCount *int) error {
	var pallet *entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		p, err := tx.GetPallet(ctx, palletID, true)
		if err != nil {
			return notFound("pallet", palletID, err)
		}
		if p.ReceivingOrderID == nil {
			return invalidStatef("pallet %s was not tallied on a receiving order", palletID)
		}
		order, err := tx.GetReceivingOrder(ctx, *p.ReceivingOrderID)
		if err != nil {
			return notFound("receiving order", *p.ReceivingOrderID, err)
		}
		var lineID string
		for _, l := range order.Lines {
			if l.ItemID == p.ItemID {
				lineID = l.ID
				break
			}
		}
		if lineID == "" {
			return invalidStatef("pallet %s has no matching line on order %s", palletID, order.ID)
		}
		if _, err := s.lockLine(ctx, tx, lineID, expectedCount); err != nil {
			return err
		}
		if p.Status != entity.PalletReceived {
			return invalidStatef("pallet %s is %s and can no longer be undone", palletID, p.Status)
		}
		pallet = p
		return tx.DeletePallet(ctx, palletID, entity.PalletReceived)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Pallet undone", zap.String("pallet_id", palletID), zap.Bool("cross_dock", pallet.IsCrossDock))
	s.publisher.Publish(EventPalletUpdate, palletEvent(pallet, "deleted"))
	return nil
}

// FinishTally 完成理货，允许少收
func (s *ReceivingService) FinishTally(ctx context.Context, id string) (*entity.ReceivingOrder, error) {
	var order *entity.ReceivingOrder
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		order, err = tx.GetReceivingOrder(ctx, id)
		if err != nil {
			return notFound("receiving order", id, err)
		}
		to, err := s.receiving.Next(order.Status, ActionFinishTally)
		if err != nil {
			return transitionErr(err)
		}
		pallets, err := tx.ListPallets(ctx, repository.PalletFilter{ReceivingOrderID: id})
		if err != nil {
			return err
		}
		if ledger.ConfirmedCount(id, pallets) == 0 {
			return fmt.Errorf("%w: receiving order %s has no confirmed pallets", ErrNothingConfirmed, id)
		}
		if err := tx.UpdateReceivingStatus(ctx, id, order.Status, to, s.timestamp()); err != nil {
			return err
		}
		order.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tally finished", zap.String("order_id", id), zap.String("status", string(order.Status)))
	s.publisher.Publish(EventOrderUpdate, orderEvent("receiving", id, string(order.Status)))
	return order, nil
}

func orderEvent(kind, id, status string) map[string]string {
	return map[string]string{"kind": kind, "order_id": id, "status": status}
}

func palletEvent(p *entity.Pallet, action string) map[string]interface{} {
	return map[string]interface{}{
		"pallet_id":         p.ID,
		"item_id":           p.ItemID,
		"status":            p.Status,
		"receiving_order_id": p.ReceivingOrderID,
		"shipping_order_id": p.ShippingOrderID,
		"is_cross_dock":     p.IsCrossDock,
		"action":            action,
	}
}
