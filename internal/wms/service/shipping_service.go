package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/shared/notify"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/ledger"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// ShippingService 出库：拣货、装车、签收关单
type ShippingService struct {
	*engine
	notifier Notifier
}

// ShippingLineInput 出库单行
type ShippingLineInput struct {
	ItemID       string `json:"item_id" binding:"required"`
	RequestedQty int    `json:"requested_qty" binding:"required,gt=0"`
}

// CreateShippingOrderRequest 创建出库单请求
type CreateShippingOrderRequest struct {
	OrderRef     string              `json:"order_ref" binding:"required"`
	ShipmentType entity.ShipmentType `json:"shipment_type" binding:"required"`
	SealNum      string              `json:"seal_num"`
	Lines        []ShippingLineInput `json:"lines" binding:"required,min=1,dive"`
}

// ShippingLineView 出库单行及分配进度
type ShippingLineView struct {
	entity.ShippingOrderLine
	AssignedQty  int `json:"assigned_qty"`
	RemainingQty int `json:"remaining_qty"`
	LoadedQty    int `json:"loaded_qty"`
}

// ShippingOrderView 出库单详情
type ShippingOrderView struct {
	entity.ShippingOrder
	Lines   []ShippingLineView `json:"lines"`
	Pallets []entity.Pallet    `json:"pallets"`
	Actions []Action           `json:"actions"`
}

// Create 创建出库单
func (s *ShippingService) Create(ctx context.Context, req *CreateShippingOrderRequest, userID string) (*entity.ShippingOrder, error) {
	if strings.TrimSpace(req.OrderRef) == "" {
		return nil, validationf("order_ref is required")
	}
	if !req.ShipmentType.Valid() {
		return nil, validationf("unknown shipment type %q", req.ShipmentType)
	}
	seal := strings.TrimSpace(req.SealNum)
	if req.ShipmentType == entity.ShipmentHandDelivery && seal == "" {
		return nil, validationf("seal_num is required for hand delivery")
	}
	if req.ShipmentType != entity.ShipmentHandDelivery && seal != "" {
		return nil, validationf("seal_num is only recorded for hand delivery")
	}
	if len(req.Lines) == 0 {
		return nil, validationf("at least one line is required")
	}
	seen := make(map[string]bool, len(req.Lines))
	for _, l := range req.Lines {
		if l.RequestedQty <= 0 {
			return nil, validationf("requested_qty for %s must be positive", l.ItemID)
		}
		if seen[l.ItemID] {
			return nil, validationf("item %s appears on more than one line", l.ItemID)
		}
		seen[l.ItemID] = true
	}

	order := &entity.ShippingOrder{
		ID:           newID(),
		OrderRef:     strings.TrimSpace(req.OrderRef),
		ShipmentType: req.ShipmentType,
		SealNum:      seal,
		Status:       entity.ShippingPending,
		CreatedBy:    userID,
		CreatedAt:    s.timestamp(),
	}
	for _, l := range req.Lines {
		order.Lines = append(order.Lines, entity.ShippingOrderLine{
			ID:              newID(),
			ShippingOrderID: order.ID,
			ItemID:          l.ItemID,
			RequestedQty:    l.RequestedQty,
		})
	}

	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		for _, l := range order.Lines {
			if _, err := tx.GetProduct(ctx, l.ItemID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return validationf("unknown item %s", l.ItemID)
				}
				return err
			}
		}
		return tx.CreateShippingOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("create shipping order: %w", err)
	}
	s.logger.Info("Shipping order created", zap.String("order_id", order.ID), zap.String("order_ref", order.OrderRef), zap.String("type", string(order.ShipmentType)))
	s.publisher.Publish(EventOrderUpdate, orderEvent("shipping", order.ID, string(order.Status)))
	return order, nil
}

// Get 出库单详情
func (s *ShippingService) Get(ctx context.Context, id string) (*ShippingOrderView, error) {
	var view *ShippingOrderView
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		order, err := st.GetShippingOrder(ctx, id, false)
		if err != nil {
			return notFound("shipping order", id, err)
		}
		pallets, err := st.ListPallets(ctx, repository.PalletFilter{ShippingOrderID: id})
		if err != nil {
			return err
		}
		if pallets == nil {
			pallets = []entity.Pallet{}
		}
		view = &ShippingOrderView{ShippingOrder: *order, Pallets: pallets, Actions: s.shipping.Actions(order.Status)}
		view.ShippingOrder.Lines = nil
		for _, line := range order.Lines {
			lv := ShippingLineView{
				ShippingOrderLine: line,
				AssignedQty:       ledger.AssignedQty(id, line.ItemID, pallets),
				RemainingQty:      ledger.RemainingQtyFor(order, line.ItemID, pallets),
			}
			for _, p := range pallets {
				if p.ItemID == line.ItemID && (p.Status == entity.PalletLoaded || p.Status == entity.PalletShipped) {
					lv.LoadedQty += p.Qty
				}
			}
			view.Lines = append(view.Lines, lv)
		}
		return nil
	})
	return view, err
}

// List 出库单列表
func (s *ShippingService) List(ctx context.Context, statuses []string, page, size int) ([]entity.ShippingOrder, int64, error) {
	var items []entity.ShippingOrder
	var total int64
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		items, total, err = st.ListShippingOrders(ctx, repository.OrderFilter{Statuses: statuses, Page: page, Size: size})
		return err
	})
	return items, total, err
}

// lockOrder loads the order for update and checks action is legal from its status.
func (s *ShippingService) lockOrder(ctx context.Context, tx repository.Store, id string, action Action) (*entity.ShippingOrder, entity.ShippingStatus, error) {
	order, err := tx.GetShippingOrder(ctx, id, true)
	if err != nil {
		return nil, "", notFound("shipping order", id, err)
	}
	to, err := s.shipping.Next(order.Status, action)
	if err != nil {
		return nil, "", transitionErr(err)
	}
	return order, to, nil
}

// Pick 拣货：把托盘分配给出库单
func (s *ShippingService) Pick(ctx context.Context, orderID string, palletIDs []string) (*entity.ShippingOrder, error) {
	if len(palletIDs) == 0 {
		return nil, validationf("no pallets to pick")
	}
	var order *entity.ShippingOrder
	var picked []*entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		picked = picked[:0]
		o, to, err := s.lockOrder(ctx, tx, orderID, ActionPick)
		if err != nil {
			return err
		}
		assigned, err := tx.ListPallets(ctx, repository.PalletFilter{ShippingOrderID: orderID})
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(palletIDs))
		for _, pid := range palletIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			p, err := tx.GetPallet(ctx, pid, true)
			if err != nil {
				return notFound("pallet", pid, err)
			}
			if p.AssignedTo(orderID) {
				continue
			}
			if p.ShippingOrderID != nil {
				return invalidStatef("pallet %s is reserved for another order", pid)
			}
			if p.Status != entity.PalletStored {
				return invalidStatef("pallet %s is %s, only stored pallets can be picked", pid, p.Status)
			}
			if _, ok := o.LineFor(p.ItemID); !ok {
				return validationf("order %s has no line for item %s", o.OrderRef, p.ItemID)
			}
			remaining := ledger.RemainingQtyFor(o, p.ItemID, assigned)
			if p.Qty > remaining {
				return validationf("pallet %s holds %d of %s but only %d remain on the order", pid, p.Qty, p.ItemID, remaining)
			}
			next, err := s.pallets.Next(p.Status, ActionPick)
			if err != nil {
				return transitionErr(err)
			}
			from := p.Status
			p.Status = next
			p.ShippingOrderID = entity.StrPtr(orderID)
			if err := tx.UpdatePallet(ctx, p, from); err != nil {
				return err
			}
			assigned = append(assigned, *p)
			picked = append(picked, p)
		}
		if o.Status != to {
			from := o.Status
			o.Status = to
			o.UpdatedAt = s.timestamp()
			if err := tx.UpdateShippingOrder(ctx, o, from); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Pallets picked", zap.String("order_id", orderID), zap.Int("picked", len(picked)))
	for _, p := range picked {
		s.publisher.Publish(EventPalletUpdate, palletEvent(p, "picked"))
	}
	s.publisher.Publish(EventOrderUpdate, orderEvent("shipping", orderID, string(order.Status)))
	return order, nil
}

// transition moves the order along action with no other writes.
func (s *ShippingService) transition(ctx context.Context, id string, action Action) (*entity.ShippingOrder, error) {
	var order *entity.ShippingOrder
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		o, to, err := s.lockOrder(ctx, tx, id, action)
		if err != nil {
			return err
		}
		from := o.Status
		o.Status = to
		o.UpdatedAt = s.timestamp()
		if err := tx.UpdateShippingOrder(ctx, o, from); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Shipping order status changed", zap.String("order_id", id), zap.String("action", string(action)), zap.String("status", string(order.Status)))
	s.publisher.Publish(EventOrderUpdate, orderEvent("shipping", id, string(order.Status)))
	return order, nil
}

// StartLoading 开始装车
func (s *ShippingService) StartLoading(ctx context.Context, id string) (*entity.ShippingOrder, error) {
	return s.transition(ctx, id, ActionStartLoading)
}

// FinishLoading 完成装车，允许部分装车，不关闭装运单
func (s *ShippingService) FinishLoading(ctx context.Context, id string) (*entity.ShippingOrder, error) {
	return s.transition(ctx, id, ActionFinishLoading)
}

// SelectLoadTarget picks the manifest the order loads onto. A hand delivery
// without manifestID gets a new manifest sealed with the order's seal; a
// container load without manifestID uses the single open container manifest.
func (s *ShippingService) SelectLoadTarget(ctx context.Context, orderID, manifestID string) (*entity.ShippingOrder, error) {
	var order *entity.ShippingOrder
	var created *entity.Manifest
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		created = nil
		o, _, err := s.lockOrder(ctx, tx, orderID, ActionSelectTarget)
		if err != nil {
			return err
		}
		want := entity.ManifestTypeFor(o.ShipmentType)

		var target *entity.Manifest
		if manifestID == "" && want == entity.ManifestHand && o.ManifestID != nil {
			cur, err := tx.GetManifest(ctx, *o.ManifestID, true)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err == nil && s.manifests.Can(cur.Status, ActionAssign) {
				order = o
				return nil
			}
		}
		switch {
		case manifestID != "":
			m, err := tx.GetManifest(ctx, manifestID, true)
			if err != nil {
				return notFound("manifest", manifestID, err)
			}
			if !s.manifests.Can(m.Status, ActionAssign) {
				return fmt.Errorf("%w: manifest %s is %s", ErrNoOpenManifest, manifestID, m.Status)
			}
			if m.Type != want {
				return validationf("manifest %s is a %s manifest, order needs %s", manifestID, m.Type, want)
			}
			target = m
		case want == entity.ManifestHand:
			target = &entity.Manifest{
				ID:        newID(),
				Type:      entity.ManifestHand,
				SealNum:   o.SealNum,
				Status:    entity.ManifestOpen,
				CreatedAt: s.timestamp(),
			}
			created = target
		default:
			open, err := tx.ListManifests(ctx, repository.ManifestFilter{Type: entity.ManifestContainer, Status: entity.ManifestOpen})
			if err != nil {
				return err
			}
			switch len(open) {
			case 0:
				return fmt.Errorf("%w: create a container manifest before loading order %s", ErrNoOpenManifest, o.OrderRef)
			case 1:
				target = &open[0]
			default:
				return validationf("%d container manifests are open, choose one", len(open))
			}
		}

		if o.ManifestID != nil && *o.ManifestID == target.ID {
			order = o
			return nil
		}
		if o.ManifestID != nil {
			loaded, err := tx.ListPallets(ctx, repository.PalletFilter{
				ShippingOrderID: orderID,
				Statuses:        []entity.PalletStatus{entity.PalletLoaded},
			})
			if err != nil {
				return err
			}
			if len(loaded) > 0 {
				return invalidStatef("order %s already has %d pallets loaded on manifest %s", o.OrderRef, len(loaded), *o.ManifestID)
			}
		}
		if created != nil {
			if err := tx.CreateManifest(ctx, created); err != nil {
				return err
			}
		}
		o.ManifestID = entity.StrPtr(target.ID)
		o.UpdatedAt = s.timestamp()
		if err := tx.UpdateShippingOrder(ctx, o, o.Status); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.logger.Info("Hand manifest created", zap.String("manifest_id", created.ID), zap.String("order_id", orderID))
	}
	s.logger.Info("Load target selected", zap.String("order_id", orderID), zap.Stringp("manifest_id", order.ManifestID))
	return order, nil
}

// LoadPallet checks a pallet onto the order's manifest, or takes it back off
// when checked is false. Repeating the current state is a no-op.
func (s *ShippingService) LoadPallet(ctx context.Context, orderID, palletID string, checked bool) (*entity.Pallet, error) {
	var pallet *entity.Pallet
	changed := false
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		changed = false
		o, _, err := s.lockOrder(ctx, tx, orderID, ActionLoad)
		if err != nil {
			return err
		}
		if o.ManifestID == nil {
			return invalidStatef("order %s has no load target", o.OrderRef)
		}
		p, err := tx.GetPallet(ctx, palletID, true)
		if err != nil {
			return notFound("pallet", palletID, err)
		}
		if !p.AssignedTo(orderID) {
			return invalidStatef("pallet %s is not picked for order %s", palletID, o.OrderRef)
		}
		if checked && p.Status != entity.PalletLoaded {
			m, err := tx.GetManifest(ctx, *o.ManifestID, true)
			if err != nil {
				return notFound("manifest", *o.ManifestID, err)
			}
			if !s.manifests.Can(m.Status, ActionAssign) {
				return fmt.Errorf("%w: manifest %s is %s", ErrNoOpenManifest, m.ID, m.Status)
			}
		}
		pallet = p

		var action Action
		switch {
		case checked && p.Status == entity.PalletLoaded:
			return nil
		case checked:
			if p.Status == entity.PalletReceived && !p.IsCrossDock {
				return invalidStatef("pallet %s must be put away before loading", palletID)
			}
			action = ActionLoad
		case p.Status != entity.PalletLoaded:
			if p.Status == entity.PalletStored || p.Status == entity.PalletReceived {
				return nil
			}
			return invalidStatef("pallet %s is %s", palletID, p.Status)
		case p.IsCrossDock:
			action = ActionUnloadCrossDock
		default:
			action = ActionUnload
		}

		next, err := s.pallets.Next(p.Status, action)
		if err != nil {
			return transitionErr(err)
		}
		from := p.Status
		p.Status = next
		if checked {
			p.ManifestID = entity.StrPtr(*o.ManifestID)
		} else {
			p.ManifestID = nil
		}
		if err := tx.UpdatePallet(ctx, p, from); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("Pallet load toggled", zap.String("pallet_id", palletID), zap.String("order_id", orderID), zap.Bool("checked", checked), zap.String("status", string(pallet.Status)))
		action := "unloaded"
		if checked {
			action = "loaded"
		}
		s.publisher.Publish(EventPalletUpdate, palletEvent(pallet, action))
	}
	return pallet, nil
}

// CloseManifestRequest 关单请求
type CloseManifestRequest struct {
	ManifestID    string `json:"manifest_id"`
	SignedFormRef string `json:"signed_form_ref"`
}

// CloseResult summarizes a committed shipment.
type CloseResult struct {
	Order         *entity.ShippingOrder `json:"order"`
	Manifest      *entity.Manifest      `json:"manifest"`
	ShippedCount  int                   `json:"shipped_count"`
	ShippedQty    int                   `json:"shipped_qty"`
	ReleasedCount int                   `json:"released_count"`
}

// CloseManifest ships every loaded pallet of a completed order against the
// signed form. All writes happen in one transaction; the notification goes
// out after the commit.
func (s *ShippingService) CloseManifest(ctx context.Context, orderID string, req *CloseManifestRequest) (*CloseResult, error) {
	ref := strings.TrimSpace(req.SignedFormRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: order %s", ErrMissingDocument, orderID)
	}
	var result *CloseResult
	var shipped, released []entity.Pallet
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		shipped = shipped[:0]
		released = released[:0]
		o, to, err := s.lockOrder(ctx, tx, orderID, ActionClose)
		if err != nil {
			return err
		}
		manifestID := req.ManifestID
		if manifestID == "" && o.ManifestID != nil {
			manifestID = *o.ManifestID
		}
		if manifestID == "" {
			return invalidStatef("order %s was never assigned a manifest", o.OrderRef)
		}
		if o.ManifestID == nil || *o.ManifestID != manifestID {
			return validationf("order %s is not loaded on manifest %s", o.OrderRef, manifestID)
		}
		m, err := tx.GetManifest(ctx, manifestID, true)
		if err != nil {
			return notFound("manifest", manifestID, err)
		}
		if m.Status != entity.ManifestOpen {
			return fmt.Errorf("%w: manifest %s is %s", ErrNoOpenManifest, manifestID, m.Status)
		}

		pallets, err := tx.ListPallets(ctx, repository.PalletFilter{ShippingOrderID: orderID})
		if err != nil {
			return err
		}
		now := s.timestamp()
		result = &CloseResult{}
		for i := range pallets {
			p := &pallets[i]
			switch p.Status {
			case entity.PalletLoaded:
				next, err := s.pallets.Next(p.Status, ActionShip)
				if err != nil {
					return transitionErr(err)
				}
				p.Status = next
				p.ShippedAt = &now
				if err := tx.UpdatePallet(ctx, p, entity.PalletLoaded); err != nil {
					return err
				}
				result.ShippedCount++
				result.ShippedQty += p.Qty
				shipped = append(shipped, *p)
			case entity.PalletStored, entity.PalletReceived:
				// 未装车的托盘退回库存；直通托盘改为普通托盘，可以上架
				from := p.Status
				p.ShippingOrderID = nil
				p.IsCrossDock = false
				if err := tx.UpdatePallet(ctx, p, from); err != nil {
					return err
				}
				result.ReleasedCount++
				released = append(released, *p)
			}
		}
		if result.ShippedCount == 0 {
			return validationf("order %s has no loaded pallets", o.OrderRef)
		}

		from := o.Status
		o.Status = to
		o.SignedFormRef = ref
		o.ShippedAt = &now
		o.UpdatedAt = now
		if err := tx.UpdateShippingOrder(ctx, o, from); err != nil {
			return err
		}
		if m.Type == entity.ManifestContainer {
			next, err := s.manifests.Next(m.Status, ActionClose)
			if err != nil {
				return transitionErr(err)
			}
			m.Status = next
			m.ClosedAt = &now
			if err := tx.UpdateManifest(ctx, m, entity.ManifestOpen); err != nil {
				return err
			}
		}
		result.Order = o
		result.Manifest = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Manifest closed",
		zap.String("order_id", orderID),
		zap.String("manifest_id", result.Manifest.ID),
		zap.Int("shipped", result.ShippedCount),
		zap.Int("released", result.ReleasedCount),
	)
	for i := range shipped {
		s.publisher.Publish(EventPalletUpdate, palletEvent(&shipped[i], "shipped"))
	}
	for i := range released {
		s.publisher.Publish(EventPalletUpdate, palletEvent(&released[i], "released"))
	}
	s.publisher.Publish(EventOrderUpdate, orderEvent("shipping", orderID, string(result.Order.Status)))
	s.notifier.Dispatch(shipmentMessage(result))
	return result, nil
}

func shipmentMessage(r *CloseResult) notify.Message {
	o := r.Order
	facts := map[string]string{
		"Order":    o.OrderRef,
		"Type":     string(o.ShipmentType),
		"Manifest": r.Manifest.ID,
		"Pallets":  fmt.Sprintf("%d", r.ShippedCount),
		"Units":    fmt.Sprintf("%d", r.ShippedQty),
	}
	if o.SealNum != "" {
		facts["Seal"] = o.SealNum
	}
	if r.Manifest.ContainerNum != nil {
		facts["Container"] = *r.Manifest.ContainerNum
	}
	return notify.Message{
		Subject:     fmt.Sprintf("Shipment %s shipped", o.OrderRef),
		Body:        fmt.Sprintf("Order %s shipped %d pallets (%d units) at %s.", o.OrderRef, r.ShippedCount, r.ShippedQty, o.ShippedAt.Format("2006-01-02 15:04 MST")),
		Attachments: []string{o.SignedFormRef},
		Facts:       facts,
	}
}
