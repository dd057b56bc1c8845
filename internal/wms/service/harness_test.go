package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/shared/notify"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository/memory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeClock advances one minute per reading so creation order is strict.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Dispatch(msg notify.Message) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	p.events = append(p.events, eventType)
	p.mu.Unlock()
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	svc      *Services
	notifier *recordingNotifier
	events   *recordingPublisher
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	store := memory.New()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
	}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	o := Options{Now: clock.Now, StoreRetryBackoff: time.Millisecond}
	for _, fn := range opts {
		fn(&o)
	}
	h.svc = NewServices(Deps{
		Store:     store,
		Notifier:  h.notifier,
		Publisher: h.events,
		Logger:    zap.NewNop(),
	}, o)

	err := store.UpsertProducts(h.ctx, []entity.Product{
		{ItemID: "SKU1", Description: "Widget", UnitsPerPallet: 50, PalletPositions: decimal.NewFromInt(1), Active: true},
		{ItemID: "SKU2", Description: "Gadget", UnitsPerPallet: 10, PalletPositions: decimal.RequireFromString("0.5"), Active: true},
		{ItemID: "OLD", Description: "Retired", UnitsPerPallet: 10, PalletPositions: decimal.NewFromInt(1), Active: false},
	})
	if err != nil {
		t.Fatalf("seed products: %v", err)
	}
	return h
}

// receiving creates an order with one line for item and starts unloading it.
func (h *harness) receiving(item string, qty int) (*entity.ReceivingOrder, string) {
	h.t.Helper()
	order, err := h.svc.Receiving.Create(h.ctx, &CreateReceivingOrderRequest{
		ContainerNum: "CONT-" + item,
		Lines:        []ReceivingLineInput{{ItemID: item, ExpectedQty: qty}},
	}, "tester")
	if err != nil {
		h.t.Fatalf("create receiving order: %v", err)
	}
	if _, err := h.svc.Receiving.SelectForUnloading(h.ctx, order.ID); err != nil {
		h.t.Fatalf("select for unloading: %v", err)
	}
	return order, order.Lines[0].ID
}

func (h *harness) confirm(lineID string, qty int) *entity.Pallet {
	h.t.Helper()
	p, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: lineID, Qty: qty})
	if err != nil {
		h.t.Fatalf("confirm pallet %d on %s: %v", qty, lineID, err)
	}
	return p
}

func (h *harness) shipping(ref string, typ entity.ShipmentType, item string, qty int) *entity.ShippingOrder {
	h.t.Helper()
	seal := ""
	if typ == entity.ShipmentHandDelivery {
		seal = "SEAL-" + ref
	}
	o, err := h.svc.Shipping.Create(h.ctx, &CreateShippingOrderRequest{
		OrderRef:     ref,
		ShipmentType: typ,
		SealNum:      seal,
		Lines:        []ShippingLineInput{{ItemID: item, RequestedQty: qty}},
	}, "tester")
	if err != nil {
		h.t.Fatalf("create shipping order %s: %v", ref, err)
	}
	return o
}

func (h *harness) location(code string) *entity.Location {
	h.t.Helper()
	loc, err := h.svc.Inventory.CreateLocation(h.ctx, &CreateLocationRequest{Code: code, Zone: "A"})
	if err != nil {
		h.t.Fatalf("create location: %v", err)
	}
	return loc
}

// stored receives and puts away pallets of qty each.
func (h *harness) stored(item string, qtys ...int) []*entity.Pallet {
	h.t.Helper()
	total := 0
	for _, q := range qtys {
		total += q
	}
	order, line := h.receiving(item, total)
	loc := h.location("LOC-" + order.ID[:8])
	var out []*entity.Pallet
	for _, q := range qtys {
		p := h.confirm(line, q)
		p, err := h.svc.Inventory.PutAway(h.ctx, p.ID, loc.ID)
		if err != nil {
			h.t.Fatalf("put away: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func (h *harness) pallet(id string) *entity.Pallet {
	h.t.Helper()
	p, err := h.store.GetPallet(h.ctx, id, false)
	if err != nil {
		h.t.Fatalf("get pallet %s: %v", id, err)
	}
	return p
}

func (h *harness) pallets(f repository.PalletFilter) []entity.Pallet {
	h.t.Helper()
	ps, err := h.store.ListPallets(h.ctx, f)
	if err != nil {
		h.t.Fatalf("list pallets: %v", err)
	}
	return ps
}

func ids(ps ...*entity.Pallet) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
