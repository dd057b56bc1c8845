package service

import (
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
)

func TestCreateReceivingOrderValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name  string
		lines []ReceivingLineInput
	}{
		{"unknown item", []ReceivingLineInput{{ItemID: "NOPE", ExpectedQty: 10}}},
		{"inactive item", []ReceivingLineInput{{ItemID: "OLD", ExpectedQty: 10}}},
		{"zero qty", []ReceivingLineInput{{ItemID: "SKU1", ExpectedQty: 0}}},
		{"duplicate item", []ReceivingLineInput{{ItemID: "SKU1", ExpectedQty: 1}, {ItemID: "SKU1", ExpectedQty: 2}}},
		{"no lines", nil},
	}
	for _, tt := range tests {
		_, err := h.svc.Receiving.Create(h.ctx, &CreateReceivingOrderRequest{ContainerNum: "C1", Lines: tt.lines}, "u")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tt.name, err)
		}
	}
}

func TestTallyTwoFullPallets(t *testing.T) {
	h := newHarness(t)
	order, line := h.receiving("SKU1", 100)

	h.confirm(line, 50)
	h.confirm(line, 50)

	done, err := h.svc.Receiving.FinishTally(h.ctx, order.ID)
	if err != nil {
		t.Fatalf("FinishTally: %v", err)
	}
	if done.Status != entity.ReceivingStaged {
		t.Errorf("status = %s, want Staged", done.Status)
	}
	ps := h.pallets(repository.PalletFilter{ReceivingOrderID: order.ID})
	if len(ps) != 2 {
		t.Fatalf("pallets = %d, want 2", len(ps))
	}
	for _, p := range ps {
		if p.Qty != 50 || p.Status != entity.PalletReceived || p.IsCrossDock || p.ShippingOrderID != nil {
			t.Errorf("unexpected pallet %+v", p)
		}
	}
}

func TestConfirmPalletCapacity(t *testing.T) {
	h := newHarness(t)
	order, line := h.receiving("SKU1", 60) // two pallets, capacity 100

	for _, qty := range []int{0, -1, 51} {
		if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: qty}); !errors.Is(err, ErrValidation) {
			t.Errorf("qty %d: err = %v, want ErrValidation", qty, err)
		}
	}
	h.confirm(line, 50)
	h.confirm(line, 40)
	if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: 11}); !errors.Is(err, ErrValidation) {
		t.Fatalf("over capacity: err = %v, want ErrValidation", err)
	}
	h.confirm(line, 10)

	view, err := h.svc.Receiving.Get(h.ctx, order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	tally := view.Lines[0].Tally
	if tally.ConfirmedQty != 100 || tally.ConfirmedCount != 3 || tally.RemainingCapacity() != 0 {
		t.Errorf("tally = %+v", tally)
	}
}

func TestConfirmPalletRequiresUnloading(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.Receiving.Create(h.ctx, &CreateReceivingOrderRequest{
		ContainerNum: "C1",
		Lines:        []ReceivingLineInput{{ItemID: "SKU1", ExpectedQty: 50}},
	}, "u")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: order.Lines[0].ID, Qty: 10})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: "missing", Qty: 10}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing line: err = %v, want ErrNotFound", err)
	}
}

func TestConfirmPalletStaleCount(t *testing.T) {
	h := newHarness(t)
	_, line := h.receiving("SKU1", 100)
	seen := 0
	if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: 50, ExpectedCount: &seen}); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: 50, ExpectedCount: &seen})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want ErrConcurrencyConflict", err)
	}
	if n := len(h.pallets(repository.PalletFilter{})); n != 1 {
		t.Errorf("pallets = %d, want 1", n)
	}
}

func TestSelectForUnloadingIdempotent(t *testing.T) {
	h := newHarness(t)
	order, _ := h.receiving("SKU1", 10)

	writes := 0
	h.store.SetFault(func(op string) error {
		if op == "UpdateReceivingStatus" {
			writes++
		}
		return nil
	})
	got, err := h.svc.Receiving.SelectForUnloading(h.ctx, order.ID)
	if err != nil {
		t.Fatalf("second select: %v", err)
	}
	if got.Status != entity.ReceivingUnloading || writes != 0 {
		t.Errorf("status = %s, writes = %d; want Unloading and no write", got.Status, writes)
	}
}

func TestStatusChangesUseEngineClock(t *testing.T) {
	h := newHarness(t)
	order, _ := h.receiving("SKU1", 10)
	got, err := h.store.GetReceivingOrder(h.ctx, order.ID)
	if err != nil {
		t.Fatalf("GetReceivingOrder: %v", err)
	}
	if !got.UpdatedAt.After(order.CreatedAt) || got.UpdatedAt.Year() != 2024 {
		t.Errorf("receiving updated_at = %v, created_at = %v", got.UpdatedAt, order.CreatedAt)
	}

	ship := h.shipping("SO-CLK", entity.ShipmentContainerLoading, "SKU1", 10)
	if _, err := h.svc.Shipping.StartLoading(h.ctx, ship.ID); err != nil {
		t.Fatalf("StartLoading: %v", err)
	}
	o, err := h.store.GetShippingOrder(h.ctx, ship.ID, false)
	if err != nil {
		t.Fatalf("GetShippingOrder: %v", err)
	}
	if !o.UpdatedAt.After(ship.CreatedAt) || o.UpdatedAt.Year() != 2024 {
		t.Errorf("shipping updated_at = %v, created_at = %v", o.UpdatedAt, ship.CreatedAt)
	}
}

func TestFinishTally(t *testing.T) {
	h := newHarness(t)
	order, line := h.receiving("SKU1", 100)

	if _, err := h.svc.Receiving.FinishTally(h.ctx, order.ID); !errors.Is(err, ErrNothingConfirmed) {
		t.Fatalf("empty finish: err = %v, want ErrNothingConfirmed", err)
	}
	h.confirm(line, 30) // partial is fine
	if _, err := h.svc.Receiving.FinishTally(h.ctx, order.ID); err != nil {
		t.Fatalf("FinishTally: %v", err)
	}
	if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: 10}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("confirm after finish: err = %v, want ErrInvalidState", err)
	}
	if _, err := h.svc.Receiving.SelectForUnloading(h.ctx, order.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("reopen: err = %v, want ErrInvalidState", err)
	}
	if _, err := h.svc.Receiving.FinishTally(h.ctx, order.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("finish twice: err = %v, want ErrInvalidState", err)
	}
}

func TestFinishTallyReceivedTerminal(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ReceivingTerminalStatus = entity.ReceivingReceived })
	order, line := h.receiving("SKU1", 50)
	h.confirm(line, 50)
	done, err := h.svc.Receiving.FinishTally(h.ctx, order.ID)
	if err != nil {
		t.Fatalf("FinishTally: %v", err)
	}
	if done.Status != entity.ReceivingReceived {
		t.Errorf("status = %s, want Received", done.Status)
	}
}

func TestUndoPallet(t *testing.T) {
	h := newHarness(t)
	_, line := h.receiving("SKU1", 100)
	p1 := h.confirm(line, 50)
	p2 := h.confirm(line, 50)

	stale := 1
	if err := h.svc.Receiving.UndoPallet(h.ctx, p1.ID, &stale); !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("stale undo: err = %v, want ErrConcurrencyConflict", err)
	}
	count := 2
	if err := h.svc.Receiving.UndoPallet(h.ctx, p1.ID, &count); err != nil {
		t.Fatalf("UndoPallet: %v", err)
	}
	if _, err := h.store.GetPallet(h.ctx, p1.ID, false); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("undone pallet still present: %v", err)
	}

	loc := h.location("A-01")
	if _, err := h.svc.Inventory.PutAway(h.ctx, p2.ID, loc.ID); err != nil {
		t.Fatalf("PutAway: %v", err)
	}
	if err := h.svc.Receiving.UndoPallet(h.ctx, p2.ID, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("undo stored pallet: err = %v, want ErrInvalidState", err)
	}
}

func TestConfirmPalletRetriesUnavailableStore(t *testing.T) {
	h := newHarness(t)
	_, line := h.receiving("SKU1", 100)

	failed := false
	h.store.SetFault(func(op string) error {
		if op == "CreatePallet" && !failed {
			failed = true
			return repository.ErrStoreUnavailable
		}
		return nil
	})
	h.confirm(line, 50)
	if n := len(h.pallets(repository.PalletFilter{})); n != 1 {
		t.Fatalf("pallets = %d, want exactly 1 after retry", n)
	}

	h.store.SetFault(func(op string) error {
		if op == "CreatePallet" {
			return repository.ErrStoreUnavailable
		}
		return nil
	})
	if _, err := h.svc.Receiving.ConfirmPallet(h.ctx, &TallyRequest{LineID: line, Qty: 50}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	h.store.SetFault(nil)
	if n := len(h.pallets(repository.PalletFilter{})); n != 1 {
		t.Errorf("pallets = %d, want 1", n)
	}
}
