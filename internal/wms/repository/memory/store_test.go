package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
)

func seedShipping(t *testing.T, s *Store, id string, created time.Time, status entity.ShippingStatus, item string, qty int) {
	t.Helper()
	o := &entity.ShippingOrder{
		ID:           id,
		OrderRef:     "REF-" + id,
		ShipmentType: entity.ShipmentContainerLoading,
		Status:       status,
		CreatedAt:    created,
		Lines:        []entity.ShippingOrderLine{{ID: id + "-l1", ItemID: item, RequestedQty: qty}},
	}
	if err := s.CreateShippingOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateShippingOrder: %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.CreatePallet(ctx, &entity.Pallet{ID: "p1", ItemID: "SKU1", Qty: 5, Status: entity.PalletReceived}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx = %v, want boom", err)
	}
	if _, err := s.GetPallet(ctx, "p1", false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("pallet survived rollback: %v", err)
	}

	err = s.WithTx(ctx, func(tx repository.Store) error {
		return tx.CreatePallet(ctx, &entity.Pallet{ID: "p2", ItemID: "SKU1", Qty: 5, Status: entity.PalletReceived})
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}
	if _, err := s.GetPallet(ctx, "p2", false); err != nil {
		t.Fatalf("committed pallet missing: %v", err)
	}
}

func TestUpdatePalletCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &entity.Pallet{ID: "p1", ItemID: "SKU1", Qty: 5, Status: entity.PalletReceived}
	if err := s.CreatePallet(ctx, p); err != nil {
		t.Fatal(err)
	}

	p.Status = entity.PalletStored
	if err := s.UpdatePallet(ctx, p, entity.PalletReceived); err != nil {
		t.Fatalf("first update: %v", err)
	}
	p.Status = entity.PalletLoaded
	if err := s.UpdatePallet(ctx, p, entity.PalletReceived); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("stale update = %v, want ErrConflict", err)
	}
	if err := s.DeletePallet(ctx, "p1", entity.PalletReceived); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("stale delete = %v, want ErrConflict", err)
	}
	if err := s.DeletePallet(ctx, "nope", entity.PalletReceived); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing delete = %v, want ErrNotFound", err)
	}
}

func TestListDemandOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	seedShipping(t, s, "b", t0, entity.ShippingPending, "SKU1", 10)
	seedShipping(t, s, "a", t0, entity.ShippingPicking, "SKU1", 10)
	seedShipping(t, s, "c", t0.Add(-time.Hour), entity.ShippingPending, "SKU1", 10)
	seedShipping(t, s, "d", t0.Add(-2*time.Hour), entity.ShippingLoading, "SKU1", 10)
	seedShipping(t, s, "e", t0.Add(-3*time.Hour), entity.ShippingPending, "SKU2", 10)

	got, err := s.ListDemand(ctx, "SKU1", []entity.ShippingStatus{entity.ShippingPending, entity.ShippingPicking}, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %d orders, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order %d = %s, want %s", i, got[i].ID, id)
		}
		if len(got[i].Lines) != 1 {
			t.Fatalf("order %s lines not loaded", got[i].ID)
		}
	}
}

func TestDeleteAllDroppedTable(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.DropTable("manifests")
	if err := s.DeleteAll(ctx, "manifests"); !errors.Is(err, repository.ErrTableNotFound) {
		t.Fatalf("DeleteAll dropped = %v, want ErrTableNotFound", err)
	}
	if err := s.DeleteAll(ctx, "pallets"); err != nil {
		t.Fatalf("DeleteAll pallets: %v", err)
	}
	if err := s.DeleteAll(ctx, "sessions"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	injected := errors.New("disk on fire")
	s.SetFault(func(op string) error {
		if op == "CreatePallet" {
			return injected
		}
		return nil
	})
	if err := s.CreatePallet(ctx, &entity.Pallet{ID: "p1"}); !errors.Is(err, injected) {
		t.Fatalf("CreatePallet = %v, want injected fault", err)
	}
	s.SetFault(nil)
	if err := s.CreatePallet(ctx, &entity.Pallet{ID: "p1", Status: entity.PalletReceived}); err != nil {
		t.Fatalf("CreatePallet after clearing fault: %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	ship := "s1"
	if err := s.CreatePallet(ctx, &entity.Pallet{ID: "p1", Status: entity.PalletReceived, ShippingOrderID: &ship}); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetPallet(ctx, "p1", false)
	*p.ShippingOrderID = "mutated"
	again, _ := s.GetPallet(ctx, "p1", false)
	if *again.ShippingOrderID != "s1" {
		t.Fatalf("store state leaked through returned pointer: %s", *again.ShippingOrderID)
	}
}
