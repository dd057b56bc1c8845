package service

import (
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
)

func TestPutAwayAndWriteOff(t *testing.T) {
	h := newHarness(t)
	_, line := h.receiving("SKU1", 100)
	p := h.confirm(line, 50)
	q := h.confirm(line, 50)

	if _, err := h.svc.Inventory.PutAway(h.ctx, p.ID, "nowhere"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown location: err = %v, want ErrValidation", err)
	}
	loc := h.location("B-02")
	if _, err := h.svc.Inventory.CreateLocation(h.ctx, &CreateLocationRequest{Code: "B-02"}); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate code: err = %v, want ErrValidation", err)
	}
	stored, err := h.svc.Inventory.PutAway(h.ctx, p.ID, loc.ID)
	if err != nil {
		t.Fatalf("PutAway: %v", err)
	}
	if stored.Status != entity.PalletStored || stored.LocationID == nil || *stored.LocationID != loc.ID {
		t.Errorf("stored = %+v", stored)
	}
	if _, err := h.svc.Inventory.PutAway(h.ctx, p.ID, loc.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("put away twice: err = %v, want ErrInvalidState", err)
	}

	if _, err := h.svc.Inventory.WriteOff(h.ctx, q.ID, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("missing reason: err = %v, want ErrValidation", err)
	}
	w, err := h.svc.Inventory.WriteOff(h.ctx, q.ID, "forklift damage")
	if err != nil {
		t.Fatalf("WriteOff: %v", err)
	}
	if w.Status != entity.PalletWriteOff {
		t.Errorf("status = %s, want WriteOff", w.Status)
	}
	if _, err := h.svc.Inventory.WriteOff(h.ctx, q.ID, "again"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("write off twice: err = %v, want ErrInvalidState", err)
	}

	list, err := h.svc.Inventory.ListPallets(h.ctx, repository.PalletFilter{Statuses: []entity.PalletStatus{entity.PalletStored}})
	if err != nil || len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("ListPallets = %+v, %v", list, err)
	}
	locs, err := h.svc.Inventory.ListLocations(h.ctx)
	if err != nil || len(locs) != 1 {
		t.Errorf("ListLocations = %+v, %v", locs, err)
	}
}
