package billing

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/shopspring/decimal"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tp(s string) *time.Time {
	t := at(s)
	return &t
}

func fixture() Input {
	return Input{
		Products: map[string]entity.Product{
			"A": {ItemID: "A", PalletPositions: decimal.RequireFromString("1.5")},
			"B": {ItemID: "B", PalletPositions: decimal.RequireFromString("0.25")},
		},
		Orders: map[string]entity.ShippingOrder{
			"h1": {ID: "h1", OrderRef: "HAND-1", ShipmentType: entity.ShipmentHandDelivery},
			"h2": {ID: "h2", OrderRef: "HAND, \"2\"", ShipmentType: entity.ShipmentHandDelivery},
			"c1": {ID: "c1", OrderRef: "CONT-1", ShipmentType: entity.ShipmentContainerLoading},
		},
		Notes: map[string]string{"h1": "dock 3"},
		Pallets: []entity.Pallet{
			// stored, created before range
			{ID: "p1", ItemID: "A", Status: entity.PalletStored, CreatedAt: at("2024-02-20 08:00")},
			// stored, created in range
			{ID: "p2", ItemID: "B", Status: entity.PalletStored, CreatedAt: at("2024-03-02 08:00")},
			// stored after range end
			{ID: "p3", ItemID: "A", Status: entity.PalletStored, CreatedAt: at("2024-04-01 00:00")},
			// cross dock, hand delivery shipped in range
			{ID: "p4", ItemID: "A", Status: entity.PalletShipped, IsCrossDock: true, ShippingOrderID: entity.StrPtr("h1"),
				CreatedAt: at("2024-03-05 09:00"), ShippedAt: tp("2024-03-05 17:00")},
			{ID: "p5", ItemID: "B", Status: entity.PalletShipped, ShippingOrderID: entity.StrPtr("h1"),
				CreatedAt: at("2024-02-01 09:00"), ShippedAt: tp("2024-03-06 10:00")},
			{ID: "p6", ItemID: "A", Status: entity.PalletShipped, ShippingOrderID: entity.StrPtr("h2"),
				CreatedAt: at("2024-02-01 09:00"), ShippedAt: tp("2024-03-31 23:59")},
			// container, one normal and one cross dock
			{ID: "p7", ItemID: "A", Status: entity.PalletShipped, ShippingOrderID: entity.StrPtr("c1"),
				CreatedAt: at("2024-02-01 09:00"), ShippedAt: tp("2024-03-10 12:00")},
			{ID: "p8", ItemID: "B", Status: entity.PalletShipped, IsCrossDock: true, ShippingOrderID: entity.StrPtr("c1"),
				CreatedAt: at("2024-03-10 08:00"), ShippedAt: tp("2024-03-10 12:00")},
			// shipped outside range
			{ID: "p9", ItemID: "A", Status: entity.PalletShipped, ShippingOrderID: entity.StrPtr("h1"),
				CreatedAt: at("2024-02-01 09:00"), ShippedAt: tp("2024-04-01 00:00")},
			// unknown item weighs nothing
			{ID: "p10", ItemID: "ZZ", Status: entity.PalletStored, CreatedAt: at("2024-03-03 08:00")},
		},
	}
}

func march(t *testing.T) Range {
	t.Helper()
	r, err := ParseRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	return r
}

func wantDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestAggregate(t *testing.T) {
	rep := Aggregate(march(t), fixture())

	wantDec(t, "storage", rep.Summary.Storage, "1.75")
	wantDec(t, "standard inbound", rep.Summary.StandardInbound, "0.25")
	wantDec(t, "cross dock", rep.Summary.CrossDock, "1.75")
	wantDec(t, "standard outbound", rep.Summary.StandardOutbound, "1.5")
	wantDec(t, "hand delivery", rep.Summary.HandDelivery, "3.25")

	if len(rep.Details) != 2 {
		t.Fatalf("details = %d rows, want 2", len(rep.Details))
	}
	first := rep.Details[0]
	if first.OrderRef != "HAND-1" || first.DeliveryDate.Format(DateLayout) != "2024-03-06" || first.Notes != "dock 3" {
		t.Errorf("first row = %+v", first)
	}
	wantDec(t, "HAND-1 positions", first.PalletPositions, "1.75")
	if rep.Details[1].DeliveryDate.Format(DateLayout) != "2024-03-31" {
		t.Errorf("second row date = %s, want 2024-03-31", rep.Details[1].DeliveryDate.Format(DateLayout))
	}
}

func TestDetailTotalMatchesHandDelivery(t *testing.T) {
	in := fixture()
	for _, r := range []struct{ from, to string }{
		{"2024-03-01", "2024-03-31"},
		{"2024-03-05", "2024-03-05"},
		{"2024-03-06", "2024-04-30"},
		{"2023-01-01", "2025-01-01"},
	} {
		rng, err := ParseRange(r.from, r.to)
		if err != nil {
			t.Fatalf("ParseRange(%s, %s): %v", r.from, r.to, err)
		}
		rep := Aggregate(rng, in)
		if !rep.DetailTotal().Equal(rep.Summary.HandDelivery) {
			t.Errorf("%s..%s: detail total %s != hand delivery %s", r.from, r.to, rep.DetailTotal(), rep.Summary.HandDelivery)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	if _, err := ParseRange("2024-03-02", "2024-03-01"); err == nil {
		t.Fatal("expected error for reversed range")
	}
	if _, err := ParseRange("03/01/2024", "2024-03-01"); err == nil {
		t.Fatal("expected error for bad layout")
	}
	r, _ := ParseRange("2024-03-01", "2024-03-01")
	if !r.Contains(at("2024-03-01 00:00")) || !r.Contains(at("2024-03-01 23:59")) {
		t.Error("single-day range should contain the whole day")
	}
	if r.Contains(at("2024-03-02 00:00")) || r.Contains(at("2024-02-29 23:59")) {
		t.Error("single-day range leaks into neighbours")
	}
}

func TestEscapeField(t *testing.T) {
	tests := map[string]string{
		"plain":       "plain",
		"a,b":         `"a,b"`,
		`say "hi"`:    `"say ""hi"""`,
		"line\nbreak": "\"line\nbreak\"",
		"cr\rhere":    "\"cr\rhere\"",
		"":            "",
	}
	for in, want := range tests {
		if got := EscapeField(in); got != want {
			t.Errorf("EscapeField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	rep := Aggregate(march(t), fixture())
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rep); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(buf.String(), "\r\n")
	if len(lines) < 5 {
		t.Fatalf("csv too short: %q", buf.String())
	}
	wantSummary := "Storage Pallet Positions,1.75,Standard Inbound Pallet Positions,0.25,Cross Dock Pallet Positions,1.75," +
		"Standard Outbound Pallet Positions,1.50,Hand Delivery Pallet Positions,3.25"
	if lines[0] != wantSummary {
		t.Errorf("summary = %q", lines[0])
	}
	if lines[1] != "" {
		t.Errorf("line 2 = %q, want blank", lines[1])
	}
	if lines[2] != "Delivery Date,Shipping Order Ref,Total_Pallet_Positions,Notes" {
		t.Errorf("header = %q", lines[2])
	}
	if lines[3] != "2024-03-06,HAND-1,1.75,dock 3" {
		t.Errorf("row 1 = %q", lines[3])
	}
	if lines[4] != `2024-03-31,"HAND, ""2""",1.50,` {
		t.Errorf("row 2 = %q", lines[4])
	}
}

func TestBuildXLSX(t *testing.T) {
	rep := Aggregate(march(t), fixture())
	f, err := BuildXLSX(rep)
	if err != nil {
		t.Fatalf("BuildXLSX: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(detailSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("detail rows = %d, want 3", len(rows))
	}
	if rows[0][2] != "Total_Pallet_Positions" || rows[1][1] != "HAND-1" {
		t.Errorf("unexpected detail sheet: %v", rows)
	}
	label, _ := f.GetCellValue(summarySheet, "A6")
	if label != "Hand Delivery Pallet Positions" {
		t.Errorf("A6 = %q", label)
	}
}
