package handler_test

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/handler"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository/memory"
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/bitfantasy/nimo-wms/internal/wms/sse"
	"github.com/bitfantasy/nimo-wms/internal/wms/testutil"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const base = "/api/v1/wms"

type env struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
	hub    *sse.Hub
	token  string
}

func setup(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	testutil.SeedProduct(t, store, "SKU1", 50, "1")
	testutil.SeedProduct(t, store, "SKU2", 10, "0.5")

	hub := sse.NewHub(nil)
	svc := service.NewServices(service.Deps{Store: store, Publisher: hub}, service.Options{StoreRetryBackoff: time.Millisecond})
	h := handler.NewHandlers(svc, hub, nil)

	r := testutil.SetupRouter()
	h.RegisterRoutes(testutil.AuthGroup(r, base))
	return &env{t: t, router: r, store: store, hub: hub, token: testutil.DefaultTestToken()}
}

// do sends a JSON request and checks the HTTP status.
func (e *env) do(method, path string, body interface{}, wantStatus int) map[string]interface{} {
	e.t.Helper()
	w := testutil.DoRequest(e.router, method, base+path, body, e.token)
	if w.Code != wantStatus {
		e.t.Fatalf("%s %s: status %d, want %d, body %s", method, path, w.Code, wantStatus, w.Body.String())
	}
	return testutil.ParseResponse(w)
}

func (e *env) id(resp map[string]interface{}) string {
	e.t.Helper()
	id, _ := testutil.Data(resp)["id"].(string)
	if id == "" {
		e.t.Fatalf("response has no id: %v", resp)
	}
	return id
}

// receive creates a receiving order for item, starts unloading and returns
// the order and line ids.
func (e *env) receive(item string, qty int) (string, string) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/receiving-orders", map[string]interface{}{
		"container_num": "MSCU1234567",
		"lines":         []map[string]interface{}{{"item_id": item, "expected_qty": qty}},
	}, http.StatusCreated)
	orderID := e.id(resp)
	e.do(http.MethodPost, "/receiving-orders/"+orderID+"/unload", nil, http.StatusOK)

	view := testutil.Data(e.do(http.MethodGet, "/receiving-orders/"+orderID, nil, http.StatusOK))
	lines, _ := view["lines"].([]interface{})
	if len(lines) != 1 {
		e.t.Fatalf("lines = %v", view["lines"])
	}
	return orderID, lines[0].(map[string]interface{})["id"].(string)
}

// storedPallets tallies and puts away one pallet per qty.
func (e *env) storedPallets(item string, qtys ...int) []string {
	e.t.Helper()
	total := 0
	for _, q := range qtys {
		total += q
	}
	orderID, lineID := e.receive(item, total)
	loc := e.id(e.do(http.MethodPost, "/locations", map[string]interface{}{"code": fmt.Sprintf("A-%d", time.Now().UnixNano())}, http.StatusCreated))

	var ids []string
	for _, q := range qtys {
		ids = append(ids, e.id(e.do(http.MethodPost, "/receiving-lines/"+lineID+"/pallets", map[string]interface{}{"qty": q}, http.StatusCreated)))
	}
	e.do(http.MethodPost, "/receiving-orders/"+orderID+"/finish-tally", nil, http.StatusOK)
	for _, id := range ids {
		e.do(http.MethodPost, "/pallets/"+id+"/put-away", map[string]interface{}{"location_id": loc}, http.StatusOK)
	}
	return ids
}

func code(resp map[string]interface{}) int {
	c, _ := resp["code"].(float64)
	return int(c)
}

func TestAuthRequired(t *testing.T) {
	e := setup(t)
	w := testutil.DoRequest(e.router, http.MethodGet, base+"/receiving-orders", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := code(testutil.ParseResponse(w)); got != 40100 {
		t.Errorf("code = %d, want 40100", got)
	}
}

func TestReceivingFlow(t *testing.T) {
	e := setup(t)
	orderID, lineID := e.receive("SKU1", 120)

	p1 := e.id(e.do(http.MethodPost, "/receiving-lines/"+lineID+"/pallets", map[string]interface{}{"qty": 50}, http.StatusCreated))
	e.do(http.MethodPost, "/receiving-lines/"+lineID+"/pallets", map[string]interface{}{"qty": 50, "expected_count": 1}, http.StatusCreated)

	// 过期的理货计数
	resp := e.do(http.MethodPost, "/receiving-lines/"+lineID+"/pallets", map[string]interface{}{"qty": 20, "expected_count": 1}, http.StatusConflict)
	if code(resp) != handler.CodeConflict {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeConflict)
	}

	// 超过每托数量
	resp = e.do(http.MethodPost, "/receiving-lines/"+lineID+"/pallets", map[string]interface{}{"qty": 51}, http.StatusBadRequest)
	if code(resp) != handler.CodeValidation {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeValidation)
	}

	e.do(http.MethodDelete, "/pallets/"+p1+"?expected_count=2", nil, http.StatusOK)
	view := testutil.Data(e.do(http.MethodGet, "/receiving-orders/"+orderID, nil, http.StatusOK))
	if got := view["confirmed_count"].(float64); got != 1 {
		t.Errorf("confirmed_count = %v, want 1", got)
	}

	order := testutil.Data(e.do(http.MethodPost, "/receiving-orders/"+orderID+"/finish-tally", nil, http.StatusOK))
	if order["status"] != "Staged" {
		t.Errorf("status = %v, want Staged", order["status"])
	}

	list := testutil.Data(e.do(http.MethodGet, "/receiving-orders?status=Staged", nil, http.StatusOK))
	if items := list["items"].([]interface{}); len(items) != 1 {
		t.Errorf("staged orders = %d, want 1", len(items))
	}
}

func TestFinishTallyWithoutPallets(t *testing.T) {
	e := setup(t)
	orderID, _ := e.receive("SKU1", 10)
	resp := e.do(http.MethodPost, "/receiving-orders/"+orderID+"/finish-tally", nil, http.StatusUnprocessableEntity)
	if code(resp) != handler.CodeNothingConfirmed {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeNothingConfirmed)
	}
}

func TestNotFound(t *testing.T) {
	e := setup(t)
	resp := e.do(http.MethodGet, "/shipping-orders/missing", nil, http.StatusNotFound)
	if code(resp) != handler.CodeNotFound {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeNotFound)
	}
}

func TestShipNow(t *testing.T) {
	e := setup(t)
	_, lineID := e.receive("SKU1", 50)

	resp := e.do(http.MethodPost, "/receiving-lines/"+lineID+"/ship-now", map[string]interface{}{"qty": 40}, http.StatusUnprocessableEntity)
	if code(resp) != handler.CodeNoEligibleDemand {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeNoEligibleDemand)
	}

	orderID := e.id(e.do(http.MethodPost, "/shipping-orders", map[string]interface{}{
		"order_ref":     "SO-1",
		"shipment_type": "Container_Loading",
		"lines":         []map[string]interface{}{{"item_id": "SKU1", "requested_qty": 30}},
	}, http.StatusCreated))

	demand := testutil.Data(e.do(http.MethodGet, "/demand/SKU1", nil, http.StatusOK))
	if items := demand["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("demand = %v", demand)
	}

	res := testutil.Data(e.do(http.MethodPost, "/receiving-lines/"+lineID+"/ship-now", map[string]interface{}{"qty": 40}, http.StatusCreated))
	if res["shipping_order_id"] != orderID {
		t.Errorf("shipping_order_id = %v, want %s", res["shipping_order_id"], orderID)
	}
	if res["allocated_qty"].(float64) != 30 || res["excess_qty"].(float64) != 10 {
		t.Errorf("allocated/excess = %v/%v, want 30/10", res["allocated_qty"], res["excess_qty"])
	}
	cd := res["cross_dock"].(map[string]interface{})
	if cd["is_cross_dock"] != true || cd["shipping_order_id"] != orderID {
		t.Errorf("cross dock pallet = %v", cd)
	}
}

func TestHandDeliveryOverHTTP(t *testing.T) {
	e := setup(t)
	pallets := e.storedPallets("SKU1", 50, 50)

	resp := e.do(http.MethodPost, "/shipping-orders", map[string]interface{}{
		"order_ref":     "HD-1",
		"shipment_type": "Hand_Delivery",
		"lines":         []map[string]interface{}{{"item_id": "SKU1", "requested_qty": 100}},
	}, http.StatusBadRequest)
	if code(resp) != handler.CodeValidation {
		t.Errorf("hand delivery without seal: code = %d", code(resp))
	}

	orderID := e.id(e.do(http.MethodPost, "/shipping-orders", map[string]interface{}{
		"order_ref":     "HD-1",
		"shipment_type": "Hand_Delivery",
		"seal_num":      "SEAL-9",
		"lines":         []map[string]interface{}{{"item_id": "SKU1", "requested_qty": 100}},
	}, http.StatusCreated))

	path := "/shipping-orders/" + orderID
	e.do(http.MethodPost, path+"/pick", map[string]interface{}{"pallet_ids": pallets}, http.StatusOK)
	e.do(http.MethodPost, path+"/start-loading", nil, http.StatusOK)
	order := testutil.Data(e.do(http.MethodPost, path+"/load-target", nil, http.StatusOK))
	if order["manifest_id"] == nil {
		t.Fatalf("no manifest selected: %v", order)
	}
	for _, p := range pallets {
		e.do(http.MethodPut, path+"/pallets/"+p+"/loaded", map[string]interface{}{"checked": true}, http.StatusOK)
	}
	e.do(http.MethodPost, path+"/finish-loading", nil, http.StatusOK)

	resp = e.do(http.MethodPost, path+"/close", map[string]interface{}{}, http.StatusUnprocessableEntity)
	if code(resp) != handler.CodeMissingDocument {
		t.Errorf("close without form: code = %d, want %d", code(resp), handler.CodeMissingDocument)
	}

	w := testutil.DoUpload(e.router, base+"/documents/signed_forms", "signed.pdf", strings.NewReader("%PDF-1.4"), nil, e.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d, body %s", w.Code, w.Body.String())
	}
	ref := testutil.Data(testutil.ParseResponse(w))["ref"].(string)

	res := testutil.Data(e.do(http.MethodPost, path+"/close", map[string]interface{}{"signed_form_ref": ref}, http.StatusOK))
	if res["shipped_count"].(float64) != 2 || res["shipped_qty"].(float64) != 100 {
		t.Errorf("close result = %v", res)
	}
	shipped := res["order"].(map[string]interface{})
	if shipped["status"] != "Shipped" || shipped["signed_form_ref"] != ref {
		t.Errorf("order = %v", shipped)
	}

	list := testutil.Data(e.do(http.MethodGet, "/pallets?status=Shipped", nil, http.StatusOK))
	if items := list["items"].([]interface{}); len(items) != 2 {
		t.Errorf("shipped pallets = %d, want 2", len(items))
	}
}

func TestContainerLoadingNeedsManifest(t *testing.T) {
	e := setup(t)
	pallets := e.storedPallets("SKU2", 10)
	orderID := e.id(e.do(http.MethodPost, "/shipping-orders", map[string]interface{}{
		"order_ref":     "CL-1",
		"shipment_type": "Container_Loading",
		"lines":         []map[string]interface{}{{"item_id": "SKU2", "requested_qty": 10}},
	}, http.StatusCreated))
	path := "/shipping-orders/" + orderID
	e.do(http.MethodPost, path+"/pick", map[string]interface{}{"pallet_ids": pallets}, http.StatusOK)
	e.do(http.MethodPost, path+"/start-loading", nil, http.StatusOK)

	resp := e.do(http.MethodPost, path+"/load-target", nil, http.StatusUnprocessableEntity)
	if code(resp) != handler.CodeNoOpenManifest {
		t.Errorf("code = %d, want %d", code(resp), handler.CodeNoOpenManifest)
	}

	manifestID := e.id(e.do(http.MethodPost, "/manifests", map[string]interface{}{"type": "Container", "container_num": "TGHU7654321"}, http.StatusCreated))
	order := testutil.Data(e.do(http.MethodPost, path+"/load-target", map[string]interface{}{"manifest_id": manifestID}, http.StatusOK))
	if order["manifest_id"] != manifestID {
		t.Errorf("manifest_id = %v, want %s", order["manifest_id"], manifestID)
	}
	e.do(http.MethodPut, path+"/pallets/"+pallets[0]+"/loaded", map[string]interface{}{"checked": true}, http.StatusOK)

	resp = e.do(http.MethodPost, "/manifests/"+manifestID+"/cancel", nil, http.StatusConflict)
	if code(resp) != handler.CodeInvalidState {
		t.Errorf("cancel loaded manifest: code = %d, want %d", code(resp), handler.CodeInvalidState)
	}

	view := testutil.Data(e.do(http.MethodGet, "/manifests/"+manifestID, nil, http.StatusOK))
	if view["loaded_qty"].(float64) != 10 {
		t.Errorf("loaded_qty = %v, want 10", view["loaded_qty"])
	}
}

func TestWriteOffRequiresSupervisor(t *testing.T) {
	e := setup(t)
	pallets := e.storedPallets("SKU1", 20)

	w := testutil.DoRequest(e.router, http.MethodPost, base+"/pallets/"+pallets[0]+"/write-off", map[string]string{"reason": "damaged"}, testutil.OperatorToken())
	if w.Code != http.StatusForbidden {
		t.Fatalf("operator write-off: status %d, want 403", w.Code)
	}

	p := testutil.Data(e.do(http.MethodPost, "/pallets/"+pallets[0]+"/write-off", map[string]string{"reason": "damaged"}, http.StatusOK))
	if p["status"] != "WriteOff" {
		t.Errorf("status = %v, want WriteOff", p["status"])
	}
}

func TestBillingExportCSV(t *testing.T) {
	e := setup(t)
	e.storedPallets("SKU2", 10)
	today := time.Now().UTC().Format("2006-01-02")

	w := testutil.DoRequest(e.router, http.MethodPost, base+"/billing/export", map[string]interface{}{"from": today, "to": today}, e.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "billing_"+today) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "Storage Pallet Positions,0.50,Standard Inbound Pallet Positions,0.50,") {
		t.Errorf("summary line = %q", strings.SplitN(body, "\r\n", 2)[0])
	}

	w = testutil.DoRequest(e.router, http.MethodPost, base+"/billing/export", map[string]interface{}{"from": today, "to": today, "format": "xlsx"}, e.token)
	if w.Code != http.StatusOK {
		t.Fatalf("xlsx status %d", w.Code)
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("Summary"); idx < 0 {
		t.Error("workbook has no Summary sheet")
	}

	resp := e.do(http.MethodGet, "/billing/report?from="+today+"&to=2000-01-01", nil, http.StatusBadRequest)
	if code(resp) != handler.CodeValidation {
		t.Errorf("inverted range: code = %d", code(resp))
	}
}

func TestImportProductsXLSX(t *testing.T) {
	e := setup(t)
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Item ID", "Description", "Units Per Pallet", "Pallet Positions"},
		{"NEW-1", "Crate", 24, "1.5"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetSheetRow("Sheet1", cell, &row)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	data := buf.Bytes()

	w := testutil.DoUpload(e.router, base+"/products/import-file", "products.xlsx", bytes.NewReader(data), map[string]string{"reset": "false"}, testutil.OperatorToken())
	if w.Code != http.StatusForbidden {
		t.Fatalf("operator import: status %d, want 403", w.Code)
	}

	w = testutil.DoUpload(e.router, base+"/products/import-file", "products.xlsx", bytes.NewReader(data), map[string]string{"reset": "false"}, e.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if got := testutil.Data(testutil.ParseResponse(w))["imported"].(float64); got != 1 {
		t.Errorf("imported = %v, want 1", got)
	}

	list := testutil.Data(e.do(http.MethodGet, "/products", nil, http.StatusOK))
	if items := list["items"].([]interface{}); len(items) != 3 {
		t.Errorf("products = %d, want 3", len(items))
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", service.ErrValidation), 40000},
		{service.ErrConcurrencyConflict, 40901},
		{service.ErrStoreUnavailable, 50300},
		{fmt.Errorf("boom"), 50000},
	}
	for _, tc := range cases {
		if got := handler.ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
