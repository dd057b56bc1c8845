package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler 库存处理器
type InventoryHandler struct {
	svc *service.InventoryService
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// ListPallets 托盘列表
// GET /pallets?item_id=&status=Stored,Loaded&cross_dock=true&unassigned=true
func (h *InventoryHandler) ListPallets(c *gin.Context) {
	filter := repository.PalletFilter{
		ItemID:           c.Query("item_id"),
		ReceivingOrderID: c.Query("receiving_order_id"),
		ShippingOrderID:  c.Query("shipping_order_id"),
		ManifestID:       c.Query("manifest_id"),
		Unassigned:       c.Query("unassigned") == "true",
	}
	for _, st := range queryList(c, "status") {
		filter.Statuses = append(filter.Statuses, entity.PalletStatus(st))
	}
	if v := c.Query("cross_dock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(c, "cross_dock must be true or false")
			return
		}
		filter.CrossDock = &b
	}

	pallets, err := h.svc.ListPallets(c.Request.Context(), filter)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: pallets})
}

type putAwayRequest struct {
	LocationID string `json:"location_id" binding:"required"`
}

// PutAway 上架
func (h *InventoryHandler) PutAway(c *gin.Context) {
	var req putAwayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	pallet, err := h.svc.PutAway(c.Request.Context(), c.Param("id"), req.LocationID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pallet)
}

type writeOffRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// WriteOff 报损
func (h *InventoryHandler) WriteOff(c *gin.Context) {
	var req writeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	pallet, err := h.svc.WriteOff(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pallet)
}

// ListLocations 库位列表
func (h *InventoryHandler) ListLocations(c *gin.Context) {
	locations, err := h.svc.ListLocations(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: locations})
}

// CreateLocation 创建库位
func (h *InventoryHandler) CreateLocation(c *gin.Context) {
	var req service.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	location, err := h.svc.CreateLocation(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, location)
}
