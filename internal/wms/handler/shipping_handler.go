package handler

import (
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// ShippingHandler 出库及装运单处理器
type ShippingHandler struct {
	svc *service.ShippingService
}

// NewShippingHandler 创建出库处理器
func NewShippingHandler(svc *service.ShippingService) *ShippingHandler {
	return &ShippingHandler{svc: svc}
}

// List 出库单列表
func (h *ShippingHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	orders, total, err := h.svc.List(c.Request.Context(), queryList(c, "status"), page, pageSize)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: orders, Pagination: newPagination(page, pageSize, total)})
}

// Create 创建出库单
func (h *ShippingHandler) Create(c *gin.Context) {
	var req service.CreateShippingOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	order, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, order)
}

// Get 出库单详情
func (h *ShippingHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, view)
}

type pickRequest struct {
	PalletIDs []string `json:"pallet_ids" binding:"required,min=1"`
}

// Pick 拣货：把在库托盘分配给出库单
func (h *ShippingHandler) Pick(c *gin.Context) {
	var req pickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	order, err := h.svc.Pick(c.Request.Context(), c.Param("id"), req.PalletIDs)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

// StartLoading 开始装货
func (h *ShippingHandler) StartLoading(c *gin.Context) {
	order, err := h.svc.StartLoading(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

// FinishLoading 完成装货
func (h *ShippingHandler) FinishLoading(c *gin.Context) {
	order, err := h.svc.FinishLoading(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

type loadTargetRequest struct {
	ManifestID string `json:"manifest_id"`
}

// SelectLoadTarget 选择装运单
func (h *ShippingHandler) SelectLoadTarget(c *gin.Context) {
	var req loadTargetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	order, err := h.svc.SelectLoadTarget(c.Request.Context(), c.Param("id"), req.ManifestID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

type loadPalletRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

// LoadPallet 勾选或取消勾选装车托盘
func (h *ShippingHandler) LoadPallet(c *gin.Context) {
	var req loadPalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	pallet, err := h.svc.LoadPallet(c.Request.Context(), c.Param("id"), c.Param("pallet_id"), *req.Checked)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, pallet)
}

// CloseManifest 凭签收单关单发货
func (h *ShippingHandler) CloseManifest(c *gin.Context) {
	var req service.CloseManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.CloseManifest(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// ListManifests 装运单列表
func (h *ShippingHandler) ListManifests(c *gin.Context) {
	filter := repository.ManifestFilter{
		Type:   entity.ManifestType(c.Query("type")),
		Status: entity.ManifestStatus(c.Query("status")),
	}
	manifests, err := h.svc.ListManifests(c.Request.Context(), filter)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: manifests})
}

// CreateManifest 创建装运单
func (h *ShippingHandler) CreateManifest(c *gin.Context) {
	var req service.CreateManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	manifest, err := h.svc.CreateManifest(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, manifest)
}

// GetManifest 装运单详情
func (h *ShippingHandler) GetManifest(c *gin.Context) {
	view, err := h.svc.GetManifest(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, view)
}

// CancelManifest 作废装运单
func (h *ShippingHandler) CancelManifest(c *gin.Context) {
	manifest, err := h.svc.CancelManifest(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, manifest)
}
