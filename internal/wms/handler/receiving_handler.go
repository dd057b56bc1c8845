package handler

import (
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// ReceivingHandler 入库及越库处理器
type ReceivingHandler struct {
	svc       *service.ReceivingService
	crossDock *service.CrossDockService
}

// NewReceivingHandler 创建入库处理器
func NewReceivingHandler(svc *service.ReceivingService, crossDock *service.CrossDockService) *ReceivingHandler {
	return &ReceivingHandler{svc: svc, crossDock: crossDock}
}

// List 入库单列表
func (h *ReceivingHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	orders, total, err := h.svc.List(c.Request.Context(), queryList(c, "status"), page, pageSize)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: orders, Pagination: newPagination(page, pageSize, total)})
}

// Create 创建入库单
func (h *ReceivingHandler) Create(c *gin.Context) {
	var req service.CreateReceivingOrderRequest
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

// Get 入库单详情
func (h *ReceivingHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, view)
}

// SelectForUnloading 选择入库单开始卸货
func (h *ReceivingHandler) SelectForUnloading(c *gin.Context) {
	order, err := h.svc.SelectForUnloading(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

// FinishTally 完成理货
func (h *ReceivingHandler) FinishTally(c *gin.Context) {
	order, err := h.svc.FinishTally(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

// ConfirmPallet 确认一个托盘
func (h *ReceivingHandler) ConfirmPallet(c *gin.Context) {
	var req service.TallyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.LineID = c.Param("id")
	pallet, err := h.svc.ConfirmPallet(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, pallet)
}

// UndoPallet 撤销理货托盘
func (h *ReceivingHandler) UndoPallet(c *gin.Context) {
	expected, ok := optionalInt(c, "expected_count")
	if !ok {
		BadRequest(c, "expected_count must be an integer")
		return
	}
	if err := h.svc.UndoPallet(c.Request.Context(), c.Param("id"), expected); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"id": c.Param("id")})
}

// ShipNow 越库：托盘直接分配给最早的出库需求
func (h *ReceivingHandler) ShipNow(c *gin.Context) {
	var req service.ShipNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.LineID = c.Param("id")
	result, err := h.crossDock.ShipNow(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, result)
}

// PreviewDemand 查看某商品的越库候选
func (h *ReceivingHandler) PreviewDemand(c *gin.Context) {
	candidates, err := h.crossDock.PreviewDemand(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: candidates})
}
