package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/middleware"
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/bitfantasy/nimo-wms/internal/wms/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Receiving *ReceivingHandler
	Shipping  *ShippingHandler
	Inventory *InventoryHandler
	Billing   *BillingHandler
	Catalog   *CatalogHandler
	Document  *DocumentHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Receiving: NewReceivingHandler(svc.Receiving, svc.CrossDock),
		Shipping:  NewShippingHandler(svc.Shipping),
		Inventory: NewInventoryHandler(svc.Inventory),
		Billing:   NewBillingHandler(svc.Billing, logger),
		Catalog:   NewCatalogHandler(svc.Catalog),
		Document:  NewDocumentHandler(svc.Documents),
		SSE:       NewSSEHandler(hub),
	}
}

// RegisterRoutes mounts the WMS API on an authenticated group.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	// 入库
	recv := api.Group("/receiving-orders")
	{
		recv.GET("", h.Receiving.List)
		recv.POST("", h.Receiving.Create)
		recv.GET("/:id", h.Receiving.Get)
		recv.POST("/:id/unload", h.Receiving.SelectForUnloading)
		recv.POST("/:id/finish-tally", h.Receiving.FinishTally)
	}
	lines := api.Group("/receiving-lines")
	{
		lines.POST("/:id/pallets", h.Receiving.ConfirmPallet)
		lines.POST("/:id/ship-now", h.Receiving.ShipNow)
	}
	api.GET("/demand/:item_id", h.Receiving.PreviewDemand)

	// 出库
	ship := api.Group("/shipping-orders")
	{
		ship.GET("", h.Shipping.List)
		ship.POST("", h.Shipping.Create)
		ship.GET("/:id", h.Shipping.Get)
		ship.POST("/:id/pick", h.Shipping.Pick)
		ship.POST("/:id/start-loading", h.Shipping.StartLoading)
		ship.POST("/:id/load-target", h.Shipping.SelectLoadTarget)
		ship.PUT("/:id/pallets/:pallet_id/loaded", h.Shipping.LoadPallet)
		ship.POST("/:id/finish-loading", h.Shipping.FinishLoading)
		ship.POST("/:id/close", h.Shipping.CloseManifest)
	}
	manifests := api.Group("/manifests")
	{
		manifests.GET("", h.Shipping.ListManifests)
		manifests.POST("", h.Shipping.CreateManifest)
		manifests.GET("/:id", h.Shipping.GetManifest)
		manifests.POST("/:id/cancel", h.Shipping.CancelManifest)
	}

	// 库存
	pallets := api.Group("/pallets")
	{
		pallets.GET("", h.Inventory.ListPallets)
		pallets.DELETE("/:id", h.Receiving.UndoPallet)
		pallets.POST("/:id/put-away", h.Inventory.PutAway)
		pallets.POST("/:id/write-off", middleware.RequireRole(middleware.RoleSupervisor), h.Inventory.WriteOff)
	}
	locations := api.Group("/locations")
	{
		locations.GET("", h.Inventory.ListLocations)
		locations.POST("", middleware.RequireRole(middleware.RoleSupervisor), h.Inventory.CreateLocation)
	}

	// 计费
	billing := api.Group("/billing", middleware.RequireRole(middleware.RoleSupervisor))
	{
		billing.GET("/report", h.Billing.Report)
		billing.POST("/export", h.Billing.Export)
	}

	// 商品主数据
	products := api.Group("/products")
	{
		products.GET("", h.Catalog.List)
		products.POST("/import", middleware.RequireRole(middleware.RoleAdmin), h.Catalog.Import)
		products.POST("/import-file", middleware.RequireRole(middleware.RoleAdmin), h.Catalog.ImportFile)
	}

	// 文件
	api.POST("/documents/:folder", h.Document.Upload)
	api.GET("/documents/url", h.Document.URL)

	// SSE
	api.GET("/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, size int, total int64) *Pagination {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &Pagination{Page: page, PageSize: size, Total: int(total), TotalPages: pages}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Business codes for service errors
const (
	CodeValidation       = 40000
	CodeNotFound         = 40400
	CodeInvalidState     = 40900
	CodeConflict         = 40901
	CodeNothingConfirmed = 42201
	CodeNoEligibleDemand = 42202
	CodeNoOpenManifest   = 42203
	CodeMissingDocument  = 42204
	CodeStoreUnavailable = 50300
)

var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrValidation, CodeValidation},
	{service.ErrNotFound, CodeNotFound},
	{service.ErrInvalidState, CodeInvalidState},
	{service.ErrConcurrencyConflict, CodeConflict},
	{service.ErrNothingConfirmed, CodeNothingConfirmed},
	{service.ErrNoEligibleDemand, CodeNoEligibleDemand},
	{service.ErrNoOpenManifest, CodeNoOpenManifest},
	{service.ErrMissingDocument, CodeMissingDocument},
	{service.ErrStoreUnavailable, CodeStoreUnavailable},
}

// ErrorCode maps a service error to its business code.
func ErrorCode(err error) int {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return 50000
}

// ServiceError 把服务层错误转换为响应
func ServiceError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := ErrorCode(err)
	if code == 50000 {
		InternalError(c, "internal error")
		return
	}
	Error(c, code, err.Error())
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// optionalInt parses an optional integer query parameter.
func optionalInt(c *gin.Context, key string) (*int, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// queryList splits repeated or comma separated query values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
