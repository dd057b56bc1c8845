package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler 商品主数据处理器
type CatalogHandler struct {
	svc *service.CatalogService
}

// NewCatalogHandler 创建商品处理器
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// List 商品列表
func (h *CatalogHandler) List(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: products})
}

// Import 以 JSON 导入商品
func (h *CatalogHandler) Import(c *gin.Context) {
	var req service.ImportProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.ImportProducts(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// ImportFile 上传 Excel 或 CSV 导入商品
// POST /products/import-file  multipart: file, reset
func (h *CatalogHandler) ImportFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return
	}
	defer file.Close()

	reset := false
	if v := c.PostForm("reset"); v != "" {
		if reset, err = strconv.ParseBool(v); err != nil {
			BadRequest(c, "reset must be true or false")
			return
		}
	}

	result, err := h.svc.ImportProductsFile(c.Request.Context(), header.Filename, file, reset)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}
