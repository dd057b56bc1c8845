package handler

import (
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 20 << 20

// DocumentHandler 文件上传处理器
type DocumentHandler struct {
	svc *service.DocumentService
}

// NewDocumentHandler 创建文件处理器
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload 上传签收单或托盘照片
// POST /documents/:folder  multipart: file
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		BadRequest(c, "文件大小不能超过20MB")
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), c.Param("folder"), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, result)
}

// URL 获取文件下载地址
func (h *DocumentHandler) URL(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		BadRequest(c, "ref is required")
		return
	}
	url, err := h.svc.URL(c.Request.Context(), ref)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"ref": ref, "url": url})
}
