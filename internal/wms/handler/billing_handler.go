package handler

import (
	"bytes"
	"fmt"

	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BillingHandler 计费报表处理器
type BillingHandler struct {
	svc    *service.BillingService
	logger *zap.Logger
}

// NewBillingHandler 创建计费处理器
func NewBillingHandler(svc *service.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{svc: svc, logger: logger}
}

// Report 计费汇总
// GET /billing/report?from=2024-03-01&to=2024-03-31
func (h *BillingHandler) Report(c *gin.Context) {
	rep, err := h.svc.Report(c.Request.Context(), c.Query("from"), c.Query("to"), nil)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"from":         rep.From,
		"to":           rep.To,
		"summary":      rep.Summary,
		"details":      rep.Details,
		"detail_total": rep.DetailTotal(),
	})
}

type exportRequest struct {
	From   string            `json:"from" binding:"required"`
	To     string            `json:"to" binding:"required"`
	Format string            `json:"format"`
	Notes  map[string]string `json:"notes"`
}

// Export 导出计费报表（csv 或 xlsx）
func (h *BillingHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	// 先写入缓冲区，出错时还能返回 JSON
	var buf bytes.Buffer
	var err error
	var contentType, ext string
	switch req.Format {
	case "", "csv":
		contentType, ext = "text/csv; charset=utf-8", "csv"
		err = h.svc.ExportCSV(c.Request.Context(), &buf, req.From, req.To, req.Notes)
	case "xlsx":
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
		err = h.svc.ExportXLSX(c.Request.Context(), &buf, req.From, req.To, req.Notes)
	default:
		BadRequest(c, "format must be csv or xlsx")
		return
	}
	if err != nil {
		ServiceError(c, err)
		return
	}

	h.logger.Info("billing export",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.String("format", ext),
		zap.String("user_id", GetUserID(c)),
		zap.Int("bytes", buf.Len()),
	)
	fileName := fmt.Sprintf("billing_%s_%s.%s", req.From, req.To, ext)
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(200, contentType, buf.Bytes())
}
