package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// CatalogService 商品主数据导入
type CatalogService struct {
	*engine
}

// ProductInput 导入的商品行
type ProductInput struct {
	ItemID          string          `json:"item_id" binding:"required"`
	Description     string          `json:"description"`
	UnitsPerPallet  int             `json:"units_per_pallet" binding:"required,gt=0"`
	PalletPositions decimal.Decimal `json:"pallet_positions"`
	Active          *bool           `json:"active"`
}

// ImportProductsRequest 导入请求
type ImportProductsRequest struct {
	Products []ProductInput `json:"products" binding:"required,min=1,dive"`
	Reset    bool           `json:"reset"`
}

// ImportResult 导入结果
type ImportResult struct {
	Imported      int      `json:"imported"`
	Reset         bool     `json:"reset"`
	Cleared       []string `json:"cleared"`
	SkippedTables []string `json:"skipped_tables"`
}

func toProducts(in []ProductInput) ([]entity.Product, error) {
	out := make([]entity.Product, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, p := range in {
		id := strings.TrimSpace(p.ItemID)
		if id == "" {
			return nil, validationf("row %d: item_id is required", i+1)
		}
		if seen[id] {
			return nil, validationf("row %d: duplicate item_id %s", i+1, id)
		}
		seen[id] = true
		if p.UnitsPerPallet <= 0 {
			return nil, validationf("row %d: units_per_pallet for %s must be positive", i+1, id)
		}
		if p.PalletPositions.IsNegative() {
			return nil, validationf("row %d: pallet_positions for %s must not be negative", i+1, id)
		}
		positions := p.PalletPositions
		if positions.IsZero() {
			// 未填写时按一个托位计费
			positions = decimal.NewFromInt(1)
		}
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		out = append(out, entity.Product{
			ItemID:          id,
			Description:     strings.TrimSpace(p.Description),
			UnitsPerPallet:  p.UnitsPerPallet,
			PalletPositions: positions,
			Active:          active,
		})
	}
	return out, nil
}

// ImportProducts upserts the catalog. With reset, every WMS table is cleared
// first in the same transaction; a missing table is skipped and any other
// failure rolls the whole import back.
func (s *CatalogService) ImportProducts(ctx context.Context, req *ImportProductsRequest) (*ImportResult, error) {
	products, err := toProducts(req.Products)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, validationf("no products to import")
	}

	var result *ImportResult
	err = s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		result = &ImportResult{Reset: req.Reset, Cleared: []string{}, SkippedTables: []string{}}
		if req.Reset {
			for _, table := range entity.Tables {
				err := tx.DeleteAll(ctx, table)
				switch {
				case err == nil:
					result.Cleared = append(result.Cleared, table)
				case errors.Is(err, repository.ErrTableNotFound):
					s.logger.Warn("Reset skipped missing table", zap.String("table", table))
					result.SkippedTables = append(result.SkippedTables, table)
				default:
					return fmt.Errorf("reset %s: %w", table, err)
				}
			}
		}
		if err := tx.UpsertProducts(ctx, products); err != nil {
			return fmt.Errorf("upsert products: %w", err)
		}
		result.Imported = len(products)
		return nil
	})
	if err != nil {
		s.logger.Error("Catalog import failed", zap.Bool("reset", req.Reset), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Catalog imported",
		zap.Int("products", result.Imported),
		zap.Bool("reset", result.Reset),
		zap.Strings("skipped_tables", result.SkippedTables),
	)
	return result, nil
}

var productColumns = map[string]string{
	"item_id":          "item_id",
	"itemid":           "item_id",
	"item":             "item_id",
	"sku":              "item_id",
	"description":      "description",
	"units_per_pallet": "units_per_pallet",
	"unitsperpallet":   "units_per_pallet",
	"pallet_positions": "pallet_positions",
	"palletpositions":  "pallet_positions",
	"active":           "active",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "-", "_")
}

func parseActive(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "1", "true", "yes", "y", "是":
		return true, nil
	case "0", "false", "no", "n", "否":
		return false, nil
	}
	return false, fmt.Errorf("bad active flag %q", v)
}

// ParseProductsXLSX reads the first sheet of a product master workbook.
// Columns are matched by header name.
func ParseProductsXLSX(r io.Reader) ([]ProductInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, validationf("read excel: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, validationf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, validationf("read sheet %s: %v", sheets[0], err)
	}
	return parseProductRows(rows, "sheet "+sheets[0])
}

// ParseProductsCSV reads a product master CSV. Files exported by Chinese
// Excel are GBK encoded; anything that is not valid UTF-8 is decoded as GBK.
func ParseProductsCSV(r io.Reader) ([]ProductInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, validationf("read csv: %v", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// GBK → UTF-8
		src = transform.NewReader(src, simplifiedchinese.GBK.NewDecoder())
	}
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, validationf("parse csv: %v", err)
	}
	return parseProductRows(rows, "csv")
}

func parseProductRows(rows [][]string, source string) ([]ProductInput, error) {
	if len(rows) < 2 {
		return nil, validationf("%s has no product rows", source)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		if name, ok := productColumns[normalizeHeader(h)]; ok {
			cols[name] = i
		}
	}
	for _, required := range []string{"item_id", "units_per_pallet"} {
		if _, ok := cols[required]; !ok {
			return nil, validationf("missing column %s", required)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []ProductInput
	for n, row := range rows[1:] {
		line := n + 2
		if cell(row, "item_id") == "" && cell(row, "units_per_pallet") == "" {
			continue
		}
		upp, err := strconv.Atoi(cell(row, "units_per_pallet"))
		if err != nil {
			return nil, validationf("row %d: units_per_pallet %q is not an integer", line, cell(row, "units_per_pallet"))
		}
		positions := decimal.NewFromInt(1)
		if v := cell(row, "pallet_positions"); v != "" {
			positions, err = decimal.NewFromString(v)
			if err != nil {
				return nil, validationf("row %d: pallet_positions %q is not a number", line, v)
			}
		}
		active, err := parseActive(cell(row, "active"))
		if err != nil {
			return nil, validationf("row %d: %v", line, err)
		}
		out = append(out, ProductInput{
			ItemID:          cell(row, "item_id"),
			Description:     cell(row, "description"),
			UnitsPerPallet:  upp,
			PalletPositions: positions,
			Active:          &active,
		})
	}
	return out, nil
}

// ImportProductsXLSX parses the workbook and imports it.
func (s *CatalogService) ImportProductsXLSX(ctx context.Context, r io.Reader, reset bool) (*ImportResult, error) {
	products, err := ParseProductsXLSX(r)
	if err != nil {
		return nil, err
	}
	return s.ImportProducts(ctx, &ImportProductsRequest{Products: products, Reset: reset})
}

// ImportProductsFile picks the parser from the file extension (.xlsx or .csv).
func (s *CatalogService) ImportProductsFile(ctx context.Context, fileName string, r io.Reader, reset bool) (*ImportResult, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return s.ImportProductsXLSX(ctx, r, reset)
	case ".csv":
		products, err := ParseProductsCSV(r)
		if err != nil {
			return nil, err
		}
		return s.ImportProducts(ctx, &ImportProductsRequest{Products: products, Reset: reset})
	}
	return nil, validationf("unsupported product file %q, want .xlsx or .csv", fileName)
}

// ListProducts 商品列表
func (s *CatalogService) ListProducts(ctx context.Context, activeOnly bool) ([]entity.Product, error) {
	var out []entity.Product
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		out, err = st.ListProducts(ctx, activeOnly)
		return err
	})
	if out == nil {
		out = []entity.Product{}
	}
	return out, err
}
