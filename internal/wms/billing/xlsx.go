package billing

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Hand Delivery"
)

// BuildXLSX renders the report as a workbook with a summary sheet and the
// hand delivery detail sheet.
func BuildXLSX(rep Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	numStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})

	// 汇总
	f.SetCellValue(summarySheet, "A1", "Period")
	f.SetCellValue(summarySheet, "B1", fmt.Sprintf("%s ~ %s", rep.From.Format(DateLayout), rep.To.Format(DateLayout)))
	f.SetCellStyle(summarySheet, "A1", "A1", boldStyle)
	fields := summaryFields(rep.Summary)
	for i := 0; i+1 < len(fields); i += 2 {
		row := i/2 + 2
		label := fmt.Sprintf("A%d", row)
		value := fmt.Sprintf("B%d", row)
		f.SetCellValue(summarySheet, label, fields[i])
		f.SetCellStyle(summarySheet, label, label, boldStyle)
		f.SetCellValue(summarySheet, value, summaryValue(rep.Summary, i/2))
		f.SetCellStyle(summarySheet, value, value, numStyle)
	}
	f.SetColWidth(summarySheet, "A", "A", 36)
	f.SetColWidth(summarySheet, "B", "B", 24)

	// 明细
	for i, h := range DetailHeader {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(detailSheet, cell, h)
		f.SetCellStyle(detailSheet, cell, cell, boldStyle)
	}
	for i, d := range rep.Details {
		row := i + 2
		f.SetCellValue(detailSheet, fmt.Sprintf("A%d", row), d.DeliveryDate.Format(DateLayout))
		f.SetCellValue(detailSheet, fmt.Sprintf("B%d", row), d.OrderRef)
		f.SetCellValue(detailSheet, fmt.Sprintf("C%d", row), d.PalletPositions.InexactFloat64())
		f.SetCellStyle(detailSheet, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), numStyle)
		f.SetCellValue(detailSheet, fmt.Sprintf("D%d", row), d.Notes)
	}
	for i, w := range []float64{14, 24, 22, 40} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(detailSheet, col, col, w)
	}
	return f, nil
}

func summaryValue(s Summary, i int) float64 {
	switch i {
	case 0:
		return s.Storage.InexactFloat64()
	case 1:
		return s.StandardInbound.InexactFloat64()
	case 2:
		return s.CrossDock.InexactFloat64()
	case 3:
		return s.StandardOutbound.InexactFloat64()
	default:
		return s.HandDelivery.InexactFloat64()
	}
}
