package billing

import (
	"bufio"
	"io"
	"strings"
)

// DetailHeader is the header of the detail section.
var DetailHeader = []string{"Delivery Date", "Shipping Order Ref", "Total_Pallet_Positions", "Notes"}

// summaryFields lays the totals out as label,value pairs.
func summaryFields(s Summary) []string {
	return []string{
		"Storage Pallet Positions", s.Storage.StringFixed(2),
		"Standard Inbound Pallet Positions", s.StandardInbound.StringFixed(2),
		"Cross Dock Pallet Positions", s.CrossDock.StringFixed(2),
		"Standard Outbound Pallet Positions", s.StandardOutbound.StringFixed(2),
		"Hand Delivery Pallet Positions", s.HandDelivery.StringFixed(2),
	}
}

func detailFields(row DetailRow) []string {
	return []string{
		row.DeliveryDate.Format(DateLayout),
		row.OrderRef,
		row.PalletPositions.StringFixed(2),
		row.Notes,
	}
}

// EscapeField quotes v only when it holds a comma, quote, CR or LF, doubling
// inner quotes.
func EscapeField(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(EscapeField(f))
	}
	w.WriteString("\r\n")
}

// WriteCSV writes the summary line, a blank line, then the detail table.
func WriteCSV(out io.Writer, rep Report) error {
	w := bufio.NewWriter(out)
	writeRecord(w, summaryFields(rep.Summary))
	w.WriteString("\r\n")
	writeRecord(w, DetailHeader)
	for _, row := range rep.Details {
		writeRecord(w, detailFields(row))
	}
	return w.Flush()
}
