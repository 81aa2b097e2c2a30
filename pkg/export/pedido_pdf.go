package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// PedidoItem is one line of the order PDF table.
type PedidoItem struct {
	Codigo   string
	Nombre   string
	Cantidad int
	Unidad   string
	Precio   decimal.Decimal
}

// PedidoDocument carries everything the order PDF needs.
type PedidoDocument struct {
	Nombre      string
	Descripcion string
	GeneradoEn  time.Time
	Items       []PedidoItem
}

// PedidoPDFExporter renders a purchase order into a one-page PDF: title
// block, itemized table with subtotals, grand-total row and a summary footer.
type PedidoPDFExporter struct{}

// NewPedidoPDFExporter constructs the order PDF exporter.
func NewPedidoPDFExporter() *PedidoPDFExporter {
	return &PedidoPDFExporter{}
}

// Render builds the PDF bytes for the given order.
func (e *PedidoPDFExporter) Render(doc PedidoDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(20, 129, 41)
	pdf.CellFormat(0, 12, "PEDIDO DE COMPRA", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	descripcion := doc.Descripcion
	if descripcion == "" {
		descripcion = "Sin descripción"
	}
	info := [][2]string{
		{"Nombre del Pedido:", doc.Nombre},
		{"Fecha de Generación:", doc.GeneradoEn.Format("02/01/2006 15:04")},
		{"Descripción:", descripcion},
	}
	for _, row := range info {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(50, 8, row[0], "1", 0, "R", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(140, 8, row[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "PRODUCTOS SOLICITADOS", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	headers := []string{"N°", "Código", "Producto", "Cantidad", "Unidad", "Precio Unit.", "Subtotal"}
	widths := []float64{10, 26, 62, 20, 20, 26, 26}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(20, 129, 41)
	pdf.SetTextColor(255, 255, 255)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 9, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	total := decimal.Zero
	for i, item := range doc.Items {
		subtotal := item.Precio.Mul(decimal.NewFromInt(int64(item.Cantidad)))
		total = total.Add(subtotal)

		pdf.CellFormat(widths[0], 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, item.Codigo, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, item.Nombre, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%d", item.Cantidad), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 7, item.Unidad, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 7, "S/. "+item.Precio.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[6], 7, "S/. "+subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3]+widths[4], 8, "", "1", 0, "R", true, 0, "")
	pdf.CellFormat(widths[5], 8, "TOTAL:", "1", 0, "R", true, 0, "")
	pdf.CellFormat(widths[6], 8, "S/. "+total.StringFixed(2), "1", 1, "R", true, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	footer := fmt.Sprintf("Total de productos: %d | Total general: S/. %s", len(doc.Items), total.StringFixed(2))
	pdf.CellFormat(0, 8, footer, "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render order pdf: %w", err)
	}
	return buf.Bytes(), nil
}
