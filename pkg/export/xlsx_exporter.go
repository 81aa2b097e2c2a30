package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ProductColumns is the canonical column set of product spreadsheets. The
// header names are a boundary contract with the import side and with
// pre-existing institutional files, so they stay in Spanish and in this order.
var ProductColumns = []string{
	"codigo_almacen",
	"codigo_producto",
	"nombre",
	"descripcion",
	"cantidad",
	"unidad",
	"estado",
	"estante",
	"observaciones",
}

// XLSXExporter renders datasets into xlsx workbooks.
type XLSXExporter struct{}

// NewXLSXExporter builds an xlsx exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces an xlsx workbook with a single sheet holding the dataset.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	if err := writeRow(f, sheet, 1, data.Headers); err != nil {
		return nil, err
	}
	for i, row := range data.Rows {
		record := make([]interface{}, len(data.Headers))
		for j, header := range data.Headers {
			record[j] = row[header]
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	return flush(f)
}

// ProductTemplate builds the import template workbook: the nine canonical
// headers, one help-text row, and four example data rows.
func (e *XLSXExporter) ProductTemplate() ([]byte, error) {
	const sheet = "Plantilla Productos"

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	if err := writeRow(f, sheet, 1, ProductColumns); err != nil {
		return nil, err
	}

	help := []string{
		"01, 02 o 03",
		"Ej: PRD-001",
		"Obligatorio",
		"Opcional",
		"Obligatorio (número)",
		"Ej: Unidad, Caja, Kg",
		"DISP, AGOT o BAJO",
		"Opcional (Ej: A1, B2)",
		"Opcional",
	}
	if err := writeRow(f, sheet, 2, help); err != nil {
		return nil, err
	}

	examples := [][]interface{}{
		{"01", "PRD-001", "Balón de Fútbol", "Balón profesional N°5", 50, "Unidad", "DISP", "A1", "Stock nuevo"},
		{"01", "PRD-002", "Papel Bond A4", "Paquete de 500 hojas", 100, "Paquete", "DISP", "B2", ""},
		{"02", "PRD-003", "Raqueta Tenis", "", 15, "Unidad", "BAJO", "C1", "Reabastecer"},
		{"03", "PRD-004", "Marcadores", "Caja de 12 permanentes", 30, "Caja", "DISP", "", ""},
	}
	for i, example := range examples {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheet, cell, &example); err != nil {
			return nil, fmt.Errorf("write template example row: %w", err)
		}
	}

	widths := []float64{15, 15, 20, 30, 12, 12, 12, 12, 30}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"148129"}},
	})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, headerStyle)
	}
	helpStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "666666", Size: 9},
	})
	if err == nil {
		_ = f.SetRowStyle(sheet, 2, 2, helpStyle)
	}

	return flush(f)
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	record := make([]interface{}, len(values))
	for i, v := range values {
		record[i] = v
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, cell, &record); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", row, err)
	}
	return nil
}

func flush(f *excelize.File) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
