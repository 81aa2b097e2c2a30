package models

import "time"

// EstadoReporte is the lifecycle state of an async report job.
type EstadoReporte string

const (
	ReportePendiente  EstadoReporte = "PENDIENTE"
	ReporteProcesando EstadoReporte = "PROCESANDO"
	ReporteListo      EstadoReporte = "LISTO"
	ReporteFallido    EstadoReporte = "FALLIDO"
)

// FormatoReporte is the requested output format.
type FormatoReporte string

const (
	FormatoCSV  FormatoReporte = "csv"
	FormatoXLSX FormatoReporte = "xlsx"
)

// Valid reports whether the format is supported.
func (f FormatoReporte) Valid() bool {
	return f == FormatoCSV || f == FormatoXLSX
}

// Reporte tracks a report generation job.
type Reporte struct {
	ID            string         `db:"id" json:"id"`
	Tipo          string         `db:"tipo" json:"tipo"`
	Formato       FormatoReporte `db:"formato" json:"formato"`
	Estado        EstadoReporte  `db:"estado" json:"estado"`
	Archivo       *string        `db:"archivo" json:"archivo,omitempty"`
	Error         *string        `db:"error" json:"error,omitempty"`
	SolicitadoPor *string        `db:"solicitado_por" json:"solicitado_por,omitempty"`
	FechaCreacion time.Time      `db:"fecha_creacion" json:"fecha_creacion"`
	FechaFin      *time.Time     `db:"fecha_fin" json:"fecha_fin,omitempty"`
}

// ReporteRequest is the payload to enqueue a report.
type ReporteRequest struct {
	Tipo      string          `json:"tipo" validate:"required,oneof=inventario movimientos"`
	Formato   FormatoReporte  `json:"formato" validate:"required,oneof=csv xlsx"`
	Filtros   *ProductoFilter `json:"filtros,omitempty"`
	Ubicacion *string         `json:"ubicacion,omitempty"`
}
