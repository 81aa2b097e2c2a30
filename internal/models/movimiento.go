package models

import "time"

// TipoMovimiento classifies a stock movement.
type TipoMovimiento string

const (
	MovimientoEntrada    TipoMovimiento = "ENTRADA"
	MovimientoSalida     TipoMovimiento = "SALIDA"
	MovimientoPrestamo   TipoMovimiento = "PRESTAMO"
	MovimientoDevolucion TipoMovimiento = "DEVOLUCION"
	MovimientoAjuste     TipoMovimiento = "AJUSTE"
)

// Valid reports whether the movement kind is known.
func (t TipoMovimiento) Valid() bool {
	switch t {
	case MovimientoEntrada, MovimientoSalida, MovimientoPrestamo, MovimientoDevolucion, MovimientoAjuste:
		return true
	}
	return false
}

// SignedDelta converts a quantity magnitude into the signed delta the kind
// implies. ENTRADA and DEVOLUCION add stock, SALIDA and PRESTAMO remove it,
// and AJUSTE keeps whatever sign the caller provided.
func (t TipoMovimiento) SignedDelta(cantidad int) int {
	switch t {
	case MovimientoEntrada, MovimientoDevolucion:
		if cantidad < 0 {
			return -cantidad
		}
		return cantidad
	case MovimientoSalida, MovimientoPrestamo:
		if cantidad < 0 {
			return cantidad
		}
		return -cantidad
	default:
		return cantidad
	}
}

// Movimiento is one append-only ledger entry recording a quantity or shelf
// change of a product, with before/after snapshots taken at write time.
type Movimiento struct {
	ID               string         `db:"id" json:"id"`
	ProductoID       string         `db:"producto_id" json:"producto_id"`
	Tipo             TipoMovimiento `db:"tipo_movimiento" json:"tipo_movimiento"`
	Cantidad         int            `db:"cantidad" json:"cantidad"`
	CantidadAnterior int            `db:"cantidad_anterior" json:"cantidad_anterior"`
	CantidadNueva    int            `db:"cantidad_nueva" json:"cantidad_nueva"`
	EstanteAnterior  *string        `db:"estante_anterior" json:"estante_anterior,omitempty"`
	EstanteNuevo     *string        `db:"estante_nuevo" json:"estante_nuevo,omitempty"`
	FechaMovimiento  time.Time      `db:"fecha_movimiento" json:"fecha_movimiento"`
	Observacion      *string        `db:"observacion" json:"observacion,omitempty"`
	Usuario          *string        `db:"usuario" json:"usuario,omitempty"`
}
