package models

import "time"

// UtilSalon is one required school-supply item of a classroom.
type UtilSalon struct {
	ID                string    `db:"id" json:"id"`
	SalonID           string    `db:"salon_id" json:"salon_id"`
	Nombre            string    `db:"nombre" json:"nombre"`
	CantidadRequerida int       `db:"cantidad_requerida" json:"cantidad_requerida"`
	Descripcion       *string   `db:"descripcion" json:"descripcion,omitempty"`
	Orden             int       `db:"orden" json:"orden"`
	FechaCreacion     time.Time `db:"fecha_creacion" json:"fecha_creacion"`
}

// EntregaUtil records how much of one supply item one student has received.
// There is exactly one per (student, item) pair; the delivered quantity is
// clamped to [0, required quantity] at the service boundary.
type EntregaUtil struct {
	ID                string     `db:"id" json:"id"`
	AlumnoID          string     `db:"alumno_id" json:"alumno_id"`
	UtilID            string     `db:"util_id" json:"util_id"`
	CantidadEntregada int        `db:"cantidad_entregada" json:"cantidad_entregada"`
	FechaEntrega      *time.Time `db:"fecha_entrega" json:"fecha_entrega,omitempty"`
	FechaModificacion time.Time  `db:"fecha_modificacion" json:"fecha_modificacion"`
	Observaciones     *string    `db:"observaciones" json:"observaciones,omitempty"`
}

// EntregaDetalle joins the supply item so the delivered flag can be derived.
type EntregaDetalle struct {
	EntregaUtil
	UtilNombre        string `db:"util_nombre" json:"util_nombre"`
	CantidadRequerida int    `db:"cantidad_requerida" json:"cantidad_requerida"`
}

// Entregado is the legacy boolean, derived and never stored.
func (e EntregaDetalle) Entregado() bool {
	return e.CantidadEntregada >= e.CantidadRequerida
}

// HistorialEntrega is one append-only audit entry of a delivery change.
type HistorialEntrega struct {
	ID          string    `db:"id" json:"id"`
	EntregaID   string    `db:"entrega_id" json:"entrega_id"`
	Accion      string    `db:"accion" json:"accion"`
	Observacion *string   `db:"observacion" json:"observacion,omitempty"`
	Fecha       time.Time `db:"fecha" json:"fecha"`
}
