package models

import (
	"fmt"
	"time"
)

// Student delivery states derived from the per-item delivered quantities.
const (
	EstadoSinLista  = "sin_lista"
	EstadoNoEntrego = "no_entrego"
	EstadoParcial   = "parcial"
	EstadoCompleto  = "completo"
)

// Alumno is a student enrolled in a classroom. The national ID is unique
// across the whole institution, not just the classroom.
type Alumno struct {
	ID           string     `db:"id" json:"id"`
	SalonID      string     `db:"salon_id" json:"salon_id"`
	Nombre       string     `db:"nombre" json:"nombre"`
	DNI          string     `db:"dni" json:"dni"`
	Sexo         string     `db:"sexo" json:"sexo"`
	Email        *string    `db:"email" json:"email,omitempty"`
	FechaEntrega *time.Time `db:"fecha_entrega" json:"fecha_entrega,omitempty"`
	FechaReg     time.Time  `db:"fecha_registro" json:"fecha_registro"`
}

// EstadoAlumno aggregates a student's delivery progress across every supply
// item of the classroom. It is computed on read and never stored.
type EstadoAlumno struct {
	TotalRequerido int    `db:"total_requerido" json:"total_requerido"`
	TotalEntregado int    `db:"total_entregado" json:"total_entregado"`
	TotalItems     int    `db:"total_items" json:"total_items"`
	Estado         string `json:"estado"`
	Progreso       string `json:"progreso"`
}

// Clasificar fills Estado and Progreso from the raw sums.
func (e *EstadoAlumno) Clasificar() {
	e.Progreso = fmt.Sprintf("%d/%d", e.TotalEntregado, e.TotalRequerido)
	switch {
	case e.TotalItems == 0:
		e.Estado = EstadoSinLista
	case e.TotalEntregado == 0:
		e.Estado = EstadoNoEntrego
	case e.TotalEntregado >= e.TotalRequerido:
		e.Estado = EstadoCompleto
	default:
		e.Estado = EstadoParcial
	}
}

// EntregaCompletada is the legacy boolean the old system stored; here it is
// always derived from the quantities.
func (e EstadoAlumno) EntregaCompletada() bool {
	return e.TotalItems > 0 && e.TotalEntregado >= e.TotalRequerido
}

// AlumnoDetalle is a student with the computed delivery aggregate.
type AlumnoDetalle struct {
	Alumno
	EstadoAlumno
	EntregaCompleta bool `json:"entrega_completada"`
}
