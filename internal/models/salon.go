package models

import "time"

// Turno is the school shift of a classroom.
type Turno string

const (
	TurnoManana Turno = "M"
	TurnoTarde  Turno = "T"
)

// Valid reports whether the shift is known.
func (t Turno) Valid() bool {
	return t == TurnoManana || t == TurnoTarde
}

// Salon is a classroom with an enrolled student roster and a required
// supply list.
type Salon struct {
	ID            string    `db:"id" json:"id"`
	Nombre        string    `db:"nombre" json:"nombre"`
	Codigo        string    `db:"codigo" json:"codigo"`
	Profesora     string    `db:"profesora" json:"profesora"`
	Grado         int       `db:"grado" json:"grado"`
	Turno         Turno     `db:"turno" json:"turno"`
	FechaCreacion time.Time `db:"fecha_creacion" json:"fecha_creacion"`
}

// SalonDetalle adds roster counts for listings.
type SalonDetalle struct {
	Salon
	TotalAlumnos int `db:"total_alumnos" json:"total_alumnos"`
	TotalUtiles  int `db:"total_utiles" json:"total_utiles"`
}

// SalonFilter restricts classroom listings.
type SalonFilter struct {
	Grado    int
	Turno    Turno
	Search   string
	Page     int
	PageSize int
}

// ResumenEntrega is the distribution dashboard summary shown on top of the
// classroom list.
type ResumenEntrega struct {
	TotalSalones      int `json:"total_salones"`
	TotalAlumnos      int `json:"total_alumnos"`
	EntregasCompletas int `json:"entregas_completas"`
	Pendientes        int `json:"pendientes"`
}
