package models

import "time"

// Unidad is a unit of measure referenced by products (e.g. "Caja", "Unidad").
type Unidad struct {
	ID            string    `db:"id" json:"id"`
	Nombre        string    `db:"nombre" json:"nombre"`
	Abreviatura   string    `db:"abreviatura" json:"abreviatura"`
	Activo        bool      `db:"activo" json:"activo"`
	FechaCreacion time.Time `db:"fecha_creacion" json:"fecha_creacion"`
}

// UnidadFilter restricts unit listings.
type UnidadFilter struct {
	Activo *bool
	Search string
}
