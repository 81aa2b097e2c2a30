package models

import "fmt"

// ErrorFila describes a row level problem found during a bulk import.
// Fila is the 1-based spreadsheet row number as the user sees it.
type ErrorFila struct {
	Fila    int    `json:"fila"`
	Mensaje string `json:"mensaje"`
}

func (e ErrorFila) String() string {
	return fmt.Sprintf("Fila %d: %s", e.Fila, e.Mensaje)
}

// StatsAlmacen aggregates import counters per warehouse location.
type StatsAlmacen struct {
	Creados      int `json:"creados"`
	Actualizados int `json:"actualizados"`
}

// ResultadoImportacion summarizes a product spreadsheet import.
type ResultadoImportacion struct {
	Creados         int                      `json:"creados"`
	Actualizados    int                      `json:"actualizados"`
	UnidadesCreadas []string                 `json:"unidades_creadas"`
	Errores         []ErrorFila              `json:"errores"`
	StatsPorAlmacen map[string]*StatsAlmacen `json:"stats_por_almacen"`
}

// NewResultadoImportacion returns an empty result with initialized maps.
func NewResultadoImportacion() *ResultadoImportacion {
	return &ResultadoImportacion{
		UnidadesCreadas: []string{},
		Errores:         []ErrorFila{},
		StatsPorAlmacen: map[string]*StatsAlmacen{},
	}
}

// Stat returns the per-location counters, creating them on first use.
func (r *ResultadoImportacion) Stat(ubicacion string) *StatsAlmacen {
	s, ok := r.StatsPorAlmacen[ubicacion]
	if !ok {
		s = &StatsAlmacen{}
		r.StatsPorAlmacen[ubicacion] = s
	}
	return s
}

// ResultadoImportacionAlumnos summarizes a student roster import.
type ResultadoImportacionAlumnos struct {
	Creados    int         `json:"creados"`
	Duplicados int         `json:"duplicados"`
	Ignorados  int         `json:"ignorados"`
	Errores    []ErrorFila `json:"errores"`
}
