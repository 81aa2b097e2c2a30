package models

import "time"

// UbicacionAlmacen identifies one of the physical warehouses.
type UbicacionAlmacen string

const (
	UbicacionGeneral UbicacionAlmacen = "AG"
	UbicacionDeporte UbicacionAlmacen = "AD"
	UbicacionUtiles  UbicacionAlmacen = "IU"
)

// CodigoAlmacen returns the 2-character warehouse code used as the product
// code prefix. Unknown locations map to "00".
func (u UbicacionAlmacen) CodigoAlmacen() string {
	switch u {
	case UbicacionGeneral:
		return "01"
	case UbicacionDeporte:
		return "02"
	case UbicacionUtiles:
		return "03"
	default:
		return "00"
	}
}

// Valid reports whether the location is one of the three known warehouses.
func (u UbicacionAlmacen) Valid() bool {
	switch u {
	case UbicacionGeneral, UbicacionDeporte, UbicacionUtiles:
		return true
	}
	return false
}

// UbicacionPorCodigo resolves a warehouse code ("01".."03") to its location.
func UbicacionPorCodigo(codigo string) (UbicacionAlmacen, bool) {
	switch codigo {
	case "01":
		return UbicacionGeneral, true
	case "02":
		return UbicacionDeporte, true
	case "03":
		return UbicacionUtiles, true
	}
	return "", false
}

// EstadoProducto is the stock status of a product.
type EstadoProducto string

const (
	EstadoDisponible EstadoProducto = "DISP"
	EstadoAgotado    EstadoProducto = "AGOT"
	EstadoStockBajo  EstadoProducto = "BAJO"
)

// Valid reports whether the status is one of the known values.
func (e EstadoProducto) Valid() bool {
	switch e {
	case EstadoDisponible, EstadoAgotado, EstadoStockBajo:
		return true
	}
	return false
}

// Producto is one catalog entry of a warehouse. The product code is assigned
// exactly once at creation and never changes afterwards.
type Producto struct {
	ID                  string           `db:"id" json:"id"`
	CodigoAlmacen       string           `db:"codigo_almacen" json:"codigo_almacen"`
	CodigoProducto      string           `db:"codigo_producto" json:"codigo_producto"`
	Nombre              string           `db:"nombre" json:"nombre"`
	Descripcion         string           `db:"descripcion" json:"descripcion"`
	Ubicacion           UbicacionAlmacen `db:"ubicacion_almacen" json:"ubicacion_almacen"`
	Estante             *string          `db:"estante" json:"estante,omitempty"`
	Cantidad            int              `db:"cantidad" json:"cantidad"`
	UnidadID            string           `db:"unidad_id" json:"unidad_id"`
	Estado              EstadoProducto   `db:"estado" json:"estado"`
	FechaIngreso        time.Time        `db:"fecha_ingreso" json:"fecha_ingreso"`
	UltimaActualizacion time.Time        `db:"ultima_actualizacion" json:"ultima_actualizacion"`
	Observaciones       *string          `db:"observaciones" json:"observaciones,omitempty"`
}

// ProductoDetalle joins the unit information for listings.
type ProductoDetalle struct {
	Producto
	UnidadNombre      string `db:"unidad_nombre" json:"unidad_nombre"`
	UnidadAbreviatura string `db:"unidad_abreviatura" json:"unidad_abreviatura"`
}

// ProductoFilter restricts product listings.
type ProductoFilter struct {
	Ubicacion UbicacionAlmacen
	Estado    EstadoProducto
	Search    string
	Page      int
	PageSize  int
}

// UltimoProducto is the payload of the last-created-product endpoint. The
// field names are a contract with the in-page scripts that consume it.
type UltimoProducto struct {
	IDProducto     string `json:"id_producto"`
	CodigoProducto string `json:"codigo_producto"`
	Nombre         string `json:"nombre"`
	Cantidad       int    `json:"cantidad"`
	Unidad         string `json:"unidad"`
	Descripcion    string `json:"descripcion"`
}
