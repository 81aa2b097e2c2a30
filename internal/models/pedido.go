package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstadoPedido is the workflow state of a purchase order.
type EstadoPedido string

const (
	PedidoPendiente  EstadoPedido = "PEND"
	PedidoCompletado EstadoPedido = "COMP"
	PedidoEntregado  EstadoPedido = "ENTR"
)

// Valid reports whether the state is known.
func (e EstadoPedido) Valid() bool {
	switch e {
	case PedidoPendiente, PedidoCompletado, PedidoEntregado:
		return true
	}
	return false
}

// EstadoCotizacion is the state of a supplier quotation.
type EstadoCotizacion string

const (
	CotizacionPendiente    EstadoCotizacion = "PEND"
	CotizacionSeleccionada EstadoCotizacion = "SELEC"
	CotizacionRechazada    EstadoCotizacion = "RECH"
)

// Pedido is a purchase order moving through Pendiente, Completado and
// Entregado. Entregado is terminal.
type Pedido struct {
	ID                string       `db:"id" json:"id"`
	Nombre            string       `db:"nombre" json:"nombre"`
	Descripcion       string       `db:"descripcion" json:"descripcion"`
	Archivo           *string      `db:"archivo" json:"archivo,omitempty"`
	Estado            EstadoPedido `db:"estado" json:"estado"`
	FechaCreacion     time.Time    `db:"fecha_creacion" json:"fecha_creacion"`
	FechaModificacion time.Time    `db:"fecha_modificacion" json:"fecha_modificacion"`
	DocumentoEntrega  *string      `db:"documento_entrega" json:"documento_entrega,omitempty"`
	FechaEntrega      *time.Time   `db:"fecha_entrega" json:"fecha_entrega,omitempty"`
}

// ItemPedido is one requested line of a purchase order.
type ItemPedido struct {
	ID                 string          `db:"id" json:"id"`
	PedidoID           string          `db:"pedido_id" json:"pedido_id"`
	ProductoID         string          `db:"producto_id" json:"producto_id"`
	CantidadSolicitada int             `db:"cantidad_solicitada" json:"cantidad_solicitada"`
	PrecioUnitario     decimal.Decimal `db:"precio_unitario" json:"precio_unitario"`
	Observaciones      string          `db:"observaciones" json:"observaciones"`
	FechaAgregado      time.Time       `db:"fecha_agregado" json:"fecha_agregado"`
}

// Subtotal returns requested quantity times unit price.
func (i ItemPedido) Subtotal() decimal.Decimal {
	return i.PrecioUnitario.Mul(decimal.NewFromInt(int64(i.CantidadSolicitada)))
}

// ItemPedidoDetalle joins product fields for rendering order tables.
type ItemPedidoDetalle struct {
	ItemPedido
	CodigoProducto string `db:"codigo_producto" json:"codigo_producto"`
	ProductoNombre string `db:"producto_nombre" json:"producto_nombre"`
	UnidadNombre   string `db:"unidad_nombre" json:"unidad_nombre"`
}

// Cotizacion is a supplier's priced response to an order. At most one may be
// Seleccionada per order.
type Cotizacion struct {
	ID                string           `db:"id" json:"id"`
	PedidoID          string           `db:"pedido_id" json:"pedido_id"`
	Proveedor         string           `db:"proveedor" json:"proveedor"`
	Monto             decimal.Decimal  `db:"monto" json:"monto"`
	Descripcion       string           `db:"descripcion" json:"descripcion"`
	Documento         string           `db:"documento" json:"documento"`
	Estado            EstadoCotizacion `db:"estado" json:"estado"`
	FechaCreacion     time.Time        `db:"fecha_creacion" json:"fecha_creacion"`
	FechaModificacion time.Time        `db:"fecha_modificacion" json:"fecha_modificacion"`
}

// PedidoDetalle carries the order with its derived aggregates, recomputed on
// every read.
type PedidoDetalle struct {
	Pedido
	TotalItems             int             `db:"total_items" json:"total_items"`
	TotalCotizaciones      int             `db:"total_cotizaciones" json:"total_cotizaciones"`
	TotalGeneral           decimal.Decimal `db:"total_general" json:"total_general"`
	CotizacionSeleccionada *Cotizacion     `json:"cotizacion_seleccionada,omitempty"`
}

// ItemPedidoRespuesta is the item-lookup payload consumed by the order edit
// page scripts. Field names are a boundary contract.
type ItemPedidoRespuesta struct {
	ProductoID     string `json:"producto_id"`
	Cantidad       int    `json:"cantidad"`
	PrecioUnitario string `json:"precio_unitario"`
	Observaciones  string `json:"observaciones"`
}
