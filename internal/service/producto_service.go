package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

type productoRepository interface {
	List(ctx context.Context, filter models.ProductoFilter) ([]models.ProductoDetalle, int, error)
	ListAll(ctx context.Context, ubicacion models.UbicacionAlmacen) ([]models.ProductoDetalle, error)
	FindByID(ctx context.Context, id string) (*models.ProductoDetalle, error)
	FindByCodigo(ctx context.Context, codigo string) (*models.ProductoDetalle, error)
	UltimoPorUbicacion(ctx context.Context, ubicacion models.UbicacionAlmacen) (*models.ProductoDetalle, error)
	Create(ctx context.Context, producto *models.Producto, usuario *string) error
	Update(ctx context.Context, producto *models.Producto) error
	RegistrarMovimiento(ctx context.Context, productoID string, tipo models.TipoMovimiento, cantidad int, estanteNuevo *string, observacion *string, usuario *string) (*models.Movimiento, error)
	Delete(ctx context.Context, id string) error
}

type movimientoRepository interface {
	List(ctx context.Context, filter repository.MovimientoFilter) ([]models.Movimiento, int, error)
}

// CreateProductoRequest holds the payload to register a product.
type CreateProductoRequest struct {
	Nombre        string  `json:"nombre" validate:"required,max=200"`
	Descripcion   string  `json:"descripcion" validate:"max=1000"`
	Ubicacion     string  `json:"ubicacion_almacen" validate:"required,oneof=AG AD IU"`
	Estante       *string `json:"estante"`
	Cantidad      int     `json:"cantidad" validate:"min=0"`
	UnidadID      string  `json:"unidad_id" validate:"required"`
	Observaciones *string `json:"observaciones"`
}

// UpdateProductoRequest holds the payload to modify a product. The code and
// warehouse location are immutable.
type UpdateProductoRequest struct {
	Nombre        string  `json:"nombre" validate:"required,max=200"`
	Descripcion   string  `json:"descripcion" validate:"max=1000"`
	Estante       *string `json:"estante"`
	UnidadID      string  `json:"unidad_id" validate:"required"`
	Estado        string  `json:"estado" validate:"required,oneof=DISP AGOT BAJO"`
	Observaciones *string `json:"observaciones"`
}

// MovimientoRequest holds the payload to register a stock movement.
type MovimientoRequest struct {
	Tipo        string  `json:"tipo_movimiento" validate:"required,oneof=ENTRADA SALIDA PRESTAMO DEVOLUCION AJUSTE"`
	Cantidad    int     `json:"cantidad"`
	Estante     *string `json:"estante"`
	Observacion *string `json:"observacion"`
}

// ProductoService handles product and stock-ledger use cases.
type ProductoService struct {
	repo        productoRepository
	movimientos movimientoRepository
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProductoService constructs the product service.
func NewProductoService(repo productoRepository, movimientos movimientoRepository, validate *validator.Validate, logger *zap.Logger) *ProductoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductoService{repo: repo, movimientos: movimientos, validator: validate, logger: logger}
}

// WithMetrics attaches the metrics service so movements feed the counters.
func (s *ProductoService) WithMetrics(metrics *MetricsService) *ProductoService {
	s.metrics = metrics
	return s
}

// List returns products and pagination metadata.
func (s *ProductoService) List(ctx context.Context, filter models.ProductoFilter) ([]models.ProductoDetalle, *models.Pagination, error) {
	productos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return productos, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one product with its unit joined.
func (s *ProductoService) Get(ctx context.Context, id string) (*models.ProductoDetalle, error) {
	producto, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	return producto, nil
}

// Ultimo returns the last created product of a warehouse in the page-script
// contract shape.
func (s *ProductoService) Ultimo(ctx context.Context, ubicacion models.UbicacionAlmacen) (*models.UltimoProducto, error) {
	if !ubicacion.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown warehouse location")
	}
	producto, err := s.repo.UltimoPorUbicacion(ctx, ubicacion)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "warehouse has no products yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load last product")
	}
	return &models.UltimoProducto{
		IDProducto:     producto.ID,
		CodigoProducto: producto.CodigoProducto,
		Nombre:         producto.Nombre,
		Cantidad:       producto.Cantidad,
		Unidad:         producto.UnidadNombre,
		Descripcion:    producto.Descripcion,
	}, nil
}

// Create registers a product. The code is assigned from the per-warehouse
// sequence and an initial ENTRADA is recorded.
func (s *ProductoService) Create(ctx context.Context, req CreateProductoRequest, usuario *string) (*models.ProductoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	estado := models.EstadoDisponible
	if req.Cantidad == 0 {
		estado = models.EstadoAgotado
	}
	producto := &models.Producto{
		Nombre:        strings.TrimSpace(req.Nombre),
		Descripcion:   strings.TrimSpace(req.Descripcion),
		Ubicacion:     models.UbicacionAlmacen(req.Ubicacion),
		Estante:       req.Estante,
		Cantidad:      req.Cantidad,
		UnidadID:      req.UnidadID,
		Estado:        estado,
		Observaciones: req.Observaciones,
	}
	if err := s.repo.Create(ctx, producto, usuario); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}
	s.logger.Info("producto creado",
		zap.String("producto_id", producto.ID),
		zap.String("codigo", producto.CodigoProducto),
		zap.String("ubicacion", string(producto.Ubicacion)))
	return s.Get(ctx, producto.ID)
}

// Update modifies the descriptive fields of a product.
func (s *ProductoService) Update(ctx context.Context, id string, req UpdateProductoRequest) (*models.ProductoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	actual, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	producto := actual.Producto
	producto.Nombre = strings.TrimSpace(req.Nombre)
	producto.Descripcion = strings.TrimSpace(req.Descripcion)
	producto.Estante = req.Estante
	producto.UnidadID = req.UnidadID
	producto.Estado = models.EstadoProducto(req.Estado)
	producto.Observaciones = req.Observaciones
	if err := s.repo.Update(ctx, &producto); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update product")
	}
	return s.Get(ctx, id)
}

// RegistrarMovimiento appends a ledger entry and reconciles the stock.
func (s *ProductoService) RegistrarMovimiento(ctx context.Context, productoID string, req MovimientoRequest, usuario *string) (*models.Movimiento, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid movement payload")
	}
	tipo := models.TipoMovimiento(req.Tipo)
	if tipo != models.MovimientoAjuste && req.Cantidad <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "movement quantity must be positive")
	}

	movimiento, err := s.repo.RegistrarMovimiento(ctx, productoID, tipo, req.Cantidad, req.Estante, req.Observacion, usuario)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.FromError(err)
	}
	s.metrics.RecordMovimiento(string(tipo))
	s.logger.Info("movimiento registrado",
		zap.String("producto_id", productoID),
		zap.String("tipo", string(tipo)),
		zap.Int("cantidad", movimiento.Cantidad),
		zap.Int("cantidad_nueva", movimiento.CantidadNueva))
	return movimiento, nil
}

// Movimientos returns the ledger of a product, newest first.
func (s *ProductoService) Movimientos(ctx context.Context, filter repository.MovimientoFilter) ([]models.Movimiento, *models.Pagination, error) {
	movimientos, total, err := s.movimientos.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list movements")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return movimientos, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes a product and its ledger.
func (s *ProductoService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete product")
	}
	return nil
}
