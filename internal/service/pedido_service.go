package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/export"
	"github.com/sigea-dev/almacen-api/pkg/storage"
)

type pedidoRepository interface {
	List(ctx context.Context, filter repository.PedidoFilter) ([]models.PedidoDetalle, int, error)
	GetByID(ctx context.Context, id string) (*models.PedidoDetalle, error)
	Create(ctx context.Context, pedido *models.Pedido) error
	Update(ctx context.Context, pedido *models.Pedido) error
	Delete(ctx context.Context, id string) error
	ListItems(ctx context.Context, pedidoID string) ([]models.ItemPedidoDetalle, error)
	GetItem(ctx context.Context, itemID string) (*models.ItemPedido, error)
	AddItem(ctx context.Context, item *models.ItemPedido) error
	UpdateItem(ctx context.Context, item *models.ItemPedido) error
	RemoveItem(ctx context.Context, pedidoID, itemID string) error
	ListCotizaciones(ctx context.Context, pedidoID string) ([]models.Cotizacion, error)
	GetCotizacion(ctx context.Context, id string) (*models.Cotizacion, error)
	AddCotizacion(ctx context.Context, cotizacion *models.Cotizacion) error
	UpdateCotizacion(ctx context.Context, cotizacion *models.Cotizacion) error
	DeleteCotizacion(ctx context.Context, pedidoID, cotizacionID string) error
	SeleccionarCotizacion(ctx context.Context, pedidoID, cotizacionID string) error
	MarcarEntregado(ctx context.Context, pedidoID string, documento string) error
}

type pedidoProductoRepository interface {
	FindByID(ctx context.Context, id string) (*models.ProductoDetalle, error)
}

// CreatePedidoRequest holds the payload to open a purchase order.
type CreatePedidoRequest struct {
	Nombre      string `json:"nombre" validate:"required,max=200"`
	Descripcion string `json:"descripcion" validate:"max=1000"`
}

// ItemPedidoRequest holds the payload for order lines.
type ItemPedidoRequest struct {
	ProductoID     string `json:"producto_id" validate:"required"`
	Cantidad       int    `json:"cantidad" validate:"required,min=1"`
	PrecioUnitario string `json:"precio_unitario" validate:"required"`
	Observaciones  string `json:"observaciones" validate:"max=500"`
}

// CotizacionRequest holds the payload for supplier quotations. The document
// arrives as a separate upload.
type CotizacionRequest struct {
	Proveedor   string `json:"proveedor" validate:"required,max=200"`
	Monto       string `json:"monto" validate:"required"`
	Descripcion string `json:"descripcion" validate:"max=1000"`
}

// PedidoService handles the purchase order workflow.
type PedidoService struct {
	repo      pedidoRepository
	productos pedidoProductoRepository
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	pdf       *export.PedidoPDFExporter
	cfg       config.DocumentsConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPedidoService constructs the purchase order service.
func NewPedidoService(repo pedidoRepository, productos pedidoProductoRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.DocumentsConfig, validate *validator.Validate, logger *zap.Logger) *PedidoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PedidoService{
		repo:      repo,
		productos: productos,
		storage:   store,
		signer:    signer,
		pdf:       export.NewPedidoPDFExporter(),
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// List returns orders and pagination metadata.
func (s *PedidoService) List(ctx context.Context, filter repository.PedidoFilter) ([]models.PedidoDetalle, *models.Pagination, error) {
	pedidos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return pedidos, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one order with its aggregates.
func (s *PedidoService) Get(ctx context.Context, id string) (*models.PedidoDetalle, error) {
	pedido, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	return pedido, nil
}

// Create opens a new order in the Pendiente state. An optional supporting
// document may be attached in the same call.
func (s *PedidoService) Create(ctx context.Context, req CreatePedidoRequest, archivo *Upload) (*models.PedidoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}
	pedido := &models.Pedido{
		Nombre:      strings.TrimSpace(req.Nombre),
		Descripcion: strings.TrimSpace(req.Descripcion),
		Estado:      models.PedidoPendiente,
	}
	if archivo != nil {
		stored, err := s.guardarDocumento(archivo)
		if err != nil {
			return nil, err
		}
		pedido.Archivo = &stored
	}
	if err := s.repo.Create(ctx, pedido); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}
	return s.Get(ctx, pedido.ID)
}

// Update modifies the descriptive fields of an order and optionally replaces
// its supporting document.
func (s *PedidoService) Update(ctx context.Context, id string, req CreatePedidoRequest, archivo *Upload) (*models.PedidoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}
	actual, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pedido := actual.Pedido
	pedido.Nombre = strings.TrimSpace(req.Nombre)
	pedido.Descripcion = strings.TrimSpace(req.Descripcion)
	if archivo != nil {
		stored, err := s.guardarDocumento(archivo)
		if err != nil {
			return nil, err
		}
		pedido.Archivo = &stored
	}
	if err := s.repo.Update(ctx, &pedido); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update order")
	}
	return s.Get(ctx, id)
}

// Delete removes an order with its items and quotations.
func (s *PedidoService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete order")
	}
	return nil
}

// Items returns the order lines with product fields joined.
func (s *PedidoService) Items(ctx context.Context, pedidoID string) ([]models.ItemPedidoDetalle, error) {
	if _, err := s.Get(ctx, pedidoID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, pedidoID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list order items")
	}
	return items, nil
}

// GetItem returns one line in the edit-page contract shape.
func (s *PedidoService) GetItem(ctx context.Context, itemID string) (*models.ItemPedidoRespuesta, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order item")
	}
	return &models.ItemPedidoRespuesta{
		ProductoID:     item.ProductoID,
		Cantidad:       item.CantidadSolicitada,
		PrecioUnitario: item.PrecioUnitario.StringFixed(2),
		Observaciones:  item.Observaciones,
	}, nil
}

// AddItem appends a line to an order.
func (s *PedidoService) AddItem(ctx context.Context, pedidoID string, req ItemPedidoRequest) (*models.ItemPedido, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	if _, err := s.Get(ctx, pedidoID); err != nil {
		return nil, err
	}
	if _, err := s.productos.FindByID(ctx, req.ProductoID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	precio, err := decimal.NewFromString(req.PrecioUnitario)
	if err != nil || precio.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid unit price")
	}
	item := &models.ItemPedido{
		PedidoID:           pedidoID,
		ProductoID:         req.ProductoID,
		CantidadSolicitada: req.Cantidad,
		PrecioUnitario:     precio,
		Observaciones:      strings.TrimSpace(req.Observaciones),
	}
	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add order item")
	}
	return item, nil
}

// UpdateItem modifies a line.
func (s *PedidoService) UpdateItem(ctx context.Context, pedidoID, itemID string, req ItemPedidoRequest) (*models.ItemPedido, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order item")
	}
	if item.PedidoID != pedidoID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "order item not found")
	}
	precio, err := decimal.NewFromString(req.PrecioUnitario)
	if err != nil || precio.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid unit price")
	}
	item.ProductoID = req.ProductoID
	item.CantidadSolicitada = req.Cantidad
	item.PrecioUnitario = precio
	item.Observaciones = strings.TrimSpace(req.Observaciones)
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update order item")
	}
	return item, nil
}

// RemoveItem deletes a line.
func (s *PedidoService) RemoveItem(ctx context.Context, pedidoID, itemID string) error {
	if err := s.repo.RemoveItem(ctx, pedidoID, itemID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove order item")
	}
	return nil
}

// Cotizaciones lists the quotations of an order.
func (s *PedidoService) Cotizaciones(ctx context.Context, pedidoID string) ([]models.Cotizacion, error) {
	if _, err := s.Get(ctx, pedidoID); err != nil {
		return nil, err
	}
	cotizaciones, err := s.repo.ListCotizaciones(ctx, pedidoID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quotations")
	}
	return cotizaciones, nil
}

// AddCotizacion registers a supplier quotation. The document is mandatory.
func (s *PedidoService) AddCotizacion(ctx context.Context, pedidoID string, req CotizacionRequest, documento *Upload) (*models.Cotizacion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quotation payload")
	}
	if documento == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quotation document is required")
	}
	pedido, err := s.Get(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	if pedido.Estado == models.PedidoEntregado {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "delivered orders do not accept quotations")
	}
	monto, err := decimal.NewFromString(req.Monto)
	if err != nil || monto.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid quotation amount")
	}
	stored, err := s.guardarDocumento(documento)
	if err != nil {
		return nil, err
	}
	cotizacion := &models.Cotizacion{
		PedidoID:    pedidoID,
		Proveedor:   strings.TrimSpace(req.Proveedor),
		Monto:       monto,
		Descripcion: strings.TrimSpace(req.Descripcion),
		Documento:   stored,
		Estado:      models.CotizacionPendiente,
	}
	if err := s.repo.AddCotizacion(ctx, cotizacion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add quotation")
	}
	return cotizacion, nil
}

// UpdateCotizacion modifies a quotation's supplier data and optionally
// replaces its document.
func (s *PedidoService) UpdateCotizacion(ctx context.Context, pedidoID, cotizacionID string, req CotizacionRequest, documento *Upload) (*models.Cotizacion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quotation payload")
	}
	cotizacion, err := s.repo.GetCotizacion(ctx, cotizacionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quotation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quotation")
	}
	if cotizacion.PedidoID != pedidoID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "quotation not found")
	}
	monto, err := decimal.NewFromString(req.Monto)
	if err != nil || monto.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid quotation amount")
	}
	cotizacion.Proveedor = strings.TrimSpace(req.Proveedor)
	cotizacion.Monto = monto
	cotizacion.Descripcion = strings.TrimSpace(req.Descripcion)
	if documento != nil {
		stored, err := s.guardarDocumento(documento)
		if err != nil {
			return nil, err
		}
		cotizacion.Documento = stored
	}
	if err := s.repo.UpdateCotizacion(ctx, cotizacion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quotation")
	}
	return cotizacion, nil
}

// DeleteCotizacion removes a quotation.
func (s *PedidoService) DeleteCotizacion(ctx context.Context, pedidoID, cotizacionID string) error {
	if err := s.repo.DeleteCotizacion(ctx, pedidoID, cotizacionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quotation")
	}
	return nil
}

// SeleccionarCotizacion elects one quotation, rejects its siblings and moves
// the order to Completado. Re-selecting a different quotation re-runs the
// election while the order is not yet delivered.
func (s *PedidoService) SeleccionarCotizacion(ctx context.Context, pedidoID, cotizacionID string) (*models.PedidoDetalle, error) {
	pedido, err := s.Get(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	if pedido.Estado == models.PedidoEntregado {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "delivered orders cannot change their quotation")
	}
	if err := s.repo.SeleccionarCotizacion(ctx, pedidoID, cotizacionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quotation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select quotation")
	}
	s.logger.Info("cotización seleccionada",
		zap.String("pedido_id", pedidoID),
		zap.String("cotizacion_id", cotizacionID))
	return s.Get(ctx, pedidoID)
}

// MarcarEntregado closes an order. Only Completado orders can be delivered
// and a proof document is mandatory; the state is terminal afterwards.
func (s *PedidoService) MarcarEntregado(ctx context.Context, pedidoID string, documento *Upload) (*models.PedidoDetalle, error) {
	if documento == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "delivery document is required")
	}
	pedido, err := s.Get(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	if pedido.Estado != models.PedidoCompletado {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only completed orders can be delivered")
	}
	stored, err := s.guardarDocumento(documento)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarcarEntregado(ctx, pedidoID, stored); err != nil {
		// the proof file must not outlive a rejected transition
		_ = s.storage.Delete(stored)
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only completed orders can be delivered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark order delivered")
	}
	return s.Get(ctx, pedidoID)
}

// GenerarPDF renders the printable order document.
func (s *PedidoService) GenerarPDF(ctx context.Context, pedidoID string) ([]byte, string, error) {
	pedido, err := s.Get(ctx, pedidoID)
	if err != nil {
		return nil, "", err
	}
	items, err := s.repo.ListItems(ctx, pedidoID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list order items")
	}

	doc := export.PedidoDocument{
		Nombre:      pedido.Nombre,
		Descripcion: pedido.Descripcion,
		GeneradoEn:  time.Now(),
	}
	for _, item := range items {
		doc.Items = append(doc.Items, export.PedidoItem{
			Codigo:   item.CodigoProducto,
			Nombre:   item.ProductoNombre,
			Cantidad: item.CantidadSolicitada,
			Unidad:   item.UnidadNombre,
			Precio:   item.PrecioUnitario,
		})
	}

	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render order pdf")
	}
	return payload, fmt.Sprintf("pedido_%s.pdf", pedido.ID), nil
}

// FirmarDocumento issues a signed download token for a stored order document.
func (s *PedidoService) FirmarDocumento(pedidoID, archivo string) (string, time.Time, error) {
	token, expira, err := s.signer.Generate(pedidoID, archivo)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return token, expira, nil
}

// AbrirDocumento validates a signed token and opens the file behind it.
func (s *PedidoService) AbrirDocumento(token string) (io.ReadCloser, string, error) {
	_, archivo, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(archivo)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return file, filepath.Base(archivo), nil
}

// Upload carries an inbound file before validation.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

func (s *PedidoService) guardarDocumento(upload *Upload) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(upload.Filename)), ".")
	allowed := false
	for _, candidate := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(candidate)) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", appErrors.Clone(appErrors.ErrFileType, fmt.Sprintf("extension %q is not allowed", ext))
	}
	if s.cfg.MaxFileSizeBytes > 0 && upload.Size > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrFileTooLarge, "")
	}
	stored, err := s.storage.SaveStream(fmt.Sprintf("%s.%s", uuid.NewString(), ext), upload.Reader)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	return stored, nil
}
