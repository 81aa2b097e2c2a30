package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
	"github.com/sigea-dev/almacen-api/pkg/export"
	"github.com/sigea-dev/almacen-api/pkg/jobs"
	"github.com/sigea-dev/almacen-api/pkg/storage"
)

const (
	ReporteInventario  = "inventario"
	ReporteMovimientos = "movimientos"
)

type reporteRepository interface {
	Create(ctx context.Context, reporte *models.Reporte) error
	GetByID(ctx context.Context, id string) (*models.Reporte, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string, archivo string) error
	MarkFailed(ctx context.Context, id string, cause string) error
	ListRecent(ctx context.Context, limit int) ([]models.Reporte, error)
}

type reporteProductoLister interface {
	ListAll(ctx context.Context, ubicacion models.UbicacionAlmacen) ([]models.ProductoDetalle, error)
}

type reporteMovimientoLister interface {
	List(ctx context.Context, filter repository.MovimientoFilter) ([]models.Movimiento, int, error)
}

type reporteJobPayload struct {
	ReporteID string
	Request   models.ReporteRequest
}

// ReporteService builds inventory and movement reports in the background.
// Requests are persisted, pushed onto an in-memory queue and rendered by
// worker goroutines into the report storage directory.
type ReporteService struct {
	repo        reporteRepository
	productos   reporteProductoLister
	movimientos reporteMovimientoLister
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	cfg         config.ReportsConfig
	queue       *jobs.Queue
	metrics     *MetricsService
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewReporteService(
	repo reporteRepository,
	productos reporteProductoLister,
	movimientos reporteMovimientoLister,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg config.ReportsConfig,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReporteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ReporteService{
		repo:        repo,
		productos:   productos,
		movimientos: movimientos,
		store:       store,
		signer:      signer,
		cfg:         cfg,
		metrics:     metrics,
		validate:    validate,
		logger:      logger,
	}

	s.queue = jobs.NewQueue("reportes", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})

	return s
}

// Start launches the worker pool and the cleanup loop.
func (s *ReporteService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop drains the worker pool.
func (s *ReporteService) Stop() {
	if !s.cfg.Enabled {
		return
	}
	s.queue.Stop()
}

// Solicitar registers a report request and enqueues its build.
func (s *ReporteService) Solicitar(ctx context.Context, req models.ReporteRequest, solicitadoPor *string) (*models.Reporte, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report generation is disabled")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Ubicacion != nil && !models.UbicacionAlmacen(*req.Ubicacion).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown warehouse location")
	}

	reporte := &models.Reporte{
		ID:            uuid.NewString(),
		Tipo:          req.Tipo,
		Formato:       req.Formato,
		Estado:        models.ReportePendiente,
		SolicitadoPor: solicitadoPor,
		FechaCreacion: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, reporte); err != nil {
		return nil, appErrors.FromError(err)
	}

	job := jobs.Job{
		ID:      reporte.ID,
		Type:    req.Tipo,
		Payload: reporteJobPayload{ReporteID: reporte.ID, Request: req},
	}
	if err := s.queue.Enqueue(job); err != nil {
		_ = s.repo.MarkFailed(ctx, reporte.ID, "queue unavailable")
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("reporte encolado",
		zap.String("reporte_id", reporte.ID),
		zap.String("tipo", reporte.Tipo),
		zap.String("formato", string(reporte.Formato)))

	return reporte, nil
}

// Estado returns the current state of a report job.
func (s *ReporteService) Estado(ctx context.Context, id string) (*models.Reporte, error) {
	reporte, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.FromError(err)
	}
	return reporte, nil
}

// Recientes lists the latest report jobs.
func (s *ReporteService) Recientes(ctx context.Context, limit int) ([]models.Reporte, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reportes, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return reportes, nil
}

// Descargar returns a signed download token for a finished report.
func (s *ReporteService) Descargar(ctx context.Context, id string) (string, time.Time, error) {
	reporte, err := s.Estado(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if reporte.Estado != models.ReporteListo || reporte.Archivo == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInvalidState, "report is not ready for download")
	}

	token, expiresAt, err := s.signer.Generate(reporte.ID, *reporte.Archivo)
	if err != nil {
		return "", time.Time{}, appErrors.FromError(err)
	}
	return token, expiresAt, nil
}

// AbrirArchivo resolves a signed token into the stored report file.
func (s *ReporteService) AbrirArchivo(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	return file, relPath, nil
}

func (s *ReporteService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reporteJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.ID)
	}

	if err := s.repo.MarkProcessing(ctx, payload.ReporteID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	archivo, err := s.build(ctx, payload)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.ReporteID, err.Error()); markErr != nil {
			s.logger.Error("failed to record report failure",
				zap.String("reporte_id", payload.ReporteID), zap.Error(markErr))
		}
		s.metrics.RecordReporte(string(models.ReporteFallido))
		return err
	}

	if err := s.repo.MarkReady(ctx, payload.ReporteID, archivo); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	s.metrics.RecordReporte(string(models.ReporteListo))
	s.logger.Info("reporte generado",
		zap.String("reporte_id", payload.ReporteID),
		zap.String("archivo", archivo))
	return nil
}

func (s *ReporteService) build(ctx context.Context, payload reporteJobPayload) (string, error) {
	var (
		data export.Dataset
		err  error
	)

	switch payload.Request.Tipo {
	case ReporteInventario:
		data, err = s.datasetInventario(ctx, payload.Request)
	case ReporteMovimientos:
		data, err = s.datasetMovimientos(ctx)
	default:
		err = fmt.Errorf("unknown report type %q", payload.Request.Tipo)
	}
	if err != nil {
		return "", err
	}

	var payloadBytes []byte
	switch payload.Request.Formato {
	case models.FormatoCSV:
		payloadBytes, err = export.NewCSVExporter().Render(data)
	case models.FormatoXLSX:
		payloadBytes, err = export.NewXLSXExporter().Render(data, "Reporte")
	default:
		err = fmt.Errorf("unsupported format %q", payload.Request.Formato)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s.%s", payload.Request.Tipo, payload.ReporteID, payload.Request.Formato)
	return s.store.Save(filename, payloadBytes)
}

func (s *ReporteService) datasetInventario(ctx context.Context, req models.ReporteRequest) (export.Dataset, error) {
	var ubicacion models.UbicacionAlmacen
	if req.Ubicacion != nil {
		ubicacion = models.UbicacionAlmacen(*req.Ubicacion)
	}

	productos, err := s.productos.ListAll(ctx, ubicacion)
	if err != nil {
		return export.Dataset{}, err
	}
	return DatasetProductos(productos), nil
}

func (s *ReporteService) datasetMovimientos(ctx context.Context) (export.Dataset, error) {
	headers := []string{"fecha", "producto_id", "tipo", "cantidad", "cantidad_anterior", "cantidad_nueva", "observacion", "usuario"}
	rows := make([]map[string]string, 0, 256)

	filter := repository.MovimientoFilter{Page: 1, PageSize: 200}
	for {
		movimientos, total, err := s.movimientos.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, err
		}

		for _, m := range movimientos {
			rows = append(rows, map[string]string{
				"fecha":             m.FechaMovimiento.Format(time.RFC3339),
				"producto_id":       m.ProductoID,
				"tipo":              string(m.Tipo),
				"cantidad":          strconv.Itoa(m.Cantidad),
				"cantidad_anterior": strconv.Itoa(m.CantidadAnterior),
				"cantidad_nueva":    strconv.Itoa(m.CantidadNueva),
				"observacion":       deref(m.Observacion),
				"usuario":           deref(m.Usuario),
			})
		}

		if len(movimientos) == 0 || len(rows) >= total {
			break
		}
		filter.Page++
	}

	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ReporteService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.CleanupOlderThan(s.cfg.SignedURLTTL)
			if err != nil {
				s.logger.Warn("report cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
