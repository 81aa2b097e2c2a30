package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
)

// ReporteRepository tracks report generation jobs.
type ReporteRepository struct {
	db *sqlx.DB
}

// NewReporteRepository constructs a ReporteRepository.
func NewReporteRepository(db *sqlx.DB) *ReporteRepository {
	return &ReporteRepository{db: db}
}

// Create inserts a job in the Pendiente state.
func (r *ReporteRepository) Create(ctx context.Context, reporte *models.Reporte) error {
	if reporte.ID == "" {
		reporte.ID = uuid.NewString()
	}
	if reporte.Estado == "" {
		reporte.Estado = models.ReportePendiente
	}
	if reporte.FechaCreacion.IsZero() {
		reporte.FechaCreacion = time.Now().UTC()
	}
	const query = `INSERT INTO reportes (id, tipo, formato, estado, archivo, error, solicitado_por, fecha_creacion, fecha_fin)
        VALUES (:id, :tipo, :formato, :estado, :archivo, :error, :solicitado_por, :fecha_creacion, :fecha_fin)`
	if _, err := r.db.NamedExecContext(ctx, query, reporte); err != nil {
		return fmt.Errorf("create reporte: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (r *ReporteRepository) GetByID(ctx context.Context, id string) (*models.Reporte, error) {
	const query = `SELECT id, tipo, formato, estado, archivo, error, solicitado_por, fecha_creacion, fecha_fin
        FROM reportes WHERE id = $1`
	var reporte models.Reporte
	if err := r.db.GetContext(ctx, &reporte, query, id); err != nil {
		return nil, err
	}
	return &reporte, nil
}

// MarkProcessing moves a job to Procesando.
func (r *ReporteRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE reportes SET estado = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReporteProcesando); err != nil {
		return fmt.Errorf("mark reporte processing: %w", err)
	}
	return nil
}

// MarkReady stores the produced file and moves the job to Listo.
func (r *ReporteRepository) MarkReady(ctx context.Context, id string, archivo string) error {
	const query = `UPDATE reportes SET estado = $2, archivo = $3, fecha_fin = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReporteListo, archivo, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark reporte ready: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason and moves the job to Fallido.
func (r *ReporteRepository) MarkFailed(ctx context.Context, id string, cause string) error {
	const query = `UPDATE reportes SET estado = $2, error = $3, fecha_fin = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReporteFallido, cause, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark reporte failed: %w", err)
	}
	return nil
}

// ListRecent returns the latest jobs, newest first.
func (r *ReporteRepository) ListRecent(ctx context.Context, limit int) ([]models.Reporte, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, tipo, formato, estado, archivo, error, solicitado_por, fecha_creacion, fecha_fin
        FROM reportes ORDER BY fecha_creacion DESC LIMIT %d`, limit)
	var reportes []models.Reporte
	if err := r.db.SelectContext(ctx, &reportes, query); err != nil {
		return nil, fmt.Errorf("list reportes: %w", err)
	}
	return reportes, nil
}
