package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigea-dev/almacen-api/internal/models"
)

// Audit actions recorded in the delivery history.
const (
	AccionActualizacion = "actualizacion"
	AccionCompletado    = "completado"
	AccionReinicio      = "reinicio"
)

// EntregaRepository manages classroom supply lists, the per-student delivery
// grid and its audit history.
type EntregaRepository struct {
	db *sqlx.DB
}

// NewEntregaRepository constructs an EntregaRepository.
func NewEntregaRepository(db *sqlx.DB) *EntregaRepository {
	return &EntregaRepository{db: db}
}

// ListUtiles returns the supply list of a classroom in display order.
func (r *EntregaRepository) ListUtiles(ctx context.Context, salonID string) ([]models.UtilSalon, error) {
	const query = `SELECT id, salon_id, nombre, cantidad_requerida, descripcion, orden, fecha_creacion
        FROM utiles_salon WHERE salon_id = $1 ORDER BY orden ASC, nombre ASC`
	var utiles []models.UtilSalon
	if err := r.db.SelectContext(ctx, &utiles, query, salonID); err != nil {
		return nil, fmt.Errorf("list utiles: %w", err)
	}
	return utiles, nil
}

// GetUtil fetches one supply item by identifier.
func (r *EntregaRepository) GetUtil(ctx context.Context, id string) (*models.UtilSalon, error) {
	const query = `SELECT id, salon_id, nombre, cantidad_requerida, descripcion, orden, fecha_creacion
        FROM utiles_salon WHERE id = $1`
	var util models.UtilSalon
	if err := r.db.GetContext(ctx, &util, query, id); err != nil {
		return nil, err
	}
	return &util, nil
}

// CreateUtil inserts a supply item and backfills one zero-quantity delivery
// row per student of the classroom, in one transaction.
func (r *EntregaRepository) CreateUtil(ctx context.Context, util *models.UtilSalon) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create util: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if util.ID == "" {
		util.ID = uuid.NewString()
	}
	if util.FechaCreacion.IsZero() {
		util.FechaCreacion = time.Now().UTC()
	}
	const insert = `INSERT INTO utiles_salon (id, salon_id, nombre, cantidad_requerida, descripcion, orden, fecha_creacion)
        VALUES (:id, :salon_id, :nombre, :cantidad_requerida, :descripcion, :orden, :fecha_creacion)`
	if _, err := tx.NamedExecContext(ctx, insert, util); err != nil {
		return fmt.Errorf("create util: %w", err)
	}

	var alumnoIDs []string
	if err := tx.SelectContext(ctx, &alumnoIDs, "SELECT id FROM alumnos WHERE salon_id = $1", util.SalonID); err != nil {
		return fmt.Errorf("alumnos for backfill: %w", err)
	}
	now := time.Now().UTC()
	const entrega = `INSERT INTO entregas_utiles (id, alumno_id, util_id, cantidad_entregada, fecha_entrega, fecha_modificacion, observaciones)
        VALUES ($1, $2, $3, 0, NULL, $4, NULL)`
	for _, alumnoID := range alumnoIDs {
		if _, err := tx.ExecContext(ctx, entrega, uuid.NewString(), alumnoID, util.ID, now); err != nil {
			return fmt.Errorf("backfill entrega: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create util: %w", err)
	}
	commit = true
	return nil
}

// UpdateUtil modifies a supply item. When the required quantity shrinks, the
// delivered quantities are clamped down so no row exceeds the new ceiling.
func (r *EntregaRepository) UpdateUtil(ctx context.Context, util *models.UtilSalon) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update util: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const update = `UPDATE utiles_salon SET nombre = :nombre, cantidad_requerida = :cantidad_requerida,
        descripcion = :descripcion, orden = :orden WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, util); err != nil {
		return fmt.Errorf("update util: %w", err)
	}

	const clamp = `UPDATE entregas_utiles SET cantidad_entregada = $2, fecha_modificacion = $3
        WHERE util_id = $1 AND cantidad_entregada > $2`
	if _, err := tx.ExecContext(ctx, clamp, util.ID, util.CantidadRequerida, time.Now().UTC()); err != nil {
		return fmt.Errorf("clamp entregas: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update util: %w", err)
	}
	commit = true
	return nil
}

// DeleteUtil removes a supply item and, through the schema cascade, its
// delivery rows.
func (r *EntregaRepository) DeleteUtil(ctx context.Context, id string) error {
	const query = `DELETE FROM utiles_salon WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete util: %w", err)
	}
	return nil
}

const entregaDetalleColumns = `e.id, e.alumno_id, e.util_id, e.cantidad_entregada, e.fecha_entrega, e.fecha_modificacion, e.observaciones,
        us.nombre AS util_nombre, us.cantidad_requerida`

// ListEntregas returns a student's delivery rows with the supply item joined,
// in the classroom's display order.
func (r *EntregaRepository) ListEntregas(ctx context.Context, alumnoID string) ([]models.EntregaDetalle, error) {
	query := fmt.Sprintf(`SELECT %s FROM entregas_utiles e
        INNER JOIN utiles_salon us ON us.id = e.util_id
        WHERE e.alumno_id = $1 ORDER BY us.orden ASC, us.nombre ASC`, entregaDetalleColumns)
	var entregas []models.EntregaDetalle
	if err := r.db.SelectContext(ctx, &entregas, query, alumnoID); err != nil {
		return nil, fmt.Errorf("list entregas: %w", err)
	}
	return entregas, nil
}

// GetEntrega fetches one delivery row with the supply item joined.
func (r *EntregaRepository) GetEntrega(ctx context.Context, id string) (*models.EntregaDetalle, error) {
	query := fmt.Sprintf(`SELECT %s FROM entregas_utiles e
        INNER JOIN utiles_salon us ON us.id = e.util_id WHERE e.id = $1`, entregaDetalleColumns)
	var entrega models.EntregaDetalle
	if err := r.db.GetContext(ctx, &entrega, query, id); err != nil {
		return nil, err
	}
	return &entrega, nil
}

// ActualizarCantidad sets the delivered quantity of one row, clamped to
// [0, required], stamps the delivery date and appends the audit entry, all in
// one transaction. Returns the updated row.
func (r *EntregaRepository) ActualizarCantidad(ctx context.Context, entregaID string, cantidad int, observaciones *string) (*models.EntregaDetalle, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin actualizar entrega: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var actual models.EntregaDetalle
	lock := fmt.Sprintf(`SELECT %s FROM entregas_utiles e
        INNER JOIN utiles_salon us ON us.id = e.util_id WHERE e.id = $1 FOR UPDATE OF e`, entregaDetalleColumns)
	if err := tx.GetContext(ctx, &actual, lock, entregaID); err != nil {
		return nil, err
	}

	if cantidad < 0 {
		cantidad = 0
	}
	if cantidad > actual.CantidadRequerida {
		cantidad = actual.CantidadRequerida
	}

	now := time.Now().UTC()
	// The delivery date marks the first time anything was handed over: it is
	// stamped on the 0 -> >0 transition, kept as-is while the quantity stays
	// positive, and cleared when the row returns to zero.
	var fechaEntrega *time.Time
	if cantidad > 0 {
		fechaEntrega = &now
		if actual.FechaEntrega != nil {
			fechaEntrega = actual.FechaEntrega
		}
	}
	// A quantity-only request must not wipe notes written earlier.
	if observaciones == nil {
		observaciones = actual.Observaciones
	}
	const update = `UPDATE entregas_utiles SET cantidad_entregada = $2, fecha_entrega = $3, fecha_modificacion = $4, observaciones = $5
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, entregaID, cantidad, fechaEntrega, now, observaciones); err != nil {
		return nil, fmt.Errorf("actualizar entrega: %w", err)
	}

	if cantidad != actual.CantidadEntregada {
		detalle := fmt.Sprintf("%s: %d -> %d", actual.UtilNombre, actual.CantidadEntregada, cantidad)
		if err := insertHistorial(ctx, tx, entregaID, AccionActualizacion, &detalle, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit actualizar entrega: %w", err)
	}
	commit = true

	actual.CantidadEntregada = cantidad
	actual.FechaEntrega = fechaEntrega
	actual.FechaModificacion = now
	actual.Observaciones = observaciones
	return &actual, nil
}

// MarcarCompleta raises every delivery row of a student to the required
// quantity and stamps the student's delivery date, with one audit entry per
// changed row.
func (r *EntregaRepository) MarcarCompleta(ctx context.Context, alumnoID string) error {
	return r.toggleAlumno(ctx, alumnoID, true)
}

// Reiniciar resets every delivery row of a student to zero and clears the
// student's delivery date, with one audit entry per changed row.
func (r *EntregaRepository) Reiniciar(ctx context.Context, alumnoID string) error {
	return r.toggleAlumno(ctx, alumnoID, false)
}

func (r *EntregaRepository) toggleAlumno(ctx context.Context, alumnoID string, completa bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin toggle entregas: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM entregas_utiles e
        INNER JOIN utiles_salon us ON us.id = e.util_id
        WHERE e.alumno_id = $1 FOR UPDATE OF e`, entregaDetalleColumns)
	var entregas []models.EntregaDetalle
	if err := tx.SelectContext(ctx, &entregas, query, alumnoID); err != nil {
		return fmt.Errorf("entregas for toggle: %w", err)
	}

	now := time.Now().UTC()
	accion := AccionCompletado
	if !completa {
		accion = AccionReinicio
	}

	const update = `UPDATE entregas_utiles SET cantidad_entregada = $2, fecha_entrega = $3, fecha_modificacion = $4 WHERE id = $1`
	for _, entrega := range entregas {
		objetivo := 0
		var fechaEntrega *time.Time
		if completa {
			objetivo = entrega.CantidadRequerida
			fechaEntrega = &now
			if entrega.FechaEntrega != nil {
				fechaEntrega = entrega.FechaEntrega
			}
		}
		if entrega.CantidadEntregada == objetivo {
			continue
		}
		if _, err := tx.ExecContext(ctx, update, entrega.ID, objetivo, fechaEntrega, now); err != nil {
			return fmt.Errorf("toggle entrega: %w", err)
		}
		detalle := fmt.Sprintf("%s: %d -> %d", entrega.UtilNombre, entrega.CantidadEntregada, objetivo)
		if err := insertHistorial(ctx, tx, entrega.ID, accion, &detalle, now); err != nil {
			return err
		}
	}

	var fechaAlumno *time.Time
	if completa {
		fechaAlumno = &now
	}
	if _, err := tx.ExecContext(ctx, "UPDATE alumnos SET fecha_entrega = $2 WHERE id = $1", alumnoID, fechaAlumno); err != nil {
		return fmt.Errorf("stamp alumno entrega: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit toggle entregas: %w", err)
	}
	commit = true
	return nil
}

// ListHistorial returns the audit entries of a delivery row, newest first.
func (r *EntregaRepository) ListHistorial(ctx context.Context, entregaID string) ([]models.HistorialEntrega, error) {
	const query = `SELECT id, entrega_id, accion, observacion, fecha
        FROM historial_entregas WHERE entrega_id = $1 ORDER BY fecha DESC`
	var historial []models.HistorialEntrega
	if err := r.db.SelectContext(ctx, &historial, query, entregaID); err != nil {
		return nil, fmt.Errorf("list historial: %w", err)
	}
	return historial, nil
}

func insertHistorial(ctx context.Context, tx *sqlx.Tx, entregaID, accion string, observacion *string, fecha time.Time) error {
	const query = `INSERT INTO historial_entregas (id, entrega_id, accion, observacion, fecha)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), entregaID, accion, observacion, fecha); err != nil {
		return fmt.Errorf("insert historial: %w", err)
	}
	return nil
}
