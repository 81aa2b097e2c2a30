package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

type alumnoRepository interface {
	ListConEstado(ctx context.Context, salonID string) ([]models.AlumnoDetalle, error)
	FindByID(ctx context.Context, id string) (*models.AlumnoDetalle, error)
	ExistsByDNI(ctx context.Context, dni string, excludeID string) (bool, error)
	Create(ctx context.Context, alumno *models.Alumno) error
	Update(ctx context.Context, alumno *models.Alumno) error
	Delete(ctx context.Context, id string) error
}

type entregaRepository interface {
	ListUtiles(ctx context.Context, salonID string) ([]models.UtilSalon, error)
	GetUtil(ctx context.Context, id string) (*models.UtilSalon, error)
	CreateUtil(ctx context.Context, util *models.UtilSalon) error
	UpdateUtil(ctx context.Context, util *models.UtilSalon) error
	DeleteUtil(ctx context.Context, id string) error
	ListEntregas(ctx context.Context, alumnoID string) ([]models.EntregaDetalle, error)
	GetEntrega(ctx context.Context, id string) (*models.EntregaDetalle, error)
	ActualizarCantidad(ctx context.Context, entregaID string, cantidad int, observaciones *string) (*models.EntregaDetalle, error)
	MarcarCompleta(ctx context.Context, alumnoID string) error
	Reiniciar(ctx context.Context, alumnoID string) error
	ListHistorial(ctx context.Context, entregaID string) ([]models.HistorialEntrega, error)
}

type resumenInvalidator interface {
	InvalidateResumen(ctx context.Context)
}

// AlumnoRequest holds the payload to register or modify a student.
type AlumnoRequest struct {
	Nombre string  `json:"nombre" validate:"required,max=200"`
	DNI    string  `json:"dni" validate:"required,max=15"`
	Sexo   string  `json:"sexo" validate:"omitempty,oneof=M F"`
	Email  *string `json:"email" validate:"omitempty,email"`
}

// UtilRequest holds the payload for classroom supply items.
type UtilRequest struct {
	Nombre            string  `json:"nombre" validate:"required,max=200"`
	CantidadRequerida int     `json:"cantidad_requerida" validate:"required,min=1"`
	Descripcion       *string `json:"descripcion"`
	Orden             int     `json:"orden" validate:"min=0"`
}

// EntregaRequest holds the payload to set a delivered quantity.
type EntregaRequest struct {
	Cantidad      int     `json:"cantidad"`
	Observaciones *string `json:"observaciones"`
}

// AlumnoService handles the student roster, supply lists and the per-student
// delivery grid.
type AlumnoService struct {
	alumnos   alumnoRepository
	entregas  entregaRepository
	salones   importSalonRepository
	resumen   resumenInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAlumnoService constructs the student service.
func NewAlumnoService(alumnos alumnoRepository, entregas entregaRepository, salones importSalonRepository, resumen resumenInvalidator, validate *validator.Validate, logger *zap.Logger) *AlumnoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlumnoService{alumnos: alumnos, entregas: entregas, salones: salones, resumen: resumen, validator: validate, logger: logger}
}

// ListPorSalon returns the roster of a classroom with computed delivery
// states.
func (s *AlumnoService) ListPorSalon(ctx context.Context, salonID string) ([]models.AlumnoDetalle, error) {
	if _, err := s.salones.FindByID(ctx, salonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	alumnos, err := s.alumnos.ListConEstado(ctx, salonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return alumnos, nil
}

// Get returns one student with delivery aggregates.
func (s *AlumnoService) Get(ctx context.Context, id string) (*models.AlumnoDetalle, error) {
	alumno, err := s.alumnos.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return alumno, nil
}

// Create registers a student in a classroom. The national ID is unique
// across the whole institution; the delivery grid is backfilled on creation.
func (s *AlumnoService) Create(ctx context.Context, salonID string, req AlumnoRequest) (*models.AlumnoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.salones.FindByID(ctx, salonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	exists, err := s.alumnos.ExistsByDNI(ctx, req.DNI, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}
	alumno := &models.Alumno{
		SalonID: salonID,
		Nombre:  strings.TrimSpace(req.Nombre),
		DNI:     strings.TrimSpace(req.DNI),
		Sexo:    req.Sexo,
		Email:   req.Email,
	}
	if err := s.alumnos.Create(ctx, alumno); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.resumen.InvalidateResumen(ctx)
	return s.Get(ctx, alumno.ID)
}

// Update modifies a student's personal data.
func (s *AlumnoService) Update(ctx context.Context, id string, req AlumnoRequest) (*models.AlumnoDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	actual, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.alumnos.ExistsByDNI(ctx, req.DNI, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}
	alumno := actual.Alumno
	alumno.Nombre = strings.TrimSpace(req.Nombre)
	alumno.DNI = strings.TrimSpace(req.DNI)
	alumno.Sexo = req.Sexo
	alumno.Email = req.Email
	if err := s.alumnos.Update(ctx, &alumno); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.Get(ctx, id)
}

// Delete removes a student with their delivery rows.
func (s *AlumnoService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.alumnos.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.resumen.InvalidateResumen(ctx)
	return nil
}

// Utiles returns the supply list of a classroom.
func (s *AlumnoService) Utiles(ctx context.Context, salonID string) ([]models.UtilSalon, error) {
	utiles, err := s.entregas.ListUtiles(ctx, salonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supply items")
	}
	return utiles, nil
}

// CreateUtil adds a supply item to a classroom and backfills the delivery
// grid for every enrolled student.
func (s *AlumnoService) CreateUtil(ctx context.Context, salonID string, req UtilRequest) (*models.UtilSalon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid supply item payload")
	}
	if _, err := s.salones.FindByID(ctx, salonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	util := &models.UtilSalon{
		SalonID:           salonID,
		Nombre:            strings.TrimSpace(req.Nombre),
		CantidadRequerida: req.CantidadRequerida,
		Descripcion:       req.Descripcion,
		Orden:             req.Orden,
	}
	if err := s.entregas.CreateUtil(ctx, util); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create supply item")
	}
	s.resumen.InvalidateResumen(ctx)
	return util, nil
}

// UpdateUtil modifies a supply item, clamping delivered quantities down when
// the requirement shrinks.
func (s *AlumnoService) UpdateUtil(ctx context.Context, utilID string, req UtilRequest) (*models.UtilSalon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid supply item payload")
	}
	util, err := s.entregas.GetUtil(ctx, utilID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supply item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supply item")
	}
	util.Nombre = strings.TrimSpace(req.Nombre)
	util.CantidadRequerida = req.CantidadRequerida
	util.Descripcion = req.Descripcion
	util.Orden = req.Orden
	if err := s.entregas.UpdateUtil(ctx, util); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update supply item")
	}
	s.resumen.InvalidateResumen(ctx)
	return util, nil
}

// DeleteUtil removes a supply item and its delivery rows.
func (s *AlumnoService) DeleteUtil(ctx context.Context, utilID string) error {
	if _, err := s.entregas.GetUtil(ctx, utilID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "supply item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supply item")
	}
	if err := s.entregas.DeleteUtil(ctx, utilID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete supply item")
	}
	s.resumen.InvalidateResumen(ctx)
	return nil
}

// Entregas returns a student's delivery rows.
func (s *AlumnoService) Entregas(ctx context.Context, alumnoID string) ([]models.EntregaDetalle, error) {
	if _, err := s.Get(ctx, alumnoID); err != nil {
		return nil, err
	}
	entregas, err := s.entregas.ListEntregas(ctx, alumnoID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deliveries")
	}
	return entregas, nil
}

// ActualizarEntrega sets the delivered quantity of one row. The repository
// clamps to [0, required] and records the audit entry.
func (s *AlumnoService) ActualizarEntrega(ctx context.Context, entregaID string, req EntregaRequest) (*models.EntregaDetalle, error) {
	entrega, err := s.entregas.ActualizarCantidad(ctx, entregaID, req.Cantidad, req.Observaciones)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update delivery")
	}
	s.resumen.InvalidateResumen(ctx)
	return entrega, nil
}

// MarcarEntregaCompleta raises every delivery of a student to the required
// quantity.
func (s *AlumnoService) MarcarEntregaCompleta(ctx context.Context, alumnoID string) (*models.AlumnoDetalle, error) {
	if _, err := s.Get(ctx, alumnoID); err != nil {
		return nil, err
	}
	if err := s.entregas.MarcarCompleta(ctx, alumnoID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete deliveries")
	}
	s.resumen.InvalidateResumen(ctx)
	return s.Get(ctx, alumnoID)
}

// ReiniciarEntregas resets every delivery of a student to zero.
func (s *AlumnoService) ReiniciarEntregas(ctx context.Context, alumnoID string) (*models.AlumnoDetalle, error) {
	if _, err := s.Get(ctx, alumnoID); err != nil {
		return nil, err
	}
	if err := s.entregas.Reiniciar(ctx, alumnoID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset deliveries")
	}
	s.resumen.InvalidateResumen(ctx)
	return s.Get(ctx, alumnoID)
}

// Historial returns the audit entries of one delivery row.
func (s *AlumnoService) Historial(ctx context.Context, entregaID string) ([]models.HistorialEntrega, error) {
	if _, err := s.entregas.GetEntrega(ctx, entregaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	historial, err := s.entregas.ListHistorial(ctx, entregaID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}
	return historial, nil
}
