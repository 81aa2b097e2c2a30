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

type unidadRepository interface {
	List(ctx context.Context, filter models.UnidadFilter) ([]models.Unidad, error)
	FindByID(ctx context.Context, id string) (*models.Unidad, error)
	FindByNombre(ctx context.Context, nombre string) (*models.Unidad, error)
	ExistsByNombre(ctx context.Context, nombre string, excludeID string) (bool, error)
	Create(ctx context.Context, unidad *models.Unidad) error
	Update(ctx context.Context, unidad *models.Unidad) error
	CountProductos(ctx context.Context, unidadID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// CreateUnidadRequest holds the payload to register a unit.
type CreateUnidadRequest struct {
	Nombre      string `json:"nombre" validate:"required,max=50"`
	Abreviatura string `json:"abreviatura" validate:"required,max=10"`
}

// UpdateUnidadRequest holds the payload to modify a unit.
type UpdateUnidadRequest struct {
	Nombre      string `json:"nombre" validate:"required,max=50"`
	Abreviatura string `json:"abreviatura" validate:"required,max=10"`
	Activo      bool   `json:"activo"`
}

// UnidadService handles unit-of-measure use cases.
type UnidadService struct {
	repo      unidadRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUnidadService constructs the unit service.
func NewUnidadService(repo unidadRepository, validate *validator.Validate, logger *zap.Logger) *UnidadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnidadService{repo: repo, validator: validate, logger: logger}
}

// List returns units matching the filter.
func (s *UnidadService) List(ctx context.Context, filter models.UnidadFilter) ([]models.Unidad, error) {
	unidades, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list units")
	}
	return unidades, nil
}

// Get returns one unit.
func (s *UnidadService) Get(ctx context.Context, id string) (*models.Unidad, error) {
	unidad, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unidad, nil
}

// Create registers a new unit. Names are unique ignoring case.
func (s *UnidadService) Create(ctx context.Context, req CreateUnidadRequest) (*models.Unidad, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}
	exists, err := s.repo.ExistsByNombre(ctx, req.Nombre, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate unit name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unit name already used")
	}
	unidad := &models.Unidad{
		Nombre:      strings.TrimSpace(req.Nombre),
		Abreviatura: strings.TrimSpace(req.Abreviatura),
		Activo:      true,
	}
	if err := s.repo.Create(ctx, unidad); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unit")
	}
	return unidad, nil
}

// Update modifies a unit.
func (s *UnidadService) Update(ctx context.Context, id string, req UpdateUnidadRequest) (*models.Unidad, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}
	unidad, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByNombre(ctx, req.Nombre, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate unit name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unit name already used")
	}
	unidad.Nombre = strings.TrimSpace(req.Nombre)
	unidad.Abreviatura = strings.TrimSpace(req.Abreviatura)
	unidad.Activo = req.Activo
	if err := s.repo.Update(ctx, unidad); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unit")
	}
	return unidad, nil
}

// Delete removes a unit unless products still reference it.
func (s *UnidadService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	total, err := s.repo.CountProductos(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unit usage")
	}
	if total > 0 {
		return appErrors.Clone(appErrors.ErrUnitInUse, "")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unit")
	}
	return nil
}

// FindOrCreate resolves a unit by name, creating an active one on first use.
// Returns the unit and whether it was created. Imports rely on this.
func (s *UnidadService) FindOrCreate(ctx context.Context, nombre string) (*models.Unidad, bool, error) {
	nombre = strings.TrimSpace(nombre)
	if nombre == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unit name is required")
	}
	unidad, err := s.repo.FindByNombre(ctx, nombre)
	if err == nil {
		return unidad, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve unit")
	}

	abreviatura := nombre
	if len([]rune(abreviatura)) > 10 {
		abreviatura = string([]rune(abreviatura)[:10])
	}
	unidad = &models.Unidad{Nombre: nombre, Abreviatura: strings.ToLower(abreviatura), Activo: true}
	if err := s.repo.Create(ctx, unidad); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unit")
	}
	return unidad, true, nil
}
