package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

const resumenCacheKey = "resumen:entregas"

type salonRepository interface {
	List(ctx context.Context, filter models.SalonFilter) ([]models.SalonDetalle, int, error)
	FindByID(ctx context.Context, id string) (*models.SalonDetalle, error)
	ExistsByCodigo(ctx context.Context, codigo string, excludeID string) (bool, error)
	Create(ctx context.Context, salon *models.Salon) error
	Update(ctx context.Context, salon *models.Salon) error
	Delete(ctx context.Context, id string) error
	Resumen(ctx context.Context) (*models.ResumenEntrega, error)
}

type resumenCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SalonRequest holds the payload to register or modify a classroom.
type SalonRequest struct {
	Nombre    string `json:"nombre" validate:"required,max=100"`
	Codigo    string `json:"codigo" validate:"required,max=20"`
	Profesora string `json:"profesora" validate:"required,max=200"`
	Grado     int    `json:"grado" validate:"required,min=1,max=6"`
	Turno     string `json:"turno" validate:"required,oneof=M T"`
}

// SalonService handles classroom use cases and the distribution summary.
type SalonService struct {
	repo      salonRepository
	cache     resumenCache
	cfg       config.ResumenConfig
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSalonService constructs the classroom service. cache may be nil when
// Redis is not configured.
func NewSalonService(repo salonRepository, cache resumenCache, cfg config.ResumenConfig, validate *validator.Validate, logger *zap.Logger) *SalonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalonService{repo: repo, cache: cache, cfg: cfg, validator: validate, logger: logger}
}

// WithMetrics attaches the metrics service so cache reads feed the hit ratio.
func (s *SalonService) WithMetrics(metrics *MetricsService) *SalonService {
	s.metrics = metrics
	return s
}

// List returns classrooms and pagination metadata.
func (s *SalonService) List(ctx context.Context, filter models.SalonFilter) ([]models.SalonDetalle, *models.Pagination, error) {
	salones, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return salones, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one classroom with roster counts.
func (s *SalonService) Get(ctx context.Context, id string) (*models.SalonDetalle, error) {
	salon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return salon, nil
}

// Create registers a classroom. Codes are unique ignoring case.
func (s *SalonService) Create(ctx context.Context, req SalonRequest) (*models.SalonDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	exists, err := s.repo.ExistsByCodigo(ctx, req.Codigo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate classroom code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "classroom code already used")
	}
	salon := &models.Salon{
		Nombre:    strings.TrimSpace(req.Nombre),
		Codigo:    strings.TrimSpace(req.Codigo),
		Profesora: strings.TrimSpace(req.Profesora),
		Grado:     req.Grado,
		Turno:     models.Turno(req.Turno),
	}
	if err := s.repo.Create(ctx, salon); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	s.InvalidateResumen(ctx)
	return s.Get(ctx, salon.ID)
}

// Update modifies a classroom.
func (s *SalonService) Update(ctx context.Context, id string, req SalonRequest) (*models.SalonDetalle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	actual, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCodigo(ctx, req.Codigo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate classroom code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "classroom code already used")
	}
	salon := actual.Salon
	salon.Nombre = strings.TrimSpace(req.Nombre)
	salon.Codigo = strings.TrimSpace(req.Codigo)
	salon.Profesora = strings.TrimSpace(req.Profesora)
	salon.Grado = req.Grado
	salon.Turno = models.Turno(req.Turno)
	if err := s.repo.Update(ctx, &salon); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return s.Get(ctx, id)
}

// Delete removes a classroom with its roster, supply list and deliveries.
func (s *SalonService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	s.InvalidateResumen(ctx)
	return nil
}

// Resumen returns the distribution dashboard counters, cached when Redis is
// available.
func (s *SalonService) Resumen(ctx context.Context) (*models.ResumenEntrega, error) {
	if s.cache != nil && s.cfg.CacheEnabled {
		var cached models.ResumenEntrega
		if err := s.cache.Get(ctx, resumenCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("resumen cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	resumen, err := s.repo.Resumen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute summary")
	}

	if s.cache != nil && s.cfg.CacheEnabled {
		if err := s.cache.Set(ctx, resumenCacheKey, resumen, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("resumen cache write failed", zap.Error(err))
		}
	}
	return resumen, nil
}

// InvalidateResumen drops the cached summary after any write that moves the
// counters. Safe to call with caching disabled.
func (s *SalonService) InvalidateResumen(ctx context.Context) {
	if s.cache == nil || !s.cfg.CacheEnabled {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "resumen:*"); err != nil {
		s.logger.Warn("resumen cache invalidation failed", zap.Error(err))
	}
}
