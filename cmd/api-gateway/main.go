package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sigea-dev/almacen-api/api/swagger"
	"github.com/sigea-dev/almacen-api/internal/handler"
	"github.com/sigea-dev/almacen-api/internal/middleware"
	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/internal/repository"
	"github.com/sigea-dev/almacen-api/internal/service"
	"github.com/sigea-dev/almacen-api/pkg/cache"
	"github.com/sigea-dev/almacen-api/pkg/config"
	"github.com/sigea-dev/almacen-api/pkg/database"
	"github.com/sigea-dev/almacen-api/pkg/logger"
	corsmiddleware "github.com/sigea-dev/almacen-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sigea-dev/almacen-api/pkg/middleware/requestid"
	"github.com/sigea-dev/almacen-api/pkg/storage"
)

// @title Almacen API
// @version 1.0.0
// @description School warehouse, purchase order and supply distribution API
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// The summary cache is optional: without Redis the endpoints still work,
	// every read just hits postgres.
	var resumenCache *repository.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, summary cache disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		resumenCache = repository.NewCacheRepository(redisClient, logr)
	}

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	unidadRepo := repository.NewUnidadRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	movimientoRepo := repository.NewMovimientoRepository(db)
	pedidoRepo := repository.NewPedidoRepository(db)
	salonRepo := repository.NewSalonRepository(db)
	alumnoRepo := repository.NewAlumnoRepository(db)
	entregaRepo := repository.NewEntregaRepository(db)
	userRepo := repository.NewUserRepository(db)
	reporteRepo := repository.NewReporteRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	unidadSvc := service.NewUnidadService(unidadRepo, validate, logr)
	productoSvc := service.NewProductoService(productoRepo, movimientoRepo, validate, logr).WithMetrics(metricsSvc)
	pedidoSvc := service.NewPedidoService(pedidoRepo, productoRepo, documentStore, documentSigner, cfg.Documents, validate, logr)

	var salonSvc *service.SalonService
	if resumenCache != nil {
		salonSvc = service.NewSalonService(salonRepo, resumenCache, cfg.Resumen, validate, logr)
	} else {
		salonSvc = service.NewSalonService(salonRepo, nil, cfg.Resumen, validate, logr)
	}
	salonSvc.WithMetrics(metricsSvc)
	alumnoSvc := service.NewAlumnoService(alumnoRepo, entregaRepo, salonRepo, salonSvc, validate, logr)
	importacionSvc := service.NewImportacionService(productoRepo, unidadSvc, salonRepo, alumnoRepo, logr).WithMetrics(metricsSvc)

	var reporteSvc *service.ReporteService
	if cfg.Reports.Enabled {
		reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reporteSvc = service.NewReporteService(reporteRepo, productoRepo, movimientoRepo, reportStore, reportSigner, cfg.Reports, metricsSvc, validate, logr)
	} else {
		reporteSvc = service.NewReporteService(reporteRepo, productoRepo, movimientoRepo, nil, nil, cfg.Reports, metricsSvc, validate, logr)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	reporteSvc.Start(workerCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:         handler.NewAuthHandler(authSvc),
		users:        handler.NewUserHandler(userSvc),
		unidades:     handler.NewUnidadHandler(unidadSvc),
		productos:    handler.NewProductoHandler(productoSvc),
		pedidos:      handler.NewPedidoHandler(pedidoSvc),
		salones:      handler.NewSalonHandler(salonSvc),
		alumnos:      handler.NewAlumnoHandler(alumnoSvc),
		importacion:  handler.NewImportacionHandler(importacionSvc),
		reportes:     handler.NewReporteHandler(reporteSvc),
		metrics:      handler.NewMetricsHandler(metricsSvc),
		authenticate: middleware.JWT(authSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logr.Sugar().Infow("shutting down")
	stopWorkers()
	reporteSvc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}

type routeDeps struct {
	auth         *handler.AuthHandler
	users        *handler.UserHandler
	unidades     *handler.UnidadHandler
	productos    *handler.ProductoHandler
	pedidos      *handler.PedidoHandler
	salones      *handler.SalonHandler
	alumnos      *handler.AlumnoHandler
	importacion  *handler.ImportacionHandler
	reportes     *handler.ReporteHandler
	metrics      *handler.MetricsHandler
	authenticate gin.HandlerFunc
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", d.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := r.Group(prefix)

	api.POST("/auth/login", d.auth.Login)

	// Signed-token downloads carry their own auth inside the token.
	api.GET("/pedidos/documentos", d.pedidos.DescargarDocumento)
	api.GET("/reportes/archivo", d.reportes.Archivo)

	authed := api.Group("", d.authenticate)
	escribe := middleware.RequireRoles(models.RoleAdmin, models.RoleAlmacenero)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authed.GET("/auth/me", d.auth.Me)

	usuarios := authed.Group("/usuarios", admin)
	{
		usuarios.GET("", d.users.List)
		usuarios.GET("/:id", d.users.Get)
		usuarios.POST("", d.users.Create)
		usuarios.PUT("/:id", d.users.Update)
		usuarios.PUT("/:id/password", d.users.ChangePassword)
	}

	unidades := authed.Group("/unidades")
	{
		unidades.GET("", d.unidades.List)
		unidades.GET("/:id", d.unidades.Get)
		unidades.POST("", escribe, d.unidades.Create)
		unidades.PUT("/:id", escribe, d.unidades.Update)
		unidades.DELETE("/:id", escribe, d.unidades.Delete)
	}

	productos := authed.Group("/productos")
	{
		productos.GET("", d.productos.List)
		productos.GET("/ultimo", d.productos.Ultimo)
		productos.GET("/:id", d.productos.Get)
		productos.POST("", escribe, d.productos.Create)
		productos.PUT("/:id", escribe, d.productos.Update)
		productos.DELETE("/:id", escribe, d.productos.Delete)
		productos.GET("/:id/movimientos", d.productos.Movimientos)
		productos.POST("/:id/movimientos", escribe, d.productos.RegistrarMovimiento)
	}

	importaciones := authed.Group("/importaciones")
	{
		importaciones.POST("/productos", escribe, d.importacion.ImportarProductos)
		importaciones.GET("/productos/plantilla", d.importacion.Plantilla)
		importaciones.GET("/productos/export", d.importacion.ExportarProductos)
	}

	pedidos := authed.Group("/pedidos")
	{
		pedidos.GET("", d.pedidos.List)
		pedidos.GET("/:id", d.pedidos.Get)
		pedidos.POST("", escribe, d.pedidos.Create)
		pedidos.PUT("/:id", escribe, d.pedidos.Update)
		pedidos.DELETE("/:id", escribe, d.pedidos.Delete)
		pedidos.GET("/:id/items", d.pedidos.Items)
		pedidos.GET("/items/:itemId", d.pedidos.GetItem)
		pedidos.POST("/:id/items", escribe, d.pedidos.AddItem)
		pedidos.PUT("/:id/items/:itemId", escribe, d.pedidos.UpdateItem)
		pedidos.DELETE("/:id/items/:itemId", escribe, d.pedidos.RemoveItem)
		pedidos.GET("/:id/cotizaciones", d.pedidos.Cotizaciones)
		pedidos.POST("/:id/cotizaciones", escribe, d.pedidos.AddCotizacion)
		pedidos.PUT("/:id/cotizaciones/:cotizacionId", escribe, d.pedidos.UpdateCotizacion)
		pedidos.DELETE("/:id/cotizaciones/:cotizacionId", escribe, d.pedidos.DeleteCotizacion)
		pedidos.POST("/:id/cotizaciones/:cotizacionId/seleccionar", escribe, d.pedidos.SeleccionarCotizacion)
		pedidos.POST("/:id/entregar", escribe, d.pedidos.MarcarEntregado)
		pedidos.GET("/:id/pdf", d.pedidos.PDF)
		pedidos.GET("/:id/documento/firmar", d.pedidos.FirmarDocumento)
	}

	salones := authed.Group("/salones")
	{
		salones.GET("", d.salones.List)
		salones.GET("/resumen", d.salones.Resumen)
		salones.GET("/:id", d.salones.Get)
		salones.POST("", escribe, d.salones.Create)
		salones.PUT("/:id", escribe, d.salones.Update)
		salones.DELETE("/:id", escribe, d.salones.Delete)
		salones.GET("/:id/alumnos", d.alumnos.List)
		salones.POST("/:id/alumnos", escribe, d.alumnos.Create)
		salones.POST("/:id/alumnos/importar", escribe, d.importacion.ImportarAlumnos)
		salones.GET("/:id/utiles", d.alumnos.Utiles)
		salones.POST("/:id/utiles", escribe, d.alumnos.CreateUtil)
	}

	alumnos := authed.Group("/alumnos")
	{
		alumnos.GET("/:alumnoId", d.alumnos.Get)
		alumnos.PUT("/:alumnoId", escribe, d.alumnos.Update)
		alumnos.DELETE("/:alumnoId", escribe, d.alumnos.Delete)
		alumnos.GET("/:alumnoId/entregas", d.alumnos.Entregas)
		alumnos.POST("/:alumnoId/entregar-todo", escribe, d.alumnos.MarcarEntregaCompleta)
		alumnos.POST("/:alumnoId/reiniciar", escribe, d.alumnos.ReiniciarEntregas)
	}

	utiles := authed.Group("/utiles", escribe)
	{
		utiles.PUT("/:utilId", d.alumnos.UpdateUtil)
		utiles.DELETE("/:utilId", d.alumnos.DeleteUtil)
	}

	entregas := authed.Group("/entregas")
	{
		entregas.PUT("/:entregaId", escribe, d.alumnos.ActualizarEntrega)
		entregas.GET("/:entregaId/historial", d.alumnos.Historial)
	}

	reportes := authed.Group("/reportes")
	{
		reportes.POST("", escribe, d.reportes.Solicitar)
		reportes.GET("", d.reportes.Recientes)
		reportes.GET("/:id", d.reportes.Estado)
		reportes.GET("/:id/descarga", d.reportes.Descargar)
	}
}
