package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univreg/registrar-api/api/swagger"
	"github.com/univreg/registrar-api/internal/handler"
	"github.com/univreg/registrar-api/internal/middleware"
	"github.com/univreg/registrar-api/internal/repository"
	"github.com/univreg/registrar-api/internal/service"
	"github.com/univreg/registrar-api/pkg/cache"
	"github.com/univreg/registrar-api/pkg/config"
	"github.com/univreg/registrar-api/pkg/database"
	"github.com/univreg/registrar-api/pkg/logger"
	corsmiddleware "github.com/univreg/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univreg/registrar-api/pkg/middleware/requestid"
)

// @title University Registrar API
// @version 1.0.0
// @description Enrollment lifecycle and admission control for university records
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.CourseTTL, logr, cfg.Cache.Enabled)

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	enrollmentSvc := service.NewEnrollmentService(db, enrollmentRepo, courseRepo, studentRepo, referenceRepo, cacheSvc, metricsSvc, validate, logr)
	lifecycleSvc := service.NewLifecycleService(db, enrollmentRepo, validate, logr)
	cascadeSvc := service.NewCascadeService(db, studentRepo, courseRepo, instructorRepo, enrollmentRepo, lifecycleSvc, cacheSvc, metricsSvc, logr)
	studentSvc := service.NewStudentService(studentRepo, referenceRepo, enrollmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, referenceRepo, instructorRepo, enrollmentRepo, cacheSvc, validate, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, referenceRepo, validate, logr)
	referenceSvc := service.NewReferenceService(referenceRepo, logr)
	exportSvc := service.NewExportService(courseRepo, studentRepo, enrollmentRepo, cfg.Exports.Institution, cfg.Exports.Enabled, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.RegisterRoutes(api, handler.Handlers{
		Students:    handler.NewStudentHandler(studentSvc, cascadeSvc, exportSvc),
		Courses:     handler.NewCourseHandler(courseSvc, cascadeSvc, exportSvc),
		Instructors: handler.NewInstructorHandler(instructorSvc, cascadeSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, lifecycleSvc),
		References:  handler.NewReferenceHandler(referenceSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
