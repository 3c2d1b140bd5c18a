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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/trainhub/scheduling-api/api/swagger"
	"github.com/trainhub/scheduling-api/internal/handler"
	"github.com/trainhub/scheduling-api/internal/middleware"
	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	"github.com/trainhub/scheduling-api/internal/service"
	"github.com/trainhub/scheduling-api/pkg/cache"
	"github.com/trainhub/scheduling-api/pkg/config"
	"github.com/trainhub/scheduling-api/pkg/database"
	"github.com/trainhub/scheduling-api/pkg/events"
	"github.com/trainhub/scheduling-api/pkg/logger"
	corsmiddleware "github.com/trainhub/scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/trainhub/scheduling-api/pkg/middleware/requestid"
)

// @title Training Center Scheduling API
// @version 1.0.0
// @description Session scheduling, seat admission and resource booking for a training center
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	scheduleRepo := repository.NewScheduleRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	trainerRepo := repository.NewTrainerRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil && cfg.Availability.CacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	metricsSvc := service.NewMetricsService()
	scheduleSvc := service.NewScheduleService(scheduleRepo, courseRepo, trainerRepo, roomRepo, logr, dispatcher, metricsSvc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, logr, dispatcher, metricsSvc)

	var invalidator service.CacheInvalidator
	var cacheStore service.CacheStore
	if cacheRepo != nil {
		invalidator = cacheRepo
		cacheStore = cacheRepo
	}
	bookingSvc := service.NewBookingService(bookingRepo, resourceRepo, scheduleRepo, invalidator, logr, dispatcher, metricsSvc)
	availabilitySvc := service.NewAvailabilityService(scheduleRepo, bookingRepo, resourceRepo, roomRepo, cacheStore, cfg.Availability.CacheTTL, logr, metricsSvc)
	roomSvc := service.NewRoomService(roomRepo, logr)
	resourceSvc := service.NewResourceService(resourceRepo, logr)
	trainerSvc := service.NewTrainerService(trainerRepo, logr)
	courseSvc := service.NewCourseService(courseRepo)
	exportSvc := service.NewExportService(scheduleRepo, courseRepo, trainerRepo, roomRepo, logr, cfg.Export.Enabled)

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, exportSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	resourceHandler := handler.NewResourceHandler(resourceSvc)
	trainerHandler := handler.NewTrainerHandler(trainerSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
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
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	staff := middleware.RBAC(models.RoleAdmin, models.RoleStaff)
	admin := middleware.RBAC(models.RoleAdmin)

	schedules := api.Group("/schedules")
	{
		schedules.POST("", staff, scheduleHandler.Propose)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.PUT("/:id/days", staff, scheduleHandler.EditDays)
		schedules.POST("/:id/accept", admin, scheduleHandler.Accept)
		schedules.POST("/:id/reject", admin, scheduleHandler.Reject)
		schedules.GET("/:id/timetable", scheduleHandler.Timetable)
	}

	courses := api.Group("/courses")
	{
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/schedule", scheduleHandler.GetByCourse)
		courses.GET("/:id/enrollments", staff, enrollmentHandler.ListByCourse)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.POST("", enrollmentHandler.Request)
		enrollments.POST("/:id/admit", staff, enrollmentHandler.Admit)
		enrollments.POST("/:id/reject", staff, enrollmentHandler.Reject)
		enrollments.POST("/:id/cancel", enrollmentHandler.Cancel)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", staff, bookingHandler.Request)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.POST("/:id/release", staff, bookingHandler.Release)
	}

	availability := api.Group("/availability")
	{
		availability.GET("/rooms/:id", availabilityHandler.Room)
		availability.GET("/rooms/:id/capacity", availabilityHandler.RoomCapacity)
		availability.GET("/trainers/:id", availabilityHandler.Trainer)
		availability.GET("/resources/:id", availabilityHandler.Resource)
	}

	rooms := api.Group("/rooms")
	{
		rooms.GET("", roomHandler.List)
		rooms.GET("/:id", roomHandler.Get)
		rooms.POST("", admin, roomHandler.Create)
		rooms.PUT("/:id", admin, roomHandler.Update)
		rooms.DELETE("/:id", admin, roomHandler.Delete)
	}

	resources := api.Group("/resources")
	{
		resources.GET("", resourceHandler.List)
		resources.GET("/:id", resourceHandler.Get)
		resources.GET("/:id/bookings", bookingHandler.ListByResource)
		resources.POST("", admin, resourceHandler.Create)
		resources.PUT("/:id", admin, resourceHandler.Update)
	}

	api.GET("/schedule-days/:id/bookings", bookingHandler.ListByScheduleDay)

	trainers := api.Group("/trainers")
	{
		trainers.GET("", trainerHandler.List)
		trainers.GET("/:id", trainerHandler.Get)
		trainers.POST("", admin, trainerHandler.Create)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
