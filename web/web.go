// Package web provides the medreport HTTP server: routing, middleware,
// page templates and the background job schedule.
package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/common"
	"github.com/medreport/medreport/web/cache"
	"github.com/medreport/medreport/web/controller"
	"github.com/medreport/medreport/web/entity"
	"github.com/medreport/medreport/web/job"
	"github.com/medreport/medreport/web/middleware"
	"github.com/medreport/medreport/web/service"
)

//go:embed html/*
var htmlFS embed.FS

const shutdownTimeout = 10 * time.Second

// Server represents the medreport web server with its services and scheduled jobs.
type Server struct {
	cfg *config.Config

	httpServer *http.Server
	listener   net.Listener

	authService       *service.AuthService
	userService       *service.UserService
	reportService     *service.ReportService
	auditService      *service.AuditLogService
	predictionService *service.PredictionService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, ctx: ctx, cancel: cancel}
}

// initServices wires the services onto the open database.
func (s *Server) initServices(mailer service.Mailer) {
	db := database.GetDB()
	s.authService = service.NewAuthService(db, s.cfg.Auth)
	s.userService = service.NewUserService(db, mailer, s.cfg)
	s.reportService = service.NewReportService(db)
	s.auditService = service.NewAuditLogService(db)
	s.predictionService = service.NewPredictionService(s.cfg.Prediction)
}

// initRouter initializes Gin, registers middleware, templates and
// controllers and returns the configured engine.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	if err := engine.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID(), middleware.RequestMetrics())
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
	))
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSAllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	engine.Use(middleware.Gate(s.authService))

	tpl, err := template.New("").ParseFS(htmlFS, "html/*.html")
	if err != nil {
		return nil, err
	}
	engine.SetHTMLTemplate(tpl)

	// API
	api := engine.Group("/api/v1")
	{
		limit := middleware.RateLimit(middleware.DefaultRateLimitConfig(s.cfg.RateLimitPerMinute))
		controller.NewAuthController(api, s.authService, s.userService, s.auditService, s.cfg.Auth.CookieSecure, limit)
		controller.NewPatientController(api, s.authService, s.userService, s.reportService, s.predictionService)
		controller.NewDoctorController(api, s.authService, s.userService, s.reportService, s.auditService)
		controller.NewAdminController(api, s.authService, s.userService, s.reportService, s.auditService)
	}

	// Page shells, guarded by the gate
	controller.NewPageController(engine.Group("/"))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", s.healthz)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, entity.Msg{Error: "Not found"})
	})

	return engine, nil
}

func (s *Server) healthz(c *gin.Context) {
	sqlDB, err := database.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		logger.Warning("health check failed:", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	cacheMode := "redis"
	if cache.IsEmbedded() {
		cacheMode = "embedded"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": config.GetVersion(), "cache": cacheMode})
}

// startTask schedules background jobs.
func (s *Server) startTask() {
	if _, err := s.cron.AddJob("@daily", job.NewAuditCleanupJob(s.auditService, s.cfg.AuditRetentionDays)); err != nil {
		logger.Warning("Add AuditCleanupJob error", err)
	}
	if _, err := s.cron.AddJob("@every 30m", job.NewResetTokenCleanupJob(s.userService)); err != nil {
		logger.Warning("Add ResetTokenCleanupJob error", err)
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := time.LoadLocation(s.cfg.TimeLocation)
	if err != nil {
		logger.Warningf("unknown time location %q, using Local: %v", s.cfg.TimeLocation, err)
		loc = time.Local
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	s.initServices(service.NewMailer(s.cfg.Mail))

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()

	return nil
}

// Stop gracefully shuts down the web server and the cron jobs.
func (s *Server) Stop() error {
	defer s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if common.IsClosedConnError(err2) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
