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
	"go.uber.org/zap"

	_ "github.com/saludbit/impactou-api/api/swagger"
	"github.com/saludbit/impactou-api/internal/handler"
	"github.com/saludbit/impactou-api/internal/middleware"
	"github.com/saludbit/impactou-api/internal/repository"
	"github.com/saludbit/impactou-api/internal/service"
	"github.com/saludbit/impactou-api/pkg/cache"
	"github.com/saludbit/impactou-api/pkg/config"
	"github.com/saludbit/impactou-api/pkg/database"
	"github.com/saludbit/impactou-api/pkg/jobs"
	"github.com/saludbit/impactou-api/pkg/logger"
	"github.com/saludbit/impactou-api/pkg/mailer"
	corsmiddleware "github.com/saludbit/impactou-api/pkg/middleware/cors"
	reqidmiddleware "github.com/saludbit/impactou-api/pkg/middleware/requestid"
	"github.com/saludbit/impactou-api/pkg/signing"
	"github.com/saludbit/impactou-api/pkg/validation"
)

const mailQueueName = "mail"

// @title ImpactoU API
// @version 1.0.0
// @description Survey assignment, answer intake and completion dashboards for SaludBit Pro.
// @BasePath /api
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validation.New()

	var cacheSvc *service.CacheService
	if cfg.Dashboard.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
		}
	}

	mail, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		return fmt.Errorf("configure mailer: %w", err)
	}
	queue := jobs.NewQueue(mailQueueName, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		Logger:     logr,
	})
	queue.Register(service.JobSendMail, service.NewMailJobHandler(mail, logr))
	queue.Start(ctx)
	defer queue.Stop()

	users := repository.NewUserRepository(db)
	institutions := repository.NewInstitutionRepository(db)
	groups := repository.NewGroupRepository(db)
	surveys := repository.NewSurveyRepository(db)
	questions := repository.NewQuestionRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	answers := repository.NewAnswerRepository(db)
	processes := repository.NewProcessRepository(db)
	dashboards := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(db, users, institutions, signing.NewSigner(cfg.PasswordReset.Secret, cfg.PasswordReset.TTL), queue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		Issuer:             cfg.JWT.Issuer,
		ResetURL:           cfg.PasswordReset.ResetURL,
		DefaultInstitution: cfg.DefaultInstitutionName,
	})
	fanOut := service.NewAssignmentService(db, assignments, surveys, users, groups, institutions, cacheSvc, metrics, validate, logr)
	surveySvc := service.NewSurveyService(db, surveys, questions, assignments, answers, users, fanOut, users, cacheSvc, validate, logr)
	groupSvc := service.NewGroupService(db, groups, users, surveys, fanOut, users, cacheSvc, validate, logr)
	answerSvc := service.NewAnswerService(db, answers, assignments, surveys, questions, cacheSvc, metrics, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboards, users, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
		Location: cfg.Location(),
	})
	exportSvc := service.NewExportService(surveys, questions, answers, users, logr, nil, nil)

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Users:        handler.NewUserHandler(service.NewUserService(users, institutions, cacheSvc, validate, logr)),
		Institutions: handler.NewInstitutionHandler(service.NewInstitutionService(db, institutions, users, cacheSvc, validate, logr)),
		Groups:       handler.NewGroupHandler(groupSvc, fanOut),
		Surveys:      handler.NewSurveyHandler(surveySvc, exportSvc),
		Assignments:  handler.NewAssignmentHandler(fanOut),
		Answers:      handler.NewAnswerHandler(answerSvc),
		Dashboard:    handler.NewDashboardHandler(dashboardSvc),
		Processes:    handler.NewProcessHandler(service.NewProcessService(db, processes, users, validate, logr)),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr,
		logger.WithSubject(func(c *gin.Context) string {
			if claims := middleware.Claims(c); claims != nil {
				return claims.UserID
			}
			return ""
		}),
		logger.SkipPaths("/health", "/ready", "/metrics"),
	))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(metrics.Handler(), db, logr)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, handler.RouteDeps{
		Tokens: authSvc,
		Audit:  users,
		Logger: logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
