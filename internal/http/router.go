package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/wayfarer-backend/internal/http/handlers"
	httpMW "github.com/yungbote/wayfarer-backend/internal/http/middleware"
	"github.com/yungbote/wayfarer-backend/internal/observability"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AdminMiddleware *httpMW.AdminMiddleware

	HealthHandler   *httpH.HealthHandler
	FeedbackHandler *httpH.FeedbackHandler
	TrainingHandler *httpH.TrainingHandler
	ModelHandler    *httpH.ModelHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "wayfarer"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/healthcheck", "/metrics"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Feedback (public; never gated on training health)
		if cfg.FeedbackHandler != nil {
			api.POST("/feedback", cfg.FeedbackHandler.Submit)
			api.GET("/feedback/stats", cfg.FeedbackHandler.Stats)
		}
	}

	admin := api.Group("/")
	{
		if cfg.AdminMiddleware != nil {
			admin.Use(cfg.AdminMiddleware.RequireAdmin())
		}

		// Training runs
		if cfg.TrainingHandler != nil {
			admin.POST("/training/runs", cfg.TrainingHandler.Start)
			admin.GET("/training/runs", cfg.TrainingHandler.List)
			admin.GET("/training/runs/:id", cfg.TrainingHandler.Get)
			admin.POST("/training/runs/:id/cancel", cfg.TrainingHandler.Cancel)
			admin.POST("/training/runs/:id/reconcile", cfg.TrainingHandler.Reconcile)
		}

		// Model registry
		if cfg.ModelHandler != nil {
			admin.GET("/models", cfg.ModelHandler.List)
			admin.GET("/models/active", cfg.ModelHandler.GetActive)
			admin.GET("/models/:version", cfg.ModelHandler.Get)
			admin.POST("/models/:version/activate", cfg.ModelHandler.Activate)
		}
	}

	return r
}
