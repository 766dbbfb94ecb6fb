package http

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"rice-quality-analyzer/internal/bootstrap"
	"rice-quality-analyzer/internal/config"
	"rice-quality-analyzer/internal/session"
	"rice-quality-analyzer/internal/transport/http/handler"
	"rice-quality-analyzer/internal/transport/http/middleware"
	"rice-quality-analyzer/web"
)

// Dependencies is everything the router needs. Redis, MQConn and Stats are optional.
type Dependencies struct {
	Config    *config.Config
	Analyzer  handler.Analyzer
	Documents handler.DocumentGenerator
	Sessions  *session.Manager
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Stats     handler.StatsSource
	StartedAt time.Time
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	return NewEngine(Dependencies{
		Config:    app.Config,
		Analyzer:  app.Analysis,
		Documents: app.Reports,
		Sessions:  app.Sessions,
		Redis:     app.Redis,
		MQConn:    app.MQConn,
		Stats:     statsSource(app),
		StartedAt: app.StartedAt,
	})
}

// statsSource keeps a nil worker from becoming a non-nil interface.
func statsSource(app *bootstrap.App) handler.StatsSource {
	if app.StatsWorker == nil {
		return nil
	}
	return app.StatsWorker
}

func NewEngine(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = cfg.Image.MaxUploadBytes
	router.SetHTMLTemplate(template.Must(web.Templates(nil)))
	router.StaticFS("/static", web.Static())

	healthHandler := handler.NewHealthHandler(handler.HealthInfo{
		Name:      cfg.App.Name,
		Env:       cfg.App.Env,
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		StartedAt: deps.StartedAt,
		Redis:     deps.Redis,
		MQConn:    deps.MQConn,
		Stats:     deps.Stats,
	})
	router.GET("/healthz", healthHandler.Check)

	analysisHandler := handler.NewAnalysisHandler(
		deps.Analyzer,
		deps.Documents,
		deps.Sessions,
		"Rice Quality Analyzer",
		cfg.Image.MaxUploadBytes,
	)
	withSession := middleware.Session(deps.Sessions, cfg.App.Env == "prod")

	page := router.Group("/")
	page.Use(withSession)
	page.GET("/", analysisHandler.Index)
	page.POST("/analyze", analysisHandler.Analyze)
	page.POST("/clear", analysisHandler.Clear)
	page.GET("/report.pdf", analysisHandler.DownloadPDF)

	v1 := router.Group("/api/v1")
	analysisGroup := v1.Group("/analysis")
	analysisGroup.Use(withSession)
	analysisGroup.POST("", analysisHandler.CreateAnalysis)
	analysisGroup.GET("", analysisHandler.GetAnalysis)
	analysisGroup.DELETE("", analysisHandler.DeleteAnalysis)
	analysisGroup.GET("/pdf", analysisHandler.DownloadPDF)

	return router
}
