// internal/api/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tech-service-report-api-server/config"
	"tech-service-report-api-server/internal/api/handlers"
	"tech-service-report-api-server/internal/api/middleware"
	"tech-service-report-api-server/internal/dispatch"
	"tech-service-report-api-server/internal/session"
	"tech-service-report-api-server/internal/web"
)

// SetupRouter wires the handlers onto a gin engine.
func SetupRouter(
	store *session.Store,
	sender *dispatch.Sender,
	cfg config.Config,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if origins := cfg.CORS.Origins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	if cfg.Server.MaxUploadSizeMB > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadSizeMB << 20
	}
	router.SetHTMLTemplate(web.Templates())

	sessionHandler := &handlers.SessionHandler{Store: store, Sender: sender, Logger: logger}
	templateHandler := &handlers.TemplateHandler{}
	formHandler := &handlers.FormHandler{}

	router.GET("/", formHandler.Show)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/template", templateHandler.Download)

		sessions := apiV1.Group("/sessions")
		{
			sessions.POST("/", sessionHandler.CreateSession)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.DELETE("/:id", sessionHandler.DiscardSession)

			sessions.PUT("/:id/draft", sessionHandler.UpdateDraftFields)

			sessions.POST("/:id/equipos", sessionHandler.AddEquipment)
			sessions.PUT("/:id/equipos/:index", sessionHandler.ReplaceEquipment)
			sessions.DELETE("/:id/equipos/:index", sessionHandler.RemoveEquipment)

			sessions.POST("/:id/images/:coleccion", sessionHandler.UploadImages)
			sessions.DELETE("/:id/images/:coleccion/:index", sessionHandler.RemoveImage)

			sessions.POST("/:id/submit", sessionHandler.Submit)
		}
	}

	return router
}
