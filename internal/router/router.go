package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/freshdesk-service/api"
	"github.com/psds-microservice/freshdesk-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathAPI     = "/api/v1/freshdesk"
)

// Multipart bodies above this stay on disk instead of memory.
const maxMultipartMemory = 8 << 20

func New(ticketHandler *handler.TicketHandler, ready gin.HandlerFunc) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery())
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, ready)
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group(PathAPI, handler.UserContext())
	{
		v1.GET("/tickets", ticketHandler.List)
		v1.GET("/init_settings", ticketHandler.InitSettings)
		v1.POST("/ticket/read", ticketHandler.Read)
		v1.GET("/ticket/new", ticketHandler.NewForm)
		v1.POST("/ticket", ticketHandler.Create)
		v1.PUT("/ticket/:id", ticketHandler.Update)
		v1.POST("/ticket/:id/reply", ticketHandler.Reply)
	}

	return r
}
