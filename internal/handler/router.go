package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/commune-dev/commune-api/internal/middleware"
	"github.com/commune-dev/commune-api/internal/service"
	"github.com/commune-dev/commune-api/internal/ws"
	"github.com/commune-dev/commune-api/pkg/config"
	"github.com/commune-dev/commune-api/pkg/logger"
	corsmiddleware "github.com/commune-dev/commune-api/pkg/middleware/cors"
	reqidmiddleware "github.com/commune-dev/commune-api/pkg/middleware/requestid"
	"go.uber.org/zap"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Auth       *AuthHandler
	Users      *UserHandler
	Posts      *PostHandler
	Categories *CategoryHandler
	Gateway    *ws.Gateway
	Tokens     *service.TokenService
	Metrics    *service.MetricsService
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/register", deps.Auth.Register)
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/renew-access-token", deps.Auth.RenewAccessToken)
	}

	authorized := middleware.JWT(deps.Tokens)

	users := r.Group("/users")
	{
		users.GET("/me", authorized, deps.Users.Me)
		users.PATCH("", authorized, deps.Users.Update)
	}

	r.GET("/categories", authorized, deps.Categories.List)

	posts := r.Group("/posts", authorized)
	{
		posts.GET("", deps.Posts.List)
		posts.GET("/:id", deps.Posts.Get)
		posts.POST("", deps.Posts.Create)
		posts.PATCH("/:id", deps.Posts.Update)
		posts.DELETE("/:id", deps.Posts.Delete)
	}

	r.GET("/ws", deps.Gateway.Handle)

	return r
}
