package server

import (
	"fmt"

	"github.com/abduss/grimoire/internal/auth"
	"github.com/abduss/grimoire/internal/config"
	"github.com/abduss/grimoire/internal/dnd5"
	"github.com/abduss/grimoire/internal/logger"
	"github.com/abduss/grimoire/internal/metrics"
	"github.com/abduss/grimoire/internal/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Dependencies groups the services required by the HTTP router. DB and
// ObjectStore are optional; nil skips their readiness checks.
type Dependencies struct {
	Config      config.Config
	DB          Pinger
	ObjectStore BucketChecker
	AuthService *auth.Service
	Users       *user.Store
	Reference   *dnd5.Client
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := user.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("register validators: %w", err)
		}
	}

	metrics.InitMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(deps.Config.CORS)))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.Reference != nil {
		dnd5.RegisterRoutes(api, deps.Reference)
	}
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService.Tokens()))

		if deps.Users != nil {
			user.RegisterRoutes(api, protected, deps.Users)
		}
	}

	return router, nil
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", logger.CorrelationIDHeader)
	c.ExposeHeaders = []string{logger.CorrelationIDHeader}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
