package server

import (
	"github.com/abduss/practiceroom/internal/auth"
	"github.com/abduss/practiceroom/internal/config"
	"github.com/abduss/practiceroom/internal/logger"
	"github.com/abduss/practiceroom/internal/metrics"
	"github.com/abduss/practiceroom/internal/pages"
	"github.com/abduss/practiceroom/internal/recording"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload gin buffers in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// Dependencies groups the services required by the HTTP router. DB and
// ObjectStore are nil when the configured backends do not use them.
type Dependencies struct {
	Config           config.Config
	Logger           *zap.Logger
	DB               *pgxpool.Pool
	ObjectStore      *minio.Client
	AuthService      *auth.Service
	RecordingService *recording.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.MaxMultipartMemory = multipartMemory
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(logger.RequestLogger(log))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	if deps.AuthService != nil {
		router.Use(auth.SessionMiddleware(deps.AuthService, deps.Config.Session.CookieName))
		auth.RegisterRoutes(router, deps.AuthService, auth.CookieSettings{
			Name:   deps.Config.Session.CookieName,
			Secure: deps.Config.Session.CookieSecure,
		}, log)

		if deps.RecordingService != nil {
			protected := router.Group("/", auth.RequireAPI())
			recording.RegisterRoutes(protected, deps.RecordingService, log)
		}

		if err := pages.Register(router, deps.Config.Pages); err != nil {
			return nil, err
		}
	}

	return router, nil
}
