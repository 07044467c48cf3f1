// Package httpapi exposes the stores over JSON/HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"emargement/internal/httpmiddleware"
	"emargement/internal/live"
	"emargement/internal/metrics"
	"emargement/internal/roster"
	"emargement/internal/sheet"
	"emargement/internal/signin"
	"emargement/internal/stats"
)

// HealthFunc reports the state of each dependency by name.
type HealthFunc func(ctx context.Context) map[string]bool

// Options lists what the router serves. Hub, Metrics, Limiter and Health
// are optional.
type Options struct {
	Students *roster.Service
	Sheets   *sheet.Service
	SignIns  *signin.Service
	Stats    *stats.Service

	Hub            *live.Hub
	Metrics        *metrics.Metrics
	Limiter        httpmiddleware.Limiter
	AllowedOrigins []string
	Health         HealthFunc
	Location       *time.Location
}

type server struct {
	students *roster.Service
	sheets   *sheet.Service
	signins  *signin.Service
	stats    *stats.Service
	loc      *time.Location
	now      func() time.Time
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(o Options) *gin.Engine {
	return newServer(o).routes(o)
}

func newServer(o Options) *server {
	registerValidators()
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return &server{
		students: o.Students,
		sheets:   o.Sheets,
		signins:  o.SignIns,
		stats:    o.Stats,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *server) routes(o Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.CORS(o.AllowedOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	if o.Metrics != nil {
		r.Use(o.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(o.Metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		if o.Health != nil {
			for name, ok := range o.Health(c.Request.Context()) {
				body[name] = ok
				if !ok {
					status = http.StatusServiceUnavailable
					body["status"] = "degraded"
				}
			}
		}
		c.JSON(status, body)
	})
	if o.Hub != nil {
		r.GET("/ws", o.Hub.Handler())
	}

	api := r.Group("/")
	if o.Limiter != nil {
		api.Use(httpmiddleware.RateLimit(o.Limiter))
	}

	eleves := api.Group("/eleves")
	eleves.GET("", s.listStudents)
	eleves.POST("", s.createStudent)
	eleves.GET("/:id", s.getStudent)
	eleves.PUT("/:id", s.updateStudent)
	eleves.PATCH("/:id", s.updateStudent)
	eleves.DELETE("/:id", s.deleteStudent)
	eleves.GET("/:id/stats", s.studentStats)

	listes := api.Group("/listes-presence")
	listes.GET("", s.listSheets)
	listes.POST("", s.createSheet)
	listes.GET("/:id", s.getSheet)
	listes.PUT("/:id", s.updateSheet)
	listes.PATCH("/:id", s.updateSheet)
	listes.DELETE("/:id", s.deleteSheet)
	listes.GET("/:id/stats", s.sheetStats)
	listes.GET("/:id/export", s.exportSheet)

	api.GET("/presences", s.listPresences)

	liste := api.Group("/liste")
	liste.GET("", s.listSignIns)
	liste.POST("", s.createSignIn)
	liste.GET("/:id", s.getSignIn)
	liste.PUT("/:id", s.updateSignIn)
	liste.PATCH("/:id", s.updateSignIn)
	liste.DELETE("/:id", s.deleteSignIn)

	api.GET("/classify", s.classify)
	api.GET("/stats", s.globalStats)
	api.GET("/stats/eleves", s.studentsStats)

	return r
}

// today is the current calendar day in the service location.
func (s *server) today() time.Time {
	return s.now().In(s.loc)
}
