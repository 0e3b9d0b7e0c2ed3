package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"pt-planner/internal/core"
	"pt-planner/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be mounted or tested directly.
type Server struct {
	Store     *store.Store
	Assistant *core.Assistant

	echo   *echo.Echo
	logger zerolog.Logger
}

// NewServer wires middleware and routes.
func NewServer(st *store.Store, assistant *core.Assistant, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		Store:     st,
		Assistant: assistant,
		logger:    logger.With().Str("component", "http").Logger(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = s.handleError

	e.Use(Recovery(s.logger))
	e.Use(RequestID())
	e.Use(Logger(s.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	e.GET("/healthz", s.health)

	api := e.Group("", JWTMiddleware([]byte(opts.JWTSecret)))
	api.GET("/auth/me", s.me)

	api.GET("/patients", s.listPatients)
	api.POST("/patients", s.createPatient)
	api.POST("/patients/", s.createPatient)
	api.GET("/patients/:id", s.getPatient)
	api.PUT("/patients/:id", s.updatePatient)
	api.DELETE("/patients/:id", s.deletePatient)

	api.GET("/weekly_schedule/:id", s.getWeeklySchedule)
	api.POST("/weekly_schedule/:id/:day", s.addExercise)
	api.GET("/pt_schedule", s.ptSchedule)

	api.POST("/patients/:id/injury_questionnaire", s.injuryQuestionnaire)
	api.GET("/patients/:id/injuries", s.listInjuries)
	api.DELETE("/patients/:id/injuries/:index", s.deleteInjury)
	api.POST("/patients/:id/generate_recovery_plan", s.generateRecoveryPlan)

	api.POST("/generate_exercises", s.generateExercises)
	api.POST("/chat_with_pt", s.chatWithPT)

	s.echo = e
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"ai_enabled": s.Assistant.Enabled(),
	})
}
