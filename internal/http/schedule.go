package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

func (s *Server) getWeeklySchedule(c echo.Context) error {
	p, err := s.Store.GetOrCreate(c.Request().Context(), s.callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.WeeklySchedule)
}

func (s *Server) addExercise(c echo.Context) error {
	var ex pkg.Exercise
	if err := (&echo.DefaultBinder{}).BindBody(c, &ex); err != nil || ex == nil {
		return apperr.InvalidInput("Invalid request body")
	}
	id, day := s.callerID(c), c.Param("day")
	if _, err := s.Store.AddExercise(c.Request().Context(), id, day, ex); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Exercise added to %s for %s", day, id)})
}

// ptSchedule is the therapist's combined week across all patients.
func (s *Server) ptSchedule(c echo.Context) error {
	return c.JSON(http.StatusOK, pkg.AggregateSchedule(s.Store.All(c.Request().Context())))
}
