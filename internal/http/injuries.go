package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

type diagnosisResponse struct {
	pkg.DiagnosisResult
	Error string `json:"error,omitempty"`
}

// injuryQuestionnaire records an injury together with the assistant's
// preliminary diagnosis.  A degraded diagnosis is still stored and returned
// with an "error" field; only an unavailable assistant stores nothing.
func (s *Server) injuryQuestionnaire(c echo.Context) error {
	var inj pkg.Injury
	if err := bind(c, &inj); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := s.callerID(c)

	out, err := s.Assistant.Diagnose(ctx, inj)
	if err != nil {
		return apperr.Unavailable("Error generating diagnosis: " + message(err))
	}

	inj.Diagnosis = out.Value.Diagnosis
	inj.Reasoning = out.Value.Reasoning
	inj.Recommendations = out.Value.Recommendations
	if _, err := s.Store.AppendInjury(ctx, id, inj); err != nil {
		return err
	}

	resp := diagnosisResponse{DiagnosisResult: out.Value}
	if out.Fallback {
		resp.Error = out.Reason
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listInjuries(c echo.Context) error {
	p, err := s.Store.Get(c.Request().Context(), s.callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.Injuries)
}

func (s *Server) deleteInjury(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return apperr.InvalidInput("Injury index must be an integer")
	}
	removed, err := s.Store.RemoveInjuryAt(c.Request().Context(), s.callerID(c), index)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Injury removed",
		"injury":  removed,
	})
}

// generateRecoveryPlan replaces the caller's weekly schedule with one
// generated from all recorded injuries.  A failed generation leaves the
// existing schedule in place.
func (s *Server) generateRecoveryPlan(c echo.Context) error {
	ctx := c.Request().Context()
	id := s.callerID(c)

	var (
		profile  pkg.PatientProfile
		injuries []pkg.Injury
	)
	p, err := s.Store.Get(ctx, id)
	switch {
	case err == nil:
		profile, injuries = p.Profile(), p.Injuries
	case !apperr.Is(err, apperr.KindNotFound):
		return err
	}

	out, raw, err := s.Assistant.RecoveryPlan(ctx, profile, injuries)
	if err != nil {
		return err
	}
	if out.Fallback {
		return c.JSON(http.StatusInternalServerError, raw)
	}

	updated, err := s.Store.ReplaceSchedule(ctx, id, out.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated.WeeklySchedule)
}

// message returns the caller-facing part of err.
func message(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
