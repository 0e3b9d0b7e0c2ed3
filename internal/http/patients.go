package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"pt-planner/pkg"
)

// Record-management routes address patients explicitly by name.

type createPatientRequest struct {
	Name string `json:"name" validate:"required"`
	pkg.PatientProfile
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) listPatients(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Store.List(c.Request().Context()))
}

func (s *Server) getPatient(c echo.Context) error {
	p, err := s.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) createPatient(c echo.Context) error {
	var req createPatientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := s.Store.Create(c.Request().Context(), req.Name, req.PatientProfile); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Patient %s created successfully", req.Name)})
}

func (s *Server) updatePatient(c echo.Context) error {
	var req pkg.PatientProfile
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	if _, err := s.Store.Update(c.Request().Context(), id, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Patient %s updated successfully", id)})
}

func (s *Server) deletePatient(c echo.Context) error {
	id := c.Param("id")
	if err := s.Store.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Patient '%s' has been deleted.", id)})
}
