package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"pt-planner/internal/apperr"
)

// errorBody mirrors the {"detail": "..."} shape clients already parse.
type errorBody struct {
	Detail string `json:"detail"`
}

// handleError renders every handler error as {"detail": ...} with the
// status of its apperr.Kind.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := http.StatusInternalServerError, "internal server error"
	var he *echo.HTTPError
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		status = apperr.HTTPStatus(ae.Kind)
		msg = ae.Message
	case errors.As(err, &he):
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestID(c)).Int("status", status).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody{Detail: msg})
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to write error response")
	}
}
