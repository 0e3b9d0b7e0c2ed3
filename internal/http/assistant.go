package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

// generateExercises asks the assistant for exercise recommendations and
// keeps the latest list on the caller's record.
func (s *Server) generateExercises(c echo.Context) error {
	var req pkg.ExerciseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := s.callerID(c)

	p, err := s.Store.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	out, err := s.Assistant.RecommendExercises(ctx, p.Profile(), req)
	if err != nil {
		return err
	}
	if out.Fallback {
		s.logger.Warn().Str("request_id", requestID(c)).Str("reason", out.Reason).Msg("exercise generation degraded")
		return apperr.Upstream("Failed to generate exercises", nil)
	}

	if _, err := s.Store.SetRecommendations(ctx, id, out.Value); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out.Value)
}

// chatWithPT streams the assistant's reply as raw text.  Each fragment is
// flushed as soon as it arrives; a disconnecting client cancels the
// provider stream.
func (s *Server) chatWithPT(c echo.Context) error {
	var req pkg.ChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var (
		injuries []pkg.Injury
		plan     pkg.WeeklySchedule
	)
	p, err := s.Store.Get(ctx, s.callerID(c))
	switch {
	case err == nil:
		injuries, plan = p.Injuries, p.WeeklySchedule
	case !apperr.Is(err, apperr.KindNotFound):
		return err
	}

	fragments := s.Assistant.Chat(ctx, injuries, plan, req.Messages)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for frag := range fragments {
		if _, err := io.WriteString(res, frag); err != nil {
			s.logger.Debug().Err(err).Str("request_id", requestID(c)).Msg("chat client went away")
			cancel()
			for range fragments {
			}
			return nil
		}
		res.Flush()
	}
	return nil
}
