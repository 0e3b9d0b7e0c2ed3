package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecovery_PanicBecomes500(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	e := echo.New()
	e.HTTPErrorHandler = s.handleError
	e.Use(Recovery(zerolog.Nop()), RequestID())
	e.GET("/boom", func(echo.Context) error { panic("boom") })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, w.Body.String())
}

func TestRequestID_ReusesIncomingHeader(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, requestID(c))
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(echo.HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(echo.HeaderXRequestID))
}

func TestNotFoundUsesDetailBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/nope", "", alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"detail"`)
}
