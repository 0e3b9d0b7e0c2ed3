package http

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"pt-planner/internal/apperr"
)

const (
	claimsKey   = "claims"
	callerIDKey = "caller_id"
)

// JWTMiddleware verifies HS256 bearer tokens signed with secret.  The
// caller's identifier is the email claim, falling back to sub.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperr.Unauthorized("Invalid token header")
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				return apperr.Unauthorized("Invalid token")
			}

			id, _ := claims["email"].(string)
			if id == "" {
				id, _ = claims.GetSubject()
			}
			if id == "" {
				return apperr.Unauthorized("Token has no email or subject")
			}

			c.Set(claimsKey, claims)
			c.Set(callerIDKey, id)
			return next(c)
		}
	}
}

// callerID returns the verified identifier of the caller.  Caller-scoped
// routes address the caller's own record; a differing path parameter is
// only noted in the debug log.
func (s *Server) callerID(c echo.Context) string {
	id, _ := c.Get(callerIDKey).(string)
	if p := c.Param("id"); p != "" && p != id {
		s.logger.Debug().
			Str("request_id", requestID(c)).
			Str("path_id", p).
			Str("caller", id).
			Msg("path identifier differs from token, using token")
	}
	return id
}

func requestID(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}

// me returns the decoded token claims.
func (s *Server) me(c echo.Context) error {
	claims, _ := c.Get(claimsKey).(jwt.MapClaims)
	return c.JSON(http.StatusOK, claims)
}
