package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
)

// Audit logs every state-changing API call together with the caller that
// made it. Reads are covered by the access log.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method == http.MethodGet || req.Method == http.MethodHead ||
				req.Method == http.MethodOptions || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = StatusOf(err)
			}
			evt := logger.Info().
				Str("event", "audit").
				Str("request_id", stringValue(c.Get("request_id"))).
				Str("tenant", stringValue(c.Get("tenant_id"))).
				Str("method", req.Method).
				Str("route", c.Path()).
				Int("status", status)
			if p := auth.PrincipalFromContext(req.Context()); p != nil {
				evt = evt.Str("user_id", p.UserID).Str("role", string(p.Role))
				if p.Role == auth.RoleDoctor {
					evt = evt.Str("doctor_id", p.DoctorID.String())
				}
			}
			evt.Msg("mutation")
			return err
		}
	}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
