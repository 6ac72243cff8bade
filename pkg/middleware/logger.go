package middleware

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
)

// quietRoutes are only logged when they fail
var quietRoutes = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// Logger writes one access line per request at a level that follows the response status.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if quietRoutes[route] && status < http.StatusBadRequest {
				return nil
			}

			req := c.Request()
			ctx := req.Context()
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    appctx.GetRequestID(ctx),
				"tenant_id":     appctx.GetTenantID(ctx),
				"user_id":       appctx.GetUserID(ctx),
				"method":        req.Method,
				"route":         route,
				"status":        status,
				"duration_ms":   time.Since(start).Milliseconds(),
				"response_size": c.Response().Size,
			})

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("Request")
			case status >= http.StatusBadRequest:
				log.Warn("Request")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}
