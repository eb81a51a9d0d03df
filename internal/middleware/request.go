package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/metrics"
)

// RequestLogger assigns a request id (reusing a well-formed inbound
// X-Request-ID), stores a request-scoped logrus entry in the request
// context, and records one access log line plus the duration metric.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if _, err := uuid.Parse(rid); err != nil {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			entry := logrus.WithFields(logrus.Fields{
				"request_id": rid,
				"method":     req.Method,
				"path":       req.URL.Path,
			})
			c.SetRequest(req.WithContext(logging.ToContext(req.Context(), entry)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			fields := logrus.Fields{"status": status, "latency_ms": elapsed.Milliseconds(), "ip": c.RealIP()}
			switch {
			case status >= 500:
				entry.WithFields(fields).Error("request failed")
			case status >= 400:
				entry.WithFields(fields).Warn("request rejected")
			default:
				entry.WithFields(fields).Info("request completed")
			}
			return nil
		}
	}
}
