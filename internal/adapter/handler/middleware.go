package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

const idempotencyHeader = "Idempotency-Key"

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func rateLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	deny := func(c echo.Context, identifier string, err error) error {
		return c.JSON(http.StatusTooManyRequests, Outcome{Code: domain.CodeRateLimited, Message: "rate limit exceeded"})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error { return deny(c, "", err) },
		DenyHandler:  deny,
	})
}

// idempotent rejects a replay of a request carrying an Idempotency-Key the
// same caller has already used. Requests without the header pass through. A
// request that fails frees its key so the caller can retry it.
func idempotent(cache port.CacheRepository, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(idempotencyHeader)
			if cache == nil || key == "" {
				return next(c)
			}

			actor := actorFrom(c)
			scoped := actor.ID + ":" + c.Path() + ":" + key
			ok, err := cache.SetIdempotency(c.Request().Context(), scoped)
			if err != nil {
				logger.Warn().Err(err).Str("customer_id", actor.ID).Msg("idempotency check unavailable, continuing")
				return next(c)
			}
			if !ok {
				return c.JSON(http.StatusConflict, Outcome{Code: domain.CodeAlreadyProcessed, Message: "duplicate request"})
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusMultipleChoices {
				if relErr := cache.ReleaseIdempotency(context.WithoutCancel(c.Request().Context()), scoped); relErr != nil {
					logger.Warn().Err(relErr).Str("customer_id", actor.ID).Msg("failed to release idempotency key")
				}
			}
			return err
		}
	}
}
