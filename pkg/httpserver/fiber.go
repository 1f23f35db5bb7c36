package httpserver

import (
	"errors"
	"strconv"
	"time"

	"integrations/pkg/config"
	"integrations/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const unmatchedRoute = "unmatched"

func NewFiber(conf config.Config, m *metrics.Metrics, logger *zap.SugaredLogger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			ReadBufferSize:        1024 * 100,
			BodyLimit:             conf.Server.BodyLimit,
			DisableStartupMessage: true,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var fe *fiber.Error
				if errors.As(err, &fe) {
					code = fe.Code
				}
				return c.Status(code).JSON(fiber.Map{
					"status":  false,
					"message": err.Error(),
				})
			},
		},
	)

	app.Use(
		cors.New(cors.Config{
			AllowOrigins:  "*",
			AllowHeaders:  "Origin, Content-Type, Accept, X-Cron-Secret",
			ExposeHeaders: "X-Request-Id",
		}),
		requestid.New(),
		accessLog(logger, m),
		recover.New(),
	)

	return app
}

// accessLog пишет строку доступа в zap и метрики запроса
func accessLog(logger *zap.SugaredLogger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// ErrorHandler выставит статус только после выхода из цепочки
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		path := routePath(c)

		if m != nil {
			statusStr := strconv.Itoa(status)
			m.API.HTTPRequestsTotal.WithLabelValues(c.Method(), path, statusStr).Inc()
			m.API.HTTPRequestDuration.WithLabelValues(c.Method(), path, statusStr).Observe(elapsed.Seconds())
		}

		if logger != nil && path != "/health" && path != "/metrics" {
			logger.Debugw("http request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", elapsed,
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			)
		}
		return err
	}
}

// routePath шаблон роута вместо фактического пути, чтобы id не раздували кардинальность
func routePath(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return r.Path
	}
	if c.Response().StatusCode() == fiber.StatusNotFound {
		return unmatchedRoute
	}
	return c.Path()
}
