package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/config"
	"github.com/any-hub/filecache/internal/coordinator"
	"github.com/any-hub/filecache/internal/server/routes"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger      *logrus.Logger
	Config      *config.Config
	Coordinator *coordinator.Coordinator
	Store       cache.Store
	ListenPort  int
}

const contextKeyRequestID = "_filecache_request_id"

// NewApp builds a Fiber application exposing the /-/ endpoints with request
// IDs and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	h := &handlers{
		logger: opts.Logger,
		cfg:    opts.Config,
		coord:  opts.Coordinator,
		store:  opts.Store,
	}
	app.Post("/-/obtain", h.obtain)
	app.Get("/-/files", h.file)
	app.Delete("/-/cache", h.purge)
	app.Get("/-/version", h.version)
	routes.RegisterResourceRoutes(app, opts.Coordinator.State())

	app.All("/*", func(c fiber.Ctx) error {
		return renderRouteUnmapped(c, opts.Logger, opts.ListenPort)
	})

	return app, nil
}

// renderRouteUnmapped 记录未知路径并返回 404，日志带上监听端口便于多实例排查。
func renderRouteUnmapped(c fiber.Ctx, logger *logrus.Logger, port int) error {
	logger.WithFields(logrus.Fields{
		"action":     "route_lookup",
		"path":       string(c.Request().URI().Path()),
		"port":       port,
		"request_id": RequestID(c),
	}).Warn("route unmapped")
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "route_not_found",
	})
}

// requestContextMiddleware 负责生成请求 ID 并写入响应头，客户端已携带时原样回显。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := strings.TrimSpace(c.Get("X-Request-ID"))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
