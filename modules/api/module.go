package api

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mneiter/nuro/middleware/ratelimit"
	"github.com/mneiter/nuro/modules/auth"
	"github.com/mneiter/nuro/modules/timer"
)

// Module is the HTTP API module. It depends on the auth module for
// token validation and receives the timer service and rate limiter
// after application start.
type Module struct {
	addr string

	app         *fiber.App
	authAdapter auth.Port
	timers      *timer.Service
	limiter     *ratelimit.Limiter
	rlConfig    ratelimit.Config
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module listening on addr.
func NewModule(addr string) *Module {
	return &Module{
		addr:     addr,
		rlConfig: ratelimit.DefaultConfig(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.authAdapter = auth.NewAdapter(container)
	}
}

// SetTimerService wires the timer service. Must be called before the
// HTTP server accepts requests.
func (m *Module) SetTimerService(svc *timer.Service) {
	m.timers = svc
}

// SetLimiter wires the Redis-backed rate limiter. Optional: without it
// the API runs unthrottled.
func (m *Module) SetLimiter(limiter *ratelimit.Limiter, config ratelimit.Config) {
	m.limiter = limiter
	m.rlConfig = config
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.timers == nil {
		return fmt.Errorf("timer service not set")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	m.app.Use(cors.New())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s", m.addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.addr,
		},
	}
}

// setupRoutes configures all API routes.
func (m *Module) setupRoutes() {
	handlers := NewHandlers(m.authAdapter, m.timers)

	m.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"module": "api",
		})
	})

	v1 := m.app.Group("/api/v1")

	// Public auth routes, throttled by client address.
	authRoutes := v1.Group("/auth")
	authRoutes.Use(m.throttle("auth", byClientIP))
	authRoutes.Post("/register", handlers.Register)
	authRoutes.Post("/login", handlers.Login)

	// Protected routes, throttled per authenticated owner.
	protected := v1.Group("")
	protected.Use(AuthMiddleware(m.authAdapter))
	protected.Use(m.throttle("api", byOwner))
	protected.Get("/auth/me", handlers.Me)

	timers := protected.Group("/timers")
	timers.Post("/", handlers.CreateTimer)
	timers.Get("/", handlers.ListTimers)
	timers.Post("/batch/tick", handlers.BatchTick)
	timers.Get("/:id", handlers.GetTimer)
	timers.Post("/:id/cancel", handlers.CancelTimer)
	timers.Get("/:id/tick", handlers.Tick)
}

// throttle returns a rate-limiting handler for the given scope, or a
// pass-through when no limiter is configured.
func (m *Module) throttle(scope string, key ratelimit.KeyFunc) fiber.Handler {
	if m.limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return ratelimit.New(m.limiter, scope, m.rlConfig, key)
}

func byClientIP(c *fiber.Ctx) string {
	return c.IP()
}

func byOwner(c *fiber.Ctx) string {
	if claims := currentUser(c); claims != nil {
		return claims.UserID
	}
	return c.IP()
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
