package api

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	timerdomain "github.com/mneiter/nuro/domain/timer"
	"github.com/mneiter/nuro/modules/auth"
	"github.com/mneiter/nuro/modules/timer"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	authPort auth.Port
	timers   *timer.Service
}

// NewHandlers creates a Handlers instance.
func NewHandlers(authPort auth.Port, timers *timer.Service) *Handlers {
	return &Handlers{
		authPort: authPort,
		timers:   timers,
	}
}

// Register creates an account and returns its first access token.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authPort.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login exchanges credentials for an access token.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authPort.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}
	return c.JSON(resp)
}

// Me returns the authenticated user's profile.
func (h *Handlers) Me(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}
	u, err := h.authPort.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		log.Printf("[api] get user %s: %v", claims.UserID, err)
		return internalError(c)
	}
	return c.JSON(u)
}

// CreateTimer starts a new timer.
func (h *Handlers) CreateTimer(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	var req timer.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.timers.Create(c.UserContext(), claims.UserID, req)
	if err != nil {
		return h.timerError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ListTimers returns the caller's timers.
func (h *Handlers) ListTimers(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	resources, err := h.timers.List(c.UserContext(), claims.UserID)
	if err != nil {
		return h.timerError(c, err)
	}
	return c.JSON(resources)
}

// GetTimer returns one timer.
func (h *Handlers) GetTimer(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	res, err := h.timers.Get(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return h.timerError(c, err)
	}
	return c.JSON(res)
}

// CancelTimer cancels a running timer. Canceling a terminal timer
// returns its current state unchanged.
func (h *Handlers) CancelTimer(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	res, err := h.timers.Cancel(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return h.timerError(c, err)
	}
	return c.JSON(res)
}

// Tick is the long-poll endpoint: it answers immediately when the
// snapshot differs from the client's validator and otherwise suspends
// until a change is published or the wait budget elapses.
func (h *Handlers) Tick(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	wait := c.QueryBool("wait", true)
	budget := time.Duration(c.QueryFloat("timeout", 0) * float64(time.Second))
	etag := clientETag(c.Get(fiber.HeaderIfNoneMatch))
	modifiedSince, hasModifiedSince := parseHTTPDate(c.Get(fiber.HeaderIfModifiedSince))

	snap, err := h.timers.Tick(c.UserContext(), claims.UserID, c.Params("id"), etag, wait, budget)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client gone: abandon the response entirely.
			return nil
		}
		return h.timerError(c, err)
	}

	c.Set(fiber.HeaderETag, snap.ETag)
	c.Set(fiber.HeaderLastModified, formatHTTPDate(snap.LastModified))

	if etag != "" && snap.ETag == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	if hasModifiedSince && !snap.LastModified.After(modifiedSince) {
		return c.SendStatus(fiber.StatusNotModified)
	}
	return c.JSON(snap)
}

// BatchTick resolves several timers at once, returning only the changed
// subset.
func (h *Handlers) BatchTick(c *fiber.Ctx) error {
	claims := currentUser(c)
	if claims == nil {
		return unauthorized(c, "User not authenticated")
	}

	var req timer.BatchTickRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.TimerIDs) == 0 {
		return badRequest(c, "timer_ids is required")
	}

	resp, err := h.timers.BatchTick(c.UserContext(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return h.timerError(c, err)
	}
	return c.JSON(resp)
}

func (h *Handlers) timerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, timer.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Timer not found",
		})
	case errors.Is(err, timer.ErrDurationOutOfRange),
		errors.Is(err, timer.ErrLabelTooLong),
		errors.Is(err, timer.ErrDuplicateTimerIDs),
		errors.Is(err, timerdomain.ErrInvalidDuration):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_state",
			Message: err.Error(),
		})
	default:
		log.Printf("[api] timer error: %v", err)
		return internalError(c)
	}
}

// authError maps auth service failures to HTTP responses. Errors cross
// the service container as messages, so matching is on known message
// text rather than sentinel identity.
func (h *Handlers) authError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, auth.ErrInvalidCredentials.Error()),
		strings.Contains(errStr, auth.ErrInactiveUser.Error()):
		return unauthorized(c, "Incorrect email or password")
	case strings.Contains(errStr, auth.ErrUserExists.Error()):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, auth.ErrInvalidEmail.Error()):
		return badRequest(c, "Invalid email format")
	case strings.Contains(errStr, auth.ErrWeakPassword.Error()):
		return badRequest(c, "Password must be at least 8 characters")
	case strings.Contains(errStr, auth.ErrPasswordTooLong.Error()):
		return badRequest(c, "Password must be at most 72 characters")
	default:
		log.Printf("[api] auth error: %v", err)
		return internalError(c)
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
