// Package httpapi exposes the wallet session over the JSON API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// Controller is the part of the wallet session the API drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	Refresh(ctx context.Context) bool
	Snapshot() domain.Snapshot
}

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	session Controller
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(session Controller) *Handler {
	return &Handler{session: session}
}

// RegisterRoutes mounts the wallet endpoints under /wallet.
func (h *Handler) RegisterRoutes(api fiber.Router) {
	g := api.Group("/wallet")
	g.Get("/", h.Get)
	g.Post("/connect", h.Connect)
	g.Post("/disconnect", h.Disconnect)
	g.Post("/refresh", h.Refresh)
}

// Get returns the current connection state.
func (h *Handler) Get(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.session.Snapshot())
}

// Connect activates the wallet. The balance is fetched in the background;
// clients poll Get or follow the stream for it.
func (h *Handler) Connect(c *fiber.Ctx) error {
	if err := h.session.Connect(c.UserContext()); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(h.session.Snapshot())
}

// Disconnect releases the wallet. It always succeeds.
func (h *Handler) Disconnect(c *fiber.Ctx) error {
	h.session.Disconnect(c.UserContext())
	return c.Status(http.StatusOK).JSON(h.session.Snapshot())
}

// Refresh re-reads the balance of the connected account.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	if !h.session.Refresh(c.UserContext()) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("no wallet connected"))
	}
	return c.Status(http.StatusAccepted).JSON(h.session.Snapshot())
}
