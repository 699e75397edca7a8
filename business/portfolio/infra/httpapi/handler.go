// Package httpapi exposes portfolio optimization over the JSON API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// Optimizer runs an optimization request.
type Optimizer interface {
	Optimize(ctx context.Context, req domain.Request) (*domain.Result, error)
}

// Handler exposes portfolio endpoints.
type Handler struct {
	optimizer Optimizer
}

// NewHandler constructs a portfolio HTTP handler.
func NewHandler(optimizer Optimizer) *Handler {
	return &Handler{optimizer: optimizer}
}

type optimizeRequest struct {
	Assets         []string  `json:"assets"`
	RiskTolerance  *float64  `json:"risk_tolerance"`
	InitialWeights []float64 `json:"initial_weights"`
}

type optimizeResponse struct {
	OptimizedAllocations map[string]float64 `json:"optimized_allocations"`
	ExpectedReturn       float64            `json:"expected_return"`
	ExpectedRisk         float64            `json:"expected_risk"`
	SharpeRatio          float64            `json:"sharpe_ratio"`
}

// RegisterRoutes mounts the portfolio endpoints under /portfolio.
func (h *Handler) RegisterRoutes(api fiber.Router) {
	api.Group("/portfolio").Post("/optimize", h.Optimize)
}

// Optimize handles an optimization request. risk_tolerance defaults to 0.5.
func (h *Handler) Optimize(c *fiber.Ctx) error {
	var req optimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("malformed request body"),
			apperror.WithCause(err),
			apperror.WithStatusCode(http.StatusBadRequest),
		)
	}

	tolerance := domain.DefaultRiskTolerance
	if req.RiskTolerance != nil {
		tolerance = *req.RiskTolerance
	}

	result, err := h.optimizer.Optimize(c.UserContext(), domain.Request{
		Assets:         req.Assets,
		RiskTolerance:  tolerance,
		InitialWeights: req.InitialWeights,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(optimizeResponse{
		OptimizedAllocations: result.Weights,
		ExpectedReturn:       result.ExpectedReturn,
		ExpectedRisk:         result.ExpectedRisk,
		SharpeRatio:          result.SharpeRatio,
	})
}
