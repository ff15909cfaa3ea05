package httphandler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common/errs"
)

type reservationRequest struct {
	Id     string `params:"id"`
	Amount string `json:"amount"`
}

type reservationResult struct {
	ID              string          `json:"id"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Status          string          `json:"status"`
}

type reservationResponse = HttpResponse[reservationResult]

func (h *HttpHandler) reservation(ctx *fiber.Ctx, apply func(context.Context, string, decimal.Decimal) error) error {
	var req reservationRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if req.Amount == "" {
		return errs.NewPublicError("amount is required")
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return errors.WithStack(err)
	}

	if err := apply(ctx.UserContext(), req.Id, amount); err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("consignment not found")
		}
		return errors.Wrap(err, "error during reservation")
	}
	consignment, err := h.engine.GetConsignment(ctx.UserContext(), req.Id)
	if err != nil {
		return errors.Wrap(err, "error during GetConsignment")
	}

	resp := reservationResponse{
		Result: lo.ToPtr(reservationResult{
			ID:              consignment.ID,
			RemainingAmount: consignment.RemainingAmount,
			Status:          consignment.Status.String(),
		}),
	}
	return errors.WithStack(ctx.JSON(resp))
}

// ReserveAmount consumes inventory ahead of an external execution.
func (h *HttpHandler) ReserveAmount(ctx *fiber.Ctx) error {
	return h.reservation(ctx, h.engine.ReserveAmount)
}

// ReleaseReservation returns inventory after a failed execution.
func (h *HttpHandler) ReleaseReservation(ctx *fiber.Ctx) error {
	return h.reservation(ctx, h.engine.ReleaseReservation)
}
