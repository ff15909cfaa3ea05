package httphandler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type lifecycleResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type lifecycleResponse = HttpResponse[lifecycleResult]

// lifecycle runs an owner-only status transition and echoes the new
// status.
func (h *HttpHandler) lifecycle(ctx *fiber.Ctx, transition func(context.Context, string) error) error {
	var req getConsignmentRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if _, err := h.requireOwner(ctx, req.Id); err != nil {
		return errors.WithStack(err)
	}

	if err := transition(ctx.UserContext(), req.Id); err != nil {
		return errors.Wrap(err, "error during consignment transition")
	}
	consignment, err := h.engine.GetConsignment(ctx.UserContext(), req.Id)
	if err != nil {
		return errors.Wrap(err, "error during GetConsignment")
	}

	resp := lifecycleResponse{
		Result: lo.ToPtr(lifecycleResult{
			ID:     consignment.ID,
			Status: consignment.Status.String(),
		}),
	}
	return errors.WithStack(ctx.JSON(resp))
}

func (h *HttpHandler) WithdrawConsignment(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.engine.WithdrawConsignment)
}

func (h *HttpHandler) PauseConsignment(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.engine.PauseConsignment)
}

func (h *HttpHandler) ResumeConsignment(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.engine.ResumeConsignment)
}
