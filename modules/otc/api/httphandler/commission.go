package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tokendesk/otc-desk/modules/otc"
)

type getCommissionRequest struct {
	DiscountBps uint16 `query:"discountBps"`
	LockupDays  uint32 `query:"lockupDays"`
}

type getCommissionResult struct {
	DiscountBps   uint16 `json:"discountBps"`
	LockupDays    uint32 `json:"lockupDays"`
	CommissionBps uint16 `json:"commissionBps"`
}

type getCommissionResponse = HttpResponse[getCommissionResult]

// GetCommission quotes the desk fee for a prospective deal.
func (h *HttpHandler) GetCommission(ctx *fiber.Ctx) (err error) {
	var req getCommissionRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}

	commissionBps, err := otc.CalculateAgentCommission(req.DiscountBps, req.LockupDays)
	if err != nil {
		return errors.Wrap(err, "error during CalculateAgentCommission")
	}

	resp := getCommissionResponse{
		Result: lo.ToPtr(getCommissionResult{
			DiscountBps:   req.DiscountBps,
			LockupDays:    req.LockupDays,
			CommissionBps: commissionBps,
		}),
	}
	return errors.WithStack(ctx.JSON(resp))
}
