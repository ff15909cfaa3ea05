package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc"
)

type matchConsignmentRequest struct {
	TokenID     string `json:"tokenId"`
	Chain       string `json:"chain"`
	Amount      string `json:"amount"`
	DiscountBps uint16 `json:"discountBps"`
	LockupDays  uint32 `json:"lockupDays"`
}

func (r matchConsignmentRequest) Validate() error {
	if r.TokenID == "" {
		return errs.NewPublicError("tokenId is required")
	}
	if r.Amount == "" {
		return errs.NewPublicError("amount is required")
	}
	return nil
}

type matchConsignmentResponse = HttpResponse[otc.DisplayView]

// MatchConsignment finds the first listing able to fund the requested
// deal. The result is the sanitized buyer view; reservation is a
// separate, explicit step.
func (h *HttpHandler) MatchConsignment(ctx *fiber.Ctx) (err error) {
	var req matchConsignmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return errors.WithStack(err)
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		return errors.WithStack(err)
	}

	match, err := h.engine.MatchConsignment(ctx.UserContext(), otc.MatchParams{
		TokenID:      req.TokenID,
		Chain:        chain,
		BuyerAddress: h.callerAddress(ctx),
		Amount:       amount,
		DiscountBps:  req.DiscountBps,
		LockupDays:   req.LockupDays,
	})
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("no suitable consignment")
		}
		return errors.Wrap(err, "error during MatchConsignment")
	}

	resp := matchConsignmentResponse{
		Result: lo.ToPtr(otc.SanitizeForBuyer(match)),
	}
	return errors.WithStack(ctx.JSON(resp))
}
