package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc"
)

type getConsignmentRequest struct {
	Id string `params:"id"`
}

func (r getConsignmentRequest) Validate() error {
	if r.Id == "" {
		return errs.NewPublicError("id is required")
	}
	return nil
}

type getConsignmentResponse = HttpResponse[consignmentResult]

type getConsignmentDisplayResponse = HttpResponse[otc.DisplayView]

// GetConsignment returns the full record to the owner and the sanitized
// buyer view to everyone else.
func (h *HttpHandler) GetConsignment(ctx *fiber.Ctx) (err error) {
	var req getConsignmentRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	consignment, err := h.engine.GetConsignment(ctx.UserContext(), req.Id)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("consignment not found")
		}
		return errors.Wrap(err, "error during GetConsignment")
	}

	if otc.IsConsignmentOwner(consignment, h.callerAddress(ctx)) {
		resp := getConsignmentResponse{
			Result: lo.ToPtr(toConsignmentResult(*consignment)),
		}
		return errors.WithStack(ctx.JSON(resp))
	}

	resp := getConsignmentDisplayResponse{
		Result: lo.ToPtr(otc.SanitizeForBuyer(consignment)),
	}
	return errors.WithStack(ctx.JSON(resp))
}
