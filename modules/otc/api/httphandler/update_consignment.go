package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common/errs"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
)

type updateConsignmentRequest struct {
	Id string `params:"id"`

	TotalAmount      *string `json:"totalAmount"`
	MinDealAmount    *string `json:"minDealAmount"`
	MaxDealAmount    *string `json:"maxDealAmount"`
	IsFractionalized *bool   `json:"isFractionalized"`

	IsPrivate               *bool    `json:"isPrivate"`
	AllowedBuyers           []string `json:"allowedBuyers"`
	MinDiscountBps          *uint16  `json:"minDiscountBps"`
	MaxDiscountBps          *uint16  `json:"maxDiscountBps"`
	MinLockupDays           *uint32  `json:"minLockupDays"`
	MaxLockupDays           *uint32  `json:"maxLockupDays"`
	FixedDiscountBps        *uint16  `json:"fixedDiscountBps"`
	FixedLockupDays         *uint32  `json:"fixedLockupDays"`
	MaxPriceVolatilityBps   *uint16  `json:"maxPriceVolatilityBps"`
	MaxTimeToExecuteSeconds *int64   `json:"maxTimeToExecuteSeconds"`
}

func (r updateConsignmentRequest) toParams() (consignmentvalidator.UpdateParams, error) {
	params := consignmentvalidator.UpdateParams{
		IsFractionalized:        r.IsFractionalized,
		IsPrivate:               r.IsPrivate,
		AllowedBuyers:           r.AllowedBuyers,
		MinDiscountBps:          r.MinDiscountBps,
		MaxDiscountBps:          r.MaxDiscountBps,
		MinLockupDays:           r.MinLockupDays,
		MaxLockupDays:           r.MaxLockupDays,
		FixedDiscountBps:        r.FixedDiscountBps,
		FixedLockupDays:         r.FixedLockupDays,
		MaxPriceVolatilityBps:   r.MaxPriceVolatilityBps,
		MaxTimeToExecuteSeconds: r.MaxTimeToExecuteSeconds,
	}
	for _, field := range []struct {
		raw  *string
		dst  **decimal.Decimal
		name string
	}{
		{r.TotalAmount, &params.TotalAmount, "totalAmount"},
		{r.MinDealAmount, &params.MinDealAmount, "minDealAmount"},
		{r.MaxDealAmount, &params.MaxDealAmount, "maxDealAmount"},
	} {
		if field.raw == nil {
			continue
		}
		amount, err := parseAmount(*field.raw, field.name)
		if err != nil {
			return consignmentvalidator.UpdateParams{}, err
		}
		*field.dst = lo.ToPtr(amount)
	}
	return params, nil
}

type updateConsignmentResponse = HttpResponse[consignmentResult]

func (h *HttpHandler) UpdateConsignment(ctx *fiber.Ctx) (err error) {
	var req updateConsignmentRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if _, err := h.requireOwner(ctx, req.Id); err != nil {
		return errors.WithStack(err)
	}

	params, err := req.toParams()
	if err != nil {
		return errors.WithStack(err)
	}
	consignment, err := h.engine.UpdateConsignment(ctx.UserContext(), req.Id, params)
	if err != nil {
		return errors.Wrap(err, "error during UpdateConsignment")
	}

	resp := updateConsignmentResponse{
		Result: lo.ToPtr(toConsignmentResult(*consignment)),
	}
	return errors.WithStack(ctx.JSON(resp))
}
