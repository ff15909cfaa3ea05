package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
)

type createConsignmentRequest struct {
	TokenID           string `json:"tokenId"`
	Chain             string `json:"chain"`
	ConsignerAddress  string `json:"consignerAddress"`
	ConsignerEntityID string `json:"consignerEntityId"`

	TotalAmount string `json:"totalAmount"`

	IsNegotiable     bool    `json:"isNegotiable"`
	FixedDiscountBps *uint16 `json:"fixedDiscountBps"`
	FixedLockupDays  *uint32 `json:"fixedLockupDays"`
	MinDiscountBps   uint16  `json:"minDiscountBps"`
	MaxDiscountBps   uint16  `json:"maxDiscountBps"`
	MinLockupDays    uint32  `json:"minLockupDays"`
	MaxLockupDays    uint32  `json:"maxLockupDays"`

	MinDealAmount string `json:"minDealAmount"`
	MaxDealAmount string `json:"maxDealAmount"`

	IsFractionalized        bool     `json:"isFractionalized"`
	IsPrivate               bool     `json:"isPrivate"`
	AllowedBuyers           []string `json:"allowedBuyers"`
	MaxPriceVolatilityBps   uint16   `json:"maxPriceVolatilityBps"`
	MaxTimeToExecuteSeconds int64    `json:"maxTimeToExecuteSeconds"`
}

// parseAmount converts a decimal-string amount from the wire. Amounts
// travel as strings so large token supplies survive JSON number limits.
func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errs.NewPublicError(field + " is not a valid amount")
	}
	return amount, nil
}

func (r createConsignmentRequest) toParams() (consignmentvalidator.CreateParams, error) {
	total, err := parseAmount(r.TotalAmount, "totalAmount")
	if err != nil {
		return consignmentvalidator.CreateParams{}, err
	}
	minDeal, err := parseAmount(r.MinDealAmount, "minDealAmount")
	if err != nil {
		return consignmentvalidator.CreateParams{}, err
	}
	maxDeal, err := parseAmount(r.MaxDealAmount, "maxDealAmount")
	if err != nil {
		return consignmentvalidator.CreateParams{}, err
	}
	return consignmentvalidator.CreateParams{
		TokenID:                 r.TokenID,
		Chain:                   common.Chain(r.Chain),
		ConsignerAddress:        r.ConsignerAddress,
		ConsignerEntityID:       r.ConsignerEntityID,
		TotalAmount:             total,
		IsNegotiable:            r.IsNegotiable,
		FixedDiscountBps:        r.FixedDiscountBps,
		FixedLockupDays:         r.FixedLockupDays,
		MinDiscountBps:          r.MinDiscountBps,
		MaxDiscountBps:          r.MaxDiscountBps,
		MinLockupDays:           r.MinLockupDays,
		MaxLockupDays:           r.MaxLockupDays,
		MinDealAmount:           minDeal,
		MaxDealAmount:           maxDeal,
		IsFractionalized:        r.IsFractionalized,
		IsPrivate:               r.IsPrivate,
		AllowedBuyers:           r.AllowedBuyers,
		MaxPriceVolatilityBps:   r.MaxPriceVolatilityBps,
		MaxTimeToExecuteSeconds: r.MaxTimeToExecuteSeconds,
	}, nil
}

type createConsignmentResponse = HttpResponse[consignmentResult]

func (h *HttpHandler) CreateConsignment(ctx *fiber.Ctx) (err error) {
	var req createConsignmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if req.ConsignerAddress == "" {
		req.ConsignerAddress = h.callerAddress(ctx)
	}

	params, err := req.toParams()
	if err != nil {
		return errors.WithStack(err)
	}
	consignment, err := h.engine.CreateConsignment(ctx.UserContext(), params)
	if err != nil {
		return errors.Wrap(err, "error during CreateConsignment")
	}

	resp := createConsignmentResponse{
		Result: lo.ToPtr(toConsignmentResult(*consignment)),
	}
	return errors.WithStack(ctx.Status(fiber.StatusCreated).JSON(resp))
}
