package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

type recordDealRequest struct {
	ConsignmentID string `json:"consignmentId"`
	QuoteID       string `json:"quoteId"`
	OfferID       string `json:"offerId"`
	BuyerAddress  string `json:"buyerAddress"`
	Amount        string `json:"amount"`
	DiscountBps   uint16 `json:"discountBps"`
	LockupDays    uint32 `json:"lockupDays"`
}

func (r recordDealRequest) Validate() error {
	if r.ConsignmentID == "" {
		return errs.NewPublicError("consignmentId is required")
	}
	if r.QuoteID == "" {
		return errs.NewPublicError("quoteId is required")
	}
	if r.Amount == "" {
		return errs.NewPublicError("amount is required")
	}
	return nil
}

type recordDealResponse = HttpResponse[dealResult]

func (h *HttpHandler) RecordDeal(ctx *fiber.Ctx) (err error) {
	var req recordDealRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	if req.BuyerAddress == "" {
		req.BuyerAddress = h.callerAddress(ctx)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return errors.WithStack(err)
	}

	deal, err := h.engine.RecordDeal(ctx.UserContext(), otc.RecordDealParams{
		ConsignmentID: req.ConsignmentID,
		QuoteID:       req.QuoteID,
		OfferID:       req.OfferID,
		BuyerAddress:  req.BuyerAddress,
		Amount:        amount,
		DiscountBps:   req.DiscountBps,
		LockupDays:    req.LockupDays,
	})
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("consignment not found")
		}
		return errors.Wrap(err, "error during RecordDeal")
	}

	resp := recordDealResponse{
		Result: lo.ToPtr(toDealResult(*deal)),
	}
	return errors.WithStack(ctx.Status(fiber.StatusCreated).JSON(resp))
}

type getDealRequest struct {
	Id string `params:"id"`
}

type getDealResponse = HttpResponse[dealResult]

func (h *HttpHandler) GetDeal(ctx *fiber.Ctx) (err error) {
	var req getDealRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}

	deal, err := h.engine.GetDeal(ctx.UserContext(), req.Id)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("deal not found")
		}
		return errors.Wrap(err, "error during GetDeal")
	}

	resp := getDealResponse{
		Result: lo.ToPtr(toDealResult(*deal)),
	}
	return errors.WithStack(ctx.JSON(resp))
}

func (h *HttpHandler) MarkDealExecuted(ctx *fiber.Ctx) (err error) {
	var req getDealRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}

	deal, err := h.engine.MarkDealExecuted(ctx.UserContext(), req.Id)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("deal not found")
		}
		return errors.Wrap(err, "error during MarkDealExecuted")
	}

	resp := getDealResponse{
		Result: lo.ToPtr(toDealResult(*deal)),
	}
	return errors.WithStack(ctx.JSON(resp))
}

type markDealFailedRequest struct {
	Id     string `params:"id"`
	Reason string `json:"reason"`
}

func (h *HttpHandler) MarkDealFailed(ctx *fiber.Ctx) (err error) {
	var req markDealFailedRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}

	deal, err := h.engine.MarkDealFailed(ctx.UserContext(), req.Id, req.Reason)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return errs.NewPublicError("deal not found")
		}
		return errors.Wrap(err, "error during MarkDealFailed")
	}

	resp := getDealResponse{
		Result: lo.ToPtr(toDealResult(*deal)),
	}
	return errors.WithStack(ctx.JSON(resp))
}

type listDealsResult struct {
	Deals []dealResult `json:"deals"`
}

type listDealsResponse = HttpResponse[listDealsResult]

func (h *HttpHandler) ListDealsByConsignment(ctx *fiber.Ctx) (err error) {
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

	deals, err := h.engine.ListDealsByConsignment(ctx.UserContext(), req.Id)
	if err != nil {
		return errors.Wrap(err, "error during ListDealsByConsignment")
	}
	return errors.WithStack(ctx.JSON(toListDealsResponse(deals)))
}

type listDealsByBuyerRequest struct {
	Chain string `query:"chain"`
}

func (h *HttpHandler) ListDealsByBuyer(ctx *fiber.Ctx) (err error) {
	var req listDealsByBuyerRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	caller := h.callerAddress(ctx)
	if caller == "" {
		return errs.NewPublicError("caller address is required")
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		return errors.WithStack(err)
	}
	if chain == "" {
		return errs.NewPublicError("chain is required")
	}

	deals, err := h.engine.ListDealsByBuyer(ctx.UserContext(), chain, caller)
	if err != nil {
		return errors.Wrap(err, "error during ListDealsByBuyer")
	}
	return errors.WithStack(ctx.JSON(toListDealsResponse(deals)))
}

func toListDealsResponse(deals []entity.Deal) listDealsResponse {
	return listDealsResponse{
		Result: &listDealsResult{
			Deals: lo.Map(deals, func(d entity.Deal, _ int) dealResult {
				return toDealResult(d)
			}),
		},
	}
}
