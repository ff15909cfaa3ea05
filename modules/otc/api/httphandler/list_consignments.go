package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

type listConsignmentsRequest struct {
	TokenID string `query:"tokenId"`
	Chain   string `query:"chain"`
	Status  string `query:"status"`
}

func (r listConsignmentsRequest) Validate() error {
	switch entity.ConsignmentStatus(r.Status) {
	case "", entity.ConsignmentStatusActive, entity.ConsignmentStatusPaused,
		entity.ConsignmentStatusDepleted, entity.ConsignmentStatusWithdrawn:
	default:
		return errs.NewPublicError("invalid status filter")
	}
	return nil
}

type listConsignmentsResult struct {
	Consignments []otc.DisplayView `json:"consignments"`
}

type listConsignmentsResponse = HttpResponse[listConsignmentsResult]

// ListConsignments is the public market view: private listings are
// excluded and every record passes through the buyer sanitizer.
func (h *HttpHandler) ListConsignments(ctx *fiber.Ctx) (err error) {
	var req listConsignmentsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		return errors.WithStack(err)
	}

	consignments, err := h.engine.ListConsignments(ctx.UserContext(), datagateway.ListConsignmentsParams{
		TokenID: req.TokenID,
		Chain:   chain,
		Status:  entity.ConsignmentStatus(req.Status),
	})
	if err != nil {
		return errors.Wrap(err, "error during ListConsignments")
	}

	views := lo.Map(consignments, func(c entity.Consignment, _ int) otc.DisplayView {
		return otc.SanitizeForBuyer(&c)
	})
	resp := listConsignmentsResponse{
		Result: &listConsignmentsResult{
			Consignments: views,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}

type listOwnConsignmentsRequest struct {
	Chain string `query:"chain"`
}

type listOwnConsignmentsResult struct {
	Consignments []consignmentResult `json:"consignments"`
}

type listOwnConsignmentsResponse = HttpResponse[listOwnConsignmentsResult]

// ListOwnConsignments returns the caller's full records, private ones
// included.
func (h *HttpHandler) ListOwnConsignments(ctx *fiber.Ctx) (err error) {
	var req listOwnConsignmentsRequest
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

	consignments, err := h.engine.ListConsignmentsByConsigner(ctx.UserContext(), chain, caller)
	if err != nil {
		return errors.Wrap(err, "error during ListConsignmentsByConsigner")
	}

	resp := listOwnConsignmentsResponse{
		Result: &listOwnConsignmentsResult{
			Consignments: lo.Map(consignments, func(c entity.Consignment, _ int) consignmentResult {
				return toConsignmentResult(c)
			}),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
