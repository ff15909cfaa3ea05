package otc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
	"github.com/tokendesk/otc-desk/pkg/reporting"
)

// RecordDealParams links a quote to the consignment that funds it. The
// caller must have reserved the amount first; recording is audit only and
// never mutates the consignment.
type RecordDealParams struct {
	ConsignmentID string
	QuoteID       string
	OfferID       string
	BuyerAddress  string
	Amount        decimal.Decimal
	DiscountBps   uint16
	LockupDays    uint32
}

// RecordDeal persists a pending deal against an existing consignment,
// pricing the desk commission from the struck terms. Deduplication by
// quote id is left to the caller; the store's unique index on quoteId is
// the backstop.
func (e *Engine) RecordDeal(ctx context.Context, params RecordDealParams) (*entity.Deal, error) {
	if err := validReservationAmount(params.Amount); err != nil {
		return nil, err
	}
	if params.QuoteID == "" {
		return nil, errors.Wrap(errs.Validation, "quote id is required")
	}
	if params.BuyerAddress == "" {
		return nil, errors.Wrap(errs.Validation, "buyer address is required")
	}
	if params.DiscountBps > consignmentvalidator.MaxBps {
		return nil, errors.Wrapf(errs.Validation, "discount %d exceeds %d bps", params.DiscountBps, consignmentvalidator.MaxBps)
	}

	consignment, err := e.dg.GetConsignment(ctx, params.ConsignmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get consignment %s", params.ConsignmentID)
	}

	commissionBps, err := CalculateAgentCommission(params.DiscountBps, params.LockupDays)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	deal := entity.Deal{
		ID:            uuid.NewString(),
		ConsignmentID: consignment.ID,
		QuoteID:       params.QuoteID,
		OfferID:       params.OfferID,
		TokenID:       consignment.TokenID,
		Chain:         consignment.Chain,
		BuyerAddress:  consignment.Chain.NormalizeAddress(params.BuyerAddress),
		Amount:        params.Amount,
		DiscountBps:   params.DiscountBps,
		LockupDays:    params.LockupDays,
		CommissionBps: commissionBps,
		Status:        entity.DealStatusPending,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.dg.CreateDeal(ctx, deal); err != nil {
		return nil, errors.Wrap(err, "failed to persist deal")
	}
	logger.InfoContext(ctx, "recorded deal",
		slogx.String("dealId", deal.ID),
		slogx.String("consignmentId", deal.ConsignmentID),
		slogx.String("quoteId", deal.QuoteID),
	)
	return &deal, nil
}

// MarkDealExecuted confirms on-chain settlement of a pending deal and, if
// a reporting client is configured, submits the deal report. Reporting
// failures are logged, not propagated.
func (e *Engine) MarkDealExecuted(ctx context.Context, dealID string) (*entity.Deal, error) {
	deal, err := e.dg.GetDeal(ctx, dealID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get deal %s", dealID)
	}
	if deal.Status != entity.DealStatusPending {
		return nil, errors.Wrapf(errs.State, "deal is %s, not pending", deal.Status)
	}

	deal.Status = entity.DealStatusExecuted
	deal.ExecutedAt = e.now().UTC()
	if err := e.dg.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
		ID:         deal.ID,
		Status:     entity.DealStatusExecuted,
		ExecutedAt: deal.ExecutedAt,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to update deal status")
	}

	if e.reporter != nil {
		if err := e.reporter.SubmitDealReport(ctx, reporting.SubmitDealReportPayload{
			DealID:        deal.ID,
			ConsignmentID: deal.ConsignmentID,
			TokenID:       deal.TokenID,
			Chain:         deal.Chain,
			Amount:        deal.Amount.String(),
			DiscountBps:   deal.DiscountBps,
			LockupDays:    deal.LockupDays,
			CommissionBps: deal.CommissionBps,
			ExecutedAt:    deal.ExecutedAt,
		}); err != nil {
			logger.WarnContext(ctx, "failed to submit deal report", slogx.Error(err), slogx.String("dealId", deal.ID))
		}
	}
	return deal, nil
}

// MarkDealFailed records why a pending deal did not settle and releases
// the amount back to its consignment. The status flip and the release
// commit together under the consignment's key lock; on contention or any
// store failure the deal stays pending, so the next janitor sweep retries.
func (e *Engine) MarkDealFailed(ctx context.Context, dealID string, reason string) (*entity.Deal, error) {
	deal, err := e.dg.GetDeal(ctx, dealID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get deal %s", dealID)
	}
	if deal.Status != entity.DealStatusPending {
		return nil, errors.Wrapf(errs.State, "deal is %s, not pending", deal.Status)
	}

	if !e.locks.TryAcquire(deal.ConsignmentID) {
		return nil, errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(deal.ConsignmentID)

	tx, err := e.dg.BeginOTCTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
		ID:            deal.ID,
		Status:        entity.DealStatusFailed,
		FailureReason: reason,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to update deal status")
	}
	if err := e.releaseLocked(ctx, tx, deal.ConsignmentID, deal.Amount); err != nil {
		return nil, errors.Wrap(err, "failed to release reservation")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit deal failure")
	}

	deal.Status = entity.DealStatusFailed
	deal.FailureReason = reason
	return deal, nil
}

// GetDeal loads a single deal.
func (e *Engine) GetDeal(ctx context.Context, id string) (*entity.Deal, error) {
	deal, err := e.dg.GetDeal(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get deal %s", id)
	}
	return deal, nil
}

// ListDealsByConsignment returns the deal history of one consignment.
func (e *Engine) ListDealsByConsignment(ctx context.Context, consignmentID string) ([]entity.Deal, error) {
	deals, err := e.dg.ListDealsByConsignment(ctx, consignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list deals")
	}
	return deals, nil
}

// ListDealsByBuyer returns a buyer's deals on one chain.
func (e *Engine) ListDealsByBuyer(ctx context.Context, chain common.Chain, buyerAddress string) ([]entity.Deal, error) {
	deals, err := e.dg.ListDealsByBuyer(ctx, chain, chain.NormalizeAddress(buyerAddress))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list deals")
	}
	return deals, nil
}
