package otc

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
	"github.com/tokendesk/otc-desk/pkg/keylock"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
	"github.com/tokendesk/otc-desk/pkg/reporting"
)

// Engine owns the consignment lifecycle: creation, validation, update,
// reservation, release and withdrawal, plus deal matching and the agent
// commission formula.
//
// Every operation that reads then writes the remainingAmount/status pair
// brackets the work in a per-consignment key lock with guaranteed release.
// Acquisition is fail-fast: the surrounding workflow (user confirmation,
// on-chain execution) can take arbitrarily long, so contention is surfaced
// to the caller instead of queueing.
type Engine struct {
	dg       datagateway.OTCDataGateway
	locks    *keylock.KeyLock
	reporter *reporting.Client // optional
	now      func() time.Time
}

// NewEngine creates an Engine on top of the given store. reporter may be
// nil to disable deal reporting.
func NewEngine(dg datagateway.OTCDataGateway, reporter *reporting.Client) *Engine {
	return &Engine{
		dg:       dg,
		locks:    keylock.New(),
		reporter: reporter,
		now:      time.Now,
	}
}

// CreateConsignment validates the term sheet and persists a new active
// consignment with its full amount available.
func (e *Engine) CreateConsignment(ctx context.Context, params consignmentvalidator.CreateParams) (*entity.Consignment, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	now := e.now().UTC()
	consignment := entity.Consignment{
		ID:                      uuid.NewString(),
		TokenID:                 params.TokenID,
		Chain:                   params.Chain,
		ConsignerAddress:        params.Chain.NormalizeAddress(params.ConsignerAddress),
		ConsignerEntityID:       params.ConsignerEntityID,
		TotalAmount:             params.TotalAmount,
		RemainingAmount:         params.TotalAmount,
		IsNegotiable:            params.IsNegotiable,
		MinDiscountBps:          params.MinDiscountBps,
		MaxDiscountBps:          params.MaxDiscountBps,
		MinLockupDays:           params.MinLockupDays,
		MaxLockupDays:           params.MaxLockupDays,
		MinDealAmount:           params.MinDealAmount,
		MaxDealAmount:           params.MaxDealAmount,
		IsFractionalized:        params.IsFractionalized,
		IsPrivate:               params.IsPrivate,
		AllowedBuyers:           normalizeBuyers(params.Chain, params.AllowedBuyers),
		MaxPriceVolatilityBps:   params.MaxPriceVolatilityBps,
		MaxTimeToExecuteSeconds: params.MaxTimeToExecuteSeconds,
		Status:                  entity.ConsignmentStatusActive,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if !params.IsNegotiable {
		consignment.FixedDiscountBps = *params.FixedDiscountBps
		consignment.FixedLockupDays = *params.FixedLockupDays
	}

	if err := e.dg.CreateConsignment(ctx, consignment); err != nil {
		return nil, errors.Wrap(err, "failed to persist consignment")
	}
	logger.InfoContext(ctx, "created consignment",
		slogx.String("consignmentId", consignment.ID),
		slogx.String("tokenId", consignment.TokenID),
		slogx.Stringer("chain", consignment.Chain),
	)
	return &consignment, nil
}

// GetConsignment loads a single consignment.
func (e *Engine) GetConsignment(ctx context.Context, id string) (*entity.Consignment, error) {
	consignment, err := e.dg.GetConsignment(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get consignment %s", id)
	}
	return consignment, nil
}

// ListConsignments returns consignments matching the filter.
func (e *Engine) ListConsignments(ctx context.Context, params datagateway.ListConsignmentsParams) ([]entity.Consignment, error) {
	consignments, err := e.dg.ListConsignments(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list consignments")
	}
	return consignments, nil
}

// ListConsignmentsByConsigner returns a consigner's listings on one chain.
func (e *Engine) ListConsignmentsByConsigner(ctx context.Context, chain common.Chain, consignerAddress string) ([]entity.Consignment, error) {
	consignments, err := e.dg.ListConsignmentsByConsigner(ctx, chain, chain.NormalizeAddress(consignerAddress))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list consignments")
	}
	return consignments, nil
}

// UpdateConsignment merges a partial edit into the stored record. Supply
// and fractionalization fields freeze once any deal has consumed
// inventory.
func (e *Engine) UpdateConsignment(ctx context.Context, id string, params consignmentvalidator.UpdateParams) (*entity.Consignment, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	if !e.locks.TryAcquire(id) {
		return nil, errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(id)

	consignment, err := e.dg.GetConsignment(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get consignment %s", id)
	}
	if consignment.Status == entity.ConsignmentStatusWithdrawn {
		return nil, errors.WithStack(errs.ErrAlreadyWithdrawn)
	}
	if consignment.Consumed() && params.TouchesFrozenFields() {
		return nil, errors.Wrap(errs.Immutable, "supply fields are frozen after the first deal")
	}

	applyUpdate(consignment, params)
	if err := validateMerged(consignment); err != nil {
		return nil, errors.WithStack(err)
	}
	consignment.UpdatedAt = e.now().UTC()

	if err := e.dg.SaveConsignment(ctx, *consignment); err != nil {
		return nil, errors.Wrap(err, "failed to save consignment")
	}
	return consignment, nil
}

// ReserveAmount atomically consumes inventory for a deal about to be
// executed. It fails fast with a conflict when the consignment is locked
// by a concurrent operation; retrying is the caller's decision.
func (e *Engine) ReserveAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	if err := validReservationAmount(amount); err != nil {
		return err
	}

	if !e.locks.TryAcquire(id) {
		return errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(id)

	consignment, err := e.dg.GetConsignment(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to get consignment %s", id)
	}
	if consignment.Status != entity.ConsignmentStatusActive {
		return errors.Wrapf(errs.ErrConsignmentInactive, "status %s", consignment.Status)
	}
	if amount.GreaterThan(consignment.RemainingAmount) {
		return errors.WithStack(errs.ErrInsufficientAmount)
	}
	if amount.LessThan(consignment.MinDealAmount) || amount.GreaterThan(consignment.MaxDealAmount) {
		return errors.WithStack(errs.ErrAmountOutOfRange)
	}

	consignment.RemainingAmount = consignment.RemainingAmount.Sub(amount)
	if consignment.RemainingAmount.IsZero() {
		consignment.Status = entity.ConsignmentStatusDepleted
	}
	now := e.now().UTC()
	consignment.UpdatedAt = now
	consignment.LastDealAt = &now

	if err := e.dg.SaveConsignment(ctx, *consignment); err != nil {
		return errors.Wrap(err, "failed to save consignment")
	}
	logger.DebugContext(ctx, "reserved amount",
		slogx.String("consignmentId", id),
		slogx.Stringer("amount", amount),
		slogx.Stringer("remaining", consignment.RemainingAmount),
	)
	return nil
}

// ReleaseReservation restores inventory after a failed or cancelled
// execution. A depleted consignment becomes active again; a withdrawn one
// stays withdrawn (terminal), only its remaining amount is restored for
// the audit trail.
func (e *Engine) ReleaseReservation(ctx context.Context, id string, amount decimal.Decimal) error {
	if err := validReservationAmount(amount); err != nil {
		return err
	}

	if !e.locks.TryAcquire(id) {
		return errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(id)

	return e.releaseLocked(ctx, e.dg, id, amount)
}

// releaseLocked restores inventory through the given store. The caller
// must hold the consignment's key lock.
func (e *Engine) releaseLocked(ctx context.Context, dg datagateway.OTCDataGateway, id string, amount decimal.Decimal) error {
	consignment, err := dg.GetConsignment(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to get consignment %s", id)
	}

	newRemaining := consignment.RemainingAmount.Add(amount)
	if newRemaining.GreaterThan(consignment.TotalAmount) {
		return errors.Wrap(errs.Validation, "release exceeds total amount")
	}
	consignment.RemainingAmount = newRemaining
	if consignment.Status == entity.ConsignmentStatusDepleted && newRemaining.Sign() > 0 {
		consignment.Status = entity.ConsignmentStatusActive
	}
	consignment.UpdatedAt = e.now().UTC()

	if err := dg.SaveConsignment(ctx, *consignment); err != nil {
		return errors.Wrap(err, "failed to save consignment")
	}
	return nil
}

// WithdrawConsignment is the terminal transition: no further reservation
// or reactivation is possible afterwards.
func (e *Engine) WithdrawConsignment(ctx context.Context, id string) error {
	if !e.locks.TryAcquire(id) {
		return errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(id)

	consignment, err := e.dg.GetConsignment(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to get consignment %s", id)
	}
	if consignment.Status == entity.ConsignmentStatusWithdrawn {
		return errors.WithStack(errs.ErrAlreadyWithdrawn)
	}

	consignment.Status = entity.ConsignmentStatusWithdrawn
	consignment.UpdatedAt = e.now().UTC()
	if err := e.dg.SaveConsignment(ctx, *consignment); err != nil {
		return errors.Wrap(err, "failed to save consignment")
	}
	logger.InfoContext(ctx, "withdrew consignment", slogx.String("consignmentId", id))
	return nil
}

// PauseConsignment takes an active consignment off the market without
// releasing its inventory.
func (e *Engine) PauseConsignment(ctx context.Context, id string) error {
	return e.transition(ctx, id, entity.ConsignmentStatusActive, entity.ConsignmentStatusPaused)
}

// ResumeConsignment puts a paused consignment back on the market.
func (e *Engine) ResumeConsignment(ctx context.Context, id string) error {
	return e.transition(ctx, id, entity.ConsignmentStatusPaused, entity.ConsignmentStatusActive)
}

func (e *Engine) transition(ctx context.Context, id string, from, to entity.ConsignmentStatus) error {
	if !e.locks.TryAcquire(id) {
		return errors.WithStack(errs.ErrLockHeld)
	}
	defer e.locks.Release(id)

	consignment, err := e.dg.GetConsignment(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to get consignment %s", id)
	}
	if consignment.Status != from {
		return errors.Wrapf(errs.State, "cannot move %s consignment to %s", consignment.Status, to)
	}

	consignment.Status = to
	consignment.UpdatedAt = e.now().UTC()
	if err := e.dg.SaveConsignment(ctx, *consignment); err != nil {
		return errors.Wrap(err, "failed to save consignment")
	}
	return nil
}

func applyUpdate(c *entity.Consignment, params consignmentvalidator.UpdateParams) {
	if params.TotalAmount != nil {
		// only reachable while unconsumed, so remaining tracks total
		c.TotalAmount = *params.TotalAmount
		c.RemainingAmount = *params.TotalAmount
	}
	if params.MinDealAmount != nil {
		c.MinDealAmount = *params.MinDealAmount
	}
	if params.MaxDealAmount != nil {
		c.MaxDealAmount = *params.MaxDealAmount
	}
	if params.IsFractionalized != nil {
		c.IsFractionalized = *params.IsFractionalized
	}
	if params.IsPrivate != nil {
		c.IsPrivate = *params.IsPrivate
	}
	if params.AllowedBuyers != nil {
		c.AllowedBuyers = normalizeBuyers(c.Chain, params.AllowedBuyers)
	}
	if params.MinDiscountBps != nil {
		c.MinDiscountBps = *params.MinDiscountBps
	}
	if params.MaxDiscountBps != nil {
		c.MaxDiscountBps = *params.MaxDiscountBps
	}
	if params.MinLockupDays != nil {
		c.MinLockupDays = *params.MinLockupDays
	}
	if params.MaxLockupDays != nil {
		c.MaxLockupDays = *params.MaxLockupDays
	}
	if params.FixedDiscountBps != nil {
		c.FixedDiscountBps = *params.FixedDiscountBps
	}
	if params.FixedLockupDays != nil {
		c.FixedLockupDays = *params.FixedLockupDays
	}
	if params.MaxPriceVolatilityBps != nil {
		c.MaxPriceVolatilityBps = *params.MaxPriceVolatilityBps
	}
	if params.MaxTimeToExecuteSeconds != nil {
		c.MaxTimeToExecuteSeconds = *params.MaxTimeToExecuteSeconds
	}
}

// validateMerged re-checks the cross-field invariants after an update has
// been applied, so a partial edit cannot leave the record inconsistent.
func validateMerged(c *entity.Consignment) error {
	if c.MinDealAmount.GreaterThan(c.MaxDealAmount) {
		return errors.WithStack(errs.ErrInvertedDealBounds)
	}
	if c.TotalAmount.LessThan(c.MinDealAmount) {
		return errors.WithStack(errs.ErrTotalBelowMinDeal)
	}
	if c.MaxDealAmount.GreaterThan(c.TotalAmount) {
		return errors.Wrap(errs.Validation, "max deal amount exceeds total amount")
	}
	if c.MinDiscountBps > c.MaxDiscountBps {
		return errors.WithStack(errs.ErrInvertedDiscount)
	}
	if c.MinLockupDays > c.MaxLockupDays {
		return errors.WithStack(errs.ErrInvertedLockup)
	}
	return nil
}

func validReservationAmount(amount decimal.Decimal) error {
	if !amount.IsInteger() {
		return errors.Wrap(errs.Validation, "amount must be an integer")
	}
	if amount.Sign() <= 0 {
		return errors.Wrap(errs.Validation, "amount must be positive")
	}
	return nil
}

func normalizeBuyers(chain common.Chain, buyers []string) []string {
	if len(buyers) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(buyers))
	for _, buyer := range buyers {
		normalized = append(normalized, chain.NormalizeAddress(buyer))
	}
	return normalized
}
