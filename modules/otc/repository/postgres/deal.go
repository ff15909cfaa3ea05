package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// uniqueViolation is the postgres error code raised by the unique index
// on quote_id when the same quote is recorded twice.
const uniqueViolation = "23505"

func (r *Repository) CreateDeal(ctx context.Context, arg entity.Deal) error {
	var executedAt *time.Time
	if !arg.ExecutedAt.IsZero() {
		executedAt = &arg.ExecutedAt
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO otc_deals (
			id, consignment_id, quote_id, offer_id, token_id, chain, buyer_address,
			amount, discount_bps, lockup_days, commission_bps, status, failure_reason,
			executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		arg.ID, arg.ConsignmentID, arg.QuoteID, arg.OfferID, arg.TokenID, arg.Chain.String(), arg.BuyerAddress,
		arg.Amount.String(), int32(arg.DiscountBps), int64(arg.LockupDays), int32(arg.CommissionBps),
		arg.Status.String(), arg.FailureReason, executedAt, arg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(errs.Conflict, "quote %s already has a deal", arg.QuoteID)
		}
		return errors.Wrap(err, "failed to insert deal")
	}
	return nil
}

func (r *Repository) GetDeal(ctx context.Context, id string) (*entity.Deal, error) {
	row := r.q.QueryRow(ctx, `SELECT `+dealColumns+` FROM otc_deals WHERE id = $1`, id)
	return scanDeal(row)
}

func (r *Repository) UpdateDealStatus(ctx context.Context, arg datagateway.UpdateDealStatusParams) error {
	var executedAt *time.Time
	if !arg.ExecutedAt.IsZero() {
		executedAt = &arg.ExecutedAt
	}
	// pending is the only non-terminal status; guarding in the statement
	// makes the transition atomic against concurrent executed/failed flips
	tag, err := r.q.Exec(ctx, `
		UPDATE otc_deals SET
			status = $2,
			failure_reason = $3,
			executed_at = COALESCE($4, executed_at)
		WHERE id = $1 AND status = $5`,
		arg.ID, arg.Status.String(), arg.FailureReason, executedAt,
		entity.DealStatusPending.String(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update deal status")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.State, "deal %s is not pending", arg.ID)
	}
	return nil
}

func (r *Repository) ListDealsByConsignment(ctx context.Context, consignmentID string) ([]entity.Deal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+dealColumns+` FROM otc_deals
		WHERE consignment_id = $1
		ORDER BY created_at, id`,
		consignmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query deals by consignment")
	}
	return scanDeals(rows)
}

func (r *Repository) ListDealsByBuyer(ctx context.Context, chain common.Chain, buyerAddress string) ([]entity.Deal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+dealColumns+` FROM otc_deals
		WHERE chain = $1 AND buyer_address = $2
		ORDER BY created_at, id`,
		chain.String(), buyerAddress,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query deals by buyer")
	}
	return scanDeals(rows)
}

func (r *Repository) ListPendingDealsCreatedBefore(ctx context.Context, cutoff time.Time) ([]entity.Deal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+dealColumns+` FROM otc_deals
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at, id`,
		entity.DealStatusPending.String(), cutoff,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pending deals")
	}
	return scanDeals(rows)
}

func (r *Repository) ListExecutedDeals(ctx context.Context, arg datagateway.ListExecutedDealsParams) ([]entity.Deal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+dealColumns+` FROM otc_deals
		WHERE status = $1 AND executed_at >= $2
		ORDER BY executed_at, id
		LIMIT $3 OFFSET $4`,
		entity.DealStatusExecuted.String(), arg.Since, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query executed deals")
	}
	return scanDeals(rows)
}
