package postgres

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

func (r *Repository) CreateConsignment(ctx context.Context, arg entity.Consignment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO otc_consignments (
			id, token_id, chain, consigner_address, consigner_entity_id,
			total_amount, remaining_amount, is_negotiable,
			fixed_discount_bps, fixed_lockup_days, min_discount_bps, max_discount_bps,
			min_lockup_days, max_lockup_days, min_deal_amount, max_deal_amount,
			is_fractionalized, is_private, allowed_buyers, max_price_volatility_bps,
			max_time_to_execute_seconds, status, created_at, updated_at, last_deal_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25
		)`,
		arg.ID, arg.TokenID, arg.Chain.String(), arg.ConsignerAddress, arg.ConsignerEntityID,
		arg.TotalAmount.String(), arg.RemainingAmount.String(), arg.IsNegotiable,
		int32(arg.FixedDiscountBps), int64(arg.FixedLockupDays), int32(arg.MinDiscountBps), int32(arg.MaxDiscountBps),
		int64(arg.MinLockupDays), int64(arg.MaxLockupDays), arg.MinDealAmount.String(), arg.MaxDealAmount.String(),
		arg.IsFractionalized, arg.IsPrivate, arg.AllowedBuyers, int32(arg.MaxPriceVolatilityBps),
		arg.MaxTimeToExecuteSeconds, arg.Status.String(), arg.CreatedAt, arg.UpdatedAt, arg.LastDealAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert consignment")
	}
	return nil
}

func (r *Repository) GetConsignment(ctx context.Context, id string) (*entity.Consignment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+consignmentColumns+` FROM otc_consignments WHERE id = $1`, id)
	return scanConsignment(row)
}

func (r *Repository) SaveConsignment(ctx context.Context, arg entity.Consignment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE otc_consignments SET
			total_amount = $2, remaining_amount = $3, is_negotiable = $4,
			fixed_discount_bps = $5, fixed_lockup_days = $6,
			min_discount_bps = $7, max_discount_bps = $8,
			min_lockup_days = $9, max_lockup_days = $10,
			min_deal_amount = $11, max_deal_amount = $12,
			is_fractionalized = $13, is_private = $14, allowed_buyers = $15,
			max_price_volatility_bps = $16, max_time_to_execute_seconds = $17,
			status = $18, updated_at = $19, last_deal_at = $20
		WHERE id = $1`,
		arg.ID,
		arg.TotalAmount.String(), arg.RemainingAmount.String(), arg.IsNegotiable,
		int32(arg.FixedDiscountBps), int64(arg.FixedLockupDays),
		int32(arg.MinDiscountBps), int32(arg.MaxDiscountBps),
		int64(arg.MinLockupDays), int64(arg.MaxLockupDays),
		arg.MinDealAmount.String(), arg.MaxDealAmount.String(),
		arg.IsFractionalized, arg.IsPrivate, arg.AllowedBuyers,
		int32(arg.MaxPriceVolatilityBps), arg.MaxTimeToExecuteSeconds,
		arg.Status.String(), arg.UpdatedAt, arg.LastDealAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update consignment")
	}
	if tag.RowsAffected() == 0 {
		return errors.WithStack(errs.NotFound)
	}
	return nil
}

func (r *Repository) DeleteConsignment(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM otc_consignments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete consignment")
	}
	if tag.RowsAffected() == 0 {
		return errors.WithStack(errs.NotFound)
	}
	return nil
}

func (r *Repository) ListConsignments(ctx context.Context, arg datagateway.ListConsignmentsParams) ([]entity.Consignment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+consignmentColumns+` FROM otc_consignments
		WHERE ($1 = '' OR token_id = $1)
			AND ($2 = '' OR chain = $2)
			AND ($3 = '' OR status = $3)
			AND ($4 OR NOT is_private)
		ORDER BY created_at, id`,
		arg.TokenID, arg.Chain.String(), arg.Status.String(), arg.IncludePrivate,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query consignments")
	}
	return scanConsignments(rows)
}

func (r *Repository) ListConsignmentsByToken(ctx context.Context, tokenID string) ([]entity.Consignment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+consignmentColumns+` FROM otc_consignments
		WHERE token_id = $1
		ORDER BY created_at, id`,
		tokenID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query consignments by token")
	}
	return scanConsignments(rows)
}

func (r *Repository) ListConsignmentsByConsigner(ctx context.Context, chain common.Chain, consignerAddress string) ([]entity.Consignment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+consignmentColumns+` FROM otc_consignments
		WHERE chain = $1 AND consigner_address = $2
		ORDER BY created_at, id`,
		chain.String(), consignerAddress,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query consignments by consigner")
	}
	return scanConsignments(rows)
}
