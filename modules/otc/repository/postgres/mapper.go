package postgres

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// Amount columns are selected as text so they round-trip through
// shopspring/decimal without precision loss.
const consignmentColumns = `id, token_id, chain, consigner_address, consigner_entity_id,
	total_amount::text, remaining_amount::text, is_negotiable,
	fixed_discount_bps, fixed_lockup_days, min_discount_bps, max_discount_bps,
	min_lockup_days, max_lockup_days, min_deal_amount::text, max_deal_amount::text,
	is_fractionalized, is_private, allowed_buyers, max_price_volatility_bps,
	max_time_to_execute_seconds, status, created_at, updated_at, last_deal_at`

func scanConsignment(row pgx.Row) (*entity.Consignment, error) {
	var (
		c             entity.Consignment
		chain, status string
		total, remaining, minDeal, maxDeal        string
		fixedDiscount, minDiscount, maxDiscount   int32
		maxVolatility                             int32
		fixedLockup, minLockup, maxLockup         int64
		lastDealAt                                *time.Time
	)
	err := row.Scan(
		&c.ID, &c.TokenID, &chain, &c.ConsignerAddress, &c.ConsignerEntityID,
		&total, &remaining, &c.IsNegotiable,
		&fixedDiscount, &fixedLockup, &minDiscount, &maxDiscount,
		&minLockup, &maxLockup, &minDeal, &maxDeal,
		&c.IsFractionalized, &c.IsPrivate, &c.AllowedBuyers, &maxVolatility,
		&c.MaxTimeToExecuteSeconds, &status, &c.CreatedAt, &c.UpdatedAt, &lastDealAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "failed to scan consignment row")
	}

	c.Chain = common.Chain(chain)
	c.Status = entity.ConsignmentStatus(status)
	c.FixedDiscountBps = uint16(fixedDiscount)
	c.MinDiscountBps = uint16(minDiscount)
	c.MaxDiscountBps = uint16(maxDiscount)
	c.MaxPriceVolatilityBps = uint16(maxVolatility)
	c.FixedLockupDays = uint32(fixedLockup)
	c.MinLockupDays = uint32(minLockup)
	c.MaxLockupDays = uint32(maxLockup)
	c.LastDealAt = lastDealAt
	if c.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, errors.Wrapf(err, "invalid total amount %q", total)
	}
	if c.RemainingAmount, err = decimal.NewFromString(remaining); err != nil {
		return nil, errors.Wrapf(err, "invalid remaining amount %q", remaining)
	}
	if c.MinDealAmount, err = decimal.NewFromString(minDeal); err != nil {
		return nil, errors.Wrapf(err, "invalid min deal amount %q", minDeal)
	}
	if c.MaxDealAmount, err = decimal.NewFromString(maxDeal); err != nil {
		return nil, errors.Wrapf(err, "invalid max deal amount %q", maxDeal)
	}
	return &c, nil
}

func scanConsignments(rows pgx.Rows) ([]entity.Consignment, error) {
	defer rows.Close()
	var consignments []entity.Consignment
	for rows.Next() {
		c, err := scanConsignment(rows)
		if err != nil {
			return nil, err
		}
		consignments = append(consignments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate consignment rows")
	}
	return consignments, nil
}

const dealColumns = `id, consignment_id, quote_id, offer_id, token_id, chain, buyer_address,
	amount::text, discount_bps, lockup_days, commission_bps, status, failure_reason,
	executed_at, created_at`

func scanDeal(row pgx.Row) (*entity.Deal, error) {
	var (
		d             entity.Deal
		chain, status string
		amount        string
		discount, lockup, commission int64
		executedAt    *time.Time
	)
	err := row.Scan(
		&d.ID, &d.ConsignmentID, &d.QuoteID, &d.OfferID, &d.TokenID, &chain, &d.BuyerAddress,
		&amount, &discount, &lockup, &commission, &status, &d.FailureReason,
		&executedAt, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "failed to scan deal row")
	}

	d.Chain = common.Chain(chain)
	d.Status = entity.DealStatus(status)
	d.DiscountBps = uint16(discount)
	d.LockupDays = uint32(lockup)
	d.CommissionBps = uint16(commission)
	if executedAt != nil {
		d.ExecutedAt = *executedAt
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, errors.Wrapf(err, "invalid deal amount %q", amount)
	}
	return &d, nil
}

func scanDeals(rows pgx.Rows) ([]entity.Deal, error) {
	defer rows.Close()
	var deals []entity.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate deal rows")
	}
	return deals, nil
}
