package otc

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// FindSuitableConsignment scans candidates in the given order and returns
// the first one that can fund a deal of the requested size and terms, or
// nil when none can. First-match over the caller's ordering is deliberate:
// no best-price search, so the result is fully determined by the input.
func FindSuitableConsignment(candidates []entity.Consignment, amount decimal.Decimal, discountBps uint16, lockupDays uint32) *entity.Consignment {
	for i := range candidates {
		c := &candidates[i]
		if amount.LessThan(c.MinDealAmount) || amount.GreaterThan(c.MaxDealAmount) {
			continue
		}
		if amount.GreaterThan(c.RemainingAmount) {
			continue
		}
		if c.IsNegotiable {
			if discountBps < c.MinDiscountBps || discountBps > c.MaxDiscountBps {
				continue
			}
			if lockupDays < c.MinLockupDays || lockupDays > c.MaxLockupDays {
				continue
			}
		} else {
			// fixed terms match on exact equality only
			if discountBps != c.FixedDiscountBps || lockupDays != c.FixedLockupDays {
				continue
			}
		}
		return c
	}
	return nil
}

// MatchParams describes the quote a buyer wants filled.
type MatchParams struct {
	TokenID      string
	Chain        common.Chain
	BuyerAddress string
	Amount       decimal.Decimal
	DiscountBps  uint16
	LockupDays   uint32
}

// MatchConsignment loads the active listings for the requested token,
// filters out private consignments the buyer is not allow-listed on, and
// returns the first suitable candidate in creation order.
func (e *Engine) MatchConsignment(ctx context.Context, params MatchParams) (*entity.Consignment, error) {
	if err := validReservationAmount(params.Amount); err != nil {
		return nil, err
	}
	if !params.Chain.IsSupported() {
		return nil, errors.Wrapf(errs.Validation, "unsupported chain %q", params.Chain)
	}

	candidates, err := e.dg.ListConsignments(ctx, datagateway.ListConsignmentsParams{
		TokenID:        params.TokenID,
		Chain:          params.Chain,
		Status:         entity.ConsignmentStatusActive,
		IncludePrivate: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list consignments")
	}

	candidates = lo.Filter(candidates, func(c entity.Consignment, _ int) bool {
		if !c.IsPrivate {
			return true
		}
		return lo.ContainsBy(c.AllowedBuyers, func(allowed string) bool {
			return c.Chain.AddressEqual(allowed, params.BuyerAddress)
		})
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	match := FindSuitableConsignment(candidates, params.Amount, params.DiscountBps, params.LockupDays)
	if match == nil {
		return nil, errors.Wrap(errs.NotFound, "no suitable consignment")
	}
	return match, nil
}
