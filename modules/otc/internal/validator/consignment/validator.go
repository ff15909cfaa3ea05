// Package consignment validates consignment boundary input. Every entry
// point that creates or edits a consignment goes through these checks, so
// each invariant is enforced exactly once.
package consignment

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
)

const MaxBps = 10000

// CreateParams carries the full term sheet for a new consignment. Fixed
// terms are pointers: they are required when IsNegotiable is false and
// ignored otherwise.
type CreateParams struct {
	TokenID           string
	Chain             common.Chain
	ConsignerAddress  string
	ConsignerEntityID string

	TotalAmount decimal.Decimal

	IsNegotiable     bool
	FixedDiscountBps *uint16
	FixedLockupDays  *uint32
	MinDiscountBps   uint16
	MaxDiscountBps   uint16
	MinLockupDays    uint32
	MaxLockupDays    uint32

	MinDealAmount decimal.Decimal
	MaxDealAmount decimal.Decimal

	IsFractionalized        bool
	IsPrivate               bool
	AllowedBuyers           []string
	MaxPriceVolatilityBps   uint16
	MaxTimeToExecuteSeconds int64
}

// Validate checks the term sheet. Order matters and is part of the
// contract: missing fixed terms are reported before any range check.
func (p CreateParams) Validate() error {
	if !p.IsNegotiable && (p.FixedDiscountBps == nil || p.FixedLockupDays == nil) {
		return errors.WithStack(errs.ErrMissingFixedTerms)
	}
	if p.MinDealAmount.GreaterThan(p.MaxDealAmount) {
		return errors.WithStack(errs.ErrInvertedDealBounds)
	}
	if p.TotalAmount.LessThan(p.MinDealAmount) {
		return errors.WithStack(errs.ErrTotalBelowMinDeal)
	}
	if p.MinDiscountBps > p.MaxDiscountBps {
		return errors.WithStack(errs.ErrInvertedDiscount)
	}
	if p.MinLockupDays > p.MaxLockupDays {
		return errors.WithStack(errs.ErrInvertedLockup)
	}

	if p.TokenID == "" {
		return errors.Wrap(errs.Validation, "token id is required")
	}
	if !p.Chain.IsSupported() {
		return errors.Wrapf(errs.Validation, "unsupported chain %q", p.Chain)
	}
	if p.ConsignerAddress == "" {
		return errors.Wrap(errs.Validation, "consigner address is required")
	}
	if err := validAmount(p.TotalAmount, "total amount"); err != nil {
		return err
	}
	if p.TotalAmount.Sign() <= 0 {
		return errors.Wrap(errs.Validation, "total amount must be positive")
	}
	if err := validAmount(p.MinDealAmount, "min deal amount"); err != nil {
		return err
	}
	if err := validAmount(p.MaxDealAmount, "max deal amount"); err != nil {
		return err
	}
	if p.MaxDealAmount.GreaterThan(p.TotalAmount) {
		return errors.Wrap(errs.Validation, "max deal amount exceeds total amount")
	}
	if err := validBps(p.MinDiscountBps, "min discount"); err != nil {
		return err
	}
	if err := validBps(p.MaxDiscountBps, "max discount"); err != nil {
		return err
	}
	if p.FixedDiscountBps != nil {
		if err := validBps(*p.FixedDiscountBps, "fixed discount"); err != nil {
			return err
		}
	}
	if err := validBps(p.MaxPriceVolatilityBps, "max price volatility"); err != nil {
		return err
	}
	if p.MaxTimeToExecuteSeconds < 0 {
		return errors.Wrap(errs.Validation, "max time to execute must not be negative")
	}
	return nil
}

// UpdateParams carries a partial edit. Nil fields are left untouched.
// Whether a field may still change at all (immutability after the first
// deal) is decided by the engine against the loaded record.
type UpdateParams struct {
	TotalAmount      *decimal.Decimal
	MinDealAmount    *decimal.Decimal
	MaxDealAmount    *decimal.Decimal
	IsFractionalized *bool

	IsPrivate               *bool
	AllowedBuyers           []string
	MinDiscountBps          *uint16
	MaxDiscountBps          *uint16
	MinLockupDays           *uint32
	MaxLockupDays           *uint32
	FixedDiscountBps        *uint16
	FixedLockupDays         *uint32
	MaxPriceVolatilityBps   *uint16
	MaxTimeToExecuteSeconds *int64
}

// TouchesFrozenFields reports whether the update edits any field that is
// immutable once inventory has been consumed.
func (p UpdateParams) TouchesFrozenFields() bool {
	return p.TotalAmount != nil || p.MinDealAmount != nil || p.MaxDealAmount != nil || p.IsFractionalized != nil
}

// Validate performs the static checks that do not need the stored record.
func (p UpdateParams) Validate() error {
	for _, amount := range []*decimal.Decimal{p.TotalAmount, p.MinDealAmount, p.MaxDealAmount} {
		if amount == nil {
			continue
		}
		if err := validAmount(*amount, "amount"); err != nil {
			return err
		}
	}
	for _, bps := range []*uint16{p.MinDiscountBps, p.MaxDiscountBps, p.FixedDiscountBps, p.MaxPriceVolatilityBps} {
		if bps == nil {
			continue
		}
		if err := validBps(*bps, "discount"); err != nil {
			return err
		}
	}
	if p.MaxTimeToExecuteSeconds != nil && *p.MaxTimeToExecuteSeconds < 0 {
		return errors.Wrap(errs.Validation, "max time to execute must not be negative")
	}
	return nil
}

func validAmount(amount decimal.Decimal, field string) error {
	if !amount.IsInteger() {
		return errors.Wrapf(errs.Validation, "%s must be an integer", field)
	}
	if amount.Sign() < 0 {
		return errors.Wrapf(errs.Validation, "%s must not be negative", field)
	}
	return nil
}

func validBps(bps uint16, field string) error {
	if bps > MaxBps {
		return errors.Wrapf(errs.Validation, "%s exceeds %d bps", field, MaxBps)
	}
	return nil
}
