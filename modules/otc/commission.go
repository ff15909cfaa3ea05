package otc

import (
	"github.com/cockroachdb/errors"

	"github.com/tokendesk/otc-desk/common/errs"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
)

// Commission formula constants, all in basis points unless noted.
const (
	commissionFloorBps   = 25
	commissionCeilBps    = 150
	discountLowCutoffBps = 500
	discountHighCutoff   = 3000
	discountComponentMax = 100
	discountComponentMin = 25
	lockupComponentMax   = 50
	lockupBpsPerYear     = 50
	daysPerYear          = 365
)

// CalculateAgentCommission computes the desk's fee in basis points for a
// deal struck at the given discount and lockup. Shallow discounts and
// long lockups pay more; the result is clamped to [25, 150] bps. All
// arithmetic is integral so identical terms always price identically.
func CalculateAgentCommission(discountBps uint16, lockupDays uint32) (uint16, error) {
	if discountBps > consignmentvalidator.MaxBps {
		return 0, errors.Wrapf(errs.Validation, "discount %d exceeds %d bps", discountBps, consignmentvalidator.MaxBps)
	}

	var discountComponent int64
	switch {
	case discountBps <= discountLowCutoffBps:
		discountComponent = discountComponentMax
	case discountBps >= discountHighCutoff:
		discountComponent = discountComponentMin
	default:
		// linear interpolation from 100 bps at a 5% discount down to
		// 25 bps at 30%, truncating toward zero
		span := int64(discountBps) - discountLowCutoffBps
		discountComponent = discountComponentMax - span*(discountComponentMax-discountComponentMin)/(discountHighCutoff-discountLowCutoffBps)
	}

	lockupComponent := int64(lockupDays) * lockupBpsPerYear / daysPerYear
	if lockupComponent > lockupComponentMax {
		lockupComponent = lockupComponentMax
	}

	commission := discountComponent + lockupComponent
	if commission < commissionFloorBps {
		commission = commissionFloorBps
	}
	if commission > commissionCeilBps {
		commission = commissionCeilBps
	}
	return uint16(commission), nil
}
