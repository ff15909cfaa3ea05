package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
)

type ConsignmentStatus string

const (
	ConsignmentStatusActive    ConsignmentStatus = "active"
	ConsignmentStatusPaused    ConsignmentStatus = "paused"
	ConsignmentStatusDepleted  ConsignmentStatus = "depleted"
	ConsignmentStatusWithdrawn ConsignmentStatus = "withdrawn"
)

func (s ConsignmentStatus) String() string {
	return string(s)
}

// Consignment is a sell-side listing: a quantity of a token offered under
// fixed or negotiable terms. Amounts are arbitrary-precision integers
// carried as decimals to avoid floating-point loss.
type Consignment struct {
	ID                string
	TokenID           string
	Chain             common.Chain
	ConsignerAddress  string
	ConsignerEntityID string

	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal

	// Negotiable consignments carry a range of acceptable terms; fixed
	// consignments carry exactly one value for each.
	IsNegotiable     bool
	FixedDiscountBps uint16
	FixedLockupDays  uint32
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

	Status     ConsignmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastDealAt *time.Time
}

// Consumed reports whether any deal has taken inventory from the
// consignment. Several fields freeze once this is true.
func (c *Consignment) Consumed() bool {
	return !c.RemainingAmount.Equal(c.TotalAmount)
}

type DealStatus string

const (
	DealStatusPending  DealStatus = "pending"
	DealStatusExecuted DealStatus = "executed"
	DealStatusFailed   DealStatus = "failed"
)

func (s DealStatus) String() string {
	return string(s)
}

// Deal is the audit record of one sale executed against a consignment. It
// never mutates the consignment itself; the reservation calls do that in
// the same workflow.
type Deal struct {
	ID            string
	ConsignmentID string
	QuoteID       string
	OfferID       string
	TokenID       string
	Chain         common.Chain
	BuyerAddress  string

	Amount        decimal.Decimal
	DiscountBps   uint16
	LockupDays    uint32
	CommissionBps uint16

	Status        DealStatus
	FailureReason string
	ExecutedAt    time.Time
	CreatedAt     time.Time
}
