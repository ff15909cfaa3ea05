package otc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// DisplayView is the buyer-safe projection of a consignment. For a
// negotiable listing it shows a single guaranteed pair of terms, not the
// full range: the favorable end of the range stays hidden so there is
// room to negotiate upward from the visible baseline.
type DisplayView struct {
	ID                string       `json:"id"`
	TokenID           string       `json:"tokenId"`
	Chain             common.Chain `json:"chain"`
	ConsignerEntityID string       `json:"consignerEntityId"`

	TotalAmount     decimal.Decimal `json:"totalAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	MinDealAmount   decimal.Decimal `json:"minDealAmount"`
	MaxDealAmount   decimal.Decimal `json:"maxDealAmount"`

	IsNegotiable       bool   `json:"isNegotiable"`
	DisplayDiscountBps uint16 `json:"displayDiscountBps"`
	DisplayLockupDays  uint32 `json:"displayLockupDays"`

	IsFractionalized        bool  `json:"isFractionalized"`
	IsPrivate               bool  `json:"isPrivate"`
	MaxPriceVolatilityBps   uint16 `json:"maxPriceVolatilityBps"`
	MaxTimeToExecuteSeconds int64 `json:"maxTimeToExecuteSeconds"`

	Status    entity.ConsignmentStatus `json:"status"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// SanitizeForBuyer projects a consignment into its buyer-facing view.
// Negotiable listings show the worst case for the buyer: the minimum
// discount and the maximum lockup. Fixed listings show their actual
// terms. The consigner address and the allow-list never leave the desk.
func SanitizeForBuyer(c *entity.Consignment) DisplayView {
	view := DisplayView{
		ID:                      c.ID,
		TokenID:                 c.TokenID,
		Chain:                   c.Chain,
		ConsignerEntityID:       c.ConsignerEntityID,
		TotalAmount:             c.TotalAmount,
		RemainingAmount:         c.RemainingAmount,
		MinDealAmount:           c.MinDealAmount,
		MaxDealAmount:           c.MaxDealAmount,
		IsNegotiable:            c.IsNegotiable,
		IsFractionalized:        c.IsFractionalized,
		IsPrivate:               c.IsPrivate,
		MaxPriceVolatilityBps:   c.MaxPriceVolatilityBps,
		MaxTimeToExecuteSeconds: c.MaxTimeToExecuteSeconds,
		Status:                  c.Status,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	if c.IsNegotiable {
		view.DisplayDiscountBps = c.MinDiscountBps
		view.DisplayLockupDays = c.MaxLockupDays
	} else {
		view.DisplayDiscountBps = c.FixedDiscountBps
		view.DisplayLockupDays = c.FixedLockupDays
	}
	return view
}

// IsConsignmentOwner reports whether callerAddress owns the consignment,
// comparing under the chain's address case rule. An absent caller address
// never matches.
func IsConsignmentOwner(c *entity.Consignment, callerAddress string) bool {
	return c.Chain.AddressEqual(c.ConsignerAddress, callerAddress)
}
