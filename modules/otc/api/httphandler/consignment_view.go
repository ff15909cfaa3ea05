package httphandler

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// consignmentResult is the owner-facing projection: the full term sheet,
// including both ends of a negotiable range. Buyers get the sanitized
// DisplayView instead.
type consignmentResult struct {
	ID                string       `json:"id"`
	TokenID           string       `json:"tokenId"`
	Chain             common.Chain `json:"chain"`
	ConsignerAddress  string       `json:"consignerAddress"`
	ConsignerEntityID string       `json:"consignerEntityId"`

	TotalAmount     decimal.Decimal `json:"totalAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	MinDealAmount   decimal.Decimal `json:"minDealAmount"`
	MaxDealAmount   decimal.Decimal `json:"maxDealAmount"`

	IsNegotiable     bool    `json:"isNegotiable"`
	FixedDiscountBps *uint16 `json:"fixedDiscountBps,omitempty"`
	FixedLockupDays  *uint32 `json:"fixedLockupDays,omitempty"`
	MinDiscountBps   uint16  `json:"minDiscountBps"`
	MaxDiscountBps   uint16  `json:"maxDiscountBps"`
	MinLockupDays    uint32  `json:"minLockupDays"`
	MaxLockupDays    uint32  `json:"maxLockupDays"`

	IsFractionalized        bool     `json:"isFractionalized"`
	IsPrivate               bool     `json:"isPrivate"`
	AllowedBuyers           []string `json:"allowedBuyers,omitempty"`
	MaxPriceVolatilityBps   uint16   `json:"maxPriceVolatilityBps"`
	MaxTimeToExecuteSeconds int64    `json:"maxTimeToExecuteSeconds"`

	Status     entity.ConsignmentStatus `json:"status"`
	CreatedAt  time.Time                `json:"createdAt"`
	UpdatedAt  time.Time                `json:"updatedAt"`
	LastDealAt *time.Time               `json:"lastDealAt,omitempty"`
}

func toConsignmentResult(c entity.Consignment) consignmentResult {
	result := consignmentResult{
		ID:                      c.ID,
		TokenID:                 c.TokenID,
		Chain:                   c.Chain,
		ConsignerAddress:        c.ConsignerAddress,
		ConsignerEntityID:       c.ConsignerEntityID,
		TotalAmount:             c.TotalAmount,
		RemainingAmount:         c.RemainingAmount,
		MinDealAmount:           c.MinDealAmount,
		MaxDealAmount:           c.MaxDealAmount,
		IsNegotiable:            c.IsNegotiable,
		MinDiscountBps:          c.MinDiscountBps,
		MaxDiscountBps:          c.MaxDiscountBps,
		MinLockupDays:           c.MinLockupDays,
		MaxLockupDays:           c.MaxLockupDays,
		IsFractionalized:        c.IsFractionalized,
		IsPrivate:               c.IsPrivate,
		AllowedBuyers:           c.AllowedBuyers,
		MaxPriceVolatilityBps:   c.MaxPriceVolatilityBps,
		MaxTimeToExecuteSeconds: c.MaxTimeToExecuteSeconds,
		Status:                  c.Status,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
		LastDealAt:              c.LastDealAt,
	}
	if !c.IsNegotiable {
		result.FixedDiscountBps = lo.ToPtr(c.FixedDiscountBps)
		result.FixedLockupDays = lo.ToPtr(c.FixedLockupDays)
	}
	return result
}

type dealResult struct {
	ID            string       `json:"id"`
	ConsignmentID string       `json:"consignmentId"`
	QuoteID       string       `json:"quoteId"`
	OfferID       string       `json:"offerId,omitempty"`
	TokenID       string       `json:"tokenId"`
	Chain         common.Chain `json:"chain"`
	BuyerAddress  string       `json:"buyerAddress"`

	Amount        decimal.Decimal `json:"amount"`
	DiscountBps   uint16          `json:"discountBps"`
	LockupDays    uint32          `json:"lockupDays"`
	CommissionBps uint16          `json:"commissionBps"`

	Status        entity.DealStatus `json:"status"`
	FailureReason string            `json:"failureReason,omitempty"`
	ExecutedAt    *time.Time        `json:"executedAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func toDealResult(d entity.Deal) dealResult {
	result := dealResult{
		ID:            d.ID,
		ConsignmentID: d.ConsignmentID,
		QuoteID:       d.QuoteID,
		OfferID:       d.OfferID,
		TokenID:       d.TokenID,
		Chain:         d.Chain,
		BuyerAddress:  d.BuyerAddress,
		Amount:        d.Amount,
		DiscountBps:   d.DiscountBps,
		LockupDays:    d.LockupDays,
		CommissionBps: d.CommissionBps,
		Status:        d.Status,
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
	}
	if !d.ExecutedAt.IsZero() {
		result.ExecutedAt = lo.ToPtr(d.ExecutedAt)
	}
	return result
}
