package otc

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

func TestRecordDeal(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, string) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)
		require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(300)))
		return e, c.ID
	}

	t.Run("persists a pending deal with priced commission", func(t *testing.T) {
		e, consignmentID := setup(t)

		deal, err := e.RecordDeal(ctx, RecordDealParams{
			ConsignmentID: consignmentID,
			QuoteID:       "quote-1",
			OfferID:       "offer-1",
			BuyerAddress:  "0xBuyer00000000000000000000000000000000002",
			Amount:        decimal.NewFromInt(300),
			DiscountBps:   500,
			LockupDays:    0,
		})
		require.NoError(t, err)

		assert.Equal(t, entity.DealStatusPending, deal.Status)
		assert.Equal(t, uint16(100), deal.CommissionBps)
		assert.Equal(t, "0xbuyer00000000000000000000000000000000002", deal.BuyerAddress)
		assert.Equal(t, "TKN", deal.TokenID)
		assert.Equal(t, common.ChainEthereum, deal.Chain)

		// recording never touches the consignment inventory
		c, err := e.GetConsignment(ctx, consignmentID)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(700)))
	})

	t.Run("rejects a duplicate quote id", func(t *testing.T) {
		e, consignmentID := setup(t)
		params := RecordDealParams{
			ConsignmentID: consignmentID,
			QuoteID:       "quote-dup",
			BuyerAddress:  "0xbuyer",
			Amount:        decimal.NewFromInt(300),
			DiscountBps:   500,
		}

		_, err := e.RecordDeal(ctx, params)
		require.NoError(t, err)

		_, err = e.RecordDeal(ctx, params)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.Conflict))
	})

	t.Run("rejects an unknown consignment", func(t *testing.T) {
		e, _ := setup(t)

		_, err := e.RecordDeal(ctx, RecordDealParams{
			ConsignmentID: "missing",
			QuoteID:       "quote-2",
			BuyerAddress:  "0xbuyer",
			Amount:        decimal.NewFromInt(300),
			DiscountBps:   500,
		})
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("rejects a missing quote id", func(t *testing.T) {
		e, consignmentID := setup(t)

		_, err := e.RecordDeal(ctx, RecordDealParams{
			ConsignmentID: consignmentID,
			BuyerAddress:  "0xbuyer",
			Amount:        decimal.NewFromInt(300),
			DiscountBps:   500,
		})
		assert.True(t, errors.Is(err, errs.Validation))
	})
}

func TestMarkDealExecuted(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c, err := e.CreateConsignment(ctx, validCreateParams())
	require.NoError(t, err)
	require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(300)))

	deal, err := e.RecordDeal(ctx, RecordDealParams{
		ConsignmentID: c.ID,
		QuoteID:       "quote-1",
		BuyerAddress:  "0xbuyer",
		Amount:        decimal.NewFromInt(300),
		DiscountBps:   500,
	})
	require.NoError(t, err)

	executed, err := e.MarkDealExecuted(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DealStatusExecuted, executed.Status)
	assert.Equal(t, testNow, executed.ExecutedAt)

	// executing is final for the reservation: inventory stays consumed
	after, err := e.GetConsignment(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingAmount.Equal(decimal.NewFromInt(700)))

	// a second execution is an invalid state transition
	_, err = e.MarkDealExecuted(ctx, deal.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.State))
}

func TestMarkDealFailed(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c, err := e.CreateConsignment(ctx, validCreateParams())
	require.NoError(t, err)
	require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(300)))

	deal, err := e.RecordDeal(ctx, RecordDealParams{
		ConsignmentID: c.ID,
		QuoteID:       "quote-1",
		BuyerAddress:  "0xbuyer",
		Amount:        decimal.NewFromInt(300),
		DiscountBps:   500,
	})
	require.NoError(t, err)

	failed, err := e.MarkDealFailed(ctx, deal.ID, "buyer walked")
	require.NoError(t, err)
	assert.Equal(t, entity.DealStatusFailed, failed.Status)
	assert.Equal(t, "buyer walked", failed.FailureReason)

	// failing a deal hands the reserved amount back
	after, err := e.GetConsignment(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingAmount.Equal(decimal.NewFromInt(1000)))

	_, err = e.MarkDealFailed(ctx, deal.ID, "again")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.State))
}

func TestMarkDealFailedLockContention(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c, err := e.CreateConsignment(ctx, validCreateParams())
	require.NoError(t, err)
	require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(300)))

	deal, err := e.RecordDeal(ctx, RecordDealParams{
		ConsignmentID: c.ID,
		QuoteID:       "quote-1",
		BuyerAddress:  "0xbuyer",
		Amount:        decimal.NewFromInt(300),
		DiscountBps:   500,
	})
	require.NoError(t, err)

	// a concurrent reservation holds the consignment's key
	require.True(t, e.locks.TryAcquire(c.ID))

	_, err = e.MarkDealFailed(ctx, deal.ID, "buyer walked")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrLockHeld))

	// nothing moved: the deal is still pending and no inventory came back,
	// so the next sweep picks it up again
	stuck, err := e.GetDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DealStatusPending, stuck.Status)
	mid, err := e.GetConsignment(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, mid.RemainingAmount.Equal(decimal.NewFromInt(700)))

	e.locks.Release(c.ID)

	failed, err := e.MarkDealFailed(ctx, deal.ID, "buyer walked")
	require.NoError(t, err)
	assert.Equal(t, entity.DealStatusFailed, failed.Status)
	after, err := e.GetConsignment(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingAmount.Equal(decimal.NewFromInt(1000)))
}

func TestListDeals(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c, err := e.CreateConsignment(ctx, validCreateParams())
	require.NoError(t, err)
	require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(500)))

	for i, quote := range []string{"q1", "q2"} {
		_, err := e.RecordDeal(ctx, RecordDealParams{
			ConsignmentID: c.ID,
			QuoteID:       quote,
			BuyerAddress:  "0xBuyer00000000000000000000000000000000002",
			Amount:        decimal.NewFromInt(int64(200 + i)),
			DiscountBps:   500,
		})
		require.NoError(t, err)
	}

	byConsignment, err := e.ListDealsByConsignment(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, byConsignment, 2)
	assert.Equal(t, "q1", byConsignment[0].QuoteID)
	assert.Equal(t, "q2", byConsignment[1].QuoteID)

	// lookup by buyer normalizes the address per chain
	byBuyer, err := e.ListDealsByBuyer(ctx, common.ChainEthereum, "0xBUYER00000000000000000000000000000000002")
	require.NoError(t, err)
	assert.Len(t, byBuyer, 2)
}
