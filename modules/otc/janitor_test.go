package otc

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

func TestJanitorStateMachine(t *testing.T) {
	ctx := context.Background()

	t.Run("start runs once", func(t *testing.T) {
		j := NewJanitor(newTestEngine(), time.Hour, time.Hour)
		assert.Equal(t, JanitorIdle, j.State())

		require.NoError(t, j.Start(ctx))
		assert.Equal(t, JanitorRunning, j.State())
		assert.Error(t, j.Start(ctx))

		j.Stop()
		assert.Equal(t, JanitorStopped, j.State())
	})

	t.Run("stop is terminal and idempotent", func(t *testing.T) {
		j := NewJanitor(newTestEngine(), time.Hour, time.Hour)
		require.NoError(t, j.Start(ctx))

		j.Stop()
		j.Stop()
		assert.Equal(t, JanitorStopped, j.State())
		assert.Error(t, j.Start(ctx))
	})

	t.Run("stopping an idle janitor skips the start window", func(t *testing.T) {
		j := NewJanitor(newTestEngine(), time.Hour, time.Hour)
		j.Stop()
		assert.Equal(t, JanitorStopped, j.State())
		assert.Error(t, j.Start(ctx))
	})
}

func TestJanitorSweep(t *testing.T) {
	ctx := context.Background()

	record := func(t *testing.T, e *Engine, maxTimeToExecuteSeconds int64) (string, string) {
		params := validCreateParams()
		params.MaxTimeToExecuteSeconds = maxTimeToExecuteSeconds
		c, err := e.CreateConsignment(ctx, params)
		require.NoError(t, err)
		require.NoError(t, e.ReserveAmount(ctx, c.ID, decimal.NewFromInt(300)))

		deal, err := e.RecordDeal(ctx, RecordDealParams{
			ConsignmentID: c.ID,
			QuoteID:       "quote-" + c.ID,
			BuyerAddress:  "0xbuyer",
			Amount:        decimal.NewFromInt(300),
			DiscountBps:   500,
		})
		require.NoError(t, err)
		return c.ID, deal.ID
	}

	t.Run("expires deals past the consignment window", func(t *testing.T) {
		e := newTestEngine()
		consignmentID, dealID := record(t, e, 60)
		j := NewJanitor(e, time.Hour, time.Hour)

		e.now = func() time.Time { return testNow.Add(61 * time.Second) }
		require.NoError(t, j.Sweep(ctx))

		deal, err := e.GetDeal(ctx, dealID)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusFailed, deal.Status)
		assert.Equal(t, "execution window expired", deal.FailureReason)

		c, err := e.GetConsignment(ctx, consignmentID)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("leaves deals inside the window alone", func(t *testing.T) {
		e := newTestEngine()
		_, dealID := record(t, e, 60)
		j := NewJanitor(e, time.Hour, time.Hour)

		e.now = func() time.Time { return testNow.Add(30 * time.Second) }
		require.NoError(t, j.Sweep(ctx))

		deal, err := e.GetDeal(ctx, dealID)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusPending, deal.Status)
	})

	t.Run("falls back to the default expiry", func(t *testing.T) {
		e := newTestEngine()
		_, dealID := record(t, e, 0)
		j := NewJanitor(e, time.Hour, 15*time.Minute)

		e.now = func() time.Time { return testNow.Add(16 * time.Minute) }
		require.NoError(t, j.Sweep(ctx))

		deal, err := e.GetDeal(ctx, dealID)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusFailed, deal.Status)
	})

	t.Run("ignores already executed deals", func(t *testing.T) {
		e := newTestEngine()
		_, dealID := record(t, e, 60)
		_, err := e.MarkDealExecuted(ctx, dealID)
		require.NoError(t, err)
		j := NewJanitor(e, time.Hour, time.Hour)

		e.now = func() time.Time { return testNow.Add(time.Hour) }
		require.NoError(t, j.Sweep(ctx))

		deal, err := e.GetDeal(ctx, dealID)
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusExecuted, deal.Status)
		assert.False(t, deal.ExecutedAt.IsZero())
	})
}
