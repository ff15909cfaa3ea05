package otc

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
	consignmentvalidator "github.com/tokendesk/otc-desk/modules/otc/internal/validator/consignment"
	"github.com/tokendesk/otc-desk/modules/otc/repository/memory"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(memory.NewRepository(), nil)
	e.now = func() time.Time { return testNow }
	return e
}

func validCreateParams() consignmentvalidator.CreateParams {
	return consignmentvalidator.CreateParams{
		TokenID:          "TKN",
		Chain:            common.ChainEthereum,
		ConsignerAddress: "0xAbCd000000000000000000000000000000000001",
		TotalAmount:      decimal.NewFromInt(1000),
		IsNegotiable:     true,
		MinDiscountBps:   100,
		MaxDiscountBps:   2000,
		MinLockupDays:    7,
		MaxLockupDays:    90,
		MinDealAmount:    decimal.NewFromInt(100),
		MaxDealAmount:    decimal.NewFromInt(500),
	}
}

func TestCreateConsignment(t *testing.T) {
	ctx := context.Background()

	t.Run("persists active with full amount available", func(t *testing.T) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)

		assert.Equal(t, entity.ConsignmentStatusActive, c.Status)
		assert.True(t, c.RemainingAmount.Equal(c.TotalAmount))
		assert.Equal(t, "0xabcd000000000000000000000000000000000001", c.ConsignerAddress)
		assert.Equal(t, testNow, c.CreatedAt)

		stored, err := e.GetConsignment(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, stored.ID)
	})

	t.Run("keeps case sensitive addresses intact", func(t *testing.T) {
		e := newTestEngine()
		params := validCreateParams()
		params.Chain = common.ChainSolana
		params.ConsignerAddress = "SoLMixedCaseAddr111111111111111111111111111"

		c, err := e.CreateConsignment(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "SoLMixedCaseAddr111111111111111111111111111", c.ConsignerAddress)
	})

	t.Run("requires fixed terms for non-negotiable", func(t *testing.T) {
		e := newTestEngine()
		params := validCreateParams()
		params.IsNegotiable = false

		_, err := e.CreateConsignment(ctx, params)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrMissingFixedTerms))
		assert.True(t, errors.Is(err, errs.Validation))
	})

	t.Run("rejects inverted deal bounds", func(t *testing.T) {
		e := newTestEngine()
		params := validCreateParams()
		params.MinDealAmount = decimal.NewFromInt(600)

		_, err := e.CreateConsignment(ctx, params)
		assert.True(t, errors.Is(err, errs.ErrInvertedDealBounds))
	})

	t.Run("normalizes the allow list per chain", func(t *testing.T) {
		e := newTestEngine()
		params := validCreateParams()
		params.IsPrivate = true
		params.AllowedBuyers = []string{"0xBUYER000000000000000000000000000000000002"}

		c, err := e.CreateConsignment(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, []string{"0xbuyer000000000000000000000000000000000002"}, c.AllowedBuyers)
	})
}

func TestReserveAmount(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, string) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)
		return e, c.ID
	}

	t.Run("consumes inventory and depletes on zero", func(t *testing.T) {
		e, id := setup(t)

		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))
		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(700)))
		assert.Equal(t, entity.ConsignmentStatusActive, c.Status)
		require.NotNil(t, c.LastDealAt)

		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(500)))
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(200)))
		c, err = e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.IsZero())
		assert.Equal(t, entity.ConsignmentStatusDepleted, c.Status)

		// depleted is no longer reservable
		err = e.ReserveAmount(ctx, id, decimal.NewFromInt(100))
		assert.True(t, errors.Is(err, errs.ErrConsignmentInactive))
	})

	t.Run("insufficient amount is a conflict and leaves state unchanged", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(500)))
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(400)))

		err := e.ReserveAmount(ctx, id, decimal.NewFromInt(200))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInsufficientAmount))
		assert.True(t, errors.Is(err, errs.Conflict))

		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, entity.ConsignmentStatusActive, c.Status)
	})

	t.Run("enforces deal size bounds", func(t *testing.T) {
		e, id := setup(t)

		err := e.ReserveAmount(ctx, id, decimal.NewFromInt(99))
		assert.True(t, errors.Is(err, errs.ErrAmountOutOfRange))

		err = e.ReserveAmount(ctx, id, decimal.NewFromInt(501))
		assert.True(t, errors.Is(err, errs.ErrAmountOutOfRange))
	})

	t.Run("rejects non-positive and fractional amounts", func(t *testing.T) {
		e, id := setup(t)

		err := e.ReserveAmount(ctx, id, decimal.Zero)
		assert.True(t, errors.Is(err, errs.Validation))

		err = e.ReserveAmount(ctx, id, decimal.NewFromFloat(100.5))
		assert.True(t, errors.Is(err, errs.Validation))
	})

	t.Run("fails fast when the key is locked", func(t *testing.T) {
		e, id := setup(t)
		require.True(t, e.locks.TryAcquire(id))
		defer e.locks.Release(id)

		err := e.ReserveAmount(ctx, id, decimal.NewFromInt(300))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrLockHeld))
		assert.True(t, errors.Is(err, errs.Conflict))
	})

	t.Run("releases the lock on failure paths", func(t *testing.T) {
		e, id := setup(t)

		err := e.ReserveAmount(ctx, id, decimal.NewFromInt(99))
		require.Error(t, err)

		// a second call must not see a stale lock
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))
	})
}

func TestReleaseReservation(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, string) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)
		return e, c.ID
	}

	t.Run("round trip restores remaining and status", func(t *testing.T) {
		e, id := setup(t)
		before, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)

		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))
		require.NoError(t, e.ReleaseReservation(ctx, id, decimal.NewFromInt(300)))

		after, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.True(t, after.RemainingAmount.Equal(before.RemainingAmount))
		assert.Equal(t, before.Status, after.Status)
	})

	t.Run("reactivates a depleted consignment", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(500)))
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(500)))

		require.NoError(t, e.ReleaseReservation(ctx, id, decimal.NewFromInt(500)))
		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.ConsignmentStatusActive, c.Status)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(500)))
	})

	t.Run("never exceeds the total amount", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))

		err := e.ReleaseReservation(ctx, id, decimal.NewFromInt(400))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.Validation))

		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(700)))
	})

	t.Run("withdrawn stays withdrawn", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))
		require.NoError(t, e.WithdrawConsignment(ctx, id))

		require.NoError(t, e.ReleaseReservation(ctx, id, decimal.NewFromInt(300)))
		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.ConsignmentStatusWithdrawn, c.Status)
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	})
}

func TestUpdateConsignment(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, string) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)
		return e, c.ID
	}

	t.Run("merges a partial edit before consumption", func(t *testing.T) {
		e, id := setup(t)

		c, err := e.UpdateConsignment(ctx, id, consignmentvalidator.UpdateParams{
			TotalAmount:   lo.ToPtr(decimal.NewFromInt(2000)),
			MaxDealAmount: lo.ToPtr(decimal.NewFromInt(800)),
		})
		require.NoError(t, err)
		assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(2000)))
		assert.True(t, c.RemainingAmount.Equal(decimal.NewFromInt(2000)))
		assert.True(t, c.MaxDealAmount.Equal(decimal.NewFromInt(800)))
	})

	t.Run("freezes supply fields after the first deal", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))

		_, err := e.UpdateConsignment(ctx, id, consignmentvalidator.UpdateParams{
			TotalAmount: lo.ToPtr(decimal.NewFromInt(2000)),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.Immutable))
	})

	t.Run("unfrozen fields stay editable after consumption", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))

		c, err := e.UpdateConsignment(ctx, id, consignmentvalidator.UpdateParams{
			IsPrivate:     lo.ToPtr(true),
			AllowedBuyers: []string{"0xBUYER000000000000000000000000000000000002"},
		})
		require.NoError(t, err)
		assert.True(t, c.IsPrivate)
		assert.Equal(t, []string{"0xbuyer000000000000000000000000000000000002"}, c.AllowedBuyers)
	})

	t.Run("rejects an edit that breaks cross-field invariants", func(t *testing.T) {
		e, id := setup(t)

		_, err := e.UpdateConsignment(ctx, id, consignmentvalidator.UpdateParams{
			MinDealAmount: lo.ToPtr(decimal.NewFromInt(600)),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvertedDealBounds))
	})

	t.Run("rejects edits on a withdrawn consignment", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.WithdrawConsignment(ctx, id))

		_, err := e.UpdateConsignment(ctx, id, consignmentvalidator.UpdateParams{
			IsPrivate: lo.ToPtr(true),
		})
		assert.True(t, errors.Is(err, errs.ErrAlreadyWithdrawn))
	})
}

func TestConsignmentLifecycle(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, string) {
		e := newTestEngine()
		c, err := e.CreateConsignment(ctx, validCreateParams())
		require.NoError(t, err)
		return e, c.ID
	}

	t.Run("pause and resume", func(t *testing.T) {
		e, id := setup(t)

		require.NoError(t, e.PauseConsignment(ctx, id))
		c, err := e.GetConsignment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.ConsignmentStatusPaused, c.Status)

		err = e.ReserveAmount(ctx, id, decimal.NewFromInt(300))
		assert.True(t, errors.Is(err, errs.ErrConsignmentInactive))

		require.NoError(t, e.ResumeConsignment(ctx, id))
		require.NoError(t, e.ReserveAmount(ctx, id, decimal.NewFromInt(300)))
	})

	t.Run("pause requires active", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.PauseConsignment(ctx, id))

		err := e.PauseConsignment(ctx, id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.State))
	})

	t.Run("withdraw is terminal", func(t *testing.T) {
		e, id := setup(t)
		require.NoError(t, e.WithdrawConsignment(ctx, id))

		err := e.WithdrawConsignment(ctx, id)
		assert.True(t, errors.Is(err, errs.ErrAlreadyWithdrawn))

		err = e.ResumeConsignment(ctx, id)
		assert.True(t, errors.Is(err, errs.State))

		err = e.ReserveAmount(ctx, id, decimal.NewFromInt(300))
		assert.True(t, errors.Is(err, errs.ErrConsignmentInactive))
	})
}

func TestMatchConsignment(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	public, err := e.CreateConsignment(ctx, validCreateParams())
	require.NoError(t, err)

	privParams := validCreateParams()
	privParams.IsPrivate = true
	privParams.AllowedBuyers = []string{"0xAllowed0000000000000000000000000000000003"}
	_, err = e.CreateConsignment(ctx, privParams)
	require.NoError(t, err)

	t.Run("allow-listed buyer matches the earliest candidate", func(t *testing.T) {
		match, err := e.MatchConsignment(ctx, MatchParams{
			TokenID:      "TKN",
			Chain:        common.ChainEthereum,
			BuyerAddress: "0xALLOWED0000000000000000000000000000000003",
			Amount:       decimal.NewFromInt(300),
			DiscountBps:  500,
			LockupDays:   30,
		})
		require.NoError(t, err)
		assert.Equal(t, public.ID, match.ID)
	})

	t.Run("private consignments are hidden from other buyers", func(t *testing.T) {
		require.NoError(t, e.PauseConsignment(ctx, public.ID))
		defer func() { require.NoError(t, e.ResumeConsignment(ctx, public.ID)) }()

		_, err := e.MatchConsignment(ctx, MatchParams{
			TokenID:      "TKN",
			Chain:        common.ChainEthereum,
			BuyerAddress: "0xSomeoneElse000000000000000000000000000004",
			Amount:       decimal.NewFromInt(300),
			DiscountBps:  500,
			LockupDays:   30,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("unsupported chain is a validation error", func(t *testing.T) {
		_, err := e.MatchConsignment(ctx, MatchParams{
			TokenID:     "TKN",
			Chain:       common.Chain("dogecoin"),
			Amount:      decimal.NewFromInt(300),
			DiscountBps: 500,
			LockupDays:  30,
		})
		assert.True(t, errors.Is(err, errs.Validation))
	})
}
