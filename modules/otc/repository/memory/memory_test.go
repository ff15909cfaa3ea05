package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

var baseTime = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func consignmentFixture(id string) entity.Consignment {
	return entity.Consignment{
		ID:               id,
		TokenID:          "TKN",
		Chain:            common.ChainEthereum,
		ConsignerAddress: "0xseller",
		TotalAmount:      decimal.NewFromInt(1000),
		RemainingAmount:  decimal.NewFromInt(1000),
		IsNegotiable:     true,
		MinDealAmount:    decimal.NewFromInt(100),
		MaxDealAmount:    decimal.NewFromInt(500),
		Status:           entity.ConsignmentStatusActive,
		CreatedAt:        baseTime,
		UpdatedAt:        baseTime,
	}
}

func dealFixture(id, consignmentID, quoteID string) entity.Deal {
	return entity.Deal{
		ID:            id,
		ConsignmentID: consignmentID,
		QuoteID:       quoteID,
		TokenID:       "TKN",
		Chain:         common.ChainEthereum,
		BuyerAddress:  "0xbuyer",
		Amount:        decimal.NewFromInt(300),
		DiscountBps:   500,
		CommissionBps: 100,
		Status:        entity.DealStatusPending,
		CreatedAt:     baseTime,
	}
}

func TestConsignmentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		r := NewRepository()
		require.NoError(t, r.CreateConsignment(ctx, consignmentFixture("c1")))

		got, err := r.GetConsignment(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", got.ID)

		_, err = r.GetConsignment(ctx, "missing")
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("create rejects a duplicate id", func(t *testing.T) {
		r := NewRepository()
		require.NoError(t, r.CreateConsignment(ctx, consignmentFixture("c1")))
		err := r.CreateConsignment(ctx, consignmentFixture("c1"))
		assert.True(t, errors.Is(err, errs.Conflict))
	})

	t.Run("save requires an existing record", func(t *testing.T) {
		r := NewRepository()
		err := r.SaveConsignment(ctx, consignmentFixture("c1"))
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("returned records are detached copies", func(t *testing.T) {
		r := NewRepository()
		c := consignmentFixture("c1")
		c.AllowedBuyers = []string{"0xbuyer"}
		require.NoError(t, r.CreateConsignment(ctx, c))

		got, err := r.GetConsignment(ctx, "c1")
		require.NoError(t, err)
		got.AllowedBuyers[0] = "mutated"
		got.RemainingAmount = decimal.Zero

		again, err := r.GetConsignment(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"0xbuyer"}, again.AllowedBuyers)
		assert.True(t, again.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("list filters and preserves insertion order", func(t *testing.T) {
		r := NewRepository()
		a := consignmentFixture("a")
		b := consignmentFixture("b")
		b.IsPrivate = true
		c := consignmentFixture("c")
		c.Status = entity.ConsignmentStatusPaused
		for _, cs := range []entity.Consignment{a, b, c} {
			require.NoError(t, r.CreateConsignment(ctx, cs))
		}

		public, err := r.ListConsignments(ctx, datagateway.ListConsignmentsParams{
			TokenID: "TKN",
			Status:  entity.ConsignmentStatusActive,
		})
		require.NoError(t, err)
		require.Len(t, public, 1)
		assert.Equal(t, "a", public[0].ID)

		all, err := r.ListConsignments(ctx, datagateway.ListConsignmentsParams{
			Status:         entity.ConsignmentStatusActive,
			IncludePrivate: true,
		})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a", all[0].ID)
		assert.Equal(t, "b", all[1].ID)
	})

	t.Run("list by consigner matches under the chain case rule", func(t *testing.T) {
		r := NewRepository()
		require.NoError(t, r.CreateConsignment(ctx, consignmentFixture("c1")))

		got, err := r.ListConsignmentsByConsigner(ctx, common.ChainEthereum, "0xSELLER")
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = r.ListConsignmentsByConsigner(ctx, common.ChainPolygon, "0xseller")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("delete removes record and index entry", func(t *testing.T) {
		r := NewRepository()
		require.NoError(t, r.CreateConsignment(ctx, consignmentFixture("c1")))
		require.NoError(t, r.DeleteConsignment(ctx, "c1"))

		_, err := r.GetConsignment(ctx, "c1")
		assert.True(t, errors.Is(err, errs.NotFound))

		all, err := r.ListConsignmentsByToken(ctx, "TKN")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestDealStore(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Repository {
		r := NewRepository()
		require.NoError(t, r.CreateConsignment(ctx, consignmentFixture("c1")))
		return r
	}

	t.Run("quote id is unique", func(t *testing.T) {
		r := setup(t)
		require.NoError(t, r.CreateDeal(ctx, dealFixture("d1", "c1", "q1")))

		err := r.CreateDeal(ctx, dealFixture("d2", "c1", "q1"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.Conflict))
	})

	t.Run("deal requires its consignment", func(t *testing.T) {
		r := setup(t)
		err := r.CreateDeal(ctx, dealFixture("d1", "missing", "q1"))
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("status update keeps executed_at once set", func(t *testing.T) {
		r := setup(t)
		require.NoError(t, r.CreateDeal(ctx, dealFixture("d1", "c1", "q1")))

		executedAt := baseTime.Add(time.Minute)
		require.NoError(t, r.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
			ID:         "d1",
			Status:     entity.DealStatusExecuted,
			ExecutedAt: executedAt,
		}))

		got, err := r.GetDeal(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusExecuted, got.Status)
		assert.Equal(t, executedAt, got.ExecutedAt)
	})

	t.Run("status transition is pending-only", func(t *testing.T) {
		r := setup(t)
		require.NoError(t, r.CreateDeal(ctx, dealFixture("d1", "c1", "q1")))
		require.NoError(t, r.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
			ID:         "d1",
			Status:     entity.DealStatusExecuted,
			ExecutedAt: baseTime,
		}))

		// a racing expiry must not flip an executed deal to failed
		err := r.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
			ID:            "d1",
			Status:        entity.DealStatusFailed,
			FailureReason: "too late",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.State))

		got, err := r.GetDeal(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, entity.DealStatusExecuted, got.Status)

		err = r.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
			ID:     "missing",
			Status: entity.DealStatusFailed,
		})
		assert.True(t, errors.Is(err, errs.NotFound))
	})

	t.Run("pending cutoff filter", func(t *testing.T) {
		r := setup(t)
		old := dealFixture("d1", "c1", "q1")
		recent := dealFixture("d2", "c1", "q2")
		recent.CreatedAt = baseTime.Add(time.Hour)
		require.NoError(t, r.CreateDeal(ctx, old))
		require.NoError(t, r.CreateDeal(ctx, recent))

		got, err := r.ListPendingDealsCreatedBefore(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "d1", got[0].ID)
	})

	t.Run("executed deals page in execution order", func(t *testing.T) {
		r := setup(t)
		for i, id := range []string{"d1", "d2", "d3"} {
			d := dealFixture(id, "c1", "q"+id)
			require.NoError(t, r.CreateDeal(ctx, d))
			require.NoError(t, r.UpdateDealStatus(ctx, datagateway.UpdateDealStatusParams{
				ID:         id,
				Status:     entity.DealStatusExecuted,
				ExecutedAt: baseTime.Add(time.Duration(3-i) * time.Minute),
			}))
		}

		page, err := r.ListExecutedDeals(ctx, datagateway.ListExecutedDealsParams{
			Since: baseTime,
			Limit: 2,
		})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "d3", page[0].ID)
		assert.Equal(t, "d2", page[1].ID)

		rest, err := r.ListExecutedDeals(ctx, datagateway.ListExecutedDealsParams{
			Since:  baseTime,
			Limit:  2,
			Offset: 2,
		})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "d1", rest[0].ID)

		none, err := r.ListExecutedDeals(ctx, datagateway.ListExecutedDealsParams{
			Since:  baseTime,
			Offset: 10,
		})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("list by buyer normalizes per chain", func(t *testing.T) {
		r := setup(t)
		require.NoError(t, r.CreateDeal(ctx, dealFixture("d1", "c1", "q1")))

		got, err := r.ListDealsByBuyer(ctx, common.ChainEthereum, "0xBUYER")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestTxSemantics(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()

	tx, err := r.BeginOTCTx(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.CreateConsignment(ctx, consignmentFixture("c1")))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	// writes apply immediately; commit and rollback are no-ops here
	got, err := r.GetConsignment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
}
