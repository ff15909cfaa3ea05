// Package memory is an in-process implementation of the OTC data gateway,
// used by tests and by the standalone development mode. One mutex guards
// the records and every secondary index, so index maintenance is atomic
// with the write that caused it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// Make sure Repository implements the OTCDataGateway interface.
var _ datagateway.OTCDataGateway = (*Repository)(nil)

type Repository struct {
	mu sync.RWMutex

	consignments     map[string]entity.Consignment
	consignmentOrder []string

	deals        map[string]entity.Deal
	dealOrder    []string
	dealsByQuote map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		consignments: make(map[string]entity.Consignment),
		deals:        make(map[string]entity.Deal),
		dealsByQuote: make(map[string]string),
	}
}

// BeginOTCTx returns the repository itself: writes apply immediately and
// Commit/Rollback are no-ops. Transactional rollback is a property of the
// postgres implementation only.
func (r *Repository) BeginOTCTx(ctx context.Context) (datagateway.OTCDataGatewayWithTx, error) {
	return txRepository{r}, nil
}

type txRepository struct {
	*Repository
}

func (r txRepository) Commit(ctx context.Context) error   { return nil }
func (r txRepository) Rollback(ctx context.Context) error { return nil }

func (r *Repository) CreateConsignment(ctx context.Context, arg entity.Consignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consignments[arg.ID]; ok {
		return errors.Wrapf(errs.Conflict, "consignment %s already exists", arg.ID)
	}
	r.consignments[arg.ID] = cloneConsignment(arg)
	r.consignmentOrder = append(r.consignmentOrder, arg.ID)
	return nil
}

func (r *Repository) GetConsignment(ctx context.Context, id string) (*entity.Consignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consignments[id]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	c = cloneConsignment(c)
	return &c, nil
}

func (r *Repository) SaveConsignment(ctx context.Context, arg entity.Consignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consignments[arg.ID]; !ok {
		return errors.WithStack(errs.NotFound)
	}
	r.consignments[arg.ID] = cloneConsignment(arg)
	return nil
}

func (r *Repository) DeleteConsignment(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consignments[id]; !ok {
		return errors.WithStack(errs.NotFound)
	}
	delete(r.consignments, id)
	for i, existing := range r.consignmentOrder {
		if existing == id {
			r.consignmentOrder = append(r.consignmentOrder[:i], r.consignmentOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Repository) ListConsignments(ctx context.Context, arg datagateway.ListConsignmentsParams) ([]entity.Consignment, error) {
	return r.listConsignments(func(c entity.Consignment) bool {
		if arg.TokenID != "" && c.TokenID != arg.TokenID {
			return false
		}
		if arg.Chain != "" && c.Chain != arg.Chain {
			return false
		}
		if arg.Status != "" && c.Status != arg.Status {
			return false
		}
		if c.IsPrivate && !arg.IncludePrivate {
			return false
		}
		return true
	}), nil
}

func (r *Repository) ListConsignmentsByToken(ctx context.Context, tokenID string) ([]entity.Consignment, error) {
	return r.listConsignments(func(c entity.Consignment) bool {
		return c.TokenID == tokenID
	}), nil
}

func (r *Repository) ListConsignmentsByConsigner(ctx context.Context, chain common.Chain, consignerAddress string) ([]entity.Consignment, error) {
	return r.listConsignments(func(c entity.Consignment) bool {
		return c.Chain == chain && c.Chain.AddressEqual(c.ConsignerAddress, consignerAddress)
	}), nil
}

// listConsignments walks records in insertion order, matching the
// created_at ordering of the postgres implementation.
func (r *Repository) listConsignments(match func(entity.Consignment) bool) []entity.Consignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []entity.Consignment
	for _, id := range r.consignmentOrder {
		c := r.consignments[id]
		if match(c) {
			result = append(result, cloneConsignment(c))
		}
	}
	return result
}

func (r *Repository) CreateDeal(ctx context.Context, arg entity.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deals[arg.ID]; ok {
		return errors.Wrapf(errs.Conflict, "deal %s already exists", arg.ID)
	}
	if _, ok := r.dealsByQuote[arg.QuoteID]; ok {
		return errors.Wrapf(errs.Conflict, "quote %s already has a deal", arg.QuoteID)
	}
	if _, ok := r.consignments[arg.ConsignmentID]; !ok {
		return errors.WithStack(errs.NotFound)
	}
	r.deals[arg.ID] = arg
	r.dealOrder = append(r.dealOrder, arg.ID)
	r.dealsByQuote[arg.QuoteID] = arg.ID
	return nil
}

func (r *Repository) GetDeal(ctx context.Context, id string) (*entity.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deals[id]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return &d, nil
}

func (r *Repository) UpdateDealStatus(ctx context.Context, arg datagateway.UpdateDealStatusParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[arg.ID]
	if !ok {
		return errors.WithStack(errs.NotFound)
	}
	if d.Status != entity.DealStatusPending {
		return errors.Wrapf(errs.State, "deal %s is not pending", arg.ID)
	}
	d.Status = arg.Status
	d.FailureReason = arg.FailureReason
	if !arg.ExecutedAt.IsZero() {
		d.ExecutedAt = arg.ExecutedAt
	}
	r.deals[arg.ID] = d
	return nil
}

func (r *Repository) ListDealsByConsignment(ctx context.Context, consignmentID string) ([]entity.Deal, error) {
	return r.listDeals(func(d entity.Deal) bool {
		return d.ConsignmentID == consignmentID
	}), nil
}

func (r *Repository) ListDealsByBuyer(ctx context.Context, chain common.Chain, buyerAddress string) ([]entity.Deal, error) {
	return r.listDeals(func(d entity.Deal) bool {
		return d.Chain == chain && d.Chain.AddressEqual(d.BuyerAddress, buyerAddress)
	}), nil
}

func (r *Repository) ListPendingDealsCreatedBefore(ctx context.Context, cutoff time.Time) ([]entity.Deal, error) {
	return r.listDeals(func(d entity.Deal) bool {
		return d.Status == entity.DealStatusPending && d.CreatedAt.Before(cutoff)
	}), nil
}

func (r *Repository) ListExecutedDeals(ctx context.Context, arg datagateway.ListExecutedDealsParams) ([]entity.Deal, error) {
	executed := r.listDeals(func(d entity.Deal) bool {
		return d.Status == entity.DealStatusExecuted && !d.ExecutedAt.Before(arg.Since)
	})
	sort.SliceStable(executed, func(i, j int) bool {
		return executed[i].ExecutedAt.Before(executed[j].ExecutedAt)
	})
	if arg.Offset >= len(executed) {
		return nil, nil
	}
	executed = executed[arg.Offset:]
	if arg.Limit > 0 && arg.Limit < len(executed) {
		executed = executed[:arg.Limit]
	}
	return executed, nil
}

func (r *Repository) listDeals(match func(entity.Deal) bool) []entity.Deal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []entity.Deal
	for _, id := range r.dealOrder {
		d := r.deals[id]
		if match(d) {
			result = append(result, d)
		}
	}
	return result
}

func cloneConsignment(c entity.Consignment) entity.Consignment {
	if c.AllowedBuyers != nil {
		c.AllowedBuyers = append([]string(nil), c.AllowedBuyers...)
	}
	if c.LastDealAt != nil {
		t := *c.LastDealAt
		c.LastDealAt = &t
	}
	return c
}
