package datagateway

import (
	"context"
	"time"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// OTCDataGateway is the keyed entity store for consignments and deals,
// with secondary lookup by token and by consigner address.
type OTCDataGateway interface {
	BeginOTCTx(ctx context.Context) (OTCDataGatewayWithTx, error)

	CreateConsignment(ctx context.Context, consignment entity.Consignment) error
	GetConsignment(ctx context.Context, id string) (*entity.Consignment, error)
	// SaveConsignment overwrites the stored record. The caller is
	// responsible for serializing read-modify-write cycles.
	SaveConsignment(ctx context.Context, consignment entity.Consignment) error
	DeleteConsignment(ctx context.Context, id string) error
	ListConsignments(ctx context.Context, arg ListConsignmentsParams) ([]entity.Consignment, error)
	ListConsignmentsByToken(ctx context.Context, tokenID string) ([]entity.Consignment, error)
	ListConsignmentsByConsigner(ctx context.Context, chain common.Chain, consignerAddress string) ([]entity.Consignment, error)

	CreateDeal(ctx context.Context, deal entity.Deal) error
	GetDeal(ctx context.Context, id string) (*entity.Deal, error)
	UpdateDealStatus(ctx context.Context, arg UpdateDealStatusParams) error
	ListDealsByConsignment(ctx context.Context, consignmentID string) ([]entity.Deal, error)
	ListDealsByBuyer(ctx context.Context, chain common.Chain, buyerAddress string) ([]entity.Deal, error)
	ListPendingDealsCreatedBefore(ctx context.Context, cutoff time.Time) ([]entity.Deal, error)
	ListExecutedDeals(ctx context.Context, arg ListExecutedDealsParams) ([]entity.Deal, error)
}

type OTCDataGatewayWithTx interface {
	OTCDataGateway
	Tx
}

type ListConsignmentsParams struct {
	TokenID string
	Chain   common.Chain
	Status  entity.ConsignmentStatus
	// IncludePrivate includes private listings; the API layer only sets
	// this for owners.
	IncludePrivate bool
}

type UpdateDealStatusParams struct {
	ID            string
	Status        entity.DealStatus
	FailureReason string
	ExecutedAt    time.Time
}

type ListExecutedDealsParams struct {
	Since  time.Time
	Limit  int
	Offset int
}
