package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/tokendesk/otc-desk/internal/postgres"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
)

// Make sure Repository implements the OTCDataGateway interface.
var _ datagateway.OTCDataGateway = (*Repository)(nil)

type Repository struct {
	db postgres.DB
	// q is the active query surface: the pool, or the open transaction.
	q  postgres.Queryable
	tx pgx.Tx
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		db: db,
		q:  db,
	}
}
