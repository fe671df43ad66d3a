package repomanager

import (
	"context"
	"database/sql"

	"github.com/secureshare/secureshare/internal/dbx"
	"github.com/secureshare/secureshare/internal/server/repositories/payments"
	"github.com/secureshare/secureshare/internal/server/repositories/transfers"
)

// RepositoryManager vends repositories bound to a DBTX (either the pooled
// *sql.DB or an open transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Transfers(db dbx.DBTX) transfers.Repository
	Payments(db dbx.DBTX) payments.Repository
}
