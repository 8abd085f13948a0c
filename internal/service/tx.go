package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// txBeginner abstracts transaction creation so services own the scope of
// every multi-statement operation. *sqlx.DB satisfies it.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}
