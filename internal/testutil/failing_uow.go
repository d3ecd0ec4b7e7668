package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/db"
)

// FailingUoW runs the callback in a real transaction but injects Err into a
// chosen ExecContext call so rollback of multi-row writes can be asserted.
//
// When Match is set, the first exec whose SQL contains Match fails;
// otherwise the FailOn-th exec fails (counting from 1). Reads are never
// intercepted. Nested WithinTx calls, including those of a real
// SQLiteUnitOfWork, join the wrapped transaction.
type FailingUoW struct {
	DB     *sql.DB
	FailOn int
	Match  string
	Err    error

	// Execs records how many writes the last transaction attempted.
	Execs int
}

func (u *FailingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	if tx, ok := db.TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failingExec{DBTX: tx, uow: u}
	u.Execs = 0
	if fnErr := fn(db.ContextWithTx(ctx, wrapped), wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failingExec struct {
	db.DBTX
	uow *FailingUoW
}

func (f *failingExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.uow.Execs++
	if f.uow.Match != "" {
		if strings.Contains(query, f.uow.Match) {
			return nil, f.uow.Err
		}
	} else if f.uow.Execs == f.uow.FailOn {
		return nil, f.uow.Err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
