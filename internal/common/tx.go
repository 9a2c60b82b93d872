package common

import (
	"context"
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/service"
)

// TxBeginner opens storage transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context) (service.Transaction, error)
}

// RunInTx runs fn in a fresh transaction and commits it. The whole
// transaction is retried when fn or the commit fails with a retryable
// error, so fn must be safe to run again from the start.
func RunInTx(ctx context.Context, db TxBeginner, opts service.RetryOptions, fn func(tx service.Transaction) error) error {
	return WithRetry(ctx, func() error {
		tx, err := db.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		committed = true
		return nil
	}, opts)
}
