package postgres

import (
	"context"

	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/database"
)

// TxManager implements repository.Transactor on a pgx pool.
type TxManager struct {
	db database.TxBeginner
}

// NewTxManager creates a transaction manager.
func NewTxManager(db database.TxBeginner) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn in a transaction. Nested calls join the outer one.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, m.db, fn)
}
