package wallet

import (
	"context"
	"database/sql"
	"time"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// PostgresLedger appends transactions and refreshes the driver's cached
// wallet_balance inside one SQL transaction, so the projection can never
// drift from the ledger sum.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (p *PostgresLedger) Append(ctx context.Context, ownerType models.OwnerType, ownerID string, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	entry := models.Transaction{
		ID:        storage.NewID(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Amount:    amount,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO wallet_transactions(id, owner_type, owner_id, amount, kind, created_at)
		VALUES($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.OwnerType, entry.OwnerID, entry.Amount, entry.Kind, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ownerType == models.OwnerDriver {
		_, err = tx.ExecContext(ctx, `UPDATE drivers SET wallet_balance =
			(SELECT COALESCE(SUM(amount),0) FROM wallet_transactions WHERE owner_type=$1 AND owner_id=$2)
			WHERE id=$2`, ownerType, ownerID)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (p *PostgresLedger) Balance(ctx context.Context, ownerType models.OwnerType, ownerID string) (int64, error) {
	var sum int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM wallet_transactions WHERE owner_type=$1 AND owner_id=$2`,
		ownerType, ownerID).Scan(&sum)
	return sum, err
}

func (p *PostgresLedger) Transactions(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, owner_type, owner_id, amount, kind, created_at
		FROM wallet_transactions WHERE owner_type=$1 AND owner_id=$2 ORDER BY created_at`,
		ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.OwnerType, &t.OwnerID, &t.Amount, &t.Kind, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
