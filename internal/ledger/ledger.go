// Package ledger holds the economy and trust collaborators consumed by the
// engine. The engine only sees the interfaces; the SQL implementations here
// are the in-process defaults. The Tx variants join a caller's transaction so
// settlement stays atomic with the state change it pays for; Credit runs its
// own transaction for incentives granted after a commit.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

// Economy moves balances and records every movement as a transaction row.
// Credits grow the lifetime earned total; debits floor the balance at zero
// and never go negative.
type Economy interface {
	Credit(ctx context.Context, actorID string, amount int64, memo string) (int64, error)
	CreditTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, memo string) (int64, error)
	DebitTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, memo string) (int64, error)
}

// Trust applies reputation deltas and records each one in the trust log.
type Trust interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, actorID, actionType string, delta float64, description string) (float64, error)
}

// SQLEconomy is the sqlite-backed Economy.
type SQLEconomy struct {
	DB   *sql.DB
	Repo repo.Repo
	Now  func() time.Time
}

func NewEconomy(db *sql.DB) *SQLEconomy {
	return &SQLEconomy{DB: db, Repo: repo.Repo{DB: db}, Now: time.Now}
}

func (l *SQLEconomy) now() string {
	if l.Now != nil {
		return l.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (l *SQLEconomy) Credit(ctx context.Context, actorID string, amount int64, memo string) (int64, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	balance, err := l.CreditTx(ctx, tx, actorID, amount, memo)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (l *SQLEconomy) CreditTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, memo string) (int64, error) {
	now := l.now()
	balance, err := l.Repo.CreditTx(ctx, tx, actorID, amount, now)
	if err != nil {
		return 0, err
	}
	if err := l.Repo.InsertTransactionTx(ctx, tx, domain.Transaction{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Amount:    amount,
		Memo:      memo,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

func (l *SQLEconomy) DebitTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, memo string) (int64, error) {
	now := l.now()
	balance, err := l.Repo.DebitTx(ctx, tx, actorID, amount, now)
	if err != nil {
		return 0, err
	}
	if err := l.Repo.InsertTransactionTx(ctx, tx, domain.Transaction{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Amount:    -amount,
		Memo:      memo,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}
	return balance, nil
}

// SQLTrust is the sqlite-backed Trust ledger.
type SQLTrust struct {
	DB   *sql.DB
	Repo repo.Repo
	Now  func() time.Time
}

func NewTrust(db *sql.DB) *SQLTrust {
	return &SQLTrust{DB: db, Repo: repo.Repo{DB: db}, Now: time.Now}
}

func (l *SQLTrust) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, actorID, actionType string, delta float64, description string) (float64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	if l.Now != nil {
		now = l.Now().UTC().Format(time.RFC3339)
	}
	score, err := l.Repo.ApplyTrustDeltaTx(ctx, tx, actorID, delta, now)
	if err != nil {
		return 0, err
	}
	if err := l.Repo.InsertTrustEntryTx(ctx, tx, domain.TrustEntry{
		ID:          uuid.New().String(),
		ActorID:     actorID,
		ActionType:  actionType,
		Delta:       delta,
		Description: description,
		CreatedAt:   now,
	}); err != nil {
		return 0, err
	}
	return score, nil
}
