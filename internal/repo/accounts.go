package repo

import (
	"context"
	"database/sql"
	"time"

	"gigline/internal/domain"
)

// EnsureAccountTx inserts a zeroed account row if none exists.
func (r Repo) EnsureAccountTx(ctx context.Context, tx *sql.Tx, actorID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts(actor_id,balance,lifetime_earned,trust_score,updated_at) VALUES (?,0,0,0,?)
ON CONFLICT(actor_id) DO NOTHING`, actorID, now)
	return err
}

func (r Repo) GetAccount(ctx context.Context, actorID string) (domain.Account, error) {
	var a domain.Account
	err := r.DB.QueryRowContext(ctx, `SELECT actor_id,balance,lifetime_earned,trust_score,updated_at FROM accounts WHERE actor_id=?`, actorID).
		Scan(&a.ActorID, &a.Balance, &a.LifetimeEarned, &a.TrustScore, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// CreditTx adds amount to the actor's balance and lifetime earned total and
// returns the new balance.
func (r Repo) CreditTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, now string) (int64, error) {
	if err := r.EnsureAccountTx(ctx, tx, actorID, now); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance=balance+?, lifetime_earned=lifetime_earned+?, updated_at=? WHERE actor_id=?`,
		amount, amount, now, actorID); err != nil {
		return 0, err
	}
	return r.balanceTx(ctx, tx, actorID)
}

// DebitTx subtracts amount from the actor's balance, flooring at zero, and
// returns the new balance.
func (r Repo) DebitTx(ctx context.Context, tx *sql.Tx, actorID string, amount int64, now string) (int64, error) {
	if err := r.EnsureAccountTx(ctx, tx, actorID, now); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance=MAX(0, balance-?), updated_at=? WHERE actor_id=?`,
		amount, now, actorID); err != nil {
		return 0, err
	}
	return r.balanceTx(ctx, tx, actorID)
}

func (r Repo) balanceTx(ctx context.Context, tx *sql.Tx, actorID string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE actor_id=?`, actorID).Scan(&balance)
	return balance, err
}

// ApplyTrustDeltaTx shifts the actor's trust score and returns the new value.
func (r Repo) ApplyTrustDeltaTx(ctx context.Context, tx *sql.Tx, actorID string, delta float64, now string) (float64, error) {
	if err := r.EnsureAccountTx(ctx, tx, actorID, now); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET trust_score=trust_score+?, updated_at=? WHERE actor_id=?`,
		delta, now, actorID); err != nil {
		return 0, err
	}
	var score float64
	err := tx.QueryRowContext(ctx, `SELECT trust_score FROM accounts WHERE actor_id=?`, actorID).Scan(&score)
	return score, err
}

func (r Repo) InsertTransactionTx(ctx context.Context, tx *sql.Tx, t domain.Transaction) error {
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions(id,actor_id,amount,memo,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.ActorID, t.Amount, nullable(t.Memo), t.CreatedAt)
	return err
}

func (r Repo) ListTransactions(ctx context.Context, actorID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT id,actor_id,amount,COALESCE(memo,''),created_at FROM transactions WHERE actor_id=? ORDER BY created_at DESC, id DESC`
	args := []any{actorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.ActorID, &t.Amount, &t.Memo, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertTrustEntryTx(ctx context.Context, tx *sql.Tx, e domain.TrustEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO trust_log(id,actor_id,action_type,delta,description,created_at) VALUES (?,?,?,?,?,?)`,
		e.ID, e.ActorID, e.ActionType, e.Delta, nullable(e.Description), e.CreatedAt)
	return err
}

func (r Repo) ListTrustEntries(ctx context.Context, actorID string, limit int) ([]domain.TrustEntry, error) {
	query := `SELECT id,actor_id,action_type,delta,COALESCE(description,''),created_at FROM trust_log WHERE actor_id=? ORDER BY created_at DESC, id DESC`
	args := []any{actorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TrustEntry
	for rows.Next() {
		var e domain.TrustEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActionType, &e.Delta, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
