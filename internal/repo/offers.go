package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const offerColumns = `id,mission_id,bidder_id,reputation,bid,COALESCE(message,''),created_at,updated_at`

func scanOffer(row missionScanner) (domain.Offer, error) {
	var o domain.Offer
	var bid sql.NullInt64
	err := row.Scan(&o.ID, &o.MissionID, &o.BidderID, &o.Reputation, &bid, &o.Message, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if bid.Valid {
		b := bid.Int64
		o.Bid = &b
	}
	return o, nil
}

func (r Repo) InsertOfferTx(ctx context.Context, tx *sql.Tx, o domain.Offer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO offers(id,mission_id,bidder_id,reputation,bid,message,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, o.MissionID, o.BidderID, o.Reputation, nullableInt64Ptr(o.Bid), nullable(o.Message), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetOffer(ctx context.Context, missionID, offerID string) (domain.Offer, error) {
	return scanOffer(r.DB.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=? AND mission_id=?`, offerID, missionID))
}

func (r Repo) GetOfferTx(ctx context.Context, tx *sql.Tx, missionID, offerID string) (domain.Offer, error) {
	return scanOffer(tx.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=? AND mission_id=?`, offerID, missionID))
}

// GetOfferByBidderTx returns the bidder's standing offer on a mission, if any.
func (r Repo) GetOfferByBidderTx(ctx context.Context, tx *sql.Tx, missionID, bidderID string) (domain.Offer, error) {
	return scanOffer(tx.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE mission_id=? AND bidder_id=? LIMIT 1`, missionID, bidderID))
}

// UpdateOfferBidTx revises the bid and message of an existing offer in place.
func (r Repo) UpdateOfferBidTx(ctx context.Context, tx *sql.Tx, offerID string, bid int64, message, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE offers SET bid=?, message=?, updated_at=? WHERE id=?`,
		bid, nullable(message), updatedAt, offerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteOfferTx(ctx context.Context, tx *sql.Tx, missionID, offerID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE id=? AND mission_id=?`, offerID, missionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMissionOffersTx discards every offer on a mission. Called when one
// offer is accepted and the book closes.
func (r Repo) DeleteMissionOffersTx(ctx context.Context, tx *sql.Tx, missionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE mission_id=?`, missionID)
	return err
}

// ListOffers returns a mission's offers in proposal order.
func (r Repo) ListOffers(ctx context.Context, missionID string) ([]domain.Offer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE mission_id=? ORDER BY created_at ASC, id ASC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
