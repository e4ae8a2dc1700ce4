package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

// InsertAcceptedTx reserves the mission in the actor's working set. The
// deadline column snapshots the mission deadline as of acceptance; a mission
// without one stays open-ended.
func (r Repo) InsertAcceptedTx(ctx context.Context, tx *sql.Tx, missionID, actorID string, deadline *string, acceptedAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accepted_missions(mission_id,actor_id,deadline,accepted_at) VALUES (?,?,?,?)`,
		missionID, actorID, nullableStringPtr(deadline), acceptedAt)
	return err
}

// CountAcceptedTx returns the size of the actor's accepted set inside the
// caller's transaction, so check-and-reserve reads its own writes.
func (r Repo) CountAcceptedTx(ctx context.Context, tx *sql.Tx, actorID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM accepted_missions WHERE actor_id=?`, actorID).Scan(&n)
	return n, err
}

func (r Repo) GetAcceptedTx(ctx context.Context, tx *sql.Tx, missionID, actorID string) (domain.AcceptedMission, error) {
	var a domain.AcceptedMission
	var deadline sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT mission_id,actor_id,deadline,accepted_at FROM accepted_missions WHERE mission_id=? AND actor_id=?`, missionID, actorID).
		Scan(&a.Mission.ID, &a.ActorID, &deadline, &a.AcceptedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if deadline.Valid {
		a.Deadline = &deadline.String
	}
	return a, nil
}

func (r Repo) DeleteAcceptedTx(ctx context.Context, tx *sql.Tx, missionID, actorID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM accepted_missions WHERE mission_id=? AND actor_id=?`, missionID, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAccepted returns the actor's accepted missions joined with their
// canonical records, oldest acceptance first.
func (r Repo) ListAccepted(ctx context.Context, actorID string) ([]domain.AcceptedMission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+prefixedMissionColumns("m")+`, a.deadline, a.accepted_at
FROM accepted_missions a JOIN missions m ON m.id=a.mission_id
WHERE a.actor_id=? ORDER BY a.accepted_at ASC, m.id ASC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AcceptedMission
	for rows.Next() {
		var a domain.AcceptedMission
		var tagsJSON, deadline, assignedProvider, snapDeadline sql.NullString
		var agreedPrice sql.NullInt64
		m := &a.Mission
		if err := rows.Scan(&m.ID, &m.Title, &m.CreatorID, &m.Category, &m.Description, &tagsJSON,
			&m.RewardAmount, &m.PostedAt, &deadline, &m.Status, &assignedProvider, &agreedPrice, &m.TimeSlots,
			&snapDeadline, &a.AcceptedAt); err != nil {
			return nil, err
		}
		decodeMissionNullables(m, tagsJSON, deadline, assignedProvider, agreedPrice)
		if snapDeadline.Valid {
			a.Deadline = &snapDeadline.String
		}
		a.ActorID = actorID
		res = append(res, a)
	}
	return res, rows.Err()
}

func prefixedMissionColumns(alias string) string {
	return alias + `.id,` + alias + `.title,` + alias + `.creator_id,` + alias + `.category,COALESCE(` + alias + `.description,''),` +
		alias + `.tags_json,` + alias + `.reward_amount,` + alias + `.posted_at,` + alias + `.deadline,` + alias + `.status,` +
		alias + `.assigned_provider_id,` + alias + `.agreed_price,COALESCE(` + alias + `.time_slots,'')`
}
