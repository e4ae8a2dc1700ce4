package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"gigline/internal/domain"
)

// Repo is the canonical mission store. Every view (feed, accepted set,
// posted set) is a filtered projection of the missions table; nothing keeps
// an independent copy.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const missionColumns = `id,title,creator_id,category,COALESCE(description,'') AS description,tags_json,reward_amount,posted_at,deadline,status,assigned_provider_id,agreed_price,COALESCE(time_slots,'') AS time_slots`

type missionScanner interface {
	Scan(dest ...any) error
}

func scanMission(row missionScanner) (domain.Mission, error) {
	var m domain.Mission
	var tagsJSON, deadline, assignedProvider sql.NullString
	var agreedPrice sql.NullInt64
	err := row.Scan(&m.ID, &m.Title, &m.CreatorID, &m.Category, &m.Description, &tagsJSON,
		&m.RewardAmount, &m.PostedAt, &deadline, &m.Status, &assignedProvider, &agreedPrice, &m.TimeSlots)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	decodeMissionNullables(&m, tagsJSON, deadline, assignedProvider, agreedPrice)
	return m, nil
}

func decodeMissionNullables(m *domain.Mission, tagsJSON, deadline, assignedProvider sql.NullString, agreedPrice sql.NullInt64) {
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	if deadline.Valid {
		m.Deadline = &deadline.String
	}
	if assignedProvider.Valid {
		m.AssignedProviderID = &assignedProvider.String
	}
	if agreedPrice.Valid {
		p := agreedPrice.Int64
		m.AgreedPrice = &p
	}
}

func (r Repo) InsertMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	tags, err := marshalTags(m.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO missions(id,title,creator_id,category,description,tags_json,reward_amount,posted_at,deadline,status,assigned_provider_id,agreed_price,time_slots)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Title, m.CreatorID, string(m.Category), nullable(m.Description), tags,
		m.RewardAmount, m.PostedAt, nullableStringPtr(m.Deadline), string(m.Status),
		nullableStringPtr(m.AssignedProviderID), nullableInt64Ptr(m.AgreedPrice), nullable(m.TimeSlots))
	return err
}

func (r Repo) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	m, err := scanMission(r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
	if err != nil {
		return m, err
	}
	m.Offers, err = r.ListOffers(ctx, m.ID)
	return m, err
}

func (r Repo) GetMissionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Mission, error) {
	return scanMission(tx.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
}

// MarkAssignedTx transitions a mission to the assigned state with the hired
// provider and the negotiated price.
func (r Repo) MarkAssignedTx(ctx context.Context, tx *sql.Tx, id, providerID string, price int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET status=?, assigned_provider_id=?, agreed_price=? WHERE id=?`,
		string(domain.StatusAssigned), providerID, price, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMissionTx removes a mission and, via cascade, its offers and
// accepted-set rows. Used on terminal settlement.
func (r Repo) DeleteMissionTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FeedFilter narrows the browsable feed. Zero values mean "ALL"; predicates
// are AND-combined.
type FeedFilter struct {
	Category   domain.Category
	Tag        string
	MinReward  int64
	SearchText string
}

// ListFeed returns open missions visible to the acting actor: not their own
// posts and not already in their accepted set.
func (r Repo) ListFeed(ctx context.Context, actorID string, f FeedFilter, order domain.SortOrder) ([]domain.Mission, error) {
	clauses := []string{"status=?", "creator_id != ?",
		"id NOT IN (SELECT mission_id FROM accepted_missions WHERE actor_id=?)"}
	args := []any{string(domain.StatusOpen), actorID, actorID}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, string(f.Category))
	}
	if f.MinReward > 0 {
		clauses = append(clauses, "reward_amount >= ?")
		args = append(args, f.MinReward)
	}
	query := `SELECT ` + missionColumns + ` FROM missions WHERE ` + strings.Join(clauses, " AND ") + orderClause(order)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		if !matchesTag(m, f.Tag) || !matchesSearch(m, f.SearchText) {
			continue
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// Tag and search predicates run over the decoded tag set rather than the
// stored JSON text, so a query can never match across element boundaries.

func matchesTag(m domain.Mission, tag string) bool {
	if tag == "" {
		return true
	}
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func matchesSearch(m domain.Mission, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func orderClause(order domain.SortOrder) string {
	switch order {
	case domain.SortRewardDesc:
		return ` ORDER BY reward_amount DESC, posted_at DESC, id DESC`
	case domain.SortRewardAsc:
		return ` ORDER BY reward_amount ASC, posted_at DESC, id DESC`
	case domain.SortDeadlineAsc:
		// Missing deadline sorts last.
		return ` ORDER BY CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC, id DESC`
	default:
		return ` ORDER BY posted_at DESC, id DESC`
	}
}

// ListMyPosts returns the actor's posted missions, newest first, with their
// offer books attached.
func (r Repo) ListMyPosts(ctx context.Context, actorID string) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE creator_id=? ORDER BY posted_at DESC, id DESC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	offers, err := r.listOffersForCreator(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Offers = offers[res[i].ID]
	}
	return res, nil
}

func (r Repo) listOffersForCreator(ctx context.Context, creatorID string) (map[string][]domain.Offer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT o.id,o.mission_id,o.bidder_id,o.reputation,o.bid,COALESCE(o.message,''),o.created_at,o.updated_at
FROM offers o JOIN missions m ON m.id=o.mission_id WHERE m.creator_id=? ORDER BY o.created_at ASC, o.id ASC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byMission := map[string][]domain.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		byMission[o.MissionID] = append(byMission[o.MissionID], o)
	}
	return byMission, rows.Err()
}

// SortMissions orders a mission slice in memory using the same rules as the
// SQL feed, for callers working on already-loaded projections.
func SortMissions(ms []domain.Mission, order domain.SortOrder) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch order {
		case domain.SortRewardDesc:
			return a.RewardAmount > b.RewardAmount
		case domain.SortRewardAsc:
			return a.RewardAmount < b.RewardAmount
		case domain.SortDeadlineAsc:
			if a.Deadline == nil {
				return false
			}
			if b.Deadline == nil {
				return true
			}
			return *a.Deadline < *b.Deadline
		default:
			return a.PostedAt > b.PostedAt
		}
	})
}

func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
