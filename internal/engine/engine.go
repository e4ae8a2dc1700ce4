// Package engine implements the mission lifecycle: posting, feed browsing,
// admission into the accepted set, offer negotiation and work settlement.
// All mutations run in a transaction with an event appended before commit.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigline/internal/classify"
	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/ledger"
	"gigline/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Economy    ledger.Economy
	Trust      ledger.Trust
	Classifier classify.Classifier
	Config     *config.Config
	Now        func() time.Time

	// mu serializes check-and-reserve sections: accepted-set capacity and
	// the one-submission-per-mission guard.
	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	e := &Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Config:   cfg,
		Now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	e.Events = events.Writer{DB: db}
	// The ledgers stamp their rows from the engine's clock so an injected
	// Now stays authoritative everywhere.
	economy := ledger.NewEconomy(db)
	economy.Now = e.now
	trust := ledger.NewTrust(db)
	trust.Now = e.now
	e.Economy = economy
	e.Trust = trust
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// PostOptions are parameters for posting a mission.
type PostOptions struct {
	Title        string
	Category     domain.Category
	Description  string
	Tags         []string
	RewardAmount int64
	Deadline     *string
	// Guidance sessions advertise availability instead of a deliverable;
	// the time slots line is derived from these three fields.
	Days      []string
	TimeStart string
	TimeEnd   string
	ActorID   string
}

// CreatePost validates and persists a new mission, then credits the posting
// incentive to its creator.
func (e *Engine) CreatePost(ctx context.Context, opts PostOptions) (domain.Mission, error) {
	if opts.Title == "" {
		return domain.Mission{}, invalidf("title", "required")
	}
	if opts.ActorID == "" {
		return domain.Mission{}, invalidf("actor", "required")
	}
	if !opts.Category.Valid() {
		return domain.Mission{}, invalidf("category", "unknown category %q", opts.Category)
	}
	if opts.RewardAmount <= 0 {
		return domain.Mission{}, invalidf("reward_amount", "must be positive")
	}
	if opts.Deadline != nil {
		if _, err := time.Parse(time.RFC3339, *opts.Deadline); err != nil {
			return domain.Mission{}, invalidf("deadline", "not RFC3339: %v", err)
		}
	}
	timeSlots, err := guidanceTimeSlots(opts)
	if err != nil {
		return domain.Mission{}, err
	}

	m := domain.Mission{
		ID:           uuid.NewString(),
		Title:        opts.Title,
		CreatorID:    opts.ActorID,
		Category:     opts.Category,
		Description:  opts.Description,
		Tags:         opts.Tags,
		RewardAmount: opts.RewardAmount,
		PostedAt:     e.nowRFC3339(),
		Deadline:     opts.Deadline,
		Status:       domain.StatusOpen,
		TimeSlots:    timeSlots,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertMission(ctx, tx, m); err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "mission.post", "mission", m.ID, opts.ActorID, events.EventPayload{
		"category": string(m.Category),
		"reward":   m.RewardAmount,
	}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}

	// Posted-at this point; the incentive ledger runs its own transaction.
	if _, err := e.Economy.Credit(ctx, opts.ActorID, e.Config.Incentives.PostingCredit, "posting incentive"); err != nil {
		return m, fmt.Errorf("posting incentive: %w", err)
	}
	return m, nil
}

// guidanceTimeSlots composes the availability line for guidance missions, e.g.
// "Mon, Wed 18:00-20:00". Non-guidance categories carry no time slots.
func guidanceTimeSlots(opts PostOptions) (string, error) {
	if opts.Category != domain.CategoryGuidance {
		if len(opts.Days) > 0 || opts.TimeStart != "" || opts.TimeEnd != "" {
			return "", invalidf("time_slots", "only guidance missions take availability")
		}
		return "", nil
	}
	if len(opts.Days) == 0 && opts.TimeStart == "" && opts.TimeEnd == "" {
		return "", nil
	}
	if len(opts.Days) == 0 {
		return "", invalidf("days", "required with a time window")
	}
	if opts.TimeStart == "" || opts.TimeEnd == "" {
		return "", invalidf("time_window", "both start and end required")
	}
	return strings.Join(opts.Days, ", ") + " " + opts.TimeStart + "-" + opts.TimeEnd, nil
}

// ListFeed returns open missions visible to the actor: not their own posts and
// not already in their accepted set. An empty order defaults to newest first.
func (e *Engine) ListFeed(ctx context.Context, actorID string, f repo.FeedFilter, order domain.SortOrder) ([]domain.Mission, error) {
	if order == "" {
		order = domain.SortDateDesc
	}
	if !order.Valid() {
		return nil, invalidf("sort", "unknown sort order %q", order)
	}
	if f.MinReward < 0 {
		return nil, invalidf("min_reward", "must not be negative")
	}
	return e.Repo.ListFeed(ctx, actorID, f, order)
}

// ListAccepted returns the actor's working set, oldest acceptance first.
func (e *Engine) ListAccepted(ctx context.Context, actorID string) ([]domain.AcceptedMission, error) {
	return e.Repo.ListAccepted(ctx, actorID)
}

// ListMyPosts returns the actor's own missions with their offer books.
func (e *Engine) ListMyPosts(ctx context.Context, actorID string) ([]domain.Mission, error) {
	return e.Repo.ListMyPosts(ctx, actorID)
}

// RemoveFromAccepted withdraws a mission from the actor's working set. The
// mission itself stays posted.
func (e *Engine) RemoveFromAccepted(ctx context.Context, missionID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteAcceptedTx(ctx, tx, missionID, actorID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "mission.withdraw", "mission", missionID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AcceptedDeadlines returns mission ID to parsed deadline for the actor's
// accepted set. Open-ended missions map to nil.
func (e *Engine) AcceptedDeadlines(ctx context.Context, actorID string) (map[string]*time.Time, error) {
	accepted, err := e.Repo.ListAccepted(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*time.Time, len(accepted))
	for _, am := range accepted {
		if am.Deadline == nil {
			out[am.Mission.ID] = nil
			continue
		}
		t, err := time.Parse(time.RFC3339, *am.Deadline)
		if err != nil {
			return nil, fmt.Errorf("deadline for %s: %w", am.Mission.ID, err)
		}
		out[am.Mission.ID] = &t
	}
	return out, nil
}

// GetMission loads one mission with its offer book.
func (e *Engine) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	return e.Repo.GetMission(ctx, id)
}

// Account returns the actor's economy standing, zero-valued if the actor has
// never moved credits.
func (e *Engine) Account(ctx context.Context, actorID string) (domain.Account, error) {
	acc, err := e.Repo.GetAccount(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Account{ActorID: actorID}, nil
	}
	return acc, err
}
