package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ProposeOffer opens a negotiation against a mission. An explicit amount must
// meet or exceed the posted reward; a nil amount proposes at the reward.
func (e *Engine) ProposeOffer(ctx context.Context, missionID, actorID string, amount *int64, message string) (domain.Offer, error) {
	if amount != nil && *amount <= 0 {
		return domain.Offer{}, invalidf("amount", "must be positive")
	}

	// The bidder's reputation is stamped on the offer at proposal time.
	reputation := 0.0
	if acc, err := e.Repo.GetAccount(ctx, actorID); err == nil {
		reputation = acc.TrustScore
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Offer{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Offer{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return domain.Offer{}, err
	}
	if m.CreatorID == actorID {
		return domain.Offer{}, invalidf("mission_id", "cannot bid on your own mission")
	}
	if m.Status != domain.StatusOpen {
		return domain.Offer{}, ErrStaleState
	}
	if amount != nil && *amount < m.RewardAmount {
		return domain.Offer{}, ErrInvalidProposal
	}
	if _, err := e.Repo.GetOfferByBidderTx(ctx, tx, missionID, actorID); err == nil {
		return domain.Offer{}, invalidf("offer", "already proposed; renegotiate instead")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Offer{}, err
	}

	now := e.nowRFC3339()
	o := domain.Offer{
		ID:         uuid.NewString(),
		MissionID:  missionID,
		BidderID:   actorID,
		Reputation: reputation,
		Bid:        amount,
		Message:    message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.Repo.InsertOfferTx(ctx, tx, o); err != nil {
		return domain.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "offer.propose", "offer", o.ID, actorID, events.EventPayload{
		"mission_id": missionID,
		"amount":     o.Price(m.RewardAmount),
	}); err != nil {
		return domain.Offer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Offer{}, err
	}
	return o, nil
}

// RenegotiateOffer replaces the standing bid on an offer. Either side of the
// negotiation may revise: the bidder re-proposes, or the mission's creator
// counters. Any positive amount is admissible here, below the posted reward
// included.
func (e *Engine) RenegotiateOffer(ctx context.Context, missionID, offerID, actorID string, amount int64, message string) (domain.Offer, error) {
	if amount <= 0 {
		return domain.Offer{}, invalidf("amount", "must be positive")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Offer{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return domain.Offer{}, err
	}
	if m.Status != domain.StatusOpen {
		return domain.Offer{}, ErrStaleState
	}
	o, err := e.Repo.GetOfferTx(ctx, tx, missionID, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if actorID != o.BidderID && actorID != m.CreatorID {
		return domain.Offer{}, repo.ErrNotFound
	}

	// A revision without a note keeps the standing message.
	if message == "" {
		message = o.Message
	}
	now := e.nowRFC3339()
	if err := e.Repo.UpdateOfferBidTx(ctx, tx, offerID, amount, message, now); err != nil {
		return domain.Offer{}, err
	}
	if err := e.Events.Append(ctx, tx, "offer.renegotiate", "offer", offerID, actorID, events.EventPayload{
		"mission_id": missionID,
		"amount":     amount,
	}); err != nil {
		return domain.Offer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Offer{}, err
	}
	o.Bid = &amount
	o.Message = message
	o.UpdatedAt = now
	return o, nil
}

// DeclineOffer removes an offer from the book. A second decline of the same
// offer reports not found rather than succeeding silently.
func (e *Engine) DeclineOffer(ctx context.Context, missionID, offerID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return err
	}
	if m.CreatorID != actorID {
		return repo.ErrNotFound
	}
	if err := e.Repo.DeleteOfferTx(ctx, tx, missionID, offerID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "offer.decline", "offer", offerID, actorID, events.EventPayload{
		"mission_id": missionID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
