package engine

import (
	"context"
	"errors"
	"fmt"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// AcceptMission reserves a slot in the actor's accepted set. The capacity
// check and the insert run under the engine mutex inside one transaction, so
// concurrent accepts cannot overshoot the limit. The mission stays open;
// acceptance is a provider-side bookmark, not an assignment.
func (e *Engine) AcceptMission(ctx context.Context, missionID, actorID string) (domain.AcceptedMission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AcceptedMission{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		return domain.AcceptedMission{}, err
	}
	if m.CreatorID == actorID {
		return domain.AcceptedMission{}, invalidf("mission_id", "cannot accept your own mission")
	}
	if m.Status != domain.StatusOpen {
		return domain.AcceptedMission{}, ErrStaleState
	}
	if _, err := e.Repo.GetAcceptedTx(ctx, tx, missionID, actorID); err == nil {
		return domain.AcceptedMission{}, ErrStaleState
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.AcceptedMission{}, err
	}

	count, err := e.Repo.CountAcceptedTx(ctx, tx, actorID)
	if err != nil {
		return domain.AcceptedMission{}, err
	}
	if count >= e.Config.Limits.MaxAccepted {
		return domain.AcceptedMission{}, ErrCapacityExceeded
	}

	acceptedAt := e.nowRFC3339()
	if err := e.Repo.InsertAcceptedTx(ctx, tx, missionID, actorID, m.Deadline, acceptedAt); err != nil {
		return domain.AcceptedMission{}, fmt.Errorf("insert accepted: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "mission.accept", "mission", missionID, actorID, nil); err != nil {
		return domain.AcceptedMission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AcceptedMission{}, err
	}
	return domain.AcceptedMission{Mission: m, ActorID: actorID, Deadline: m.Deadline, AcceptedAt: acceptedAt}, nil
}

// AcceptOffer assigns the mission to the offer's bidder at the negotiated
// price and clears the offer book. The mission joins the accepting
// requester's own working set, subject to the same capacity limit as a
// direct accept, and the requester is credited the hire incentive. Only the
// mission's creator may call this.
func (e *Engine) AcceptOffer(ctx context.Context, missionID, offerID, actorID string) (domain.Mission, error) {
	e.mu.Lock()

	var incentive int64
	err := func() error {
		defer e.mu.Unlock()

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
		if m.Status != domain.StatusOpen {
			return ErrStaleState
		}
		offer, err := e.Repo.GetOfferTx(ctx, tx, missionID, offerID)
		if err != nil {
			return err
		}

		// Hiring tracks the mission in the requester's own working set, so
		// the same capacity check as a direct accept applies to them.
		if _, err := e.Repo.GetAcceptedTx(ctx, tx, missionID, actorID); errors.Is(err, repo.ErrNotFound) {
			count, err := e.Repo.CountAcceptedTx(ctx, tx, actorID)
			if err != nil {
				return err
			}
			if count >= e.Config.Limits.MaxAccepted {
				return ErrCapacityExceeded
			}
			if err := e.Repo.InsertAcceptedTx(ctx, tx, missionID, actorID, m.Deadline, e.nowRFC3339()); err != nil {
				return fmt.Errorf("insert accepted: %w", err)
			}
		} else if err != nil {
			return err
		}

		agreed := offer.Price(m.RewardAmount)
		if err := e.Repo.MarkAssignedTx(ctx, tx, missionID, offer.BidderID, agreed); err != nil {
			return err
		}
		if err := e.Repo.DeleteMissionOffersTx(ctx, tx, missionID); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, tx, "mission.assign", "mission", missionID, actorID, events.EventPayload{
			"provider_id":  offer.BidderID,
			"agreed_price": agreed,
		}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		incentive = agreed * e.Config.Incentives.HireRatePercent / 100
		return nil
	}()
	if err != nil {
		return domain.Mission{}, err
	}

	if incentive > 0 {
		if _, err := e.Economy.Credit(ctx, actorID, incentive, "hire incentive"); err != nil {
			return domain.Mission{}, fmt.Errorf("hire incentive: %w", err)
		}
	}
	return e.Repo.GetMission(ctx, missionID)
}
