package engine

import (
	"context"
	"fmt"

	"gigline/internal/classify"
	"gigline/internal/domain"
	"gigline/internal/events"
)

// SubmissionResult is the settled outcome of a work submission.
type SubmissionResult struct {
	MissionID  string           `json:"mission_id"`
	Matched    bool             `json:"matched"`
	Verdict    classify.Verdict `json:"verdict"`
	Amount     int64            `json:"amount"`
	NewBalance int64            `json:"new_balance"`
	NewTrust   float64          `json:"new_trust"`
	// Retryable is set on a mismatch: the mission stays in the accepted set
	// and can be resubmitted.
	Retryable bool `json:"retryable"`
}

// SubmitWork verifies a deliverable against the mission brief and settles the
// outcome. At most one submission per mission may be in flight; a classifier
// outage aborts with no state change. A match pays out and retires the
// mission; a mismatch fines the provider and leaves the mission retryable.
func (e *Engine) SubmitWork(ctx context.Context, missionID, actorID string, artifact classify.Artifact) (SubmissionResult, error) {
	if len(artifact.Bytes) == 0 {
		return SubmissionResult{}, invalidf("artifact", "required")
	}
	if e.Classifier == nil {
		return SubmissionResult{}, classify.ErrUnavailable
	}

	e.mu.Lock()
	if _, busy := e.inflight[missionID]; busy {
		e.mu.Unlock()
		return SubmissionResult{}, ErrSubmissionInFlight
	}
	e.inflight[missionID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, missionID)
		e.mu.Unlock()
	}()

	m, err := e.submissionTarget(ctx, missionID, actorID)
	if err != nil {
		return SubmissionResult{}, err
	}

	// The classifier call happens outside any transaction; it can be slow
	// and must not hold the database connection.
	verdict, err := e.Classifier.Classify(ctx, artifact, classify.MatchContext{
		Title:       m.Title,
		Description: m.Description,
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	if verdict.IsMatch {
		return e.settleMatch(ctx, m, actorID, verdict)
	}
	return e.settleMismatch(ctx, m, actorID, verdict)
}

// submissionTarget checks the accepted-set precondition and loads the mission
// brief in one short read transaction.
func (e *Engine) submissionTarget(ctx context.Context, missionID, actorID string) (domain.Mission, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetAcceptedTx(ctx, tx, missionID, actorID); err != nil {
		return domain.Mission{}, err
	}
	return e.Repo.GetMissionTx(ctx, tx, missionID)
}

// settleMatch pays out, bumps trust and retires the mission, atomically. The
// economy and trust ledgers join the settlement transaction.
func (e *Engine) settleMatch(ctx context.Context, m domain.Mission, actorID string, verdict classify.Verdict) (SubmissionResult, error) {
	amount := m.RewardAmount
	if m.AgreedPrice != nil {
		amount = *m.AgreedPrice
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SubmissionResult{}, err
	}
	defer tx.Rollback()

	balance, err := e.Economy.CreditTx(ctx, tx, actorID, amount, "mission payout: "+m.Title)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("credit payout: %w", err)
	}
	trust, err := e.Trust.ApplyDeltaTx(ctx, tx, actorID, "submission.accept", e.Config.Trust.SuccessDelta, m.Title)
	if err != nil {
		return SubmissionResult{}, err
	}
	// Terminal removal: the mission row goes away and the cascade clears its
	// offers and every actor's accepted entry.
	if err := e.Repo.DeleteMissionTx(ctx, tx, m.ID); err != nil {
		return SubmissionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "submission.accept", "submission", m.ID, actorID, events.EventPayload{
		"amount":     amount,
		"confidence": verdict.Confidence,
	}); err != nil {
		return SubmissionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SubmissionResult{}, err
	}
	return SubmissionResult{
		MissionID:  m.ID,
		Matched:    true,
		Verdict:    verdict,
		Amount:     amount,
		NewBalance: balance,
		NewTrust:   trust,
	}, nil
}

// settleMismatch fines the provider, floored at a zero balance, and drops
// trust. The mission stays in the accepted set for another attempt.
func (e *Engine) settleMismatch(ctx context.Context, m domain.Mission, actorID string, verdict classify.Verdict) (SubmissionResult, error) {
	penalty := e.Config.Incentives.MismatchPenalty

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SubmissionResult{}, err
	}
	defer tx.Rollback()

	balance, err := e.Economy.DebitTx(ctx, tx, actorID, penalty, "mismatch penalty: "+m.Title)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("debit penalty: %w", err)
	}
	trust, err := e.Trust.ApplyDeltaTx(ctx, tx, actorID, "submission.reject", e.Config.Trust.FailureDelta, verdict.Reason)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "submission.reject", "submission", m.ID, actorID, events.EventPayload{
		"penalty":    penalty,
		"confidence": verdict.Confidence,
		"reason":     verdict.Reason,
	}); err != nil {
		return SubmissionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SubmissionResult{}, err
	}
	return SubmissionResult{
		MissionID:  m.ID,
		Matched:    false,
		Verdict:    verdict,
		Amount:     -penalty,
		NewBalance: balance,
		NewTrust:   trust,
		Retryable:  true,
	}, nil
}
