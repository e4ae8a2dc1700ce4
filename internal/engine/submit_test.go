package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"gigline/internal/classify"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

// stubClassifier returns a fixed verdict, or an error, optionally blocking
// until released.
type stubClassifier struct {
	verdict classify.Verdict
	err     error

	mu      sync.Mutex
	block   chan struct{}
	started chan struct{}
}

func (s *stubClassifier) Classify(ctx context.Context, _ classify.Artifact, _ classify.MatchContext) (classify.Verdict, error) {
	s.mu.Lock()
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		close(started)
		s.mu.Lock()
		s.started = nil
		s.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	if s.err != nil {
		return classify.Verdict{}, s.err
	}
	return s.verdict, nil
}

func acceptedMission(t *testing.T, env testEnv, reward int64) domain.Mission {
	t.Helper()
	m := mustPost(t, env, "poster", "Deliverable job", reward)
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, "worker"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return m
}

func TestSubmitWorkMatch(t *testing.T) {
	env := newTestEnv(t)
	m := acceptedMission(t, env, 100)
	env.Engine.Classifier = &stubClassifier{verdict: classify.Verdict{IsMatch: true, Confidence: 0.93}}

	res, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("done"), MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Matched || res.Amount != 100 {
		t.Fatalf("result = %+v, want match paying 100", res)
	}
	if res.NewTrust != 5 {
		t.Fatalf("trust = %v, want 5", res.NewTrust)
	}

	acc, err := env.Engine.Account(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 100 || acc.TrustScore != 5 {
		t.Fatalf("account = %+v, want balance 100 trust 5", acc)
	}

	// Terminal removal: mission gone, accepted set cleared.
	if _, err := env.Engine.GetMission(env.Ctx, m.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("mission after match: got %v, want not found", err)
	}
	accepted, err := env.Engine.ListAccepted(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 0 {
		t.Fatalf("accepted set = %d entries, want 0", len(accepted))
	}
}

func TestSubmitWorkMatchAtAgreedPrice(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Negotiated job", 100)
	// The worker holds the mission before bidding, so the hire does not
	// disturb their working set.
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, "worker"); err != nil {
		t.Fatal(err)
	}
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "worker", int64Ptr(150), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptOffer(env.Ctx, m.ID, o.ID, "poster"); err != nil {
		t.Fatal(err)
	}
	env.Engine.Classifier = &stubClassifier{verdict: classify.Verdict{IsMatch: true}}

	res, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("done")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Amount != 150 {
		t.Fatalf("payout = %d, want the agreed 150", res.Amount)
	}
}

func TestSubmitWorkMismatch(t *testing.T) {
	env := newTestEnv(t)
	m := acceptedMission(t, env, 100)
	env.Engine.Classifier = &stubClassifier{verdict: classify.Verdict{IsMatch: false, Reason: "off brief"}}

	res, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("junk")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Matched || !res.Retryable {
		t.Fatalf("result = %+v, want retryable mismatch", res)
	}
	if res.NewTrust != -15 {
		t.Fatalf("trust = %v, want -15", res.NewTrust)
	}
	// The penalty floors at zero for a broke account.
	if res.NewBalance != 0 {
		t.Fatalf("balance = %d, want floored at 0", res.NewBalance)
	}

	// The mission survives for another attempt.
	accepted, err := env.Engine.ListAccepted(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 {
		t.Fatalf("accepted set = %d entries, want 1", len(accepted))
	}

	// A funded account pays the full penalty.
	env.Engine.Classifier = &stubClassifier{verdict: classify.Verdict{IsMatch: false}}
	if _, err := env.Engine.Economy.Credit(env.Ctx, "worker", 80, "top up"); err != nil {
		t.Fatal(err)
	}
	res, err = env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("junk again")})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewBalance != 30 {
		t.Fatalf("balance = %d, want 80-50=30", res.NewBalance)
	}
}

func TestSubmitWorkClassifierUnavailable(t *testing.T) {
	env := newTestEnv(t)
	m := acceptedMission(t, env, 100)
	env.Engine.Classifier = &stubClassifier{err: classify.ErrUnavailable}

	_, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("done")})
	if !errors.Is(err, classify.ErrUnavailable) {
		t.Fatalf("got %v, want classifier unavailable", err)
	}

	// No state changed.
	acc, err := env.Engine.Account(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 0 || acc.TrustScore != 0 {
		t.Fatalf("account mutated on outage: %+v", acc)
	}
	accepted, err := env.Engine.ListAccepted(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 {
		t.Fatalf("accepted set = %d entries, want 1", len(accepted))
	}
}

func TestSubmitWorkPreconditions(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Unaccepted job", 100)
	env.Engine.Classifier = &stubClassifier{verdict: classify.Verdict{IsMatch: true}}

	// Submitting without holding the mission is not found.
	if _, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("x")}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unheld submit: got %v, want not found", err)
	}
	// An empty artifact is invalid.
	if _, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{}); !engine.IsValidation(err) {
		t.Fatalf("empty artifact: got %v, want validation error", err)
	}
}

func TestSubmitWorkSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	m := acceptedMission(t, env, 100)
	stub := &stubClassifier{
		verdict: classify.Verdict{IsMatch: true},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	env.Engine.Classifier = stub

	var g errgroup.Group
	g.Go(func() error {
		_, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("slow")})
		return err
	})

	<-stub.started
	_, err := env.Engine.SubmitWork(env.Ctx, m.ID, "worker", classify.Artifact{Bytes: []byte("eager")})
	if !errors.Is(err, engine.ErrSubmissionInFlight) {
		t.Fatalf("second submit: got %v, want submission in flight", err)
	}

	close(stub.block)
	if err := g.Wait(); err != nil {
		t.Fatalf("first submit: %v", err)
	}
}
