package engine_test

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func TestProposeOfferFloor(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Write docs", 100)

	// Undercutting the reward is invalid at proposal time.
	if _, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", int64Ptr(99), ""); !errors.Is(err, engine.ErrInvalidProposal) {
		t.Fatalf("undercut: got %v, want invalid proposal", err)
	}
	// At or above the reward is fine.
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", int64Ptr(120), "can start today")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if o.Price(m.RewardAmount) != 120 {
		t.Fatalf("offer price = %d, want 120", o.Price(m.RewardAmount))
	}
	// A second proposal from the same bidder is rejected.
	if _, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", nil, ""); !engine.IsValidation(err) {
		t.Fatalf("duplicate propose: got %v, want validation error", err)
	}
	// A nil amount proposes at the posted reward.
	def, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder2", nil, "")
	if err != nil {
		t.Fatalf("propose default: %v", err)
	}
	if def.Bid != nil || def.Price(m.RewardAmount) != 100 {
		t.Fatalf("default offer price = %d, want 100", def.Price(m.RewardAmount))
	}
	// Bidding on your own mission is rejected.
	if _, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "poster", nil, ""); !engine.IsValidation(err) {
		t.Fatalf("self-bid: got %v, want validation error", err)
	}
}

func TestRenegotiateOffer(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Paint fence", 100)
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	// Renegotiation may go below the posted reward.
	got, err := env.Engine.RenegotiateOffer(env.Ctx, m.ID, o.ID, "bidder", 60, "discount for materials")
	if err != nil {
		t.Fatalf("renegotiate: %v", err)
	}
	if got.Bid == nil || *got.Bid != 60 {
		t.Fatalf("renegotiated bid = %v, want 60", got.Bid)
	}
	// But never to a non-positive amount.
	if _, err := env.Engine.RenegotiateOffer(env.Ctx, m.ID, o.ID, "bidder", 0, ""); !engine.IsValidation(err) {
		t.Fatalf("zero amount: got %v, want validation error", err)
	}
	// A revision without a note keeps the standing message, both in the
	// response and on the stored row.
	got, err = env.Engine.RenegotiateOffer(env.Ctx, m.ID, o.ID, "bidder", 65, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Message != "discount for materials" {
		t.Fatalf("message after silent revision = %q, want previous message", got.Message)
	}
	stored, err := env.Engine.GetMission(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Offers) != 1 || stored.Offers[0].Message != "discount for materials" {
		t.Fatalf("stored offer = %+v, want previous message kept", stored.Offers)
	}
	// The mission's creator may counter-offer on the same row.
	counter, err := env.Engine.RenegotiateOffer(env.Ctx, m.ID, o.ID, "poster", 70, "meet in the middle")
	if err != nil {
		t.Fatalf("poster counter: %v", err)
	}
	if counter.Bid == nil || *counter.Bid != 70 {
		t.Fatalf("counter bid = %v, want 70", counter.Bid)
	}
	// But a third party may not.
	if _, err := env.Engine.RenegotiateOffer(env.Ctx, m.ID, o.ID, "stranger", 70, ""); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stranger renegotiate: got %v, want not found", err)
	}
}

func TestDeclineOfferIdempotence(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Mow lawn", 40)
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	// Only the poster may decline.
	if err := env.Engine.DeclineOffer(env.Ctx, m.ID, o.ID, "bidder"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("bidder decline: got %v, want not found", err)
	}
	if err := env.Engine.DeclineOffer(env.Ctx, m.ID, o.ID, "poster"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	// The second decline finds nothing to remove.
	if err := env.Engine.DeclineOffer(env.Ctx, m.ID, o.ID, "poster"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("double decline: got %v, want not found", err)
	}
}

func TestAcceptOffer(t *testing.T) {
	env := newTestEnv(t)
	m := mustPost(t, env, "poster", "Build shed", 200)
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "builder", int64Ptr(250), "quality wood")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "other", nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := env.Engine.AcceptOffer(env.Ctx, m.ID, o.ID, "poster")
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	if got.Status != domain.StatusAssigned {
		t.Fatalf("status = %s, want assigned", got.Status)
	}
	if got.AssignedProviderID == nil || *got.AssignedProviderID != "builder" {
		t.Fatalf("assigned provider = %v", got.AssignedProviderID)
	}
	if got.AgreedPrice == nil || *got.AgreedPrice != 250 {
		t.Fatalf("agreed price = %v, want 250", got.AgreedPrice)
	}
	if len(got.Offers) != 0 {
		t.Fatalf("offer book not cleared: %d offers remain", len(got.Offers))
	}

	// Hiring lands the mission in the poster's own working set and credits
	// the poster a 10% incentive on top of the posting credit.
	accepted, err := env.Engine.ListAccepted(env.Ctx, "poster")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].Mission.ID != m.ID {
		t.Fatalf("poster accepted set = %d entries", len(accepted))
	}
	acc, err := env.Engine.Account(env.Ctx, "poster")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 50 {
		t.Fatalf("poster balance = %d, want 50 (25 posting + 25 hire)", acc.Balance)
	}
	// The bidder gets nothing at hire time; payment comes from settlement.
	builderAccepted, err := env.Engine.ListAccepted(env.Ctx, "builder")
	if err != nil {
		t.Fatal(err)
	}
	if len(builderAccepted) != 0 {
		t.Fatalf("builder accepted set = %d entries, want 0", len(builderAccepted))
	}
	builderAcc, err := env.Engine.Account(env.Ctx, "builder")
	if err != nil {
		t.Fatal(err)
	}
	if builderAcc.Balance != 0 {
		t.Fatalf("builder balance = %d, want 0", builderAcc.Balance)
	}

	// The assigned mission is out of negotiation.
	if _, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "late", nil, ""); !errors.Is(err, engine.ErrStaleState) {
		t.Fatalf("propose on assigned: got %v, want stale state", err)
	}
	// And only the poster could have accepted.
	if _, err := env.Engine.AcceptOffer(env.Ctx, m.ID, o.ID, "builder"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("non-poster accept: got %v, want not found", err)
	}
}

func TestAcceptOfferCapacity(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		m := mustPost(t, env, "other", "Filler job", 10)
		if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, "poster"); err != nil {
			t.Fatal(err)
		}
	}
	m := mustPost(t, env, "poster", "Own gig", 100)
	o, err := env.Engine.ProposeOffer(env.Ctx, m.ID, "bidder", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	// The poster's working set is full; hiring must respect the same limit
	// as a direct accept.
	if _, err := env.Engine.AcceptOffer(env.Ctx, m.ID, o.ID, "poster"); !errors.Is(err, engine.ErrCapacityExceeded) {
		t.Fatalf("accept offer at capacity: got %v, want capacity exceeded", err)
	}
	got, err := env.Engine.GetMission(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusOpen || len(got.Offers) != 1 {
		t.Fatalf("mission mutated by failed hire: status=%s offers=%d", got.Status, len(got.Offers))
	}

	// Freeing a slot lets the hire through.
	accepted, err := env.Engine.ListAccepted(env.Ctx, "poster")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.RemoveFromAccepted(env.Ctx, accepted[0].Mission.ID, "poster"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptOffer(env.Ctx, m.ID, o.ID, "poster"); err != nil {
		t.Fatalf("accept offer after freeing slot: %v", err)
	}
}

func TestAcceptCapacityConcurrent(t *testing.T) {
	env := newTestEnv(t)
	const attempts = 8
	var missions []string
	for i := 0; i < attempts; i++ {
		missions = append(missions, mustPost(t, env, "poster", "Parallel job", 10).ID)
	}

	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := env.Engine.AcceptMission(env.Ctx, missions[i], "worker")
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	ok, full := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, engine.ErrCapacityExceeded):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 3 || full != attempts-3 {
		t.Fatalf("got %d accepted, %d rejected; want exactly 3 accepted", ok, full)
	}
	accepted, err := env.Engine.ListAccepted(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 3 {
		t.Fatalf("accepted set = %d entries, want 3", len(accepted))
	}
}
