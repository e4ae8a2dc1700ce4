package repo

import (
	"testing"

	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
)

func TestMigrateIdempotent(t *testing.T) {
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSortMissions(t *testing.T) {
	near := "2024-01-02T00:00:00Z"
	far := "2024-01-09T00:00:00Z"
	missions := func() []domain.Mission {
		return []domain.Mission{
			{ID: "a", RewardAmount: 50, PostedAt: "2024-01-01T10:00:00Z", Deadline: &far},
			{ID: "b", RewardAmount: 300, PostedAt: "2024-01-01T12:00:00Z", Deadline: &near},
			{ID: "c", RewardAmount: 120, PostedAt: "2024-01-01T11:00:00Z"},
		}
	}

	cases := []struct {
		order domain.SortOrder
		want  []string
	}{
		{domain.SortRewardDesc, []string{"b", "c", "a"}},
		{domain.SortRewardAsc, []string{"a", "c", "b"}},
		{domain.SortDateDesc, []string{"b", "c", "a"}},
		// Missing deadlines sort last.
		{domain.SortDeadlineAsc, []string{"b", "a", "c"}},
	}
	for _, tc := range cases {
		ms := missions()
		SortMissions(ms, tc.order)
		for i, id := range tc.want {
			if ms[i].ID != id {
				t.Errorf("%s: position %d = %s, want %s", tc.order, i, ms[i].ID, id)
			}
		}
	}
}

func TestHashAPIKeyStable(t *testing.T) {
	if HashAPIKey("secret") != HashAPIKey("secret") {
		t.Fatal("hash not deterministic")
	}
	if HashAPIKey("secret") == HashAPIKey("other") {
		t.Fatal("distinct keys collide")
	}
	if len(HashAPIKey("secret")) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(HashAPIKey("secret")))
	}
}
