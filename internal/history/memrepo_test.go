package history

import (
	"context"
	"testing"
	"time"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

func sampleRecord(matchID string, endedAt time.Time) *Record {
	return &Record{
		MatchID:     matchID,
		WinningTeam: domain.TeamVillagers,
		Days:        2,
		Nights:      2,
		StartedAt:   endedAt.Add(-10 * time.Minute),
		EndedAt:     endedAt,
		Duration:    10 * time.Minute,
		EventCount:  40,
	}
}

func TestMemRepoInsertAndDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	id, err := repo.InsertMatch(ctx, sampleRecord("m1", time.Unix(1000, 0)))
	if err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero id")
	}
	if _, err := repo.InsertMatch(ctx, sampleRecord("m1", time.Unix(2000, 0))); err != ErrDuplicateMatch {
		t.Fatalf("expected ErrDuplicateMatch, got %v", err)
	}
}

func TestMemRepoRecentOrderAndLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i, m := range []string{"m1", "m2", "m3"} {
		rec := sampleRecord(m, time.Unix(int64(1000*(i+1)), 0))
		if _, err := repo.InsertMatch(ctx, rec); err != nil {
			t.Fatalf("InsertMatch(%s): %v", m, err)
		}
	}

	recent, err := repo.RecentMatches(ctx, 2)
	if err != nil {
		t.Fatalf("RecentMatches: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].MatchID != "m3" || recent[1].MatchID != "m2" {
		t.Fatalf("expected newest first, got %s %s", recent[0].MatchID, recent[1].MatchID)
	}
}

func TestFromMatchDerivesResults(t *testing.T) {
	ended := time.Unix(5000, 0)
	m := &domain.Match{
		ID:          "m1",
		WinningTeam: domain.TeamWerewolves,
		DayNumber:   3,
		NightNumber: 3,
		StartedAt:   time.Unix(4000, 0),
		EndedAt:     &ended,
		Players: []*domain.Player{
			{PlayerID: "w", Role: domain.RoleWerewolf, Seat: 1, Alive: true},
			{PlayerID: "v", Role: domain.RoleVillager, Seat: 2, Alive: false},
			{PlayerID: "s", Role: domain.RoleSeer, Seat: 3, Alive: false},
		},
	}
	rec := FromMatch(m)
	if rec.Days != 3 || rec.Nights != 3 || rec.WinningTeam != domain.TeamWerewolves {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Duration != 1000*time.Second {
		t.Fatalf("expected 1000s duration, got %v", rec.Duration)
	}
	for _, p := range rec.Players {
		wantWon := p.Role == domain.RoleWerewolf
		if p.Won != wantWon {
			t.Fatalf("player %s: won=%v, want %v", p.PlayerID, p.Won, wantWon)
		}
	}
	if !rec.Players[0].Survived || rec.Players[1].Survived {
		t.Fatalf("survival flags wrong: %+v", rec.Players)
	}
}
