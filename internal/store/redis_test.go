package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewWithClient(rdb, time.Hour, time.Minute)
	cleanup := func() {
		_ = s.Close()
		mr.Close()
	}
	return s, mr, cleanup
}

func sampleMatch(id string, phase domain.Phase) *domain.Match {
	return &domain.Match{
		ID:    id,
		Phase: phase,
		Players: []*domain.Player{
			{PlayerID: "p1", Seat: 1, Role: domain.RoleWerewolf, Alive: true},
			{PlayerID: "p2", Seat: 2, Role: domain.RoleVillager, Alive: true},
		},
		Events: []*domain.Event{
			{Seq: 1, Type: domain.EventMatchCreated, Visibility: domain.VisibilityPublic},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	m := sampleMatch("m1", domain.PhaseNight)
	if err := s.SaveSnapshot(ctx, m); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := s.LoadSnapshot(ctx, "m1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got == nil || got.ID != "m1" || got.Phase != domain.PhaseNight {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(got.Players) != 2 || got.Players[0].Role != domain.RoleWerewolf {
		t.Fatalf("players not preserved: %+v", got.Players)
	}
	if len(got.Events) != 1 {
		t.Fatalf("events not preserved: %+v", got.Events)
	}

	ids, err := s.LiveMatchIDs(ctx)
	if err != nil {
		t.Fatalf("LiveMatchIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "m1" {
		t.Fatalf("live index should contain m1, got %v", ids)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	got, err := s.LoadSnapshot(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("missing snapshot must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing snapshot, got %+v", got)
	}
}

func TestEndedMatchLeavesLiveIndex(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, sampleMatch("m1", domain.PhaseDayVote)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SaveSnapshot(ctx, sampleMatch("m1", domain.PhaseEnded)); err != nil {
		t.Fatalf("SaveSnapshot(ended): %v", err)
	}
	ids, err := s.LiveMatchIDs(ctx)
	if err != nil {
		t.Fatalf("LiveMatchIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ended match must leave the live index, got %v", ids)
	}
	got, err := s.LoadSnapshot(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("ended snapshot stays loadable: %v %v", got, err)
	}
}

func TestSnapshotExpiry(t *testing.T) {
	s, mr, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, sampleMatch("m1", domain.PhaseNight)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	got, err := s.LoadSnapshot(ctx, "m1")
	if err != nil {
		t.Fatalf("LoadSnapshot after expiry: %v", err)
	}
	if got != nil {
		t.Fatalf("expired snapshot should be gone, got %+v", got)
	}
}

func TestIdempotencyFirstWriterWins(t *testing.T) {
	s, mr, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := s.PutIdempotency(ctx, "c1", "k1", []byte(`{"ok":true}`))
	if err != nil || !ok {
		t.Fatalf("first put should win: %v %v", ok, err)
	}
	ok, err = s.PutIdempotency(ctx, "c1", "k1", []byte(`{"ok":false}`))
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if ok {
		t.Fatalf("second put must not overwrite")
	}

	raw, err := s.GetIdempotency(ctx, "c1", "k1")
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("stored response changed: %s", raw)
	}

	// Keys are scoped per caller.
	raw, err = s.GetIdempotency(ctx, "c2", "k1")
	if err != nil || raw != nil {
		t.Fatalf("other caller's key must be empty: %s %v", raw, err)
	}

	mr.FastForward(2 * time.Minute)
	raw, err = s.GetIdempotency(ctx, "c1", "k1")
	if err != nil || raw != nil {
		t.Fatalf("expired idempotency record should be gone: %s %v", raw, err)
	}
}
