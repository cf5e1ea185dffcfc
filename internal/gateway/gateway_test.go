package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/werewolf-arena-go/internal/domain"
	"github.com/kapu/werewolf-arena-go/internal/engine"
	"github.com/kapu/werewolf-arena-go/internal/history"
	"github.com/kapu/werewolf-arena-go/internal/queue"
	"github.com/kapu/werewolf-arena-go/internal/store"
	"github.com/kapu/werewolf-arena-go/pkg/wolfdto"
)

const testObserverKey = "obs-secret"

func newTestGateway(t *testing.T) (*Gateway, *engine.Registry, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewWithClient(rdb, 24*time.Hour, time.Hour)

	reg := engine.NewRegistry(engine.RegistryConfig{
		RequiredPlayers: 5,
		Engine: engine.Config{
			LobbyTimeout:     time.Hour,
			NightDuration:    time.Hour,
			AnnounceDuration: time.Hour,
			OpeningDuration:  time.Hour,
			DiscussDuration:  time.Hour,
			VoteDuration:     time.Hour,
			ResolutionPause:  time.Hour,
			WolfCounts:       domain.DefaultWolfCounts(),
		},
		Grid: queue.Grid{Width: 4, Height: 4},
	})
	reg.AttachStore(st)
	reg.AttachHistory(history.NewMemoryRepository())

	gw := New(reg, NewWindowLimiter(2, time.Second))
	gw.AttachIdempotency(st)
	gw.SetObserverKey(testObserverKey)

	cleanup := func() {
		reg.CloseAll()
		_ = st.Close()
		mr.Close()
	}
	return gw, reg, cleanup
}

func call(t *testing.T, gw *Gateway, caller Caller, tool string, req any, out any) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	raw := gw.Handle(context.Background(), caller, tool, body)
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal response: %v (%s)", err, raw)
	}
}

// fillQueue joins 5 players and returns the formed match id.
func fillQueue(t *testing.T, gw *Gateway) string {
	t.Helper()
	var last wolfdto.QueueJoinResponse
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("p%d", i)
		var resp wolfdto.QueueJoinResponse
		call(t, gw, Caller{ID: id}, ToolQueueJoin, wolfdto.QueueJoinRequest{}, &resp)
		if !resp.OK {
			t.Fatalf("queue.join(%s) failed: %+v", id, resp.Error)
		}
		last = resp
	}
	if last.Assignment == nil {
		t.Fatalf("fifth join should have formed a match")
	}
	return last.Assignment.MatchID
}

func TestQueueJoinFormsMatchAtThreshold(t *testing.T) {
	gw, reg, cleanup := newTestGateway(t)
	defer cleanup()

	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		var resp wolfdto.QueueJoinResponse
		call(t, gw, Caller{ID: id}, ToolQueueJoin, wolfdto.QueueJoinRequest{}, &resp)
		if !resp.OK || resp.Assignment != nil {
			t.Fatalf("join %d: expected queued without assignment, got %+v", i, resp)
		}
		if resp.Queue.Size != i {
			t.Fatalf("join %d: expected queue size %d, got %d", i, i, resp.Queue.Size)
		}
	}

	var fifth wolfdto.QueueJoinResponse
	call(t, gw, Caller{ID: "p5"}, ToolQueueJoin, wolfdto.QueueJoinRequest{}, &fifth)
	if fifth.Assignment == nil {
		t.Fatalf("fifth join must form a match")
	}
	if fifth.Assignment.Seat != 5 {
		t.Fatalf("last joiner takes the last seat, got %d", fifth.Assignment.Seat)
	}

	eng, err := reg.Engine(fifth.Assignment.MatchID)
	if err != nil {
		t.Fatalf("formed match must be registered: %v", err)
	}
	if eng.Snapshot().Phase != domain.PhaseLobby {
		t.Fatalf("new match starts in the lobby")
	}

	// Earlier joiners discover the assignment via queue.status.
	var st wolfdto.QueueStatusResponse
	call(t, gw, Caller{ID: "p1"}, ToolQueueStatus, wolfdto.QueueStatusRequest{}, &st)
	if st.Assignment == nil || st.Assignment.MatchID != fifth.Assignment.MatchID {
		t.Fatalf("queue.status should surface the assignment, got %+v", st.Assignment)
	}
	if st.Assignment.Seat != 1 {
		t.Fatalf("first joiner takes seat 1, got %d", st.Assignment.Seat)
	}
}

func TestIdempotentReplayReturnsStoredResponse(t *testing.T) {
	gw, reg, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	req := wolfdto.ReadyRequest{MatchID: matchID, IdempotencyKey: "ready-1"}
	body, _ := json.Marshal(req)

	first := gw.Handle(context.Background(), Caller{ID: "p1"}, ToolReady, body)
	second := gw.Handle(context.Background(), Caller{ID: "p1"}, ToolReady, body)
	if string(first) != string(second) {
		t.Fatalf("replay must return byte-identical response:\n%s\n%s", first, second)
	}

	eng, err := reg.Engine(matchID)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	readyEvents := 0
	for _, ev := range eng.Snapshot().Events {
		if ev.Type == domain.EventNarrator {
			if kind, _ := ev.Payload["kind"].(string); kind == "PLAYER_READY" {
				readyEvents++
			}
		}
	}
	if readyEvents != 1 {
		t.Fatalf("replay must not append a second event, got %d", readyEvents)
	}
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	gw, _, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	var r1, r2 wolfdto.ReadyResponse
	call(t, gw, Caller{ID: "p1"}, ToolReady,
		wolfdto.ReadyRequest{MatchID: matchID, IdempotencyKey: "shared"}, &r1)
	call(t, gw, Caller{ID: "p2"}, ToolReady,
		wolfdto.ReadyRequest{MatchID: matchID, IdempotencyKey: "shared"}, &r2)
	if !r1.OK || !r2.OK {
		t.Fatalf("both callers must succeed under the same key: %+v %+v", r1.Error, r2.Error)
	}
}

func TestReadRateLimitEnvelope(t *testing.T) {
	gw, _, cleanup := newTestGateway(t)
	defer cleanup()

	caller := Caller{ID: "reader"}
	for i := 0; i < 2; i++ {
		var resp wolfdto.QueueStatusResponse
		call(t, gw, caller, ToolQueueStatus, wolfdto.QueueStatusRequest{}, &resp)
		if !resp.OK {
			t.Fatalf("read %d should pass: %+v", i+1, resp.Error)
		}
	}
	var limited wolfdto.QueueStatusResponse
	call(t, gw, caller, ToolQueueStatus, wolfdto.QueueStatusRequest{}, &limited)
	if limited.OK || limited.Error == nil {
		t.Fatalf("third read must be limited, got %+v", limited)
	}
	if limited.Error.Code != wolfdto.CodeRateLimited || !limited.Error.Retryable {
		t.Fatalf("expected retryable rate_limited, got %+v", limited.Error)
	}

	// Mutations stay unaffected by the read budget.
	var join wolfdto.QueueJoinResponse
	call(t, gw, caller, ToolQueueJoin, wolfdto.QueueJoinRequest{}, &join)
	if !join.OK {
		t.Fatalf("mutation should bypass the read budget: %+v", join.Error)
	}
}

func TestErrorCodes(t *testing.T) {
	gw, _, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	var env wolfdto.Envelope
	call(t, gw, Caller{ID: "x"}, ToolMatchState, wolfdto.MatchStateRequest{MatchID: "nope"}, &env)
	if env.OK || env.Error.Code != wolfdto.CodeNotFound {
		t.Fatalf("unknown match: expected not_found, got %+v", env.Error)
	}

	call(t, gw, Caller{ID: "x"}, "no.such.tool", struct{}{}, &env)
	if env.OK || env.Error.Code != wolfdto.CodeNotFound {
		t.Fatalf("unknown tool: expected not_found, got %+v", env.Error)
	}

	tgt := "p2"
	call(t, gw, Caller{ID: "p1"}, ToolVote,
		wolfdto.VoteRequest{MatchID: matchID, TargetID: &tgt}, &env)
	if env.OK || env.Error.Code != wolfdto.CodeInvalidPhase {
		t.Fatalf("lobby vote: expected invalid_phase, got %+v", env.Error)
	}

	call(t, gw, Caller{ID: "x2"}, ToolQueueStatus, wolfdto.QueueStatusRequest{QueueID: "no-such-queue"}, &env)
	if env.OK || env.Error.Code != wolfdto.CodeNotFound {
		t.Fatalf("unknown queue: expected not_found, got %+v", env.Error)
	}

	call(t, gw, Caller{ID: "x2"}, ToolQueueJoin, wolfdto.QueueJoinRequest{QueueID: "no-such-queue"}, &env)
	if env.OK || env.Error.Code != wolfdto.CodeNotFound {
		t.Fatalf("join unknown queue: expected not_found, got %+v", env.Error)
	}

	raw := gw.Handle(context.Background(), Caller{}, ToolQueueStatus, []byte(`{}`))
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.OK || env.Error.Code != wolfdto.CodeValidation {
		t.Fatalf("missing caller: expected validation, got %+v", env.Error)
	}

	raw = gw.Handle(context.Background(), Caller{ID: "x"}, ToolQueueJoin, []byte(`{not json`))
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.OK || env.Error.Code != wolfdto.CodeValidation {
		t.Fatalf("bad body: expected validation, got %+v", env.Error)
	}
}

func TestAdminEndMatchRequiresObserverKey(t *testing.T) {
	gw, reg, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	var denied wolfdto.AdminEndMatchResponse
	call(t, gw, Caller{ID: "admin", ObserverKey: "wrong"}, ToolAdminEndMatch,
		wolfdto.AdminEndMatchRequest{MatchID: matchID}, &denied)
	if denied.OK || denied.Error.Code != wolfdto.CodeForbiddenRole {
		t.Fatalf("wrong key: expected forbidden_role, got %+v", denied.Error)
	}

	var ended wolfdto.AdminEndMatchResponse
	call(t, gw, Caller{ID: "admin", ObserverKey: testObserverKey}, ToolAdminEndMatch,
		wolfdto.AdminEndMatchRequest{MatchID: matchID}, &ended)
	if !ended.OK || !ended.Ended {
		t.Fatalf("admin end failed: %+v", ended.Error)
	}

	eng, err := reg.Engine(matchID)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	m := eng.Snapshot()
	if m.Phase != domain.PhaseEnded || m.WinningTeam != domain.TeamNone {
		t.Fatalf("expected force-ended match, got %s/%s", m.Phase, m.WinningTeam)
	}
}

func TestPrivateViewIsBoundToCaller(t *testing.T) {
	gw, reg, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	eng, err := reg.Engine(matchID)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	var wolfID string
	for _, p := range eng.Snapshot().Players {
		if p.IsWolf() {
			wolfID = p.PlayerID
			break
		}
	}

	var asWolf wolfdto.MatchStateResponse
	call(t, gw, Caller{ID: wolfID}, ToolMatchState, wolfdto.MatchStateRequest{MatchID: matchID}, &asWolf)
	if asWolf.You == nil || asWolf.You.Role != string(domain.RoleWerewolf) {
		t.Fatalf("seated wolf must see own role, got %+v", asWolf.You)
	}

	// An unseated caller gets the public view only, no matter what the
	// request body claims about identity.
	raw := gw.Handle(context.Background(), Caller{ID: "stranger"}, ToolMatchState,
		[]byte(fmt.Sprintf(`{"matchId":%q,"playerId":%q}`, matchID, wolfID)))
	var asStranger wolfdto.MatchStateResponse
	if err := json.Unmarshal(raw, &asStranger); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !asStranger.OK {
		t.Fatalf("public state read failed: %+v", asStranger.Error)
	}
	if asStranger.You != nil {
		t.Fatalf("unseated caller must not receive a private view: %+v", asStranger.You)
	}

	// Mutations are bound the same way: a body naming another seat
	// still acts as the caller, who holds no seat here.
	raw = gw.Handle(context.Background(), Caller{ID: "stranger"}, ToolReady,
		[]byte(fmt.Sprintf(`{"matchId":%q,"playerId":%q}`, matchID, wolfID)))
	var env wolfdto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.OK || env.Error.Code != wolfdto.CodeForbiddenRole {
		t.Fatalf("stranger ready: expected forbidden_role, got %+v", env.Error)
	}
}

func TestMatchStateWireShape(t *testing.T) {
	gw, _, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	raw := gw.Handle(context.Background(), Caller{ID: "p1"}, ToolMatchState,
		[]byte(fmt.Sprintf(`{"matchId":%q}`, matchID)))
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, nested := body["match"]; nested {
		t.Fatalf("summary fields belong at the top level, found a nested match object")
	}
	if body["phase"] != "LOBBY" {
		t.Fatalf("expected top-level phase LOBBY, got %v", body["phase"])
	}
	if _, ok := body["dayNumber"]; !ok {
		t.Fatalf("dayNumber missing from top level")
	}
	if _, ok := body["phaseEndsAt"]; !ok {
		t.Fatalf("phaseEndsAt missing from top level")
	}
	if n, ok := body["playersAlive"].(float64); !ok || int(n) != 5 {
		t.Fatalf("expected playersAlive 5, got %v", body["playersAlive"])
	}
}

func TestMatchEventsVisibilityAndPaging(t *testing.T) {
	gw, reg, cleanup := newTestGateway(t)
	defer cleanup()
	matchID := fillQueue(t, gw)

	eng, err := reg.Engine(matchID)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	var wolfID string
	for _, p := range eng.Snapshot().Players {
		if _, err := eng.Ready(p.PlayerID); err != nil {
			t.Fatalf("Ready: %v", err)
		}
		if p.IsWolf() {
			wolfID = p.PlayerID
		}
	}
	if _, err := eng.WolfChat(wolfID, "hidden plan"); err != nil {
		t.Fatalf("WolfChat: %v", err)
	}

	var public wolfdto.EventsResponse
	call(t, gw, Caller{ID: "viewer"}, ToolMatchEvents,
		wolfdto.MatchEventsRequest{MatchID: matchID}, &public)
	for _, ev := range public.Events {
		if ev.Visibility != string(domain.VisibilityPublic) {
			t.Fatalf("outsider received a non-public event: %+v", ev)
		}
	}

	var asWolf wolfdto.EventsResponse
	call(t, gw, Caller{ID: wolfID}, ToolMatchEvents,
		wolfdto.MatchEventsRequest{MatchID: matchID}, &asWolf)
	sawWolfChat := false
	for _, ev := range asWolf.Events {
		if ev.Type == string(domain.EventWolfChatMessage) {
			sawWolfChat = true
		}
	}
	if !sawWolfChat {
		t.Fatalf("wolf must see the pack channel")
	}

	// Page from a cursor: nothing before it comes back again.
	cursor := public.Events[0].EventID
	var page wolfdto.EventsResponse
	call(t, gw, Caller{ID: "viewer2"}, ToolMatchEvents,
		wolfdto.MatchEventsRequest{MatchID: matchID, AfterEventID: cursor}, &page)
	for _, ev := range page.Events {
		if ev.EventID <= cursor {
			t.Fatalf("event %d leaked past cursor %d", ev.EventID, cursor)
		}
	}
}
