package engine

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/werewolf-arena-go/internal/domain"
	"github.com/kapu/werewolf-arena-go/internal/msgcat"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
	"github.com/kapu/werewolf-arena-go/internal/queue"
)

const schedulerResolution = 250 * time.Millisecond

// Config carries the per-phase durations and the role table. Values
// come from the environment; tests inject short ones.
type Config struct {
	LobbyTimeout     time.Duration
	NightDuration    time.Duration
	AnnounceDuration time.Duration
	OpeningDuration  time.Duration
	DiscussDuration  time.Duration
	VoteDuration     time.Duration
	ResolutionPause  time.Duration
	WolfCounts       map[int]int
}

// SnapshotSink persists a consistent copy of match state after each
// apply. Saves run outside the serialized section.
type SnapshotSink interface {
	SaveSnapshot(m *domain.Match)
}

// EventSink receives every appended event after it is committed, in
// order. Used by the spectator feed.
type EventSink interface {
	Publish(matchID string, ev *domain.Event)
}

// Engine is the single writer for one match. Every mutation, whether
// a player command or a scheduler tick, funnels through the same lock,
// so a last-moment command and a timeout can never race into a double
// transition. Reads clone the state under RLock.
type Engine struct {
	mu  sync.RWMutex
	m   *domain.Match
	cfg Config
	rng *rand.Rand
	now func() time.Time

	cat    *msgcat.Catalog
	snap   SnapshotSink
	sink   EventSink
	onEnd  func(*domain.Match)
	logger *zap.Logger

	// per-phase working state, reset on phase entry
	wolfPicks        map[string]string
	doctorTarget     string
	doctorPrevTarget string
	seerDone         bool
	openingPosted    map[string]bool

	pending     []*domain.Event
	endNotified bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine seats the plan's players, draws roles from the plan seed
// and opens the lobby.
func NewEngine(plan *queue.MatchPlan, cfg Config) (*Engine, error) {
	roles, err := AssignRoles(plan.Seed, len(plan.Seats), cfg.WolfCounts)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	m := &domain.Match{
		ID:                 plan.MatchID,
		BuildingInstanceID: plan.BuildingInstanceID,
		Seed:               plan.Seed,
		Phase:              domain.PhaseLobby,
		StartedAt:          now,
		PhaseStartedAt:     now,
		PhaseEndsAt:        now.Add(cfg.LobbyTimeout),
	}
	for i, seat := range plan.Seats {
		m.Players = append(m.Players, &domain.Player{
			PlayerID:    seat.PlayerID,
			DisplayName: seat.DisplayName,
			Seat:        seat.Seat,
			Role:        roles[i],
			Alive:       true,
		})
	}
	e := &Engine{
		m:             m,
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(plan.Seed)),
		now:           time.Now,
		logger:        obslog.L(),
		wolfPicks:     make(map[string]string),
		openingPosted: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
	e.appendEvent(domain.EventMatchCreated, domain.VisibilityPublic, "", map[string]any{
		"matchId":            m.ID,
		"buildingInstanceId": m.BuildingInstanceID,
		"requiredPlayers":    len(m.Players),
	})
	return e, nil
}

func (e *Engine) AttachCatalog(cat *msgcat.Catalog) { e.cat = cat }
func (e *Engine) AttachSnapshotSink(s SnapshotSink) { e.snap = s }
func (e *Engine) AttachEventSink(s EventSink)       { e.sink = s }
func (e *Engine) OnEnd(fn func(m *domain.Match))    { e.onEnd = fn }
func (e *Engine) SetClock(now func() time.Time)     { e.now = now }
func (e *Engine) SetLogger(l *zap.Logger)           { e.logger = l }

func (e *Engine) MatchID() string { return e.m.ID }

// Start launches the deadline scheduler. Tests drive Tick directly
// instead.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTicker(schedulerResolution)
		defer t.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-t.C:
				if e.Tick(e.now()) {
					return
				}
			}
		}
	}()
}

// Close stops the scheduler and waits for it.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Tick forces the phase transition when the deadline has passed.
// Returns true once the match has ended and the scheduler can stop.
func (e *Engine) Tick(now time.Time) bool {
	var ended bool
	_ = e.apply(func() error {
		if e.m.Phase == domain.PhaseEnded {
			ended = true
			return nil
		}
		if now.Before(e.m.PhaseEndsAt) {
			return nil
		}
		e.advanceLocked()
		ended = e.m.Phase == domain.PhaseEnded
		return nil
	})
	return ended
}

// Snapshot returns a deep copy of the full match state. Callers apply
// visibility filtering on the copy.
func (e *Engine) Snapshot() *domain.Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Clone()
}

// View returns a consistent snapshot together with the caller's
// pending required action, resolved under the same lock.
func (e *Engine) View(playerID string) (*domain.Match, *RequiredAction) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m.Clone(), e.requiredActionLocked(playerID)
}

// apply serializes a mutation, then flushes committed events and a
// snapshot to the sinks outside the lock.
func (e *Engine) apply(fn func() error) error {
	e.mu.Lock()
	err := fn()
	var evs []*domain.Event
	var snap *domain.Match
	var notifyEnd bool
	if err == nil && len(e.pending) > 0 {
		evs = e.pending
		e.pending = nil
		snap = e.m.Clone()
		if snap.Phase == domain.PhaseEnded && !e.endNotified {
			e.endNotified = true
			notifyEnd = true
		}
	} else {
		e.pending = nil
	}
	e.mu.Unlock()

	if snap == nil {
		return err
	}
	if e.sink != nil {
		for _, ev := range evs {
			e.sink.Publish(snap.ID, ev)
		}
	}
	if e.snap != nil {
		e.snap.SaveSnapshot(snap)
	}
	if notifyEnd && e.onEnd != nil {
		e.onEnd(snap)
	}
	return err
}

func (e *Engine) appendEvent(t domain.EventType, vis domain.Visibility, audience string, payload map[string]any) *domain.Event {
	ev := &domain.Event{
		Seq:        int64(len(e.m.Events)) + 1,
		At:         e.nowOrInit(),
		Type:       t,
		Visibility: vis,
		Audience:   audience,
		Payload:    payload,
	}
	e.m.Events = append(e.m.Events, ev)
	e.pending = append(e.pending, ev)
	return ev
}

func (e *Engine) nowOrInit() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// actorLocked runs the shared validation ladder: match live, caller
// seated, caller alive.
func (e *Engine) actorLocked(playerID string) (*domain.Player, error) {
	if e.m.Phase == domain.PhaseEnded {
		return nil, ErrMatchEnded
	}
	p := e.m.PlayerByID(strings.TrimSpace(playerID))
	if p == nil {
		return nil, ErrNotSeated
	}
	if !p.Alive {
		return nil, ErrDeadPlayer
	}
	return p, nil
}

func (e *Engine) rejected(playerID, command string, err error) error {
	e.logger.Info("command_rejected",
		zap.String("match_id", e.m.ID),
		zap.String("player_id", playerID),
		zap.String("command", command),
		zap.String("reason", err.Error()),
	)
	return err
}
