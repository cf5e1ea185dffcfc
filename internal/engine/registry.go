package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/werewolf-arena-go/internal/domain"
	"github.com/kapu/werewolf-arena-go/internal/history"
	"github.com/kapu/werewolf-arena-go/internal/msgcat"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
	"github.com/kapu/werewolf-arena-go/internal/queue"
	"github.com/kapu/werewolf-arena-go/internal/store"
)

const DefaultQueueID = "default"

// RegistryConfig bundles match formation parameters with the engine's
// phase configuration.
type RegistryConfig struct {
	RequiredPlayers int
	Engine          Config
	Grid            queue.Grid
}

// Assignment tells a freshly seated player where their match lives.
type Assignment struct {
	MatchID            string
	BuildingInstanceID string
	Location           queue.Tile
	Seat               int
	JoinedAt           time.Time
}

// QueueStatus is a point-in-time view of the matchmaking queue.
type QueueStatus struct {
	QueueID               string
	Size                  int
	RequiredPlayers       int
	Position              int
	Status                string
	EstimatedStartSeconds int
}

// Queue lifecycle states reported to callers.
const (
	QueueStateWaiting = "WAITING"
	QueueStateForming = "FORMING"
)

// Rough per-missing-seat wait used for the start estimate. The queue
// has no arrival model, so this is a flat heuristic.
const estimatedSecondsPerMissingSeat = 30

// Registry owns the matchmaking queue and every live match engine in
// the process. Engines for ended matches stay queryable until
// shutdown; their building tiles are released on end.
type Registry struct {
	mu          sync.RWMutex
	cfg         RegistryConfig
	queue       *queue.Manager
	engines     map[string]*Engine
	occupied    map[queue.Tile]string // tile → matchID
	assignments map[string]*Assignment

	store  *store.Store
	repo   history.Repository
	cat    *msgcat.Catalog
	sink   EventSink
	logger *zap.Logger
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:         cfg,
		queue:       queue.NewManager(DefaultQueueID, cfg.RequiredPlayers),
		engines:     make(map[string]*Engine),
		occupied:    make(map[queue.Tile]string),
		assignments: make(map[string]*Assignment),
		logger:      obslog.L(),
	}
}

func (r *Registry) AttachStore(s *store.Store)         { r.store = s }
func (r *Registry) AttachHistory(h history.Repository) { r.repo = h }
func (r *Registry) AttachCatalog(cat *msgcat.Catalog)  { r.cat = cat }
func (r *Registry) AttachEventSink(sink EventSink)     { r.sink = sink }
func (r *Registry) SetLogger(l *zap.Logger)            { r.logger = l }
func (r *Registry) Queue() *queue.Manager              { return r.queue }

// JoinQueue enqueues the player and, when the queue reaches the
// required size, forms a match on the spot. The joining player gets
// the assignment back immediately; everyone else discovers theirs via
// queue.status or the spectator feed.
func (r *Registry) JoinQueue(queueID, playerID, displayName string) (*QueueStatus, *Assignment, error) {
	if err := r.resolveQueue(queueID); err != nil {
		return nil, nil, err
	}
	entry, err := r.queue.Join(playerID, displayName)
	if err != nil {
		return nil, nil, err
	}
	formed, err := r.tryLaunch(entry.JoinedAt)
	if err != nil {
		return nil, nil, err
	}
	if !formed {
		return r.queueStatus(playerID), nil, nil
	}
	r.mu.RLock()
	a := r.assignments[playerID]
	r.mu.RUnlock()
	return r.queueStatus(playerID), a, nil
}

// resolveQueue validates a caller-supplied queue id. An empty id means
// the default queue.
func (r *Registry) resolveQueue(queueID string) error {
	if queueID == "" || queueID == r.queue.QueueID() {
		return nil
	}
	return ErrQueueNotFound
}

// tryLaunch forms and starts a match when the queue is full. Formation
// is all-or-nothing: queue entries are consumed only after a building
// tile is known to be open, so tile exhaustion leaves every entry
// queued and waiting.
func (r *Registry) tryLaunch(joinedAt time.Time) (bool, error) {
	r.mu.Lock()
	excluded := make(map[queue.Tile]struct{}, len(r.occupied))
	for t := range r.occupied {
		excluded[t] = struct{}{}
	}
	if !queue.HasOpenTile(r.cfg.Grid, excluded) {
		queued := r.queue.Size()
		r.mu.Unlock()
		if queued >= r.queue.RequiredPlayers() {
			r.logger.Warn("match_formation_deferred",
				zap.String("reason", "no open tile"),
				zap.Int("queued", queued),
			)
		}
		return false, nil
	}
	plan := r.queue.TryFormMatch()
	if plan == nil {
		r.mu.Unlock()
		return false, nil
	}
	tile, err := queue.SelectBuildingLocation(r.cfg.Grid, plan.Seed, excluded)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}

	eng, err := NewEngine(plan, r.cfg.Engine)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	eng.AttachCatalog(r.cat)
	eng.AttachEventSink(r.sink)
	if r.store != nil {
		eng.AttachSnapshotSink(&storeSink{store: r.store, logger: r.logger})
	}
	eng.OnEnd(r.matchEnded)
	eng.SetLogger(r.logger)

	r.occupied[tile] = plan.MatchID
	r.engines[plan.MatchID] = eng
	for _, seat := range plan.Seats {
		r.assignments[seat.PlayerID] = &Assignment{
			MatchID:            plan.MatchID,
			BuildingInstanceID: plan.BuildingInstanceID,
			Location:           tile,
			Seat:               seat.Seat,
			JoinedAt:           joinedAt,
		}
	}
	r.mu.Unlock()

	eng.Start()
	r.logger.Info("match_formed",
		zap.String("match_id", plan.MatchID),
		zap.String("building_instance_id", plan.BuildingInstanceID),
		zap.Int("players", len(plan.Seats)),
		zap.Int("tile_x", tile.X),
		zap.Int("tile_y", tile.Y),
	)
	return true, nil
}

func (r *Registry) LeaveQueue(queueID, playerID string) (bool, error) {
	if err := r.resolveQueue(queueID); err != nil {
		return false, err
	}
	return r.queue.Leave(playerID), nil
}

// QueueInfo reports queue size and, when a playerID is given, that
// player's 1-based position or pending assignment.
func (r *Registry) QueueInfo(queueID, playerID string) (*QueueStatus, *Assignment, error) {
	if err := r.resolveQueue(queueID); err != nil {
		return nil, nil, err
	}
	st := r.queueStatus(playerID)
	if playerID == "" {
		return st, nil, nil
	}
	r.mu.RLock()
	a := r.assignments[playerID]
	r.mu.RUnlock()
	if a != nil {
		if eng, ok := r.engineByID(a.MatchID); ok && eng.Snapshot().Phase != domain.PhaseEnded {
			return st, a, nil
		}
	}
	return st, nil, nil
}

func (r *Registry) queueStatus(playerID string) *QueueStatus {
	st := &QueueStatus{
		QueueID:         r.queue.QueueID(),
		Size:            r.queue.Size(),
		RequiredPlayers: r.queue.RequiredPlayers(),
		Status:          QueueStateWaiting,
	}
	if missing := st.RequiredPlayers - st.Size; missing > 0 {
		st.EstimatedStartSeconds = missing * estimatedSecondsPerMissingSeat
	} else {
		st.Status = QueueStateForming
	}
	if playerID != "" {
		st.Position = r.queue.Position(playerID)
	}
	return st
}

// Engine returns the live engine for the match id.
func (r *Registry) Engine(matchID string) (*Engine, error) {
	if eng, ok := r.engineByID(matchID); ok {
		return eng, nil
	}
	return nil, ErrMatchNotFound
}

func (r *Registry) engineByID(matchID string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eng, ok := r.engines[matchID]
	return eng, ok
}

// ListMatches snapshots every known match, newest first, filtered by
// status ACTIVE, ENDED or ALL.
func (r *Registry) ListMatches(status string, limit int) []*domain.Match {
	r.mu.RLock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, eng := range r.engines {
		engines = append(engines, eng)
	}
	r.mu.RUnlock()

	var out []*domain.Match
	for _, eng := range engines {
		m := eng.Snapshot()
		switch status {
		case "ACTIVE":
			if m.Phase == domain.PhaseEnded {
				continue
			}
		case "ENDED":
			if m.Phase != domain.PhaseEnded {
				continue
			}
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// matchEnded releases the building tile and records the result.
func (r *Registry) matchEnded(m *domain.Match) {
	r.mu.Lock()
	for tile, id := range r.occupied {
		if id == m.ID {
			delete(r.occupied, tile)
			break
		}
	}
	r.mu.Unlock()

	if r.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.repo.InsertMatch(ctx, history.FromMatch(m)); err != nil && err != history.ErrDuplicateMatch {
			r.logger.Error("record_match_failed", zap.String("match_id", m.ID), zap.Error(err))
		}
	}
}

// CloseAll stops every engine's scheduler. Called on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, eng := range r.engines {
		engines = append(engines, eng)
	}
	r.mu.RUnlock()
	for _, eng := range engines {
		eng.Close()
	}
}

// storeSink adapts the redis store to the engine's fire-and-forget
// snapshot interface. Persistence failures are logged, never allowed
// to block or fail a match mutation.
type storeSink struct {
	store  *store.Store
	logger *zap.Logger
}

func (s *storeSink) SaveSnapshot(m *domain.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.SaveSnapshot(ctx, m); err != nil {
		s.logger.Warn("snapshot_save_failed", zap.String("match_id", m.ID), zap.Error(err))
	}
}
