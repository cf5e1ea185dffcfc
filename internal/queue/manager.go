package queue

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgs = errors.New("invalid arguments")
	ErrNotQueued   = errors.New("player is not in the queue")
)

type Entry struct {
	PlayerID    string
	DisplayName string
	JoinedAt    time.Time

	// order preserves the original insertion order and breaks ties
	// between equal JoinedAt values. It never changes on re-join.
	order uint64
}

type SeatAssignment struct {
	Seat        int
	PlayerID    string
	DisplayName string
}

// MatchPlan is the atomic output of a formed queue: a full set of
// seated players plus the identity and seed of the match to create.
type MatchPlan struct {
	MatchID            string
	BuildingInstanceID string
	Seed               int64
	Seats              []SeatAssignment
}

// Manager holds join requests for one queue id until enough players
// accumulate to seat a match. All access is serialized on one mutex;
// formation either consumes the selected set entirely or nothing.
type Manager struct {
	mu       sync.Mutex
	queueID  string
	required int
	entries  map[string]*Entry
	nextOrd  uint64
	now      func() time.Time
}

func NewManager(queueID string, requiredPlayers int) *Manager {
	return &Manager{
		queueID:  queueID,
		required: requiredPlayers,
		entries:  make(map[string]*Entry),
		now:      time.Now,
	}
}

func (m *Manager) QueueID() string      { return m.queueID }
func (m *Manager) RequiredPlayers() int { return m.required }

// Join adds the player or, if already queued, updates the display name
// while keeping the original join time and insertion order.
func (m *Manager) Join(playerID, displayName string) (*Entry, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[playerID]; ok {
		if strings.TrimSpace(displayName) != "" {
			e.DisplayName = strings.TrimSpace(displayName)
		}
		cp := *e
		return &cp, nil
	}
	e := &Entry{
		PlayerID:    playerID,
		DisplayName: strings.TrimSpace(displayName),
		JoinedAt:    m.now(),
		order:       m.nextOrd,
	}
	m.nextOrd++
	if e.DisplayName == "" {
		e.DisplayName = playerID
	}
	m.entries[playerID] = e
	cp := *e
	return &cp, nil
}

func (m *Manager) Leave(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[playerID]; !ok {
		return false
	}
	delete(m.entries, playerID)
	return true
}

func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Position returns the player's 1-based rank in the selection order,
// or 0 when not queued.
func (m *Manager) Position(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := m.orderedLocked()
	for i, e := range ordered {
		if e.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

// TryFormMatch consumes the first requiredPlayers entries in selection
// order and returns a match plan, or nil while the queue is short.
func (m *Manager) TryFormMatch() *MatchPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) < m.required {
		return nil
	}
	ordered := m.orderedLocked()
	selected := ordered[:m.required]

	plan := &MatchPlan{
		MatchID:            uuid.NewString(),
		BuildingInstanceID: uuid.NewString(),
		Seed:               m.now().UnixNano(),
		Seats:              make([]SeatAssignment, 0, m.required),
	}
	for i, e := range selected {
		plan.Seats = append(plan.Seats, SeatAssignment{
			Seat:        i + 1,
			PlayerID:    e.PlayerID,
			DisplayName: e.DisplayName,
		})
		delete(m.entries, e.PlayerID)
	}
	return plan
}

// orderedLocked sorts by ascending JoinedAt with the original
// insertion order as the stable tie-break. Sorting by playerId would
// reorder equal join times incorrectly.
func (m *Manager) orderedLocked() []*Entry {
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].order < out[j].order
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }
