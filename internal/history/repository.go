package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

var ErrDuplicateMatch = errors.New("match result already recorded")

// PlayerResult is one seat's final line in a finished match.
type PlayerResult struct {
	PlayerID    string      `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Seat        int         `json:"seat"`
	Role        domain.Role `json:"role"`
	Survived    bool        `json:"survived"`
	Won         bool        `json:"won"`
}

// Record is the durable summary of a finished match.
type Record struct {
	ID          int64          `json:"id"`
	MatchID     string         `json:"matchId"`
	WinningTeam domain.Team    `json:"winningTeam"`
	Days        int            `json:"days"`
	Nights      int            `json:"nights"`
	Players     []PlayerResult `json:"players"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt"`
	Duration    time.Duration  `json:"-"`
	EventCount  int            `json:"eventCount"`
}

// FromMatch folds a finished match into its history record.
func FromMatch(m *domain.Match) *Record {
	rec := &Record{
		MatchID:     m.ID,
		WinningTeam: m.WinningTeam,
		Days:        m.DayNumber,
		Nights:      m.NightNumber,
		StartedAt:   m.StartedAt,
		EventCount:  len(m.Events),
	}
	if m.EndedAt != nil {
		rec.EndedAt = *m.EndedAt
		rec.Duration = rec.EndedAt.Sub(m.StartedAt)
	}
	for _, p := range m.Players {
		won := false
		switch m.WinningTeam {
		case domain.TeamWerewolves:
			won = p.IsWolf()
		case domain.TeamVillagers:
			won = !p.IsWolf()
		}
		rec.Players = append(rec.Players, PlayerResult{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Role:        p.Role,
			Survived:    p.Alive,
			Won:         won,
		})
	}
	return rec
}

type Repository interface {
	InsertMatch(ctx context.Context, rec *Record) (int64, error)
	RecentMatches(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

type repository struct {
	db *sql.DB
}

// NewRepository opens a Postgres-backed repository.
func NewRepository(databaseURL string) (Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &repository{db: db}, nil
}

func (r *repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *repository) InsertMatch(ctx context.Context, rec *Record) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil match record")
	}
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return 0, fmt.Errorf("marshal players: %w", err)
	}

	const query = `
		INSERT INTO wolf_matches (
			match_id,
			winning_team,
			days,
			nights,
			players,
			started_at,
			ended_at,
			duration_ms,
			event_count
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
		ON CONFLICT (match_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.MatchID,
		string(rec.WinningTeam),
		rec.Days,
		rec.Nights,
		players,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration.Milliseconds(),
		rec.EventCount,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateMatch
	}
	if err != nil {
		return 0, fmt.Errorf("insert match record: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentMatches(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			match_id,
			winning_team,
			days,
			nights,
			players,
			started_at,
			ended_at,
			duration_ms,
			event_count
		FROM wolf_matches
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select match records: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0, limit)
	for rows.Next() {
		var (
			rec         Record
			winningTeam string
			playersJSON []byte
			durationMS  sql.NullInt64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.MatchID,
			&winningTeam,
			&rec.Days,
			&rec.Nights,
			&playersJSON,
			&rec.StartedAt,
			&rec.EndedAt,
			&durationMS,
			&rec.EventCount,
		); err != nil {
			return nil, fmt.Errorf("scan match record: %w", err)
		}
		rec.WinningTeam = domain.Team(winningTeam)
		if durationMS.Valid {
			rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		if err := json.Unmarshal(playersJSON, &rec.Players); err != nil {
			return nil, fmt.Errorf("unmarshal players: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
