package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// AppConfig carries everything the match server reads from the
// environment. Phase durations are seconds; zero keeps the default.
type AppConfig struct {
	HTTPAddr string
	WSAddr   string

	RedisURL    string
	DatabaseURL string

	ObserverKey string

	RequiredPlayers int
	WolfCounts      map[int]int

	LobbyTimeout      time.Duration
	NightDuration     time.Duration
	AnnounceDuration  time.Duration
	OpeningDuration   time.Duration
	DiscussDuration   time.Duration
	VoteDuration      time.Duration
	ResolutionPause   time.Duration
	SnapshotTTL       time.Duration
	IdempotencyTTL    time.Duration
	RateLimitWindow   time.Duration
	RateLimitMaxReads int

	MapWidth  int
	MapHeight int

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:          ":8080",
		WSAddr:            ":8081",
		RequiredPlayers:   8,
		WolfCounts:        domain.DefaultWolfCounts(),
		LobbyTimeout:      90 * time.Second,
		NightDuration:     60 * time.Second,
		AnnounceDuration:  5 * time.Second,
		OpeningDuration:   45 * time.Second,
		DiscussDuration:   120 * time.Second,
		VoteDuration:      60 * time.Second,
		ResolutionPause:   5 * time.Second,
		SnapshotTTL:       24 * time.Hour,
		IdempotencyTTL:    time.Hour,
		RateLimitWindow:   time.Second,
		RateLimitMaxReads: 2,
		MapWidth:          32,
		MapHeight:         32,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ObserverKey = strings.TrimSpace(os.Getenv("OBSERVER_KEY"))
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("REQUIRED_PLAYERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequiredPlayers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WOLF_COUNTS")); v != "" {
		// e.g. "8:2,10:3"
		table, err := parseWolfCounts(v)
		if err != nil {
			return nil, err
		}
		for k, n := range table {
			cfg.WolfCounts[k] = n
		}
	}

	secs := func(env string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = time.Duration(n) * time.Second
			}
		}
	}
	secs("PHASE_LOBBY_SECONDS", &cfg.LobbyTimeout)
	secs("PHASE_NIGHT_SECONDS", &cfg.NightDuration)
	secs("PHASE_ANNOUNCE_SECONDS", &cfg.AnnounceDuration)
	secs("PHASE_OPENING_SECONDS", &cfg.OpeningDuration)
	secs("PHASE_DISCUSSION_SECONDS", &cfg.DiscussDuration)
	secs("PHASE_VOTE_SECONDS", &cfg.VoteDuration)
	secs("PHASE_RESOLUTION_SECONDS", &cfg.ResolutionPause)
	secs("IDEMPOTENCY_TTL_SECONDS", &cfg.IdempotencyTTL)

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitWindow = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_READS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitMaxReads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAP_WIDTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MapWidth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAP_HEIGHT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MapHeight = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RequiredPlayers < 5 {
		return nil, errors.New("REQUIRED_PLAYERS must be at least 5")
	}
	return cfg, nil
}

func parseWolfCounts(v string) (map[int]int, error) {
	out := make(map[int]int)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, errors.New("WOLF_COUNTS entries must be players:wolves")
		}
		players, err1 := strconv.Atoi(strings.TrimSpace(kv[0]))
		wolves, err2 := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err1 != nil || err2 != nil || players <= 0 || wolves <= 0 {
			return nil, errors.New("WOLF_COUNTS entries must be positive integers")
		}
		out[players] = wolves
	}
	return out, nil
}
