package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/werewolf-arena-go/internal/domain"
	"github.com/kapu/werewolf-arena-go/internal/engine"
	"github.com/kapu/werewolf-arena-go/internal/history"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
	"github.com/kapu/werewolf-arena-go/internal/queue"
	"github.com/kapu/werewolf-arena-go/pkg/wolfdto"
)

// Tool names accepted by Handle.
const (
	ToolQueueJoin     = "queue.join"
	ToolQueueLeave    = "queue.leave"
	ToolQueueStatus   = "queue.status"
	ToolMatchesList   = "matches.list"
	ToolMatchState    = "match.get_state"
	ToolMatchEvents   = "match.events.get"
	ToolReady         = "match.ready"
	ToolSayPublic     = "match.say_public"
	ToolVote          = "match.vote"
	ToolWolfChat      = "match.night.wolf_chat"
	ToolWolfKill      = "match.night.wolf_kill"
	ToolSeerInspect   = "match.night.seer_inspect"
	ToolDoctorProtect = "match.night.doctor_protect"
	ToolHistoryRecent = "history.recent"
	ToolAdminEndMatch = "admin.end_match"
)

// readTools share the per-caller read budget; mutations are not rate
// limited, they are guarded by phase and submission rules instead.
var readTools = map[string]bool{
	ToolQueueStatus:   true,
	ToolMatchesList:   true,
	ToolMatchState:    true,
	ToolMatchEvents:   true,
	ToolHistoryRecent: true,
}

const (
	defaultEventsLimit    = 100
	maxEventsLimit        = 500
	defaultListLimit      = 20
	defaultRecentMessages = 20
)

// Caller identifies one tool client per request.
type Caller struct {
	ID          string
	ObserverKey string
}

// IdempotencyStore persists completed responses keyed by caller and
// client-chosen key. *store.Store satisfies it.
type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, caller, key string) ([]byte, error)
	PutIdempotency(ctx context.Context, caller, key string, response []byte) (bool, error)
}

// Gateway is the single entry point for agent tool calls. It applies
// the read rate limit and idempotent replay, dispatches into the
// registry, and wraps every outcome in the uniform envelope.
type Gateway struct {
	reg         *engine.Registry
	repo        history.Repository
	limiter     *WindowLimiter
	idem        IdempotencyStore
	observerKey string
	logger      *zap.Logger
	now         func() time.Time
}

func New(reg *engine.Registry, limiter *WindowLimiter) *Gateway {
	return &Gateway{
		reg:     reg,
		limiter: limiter,
		logger:  obslog.L(),
		now:     time.Now,
	}
}

func (g *Gateway) AttachHistory(repo history.Repository) { g.repo = repo }
func (g *Gateway) AttachIdempotency(s IdempotencyStore)  { g.idem = s }
func (g *Gateway) SetObserverKey(key string)             { g.observerKey = key }
func (g *Gateway) SetLogger(l *zap.Logger)               { g.logger = l }
func (g *Gateway) SetClock(now func() time.Time)         { g.now = now }

// Handle runs one tool call and always returns a marshaled envelope.
// Replayed idempotency keys return the stored bytes without touching
// the match.
func (g *Gateway) Handle(ctx context.Context, caller Caller, tool string, raw []byte) []byte {
	if caller.ID == "" {
		return g.fail(wolfdto.CodeValidation, "caller id required", false)
	}
	if readTools[tool] && !g.limiter.Allow(caller.ID) {
		return g.fail(wolfdto.CodeRateLimited, "read budget exhausted, retry next window", true)
	}

	run, idemKey, err := g.dispatch(ctx, caller, tool, raw)
	if err != nil {
		return g.failErr(err)
	}

	if idemKey != "" && g.idem != nil {
		stored, err := g.idem.GetIdempotency(ctx, caller.ID, idemKey)
		if err != nil {
			g.logger.Warn("idempotency_lookup_failed", zap.String("tool", tool), zap.Error(err))
		} else if stored != nil {
			return stored
		}
	}

	resp, err := run()
	if err != nil {
		return g.failErr(err)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		g.logger.Error("response_marshal_failed", zap.String("tool", tool), zap.Error(err))
		return g.fail(wolfdto.CodeInternal, "response encoding failed", true)
	}
	if idemKey != "" && g.idem != nil {
		if _, err := g.idem.PutIdempotency(ctx, caller.ID, idemKey, out); err != nil {
			g.logger.Warn("idempotency_store_failed", zap.String("tool", tool), zap.Error(err))
		}
	}
	return out
}

type toolFunc func() (any, error)

// dispatch parses the request and returns the closure to run plus the
// caller's idempotency key, so replay can be checked before any state
// is touched.
func (g *Gateway) dispatch(ctx context.Context, caller Caller, tool string, raw []byte) (toolFunc, string, error) {
	switch tool {
	case ToolQueueJoin:
		var req wolfdto.QueueJoinRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			st, a, err := g.reg.JoinQueue(req.QueueID, caller.ID, req.DisplayName)
			if err != nil {
				return nil, err
			}
			return &wolfdto.QueueJoinResponse{
				Envelope:   g.ok(),
				Queue:      toQueueInfo(st),
				Assignment: toAssignment(a),
			}, nil
		}, req.IdempotencyKey, nil

	case ToolQueueLeave:
		var req wolfdto.QueueLeaveRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			removed, err := g.reg.LeaveQueue(req.QueueID, caller.ID)
			if err != nil {
				return nil, err
			}
			st, _, _ := g.reg.QueueInfo(req.QueueID, "")
			return &wolfdto.QueueLeaveResponse{
				Envelope: g.ok(),
				Removed:  removed,
				Queue:    toQueueInfo(st),
			}, nil
		}, req.IdempotencyKey, nil

	case ToolQueueStatus:
		var req wolfdto.QueueStatusRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			st, a, err := g.reg.QueueInfo(req.QueueID, caller.ID)
			if err != nil {
				return nil, err
			}
			return &wolfdto.QueueStatusResponse{
				Envelope:   g.ok(),
				Queue:      toQueueInfo(st),
				Assignment: toAssignment(a),
			}, nil
		}, "", nil

	case ToolMatchesList:
		var req wolfdto.MatchesListRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			limit := req.Limit
			if limit <= 0 {
				limit = defaultListLimit
			}
			matches := g.reg.ListMatches(req.Status, limit)
			out := make([]*wolfdto.MatchSummary, 0, len(matches))
			for _, m := range matches {
				out = append(out, toMatchSummary(m))
			}
			return &wolfdto.MatchesListResponse{Envelope: g.ok(), Matches: out}, nil
		}, "", nil

	case ToolMatchState:
		var req wolfdto.MatchStateRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) { return g.matchState(caller, &req) }, "", nil

	case ToolMatchEvents:
		var req wolfdto.MatchEventsRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) { return g.matchEvents(caller, &req) }, "", nil

	case ToolReady:
		var req wolfdto.ReadyRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.Ready(caller.ID)
			if err != nil {
				return nil, err
			}
			return &wolfdto.ReadyResponse{
				Envelope: g.ok(),
				EventID:  seq,
				Phase:    string(eng.Snapshot().Phase),
			}, nil
		}, req.IdempotencyKey, nil

	case ToolSayPublic:
		var req wolfdto.SayPublicRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.SayPublic(caller.ID, req.Kind, req.Text, req.ReplyTo)
			if err != nil {
				return nil, err
			}
			return &wolfdto.SayPublicResponse{Envelope: g.ok(), EventID: seq}, nil
		}, req.IdempotencyKey, nil

	case ToolVote:
		var req wolfdto.VoteRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.Vote(caller.ID, req.TargetID, req.Reason)
			if err != nil {
				return nil, err
			}
			return &wolfdto.VoteResponse{
				Envelope:  g.ok(),
				EventID:   seq,
				Abstained: req.TargetID == nil,
			}, nil
		}, req.IdempotencyKey, nil

	case ToolWolfChat:
		var req wolfdto.WolfChatRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.WolfChat(caller.ID, req.Text)
			if err != nil {
				return nil, err
			}
			return &wolfdto.WolfChatResponse{Envelope: g.ok(), EventID: seq}, nil
		}, req.IdempotencyKey, nil

	case ToolWolfKill:
		var req wolfdto.WolfKillRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.WolfKill(caller.ID, req.TargetID)
			if err != nil {
				return nil, err
			}
			return &wolfdto.WolfKillResponse{
				Envelope: g.ok(),
				EventID:  seq,
				TargetID: req.TargetID,
			}, nil
		}, req.IdempotencyKey, nil

	case ToolSeerInspect:
		var req wolfdto.SeerInspectRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			verdict, seq, err := eng.SeerInspect(caller.ID, req.TargetID)
			if err != nil {
				return nil, err
			}
			return &wolfdto.SeerInspectResponse{
				Envelope: g.ok(),
				EventID:  seq,
				Verdict:  verdict,
			}, nil
		}, req.IdempotencyKey, nil

	case ToolDoctorProtect:
		var req wolfdto.DoctorProtectRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			seq, err := eng.DoctorProtect(caller.ID, req.TargetID)
			if err != nil {
				return nil, err
			}
			return &wolfdto.DoctorProtectResponse{
				Envelope: g.ok(),
				EventID:  seq,
				TargetID: req.TargetID,
			}, nil
		}, req.IdempotencyKey, nil

	case ToolHistoryRecent:
		var req wolfdto.HistoryRecentRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			if g.repo == nil {
				return &wolfdto.HistoryRecentResponse{Envelope: g.ok(), Records: []wolfdto.MatchRecordDTO{}}, nil
			}
			recs, err := g.repo.RecentMatches(ctx, req.Limit)
			if err != nil {
				return nil, err
			}
			out := make([]wolfdto.MatchRecordDTO, 0, len(recs))
			for _, r := range recs {
				out = append(out, toRecordDTO(r))
			}
			return &wolfdto.HistoryRecentResponse{Envelope: g.ok(), Records: out}, nil
		}, "", nil

	case ToolAdminEndMatch:
		var req wolfdto.AdminEndMatchRequest
		if err := parse(raw, &req); err != nil {
			return nil, "", err
		}
		return func() (any, error) {
			if g.observerKey == "" || caller.ObserverKey != g.observerKey {
				return nil, engine.ErrForbidden
			}
			eng, err := g.reg.Engine(req.MatchID)
			if err != nil {
				return nil, err
			}
			if err := eng.AdminEnd(); err != nil {
				return nil, err
			}
			return &wolfdto.AdminEndMatchResponse{Envelope: g.ok(), Ended: true}, nil
		}, req.IdempotencyKey, nil
	}

	return nil, "", errUnknownTool
}

// matchState builds the caller's view of the match. The private "you"
// section is keyed strictly by the caller identity; a caller who is
// not seated gets the public view only.
func (g *Gateway) matchState(caller Caller, req *wolfdto.MatchStateRequest) (any, error) {
	eng, err := g.reg.Engine(req.MatchID)
	if err != nil {
		return nil, err
	}
	m, action := eng.View(caller.ID)

	resp := &wolfdto.MatchStateResponse{
		Envelope:     g.ok(),
		MatchSummary: toMatchSummary(m),
	}
	for _, p := range m.Players {
		resp.Players = append(resp.Players, wolfdto.PlayerPublic{
			PlayerID:     p.PlayerID,
			DisplayName:  p.DisplayName,
			Seat:         p.Seat,
			Alive:        p.Alive,
			Ready:        p.Ready,
			RevealedRole: string(p.RevealedRole),
		})
	}
	if req.IncludeRecentPublicMessages {
		resp.RecentPublicMessages = recentPublicMessages(m, req.RecentPublicMessagesLimit)
	}
	if self := m.PlayerByID(caller.ID); self != nil {
		view := &wolfdto.PlayerView{
			Role:        string(self.Role),
			Alive:       self.Alive,
			KnownWolves: engine.KnownWolves(m, self.PlayerID),
		}
		for _, rec := range engine.SeerHistory(m, self.PlayerID) {
			view.SeerHistory = append(view.SeerHistory, wolfdto.SeerVerdictDTO{
				Night:    rec.Night,
				TargetID: rec.TargetID,
				Verdict:  rec.Verdict,
			})
		}
		if action != nil {
			view.RequiredAction = &wolfdto.RequiredActionDTO{
				Type:             action.Type,
				AllowedTargets:   action.AllowedTargets,
				AlreadySubmitted: action.AlreadySubmitted,
			}
		}
		resp.You = view
	}
	return resp, nil
}

// recentPublicMessages collects the newest table messages in
// chronological order. These are PUBLIC events, so no viewer filtering
// applies.
func recentPublicMessages(m *domain.Match, limit int) []wolfdto.PublicMessageDTO {
	if limit <= 0 {
		limit = defaultRecentMessages
	}
	var out []wolfdto.PublicMessageDTO
	for i := len(m.Events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.Events[i]
		if ev.Type != domain.EventPublicMessage {
			continue
		}
		msg := wolfdto.PublicMessageDTO{EventID: ev.Seq, At: ev.At}
		if v, ok := ev.Payload["playerId"].(string); ok {
			msg.PlayerID = v
		}
		if v, ok := ev.Payload["kind"].(string); ok {
			msg.Kind = v
		}
		if v, ok := ev.Payload["text"].(string); ok {
			msg.Text = v
		}
		out = append(out, msg)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (g *Gateway) matchEvents(caller Caller, req *wolfdto.MatchEventsRequest) (any, error) {
	eng, err := g.reg.Engine(req.MatchID)
	if err != nil {
		return nil, err
	}
	m := eng.Snapshot()
	viewer := engine.ViewerContext{
		PlayerID:   caller.ID,
		Omniscient: g.observerKey != "" && caller.ObserverKey == g.observerKey,
	}
	visible := engine.FilterEvents(m, viewer)

	limit := req.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	resp := &wolfdto.EventsResponse{
		Envelope:    g.ok(),
		MatchID:     m.ID,
		Events:      []wolfdto.EventDTO{},
		LastEventID: req.AfterEventID,
	}
	for _, ev := range visible {
		if ev.Seq <= req.AfterEventID {
			continue
		}
		if len(resp.Events) >= limit {
			resp.HasMore = true
			break
		}
		resp.Events = append(resp.Events, wolfdto.EventDTO{
			EventID:    ev.Seq,
			At:         ev.At,
			Type:       string(ev.Type),
			Visibility: string(ev.Visibility),
			Payload:    ev.Payload,
		})
		resp.LastEventID = ev.Seq
	}
	return resp, nil
}

func (g *Gateway) ok() wolfdto.Envelope {
	return wolfdto.Envelope{OK: true, ServerTime: g.now().UTC()}
}

func (g *Gateway) fail(code, message string, retryable bool) []byte {
	env := wolfdto.Envelope{
		ServerTime: g.now().UTC(),
		Error:      &wolfdto.DomainError{Code: code, Message: message, Retryable: retryable},
	}
	out, _ := json.Marshal(env)
	return out
}

func (g *Gateway) failErr(err error) []byte {
	de := mapError(err)
	return g.fail(de.Code, de.Message, de.Retryable)
}

var (
	errBadRequest  = errors.New("malformed request body")
	errUnknownTool = errors.New("unknown tool")
)

func parse(raw []byte, dst any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadRequest
	}
	return nil
}

// mapError translates internal sentinels into the stable wire codes.
func mapError(err error) *wolfdto.DomainError {
	code := wolfdto.CodeInternal
	retryable := true
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, engine.ErrInvalidArgs),
		errors.Is(err, engine.ErrInvalidTarget),
		errors.Is(err, queue.ErrInvalidArgs):
		code, retryable = wolfdto.CodeValidation, false
	case errors.Is(err, errUnknownTool),
		errors.Is(err, engine.ErrMatchNotFound),
		errors.Is(err, engine.ErrQueueNotFound),
		errors.Is(err, queue.ErrNotQueued):
		code, retryable = wolfdto.CodeNotFound, false
	case errors.Is(err, engine.ErrInvalidPhase),
		errors.Is(err, engine.ErrMatchEnded):
		code, retryable = wolfdto.CodeInvalidPhase, false
	case errors.Is(err, engine.ErrForbiddenRole),
		errors.Is(err, engine.ErrForbidden),
		errors.Is(err, engine.ErrNotSeated):
		code, retryable = wolfdto.CodeForbiddenRole, false
	case errors.Is(err, engine.ErrDeadPlayer):
		code, retryable = wolfdto.CodeNotYourTurn, false
	case errors.Is(err, engine.ErrAlreadySubmitted):
		code, retryable = wolfdto.CodeAlreadySubmitted, false
	}
	return &wolfdto.DomainError{Code: code, Message: err.Error(), Retryable: retryable}
}

func toQueueInfo(st *engine.QueueStatus) *wolfdto.QueueInfo {
	if st == nil {
		return nil
	}
	return &wolfdto.QueueInfo{
		QueueID:               st.QueueID,
		Size:                  st.Size,
		RequiredPlayers:       st.RequiredPlayers,
		Position:              st.Position,
		Status:                st.Status,
		EstimatedStartSeconds: st.EstimatedStartSeconds,
	}
}

func toAssignment(a *engine.Assignment) *wolfdto.MatchAssignment {
	if a == nil {
		return nil
	}
	return &wolfdto.MatchAssignment{
		MatchID:            a.MatchID,
		BuildingInstanceID: a.BuildingInstanceID,
		LocationX:          a.Location.X,
		LocationY:          a.Location.Y,
		Seat:               a.Seat,
		JoinedAt:           a.JoinedAt,
	}
}

func toMatchSummary(m *domain.Match) *wolfdto.MatchSummary {
	return &wolfdto.MatchSummary{
		MatchID:            m.ID,
		BuildingInstanceID: m.BuildingInstanceID,
		Phase:              string(m.Phase),
		DayNumber:          m.DayNumber,
		NightNumber:        m.NightNumber,
		PhaseEndsAt:        m.PhaseEndsAt,
		AliveCount:         m.AliveCount(),
		WinningTeam:        string(m.WinningTeam),
		PublicSummary:      m.PublicSummary,
		StartedAt:          m.StartedAt,
		EndedAt:            m.EndedAt,
	}
}

func toRecordDTO(r *history.Record) wolfdto.MatchRecordDTO {
	dto := wolfdto.MatchRecordDTO{
		MatchID:     r.MatchID,
		WinningTeam: string(r.WinningTeam),
		Days:        r.Days,
		Nights:      r.Nights,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		DurationMS:  r.Duration.Milliseconds(),
		EventCount:  r.EventCount,
	}
	for _, p := range r.Players {
		dto.Players = append(dto.Players, wolfdto.PlayerResultDTO{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Role:        string(p.Role),
			Survived:    p.Survived,
			Won:         p.Won,
		})
	}
	return dto
}
