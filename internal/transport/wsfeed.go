package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/werewolf-arena-go/internal/domain"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
)

const subscriberBuffer = 64

// FeedEvent is the wire shape of one pushed event.
type FeedEvent struct {
	MatchID    string         `json:"matchId"`
	EventID    int64          `json:"eventId"`
	At         time.Time      `json:"at"`
	Type       string         `json:"type"`
	Visibility string         `json:"visibility"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type subscriber struct {
	ch         chan *FeedEvent
	omniscient bool
}

// Feed fans committed match events out to websocket spectators. It
// satisfies the engine's EventSink. Plain spectators receive PUBLIC
// events only; a connection presenting the observer key sees all.
type Feed struct {
	mu          sync.RWMutex
	subs        map[string]map[*subscriber]struct{} // matchID → set
	observerKey string
	logger      *zap.Logger
}

func NewFeed(observerKey string) *Feed {
	return &Feed{
		subs:        make(map[string]map[*subscriber]struct{}),
		observerKey: observerKey,
		logger:      obslog.L(),
	}
}

// Publish delivers one committed event to every subscriber allowed to
// see it. Subscribers that cannot keep up are dropped rather than
// allowed to stall the engine.
func (f *Feed) Publish(matchID string, ev *domain.Event) {
	f.mu.RLock()
	set := f.subs[matchID]
	var stale []*subscriber
	for sub := range set {
		if ev.Visibility != domain.VisibilityPublic && !sub.omniscient {
			continue
		}
		fe := &FeedEvent{
			MatchID:    matchID,
			EventID:    ev.Seq,
			At:         ev.At,
			Type:       string(ev.Type),
			Visibility: string(ev.Visibility),
			Payload:    ev.Payload,
		}
		select {
		case sub.ch <- fe:
		default:
			stale = append(stale, sub)
		}
	}
	f.mu.RUnlock()
	for _, sub := range stale {
		f.unsubscribe(matchID, sub)
	}
}

func (f *Feed) subscribe(matchID string, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.subs[matchID]
	if !ok {
		set = make(map[*subscriber]struct{})
		f.subs[matchID] = set
	}
	set[sub] = struct{}{}
}

func (f *Feed) unsubscribe(matchID string, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[matchID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.ch)
			if len(set) == 0 {
				delete(f.subs, matchID)
			}
		}
	}
}

// ServeHTTP upgrades GET /feed/<matchID> to a websocket and streams
// events until the client goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimPrefix(r.URL.Path, "/feed/")
	if matchID == "" || matchID == r.URL.Path {
		http.NotFound(w, r)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		f.logger.Warn("ws_accept_failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}

	sub := &subscriber{
		ch:         make(chan *FeedEvent, subscriberBuffer),
		omniscient: f.observerKey != "" && r.Header.Get("X-Observer-Key") == f.observerKey,
	}
	f.subscribe(matchID, sub)
	defer f.unsubscribe(matchID, sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutdown")
			return
		case fe, ok := <-sub.ch:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "subscriber dropped")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, fe)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		}
	}
}

// FeedServer hosts the spectator feed on its own listener. The
// websocket library upgrades through net/http, so the feed cannot
// share the fasthttp tool listener.
type FeedServer struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewFeedServer(addr string, feed *Feed) *FeedServer {
	mux := http.NewServeMux()
	mux.Handle("/feed/", feed)
	return &FeedServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // long-lived streams
		},
		logger: obslog.L(),
	}
}

func (s *FeedServer) Start() error {
	s.logger.Info("ws_feed_listening", zap.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *FeedServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
