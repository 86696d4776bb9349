package session

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/obslog"
)

// ResultSink receives the summary of every finished session.
type ResultSink interface {
	SaveResult(ctx context.Context, sum *Summary) error
}

// LobbyIndex mirrors the set of sessions waiting for a second player.
type LobbyIndex interface {
	AddWaiting(ctx context.Context, w Waiting) error
	RemoveWaiting(ctx context.Context, gameID string) error
}

// RegistryConfig wires a Registry. Zero values are usable: no cap, no sinks, no lobby.
type RegistryConfig struct {
	MaxSessions  int
	Events       Events
	Sinks        []ResultSink
	Lobby        LobbyIndex
	ClockOptions []clock.Option
	SinkTimeout  time.Duration
}

// Ended pairs a session with the result of the transition that ended it.
type Ended struct {
	Session *Session
	Result  Result
}

// Registry owns every live session. Sessions leave the registry as soon as they
// complete; archival happens asynchronously through the configured sinks.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg   RegistryConfig
	newID func() (string, error)
	wg    sync.WaitGroup
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		newID:    gameID,
	}
}

// Create opens a session seated with creator as white.
func (r *Registry) Create(ctx context.Context, creator Player, tc clock.TimeControl) (*Session, error) {
	if strings.TrimSpace(creator.ID) == "" {
		return nil, ErrInvalidArgs
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}
	// 코드 충돌 시 최대 5회 재시도
	var id string
	for i := 0; i < 5; i++ {
		c, err := r.newID()
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		if _, taken := r.sessions[c]; !taken {
			id = c
			break
		}
	}
	if id == "" {
		r.mu.Unlock()
		return nil, ErrIDExhausted
	}
	opts := []Option{withFinishHook(r.finished), WithClock(r.cfg.ClockOptions...)}
	if r.cfg.Events != nil {
		opts = append(opts, WithEvents(r.cfg.Events))
	}
	s := New(id, tc, creator, opts...)
	r.sessions[id] = s
	r.mu.Unlock()

	// 로비 인덱스 실패는 대국 생성을 막지 않음
	if r.cfg.Lobby != nil {
		w := Waiting{ID: id, Creator: creator, TimeControl: tc.String(), CreatedAt: s.createdAt}
		if err := r.cfg.Lobby.AddWaiting(ctx, w); err != nil {
			obslog.L().Warn("lobby_add_error", zap.String("game_id", id), zap.Error(err))
		}
	}
	obslog.L().Info("session_create", zap.String("game_id", id), zap.String("creator_id", creator.ID), zap.String("time_control", tc.String()))
	return s, nil
}

// Join seats p as black in the session id and starts its clock.
func (r *Registry) Join(ctx context.Context, id string, p Player) (*Session, error) {
	s, ok := r.Lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := s.Join(p); err != nil {
		obslog.L().Warn("session_join_error", zap.String("game_id", id), zap.String("player_id", p.ID), zap.Error(err))
		return nil, err
	}
	if r.cfg.Lobby != nil {
		if err := r.cfg.Lobby.RemoveWaiting(ctx, id); err != nil {
			obslog.L().Warn("lobby_remove_error", zap.String("game_id", id), zap.Error(err))
		}
	}
	return s, nil
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	return s, ok
}

// Remove drops id from the registry without ending it. It reports whether id was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Resign ends the session in favour of playerID's opponent. Resigning before an
// opponent has joined abandons the game without a winner.
func (r *Registry) Resign(id, playerID string) (*Session, Result, error) {
	s, ok := r.Lookup(id)
	if !ok {
		return nil, Result{}, ErrSessionNotFound
	}
	color, seated := s.ColorOf(playerID)
	if !seated {
		return nil, Result{}, ErrNotSeated
	}
	res, ended := s.ForceEnd(r.opponentIfStarted(s, color), CauseResignation)
	if !ended {
		return s, res, ErrSessionOver
	}
	return s, res, nil
}

// Disconnect ends every unfinished session playerID is seated in. The opponent wins
// games in progress; waiting games end without a winner.
func (r *Registry) Disconnect(playerID string) []Ended {
	if playerID == "" {
		return nil
	}
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	var out []Ended
	for _, s := range candidates {
		color, seated := s.ColorOf(playerID)
		if !seated {
			continue
		}
		if res, ended := s.ForceEnd(r.opponentIfStarted(s, color), CauseDisconnect); ended {
			out = append(out, Ended{Session: s, Result: res})
		}
	}
	return out
}

func (r *Registry) opponentIfStarted(s *Session, color board.Color) *board.Color {
	if s.State() == StateInProgress {
		return Win(color.Opponent())
	}
	return nil
}

// Waiting lists sessions without a second player, oldest first.
func (r *Registry) Waiting() []Waiting {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	var out []Waiting
	for _, s := range list {
		snap := s.Snapshot()
		if snap.State != StateAwaiting {
			continue
		}
		out = append(out, Waiting{ID: snap.ID, Creator: snap.White, TimeControl: snap.TimeControl, CreatedAt: snap.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Wait blocks until pending sink deliveries have finished.
func (r *Registry) Wait() { r.wg.Wait() }

// finished is the session finish hook: it runs exactly once per session, after the
// session lock has been released.
func (r *Registry) finished(s *Session) {
	r.Remove(s.ID())
	sum := s.Summary()
	sum.ID = uuid.NewString()
	obslog.L().Info("session_finish",
		zap.String("game_id", sum.GameID),
		zap.String("cause", string(sum.Cause)),
		zap.String("winner", sum.Winner),
		zap.Int("moves", len(sum.Moves)),
	)

	if r.cfg.Lobby == nil && len(r.cfg.Sinks) == 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.cfg.Lobby != nil && sum.StartedAt.IsZero() {
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SinkTimeout)
			if err := r.cfg.Lobby.RemoveWaiting(ctx, sum.GameID); err != nil {
				obslog.L().Warn("lobby_remove_error", zap.String("game_id", sum.GameID), zap.Error(err))
			}
			cancel()
		}
		for i, sink := range r.cfg.Sinks {
			r.deliver(i, sink, sum)
		}
	}()
}

// deliver hands sum to one sink under its own SinkTimeout budget.
func (r *Registry) deliver(i int, sink ResultSink, sum *Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SinkTimeout)
	defer cancel()
	if err := sink.SaveResult(ctx, sum); err != nil {
		obslog.L().Warn("result_sink_error", zap.String("game_id", sum.GameID), zap.Int("sink", i), zap.Error(err))
	}
}

// gameID returns a random 9-character lowercase alphanumeric code.
func gameID() (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
