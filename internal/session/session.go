// Package session runs individual games: seating, move submission, terminal detection
// and the clock, plus the Registry that owns all live sessions of a process.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
)

// Events receives output that is not a reply to a submission: clock ticks and
// endings decided by the clock.
type Events interface {
	Tick(gameID string, white, black time.Duration)
	Expired(gameID string, res Result)
}

// Option customises a Session.
type Option func(*Session)

// WithEvents routes ticks and clock-driven endings to e.
func WithEvents(e Events) Option { return func(s *Session) { s.events = e } }

// WithClock passes options to the session's clock.
func WithClock(opts ...clock.Option) Option {
	return func(s *Session) { s.clockOpts = append(s.clockOpts, opts...) }
}

// WithNow replaces the time source used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func withFinishHook(fn func(*Session)) Option { return func(s *Session) { s.onFinish = fn } }

// Session owns one game. All transitions are serialised by mu; the clock is only
// touched with mu held, never the other way round.
type Session struct {
	id        string
	tc        clock.TimeControl
	createdAt time.Time

	mu        sync.Mutex
	state     State
	board     board.Board
	rights    rules.Rights
	last      *rules.Move
	turn      board.Color
	history   []MoveRecord
	white     Player
	black     Player
	clock     *clock.Clock
	terminal  *Terminal
	startedAt time.Time
	endedAt   time.Time

	events    Events
	onFinish  func(*Session)
	clockOpts []clock.Option
	now       func() time.Time
}

// New creates a session awaiting its second player, with creator seated as white.
func New(id string, tc clock.TimeControl, creator Player, opts ...Option) *Session {
	s := &Session{
		id:    id,
		tc:    tc,
		state: StateAwaiting,
		board: board.Standard(),
		turn:  board.White,
		white: creator,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.clock = clock.New(tc, s.clockOpts...)
	return s
}

func (s *Session) ID() string                     { return s.id }
func (s *Session) TimeControl() clock.TimeControl { return s.tc }

// Join seats p as black and starts the clock.
func (s *Session) Join(p Player) error {
	if p.ID == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCompleted:
		return ErrSessionOver
	case StateInProgress:
		return ErrSessionFull
	}
	if p.ID == s.white.ID {
		return ErrAlreadySeated
	}
	s.black = p
	s.state = StateInProgress
	s.startedAt = s.now()
	s.clock.Start(s.tick, s.expire)
	obslog.L().Info("session_start",
		zap.String("game_id", s.id),
		zap.String("white_id", s.white.ID),
		zap.String("black_id", s.black.ID),
		zap.String("time_control", s.tc.String()),
	)
	return nil
}

// SubmitMove validates and applies a move proposed by playerID. Rejections never
// change state. A move that arrives after the mover's time is exhausted ends the
// game on time instead.
func (s *Session) SubmitMove(playerID string, from, to board.Square, promotion board.Kind) Result {
	s.mu.Lock()
	res, finished := s.submitLocked(playerID, from, to, promotion)
	s.mu.Unlock()
	if finished {
		s.finished()
	}
	return res
}

func (s *Session) submitLocked(playerID string, from, to board.Square, promotion board.Kind) (Result, bool) {
	switch s.state {
	case StateCompleted:
		res := rejected(ReasonGameOver)
		res.Terminal = s.terminal
		return res, false
	case StateAwaiting:
		return rejected(ReasonNotStarted), false
	}
	if flagged, ok := s.clock.Flagged(); ok {
		finished := s.finishLocked(Terminal{Winner: Win(flagged.Opponent()), Cause: CauseTimeout})
		res := rejected(ReasonGameOver)
		res.Terminal = s.terminal
		return res, finished
	}

	color, seated := s.colorOfLocked(playerID)
	if !seated || color != s.turn {
		return rejected(ReasonNotYourTurn), false
	}
	if !from.InBounds() || !to.InBounds() {
		return rejected(ReasonOffBoard), false
	}
	mover := s.board.At(from)
	if mover.IsEmpty() {
		return rejected(ReasonNoPiece), false
	}
	if mover.Color != color {
		return rejected(ReasonNotYourPiece), false
	}
	if v := rules.IsLegalMove(&s.board, s.rights, s.last, from, to, color); !v.Legal {
		return rejected(Reason(v.Reason)), false
	}

	applied := rules.ApplyMove(&s.board, from, to, promotion)
	s.rights.Record(mover, from, to)
	s.last = &rules.Move{From: from, To: to, Piece: mover}
	rec := MoveRecord{
		Ply:       len(s.history) + 1,
		From:      from,
		To:        to,
		Piece:     mover,
		Captured:  applied.Captured,
		Promotion: applied.Promotion,
		Castled:   applied.Castled,
		EnPassant: applied.EnPassant,
		At:        s.now(),
	}
	s.history = append(s.history, rec)

	s.clock.RecordMove(color)
	s.turn = color.Opponent()

	check := rules.IsInCheck(&s.board, s.turn)
	finished := false
	if !rules.HasAnyLegalMove(&s.board, s.rights, s.last, s.turn) {
		t := Terminal{Cause: CauseStalemate}
		if check {
			t = Terminal{Winner: Win(color), Cause: CauseCheckmate}
		}
		finished = s.finishLocked(t)
	}

	obslog.L().Debug("session_move",
		zap.String("game_id", s.id),
		zap.String("color", string(color)),
		zap.String("move", rec.Coord()),
		zap.Bool("check", check),
	)

	res := s.resultLocked()
	res.Accepted = true
	res.Move = &rec
	res.Check = check
	return res, finished
}

// ForceEnd completes the session with the given outcome, for events the session
// cannot infer itself (resignation, disconnect). On an already completed session it
// changes nothing and reports ended=false.
func (s *Session) ForceEnd(winner *board.Color, cause Cause) (res Result, ended bool) {
	s.mu.Lock()
	ended = s.finishLocked(Terminal{Winner: winner, Cause: cause})
	res = s.resultLocked()
	s.mu.Unlock()
	if ended {
		s.finished()
	}
	return res, ended
}

func (s *Session) tick(white, black time.Duration) {
	if s.events != nil {
		s.events.Tick(s.id, white, black)
	}
}

// expire runs on the clock goroutine when a side's time reaches zero.
func (s *Session) expire(flagged board.Color) {
	s.mu.Lock()
	ended := s.finishLocked(Terminal{Winner: Win(flagged.Opponent()), Cause: CauseTimeout})
	res := s.resultLocked()
	s.mu.Unlock()
	if !ended {
		return
	}
	if s.events != nil {
		s.events.Expired(s.id, res)
	}
	s.finished()
}

// finishLocked performs the single transition to completed. It reports whether this
// call made the transition.
func (s *Session) finishLocked(t Terminal) bool {
	if s.state == StateCompleted {
		return false
	}
	s.state = StateCompleted
	s.terminal = &t
	s.endedAt = s.now()
	s.clock.Stop()
	return true
}

func (s *Session) finished() {
	if s.onFinish != nil {
		s.onFinish(s)
	}
}

func (s *Session) resultLocked() Result {
	white, black := s.clock.Times()
	return Result{
		Board:     s.board.Grid(),
		Turn:      s.turn,
		WhiteTime: white,
		BlackTime: black,
		Check:     rules.IsInCheck(&s.board, s.turn),
		Terminal:  s.terminal,
	}
}

// ColorOf returns the seat of playerID.
func (s *Session) ColorOf(playerID string) (board.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorOfLocked(playerID)
}

func (s *Session) colorOfLocked(playerID string) (board.Color, bool) {
	switch {
	case playerID == "":
		return "", false
	case playerID == s.white.ID:
		return board.White, true
	case playerID == s.black.ID:
		return board.Black, true
	default:
		return "", false
	}
}

// Players returns both seats; black is zero while awaiting.
func (s *Session) Players() (white, black Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.white, s.black
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Terminal returns the outcome, or nil while the game is not over.
func (s *Session) Terminal() *Terminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// History returns a copy of the move history.
func (s *Session) History() []MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MoveRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	white, black := s.clock.Times()
	return Snapshot{
		ID:          s.id,
		State:       s.state,
		TimeControl: s.tc.String(),
		White:       s.white,
		Black:       s.black,
		Board:       s.board.Grid(),
		Turn:        s.turn,
		WhiteTime:   white,
		BlackTime:   black,
		Check:       rules.IsInCheck(&s.board, s.turn),
		Moves:       len(s.history),
		Terminal:    s.terminal,
		CreatedAt:   s.createdAt,
	}
}

// Summary builds the archive record. It is meaningful once the session completed.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	moves := make([]string, 0, len(s.history))
	for _, m := range s.history {
		moves = append(moves, m.Coord())
	}
	sum := &Summary{
		GameID:      s.id,
		White:       s.white,
		Black:       s.black,
		TimeControl: s.tc.String(),
		Moves:       moves,
		CreatedAt:   s.createdAt,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
	}
	if s.terminal != nil {
		sum.Cause = s.terminal.Cause
		sum.Winner = s.terminal.WinnerName()
	}
	return sum
}
