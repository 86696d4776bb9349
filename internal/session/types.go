package session

import (
	"time"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/rules"
)

// State is a session's lifecycle stage. Transitions only move forward.
type State string

const (
	StateAwaiting   State = "awaiting_second_player"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Cause explains how a session ended.
type Cause string

const (
	CauseCheckmate   Cause = "checkmate"
	CauseStalemate   Cause = "stalemate"
	CauseTimeout     Cause = "timeout"
	CauseResignation Cause = "resignation"
	CauseDisconnect  Cause = "disconnect"
)

// Terminal is the immutable outcome of a completed session. A nil Winner means no winner.
type Terminal struct {
	Winner *board.Color `json:"winner"`
	Cause  Cause        `json:"cause"`
}

// WinnerName returns "white", "black" or "" when nobody won.
func (t *Terminal) WinnerName() string {
	if t == nil || t.Winner == nil {
		return ""
	}
	return string(*t.Winner)
}

// Win returns a winner pointer for c.
func Win(c board.Color) *board.Color { return &c }

// Reason tags a rejected submission. Rule reasons from the engine pass through verbatim.
type Reason string

const (
	ReasonGameOver     Reason = "game-over"
	ReasonNotStarted   Reason = "not-started"
	ReasonNotYourTurn  Reason = "not-your-turn"
	ReasonNoPiece      Reason = "no-piece"
	ReasonNotYourPiece Reason = "not-your-piece"

	ReasonOffBoard        = Reason(rules.ReasonOffBoard)
	ReasonSameSquare      = Reason(rules.ReasonSameSquare)
	ReasonFriendlyFire    = Reason(rules.ReasonFriendlyFire)
	ReasonPatternInvalid  = Reason(rules.ReasonPatternInvalid)
	ReasonCastlingBlocked = Reason(rules.ReasonCastlingBlocked)
	ReasonExposesOwnKing  = Reason(rules.ReasonExposesOwnKing)
)

// Player is a seated participant. ID is the stable identity used to authorise moves.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// MoveRecord is one entry of the append-only move history.
type MoveRecord struct {
	Ply       int          `json:"ply"`
	From      board.Square `json:"from"`
	To        board.Square `json:"to"`
	Piece     board.Piece  `json:"-"`
	Captured  board.Piece  `json:"-"`
	Promotion board.Kind   `json:"-"`
	Castled   bool         `json:"castled,omitempty"`
	EnPassant bool         `json:"en_passant,omitempty"`
	At        time.Time    `json:"at"`
}

// Coord renders the move as from-to coordinates with an optional promotion letter,
// e.g. "e2e4" or "e7e8q".
func (m MoveRecord) Coord() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != board.None {
		s += string(byte(m.Promotion))
	}
	return s
}

// Result describes the outcome of one submission. Rejections carry only Reason
// (and Terminal when the game is already over).
type Result struct {
	Accepted  bool
	Reason    Reason
	Move      *MoveRecord
	Board     board.Grid
	Turn      board.Color
	WhiteTime time.Duration
	BlackTime time.Duration
	Check     bool
	Terminal  *Terminal
}

func rejected(r Reason) Result { return Result{Reason: r} }

// Snapshot is a consistent read of a session.
type Snapshot struct {
	ID          string
	State       State
	TimeControl string
	White       Player
	Black       Player
	Board       board.Grid
	Turn        board.Color
	WhiteTime   time.Duration
	BlackTime   time.Duration
	Check       bool
	Moves       int
	Terminal    *Terminal
	CreatedAt   time.Time
}

// Summary is the archived record of a finished session.
type Summary struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	White       Player    `json:"white"`
	Black       Player    `json:"black"`
	TimeControl string    `json:"time_control"`
	Cause       Cause     `json:"cause"`
	Winner      string    `json:"winner,omitempty"`
	Moves       []string  `json:"moves"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	EndedAt     time.Time `json:"ended_at"`
}

// Waiting describes a session still looking for its second player.
type Waiting struct {
	ID          string    `json:"id"`
	Creator     Player    `json:"creator"`
	TimeControl string    `json:"time_control"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrSessionNotFound = errf("game not found")
	ErrSessionFull     = errf("game is full")
	ErrSessionOver     = errf("game is over")
	ErrAlreadySeated   = errf("player already seated in this game")
	ErrNotSeated       = errf("player is not seated in this game")
	ErrTooManySessions = errf("too many concurrent games")
	ErrIDExhausted     = errf("failed to allocate game id")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
