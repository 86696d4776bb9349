// Package rules decides move legality for standard chess over a board.Board.
// Every function is a pure function of its arguments; none keeps state between calls.
package rules

import "github.com/park285/cheese-arena/internal/board"

// Reason tags a rejected move.
type Reason string

const (
	ReasonOffBoard        Reason = "off-board"
	ReasonSameSquare      Reason = "same-square"
	ReasonNoPiece         Reason = "no-piece"
	ReasonNotYourPiece    Reason = "not-your-piece"
	ReasonFriendlyFire    Reason = "friendly-fire"
	ReasonPatternInvalid  Reason = "pattern-invalid"
	ReasonCastlingBlocked Reason = "castling-blocked"
	ReasonExposesOwnKing  Reason = "exposes-own-king"
)

// Verdict is the answer to a legality query.
type Verdict struct {
	Legal  bool
	Reason Reason
}

func legal() Verdict { return Verdict{Legal: true} }
func reject(r Reason) Verdict { return Verdict{Reason: r} }

// Move is a completed move, kept as the last move for en-passant.
type Move struct {
	From  board.Square
	To    board.Square
	Piece board.Piece
}

// IsDoublePawnPush reports whether m advanced a pawn two rows.
func (m *Move) IsDoublePawnPush() bool {
	if m == nil || m.Piece.Kind != board.Pawn {
		return false
	}
	return abs(m.To.Row-m.From.Row) == 2 && m.To.Col == m.From.Col
}

// Wing selects the castling side.
type Wing int

const (
	Kingside Wing = iota
	Queenside
)

func (w Wing) String() string {
	if w == Queenside {
		return "queenside"
	}
	return "kingside"
}

// SideRights tracks castling preconditions that have been permanently lost.
// Flags are monotonic: they are only ever set.
type SideRights struct {
	KingMoved          bool `json:"king_moved"`
	KingsideRookMoved  bool `json:"kingside_rook_moved"`
	QueensideRookMoved bool `json:"queenside_rook_moved"`
}

// Rights holds both sides' castling flags.
type Rights struct {
	White SideRights `json:"white"`
	Black SideRights `json:"black"`
}

// Side returns a copy of c's flags.
func (r Rights) Side(c board.Color) SideRights {
	if c == board.White {
		return r.White
	}
	return r.Black
}

func (r *Rights) side(c board.Color) *SideRights {
	if c == board.White {
		return &r.White
	}
	return &r.Black
}

// Record updates the flags for a move of p from one square to another.
// A king move clears that side's castling entirely; a rook leaving its corner, or
// any piece landing on an enemy rook's corner, clears the matching wing.
func (r *Rights) Record(p board.Piece, from, to board.Square) {
	if p.IsEmpty() {
		return
	}
	switch p.Kind {
	case board.King:
		r.side(p.Color).KingMoved = true
	case board.Rook:
		r.markCorner(p.Color, from)
	}
	r.markCorner(p.Color.Opponent(), to)
}

func (r *Rights) markCorner(c board.Color, sq board.Square) {
	if sq.Row != c.HomeRow() {
		return
	}
	switch sq.Col {
	case kingsideRookCol:
		r.side(c).KingsideRookMoved = true
	case queensideRookCol:
		r.side(c).QueensideRookMoved = true
	}
}

const (
	kingCol          = 4
	kingsideRookCol  = board.Size - 1
	queensideRookCol = 0
)

// NormalizePromotion maps a requested promotion to a legal piece kind, defaulting to queen.
func NormalizePromotion(k board.Kind) board.Kind {
	switch k {
	case board.Queen, board.Rook, board.Bishop, board.Knight:
		return k
	default:
		return board.Queen
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
