package rules

import "github.com/park285/cheese-arena/internal/board"

// IsLegalMove validates moving the piece on from to to for side turn.
// The check-safety test runs on a scratch copy; b is never modified.
func IsLegalMove(b *board.Board, rights Rights, last *Move, from, to board.Square, turn board.Color) Verdict {
	if !from.InBounds() || !to.InBounds() {
		return reject(ReasonOffBoard)
	}
	if from == to {
		return reject(ReasonSameSquare)
	}
	mover := b.At(from)
	if mover.IsEmpty() {
		return reject(ReasonNoPiece)
	}
	if mover.Color != turn {
		return reject(ReasonNotYourPiece)
	}
	if target := b.At(to); !target.IsEmpty() && target.Color == mover.Color {
		return reject(ReasonFriendlyFire)
	}

	if wing, ok := castlingWing(mover, from, to); ok {
		if !CanCastle(b, rights, mover.Color, wing) {
			return reject(ReasonCastlingBlocked)
		}
	} else if !pseudoLegal(b, mover, from, to, last) {
		return reject(ReasonPatternInvalid)
	}

	scratch := *b
	ApplyMove(&scratch, from, to, board.Queen)
	if IsInCheck(&scratch, mover.Color) {
		return reject(ReasonExposesOwnKing)
	}
	return legal()
}

// Candidates lists the destinations worth testing for the piece on from.
// It is the replaceable part of legal-move enumeration.
type Candidates func(b *board.Board, from board.Square) []board.Square

var allSquares = func() []board.Square {
	out := make([]board.Square, 0, board.Size*board.Size)
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			out = append(out, board.Sq(r, c))
		}
	}
	return out
}()

// EverySquare is the exhaustive strategy: every square on the board.
func EverySquare(*board.Board, board.Square) []board.Square { return allSquares }

// HasAnyLegalMove reports whether color has at least one legal move.
// Every candidate goes through the full IsLegalMove path; nothing is cached.
func HasAnyLegalMove(b *board.Board, rights Rights, last *Move, color board.Color) bool {
	return HasAnyLegalMoveWith(EverySquare, b, rights, last, color)
}

// HasAnyLegalMoveWith is HasAnyLegalMove with a custom candidate strategy.
func HasAnyLegalMoveWith(candidates Candidates, b *board.Board, rights Rights, last *Move, color board.Color) bool {
	for _, from := range b.Squares(color) {
		for _, to := range candidates(b, from) {
			if IsLegalMove(b, rights, last, from, to, color).Legal {
				return true
			}
		}
	}
	return false
}

// LegalMoves enumerates every legal move for color in row-major order of origin.
func LegalMoves(b *board.Board, rights Rights, last *Move, color board.Color) []Move {
	var out []Move
	for _, from := range b.Squares(color) {
		for _, to := range allSquares {
			if IsLegalMove(b, rights, last, from, to, color).Legal {
				out = append(out, Move{From: from, To: to, Piece: b.At(from)})
			}
		}
	}
	return out
}

// Applied describes what ApplyMove did besides relocating the mover.
type Applied struct {
	Piece      board.Piece
	Captured   board.Piece
	CapturedAt board.Square
	Castled    bool
	Wing       Wing
	EnPassant  bool
	Promotion  board.Kind
}

// ApplyMove performs a move that has already been judged legal: castling moves the
// rook beside the king, en-passant removes the passed pawn, and a pawn reaching the
// far rank becomes the requested piece (queen when the request is not a valid choice).
func ApplyMove(b *board.Board, from, to board.Square, promotion board.Kind) Applied {
	p := b.At(from)
	out := Applied{Piece: p, Captured: b.At(to), CapturedAt: to}
	if p.IsEmpty() {
		return out
	}

	if wing, ok := castlingWing(p, from, to); ok {
		rookFrom := board.Sq(from.Row, kingsideRookCol)
		if wing == Queenside {
			rookFrom = board.Sq(from.Row, queensideRookCol)
		}
		rookTo := to.Offset(0, -sign(to.Col-from.Col))
		b.Set(to, p)
		b.Set(from, board.Empty)
		b.Set(rookTo, b.At(rookFrom))
		b.Set(rookFrom, board.Empty)
		out.Castled, out.Wing = true, wing
		return out
	}

	if p.Kind == board.Pawn {
		if from.Col != to.Col && out.Captured.IsEmpty() {
			passed := to.Offset(-p.Color.Forward(), 0)
			out.Captured, out.CapturedAt, out.EnPassant = b.At(passed), passed, true
			b.Set(passed, board.Empty)
		}
		if to.Row == p.Color.PromotionRow() {
			kind := NormalizePromotion(promotion)
			b.Set(to, board.P(p.Color, kind))
			b.Set(from, board.Empty)
			out.Promotion = kind
			return out
		}
	}

	b.Set(to, p)
	b.Set(from, board.Empty)
	return out
}
