package rules

import "github.com/park285/cheese-arena/internal/board"

// IsSquareAttacked reports whether any piece of side by could move onto sq by
// pattern alone. It never asks whether that move would expose by's own king.
func IsSquareAttacked(b *board.Board, sq board.Square, by board.Color) bool {
	for _, from := range b.Squares(by) {
		if reaches(b, b.At(from), from, sq) {
			return true
		}
	}
	return false
}

// IsInCheck reports whether color's king is attacked. A board without that king
// is never in check.
func IsInCheck(b *board.Board, color board.Color) bool {
	king, ok := b.Find(board.P(color, board.King))
	if !ok {
		return false
	}
	return IsSquareAttacked(b, king, color.Opponent())
}

// CanCastle evaluates castling for color on the given wing against the live board.
func CanCastle(b *board.Board, rights Rights, color board.Color, wing Wing) bool {
	flags := rights.Side(color)
	if flags.KingMoved {
		return false
	}
	row := color.HomeRow()
	kingSq := board.Sq(row, kingCol)
	if !b.At(kingSq).Is(color, board.King) {
		return false
	}

	var rookCol int
	var between, transit []int
	switch wing {
	case Kingside:
		if flags.KingsideRookMoved {
			return false
		}
		rookCol, between, transit = kingsideRookCol, []int{5, 6}, []int{5, 6}
	case Queenside:
		if flags.QueensideRookMoved {
			return false
		}
		rookCol, between, transit = queensideRookCol, []int{1, 2, 3}, []int{3, 2}
	default:
		return false
	}
	if !b.At(board.Sq(row, rookCol)).Is(color, board.Rook) {
		return false
	}
	for _, col := range between {
		if !b.At(board.Sq(row, col)).IsEmpty() {
			return false
		}
	}

	enemy := color.Opponent()
	if IsSquareAttacked(b, kingSq, enemy) {
		return false
	}
	for _, col := range transit {
		if IsSquareAttacked(b, board.Sq(row, col), enemy) {
			return false
		}
	}
	return true
}

// castlingWing recognises a two-column king move along its rank.
func castlingWing(mover board.Piece, from, to board.Square) (Wing, bool) {
	if mover.Kind != board.King || from.Row != to.Row {
		return 0, false
	}
	switch to.Col - from.Col {
	case 2:
		return Kingside, true
	case -2:
		return Queenside, true
	default:
		return 0, false
	}
}
