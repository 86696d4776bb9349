package rules

import "github.com/park285/cheese-arena/internal/board"

// pseudoLegal reports whether mover on from may travel to to under its movement
// pattern, ignoring the safety of its own king. Castling is handled separately.
func pseudoLegal(b *board.Board, mover board.Piece, from, to board.Square, last *Move) bool {
	switch mover.Kind {
	case board.Pawn:
		return pawnPattern(b, mover, from, to, last)
	case board.King:
		return kingStep(from, to)
	default:
		return reaches(b, mover, from, to)
	}
}

// reaches reports whether p standing on from attacks to. Pawns attack diagonally
// forward only; no piece ever jumps except the knight.
func reaches(b *board.Board, p board.Piece, from, to board.Square) bool {
	if from == to {
		return false
	}
	switch p.Kind {
	case board.Pawn:
		return to.Row-from.Row == p.Color.Forward() && abs(to.Col-from.Col) == 1
	case board.Knight:
		return knightJump(from, to)
	case board.Bishop:
		return diagonal(from, to) && pathClear(b, from, to)
	case board.Rook:
		return straight(from, to) && pathClear(b, from, to)
	case board.Queen:
		return (diagonal(from, to) || straight(from, to)) && pathClear(b, from, to)
	case board.King:
		return kingStep(from, to)
	default:
		return false
	}
}

func pawnPattern(b *board.Board, p board.Piece, from, to board.Square, last *Move) bool {
	fwd := p.Color.Forward()
	dr := to.Row - from.Row
	dc := abs(to.Col - from.Col)
	target := b.At(to)

	if dc == 0 {
		if !target.IsEmpty() {
			return false
		}
		if dr == fwd {
			return true
		}
		return dr == 2*fwd && from.Row == p.Color.PawnRow() && b.At(from.Offset(fwd, 0)).IsEmpty()
	}
	if dc != 1 || dr != fwd {
		return false
	}
	if !target.IsEmpty() {
		return target.Color != p.Color
	}
	return enPassant(b, p, from, to, last)
}

// enPassant holds only right after an enemy double push that landed beside the
// capturing pawn, on the file the pawn moves to.
func enPassant(b *board.Board, p board.Piece, from, to board.Square, last *Move) bool {
	if !last.IsDoublePawnPush() || last.Piece.Color == p.Color {
		return false
	}
	if last.To.Row != from.Row || last.To.Col != to.Col {
		return false
	}
	return b.At(last.To).Is(p.Color.Opponent(), board.Pawn)
}

func knightJump(from, to board.Square) bool {
	dr, dc := abs(to.Row-from.Row), abs(to.Col-from.Col)
	return (dr == 2 && dc == 1) || (dr == 1 && dc == 2)
}

func kingStep(from, to board.Square) bool {
	dr, dc := abs(to.Row-from.Row), abs(to.Col-from.Col)
	return dr <= 1 && dc <= 1 && dr+dc > 0
}

func straight(from, to board.Square) bool {
	return (from.Row == to.Row) != (from.Col == to.Col)
}

func diagonal(from, to board.Square) bool {
	dr, dc := abs(to.Row-from.Row), abs(to.Col-from.Col)
	return dr == dc && dr > 0
}

// pathClear reports whether every square strictly between from and to is empty.
// from and to must share a row, column or diagonal.
func pathClear(b *board.Board, from, to board.Square) bool {
	dr, dc := sign(to.Row-from.Row), sign(to.Col-from.Col)
	for sq := from.Offset(dr, dc); sq != to; sq = sq.Offset(dr, dc) {
		if !sq.InBounds() {
			return false
		}
		if !b.At(sq).IsEmpty() {
			return false
		}
	}
	return true
}
