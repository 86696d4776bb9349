// Package board holds the 8x8 position model shared by the rules engine and sessions.
// Row 0 is black's back rank, row 7 is white's back rank, column 0 is the queenside file.
package board

import (
	"fmt"
	"strings"
)

// Size is the number of rows and columns.
const Size = 8

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c is one of the two sides.
func (c Color) Valid() bool { return c == White || c == Black }

// Forward is the row delta of a pawn advance.
func (c Color) Forward() int {
	if c == White {
		return -1
	}
	return 1
}

// HomeRow is the back rank of the side.
func (c Color) HomeRow() int {
	if c == White {
		return Size - 1
	}
	return 0
}

// PawnRow is the starting rank of the side's pawns.
func (c Color) PawnRow() int { return c.HomeRow() + c.Forward() }

// PromotionRow is the opponent's back rank.
func (c Color) PromotionRow() int { return c.Opponent().HomeRow() }

// ParseColor accepts "white"/"black" and their one-letter forms.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

// Kind is a piece type. The zero value means no piece.
type Kind byte

const (
	None   Kind = 0
	Pawn   Kind = 'p'
	Knight Kind = 'n'
	Bishop Kind = 'b'
	Rook   Kind = 'r'
	Queen  Kind = 'q'
	King   Kind = 'k'
)

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// ParseKind maps a piece letter (either case) to its kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 1 {
		return None, false
	}
	switch k := Kind(s[0]); k {
	case Pawn, Knight, Bishop, Rook, Queen, King:
		return k, true
	default:
		return None, false
	}
}

// EmptyCode marks an unoccupied cell in textual and wire forms.
const EmptyCode = '.'

// Piece is the occupant of a cell. Empty is the zero value.
type Piece struct {
	Kind  Kind
	Color Color
}

// Empty is the absence of a piece.
var Empty = Piece{}

// P builds a piece.
func P(c Color, k Kind) Piece { return Piece{Kind: k, Color: c} }

func (p Piece) IsEmpty() bool { return p.Kind == None }

// Is reports whether p is a piece of the given side and kind.
func (p Piece) Is(c Color, k Kind) bool { return p.Kind == k && p.Color == c }

// Code is the single-character form: upper case for white, lower case for black.
func (p Piece) Code() byte {
	if p.IsEmpty() {
		return EmptyCode
	}
	if p.Color == White {
		return byte(p.Kind) - 'a' + 'A'
	}
	return byte(p.Kind)
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return "empty"
	}
	return string(p.Color) + " " + p.Kind.String()
}

// PieceFromCode is the inverse of Code.
func PieceFromCode(c byte) (Piece, bool) {
	if c == EmptyCode {
		return Empty, true
	}
	color := Black
	lower := c
	if c >= 'A' && c <= 'Z' {
		color = White
		lower = c - 'A' + 'a'
	}
	k, ok := ParseKind(string(lower))
	if !ok {
		return Empty, false
	}
	return P(color, k), true
}

// Square addresses a cell.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Sq builds a square.
func Sq(row, col int) Square { return Square{Row: row, Col: col} }

// InBounds reports whether s lies on the board.
func (s Square) InBounds() bool {
	return s.Row >= 0 && s.Row < Size && s.Col >= 0 && s.Col < Size
}

// Offset returns the square shifted by the given deltas; it may be off the board.
func (s Square) Offset(dr, dc int) Square { return Square{Row: s.Row + dr, Col: s.Col + dc} }

// String renders algebraic coordinates, e.g. row 6 col 4 is "e2".
func (s Square) String() string {
	if !s.InBounds() {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+s.Col, Size-s.Row)
}

// ParseSquare reads algebraic coordinates such as "e2".
func ParseSquare(s string) (Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Square{}, false
	}
	return Sq(Size-int(s[1]-'0'), int(s[0]-'a')), true
}

// Board is an 8x8 grid of occupants. It is a value type: assignment copies it.
type Board [Size][Size]Piece

// At returns the occupant at s, or Empty when s is off the board.
func (b *Board) At(s Square) Piece {
	if !s.InBounds() {
		return Empty
	}
	return b[s.Row][s.Col]
}

// Set places p on s. Off-board squares are ignored.
func (b *Board) Set(s Square, p Piece) {
	if !s.InBounds() {
		return
	}
	b[s.Row][s.Col] = p
}

// Squares lists the occupied squares of side c in row-major order.
func (b *Board) Squares(c Color) []Square {
	out := make([]Square, 0, 16)
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if p := b[r][col]; !p.IsEmpty() && p.Color == c {
				out = append(out, Sq(r, col))
			}
		}
	}
	return out
}

// Find locates the first square holding p.
func (b *Board) Find(p Piece) (Square, bool) {
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if b[r][col] == p {
				return Sq(r, col), true
			}
		}
	}
	return Square{}, false
}

var standardRows = [Size]string{
	"rnbqkbnr",
	"pppppppp",
	"........",
	"........",
	"........",
	"........",
	"PPPPPPPP",
	"RNBQKBNR",
}

// Standard returns the initial position.
func Standard() Board {
	b, err := FromRows(standardRows)
	if err != nil {
		panic(err)
	}
	return b
}

// FromRows parses eight rows of piece codes, row 0 first.
func FromRows(rows [Size]string) (Board, error) {
	var b Board
	for r, line := range rows {
		if len(line) != Size {
			return Board{}, fmt.Errorf("row %d: want %d cells, got %d", r, Size, len(line))
		}
		for c := 0; c < Size; c++ {
			p, ok := PieceFromCode(line[c])
			if !ok {
				return Board{}, fmt.Errorf("row %d col %d: unknown piece code %q", r, c, line[c])
			}
			b[r][c] = p
		}
	}
	return b, nil
}

// Rows is the inverse of FromRows.
func (b *Board) Rows() [Size]string {
	var out [Size]string
	for r := 0; r < Size; r++ {
		var sb strings.Builder
		for c := 0; c < Size; c++ {
			sb.WriteByte(b[r][c].Code())
		}
		out[r] = sb.String()
	}
	return out
}

// Grid is the wire snapshot: eight rows of eight one-character cells.
type Grid [Size][Size]string

// Grid renders the board for clients.
func (b *Board) Grid() Grid {
	var g Grid
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			g[r][c] = string(b[r][c].Code())
		}
	}
	return g
}

func (b *Board) String() string {
	rows := b.Rows()
	return strings.Join(rows[:], "\n")
}
