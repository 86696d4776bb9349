package arenadto

import "time"

// Grid is the board snapshot, row 0 first. Cells hold one piece code
// (uppercase white, lowercase black) or "." for empty.
type Grid [8][8]string

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type GameCreated struct {
	GameID      string `json:"gameId"`
	Color       string `json:"color"`
	TimeControl string `json:"timeControl"`
}

type GameJoined struct {
	GameID string `json:"gameId"`
	Color  string `json:"color"`
}

// GameStart is sent to both players once the second seat is taken. Times are milliseconds.
type GameStart struct {
	GameID      string `json:"gameId"`
	White       Player `json:"white"`
	Black       Player `json:"black"`
	TimeControl string `json:"timeControl"`
	Board       Grid   `json:"board"`
	Turn        string `json:"turn"`
	WhiteTime   int64  `json:"whiteTime"`
	BlackTime   int64  `json:"blackTime"`
}

type MoveMade struct {
	GameID    string `json:"gameId"`
	Ply       int    `json:"ply"`
	From      Square `json:"from"`
	To        Square `json:"to"`
	Notation  string `json:"notation"`
	Promotion string `json:"promotion,omitempty"`
	Castled   bool   `json:"castled,omitempty"`
	EnPassant bool   `json:"enPassant,omitempty"`
	Board     Grid   `json:"board"`
	Turn      string `json:"turn"`
	WhiteTime int64  `json:"whiteTime"`
	BlackTime int64  `json:"blackTime"`
	Check     bool   `json:"check"`
}

type InvalidMove struct {
	GameID  string `json:"gameId"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// GameOver reports the end of a game. Winner is null when nobody won.
type GameOver struct {
	GameID  string  `json:"gameId"`
	Winner  *string `json:"winner"`
	Reason  string  `json:"reason"`
	Message string  `json:"message"`
}

type TimeUpdate struct {
	GameID    string `json:"gameId"`
	WhiteTime int64  `json:"whiteTime"`
	BlackTime int64  `json:"blackTime"`
}

type PlayerDisconnected struct {
	GameID string `json:"gameId"`
	Color  string `json:"color"`
}

type WaitingGame struct {
	GameID      string    `json:"gameId"`
	Creator     Player    `json:"creator"`
	TimeControl string    `json:"timeControl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Games struct {
	Games []WaitingGame `json:"games"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Millis converts a duration to whole milliseconds, the unit of all wire times.
func Millis(d time.Duration) int64 { return d.Milliseconds() }
