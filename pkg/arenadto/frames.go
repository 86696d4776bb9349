// Package arenadto defines the JSON frames exchanged with arena clients over the
// websocket. Every frame is an envelope {"type": ..., "data": {...}}.
package arenadto

import "encoding/json"

// Client frame types.
const (
	TypeCreateGame = "createGame"
	TypeJoinGame   = "joinGame"
	TypeMakeMove   = "makeMove"
	TypeResign     = "resign"
	TypeListGames  = "listGames"
)

// Server event types.
const (
	TypeGameCreated        = "gameCreated"
	TypeGameJoined         = "gameJoined"
	TypeGameStart          = "gameStart"
	TypeMoveMade           = "moveMade"
	TypeInvalidMove        = "invalidMove"
	TypeGameOver           = "gameOver"
	TypeTimeUpdate         = "timeUpdate"
	TypePlayerDisconnected = "playerDisconnected"
	TypeGames              = "games"
	TypeError              = "error"
)

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Type string          `json:"type" validate:"required,oneof=createGame joinGame makeMove resign listGames"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type TimeControl struct {
	Minutes   float64 `json:"minutes" validate:"gt=0,lte=180"`
	Increment int     `json:"increment" validate:"gte=0,lte=60"`
}

type CreateGame struct {
	TimeControl *TimeControl `json:"timeControl,omitempty" validate:"omitempty"`
	Name        string       `json:"name,omitempty" validate:"max=32"`
}

type JoinGame struct {
	GameID string `json:"gameId" validate:"required,max=64"`
	Name   string `json:"name,omitempty" validate:"max=32"`
}

// MakeMove carries board coordinates; out-of-range squares are judged by the game,
// not rejected at decode time.
type MakeMove struct {
	GameID    string  `json:"gameId" validate:"required,max=64"`
	From      *Square `json:"from" validate:"required"`
	To        *Square `json:"to" validate:"required"`
	Promotion string  `json:"promotion,omitempty" validate:"omitempty,oneof=q r b n Q R B N"`
}

type Resign struct {
	GameID string `json:"gameId" validate:"required,max=64"`
}

type ListGames struct{}
