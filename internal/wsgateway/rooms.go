package wsgateway

import (
	"time"

	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

var _ session.Events = (*Gateway)(nil)

func (g *Gateway) joinRoom(gameID string, c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.rooms[gameID]
	if !ok {
		members = make(map[string]*client, 2)
		g.rooms[gameID] = members
	}
	members[c.id] = c
}

func (g *Gateway) members(gameID string) []*client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.rooms[gameID]
	out := make([]*client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

func (g *Gateway) broadcast(gameID, typ string, data any) {
	ev := arenadto.Event{Type: typ, Data: data}
	for _, c := range g.members(gameID) {
		c.enqueue(ev)
	}
}

// endGame announces t to the room and dissolves it. The room is removed in the
// same step, so a game is announced as over at most once.
func (g *Gateway) endGame(gameID string, t *session.Terminal) {
	if t == nil {
		return
	}
	g.mu.Lock()
	members := g.rooms[gameID]
	delete(g.rooms, gameID)
	g.mu.Unlock()
	if len(members) == 0 {
		return
	}

	over := arenadto.GameOver{
		GameID:  gameID,
		Reason:  string(t.Cause),
		Message: g.cat.GameOver(t.WinnerName(), string(t.Cause)),
	}
	if w := t.WinnerName(); w != "" {
		over.Winner = &w
	}
	ev := arenadto.Event{Type: arenadto.TypeGameOver, Data: over}
	for _, c := range members {
		c.enqueue(ev)
	}
}

// Tick implements session.Events.
func (g *Gateway) Tick(gameID string, white, black time.Duration) {
	g.broadcast(gameID, arenadto.TypeTimeUpdate, arenadto.TimeUpdate{
		GameID:    gameID,
		WhiteTime: arenadto.Millis(white),
		BlackTime: arenadto.Millis(black),
	})
}

// Expired implements session.Events.
func (g *Gateway) Expired(gameID string, res session.Result) {
	g.broadcast(gameID, arenadto.TypeTimeUpdate, arenadto.TimeUpdate{
		GameID:    gameID,
		WhiteTime: arenadto.Millis(res.WhiteTime),
		BlackTime: arenadto.Millis(res.BlackTime),
	})
	g.endGame(gameID, res.Terminal)
}
