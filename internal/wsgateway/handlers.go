package wsgateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const requestTimeout = 5 * time.Second

func (g *Gateway) handleFrame(c *client, raw []byte) {
	env, err := arenadto.DecodeEnvelope(raw)
	if err != nil {
		obslog.L().Debug("ws_bad_frame", zap.String("conn_id", c.id), zap.Error(err))
		g.sendError(c, "invalid-request")
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	switch env.Type {
	case arenadto.TypeCreateGame:
		var req arenadto.CreateGame
		if g.decode(c, env, &req) {
			g.createGame(ctx, c, req)
		}
	case arenadto.TypeJoinGame:
		var req arenadto.JoinGame
		if g.decode(c, env, &req) {
			g.joinGame(ctx, c, req)
		}
	case arenadto.TypeMakeMove:
		var req arenadto.MakeMove
		if g.decode(c, env, &req) {
			g.makeMove(c, req)
		}
	case arenadto.TypeResign:
		var req arenadto.Resign
		if g.decode(c, env, &req) {
			g.resign(c, req)
		}
	case arenadto.TypeListGames:
		c.enqueue(arenadto.Event{Type: arenadto.TypeGames, Data: g.waitingGames(ctx)})
	}
}

func (g *Gateway) decode(c *client, env *arenadto.Envelope, dst any) bool {
	if err := arenadto.DecodePayload(env, dst); err != nil {
		obslog.L().Debug("ws_bad_payload", zap.String("conn_id", c.id), zap.String("type", env.Type), zap.Error(err))
		g.sendError(c, "invalid-request")
		return false
	}
	return true
}

func (g *Gateway) createGame(ctx context.Context, c *client, req arenadto.CreateGame) {
	if req.Name != "" {
		c.name = strings.TrimSpace(req.Name)
	}
	tc := g.cfg.TimeControl
	if req.TimeControl != nil {
		tc = clock.TimeControl{
			Base:      time.Duration(req.TimeControl.Minutes * float64(time.Minute)),
			Increment: time.Duration(req.TimeControl.Increment) * time.Second,
		}
	}
	s, err := g.reg.Create(ctx, c.player(), tc)
	if err != nil {
		g.sendErr(c, err)
		return
	}
	g.joinRoom(s.ID(), c)
	c.enqueue(arenadto.Event{Type: arenadto.TypeGameCreated, Data: arenadto.GameCreated{
		GameID:      s.ID(),
		Color:       string(board.White),
		TimeControl: tc.String(),
	}})
}

func (g *Gateway) joinGame(ctx context.Context, c *client, req arenadto.JoinGame) {
	if req.Name != "" {
		c.name = strings.TrimSpace(req.Name)
	}
	s, err := g.reg.Join(ctx, req.GameID, c.player())
	if err != nil {
		g.sendErr(c, err)
		return
	}
	g.joinRoom(s.ID(), c)
	c.enqueue(arenadto.Event{Type: arenadto.TypeGameJoined, Data: arenadto.GameJoined{GameID: s.ID(), Color: string(board.Black)}})

	snap := s.Snapshot()
	g.broadcast(s.ID(), arenadto.TypeGameStart, arenadto.GameStart{
		GameID:      snap.ID,
		White:       arenadto.Player{ID: snap.White.ID, Name: snap.White.Name},
		Black:       arenadto.Player{ID: snap.Black.ID, Name: snap.Black.Name},
		TimeControl: snap.TimeControl,
		Board:       arenadto.Grid(snap.Board),
		Turn:        string(snap.Turn),
		WhiteTime:   arenadto.Millis(snap.WhiteTime),
		BlackTime:   arenadto.Millis(snap.BlackTime),
	})
}

func (g *Gateway) makeMove(c *client, req arenadto.MakeMove) {
	s, ok := g.reg.Lookup(req.GameID)
	if !ok {
		g.sendErr(c, session.ErrSessionNotFound)
		return
	}
	from := board.Sq(req.From.Row, req.From.Col)
	to := board.Sq(req.To.Row, req.To.Col)
	promo := board.None
	if req.Promotion != "" {
		if k, ok := board.ParseKind(req.Promotion); ok {
			promo = k
		}
	}

	res := s.SubmitMove(c.id, from, to, promo)
	if !res.Accepted {
		c.enqueue(arenadto.Event{Type: arenadto.TypeInvalidMove, Data: arenadto.InvalidMove{
			GameID:  s.ID(),
			Reason:  string(res.Reason),
			Message: g.cat.Reject(string(res.Reason), from.String(), to.String()),
		}})
		// a move after the flag fell ends the game on time
		g.endGame(s.ID(), res.Terminal)
		return
	}

	mv := res.Move
	made := arenadto.MoveMade{
		GameID:    s.ID(),
		Ply:       mv.Ply,
		From:      arenadto.Square{Row: mv.From.Row, Col: mv.From.Col},
		To:        arenadto.Square{Row: mv.To.Row, Col: mv.To.Col},
		Notation:  mv.Coord(),
		Castled:   mv.Castled,
		EnPassant: mv.EnPassant,
		Board:     arenadto.Grid(res.Board),
		Turn:      string(res.Turn),
		WhiteTime: arenadto.Millis(res.WhiteTime),
		BlackTime: arenadto.Millis(res.BlackTime),
		Check:     res.Check,
	}
	if mv.Promotion != board.None {
		made.Promotion = string(byte(mv.Promotion))
	}
	g.broadcast(s.ID(), arenadto.TypeMoveMade, made)
	g.endGame(s.ID(), res.Terminal)
}

func (g *Gateway) resign(c *client, req arenadto.Resign) {
	s, res, err := g.reg.Resign(req.GameID, c.id)
	if err != nil {
		g.sendErr(c, err)
		return
	}
	g.endGame(s.ID(), res.Terminal)
}

func (g *Gateway) sendErr(c *client, err error) {
	code := errorCode(err)
	if code == "internal" {
		obslog.L().Error("ws_request_error", zap.String("conn_id", c.id), zap.Error(err))
	}
	g.sendError(c, code)
}

func (g *Gateway) sendError(c *client, code string) {
	c.enqueue(arenadto.Event{Type: arenadto.TypeError, Data: arenadto.Error{Code: code, Message: g.cat.Error(code)}})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "game-not-found"
	case errors.Is(err, session.ErrSessionFull):
		return "game-full"
	case errors.Is(err, session.ErrAlreadySeated):
		return "already-seated"
	case errors.Is(err, session.ErrNotSeated):
		return "not-seated"
	case errors.Is(err, session.ErrSessionOver):
		return "game-over"
	case errors.Is(err, session.ErrTooManySessions):
		return "too-many-games"
	case errors.Is(err, clock.ErrInvalidTimeControl):
		return "invalid-time-control"
	case errors.Is(err, session.ErrInvalidArgs):
		return "invalid-request"
	default:
		return "internal"
	}
}
