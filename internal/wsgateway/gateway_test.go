package wsgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/repository"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestGateway(t *testing.T, regCfg session.RegistryConfig) (*Gateway, *httptest.Server) {
	t.Helper()
	return newTestGatewayWith(t, Config{}, regCfg)
}

func newTestGatewayWith(t *testing.T, cfg Config, regCfg session.RegistryConfig) (*Gateway, *httptest.Server) {
	t.Helper()
	gw := New(cfg, regCfg, nil, nil)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.Close(ctx); err != nil {
			t.Errorf("gateway close: %v", err)
		}
		srv.Close()
	})
	return gw, srv
}

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?name=" + name
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, map[string]any{"type": typ, "data": data}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil returns the next frame of type typ, skipping anything else (clock ticks
// mostly).
func readUntil(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", f.Type, err)
	}
	return v
}

func sq(t *testing.T, s string) arenadto.Square {
	t.Helper()
	p, ok := board.ParseSquare(s)
	if !ok {
		t.Fatalf("bad square %q", s)
	}
	return arenadto.Square{Row: p.Row, Col: p.Col}
}

func moveFrame(t *testing.T, gameID, uci string) arenadto.MakeMove {
	t.Helper()
	from, to := sq(t, uci[:2]), sq(t, uci[2:4])
	return arenadto.MakeMove{GameID: gameID, From: &from, To: &to}
}

// startGame seats white and black and waits until both have seen gameStart.
func startGame(t *testing.T, white, black *websocket.Conn, tc *arenadto.TimeControl) string {
	t.Helper()
	send(t, white, arenadto.TypeCreateGame, arenadto.CreateGame{TimeControl: tc})
	created := decode[arenadto.GameCreated](t, readUntil(t, white, arenadto.TypeGameCreated))
	if created.Color != "white" || len(created.GameID) != 9 {
		t.Fatalf("gameCreated = %+v", created)
	}
	send(t, black, arenadto.TypeJoinGame, arenadto.JoinGame{GameID: created.GameID})
	joined := decode[arenadto.GameJoined](t, readUntil(t, black, arenadto.TypeGameJoined))
	if joined.Color != "black" || joined.GameID != created.GameID {
		t.Fatalf("gameJoined = %+v", joined)
	}
	for _, c := range []*websocket.Conn{white, black} {
		start := decode[arenadto.GameStart](t, readUntil(t, c, arenadto.TypeGameStart))
		if start.Turn != "white" || start.Board[6][4] != "P" || start.Board[0][4] != "k" {
			t.Fatalf("gameStart = %+v", start)
		}
	}
	return created.GameID
}

func TestGateway_FoolsMate(t *testing.T) {
	gw, srv := newTestGateway(t, session.RegistryConfig{})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	id := startGame(t, white, black, nil)

	players := []*websocket.Conn{white, black}
	for i, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		send(t, players[i%2], arenadto.TypeMakeMove, moveFrame(t, id, uci))
		for _, c := range players {
			made := decode[arenadto.MoveMade](t, readUntil(t, c, arenadto.TypeMoveMade))
			if made.Ply != i+1 || made.Notation != uci {
				t.Fatalf("moveMade = %+v; want ply %d %s", made, i+1, uci)
			}
			if i == 3 && !made.Check {
				t.Fatalf("final move should give check")
			}
		}
	}
	for _, c := range players {
		over := decode[arenadto.GameOver](t, readUntil(t, c, arenadto.TypeGameOver))
		if over.Winner == nil || *over.Winner != "black" || over.Reason != "checkmate" {
			t.Fatalf("gameOver = %+v", over)
		}
		if over.Message != "Checkmate. Black wins." {
			t.Fatalf("message = %q", over.Message)
		}
	}
	if n := gw.Registry().Len(); n != 0 {
		t.Fatalf("finished game still registered: %d", n)
	}
}

func TestGateway_InvalidMoves(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	id := startGame(t, white, black, nil)

	send(t, black, arenadto.TypeMakeMove, moveFrame(t, id, "e7e5"))
	bad := decode[arenadto.InvalidMove](t, readUntil(t, black, arenadto.TypeInvalidMove))
	if bad.Reason != "not-your-turn" || bad.Message != "It is not your turn." {
		t.Fatalf("invalidMove = %+v", bad)
	}

	send(t, white, arenadto.TypeMakeMove, moveFrame(t, id, "e2e5"))
	bad = decode[arenadto.InvalidMove](t, readUntil(t, white, arenadto.TypeInvalidMove))
	if bad.Reason != "pattern-invalid" || bad.Message != "That piece cannot move from e2 to e5." {
		t.Fatalf("invalidMove = %+v", bad)
	}

	from, to := arenadto.Square{Row: 8, Col: 0}, sq(t, "a3")
	send(t, white, arenadto.TypeMakeMove, arenadto.MakeMove{GameID: id, From: &from, To: &to})
	bad = decode[arenadto.InvalidMove](t, readUntil(t, white, arenadto.TypeInvalidMove))
	if bad.Reason != "off-board" {
		t.Fatalf("invalidMove = %+v", bad)
	}

	// the game is still playable
	send(t, white, arenadto.TypeMakeMove, moveFrame(t, id, "e2e4"))
	if made := decode[arenadto.MoveMade](t, readUntil(t, black, arenadto.TypeMoveMade)); made.Turn != "black" {
		t.Fatalf("moveMade = %+v", made)
	}
}

func TestGateway_Disconnect(t *testing.T) {
	gw, srv := newTestGateway(t, session.RegistryConfig{})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	id := startGame(t, white, black, nil)

	_ = black.Close(websocket.StatusNormalClosure, "leaving")
	left := decode[arenadto.PlayerDisconnected](t, readUntil(t, white, arenadto.TypePlayerDisconnected))
	if left.GameID != id || left.Color != "black" {
		t.Fatalf("playerDisconnected = %+v", left)
	}
	over := decode[arenadto.GameOver](t, readUntil(t, white, arenadto.TypeGameOver))
	if over.Winner == nil || *over.Winner != "white" || over.Reason != "disconnect" {
		t.Fatalf("gameOver = %+v", over)
	}
	if _, ok := gw.Registry().Lookup(id); ok {
		t.Fatalf("session not removed after disconnect")
	}
}

func TestGateway_Timeout(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{
		ClockOptions: []clock.Option{clock.WithTick(10 * time.Millisecond)},
	})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	startGame(t, white, black, &arenadto.TimeControl{Minutes: 0.005})

	tick := decode[arenadto.TimeUpdate](t, readUntil(t, black, arenadto.TypeTimeUpdate))
	if tick.BlackTime < 290 || tick.WhiteTime > tick.BlackTime {
		t.Fatalf("timeUpdate = %+v", tick)
	}
	for _, c := range []*websocket.Conn{white, black} {
		over := decode[arenadto.GameOver](t, readUntil(t, c, arenadto.TypeGameOver))
		if over.Winner == nil || *over.Winner != "black" || over.Reason != "timeout" {
			t.Fatalf("gameOver = %+v", over)
		}
	}
}

func TestGateway_Resign(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	id := startGame(t, white, black, nil)

	send(t, white, arenadto.TypeResign, arenadto.Resign{GameID: id})
	for _, c := range []*websocket.Conn{white, black} {
		over := decode[arenadto.GameOver](t, readUntil(t, c, arenadto.TypeGameOver))
		if over.Winner == nil || *over.Winner != "black" || over.Reason != "resignation" {
			t.Fatalf("gameOver = %+v", over)
		}
	}
	send(t, black, arenadto.TypeResign, arenadto.Resign{GameID: id})
	if e := decode[arenadto.Error](t, readUntil(t, black, arenadto.TypeError)); e.Code != "game-not-found" {
		t.Fatalf("error = %+v", e)
	}
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestGateway_Results(t *testing.T) {
	repo := repository.NewMemory()
	gw, srv := newTestGatewayWith(t, Config{Results: repo}, session.RegistryConfig{Sinks: []session.ResultSink{repo}})
	white, black := dial(t, srv, "ann"), dial(t, srv, "bob")
	id := startGame(t, white, black, nil)

	send(t, black, arenadto.TypeResign, arenadto.Resign{GameID: id})
	readUntil(t, white, arenadto.TypeGameOver)
	gw.Registry().Wait()

	var one session.Summary
	if code := getJSON(t, srv.URL+"/results?id="+id, &one); code != http.StatusOK {
		t.Fatalf("/results?id status = %d", code)
	}
	if one.GameID != id || one.Winner != "white" || one.Cause != session.CauseResignation || one.White.Name != "ann" {
		t.Fatalf("/results?id = %+v", one)
	}

	var recent struct {
		Results []session.Summary `json:"results"`
	}
	if code := getJSON(t, srv.URL+"/results?limit=5", &recent); code != http.StatusOK {
		t.Fatalf("/results status = %d", code)
	}
	if len(recent.Results) != 1 || recent.Results[0].GameID != id {
		t.Fatalf("/results = %+v", recent)
	}

	var e arenadto.Error
	if code := getJSON(t, srv.URL+"/results?id=missing00", &e); code != http.StatusNotFound || e.Code != "game-not-found" {
		t.Fatalf("unknown id: status=%d err=%+v", code, e)
	}
	if code := getJSON(t, srv.URL+"/results?limit=abc", &e); code != http.StatusBadRequest || e.Code != "invalid-request" {
		t.Fatalf("bad limit: status=%d err=%+v", code, e)
	}
}

func TestGateway_ResultsDisabled(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{})
	var e arenadto.Error
	if code := getJSON(t, srv.URL+"/results", &e); code != http.StatusNotFound {
		t.Fatalf("/results without archive status = %d", code)
	}
}

func TestGateway_LobbyAndHTTP(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{})
	white, watcher := dial(t, srv, "ann"), dial(t, srv, "eve")

	send(t, white, arenadto.TypeCreateGame, arenadto.CreateGame{TimeControl: &arenadto.TimeControl{Minutes: 3, Increment: 2}})
	created := decode[arenadto.GameCreated](t, readUntil(t, white, arenadto.TypeGameCreated))
	if created.TimeControl != "3+2" {
		t.Fatalf("gameCreated = %+v", created)
	}

	send(t, watcher, arenadto.TypeListGames, nil)
	games := decode[arenadto.Games](t, readUntil(t, watcher, arenadto.TypeGames))
	if len(games.Games) != 1 || games.Games[0].GameID != created.GameID || games.Games[0].Creator.Name != "ann" {
		t.Fatalf("games = %+v", games)
	}

	resp, err := http.Get(srv.URL + "/games")
	if err != nil {
		t.Fatalf("GET /games: %v", err)
	}
	var listed arenadto.Games
	err = json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if err != nil || len(listed.Games) != 1 || listed.Games[0].TimeControl != "3+2" {
		t.Fatalf("/games = %+v err=%v", listed, err)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || health["status"] != "ok" || health["games"] != float64(1) || health["connections"] != float64(2) {
		t.Fatalf("/healthz = %v err=%v", health, err)
	}

	resp, err = http.Post(srv.URL+"/games", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /games: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /games status = %d", resp.StatusCode)
	}
}

func TestGateway_Errors(t *testing.T) {
	_, srv := newTestGateway(t, session.RegistryConfig{MaxSessions: 1})
	white, other := dial(t, srv, "ann"), dial(t, srv, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := other.Write(ctx, websocket.MessageText, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if e := decode[arenadto.Error](t, readUntil(t, other, arenadto.TypeError)); e.Code != "invalid-request" {
		t.Fatalf("error = %+v", e)
	}

	send(t, other, arenadto.TypeJoinGame, arenadto.JoinGame{GameID: "nosuchgam"})
	if e := decode[arenadto.Error](t, readUntil(t, other, arenadto.TypeError)); e.Code != "game-not-found" || e.Message != "Game not found." {
		t.Fatalf("error = %+v", e)
	}

	send(t, white, arenadto.TypeCreateGame, nil)
	created := decode[arenadto.GameCreated](t, readUntil(t, white, arenadto.TypeGameCreated))
	if created.TimeControl != "5+0" {
		t.Fatalf("default time control = %q", created.TimeControl)
	}

	send(t, white, arenadto.TypeJoinGame, arenadto.JoinGame{GameID: created.GameID})
	if e := decode[arenadto.Error](t, readUntil(t, white, arenadto.TypeError)); e.Code != "already-seated" {
		t.Fatalf("error = %+v", e)
	}

	send(t, other, arenadto.TypeCreateGame, nil)
	if e := decode[arenadto.Error](t, readUntil(t, other, arenadto.TypeError)); e.Code != "too-many-games" {
		t.Fatalf("error = %+v", e)
	}

	send(t, other, arenadto.TypeMakeMove, moveFrame(t, created.GameID, "e7e5"))
	if bad := decode[arenadto.InvalidMove](t, readUntil(t, other, arenadto.TypeInvalidMove)); bad.Reason != "not-started" {
		t.Fatalf("invalidMove = %+v", bad)
	}
}
