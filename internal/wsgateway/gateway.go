// Package wsgateway exposes arena sessions to browsers over WebSocket. Each
// connection is one player; games are rooms that receive broadcast events.
package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-arena/internal/clock"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/repository"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// WaitingLister provides the lobby listing; the registry's own view is used when nil.
type WaitingLister interface {
	ListWaiting(ctx context.Context) ([]session.Waiting, error)
}

type Config struct {
	TimeControl    clock.TimeControl
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	// Results backs /results; the route answers 404 when nil.
	Results repository.Reader
}

func (c *Config) defaults() {
	if c.TimeControl == (clock.TimeControl{}) {
		c.TimeControl = clock.Blitz5
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 16 << 10
	}
}

type Gateway struct {
	cfg    Config
	reg    *session.Registry
	cat    *msgcat.Catalog
	lister WaitingLister

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds the gateway and the session registry it drives. The gateway
// installs itself as the registry's event receiver.
func New(cfg Config, regCfg session.RegistryConfig, cat *msgcat.Catalog, lister WaitingLister) *Gateway {
	cfg.defaults()
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	g := &Gateway{
		cfg:     cfg,
		cat:     cat,
		lister:  lister,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
		stopCh:  make(chan struct{}),
	}
	regCfg.Events = g
	g.reg = session.NewRegistry(regCfg)
	return g
}

func (g *Gateway) Registry() *session.Registry { return g.reg }

// Handler serves /ws, /healthz, /games and /results.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("/healthz", g.serveHealth)
	mux.HandleFunc("/games", g.serveGames)
	mux.HandleFunc("/results", g.serveResults)
	return mux
}

// ServeWS upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.isStopping() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  g.cfg.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(g.cfg.ReadLimit)

	c := newClient(uuid.NewString(), r.URL.Query().Get("name"), ws, g.cfg.SendBuffer)
	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
	obslog.L().Info("ws_accept", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	g.wg.Add(3)
	defer g.wg.Done()
	go func() {
		defer g.wg.Done()
		c.writeLoop(g.cfg.WriteTimeout)
	}()
	go func() {
		defer g.wg.Done()
		c.pingLoop(g.cfg.PingInterval)
	}()

	g.readLoop(c)
	g.drop(c)
}

func (g *Gateway) readLoop(c *client) {
	for {
		_, raw, err := c.ws.Read(c.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && c.ctx.Err() == nil {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		g.handleFrame(c, raw)
	}
}

// drop unregisters c and ends every game it was seated in.
func (g *Gateway) drop(c *client) {
	c.close(websocket.StatusNormalClosure, "bye")

	g.mu.Lock()
	delete(g.clients, c.id)
	for id, members := range g.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(g.rooms, id)
		}
	}
	g.mu.Unlock()

	for _, e := range g.reg.Disconnect(c.id) {
		gameID := e.Session.ID()
		white, _ := e.Session.Players()
		color := "black"
		if white.ID == c.id {
			color = "white"
		}
		g.broadcast(gameID, arenadto.TypePlayerDisconnected, arenadto.PlayerDisconnected{GameID: gameID, Color: color})
		g.endGame(gameID, e.Result.Terminal)
	}
	obslog.L().Info("ws_close", zap.String("conn_id", c.id))
}

func (g *Gateway) serveHealth(w http.ResponseWriter, _ *http.Request) {
	g.mu.RLock()
	conns := len(g.clients)
	g.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"games":       g.reg.Len(),
		"connections": conns,
	})
}

func (g *Gateway) serveGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, g.waitingGames(r.Context()))
}

// serveResults lists recent finished games (?limit=N), or one game with ?id=.
func (g *Gateway) serveResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if g.cfg.Results == nil {
		writeJSON(w, http.StatusNotFound, arenadto.Error{Code: "game-not-found", Message: g.cat.Error("game-not-found")})
		return
	}
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("id")); id != "" {
		sum, err := g.cfg.Results.Get(r.Context(), id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, arenadto.Error{Code: "game-not-found", Message: g.cat.Error("game-not-found")})
		case err != nil:
			obslog.L().Error("results_get_error", zap.String("game_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, arenadto.Error{Code: "internal", Message: g.cat.Error("internal")})
		default:
			writeJSON(w, http.StatusOK, sum)
		}
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, arenadto.Error{Code: "invalid-request", Message: g.cat.Error("invalid-request")})
			return
		}
		limit = n
	}
	list, err := g.cfg.Results.Recent(r.Context(), limit)
	if err != nil {
		obslog.L().Error("results_recent_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, arenadto.Error{Code: "internal", Message: g.cat.Error("internal")})
		return
	}
	if list == nil {
		list = []*session.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": list})
}

func (g *Gateway) waitingGames(ctx context.Context) arenadto.Games {
	list := g.reg.Waiting()
	if g.lister != nil {
		if fromLobby, err := g.lister.ListWaiting(ctx); err != nil {
			obslog.L().Warn("lobby_list_error", zap.Error(err))
		} else {
			list = fromLobby
		}
	}
	out := arenadto.Games{Games: make([]arenadto.WaitingGame, 0, len(list))}
	for _, w := range list {
		out.Games = append(out.Games, arenadto.WaitingGame{
			GameID:      w.ID,
			Creator:     arenadto.Player{ID: w.Creator.ID, Name: w.Creator.Name},
			TimeControl: w.TimeControl,
			CreatedAt:   w.CreatedAt,
		})
	}
	return out
}

// Close stops accepting, closes every connection and waits for connection
// goroutines and pending result deliveries.
func (g *Gateway) Close(ctx context.Context) error {
	g.stopOnce.Do(func() { close(g.stopCh) })

	g.mu.RLock()
	open := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		open = append(open, c)
	}
	g.mu.RUnlock()
	for _, c := range open {
		go c.close(websocket.StatusGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		g.reg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (g *Gateway) isStopping() bool {
	select {
	case <-g.stopCh:
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
