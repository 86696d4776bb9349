// arenacheck checks a running arena server: health, lobby, recent results and a websocket
// round trip.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

func main() {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("ARENA_URL")), "/")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	client := &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	for _, path := range []string{"/healthz", "/games", "/results?limit=5"} {
		status, body, err := client.GetTimeout(nil, baseURL+path, 5*time.Second)
		if err != nil {
			log.Printf("%s error: %v", path, err)
			continue
		}
		log.Printf("%s status=%d body=%s", path, status, strings.TrimSpace(string(body)))
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?name=arenacheck"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, conn, arenadto.Envelope{Type: arenadto.TypeListGames}); err != nil {
		log.Printf("WS write error: %v", err)
		return
	}
	for {
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			log.Printf("WS read error: %v", err)
			return
		}
		fmt.Printf("WS %s %s\n", ev.Type, ev.Data)
		if ev.Type == arenadto.TypeGames || ev.Type == arenadto.TypeError {
			return
		}
	}
}
