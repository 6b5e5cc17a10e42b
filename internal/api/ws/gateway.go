// Package ws streams bus events to websocket clients. Each connection
// gets its own bus subscription; a slow client only loses its own
// backlog (the bus drops oldest per subscriber).
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/bus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Envelope frames an outgoing message with its topic.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Gateway upgrades HTTP connections and fans bus events out to them.
type Gateway struct {
	bus      *bus.Bus
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewGateway(eventBus *bus.Bus, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		bus:    eventBus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and serves events until the client leaves.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	go g.serve(conn)
}

func (g *Gateway) serve(conn *websocket.Conn) {
	defer conn.Close()

	swaps := g.bus.SubscribeSwaps()
	candles := g.bus.SubscribeCandles()
	defer swaps.Close()
	defer candles.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case rec := <-swaps.C:
			if !g.write(conn, Envelope{Type: "swap.created", Payload: rec}) {
				return
			}
		case fc := <-candles.C:
			if !g.write(conn, Envelope{Type: "candle.finalized", Payload: fc}) {
				return
			}
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		g.logger.Error("marshal ws message", zap.Error(err))
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		g.logger.Debug("websocket write failed", zap.Error(err))
		return false
	}
	return true
}
