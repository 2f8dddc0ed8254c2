package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/atoms-tech/gridsync/internal/grid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn is one websocket subscriber attached to a hub.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub broadcasts snapshot frames for one table to its websocket
// subscribers. It satisfies Applier so a Feed can drive it directly.
type Hub struct {
	table  grid.TableID
	logger *slog.Logger

	register   chan *conn
	unregister chan *conn
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub builds a hub for table. Call Run before attaching subscribers.
func NewHub(table grid.TableID, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		table:      table,
		logger:     logger,
		register:   make(chan *conn),
		unregister: make(chan *conn),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeOnce.Do(func() { close(h.done) })

	conns := make(map[*conn]struct{})
	defer func() {
		for c := range conns {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			conns[c] = struct{}{}
			h.logger.Debug("subscriber joined", "table", h.table, "subscribers", len(conns))
		case c := <-h.unregister:
			if _, ok := conns[c]; ok {
				delete(conns, c)
				close(c.send)
				h.logger.Debug("subscriber left", "table", h.table, "subscribers", len(conns))
			}
		case frame := <-h.broadcast:
			for c := range conns {
				select {
				case c.send <- frame:
				default:
					// Slow consumer, drop it. The client reconnects
					// and pulls a fresh snapshot.
					delete(conns, c)
					close(c.send)
				}
			}
		}
	}
}

// OnColumnSnapshot broadcasts a column snapshot frame.
func (h *Hub) OnColumnSnapshot(columns []grid.Column) {
	h.push(SnapshotMessage{Table: h.table, Kind: KindColumns, Columns: columns})
}

// OnRowSnapshot broadcasts a row snapshot frame.
func (h *Hub) OnRowSnapshot(rows []grid.Row) {
	h.push(SnapshotMessage{Table: h.table, Kind: KindRows, Rows: rows})
}

func (h *Hub) push(msg SnapshotMessage) {
	frame, err := EncodeSnapshot(msg)
	if err != nil {
		h.logger.Warn("dropping unencodable snapshot", "table", h.table, "error", err)
		return
	}
	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

// ServeHTTP upgrades the request to a websocket subscriber. Incoming
// frames from the peer are discarded; the stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "table", h.table, "error", err)
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		ws.Close()
		return
	}

	go c.writePump()
	c.readPump(h)
}

func (c *conn) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.ws.Close()
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for frame := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}
