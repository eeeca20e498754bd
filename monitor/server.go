package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazna-vm/hazna/runtime"
)

// Snapshot is a local alias of runtime.World's observability view, so
// the rest of this package can talk about "Snapshot" without every
// file importing runtime directly.
type Snapshot = runtime.Snapshot

// Poll periodically reads w's snapshot and hands it to b, until stop
// is closed. Grounded on the teacher's api.Server polling its VM on a
// ticker and broadcasting the result (api/server.go's monitoring
// loop), repointed from "one VM's registers" to "one world's modules
// and tasks."
func Poll(w *runtime.World, b *Broadcaster, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Broadcast(w.Snapshot())
		case <-stop:
			return
		}
	}
}

// SnapshotHandler serves a single JSON snapshot of w's current state,
// for a client that just wants a one-shot poll rather than a
// websocket subscription.
func SnapshotHandler(w *runtime.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(w.Snapshot()); err != nil {
			log.Printf("monitor: encode snapshot: %v", err)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketHandler upgrades a connection and streams every snapshot b
// broadcasts to it, until the client disconnects. Grounded on the
// teacher's api/websocket.go client read/write pump pair, trimmed to
// this package's one-message-type stream (no subscription filtering:
// a monitor client watches the whole world, not one session).
func WebSocketHandler(b *Broadcaster) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Printf("monitor: websocket upgrade: %v", err)
			return
		}
		sub := b.Subscribe()
		go writePump(conn, sub)
		go readPump(conn, b, sub)
	}
}

func readPump(conn *websocket.Conn, b *Broadcaster, sub *Subscription) {
	defer func() {
		b.Unsubscribe(sub)
		_ = conn.Close()
	}()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case snap, ok := <-sub.Channel:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
