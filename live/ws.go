// Package live bridges the change feed to browser clients: each websocket
// joins a per-table room and receives that table's change events as JSON.
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"laborease/changefeed"
	"laborease/globals"
	"laborease/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins — adjust for production if needed
		return true
	},
}

type Fanout struct {
	feed *changefeed.Feed

	mu          sync.Mutex
	subscribers map[string][]*websocket.Conn
	subs        []*changefeed.Subscription
}

func NewFanout(feed *changefeed.Feed) *Fanout {
	return &Fanout{
		feed:        feed,
		subscribers: make(map[string][]*websocket.Conn),
	}
}

// Start subscribes the fanout to the three lifecycle tables.
func (f *Fanout) Start() error {
	for _, table := range []string{models.TableJobs, models.TableApplications, models.TableAssignments} {
		sub, err := f.feed.Subscribe(globals.Ctx, table, changefeed.EventAny, nil, func(ev changefeed.Event) {
			data, err := json.Marshal(ev)
			if err != nil {
				return
			}
			f.broadcast(ev.Table, data)
		})
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.subs = append(f.subs, sub)
		f.mu.Unlock()
	}
	return nil
}

// Stop releases the feed subscriptions.
func (f *Fanout) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		sub.Unsubscribe()
	}
	f.subs = nil
}

// HandleWS handles GET /ws/updates/:table
func (f *Fanout) HandleWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	table := ps.ByName("table")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.subscribers[table] = append(f.subscribers[table], conn)
	f.mu.Unlock()

	for {
		// This keeps the connection alive until the client disconnects
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Clean up on disconnect
	f.mu.Lock()
	conns := f.subscribers[table]
	newList := make([]*websocket.Conn, 0, len(conns))
	for _, c := range conns {
		if c != conn {
			newList = append(newList, c)
		}
	}
	f.subscribers[table] = newList
	f.mu.Unlock()

	conn.Close()
}

func (f *Fanout) broadcast(table string, val []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conns := f.subscribers[table]
	newList := conns[:0]

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, val); err == nil {
			newList = append(newList, conn)
		} else {
			log.Printf("live: dropping subscriber on %s: %v", table, err)
			conn.Close()
		}
	}

	f.subscribers[table] = newList
}
