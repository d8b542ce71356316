package bus

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSBus is a gorilla/websocket-backed Bus: each connected client owns one
// *websocket.Conn, read via a per-connection readPump and written via a
// per-connection outbound channel drained by a writePump. WSBus only
// carries a single logical module (the whiteboard), since a server
// process normally dedicates one
// websocket endpoint to CWSE traffic; moduleID is accepted on every call
// for interface parity with Bus but is otherwise unused by this adapter.
type WSBus struct {
	mu           sync.RWMutex
	conns        map[string]*wsConn // clientID -> connection
	handler      Handler            // single registered handler, called for all inbound frames
	onDisconnect func(clientID string)
}

type wsConn struct {
	conn    *websocket.Conn
	outbox  chan []byte
	closeCh chan struct{}
}

// NewWSBus returns an empty websocket-backed bus.
func NewWSBus() *WSBus {
	return &WSBus{conns: make(map[string]*wsConn)}
}

// AddClient registers a newly accepted connection under clientID and
// starts its read/write pumps, mirroring the pattern of registering a
// connection and spinning up its pumps immediately on accept.
func (b *WSBus) AddClient(clientID string, conn *websocket.Conn) {
	wc := &wsConn{conn: conn, outbox: make(chan []byte, 64), closeCh: make(chan struct{})}

	b.mu.Lock()
	b.conns[clientID] = wc
	b.mu.Unlock()

	go b.writePump(wc)
	go b.readPump(clientID, wc)
}

// RemoveClient closes and forgets clientID's connection.
func (b *WSBus) RemoveClient(clientID string) {
	b.mu.Lock()
	wc, ok := b.conns[clientID]
	if ok {
		delete(b.conns, clientID)
	}
	onDisconnect := b.onDisconnect
	b.mu.Unlock()
	if ok {
		close(wc.closeCh)
		_ = wc.conn.Close()
	}
	if ok && onDisconnect != nil {
		onDisconnect(clientID)
	}
}

// SetOnDisconnect registers fn to run whenever a client's connection is
// removed, whether by an explicit RemoveClient call or a failed
// ReadMessage in readPump. Used by the server to keep the Router's
// connected-client set in sync with real socket lifetime.
func (b *WSBus) SetOnDisconnect(fn func(clientID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDisconnect = fn
}

func (b *WSBus) writePump(wc *wsConn) {
	for {
		select {
		case msg, ok := <-wc.outbox:
			if !ok {
				return
			}
			if err := wc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-wc.closeCh:
			return
		}
	}
}

func (b *WSBus) readPump(clientID string, wc *wsConn) {
	defer b.RemoveClient(clientID)
	for {
		_, payload, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		b.mu.RLock()
		h := b.handler
		b.mu.RUnlock()
		if h != nil {
			h(payload)
		}
	}
}

// Send broadcasts payload to every connected client. A client whose
// outbound buffer is full does not receive it.
func (b *WSBus) Send(_ string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, wc := range b.conns {
		select {
		case wc.outbox <- payload:
		default:
		}
	}
	return nil
}

// SendTo delivers payload to destClient only; a no-op if destClient is not
// connected.
func (b *WSBus) SendTo(_ string, payload []byte, destClient string) error {
	b.mu.RLock()
	wc, ok := b.conns[destClient]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case wc.outbox <- payload:
	default:
	}
	return nil
}

// Subscribe registers the single inbound handler for this bus. clientID
// and priority are accepted for Bus interface parity but unused: inbound
// routing is per-connection (readPump), not per-subscriber.
func (b *WSBus) Subscribe(_, _ string, _ int, handler Handler) func() {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.handler = nil
		b.mu.Unlock()
	}
}
