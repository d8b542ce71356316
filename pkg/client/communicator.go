// Package client implements the client-side state replica (Manager, in
// manager.go), the remote-op reorder protocol (reorder.go), the undo/redo
// rollback routine (rollback.go), and the bus-facing Communicator adapter
// (this file).
package client

import (
	"sync"

	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
)

// UpdateListener receives every envelope the bus delivers for the
// whiteboard module.
type UpdateListener func(envelope.Update)

// Communicator subscribes to the message bus under bus.ModuleWhiteboard,
// exposes Send and Subscribe, and fans deserialized envelopes out to every
// registered UpdateListener. Construction is lazy-singleton: the bus
// subscription is only established the first time Subscribe is called.
type Communicator struct {
	b        bus.Bus
	clientID string
	codec    envelope.Codec

	once sync.Once
	mu   sync.Mutex
	subs []UpdateListener
}

// NewCommunicator wraps b, registering inbound handling under clientID so
// the server's unicast replies (FetchState results, SendTo-addressed
// fan-out) reach this client. The bus subscription itself is deferred
// until the first Subscribe call (lazy-singleton construction).
func NewCommunicator(b bus.Bus, clientID string) *Communicator {
	return &Communicator{b: b, clientID: clientID}
}

// Subscribe registers listener to receive every inbound envelope.
func (c *Communicator) Subscribe(listener UpdateListener) {
	c.once.Do(func() {
		c.b.Subscribe(bus.ModuleWhiteboard, c.clientID, 0, c.handleInbound)
	})
	c.mu.Lock()
	c.subs = append(c.subs, listener)
	c.mu.Unlock()
}

// Send serializes env and forwards it to the bus.
func (c *Communicator) Send(env envelope.Update) error {
	payload, err := c.codec.Marshal(env)
	if err != nil {
		return err
	}
	return c.b.Send(bus.ModuleWhiteboard, payload)
}

func (c *Communicator) handleInbound(payload []byte) {
	env, err := c.codec.Unmarshal(payload)
	if err != nil {
		return // transport/serialization failure: surfaced nowhere further, state unchanged
	}
	c.mu.Lock()
	listeners := append([]UpdateListener(nil), c.subs...)
	c.mu.Unlock()
	for _, l := range listeners {
		l(env)
	}
}
