// Package bus specifies a module-addressed reliable message bus with
// per-module priority queues. CWSE only depends on this interface; the
// bus's own delivery, ordering, and persistence guarantees are out of
// scope of this package.
//
// This package also ships two concrete adapters used by the rest of the
// module: an in-process Bus (inproc.go) for tests and single-process
// demos, and a gorilla/websocket-backed Bus (ws.go) for real deployments.
package bus

// Handler receives a raw payload as it arrives on the bus for the module
// it subscribed under. Handlers must not block the bus dispatcher for
// long; CWSE's own handlers only hold the state lock briefly.
type Handler func(payload []byte)

// Bus is the module-addressed message bus CWSE's client and server
// communicators depend on.
type Bus interface {
	// Send broadcasts payload to every subscriber of moduleID.
	Send(moduleID string, payload []byte) error

	// SendTo delivers payload to moduleID, scoped to a single destination
	// client.
	SendTo(moduleID string, payload []byte, destClient string) error

	// Subscribe registers handler under moduleID on behalf of clientID
	// (empty for a subscriber with no individual addressability, e.g. the
	// server's own router) with the given priority — higher values are
	// serviced first when the bus has a backlog. The returned func removes
	// the subscription.
	Subscribe(moduleID, clientID string, priority int, handler Handler) (unsubscribe func())
}

// ModuleWhiteboard is the module identifier the client communicator
// subscribes under.
const ModuleWhiteboard = "Whiteboard"
