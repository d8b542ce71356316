package server

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
)

// Router demultiplexes incoming operation envelopes to the Manager and
// fans the result out to every connected client, concurrently, over the
// bus.
type Router struct {
	mgr    *Manager
	b      bus.Bus
	codec  envelope.Codec
	logger logging.Logger

	mu      sync.RWMutex
	clients map[string]struct{}
}

// NewRouter wires mgr to b under bus.ModuleWhiteboard.
func NewRouter(mgr *Manager, b bus.Bus, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOp()
	}
	r := &Router{mgr: mgr, b: b, logger: logger, clients: make(map[string]struct{})}
	b.Subscribe(bus.ModuleWhiteboard, "", 0, r.handleInbound)
	return r
}

// OnClientJoined registers clientID as a broadcast fan-out target.
func (r *Router) OnClientJoined(clientID string) {
	r.mu.Lock()
	r.clients[clientID] = struct{}{}
	n := len(r.clients)
	r.mu.Unlock()
	r.mgr.metrics.setConnectedClients(n)
}

// OnClientLeft removes clientID from the fan-out set.
func (r *Router) OnClientLeft(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	n := len(r.clients)
	r.mu.Unlock()
	r.mgr.metrics.setConnectedClients(n)
}

func (r *Router) handleInbound(payload []byte) {
	env, err := r.codec.Unmarshal(payload)
	if err != nil {
		r.logger.Warn("router: malformed envelope", zap.Error(err))
		return
	}

	switch env.Op {
	case envelope.OpFetchState:
		result := r.mgr.FetchState(env.RequesterUserID)
		r.sendTo(env.RequesterUserID, result)

	case envelope.OpFetchCheckpoint:
		result, err := r.mgr.FetchCheckpoint(env.CheckpointNumber, env.RequesterUserID)
		if err != nil {
			r.logger.Warn("router: fetch checkpoint failed", zap.Error(err))
			return
		}
		r.broadcast(result)

	case envelope.OpCreate, envelope.OpModify, envelope.OpDelete, envelope.OpClearState:
		applied, err := r.mgr.SaveUpdate(env)
		if err != nil {
			r.logger.Warn("router: save update rejected", zap.String("op", string(env.Op)), zap.Error(err))
			return
		}
		if !applied {
			return // intentional no-op or stale generation; nothing to broadcast
		}
		r.broadcast(env)

	default:
		r.logger.Warn("router: unsupported operation", zap.String("op", string(env.Op)))
	}
}

// HandleCreateCheckpoint services a client's request to take a checkpoint.
// It is exposed separately from handleInbound because CreateCheckpoint is
// modeled as the *result* op broadcast after a save, while the client's
// *request* to save one is naturally a direct call rather than a wire
// envelope with its own distinct request op.
func (r *Router) HandleCreateCheckpoint(userID string) error {
	result, err := r.mgr.SaveCheckpoint(userID)
	if err != nil {
		return err
	}
	r.broadcast(result)
	return nil
}

// broadcast fans out env to every connected client concurrently via
// errgroup, collecting (but not failing on) individual SendTo errors —
// one unreachable client must not block delivery to the rest.
func (r *Router) broadcast(env envelope.Update) {
	payload, err := r.codec.Marshal(env)
	if err != nil {
		r.logger.Warn("router: marshal broadcast failed", zap.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]string, 0, len(r.clients))
	for id := range r.clients {
		targets = append(targets, id)
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for _, clientID := range targets {
		clientID := clientID
		g.Go(func() error {
			return r.b.SendTo(bus.ModuleWhiteboard, payload, clientID)
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("router: broadcast partial failure", zap.Error(err))
	}
}

func (r *Router) sendTo(clientID string, env envelope.Update) {
	payload, err := r.codec.Marshal(env)
	if err != nil {
		r.logger.Warn("router: marshal send failed", zap.Error(err))
		return
	}
	if err := r.b.SendTo(bus.ModuleWhiteboard, payload, clientID); err != nil {
		r.logger.Warn("router: send failed", zap.String("client_id", clientID), zap.Error(err))
	}
}
