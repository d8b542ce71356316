package client

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/pqueue"
	"github.com/collabwhiteboard/cwse/pkg/shape"
	"github.com/collabwhiteboard/cwse/pkg/undo"
)

// UXListener receives the rendering-side deltas a single state transition
// produces.
type UXListener func([]envelope.UXShape)

// Sender is the subset of Communicator the Manager depends on, letting
// tests substitute a fake without standing up a real bus.
type Sender interface {
	Send(env envelope.Update) error
}

// Manager is the client replica: shapes + handles + pq + tombstones +
// gen, plus undo/redo and registered listeners, all guarded by a single
// mutex. Listener callbacks run while the lock is held so callers observe
// a coherent, non-interleaved sequence of UX deltas.
type Manager struct {
	mu sync.Mutex

	gen               int
	shapes            map[string]shape.BoardShape
	handles           map[string]*pqueue.Element
	pq                *pqueue.Queue
	tomb              map[string]struct{} // unbounded; client-only structure
	undo              *undo.Stack
	redo              *undo.Stack
	checkpointsNumber int

	currentUser string
	userLevel   shape.UserLevel
	listeners   map[string]UXListener

	comm   Sender
	logger logging.Logger
}

// NewManager constructs a client replica for currentUser/userLevel, wired
// to comm for outbound envelopes.
func NewManager(currentUser string, userLevel shape.UserLevel, comm Sender, opts ...Option) *Manager {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Manager{
		shapes:      make(map[string]shape.BoardShape),
		handles:     make(map[string]*pqueue.Element),
		pq:          pqueue.New(),
		tomb:        make(map[string]struct{}),
		undo:        undo.NewStack(cfg.undoRedoCapacity),
		redo:        undo.NewStack(cfg.undoRedoCapacity),
		currentUser: currentUser,
		userLevel:   userLevel,
		listeners:   make(map[string]UXListener),
		comm:        comm,
		logger:      cfg.logger,
	}
}

// Subscribe nullifies all local structures (every present id is treated as
// now-deleted), registers listener under id, and requests a fresh
// FetchState from the server.
func (m *Manager) Subscribe(id string, listener UXListener) {
	m.mu.Lock()
	m.nullifyLocked()
	m.listeners[id] = listener
	m.mu.Unlock()

	m.sendEnvelope(envelope.Update{
		Op:              envelope.OpFetchState,
		RequesterUserID: m.currentUser,
		Generation:      m.gen,
	})
}

// Unsubscribe removes a previously registered listener.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	delete(m.listeners, id)
	m.mu.Unlock()
}

// SaveOperation is the local application of a user-originated edit. It
// checks preconditions, updates local state, pushes the (before, after)
// pair onto undo, clears redo, and forwards the envelope to the
// communicator.
func (m *Manager) SaveOperation(op envelope.Op, b shape.BoardShape) (bool, error) {
	m.mu.Lock()

	var (
		before *shape.BoardShape
		after  *shape.BoardShape
		outBS  shape.BoardShape
	)

	switch op {
	case envelope.OpCreate:
		if _, exists := m.shapes[b.ShapeID]; exists {
			m.mu.Unlock()
			return false, fmt.Errorf("save operation create %s: %w", b.ShapeID, errs.ErrDuplicateID)
		}
		clone := b.Clone()
		clone.CreatorUserID = m.currentUser
		clone.Permission = m.userLevel
		clone.RecentOp = shape.OpCreate
		m.shapes[clone.ShapeID] = clone
		m.handles[clone.ShapeID] = m.pq.Insert(clone.ShapeID, clone.LastModifiedAt)
		delete(m.tomb, clone.ShapeID)
		after = &clone
		outBS = clone

	case envelope.OpModify:
		if _, tombstoned := m.tomb[b.ShapeID]; tombstoned {
			m.mu.Unlock()
			return false, fmt.Errorf("save operation modify %s: %w", b.ShapeID, errs.ErrTombstoned)
		}
		existing, exists := m.shapes[b.ShapeID]
		if !exists {
			m.mu.Unlock()
			return false, fmt.Errorf("save operation modify %s: %w", b.ShapeID, errs.ErrUnknownID)
		}
		prev := existing.Clone()
		clone := b.Clone()
		clone.RecentOp = shape.OpModify
		m.shapes[clone.ShapeID] = clone
		m.pq.IncreaseTimestamp(m.handles[clone.ShapeID], clone.LastModifiedAt)
		before, after = &prev, &clone
		outBS = clone

	case envelope.OpDelete:
		if _, tombstoned := m.tomb[b.ShapeID]; tombstoned {
			m.mu.Unlock()
			return false, fmt.Errorf("save operation delete %s: %w", b.ShapeID, errs.ErrTombstoned)
		}
		existing, exists := m.shapes[b.ShapeID]
		if !exists {
			m.mu.Unlock()
			return false, fmt.Errorf("save operation delete %s: %w", b.ShapeID, errs.ErrUnknownID)
		}
		prev := existing.Clone()
		m.pq.Delete(m.handles[b.ShapeID])
		delete(m.shapes, b.ShapeID)
		delete(m.handles, b.ShapeID)
		m.tomb[b.ShapeID] = struct{}{}
		before = &prev
		outBS = prev

	default:
		m.mu.Unlock()
		return false, fmt.Errorf("save operation: unsupported op %q", op)
	}

	if err := m.undo.Push(before, after); err != nil {
		m.logger.Warn("save operation: undo push failed", zap.Error(err))
	}
	m.redo.Clear()
	gen := m.gen
	m.mu.Unlock()

	err := m.comm.Send(envelope.Update{
		Shapes:          []shape.BoardShape{outBS},
		Op:              op,
		RequesterUserID: m.currentUser,
		Generation:      gen,
	})
	return true, err
}

// OnMessageReceived is the Communicator's UpdateListener: it never
// propagates low-level errors to the caller, logging and swallowing
// instead, except for the synchronization-error case which is surfaced
// via logging at Warn (a subscribing caller is expected to notice via its
// own health checks and resubscribe).
func (m *Manager) OnMessageReceived(env envelope.Update) {
	if err := m.onMessageReceived(env); err != nil {
		m.logger.Warn("on message received", zap.String("op", string(env.Op)), zap.Error(err))
	}
}

func (m *Manager) onMessageReceived(env envelope.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch env.Op {
	case envelope.OpFetchState:
		if env.RequesterUserID != m.currentUser {
			return nil
		}
		m.nullifyLocked()
		ux := m.installSnapshotLocked(env.Shapes, env.Op)
		m.gen = env.Generation
		m.checkpointsNumber = env.CheckpointNumber
		m.notifyLocked(ux)
		return nil

	case envelope.OpFetchCheckpoint:
		m.nullifyLocked()
		ux := m.installSnapshotLocked(env.Shapes, env.Op)
		m.gen = env.Generation
		m.checkpointsNumber = env.CheckpointNumber
		m.notifyLocked(ux)
		return nil

	case envelope.OpCreateCheckpoint:
		m.checkpointsNumber = env.CheckpointNumber
		m.notifyLocked([]envelope.UXShape{{CheckpointNumber: env.CheckpointNumber, SourceOp: env.Op}})
		return nil

	case envelope.OpClearState:
		m.gen = env.Generation
		m.nullifyLocked()
		m.notifyLocked([]envelope.UXShape{{SourceOp: env.Op}})
		return nil

	case envelope.OpCreate, envelope.OpModify, envelope.OpDelete:
		if env.RequesterUserID == m.currentUser {
			return nil // already applied locally by SaveOperation
		}
		b, ok := env.SingleShape()
		if !ok {
			return fmt.Errorf("remote %s: %w", env.Op, errs.ErrMultiShapeUpdate)
		}
		if _, tombstoned := m.tomb[b.ShapeID]; tombstoned {
			return nil // concurrent local delete already won
		}
		if env.Generation != m.gen {
			return errs.ErrSyncLost
		}
		var ux []envelope.UXShape
		if env.Op == envelope.OpDelete {
			ux = m.applyRemoteDeleteLocked(b.ShapeID)
		} else {
			ux = m.applyRemoteCreateOrModifyLocked(env.Op, b)
		}
		m.notifyLocked(ux)
		return nil

	default:
		return fmt.Errorf("on message received: unsupported op %q", env.Op)
	}
}

// installSnapshotLocked replaces the (already-nullified) local structures
// with shapes and returns the CREATE UX deltas for each, tagged sourceOp.
// Caller must hold m.mu.
func (m *Manager) installSnapshotLocked(shapes []shape.BoardShape, sourceOp envelope.Op) []envelope.UXShape {
	ux := make([]envelope.UXShape, 0, len(shapes))
	for _, b := range shapes {
		clone := b.Clone()
		m.shapes[clone.ShapeID] = clone
		m.handles[clone.ShapeID] = m.pq.Insert(clone.ShapeID, clone.LastModifiedAt)
		delete(m.tomb, clone.ShapeID)
		ux = append(ux, envelope.UXShape{
			UXOp:     envelope.UXCreate,
			Shape:    clone.Shape,
			ShapeID:  clone.ShapeID,
			SourceOp: sourceOp,
		})
	}
	return ux
}

// nullifyLocked treats every currently-present id as now-deleted: it moves
// each into tombstones and empties shapes, handles, and pq. Caller must
// hold m.mu.
func (m *Manager) nullifyLocked() {
	for id := range m.shapes {
		m.tomb[id] = struct{}{}
	}
	m.shapes = make(map[string]shape.BoardShape)
	m.handles = make(map[string]*pqueue.Element)
	m.pq.Clear()
}

// notifyLocked invokes every registered listener with ux, in listener-map
// iteration order. Each call is recovered individually so a failing
// listener does not prevent others from receiving the update.
func (m *Manager) notifyLocked(ux []envelope.UXShape) {
	for id, l := range m.listeners {
		m.invokeListener(id, l, ux)
	}
}

func (m *Manager) invokeListener(id string, l UXListener, ux []envelope.UXShape) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listener panicked", zap.String("listener_id", id), zap.Any("recover", r))
		}
	}()
	l(ux)
}

func (m *Manager) sendEnvelope(env envelope.Update) {
	if err := m.comm.Send(env); err != nil {
		m.logger.Warn("send envelope failed", zap.String("op", string(env.Op)), zap.Error(err))
	}
}

// Generation returns the replica's current checkpoint generation.
func (m *Manager) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// CheckpointsNumber returns the client-visible checkpoint count.
func (m *Manager) CheckpointsNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpointsNumber
}

// Shape returns a deep copy of the live BoardShape for id, or false if id
// is not currently present.
func (m *Manager) Shape(id string) (shape.BoardShape, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.shapes[id]
	if !ok {
		return shape.BoardShape{}, false
	}
	return b.Clone(), true
}

// Len returns the number of live shapes in the replica.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shapes)
}
