// Package server implements the authoritative state replica (Manager),
// the server-side checkpoint handling, and the broadcast router
// (router.go).
package server

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/checkpoint"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/pqueue"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

// Manager is the authoritative server-side replica: shapes + handles + pq
// + tombstones + gen, guarded by a single mutex.
type Manager struct {
	mu sync.Mutex

	shapes  map[string]shape.BoardShape
	handles map[string]*pqueue.Element
	pq      *pqueue.Queue
	tomb    *tombstoneSet
	gen     int

	checkpoints checkpoint.Store
	logger      logging.Logger
	metrics     *Metrics
}

// NewManager constructs an empty authoritative replica at generation
// envelope.InitialCheckpointState.
func NewManager(opts ...Option) *Manager {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Manager{
		shapes:      make(map[string]shape.BoardShape),
		handles:     make(map[string]*pqueue.Element),
		pq:          pqueue.New(),
		tomb:        newTombstoneSet(cfg.tombstoneCacheSize),
		gen:         envelope.InitialCheckpointState,
		checkpoints: cfg.checkpoints,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
	}
}

// FetchState returns the current shapes ordered by ascending
// last-modified-time, tagged FetchState. It does not mutate state.
func (m *Manager) FetchState(userID string) envelope.Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := m.orderedShapesLocked()
	return envelope.Update{
		Shapes:           ordered,
		Op:               envelope.OpFetchState,
		RequesterUserID:  userID,
		CheckpointNumber: m.checkpoints.Count(),
		Generation:       m.gen,
	}
}

// SaveUpdate applies a single-shape Create/Modify/Delete, or a ClearState,
// to the authoritative replica. It returns false (with a nil error) for
// intentional no-op cases (tombstoned modify/delete, stale generation); it
// returns false with a non-nil error for protocol-invariant violations.
func (m *Manager) SaveUpdate(env envelope.Update) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch env.Op {
	case envelope.OpClearState:
		m.clearStateLocked(env.Generation)
		m.metrics.observeUpdate(string(env.Op), "applied")
		return true, nil

	case envelope.OpCreate, envelope.OpModify, envelope.OpDelete:
		b, ok := env.SingleShape()
		if !ok {
			m.metrics.observeUpdate(string(env.Op), "rejected")
			return false, fmt.Errorf("%s: %w", env.Op, errs.ErrMultiShapeUpdate)
		}
		if env.Generation != m.gen {
			m.logger.Debug("save update: stale generation",
				zap.String("op", string(env.Op)), zap.String("shape_id", b.ShapeID),
				zap.Int("envelope_gen", env.Generation), zap.Int("server_gen", m.gen))
			m.metrics.observeUpdate(string(env.Op), "stale_generation")
			return false, nil
		}

		var (
			applied bool
			err     error
		)
		switch env.Op {
		case envelope.OpCreate:
			applied, err = m.createLocked(b)
		case envelope.OpModify:
			applied, err = m.modifyLocked(b)
		case envelope.OpDelete:
			applied, err = m.deleteLocked(b)
		}
		outcome := "applied"
		switch {
		case err != nil:
			outcome = "rejected"
		case !applied:
			outcome = "noop"
		}
		m.metrics.observeUpdate(string(env.Op), outcome)
		return applied, err

	default:
		return false, fmt.Errorf("save update: unsupported operation %q", env.Op)
	}
}

func (m *Manager) createLocked(b shape.BoardShape) (bool, error) {
	if _, exists := m.shapes[b.ShapeID]; exists {
		return false, fmt.Errorf("create %s: %w", b.ShapeID, errs.ErrDuplicateID)
	}
	if _, exists := m.handles[b.ShapeID]; exists {
		return false, fmt.Errorf("create %s: %w", b.ShapeID, errs.ErrDuplicateID)
	}
	clone := b.Clone()
	clone.RecentOp = shape.OpCreate
	m.shapes[b.ShapeID] = clone
	m.handles[b.ShapeID] = m.pq.Insert(b.ShapeID, b.LastModifiedAt)
	m.tomb.Remove(b.ShapeID)
	return true, nil
}

func (m *Manager) modifyLocked(b shape.BoardShape) (bool, error) {
	if m.tomb.Has(b.ShapeID) {
		m.logger.Debug("modify on tombstoned id, dropped", zap.String("shape_id", b.ShapeID))
		return false, nil
	}
	if _, exists := m.shapes[b.ShapeID]; !exists {
		return false, fmt.Errorf("modify %s: %w", b.ShapeID, errs.ErrUnknownID)
	}
	clone := b.Clone()
	clone.RecentOp = shape.OpModify
	m.shapes[b.ShapeID] = clone
	m.pq.IncreaseTimestamp(m.handles[b.ShapeID], b.LastModifiedAt)
	return true, nil
}

func (m *Manager) deleteLocked(b shape.BoardShape) (bool, error) {
	if m.tomb.Has(b.ShapeID) {
		m.logger.Debug("delete on tombstoned id, dropped", zap.String("shape_id", b.ShapeID))
		return false, nil
	}
	if _, exists := m.shapes[b.ShapeID]; !exists {
		return false, fmt.Errorf("delete %s: %w", b.ShapeID, errs.ErrUnknownID)
	}
	m.pq.Delete(m.handles[b.ShapeID])
	delete(m.shapes, b.ShapeID)
	delete(m.handles, b.ShapeID)
	m.tomb.Add(b.ShapeID)
	return true, nil
}

// clearStateLocked moves every live id into tombstones, empties shapes,
// handles, and pq, and adopts newGen — the only way gen advances outside
// FetchCheckpoint.
func (m *Manager) clearStateLocked(newGen int) {
	for id := range m.shapes {
		m.tomb.Add(id)
	}
	m.shapes = make(map[string]shape.BoardShape)
	m.handles = make(map[string]*pqueue.Element)
	m.pq.Clear()
	m.gen = newGen
}

// SaveCheckpoint serializes the current ordered shape list into the
// checkpoint store and returns the broadcast-ready result envelope. State
// itself is unchanged.
func (m *Manager) SaveCheckpoint(userID string) (envelope.Update, error) {
	m.mu.Lock()
	ordered := m.orderedShapesLocked()
	gen := m.gen
	m.mu.Unlock()

	k, err := m.checkpoints.Save(ordered)
	if err != nil {
		return envelope.Update{}, fmt.Errorf("save checkpoint: %w", err)
	}
	m.metrics.setCheckpoints(m.checkpoints.Count())
	return envelope.Update{
		Op:               envelope.OpCreateCheckpoint,
		RequesterUserID:  userID,
		CheckpointNumber: k,
		Generation:       gen,
	}, nil
}

// FetchCheckpoint loads snapshot k, nullifies current state like
// ClearState but WITHOUT advancing gen through clearStateLocked, reinstalls
// the snapshot shapes, and sets gen := k, per the generation/checkpoint-
// identity convention documented in DESIGN.md.
func (m *Manager) FetchCheckpoint(k int, userID string) (envelope.Update, error) {
	shapes, err := m.checkpoints.Fetch(k)
	if err != nil {
		return envelope.Update{}, fmt.Errorf("fetch checkpoint: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.shapes {
		m.tomb.Add(id)
	}
	m.shapes = make(map[string]shape.BoardShape, len(shapes))
	m.handles = make(map[string]*pqueue.Element, len(shapes))
	m.pq.Clear()
	for _, b := range shapes {
		clone := b.Clone()
		m.shapes[clone.ShapeID] = clone
		m.handles[clone.ShapeID] = m.pq.Insert(clone.ShapeID, clone.LastModifiedAt)
		m.tomb.Remove(clone.ShapeID)
	}
	m.gen = k

	return envelope.Update{
		Shapes:           shape.CloneSlice(shapes),
		Op:               envelope.OpFetchCheckpoint,
		RequesterUserID:  userID,
		CheckpointNumber: k,
		Generation:       k,
	}, nil
}

// orderedShapesLocked returns shapes sorted ascending by LastModifiedAt,
// with the same ascending-ShapeID tiebreak pqueue uses, so checkpoint and
// FetchState snapshots are deterministic for equal timestamps. Caller must
// hold m.mu.
func (m *Manager) orderedShapesLocked() []shape.BoardShape {
	out := make([]shape.BoardShape, 0, len(m.shapes))
	for _, b := range m.shapes {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModifiedAt.Equal(out[j].LastModifiedAt) {
			return out[i].LastModifiedAt.Before(out[j].LastModifiedAt)
		}
		return out[i].ShapeID < out[j].ShapeID
	})
	return out
}
