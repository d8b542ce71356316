package client

import (
	"fmt"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/shape"
	"github.com/collabwhiteboard/cwse/pkg/undo"
)

// DoUndo pops the most recent undo entry, rolls the local replica back to
// its Before state, pushes the transposed entry onto redo, and forwards the
// resulting operation to the server. A tombstoned target (the shape was
// concurrently deleted by someone else since this entry was recorded) is
// skipped once: the dead entry is discarded and the next-older entry is
// tried, rather than surfacing an error to the caller.
func (m *Manager) DoUndo() (bool, error) {
	return m.rollback(m.undo, m.redo)
}

// DoRedo is DoUndo's mirror image: it pops from redo, rolls forward to
// After, and pushes the transposed entry back onto undo. Both directions
// share rollbackLocked because Transpose(Transpose(e)) == e — redoing is
// exactly undoing the already-transposed entry.
func (m *Manager) DoRedo() (bool, error) {
	return m.rollback(m.redo, m.undo)
}

// rollback pops the top entry of src, applies it, and pushes its transpose
// onto dst. It retries once across a single tombstoned (dead) entry before
// giving up.
func (m *Manager) rollback(src, dst *undo.Stack) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		m.mu.Lock()
		entry, ok := src.Pop()
		if !ok {
			m.mu.Unlock()
			if src == m.undo {
				return false, errs.ErrUndoUnderflow
			}
			return false, errs.ErrRedoUnderflow
		}

		dead, ux := m.rollbackLocked(entry)
		if dead {
			m.mu.Unlock()
			continue // this entry's target is gone; try the next-older one
		}

		if err := dst.PushEntry(entry.Transpose()); err != nil {
			m.logger.Warn("rollback: push transpose failed")
		}
		env := m.rollbackEnvelopeLocked(entry)
		m.notifyLocked(ux)
		m.mu.Unlock()

		return true, m.comm.Send(env)
	}
	return false, fmt.Errorf("rollback: %w", errs.ErrSyncLost)
}

// rollbackLocked rolls the local replica back to entry's Before state
// (restoring entry.Before if present, otherwise deleting the shape
// entry.After describes), returning
// whether the target was found dead (already tombstoned, so this entry can
// no longer be applied) and the UX delta to notify listeners with.
//
// Both directions reuse the remote-op reorder protocol: a rollback is
// applied as if it were a remote Create/Modify/Delete arriving with its
// recorded timestamp, so it withdraws and reinserts any shape that is now
// chronologically out of order exactly the way a real remote op would,
// rather than inlining a plain insert that could leave z-order wrong.
// Caller must hold m.mu.
func (m *Manager) rollbackLocked(entry undo.Entry) (dead bool, ux []envelope.UXShape) {
	switch {
	case entry.IsCreate():
		// Undo of a Create rolls back to nothing: delete the shape.
		id := entry.After.ShapeID
		if _, tombstoned := m.tomb[id]; tombstoned {
			return true, nil
		}
		return false, m.applyRemoteDeleteLocked(id)

	case entry.IsDelete():
		// Undo of a Delete recreates the shape from Before. The reorder
		// protocol's Create path clears any tombstone on the id itself, so
		// resurrecting this replica's own prior delete needs no special
		// casing here.
		b := entry.Before.Clone()
		return false, m.applyRemoteCreateOrModifyLocked(envelope.OpCreate, b)

	default: // IsModify
		id := entry.Before.ShapeID
		if _, tombstoned := m.tomb[id]; tombstoned {
			return true, nil
		}
		b := entry.Before.Clone()
		return false, m.applyRemoteCreateOrModifyLocked(envelope.OpModify, b)
	}
}

// rollbackEnvelopeLocked builds the outbound envelope describing entry's
// resulting state, for forwarding to the server as an ordinary Create/
// Modify/Delete. Caller must hold m.mu.
func (m *Manager) rollbackEnvelopeLocked(entry undo.Entry) envelope.Update {
	switch {
	case entry.IsCreate():
		return envelope.Update{
			Shapes:          []shape.BoardShape{*entry.After},
			Op:              envelope.OpDelete,
			RequesterUserID: m.currentUser,
			Generation:      m.gen,
		}
	case entry.IsDelete():
		return envelope.Update{
			Shapes:          []shape.BoardShape{*entry.Before},
			Op:              envelope.OpCreate,
			RequesterUserID: m.currentUser,
			Generation:      m.gen,
		}
	default:
		return envelope.Update{
			Shapes:          []shape.BoardShape{*entry.Before},
			Op:              envelope.OpModify,
			RequesterUserID: m.currentUser,
			Generation:      m.gen,
		}
	}
}
