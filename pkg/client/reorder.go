package client

import (
	"time"

	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

// applyRemoteCreateOrModifyLocked implements the remote-op reorder
// protocol: a remote Create or Modify arrives carrying its own
// LastModifiedAt, which may be chronologically earlier than shapes
// already local. Left alone, inserting it naively would draw it on top of
// shapes that are chronologically older than it claims to be, corrupting
// z-order. Instead:
//
//  1. if this is a Modify of a shape that already exists locally, the old
//     version is removed first, before the next step runs — otherwise a
//     Modify whose target is newer than the incoming timestamp would have
//     that very target withdrawn as a "bumped" shape and reinserted
//     verbatim, undoing the modification;
//  2. every remaining locally-held shape strictly newer than the incoming
//     timestamp is withdrawn from the priority queue (and, for UX
//     purposes, from the render stack);
//  3. the incoming shape is inserted at its own timestamp;
//  4. the withdrawn shapes are reinserted, oldest-withdrawn-first, so their
//     relative order among themselves is preserved;
//  5. each reinsertion is expressed to listeners as Delete-then-Create, so
//     the render stack redraws them above the newly inserted shape;
//  6. the combined UX delta — old-version delete (if Modify) and incoming
//     create first, then each bumped shape — is returned for the caller
//     to hand to notifyLocked.
//
// Caller must hold m.mu.
func (m *Manager) applyRemoteCreateOrModifyLocked(op envelope.Op, b shape.BoardShape) []envelope.UXShape {
	var ux []envelope.UXShape

	if op == envelope.OpModify {
		if old, exists := m.shapes[b.ShapeID]; exists {
			if h, ok := m.handles[b.ShapeID]; ok {
				m.pq.Delete(h)
			}
			delete(m.shapes, b.ShapeID)
			delete(m.handles, b.ShapeID)
			ux = append(ux, envelope.UXShape{
				UXOp: envelope.UXDelete, ShapeID: old.ShapeID, SourceOp: op,
			})
		}
	}

	withdrawn := m.withdrawNewerThanLocked(b.LastModifiedAt)

	clone := b.Clone()
	clone.RecentOp = shape.OpCreate
	if op == envelope.OpModify {
		clone.RecentOp = shape.OpModify
	}
	m.shapes[clone.ShapeID] = clone
	m.handles[clone.ShapeID] = m.pq.Insert(clone.ShapeID, clone.LastModifiedAt)
	delete(m.tomb, clone.ShapeID)
	ux = append(ux, envelope.UXShape{
		UXOp: envelope.UXCreate, Shape: clone.Shape, ShapeID: clone.ShapeID, SourceOp: op,
	})

	for _, w := range withdrawn {
		m.shapes[w.ShapeID] = w
		m.handles[w.ShapeID] = m.pq.Insert(w.ShapeID, w.LastModifiedAt)
		ux = append(ux,
			envelope.UXShape{UXOp: envelope.UXDelete, ShapeID: w.ShapeID, SourceOp: op},
			envelope.UXShape{UXOp: envelope.UXCreate, Shape: w.Shape, ShapeID: w.ShapeID, SourceOp: op},
		)
	}

	return ux
}

// applyRemoteDeleteLocked removes shapeID from the live structures and
// tombstones it. Deleting a shape never disturbs the relative z-order of
// any other shape, so no reordering is needed here. Caller must hold m.mu.
func (m *Manager) applyRemoteDeleteLocked(shapeID string) []envelope.UXShape {
	if h, ok := m.handles[shapeID]; ok {
		m.pq.Delete(h)
	}
	delete(m.shapes, shapeID)
	delete(m.handles, shapeID)
	m.tomb[shapeID] = struct{}{}
	return []envelope.UXShape{{UXOp: envelope.UXDelete, ShapeID: shapeID, SourceOp: envelope.OpDelete}}
}

// withdrawNewerThanLocked removes every shape strictly newer than ts from
// the priority queue and live maps, returning them ordered oldest-first so
// callers can reinsert while preserving their relative order. Caller must
// hold m.mu.
func (m *Manager) withdrawNewerThanLocked(ts time.Time) []shape.BoardShape {
	var descending []shape.BoardShape
	for top := m.pq.Top(); top != nil && top.Timestamp.After(ts); top = m.pq.Top() {
		b := m.shapes[top.ShapeID]
		m.pq.Extract()
		delete(m.shapes, top.ShapeID)
		delete(m.handles, top.ShapeID)
		descending = append(descending, b)
	}
	for i, j := 0, len(descending)-1; i < j; i, j = i+1, j-1 {
		descending[i], descending[j] = descending[j], descending[i]
	}
	return descending
}
