// Package errs defines the sentinel errors shared by the server and client
// state managers so callers can branch with errors.Is instead of string
// matching.
package errs

import "errors"

var (
	// ErrDuplicateID is returned when a Create targets an id already present
	// in shapes or handles.
	ErrDuplicateID = errors.New("cwse: duplicate shape id")

	// ErrUnknownID is returned when a Modify or Delete targets an id that is
	// neither live nor tombstoned.
	ErrUnknownID = errors.New("cwse: unknown shape id")

	// ErrTombstoned marks an intentional no-op: a late Modify or Delete
	// arriving for an id that was already deleted locally.
	ErrTombstoned = errors.New("cwse: shape id is tombstoned")

	// ErrGenerationMismatch names an envelope whose generation does not
	// match the replica's current generation. Neither manager returns it:
	// the server drops such an update with (false, nil) and the client
	// reports ErrSyncLost.
	ErrGenerationMismatch = errors.New("cwse: checkpoint generation mismatch")

	// ErrMultiShapeUpdate is returned when a Create/Modify/Delete envelope
	// carries a shape count other than envelope.SingleUpdateSize.
	ErrMultiShapeUpdate = errors.New("cwse: update envelope must carry exactly one shape")

	// ErrUndoUnderflow is returned by DoUndo when the undo stack is empty.
	ErrUndoUnderflow = errors.New("cwse: undo stack is empty")

	// ErrRedoUnderflow is returned by DoRedo when the redo stack is empty.
	ErrRedoUnderflow = errors.New("cwse: redo stack is empty")

	// ErrNotAuthorized names a low-privilege user attempting an operation
	// reserved for high-privilege users (ClearState). No code path returns
	// it: neither manager checks the user level before applying ClearState.
	ErrNotAuthorized = errors.New("cwse: user level does not permit this operation")

	// ErrUnknownCheckpoint is returned when FetchCheckpoint names a number
	// the checkpoint store never assigned.
	ErrUnknownCheckpoint = errors.New("cwse: unknown checkpoint number")

	// ErrBothNil is returned by undo/redo push when both before and after
	// are nil, which is never a valid history entry.
	ErrBothNil = errors.New("cwse: undo/redo entry cannot have both before and after nil")

	// ErrSyncLost is raised by the client when a data-op envelope's
	// generation disagrees with the replica's generation: the client is out
	// of sync and should resubscribe.
	ErrSyncLost = errors.New("cwse: client out of sync, resubscribe required")
)
