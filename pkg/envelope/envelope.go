// Package envelope defines the wire-visible Update envelope and UXShape
// delta, along with the XML wire codec.
package envelope

import "github.com/collabwhiteboard/cwse/pkg/shape"

// Op is the wire-stable operation-flag enumeration.
type Op string

const (
	OpCreate           Op = "Create"
	OpModify           Op = "Modify"
	OpDelete           Op = "Delete"
	OpFetchState       Op = "FetchState"
	OpFetchCheckpoint  Op = "FetchCheckpoint"
	OpCreateCheckpoint Op = "CreateCheckpoint"
	OpClearState       Op = "ClearState"
)

// SingleUpdateSize is the number of shapes a Create/Modify/Delete
// envelope must carry exactly.
const SingleUpdateSize = 1

// InitialCheckpointState is the generation a freshly initialized replica
// starts at.
const InitialCheckpointState = 0

// Update is the wire-visible envelope exchanged between client, server,
// and bus.
type Update struct {
	Shapes            []shape.BoardShape `xml:"Shape,omitempty"`
	Op                Op                 `xml:"Operation"`
	RequesterUserID   string             `xml:"RequesterUserID"`
	CheckpointNumber  int                `xml:"CheckpointNumber"`
	Generation        int                `xml:"Generation"`
}

// SingleShape returns the envelope's one shape and true, or the zero value
// and false if the envelope does not carry exactly SingleUpdateSize shapes.
func (u Update) SingleShape() (shape.BoardShape, bool) {
	if len(u.Shapes) != SingleUpdateSize {
		return shape.BoardShape{}, false
	}
	return u.Shapes[0], true
}

// UXOp is the UI-facing delta operation: shape deltas reach a listener only
// as Create or Delete — Modify is always expressed as Delete-then-Create so
// z-order stays consistent with the remote-op reorder protocol. The
// CreateCheckpoint and ClearState notifications carry an empty UXOp and are
// identified by SourceOp.
type UXOp string

const (
	UXCreate UXOp = "Create"
	UXDelete UXOp = "Delete"
)

// UXShape is the rendering-side delta record handed to listeners.
type UXShape struct {
	UXOp             UXOp
	Shape            shape.Shape
	ShapeID          string
	CheckpointNumber int
	SourceOp         Op
}
