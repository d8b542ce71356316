package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

func makeCreate(id string, ts time.Time, gen int) envelope.Update {
	return envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: id, LastModifiedAt: ts}},
		Op:              envelope.OpCreate,
		RequesterUserID: "u1",
		Generation:      gen,
	}
}

func TestSaveUpdateCreateThenDuplicateRejected(t *testing.T) {
	m := NewManager()
	applied, err := m.SaveUpdate(makeCreate("s1", time.Unix(1, 0), 0))
	require.NoError(t, err)
	require.True(t, applied)

	_, err = m.SaveUpdate(makeCreate("s1", time.Unix(2, 0), 0))
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
}

func TestSaveUpdateStaleGenerationIsNoop(t *testing.T) {
	m := NewManager()
	env := makeCreate("s1", time.Unix(1, 0), 5)
	applied, err := m.SaveUpdate(env)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSaveUpdateDeleteThenModifyIsTombstonedNoop(t *testing.T) {
	m := NewManager()
	_, err := m.SaveUpdate(makeCreate("s1", time.Unix(1, 0), 0))
	require.NoError(t, err)

	del := envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "s1"}},
		Op:              envelope.OpDelete,
		RequesterUserID: "u1",
		Generation:      0,
	}
	applied, err := m.SaveUpdate(del)
	require.NoError(t, err)
	require.True(t, applied)

	modify := envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "s1", LastModifiedAt: time.Unix(2, 0)}},
		Op:              envelope.OpModify,
		RequesterUserID: "u1",
		Generation:      0,
	}
	applied, err = m.SaveUpdate(modify)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestClearStateAdvancesGenerationAndTombstonesAll(t *testing.T) {
	m := NewManager()
	_, err := m.SaveUpdate(makeCreate("s1", time.Unix(1, 0), 0))
	require.NoError(t, err)

	clear := envelope.Update{Op: envelope.OpClearState, RequesterUserID: "u1", Generation: 1}
	applied, err := m.SaveUpdate(clear)
	require.NoError(t, err)
	require.True(t, applied)

	state := m.FetchState("u1")
	assert.Equal(t, 1, state.Generation)
	assert.Empty(t, state.Shapes)

	// a late modify at the old generation is now stale, not a tombstone-noop
	modify := envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "s1"}},
		Op:              envelope.OpModify,
		RequesterUserID: "u1",
		Generation:      0,
	}
	applied, err = m.SaveUpdate(modify)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestFetchStateOrdersByLastModifiedThenID(t *testing.T) {
	m := NewManager()
	_, err := m.SaveUpdate(makeCreate("b", time.Unix(5, 0), 0))
	require.NoError(t, err)
	_, err = m.SaveUpdate(makeCreate("a", time.Unix(5, 0), 0))
	require.NoError(t, err)
	_, err = m.SaveUpdate(makeCreate("c", time.Unix(1, 0), 0))
	require.NoError(t, err)

	state := m.FetchState("u1")
	require.Len(t, state.Shapes, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{
		state.Shapes[0].ShapeID, state.Shapes[1].ShapeID, state.Shapes[2].ShapeID,
	})
}

func TestSaveAndFetchCheckpointSetsGenerationToCheckpointNumber(t *testing.T) {
	m := NewManager()
	_, err := m.SaveUpdate(makeCreate("s1", time.Unix(1, 0), 0))
	require.NoError(t, err)

	result, err := m.SaveCheckpoint("u1")
	require.NoError(t, err)
	k := result.CheckpointNumber
	require.Equal(t, 1, k)

	_, err = m.SaveUpdate(makeCreate("s2", time.Unix(2, 0), 0))
	require.NoError(t, err)

	fetched, err := m.FetchCheckpoint(k, "u1")
	require.NoError(t, err)
	assert.Equal(t, k, fetched.Generation)
	require.Len(t, fetched.Shapes, 1)
	assert.Equal(t, "s1", fetched.Shapes[0].ShapeID)

	state := m.FetchState("u1")
	assert.Equal(t, k, state.Generation)
	require.Len(t, state.Shapes, 1)
	assert.Equal(t, "s1", state.Shapes[0].ShapeID)
}

func TestSaveUpdateRejectsMultiShapeEnvelope(t *testing.T) {
	m := NewManager()
	env := envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "a"}, {ShapeID: "b"}},
		Op:              envelope.OpCreate,
		RequesterUserID: "u1",
	}
	_, err := m.SaveUpdate(env)
	assert.ErrorIs(t, err, errs.ErrMultiShapeUpdate)
}
