package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabwhiteboard/cwse/pkg/shape"
)

func TestCodecRoundTrip(t *testing.T) {
	c := Codec{}
	env := Update{
		Shapes: []shape.BoardShape{
			{
				ShapeID: "s1",
				Shape: shape.Shape{
					Kind:        shape.KindPolyline,
					Points:      []shape.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
					StrokeWidth: 2.5,
					StrokeColor: "#000",
				},
				CreatorUserID:  "u1",
				Permission:     shape.LevelHigh,
				CreatedAt:      time.Unix(1000, 500),
				LastModifiedAt: time.Unix(2000, 750),
				RecentOp:       shape.OpCreate,
			},
		},
		Op:               OpCreate,
		RequesterUserID:  "u1",
		CheckpointNumber: 3,
		Generation:       7,
	}

	data, err := c.Marshal(env)
	require.NoError(t, err)

	got, err := c.Unmarshal(data)
	require.NoError(t, err)

	require.Len(t, got.Shapes, 1)
	assert.Equal(t, env.Op, got.Op)
	assert.Equal(t, env.RequesterUserID, got.RequesterUserID)
	assert.Equal(t, env.CheckpointNumber, got.CheckpointNumber)
	assert.Equal(t, env.Generation, got.Generation)

	gb, eb := got.Shapes[0], env.Shapes[0]
	assert.Equal(t, eb.ShapeID, gb.ShapeID)
	assert.Equal(t, eb.Shape.Kind, gb.Shape.Kind)
	assert.Equal(t, eb.Shape.Points, gb.Shape.Points)
	assert.True(t, eb.CreatedAt.Equal(gb.CreatedAt))
	assert.True(t, eb.LastModifiedAt.Equal(gb.LastModifiedAt))
}

func TestCodecIgnoresUnknownFields(t *testing.T) {
	c := Codec{}
	raw := []byte(`<Update><Operation>Create</Operation><RequesterUserID>u1</RequesterUserID><CheckpointNumber>0</CheckpointNumber><Generation>0</Generation><FutureField>ignored</FutureField></Update>`)
	got, err := c.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, OpCreate, got.Op)
}

func TestSingleShape(t *testing.T) {
	env := Update{Shapes: []shape.BoardShape{{ShapeID: "a"}}}
	b, ok := env.SingleShape()
	require.True(t, ok)
	assert.Equal(t, "a", b.ShapeID)

	empty := Update{}
	_, ok = empty.SingleShape()
	assert.False(t, ok)

	multi := Update{Shapes: []shape.BoardShape{{ShapeID: "a"}, {ShapeID: "b"}}}
	_, ok = multi.SingleShape()
	assert.False(t, ok)
}
