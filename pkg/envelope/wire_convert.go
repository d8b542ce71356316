package envelope

import (
	"time"

	"github.com/collabwhiteboard/cwse/pkg/shape"
)

func toWire(env Update) wireEnvelope {
	w := wireEnvelope{
		Operation:        string(env.Op),
		RequesterUserID:  env.RequesterUserID,
		CheckpointNumber: env.CheckpointNumber,
		Generation:       env.Generation,
	}
	if len(env.Shapes) > 0 {
		w.Shapes = make([]wireShape, len(env.Shapes))
		for i, b := range env.Shapes {
			w.Shapes[i] = boardShapeToWire(b)
		}
	}
	return w
}

func fromWire(w wireEnvelope) Update {
	env := Update{
		Op:               Op(w.Operation),
		RequesterUserID:  w.RequesterUserID,
		CheckpointNumber: w.CheckpointNumber,
		Generation:       w.Generation,
	}
	if len(w.Shapes) > 0 {
		env.Shapes = make([]shape.BoardShape, len(w.Shapes))
		for i, ws := range w.Shapes {
			env.Shapes[i] = wireToBoardShape(ws)
		}
	}
	return env
}

func boardShapeToWire(b shape.BoardShape) wireShape {
	ws := wireShape{
		ShapeID:        b.ShapeID,
		Kind:           string(b.Shape.Kind),
		Width:          b.Shape.Width,
		Height:         b.Shape.Height,
		StrokeWidth:    b.Shape.StrokeWidth,
		StrokeColor:    b.Shape.StrokeColor,
		FillColor:      b.Shape.FillColor,
		RotationDeg:    b.Shape.RotationDeg,
		CreatorUserID:  b.CreatorUserID,
		Permission:     int(b.Permission),
		CreatedAt:      b.CreatedAt.UnixNano(),
		LastModifiedAt: b.LastModifiedAt.UnixNano(),
		RecentOp:       string(b.RecentOp),
	}
	if len(b.Shape.Points) > 0 {
		ws.Points = make([]point, len(b.Shape.Points))
		for i, p := range b.Shape.Points {
			ws.Points[i] = point{X: p.X, Y: p.Y}
		}
	}
	return ws
}

func wireToBoardShape(ws wireShape) shape.BoardShape {
	b := shape.BoardShape{
		ShapeID: ws.ShapeID,
		Shape: shape.Shape{
			Kind:        shape.Kind(ws.Kind),
			Width:       ws.Width,
			Height:      ws.Height,
			StrokeWidth: ws.StrokeWidth,
			StrokeColor: ws.StrokeColor,
			FillColor:   ws.FillColor,
			RotationDeg: ws.RotationDeg,
		},
		CreatorUserID:  ws.CreatorUserID,
		Permission:     shape.UserLevel(ws.Permission),
		CreatedAt:      time.Unix(0, ws.CreatedAt),
		LastModifiedAt: time.Unix(0, ws.LastModifiedAt),
		RecentOp:       shape.Op(ws.RecentOp),
	}
	if len(ws.Points) > 0 {
		b.Shape.Points = make([]shape.Point, len(ws.Points))
		for i, p := range ws.Points {
			b.Shape.Points[i] = shape.Point{X: p.X, Y: p.Y}
		}
	}
	return b
}
