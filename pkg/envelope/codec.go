package envelope

import (
	"encoding/xml"
	"fmt"
)

// wireEnvelope and wireShape mirror Update and shape.BoardShape with XML
// tags. Unknown fields are
// ignored on decode, which encoding/xml already does by default for
// elements/attributes it has no matching struct field for.
type wireEnvelope struct {
	XMLName          xml.Name     `xml:"Update"`
	Shapes           []wireShape  `xml:"Shape"`
	Operation        string       `xml:"Operation"`
	RequesterUserID  string       `xml:"RequesterUserID"`
	CheckpointNumber int          `xml:"CheckpointNumber"`
	Generation       int          `xml:"Generation"`
}

type wireShape struct {
	ShapeID        string  `xml:"ShapeID"`
	Kind           string  `xml:"Kind"`
	Width          float64 `xml:"Width"`
	Height         float64 `xml:"Height"`
	StrokeWidth    float64 `xml:"StrokeWidth"`
	StrokeColor    string  `xml:"StrokeColor"`
	FillColor      string  `xml:"FillColor"`
	RotationDeg    float64 `xml:"RotationDeg"`
	CreatorUserID  string  `xml:"CreatorUserID"`
	Permission     int     `xml:"Permission"`
	CreatedAt      int64   `xml:"CreatedAtUnixNano"`
	LastModifiedAt int64   `xml:"LastModifiedAtUnixNano"`
	RecentOp       string  `xml:"RecentOp"`
	Points         []point `xml:"Point"`
}

type point struct {
	X float64 `xml:"X,attr"`
	Y float64 `xml:"Y,attr"`
}

// Codec marshals and unmarshals Update envelopes to and from the XML wire
// format. It holds no state and is safe for concurrent use.
type Codec struct{}

// Marshal serializes env to the XML wire format.
func (Codec) Marshal(env Update) ([]byte, error) {
	w := toWire(env)
	out, err := xml.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return out, nil
}

// Unmarshal parses the XML wire format into an Update. Fields present on
// the wire but absent from wireEnvelope/wireShape are ignored by
// encoding/xml, keeping decoding forward-compatible with unknown fields.
func (Codec) Unmarshal(data []byte) (Update, error) {
	var w wireEnvelope
	if err := xml.Unmarshal(data, &w); err != nil {
		return Update{}, fmt.Errorf("envelope: unmarshal: %w", err)
	}
	return fromWire(w), nil
}
