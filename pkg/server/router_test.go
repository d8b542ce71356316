package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

func TestRouterBroadcastsCreateToOtherClients(t *testing.T) {
	b := bus.NewInProc()
	mgr := NewManager()
	router := NewRouter(mgr, b, nil)

	var receivedByB []byte
	b.Subscribe(bus.ModuleWhiteboard, "clientB", 0, func(payload []byte) { receivedByB = payload })
	router.OnClientJoined("clientA")
	router.OnClientJoined("clientB")

	codec := envelope.Codec{}
	env := envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "s1", LastModifiedAt: time.Unix(1, 0)}},
		Op:              envelope.OpCreate,
		RequesterUserID: "userA",
		Generation:      0,
	}
	payload, err := codec.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, b.Send(bus.ModuleWhiteboard, payload))

	require.NotNil(t, receivedByB)
	got, err := codec.Unmarshal(receivedByB)
	require.NoError(t, err)
	assert.Equal(t, envelope.OpCreate, got.Op)
	require.Len(t, got.Shapes, 1)
	assert.Equal(t, "s1", got.Shapes[0].ShapeID)
}

// fakeSendToBus isolates Router.sendTo's addressing from InProc's
// intentionally broadcast-everything Send, which every client's
// Communicator also uses for outbound requests.
type fakeSendToBus struct {
	sendToCalls map[string][]byte
}

func (f *fakeSendToBus) Send(string, []byte) error { return nil }
func (f *fakeSendToBus) SendTo(_ string, payload []byte, destClient string) error {
	if f.sendToCalls == nil {
		f.sendToCalls = make(map[string][]byte)
	}
	f.sendToCalls[destClient] = payload
	return nil
}
func (f *fakeSendToBus) Subscribe(string, string, int, bus.Handler) func() { return func() {} }

func TestRouterFetchStateRepliesOnlyToRequester(t *testing.T) {
	mgr := NewManager()
	fb := &fakeSendToBus{}
	router := NewRouter(mgr, fb, nil)
	router.OnClientJoined("clientA")
	router.OnClientJoined("clientB")

	codec := envelope.Codec{}
	req := envelope.Update{Op: envelope.OpFetchState, RequesterUserID: "clientA"}
	payload, err := codec.Marshal(req)
	require.NoError(t, err)

	router.handleInbound(payload)

	assert.Contains(t, fb.sendToCalls, "clientA")
	assert.NotContains(t, fb.sendToCalls, "clientB")
}

func TestRouterCheckpointRoundTrip(t *testing.T) {
	b := bus.NewInProc()
	mgr := NewManager()
	router := NewRouter(mgr, b, nil)
	router.OnClientJoined("clientA")

	_, err := mgr.SaveUpdate(envelope.Update{
		Shapes:          []shape.BoardShape{{ShapeID: "s1", LastModifiedAt: time.Unix(1, 0)}},
		Op:              envelope.OpCreate,
		RequesterUserID: "userA",
		Generation:      0,
	})
	require.NoError(t, err)

	var got []byte
	b.Subscribe(bus.ModuleWhiteboard, "clientA", 0, func(payload []byte) { got = payload })

	require.NoError(t, router.HandleCreateCheckpoint("userA"))

	codec := envelope.Codec{}
	result, err := codec.Unmarshal(got)
	require.NoError(t, err)
	assert.Equal(t, envelope.OpCreateCheckpoint, result.Op)
	assert.Equal(t, 1, result.CheckpointNumber)
}
