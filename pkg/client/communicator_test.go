package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/envelope"
)

func TestCommunicatorSendBroadcastsOverBus(t *testing.T) {
	b := bus.NewInProc()
	var got []byte
	b.Subscribe(bus.ModuleWhiteboard, "observer", 0, func(payload []byte) { got = payload })

	c := NewCommunicator(b, "c1")
	err := c.Send(envelope.Update{Op: envelope.OpCreate, RequesterUserID: "c1"})
	require.NoError(t, err)

	require.NotNil(t, got)
	codec := envelope.Codec{}
	env, err := codec.Unmarshal(got)
	require.NoError(t, err)
	assert.Equal(t, envelope.OpCreate, env.Op)
}

func TestCommunicatorSubscribeIsLazyAndFansOutToAllListeners(t *testing.T) {
	b := bus.NewInProc()
	c := NewCommunicator(b, "c1")

	var calls1, calls2 int
	c.Subscribe(func(envelope.Update) { calls1++ })
	c.Subscribe(func(envelope.Update) { calls2++ })

	codec := envelope.Codec{}
	payload, err := codec.Marshal(envelope.Update{Op: envelope.OpCreate})
	require.NoError(t, err)

	require.NoError(t, b.SendTo(bus.ModuleWhiteboard, payload, "c1"))
	assert.Equal(t, 1, calls1)
	assert.Equal(t, 1, calls2)
}

func TestCommunicatorOnlyReceivesMessagesAddressedToItsClientID(t *testing.T) {
	b := bus.NewInProc()
	c := NewCommunicator(b, "c1")

	var calls int
	c.Subscribe(func(envelope.Update) { calls++ })

	codec := envelope.Codec{}
	payload, err := codec.Marshal(envelope.Update{Op: envelope.OpCreate})
	require.NoError(t, err)

	require.NoError(t, b.SendTo(bus.ModuleWhiteboard, payload, "someone-else"))
	assert.Equal(t, 0, calls)
}
